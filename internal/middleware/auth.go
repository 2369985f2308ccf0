package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/config"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	users "github.com/AdamBeresnev/album-bracket/internal/user"
	"github.com/alexedwards/scs/v2"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/markbates/goth/providers/discord"
	"github.com/markbates/goth/providers/google"
)

type ContextKey string

const UserIDKey ContextKey = "userID"

// SessionUserKey is where the logged in user's id lives in the session.
const SessionUserKey = "userID"

// InitAuth registers the OAuth providers that have credentials configured.
// It returns the names of the registered providers.
func InitAuth(cfg *config.Config) []string {
	var providers []goth.Provider
	var names []string

	if cfg.Discord.Enabled() {
		providers = append(providers, discord.New(cfg.Discord.Key, cfg.Discord.Secret, cfg.Discord.CallbackURL, discord.ScopeIdentify, discord.ScopeEmail))
		names = append(names, "discord")
	}
	if cfg.Google.Enabled() {
		providers = append(providers, google.New(cfg.Google.Key, cfg.Google.Secret, cfg.Google.CallbackURL, "email", "profile"))
		names = append(names, "google")
	}

	goth.UseProviders(providers...)
	return names
}

func wantsJSON(r *http.Request) bool {
	return strings.HasPrefix(r.URL.Path, "/api/") || strings.HasPrefix(r.URL.Path, "/ws/") ||
		strings.Contains(r.Header.Get("Accept"), "application/json")
}

func unauthorized(w http.ResponseWriter, r *http.Request) {
	switch {
	case wantsJSON(r):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case r.Header.Get("HX-Request") != "":
		w.Header().Set("HX-Redirect", "/login")
		w.WriteHeader(http.StatusOK)
	default:
		http.Redirect(w, r, "/login", http.StatusFound)
	}
}

func RequireAuth(sessionManager *scs.SessionManager, userStore *store.UserStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userIDStr := sessionManager.GetString(r.Context(), SessionUserKey)
			if userIDStr == "" {
				unauthorized(w, r)
				return
			}

			userID, err := uuid.Parse(userIDStr)
			if err != nil {
				sessionManager.Remove(r.Context(), SessionUserKey)
				unauthorized(w, r)
				return
			}

			// A session can outlive its user when the database was reset
			user, err := userStore.GetUser(r.Context(), userID)
			if err != nil {
				sessionManager.Remove(r.Context(), SessionUserKey)
				unauthorized(w, r)
				return
			}

			ctx := WithUser(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithUser puts the user and its id in ctx, the way RequireAuth does.
func WithUser(ctx context.Context, user *users.User) context.Context {
	ctx = context.WithValue(ctx, UserIDKey, user.ID)
	return context.WithValue(ctx, users.UserKey, user)
}

func GetUserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	val := ctx.Value(UserIDKey)
	if val == nil {
		return uuid.Nil, false
	}

	id, ok := val.(uuid.UUID)
	return id, ok
}

func GetAuthenticatedUser(ctx context.Context) *users.User {
	val := ctx.Value(users.UserKey)
	if val == nil {
		return nil
	}
	user, ok := val.(*users.User)
	if !ok {
		return nil
	}
	return user
}
