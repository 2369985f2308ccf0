package main

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/config"
	"github.com/AdamBeresnev/album-bracket/internal/httputil"
	"github.com/AdamBeresnev/album-bracket/internal/metrics"
	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	"github.com/AdamBeresnev/album-bracket/internal/music"
	"github.com/AdamBeresnev/album-bracket/internal/realtime"
	"github.com/AdamBeresnev/album-bracket/internal/service"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/AdamBeresnev/album-bracket/views"
	"github.com/alexedwards/scs/v2"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/markbates/goth/gothic"
)

type application struct {
	cfg       *config.Config
	sessions  *scs.SessionManager
	userStore *store.UserStore
	providers []string
	limiter   *middleware.RateLimiter
	hub       *realtime.Hub

	users    *service.UserService
	groups   *service.GroupService
	brackets *service.BracketService
	spotify  *service.SpotifyService
}

func newRouter(app *application) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)

	r.Handle("/metrics", metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(app.sessions.LoadAndSave)

		// Serve static files
		fileServer := http.FileServer(http.Dir("./static"))
		r.Handle("/static/*", http.StripPrefix("/static/", fileServer))

		r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
			views.Render(w, r, views.LoginPage(app.providers))
		})

		r.Post("/auth/guest", func(w http.ResponseWriter, r *http.Request) {
			user, err := app.users.EnsureGuestUser(r.Context(), app.sessions.GetString(r.Context(), middleware.SessionUserKey))
			if err != nil {
				httputil.InternalServerError(w, "Failed to login as guest", err)
				return
			}

			if err := app.sessions.RenewToken(r.Context()); err != nil {
				httputil.InternalServerError(w, "Failed to renew session", err)
				return
			}
			app.sessions.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
			redirect(w, r, returnTo(app.sessions, r))
		})

		r.Get("/auth/{provider}", func(w http.ResponseWriter, r *http.Request) {
			provider := chi.URLParam(r, "provider")
			if !slices.Contains(app.providers, provider) {
				httputil.NotFound(w, "Unknown login provider", nil)
				return
			}
			gothic.BeginAuthHandler(w, gothic.GetContextWithProvider(r, provider))
		})

		r.Get("/auth/{provider}/callback", func(w http.ResponseWriter, r *http.Request) {
			provider := chi.URLParam(r, "provider")
			if !slices.Contains(app.providers, provider) {
				httputil.NotFound(w, "Unknown login provider", nil)
				return
			}

			gothUser, err := gothic.CompleteUserAuth(w, gothic.GetContextWithProvider(r, provider))
			if err != nil {
				httputil.BadRequest(w, "Authentication failure", err)
				return
			}

			user, err := app.users.FindOrCreateUserByProvider(r.Context(), gothUser)
			if err != nil {
				httputil.InternalServerError(w, "Failed to find or create user", err)
				return
			}

			if err := app.sessions.RenewToken(r.Context()); err != nil {
				httputil.InternalServerError(w, "Failed to renew session", err)
				return
			}
			app.sessions.Put(r.Context(), middleware.SessionUserKey, user.ID.String())
			http.Redirect(w, r, returnTo(app.sessions, r), http.StatusFound)
		})

		r.Post("/logout", func(w http.ResponseWriter, r *http.Request) {
			if err := app.sessions.Destroy(r.Context()); err != nil {
				httputil.InternalServerError(w, "Failed to log out", err)
				return
			}
			redirect(w, r, "/login")
		})

		r.Group(func(r chi.Router) {
			r.Use(rememberPath(app.sessions))
			r.Use(middleware.RequireAuth(app.sessions, app.userStore))
			app.pageRoutes(r)
		})

		r.Route("/api", func(r chi.Router) {
			r.Use(cors.Handler(cors.Options{
				AllowedOrigins:   app.cfg.AllowedOrigins,
				AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
				AllowedHeaders:   []string{"Accept", "Content-Type", "X-CSRF-Token"},
				AllowCredentials: true,
				MaxAge:           300,
			}))
			r.Use(middleware.RequireAuth(app.sessions, app.userStore))
			app.apiRoutes(r)
		})

		r.With(middleware.RequireAuth(app.sessions, app.userStore)).Get("/ws/groups/{id}", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			if _, err := app.groups.GetGroup(r.Context(), groupID); err != nil {
				writeError(w, err, "Failed to open live updates")
				return
			}
			app.hub.ServeWS(w, r, realtime.RoomForGroup(groupID))
		})
	})

	return r
}

func (app *application) pageRoutes(r chi.Router) {
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		groups, err := app.groups.GetGroupsForUser(r.Context())
		if err != nil {
			httputil.InternalServerError(w, "Failed to get groups", err)
			return
		}
		views.Render(w, r, views.Index(groups))
	})

	r.Post("/groups", func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			httputil.BadRequest(w, "Invalid form data", err)
			return
		}
		g, err := app.groups.CreateGroup(r.Context(), r.Form.Get("name"))
		if err != nil {
			writeError(w, err, "Failed to create group")
			return
		}
		redirect(w, r, fmt.Sprintf("/groups/%s", g.ID))
	})

	r.Route("/groups/{id}", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			data, err := app.groups.GetGroupData(r.Context(), groupID)
			if errors.Is(err, service.ErrForbidden) {
				http.Redirect(w, r, fmt.Sprintf("/groups/%s/join", groupID), http.StatusFound)
				return
			}
			if err != nil {
				writeError(w, err, "Failed to get group")
				return
			}
			views.Render(w, r, views.GroupPage(data.Group, data.Active, data.IsOwner))
		})

		r.Get("/bracket", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			rec, err := app.brackets.GetActiveBracket(r.Context(), groupID)
			if err != nil && !errors.Is(err, service.ErrNoActiveBracket) {
				writeError(w, err, "Failed to get bracket")
				return
			}
			views.Render(w, r, views.BracketSection(groupID, rec))
		})

		r.Get("/dashboard", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			data, err := app.groups.GetGroupData(r.Context(), groupID)
			if err != nil {
				writeError(w, err, "Failed to get group")
				return
			}
			views.Render(w, r, views.DashboardPage(data))
		})

		r.Get("/join", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			views.Render(w, r, views.JoinPage(groupID))
		})

		r.Post("/join", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			if _, err := app.groups.JoinGroup(r.Context(), groupID, r.Form.Get("nickname")); err != nil {
				writeError(w, err, "Failed to join group")
				return
			}
			redirect(w, r, fmt.Sprintf("/groups/%s", groupID))
		})

		r.Post("/brackets", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}
			if _, err := app.brackets.AddPendingBracket(r.Context(), groupID, r.Form.Get("url")); err != nil {
				writeError(w, err, "Failed to add bracket")
				return
			}
			redirect(w, r, fmt.Sprintf("/groups/%s/dashboard", groupID))
		})

		r.Post("/brackets/{bracketID}/start", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			bracketID, err := uuid.Parse(chi.URLParam(r, "bracketID"))
			if err != nil {
				httputil.BadRequest(w, "Invalid bracket ID", err)
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}

			opts := service.StartOptions{
				Shuffle: r.Form.Get("shuffle") == "true",
				Order:   r.Form["order"],
			}
			if _, err := app.brackets.StartBracket(r.Context(), groupID, bracketID, opts); err != nil {
				writeError(w, err, "Failed to start bracket")
				return
			}
			redirect(w, r, fmt.Sprintf("/groups/%s", groupID))
		})

		r.With(app.limiter.Middleware).Post("/votes", func(w http.ResponseWriter, r *http.Request) {
			groupID, ok := groupParam(w, r)
			if !ok {
				return
			}
			if err := r.ParseForm(); err != nil {
				httputil.BadRequest(w, "Invalid form data", err)
				return
			}

			rec, err := app.brackets.CastVote(r.Context(), groupID, r.Form.Get("matchup_id"), r.Form.Get("track_id"))
			if err != nil {
				writeError(w, err, "Failed to cast vote")
				return
			}
			views.Render(w, r, views.BracketSection(groupID, rec))
		})
	})

	r.Get("/spotify/connect", func(w http.ResponseWriter, r *http.Request) {
		if app.spotify == nil {
			httputil.NotFound(w, "Spotify is not configured", nil)
			return
		}
		groupID, err := uuid.Parse(r.URL.Query().Get("group"))
		if err != nil {
			httputil.BadRequest(w, "Invalid group ID", err)
			return
		}
		authURL, err := app.spotify.ConnectURL(r.Context(), groupID)
		if err != nil {
			writeError(w, err, "Failed to start Spotify authorization")
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	})
}

func (app *application) apiRoutes(r chi.Router) {
	// Spotify redirects the browser here after the owner approves access.
	r.Get("/spotify/callback", func(w http.ResponseWriter, r *http.Request) {
		if app.spotify == nil {
			httputil.NotFound(w, "Spotify is not configured", nil)
			return
		}
		q := r.URL.Query()
		if e := q.Get("error"); e != "" {
			httputil.BadRequest(w, "Spotify authorization was declined", errors.New(e))
			return
		}
		groupID, err := app.spotify.CompleteConnect(r.Context(), q.Get("state"), q.Get("code"))
		if err != nil {
			writeError(w, err, "Failed to connect Spotify")
			return
		}
		http.Redirect(w, r, fmt.Sprintf("/groups/%s/dashboard", groupID), http.StatusFound)
	})

	r.Get("/groups/{id}/bracket", func(w http.ResponseWriter, r *http.Request) {
		groupID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.JSONError(w, http.StatusBadRequest, "invalid group id", err)
			return
		}
		body, err := app.brackets.GetActiveBracketJSON(r.Context(), groupID)
		if err != nil {
			writeAPIError(w, err)
			return
		}
		httputil.RawJSON(w, http.StatusOK, body)
	})

	r.With(app.limiter.Middleware).Post("/groups/{id}/votes", func(w http.ResponseWriter, r *http.Request) {
		groupID, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			httputil.JSONError(w, http.StatusBadRequest, "invalid group id", err)
			return
		}

		var req voteRequest
		if err := httputil.DecodeJSON(w, r, &req); err != nil {
			httputil.JSONError(w, http.StatusBadRequest, "invalid request body", err)
			return
		}
		if req.MatchupID == "" || (req.TrackID == "" && req.TrackName == "") {
			httputil.JSONError(w, http.StatusBadRequest, "matchupId and one of trackId or trackName are required", nil)
			return
		}

		var rec any
		if req.TrackID != "" {
			rec, err = app.brackets.CastVote(r.Context(), groupID, req.MatchupID, req.TrackID)
		} else {
			rec, err = app.brackets.CastVoteByName(r.Context(), groupID, req.MatchupID, req.TrackName)
		}
		if err != nil {
			writeAPIError(w, err)
			return
		}
		httputil.JSON(w, http.StatusOK, rec)
	})
}

type voteRequest struct {
	MatchupID string `json:"matchupId"`
	TrackID   string `json:"trackId"`
	TrackName string `json:"trackName"`
}

func groupParam(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		httputil.BadRequest(w, "Invalid group ID", err)
		return uuid.Nil, false
	}
	return id, true
}

// redirect sends htmx requests to url with HX-Redirect and everything else
// with a plain 303.
func redirect(w http.ResponseWriter, r *http.Request, url string) {
	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", url)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, url, http.StatusSeeOther)
}

const returnToKey = "returnTo"

// rememberPath stores the page an anonymous visitor asked for, so that an
// invite link still works after logging in.
func rememberPath(sessions *scs.SessionManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodGet && !sessions.Exists(r.Context(), middleware.SessionUserKey) {
				sessions.Put(r.Context(), returnToKey, r.URL.Path)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func returnTo(sessions *scs.SessionManager, r *http.Request) string {
	path := sessions.PopString(r.Context(), returnToKey)
	if path == "" || !strings.HasPrefix(path, "/") || strings.HasPrefix(path, "//") {
		return "/"
	}
	return path
}

// statusFor maps service and engine errors to an HTTP status and a message
// that is safe to show.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrNotLoggedIn):
		return http.StatusUnauthorized, "Not logged in"
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden, service.ErrForbidden.Error()
	case errors.Is(err, service.ErrNotFound),
		errors.Is(err, service.ErrNoActiveBracket),
		errors.Is(err, bracket.ErrMatchupNotFound):
		return http.StatusNotFound, rootMessage(err)
	case errors.Is(err, bracket.ErrAlreadyDecided),
		errors.Is(err, bracket.ErrMatchupNotReady),
		errors.Is(err, service.ErrBracketNotPending):
		return http.StatusConflict, rootMessage(err)
	case errors.Is(err, store.ErrVersionConflict):
		return http.StatusConflict, "The bracket changed while you were voting, please try again"
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrInvalidTrackOrder),
		errors.Is(err, service.ErrUnknownTrackName),
		errors.Is(err, service.ErrAmbiguousTrackName),
		errors.Is(err, service.ErrInvalidState),
		errors.Is(err, bracket.ErrInvalidWinner),
		errors.Is(err, bracket.ErrInsufficientCompetitors),
		errors.Is(err, music.ErrUnsupportedURL),
		errors.Is(err, music.ErrTooFewTracks):
		return http.StatusBadRequest, err.Error()
	default:
		return http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError)
	}
}

func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func writeError(w http.ResponseWriter, err error, msg string) {
	status, text := statusFor(err)
	switch status {
	case http.StatusInternalServerError:
		httputil.InternalServerError(w, msg, err)
	case http.StatusNotFound:
		httputil.NotFound(w, text, err)
	case http.StatusForbidden:
		httputil.Forbidden(w, text, err)
	case http.StatusConflict:
		httputil.Conflict(w, text, err)
	case http.StatusBadRequest:
		httputil.BadRequest(w, text, err)
	default:
		http.Error(w, text, status)
	}
}

func writeAPIError(w http.ResponseWriter, err error) {
	status, text := statusFor(err)
	httputil.JSONError(w, status, text, err)
}
