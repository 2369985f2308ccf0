package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/jobs"
	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type SpotifyAuthorizer interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// SpotifyService links a group owner's Spotify account so that private
// playlists can be used for brackets.
type SpotifyService struct {
	groups *store.GroupStore
	states *store.OAuthStateStore
	tokens *store.SpotifyTokenStore
	auth   SpotifyAuthorizer
}

func NewSpotifyService(groups *store.GroupStore, states *store.OAuthStateStore, tokens *store.SpotifyTokenStore, auth SpotifyAuthorizer) *SpotifyService {
	return &SpotifyService{groups: groups, states: states, tokens: tokens, auth: auth}
}

// ConnectURL starts the authorization flow for the caller, who must own the
// group. The group is where the callback sends them back to.
func (s *SpotifyService) ConnectURL(ctx context.Context, groupID uuid.UUID) (string, error) {
	_, userID, err := ownerGroup(ctx, s.groups, groupID)
	if err != nil {
		return "", err
	}

	st := &store.OAuthState{
		State:   rand.Text(),
		UserID:  userID,
		GroupID: groupID,
	}
	if err := s.states.Create(ctx, st); err != nil {
		return "", fmt.Errorf("failed to save oauth state: %w", err)
	}
	return s.auth.AuthURL(st.State), nil
}

// CompleteConnect redeems the state handed to Spotify, stores the caller's
// token and returns the group the flow was started from.
func (s *SpotifyService) CompleteConnect(ctx context.Context, state, code string) (uuid.UUID, error) {
	userID, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return uuid.Nil, ErrNotLoggedIn
	}
	if state == "" || code == "" {
		return uuid.Nil, ErrInvalidState
	}

	st, err := s.states.Consume(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return uuid.Nil, ErrInvalidState
		}
		return uuid.Nil, err
	}
	if st.UserID != userID || time.Since(st.CreatedAt) > jobs.StateTTL {
		return uuid.Nil, ErrInvalidState
	}

	tok, err := s.auth.Exchange(ctx, code)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to exchange spotify code: %w", err)
	}
	if err := s.tokens.SaveToken(ctx, userID, tok); err != nil {
		return uuid.Nil, fmt.Errorf("failed to save spotify token: %w", err)
	}
	return st.GroupID, nil
}
