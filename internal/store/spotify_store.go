package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"golang.org/x/oauth2"
)

type SpotifyTokenStore struct {
	db *sqlx.DB
}

type spotifyTokenRow struct {
	UserID       uuid.UUID `db:"user_id"`
	AccessToken  string    `db:"access_token"`
	RefreshToken string    `db:"refresh_token"`
	TokenType    string    `db:"token_type"`
	Expiry       time.Time `db:"expiry"`
}

const (
	upsertTokenQuery = `
		INSERT INTO spotify_tokens (user_id, access_token, refresh_token, token_type, expiry)
		VALUES (:user_id, :access_token, :refresh_token, :token_type, :expiry)
		ON CONFLICT (user_id) DO UPDATE SET
		access_token = excluded.access_token,
		refresh_token = CASE WHEN excluded.refresh_token = '' THEN spotify_tokens.refresh_token ELSE excluded.refresh_token END,
		token_type = excluded.token_type,
		expiry = excluded.expiry
	`
	getTokenQuery = "SELECT * FROM spotify_tokens WHERE user_id = ?"
)

func NewSpotifyTokenStore(db *sqlx.DB) *SpotifyTokenStore {
	return &SpotifyTokenStore{db: db}
}

// SaveToken stores a user's token. Refreshed tokens usually come back without
// a refresh token, in which case the stored one is kept.
func (s *SpotifyTokenStore) SaveToken(ctx context.Context, userID uuid.UUID, tok *oauth2.Token) error {
	row := spotifyTokenRow{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		Expiry:       tok.Expiry.UTC(),
	}
	if row.TokenType == "" {
		row.TokenType = "Bearer"
	}
	_, err := s.db.NamedExecContext(ctx, upsertTokenQuery, row)
	return err
}

func (s *SpotifyTokenStore) Token(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	var row spotifyTokenRow
	if err := s.db.GetContext(ctx, &row, getTokenQuery, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("spotify token for user %s: %w", userID, ErrNotFound)
		}
		return nil, err
	}
	return &oauth2.Token{
		AccessToken:  row.AccessToken,
		RefreshToken: row.RefreshToken,
		TokenType:    row.TokenType,
		Expiry:       row.Expiry,
	}, nil
}

// OAuthStateStore keeps the single-use state values handed to Spotify during
// the authorization redirect.
type OAuthStateStore struct {
	db *sqlx.DB
}

type OAuthState struct {
	State     string    `db:"state"`
	UserID    uuid.UUID `db:"user_id"`
	GroupID   uuid.UUID `db:"group_id"`
	CreatedAt time.Time `db:"created_at"`
}

const (
	createStateQuery = `
		INSERT INTO spotify_auth_states (state, user_id, group_id, created_at)
		VALUES (:state, :user_id, :group_id, :created_at)
	`
	getStateQuery    = "SELECT * FROM spotify_auth_states WHERE state = ?"
	deleteStateQuery = "DELETE FROM spotify_auth_states WHERE state = ?"
	purgeStatesQuery = "DELETE FROM spotify_auth_states WHERE created_at < ?"
)

func NewOAuthStateStore(db *sqlx.DB) *OAuthStateStore {
	return &OAuthStateStore{db: db}
}

func (s *OAuthStateStore) Create(ctx context.Context, st *OAuthState) error {
	if st.CreatedAt.IsZero() {
		st.CreatedAt = nowUTC()
	}
	_, err := s.db.NamedExecContext(ctx, createStateQuery, st)
	return err
}

// Consume looks up a state and deletes it in the same transaction, so a state
// can only ever be redeemed once.
func (s *OAuthStateStore) Consume(ctx context.Context, state string) (*OAuthState, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var st OAuthState
	if err := tx.GetContext(ctx, &st, getStateQuery, state); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("oauth state: %w", ErrNotFound)
		}
		return nil, err
	}
	if _, err := tx.ExecContext(ctx, deleteStateQuery, state); err != nil {
		return nil, err
	}
	return &st, tx.Commit()
}

func (s *OAuthStateStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, purgeStatesQuery, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
