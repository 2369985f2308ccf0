package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/AdamBeresnev/album-bracket/internal/store"
	users "github.com/AdamBeresnev/album-bracket/internal/user"
	"github.com/AdamBeresnev/album-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/markbates/goth"
)

type UserService struct {
	db    *sqlx.DB
	store *store.UserStore
}

func NewUserService(db *sqlx.DB, store *store.UserStore) *UserService {
	return &UserService{db: db, store: store}
}

func (s *UserService) FindOrCreateUserByProvider(ctx context.Context, gothUser goth.User) (*users.User, error) {
	name := gothUser.NickName
	if name == "" {
		name = gothUser.Name
	}

	user, err := s.store.GetUserByProvider(ctx, gothUser.Provider, gothUser.UserID)
	if err == nil {
		if utils.OrZero(user.AvatarURL) != gothUser.AvatarURL || user.Username != name {
			user.AvatarURL = utils.StringOrNil(gothUser.AvatarURL)
			user.Username = name
			if err := s.store.UpdateUserNameAndAvatar(ctx, user); err != nil {
				return nil, err
			}
		}
		return user, nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		newUser := &users.User{
			ID:         uuid.New(),
			Email:      gothUser.Email,
			Username:   name,
			Provider:   utils.Ptr(gothUser.Provider),
			ProviderID: utils.Ptr(gothUser.UserID),
			AvatarURL:  utils.StringOrNil(gothUser.AvatarURL),
		}
		err := s.store.CreateUser(ctx, newUser)
		return newUser, err
	}

	return nil, err
}

// EnsureGuestUser returns the guest already bound to this browser session, or
// creates a new one with a random nickname.
func (s *UserService) EnsureGuestUser(ctx context.Context, sessionUserID string) (*users.User, error) {
	if id, err := uuid.Parse(sessionUserID); err == nil {
		user, err := s.store.GetUser(ctx, id)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
	}

	id := uuid.New()
	guest := &users.User{
		ID:         id,
		Email:      id.String() + "@guest.album-bracket.app",
		Username:   users.GenerateNickname(),
		Provider:   utils.Ptr(users.GuestProvider),
		ProviderID: utils.Ptr(id.String()),
	}
	if err := s.store.CreateUser(ctx, guest); err != nil {
		return nil, err
	}
	return guest, nil
}
