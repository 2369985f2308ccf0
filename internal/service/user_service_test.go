package service

import (
	"context"
	"testing"

	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/AdamBeresnev/album-bracket/internal/utils"
	"github.com/google/uuid"
	"github.com/markbates/goth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindOrCreateUserByProvider(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewUserService(db, store.NewUserStore(db))
	ctx := context.Background()

	gothUser := goth.User{
		Provider: "discord",
		UserID:   "1234",
		Email:    "dj@example.com",
		NickName: "dj",
	}

	created, err := svc.FindOrCreateUserByProvider(ctx, gothUser)
	require.NoError(t, err)
	assert.Equal(t, "dj", created.Username)
	assert.Nil(t, created.AvatarURL)

	gothUser.NickName = ""
	gothUser.Name = "DJ Shadow"
	gothUser.AvatarURL = "https://cdn.example.com/a.png"

	found, err := svc.FindOrCreateUserByProvider(ctx, gothUser)
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)
	assert.Equal(t, "DJ Shadow", found.Username)
	assert.Equal(t, "https://cdn.example.com/a.png", utils.OrZero(found.AvatarURL))

	stored, err := store.NewUserStore(db).GetUser(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "DJ Shadow", stored.Username)
}

func TestEnsureGuestUser(t *testing.T) {
	db := setupTestDB(t)
	defer db.Close()

	svc := NewUserService(db, store.NewUserStore(db))
	ctx := context.Background()

	guest, err := svc.EnsureGuestUser(ctx, "")
	require.NoError(t, err)
	assert.True(t, guest.IsGuest())
	assert.NotEmpty(t, guest.Username)

	again, err := svc.EnsureGuestUser(ctx, guest.ID.String())
	require.NoError(t, err)
	assert.Equal(t, guest.ID, again.ID)

	other, err := svc.EnsureGuestUser(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.NotEqual(t, guest.ID, other.ID)
}
