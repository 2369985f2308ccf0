package service

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	"github.com/AdamBeresnev/album-bracket/internal/realtime"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	users "github.com/AdamBeresnev/album-bracket/internal/user"
	"github.com/AdamBeresnev/album-bracket/internal/utils"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates an in-memory SQLite database and applies migrations
func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	database, err := sqlx.Connect("sqlite3", "file::memory:")
	require.NoError(t, err, "Failed to connect to in-memory DB")
	// Every connection to :memory: is its own database
	database.SetMaxOpenConns(1)

	_, err = database.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	driver, err := sqlite3.WithInstance(database.DB, &sqlite3.Config{})
	require.NoError(t, err, "Failed to create migrate driver instance")

	m, err := migrate.NewWithDatabaseInstance(
		"file://../../migrations",
		"sqlite3",
		driver,
	)
	require.NoError(t, err, "Failed to create migrate instance")

	err = m.Up()
	if err != nil && err != migrate.ErrNoChange {
		require.NoError(t, err, "Failed to apply migrations")
	}

	return database
}

type testEnv struct {
	db       *sqlx.DB
	groups   *GroupService
	brackets *BracketService
	albums   *fakeAlbums
	hub      *recordingHub
	archiver *fakeArchiver
	notifier *fakeAnnouncer
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	db := setupTestDB(t)
	t.Cleanup(func() { db.Close() })

	groupStore := store.NewGroupStore(db)
	bracketStore := store.NewBracketStore(db)

	env := &testEnv{
		db:       db,
		albums:   &fakeAlbums{},
		hub:      &recordingHub{},
		archiver: &fakeArchiver{},
		notifier: &fakeAnnouncer{},
	}
	env.groups = NewGroupService(db, groupStore, bracketStore)

	opts = append([]Option{
		WithBroadcaster(env.hub),
		WithArchiver(env.archiver),
		WithAnnouncer(env.notifier),
	}, opts...)
	env.brackets = NewBracketService(groupStore, bracketStore, env.albums, opts...)
	return env
}

func (e *testEnv) newUser(t *testing.T, name string) context.Context {
	t.Helper()
	u := &users.User{
		ID:         uuid.New(),
		Email:      name + "@example.com",
		Username:   name,
		Provider:   utils.Ptr("discord"),
		ProviderID: utils.Ptr(uuid.NewString()),
	}
	require.NoError(t, store.NewUserStore(e.db).CreateUser(context.Background(), u))
	return middleware.WithUser(context.Background(), u)
}

// newGroupWithBracket creates a group owned by a fresh user and adds a pending
// bracket of n tracks to it.
func (e *testEnv) newGroupWithBracket(t *testing.T, n int) (context.Context, *group.Group, *group.BracketRecord) {
	t.Helper()
	owner := e.newUser(t, "owner")
	g, err := e.groups.CreateGroup(owner, "Listening Club")
	require.NoError(t, err)

	e.albums.album = testAlbum(n)
	rec, err := e.brackets.AddPendingBracket(owner, g.ID, "https://open.spotify.com/album/abc")
	require.NoError(t, err)
	return owner, g, rec
}

func testAlbum(n int) *group.Album {
	tracks := make([]bracket.Track, n)
	for i := range tracks {
		tracks[i] = bracket.Track{
			ID:          fmt.Sprintf("t%d", i+1),
			Name:        fmt.Sprintf("Song %d", i+1),
			TrackNumber: i + 1,
		}
	}
	return &group.Album{
		ID:     "abc",
		Name:   "Test Album",
		Artist: "Test Artist",
		Source: group.SourceSpotify,
		Tracks: tracks,
	}
}

type fakeAlbums struct {
	album *group.Album
	err   error
	owner uuid.UUID
}

func (f *fakeAlbums) FetchAlbum(_ context.Context, ownerID uuid.UUID, _ string) (*group.Album, error) {
	f.owner = ownerID
	if f.err != nil {
		return nil, f.err
	}
	return f.album, nil
}

type recordingHub struct {
	mu       sync.Mutex
	messages []realtime.Message
	rooms    []string
}

func (h *recordingHub) BroadcastToRoom(room string, msg realtime.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rooms = append(h.rooms, room)
	h.messages = append(h.messages, msg)
}

func (h *recordingHub) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	types := make([]string, len(h.messages))
	for i, m := range h.messages {
		types[i] = m.Type
	}
	return types
}

type fakeArchiver struct {
	archived []uuid.UUID
	err      error
}

func (f *fakeArchiver) Archive(_ context.Context, rec *group.BracketRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.archived = append(f.archived, rec.ID)
	return "brackets/" + rec.ID.String() + ".json", nil
}

type fakeAnnouncer struct {
	champions []string
}

func (f *fakeAnnouncer) AnnounceChampion(_ context.Context, _ *group.Group, rec *group.BracketRecord) error {
	f.champions = append(f.champions, rec.Bracket.Champion.ID)
	return nil
}

type fakeCache struct {
	mu          sync.Mutex
	data        map[uuid.UUID][]byte
	gets        int
	invalidated int
}

func (c *fakeCache) Get(_ context.Context, groupID uuid.UUID) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gets++
	v, ok := c.data[groupID]
	return v, ok, nil
}

func (c *fakeCache) Set(_ context.Context, groupID uuid.UUID, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.data == nil {
		c.data = make(map[uuid.UUID][]byte)
	}
	c.data[groupID] = value
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, groupID uuid.UUID) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated++
	delete(c.data, groupID)
	return nil
}
