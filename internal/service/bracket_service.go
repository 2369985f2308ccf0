package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/AdamBeresnev/album-bracket/internal/archive"
	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/cache"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/metrics"
	"github.com/AdamBeresnev/album-bracket/internal/notify"
	"github.com/AdamBeresnev/album-bracket/internal/realtime"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
)

// AlbumFetcher turns an album or playlist link into tracks.
type AlbumFetcher interface {
	FetchAlbum(ctx context.Context, ownerID uuid.UUID, url string) (*group.Album, error)
}

type Broadcaster interface {
	BroadcastToRoom(room string, msg realtime.Message)
}

type nopBroadcaster struct{}

func (nopBroadcaster) BroadcastToRoom(string, realtime.Message) {}

type BracketService struct {
	groups    *store.GroupStore
	brackets  store.BracketRepository
	albums    AlbumFetcher
	hub       Broadcaster
	cache     cache.BracketCache
	archiver  archive.Archiver
	announcer notify.Announcer
	byes      bracket.ByePlacement
	rand      *rand.Rand
	locks     groupLocks
}

type Option func(*BracketService)

func WithBroadcaster(b Broadcaster) Option {
	return func(s *BracketService) { s.hub = b }
}

func WithCache(c cache.BracketCache) Option {
	return func(s *BracketService) { s.cache = c }
}

func WithArchiver(a archive.Archiver) Option {
	return func(s *BracketService) { s.archiver = a }
}

func WithAnnouncer(a notify.Announcer) Option {
	return func(s *BracketService) { s.announcer = a }
}

func WithByePlacement(p bracket.ByePlacement) Option {
	return func(s *BracketService) { s.byes = p }
}

// WithRand fixes the shuffle source, mostly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *BracketService) { s.rand = r }
}

func NewBracketService(groups *store.GroupStore, brackets store.BracketRepository, albums AlbumFetcher, opts ...Option) *BracketService {
	s := &BracketService{
		groups:    groups,
		brackets:  brackets,
		albums:    albums,
		hub:       nopBroadcaster{},
		cache:     cache.Nop{},
		archiver:  archive.Nop{},
		announcer: notify.Nop{},
		byes:      bracket.ByesAppended,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// groupLocks hands out one mutex per group so that votes on the same bracket
// are applied one at a time. The version check in the store still catches
// writers in other processes.
type groupLocks struct {
	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func (l *groupLocks) lock(groupID uuid.UUID) func() {
	l.mu.Lock()
	if l.locks == nil {
		l.locks = make(map[uuid.UUID]*sync.Mutex)
	}
	m, ok := l.locks[groupID]
	if !ok {
		m = &sync.Mutex{}
		l.locks[groupID] = m
	}
	l.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// AddPendingBracket fetches an album and queues it in the group. Only the
// owner can do this since the fetch runs with the owner's Spotify account.
func (s *BracketService) AddPendingBracket(ctx context.Context, groupID uuid.UUID, url string) (*group.BracketRecord, error) {
	_, ownerID, err := ownerGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}

	album, err := s.albums.FetchAlbum(ctx, ownerID, url)
	if err != nil {
		return nil, err
	}

	rec := group.NewPendingRecord(groupID, *album)
	if err := s.brackets.Create(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save pending bracket: %w", err)
	}

	slog.Info("pending bracket added", "group", groupID, "bracket", rec.ID, "album", rec.Title(), "tracks", len(album.Tracks))
	return rec, nil
}

type StartOptions struct {
	Shuffle bool
	// Order is the seed order chosen by the owner as track IDs. Tracks left
	// out do not play. Empty means the album order.
	Order []string
}

// StartBracket seeds a pending bracket and makes it the group's active one.
// Whatever was active before is archived.
func (s *BracketService) StartBracket(ctx context.Context, groupID, bracketID uuid.UUID, opts StartOptions) (*group.BracketRecord, error) {
	g, _, err := ownerGroup(ctx, s.groups, groupID)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.lock(groupID)
	defer unlock()

	rec, err := s.brackets.Get(ctx, bracketID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("bracket %s: %w", bracketID, ErrNotFound)
		}
		return nil, err
	}
	if rec.GroupID != groupID {
		return nil, fmt.Errorf("bracket %s: %w", bracketID, ErrNotFound)
	}
	if rec.Placement != group.PlacementPending {
		return nil, ErrBracketNotPending
	}

	tracks, err := orderTracks(rec.Album.Tracks, opts.Order)
	if err != nil {
		return nil, err
	}

	seeds, err := bracket.Normalize(tracks, bracket.SeedOptions{
		Shuffle: opts.Shuffle,
		Byes:    s.byes,
		Rand:    s.rand,
	})
	if err != nil {
		return nil, err
	}
	built, err := bracket.Build(seeds)
	if err != nil {
		return nil, err
	}
	built.ID = rec.ID.String()
	rec.Bracket = *built

	if err := s.brackets.Activate(ctx, rec); err != nil {
		return nil, err
	}

	metrics.BracketsStarted.Inc()
	s.invalidate(ctx, groupID)
	s.hub.BroadcastToRoom(realtime.RoomForGroup(groupID), realtime.Message{
		Type:    realtime.TypeBracketStarted,
		Payload: rec,
	})
	slog.Info("bracket started", "group", groupID, "bracket", rec.ID, "album", rec.Title())

	if rec.Bracket.Status == bracket.StatusComplete {
		s.complete(ctx, g, rec)
	}
	return rec, nil
}

// GetActiveBracket returns the active bracket of a group the caller belongs to.
func (s *BracketService) GetActiveBracket(ctx context.Context, groupID uuid.UUID) (*group.BracketRecord, error) {
	if _, _, err := memberGroup(ctx, s.groups, groupID); err != nil {
		return nil, err
	}
	return s.active(ctx, groupID)
}

func (s *BracketService) active(ctx context.Context, groupID uuid.UUID) (*group.BracketRecord, error) {
	rec, err := s.brackets.GetActive(ctx, groupID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrNoActiveBracket
	}
	return rec, err
}

// complete runs once a bracket has a champion. Failures are logged, the
// bracket itself is already saved.
func (s *BracketService) complete(ctx context.Context, g *group.Group, rec *group.BracketRecord) {
	metrics.BracketsCompleted.Inc()
	s.hub.BroadcastToRoom(realtime.RoomForGroup(g.ID), realtime.Message{
		Type:    realtime.TypeBracketCompleted,
		Payload: rec,
	})

	if key, err := s.archiver.Archive(ctx, rec); err != nil {
		slog.Error("failed to archive bracket", "bracket", rec.ID, "error", err)
	} else if key != "" {
		slog.Info("bracket archived", "bracket", rec.ID, "key", key)
	}

	if err := s.announcer.AnnounceChampion(ctx, g, rec); err != nil {
		slog.Error("failed to announce champion", "bracket", rec.ID, "error", err)
	}
}

func (s *BracketService) invalidate(ctx context.Context, groupID uuid.UUID) {
	if err := s.cache.Invalidate(ctx, groupID); err != nil {
		slog.Warn("failed to invalidate bracket cache", "group", groupID, "error", err)
	}
}

// orderTracks applies the owner's seed order to the album tracks.
func orderTracks(tracks []bracket.Track, order []string) ([]bracket.Track, error) {
	if len(order) == 0 {
		return tracks, nil
	}

	byID := make(map[string]bracket.Track, len(tracks))
	for _, t := range tracks {
		byID[t.ID] = t
	}

	ordered := make([]bracket.Track, 0, len(order))
	seen := make(map[string]struct{}, len(order))
	for _, id := range order {
		t, ok := byID[id]
		if !ok {
			return nil, fmt.Errorf("%w: unknown track %q", ErrInvalidTrackOrder, id)
		}
		if _, dup := seen[id]; dup {
			return nil, fmt.Errorf("%w: track %q listed twice", ErrInvalidTrackOrder, id)
		}
		seen[id] = struct{}{}
		ordered = append(ordered, t)
	}
	if len(ordered) < 2 {
		return nil, fmt.Errorf("%w: at least 2 tracks are needed", ErrInvalidTrackOrder)
	}
	return ordered, nil
}
