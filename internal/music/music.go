package music

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/metrics"
	"github.com/google/uuid"
)

var (
	ErrUnsupportedURL = errors.New("not a supported album or playlist url")
	ErrTooFewTracks   = errors.New("at least 2 playable tracks are needed to form a bracket")
)

// Source fetches album metadata from one provider. ownerID is the group owner
// on whose behalf the fetch runs.
type Source interface {
	Name() string
	Match(url string) bool
	FetchAlbum(ctx context.Context, ownerID uuid.UUID, url string) (*group.Album, error)
}

type Resolver struct {
	sources []Source
}

func NewResolver(sources ...Source) *Resolver {
	return &Resolver{sources: sources}
}

// FetchAlbum hands the url to the first source that recognizes it.
func (r *Resolver) FetchAlbum(ctx context.Context, ownerID uuid.UUID, url string) (*group.Album, error) {
	url = strings.TrimSpace(url)
	for _, src := range r.sources {
		if !src.Match(url) {
			continue
		}

		start := time.Now()
		album, err := src.FetchAlbum(ctx, ownerID, url)
		metrics.ObserveFetch(src.Name(), start)
		if err != nil {
			return nil, err
		}
		if err := checkTracks(album); err != nil {
			return nil, err
		}
		return album, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
}

func checkTracks(album *group.Album) error {
	if len(album.Tracks) < 2 {
		return fmt.Errorf("%w: %q has %d", ErrTooFewTracks, album.Name, len(album.Tracks))
	}
	return nil
}

// trackList drops tracks without an id and repeats of the same id, keeping
// the first occurrence.
type trackList struct {
	seen   map[string]struct{}
	tracks []bracket.Track
}

func (l *trackList) add(t bracket.Track) {
	if t.ID == "" {
		return
	}
	if l.seen == nil {
		l.seen = make(map[string]struct{})
	}
	if _, dup := l.seen[t.ID]; dup {
		return
	}
	l.seen[t.ID] = struct{}{}
	l.tracks = append(l.tracks, t)
}
