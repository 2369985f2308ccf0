package music

import (
	"context"
	"fmt"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/video"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTube reads public playlists with an API key. Every video becomes a
// track and its embed link is the preview.
type YouTube struct {
	svc *youtube.Service
}

var _ Source = (*YouTube)(nil)

func NewYouTube(ctx context.Context, apiKey string, opts ...option.ClientOption) (*YouTube, error) {
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	svc, err := youtube.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create youtube client: %w", err)
	}
	return &YouTube{svc: svc}, nil
}

func (y *YouTube) Name() string { return string(group.SourceYouTube) }

func (y *YouTube) Match(url string) bool {
	_, ok := video.PlaylistID(url)
	return ok
}

func (y *YouTube) FetchAlbum(ctx context.Context, _ uuid.UUID, url string) (*group.Album, error) {
	id, ok := video.PlaylistID(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}

	var (
		meta *youtube.Playlist
		list trackList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resp, err := y.svc.Playlists.List([]string{"snippet"}).Id(id).Context(gctx).Do()
		if err != nil {
			return fmt.Errorf("failed to fetch youtube playlist %s: %w", id, err)
		}
		if len(resp.Items) == 0 {
			return fmt.Errorf("youtube playlist %s not found", id)
		}
		meta = resp.Items[0]
		return nil
	})
	g.Go(func() error {
		call := y.svc.PlaylistItems.List([]string{"snippet"}).PlaylistId(id).MaxResults(50)
		err := call.Pages(gctx, func(resp *youtube.PlaylistItemListResponse) error {
			for _, item := range resp.Items {
				if t, ok := youtubeTrack(item, len(list.tracks)+1); ok {
					list.add(t)
				}
			}
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to fetch youtube playlist items %s: %w", id, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &group.Album{
		ID:         meta.Id,
		Name:       meta.Snippet.Title,
		Artist:     meta.Snippet.ChannelTitle,
		ArtworkURL: thumbnailURL(meta.Snippet.Thumbnails),
		Source:     group.SourceYouTube,
		Tracks:     list.tracks,
	}, nil
}

// Deleted and private videos stay in a playlist as placeholders.
func youtubeTrack(item *youtube.PlaylistItem, number int) (bracket.Track, bool) {
	if item == nil || item.Snippet == nil || item.Snippet.ResourceId == nil {
		return bracket.Track{}, false
	}
	switch item.Snippet.Title {
	case "Deleted video", "Private video":
		return bracket.Track{}, false
	}
	videoID := item.Snippet.ResourceId.VideoId
	if videoID == "" {
		return bracket.Track{}, false
	}

	preview := video.YouTubeEmbedURL(videoID)
	return bracket.Track{
		ID:          videoID,
		Name:        item.Snippet.Title,
		TrackNumber: number,
		PreviewURL:  &preview,
	}, true
}

func thumbnailURL(t *youtube.ThumbnailDetails) string {
	if t == nil {
		return ""
	}
	for _, th := range []*youtube.Thumbnail{t.Maxres, t.High, t.Medium, t.Default} {
		if th != nil && th.Url != "" {
			return th.Url
		}
	}
	return ""
}
