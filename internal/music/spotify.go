package music

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/errgroup"
)

// TokenStore keeps the OAuth tokens of users who connected their account.
type TokenStore interface {
	SaveToken(ctx context.Context, userID uuid.UUID, tok *oauth2.Token) error
	Token(ctx context.Context, userID uuid.UUID) (*oauth2.Token, error)
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

type Spotify struct {
	auth   *spotifyauth.Authenticator
	oauth  *oauth2.Config
	creds  *clientcredentials.Config
	tokens TokenStore

	// newClient is swapped out in tests
	newClient func(ctx context.Context, ownerID uuid.UUID) (*spotify.Client, error)
}

var _ Source = (*Spotify)(nil)

var spotifyPathRe = regexp.MustCompile(`/(album|playlist)/([a-zA-Z0-9]+)`)

func NewSpotify(cfg SpotifyConfig, tokens TokenStore) *Spotify {
	scopes := []string{spotifyauth.ScopeUserReadPrivate, spotifyauth.ScopeUserReadEmail}
	s := &Spotify{
		auth: spotifyauth.New(
			spotifyauth.WithClientID(cfg.ClientID),
			spotifyauth.WithClientSecret(cfg.ClientSecret),
			spotifyauth.WithRedirectURL(cfg.RedirectURL),
			spotifyauth.WithScopes(scopes...),
		),
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:  spotifyauth.AuthURL,
				TokenURL: spotifyauth.TokenURL,
			},
		},
		creds: &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     spotifyauth.TokenURL,
		},
		tokens: tokens,
	}
	s.newClient = s.clientFor
	return s
}

func (s *Spotify) Name() string { return string(group.SourceSpotify) }

func (s *Spotify) Match(url string) bool {
	_, _, ok := ParseSpotifyURL(url)
	return ok
}

func (s *Spotify) AuthURL(state string) string {
	return s.auth.AuthURL(state)
}

func (s *Spotify) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return s.auth.Exchange(ctx, code)
}

// ParseSpotifyURL accepts open.spotify.com links and spotify: URIs for albums
// and playlists.
func ParseSpotifyURL(raw string) (kind string, id spotify.ID, ok bool) {
	raw = strings.TrimSpace(raw)
	if rest, found := strings.CutPrefix(raw, "spotify:"); found {
		parts := strings.Split(rest, ":")
		if len(parts) == 2 && (parts[0] == "album" || parts[0] == "playlist") && parts[1] != "" {
			return parts[0], spotify.ID(parts[1]), true
		}
		return "", "", false
	}
	if !strings.Contains(raw, "open.spotify.com/") {
		return "", "", false
	}
	m := spotifyPathRe.FindStringSubmatch(raw)
	if m == nil {
		return "", "", false
	}
	return m[1], spotify.ID(m[2]), true
}

// clientFor uses the owner's own token when they connected Spotify, refreshing
// and persisting it when it has expired. Owners who never connected fall back
// to the app's client credentials, which can read public albums and playlists.
func (s *Spotify) clientFor(ctx context.Context, ownerID uuid.UUID) (*spotify.Client, error) {
	var httpClient *http.Client

	tok, err := s.tokens.Token(ctx, ownerID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		httpClient = s.creds.Client(ctx)
	case err != nil:
		return nil, err
	default:
		fresh, err := s.oauth.TokenSource(ctx, tok).Token()
		if err != nil {
			return nil, fmt.Errorf("failed to refresh spotify token: %w", err)
		}
		if fresh.AccessToken != tok.AccessToken {
			slog.Info("Refreshed spotify token", "user_id", ownerID)
			if err := s.tokens.SaveToken(ctx, ownerID, fresh); err != nil {
				return nil, fmt.Errorf("failed to store refreshed spotify token: %w", err)
			}
		}
		httpClient = s.oauth.Client(ctx, fresh)
	}

	return spotify.New(httpClient, spotify.WithRetry(true)), nil
}

func (s *Spotify) FetchAlbum(ctx context.Context, ownerID uuid.UUID, url string) (*group.Album, error) {
	kind, id, ok := ParseSpotifyURL(url)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedURL, url)
	}

	client, err := s.newClient(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	if kind == "album" {
		return fetchSpotifyAlbum(ctx, client, id)
	}
	return fetchSpotifyPlaylist(ctx, client, id)
}

func fetchSpotifyAlbum(ctx context.Context, client *spotify.Client, id spotify.ID) (*group.Album, error) {
	full, err := client.GetAlbum(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch spotify album %s: %w", id, err)
	}

	var list trackList
	page := &full.Tracks
	for {
		for _, t := range page.Tracks {
			list.add(spotifyTrack(t, int(t.TrackNumber)))
		}
		err := client.NextPage(ctx, page)
		if errors.Is(err, spotify.ErrNoMorePages) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to page spotify album %s: %w", id, err)
		}
	}

	return &group.Album{
		ID:         string(full.ID),
		Name:       full.Name,
		Artist:     joinArtists(full.Artists),
		ArtworkURL: firstImage(full.Images),
		Source:     group.SourceSpotify,
		Tracks:     list.tracks,
	}, nil
}

// Playlist metadata and items come from separate endpoints and are fetched
// side by side.
func fetchSpotifyPlaylist(ctx context.Context, client *spotify.Client, id spotify.ID) (*group.Album, error) {
	var (
		meta *spotify.FullPlaylist
		list trackList
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		meta, err = client.GetPlaylist(gctx, id, spotify.Fields("id,name,owner(display_name),images"))
		if err != nil {
			return fmt.Errorf("failed to fetch spotify playlist %s: %w", id, err)
		}
		return nil
	})
	g.Go(func() error {
		page, err := client.GetPlaylistItems(gctx, id, spotify.Limit(100))
		if err != nil {
			return fmt.Errorf("failed to fetch spotify playlist items %s: %w", id, err)
		}
		for {
			for _, item := range page.Items {
				// episodes and removed tracks have no track
				if item.Track.Track == nil {
					continue
				}
				list.add(spotifyTrack(item.Track.Track.SimpleTrack, len(list.tracks)+1))
			}
			err := client.NextPage(gctx, page)
			if errors.Is(err, spotify.ErrNoMorePages) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to page spotify playlist %s: %w", id, err)
			}
		}
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	artist := meta.Owner.DisplayName
	if artist == "" {
		artist = "Various Artists"
	}
	return &group.Album{
		ID:         string(meta.ID),
		Name:       meta.Name,
		Artist:     artist,
		ArtworkURL: firstImage(meta.Images),
		Source:     group.SourceSpotify,
		Tracks:     list.tracks,
	}, nil
}

func spotifyTrack(t spotify.SimpleTrack, number int) bracket.Track {
	track := bracket.Track{
		ID:          string(t.ID),
		Name:        t.Name,
		TrackNumber: number,
	}
	if t.PreviewURL != "" {
		preview := t.PreviewURL
		track.PreviewURL = &preview
	}
	return track
}

func joinArtists(artists []spotify.SimpleArtist) string {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		names = append(names, a.Name)
	}
	return strings.Join(names, ", ")
}

func firstImage(images []spotify.Image) string {
	if len(images) == 0 {
		return ""
	}
	return images[0].URL
}
