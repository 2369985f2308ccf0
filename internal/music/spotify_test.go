package music

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zmb3/spotify/v2"
	"golang.org/x/oauth2"
)

type memTokens struct {
	tokens map[uuid.UUID]*oauth2.Token
}

func (m *memTokens) SaveToken(_ context.Context, userID uuid.UUID, tok *oauth2.Token) error {
	m.tokens[userID] = tok
	return nil
}

func (m *memTokens) Token(_ context.Context, userID uuid.UUID) (*oauth2.Token, error) {
	tok, ok := m.tokens[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return tok, nil
}

func TestParseSpotifyURL(t *testing.T) {
	tests := []struct {
		url  string
		kind string
		id   spotify.ID
		ok   bool
	}{
		{"https://open.spotify.com/album/0ZbnBDVUkpegVOfgPFr1wr", "album", "0ZbnBDVUkpegVOfgPFr1wr", true},
		{"https://open.spotify.com/album/0ZbnBDVUkpegVOfgPFr1wr?si=abc", "album", "0ZbnBDVUkpegVOfgPFr1wr", true},
		{"https://open.spotify.com/intl-de/playlist/37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M", true},
		{"spotify:album:0ZbnBDVUkpegVOfgPFr1wr", "album", "0ZbnBDVUkpegVOfgPFr1wr", true},
		{"spotify:track:abc", "", "", false},
		{"https://open.spotify.com/track/abc", "", "", false},
		{"https://www.youtube.com/playlist?list=PL1", "", "", false},
		{"https://example.com/album/abc", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			kind, id, ok := ParseSpotifyURL(tt.url)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.kind, kind)
			assert.Equal(t, tt.id, id)
		})
	}
}

func TestSpotifyAuthURLCarriesState(t *testing.T) {
	s := NewSpotify(SpotifyConfig{ClientID: "cid", ClientSecret: "secret", RedirectURL: "http://localhost/cb"}, &memTokens{})
	u := s.AuthURL("state-123")
	assert.Contains(t, u, "state=state-123")
	assert.Contains(t, u, "client_id=cid")
	assert.True(t, strings.HasPrefix(u, "https://accounts.spotify.com/authorize"))
}

func fakeSpotify(t *testing.T) *Spotify {
	mux := http.NewServeMux()
	var srv *httptest.Server

	mux.HandleFunc("/albums/alb1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"id": "alb1", "name": "The Bends",
			"artists": [{"name": "Radiohead"}],
			"images": [{"url": "https://img/1.jpg"}],
			"tracks": {"items": [
				{"id": "t1", "name": "Planet Telex", "track_number": 1, "preview_url": "https://p.scdn.co/mp3-preview/1"},
				{"id": "t2", "name": "The Bends", "track_number": 2},
				{"id": "t3", "name": "High and Dry", "track_number": 5}
			], "next": ""}
		}`)
	})
	mux.HandleFunc("/playlists/pl1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": "pl1", "name": "Road Trip", "owner": {"display_name": ""}, "images": []}`)
	})
	mux.HandleFunc("/playlists/pl1/tracks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("offset") == "2" {
			fmt.Fprint(w, `{"items": [
				{"track": {"id": "t1", "name": "Dup", "type": "track"}},
				{"track": {"id": "t3", "name": "Three", "type": "track"}}
			], "next": ""}`)
			return
		}
		fmt.Fprintf(w, `{"items": [
			{"track": {"id": "t1", "name": "One", "type": "track"}},
			{"track": {"id": "t2", "name": "Two", "type": "track"}}
		], "next": "%s/playlists/pl1/tracks?offset=2&limit=2"}`, srv.URL)
	})

	srv = httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	s := NewSpotify(SpotifyConfig{ClientID: "cid", ClientSecret: "secret"}, &memTokens{})
	s.newClient = func(context.Context, uuid.UUID) (*spotify.Client, error) {
		return spotify.New(srv.Client(), spotify.WithBaseURL(srv.URL+"/")), nil
	}
	return s
}

func TestSpotify_FetchAlbum(t *testing.T) {
	s := fakeSpotify(t)
	album, err := s.FetchAlbum(context.Background(), uuid.New(), "https://open.spotify.com/album/alb1")
	require.NoError(t, err)

	assert.Equal(t, "alb1", album.ID)
	assert.Equal(t, "Radiohead", album.Artist)
	assert.Equal(t, "https://img/1.jpg", album.ArtworkURL)
	assert.Equal(t, group.SourceSpotify, album.Source)
	require.Len(t, album.Tracks, 3)
	assert.Equal(t, 2, album.Tracks[1].TrackNumber)
	assert.Equal(t, 5, album.Tracks[2].TrackNumber, "album track numbers come from spotify, not the position")
	require.NotNil(t, album.Tracks[0].PreviewURL)
	assert.Nil(t, album.Tracks[1].PreviewURL)
}

func TestSpotify_FetchPlaylistPagesAndDedupes(t *testing.T) {
	s := fakeSpotify(t)
	album, err := s.FetchAlbum(context.Background(), uuid.New(), "https://open.spotify.com/playlist/pl1")
	require.NoError(t, err)

	assert.Equal(t, "Road Trip", album.Name)
	assert.Equal(t, "Various Artists", album.Artist)
	require.Len(t, album.Tracks, 3)
	assert.Equal(t, []string{"t1", "t2", "t3"}, []string{album.Tracks[0].ID, album.Tracks[1].ID, album.Tracks[2].ID})
	assert.Equal(t, 3, album.Tracks[2].TrackNumber)
}

func TestSpotify_RefreshesExpiredOwnerToken(t *testing.T) {
	tokenSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token": "fresh", "token_type": "Bearer", "expires_in": 3600}`)
	}))
	defer tokenSrv.Close()

	owner := uuid.New()
	tokens := &memTokens{tokens: map[uuid.UUID]*oauth2.Token{
		owner: {AccessToken: "stale", RefreshToken: "r1", Expiry: time.Now().Add(-time.Hour)},
	}}
	s := NewSpotify(SpotifyConfig{ClientID: "cid", ClientSecret: "secret"}, tokens)
	s.oauth.Endpoint.TokenURL = tokenSrv.URL

	_, err := s.clientFor(context.Background(), owner)
	require.NoError(t, err)
	assert.Equal(t, "fresh", tokens.tokens[owner].AccessToken)
}
