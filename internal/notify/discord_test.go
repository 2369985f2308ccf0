package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseWebhookURL(t *testing.T) {
	tests := []struct {
		url   string
		id    string
		token string
		ok    bool
	}{
		{"https://discord.com/api/webhooks/123/abc-token", "123", "abc-token", true},
		{"https://discordapp.com/api/v10/webhooks/9/t", "9", "t", true},
		{"https://discord.com/api/webhooks/123", "", "", false},
		{"https://example.com/hooks/1/2", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			id, token, err := ParseWebhookURL(tt.url)
			if !tt.ok {
				assert.True(t, errors.Is(err, ErrInvalidWebhookURL))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.id, id)
			assert.Equal(t, tt.token, token)
		})
	}
}

func finishedRecord() (*group.Group, *group.BracketRecord) {
	g := &group.Group{ID: uuid.New(), Name: "Friday Club"}
	rec := group.NewPendingRecord(g.ID, group.Album{Name: "The Bends", Artist: "Radiohead", ArtworkURL: "https://img/1.jpg"})
	rec.Bracket.Champion = &bracket.Track{ID: "t4", Name: "Fake Plastic Trees"}
	return g, rec
}

func TestChampionMessage(t *testing.T) {
	g, rec := finishedRecord()
	msg := championMessage(g, rec, "https://bracket.example")

	require.Len(t, msg.Embeds, 1)
	assert.Equal(t, "Fake Plastic Trees wins The Bends by Radiohead", msg.Embeds[0].Title)
	assert.Equal(t, "https://bracket.example/groups/"+g.ID.String()+"/dashboard", msg.Embeds[0].URL)
	require.NotNil(t, msg.Embeds[0].Thumbnail)
}

// redirect sends every request to the test server, keeping the path.
type redirect struct{ target *url.URL }

func (r redirect) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = r.target.Scheme
	req.URL.Host = r.target.Host
	return http.DefaultTransport.RoundTrip(req)
}

func TestDiscordAnnouncer_PostsToWebhook(t *testing.T) {
	var (
		gotPath string
		payload struct {
			Embeds []struct {
				Title string `json:"title"`
			} `json:"embeds"`
		}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &payload)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()
	target, _ := url.Parse(srv.URL)

	d, err := NewDiscordAnnouncer("https://discord.com/api/webhooks/42/secret", "")
	require.NoError(t, err)
	d.session.Client = &http.Client{Transport: redirect{target: target}}

	g, rec := finishedRecord()
	require.NoError(t, d.AnnounceChampion(context.Background(), g, rec))

	assert.Contains(t, gotPath, "/webhooks/42/secret")
	require.Len(t, payload.Embeds, 1)
	assert.Equal(t, "Fake Plastic Trees wins The Bends by Radiohead", payload.Embeds[0].Title)
}

func TestDiscordAnnouncer_RequiresChampion(t *testing.T) {
	d, err := NewDiscordAnnouncer("https://discord.com/api/webhooks/42/secret", "")
	require.NoError(t, err)

	g, rec := finishedRecord()
	rec.Bracket.Champion = nil
	assert.Error(t, d.AnnounceChampion(context.Background(), g, rec))
}
