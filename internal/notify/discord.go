package notify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/AdamBeresnev/album-bracket/internal/group"
	"github.com/bwmarrin/discordgo"
)

var ErrInvalidWebhookURL = errors.New("invalid discord webhook url")

type Announcer interface {
	AnnounceChampion(ctx context.Context, g *group.Group, rec *group.BracketRecord) error
}

// DiscordAnnouncer posts finished brackets to a channel webhook. Executing a
// webhook needs no bot token, so the session is created without one.
type DiscordAnnouncer struct {
	session *discordgo.Session
	id      string
	token   string
	baseURL string
}

func NewDiscordAnnouncer(webhookURL, baseURL string) (*DiscordAnnouncer, error) {
	id, token, err := ParseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, err
	}
	return &DiscordAnnouncer{
		session: session,
		id:      id,
		token:   token,
		baseURL: strings.TrimRight(baseURL, "/"),
	}, nil
}

// ParseWebhookURL splits https://discord.com/api/webhooks/{id}/{token}.
func ParseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalidWebhookURL, err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("%w: %s", ErrInvalidWebhookURL, raw)
}

func championMessage(g *group.Group, rec *group.BracketRecord, baseURL string) *discordgo.WebhookParams {
	champ := rec.Bracket.Champion
	embed := &discordgo.MessageEmbed{
		Title:       fmt.Sprintf("%s wins %s", champ.Name, rec.Title()),
		Description: fmt.Sprintf("The %s bracket is decided.", g.Name),
		Color:       0x1DB954,
	}
	if rec.Album.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: rec.Album.ArtworkURL}
	}
	if baseURL != "" {
		embed.URL = fmt.Sprintf("%s/groups/%s/dashboard", baseURL, g.ID)
	}
	return &discordgo.WebhookParams{
		Username: "Album Bracket",
		Embeds:   []*discordgo.MessageEmbed{embed},
	}
}

func (d *DiscordAnnouncer) AnnounceChampion(ctx context.Context, g *group.Group, rec *group.BracketRecord) error {
	if rec.Bracket.Champion == nil {
		return fmt.Errorf("bracket %s has no champion yet", rec.ID)
	}
	_, err := d.session.WebhookExecute(d.id, d.token, false, championMessage(g, rec, d.baseURL),
		discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to post champion of bracket %s: %w", rec.ID, err)
	}
	return nil
}

type Nop struct{}

func (Nop) AnnounceChampion(context.Context, *group.Group, *group.BracketRecord) error { return nil }
