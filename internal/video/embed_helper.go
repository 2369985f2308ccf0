package video

import (
	"net/url"
	"strings"
)

type EmbedType int

const (
	EmbedTypeNone EmbedType = iota
	EmbedTypeYouTube
	EmbedTypeAudio
	EmbedTypeVideo
	EmbedTypeIframe
)

type EmbedInfo struct {
	Type EmbedType
	URL  string
}

const youtubeEmbedBase = "https://www.youtube.com/embed/"

func YouTubeEmbedURL(videoID string) string {
	return youtubeEmbedBase + videoID
}

func isYouTubeHost(host string) bool {
	host = strings.TrimPrefix(strings.ToLower(host), "www.")
	host = strings.TrimPrefix(host, "m.")
	host = strings.TrimPrefix(host, "music.")
	return host == "youtube.com" || host == "youtu.be"
}

// VideoID pulls the video id out of watch, short and embed links.
func VideoID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || !isYouTubeHost(u.Host) {
		return "", false
	}

	if strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "youtu.be") {
		id := strings.Trim(u.Path, "/")
		return id, id != ""
	}
	if v := u.Query().Get("v"); v != "" {
		return v, true
	}
	if id, ok := strings.CutPrefix(u.Path, "/embed/"); ok && id != "" {
		return strings.Trim(id, "/"), true
	}
	return "", false
}

// PlaylistID returns the list parameter of a YouTube link. Watch links that
// carry a list count as playlist links too.
func PlaylistID(link string) (string, bool) {
	u, err := url.Parse(link)
	if err != nil || !isYouTubeHost(u.Host) {
		return "", false
	}
	id := u.Query().Get("list")
	return id, id != ""
}

// GetEmbedInfo decides how a track preview link is shown next to a matchup.
func GetEmbedInfo(link *string) EmbedInfo {
	if link == nil || *link == "" {
		return EmbedInfo{Type: EmbedTypeNone}
	}
	l := *link

	if strings.HasPrefix(l, youtubeEmbedBase) {
		return EmbedInfo{Type: EmbedTypeYouTube, URL: l}
	}
	if id, ok := VideoID(l); ok {
		return EmbedInfo{Type: EmbedTypeYouTube, URL: YouTubeEmbedURL(id)}
	}

	// Spotify previews are extensionless mp3s
	if strings.Contains(l, "scdn.co/mp3-preview/") {
		return EmbedInfo{Type: EmbedTypeAudio, URL: l}
	}

	lower := strings.ToLower(l)
	if i := strings.IndexAny(lower, "?#"); i != -1 {
		lower = lower[:i]
	}
	for _, ext := range []string{".mp3", ".ogg", ".wav", ".m4a"} {
		if strings.HasSuffix(lower, ext) {
			return EmbedInfo{Type: EmbedTypeAudio, URL: l}
		}
	}
	for _, ext := range []string{".mp4", ".webm", ".mov"} {
		if strings.HasSuffix(lower, ext) {
			return EmbedInfo{Type: EmbedTypeVideo, URL: l}
		}
	}

	// Default to generic iframe and hope for the best
	return EmbedInfo{Type: EmbedTypeIframe, URL: l}
}
