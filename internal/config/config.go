package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/archive"
	"github.com/AdamBeresnev/album-bracket/internal/bracket"
	"github.com/joho/godotenv"
)

const (
	BackendSQLite = "sqlite"
	BackendMongo  = "mongo"
)

type OAuthProvider struct {
	Key         string
	Secret      string
	CallbackURL string
}

func (p OAuthProvider) Enabled() bool {
	return p.Key != "" && p.Secret != ""
}

type Config struct {
	Port            int
	BaseURL         string
	DatabasePath    string
	MigrationsURL   string
	SessionLifetime time.Duration

	Google  OAuthProvider
	Discord OAuthProvider

	SpotifyClientID     string
	SpotifyClientSecret string
	YouTubeAPIKey       string

	RedisURL       string
	BracketBackend string
	MongoURI       string
	MongoDB        string

	Archive           archive.Config
	DiscordWebhookURL string

	VoteRatePerMinute int
	ByePlacement      bracket.ByePlacement
	AllowedOrigins    []string
}

// Load reads the environment, with an optional .env file for local runs.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:       strings.TrimRight(firstNonEmpty(os.Getenv("BASE_URL"), "http://localhost:8080"), "/"),
		DatabasePath:  firstNonEmpty(os.Getenv("DATABASE_PATH"), "./app.db"),
		MigrationsURL: firstNonEmpty(os.Getenv("MIGRATIONS_URL"), "file://migrations"),
		Google: OAuthProvider{
			Key:         os.Getenv("GOOGLE_KEY"),
			Secret:      os.Getenv("GOOGLE_SECRET"),
			CallbackURL: os.Getenv("GOOGLE_CALLBACK_URL"),
		},
		Discord: OAuthProvider{
			Key:         os.Getenv("DISCORD_KEY"),
			Secret:      os.Getenv("DISCORD_SECRET"),
			CallbackURL: os.Getenv("DISCORD_CALLBACK_URL"),
		},
		SpotifyClientID:     os.Getenv("SPOTIFY_CLIENT_ID"),
		SpotifyClientSecret: os.Getenv("SPOTIFY_CLIENT_SECRET"),
		YouTubeAPIKey:       os.Getenv("YOUTUBE_API_KEY"),
		RedisURL:            os.Getenv("REDIS_URL"),
		BracketBackend:      firstNonEmpty(os.Getenv("BRACKET_BACKEND"), BackendSQLite),
		MongoURI:            os.Getenv("MONGO_URI"),
		MongoDB:             firstNonEmpty(os.Getenv("MONGO_DB"), "album_bracket"),
		Archive: archive.Config{
			Endpoint:        os.Getenv("ARCHIVE_ENDPOINT"),
			AccountID:       os.Getenv("R2_ACCOUNT_ID"),
			AccessKeyID:     os.Getenv("R2_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("R2_SECRET_ACCESS_KEY"),
			Bucket:          os.Getenv("R2_BUCKET_NAME"),
		},
		DiscordWebhookURL: os.Getenv("DISCORD_WEBHOOK_URL"),
	}

	if cfg.Google.CallbackURL == "" {
		cfg.Google.CallbackURL = cfg.BaseURL + "/auth/google/callback"
	}
	if cfg.Discord.CallbackURL == "" {
		cfg.Discord.CallbackURL = cfg.BaseURL + "/auth/discord/callback"
	}

	var err error
	if cfg.Port, err = intEnv("PORT", 8080); err != nil {
		return nil, err
	}
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORT must be between 1 and 65535, got %d", cfg.Port)
	}

	if cfg.VoteRatePerMinute, err = intEnv("VOTE_RATE_PER_MINUTE", 30); err != nil {
		return nil, err
	}
	if cfg.VoteRatePerMinute <= 0 {
		return nil, fmt.Errorf("VOTE_RATE_PER_MINUTE must be positive, got %d", cfg.VoteRatePerMinute)
	}

	cfg.SessionLifetime = 24 * time.Hour
	if v := os.Getenv("SESSION_LIFETIME"); v != "" {
		if cfg.SessionLifetime, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("invalid SESSION_LIFETIME: %w", err)
		}
	}

	if cfg.ByePlacement, err = bracket.ParseByePlacement(os.Getenv("BYE_PLACEMENT")); err != nil {
		return nil, fmt.Errorf("invalid BYE_PLACEMENT: %w", err)
	}

	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	} else {
		cfg.AllowedOrigins = []string{cfg.BaseURL}
	}

	switch cfg.BracketBackend {
	case BackendSQLite:
	case BackendMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("BRACKET_BACKEND=mongo needs MONGO_URI")
		}
	default:
		return nil, fmt.Errorf("unknown BRACKET_BACKEND %q", cfg.BracketBackend)
	}

	return cfg, nil
}

// SecureCookies is on whenever the app is served over https.
func (c *Config) SecureCookies() bool {
	return strings.HasPrefix(c.BaseURL, "https://")
}

func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

func (c *Config) SpotifyRedirectURL() string {
	return c.BaseURL + "/api/spotify/callback"
}

func (c *Config) Redacted() string {
	return fmt.Sprintf(
		"port=%d baseURL=%s db=%s backend=%s google=%s discord=%s spotify=%s youtube=%s redis=%s mongo=%s archive=%s webhook=%s votesPerMinute=%d byes=%s",
		c.Port, c.BaseURL, c.DatabasePath, c.BracketBackend,
		set(c.Google.Enabled()), set(c.Discord.Enabled()), set(c.SpotifyEnabled()),
		set(c.YouTubeAPIKey != ""), set(c.RedisURL != ""), set(c.MongoURI != ""),
		set(c.Archive.Enabled()), set(c.DiscordWebhookURL != ""),
		c.VoteRatePerMinute, c.ByePlacement,
	)
}

func set(ok bool) string {
	if ok {
		return "[set]"
	}
	return "[empty]"
}

func firstNonEmpty(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func intEnv(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s environment variable: %w", key, err)
	}
	return n, nil
}
