package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/AdamBeresnev/album-bracket/internal/archive"
	"github.com/AdamBeresnev/album-bracket/internal/cache"
	"github.com/AdamBeresnev/album-bracket/internal/config"
	"github.com/AdamBeresnev/album-bracket/internal/db"
	"github.com/AdamBeresnev/album-bracket/internal/jobs"
	"github.com/AdamBeresnev/album-bracket/internal/middleware"
	"github.com/AdamBeresnev/album-bracket/internal/music"
	"github.com/AdamBeresnev/album-bracket/internal/notify"
	"github.com/AdamBeresnev/album-bracket/internal/realtime"
	"github.com/AdamBeresnev/album-bracket/internal/service"
	"github.com/AdamBeresnev/album-bracket/internal/store"
	"github.com/AdamBeresnev/album-bracket/internal/store/mongostore"
	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("application failed", "error", err)
		os.Exit(1)
	}
	logger.Info("application exited")
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger.Info("configuration loaded", "config", cfg.Redacted())

	database, err := db.InitDB(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := db.RunMigrations(database.DB, cfg.MigrationsURL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	userStore := store.NewUserStore(database)
	groupStore := store.NewGroupStore(database)
	tokenStore := store.NewSpotifyTokenStore(database)
	stateStore := store.NewOAuthStateStore(database)

	var brackets store.BracketRepository = store.NewBracketStore(database)
	if cfg.BracketBackend == config.BackendMongo {
		mongoBrackets, err := mongostore.NewBracketStore(ctx, cfg.MongoURI, cfg.MongoDB)
		if err != nil {
			return fmt.Errorf("failed to connect to mongo: %w", err)
		}
		defer mongoBrackets.Close(context.Background())
		brackets = mongoBrackets
		logger.Info("using mongo bracket store", "database", cfg.MongoDB)
	}

	var bracketCache cache.BracketCache = cache.Nop{}
	if cfg.RedisURL != "" {
		redisCache, err := cache.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("failed to connect to redis: %w", err)
		}
		defer redisCache.Close()
		bracketCache = redisCache
		logger.Info("bracket cache enabled")
	}

	var archiver archive.Archiver = archive.Nop{}
	if cfg.Archive.Enabled() {
		s3Archiver, err := archive.NewS3Archiver(ctx, cfg.Archive)
		if err != nil {
			return fmt.Errorf("failed to initialize bracket archive: %w", err)
		}
		archiver = s3Archiver
		logger.Info("bracket archive enabled", "bucket", cfg.Archive.Bucket)
	}

	var announcer notify.Announcer = notify.Nop{}
	if cfg.DiscordWebhookURL != "" {
		discord, err := notify.NewDiscordAnnouncer(cfg.DiscordWebhookURL, cfg.BaseURL)
		if err != nil {
			return err
		}
		announcer = discord
		logger.Info("discord announcements enabled")
	}

	var sources []music.Source
	var spotify *music.Spotify
	if cfg.SpotifyEnabled() {
		spotify = music.NewSpotify(music.SpotifyConfig{
			ClientID:     cfg.SpotifyClientID,
			ClientSecret: cfg.SpotifyClientSecret,
			RedirectURL:  cfg.SpotifyRedirectURL(),
		}, tokenStore)
		sources = append(sources, spotify)
	}
	if cfg.YouTubeAPIKey != "" {
		yt, err := music.NewYouTube(ctx, cfg.YouTubeAPIKey)
		if err != nil {
			return fmt.Errorf("failed to create youtube client: %w", err)
		}
		sources = append(sources, yt)
	}
	if len(sources) == 0 {
		logger.Warn("no music source configured, brackets cannot be added")
	}

	hub := realtime.NewHub()
	go hub.Run(ctx)

	limiter := middleware.NewRateLimiter(cfg.VoteRatePerMinute, 5)

	scheduler, err := jobs.NewScheduler(stateStore, limiter)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop(context.Background())

	providers := middleware.InitAuth(cfg)

	sessionManager := scs.New()
	sessionManager.Lifetime = cfg.SessionLifetime
	sessionManager.Store = sqlite3store.New(database.DB)
	sessionManager.Cookie.Secure = cfg.SecureCookies()

	app := &application{
		cfg:       cfg,
		sessions:  sessionManager,
		userStore: userStore,
		providers: providers,
		limiter:   limiter,
		hub:       hub,
		users:     service.NewUserService(database, userStore),
		groups:    service.NewGroupService(database, groupStore, brackets),
		brackets: service.NewBracketService(groupStore, brackets, music.NewResolver(sources...),
			service.WithBroadcaster(hub),
			service.WithCache(bracketCache),
			service.WithArchiver(archiver),
			service.WithAnnouncer(announcer),
			service.WithByePlacement(cfg.ByePlacement),
		),
	}
	if spotify != nil {
		app.spotify = service.NewSpotifyService(groupStore, stateStore, tokenStore, spotify)
	}

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      newRouter(app),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
		ErrorLog:     slog.NewLogLogger(logger.Handler(), slog.LevelError),
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting server", "address", server.Addr, "url", cfg.BaseURL)
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		if closeErr := server.Close(); closeErr != nil {
			logger.Error("failed to force close server", "error", closeErr)
		}
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	logger.Info("server shutdown complete")
	return nil
}
