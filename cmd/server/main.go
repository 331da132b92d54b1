// Package main is the entry point for the quotefault server.
//
// The main package only wires things together: configuration, logging,
// the store, the directory, notifications, services and the HTTP server.
// All behaviour lives under internal/.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/sakif/quotefault/internal/auth"
	"github.com/sakif/quotefault/internal/config"
	"github.com/sakif/quotefault/internal/directory"
	"github.com/sakif/quotefault/internal/handler"
	"github.com/sakif/quotefault/internal/logging"
	"github.com/sakif/quotefault/internal/metrics"
	"github.com/sakif/quotefault/internal/notify"
	"github.com/sakif/quotefault/internal/repository/sqlstore"
	"github.com/sakif/quotefault/internal/server"
	"github.com/sakif/quotefault/internal/service"
)

// Build-time variables, injected via ldflags:
//
//	go build -ldflags "-X main.version=1.0.0 -X main.commit=$(git rev-parse HEAD)"
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("loading .env: %w", err)
	}

	// === 1. CONFIGURATION ===
	configDir := os.Getenv("QF_CONFIG_DIR")
	if configDir == "" {
		configDir = "configs"
	}
	cfg, err := config.Load(configDir, os.Getenv("QF_PROFILE"))
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// === 2. LOGGING ===
	logger, logCloser := logging.New(&logging.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Service: cfg.App.Name,
		Version: version,
		File: logging.FileConfig{
			Enabled:    cfg.Log.File.Enabled,
			Path:       cfg.Log.File.Path,
			MaxSizeMB:  cfg.Log.File.MaxSizeMB,
			MaxBackups: cfg.Log.File.MaxBackups,
			MaxAgeDays: cfg.Log.File.MaxAgeDays,
			Compress:   cfg.Log.File.Compress,
		},
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("starting quotefault",
		slog.String("version", version),
		slog.String("commit", commit),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("security_enabled", cfg.Auth.SecurityEnabled),
	)
	if !cfg.Auth.SecurityEnabled {
		logger.Warn("security enforcement is disabled; every caller is privileged")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Built before the store and directory so a bad secret fails with
	// nothing yet open.
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AdminGroup)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}

	m := metrics.New()

	// === 3. STORE ===
	if cfg.Database.Driver == "sqlite" && cfg.Database.DSN != ":memory:" {
		dbDir := filepath.Dir(cfg.Database.DSN)
		if err := os.MkdirAll(dbDir, 0o755); err != nil {
			return fmt.Errorf("creating database directory %s: %w", dbDir, err)
		}
	}
	store, err := sqlstore.New(ctx, cfg.Database.Driver, cfg.Database.DSN, sqlstore.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	logger.Info("store ready", slog.String("dialect", store.Dialect()))

	// === 4. DIRECTORY ===
	dir, dirCloser, err := buildDirectory(ctx, cfg.Directory, m, logger)
	if err != nil {
		store.Close()
		return err
	}

	// === 5. NOTIFICATIONS ===
	var notifier notify.Notifier
	if cfg.Notify.BaseURL != "" {
		notifier = notify.NewPinger(notify.PingerConfig{
			BaseURL:      cfg.Notify.BaseURL,
			Timeout:      cfg.Notify.Timeout,
			ClientID:     cfg.Notify.OAuth.ClientID,
			ClientSecret: cfg.Notify.OAuth.ClientSecret,
			TokenURL:     cfg.Notify.OAuth.TokenURL,
			Scopes:       cfg.Notify.OAuth.Scopes,
		})
	} else {
		logger.Warn("notify.base_url not set; notifications are only logged")
		notifier = notify.NewLogNotifier(logger)
	}
	dispatcher := notify.NewDispatcher(notifier, cfg.Notify.Timeout, logger)
	dispatcher.OnResult = m.Notification

	// === 6. SERVICES ===
	deps := server.Dependencies{
		Quotes:     service.NewQuoteService(store, dir, dispatcher, m, logger),
		Moderation: service.NewModerationService(store, cfg.Moderation.ReportSalt, m, logger),
		Members:    service.NewMemberService(dir),
		Store:      store,
		Auth:       auth.NewAuthenticator(tokens, cfg.Auth.SecurityEnabled),
		Metrics:    m,
		Build:      handler.NewBuildInfo(version, commit, buildTime),
		OnShutdown: []func(context.Context) error{
			dispatcher.Close,
			func(context.Context) error { return dirCloser() },
			func(context.Context) error { return store.Close() },
		},
	}

	// === 7. SERVE ===
	// Run blocks until SIGINT/SIGTERM, then drains and runs the shutdown hooks.
	return server.New(cfg.Server, deps, logger).Run(ctx)
}

// buildDirectory assembles the directory stack: backend, metrics, cache.
// The returned func releases whatever the cache holds open.
func buildDirectory(ctx context.Context, cfg config.DirectoryConfig, m *metrics.Metrics, logger *slog.Logger) (directory.Directory, func() error, error) {
	noop := func() error { return nil }

	var backend directory.Directory
	switch cfg.Mode {
	case "http":
		backend = directory.NewClient(directory.ClientConfig{
			BaseURL:      cfg.BaseURL,
			Timeout:      cfg.Timeout,
			ClientID:     cfg.OAuth.ClientID,
			ClientSecret: cfg.OAuth.ClientSecret,
			TokenURL:     cfg.OAuth.TokenURL,
			Scopes:       cfg.OAuth.Scopes,
		}, logger)
	default:
		static, err := directory.LoadStatic(cfg.RosterPath)
		if err != nil {
			return nil, noop, fmt.Errorf("loading roster: %w", err)
		}
		backend = static
	}
	backend = directory.Instrument(backend, m.Directory)

	switch cfg.Cache.Mode {
	case "redis":
		cache, err := directory.NewRedisCache(ctx, cfg.Cache.RedisURL)
		if err != nil {
			return nil, noop, fmt.Errorf("connecting directory cache: %w", err)
		}
		return directory.NewCached(backend, cache, cfg.Cache.TTL, logger), cache.Close, nil
	case "lru":
		cache, err := directory.NewLRUCache(cfg.Cache.Size)
		if err != nil {
			return nil, noop, fmt.Errorf("creating directory cache: %w", err)
		}
		return directory.NewCached(backend, cache, cfg.Cache.TTL, logger), noop, nil
	default:
		return backend, noop, nil
	}
}
