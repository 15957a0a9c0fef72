// Command server runs the whatsub identity service: Google federated
// login, session issuance, and self-service account management over HTTP.
//
// Configuration is read from an optional YAML/JSON file (CONFIG_FILE) and
// the environment. The process refuses to start without a session signing
// key, a Google client ID, and a reachable account store; there is no
// silent downgrade to non-durable storage.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/whatsub/identity-core/pkg/account"
	"github.com/whatsub/identity-core/pkg/api"
	"github.com/whatsub/identity-core/pkg/clients/postgres"
	redisclient "github.com/whatsub/identity-core/pkg/clients/redis"
	"github.com/whatsub/identity-core/pkg/config"
	iderr "github.com/whatsub/identity-core/pkg/errors"
	"github.com/whatsub/identity-core/pkg/googleid"
	"github.com/whatsub/identity-core/pkg/ratelimit"
	"github.com/whatsub/identity-core/pkg/session"
)

// Store drivers accepted by STORE_DRIVER. The memory driver is for
// development only and must be selected explicitly.
const (
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

type appConfig struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info" yaml:"log_level"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json" yaml:"log_format"`

	StoreDriver string `env:"STORE_DRIVER" envDefault:"postgres" yaml:"store_driver"`

	RateLimitEnabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true" yaml:"rate_limit_enabled"`

	HTTP      api.Config         `yaml:"http"`
	Postgres  postgres.Config    `yaml:"postgres"`
	Redis     redisclient.Config `yaml:"redis"`
	Google    googleid.Config    `yaml:"google"`
	Session   session.Config     `yaml:"session"`
	RateLimit ratelimit.Config   `yaml:"rate_limit"`
}

// Validate implements [config.Validator].
func (c *appConfig) Validate() error {
	switch c.StoreDriver {
	case storeDriverPostgres, storeDriverMemory:
	default:
		return iderr.Newf(iderr.CodeInternalConfiguration,
			"STORE_DRIVER must be %q or %q, got %q",
			storeDriverPostgres, storeDriverMemory, c.StoreDriver)
	}
	return nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	var cfg appConfig
	if err := config.New().WithFile(os.Getenv("CONFIG_FILE")).Load(&cfg); err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := openStore(ctx, &cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	verifier, err := googleid.NewVerifier(cfg.Google)
	if err != nil {
		return err
	}

	sessions, err := session.NewIssuer(cfg.Session)
	if err != nil {
		return err
	}

	limiter := newLimiter(ctx, &cfg, logger)

	server, err := api.New(cfg.HTTP, api.Deps{
		Verifier: verifier,
		Resolver: account.NewResolver(store, logger),
		Sessions: sessions,
		Store:    store,
		Limiter:  limiter,
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	logger.Info("identity service starting",
		"store_driver", cfg.StoreDriver,
		"rate_limiting", limiter != nil,
		"session_ttl", sessions.TTL())
	return server.Run(ctx)
}

// openStore connects the configured account store. PostgreSQL failures
// abort startup; the memory store never stands in for a broken database.
func openStore(ctx context.Context, cfg *appConfig, logger *slog.Logger) (account.Store, func(), error) {
	switch cfg.StoreDriver {
	case storeDriverMemory:
		logger.Warn("using in-memory account store, accounts will not survive a restart")
		return account.NewMemoryStore(), func() {}, nil

	default:
		client, err := postgres.NewClient(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, err
		}
		store := account.NewPostgresStore(client)
		if err := store.EnsureSchema(ctx); err != nil {
			client.Close()
			return nil, nil, err
		}
		return store, client.Close, nil
	}
}

// newLimiter connects the Redis-backed login limiter. Redis problems do
// not stop the service: limiting is a secondary control and the service
// runs without it, loudly.
func newLimiter(ctx context.Context, cfg *appConfig, logger *slog.Logger) *ratelimit.Limiter {
	if !cfg.RateLimitEnabled {
		return nil
	}

	client, err := redisclient.NewClient(ctx, cfg.Redis)
	if err != nil {
		logger.Warn("redis unavailable, login rate limiting disabled", "error", err)
		return nil
	}

	limiter, err := ratelimit.New(client, cfg.RateLimit, logger)
	if err != nil {
		logger.Warn("invalid rate limit configuration, rate limiting disabled", "error", err)
		_ = client.Close()
		return nil
	}
	return limiter
}

func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "info", "":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, iderr.Newf(iderr.CodeInternalConfiguration,
			"LOG_LEVEL must be debug, info, warn, or error, got %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json", "":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	case "text":
		handler = slog.NewTextHandler(os.Stdout, opts)
	default:
		return nil, iderr.Newf(iderr.CodeInternalConfiguration,
			"LOG_FORMAT must be json or text, got %q", format)
	}
	return slog.New(handler), nil
}
