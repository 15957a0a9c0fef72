// Package ratelimit provides a fixed-window rate limiter backed by Redis,
// used to throttle login attempts per client.
//
// The limiter fails open: when Redis is unreachable the request is
// allowed and the fault is logged. Login availability is worth more than
// strict limiting during a cache outage.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	iderr "github.com/whatsub/identity-core/pkg/errors"
)

const tracerName = "github.com/whatsub/identity-core/pkg/ratelimit"

// Counter is the slice of the Redis client the limiter needs.
type Counter interface {
	Incr(ctx context.Context, key string) (int64, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
}

// Default limiter settings, tuned for login endpoints: generous enough
// for a shared NAT, tight enough to blunt credential stuffing.
const (
	DefaultLimit  = 30
	DefaultWindow = time.Minute
)

// Config controls the limiter.
type Config struct {
	// Limit is the number of requests allowed per key per window.
	Limit int `env:"RATE_LIMIT" yaml:"limit"`

	// Window is the fixed window length.
	Window time.Duration `env:"RATE_LIMIT_WINDOW" yaml:"window"`
}

// DefaultConfig returns the limiter defaults.
func DefaultConfig() Config {
	return Config{Limit: DefaultLimit, Window: DefaultWindow}
}

// Validate checks the configuration, applying defaults for zero values.
func (c *Config) Validate() error {
	if c.Limit == 0 {
		c.Limit = DefaultLimit
	}
	if c.Window == 0 {
		c.Window = DefaultWindow
	}
	if c.Limit < 0 {
		return iderr.Newf(iderr.CodeInternalConfiguration,
			"ratelimit: limit must be positive, got %d", c.Limit)
	}
	if c.Window < 0 {
		return iderr.Newf(iderr.CodeInternalConfiguration,
			"ratelimit: window must be positive, got %v", c.Window)
	}
	return nil
}

// Limiter counts requests per key in fixed windows.
type Limiter struct {
	counter Counter
	config  Config
	logger  *slog.Logger
	tracer  trace.Tracer
}

// New creates a Limiter over the given counter. A nil logger falls back
// to [slog.Default].
func New(counter Counter, cfg Config, logger *slog.Logger) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Limiter{
		counter: counter,
		config:  cfg,
		logger:  logger,
		tracer:  otel.Tracer(tracerName),
	}, nil
}

// Allow records one request for key and reports whether it is within the
// window's limit. The first request in a window creates the counter and
// sets its expiry.
//
// Redis failures are absorbed: the request is allowed and the error is
// logged at WARN.
func (l *Limiter) Allow(ctx context.Context, key string) (bool, error) {
	ctx, span := l.tracer.Start(ctx, "ratelimit.Allow")
	defer span.End()

	redisKey := fmt.Sprintf("ratelimit:%s", key)

	count, err := l.counter.Incr(ctx, redisKey)
	if err != nil {
		l.logger.WarnContext(ctx, "rate limiter unavailable, allowing request",
			"key", key, "error", err)
		span.SetAttributes(attribute.Bool("ratelimit.failed_open", true))
		return true, nil
	}

	if count == 1 {
		if _, err := l.counter.Expire(ctx, redisKey, l.config.Window); err != nil {
			// The counter exists without a TTL; the next window will
			// recreate it once the key is manually cleared or Redis
			// restarts. Log and keep serving.
			l.logger.WarnContext(ctx, "failed to set rate limit window expiry",
				"key", key, "error", err)
		}
	}

	allowed := count <= int64(l.config.Limit)
	span.SetAttributes(
		attribute.Int64("ratelimit.count", count),
		attribute.Bool("ratelimit.allowed", allowed),
	)
	return allowed, nil
}

// Check is a convenience wrapper over [Limiter.Allow] that converts a
// denial into a CodeRateLimited error.
func (l *Limiter) Check(ctx context.Context, key string) error {
	allowed, err := l.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !allowed {
		return iderr.New(iderr.CodeRateLimited,
			"too many requests, retry later")
	}
	return nil
}
