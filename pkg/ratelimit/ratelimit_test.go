package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisclient "github.com/whatsub/identity-core/pkg/clients/redis"
	iderr "github.com/whatsub/identity-core/pkg/errors"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, *miniredis.Miniredis) {
	t.Helper()

	srv := miniredis.RunT(t)
	client := redisclient.NewFromClient(goredis.NewClient(&goredis.Options{
		Addr: srv.Addr(),
	}), nil)
	t.Cleanup(func() { _ = client.Close() })

	limiter, err := New(client, cfg, nil)
	require.NoError(t, err)
	return limiter, srv
}

func TestAllowWithinLimit(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Limit: 3, Window: time.Minute})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := limiter.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, allowed, "request %d should be allowed", i+1)
	}

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllowKeysIndependent(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	// A different client is unaffected by the first one's exhaustion.
	allowed, err = limiter.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestAllowWindowResets(t *testing.T) {
	t.Parallel()

	limiter, srv := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	allowed, err := limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)

	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, allowed)

	srv.FastForward(time.Minute + time.Second)

	allowed, err = limiter.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestAllowFailsOpen(t *testing.T) {
	t.Parallel()

	limiter, srv := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	srv.Close()

	allowed, err := limiter.Allow(context.Background(), "1.2.3.4")
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestCheck(t *testing.T) {
	t.Parallel()

	limiter, _ := newTestLimiter(t, Config{Limit: 1, Window: time.Minute})
	ctx := context.Background()

	require.NoError(t, limiter.Check(ctx, "1.2.3.4"))

	err := limiter.Check(ctx, "1.2.3.4")
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeRateLimited))
}

func TestConfigValidate(t *testing.T) {
	t.Parallel()

	cfg := Config{}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultLimit, cfg.Limit)
	assert.Equal(t, DefaultWindow, cfg.Window)

	bad := Config{Limit: -1}
	err := bad.Validate()
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeInternalConfiguration))

	badWindow := Config{Window: -time.Second}
	err = badWindow.Validate()
	require.Error(t, err)
	assert.True(t, iderr.HasCode(err, iderr.CodeInternalConfiguration))
}
