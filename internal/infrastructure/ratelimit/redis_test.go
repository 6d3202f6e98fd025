package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestClock() *testClock {
	// aligned to a minute boundary so fixed windows start at the clock origin
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLimiter_ExactlyLimitAllowed(t *testing.T) {
	mr, client := newRedis(t)
	clock := newTestClock()
	limiter := NewRedisLimiter(client, Options{Name: "license", Window: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		d := limiter.Allow(ctx, "LIC-abc", 5)
		require.True(t, d.Allowed, "call %d should be allowed", i)
		assert.Equal(t, 5-i, d.Remaining)
		assert.Equal(t, 5, d.Limit)
	}

	d := limiter.Allow(ctx, "LIC-abc", 5)
	assert.False(t, d.Allowed)
	assert.Equal(t, 0, d.Remaining)
	assert.False(t, d.Global)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, clock.now.Add(time.Minute), d.ResetAt)

	// the counter key carries the window expiry
	keys := mr.Keys()
	require.Len(t, keys, 1)
	assert.Equal(t, time.Minute, mr.TTL(keys[0]))
}

func TestRedisLimiter_WindowRollover(t *testing.T) {
	mr, client := newRedis(t)
	clock := newTestClock()
	limiter := NewRedisLimiter(client, Options{Name: "license", Window: time.Minute, Clock: clock.Now})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		limiter.Allow(ctx, "k", 3)
	}
	require.False(t, limiter.Allow(ctx, "k", 3).Allowed)

	clock.Advance(30 * time.Second)
	assert.False(t, limiter.Allow(ctx, "k", 3).Allowed, "still inside the window")

	clock.Advance(30 * time.Second)
	mr.FastForward(time.Minute)
	assert.True(t, limiter.Allow(ctx, "k", 3).Allowed, "new window resets the count")
	assert.Len(t, mr.Keys(), 1, "expired window key is gone")
}

func TestRedisLimiter_SubjectsAreIndependent(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewRedisLimiter(client, Options{Name: "license", Clock: newTestClock().Now})
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "a", 1).Allowed)
	assert.False(t, limiter.Allow(ctx, "a", 1).Allowed)
	assert.True(t, limiter.Allow(ctx, "b", 1).Allowed)
}

func TestRedisLimiter_GlobalCeiling(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewRedisLimiter(client, Options{Name: "license", GlobalLimit: 3, Clock: newTestClock().Now})
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "a", 10).Allowed)
	assert.True(t, limiter.Allow(ctx, "b", 10).Allowed)
	assert.True(t, limiter.Allow(ctx, "c", 10).Allowed)

	d := limiter.Allow(ctx, "d", 10)
	assert.False(t, d.Allowed)
	assert.True(t, d.Global)
	assert.Equal(t, 9, d.Remaining, "subject budget is untouched by the global denial")
}

func TestRedisLimiter_UnlimitedSkipsStore(t *testing.T) {
	mr, client := newRedis(t)
	limiter := NewRedisLimiter(client, Options{Name: "license"})

	for i := 0; i < 100; i++ {
		assert.True(t, limiter.Allow(context.Background(), "k", 0).Allowed)
	}
	assert.Empty(t, mr.Keys())
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	mr, client := newRedis(t)
	core, logs := observer.New(zapcore.WarnLevel)
	reg := metrics.NewRegistry(false)
	limiter := NewRedisLimiter(client, Options{
		Name:    "license",
		Logger:  zap.New(core),
		Metrics: reg,
		Clock:   newTestClock().Now,
	})
	ctx := context.Background()

	assert.True(t, limiter.Allow(ctx, "k", 1).Allowed)

	mr.SetError("LOADING redis is loading the dataset")
	d := limiter.Allow(ctx, "k", 1)
	assert.True(t, d.Allowed)
	assert.True(t, d.FailedOpen)

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "Rate limiter backend error, allowing request", entry.Message)
	assert.Equal(t, "license", entry.ContextMap()["limiter"])

	n, err := testutil.GatherAndCount(reg.Gatherer(), metrics.MetricRateLimitBackendErrors)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	mr.SetError("")
	assert.False(t, limiter.Allow(ctx, "k", 1).Allowed, "count resumes once the store recovers")
}

func TestRedisLimiter_ClosedClientFailsOpen(t *testing.T) {
	_, client := newRedis(t)
	limiter := NewRedisLimiter(client, Options{Name: "license"})
	require.NoError(t, client.Close())

	assert.True(t, limiter.Allow(context.Background(), "k", 1).Allowed)
}
