package cache

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func sampleResult() *CachedResult {
	return &CachedResult{
		Text:             "A red bicycle leaning against a brick wall",
		Model:            "gpt-4o-mini",
		PromptTokens:     120,
		CompletionTokens: 14,
		CreatedAt:        time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestResultKey(t *testing.T) {
	a := ResultKey("https://example.com/a.jpg", "describe", "m1")
	b := ResultKey("https://example.com/a.jpg", "describe", "m1")
	c := ResultKey("https://example.com/a.jpg", "describe", "m2")

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}

func TestRedisResultCache(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisResultCache(client, "")
	ctx := context.Background()

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, got)

	require.NoError(t, c.Set(ctx, "k", sampleResult(), time.Hour))
	assert.True(t, mr.Exists(defaultResultKeyPrefix+"k"))
	assert.Equal(t, time.Hour, mr.TTL(defaultResultKeyPrefix+"k"))

	got, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult(), got)

	mr.FastForward(time.Hour)
	_, ok, err = c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok, "entry expires with its TTL")

	require.NoError(t, c.Set(ctx, "k", sampleResult(), time.Hour))
	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestRedisResultCache_Errors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	c := NewRedisResultCache(client, "test:")
	ctx := context.Background()

	require.NoError(t, mr.Set("test:bad", "not-json"))
	_, ok, err := c.Get(ctx, "bad")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode")

	mr.SetError("ERR boom")
	_, _, err = c.Get(ctx, "k")
	assert.ErrorContains(t, err, "failed to read cached result")
	assert.Error(t, c.Set(ctx, "k", sampleResult(), time.Minute))
	assert.Error(t, c.Delete(ctx, "k"))
}

func TestMemoryResultCache(t *testing.T) {
	c := NewMemoryResultCache(time.Hour, time.Minute)
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	in := sampleResult()
	require.NoError(t, c.Set(ctx, "k", in, 0))
	in.Text = "mutated"

	got, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, sampleResult().Text, got.Text, "cache keeps its own copy")
	assert.Equal(t, 1, c.Len())

	require.NoError(t, c.Set(ctx, "short", sampleResult(), time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	_, ok, _ = c.Get(ctx, "short")
	assert.False(t, ok)

	require.NoError(t, c.Delete(ctx, "k"))
	_, ok, _ = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestResultCacheFactory(t *testing.T) {
	t.Run("redis when client configured", func(t *testing.T) {
		mr := miniredis.RunT(t)
		client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		defer client.Close()

		f := NewResultCacheFactory(client)
		assert.IsType(t, &RedisResultCache{}, f.Create())
	})

	t.Run("memory with warning otherwise", func(t *testing.T) {
		core, logs := observer.New(zapcore.WarnLevel)
		f := NewResultCacheFactory(nil, WithLogger(zap.New(core)), WithTTL(time.Hour, time.Minute))

		assert.IsType(t, &MemoryResultCache{}, f.Create())
		assert.Equal(t, time.Hour, f.DefaultTTL())
		require.Equal(t, 1, logs.Len())
		assert.Contains(t, logs.All()[0].Message, "not shared between instances")
	})

	t.Run("zero TTL keeps defaults", func(t *testing.T) {
		f := NewResultCacheFactory(nil, WithTTL(0, 0))
		assert.Equal(t, 24*time.Hour, f.DefaultTTL())
	})
}

func TestNewRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.RedisConfig{Host: mr.Host(), Port: mustPort(t, mr)}

	client, err := NewRedisClient(context.Background(), cfg)
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()).Err())

	mr.Close()
	_, err = NewRedisClient(context.Background(), cfg)
	assert.ErrorContains(t, err, "failed to connect to Redis")
}

func mustPort(t *testing.T, mr *miniredis.Miniredis) int {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return port
}
