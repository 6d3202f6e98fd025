package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/redis/go-redis/v9"
)

const defaultResultKeyPrefix = "alttext:result:"

// NewRedisClient connects to Redis and verifies the connection
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

// RedisResultCache implements ResultCache using Redis.
// Entries are shared by every service instance.
type RedisResultCache struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisResultCache creates a cache with an existing client
func NewRedisResultCache(client redis.Cmdable, keyPrefix string) *RedisResultCache {
	if keyPrefix == "" {
		keyPrefix = defaultResultKeyPrefix
	}
	return &RedisResultCache{client: client, keyPrefix: keyPrefix}
}

// Get loads a cached result
func (c *RedisResultCache) Get(ctx context.Context, key string) (*CachedResult, bool, error) {
	data, err := c.client.Get(ctx, c.keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached result: %w", err)
	}

	var result CachedResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, false, fmt.Errorf("failed to decode cached result: %w", err)
	}
	return &result, true, nil
}

// Set stores a result for ttl
func (c *RedisResultCache) Set(ctx context.Context, key string, result *CachedResult, ttl time.Duration) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if err := c.client.Set(ctx, c.keyPrefix+key, data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache result: %w", err)
	}
	return nil
}

// Delete removes a cached result
func (c *RedisResultCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete cached result: %w", err)
	}
	return nil
}

var _ ResultCache = (*RedisResultCache)(nil)
