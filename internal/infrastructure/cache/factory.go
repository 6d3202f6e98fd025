package cache

import (
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ResultCacheFactory picks the result cache implementation
type ResultCacheFactory struct {
	client          redis.Cmdable
	logger          *zap.Logger
	defaultTTL      time.Duration
	cleanupInterval time.Duration
}

// FactoryOption configures a ResultCacheFactory
type FactoryOption func(*ResultCacheFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *ResultCacheFactory) {
		f.logger = logger
	}
}

// WithTTL sets the default entry TTL and the in-memory cleanup interval
func WithTTL(defaultTTL, cleanupInterval time.Duration) FactoryOption {
	return func(f *ResultCacheFactory) {
		if defaultTTL > 0 {
			f.defaultTTL = defaultTTL
		}
		if cleanupInterval > 0 {
			f.cleanupInterval = cleanupInterval
		}
	}
}

// NewResultCacheFactory creates a factory. client is nil when Redis is not in use.
func NewResultCacheFactory(client redis.Cmdable, opts ...FactoryOption) *ResultCacheFactory {
	f := &ResultCacheFactory{
		client:          client,
		logger:          zap.NewNop(),
		defaultTTL:      24 * time.Hour,
		cleanupInterval: 10 * time.Minute,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisCache creates a Redis-backed cache
func (f *ResultCacheFactory) CreateRedisCache() *RedisResultCache {
	return NewRedisResultCache(f.client, "")
}

// CreateInMemoryCache creates a process-local cache.
// WARNING: each instance keeps its own entries, so hit rates drop as replicas are added.
func (f *ResultCacheFactory) CreateInMemoryCache() *MemoryResultCache {
	return NewMemoryResultCache(f.defaultTTL, f.cleanupInterval)
}

// Create returns a Redis cache when a client is configured, else an in-memory cache
func (f *ResultCacheFactory) Create() ResultCache {
	if f.client != nil {
		f.logger.Info("Using Redis result cache")
		return f.CreateRedisCache()
	}
	f.logger.Warn("Redis not configured, using in-memory result cache. Cached results are not shared between instances.",
		zap.Duration("ttl", f.defaultTTL),
	)
	return f.CreateInMemoryCache()
}

// DefaultTTL returns the TTL applied when callers do not specify one
func (f *ResultCacheFactory) DefaultTTL() time.Duration {
	return f.defaultTTL
}
