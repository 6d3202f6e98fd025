package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ErrNoBackend is returned when Redis is unavailable and fallback is disabled
var ErrNoBackend = errors.New("ratelimit: redis unavailable and in-memory fallback disabled")

// Factory selects a limiter implementation at construction time
type Factory struct {
	client                redis.UniversalClient
	logger                *zap.Logger
	allowInMemoryFallback bool
	pingTimeout           time.Duration
	memoryOptions         []MemoryOption
}

// FactoryOption configures a Factory
type FactoryOption func(*Factory)

// WithLogger sets the logger used for backend selection messages
func WithLogger(logger *zap.Logger) FactoryOption {
	return func(f *Factory) {
		f.logger = logger
	}
}

// WithInMemoryFallback allows falling back to MemoryLimiter if Redis is unavailable
func WithInMemoryFallback(allow bool) FactoryOption {
	return func(f *Factory) {
		f.allowInMemoryFallback = allow
	}
}

// WithMemoryOptions passes options through to fallback limiters
func WithMemoryOptions(opts ...MemoryOption) FactoryOption {
	return func(f *Factory) {
		f.memoryOptions = append(f.memoryOptions, opts...)
	}
}

// NewFactory creates a limiter factory. client may be nil when Redis is disabled.
func NewFactory(client redis.UniversalClient, opts ...FactoryOption) *Factory {
	f := &Factory{
		client:                client,
		logger:                zap.NewNop(),
		allowInMemoryFallback: true,
		pingTimeout:           3 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisLimiter creates a Redis-backed limiter after checking connectivity
func (f *Factory) CreateRedisLimiter(ctx context.Context, opts Options) (*RedisLimiter, error) {
	if f.client == nil {
		return nil, errors.New("ratelimit: no redis client configured")
	}
	pingCtx, cancel := context.WithTimeout(ctx, f.pingTimeout)
	defer cancel()
	if err := f.client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	if opts.Logger == nil {
		opts.Logger = f.logger
	}
	return NewRedisLimiter(f.client, opts), nil
}

// CreateMemoryLimiter creates an in-process limiter.
// WARNING: limits are not shared between service instances.
func (f *Factory) CreateMemoryLimiter(opts Options) *MemoryLimiter {
	if opts.Logger == nil {
		opts.Logger = f.logger
	}
	return NewMemoryLimiter(opts, f.memoryOptions...)
}

// Create returns a RedisLimiter when Redis is reachable, otherwise a
// MemoryLimiter if fallback is allowed
func (f *Factory) Create(ctx context.Context, opts Options) (Limiter, error) {
	limiter, err := f.CreateRedisLimiter(ctx, opts)
	if err == nil {
		f.logger.Info("Using Redis rate limiter", zap.String("limiter", opts.Name))
		return limiter, nil
	}

	if !f.allowInMemoryFallback {
		return nil, fmt.Errorf("%w: %v", ErrNoBackend, err)
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory rate limiter. "+
		"Limits are enforced per instance and will not hold across horizontally scaled replicas.",
		zap.String("limiter", opts.Name),
		zap.Error(err),
	)
	return f.CreateMemoryLimiter(opts), nil
}
