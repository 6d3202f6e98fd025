package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window counter shared by every instance that talks to
// the same Redis. Each window gets its own key; INCR and EXPIRE run in one
// MULTI/EXEC so the counter never outlives its window.
//
// On any Redis error the limiter fails open: the request is allowed, a warning
// is logged and the backend-error metric is incremented.
type RedisLimiter struct {
	client    redis.Cmdable
	opts      Options
	keyPrefix string
}

// NewRedisLimiter creates a limiter backed by client
func NewRedisLimiter(client redis.Cmdable, opts Options) *RedisLimiter {
	opts = opts.normalized()
	return &RedisLimiter{
		client:    client,
		opts:      opts,
		keyPrefix: "ratelimit:" + opts.Name + ":",
	}
}

// Window returns the accounting window
func (l *RedisLimiter) Window() time.Duration {
	return l.opts.Window
}

// Allow implements Limiter
func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int) Decision {
	if limit <= 0 && l.opts.GlobalLimit == 0 {
		return unlimited()
	}

	now := l.opts.Clock()
	index := now.UnixNano() / int64(l.opts.Window)
	resetAt := time.Unix(0, (index+1)*int64(l.opts.Window))
	suffix := ":" + strconv.FormatInt(index, 10)

	pipe := l.client.TxPipeline()
	var subject, global *redis.IntCmd
	if limit > 0 {
		k := l.keyPrefix + key + suffix
		subject = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.opts.Window)
	}
	if l.opts.GlobalLimit > 0 {
		k := l.keyPrefix + "__global__" + suffix
		global = pipe.Incr(ctx, k)
		pipe.Expire(ctx, k, l.opts.Window)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		l.opts.Logger.Warn("Rate limiter backend error, allowing request",
			zap.String("limiter", l.opts.Name),
			zap.String("key", key),
			zap.Error(err),
		)
		l.opts.Metrics.RateLimitBackendError(l.opts.Name)
		return Decision{Allowed: true, Limit: limit, Remaining: limit, ResetAt: resetAt, FailedOpen: true}
	}

	d := Decision{Allowed: true, Limit: limit, ResetAt: resetAt}
	if subject != nil {
		count := subject.Val()
		d.Remaining = remaining(limit, count)
		if count > int64(limit) {
			d.Allowed = false
		}
	}
	if global != nil && global.Val() > int64(l.opts.GlobalLimit) {
		d.Allowed = false
		d.Global = true
	}
	if !d.Allowed {
		d.RetryAfter = resetAt.Sub(now)
	}

	l.opts.Metrics.RateLimitDecision(l.opts.Name, d.Allowed)
	return d
}

var _ Limiter = (*RedisLimiter)(nil)
