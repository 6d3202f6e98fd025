// Package ratelimit provides fixed-window and sliding-window request limiters
// with interchangeable shared-store (Redis) and in-process implementations.
package ratelimit

import (
	"context"
	"time"

	"github.com/alttext/backend/internal/infrastructure/metrics"
	"go.uber.org/zap"
)

// Decision is the outcome of a single Allow call
type Decision struct {
	Allowed bool
	// Limit is the per-subject budget the call was checked against. 0 means unlimited.
	Limit      int
	Remaining  int
	ResetAt    time.Time
	RetryAfter time.Duration
	// Global is set when the shared ceiling, not the subject budget, denied the call
	Global bool
	// FailedOpen is set when the backing store errored and the call was allowed anyway
	FailedOpen bool
}

// Limiter decides whether a subject may perform one more request within the
// current window. Implementations must be safe for concurrent use.
type Limiter interface {
	// Allow counts one request for key and reports whether it fits in limit.
	// A limit <= 0 disables the per-subject check.
	Allow(ctx context.Context, key string, limit int) Decision
	// Window returns the length of the accounting window
	Window() time.Duration
}

// Options configure either limiter implementation
type Options struct {
	// Name labels metrics and namespaces shared-store keys, e.g. "license" or "auth"
	Name string
	// Window is the accounting window. Default: one minute.
	Window time.Duration
	// GlobalLimit caps requests across all subjects per window. 0 disables it.
	GlobalLimit int
	Logger      *zap.Logger
	Metrics     metrics.Recorder
	// Clock overrides time.Now, for tests
	Clock func() time.Time
}

// DefaultWindow is used when Options.Window is zero
const DefaultWindow = time.Minute

func (o Options) normalized() Options {
	if o.Name == "" {
		o.Name = "default"
	}
	if o.Window <= 0 {
		o.Window = DefaultWindow
	}
	if o.GlobalLimit < 0 {
		o.GlobalLimit = 0
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	o.Metrics = metrics.OrNop(o.Metrics)
	if o.Clock == nil {
		o.Clock = time.Now
	}
	return o
}

// unlimited is returned when a caller passes limit <= 0 and no global ceiling applies
func unlimited() Decision {
	return Decision{Allowed: true}
}

func remaining(limit int, count int64) int {
	if limit <= 0 {
		return 0
	}
	left := int64(limit) - count
	if left < 0 {
		return 0
	}
	return int(left)
}
