package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// DefaultGCProbability is the chance that an Allow call sweeps idle subjects
const DefaultGCProbability = 0.01

// MemoryLimiter is a sliding-window limiter that keeps recent request
// timestamps per subject in process memory.
//
// Limits are enforced per process. When the service runs with more than one
// replica each replica admits the full budget, so the effective limit is
// multiplied by the replica count. Use RedisLimiter for those deployments.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type MemoryLimiter struct {
	mu      sync.Mutex
	opts    Options
	windows map[string][]time.Time
	global  []time.Time

	gcProbability float64
	rng           *rand.Rand
}

// MemoryOption tunes a MemoryLimiter
type MemoryOption func(*MemoryLimiter)

// WithGCProbability sets the chance in [0,1] that a call sweeps idle subjects
func WithGCProbability(p float64) MemoryOption {
	return func(l *MemoryLimiter) {
		if p < 0 {
			p = 0
		}
		if p > 1 {
			p = 1
		}
		l.gcProbability = p
	}
}

// WithRandSource replaces the random source used for GC sampling
func WithRandSource(src rand.Source) MemoryOption {
	return func(l *MemoryLimiter) {
		l.rng = rand.New(src)
	}
}

// NewMemoryLimiter creates an in-process limiter
func NewMemoryLimiter(opts Options, options ...MemoryOption) *MemoryLimiter {
	l := &MemoryLimiter{
		opts:          opts.normalized(),
		windows:       make(map[string][]time.Time),
		gcProbability: DefaultGCProbability,
		rng:           rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range options {
		opt(l)
	}
	return l
}

// Window returns the accounting window
func (l *MemoryLimiter) Window() time.Duration {
	return l.opts.Window
}

// Allow implements Limiter. The request is recorded even when denied.
func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int) Decision {
	if limit <= 0 && l.opts.GlobalLimit == 0 {
		return unlimited()
	}

	l.mu.Lock()
	now := l.opts.Clock()
	cutoff := now.Add(-l.opts.Window)

	if l.rng.Float64() < l.gcProbability {
		l.sweep(cutoff)
	}

	d := Decision{Allowed: true, Limit: limit, ResetAt: now.Add(l.opts.Window)}
	if limit > 0 {
		stamps := append(prune(l.windows[key], cutoff), now)
		l.windows[key] = stamps
		d.Remaining = remaining(limit, int64(len(stamps)))
		d.ResetAt = stamps[0].Add(l.opts.Window)
		if len(stamps) > limit {
			d.Allowed = false
			d.RetryAfter = l.retryAfter(stamps, limit, now)
		}
	}
	if l.opts.GlobalLimit > 0 {
		l.global = append(prune(l.global, cutoff), now)
		if len(l.global) > l.opts.GlobalLimit {
			d.Allowed = false
			d.Global = true
			if ra := l.retryAfter(l.global, l.opts.GlobalLimit, now); ra > d.RetryAfter {
				d.RetryAfter = ra
			}
		}
	}
	l.mu.Unlock()

	l.opts.Metrics.RateLimitDecision(l.opts.Name, d.Allowed)
	return d
}

// Subjects returns the number of subjects currently tracked
func (l *MemoryLimiter) Subjects() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// Reset forgets all recorded requests
func (l *MemoryLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.windows = make(map[string][]time.Time)
	l.global = nil
}

// retryAfter is the wait until enough old stamps leave the window for one more
// request to fit. stamps is sorted ascending and longer than limit.
func (l *MemoryLimiter) retryAfter(stamps []time.Time, limit int, now time.Time) time.Duration {
	wait := stamps[len(stamps)-limit].Add(l.opts.Window).Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

// sweep drops subjects with no request inside the window. Caller holds mu.
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for key, stamps := range l.windows {
		if len(stamps) == 0 || !stamps[len(stamps)-1].After(cutoff) {
			delete(l.windows, key)
		}
	}
}

// prune removes timestamps at or before cutoff. stamps is sorted ascending.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return stamps
	}
	return append(stamps[:0], stamps[i:]...)
}

var _ Limiter = (*MemoryLimiter)(nil)
