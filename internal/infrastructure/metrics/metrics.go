// Package metrics exposes Prometheus instruments for rate limiting, quota
// enforcement, metering and the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metric names.
const (
	MetricRateLimitDecisions     = "alttext_rate_limit_decisions_total"
	MetricRateLimitBackendErrors = "alttext_rate_limit_backend_errors_total"
	MetricQuotaDenials           = "alttext_quota_denials_total"
	MetricUsageRecords           = "alttext_usage_records_total"
	MetricUsageRecordFailures    = "alttext_usage_record_failures_total"
	MetricGenerationDuration     = "alttext_generation_duration_seconds"
	MetricHTTPRequests           = "alttext_http_requests_total"
	MetricHTTPRequestDuration    = "alttext_http_request_duration_seconds"
)

// Recorder receives the events core services emit. Implementations must be
// safe for concurrent use.
type Recorder interface {
	RateLimitDecision(limiter string, allowed bool)
	RateLimitBackendError(limiter string)
	QuotaDenied(kind string)
	UsageRecorded(status string, cacheHit bool)
	UsageRecordFailed()
	GenerationObserved(d time.Duration)
	HTTPRequest(method, route string, status int, d time.Duration)
}

// Nop discards everything
type Nop struct{}

func (Nop) RateLimitDecision(string, bool) {}
func (Nop) RateLimitBackendError(string) {}
func (Nop) QuotaDenied(string) {}
func (Nop) UsageRecorded(string, bool) {}
func (Nop) UsageRecordFailed() {}
func (Nop) GenerationObserved(time.Duration) {}
func (Nop) HTTPRequest(string, string, int, time.Duration) {}

// OrNop returns r, or Nop when r is nil
func OrNop(r Recorder) Recorder {
	if r == nil {
		return Nop{}
	}
	return r
}

// Registry is a Recorder backed by a private Prometheus registry.
//
// Thread Safety: Safe for concurrent use by multiple goroutines.
type Registry struct {
	registry *prometheus.Registry

	rateLimitDecisions     *prometheus.CounterVec
	rateLimitBackendErrors *prometheus.CounterVec
	quotaDenials           *prometheus.CounterVec
	usageRecords           *prometheus.CounterVec
	usageRecordFailures    prometheus.Counter
	generationDuration     prometheus.Histogram
	httpRequests           *prometheus.CounterVec
	httpRequestDuration    *prometheus.HistogramVec
}

// NewRegistry creates a registry with all instruments registered.
// withRuntime also registers the Go runtime and process collectors.
func NewRegistry(withRuntime bool) *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		rateLimitDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitDecisions,
			Help: "Rate limiter decisions by limiter and outcome.",
		}, []string{"limiter", "decision"}),
		rateLimitBackendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricRateLimitBackendErrors,
			Help: "Shared-store failures that caused a rate limiter to fail open.",
		}, []string{"limiter"}),
		quotaDenials: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricQuotaDenials,
			Help: "Requests refused by license or quota checks, by error kind.",
		}, []string{"kind"}),
		usageRecords: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricUsageRecords,
			Help: "Ledger entries written, by status and cache outcome.",
		}, []string{"status", "cache"}),
		usageRecordFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: MetricUsageRecordFailures,
			Help: "Ledger writes that failed and were dropped.",
		}),
		generationDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    MetricGenerationDuration,
			Help:    "Latency of calls to the AI generation backend.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: MetricHTTPRequests,
			Help: "HTTP requests served, by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    MetricHTTPRequestDuration,
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	r.registry.MustRegister(
		r.rateLimitDecisions,
		r.rateLimitBackendErrors,
		r.quotaDenials,
		r.usageRecords,
		r.usageRecordFailures,
		r.generationDuration,
		r.httpRequests,
		r.httpRequestDuration,
	)
	if withRuntime {
		r.registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	return r
}

// Gatherer exposes the underlying registry for tests and custom exporters
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Registry) RateLimitDecision(limiter string, allowed bool) {
	decision := "denied"
	if allowed {
		decision = "allowed"
	}
	r.rateLimitDecisions.WithLabelValues(limiter, decision).Inc()
}

func (r *Registry) RateLimitBackendError(limiter string) {
	r.rateLimitBackendErrors.WithLabelValues(limiter).Inc()
}

func (r *Registry) QuotaDenied(kind string) {
	r.quotaDenials.WithLabelValues(kind).Inc()
}

func (r *Registry) UsageRecorded(status string, cacheHit bool) {
	cache := "miss"
	if cacheHit {
		cache = "hit"
	}
	r.usageRecords.WithLabelValues(status, cache).Inc()
}

func (r *Registry) UsageRecordFailed() {
	r.usageRecordFailures.Inc()
}

func (r *Registry) GenerationObserved(d time.Duration) {
	r.generationDuration.Observe(d.Seconds())
}

func (r *Registry) HTTPRequest(method, route string, status int, d time.Duration) {
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Registry)(nil)
)
