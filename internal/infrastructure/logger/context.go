package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

const (
	loggerKey     contextKey = "logger"
	requestIDKey  contextKey = "request_id"
	licenseKeyKey contextKey = "license_key"
	siteHashKey   contextKey = "site_hash"
)

// WithContext returns a new context with the logger attached
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, logger)
}

// FromContext retrieves the logger from context, or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(loggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// WithRequestID stores the request ID in ctx
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithLicenseKey stores the caller's license key in ctx. Log output only ever
// carries the redacted form.
func WithLicenseKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, licenseKeyKey, key)
}

// WithSiteHash stores the caller's site hash in ctx
func WithSiteHash(ctx context.Context, siteHash string) context.Context {
	return context.WithValue(ctx, siteHashKey, siteHash)
}

// GetRequestID retrieves the request ID from context
func GetRequestID(ctx context.Context) string {
	v, _ := ctx.Value(requestIDKey).(string)
	return v
}

// GetLicenseKey retrieves the raw license key from context
func GetLicenseKey(ctx context.Context) string {
	v, _ := ctx.Value(licenseKeyKey).(string)
	return v
}

// GetSiteHash retrieves the site hash from context
func GetSiteHash(ctx context.Context) string {
	v, _ := ctx.Value(siteHashKey).(string)
	return v
}

// GetTraceID extracts the trace ID from the context's span, or ""
func GetTraceID(ctx context.Context) string {
	spanCtx := trace.SpanContextFromContext(ctx)
	if !spanCtx.IsValid() {
		return ""
	}
	return spanCtx.TraceID().String()
}

// Fields returns the correlation fields carried by ctx
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if spanCtx := trace.SpanContextFromContext(ctx); spanCtx.IsValid() {
		fields = append(fields,
			zap.String("trace_id", spanCtx.TraceID().String()),
			zap.String("span_id", spanCtx.SpanID().String()),
		)
	}
	if id := GetRequestID(ctx); id != "" {
		fields = append(fields, zap.String("request_id", id))
	}
	if key := GetLicenseKey(ctx); key != "" {
		fields = append(fields, zap.String("license", RedactKey(key)))
	}
	if site := GetSiteHash(ctx); site != "" {
		fields = append(fields, zap.String("site_hash", site))
	}
	return fields
}

// L returns the context logger enriched with the correlation fields in ctx.
// Usage: logger.L(ctx).Info("message", zap.String("key", "value"))
func L(ctx context.Context) *zap.Logger {
	return Enrich(ctx, FromContext(ctx))
}

// Enrich adds the correlation fields in ctx to base
func Enrich(ctx context.Context, base *zap.Logger) *zap.Logger {
	if base == nil {
		base = zap.NewNop()
	}
	fields := Fields(ctx)
	if len(fields) == 0 {
		return base
	}
	return base.With(fields...)
}
