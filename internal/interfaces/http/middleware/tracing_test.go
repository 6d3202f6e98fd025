package middleware

import (
	"net/http"
	"testing"

	"github.com/alttext/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupGlobalTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	original := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(original)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func tracedRouter(enabled bool) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(TracingWithConfig(TracingConfig{ServiceName: "alttext-test", Enabled: enabled}))
	router.Use(SpanAnnotator())
	router.GET("/quota/status", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.POST("/generate", func(c *gin.Context) {
		c.Status(http.StatusBadGateway)
	})
	return router
}

func TestTracing_AnnotatesServerSpan(t *testing.T) {
	sr := setupGlobalTracer(t)

	w := testutil.PerformRequest(t, tracedRouter(true), http.MethodGet, "/quota/status", nil,
		map[string]string{RequestIDHeader: "req-trace-1"})
	require.Equal(t, http.StatusOK, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	attrs := map[string]string{}
	for _, kv := range spans[0].Attributes() {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "req-trace-1", attrs["request_id"])
	assert.NotEqual(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_ServerErrorsMarkSpan(t *testing.T) {
	sr := setupGlobalTracer(t)

	w := testutil.PerformRequest(t, tracedRouter(true), http.MethodPost, "/generate", nil, nil)
	require.Equal(t, http.StatusBadGateway, w.Code)

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
}

func TestTracing_DisabledRecordsNothing(t *testing.T) {
	sr := setupGlobalTracer(t)

	w := testutil.PerformRequest(t, tracedRouter(false), http.MethodGet, "/quota/status", nil, nil)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())
}
