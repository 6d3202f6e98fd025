// Package middleware provides HTTP middleware for the licensing API.
package middleware

import (
	"time"

	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/gin-gonic/gin"
)

// unmatchedRoute labels requests that did not match a registered route, so
// arbitrary paths cannot blow up label cardinality
const unmatchedRoute = "unmatched"

// HTTPMetrics records one request observation per request through recorder
func HTTPMetrics(recorder metrics.Recorder) gin.HandlerFunc {
	recorder = metrics.OrNop(recorder)
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		recorder.HTTPRequest(c.Request.Method, getRoutePattern(c), c.Writer.Status(), time.Since(start))
	}
}

// getRoutePattern returns the matched route template, e.g. /api/v1/license/sites/:site_hash/quota
func getRoutePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
