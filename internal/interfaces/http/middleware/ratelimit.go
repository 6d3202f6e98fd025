package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/infrastructure/ratelimit"
	"github.com/alttext/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// Rate limit response headers
const (
	HeaderRateLimitLimit     = "X-RateLimit-Limit"
	HeaderRateLimitRemaining = "X-RateLimit-Remaining"
	HeaderRetryAfter         = "Retry-After"
)

// maxKeyPeek bounds how much of a request body is read to find a license key
const maxKeyPeek = 64 << 10

// KeyFunc names the rate limit subject of a request and its per-window budget.
// An empty subject skips limiting; a limit <= 0 leaves only the global ceiling.
type KeyFunc func(c *gin.Context) (subject string, limit int)

// RateLimit throttles requests through limiter. Denials answer 429
// RATE_LIMIT_EXCEEDED with Retry-After and a retry_after detail in seconds.
func RateLimit(limiter ratelimit.Limiter, keyFunc KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		subject, limit := keyFunc(c)
		if subject == "" {
			c.Next()
			return
		}

		d := limiter.Allow(c.Request.Context(), subject, limit)
		if d.Limit > 0 {
			c.Header(HeaderRateLimitLimit, strconv.Itoa(d.Limit))
			c.Header(HeaderRateLimitRemaining, strconv.Itoa(d.Remaining))
		}
		if d.Allowed {
			c.Next()
			return
		}

		retryAfter := retryAfterSeconds(d.RetryAfter)
		c.Header(HeaderRetryAfter, strconv.Itoa(retryAfter))
		details := map[string]any{
			"retry_after": retryAfter,
			"limit":       d.Limit,
			"remaining":   d.Remaining,
		}
		if d.Global {
			details["scope"] = "global"
		}
		c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.NewDetailedErrorResponse(
			dto.ErrCodeRateLimitExceeded,
			"Too many requests, please try again later",
			c.GetString(RequestIDKey),
			details,
		))
	}
}

// retryAfterSeconds rounds up so clients never retry inside the window
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	return int(math.Ceil(d.Seconds()))
}

// ByClientIP limits each client IP to limit requests per window. It is used
// for unauthenticated auth endpoints.
func ByClientIP(limit int) KeyFunc {
	return func(c *gin.Context) (string, int) {
		return "ip:" + c.ClientIP(), limit
	}
}

// LimitsResolver returns the plan limits of a license key
type LimitsResolver func(ctx context.Context, licenseKey string) (licensing.PlanLimits, error)

// ByLicenseKey limits each license to its plan's RatePerMinute, scaled to
// the limiter's window. The key is read from the X-License-Key header or a
// license_key field in a JSON body. Requests without a key are skipped here
// and rejected by the handler; unknown keys are only subject to the global
// ceiling.
func ByLicenseKey(resolve LimitsResolver, window time.Duration) KeyFunc {
	return func(c *gin.Context) (string, int) {
		key := RequestLicenseKey(c)
		if key == "" {
			return "", 0
		}
		limits, err := resolve(c.Request.Context(), key)
		if err != nil {
			return "license:" + key, 0
		}
		return "license:" + key, PerWindow(limits.RatePerMinute, window)
	}
}

// PerWindow converts a per-minute rate into a budget for window, rounding up
// so a non-zero rate never becomes zero. A non-positive window counts as one
// minute.
func PerWindow(perMinute int, window time.Duration) int {
	if perMinute <= 0 || window <= 0 || window == time.Minute {
		return perMinute
	}
	return int(math.Ceil(float64(perMinute) * window.Seconds() / time.Minute.Seconds()))
}

// RequestLicenseKey extracts the caller's license key without consuming the
// request body
func RequestLicenseKey(c *gin.Context) string {
	if key := strings.TrimSpace(c.GetHeader("X-License-Key")); key != "" {
		return key
	}
	if c.Request.Body == nil || c.Request.Method == http.MethodGet || c.ContentType() != "application/json" {
		return ""
	}

	raw, err := io.ReadAll(io.LimitReader(c.Request.Body, maxKeyPeek))
	rest := c.Request.Body
	c.Request.Body = readCloser{Reader: io.MultiReader(bytes.NewReader(raw), rest), Closer: rest}
	if err != nil {
		return ""
	}

	var body struct {
		LicenseKey string `json:"license_key"`
	}
	if err := json.Unmarshal(raw, &body); err != nil {
		return ""
	}
	return strings.TrimSpace(body.LicenseKey)
}

type readCloser struct {
	io.Reader
	io.Closer
}
