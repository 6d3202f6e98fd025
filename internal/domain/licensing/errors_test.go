package licensing

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorKind_StatusCode(t *testing.T) {
	tests := map[ErrorKind]int{
		KindInvalidLicense:          http.StatusUnauthorized,
		KindLicenseExpired:          http.StatusGone,
		KindLicenseSuspended:        http.StatusForbidden,
		KindMaxSitesReached:         http.StatusForbidden,
		KindLicenseAlreadyActivated: http.StatusConflict,
		KindQuotaExceeded:           http.StatusPaymentRequired,
		KindPlanNotSupported:        http.StatusForbidden,
		KindRateLimitExceeded:       http.StatusTooManyRequests,
		KindServerError:             http.StatusInternalServerError,
		ErrorKind("UNKNOWN"):        http.StatusInternalServerError,
	}
	for kind, status := range tests {
		assert.Equal(t, status, kind.StatusCode(), kind)
	}
}

func TestError_IsMatchesByKind(t *testing.T) {
	err := NewError(KindQuotaExceeded, "Monthly quota exhausted").WithDetail("credits_used", int64(50))
	wrapped := fmt.Errorf("enforce: %w", err)

	assert.ErrorIs(t, wrapped, ErrQuotaExceeded)
	assert.NotErrorIs(t, wrapped, ErrInvalidLicense)
	assert.Equal(t, KindQuotaExceeded, KindOf(wrapped))
	assert.Equal(t, int64(50), err.Details["credits_used"])
}

func TestServerError_UnwrapsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := ServerError("failed to count sites", cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrServerError)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, http.StatusInternalServerError, err.StatusCode())
}

func TestAsError(t *testing.T) {
	assert.Nil(t, AsError(nil))

	typed := NewError(KindLicenseExpired, "expired")
	assert.Same(t, typed, AsError(fmt.Errorf("wrap: %w", typed)))

	converted := AsError(errors.New("boom"))
	assert.Equal(t, KindServerError, converted.Kind)
	assert.Equal(t, ErrorKind(""), KindOf(errors.New("plain")))
}
