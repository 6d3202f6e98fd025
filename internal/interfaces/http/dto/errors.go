package dto

import (
	"net/http"
	"strings"

	"github.com/alttext/backend/internal/domain/licensing"
)

// License error codes. These are the licensing error kinds, repeated here so
// handlers and middleware can answer without building a domain error.
const (
	ErrCodeInvalidLicense          = string(licensing.KindInvalidLicense)
	ErrCodeLicenseExpired          = string(licensing.KindLicenseExpired)
	ErrCodeLicenseSuspended        = string(licensing.KindLicenseSuspended)
	ErrCodeMaxSitesReached         = string(licensing.KindMaxSitesReached)
	ErrCodeLicenseAlreadyActivated = string(licensing.KindLicenseAlreadyActivated)
	ErrCodeQuotaExceeded           = string(licensing.KindQuotaExceeded)
	ErrCodePlanNotSupported        = string(licensing.KindPlanNotSupported)
	ErrCodeRateLimitExceeded       = string(licensing.KindRateLimitExceeded)
	ErrCodeServerError             = string(licensing.KindServerError)
)

// Input error codes
const (
	// ErrCodeInvalidInput is used for malformed or invalid request data
	ErrCodeInvalidInput = "INVALID_INPUT"
	// ErrCodeInvalidPlan is used when a plan name is unknown
	ErrCodeInvalidPlan = "INVALID_PLAN"
	// ErrCodeInvalidState is used when an operation is invalid for the current state
	ErrCodeInvalidState = "INVALID_STATE"
	// ErrCodeRequestTooLarge is used when the body exceeds the configured limit
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
)

// Authentication error codes
const (
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeInvalidCredentials = "INVALID_CREDENTIALS"
	ErrCodeTokenExpired       = "TOKEN_EXPIRED"
	ErrCodeInvalidToken       = "INVALID_TOKEN"
	ErrCodeTokenRevoked       = "TOKEN_REVOKED"
)

// Resource and integration error codes
const (
	ErrCodeNotFound             = "NOT_FOUND"
	ErrCodeAlreadyExists        = "ALREADY_EXISTS"
	ErrCodeSiteNotFound         = "SITE_NOT_FOUND"
	ErrCodeInvalidSignature     = "INVALID_SIGNATURE"
	ErrCodeWebhookNotConfigured = "WEBHOOK_NOT_CONFIGURED"
)

// ErrorCodeHTTPStatus maps domain error codes to HTTP status codes. Licensing
// error kinds carry their own status and are not listed.
var ErrorCodeHTTPStatus = map[string]int{
	ErrCodeInvalidInput:    http.StatusBadRequest,
	ErrCodeInvalidPlan:     http.StatusBadRequest,
	ErrCodeInvalidState:    http.StatusUnprocessableEntity,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,

	ErrCodeUnauthorized:       http.StatusUnauthorized,
	ErrCodeInvalidCredentials: http.StatusUnauthorized,
	ErrCodeTokenExpired:       http.StatusUnauthorized,
	ErrCodeInvalidToken:       http.StatusUnauthorized,
	ErrCodeTokenRevoked:       http.StatusUnauthorized,

	ErrCodeNotFound:             http.StatusNotFound,
	ErrCodeAlreadyExists:        http.StatusConflict,
	ErrCodeSiteNotFound:         http.StatusNotFound,
	ErrCodeInvalidSignature:     http.StatusBadRequest,
	ErrCodeWebhookNotConfigured: http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code. Licensing
// kinds use their own status, other INVALID_* codes are input errors and
// anything unknown maps to 500.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	switch kind := licensing.ErrorKind(code); kind {
	case licensing.KindInvalidLicense, licensing.KindLicenseExpired, licensing.KindLicenseSuspended,
		licensing.KindMaxSitesReached, licensing.KindLicenseAlreadyActivated, licensing.KindQuotaExceeded,
		licensing.KindPlanNotSupported, licensing.KindRateLimitExceeded, licensing.KindServerError:
		return kind.StatusCode()
	}
	if strings.HasPrefix(code, "INVALID_") {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
