package licensing

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the stable, machine-readable error code returned to clients
type ErrorKind string

const (
	KindInvalidLicense          ErrorKind = "INVALID_LICENSE"
	KindLicenseExpired          ErrorKind = "LICENSE_EXPIRED"
	KindLicenseSuspended        ErrorKind = "LICENSE_SUSPENDED"
	KindMaxSitesReached         ErrorKind = "MAX_SITES_REACHED"
	KindLicenseAlreadyActivated ErrorKind = "LICENSE_ALREADY_ACTIVATED"
	KindQuotaExceeded           ErrorKind = "QUOTA_EXCEEDED"
	KindPlanNotSupported        ErrorKind = "PLAN_NOT_SUPPORTED"
	KindRateLimitExceeded       ErrorKind = "RATE_LIMIT_EXCEEDED"
	KindServerError             ErrorKind = "SERVER_ERROR"
)

var kindStatus = map[ErrorKind]int{
	KindInvalidLicense:          http.StatusUnauthorized,
	KindLicenseExpired:          http.StatusGone,
	KindLicenseSuspended:        http.StatusForbidden,
	KindMaxSitesReached:         http.StatusForbidden,
	KindLicenseAlreadyActivated: http.StatusConflict,
	KindQuotaExceeded:           http.StatusPaymentRequired,
	KindPlanNotSupported:        http.StatusForbidden,
	KindRateLimitExceeded:       http.StatusTooManyRequests,
	KindServerError:             http.StatusInternalServerError,
}

// StatusCode returns the HTTP status conventionally paired with the kind
func (k ErrorKind) StatusCode() int {
	if status, ok := kindStatus[k]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// Error is the typed failure returned by validation, the site registry and quota
// checks. Details holds the numeric context clients need to self-throttle
// (credits_used, total_limit, reset_date, retry_after, ...). License is set for
// expired and suspended licenses so callers can still display it.
type Error struct {
	Kind    ErrorKind
	Message string
	Details map[string]any
	License *License
	cause   error
}

// Sentinels for errors.Is matching on kind
var (
	ErrInvalidLicense          = &Error{Kind: KindInvalidLicense}
	ErrLicenseExpired          = &Error{Kind: KindLicenseExpired}
	ErrLicenseSuspended        = &Error{Kind: KindLicenseSuspended}
	ErrMaxSitesReached         = &Error{Kind: KindMaxSitesReached}
	ErrLicenseAlreadyActivated = &Error{Kind: KindLicenseAlreadyActivated}
	ErrQuotaExceeded           = &Error{Kind: KindQuotaExceeded}
	ErrPlanNotSupported        = &Error{Kind: KindPlanNotSupported}
	ErrRateLimitExceeded       = &Error{Kind: KindRateLimitExceeded}
	ErrServerError             = &Error{Kind: KindServerError}
)

// NewError creates an error of the given kind
func NewError(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Errorf creates an error of the given kind with a formatted message
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

// ServerError wraps a backing-store failure
func ServerError(message string, cause error) *Error {
	return &Error{Kind: KindServerError, Message: message, cause: cause}
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Kind)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying store error, if any
func (e *Error) Unwrap() error {
	return e.cause
}

// Is matches any *Error with the same kind
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// StatusCode returns the HTTP status for this error
func (e *Error) StatusCode() int {
	return e.Kind.StatusCode()
}

// WithDetail attaches a numeric or descriptive detail
func (e *Error) WithDetail(key string, value any) *Error {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithLicense attaches the license for diagnostic display
func (e *Error) WithLicense(l *License) *Error {
	e.License = l
	return e
}

// KindOf returns the kind of a licensing error, or "" for any other error
func KindOf(err error) ErrorKind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// AsError converts any error into a licensing error. Unclassified errors become SERVER_ERROR.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return ServerError("internal error", err)
}
