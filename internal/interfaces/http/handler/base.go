package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/interfaces/http/dto"
	"github.com/alttext/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LicenseKeyHeader carries the license key on license-authenticated endpoints
const LicenseKeyHeader = "X-License-Key"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(middleware.RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader(middleware.RequestIDHeader)
}

// licenseKey returns the key from the X-License-Key header, falling back to
// the value bound from the request body
func licenseKey(c *gin.Context, fromBody string) string {
	if key := strings.TrimSpace(c.GetHeader(LicenseKeyHeader)); key != "" {
		return key
	}
	return strings.TrimSpace(fromBody)
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Created sends a 201 created response
func (h *BaseHandler) Created(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, getRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidInput, message)
}

// Unauthorized sends a 401 unauthorized response
func (h *BaseHandler) Unauthorized(c *gin.Context, message string) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeUnauthorized, message)
}

// InvalidLicense sends the 401 answer for a missing license key
func (h *BaseHandler) InvalidLicense(c *gin.Context) {
	h.Error(c, http.StatusUnauthorized, dto.ErrCodeInvalidLicense, "License key is required")
}

// BindJSON binds the request body and answers 400 on failure. It returns
// false when the handler should stop.
func (h *BaseHandler) BindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.HandleValidationError(c, err)
		return false
	}
	return true
}

// HandleError converts an error into an HTTP response.
//
// *licensing.Error answers with its kind's status and details, and
// *shared.DomainError goes through the error code table. Anything else is
// logged and answered as SERVER_ERROR without leaking the cause.
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	requestID := getRequestID(c)

	var le *licensing.Error
	if errors.As(err, &le) {
		if le.Kind == licensing.KindServerError {
			logger.GetGinLogger(c).Error("Request failed", zap.Error(err))
			c.JSON(le.StatusCode(), dto.NewErrorResponseWithRequestID(string(le.Kind), "An unexpected error occurred", requestID))
			return
		}
		c.JSON(le.StatusCode(), dto.NewDetailedErrorResponse(string(le.Kind), le.Message, requestID, le.Details))
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		c.JSON(dto.GetHTTPStatus(domainErr.Code), dto.NewErrorResponseWithRequestID(domainErr.Code, domainErr.Message, requestID))
		return
	}

	logger.GetGinLogger(c).Error("Unhandled error", zap.Error(err))
	c.JSON(http.StatusInternalServerError, dto.NewErrorResponseWithRequestID(
		dto.ErrCodeServerError,
		"An unexpected error occurred",
		requestID,
	))
}
