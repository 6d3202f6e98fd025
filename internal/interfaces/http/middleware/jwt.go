package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/alttext/backend/internal/infrastructure/auth"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// JWT context keys
const (
	JWTClaimsKey     = "jwt_claims"
	JWTLicenseIDKey  = "jwt_license_id"
	JWTLicenseKeyKey = "jwt_license_key"
	AuthHeaderKey    = "Authorization"
	BearerPrefix     = "Bearer "
)

// ErrMissingToken is reported when no bearer token was sent
var ErrMissingToken = errors.New("missing bearer token")

// JWTMiddlewareConfig holds configuration for JWT middleware
type JWTMiddlewareConfig struct {
	// JWTService is required for token validation
	JWTService *auth.JWTService
	// Revoker is optional; when set, logged-out tokens and tokens issued
	// before a password change are rejected
	Revoker auth.SessionRevoker
	// Optional callback if token is invalid (default: return 401)
	OnError func(c *gin.Context, err error)
	Logger  *zap.Logger
}

// JWTAuthMiddleware creates dashboard session middleware
func JWTAuthMiddleware(jwtService *auth.JWTService, revoker auth.SessionRevoker, log *zap.Logger) gin.HandlerFunc {
	return JWTAuthMiddlewareWithConfig(JWTMiddlewareConfig{JWTService: jwtService, Revoker: revoker, Logger: log})
}

// JWTAuthMiddlewareWithConfig creates JWT authentication middleware with custom config.
// Revocation store errors are logged and the token is accepted.
func JWTAuthMiddlewareWithConfig(cfg JWTMiddlewareConfig) gin.HandlerFunc {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		authHeader := c.GetHeader(AuthHeaderKey)
		if authHeader == "" {
			handleAuthError(c, cfg, ErrMissingToken, "Missing authorization header")
			return
		}
		if !strings.HasPrefix(authHeader, BearerPrefix) {
			handleAuthError(c, cfg, ErrMissingToken, "Invalid authorization header format")
			return
		}
		tokenString := strings.TrimSpace(strings.TrimPrefix(authHeader, BearerPrefix))
		if tokenString == "" {
			handleAuthError(c, cfg, ErrMissingToken, "Missing token")
			return
		}

		claims, err := cfg.JWTService.ValidateToken(tokenString)
		if err != nil {
			handleAuthError(c, cfg, err, "Token validation failed")
			return
		}

		if cfg.Revoker != nil {
			ctx := c.Request.Context()
			if claims.ID != "" {
				revoked, err := cfg.Revoker.IsRevoked(ctx, claims.ID)
				if err != nil {
					cfg.Logger.Error("Failed to check token revocation", zap.String("jti", claims.ID), zap.Error(err))
				} else if revoked {
					handleAuthError(c, cfg, auth.ErrTokenRevoked, "Token has been revoked")
					return
				}
			}

			revoked, err := cfg.Revoker.IsLicenseRevoked(ctx, claims.LicenseID, claims.GetIssuedAtTime())
			if err != nil {
				cfg.Logger.Error("Failed to check license session revocation", zap.String("license_id", claims.LicenseID), zap.Error(err))
			} else if revoked {
				handleAuthError(c, cfg, auth.ErrTokenRevoked, "Session has been invalidated")
				return
			}
		}

		c.Set(JWTClaimsKey, claims)
		c.Set(JWTLicenseIDKey, claims.LicenseID)
		c.Set(JWTLicenseKeyKey, claims.LicenseKey)
		c.Request = c.Request.WithContext(logger.WithLicenseKey(c.Request.Context(), claims.LicenseKey))

		c.Next()
	}
}

// handleAuthError handles authentication errors
func handleAuthError(c *gin.Context, cfg JWTMiddlewareConfig, err error, message string) {
	if cfg.OnError != nil {
		cfg.OnError(c, err)
		c.Abort()
		return
	}

	cfg.Logger.Warn("JWT authentication failed",
		zap.Error(err),
		zap.String("message", message),
		zap.String("path", c.Request.URL.Path),
	)

	code, msg := dto.ErrCodeUnauthorized, "Authentication required"
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		code, msg = dto.ErrCodeTokenExpired, "Token has expired"
	case errors.Is(err, auth.ErrTokenRevoked):
		code, msg = dto.ErrCodeTokenRevoked, message
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims),
		errors.Is(err, auth.ErrMissingLicenseID), errors.Is(err, auth.ErrTokenNotYetValid):
		code, msg = dto.ErrCodeInvalidToken, "Invalid token"
	}

	c.AbortWithStatusJSON(http.StatusUnauthorized, dto.NewErrorResponseWithRequestID(code, msg, c.GetString(RequestIDKey)))
}

// GetJWTClaims retrieves JWT claims from gin.Context
func GetJWTClaims(c *gin.Context) *auth.Claims {
	if claims, exists := c.Get(JWTClaimsKey); exists {
		if jwtClaims, ok := claims.(*auth.Claims); ok {
			return jwtClaims
		}
	}
	return nil
}

// GetJWTLicenseKey retrieves the license key of the logged-in dashboard session
func GetJWTLicenseKey(c *gin.Context) string {
	return c.GetString(JWTLicenseKeyKey)
}
