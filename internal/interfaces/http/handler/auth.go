package handler

import (
	billingapp "github.com/alttext/backend/internal/application/billing"
	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// AuthHandler handles license dashboard authentication and the dashboard view
type AuthHandler struct {
	BaseHandler
	authService *licensingapp.AuthService
	validator   *licensingapp.Validator
	quota       *billingapp.QuotaService
	usage       *billingapp.UsageService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	authService *licensingapp.AuthService,
	validator *licensingapp.Validator,
	quota *billingapp.QuotaService,
	usage *billingapp.UsageService,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		validator:   validator,
		quota:       quota,
		usage:       usage,
	}
}

// Login godoc
// @Summary      Dashboard login
// @Description  Authenticate with a license key and its dashboard password
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body LoginRequest true "Login credentials"
// @Success      200 {object} dto.Response{data=LoginResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      429 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !h.BindJSON(c, &req) {
		return
	}

	result, err := h.authService.Login(c.Request.Context(), req.LicenseKey, req.Password)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, LoginResponse{
		Token: TokenResponse{
			AccessToken: result.Token.AccessToken,
			ExpiresAt:   result.Token.ExpiresAt,
			TokenType:   result.Token.TokenType,
		},
		License: toLicenseResponse(result.License),
	})
}

// SetPassword godoc
// @Summary      Set the dashboard password
// @Description  Sets or changes the password and signs out every existing session
// @Tags         auth
// @Accept       json
// @Produce      json
// @Param        request body SetPasswordRequest true "Password change"
// @Success      200 {object} dto.Response
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /auth/password [post]
func (h *AuthHandler) SetPassword(c *gin.Context) {
	var req SetPasswordRequest
	if !h.BindJSON(c, &req) {
		return
	}

	err := h.authService.SetPassword(c.Request.Context(), licensingapp.SetPasswordInput{
		LicenseKey:      req.LicenseKey,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "Password updated"})
}

// Logout godoc
// @Summary      Dashboard logout
// @Tags         auth
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response
// @Router       /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	claims := middleware.GetJWTClaims(c)
	if claims == nil {
		h.Unauthorized(c, "Not authenticated")
		return
	}

	if err := h.authService.Logout(c.Request.Context(), claims); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, gin.H{"message": "Logged out successfully"})
}

// DashboardUsage godoc
// @Summary      Dashboard usage view
// @Description  Quota status and per-site usage for the signed-in license, including expired or suspended ones
// @Tags         dashboard
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} dto.Response{data=DashboardUsageResponse}
// @Failure      401 {object} dto.Response{error=dto.ErrorInfo}
// @Router       /dashboard/usage [get]
func (h *AuthHandler) DashboardUsage(c *gin.Context) {
	key := middleware.GetJWTLicenseKey(c)
	if key == "" {
		h.Unauthorized(c, "Not authenticated")
		return
	}
	ctx := c.Request.Context()

	license, err := h.validator.Lookup(ctx, key)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	status, err := h.quota.StatusFor(ctx, &licensingapp.Validation{
		License: license,
		Limits:  license.Limits(h.validator.Plans()),
	}, "")
	if err != nil {
		h.HandleError(c, err)
		return
	}
	report, err := h.usage.SiteReportFor(ctx, license, status.PeriodStart, status.ResetDate)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, DashboardUsageResponse{
		License: toLicenseResponse(license),
		Quota:   status,
		Usage:   report,
	})
}
