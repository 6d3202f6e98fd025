package handler

import (
	"time"

	billingapp "github.com/alttext/backend/internal/application/billing"
)

// =====================
// Auth Request DTOs
// =====================

// LoginRequest represents the request body for dashboard login
type LoginRequest struct {
	LicenseKey string `json:"license_key" binding:"required,max=64"`
	Password   string `json:"password" binding:"required,max=128"`
}

// SetPasswordRequest sets the dashboard password. CurrentPassword is
// required once a password exists.
type SetPasswordRequest struct {
	LicenseKey      string `json:"license_key" binding:"required,max=64"`
	CurrentPassword string `json:"current_password" binding:"omitempty,max=128"`
	NewPassword     string `json:"new_password" binding:"required,min=8,max=128"`
}

// =====================
// Auth Response DTOs
// =====================

// TokenResponse represents the token data in auth responses
type TokenResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	TokenType   string    `json:"token_type"`
}

// LoginResponse represents the response for a successful login
type LoginResponse struct {
	Token   TokenResponse   `json:"token"`
	License LicenseResponse `json:"license"`
}

// DashboardUsageResponse is the quota position with its per-site breakdown
type DashboardUsageResponse struct {
	License LicenseResponse             `json:"license"`
	Quota   *billingapp.QuotaStatus     `json:"quota"`
	Usage   *billingapp.SiteUsageReport `json:"usage"`
}
