package handler

import (
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/google/uuid"
)

// =====================
// License Request DTOs
// =====================

// ValidateLicenseRequest represents the request body for license validation.
// The key may also be sent in the X-License-Key header.
type ValidateLicenseRequest struct {
	LicenseKey string `json:"license_key" binding:"omitempty,max=64"`
}

// ActivateSiteRequest represents the request body for binding a site
type ActivateSiteRequest struct {
	LicenseKey  string `json:"license_key" binding:"omitempty,max=64"`
	SiteHash    string `json:"site_hash" binding:"required,max=64"`
	SiteURL     string `json:"site_url" binding:"omitempty,url,max=2048"`
	SiteName    string `json:"site_name" binding:"omitempty,max=255"`
	Fingerprint string `json:"fingerprint" binding:"omitempty,max=255"`
}

// DeactivateSiteRequest represents the request body for releasing a site
type DeactivateSiteRequest struct {
	LicenseKey string `json:"license_key" binding:"omitempty,max=64"`
	SiteHash   string `json:"site_hash" binding:"required,max=64"`
}

// TransferSiteRequest represents the request body for moving a license to a new site
type TransferSiteRequest struct {
	LicenseKey     string `json:"license_key" binding:"omitempty,max=64"`
	OldSiteHash    string `json:"old_site_hash" binding:"required,max=64"`
	NewSiteHash    string `json:"new_site_hash" binding:"required,max=64"`
	NewFingerprint string `json:"new_fingerprint" binding:"omitempty,max=255"`
	NewURL         string `json:"new_url" binding:"omitempty,url,max=2048"`
	NewName        string `json:"new_name" binding:"omitempty,max=255"`
}

// SetSiteQuotaRequest sets or clears (null) a site's credit cap
type SetSiteQuotaRequest struct {
	LicenseKey string `json:"license_key" binding:"omitempty,max=64"`
	QuotaLimit *int64 `json:"quota_limit" binding:"omitempty,gte=0"`
}

// =====================
// License Response DTOs
// =====================

// LicenseResponse is the public view of a license. The password hash and
// Stripe identifiers are never exposed.
type LicenseResponse struct {
	ID               uuid.UUID `json:"id"`
	LicenseKey       string    `json:"license_key"`
	Plan             string    `json:"plan"`
	Status           string    `json:"status"`
	BillingAnchorDay int       `json:"billing_anchor_day"`
	Email            string    `json:"email,omitempty"`
	HasPassword      bool      `json:"has_password"`
	CreatedAt        time.Time `json:"created_at"`
}

// SiteResponse is the public view of a site binding
type SiteResponse struct {
	SiteHash       string     `json:"site_hash"`
	SiteURL        string     `json:"site_url,omitempty"`
	SiteName       string     `json:"site_name,omitempty"`
	Status         string     `json:"status"`
	QuotaLimit     *int64     `json:"quota_limit"`
	ActivatedAt    time.Time  `json:"activated_at"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	LastActivityAt *time.Time `json:"last_activity_at,omitempty"`
}

// ValidateLicenseResponse is the license with its effective limits
type ValidateLicenseResponse struct {
	License LicenseResponse      `json:"license"`
	Limits  licensing.PlanLimits `json:"limits"`
}

// ActivationResponse is returned by activate and transfer
type ActivationResponse struct {
	License LicenseResponse      `json:"license"`
	Limits  licensing.PlanLimits `json:"limits"`
	Site    SiteResponse         `json:"site"`
}

// DeactivationResponse confirms a site was released
type DeactivationResponse struct {
	Deactivated bool   `json:"deactivated"`
	SiteHash    string `json:"site_hash"`
}

// toLicenseResponse converts a domain License to LicenseResponse
func toLicenseResponse(l *licensing.License) LicenseResponse {
	return LicenseResponse{
		ID:               l.ID,
		LicenseKey:       l.Key,
		Plan:             string(l.Plan),
		Status:           string(l.Status),
		BillingAnchorDay: l.BillingAnchorDay,
		Email:            l.Email,
		HasPassword:      l.HasPassword(),
		CreatedAt:        l.CreatedAt,
	}
}

// toSiteResponse converts a domain Site to SiteResponse
func toSiteResponse(s *licensing.Site) SiteResponse {
	return SiteResponse{
		SiteHash:       s.SiteHash,
		SiteURL:        s.SiteURL,
		SiteName:       s.SiteName,
		Status:         string(s.Status),
		QuotaLimit:     s.QuotaLimit,
		ActivatedAt:    s.ActivatedAt,
		DeactivatedAt:  s.DeactivatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}

func toSiteResponses(sites []*licensing.Site) []SiteResponse {
	out := make([]SiteResponse, 0, len(sites))
	for _, s := range sites {
		out = append(out, toSiteResponse(s))
	}
	return out
}
