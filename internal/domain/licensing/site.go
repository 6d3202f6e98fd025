package licensing

import (
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SiteStatus is the binding state of a site
type SiteStatus string

const (
	SiteStatusActive      SiteStatus = "active"
	SiteStatusDeactivated SiteStatus = "deactivated"
)

// Site binds one external installation to a license. The site hash is unique
// across all licenses; only one license can hold an active binding at a time.
type Site struct {
	shared.BaseEntity
	SiteHash       string
	LicenseID      uuid.UUID
	SiteURL        string
	SiteName       string
	Fingerprint    string
	Status         SiteStatus
	QuotaLimit     *int64
	ActivatedAt    time.Time
	DeactivatedAt  *time.Time
	LastActivityAt *time.Time
}

// SiteDetails is the installation metadata supplied on activation
type SiteDetails struct {
	URL         string
	Name        string
	Fingerprint string
}

// NewSite creates an active binding
func NewSite(licenseID uuid.UUID, siteHash string, details SiteDetails, now time.Time) (*Site, error) {
	siteHash = strings.TrimSpace(siteHash)
	if siteHash == "" {
		return nil, shared.NewDomainError("INVALID_SITE_HASH", "Site hash cannot be empty")
	}
	if licenseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LICENSE_ID", "License ID cannot be empty")
	}
	now = now.UTC()
	s := &Site{
		BaseEntity: shared.NewBaseEntity(),
		SiteHash:   siteHash,
		LicenseID:  licenseID,
		Status:     SiteStatusActive,
	}
	s.apply(details)
	s.ActivatedAt = now
	s.LastActivityAt = &now
	return s, nil
}

// IsActive reports whether the binding is live
func (s *Site) IsActive() bool {
	return s.Status == SiteStatusActive
}

// HeldByOther reports whether another license holds an active binding
func (s *Site) HeldByOther(licenseID uuid.UUID) bool {
	return s.IsActive() && s.LicenseID != licenseID
}

// ActiveUnder reports whether the binding is active under the given license
func (s *Site) ActiveUnder(licenseID uuid.UUID) bool {
	return s.IsActive() && s.LicenseID == licenseID
}

// Activate (re)binds the site to licenseID and refreshes its metadata.
// Rebinding to a different license drops any per-site quota override.
func (s *Site) Activate(licenseID uuid.UUID, details SiteDetails, now time.Time) {
	now = now.UTC()
	if s.LicenseID != licenseID {
		s.QuotaLimit = nil
	}
	if !s.ActiveUnder(licenseID) {
		s.ActivatedAt = now
	}
	s.LicenseID = licenseID
	s.Status = SiteStatusActive
	s.DeactivatedAt = nil
	s.apply(details)
	s.LastActivityAt = &now
	s.Touch(now)
}

// Deactivate releases the binding
func (s *Site) Deactivate(now time.Time) {
	now = now.UTC()
	s.Status = SiteStatusDeactivated
	s.DeactivatedAt = &now
	s.Touch(now)
}

// SetQuotaLimit sets the per-site credit cap. nil removes it.
func (s *Site) SetQuotaLimit(limit *int64) error {
	if limit != nil && *limit < 0 {
		return shared.NewDomainError("INVALID_QUOTA_LIMIT", "Quota limit cannot be negative")
	}
	if limit != nil {
		v := *limit
		limit = &v
	}
	s.QuotaLimit = limit
	s.Touch(time.Now())
	return nil
}

// RecordActivity stamps the last metered use
func (s *Site) RecordActivity(now time.Time) {
	now = now.UTC()
	s.LastActivityAt = &now
}

func (s *Site) apply(d SiteDetails) {
	if d.URL != "" {
		s.SiteURL = strings.TrimSpace(d.URL)
	}
	if d.Name != "" {
		s.SiteName = strings.TrimSpace(d.Name)
	}
	if d.Fingerprint != "" {
		s.Fingerprint = strings.TrimSpace(d.Fingerprint)
	}
}
