package models

import (
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/google/uuid"
)

// LicenseModel is the persistence model for the License aggregate
type LicenseModel struct {
	AggregateModel
	LicenseKey           string                  `gorm:"column:license_key;type:varchar(64);not null;uniqueIndex"`
	Plan                 licensing.Plan          `gorm:"type:varchar(20);not null"`
	Status               licensing.LicenseStatus `gorm:"type:varchar(20);not null;index"`
	BillingAnchorDay     int                     `gorm:"not null"`
	Email                string                  `gorm:"type:varchar(255)"`
	StripeCustomerID     *string                 `gorm:"type:varchar(255);index"`
	StripeSubscriptionID *string                 `gorm:"type:varchar(255);index"`
	PasswordHash         string                  `gorm:"type:varchar(255)"`
	MaxSitesOverride     *int
}

// TableName returns the table name for GORM
func (LicenseModel) TableName() string {
	return "licenses"
}

// ToDomain converts the persistence model to a domain License
func (m *LicenseModel) ToDomain() *licensing.License {
	l := &licensing.License{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Key:               m.LicenseKey,
		Plan:              m.Plan,
		Status:            m.Status,
		BillingAnchorDay:  m.BillingAnchorDay,
		Email:             m.Email,
		PasswordHash:      m.PasswordHash,
		MaxSitesOverride:  m.MaxSitesOverride,
	}
	if m.StripeCustomerID != nil {
		l.StripeCustomerID = *m.StripeCustomerID
	}
	if m.StripeSubscriptionID != nil {
		l.StripeSubscriptionID = *m.StripeSubscriptionID
	}
	return l
}

// LicenseModelFromDomain creates a persistence model from a domain License
func LicenseModelFromDomain(l *licensing.License) *LicenseModel {
	m := &LicenseModel{
		LicenseKey:           l.Key,
		Plan:                 l.Plan,
		Status:               l.Status,
		BillingAnchorDay:     l.BillingAnchorDay,
		Email:                l.Email,
		StripeCustomerID:     nullable(l.StripeCustomerID),
		StripeSubscriptionID: nullable(l.StripeSubscriptionID),
		PasswordHash:         l.PasswordHash,
		MaxSitesOverride:     l.MaxSitesOverride,
	}
	m.FromDomainAggregateRoot(l.BaseAggregateRoot)
	return m
}

// SiteModel is the persistence model for a site binding
type SiteModel struct {
	BaseModel
	SiteHash       string               `gorm:"type:varchar(128);not null;uniqueIndex"`
	LicenseID      uuid.UUID            `gorm:"type:uuid;not null;index"`
	SiteURL        string               `gorm:"type:varchar(500)"`
	SiteName       string               `gorm:"type:varchar(255)"`
	Fingerprint    string               `gorm:"type:varchar(255)"`
	Status         licensing.SiteStatus `gorm:"type:varchar(20);not null;index"`
	QuotaLimit     *int64
	ActivatedAt    time.Time `gorm:"not null"`
	DeactivatedAt  *time.Time
	LastActivityAt *time.Time
}

// TableName returns the table name for GORM
func (SiteModel) TableName() string {
	return "sites"
}

// ToDomain converts the persistence model to a domain Site
func (m *SiteModel) ToDomain() *licensing.Site {
	return &licensing.Site{
		BaseEntity:     m.BaseModel.ToDomain(),
		SiteHash:       m.SiteHash,
		LicenseID:      m.LicenseID,
		SiteURL:        m.SiteURL,
		SiteName:       m.SiteName,
		Fingerprint:    m.Fingerprint,
		Status:         m.Status,
		QuotaLimit:     m.QuotaLimit,
		ActivatedAt:    m.ActivatedAt.UTC(),
		DeactivatedAt:  utcPtr(m.DeactivatedAt),
		LastActivityAt: utcPtr(m.LastActivityAt),
	}
}

// SiteModelFromDomain creates a persistence model from a domain Site
func SiteModelFromDomain(s *licensing.Site) *SiteModel {
	m := &SiteModel{
		SiteHash:       s.SiteHash,
		LicenseID:      s.LicenseID,
		SiteURL:        s.SiteURL,
		SiteName:       s.SiteName,
		Fingerprint:    s.Fingerprint,
		Status:         s.Status,
		QuotaLimit:     s.QuotaLimit,
		ActivatedAt:    s.ActivatedAt.UTC(),
		DeactivatedAt:  utcPtr(s.DeactivatedAt),
		LastActivityAt: utcPtr(s.LastActivityAt),
	}
	m.FromDomainBaseEntity(s.BaseEntity)
	return m
}

// nullable keeps unlinked provider IDs NULL so their indexes stay sparse
func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
