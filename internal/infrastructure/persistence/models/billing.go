package models

import (
	"time"

	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageRecordModel is the persistence model for a ledger row
type UsageRecordModel struct {
	ID               uuid.UUID           `gorm:"type:uuid;primaryKey"`
	LicenseID        uuid.UUID           `gorm:"type:uuid;not null;index:idx_usage_license_recorded,priority:1"`
	SiteHash         string              `gorm:"type:varchar(128);index:idx_usage_site_recorded,priority:1"`
	UserID           string              `gorm:"type:varchar(128)"`
	Credits          int64               `gorm:"not null"`
	PromptTokens     int                 `gorm:"not null"`
	CompletionTokens int                 `gorm:"not null"`
	CacheHit         bool                `gorm:"not null"`
	Model            string              `gorm:"type:varchar(100)"`
	LatencyMs        int64               `gorm:"not null"`
	Endpoint         string              `gorm:"type:varchar(100);not null"`
	Status           billing.UsageStatus `gorm:"type:varchar(20);not null"`
	ErrorMessage     string              `gorm:"type:text"`
	RecordedAt       time.Time           `gorm:"not null;index:idx_usage_license_recorded,priority:2;index:idx_usage_site_recorded,priority:2"`
	CreatedAt        time.Time           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (UsageRecordModel) TableName() string {
	return "usage_records"
}

// ToDomain converts the persistence model to a domain UsageRecord
func (m *UsageRecordModel) ToDomain() *billing.UsageRecord {
	return &billing.UsageRecord{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.CreatedAt.UTC(),
		},
		LicenseID:        m.LicenseID,
		SiteHash:         m.SiteHash,
		UserID:           m.UserID,
		Credits:          m.Credits,
		PromptTokens:     m.PromptTokens,
		CompletionTokens: m.CompletionTokens,
		CacheHit:         m.CacheHit,
		Model:            m.Model,
		LatencyMs:        m.LatencyMs,
		Endpoint:         m.Endpoint,
		Status:           m.Status,
		ErrorMessage:     m.ErrorMessage,
		RecordedAt:       m.RecordedAt.UTC(),
	}
}

// UsageRecordModelFromDomain creates a persistence model from a domain UsageRecord
func UsageRecordModelFromDomain(r *billing.UsageRecord) *UsageRecordModel {
	return &UsageRecordModel{
		ID:               r.ID,
		LicenseID:        r.LicenseID,
		SiteHash:         r.SiteHash,
		UserID:           r.UserID,
		Credits:          r.Credits,
		PromptTokens:     r.PromptTokens,
		CompletionTokens: r.CompletionTokens,
		CacheHit:         r.CacheHit,
		Model:            r.Model,
		LatencyMs:        r.LatencyMs,
		Endpoint:         r.Endpoint,
		Status:           r.Status,
		ErrorMessage:     r.ErrorMessage,
		RecordedAt:       r.RecordedAt.UTC(),
		CreatedAt:        r.CreatedAt.UTC(),
	}
}

// QuotaSummaryModel is the persistence model for a materialized period total
type QuotaSummaryModel struct {
	LicenseID   uuid.UUID `gorm:"type:uuid;primaryKey"`
	PeriodStart time.Time `gorm:"primaryKey"`
	PeriodEnd   time.Time `gorm:"not null"`
	CreditsUsed int64     `gorm:"not null"`
	UpdatedAt   time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (QuotaSummaryModel) TableName() string {
	return "quota_summaries"
}

// ToDomain converts the persistence model to a domain QuotaSummary
func (m *QuotaSummaryModel) ToDomain() *billing.QuotaSummary {
	return &billing.QuotaSummary{
		LicenseID:   m.LicenseID,
		PeriodStart: m.PeriodStart.UTC(),
		PeriodEnd:   m.PeriodEnd.UTC(),
		CreditsUsed: m.CreditsUsed,
		UpdatedAt:   m.UpdatedAt.UTC(),
	}
}

// QuotaSummaryModelFromDomain creates a persistence model from a domain QuotaSummary
func QuotaSummaryModelFromDomain(s *billing.QuotaSummary) *QuotaSummaryModel {
	return &QuotaSummaryModel{
		LicenseID:   s.LicenseID,
		PeriodStart: s.PeriodStart.UTC(),
		PeriodEnd:   s.PeriodEnd.UTC(),
		CreditsUsed: s.CreditsUsed,
		UpdatedAt:   s.UpdatedAt.UTC(),
	}
}

// All returns every model, for auto-migration in tests
func All() []any {
	return []any{&LicenseModel{}, &SiteModel{}, &UsageRecordModel{}, &QuotaSummaryModel{}}
}
