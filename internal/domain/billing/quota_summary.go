package billing

import (
	"time"

	"github.com/google/uuid"
)

// QuotaSummary is the materialized credit total for one license and billing period
type QuotaSummary struct {
	LicenseID   uuid.UUID
	PeriodStart time.Time
	PeriodEnd   time.Time
	CreditsUsed int64
	UpdatedAt   time.Time
}

// NewQuotaSummary creates a summary stamped now
func NewQuotaSummary(licenseID uuid.UUID, start, end time.Time, creditsUsed int64) *QuotaSummary {
	return &QuotaSummary{
		LicenseID:   licenseID,
		PeriodStart: start.UTC(),
		PeriodEnd:   end.UTC(),
		CreditsUsed: creditsUsed,
		UpdatedAt:   time.Now().UTC(),
	}
}
