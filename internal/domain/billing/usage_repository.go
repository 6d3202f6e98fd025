package billing

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// UserUsage is the per-end-user aggregate of ledger rows
type UserUsage struct {
	UserID       string    `json:"user_id"`
	CreditsUsed  int64     `json:"credits_used"`
	LastActivity time.Time `json:"last_activity"`
}

// SiteUsage is the per-site aggregate of ledger rows
type SiteUsage struct {
	SiteHash     string    `json:"site_hash"`
	CreditsUsed  int64     `json:"credits_used"`
	LastActivity time.Time `json:"last_activity"`
}

// UsageRecordRepository is the append-only ledger. All ranges are half-open [start, end).
type UsageRecordRepository interface {
	// Save appends one record
	Save(ctx context.Context, record *UsageRecord) error

	// SumByLicense sums credits for a license
	SumByLicense(ctx context.Context, licenseID uuid.UUID, start, end time.Time) (int64, error)

	// SumBySite sums credits for one site under a license
	SumBySite(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) (int64, error)

	// AggregateByUser groups the rows of one site by end user, highest spend
	// first. A non-nil licenseID keeps only rows billed to that license.
	AggregateByUser(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) ([]UserUsage, error)

	// AggregateBySite groups the rows of one license by site, highest spend first
	AggregateBySite(ctx context.Context, licenseID uuid.UUID, start, end time.Time) ([]SiteUsage, error)
}

// QuotaSummaryRepository stores materialized period totals.
// Find returns shared.ErrNotFound when no summary exists. Upsert never lowers
// a stored total, so concurrent refreshes converge on the largest ledger sum.
type QuotaSummaryRepository interface {
	Find(ctx context.Context, licenseID uuid.UUID, periodStart time.Time) (*QuotaSummary, error)
	Upsert(ctx context.Context, summary *QuotaSummary) error
}
