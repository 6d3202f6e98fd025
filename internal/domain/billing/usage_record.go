package billing

import (
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// UsageStatus is the outcome of the metered operation
type UsageStatus string

const (
	UsageStatusSuccess UsageStatus = "success"
	UsageStatusFailed  UsageStatus = "failed"
)

// DefaultCredits is the cost of one metered operation
const DefaultCredits int64 = 1

const maxErrorMessageLength = 1000

// UsageRecord is an immutable fact: a license (optionally a site and an end
// user) spent Credits through Endpoint at RecordedAt. Corrections are new
// records, never updates.
type UsageRecord struct {
	shared.BaseEntity
	LicenseID        uuid.UUID
	SiteHash         string
	UserID           string
	Credits          int64
	PromptTokens     int
	CompletionTokens int
	CacheHit         bool
	Model            string
	LatencyMs        int64
	Endpoint         string
	Status           UsageStatus
	ErrorMessage     string
	RecordedAt       time.Time
}

// NewUsageRecord creates a successful record for the given license
func NewUsageRecord(licenseID uuid.UUID, endpoint string, credits int64) (*UsageRecord, error) {
	if licenseID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LICENSE_ID", "License ID cannot be empty")
	}
	if credits < 0 {
		return nil, shared.NewDomainError("INVALID_CREDITS", "Credits cannot be negative")
	}
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = "generate"
	}
	base := shared.NewBaseEntity()
	return &UsageRecord{
		BaseEntity: base,
		LicenseID:  licenseID,
		Credits:    credits,
		Endpoint:   endpoint,
		Status:     UsageStatusSuccess,
		RecordedAt: base.CreatedAt,
	}, nil
}

// WithSite sets the site the usage is attributed to
func (r *UsageRecord) WithSite(siteHash string) *UsageRecord {
	r.SiteHash = strings.TrimSpace(siteHash)
	return r
}

// WithUser sets the end user who triggered the usage
func (r *UsageRecord) WithUser(userID string) *UsageRecord {
	r.UserID = strings.TrimSpace(userID)
	return r
}

// WithTokens sets the token usage reported by the generator
func (r *UsageRecord) WithTokens(prompt, completion int) *UsageRecord {
	r.PromptTokens = prompt
	r.CompletionTokens = completion
	return r
}

// WithGeneration sets model, cache and latency metadata
func (r *UsageRecord) WithGeneration(model string, cacheHit bool, latency time.Duration) *UsageRecord {
	r.Model = model
	r.CacheHit = cacheHit
	r.LatencyMs = latency.Milliseconds()
	return r
}

// WithRecordedAt overrides the record timestamp
func (r *UsageRecord) WithRecordedAt(t time.Time) *UsageRecord {
	r.RecordedAt = t.UTC()
	return r
}

// MarkFailed records the operation as failed. Failed operations cost nothing.
func (r *UsageRecord) MarkFailed(err error) *UsageRecord {
	r.Status = UsageStatusFailed
	r.Credits = 0
	if err != nil {
		msg := err.Error()
		if len(msg) > maxErrorMessageLength {
			msg = msg[:maxErrorMessageLength]
		}
		r.ErrorMessage = msg
	}
	return r
}

// TotalTokens returns prompt plus completion tokens
func (r *UsageRecord) TotalTokens() int {
	return r.PromptTokens + r.CompletionTokens
}

// IsSuccess reports whether the operation succeeded
func (r *UsageRecord) IsSuccess() bool {
	return r.Status == UsageStatusSuccess
}
