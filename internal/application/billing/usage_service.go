package billing

import (
	"context"
	"errors"
	"strings"
	"time"

	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrInvalidPeriod is returned when a reporting range is empty or reversed
var ErrInvalidPeriod = shared.NewDomainError("INVALID_INPUT", "period_end must be after period_start")

// UserUsageReport is the per-user breakdown of one site
type UserUsageReport struct {
	SiteHash    string              `json:"site_hash"`
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	Users       []billing.UserUsage `json:"users"`
}

// SiteUsageReport is the per-site breakdown of one license
type SiteUsageReport struct {
	PeriodStart time.Time           `json:"period_start"`
	PeriodEnd   time.Time           `json:"period_end"`
	Sites       []billing.SiteUsage `json:"sites"`
}

// UsageService owns the usage ledger: it appends records, keeps the period
// summary in step and answers aggregation queries.
type UsageService struct {
	validator *licensingapp.Validator
	sites     licensing.SiteRepository
	records   billing.UsageRecordRepository
	summaries billing.QuotaSummaryRepository
	metrics   metrics.Recorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewUsageService creates a new usage service
func NewUsageService(
	validator *licensingapp.Validator,
	sites licensing.SiteRepository,
	records billing.UsageRecordRepository,
	summaries billing.QuotaSummaryRepository,
	recorder metrics.Recorder,
	log *zap.Logger,
) *UsageService {
	if log == nil {
		log = zap.NewNop()
	}
	return &UsageService{
		validator: validator,
		sites:     sites,
		records:   records,
		summaries: summaries,
		metrics:   metrics.OrNop(recorder),
		logger:    log,
		now:       time.Now,
	}
}

// Record appends one ledger entry for license and refreshes the period summary.
//
// The metered operation has already happened when this runs, so callers log
// the error and carry on; nothing is rolled back.
func (s *UsageService) Record(ctx context.Context, license *licensing.License, record *billing.UsageRecord) error {
	log := logger.Enrich(ctx, s.logger).With(
		zap.String("license_id", license.ID.String()),
		zap.String("site_hash", record.SiteHash),
		zap.Int64("credits", record.Credits),
	)

	if err := s.records.Save(ctx, record); err != nil {
		s.metrics.UsageRecordFailed()
		log.Error("Failed to record usage", zap.Error(err))
		return licensing.ServerError("failed to record usage", err)
	}
	s.metrics.UsageRecorded(string(record.Status), record.CacheHit)

	if record.Credits == 0 {
		return nil
	}
	period := license.CurrentPeriod(record.RecordedAt)
	if err := s.refreshSummary(ctx, license, period); err != nil {
		log.Warn("Failed to refresh quota summary", zap.Error(err))
	}
	return nil
}

// refreshSummary stores the ledger total for the period. Each writer sums
// after its own append and the store keeps the largest total, so once the
// last writer finishes the summary equals the ledger even when refreshes
// interleave.
func (s *UsageService) refreshSummary(ctx context.Context, license *licensing.License, period licensing.Period) error {
	used, err := s.records.SumByLicense(ctx, license.ID, period.Start, period.End)
	if err != nil {
		return err
	}
	return s.summaries.Upsert(ctx, billing.NewQuotaSummary(license.ID, period.Start, period.End, used))
}

// AggregateByUser groups the ledger rows of a site in [start, end) by end user
func (s *UsageService) AggregateByUser(ctx context.Context, siteHash string, start, end time.Time) ([]billing.UserUsage, error) {
	return s.aggregateByUser(ctx, uuid.Nil, siteHash, start, end)
}

func (s *UsageService) aggregateByUser(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) ([]billing.UserUsage, error) {
	if !end.After(start) {
		return nil, ErrInvalidPeriod
	}
	rows, err := s.records.AggregateByUser(ctx, licenseID, strings.TrimSpace(siteHash), start, end)
	if err != nil {
		return nil, licensing.ServerError("failed to aggregate usage by user", err)
	}
	return rows, nil
}

// AggregateBySite groups the ledger rows of a license in [start, end) by site
func (s *UsageService) AggregateBySite(ctx context.Context, licenseKey string, start, end time.Time) ([]billing.SiteUsage, error) {
	license, err := s.validator.Lookup(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	return s.aggregateBySite(ctx, license, start, end)
}

// UserReport returns the per-user breakdown of a site held by the license.
// Zero start and end select the license's current period.
func (s *UsageService) UserReport(ctx context.Context, licenseKey, siteHash string, start, end time.Time) (*UserUsageReport, error) {
	license, err := s.validator.Lookup(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	siteHash = strings.TrimSpace(siteHash)
	site, err := s.sites.FindByHash(ctx, siteHash)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return nil, licensingapp.ErrSiteNotFound
	case err != nil:
		return nil, licensing.ServerError("failed to look up site", err)
	}
	if site.LicenseID != license.ID {
		return nil, licensingapp.ErrSiteNotFound
	}

	start, end = s.resolvePeriod(license, start, end)
	// rows billed to a previous holder of the site stay with that license
	users, err := s.aggregateByUser(ctx, license.ID, siteHash, start, end)
	if err != nil {
		return nil, err
	}
	return &UserUsageReport{SiteHash: siteHash, PeriodStart: start, PeriodEnd: end, Users: users}, nil
}

// SiteReport returns the per-site breakdown of a license.
// Zero start and end select the license's current period.
func (s *UsageService) SiteReport(ctx context.Context, licenseKey string, start, end time.Time) (*SiteUsageReport, error) {
	license, err := s.validator.Lookup(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	return s.SiteReportFor(ctx, license, start, end)
}

// SiteReportFor is SiteReport for an already resolved license
func (s *UsageService) SiteReportFor(ctx context.Context, license *licensing.License, start, end time.Time) (*SiteUsageReport, error) {
	start, end = s.resolvePeriod(license, start, end)
	sites, err := s.aggregateBySite(ctx, license, start, end)
	if err != nil {
		return nil, err
	}
	return &SiteUsageReport{PeriodStart: start, PeriodEnd: end, Sites: sites}, nil
}

func (s *UsageService) aggregateBySite(ctx context.Context, license *licensing.License, start, end time.Time) ([]billing.SiteUsage, error) {
	if !end.After(start) {
		return nil, ErrInvalidPeriod
	}
	rows, err := s.records.AggregateBySite(ctx, license.ID, start, end)
	if err != nil {
		return nil, licensing.ServerError("failed to aggregate usage by site", err)
	}
	return rows, nil
}

func (s *UsageService) resolvePeriod(license *licensing.License, start, end time.Time) (time.Time, time.Time) {
	if start.IsZero() && end.IsZero() {
		period := license.CurrentPeriod(s.now())
		return period.Start, period.End
	}
	if end.IsZero() {
		end = s.now().UTC()
	}
	return start.UTC(), end.UTC()
}
