// Package billing implements quota accounting, the usage ledger and payment
// webhooks on top of the billing and licensing domains.
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
	"github.com/alttext/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// DefaultNearLimitRatio is the share of the allowance at which a license is near its limit
const DefaultNearLimitRatio = 0.9

// SiteQuotaStatus is the site-scoped part of a quota status.
// QuotaLimit and CreditsRemaining are nil when no site cap is enforced.
type SiteQuotaStatus struct {
	SiteHash         string `json:"site_hash"`
	CreditsUsed      int64  `json:"credits_used"`
	QuotaLimit       *int64 `json:"quota_limit"`
	CreditsRemaining *int64 `json:"credits_remaining"`
	Enforced         bool   `json:"enforced"`
}

// QuotaStatus is the credit position of a license in its current billing period
type QuotaStatus struct {
	Plan             licensing.Plan   `json:"plan"`
	CreditsUsed      int64            `json:"credits_used"`
	TotalLimit       int64            `json:"total_limit"`
	CreditsRemaining int64            `json:"credits_remaining"`
	IsNearLimit      bool             `json:"is_near_limit"`
	Unlimited        bool             `json:"unlimited,omitempty"`
	PeriodStart      time.Time        `json:"period_start"`
	ResetDate        time.Time        `json:"reset_date"`
	Site             *SiteQuotaStatus `json:"site,omitempty"`

	license *licensing.License
}

// License returns the license the status was computed for. It is nil for
// bypass statuses.
func (s *QuotaStatus) License() *licensing.License {
	return s.license
}

// Period returns the billing period the status covers
func (s *QuotaStatus) Period() licensing.Period {
	return licensing.Period{Start: s.PeriodStart, End: s.ResetDate}
}

// AvailabilityCheck is the outcome of CheckAvailable. Denial is set when the
// requested credits do not fit.
type AvailabilityCheck struct {
	Status        *QuotaStatus
	CreditsNeeded int64
	Denial        *licensing.Error
}

// Allowed reports whether the requested credits fit the remaining allowance
func (c AvailabilityCheck) Allowed() bool {
	return c.Denial == nil
}

// QuotaServiceConfig contains configuration for the quota service
type QuotaServiceConfig struct {
	NearLimitRatio   float64
	BypassSiteHashes []string
}

// DefaultQuotaServiceConfig returns default configuration
func DefaultQuotaServiceConfig() QuotaServiceConfig {
	return QuotaServiceConfig{NearLimitRatio: DefaultNearLimitRatio}
}

// QuotaService answers "how much credit is left" and enforces it.
//
// The check is not transactional with the later ledger write: concurrent
// requests may all pass the check and overshoot the allowance by at most the
// number of in-flight requests.
type QuotaService struct {
	validator *licensingapp.Validator
	sites     licensing.SiteRepository
	summaries billing.QuotaSummaryRepository
	records   billing.UsageRecordRepository
	metrics   metrics.Recorder
	logger    *zap.Logger
	nearRatio float64
	bypass    map[string]struct{}
	now       func() time.Time
}

// NewQuotaService creates a new quota service
func NewQuotaService(
	validator *licensingapp.Validator,
	sites licensing.SiteRepository,
	summaries billing.QuotaSummaryRepository,
	records billing.UsageRecordRepository,
	recorder metrics.Recorder,
	config QuotaServiceConfig,
	log *zap.Logger,
) *QuotaService {
	if log == nil {
		log = zap.NewNop()
	}
	ratio := config.NearLimitRatio
	if ratio <= 0 || ratio > 1 {
		ratio = DefaultNearLimitRatio
	}
	bypass := make(map[string]struct{}, len(config.BypassSiteHashes))
	for _, h := range config.BypassSiteHashes {
		if h = strings.TrimSpace(h); h != "" {
			bypass[h] = struct{}{}
		}
	}
	return &QuotaService{
		validator: validator,
		sites:     sites,
		summaries: summaries,
		records:   records,
		metrics:   metrics.OrNop(recorder),
		logger:    log,
		nearRatio: ratio,
		bypass:    bypass,
		now:       time.Now,
	}
}

// Status validates the license and returns its credit position for the
// current period. When siteHash is set the site's own usage is reported too.
func (s *QuotaService) Status(ctx context.Context, licenseKey, siteHash string) (*QuotaStatus, error) {
	validation, err := s.validator.Validate(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	return s.StatusFor(ctx, validation, siteHash)
}

// StatusFor computes the credit position of an already validated license
func (s *QuotaService) StatusFor(ctx context.Context, validation *licensingapp.Validation, siteHash string) (*QuotaStatus, error) {
	license := validation.License
	period := license.CurrentPeriod(s.now())

	used, err := s.creditsUsed(ctx, license, period)
	if err != nil {
		return nil, err
	}

	limit := validation.Limits.Credits
	status := &QuotaStatus{
		Plan:             license.Plan,
		CreditsUsed:      used,
		TotalLimit:       limit,
		CreditsRemaining: max(limit-used, 0),
		IsNearLimit:      s.nearLimit(used, limit),
		PeriodStart:      period.Start,
		ResetDate:        period.End,
		license:          license,
	}

	siteHash = strings.TrimSpace(siteHash)
	if siteHash == "" {
		return status, nil
	}
	site, err := s.siteStatus(ctx, license, siteHash, period)
	if err != nil {
		return nil, err
	}
	status.Site = site
	return status, nil
}

// CheckAvailable reports whether creditsNeeded fit the remaining allowance.
// A denial is returned both in the check and as the error.
func (s *QuotaService) CheckAvailable(ctx context.Context, licenseKey, siteHash string, creditsNeeded int64) (AvailabilityCheck, error) {
	if creditsNeeded <= 0 {
		creditsNeeded = billing.DefaultCredits
	}
	check := AvailabilityCheck{CreditsNeeded: creditsNeeded}

	status, err := s.Status(ctx, licenseKey, siteHash)
	if err != nil {
		return check, err
	}
	check.Status = status

	if status.CreditsRemaining < creditsNeeded {
		check.Denial = quotaExceeded(status, "license", "Monthly credit quota exceeded")
		return check, check.Denial
	}
	if site := status.Site; site != nil && site.Enforced && *site.CreditsRemaining < creditsNeeded {
		check.Denial = quotaExceeded(status, "site", "Site credit quota exceeded").
			WithDetail("site_hash", site.SiteHash).
			WithDetail("site_credits_used", site.CreditsUsed).
			WithDetail("site_limit", *site.QuotaLimit)
		return check, check.Denial
	}
	return check, nil
}

// Enforce lets the caller proceed with a single check. The license is always
// validated first; bypass-listed sites then get an unlimited status without
// reading usage. Otherwise a QUOTA_EXCEEDED *licensing.Error carries the full
// status in its details.
func (s *QuotaService) Enforce(ctx context.Context, licenseKey, siteHash string, creditsNeeded int64) (*QuotaStatus, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "quota", "enforce",
		telemetry.SpanAttrLicense, logger.RedactKey(licenseKey),
		telemetry.SpanAttrSiteHash, siteHash,
		telemetry.SpanAttrCredits, creditsNeeded,
	)
	defer span.End()

	if s.Bypassed(siteHash) {
		if _, err := s.validator.Validate(ctx, licenseKey); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
		logger.Enrich(ctx, s.logger).Debug("Quota bypassed for site", zap.String("site_hash", siteHash))
		return s.unlimited(siteHash), nil
	}

	check, err := s.CheckAvailable(ctx, licenseKey, siteHash, creditsNeeded)
	if err != nil {
		if check.Denial != nil {
			s.metrics.QuotaDenied(scopeOf(check.Denial))
			logger.Enrich(ctx, s.logger).Info("Quota exceeded",
				zap.String("license", logger.RedactKey(licenseKey)),
				zap.String("site_hash", siteHash),
				zap.Int64("credits_used", check.Status.CreditsUsed),
				zap.Int64("total_limit", check.Status.TotalLimit),
			)
			telemetry.AddEvent(span, "quota_denied", telemetry.SpanAttrScope, scopeOf(check.Denial))
		} else {
			telemetry.RecordError(span, err)
		}
		return nil, err
	}
	return check.Status, nil
}

// Bypassed reports whether siteHash is on the quota allow-list
func (s *QuotaService) Bypassed(siteHash string) bool {
	siteHash = strings.TrimSpace(siteHash)
	if siteHash == "" {
		return false
	}
	_, ok := s.bypass[siteHash]
	return ok
}

func (s *QuotaService) creditsUsed(ctx context.Context, license *licensing.License, period licensing.Period) (int64, error) {
	summary, err := s.summaries.Find(ctx, license.ID, period.Start)
	if err == nil {
		return summary.CreditsUsed, nil
	}
	if !errors.Is(err, shared.ErrNotFound) {
		logger.Enrich(ctx, s.logger).Error("Failed to read quota summary",
			zap.String("license_id", license.ID.String()),
			zap.Error(err),
		)
		return 0, licensing.ServerError("failed to read quota summary", err)
	}

	used, err := s.records.SumByLicense(ctx, license.ID, period.Start, period.End)
	if err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to sum usage",
			zap.String("license_id", license.ID.String()),
			zap.Error(err),
		)
		return 0, licensing.ServerError("failed to sum usage", err)
	}
	return used, nil
}

func (s *QuotaService) siteStatus(ctx context.Context, license *licensing.License, siteHash string, period licensing.Period) (*SiteQuotaStatus, error) {
	used, err := s.records.SumBySite(ctx, license.ID, siteHash, period.Start, period.End)
	if err != nil {
		return nil, licensing.ServerError("failed to sum site usage", err)
	}
	status := &SiteQuotaStatus{SiteHash: siteHash, CreditsUsed: used}
	if !license.Plan.SupportsSiteQuotas() {
		return status, nil
	}

	site, err := s.sites.FindByHash(ctx, siteHash)
	switch {
	case errors.Is(err, shared.ErrNotFound):
		return status, nil
	case err != nil:
		return nil, licensing.ServerError("failed to look up site", err)
	}
	if site.LicenseID != license.ID || site.QuotaLimit == nil {
		return status, nil
	}

	limit := *site.QuotaLimit
	remaining := max(limit-used, 0)
	status.QuotaLimit = &limit
	status.CreditsRemaining = &remaining
	status.Enforced = true
	return status, nil
}

func (s *QuotaService) nearLimit(used, limit int64) bool {
	if limit <= 0 {
		return true
	}
	return float64(used)/float64(limit) >= s.nearRatio
}

func (s *QuotaService) unlimited(siteHash string) *QuotaStatus {
	period := licensing.CurrentPeriod(1, s.now())
	return &QuotaStatus{
		CreditsRemaining: -1,
		TotalLimit:       -1,
		Unlimited:        true,
		PeriodStart:      period.Start,
		ResetDate:        period.End,
		Site:             &SiteQuotaStatus{SiteHash: strings.TrimSpace(siteHash)},
	}
}

func quotaExceeded(status *QuotaStatus, scope, message string) *licensing.Error {
	return licensing.NewError(licensing.KindQuotaExceeded, message).
		WithDetail("scope", scope).
		WithDetail("credits_used", status.CreditsUsed).
		WithDetail("total_limit", status.TotalLimit).
		WithDetail("credits_remaining", status.CreditsRemaining).
		WithDetail("reset_date", status.ResetDate.Format(time.RFC3339)).
		WithDetail("plan", string(status.Plan))
}

func scopeOf(e *licensing.Error) string {
	if scope, ok := e.Details["scope"].(string); ok {
		return scope
	}
	return "license"
}
