package licensing

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ErrSiteNotFound is returned when a per-site operation names a site the
// license does not actively hold
var ErrSiteNotFound = shared.NewDomainError("SITE_NOT_FOUND", "Site is not active under this license")

// ActivateInput contains input for binding a site to a license
type ActivateInput struct {
	LicenseKey  string
	SiteHash    string
	SiteURL     string
	SiteName    string
	Fingerprint string
}

// TransferInput moves a license from one site to another
type TransferInput struct {
	LicenseKey     string
	OldSiteHash    string
	NewSiteHash    string
	NewFingerprint string
	NewURL         string
	NewName        string
}

// Activation is the result of a successful activation
type Activation struct {
	License *licensing.License
	Limits  licensing.PlanLimits
	Site    *licensing.Site
}

// SiteRegistry binds site installations to licenses
type SiteRegistry struct {
	validator *Validator
	sites     licensing.SiteRepository
	logger    *zap.Logger
	now       func() time.Time
}

// NewSiteRegistry creates a site registry
func NewSiteRegistry(validator *Validator, sites licensing.SiteRepository, log *zap.Logger) *SiteRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	return &SiteRegistry{validator: validator, sites: sites, logger: log, now: time.Now}
}

// Activate binds a site hash to the license. Re-activating a site the license
// already holds refreshes its metadata and does not count against the site cap.
func (r *SiteRegistry) Activate(ctx context.Context, in ActivateInput) (*Activation, error) {
	v, err := r.validator.Validate(ctx, in.LicenseKey)
	if err != nil {
		return nil, err
	}
	siteHash := strings.TrimSpace(in.SiteHash)
	if siteHash == "" {
		return nil, shared.NewDomainError("INVALID_SITE_HASH", "Site hash is required")
	}
	log := logger.Enrich(ctx, r.logger).With(zap.String("site_hash", siteHash))

	active, err := r.sites.CountActiveByLicense(ctx, v.License.ID)
	if err != nil {
		log.Error("Failed to count active sites", zap.Error(err))
		return nil, licensing.ServerError("failed to count active sites", err)
	}

	existing, err := r.sites.FindByHash(ctx, siteHash)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		log.Error("Failed to look up site", zap.Error(err))
		return nil, licensing.ServerError("failed to look up site", err)
	}

	reactivation := existing != nil && existing.ActiveUnder(v.License.ID)
	if !reactivation && v.Limits.SiteLimitReached(active) {
		return nil, licensing.Errorf(licensing.KindMaxSitesReached,
			"License allows %d active site(s)", *v.Limits.MaxSites).
			WithDetail("max_sites", *v.Limits.MaxSites).
			WithDetail("active_sites", active)
	}
	if existing != nil && existing.HeldByOther(v.License.ID) {
		return nil, licensing.NewError(licensing.KindLicenseAlreadyActivated,
			"Site is already activated under another license")
	}

	details := licensing.SiteDetails{URL: in.SiteURL, Name: in.SiteName, Fingerprint: in.Fingerprint}
	site := existing
	if site == nil {
		site, err = licensing.NewSite(v.License.ID, siteHash, details, r.now())
		if err != nil {
			return nil, err
		}
	} else {
		site.Activate(v.License.ID, details, r.now())
	}

	if err := r.sites.Save(ctx, site); err != nil {
		if errors.Is(err, licensing.ErrLicenseAlreadyActivated) {
			log.Info("Site was claimed by another license during activation")
			return nil, err
		}
		log.Error("Failed to save site binding", zap.Error(err))
		return nil, licensing.ServerError("failed to save site", err)
	}

	log.Info("Site activated",
		zap.String("license_id", v.License.ID.String()),
		zap.Bool("reactivation", reactivation),
	)
	return &Activation{License: v.License, Limits: v.Limits, Site: site}, nil
}

// Deactivate releases a site held by the license. Deactivating a site the
// license does not hold succeeds without changes.
func (r *SiteRegistry) Deactivate(ctx context.Context, licenseKey, siteHash string) error {
	v, err := r.validator.Validate(ctx, licenseKey)
	if err != nil {
		return err
	}
	siteHash = strings.TrimSpace(siteHash)
	log := logger.Enrich(ctx, r.logger).With(zap.String("site_hash", siteHash))

	site, err := r.sites.FindByHash(ctx, siteHash)
	if errors.Is(err, shared.ErrNotFound) {
		log.Debug("Deactivate: site not found, nothing to do")
		return nil
	}
	if err != nil {
		log.Error("Failed to look up site", zap.Error(err))
		return licensing.ServerError("failed to look up site", err)
	}
	if !site.ActiveUnder(v.License.ID) {
		log.Debug("Deactivate: site not active under license, nothing to do")
		return nil
	}

	site.Deactivate(r.now())
	if err := r.sites.Save(ctx, site); err != nil {
		log.Error("Failed to save site binding", zap.Error(err))
		return licensing.ServerError("failed to save site", err)
	}
	log.Info("Site deactivated", zap.String("license_id", v.License.ID.String()))
	return nil
}

// Transfer releases the old site, ignoring any failure, then activates the new one
func (r *SiteRegistry) Transfer(ctx context.Context, in TransferInput) (*Activation, error) {
	if strings.TrimSpace(in.OldSiteHash) != "" {
		if err := r.Deactivate(ctx, in.LicenseKey, in.OldSiteHash); err != nil {
			logger.Enrich(ctx, r.logger).Warn("Transfer: failed to release old site, continuing",
				zap.String("old_site_hash", in.OldSiteHash),
				zap.Error(err),
			)
		}
	}
	return r.Activate(ctx, ActivateInput{
		LicenseKey:  in.LicenseKey,
		SiteHash:    in.NewSiteHash,
		SiteURL:     in.NewURL,
		SiteName:    in.NewName,
		Fingerprint: in.NewFingerprint,
	})
}

// SetSiteQuota sets or clears the credit cap of one site. Agency plans only.
func (r *SiteRegistry) SetSiteQuota(ctx context.Context, licenseKey, siteHash string, quotaLimit *int64) (*licensing.Site, error) {
	v, err := r.validator.Validate(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	if !v.License.Plan.SupportsSiteQuotas() {
		return nil, licensing.Errorf(licensing.KindPlanNotSupported,
			"Per-site quotas require the %s plan", licensing.PlanAgency).
			WithDetail("plan", string(v.License.Plan))
	}

	site, err := r.sites.FindByHash(ctx, strings.TrimSpace(siteHash))
	if errors.Is(err, shared.ErrNotFound) {
		return nil, ErrSiteNotFound
	}
	if err != nil {
		return nil, licensing.ServerError("failed to look up site", err)
	}
	if !site.ActiveUnder(v.License.ID) {
		return nil, ErrSiteNotFound
	}

	if err := site.SetQuotaLimit(quotaLimit); err != nil {
		return nil, err
	}
	if err := r.sites.Save(ctx, site); err != nil {
		logger.Enrich(ctx, r.logger).Error("Failed to save site quota", zap.Error(err))
		return nil, licensing.ServerError("failed to save site", err)
	}
	return site, nil
}

// ListSites returns the sites of a license, newest activation first
func (r *SiteRegistry) ListSites(ctx context.Context, licenseKey string, activeOnly bool) ([]*licensing.Site, error) {
	v, err := r.validator.Validate(ctx, licenseKey)
	if err != nil {
		return nil, err
	}
	sites, err := r.sites.FindByLicense(ctx, v.License.ID, activeOnly)
	if err != nil {
		return nil, licensing.ServerError("failed to list sites", err)
	}
	return sites, nil
}
