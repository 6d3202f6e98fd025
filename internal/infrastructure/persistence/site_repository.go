package persistence

import (
	"context"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormSiteRepository implements licensing.SiteRepository
type GormSiteRepository struct {
	db *gorm.DB
}

// NewGormSiteRepository creates a new site repository
func NewGormSiteRepository(db *gorm.DB) *GormSiteRepository {
	return &GormSiteRepository{db: db}
}

// FindByHash looks a binding up by site hash
func (r *GormSiteRepository) FindByHash(ctx context.Context, siteHash string) (*licensing.Site, error) {
	var model models.SiteModel
	if err := r.db.WithContext(ctx).Where("site_hash = ?", siteHash).First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// FindByLicense lists bindings of a license, newest activation first
func (r *GormSiteRepository) FindByLicense(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]*licensing.Site, error) {
	query := r.db.WithContext(ctx).Where("license_id = ?", licenseID)
	if activeOnly {
		query = query.Where("status = ?", licensing.SiteStatusActive)
	}

	var rows []models.SiteModel
	if err := query.Order("activated_at DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	sites := make([]*licensing.Site, len(rows))
	for i := range rows {
		sites[i] = rows[i].ToDomain()
	}
	return sites, nil
}

// CountActiveByLicense counts active bindings of a license
func (r *GormSiteRepository) CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.SiteModel{}).
		Where("license_id = ? AND status = ?", licenseID, licensing.SiteStatusActive).
		Count(&count).Error
	return count, err
}

// Save upserts a binding keyed by site hash. Two first-time activations of the
// same hash converge on one row; the row keeps its original ID. A row that is
// active under another license is left untouched and Save returns a
// LICENSE_ALREADY_ACTIVATED error.
func (r *GormSiteRepository) Save(ctx context.Context, site *licensing.Site) error {
	model := models.SiteModelFromDomain(site)
	result := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "site_hash"}},
		Where: clause.Where{Exprs: []clause.Expression{
			clause.Expr{
				SQL:  "sites.status <> ? OR sites.license_id = excluded.license_id",
				Vars: []any{string(licensing.SiteStatusActive)},
			},
		}},
		DoUpdates: clause.AssignmentColumns([]string{
			"license_id",
			"site_url",
			"site_name",
			"fingerprint",
			"status",
			"quota_limit",
			"activated_at",
			"deactivated_at",
			"last_activity_at",
			"updated_at",
		}),
	}).Create(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return licensing.NewError(licensing.KindLicenseAlreadyActivated,
			"Site is already activated under another license")
	}
	return nil
}
