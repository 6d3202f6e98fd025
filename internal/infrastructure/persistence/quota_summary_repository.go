package persistence

import (
	"context"
	"time"

	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormQuotaSummaryRepository implements billing.QuotaSummaryRepository
type GormQuotaSummaryRepository struct {
	db *gorm.DB
}

// NewGormQuotaSummaryRepository creates a new quota summary repository
func NewGormQuotaSummaryRepository(db *gorm.DB) *GormQuotaSummaryRepository {
	return &GormQuotaSummaryRepository{db: db}
}

// Find returns the summary for a license and period start
func (r *GormQuotaSummaryRepository) Find(ctx context.Context, licenseID uuid.UUID, periodStart time.Time) (*billing.QuotaSummary, error) {
	var model models.QuotaSummaryModel
	err := r.db.WithContext(ctx).
		Where("license_id = ? AND period_start = ?", licenseID, periodStart.UTC()).
		First(&model).Error
	if err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}

// Upsert writes the ledger total for a license and period. The stored total
// only moves up: the ledger is append-only, so a smaller value comes from a
// writer that summed before a concurrent append and is discarded.
func (r *GormQuotaSummaryRepository) Upsert(ctx context.Context, summary *billing.QuotaSummary) error {
	updates := append(clause.AssignmentColumns([]string{"period_end", "updated_at"}), clause.Assignment{
		Column: clause.Column{Name: "credits_used"},
		Value: gorm.Expr("CASE WHEN excluded.credits_used > quota_summaries.credits_used " +
			"THEN excluded.credits_used ELSE quota_summaries.credits_used END"),
	})
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "license_id"}, {Name: "period_start"}},
		DoUpdates: updates,
	}).Create(models.QuotaSummaryModelFromDomain(summary)).Error
}
