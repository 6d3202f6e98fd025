package persistence

import (
	"context"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormUsageRecordRepository implements billing.UsageRecordRepository
type GormUsageRecordRepository struct {
	db *gorm.DB
}

// NewGormUsageRecordRepository creates a new usage ledger repository
func NewGormUsageRecordRepository(db *gorm.DB) *GormUsageRecordRepository {
	return &GormUsageRecordRepository{db: db}
}

// Save appends one record
func (r *GormUsageRecordRepository) Save(ctx context.Context, record *billing.UsageRecord) error {
	return r.db.WithContext(ctx).Create(models.UsageRecordModelFromDomain(record)).Error
}

// SumByLicense sums credits for a license over [start, end)
func (r *GormUsageRecordRepository) SumByLicense(ctx context.Context, licenseID uuid.UUID, start, end time.Time) (int64, error) {
	return r.sum(ctx, r.db.Where("license_id = ?", licenseID), start, end)
}

// SumBySite sums credits for one site of a license over [start, end)
func (r *GormUsageRecordRepository) SumBySite(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) (int64, error) {
	return r.sum(ctx, r.db.Where("license_id = ? AND site_hash = ?", licenseID, siteHash), start, end)
}

func (r *GormUsageRecordRepository) sum(ctx context.Context, scope *gorm.DB, start, end time.Time) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecordModel{}).
		Where(scope).
		Where("recorded_at >= ? AND recorded_at < ?", start.UTC(), end.UTC()).
		Select("COALESCE(SUM(credits), 0)").
		Scan(&total).Error
	return total, err
}

type groupRow struct {
	GroupKey     string
	CreditsUsed  int64
	LastActivity aggregateTime
}

// AggregateByUser groups a site's rows by end user, highest spend first.
// uuid.Nil matches rows of every license.
func (r *GormUsageRecordRepository) AggregateByUser(ctx context.Context, licenseID uuid.UUID, siteHash string, start, end time.Time) ([]billing.UserUsage, error) {
	scope := r.db.Where("site_hash = ? AND user_id <> ''", siteHash)
	if licenseID != uuid.Nil {
		scope = scope.Where("license_id = ?", licenseID)
	}
	rows, err := r.group(ctx, "user_id", scope, start, end)
	if err != nil {
		return nil, err
	}
	out := make([]billing.UserUsage, len(rows))
	for i, row := range rows {
		out[i] = billing.UserUsage{UserID: row.GroupKey, CreditsUsed: row.CreditsUsed, LastActivity: row.LastActivity.Time}
	}
	return out, nil
}

// AggregateBySite groups a license's rows by site, highest spend first
func (r *GormUsageRecordRepository) AggregateBySite(ctx context.Context, licenseID uuid.UUID, start, end time.Time) ([]billing.SiteUsage, error) {
	rows, err := r.group(ctx, "site_hash", r.db.Where("license_id = ? AND site_hash <> ''", licenseID), start, end)
	if err != nil {
		return nil, err
	}
	out := make([]billing.SiteUsage, len(rows))
	for i, row := range rows {
		out[i] = billing.SiteUsage{SiteHash: row.GroupKey, CreditsUsed: row.CreditsUsed, LastActivity: row.LastActivity.Time}
	}
	return out, nil
}

func (r *GormUsageRecordRepository) group(ctx context.Context, column string, scope *gorm.DB, start, end time.Time) ([]groupRow, error) {
	var rows []groupRow
	err := r.db.WithContext(ctx).
		Model(&models.UsageRecordModel{}).
		Select(column+" AS group_key, COALESCE(SUM(credits), 0) AS credits_used, MAX(recorded_at) AS last_activity").
		Where(scope).
		Where("recorded_at >= ? AND recorded_at < ?", start.UTC(), end.UTC()).
		Group(column).
		Order("credits_used DESC, " + column).
		Scan(&rows).Error
	return rows, err
}

// aggregateTime scans MAX(timestamp) results. PostgreSQL returns a
// time.Time; SQLite loses the column type on aggregates and returns text.
type aggregateTime struct {
	time.Time
}

var aggregateTimeLayouts = []string{
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02T15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	time.RFC3339Nano,
}

// Scan implements sql.Scanner
func (t *aggregateTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time = time.Time{}
		return nil
	case time.Time:
		t.Time = v.UTC()
		return nil
	case []byte:
		return t.parse(string(v))
	case string:
		return t.parse(v)
	}
	return fmt.Errorf("cannot scan %T into aggregate time", src)
}

// Value implements driver.Valuer
func (t aggregateTime) Value() (driver.Value, error) {
	return t.Time, nil
}

func (t *aggregateTime) parse(s string) error {
	for _, layout := range aggregateTimeLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("cannot parse aggregate time %q", s)
}
