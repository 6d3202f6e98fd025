package persistence

import (
	"context"
	"strings"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLicenseRepository implements licensing.LicenseRepository
type GormLicenseRepository struct {
	db *gorm.DB
}

// NewGormLicenseRepository creates a new license repository
func NewGormLicenseRepository(db *gorm.DB) *GormLicenseRepository {
	return &GormLicenseRepository{db: db}
}

// FindByKey looks a license up by its exact, case-sensitive key
func (r *GormLicenseRepository) FindByKey(ctx context.Context, key string) (*licensing.License, error) {
	if strings.TrimSpace(key) == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(ctx, "license_key = ?", key)
}

// FindByID looks a license up by ID
func (r *GormLicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*licensing.License, error) {
	return r.first(ctx, "id = ?", id)
}

// FindByStripeCustomerID looks a license up by Stripe customer
func (r *GormLicenseRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*licensing.License, error) {
	if customerID == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(ctx, "stripe_customer_id = ?", customerID)
}

// FindByStripeSubscriptionID looks a license up by Stripe subscription
func (r *GormLicenseRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*licensing.License, error) {
	if subscriptionID == "" {
		return nil, shared.ErrNotFound
	}
	return r.first(ctx, "stripe_subscription_id = ?", subscriptionID)
}

// Save inserts or updates a license by ID
func (r *GormLicenseRepository) Save(ctx context.Context, license *licensing.License) error {
	return r.db.WithContext(ctx).Save(models.LicenseModelFromDomain(license)).Error
}

func (r *GormLicenseRepository) first(ctx context.Context, query string, args ...any) (*licensing.License, error) {
	var model models.LicenseModel
	if err := r.db.WithContext(ctx).Where(query, args...).First(&model).Error; err != nil {
		return nil, translate(err)
	}
	return model.ToDomain(), nil
}
