package licensing

import (
	"context"

	"github.com/google/uuid"
)

// LicenseRepository persists licenses. Lookups return shared.ErrNotFound when absent.
type LicenseRepository interface {
	// FindByKey looks a license up by its exact key
	FindByKey(ctx context.Context, key string) (*License, error)

	// FindByID looks a license up by ID
	FindByID(ctx context.Context, id uuid.UUID) (*License, error)

	// FindByStripeCustomerID looks a license up by payment-provider customer
	FindByStripeCustomerID(ctx context.Context, customerID string) (*License, error)

	// FindByStripeSubscriptionID looks a license up by payment-provider subscription
	FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*License, error)

	// Save inserts or updates a license
	Save(ctx context.Context, license *License) error
}

// SiteRepository persists site bindings. Lookups return shared.ErrNotFound when absent.
type SiteRepository interface {
	// FindByHash looks a binding up by site hash, whatever its license or status
	FindByHash(ctx context.Context, siteHash string) (*Site, error)

	// FindByLicense lists bindings of a license, newest activation first
	FindByLicense(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]*Site, error)

	// CountActiveByLicense counts active bindings of a license
	CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error)

	// Save upserts a binding keyed by site hash. It must not take over a
	// binding that is active under another license; that case returns
	// ErrLicenseAlreadyActivated.
	Save(ctx context.Context, site *Site) error
}
