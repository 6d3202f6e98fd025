package licensing

import (
	"context"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
)

type mockLicenseRepository struct {
	mock.Mock
}

func (m *mockLicenseRepository) FindByKey(ctx context.Context, key string) (*licensing.License, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*licensing.License), args.Error(1)
}

func (m *mockLicenseRepository) FindByID(ctx context.Context, id uuid.UUID) (*licensing.License, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*licensing.License), args.Error(1)
}

func (m *mockLicenseRepository) FindByStripeCustomerID(ctx context.Context, customerID string) (*licensing.License, error) {
	args := m.Called(ctx, customerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*licensing.License), args.Error(1)
}

func (m *mockLicenseRepository) FindByStripeSubscriptionID(ctx context.Context, subscriptionID string) (*licensing.License, error) {
	args := m.Called(ctx, subscriptionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*licensing.License), args.Error(1)
}

func (m *mockLicenseRepository) Save(ctx context.Context, license *licensing.License) error {
	args := m.Called(ctx, license)
	return args.Error(0)
}

type mockSiteRepository struct {
	mock.Mock
}

func (m *mockSiteRepository) FindByHash(ctx context.Context, siteHash string) (*licensing.Site, error) {
	args := m.Called(ctx, siteHash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*licensing.Site), args.Error(1)
}

func (m *mockSiteRepository) FindByLicense(ctx context.Context, licenseID uuid.UUID, activeOnly bool) ([]*licensing.Site, error) {
	args := m.Called(ctx, licenseID, activeOnly)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*licensing.Site), args.Error(1)
}

func (m *mockSiteRepository) CountActiveByLicense(ctx context.Context, licenseID uuid.UUID) (int64, error) {
	args := m.Called(ctx, licenseID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockSiteRepository) Save(ctx context.Context, site *licensing.Site) error {
	args := m.Called(ctx, site)
	return args.Error(0)
}
