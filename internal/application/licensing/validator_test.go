package licensing

import (
	"context"
	"errors"
	"testing"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()

	t.Run("active license returns plan limits", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		license := testutil.NewLicense(t, licensing.PlanPro)
		repo.On("FindByKey", ctx, license.Key).Return(license, nil)

		v := NewValidator(repo, nil, nil)
		res, err := v.Validate(ctx, "  "+license.Key+"\n")

		require.NoError(t, err)
		assert.Same(t, license, res.License)
		assert.Equal(t, int64(1000), res.Limits.Credits)
		require.NotNil(t, res.Limits.MaxSites)
		assert.Equal(t, 1, *res.Limits.MaxSites)
		repo.AssertExpectations(t)
	})

	t.Run("max sites override wins", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		license := testutil.NewLicense(t, licensing.PlanPro)
		three := 3
		require.NoError(t, license.SetMaxSitesOverride(&three))
		repo.On("FindByKey", ctx, license.Key).Return(license, nil)

		res, err := NewValidator(repo, nil, nil).Validate(ctx, license.Key)
		require.NoError(t, err)
		assert.Equal(t, 3, *res.Limits.MaxSites)
	})

	t.Run("configured plan table is used", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		license := testutil.NewLicense(t, licensing.PlanFree)
		repo.On("FindByKey", ctx, license.Key).Return(license, nil)
		table := licensing.DefaultPlanTable().With(licensing.PlanFree, licensing.PlanLimits{Credits: 75})

		res, err := NewValidator(repo, table, nil).Validate(ctx, license.Key)
		require.NoError(t, err)
		assert.Equal(t, int64(75), res.Limits.Credits)
		assert.True(t, res.Limits.Unbounded())
	})

	t.Run("empty key", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		_, err := NewValidator(repo, nil, nil).Validate(ctx, "   ")

		assert.ErrorIs(t, err, licensing.ErrInvalidLicense)
		repo.AssertNotCalled(t, "FindByKey", mock.Anything, mock.Anything)
	})

	t.Run("unknown key", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		repo.On("FindByKey", ctx, "LIC-nope").Return(nil, shared.ErrNotFound)

		_, err := NewValidator(repo, nil, nil).Validate(ctx, "LIC-nope")
		assert.ErrorIs(t, err, licensing.ErrInvalidLicense)
		assert.Equal(t, 401, licensing.AsError(err).StatusCode())
	})

	t.Run("expired carries the license", func(t *testing.T) {
		repo := new(mockLicenseRepository)
		license := testutil.NewLicense(t, licensing.PlanPro)
		require.NoError(t, license.Expire())
		repo.On("FindByKey", ctx, license.Key).Return(license, nil)

		res, err := NewValidator(repo, nil, nil).Validate(ctx, license.Key)
		assert.Nil(t, res)
		le := licensing.AsError(err)
		assert.Equal(t, licensing.KindLicenseExpired, le.Kind)
		assert.Equal(t, 410, le.StatusCode())
		assert.Same(t, license, le.License)
	})

	for _, status := range []licensing.LicenseStatus{licensing.LicenseStatusSuspended, licensing.LicenseStatusCancelled} {
		t.Run(string(status)+" is suspended", func(t *testing.T) {
			repo := new(mockLicenseRepository)
			license := testutil.NewLicense(t, licensing.PlanPro)
			license.Status = status
			repo.On("FindByKey", ctx, license.Key).Return(license, nil)

			_, err := NewValidator(repo, nil, nil).Validate(ctx, license.Key)
			le := licensing.AsError(err)
			assert.Equal(t, licensing.KindLicenseSuspended, le.Kind)
			assert.Equal(t, 403, le.StatusCode())
			assert.Same(t, license, le.License)
			assert.Equal(t, string(status), le.Details["status"])
		})
	}

	t.Run("store failure is a server error and logged", func(t *testing.T) {
		core, logs := observer.New(zapcore.ErrorLevel)
		repo := new(mockLicenseRepository)
		repo.On("FindByKey", ctx, "LIC-0123456789").Return(nil, errors.New("connection refused"))

		_, err := NewValidator(repo, nil, zap.New(core)).Validate(ctx, "LIC-0123456789")
		assert.ErrorIs(t, err, licensing.ErrServerError)
		require.Equal(t, 1, logs.Len())
		assert.Equal(t, "LIC-0123...", logs.All()[0].ContextMap()["license"], "key is redacted")
	})
}

func TestValidator_LookupIgnoresStatus(t *testing.T) {
	ctx := context.Background()
	repo := new(mockLicenseRepository)
	license := testutil.NewLicense(t, licensing.PlanPro)
	license.Cancel()
	repo.On("FindByKey", ctx, license.Key).Return(license, nil)

	got, err := NewValidator(repo, nil, nil).Lookup(ctx, license.Key)
	require.NoError(t, err)
	assert.Same(t, license, got)
}
