package persistence

import (
	"context"
	"testing"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormLicenseRepository_SaveAndFind(t *testing.T) {
	repo := NewGormLicenseRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	license := testutil.NewLicense(t, licensing.PlanAgency)
	three := 3
	require.NoError(t, license.SetMaxSitesOverride(&three))
	require.NoError(t, repo.Save(ctx, license))

	t.Run("finds by key", func(t *testing.T) {
		found, err := repo.FindByKey(ctx, license.Key)
		require.NoError(t, err)
		assert.Equal(t, license.ID, found.ID)
		assert.Equal(t, licensing.PlanAgency, found.Plan)
		assert.Equal(t, licensing.LicenseStatusActive, found.Status)
		require.NotNil(t, found.MaxSitesOverride)
		assert.Equal(t, 3, *found.MaxSitesOverride)
	})

	t.Run("key lookup is case sensitive", func(t *testing.T) {
		_, err := repo.FindByKey(ctx, "lic-"+license.Key[4:])
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("empty key is not found", func(t *testing.T) {
		_, err := repo.FindByKey(ctx, "  ")
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})

	t.Run("finds by id", func(t *testing.T) {
		found, err := repo.FindByID(ctx, license.ID)
		require.NoError(t, err)
		assert.Equal(t, license.Key, found.Key)

		_, err = repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormLicenseRepository_UpdatesExisting(t *testing.T) {
	repo := NewGormLicenseRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	license := testutil.NewLicense(t, licensing.PlanFree)
	require.NoError(t, repo.Save(ctx, license))

	require.NoError(t, license.ChangePlan(licensing.PlanPro))
	license.LinkStripe("cus_abc", "sub_def")
	require.NoError(t, license.Suspend())
	require.NoError(t, repo.Save(ctx, license))

	found, err := repo.FindByStripeSubscriptionID(ctx, "sub_def")
	require.NoError(t, err)
	assert.Equal(t, license.ID, found.ID)
	assert.Equal(t, licensing.PlanPro, found.Plan)
	assert.Equal(t, licensing.LicenseStatusSuspended, found.Status)

	found, err = repo.FindByStripeCustomerID(ctx, "cus_abc")
	require.NoError(t, err)
	assert.Equal(t, license.ID, found.ID)

	_, err = repo.FindByStripeCustomerID(ctx, "")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormLicenseRepository_UnlinkedLicensesDoNotCollide(t *testing.T) {
	repo := NewGormLicenseRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Save(ctx, testutil.NewLicense(t, licensing.PlanFree)))
	}
	_, err := repo.FindByStripeCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}
