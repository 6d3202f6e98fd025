package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/tests/testutil"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGormSiteRepository_SaveUpsertsByHash(t *testing.T) {
	repo := NewGormSiteRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()
	licenseA, licenseB := uuid.New(), uuid.New()

	site := testutil.NewSite(t, licenseA, "hash-1")
	require.NoError(t, repo.Save(ctx, site))

	// Re-saving under the same license updates in place
	site.SiteName = "Renamed"
	require.NoError(t, repo.Save(ctx, site))

	site.Deactivate(time.Now())
	require.NoError(t, repo.Save(ctx, site))

	// A released hash can be taken by an independently built binding
	other := testutil.NewSite(t, licenseB, "hash-1")
	require.NoError(t, repo.Save(ctx, other))

	found, err := repo.FindByHash(ctx, "hash-1")
	require.NoError(t, err)
	assert.Equal(t, site.ID, found.ID, "row keeps its original ID")
	assert.Equal(t, licenseB, found.LicenseID)
	assert.True(t, found.IsActive())

	_, err = repo.FindByHash(ctx, "missing")
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestGormSiteRepository_SaveKeepsActiveBindingOfAnotherLicense(t *testing.T) {
	repo := NewGormSiteRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()
	holder, intruder := uuid.New(), uuid.New()

	require.NoError(t, repo.Save(ctx, testutil.NewSite(t, holder, "shared-hash")))

	claim := testutil.NewSite(t, intruder, "shared-hash")
	claim.SiteURL = "https://intruder.example.test"
	err := repo.Save(ctx, claim)
	assert.ErrorIs(t, err, licensing.ErrLicenseAlreadyActivated)

	found, err := repo.FindByHash(ctx, "shared-hash")
	require.NoError(t, err)
	assert.Equal(t, holder, found.LicenseID)
	assert.True(t, found.IsActive())
	assert.Equal(t, "https://shared-hash.example.test", found.SiteURL)
}

func TestGormSiteRepository_CountAndList(t *testing.T) {
	repo := NewGormSiteRepository(testutil.NewSQLiteDB(t))
	ctx := context.Background()
	licenseID := uuid.New()

	for _, hash := range []string{"a", "b", "c"} {
		require.NoError(t, repo.Save(ctx, testutil.NewSite(t, licenseID, hash)))
		time.Sleep(time.Millisecond)
	}
	require.NoError(t, repo.Save(ctx, testutil.NewSite(t, uuid.New(), "other")))

	b, err := repo.FindByHash(ctx, "b")
	require.NoError(t, err)
	b.Deactivate(time.Now())
	require.NoError(t, repo.Save(ctx, b))

	count, err := repo.CountActiveByLicense(ctx, licenseID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	active, err := repo.FindByLicense(ctx, licenseID, true)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "c", active[0].SiteHash)
	assert.Equal(t, "a", active[1].SiteHash)

	all, err := repo.FindByLicense(ctx, licenseID, false)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stored, err := repo.FindByHash(ctx, "b")
	require.NoError(t, err)
	assert.Equal(t, licensing.SiteStatusDeactivated, stored.Status)
	assert.NotNil(t, stored.DeactivatedAt)
}

func TestGormSiteRepository_CountSurfacesStoreErrors(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := NewGormSiteRepository(mockDB.DB)

	mockDB.Mock.ExpectQuery(`SELECT count\(\*\) FROM "sites"`).
		WillReturnError(errors.New("connection reset"))

	_, err := repo.CountActiveByLicense(context.Background(), uuid.New())
	assert.EqualError(t, err, "connection reset")
	mockDB.ExpectationsWereMet(t)
}

func TestGormSiteRepository_FindByHashQuery(t *testing.T) {
	mockDB := testutil.NewMockDB(t)
	repo := NewGormSiteRepository(mockDB.DB)

	mockDB.Mock.ExpectQuery(`SELECT \* FROM "sites" WHERE site_hash = \$1`).
		WillReturnRows(sqlmock.NewRows([]string{"id", "site_hash", "license_id", "status"}).
			AddRow(uuid.New().String(), "h", uuid.New().String(), "active"))

	site, err := repo.FindByHash(context.Background(), "h")
	require.NoError(t, err)
	assert.True(t, site.IsActive())
	mockDB.ExpectationsWereMet(t)
}
