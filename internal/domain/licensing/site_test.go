package licensing

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSite(t *testing.T) {
	licenseID := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	t.Run("creates active binding", func(t *testing.T) {
		s, err := NewSite(licenseID, " abc123 ", SiteDetails{URL: "https://example.com", Name: "Example", Fingerprint: "fp"}, now)

		require.NoError(t, err)
		assert.Equal(t, "abc123", s.SiteHash)
		assert.Equal(t, licenseID, s.LicenseID)
		assert.Equal(t, "https://example.com", s.SiteURL)
		assert.Equal(t, "Example", s.SiteName)
		assert.Equal(t, "fp", s.Fingerprint)
		assert.True(t, s.IsActive())
		assert.Equal(t, now, s.ActivatedAt)
		require.NotNil(t, s.LastActivityAt)
		assert.Nil(t, s.DeactivatedAt)
	})

	t.Run("rejects empty hash", func(t *testing.T) {
		_, err := NewSite(licenseID, "  ", SiteDetails{}, now)
		assert.Error(t, err)
	})

	t.Run("rejects nil license", func(t *testing.T) {
		_, err := NewSite(uuid.Nil, "abc", SiteDetails{}, now)
		assert.Error(t, err)
	})
}

func TestSite_Bindings(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSite(a, "site-1", SiteDetails{URL: "https://one.test"}, now)
	require.NoError(t, err)

	assert.True(t, s.ActiveUnder(a))
	assert.False(t, s.HeldByOther(a))
	assert.True(t, s.HeldByOther(b))

	later := now.Add(time.Hour)
	s.Deactivate(later)
	assert.False(t, s.IsActive())
	require.NotNil(t, s.DeactivatedAt)
	assert.Equal(t, later, *s.DeactivatedAt)
	assert.False(t, s.HeldByOther(b), "deactivated sites can be rebound")

	limit := int64(100)
	require.NoError(t, s.SetQuotaLimit(&limit))

	s.Activate(b, SiteDetails{Name: "Moved"}, later.Add(time.Hour))
	assert.True(t, s.ActiveUnder(b))
	assert.Nil(t, s.DeactivatedAt)
	assert.Nil(t, s.QuotaLimit, "rebinding drops the previous license's site quota")
	assert.Equal(t, "https://one.test", s.SiteURL)
	assert.Equal(t, "Moved", s.SiteName)
	assert.Equal(t, later.Add(time.Hour), s.ActivatedAt)
}

func TestSite_ReactivateSameLicenseRefreshesMetadata(t *testing.T) {
	id := uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	s, err := NewSite(id, "site-1", SiteDetails{URL: "https://old.test"}, now)
	require.NoError(t, err)
	limit := int64(10)
	require.NoError(t, s.SetQuotaLimit(&limit))

	s.Activate(id, SiteDetails{URL: "https://new.test"}, now.Add(time.Minute))

	assert.Equal(t, "https://new.test", s.SiteURL)
	assert.Equal(t, now, s.ActivatedAt)
	require.NotNil(t, s.QuotaLimit)
	assert.Equal(t, int64(10), *s.QuotaLimit)
}

func TestSite_SetQuotaLimit(t *testing.T) {
	s, err := NewSite(uuid.New(), "site-1", SiteDetails{}, time.Now())
	require.NoError(t, err)

	negative := int64(-1)
	assert.Error(t, s.SetQuotaLimit(&negative))

	limit := int64(25)
	require.NoError(t, s.SetQuotaLimit(&limit))
	limit = 30
	assert.Equal(t, int64(25), *s.QuotaLimit)

	require.NoError(t, s.SetQuotaLimit(nil))
	assert.Nil(t, s.QuotaLimit)
}
