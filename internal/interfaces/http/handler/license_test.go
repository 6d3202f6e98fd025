package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLicenseHandler_Validate(t *testing.T) {
	f := newAPIFixture(t)
	license := f.license(t, licensing.PlanPro)

	t.Run("key in body", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/validate", map[string]string{"license_key": license.Key}, "")

		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		resp := testutil.DecodeData[ValidateLicenseResponse](t, w)
		assert.Equal(t, license.Key, resp.License.LicenseKey)
		assert.Equal(t, "pro", resp.License.Plan)
		assert.Equal(t, int64(1000), resp.Limits.Credits)
		assert.NotContains(t, w.Body.String(), "password_hash")
	})

	t.Run("key in header without body", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/validate", nil, license.Key)
		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("missing key", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/validate", nil, "")
		testutil.AssertErrorResponse(t, w, http.StatusUnauthorized, "INVALID_LICENSE")
	})

	t.Run("unknown key", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/validate", nil, "LIC-00000000000000000000000000000000")
		testutil.AssertErrorResponse(t, w, http.StatusUnauthorized, "INVALID_LICENSE")
	})
}

func TestLicenseHandler_Validate_StatusErrors(t *testing.T) {
	f := newAPIFixture(t)
	expired := f.license(t, licensing.PlanPro)
	require.NoError(t, expired.Expire())
	require.NoError(t, f.licenses.Save(context.Background(), expired))
	suspended := f.license(t, licensing.PlanPro)
	require.NoError(t, suspended.Suspend())
	require.NoError(t, f.licenses.Save(context.Background(), suspended))

	w := f.do(t, http.MethodPost, "/api/v1/license/validate", nil, expired.Key)
	testutil.AssertErrorResponse(t, w, http.StatusGone, "LICENSE_EXPIRED")

	w = f.do(t, http.MethodPost, "/api/v1/license/validate", nil, suspended.Key)
	env := testutil.AssertErrorResponse(t, w, http.StatusForbidden, "LICENSE_SUSPENDED")
	assert.Equal(t, "suspended", env.Error.Details["status"])
}

func TestLicenseHandler_Activate(t *testing.T) {
	f := newAPIFixture(t)
	license := f.license(t, licensing.PlanFree)

	w := f.do(t, http.MethodPost, "/api/v1/license/activate", map[string]string{
		"license_key": license.Key,
		"site_hash":   "site-one",
		"site_url":    "https://one.example.test",
		"site_name":   "One",
	}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := testutil.DecodeData[ActivationResponse](t, w)
	assert.Equal(t, "site-one", resp.Site.SiteHash)
	assert.Equal(t, "active", resp.Site.Status)
	assert.Equal(t, "https://one.example.test", resp.Site.SiteURL)

	t.Run("reactivating the same site is idempotent", func(t *testing.T) {
		f.activate(t, license.Key, "site-one")
	})

	t.Run("second site exceeds the free cap", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/activate", map[string]string{"site_hash": "site-two"}, license.Key)
		env := testutil.AssertErrorResponse(t, w, http.StatusForbidden, "MAX_SITES_REACHED")
		assert.Equal(t, float64(1), env.Error.Details["max_sites"])
	})

	t.Run("site held by another license", func(t *testing.T) {
		other := f.license(t, licensing.PlanPro)
		w := f.do(t, http.MethodPost, "/api/v1/license/activate", map[string]string{"site_hash": "site-one"}, other.Key)
		testutil.AssertErrorResponse(t, w, http.StatusConflict, "LICENSE_ALREADY_ACTIVATED")
	})

	t.Run("site hash is required", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/activate", map[string]string{"license_key": license.Key}, "")
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})
}

func TestLicenseHandler_DeactivateAndTransfer(t *testing.T) {
	f := newAPIFixture(t)
	license := f.license(t, licensing.PlanPro)
	f.activate(t, license.Key, "old-site")

	w := f.do(t, http.MethodPost, "/api/v1/license/transfer", map[string]string{
		"old_site_hash": "old-site",
		"new_site_hash": "new-site",
		"new_url":       "https://new.example.test",
	}, license.Key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "new-site", testutil.DecodeData[ActivationResponse](t, w).Site.SiteHash)

	w = f.do(t, http.MethodGet, "/api/v1/license/sites?active=true", nil, license.Key)
	require.Equal(t, http.StatusOK, w.Code)
	sites := testutil.DecodeData[[]SiteResponse](t, w)
	require.Len(t, sites, 1)
	assert.Equal(t, "new-site", sites[0].SiteHash)

	w = f.do(t, http.MethodPost, "/api/v1/license/deactivate", map[string]string{"site_hash": "new-site"}, license.Key)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, testutil.DecodeData[DeactivationResponse](t, w).Deactivated)

	t.Run("deactivating an unknown site succeeds", func(t *testing.T) {
		w := f.do(t, http.MethodPost, "/api/v1/license/deactivate", map[string]string{"site_hash": "never-seen"}, license.Key)
		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestLicenseHandler_SetSiteQuota(t *testing.T) {
	f := newAPIFixture(t)
	agency := f.license(t, licensing.PlanAgency)
	f.activate(t, agency.Key, "client-a")

	w := f.do(t, http.MethodPut, "/api/v1/license/sites/client-a/quota", map[string]any{"quota_limit": 25}, agency.Key)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	site := testutil.DecodeData[SiteResponse](t, w)
	require.NotNil(t, site.QuotaLimit)
	assert.Equal(t, int64(25), *site.QuotaLimit)

	w = f.do(t, http.MethodPut, "/api/v1/license/sites/client-a/quota", map[string]any{"quota_limit": nil}, agency.Key)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, testutil.DecodeData[SiteResponse](t, w).QuotaLimit)

	t.Run("negative limit", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/license/sites/client-a/quota", map[string]any{"quota_limit": -1}, agency.Key)
		testutil.AssertErrorResponse(t, w, http.StatusBadRequest, "INVALID_INPUT")
	})

	t.Run("unknown site", func(t *testing.T) {
		w := f.do(t, http.MethodPut, "/api/v1/license/sites/nowhere/quota", map[string]any{"quota_limit": 5}, agency.Key)
		testutil.AssertErrorResponse(t, w, http.StatusNotFound, "SITE_NOT_FOUND")
	})

	t.Run("non-agency plan", func(t *testing.T) {
		pro := f.license(t, licensing.PlanPro)
		f.activate(t, pro.Key, "pro-site")
		w := f.do(t, http.MethodPut, "/api/v1/license/sites/pro-site/quota", map[string]any{"quota_limit": 5}, pro.Key)
		testutil.AssertErrorResponse(t, w, http.StatusForbidden, "PLAN_NOT_SUPPORTED")
	})
}
