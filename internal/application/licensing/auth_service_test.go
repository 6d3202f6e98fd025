package licensing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/auth"
	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/alttext/backend/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type authFixture struct {
	licenses *mockLicenseRepository
	jwt      *auth.JWTService
	revoker  *auth.MemorySessionRevoker
	service  *AuthService
}

func newAuthFixture() *authFixture {
	f := &authFixture{
		licenses: new(mockLicenseRepository),
		jwt: auth.NewJWTService(config.JWTConfig{
			Secret:                "test-secret-key-at-least-32-chars",
			AccessTokenExpiration: time.Hour,
			Issuer:                "alttext-test",
		}),
		revoker: auth.NewMemorySessionRevoker(),
	}
	f.service = NewAuthService(NewValidator(f.licenses, nil, nil), f.licenses, f.jwt, f.revoker, nil)
	return f
}

func licenseWithPassword(t *testing.T, password string) *licensing.License {
	t.Helper()
	l := testutil.NewLicense(t, licensing.PlanPro)
	require.NoError(t, l.SetPassword(password))
	return l
}

func TestAuthService_Login(t *testing.T) {
	ctx := context.Background()
	license := licenseWithPassword(t, "correct horse")

	t.Run("success issues a token for the license", func(t *testing.T) {
		f := newAuthFixture()
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)

		res, err := f.service.Login(ctx, license.Key, "correct horse")
		require.NoError(t, err)
		assert.Same(t, license, res.License)

		claims, err := f.jwt.ValidateToken(res.Token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, license.ID.String(), claims.LicenseID)
		assert.Equal(t, license.Key, claims.LicenseKey)
		assert.Equal(t, "pro", claims.Plan)
	})

	t.Run("wrong password", func(t *testing.T) {
		f := newAuthFixture()
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)

		_, err := f.service.Login(ctx, license.Key, "battery staple")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown license looks like a wrong password", func(t *testing.T) {
		f := newAuthFixture()
		f.licenses.On("FindByKey", mock.Anything, "LIC-unknown").Return(nil, shared.ErrNotFound)

		_, err := f.service.Login(ctx, "LIC-unknown", "whatever1")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("no password set", func(t *testing.T) {
		f := newAuthFixture()
		bare := testutil.NewLicense(t, licensing.PlanFree)
		f.licenses.On("FindByKey", mock.Anything, bare.Key).Return(bare, nil)

		_, err := f.service.Login(ctx, bare.Key, "")
		assert.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("expired license may still log in", func(t *testing.T) {
		f := newAuthFixture()
		expired := licenseWithPassword(t, "correct horse")
		require.NoError(t, expired.Expire())
		f.licenses.On("FindByKey", mock.Anything, expired.Key).Return(expired, nil)

		res, err := f.service.Login(ctx, expired.Key, "correct horse")
		require.NoError(t, err)
		assert.Equal(t, licensing.LicenseStatusExpired, res.License.Status)
	})

	t.Run("store failure", func(t *testing.T) {
		f := newAuthFixture()
		f.licenses.On("FindByKey", mock.Anything, "LIC-x").Return(nil, errors.New("db down"))

		_, err := f.service.Login(ctx, "LIC-x", "password1")
		assert.ErrorIs(t, err, licensing.ErrServerError)
	})
}

func TestAuthService_SetPassword(t *testing.T) {
	ctx := context.Background()

	t.Run("first password needs only the key", func(t *testing.T) {
		f := newAuthFixture()
		license := testutil.NewLicense(t, licensing.PlanPro)
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)
		f.licenses.On("Save", mock.Anything, license).Return(nil)

		err := f.service.SetPassword(ctx, SetPasswordInput{LicenseKey: license.Key, NewPassword: "new-password"})
		require.NoError(t, err)
		assert.True(t, license.CheckPassword("new-password"))
		f.licenses.AssertExpectations(t)
	})

	t.Run("change requires the current password", func(t *testing.T) {
		f := newAuthFixture()
		license := licenseWithPassword(t, "old-password")
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)

		err := f.service.SetPassword(ctx, SetPasswordInput{
			LicenseKey:      license.Key,
			CurrentPassword: "wrong-password",
			NewPassword:     "new-password",
		})
		assert.ErrorIs(t, err, ErrInvalidCredentials)
		f.licenses.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("change revokes earlier sessions", func(t *testing.T) {
		f := newAuthFixture()
		license := licenseWithPassword(t, "old-password")
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)
		f.licenses.On("Save", mock.Anything, license).Return(nil)

		issuedAt := time.Now().Add(-time.Minute)
		require.NoError(t, f.service.SetPassword(ctx, SetPasswordInput{
			LicenseKey:      license.Key,
			CurrentPassword: "old-password",
			NewPassword:     "new-password",
		}))

		revoked, err := f.revoker.IsLicenseRevoked(ctx, license.ID.String(), issuedAt)
		require.NoError(t, err)
		assert.True(t, revoked)
	})

	t.Run("short password rejected", func(t *testing.T) {
		f := newAuthFixture()
		license := testutil.NewLicense(t, licensing.PlanPro)
		f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)

		err := f.service.SetPassword(ctx, SetPasswordInput{LicenseKey: license.Key, NewPassword: "short"})
		var de *shared.DomainError
		require.ErrorAs(t, err, &de)
		assert.Equal(t, "INVALID_PASSWORD", de.Code)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()
	f := newAuthFixture()
	license := licenseWithPassword(t, "correct horse")
	f.licenses.On("FindByKey", mock.Anything, license.Key).Return(license, nil)

	res, err := f.service.Login(ctx, license.Key, "correct horse")
	require.NoError(t, err)
	claims, err := f.jwt.ValidateToken(res.Token.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.service.Logout(ctx, claims))

	revoked, err := f.revoker.IsRevoked(ctx, claims.ID)
	require.NoError(t, err)
	assert.True(t, revoked)

	assert.NoError(t, f.service.Logout(ctx, nil))
}
