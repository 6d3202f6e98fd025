package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func revokers(t *testing.T) map[string]SessionRevoker {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]SessionRevoker{
		"redis":  NewRedisSessionRevoker(client),
		"memory": NewMemorySessionRevoker(),
	}
}

func TestSessionRevoker_Token(t *testing.T) {
	for name, r := range revokers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			revoked, err := r.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.False(t, revoked)

			require.NoError(t, r.Revoke(ctx, "jti-1", time.Hour))

			revoked, err = r.IsRevoked(ctx, "jti-1")
			require.NoError(t, err)
			assert.True(t, revoked)

			revoked, err = r.IsRevoked(ctx, "jti-2")
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}

func TestSessionRevoker_License(t *testing.T) {
	at := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	for name, r := range revokers(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			revoked, err := r.IsLicenseRevoked(ctx, "lic", at.Add(-time.Minute))
			require.NoError(t, err)
			assert.False(t, revoked, "nothing revoked yet")

			require.NoError(t, r.RevokeLicense(ctx, "lic", at, time.Hour))

			revoked, err = r.IsLicenseRevoked(ctx, "lic", at.Add(-time.Minute))
			require.NoError(t, err)
			assert.True(t, revoked, "older tokens are rejected")

			revoked, err = r.IsLicenseRevoked(ctx, "lic", at)
			require.NoError(t, err)
			assert.True(t, revoked, "tokens issued in the revocation second are rejected")

			revoked, err = r.IsLicenseRevoked(ctx, "lic", at.Add(time.Second))
			require.NoError(t, err)
			assert.False(t, revoked, "newer tokens are accepted")

			revoked, err = r.IsLicenseRevoked(ctx, "other", at.Add(-time.Minute))
			require.NoError(t, err)
			assert.False(t, revoked)
		})
	}
}

func TestRedisSessionRevoker_Errors(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	r := NewRedisSessionRevoker(client)
	ctx := context.Background()

	require.NoError(t, mr.Set("session:revoked:license:lic", "garbage"))
	_, err := r.IsLicenseRevoked(ctx, "lic", time.Now())
	assert.ErrorContains(t, err, "parse")

	mr.SetError("ERR down")
	assert.Error(t, r.Revoke(ctx, "j", time.Minute))
	_, err = r.IsRevoked(ctx, "j")
	assert.Error(t, err)
	assert.Error(t, r.RevokeLicense(ctx, "lic", time.Now(), time.Minute))
	_, err = r.IsLicenseRevoked(ctx, "lic", time.Now())
	assert.Error(t, err)
}

func TestRedisSessionRevoker_TTL(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	r := NewRedisSessionRevoker(client)
	ctx := context.Background()

	require.NoError(t, r.Revoke(ctx, "j", time.Minute))
	mr.FastForward(2 * time.Minute)

	revoked, err := r.IsRevoked(ctx, "j")
	require.NoError(t, err)
	assert.False(t, revoked, "revocation lapses once the token would have expired")
}
