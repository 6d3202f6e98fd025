package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

// SessionRevoker invalidates session tokens before they expire: single tokens
// on logout, and every token of a license when its password changes.
type SessionRevoker interface {
	// Revoke invalidates one token by its JWT ID. ttl should cover the token's remaining lifetime.
	Revoke(ctx context.Context, jti string, ttl time.Duration) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
	// RevokeLicense invalidates every token for a license issued at or before at
	RevokeLicense(ctx context.Context, licenseID string, at time.Time, ttl time.Duration) error
	IsLicenseRevoked(ctx context.Context, licenseID string, issuedAt time.Time) (bool, error)
}

// RedisSessionRevoker implements SessionRevoker using Redis
type RedisSessionRevoker struct {
	client    redis.Cmdable
	keyPrefix string
}

// NewRedisSessionRevoker creates a revoker with an existing Redis client
func NewRedisSessionRevoker(client redis.Cmdable) *RedisSessionRevoker {
	return &RedisSessionRevoker{
		client:    client,
		keyPrefix: "session:revoked:",
	}
}

func (r *RedisSessionRevoker) tokenKey(jti string) string {
	return r.keyPrefix + "jti:" + jti
}

func (r *RedisSessionRevoker) licenseKey(licenseID string) string {
	return r.keyPrefix + "license:" + licenseID
}

// Revoke stores the JTI until ttl elapses
func (r *RedisSessionRevoker) Revoke(ctx context.Context, jti string, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.tokenKey(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// IsRevoked checks whether a JTI has been revoked
func (r *RedisSessionRevoker) IsRevoked(ctx context.Context, jti string) (bool, error) {
	n, err := r.client.Exists(ctx, r.tokenKey(jti)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session revocation: %w", err)
	}
	return n > 0, nil
}

// RevokeLicense stores the revocation time as Unix seconds, matching JWT iat precision
func (r *RedisSessionRevoker) RevokeLicense(ctx context.Context, licenseID string, at time.Time, ttl time.Duration) error {
	if err := r.client.Set(ctx, r.licenseKey(licenseID), at.Unix(), ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke license sessions: %w", err)
	}
	return nil
}

// IsLicenseRevoked reports whether a token issued at issuedAt predates the license's revocation
func (r *RedisSessionRevoker) IsLicenseRevoked(ctx context.Context, licenseID string, issuedAt time.Time) (bool, error) {
	raw, err := r.client.Get(ctx, r.licenseKey(licenseID)).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check license session revocation: %w", err)
	}

	revokedAt, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, fmt.Errorf("failed to parse revocation timestamp: %w", err)
	}
	return issuedAt.Unix() <= revokedAt, nil
}

var _ SessionRevoker = (*RedisSessionRevoker)(nil)

// MemorySessionRevoker keeps revocations in process memory.
// WARNING: revocations are not visible to other service instances.
type MemorySessionRevoker struct {
	store *gocache.Cache
}

// NewMemorySessionRevoker creates an in-memory revoker
func NewMemorySessionRevoker() *MemorySessionRevoker {
	return &MemorySessionRevoker{store: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

// Revoke stores the JTI until ttl elapses
func (r *MemorySessionRevoker) Revoke(_ context.Context, jti string, ttl time.Duration) error {
	r.store.Set("jti:"+jti, true, ttl)
	return nil
}

// IsRevoked checks whether a JTI has been revoked
func (r *MemorySessionRevoker) IsRevoked(_ context.Context, jti string) (bool, error) {
	_, found := r.store.Get("jti:" + jti)
	return found, nil
}

// RevokeLicense records the revocation time for a license
func (r *MemorySessionRevoker) RevokeLicense(_ context.Context, licenseID string, at time.Time, ttl time.Duration) error {
	r.store.Set("license:"+licenseID, at.Unix(), ttl)
	return nil
}

// IsLicenseRevoked reports whether a token issued at issuedAt predates the license's revocation
func (r *MemorySessionRevoker) IsLicenseRevoked(_ context.Context, licenseID string, issuedAt time.Time) (bool, error) {
	v, found := r.store.Get("license:" + licenseID)
	if !found {
		return false, nil
	}
	return issuedAt.Unix() <= v.(int64), nil
}

var _ SessionRevoker = (*MemorySessionRevoker)(nil)
