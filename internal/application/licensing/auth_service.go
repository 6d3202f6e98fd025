package licensing

import (
	"context"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/auth"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// ErrInvalidCredentials is returned for a wrong or unset dashboard password
var ErrInvalidCredentials = shared.NewDomainError("INVALID_CREDENTIALS", "Invalid license key or password")

// LoginResult is a successful dashboard login
type LoginResult struct {
	Token   *auth.SessionToken
	License *licensing.License
}

// SetPasswordInput changes the dashboard password. CurrentPassword is
// required once a password has been set.
type SetPasswordInput struct {
	LicenseKey      string
	CurrentPassword string
	NewPassword     string
}

// AuthService handles license dashboard logins
type AuthService struct {
	validator  *Validator
	licenses   licensing.LicenseRepository
	jwtService *auth.JWTService
	revoker    auth.SessionRevoker
	logger     *zap.Logger
	now        func() time.Time
}

// NewAuthService creates a new authentication service. revoker may be nil, in
// which case logout and password changes do not invalidate issued tokens.
func NewAuthService(
	validator *Validator,
	licenses licensing.LicenseRepository,
	jwtService *auth.JWTService,
	revoker auth.SessionRevoker,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		validator:  validator,
		licenses:   licenses,
		jwtService: jwtService,
		revoker:    revoker,
		logger:     log,
		now:        time.Now,
	}
}

// Login checks the dashboard password and issues a session token. Expired and
// suspended licenses may log in so their owners can see why.
func (s *AuthService) Login(ctx context.Context, licenseKey, password string) (*LoginResult, error) {
	log := logger.Enrich(ctx, s.logger)

	license, err := s.validator.Lookup(ctx, licenseKey)
	if err != nil {
		if licensing.KindOf(err) == licensing.KindInvalidLicense {
			log.Info("Login failed: unknown license")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !license.CheckPassword(password) {
		log.Info("Login failed: wrong password", zap.String("license_id", license.ID.String()))
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwtService.GenerateToken(auth.GenerateTokenInput{
		LicenseID:  license.ID,
		LicenseKey: license.Key,
		Plan:       string(license.Plan),
	})
	if err != nil {
		log.Error("Failed to issue session token", zap.Error(err))
		return nil, licensing.ServerError("failed to issue session token", err)
	}

	log.Info("Dashboard login", zap.String("license_id", license.ID.String()))
	return &LoginResult{Token: token, License: license}, nil
}

// SetPassword sets or changes the dashboard password and revokes existing sessions
func (s *AuthService) SetPassword(ctx context.Context, in SetPasswordInput) error {
	log := logger.Enrich(ctx, s.logger)

	license, err := s.validator.Lookup(ctx, in.LicenseKey)
	if err != nil {
		return err
	}
	if license.HasPassword() && !license.CheckPassword(in.CurrentPassword) {
		return ErrInvalidCredentials
	}
	if err := license.SetPassword(in.NewPassword); err != nil {
		return err
	}
	if err := s.licenses.Save(ctx, license); err != nil {
		log.Error("Failed to save license password", zap.Error(err))
		return licensing.ServerError("failed to save license", err)
	}

	if s.revoker != nil {
		if err := s.revoker.RevokeLicense(ctx, license.ID.String(), s.now(), s.jwtService.Expiration()); err != nil {
			log.Warn("Failed to revoke existing sessions after password change", zap.Error(err))
		}
	}
	log.Info("Dashboard password updated", zap.String("license_id", license.ID.String()))
	return nil
}

// Logout revokes the session token described by claims
func (s *AuthService) Logout(ctx context.Context, claims *auth.Claims) error {
	if s.revoker == nil || claims == nil || claims.ID == "" {
		return nil
	}
	ttl := claims.RemainingTTL(s.now())
	if ttl <= 0 {
		return nil
	}
	if err := s.revoker.Revoke(ctx, claims.ID, ttl); err != nil {
		logger.Enrich(ctx, s.logger).Error("Failed to revoke session", zap.Error(err))
		return licensing.ServerError("failed to revoke session", err)
	}
	return nil
}
