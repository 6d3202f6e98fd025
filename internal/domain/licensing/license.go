package licensing

import (
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/shared"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// LicenseStatus is the lifecycle state of a license
type LicenseStatus string

const (
	LicenseStatusActive    LicenseStatus = "active"
	LicenseStatusExpired   LicenseStatus = "expired"
	LicenseStatusSuspended LicenseStatus = "suspended"
	LicenseStatusCancelled LicenseStatus = "cancelled"
)

// IsValid reports whether the status is known
func (s LicenseStatus) IsValid() bool {
	switch s {
	case LicenseStatusActive, LicenseStatusExpired, LicenseStatusSuspended, LicenseStatusCancelled:
		return true
	}
	return false
}

const (
	// LicenseKeyPrefix prefixes every generated key
	LicenseKeyPrefix = "LIC-"
	// MinPasswordLength is the shortest dashboard password accepted
	MinPasswordLength = 8
	bcryptCost        = 12
)

// License is the billable identity that grants quota.
// Licenses are never deleted; cancellation is a status.
type License struct {
	shared.BaseAggregateRoot
	Key                  string
	Plan                 Plan
	Status               LicenseStatus
	BillingAnchorDay     int
	Email                string
	StripeCustomerID     string
	StripeSubscriptionID string
	PasswordHash         string
	MaxSitesOverride     *int
}

// GenerateLicenseKey returns a new opaque key
func GenerateLicenseKey() string {
	return LicenseKeyPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// NewLicense creates an active license with a generated key
func NewLicense(plan Plan, anchorDay int, email string) (*License, error) {
	if !plan.IsValid() {
		return nil, shared.NewDomainError("INVALID_PLAN", "Invalid plan")
	}
	return &License{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Key:               GenerateLicenseKey(),
		Plan:              plan,
		Status:            LicenseStatusActive,
		BillingAnchorDay:  ClampAnchorDay(anchorDay),
		Email:             strings.TrimSpace(email),
	}, nil
}

// IsActive reports whether the license may be used for metered operations
func (l *License) IsActive() bool {
	return l.Status == LicenseStatusActive
}

// Limits resolves the enforcement limits for this license from the plan table,
// applying the max-sites override if one is set
func (l *License) Limits(table PlanTable) PlanLimits {
	limits := table.Limits(l.Plan)
	if l.MaxSitesOverride != nil {
		limits.MaxSites = intPtr(*l.MaxSitesOverride)
	}
	return limits
}

// CurrentPeriod returns the billing period containing now
func (l *License) CurrentPeriod(now time.Time) Period {
	return CurrentPeriod(l.BillingAnchorDay, now)
}

// ChangePlan moves the license to another plan
func (l *License) ChangePlan(plan Plan) error {
	if !plan.IsValid() {
		return shared.NewDomainError("INVALID_PLAN", "Invalid plan")
	}
	if l.Plan == plan {
		return nil
	}
	l.Plan = plan
	l.touch()
	return nil
}

// Suspend blocks metered use until the license is reactivated
func (l *License) Suspend() error {
	if l.Status == LicenseStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot suspend a cancelled license")
	}
	l.setStatus(LicenseStatusSuspended)
	return nil
}

// Expire marks the license as past its paid term
func (l *License) Expire() error {
	if l.Status == LicenseStatusCancelled {
		return shared.NewDomainError("INVALID_STATE", "Cannot expire a cancelled license")
	}
	l.setStatus(LicenseStatusExpired)
	return nil
}

// Cancel soft-cancels the license
func (l *License) Cancel() {
	l.setStatus(LicenseStatusCancelled)
}

// Reactivate returns the license to active
func (l *License) Reactivate() {
	l.setStatus(LicenseStatusActive)
}

// LinkStripe records payment-provider identifiers. Empty values leave the
// current value untouched.
func (l *License) LinkStripe(customerID, subscriptionID string) {
	if customerID != "" {
		l.StripeCustomerID = customerID
	}
	if subscriptionID != "" {
		l.StripeSubscriptionID = subscriptionID
	}
	l.touch()
}

// SetMaxSitesOverride overrides the plan's site cap. nil restores the plan default.
func (l *License) SetMaxSitesOverride(maxSites *int) error {
	if maxSites != nil && *maxSites < 0 {
		return shared.NewDomainError("INVALID_MAX_SITES", "Max sites cannot be negative")
	}
	if maxSites != nil {
		maxSites = intPtr(*maxSites)
	}
	l.MaxSitesOverride = maxSites
	l.touch()
	return nil
}

// SetPassword stores a bcrypt hash of the dashboard password
func (l *License) SetPassword(plain string) error {
	if len(plain) < MinPasswordLength {
		return shared.NewDomainError("INVALID_PASSWORD", "Password must be at least 8 characters")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcryptCost)
	if err != nil {
		return err
	}
	l.PasswordHash = string(hash)
	l.touch()
	return nil
}

// HasPassword reports whether dashboard login is configured
func (l *License) HasPassword() bool {
	return l.PasswordHash != ""
}

// CheckPassword compares a plaintext password against the stored hash
func (l *License) CheckPassword(plain string) bool {
	if l.PasswordHash == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(l.PasswordHash), []byte(plain)) == nil
}

func (l *License) setStatus(status LicenseStatus) {
	if l.Status == status {
		return
	}
	l.Status = status
	l.touch()
}

func (l *License) touch() {
	l.Touch(time.Now())
	l.IncrementVersion()
}
