// Package licensing implements license validation, site binding and dashboard
// authentication on top of the licensing domain.
package licensing

import (
	"context"
	"errors"
	"strings"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"go.uber.org/zap"
)

// Validation is a successful license check
type Validation struct {
	License *licensing.License
	Limits  licensing.PlanLimits
}

// Validator resolves license keys to usable licenses. It never writes.
type Validator struct {
	licenses licensing.LicenseRepository
	plans    licensing.PlanTable
	logger   *zap.Logger
}

// NewValidator creates a validator. plans is the single plan-limit table for the process.
func NewValidator(licenses licensing.LicenseRepository, plans licensing.PlanTable, log *zap.Logger) *Validator {
	if plans == nil {
		plans = licensing.DefaultPlanTable()
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Validator{licenses: licenses, plans: plans, logger: log}
}

// Plans returns the plan-limit table in effect
func (v *Validator) Plans() licensing.PlanTable {
	return v.plans
}

// Validate checks a license key.
//
// Expired licenses fail with LICENSE_EXPIRED and suspended or cancelled ones
// with LICENSE_SUSPENDED; in both cases the returned *licensing.Error carries
// the license for display.
func (v *Validator) Validate(ctx context.Context, key string) (*Validation, error) {
	license, err := v.Lookup(ctx, key)
	if err != nil {
		return nil, err
	}

	switch license.Status {
	case licensing.LicenseStatusExpired:
		return nil, licensing.NewError(licensing.KindLicenseExpired, "License has expired").WithLicense(license)
	case licensing.LicenseStatusSuspended, licensing.LicenseStatusCancelled:
		return nil, licensing.NewError(licensing.KindLicenseSuspended, "License is "+string(license.Status)).
			WithLicense(license).
			WithDetail("status", string(license.Status))
	}

	return &Validation{License: license, Limits: license.Limits(v.plans)}, nil
}

// Lookup finds a license by key regardless of its status. Only unknown keys
// and store failures are errors.
func (v *Validator) Lookup(ctx context.Context, key string) (*licensing.License, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, licensing.NewError(licensing.KindInvalidLicense, "License key is required")
	}

	license, err := v.licenses.FindByKey(ctx, key)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, licensing.NewError(licensing.KindInvalidLicense, "License key not found")
		}
		logger.Enrich(ctx, v.logger).Error("Failed to look up license",
			zap.String("license", logger.RedactKey(key)),
			zap.Error(err),
		)
		return nil, licensing.ServerError("failed to look up license", err)
	}
	return license, nil
}
