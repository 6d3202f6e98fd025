package licensing

import (
	"fmt"
	"strings"
)

// Plan is a subscription tier
type Plan string

const (
	PlanFree   Plan = "free"
	PlanPro    Plan = "pro"
	PlanAgency Plan = "agency"
)

// AllPlans lists every known plan in ascending order
func AllPlans() []Plan {
	return []Plan{PlanFree, PlanPro, PlanAgency}
}

// IsValid reports whether the plan is known
func (p Plan) IsValid() bool {
	switch p {
	case PlanFree, PlanPro, PlanAgency:
		return true
	}
	return false
}

// SupportsSiteQuotas reports whether per-site quota overrides are available
func (p Plan) SupportsSiteQuotas() bool {
	return p == PlanAgency
}

// ParsePlan parses a plan name, case-insensitively
func ParsePlan(s string) (Plan, error) {
	p := Plan(strings.ToLower(strings.TrimSpace(s)))
	if !p.IsValid() {
		return "", fmt.Errorf("unknown plan %q", s)
	}
	return p, nil
}

// PlanLimits are the enforcement numbers for one plan.
// MaxSites is nil when the plan allows any number of active sites.
type PlanLimits struct {
	Credits       int64 `json:"credits"`
	MaxSites      *int  `json:"max_sites"`
	RatePerMinute int   `json:"rate_per_minute"`
}

// Unbounded reports whether the site count is unlimited
func (l PlanLimits) Unbounded() bool {
	return l.MaxSites == nil
}

// SiteLimitReached reports whether activeSites already fills the site cap
func (l PlanLimits) SiteLimitReached(activeSites int64) bool {
	if l.MaxSites == nil {
		return false
	}
	return activeSites >= int64(*l.MaxSites)
}

// PlanTable maps each plan to its limits
type PlanTable map[Plan]PlanLimits

// DefaultPlanTable returns the built-in limits
func DefaultPlanTable() PlanTable {
	return PlanTable{
		PlanFree:   {Credits: 50, MaxSites: intPtr(1), RatePerMinute: 10},
		PlanPro:    {Credits: 1000, MaxSites: intPtr(1), RatePerMinute: 60},
		PlanAgency: {Credits: 10000, MaxSites: nil, RatePerMinute: 120},
	}
}

// Limits returns the limits for a plan. Unknown plans get the free tier.
func (t PlanTable) Limits(plan Plan) PlanLimits {
	if limits, ok := t[plan]; ok {
		return limits.clone()
	}
	if limits, ok := t[PlanFree]; ok {
		return limits.clone()
	}
	return DefaultPlanTable()[PlanFree]
}

// With returns a copy of the table with plan's limits replaced
func (t PlanTable) With(plan Plan, limits PlanLimits) PlanTable {
	out := make(PlanTable, len(t)+1)
	for p, l := range t {
		out[p] = l.clone()
	}
	out[plan] = limits.clone()
	return out
}

func (l PlanLimits) clone() PlanLimits {
	if l.MaxSites != nil {
		l.MaxSites = intPtr(*l.MaxSites)
	}
	return l
}

func intPtr(v int) *int {
	return &v
}
