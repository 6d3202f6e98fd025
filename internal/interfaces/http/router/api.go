package router

import (
	"context"

	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/interfaces/http/handler"
	"github.com/alttext/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers are the HTTP handlers of the licensing API
type Handlers struct {
	License  *handler.LicenseHandler
	Quota    *handler.QuotaHandler
	Usage    *handler.UsageHandler
	Generate *handler.GenerateHandler
	Auth     *handler.AuthHandler
	Webhook  *handler.StripeWebhookHandler
	System   *handler.SystemHandler
}

// Guards are the middleware placed in front of specific route sets. A nil
// guard is skipped.
type Guards struct {
	// LicenseRateLimit throttles license-authenticated endpoints per key
	LicenseRateLimit gin.HandlerFunc
	// AuthRateLimit throttles login and password changes per client IP
	AuthRateLimit gin.HandlerFunc
	// Session requires a dashboard bearer token
	Session gin.HandlerFunc
}

// LicensingGroups builds the domain groups of the licensing API
func LicensingGroups(h Handlers, g Guards) []*DomainGroup {
	license := NewDomainGroup("license", "/license")
	useIf(license, g.LicenseRateLimit)
	license.POST("/validate", h.License.Validate).
		POST("/activate", h.License.Activate).
		POST("/deactivate", h.License.Deactivate).
		POST("/transfer", h.License.Transfer).
		GET("/sites", h.License.ListSites).
		PUT("/sites/:site_hash/quota", h.License.SetSiteQuota)

	quota := NewDomainGroup("quota", "/quota")
	useIf(quota, g.LicenseRateLimit)
	quota.GET("/status", h.Quota.GetStatus)

	usage := NewDomainGroup("usage", "/usage")
	useIf(usage, g.LicenseRateLimit)
	usage.GET("/users", h.Usage.GetUserUsage).
		GET("/sites", h.Usage.GetSiteUsage)

	generate := NewDomainGroup("generate", "/generate")
	useIf(generate, g.LicenseRateLimit)
	generate.POST("", h.Generate.Generate)

	auth := NewDomainGroup("auth", "/auth")
	auth.POST("/login", guarded(g.AuthRateLimit, h.Auth.Login)...).
		POST("/password", guarded(g.AuthRateLimit, h.Auth.SetPassword)...).
		POST("/logout", guarded(g.Session, h.Auth.Logout)...)

	dashboard := NewDomainGroup("dashboard", "/dashboard")
	useIf(dashboard, g.Session)
	dashboard.GET("/usage", h.Auth.DashboardUsage)

	webhooks := NewDomainGroup("webhooks", "/webhooks")
	webhooks.POST("/stripe", h.Webhook.HandleStripeWebhook)

	system := NewDomainGroup("system", "/system")
	system.GET("/info", h.System.GetSystemInfo).
		GET("/ping", h.System.Ping)

	return []*DomainGroup{license, quota, usage, generate, auth, dashboard, webhooks, system}
}

// RegisterLicensingAPI registers every licensing API group on r
func RegisterLicensingAPI(r *Router, h Handlers, g Guards) *Router {
	for _, group := range LicensingGroups(h, g) {
		r.Register(group)
	}
	return r
}

// LicenseLimits resolves a key to its plan limits for the per-license rate
// limiter. Expired and suspended licenses keep their plan's rate.
func LicenseLimits(validator *licensingapp.Validator) middleware.LimitsResolver {
	return func(ctx context.Context, key string) (licensing.PlanLimits, error) {
		license, err := validator.Lookup(ctx, key)
		if err != nil {
			return licensing.PlanLimits{}, err
		}
		return license.Limits(validator.Plans()), nil
	}
}

func useIf(dg *DomainGroup, guard gin.HandlerFunc) {
	if guard != nil {
		dg.Use(guard)
	}
}

func guarded(guard gin.HandlerFunc, h gin.HandlerFunc) []gin.HandlerFunc {
	if guard == nil {
		return []gin.HandlerFunc{h}
	}
	return []gin.HandlerFunc{guard, h}
}
