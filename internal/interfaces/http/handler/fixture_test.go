package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	billingapp "github.com/alttext/backend/internal/application/billing"
	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/application/metering"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/infrastructure/auth"
	"github.com/alttext/backend/internal/infrastructure/cache"
	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/alttext/backend/internal/infrastructure/generator"
	"github.com/alttext/backend/internal/infrastructure/persistence"
	"github.com/alttext/backend/internal/interfaces/http/middleware"
	"github.com/alttext/backend/tests/testutil"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

const testWebhookSecret = "whsec_handler_test"

type stubGenerator struct {
	calls int
	err   error
}

func (g *stubGenerator) Generate(_ context.Context, req generator.Request) (*generator.Result, error) {
	g.calls++
	if g.err != nil {
		return nil, g.err
	}
	return &generator.Result{Text: "A dog on a beach", PromptTokens: 9, CompletionTokens: 5, Model: req.Model}, nil
}

func (g *stubGenerator) Model() string { return "vision-small" }

// apiFixture wires real services over an in-memory SQLite store
type apiFixture struct {
	licenses *persistence.GormLicenseRepository
	sites    *persistence.GormSiteRepository
	jwt      *auth.JWTService
	gen      *stubGenerator
	router   *gin.Engine
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	f := &apiFixture{
		licenses: persistence.NewGormLicenseRepository(db),
		sites:    persistence.NewGormSiteRepository(db),
		jwt: auth.NewJWTService(config.JWTConfig{
			Secret:                "handler-test-secret-at-least-32-chars",
			AccessTokenExpiration: time.Hour,
			Issuer:                "alttext-test",
		}),
		gen: &stubGenerator{},
	}
	records := persistence.NewGormUsageRecordRepository(db)
	summaries := persistence.NewGormQuotaSummaryRepository(db)
	revoker := auth.NewMemorySessionRevoker()

	validator := licensingapp.NewValidator(f.licenses, nil, nil)
	registry := licensingapp.NewSiteRegistry(validator, f.sites, nil)
	authService := licensingapp.NewAuthService(validator, f.licenses, f.jwt, revoker, nil)
	quota := billingapp.NewQuotaService(validator, f.sites, summaries, records, nil, billingapp.DefaultQuotaServiceConfig(), nil)
	usage := billingapp.NewUsageService(validator, f.sites, records, summaries, nil, nil)
	meter := metering.NewMeter(quota, usage, f.gen, cache.NewMemoryResultCache(time.Hour, time.Minute), nil, metering.Config{CacheTTL: time.Hour}, nil)
	webhooks := billingapp.NewStripeWebhookService(f.licenses, testWebhookSecret, map[string]licensing.Plan{"price_agency": licensing.PlanAgency}, nil)

	licenseHandler := NewLicenseHandler(validator, registry)
	quotaHandler := NewQuotaHandler(quota)
	usageHandler := NewUsageHandler(usage)
	generateHandler := NewGenerateHandler(meter)
	authHandler := NewAuthHandler(authService, validator, quota, usage)
	webhookHandler := NewStripeWebhookHandler(webhooks)

	r := gin.New()
	r.Use(middleware.RequestID())
	api := r.Group("/api/v1")
	api.POST("/license/validate", licenseHandler.Validate)
	api.POST("/license/activate", licenseHandler.Activate)
	api.POST("/license/deactivate", licenseHandler.Deactivate)
	api.POST("/license/transfer", licenseHandler.Transfer)
	api.GET("/license/sites", licenseHandler.ListSites)
	api.PUT("/license/sites/:site_hash/quota", licenseHandler.SetSiteQuota)
	api.GET("/quota/status", quotaHandler.GetStatus)
	api.GET("/usage/users", usageHandler.GetUserUsage)
	api.GET("/usage/sites", usageHandler.GetSiteUsage)
	api.POST("/generate", generateHandler.Generate)
	api.POST("/auth/login", authHandler.Login)
	api.POST("/auth/password", authHandler.SetPassword)
	api.POST("/webhooks/stripe", webhookHandler.HandleStripeWebhook)

	session := api.Group("", middleware.JWTAuthMiddleware(f.jwt, revoker, nil))
	session.POST("/auth/logout", authHandler.Logout)
	session.GET("/dashboard/usage", authHandler.DashboardUsage)

	f.router = r
	return f
}

func (f *apiFixture) license(t *testing.T, plan licensing.Plan) *licensing.License {
	t.Helper()
	l := testutil.NewLicense(t, plan)
	require.NoError(t, f.licenses.Save(context.Background(), l))
	return l
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, key string) *httptest.ResponseRecorder {
	t.Helper()
	var headers map[string]string
	if key != "" {
		headers = map[string]string{LicenseKeyHeader: key}
	}
	return testutil.PerformRequest(t, f.router, method, path, body, headers)
}

func (f *apiFixture) activate(t *testing.T, key, siteHash string) {
	t.Helper()
	w := f.do(t, http.MethodPost, "/api/v1/license/activate", map[string]string{"license_key": key, "site_hash": siteHash}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
}
