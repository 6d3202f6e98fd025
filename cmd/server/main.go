package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/alttext/backend/internal/application/billing"
	licensingapp "github.com/alttext/backend/internal/application/licensing"
	"github.com/alttext/backend/internal/application/metering"
	"github.com/alttext/backend/internal/infrastructure/auth"
	"github.com/alttext/backend/internal/infrastructure/cache"
	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/alttext/backend/internal/infrastructure/generator"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/alttext/backend/internal/infrastructure/persistence"
	"github.com/alttext/backend/internal/infrastructure/ratelimit"
	"github.com/alttext/backend/internal/infrastructure/telemetry"
	"github.com/alttext/backend/internal/interfaces/http/handler"
	"github.com/alttext/backend/internal/interfaces/http/middleware"
	"github.com/alttext/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is stamped at build time with -ldflags "-X main.Version=..."
var Version = "dev"

//	@title			AltText License API
//	@version		1.0
//	@description	License validation, site activation and credit metering for the AltText plugin

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Dashboard session token. Format: "Bearer {token}"

func main() {
	config.LoadDotEnv()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx := context.Background()

	// OpenTelemetry traces, and optionally logs
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.App.Name,
		ServiceVersion:    Version,
		Insecure:          cfg.Telemetry.Insecure,
	}
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	var loggerProvider *telemetry.LoggerProvider
	if cfg.Telemetry.ExportLogs {
		loggerProvider, err = telemetry.NewLoggerProvider(ctx, telemetryCfg, log)
		if err != nil {
			log.Fatal("Failed to initialize log export", zap.Error(err))
		}
		log = loggerProvider.Bridge(log, zapcore.InfoLevel)
	}

	log.Info("Starting AltText license backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", Version),
	)

	// Initialize database connection with SQL logged through zap
	db, err := persistence.NewDatabase(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTracing {
		dbTracing := telemetry.DefaultDBTracingConfig()
		dbTracing.LogFullSQL = cfg.Telemetry.LogFullSQL
		if cfg.Database.SlowQuery > 0 {
			dbTracing.SlowQueryThresh = cfg.Database.SlowQuery
		}
		if err := telemetry.NewDBTracingPlugin(dbTracing, log).Register(db.DB); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}
	log.Info("Database connected successfully")

	// Redis is optional; without it limiters, the result cache and session
	// revocation stay in process
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, falling back to in-process state", zap.Error(err))
			redisClient = nil
		} else {
			log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
			defer func() {
				_ = redisClient.Close()
			}()
		}
	}

	registry := metrics.NewRegistry(true)

	// Initialize repositories
	licenseRepo := persistence.NewGormLicenseRepository(db.DB)
	siteRepo := persistence.NewGormSiteRepository(db.DB)
	usageRecordRepo := persistence.NewGormUsageRecordRepository(db.DB)
	quotaSummaryRepo := persistence.NewGormQuotaSummaryRepository(db.DB)

	// Initialize infrastructure services
	jwtService := auth.NewJWTService(cfg.JWT)
	var revoker auth.SessionRevoker = auth.NewMemorySessionRevoker()
	var resultCacheFactory *cache.ResultCacheFactory
	var limiterFactory *ratelimit.Factory
	cacheOpts := []cache.FactoryOption{
		cache.WithLogger(log),
		cache.WithTTL(cfg.Cache.ResultTTL, cfg.Cache.CleanupInterval),
	}
	if redisClient != nil {
		revoker = auth.NewRedisSessionRevoker(redisClient)
		resultCacheFactory = cache.NewResultCacheFactory(redisClient, cacheOpts...)
		limiterFactory = ratelimit.NewFactory(redisClient, ratelimit.WithLogger(log))
	} else {
		resultCacheFactory = cache.NewResultCacheFactory(nil, cacheOpts...)
		limiterFactory = ratelimit.NewFactory(nil, ratelimit.WithLogger(log))
	}
	gen := generator.NewHTTPGenerator(cfg.Generator, generator.WithLogger(log))

	// Initialize application services
	validator := licensingapp.NewValidator(licenseRepo, cfg.PlanTable(), log)
	siteRegistry := licensingapp.NewSiteRegistry(validator, siteRepo, log)
	authService := licensingapp.NewAuthService(validator, licenseRepo, jwtService, revoker, log)
	quotaService := billingapp.NewQuotaService(validator, siteRepo, quotaSummaryRepo, usageRecordRepo, registry,
		billingapp.QuotaServiceConfig{
			NearLimitRatio:   cfg.Quota.NearLimitRatio,
			BypassSiteHashes: cfg.Quota.BypassSiteHashes,
		}, log)
	usageService := billingapp.NewUsageService(validator, siteRepo, usageRecordRepo, quotaSummaryRepo, registry, log)
	meter := metering.NewMeter(quotaService, usageService, gen, resultCacheFactory.Create(), registry, metering.Config{
		CreditsPerRequest: cfg.Generator.CreditsPerImage,
		CacheTTL:          cfg.Cache.ResultTTL,
	}, log)
	webhookService := billingapp.NewStripeWebhookService(licenseRepo, cfg.Stripe.WebhookSecret, cfg.PricePlans(), log)

	// Rate limit guards
	guards := router.Guards{
		Session: middleware.JWTAuthMiddleware(jwtService, revoker, log),
	}
	if cfg.HTTP.RateLimitEnabled {
		licenseLimiter, err := limiterFactory.Create(ctx, ratelimit.Options{
			Name:        "license",
			Window:      cfg.HTTP.RateLimitWindow,
			GlobalLimit: cfg.HTTP.GlobalRateLimitPerWindow,
			Logger:      log,
			Metrics:     registry,
		})
		if err != nil {
			log.Fatal("Failed to create license rate limiter", zap.Error(err))
		}
		authLimiter, err := limiterFactory.Create(ctx, ratelimit.Options{
			Name:    "auth",
			Window:  cfg.HTTP.AuthRateLimitWindow,
			Logger:  log,
			Metrics: registry,
		})
		if err != nil {
			log.Fatal("Failed to create auth rate limiter", zap.Error(err))
		}
		guards.LicenseRateLimit = middleware.RateLimit(licenseLimiter, middleware.ByLicenseKey(router.LicenseLimits(validator), licenseLimiter.Window()))
		guards.AuthRateLimit = middleware.RateLimit(authLimiter, middleware.ByClientIP(cfg.HTTP.AuthRateLimitRequests))
		log.Info("Rate limiting enabled",
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
			zap.Int("global_limit", cfg.HTTP.GlobalRateLimitPerWindow),
		)
	}

	// Health probes
	checks := map[string]handler.HealthCheck{
		"database": db.Ping,
	}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	systemHandler := handler.NewSystemHandler(Version, checks)

	// Set Gin mode based on environment
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}

	// Middleware order: request ID first so every log line and span carries it
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.App.Name,
		Enabled:     cfg.Telemetry.Enabled,
	}))
	engine.Use(middleware.SpanAnnotator())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(registry))

	// Liveness and metrics live outside the versioned API
	engine.GET("/health", systemHandler.Health)
	if cfg.Metrics.Enabled {
		engine.GET(cfg.Metrics.Path, gin.WrapH(registry.Handler()))
	}

	router.RegisterLicensingAPI(router.NewRouter(engine), router.Handlers{
		License:  handler.NewLicenseHandler(validator, siteRegistry),
		Quota:    handler.NewQuotaHandler(quotaService),
		Usage:    handler.NewUsageHandler(usageService),
		Generate: handler.NewGenerateHandler(meter),
		Auth:     handler.NewAuthHandler(authService, validator, quotaService, usageService),
		Webhook:  handler.NewStripeWebhookHandler(webhookService),
		System:   systemHandler,
	}, guards).Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
		log.Warn("Failed to flush traces", zap.Error(err))
	}
	if loggerProvider != nil {
		if err := loggerProvider.Shutdown(shutdownCtx); err != nil {
			log.Warn("Failed to flush logs", zap.Error(err))
		}
	}

	log.Info("Server exited gracefully")
}
