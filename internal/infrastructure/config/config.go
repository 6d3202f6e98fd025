package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Plans     map[licensing.Plan]PlanOverride
	Quota     QuotaConfig
	Cache     CacheConfig
	Generator GeneratorConfig
	Stripe    StripeConfig
	Metrics   MetricsConfig
	Telemetry TelemetryConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
	SlowQuery       time.Duration
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns host:port
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

// JWTConfig holds dashboard session token settings
type JWTConfig struct {
	Secret                string
	AccessTokenExpiration time.Duration
	Issuer                string
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout              time.Duration
	WriteTimeout             time.Duration
	IdleTimeout              time.Duration
	MaxHeaderBytes           int
	MaxBodySize              int64
	RateLimitEnabled         bool
	RateLimitWindow          time.Duration // window for per-license limits
	GlobalRateLimitPerWindow int           // 0 disables the global ceiling
	AuthRateLimitRequests    int           // max auth attempts per IP (default: 5)
	AuthRateLimitWindow      time.Duration // auth rate limit window (default: 15 minutes)
	CORSAllowOrigins         []string
	CORSAllowMethods         []string
	CORSAllowHeaders         []string
	TrustedProxies           []string
}

// PlanOverride replaces built-in plan limits. Zero values keep the default;
// MaxSites < 0 removes the site cap.
type PlanOverride struct {
	Credits       int64
	MaxSites      int
	RatePerMinute int
}

// QuotaConfig holds quota enforcement settings
type QuotaConfig struct {
	NearLimitRatio   float64
	BypassSiteHashes []string
}

// CacheConfig holds metered-result cache settings
type CacheConfig struct {
	ResultTTL       time.Duration
	CleanupInterval time.Duration
}

// GeneratorConfig holds the AI generation client settings
type GeneratorConfig struct {
	BaseURL           string
	APIKey            string
	Model             string
	Timeout           time.Duration
	RequestsPerSecond float64
	Burst             int
	CreditsPerImage   int64
}

// StripeConfig holds payment webhook settings
type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	PriceIDs      map[string]string // Stripe price ID -> plan name
}

// MetricsConfig holds Prometheus exposition settings
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// TelemetryConfig holds OpenTelemetry export settings
type TelemetryConfig struct {
	Enabled           bool
	CollectorEndpoint string
	SamplingRatio     float64
	Insecure          bool
	ExportLogs        bool // bridge zap entries to the collector
	DBTracing         bool
	LogFullSQL        bool // include query variables in DB spans
}

// LoadDotEnv loads variables from .env files into the process environment.
// Missing files are ignored; variables already set are not overridden.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load loads configuration from TOML file and environment variables
// Priority (highest to lowest):
// 1. Environment variables with ALTTEXT_ prefix (e.g., ALTTEXT_DATABASE_PASSWORD)
// 2. config.toml
// 3. Built-in defaults
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("./backend")
	v.AddConfigPath("/app")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("ALTTEXT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
			SlowQuery:       v.GetDuration("database.slow_query"),
		},
		Redis: RedisConfig{
			Enabled:  v.GetBool("redis.enabled"),
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		JWT: JWTConfig{
			Secret:                v.GetString("jwt.secret"),
			AccessTokenExpiration: v.GetDuration("jwt.access_token_expiration"),
			Issuer:                v.GetString("jwt.issuer"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:              v.GetDuration("http.read_timeout"),
			WriteTimeout:             v.GetDuration("http.write_timeout"),
			IdleTimeout:              v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes:           v.GetInt("http.max_header_bytes"),
			MaxBodySize:              v.GetInt64("http.max_body_size"),
			RateLimitEnabled:         v.GetBool("http.rate_limit_enabled"),
			RateLimitWindow:          v.GetDuration("http.rate_limit_window"),
			GlobalRateLimitPerWindow: v.GetInt("http.global_rate_limit_per_window"),
			AuthRateLimitRequests:    v.GetInt("http.auth_rate_limit_requests"),
			AuthRateLimitWindow:      v.GetDuration("http.auth_rate_limit_window"),
			CORSAllowOrigins:         v.GetStringSlice("http.cors_allow_origins"),
			CORSAllowMethods:         v.GetStringSlice("http.cors_allow_methods"),
			CORSAllowHeaders:         v.GetStringSlice("http.cors_allow_headers"),
			TrustedProxies:           v.GetStringSlice("http.trusted_proxies"),
		},
		Plans: make(map[licensing.Plan]PlanOverride),
		Quota: QuotaConfig{
			NearLimitRatio:   v.GetFloat64("quota.near_limit_ratio"),
			BypassSiteHashes: v.GetStringSlice("quota.bypass_site_hashes"),
		},
		Cache: CacheConfig{
			ResultTTL:       v.GetDuration("cache.result_ttl"),
			CleanupInterval: v.GetDuration("cache.cleanup_interval"),
		},
		Generator: GeneratorConfig{
			BaseURL:           v.GetString("generator.base_url"),
			APIKey:            v.GetString("generator.api_key"),
			Model:             v.GetString("generator.model"),
			Timeout:           v.GetDuration("generator.timeout"),
			RequestsPerSecond: v.GetFloat64("generator.requests_per_second"),
			Burst:             v.GetInt("generator.burst"),
			CreditsPerImage:   v.GetInt64("generator.credits_per_image"),
		},
		Stripe: StripeConfig{
			SecretKey:     v.GetString("stripe.secret_key"),
			WebhookSecret: v.GetString("stripe.webhook_secret"),
			PriceIDs:      v.GetStringMapString("stripe.price_ids"),
		},
		Metrics: MetricsConfig{
			Enabled: v.GetBool("metrics.enabled"),
			Path:    v.GetString("metrics.path"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			Insecure:          v.GetBool("telemetry.insecure"),
			ExportLogs:        v.GetBool("telemetry.export_logs"),
			DBTracing:         v.GetBool("telemetry.db_tracing"),
			LogFullSQL:        v.GetBool("telemetry.log_full_sql"),
		},
	}

	for _, plan := range licensing.AllPlans() {
		prefix := "plans." + string(plan) + "."
		override := PlanOverride{
			Credits:       v.GetInt64(prefix + "credits"),
			MaxSites:      v.GetInt(prefix + "max_sites"),
			RatePerMinute: v.GetInt(prefix + "rate_per_minute"),
		}
		if override != (PlanOverride{}) {
			cfg.Plans[plan] = override
		}
	}

	// Redis is on unless explicitly disabled
	if !v.IsSet("redis.enabled") {
		cfg.Redis.Enabled = true
	}
	// Sample everything unless a ratio is configured
	if !v.IsSet("telemetry.sampling_ratio") {
		cfg.Telemetry.SamplingRatio = 1
	}
	// Rate limiting is on unless explicitly disabled
	if !v.IsSet("http.rate_limit_enabled") {
		cfg.HTTP.RateLimitEnabled = true
	}

	applyDefaults(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults sets default values for any empty config fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "alttext-backend"
	}
	if cfg.App.Env == "" {
		cfg.App.Env = "development"
	}
	if cfg.App.Port == "" {
		cfg.App.Port = "8080"
	}
	if cfg.Database.Host == "" {
		cfg.Database.Host = "localhost"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Database.User == "" {
		cfg.Database.User = "postgres"
	}
	if cfg.Database.DBName == "" {
		cfg.Database.DBName = "alttext"
	}
	if cfg.Database.SSLMode == "" {
		cfg.Database.SSLMode = "disable"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 60
	}
	if cfg.Database.ConnMaxIdleTime == 0 {
		cfg.Database.ConnMaxIdleTime = 30
	}
	if cfg.Database.SlowQuery == 0 {
		cfg.Database.SlowQuery = 200 * time.Millisecond
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.JWT.AccessTokenExpiration == 0 {
		cfg.JWT.AccessTokenExpiration = 12 * time.Hour
	}
	if cfg.JWT.Issuer == "" {
		cfg.JWT.Issuer = "alttext-backend"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.HTTP.ReadTimeout == 0 {
		cfg.HTTP.ReadTimeout = 15 * time.Second
	}
	if cfg.HTTP.WriteTimeout == 0 {
		cfg.HTTP.WriteTimeout = 60 * time.Second // generation can be slow
	}
	if cfg.HTTP.IdleTimeout == 0 {
		cfg.HTTP.IdleTimeout = 60 * time.Second
	}
	if cfg.HTTP.MaxHeaderBytes == 0 {
		cfg.HTTP.MaxHeaderBytes = 1 << 20 // 1MB
	}
	if cfg.HTTP.MaxBodySize == 0 {
		cfg.HTTP.MaxBodySize = 1 << 20 // 1MB
	}
	if cfg.HTTP.RateLimitWindow == 0 {
		cfg.HTTP.RateLimitWindow = time.Minute
	}
	if cfg.HTTP.AuthRateLimitRequests == 0 {
		cfg.HTTP.AuthRateLimitRequests = 5
	}
	if cfg.HTTP.AuthRateLimitWindow == 0 {
		cfg.HTTP.AuthRateLimitWindow = 15 * time.Minute
	}
	// No default CORS origins: cross-origin requests are refused until configured.
	if len(cfg.HTTP.CORSAllowMethods) == 0 {
		cfg.HTTP.CORSAllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	}
	if len(cfg.HTTP.CORSAllowHeaders) == 0 {
		cfg.HTTP.CORSAllowHeaders = []string{"Content-Type", "Authorization", "X-Request-ID", "X-License-Key", "X-Site-Hash"}
	}
	if cfg.Quota.NearLimitRatio == 0 {
		cfg.Quota.NearLimitRatio = 0.9
	}
	if cfg.Cache.ResultTTL == 0 {
		cfg.Cache.ResultTTL = 24 * time.Hour
	}
	if cfg.Cache.CleanupInterval == 0 {
		cfg.Cache.CleanupInterval = 10 * time.Minute
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = "gpt-4o-mini"
	}
	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 30 * time.Second
	}
	if cfg.Generator.RequestsPerSecond == 0 {
		cfg.Generator.RequestsPerSecond = 10
	}
	if cfg.Generator.Burst == 0 {
		cfg.Generator.Burst = 20
	}
	if cfg.Generator.CreditsPerImage == 0 {
		cfg.Generator.CreditsPerImage = 1
	}
	if cfg.Stripe.PriceIDs == nil {
		cfg.Stripe.PriceIDs = map[string]string{}
	}
	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
	if cfg.Telemetry.CollectorEndpoint == "" {
		cfg.Telemetry.CollectorEndpoint = "localhost:4317"
	}
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}
	if c.Quota.NearLimitRatio <= 0 || c.Quota.NearLimitRatio > 1 {
		return fmt.Errorf("quota.near_limit_ratio must be in (0, 1], got %f", c.Quota.NearLimitRatio)
	}
	if c.HTTP.AuthRateLimitRequests < 0 {
		return fmt.Errorf("http.auth_rate_limit_requests cannot be negative")
	}
	if c.HTTP.GlobalRateLimitPerWindow < 0 {
		return fmt.Errorf("http.global_rate_limit_per_window cannot be negative")
	}
	for plan, o := range c.Plans {
		if o.Credits < 0 || o.RatePerMinute < 0 {
			return fmt.Errorf("plans.%s: credits and rate_per_minute cannot be negative", plan)
		}
	}
	for price, plan := range c.Stripe.PriceIDs {
		if _, err := licensing.ParsePlan(plan); err != nil {
			return fmt.Errorf("stripe.price_ids.%s: %w", price, err)
		}
	}
	if c.Telemetry.SamplingRatio < 0 || c.Telemetry.SamplingRatio > 1 {
		return fmt.Errorf("telemetry.sampling_ratio must be in [0, 1], got %f", c.Telemetry.SamplingRatio)
	}
	if c.Stripe.SecretKey != "" && c.Stripe.WebhookSecret == "" {
		return fmt.Errorf("stripe.webhook_secret is required when stripe.secret_key is set")
	}

	if c.App.Env == "production" {
		if c.JWT.Secret == "" {
			return fmt.Errorf("jwt.secret is required in production")
		}
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("jwt.secret must be at least 32 characters in production")
		}
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.LogFullSQL {
			return fmt.Errorf("telemetry.log_full_sql cannot be enabled in production")
		}
		for _, origin := range c.HTTP.CORSAllowOrigins {
			if origin == "*" {
				return fmt.Errorf("cors_allow_origins cannot be '*' in production (use specific origins)")
			}
		}
	}

	return nil
}

// PlanTable merges plan overrides into the built-in limits
func (c *Config) PlanTable() licensing.PlanTable {
	table := licensing.DefaultPlanTable()
	for plan, o := range c.Plans {
		limits := table.Limits(plan)
		if o.Credits > 0 {
			limits.Credits = o.Credits
		}
		if o.RatePerMinute > 0 {
			limits.RatePerMinute = o.RatePerMinute
		}
		switch {
		case o.MaxSites < 0:
			limits.MaxSites = nil
		case o.MaxSites > 0:
			maxSites := o.MaxSites
			limits.MaxSites = &maxSites
		}
		table = table.With(plan, limits)
	}
	return table
}

// PricePlans returns the Stripe price to plan mapping
func (c *Config) PricePlans() map[string]licensing.Plan {
	out := make(map[string]licensing.Plan, len(c.Stripe.PriceIDs))
	for price, name := range c.Stripe.PriceIDs {
		if plan, err := licensing.ParsePlan(name); err == nil {
			out[price] = plan
		}
	}
	return out
}

// IsProduction reports whether the app runs in production
func (c *Config) IsProduction() bool {
	return c.App.Env == "production"
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}
