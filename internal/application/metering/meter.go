// Package metering runs one billable generation: quota check, result cache,
// upstream call and ledger write.
package metering

import (
	"context"
	"strings"
	"time"

	billingapp "github.com/alttext/backend/internal/application/billing"
	"github.com/alttext/backend/internal/domain/billing"
	"github.com/alttext/backend/internal/domain/licensing"
	"github.com/alttext/backend/internal/domain/shared"
	"github.com/alttext/backend/internal/infrastructure/cache"
	"github.com/alttext/backend/internal/infrastructure/generator"
	"github.com/alttext/backend/internal/infrastructure/logger"
	"github.com/alttext/backend/internal/infrastructure/metrics"
	"github.com/alttext/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// ErrPromptRequired is returned when neither a prompt nor an image is supplied
var ErrPromptRequired = shared.NewDomainError("INVALID_INPUT", "prompt or image_url is required")

// DefaultEndpoint is the ledger endpoint name for generations
const DefaultEndpoint = "generate"

// GenerateInput is one metered generation request
type GenerateInput struct {
	LicenseKey string
	SiteHash   string
	UserID     string
	Endpoint   string
	Prompt     string
	ImageURL   string
	Credits    int64
}

// GenerateOutput is the generated text with the caller's updated quota
type GenerateOutput struct {
	Text             string                  `json:"text"`
	Model            string                  `json:"model"`
	PromptTokens     int                     `json:"prompt_tokens"`
	CompletionTokens int                     `json:"completion_tokens"`
	Cached           bool                    `json:"cached"`
	Quota            *billingapp.QuotaStatus `json:"quota"`
}

// Config contains configuration for the meter
type Config struct {
	CreditsPerRequest int64
	CacheTTL          time.Duration
}

// Meter runs the metering pipeline
type Meter struct {
	quota     *billingapp.QuotaService
	usage     *billingapp.UsageService
	generator generator.Generator
	results   cache.ResultCache
	metrics   metrics.Recorder
	config    Config
	logger    *zap.Logger
	now       func() time.Time
}

// NewMeter creates a meter. results may be nil to disable result caching.
func NewMeter(
	quota *billingapp.QuotaService,
	usage *billingapp.UsageService,
	gen generator.Generator,
	results cache.ResultCache,
	recorder metrics.Recorder,
	config Config,
	log *zap.Logger,
) *Meter {
	if log == nil {
		log = zap.NewNop()
	}
	if config.CreditsPerRequest <= 0 {
		config.CreditsPerRequest = billing.DefaultCredits
	}
	return &Meter{
		quota:     quota,
		usage:     usage,
		generator: gen,
		results:   results,
		metrics:   metrics.OrNop(recorder),
		config:    config,
		logger:    log,
		now:       time.Now,
	}
}

// Generate enforces quota, serves from the result cache when possible and
// otherwise calls the generator exactly once. Cached results are billed like
// fresh ones. Upstream failures are recorded at zero cost and surface as
// SERVER_ERROR.
func (m *Meter) Generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "meter", "generate",
		telemetry.SpanAttrLicense, logger.RedactKey(in.LicenseKey),
		telemetry.SpanAttrSiteHash, in.SiteHash,
	)
	defer span.End()

	out, err := m.generate(ctx, in)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	telemetry.SetAttributes(span, telemetry.SpanAttrCached, out.Cached)
	return out, nil
}

func (m *Meter) generate(ctx context.Context, in GenerateInput) (*GenerateOutput, error) {
	in.Prompt = strings.TrimSpace(in.Prompt)
	in.ImageURL = strings.TrimSpace(in.ImageURL)
	if in.Prompt == "" && in.ImageURL == "" {
		return nil, ErrPromptRequired
	}
	credits := in.Credits
	if credits <= 0 {
		credits = m.config.CreditsPerRequest
	}

	status, err := m.quota.Enforce(ctx, in.LicenseKey, in.SiteHash, credits)
	if err != nil {
		return nil, err
	}
	log := logger.Enrich(ctx, m.logger).With(zap.String("site_hash", in.SiteHash))

	model := m.generator.Model()
	key := cache.ResultKey(in.ImageURL, in.Prompt, model)
	if hit := m.lookup(ctx, log, key); hit != nil {
		m.record(ctx, status, in, credits, func(r *billing.UsageRecord) {
			r.WithTokens(hit.PromptTokens, hit.CompletionTokens).WithGeneration(hit.Model, true, 0)
		})
		return &GenerateOutput{
			Text:             hit.Text,
			Model:            hit.Model,
			PromptTokens:     hit.PromptTokens,
			CompletionTokens: hit.CompletionTokens,
			Cached:           true,
			Quota:            m.refreshed(ctx, in, status),
		}, nil
	}

	start := m.now()
	result, err := m.generator.Generate(ctx, generator.Request{Prompt: in.Prompt, ImageURL: in.ImageURL, Model: model})
	latency := m.now().Sub(start)
	if err != nil {
		log.Error("Generation failed", zap.Duration("latency", latency), zap.Error(err))
		m.record(ctx, status, in, credits, func(r *billing.UsageRecord) {
			r.WithGeneration(model, false, latency).MarkFailed(err)
		})
		return nil, licensing.ServerError("generation failed", err)
	}
	m.metrics.GenerationObserved(latency)

	m.store(ctx, log, key, result)
	m.record(ctx, status, in, credits, func(r *billing.UsageRecord) {
		r.WithTokens(result.PromptTokens, result.CompletionTokens).WithGeneration(result.Model, false, latency)
	})

	return &GenerateOutput{
		Text:             result.Text,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		Quota:            m.refreshed(ctx, in, status),
	}, nil
}

func (m *Meter) lookup(ctx context.Context, log *zap.Logger, key string) *cache.CachedResult {
	if m.results == nil {
		return nil
	}
	hit, ok, err := m.results.Get(ctx, key)
	if err != nil {
		log.Warn("Result cache lookup failed, generating", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}
	return hit
}

func (m *Meter) store(ctx context.Context, log *zap.Logger, key string, result *generator.Result) {
	if m.results == nil {
		return
	}
	err := m.results.Set(ctx, key, &cache.CachedResult{
		Text:             result.Text,
		Model:            result.Model,
		PromptTokens:     result.PromptTokens,
		CompletionTokens: result.CompletionTokens,
		CreatedAt:        m.now().UTC(),
	}, m.config.CacheTTL)
	if err != nil {
		log.Warn("Failed to cache generation result", zap.Error(err))
	}
}

// record appends the ledger entry. Bypassed sites have no license in their
// status and are not billed.
func (m *Meter) record(ctx context.Context, status *billingapp.QuotaStatus, in GenerateInput, credits int64, decorate func(*billing.UsageRecord)) {
	license := status.License()
	if license == nil {
		return
	}
	endpoint := in.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	record, err := billing.NewUsageRecord(license.ID, endpoint, credits)
	if err != nil {
		logger.Enrich(ctx, m.logger).Error("Failed to build usage record", zap.Error(err))
		return
	}
	record.WithSite(in.SiteHash).WithUser(in.UserID).WithRecordedAt(m.now())
	decorate(record)
	// Failures are logged by the usage service; the response stands.
	_ = m.usage.Record(ctx, license, record)
}

// refreshed re-reads the quota after the ledger write, falling back to the
// pre-check status if the read fails
func (m *Meter) refreshed(ctx context.Context, in GenerateInput, before *billingapp.QuotaStatus) *billingapp.QuotaStatus {
	if before.Unlimited {
		return before
	}
	after, err := m.quota.Status(ctx, in.LicenseKey, in.SiteHash)
	if err != nil {
		logger.Enrich(ctx, m.logger).Warn("Failed to refresh quota status", zap.Error(err))
		return before
	}
	return after
}
