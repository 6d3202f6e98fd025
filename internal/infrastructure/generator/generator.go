// Package generator calls the upstream AI service that writes alt text.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alttext/backend/internal/infrastructure/config"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Request is one generation call
type Request struct {
	Prompt   string `json:"prompt"`
	ImageURL string `json:"image_url,omitempty"`
	Model    string `json:"model,omitempty"`
}

// Result is the generated text with its token usage
type Result struct {
	Text             string `json:"text"`
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	Model            string `json:"model"`
}

// Generator produces text for a request
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
	Model() string
}

// StatusError is returned for non-2xx upstream responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("generator returned status %d: %s", e.StatusCode, e.Body)
}

// ErrNotConfigured is returned when no upstream URL is set
var ErrNotConfigured = errors.New("generator: base url is not configured")

const maxErrorBody = 512

// HTTPGenerator posts JSON requests to the upstream generation endpoint. An
// outbound limiter caps the request rate this process sends upstream.
type HTTPGenerator struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
	timeout time.Duration
	limiter *rate.Limiter
	logger  *zap.Logger
}

// Option configures an HTTPGenerator
type Option func(*HTTPGenerator)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(g *HTTPGenerator) {
		g.client = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option {
	return func(g *HTTPGenerator) {
		g.logger = l
	}
}

// NewHTTPGenerator creates a generator from configuration
func NewHTTPGenerator(cfg config.GeneratorConfig, opts ...Option) *HTTPGenerator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	limit := rate.Inf
	burst := cfg.Burst
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
		if burst <= 0 {
			burst = 1
		}
	}

	g := &HTTPGenerator{
		client:  &http.Client{},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		timeout: timeout,
		limiter: rate.NewLimiter(limit, burst),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Model returns the default model name
func (g *HTTPGenerator) Model() string {
	return g.model
}

// Generate performs exactly one upstream call
func (g *HTTPGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.baseURL == "" {
		return nil, ErrNotConfigured
	}
	if req.Model == "" {
		req.Model = g.model
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("generator rate limit wait: %w", err)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode generation request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/v1/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build generation request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if g.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	start := time.Now()
	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		g.logger.Warn("Generator returned error status",
			zap.Int("status", resp.StatusCode),
			zap.Duration("latency", time.Since(start)),
		)
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode generation response: %w", err)
	}
	if result.Model == "" {
		result.Model = req.Model
	}

	g.logger.Debug("Generation completed",
		zap.String("model", result.Model),
		zap.Int("prompt_tokens", result.PromptTokens),
		zap.Int("completion_tokens", result.CompletionTokens),
		zap.Duration("latency", time.Since(start)),
	)
	return &result, nil
}

var _ Generator = (*HTTPGenerator)(nil)
