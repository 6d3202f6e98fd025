package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alttext/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPGenerator_Generate(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/generate", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		var req Request
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "describe", req.Prompt)
		assert.Equal(t, "https://example.com/cat.jpg", req.ImageURL)
		assert.Equal(t, "vision-1", req.Model)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Result{Text: "A cat on a sofa", PromptTokens: 90, CompletionTokens: 6})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.GeneratorConfig{BaseURL: srv.URL + "/", APIKey: "sk-test", Model: "vision-1"})
	assert.Equal(t, "vision-1", g.Model())

	res, err := g.Generate(context.Background(), Request{Prompt: "describe", ImageURL: "https://example.com/cat.jpg"})
	require.NoError(t, err)
	assert.Equal(t, "A cat on a sofa", res.Text)
	assert.Equal(t, 90, res.PromptTokens)
	assert.Equal(t, 6, res.CompletionTokens)
	assert.Equal(t, "vision-1", res.Model, "model falls back to the requested one")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPGenerator_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`{"error":"upstream overloaded"}`))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.GeneratorConfig{BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusBadGateway, statusErr.StatusCode)
	assert.Contains(t, statusErr.Body, "upstream overloaded")
}

func TestHTTPGenerator_BadJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("{"))
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.GeneratorConfig{BaseURL: srv.URL})
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorContains(t, err, "decode")
}

func TestHTTPGenerator_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.GeneratorConfig{BaseURL: srv.URL, Timeout: 20 * time.Millisecond})
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPGenerator_NotConfigured(t *testing.T) {
	g := NewHTTPGenerator(config.GeneratorConfig{})
	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestHTTPGenerator_OutboundRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Result{Text: "ok"})
	}))
	defer srv.Close()

	g := NewHTTPGenerator(config.GeneratorConfig{
		BaseURL:           srv.URL,
		RequestsPerSecond: 0.001,
		Burst:             1,
		Timeout:           50 * time.Millisecond,
	})

	_, err := g.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err, "burst admits the first call")

	_, err = g.Generate(context.Background(), Request{Prompt: "p"})
	assert.ErrorContains(t, err, "rate limit wait", "second call cannot get a token before the deadline")
}
