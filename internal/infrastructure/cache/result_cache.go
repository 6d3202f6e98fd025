// Package cache stores generated results so identical requests skip the AI
// backend. Redis is used when available, a process-local cache otherwise.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// CachedResult is a generation result kept for reuse
type CachedResult struct {
	Text             string    `json:"text"`
	Model            string    `json:"model"`
	PromptTokens     int       `json:"prompt_tokens"`
	CompletionTokens int       `json:"completion_tokens"`
	CreatedAt        time.Time `json:"created_at"`
}

// ResultCache stores generation results by content key.
// Get reports a miss as (nil, false, nil).
type ResultCache interface {
	Get(ctx context.Context, key string) (*CachedResult, bool, error)
	Set(ctx context.Context, key string, result *CachedResult, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ResultKey derives the cache key for a generation request
func ResultKey(imageURL, prompt, model string) string {
	sum := sha256.Sum256([]byte(imageURL + "|" + prompt + "|" + model))
	return hex.EncodeToString(sum[:])
}
