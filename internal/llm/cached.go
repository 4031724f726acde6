package llm

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/cache"
	"go.uber.org/zap"
)

// CachedBackend serves repeated identical prompts from a cache.
// Only successful completions are stored.
type CachedBackend struct {
	inner Backend
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedBackend wraps inner with c; ttl 0 uses the cache default
func NewCachedBackend(inner Backend, c cache.Cache, ttl time.Duration) *CachedBackend {
	return &CachedBackend{inner: inner, cache: c, ttl: ttl}
}

// Name returns the wrapped backend key
func (b *CachedBackend) Name() string {
	return b.inner.Name()
}

// IsAvailable is never cached
func (b *CachedBackend) IsAvailable(ctx context.Context) bool {
	return b.inner.IsAvailable(ctx)
}

// Complete returns the cached answer or calls the wrapped backend
func (b *CachedBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	key := cache.CompletionKey(
		b.inner.Name(),
		req.Model,
		req.System,
		req.Prompt,
		strconv.FormatBool(req.JSON),
		strconv.Itoa(req.MaxTokens),
		strconv.FormatFloat(req.Temperature, 'f', -1, 64),
	)

	if data, ok := b.cache.Get(key); ok {
		var resp CompletionResponse
		if err := json.Unmarshal(data, &resp); err == nil {
			resp.Cached = true
			return &resp, nil
		}
		_ = b.cache.Delete(key)
	}

	resp, err := b.inner.Complete(ctx, req)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(resp); err == nil {
		if err := b.cache.Set(key, data, b.ttl); err != nil {
			zap.L().Warn("completion cache write failed", zap.String("backend", b.Name()), zap.Error(err))
		}
	}
	return resp, nil
}

// Unwrap returns the wrapped backend
func (b *CachedBackend) Unwrap() Backend {
	return b.inner
}
