package llm

import (
	"context"
	"fmt"

	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
)

// LimitedBackend waits on a shared limiter, keyed by backend name, before each call
type LimitedBackend struct {
	inner   Backend
	limiter *worker.Limiter
}

// NewLimitedBackend wraps inner with limiter
func NewLimitedBackend(inner Backend, limiter *worker.Limiter) *LimitedBackend {
	return &LimitedBackend{inner: inner, limiter: limiter}
}

// Name returns the wrapped backend key
func (b *LimitedBackend) Name() string {
	return b.inner.Name()
}

// IsAvailable probes are not rate limited
func (b *LimitedBackend) IsAvailable(ctx context.Context) bool {
	return b.inner.IsAvailable(ctx)
}

// Complete waits for a token then calls the wrapped backend
func (b *LimitedBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := b.limiter.Wait(ctx, b.inner.Name()); err != nil {
		return nil, fmt.Errorf("rate limit wait for %s: %w", b.inner.Name(), err)
	}
	return b.inner.Complete(ctx, req)
}

// Unwrap returns the wrapped backend
func (b *LimitedBackend) Unwrap() Backend {
	return b.inner
}
