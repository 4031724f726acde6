package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/cache"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"go.uber.org/zap"
)

// Backend keys
const (
	KeyOpenAI    = "openai"
	KeyAnthropic = "anthropic"
	KeyGemini    = "gemini"
	KeyMedGemma  = "medgemma"
)

// NewBackend creates a backend for config.Vendor. An empty vendor disables the
// backend and returns nil, nil.
func NewBackend(ctx context.Context, config Config) (Backend, error) {
	switch strings.ToLower(config.Vendor) {
	case "openai":
		return NewOpenAIBackend(config)

	case "anthropic", "claude":
		return NewAnthropicBackend(config)

	case "gemini", "vertex", "vertexai":
		return NewGeminiBackend(ctx, config)

	case "ollama":
		return NewOllamaBackend(config)

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown model backend: %s (supported: openai, anthropic, gemini, ollama)", config.Vendor)
	}
}

// Options controls the wrappers applied by Build
type Options struct {
	Cache    cache.Cache     // nil disables caching
	Limiter  *worker.Limiter // nil disables rate limiting
	CacheTTL time.Duration   // 0 uses the cache default
}

// Build constructs every enabled backend in cfg.Backends, wrapped with the
// limiter and cache. Backends that cannot be constructed are logged and skipped.
func Build(ctx context.Context, cfg *model.Config, opts Options) map[string]Backend {
	sections := []struct {
		key    string
		vendor string
		bc     model.BackendConfig
	}{
		{KeyOpenAI, "openai", cfg.Backends.OpenAI},
		{KeyAnthropic, "anthropic", cfg.Backends.Anthropic},
		{KeyGemini, "gemini", cfg.Backends.Gemini},
		{KeyMedGemma, "ollama", cfg.Backends.MedGemma},
	}

	backends := make(map[string]Backend)
	for _, s := range sections {
		if !s.bc.Enabled {
			continue
		}
		b, err := NewBackend(ctx, ConfigFromModel(s.key, s.vendor, s.bc))
		if err != nil {
			zap.L().Warn("model backend disabled", zap.String("backend", s.key), zap.Error(err))
			continue
		}
		if b == nil {
			continue
		}
		backends[s.key] = Wrap(b, opts)
	}
	return backends
}

// Wrap applies rate limiting then caching to b. Cache hits skip the limiter.
func Wrap(b Backend, opts Options) Backend {
	if opts.Limiter != nil {
		b = NewLimitedBackend(b, opts.Limiter)
	}
	if opts.Cache != nil {
		b = NewCachedBackend(b, opts.Cache, opts.CacheTTL)
	}
	return b
}
