package cli

import (
	"context"
	"fmt"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/cache"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/store"
	"github.com/boobootoo2/medbilldozer-sub000/internal/util"
	"github.com/boobootoo2/medbilldozer-sub000/internal/worker"
	"go.uber.org/zap"
)

// app holds the components shared by the commands
type app struct {
	config   *model.Config
	backends map[string]llm.Backend
	registry *analysis.Registry
	pipeline *pipeline.Pipeline
	store    *store.SQLiteStore // nil unless the store is enabled
	cache    *cache.LayeredCache // nil when caching is disabled
}

// modelProviders lists the single-backend providers in registration order
var modelProviders = []struct {
	key         string
	description string
}{
	{analysis.KeyMedGemma, "MedGemma domain model (self-hosted via Ollama)"},
	{analysis.KeyOpenAI, "OpenAI chat model"},
	{analysis.KeyGemini, "Gemini on Vertex AI"},
	{analysis.KeyAnthropic, "Anthropic Claude"},
}

// newApp builds backends, health-checks providers and opens the store
func newApp(ctx context.Context, cfg *model.Config, withStore bool) (*app, error) {
	opts := llm.Options{}
	var completions *cache.LayeredCache
	if cfg.Cache.Enabled {
		completions = cache.NewLayeredCache(cfg.Cache.MemoryTTL, util.ExpandHome(cfg.Cache.Dir), cfg.Cache.DiskTTL)
		opts.Cache = completions
		opts.CacheTTL = cfg.Cache.DiskTTL
	}
	if cfg.RateLimiting.RequestsPerSecond > 0 {
		lim := worker.NewLimiter(cfg.RateLimiting.RequestsPerSecond, cfg.RateLimiting.BurstSize)
		for key, o := range cfg.RateLimiting.Backends {
			lim.SetRate(key, o.RequestsPerSecond, o.BurstSize)
		}
		opts.Limiter = lim
	}

	backends := llm.Build(ctx, cfg, opts)
	registry := buildRegistry(ctx, cfg, backends)

	a := &app{
		config:   cfg,
		backends: backends,
		registry: registry,
		pipeline: pipeline.NewPipeline(cfg, registry, backends),
		cache:    completions,
	}

	if withStore && cfg.Store.Enabled {
		st, err := store.NewStore(cfg.Store.Path)
		if err != nil {
			return nil, fmt.Errorf("open store: %w", err)
		}
		a.store = st
	}
	return a, nil
}

// buildRegistry wraps every constructed backend in a provider. The ensemble
// uses MedGemma as its domain model and the configured canonicalizer backend.
func buildRegistry(ctx context.Context, cfg *model.Config, backends map[string]llm.Backend) *analysis.Registry {
	h := analysis.NewHeuristics()

	providers := make(map[string]*analysis.ModelProvider)
	var candidates []analysis.Provider
	for _, mp := range modelProviders {
		b, ok := backends[mp.key]
		if !ok {
			continue
		}
		p := analysis.NewModelProvider(mp.key, mp.description, b)
		providers[mp.key] = p
		candidates = append(candidates, p)
	}

	if domain, ok := providers[analysis.KeyMedGemma]; ok {
		var canon *analysis.Canonicalizer
		if cfg.Analysis.CanonicalizerEnabled {
			if b, ok := backends[cfg.Analysis.CanonicalizerBackend]; ok {
				canon = analysis.NewCanonicalizer(b, cfg.Analysis.CanonicalizerThreshold)
			} else {
				zap.L().Warn("canonicalizer backend not configured, ensemble runs without it",
					zap.String("backend", cfg.Analysis.CanonicalizerBackend))
			}
		}
		candidates = append(candidates, analysis.NewEnsembleProvider(domain, canon, h))
	}

	return analysis.NewRegistry(ctx, analysis.NewLocalProvider(h), candidates...)
}

// Close releases the store and any backend holding a client
func (a *app) Close() {
	if a.cache != nil {
		mem, disk := a.cache.Stats()
		zap.L().Info("completion cache",
			zap.Int64("memory_hits", mem.Hits), zap.Int64("disk_hits", disk.Hits), zap.Int64("misses", disk.Misses))
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			zap.L().Warn("failed to close store", zap.Error(err))
		}
	}
	for key, b := range a.backends {
		if err := llm.Close(b); err != nil {
			zap.L().Warn("failed to close backend", zap.String("backend", key), zap.Error(err))
		}
	}
}
