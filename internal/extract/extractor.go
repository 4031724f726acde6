// Package extract maps raw billing text to the canonical fact record, cheap
// routing signals, and line items.
package extract

import (
	"context"

	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"go.uber.org/zap"
)

// Extractor maps raw text to a complete fact record. Implementations never
// return an error and never panic outward: "nothing found" is the empty schema.
type Extractor interface {
	Name() string
	Extract(ctx context.Context, rawText string) model.Facts
}

// recoverFacts turns a panic inside an extractor into the empty schema
func recoverFacts(name string, out *model.Facts) {
	if r := recover(); r != nil {
		zap.L().Warn("extractor panicked", zap.String("extractor", name), zap.Any("panic", r))
		*out = model.NewFacts()
	}
}

// FallbackExtractor runs fallback when primary finds nothing
type FallbackExtractor struct {
	primary  Extractor
	fallback Extractor
}

// NewFallbackExtractor creates a new fallback chain
func NewFallbackExtractor(primary, fallback Extractor) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, fallback: fallback}
}

// Name returns the primary name
func (e *FallbackExtractor) Name() string {
	return e.primary.Name()
}

// Extract runs primary, then fallback if every field is empty
func (e *FallbackExtractor) Extract(ctx context.Context, rawText string) (facts model.Facts) {
	defer recoverFacts(e.Name(), &facts)

	facts = e.primary.Extract(ctx, rawText)
	if !facts.IsEmpty() || e.fallback == nil {
		return facts.Complete()
	}

	zap.L().Debug("primary extractor found nothing, using fallback",
		zap.String("primary", e.primary.Name()), zap.String("fallback", e.fallback.Name()))
	return e.fallback.Extract(ctx, rawText).Complete()
}

// ForBackend returns the extractor for a backend key. "heuristic", "" or a key
// with no configured backend yields the heuristic extractor; a model backend is
// always chained to the heuristic extractor as fallback.
func ForBackend(key string, backends map[string]llm.Backend) Extractor {
	heuristic := NewHeuristicExtractor()
	if key == "" || key == heuristic.Name() {
		return heuristic
	}
	b, ok := backends[key]
	if !ok || b == nil {
		return heuristic
	}
	return NewFallbackExtractor(NewLLMExtractor(b), heuristic)
}
