// Package pipeline runs the per-document analysis stages and reduces a set
// of analyzed documents to a session report.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/classify"
	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"go.uber.org/zap"
)

// ErrEmptyDocument is returned for blank input
var ErrEmptyDocument = errors.New("document is empty")

// Options are per-call overrides. Zero values use the routes and the
// configured default provider.
type Options struct {
	Name            string
	Provider        string
	Extractor       extract.Extractor
	LineItemBackend llm.Backend
	Progress        ProgressFunc
}

// Pipeline orchestrates the per-document stages
type Pipeline struct {
	registry   *analysis.Registry
	backends   map[string]llm.Backend
	heuristics *analysis.Heuristics
	config     *model.Config
}

// NewPipeline creates a pipeline. backends may be empty; the registry must
// contain the local provider.
func NewPipeline(cfg *model.Config, registry *analysis.Registry, backends map[string]llm.Backend) *Pipeline {
	if cfg == nil {
		cfg = model.DefaultConfig()
	}
	if backends == nil {
		backends = map[string]llm.Backend{}
	}
	return &Pipeline{
		registry:   registry,
		backends:   backends,
		heuristics: analysis.NewHeuristics(),
		config:     cfg,
	}
}

// AnalyzeText runs Analyze with default options
func (p *Pipeline) AnalyzeText(ctx context.Context, name, text string) (*model.Document, error) {
	return p.Analyze(ctx, text, Options{Name: name})
}

// Analyze runs every stage over one document. Extraction problems degrade
// the result and analysis failures fall back to the local provider; the only
// error is empty input.
func (p *Pipeline) Analyze(ctx context.Context, rawText string, opts Options) (*model.Document, error) {
	if strings.TrimSpace(rawText) == "" {
		return nil, ErrEmptyDocument
	}
	progress := opts.Progress

	doc := &model.Document{Name: opts.Name, RawText: rawText}

	// 1. Classify
	progress.emit(StageClassify, StatusStarted, nil)
	cls := classify.Classify(rawText)
	doc.Type, doc.Confidence, doc.Scores = cls.Type, cls.Confidence, cls.Scores
	progress.emit(StageClassify, StatusCompleted, map[string]any{"type": string(doc.Type), "confidence": doc.Confidence})

	// 2. Pre-extract
	progress.emit(StagePreExtract, StatusStarted, nil)
	doc.Signals = extract.PreExtract(rawText)
	progress.emit(StagePreExtract, StatusCompleted, map[string]any{"needs_model": doc.Signals.NeedsModel()})

	route := Routes(doc.Type, p.config.Routing)

	// 3. Extract facts
	progress.emit(StageExtract, StatusStarted, map[string]any{"route": route.Extract})
	extractor := opts.Extractor
	if extractor == nil {
		key := route.Extract
		if !doc.Signals.NeedsModel() {
			key = classify.ExtractorHeuristic
		}
		extractor = extract.ForBackend(key, p.backends)
	}
	doc.Facts = extractor.Extract(ctx, rawText)
	doc.SetMeta("extractor", extractor.Name())
	enrich(doc)
	if doc.Facts.IsEmpty() {
		progress.emit(StageExtract, StatusDegraded, map[string]any{"extractor": extractor.Name(), "reason": "no facts"})
	} else {
		progress.emit(StageExtract, StatusCompleted, map[string]any{"extractor": extractor.Name(), "fields": len(doc.Facts.Populated())})
	}

	// 4. Line items
	progress.emit(StageParseLineItems, StatusStarted, map[string]any{"route": route.LineItems})
	status := p.parseLineItems(ctx, doc, route, opts.LineItemBackend)
	progress.emit(StageParseLineItems, status, map[string]any{"count": len(doc.LineItems)})

	// 5. Analyze
	progress.emit(StageAnalyze, StatusStarted, nil)
	provider, status := p.analyze(ctx, doc, opts.Provider)
	progress.emit(StageAnalyze, status, map[string]any{"provider": provider.Name(), "issues": len(doc.Issues)})

	// 6. Inject deterministic issues
	progress.emit(StageInject, StatusStarted, nil)
	injected := 0
	if !analysis.RunsHeuristics(provider) {
		injected = p.inject(doc)
	}
	for i := range doc.Issues {
		doc.Issues[i].DocumentID = doc.ID
	}
	progress.emit(StageInject, StatusCompleted, map[string]any{"injected": injected})

	progress.emit(StageDone, StatusCompleted, map[string]any{
		"id":      doc.ID,
		"issues":  len(doc.Issues),
		"savings": doc.SavingsTotal(),
	})
	return doc, nil
}

// parseLineItems asks the routed backend for line items, falling back to
// the deterministic row parser
func (p *Pipeline) parseLineItems(ctx context.Context, doc *model.Document, route Route, override llm.Backend) string {
	backend := override
	if backend == nil && route.LineItems != classify.ExtractorHeuristic {
		backend = p.backends[route.LineItems]
	}
	if backend == nil {
		doc.LineItems = extract.HeuristicLineItems(doc.RawText, doc)
		doc.SetMeta("line_items_source", "heuristic")
		return StatusCompleted
	}

	items, err := p.modelLineItems(ctx, backend, doc)
	if err == nil && len(items) > 0 {
		doc.LineItems = items
		doc.SetMeta("line_items_source", backend.Name())
		return StatusCompleted
	}

	if err != nil {
		zap.L().Warn("line item extraction failed, using row parser",
			zap.String("backend", backend.Name()), zap.String("document", doc.ID), zap.Error(err))
		doc.SetMeta("line_items_error", err.Error())
	}
	doc.LineItems = extract.HeuristicLineItems(doc.RawText, doc)
	doc.SetMeta("line_items_source", "heuristic")
	return StatusDegraded
}

func (p *Pipeline) modelLineItems(ctx context.Context, backend llm.Backend, doc *model.Document) ([]model.LineItem, error) {
	resp, err := backend.Complete(ctx, llm.CompletionRequest{
		System:      extract.LineItemSystemPrompt,
		Prompt:      extract.LineItemPrompt(doc.Type, doc.RawText, doc.Facts),
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("line items: %w", err)
	}
	return extract.ParseLineItems(resp.Text, doc)
}

// analyze runs the selected provider under the analysis timeout. Any
// failure falls back to local.
func (p *Pipeline) analyze(ctx context.Context, doc *model.Document, key string) (analysis.Provider, string) {
	if key == "" {
		key = p.config.Analysis.DefaultProvider
	}
	provider, err := p.registry.Select(key)
	if err != nil {
		zap.L().Warn("unknown provider, using smart default", zap.String("provider", key), zap.Error(err))
		doc.SetMeta("provider_error", err.Error())
		provider, _ = p.registry.Select(analysis.KeySmart)
	}

	result, err := p.runProvider(ctx, provider, doc)
	if err == nil {
		doc.Provider = provider.Name()
		doc.Issues = result.Issues
		mergeMeta(doc, result.Meta)
		return provider, StatusCompleted
	}

	local := p.registry.Local()
	zap.L().Warn("analysis failed, falling back to local",
		zap.String("provider", provider.Name()), zap.String("document", doc.ID), zap.Error(err))
	doc.SetMeta("analysis_error", err.Error())
	doc.SetMeta("fallback_provider", local.Name())

	result, lerr := local.Analyze(ctx, doc.RawText, doc.Facts)
	if lerr != nil {
		doc.Provider = local.Name()
		doc.Issues = []model.Issue{}
		return local, StatusFailed
	}
	doc.Provider = local.Name()
	doc.Issues = result.Issues
	mergeMeta(doc, result.Meta)
	return local, StatusDegraded
}

func (p *Pipeline) runProvider(ctx context.Context, provider analysis.Provider, doc *model.Document) (*model.AnalysisResult, error) {
	if t := p.config.Analysis.Timeout; t > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t)
		defer cancel()
	}
	result, err := provider.Analyze(ctx, doc.RawText, doc.Facts)
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err == nil && result == nil {
		err = fmt.Errorf("%s returned no result", provider.Name())
	}
	return result, err
}

// inject adds the deterministic findings a model-only provider does not
// produce. It returns the number added.
func (p *Pipeline) inject(doc *model.Document) int {
	var issues []model.Issue
	issues = append(issues, analysis.DuplicateCharges(doc.LineItems)...)
	issues = append(issues, analysis.GenderMismatches(doc.RawText)...)
	issues = append(issues, p.heuristics.AgeInappropriate(doc.RawText, doc.Facts)...)
	for i := range issues {
		issues[i].Source = model.SourceHeuristic
		issues[i].Provider = analysis.KeyLocal
	}
	doc.Issues = append(doc.Issues, issues...)
	return len(issues)
}

func mergeMeta(doc *model.Document, meta map[string]any) {
	for k, v := range meta {
		doc.SetMeta("analysis."+k, v)
	}
}
