package analysis

import (
	"context"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// LocalProvider runs only the deterministic heuristics. It needs no backend
// and is always registered.
type LocalProvider struct {
	heuristics *Heuristics
}

// NewLocalProvider creates the local provider
func NewLocalProvider(h *Heuristics) *LocalProvider {
	if h == nil {
		h = NewHeuristics()
	}
	return &LocalProvider{heuristics: h}
}

// Name returns "local"
func (p *LocalProvider) Name() string {
	return KeyLocal
}

// Description returns a one-line summary
func (p *LocalProvider) Description() string {
	return "Deterministic rules only (duplicates, sex/age-specific codes, drug pairs)"
}

// HealthCheck always succeeds
func (p *LocalProvider) HealthCheck(ctx context.Context) bool {
	return true
}

// Analyze parses line items from the text and applies the heuristics
func (p *LocalProvider) Analyze(ctx context.Context, rawText string, facts model.Facts) (*model.AnalysisResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	items := extract.HeuristicLineItems(rawText, nil)
	issues := tag(p.heuristics.Run(rawText, facts, items), KeyLocal, model.SourceHeuristic)
	return &model.AnalysisResult{
		Issues: nonNil(issues),
		Meta: map[string]any{
			"line_items": len(items),
			"heuristics": heuristicCounts(issues),
		},
	}, nil
}

func nonNil(issues []model.Issue) []model.Issue {
	if issues == nil {
		return []model.Issue{}
	}
	return issues
}
