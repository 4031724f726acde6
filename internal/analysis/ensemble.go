package analysis

import (
	"context"
	"fmt"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// EnsembleProvider layers canonicalization and heuristics over a domain model
type EnsembleProvider struct {
	domain        Provider
	canonicalizer *Canonicalizer
	heuristics    *Heuristics
}

// NewEnsembleProvider creates an ensemble over domain. canonicalizer may be nil.
func NewEnsembleProvider(domain Provider, canonicalizer *Canonicalizer, h *Heuristics) *EnsembleProvider {
	if h == nil {
		h = NewHeuristics()
	}
	return &EnsembleProvider{domain: domain, canonicalizer: canonicalizer, heuristics: h}
}

// Name returns "ensemble"
func (p *EnsembleProvider) Name() string {
	return KeyEnsemble
}

// Description returns a one-line summary
func (p *EnsembleProvider) Description() string {
	return fmt.Sprintf("%s findings, canonicalized, plus deterministic rules", p.domain.Name())
}

// HealthCheck is healthy when the domain model is
func (p *EnsembleProvider) HealthCheck(ctx context.Context) bool {
	return p.domain != nil && p.domain.HealthCheck(ctx)
}

// Analyze runs the four phases. Domain model errors are returned unchanged.
func (p *EnsembleProvider) Analyze(ctx context.Context, rawText string, facts model.Facts) (*model.AnalysisResult, error) {
	// Phase 1: domain model
	base, err := p.domain.Analyze(ctx, rawText, facts)
	if err != nil {
		return nil, err
	}
	issues := make([]model.Issue, 0, len(base.Issues))
	issues = append(issues, base.Issues...)
	phase1 := len(issues)

	// Phase 2: static table
	var pending []int
	tableResolved := 0
	for i := range issues {
		if issues[i].Type.IsCanonical() {
			continue
		}
		if t, ok := CanonicalType(string(issues[i].Type)); ok {
			issues[i].Type = t
			tableResolved++
			continue
		}
		pending = append(pending, i)
	}

	// Phase 3: secondary model, asked once per distinct normalized label
	type resolution struct {
		t  model.IssueType
		ok bool
	}
	resolved := make(map[string]resolution)
	modelResolved := 0
	var unresolved []string
	for _, i := range pending {
		label := string(issues[i].Type)
		key := NormalizeLabel(label)
		r, seen := resolved[key]
		if !seen {
			if p.canonicalizer != nil {
				r.t, r.ok = p.canonicalizer.Resolve(ctx, label)
			}
			resolved[key] = r
			if !r.ok {
				unresolved = append(unresolved, label)
			}
		}
		if r.ok {
			issues[i].Type = r.t
			issues[i].Source = model.SourceCanonicalizer
			modelResolved++
		}
	}

	// Phase 4: heuristics, unioned
	heuristic := tag(p.heuristics.Run(rawText, facts, nil), KeyEnsemble, model.SourceHeuristic)
	issues = append(issues, heuristic...)

	meta := map[string]any{
		"domain_provider": p.domain.Name(),
		"phase_counts": map[string]int{
			"model":         phase1,
			"table":         tableResolved,
			"canonicalizer": modelResolved,
			"heuristic":     len(heuristic),
		},
		"unresolved_labels":     nonNilStrings(unresolved),
		"canonicalizer_enabled": p.canonicalizer != nil,
	}
	for k, v := range base.Meta {
		if _, taken := meta[k]; !taken {
			meta[k] = v
		}
	}

	return &model.AnalysisResult{Issues: tag(issues, KeyEnsemble, model.SourceModel), Meta: meta}, nil
}

func nonNilStrings(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
