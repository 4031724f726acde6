// Package analysis detects billing issues. Every detector, from the local rule
// set to the ensemble, satisfies the same four-method Provider contract.
package analysis

import (
	"context"
	"errors"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// ErrUnknownProvider is returned by Registry.Select for a key that is not registered
var ErrUnknownProvider = errors.New("unknown analysis provider")

// Provider keys
const (
	KeyLocal     = "local"
	KeyEnsemble  = "ensemble"
	KeyMedGemma  = "medgemma"
	KeyOpenAI    = "openai"
	KeyGemini    = "gemini"
	KeyAnthropic = "anthropic"
	KeySmart     = "smart"
)

// Provider analyzes one document's raw text and known facts
type Provider interface {
	// Name returns the registry key
	Name() string

	// Description is a one-line human summary
	Description() string

	// HealthCheck is called once at registration; false excludes the provider
	HealthCheck(ctx context.Context) bool

	// Analyze returns findings. Backend failures are returned as errors so the
	// caller can fall back; malformed model output is not an error.
	Analyze(ctx context.Context, rawText string, facts model.Facts) (*model.AnalysisResult, error)
}

// RunsHeuristics reports whether a provider already includes the
// deterministic safety-net checks in its own output
func RunsHeuristics(p Provider) bool {
	switch p.(type) {
	case *LocalProvider, *EnsembleProvider:
		return true
	}
	return false
}

// tag stamps provider and source on issues that lack them
func tag(issues []model.Issue, provider string, source model.IssueSource) []model.Issue {
	for i := range issues {
		if issues[i].Provider == "" {
			issues[i].Provider = provider
		}
		if issues[i].Source == "" {
			issues[i].Source = source
		}
	}
	return issues
}
