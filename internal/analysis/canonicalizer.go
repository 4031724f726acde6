package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"go.uber.org/zap"
)

// DefaultCanonicalizerThreshold is the minimum confidence for a relabel
const DefaultCanonicalizerThreshold = 0.7

const canonicalizerSystemPrompt = `You map free-form billing issue labels onto a fixed taxonomy.

CRITICAL RULES:
1. Answer with one taxonomy value, spelled exactly as listed.
2. If no value fits, answer "other" with low confidence.
3. Return ONLY a JSON object: {"type": "", "confidence": 0.0}`

var canonicalExamples = []struct{ label, typ string }{
	{"charged two times for the same visit", "duplicate_charge"},
	{"CPT does not match procedure description", "coding_error"},
	{"prostate exam for female patient", "gender_mismatch"},
	{"plan paid less than EOB shows", "eob_mismatch"},
}

// Canonicalizer resolves labels the static table misses with a secondary model
type Canonicalizer struct {
	backend   llm.Backend
	threshold float64
}

// NewCanonicalizer creates a canonicalizer; threshold <= 0 uses the default
func NewCanonicalizer(backend llm.Backend, threshold float64) *Canonicalizer {
	if threshold <= 0 {
		threshold = DefaultCanonicalizerThreshold
	}
	return &Canonicalizer{backend: backend, threshold: threshold}
}

// Resolve returns the canonical type for label. ok is false when the model
// fails, answers outside the taxonomy, or is below threshold.
func (c *Canonicalizer) Resolve(ctx context.Context, label string) (model.IssueType, bool) {
	resp, err := c.backend.Complete(ctx, llm.CompletionRequest{
		System:      canonicalizerSystemPrompt,
		Prompt:      canonicalizerPrompt(label),
		Temperature: 0,
		MaxTokens:   64,
		JSON:        true,
	})
	if err != nil {
		zap.L().Warn("canonicalizer call failed", zap.String("label", label), zap.Error(err))
		return "", false
	}

	var answer struct {
		Type       string  `json:"type"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.Unmarshal([]byte(extract.CleanJSON(resp.Text)), &answer); err != nil {
		zap.L().Warn("canonicalizer response unparseable", zap.String("label", label), zap.Error(err))
		return "", false
	}

	t := model.IssueType(strings.ToLower(strings.TrimSpace(answer.Type)))
	if !t.IsCanonical() || answer.Confidence < c.threshold {
		return "", false
	}
	return t, true
}

func canonicalizerPrompt(label string) string {
	var b strings.Builder
	b.WriteString("Taxonomy: ")
	types := model.IssueTypes()
	for i, t := range types {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(string(t))
	}
	b.WriteString("\n\nExamples:\n")
	for _, ex := range canonicalExamples {
		fmt.Fprintf(&b, "%q -> %s\n", ex.label, ex.typ)
	}
	fmt.Fprintf(&b, "\nLabel: %q\n", label)
	return b.String()
}
