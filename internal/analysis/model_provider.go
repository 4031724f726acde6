package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
)

const analysisSystemPrompt = `You review healthcare billing documents for errors a patient could dispute.

CRITICAL RULES:
1. Report only issues supported by text in the document. Quote that text as evidence.
2. Be conservative. When unsure, do not report the issue.
3. Never invent codes, dates or amounts.
4. max_savings is the most the patient could recover for the issue, or 0 when unknown.
5. Return ONLY a JSON object. No markdown, no commentary.`

const analysisSchema = `{"issues": [{"type": "", "summary": "", "evidence": "", "code": "", "date": "", "recommended_action": "", "max_savings": 0, "confidence": 0}]}`

// ModelProvider asks one model backend for issues
type ModelProvider struct {
	key         string
	description string
	backend     llm.Backend
}

// NewModelProvider wraps backend as the provider key
func NewModelProvider(key, description string, backend llm.Backend) *ModelProvider {
	return &ModelProvider{key: key, description: description, backend: backend}
}

// Name returns the provider key
func (p *ModelProvider) Name() string {
	return p.key
}

// Description returns a one-line summary
func (p *ModelProvider) Description() string {
	return p.description
}

// HealthCheck probes the backend
func (p *ModelProvider) HealthCheck(ctx context.Context) bool {
	return p.backend != nil && p.backend.IsAvailable(ctx)
}

// Analyze sends the document and facts to the backend. A backend failure is
// an error; an unparseable response yields no issues and meta["parse_error"].
func (p *ModelProvider) Analyze(ctx context.Context, rawText string, facts model.Facts) (*model.AnalysisResult, error) {
	resp, err := p.backend.Complete(ctx, llm.CompletionRequest{
		System:      analysisSystemPrompt,
		Prompt:      BuildAnalysisPrompt(rawText, facts),
		Temperature: 0,
		JSON:        true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s analysis: %w", p.key, err)
	}

	result := &model.AnalysisResult{
		Issues: []model.Issue{},
		Meta: map[string]any{
			"model":       resp.Model,
			"tokens_used": resp.TokensUsed,
			"cached":      resp.Cached,
		},
	}

	issues, err := ParseIssues(resp.Text)
	if err != nil {
		result.Meta["parse_error"] = err.Error()
		return result, nil
	}
	result.Issues = tag(issues, p.key, model.SourceModel)
	return result, nil
}

// BuildAnalysisPrompt renders the populated facts and the document
func BuildAnalysisPrompt(rawText string, facts model.Facts) string {
	var b strings.Builder
	b.WriteString("Known facts:\n")
	populated := facts.Populated()
	if len(populated) == 0 {
		b.WriteString("(none)\n")
	}
	for _, k := range populated {
		fmt.Fprintf(&b, "- %s: %s\n", k, facts[k])
	}

	b.WriteString("\nIssue types: ")
	types := model.IssueTypes()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	b.WriteString(strings.Join(names, ", "))

	b.WriteString("\n\nReturn JSON shaped like:\n")
	b.WriteString(analysisSchema)
	b.WriteString("\n\nDocument:\n")
	b.WriteString(rawText)
	return b.String()
}

type rawIssue struct {
	Type              string          `json:"type"`
	Summary           string          `json:"summary"`
	Evidence          string          `json:"evidence"`
	Code              json.RawMessage `json:"code"`
	Date              string          `json:"date"`
	RecommendedAction string          `json:"recommended_action"`
	MaxSavings        json.RawMessage `json:"max_savings"`
	Confidence        json.RawMessage `json:"confidence"`
}

// ParseIssues decodes a model response: an object with "issues" or a bare
// array. Issue types are kept as the model spelled them.
func ParseIssues(response string) ([]model.Issue, error) {
	cleaned := extract.CleanJSON(response)
	if cleaned == "" {
		return nil, fmt.Errorf("no JSON in analysis response")
	}

	var rows []rawIssue
	if cleaned[0] == '{' {
		var wrapper struct {
			Issues []rawIssue `json:"issues"`
		}
		if err := json.Unmarshal([]byte(cleaned), &wrapper); err != nil {
			return nil, fmt.Errorf("unmarshal issues: %w", err)
		}
		rows = wrapper.Issues
	} else if err := json.Unmarshal([]byte(cleaned), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal issues: %w", err)
	}

	issues := make([]model.Issue, 0, len(rows))
	for _, r := range rows {
		label := strings.TrimSpace(r.Type)
		if label == "" && r.Summary == "" {
			continue
		}
		if label == "" {
			label = string(model.IssueOther)
		}
		issue := model.Issue{
			Type:              model.IssueType(label),
			Summary:           strings.TrimSpace(r.Summary),
			Evidence:          strings.TrimSpace(r.Evidence),
			Code:              normalize.Code(rawText(r.Code)),
			Date:              normalize.Date(r.Date),
			RecommendedAction: strings.TrimSpace(r.RecommendedAction),
		}
		if v, ok := rawNumber(r.MaxSavings); ok && v >= 0 {
			issue.MaxSavings = model.Float(v)
		}
		if v, ok := rawNumber(r.Confidence); ok {
			issue.Confidence = model.Float(clamp01(v))
		}
		issues = append(issues, issue)
	}
	return issues, nil
}

func rawText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func rawNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	if d, ok := normalize.Amount(rawText(raw)); ok {
		v, _ := d.Float64()
		return v, true
	}
	return 0, false
}

func clamp01(v float64) float64 {
	return min(1, max(0, v))
}
