// Package score summarizes a session's findings into savings totals and
// diagnostic signals. Every signal carries the inputs of its formula.
package score

import (
	"fmt"
	"math"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// HighConfidence is the minimum issue confidence counted as high-confidence savings
const HighConfidence = 0.8

// Scorer calculates the savings summary and generates signals
type Scorer struct {
	threshold float64
}

// NewScorer creates a new scorer
func NewScorer() *Scorer {
	return &Scorer{threshold: HighConfidence}
}

// Summarize is NewScorer().Summarize
func Summarize(docs []*model.Document, sessionIssues []model.Issue, rows []model.CoverageRow) model.Summary {
	return NewScorer().Summarize(docs, sessionIssues, rows)
}

// Summarize totals savings over every document issue plus the
// cross-document issues
func (s *Scorer) Summarize(docs []*model.Document, sessionIssues []model.Issue, rows []model.CoverageRow) model.Summary {
	var issues []model.Issue
	for _, d := range docs {
		if d != nil {
			issues = append(issues, d.Issues...)
		}
	}
	issues = append(issues, sessionIssues...)

	summary := model.Summary{
		Documents:  len(docs),
		IssueCount: len(issues),
		ByType:     make(map[string]int),
		BySource:   make(map[string]int),
	}
	for _, i := range issues {
		summary.ByType[string(i.Type)]++
		summary.BySource[string(i.Source)]++
	}

	// 1. Savings
	total, high, savingsSignal := s.calculateSavings(issues)
	summary.TotalMaxSavings = total
	summary.HighConfidenceSavings = high
	summary.Signals = append(summary.Signals, savingsSignal)

	// 2. Corroboration by deterministic rules
	ratio, corroborationSignal := s.calculateCorroboration(issues)
	summary.Signals = append(summary.Signals, corroborationSignal)

	// 3. Coverage problems
	if sig, ok := s.detectCoverageProblems(rows); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 4. Uncategorized labels
	if sig, ok := s.detectUncategorized(issues); ok {
		summary.Signals = append(summary.Signals, sig)
	}

	// 5. Degraded analysis
	degraded, degradedSignal := s.detectDegraded(docs)
	if degraded > 0 {
		summary.Signals = append(summary.Signals, degradedSignal)
	}

	summary.Confidence = s.determineConfidence(len(issues), ratio, degraded)
	return summary
}

// calculateSavings sums max savings, overall and above the confidence threshold
func (s *Scorer) calculateSavings(issues []model.Issue) (float64, float64, model.Signal) {
	total, high := 0.0, 0.0
	withSavings := 0
	for _, i := range issues {
		if i.MaxSavings == nil {
			continue
		}
		withSavings++
		total += *i.MaxSavings
		if i.Confidence != nil && *i.Confidence >= s.threshold {
			high += *i.MaxSavings
		}
	}
	total, high = round2(total), round2(high)

	severity := model.SeverityInfo
	if high > 0 {
		severity = model.SeverityWarning
	}

	return total, high, model.Signal{
		Type:        model.SignalSavings,
		Severity:    severity,
		Description: fmt.Sprintf("Potential savings up to $%.2f ($%.2f high confidence)", total, high),
		Data: map[string]any{
			"issues":              len(issues),
			"issues_with_savings": withSavings,
			"total":               total,
			"high_confidence":     high,
			"threshold":           s.threshold,
			"formula":             "sum(max_savings); high_confidence where confidence >= threshold",
		},
	}
}

// calculateCorroboration measures how many findings come from deterministic rules
func (s *Scorer) calculateCorroboration(issues []model.Issue) (float64, model.Signal) {
	if len(issues) == 0 {
		return 0, model.Signal{
			Type:        model.SignalCorroboration,
			Severity:    model.SeverityInfo,
			Description: "No issues found",
			Data:        map[string]any{"issues": 0},
		}
	}

	heuristic := 0
	for _, i := range issues {
		if i.Source == model.SourceHeuristic {
			heuristic++
		}
	}
	ratio := float64(heuristic) / float64(len(issues))

	severity := model.SeverityInfo
	if ratio == 0 {
		severity = model.SeverityWarning
	}

	return ratio, model.Signal{
		Type:        model.SignalCorroboration,
		Severity:    severity,
		Description: fmt.Sprintf("Deterministic rules produced %d/%d findings (%.0f%%)", heuristic, len(issues), ratio*100),
		Data: map[string]any{
			"heuristic": heuristic,
			"total":     len(issues),
			"ratio":     ratio,
			"formula":   "heuristic_issues / total_issues",
		},
	}
}

// detectCoverageProblems counts rows that need attention
func (s *Scorer) detectCoverageProblems(rows []model.CoverageRow) (model.Signal, bool) {
	counts := make(map[model.CoverageStatus]int)
	for _, r := range rows {
		counts[r.Status]++
	}
	problems := counts[model.CoverageDiscrepancy] + counts[model.CoverageDoublePaid] + counts[model.CoverageMissingReceipt]
	if problems == 0 {
		return model.Signal{}, false
	}

	severity := model.SeverityWarning
	if counts[model.CoverageDoublePaid] > 0 {
		severity = model.SeverityCritical
	}

	return model.Signal{
		Type:     model.SignalCoverage,
		Severity: severity,
		Description: fmt.Sprintf("%d of %d services need attention (%d discrepancy, %d double paid, %d missing receipt)",
			problems, len(rows), counts[model.CoverageDiscrepancy], counts[model.CoverageDoublePaid], counts[model.CoverageMissingReceipt]),
		Data: map[string]any{
			"rows":            len(rows),
			"discrepancy":     counts[model.CoverageDiscrepancy],
			"double_paid":     counts[model.CoverageDoublePaid],
			"missing_receipt": counts[model.CoverageMissingReceipt],
			"covered":         counts[model.CoverageCovered],
			"awaiting":        counts[model.CoverageAwaitingConfirmation],
		},
	}, true
}

// detectUncategorized lists labels that stayed outside the taxonomy
func (s *Scorer) detectUncategorized(issues []model.Issue) (model.Signal, bool) {
	seen := make(map[string]bool)
	var labels []string
	for _, i := range issues {
		if i.Uncategorized() && !seen[string(i.Type)] {
			seen[string(i.Type)] = true
			labels = append(labels, string(i.Type))
		}
	}
	if len(labels) == 0 {
		return model.Signal{}, false
	}
	return model.Signal{
		Type:        model.SignalUncategorized,
		Severity:    model.SeverityInfo,
		Description: fmt.Sprintf("%d issue labels outside the taxonomy", len(labels)),
		Data:        map[string]any{"labels": labels},
	}, true
}

// detectDegraded counts documents analyzed by a fallback provider
func (s *Scorer) detectDegraded(docs []*model.Document) (int, model.Signal) {
	var names []string
	for _, d := range docs {
		if d == nil || d.Meta == nil {
			continue
		}
		if _, ok := d.Meta["fallback_provider"]; ok {
			names = append(names, d.Label)
		}
	}
	return len(names), model.Signal{
		Type:        model.SignalDegraded,
		Severity:    model.SeverityWarning,
		Description: fmt.Sprintf("%d documents fell back to local analysis", len(names)),
		Data:        map[string]any{"documents": names},
	}
}

// determineConfidence grades the summary as a whole
func (s *Scorer) determineConfidence(issueCount int, corroboration float64, degraded int) string {
	if issueCount == 0 {
		return "high"
	}
	if degraded > 0 {
		return "low"
	}
	if corroboration >= 0.5 {
		return "high"
	} else if corroboration > 0 {
		return "medium"
	}
	return "low"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
