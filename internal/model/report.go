package model

import "time"

// Session is the result of analyzing a set of documents together
type Session struct {
	ID           string             `json:"id"`
	CreatedAt    time.Time          `json:"created_at"`
	Documents    []*Document        `json:"documents"`
	Transactions []TransactionEntry `json:"transactions"`
	Coverage     []CoverageRow      `json:"coverage"`
	Issues       []Issue            `json:"issues"` // Cross-document findings
	Summary      Summary            `json:"summary"`
	Advisory     bool               `json:"advisory"` // Findings are suggestions, never determinations
}

// TransactionEntry is one deduplicated transaction with its provenance
type TransactionEntry struct {
	Transaction NormalizedTransaction `json:"transaction"`
	Sources     []string              `json:"sources"`
	Occurrences int                   `json:"occurrences"`
}

// Summary is the transparent savings breakdown of a session
type Summary struct {
	Documents             int            `json:"documents"`
	IssueCount            int            `json:"issue_count"`
	TotalMaxSavings       float64        `json:"total_max_savings"`
	HighConfidenceSavings float64        `json:"high_confidence_savings"`
	ByType                map[string]int `json:"by_type"`
	BySource              map[string]int `json:"by_source"`
	Confidence            string         `json:"confidence"` // "low", "medium", "high"
	Signals               []Signal       `json:"signals"`
}

// Signal is a diagnostic signal with transparent scoring data
type Signal struct {
	Type        SignalType     `json:"type"`
	Severity    SignalSeverity `json:"severity"`
	Description string         `json:"description"`
	Data        map[string]any `json:"data,omitempty"` // Formula inputs
}

// SignalType classifies a signal
type SignalType string

const (
	SignalSavings       SignalType = "savings"       // Total and high-confidence savings
	SignalCorroboration SignalType = "corroboration" // Share of findings backed by deterministic rules
	SignalCoverage      SignalType = "coverage"      // Reconciliation problems across documents
	SignalUncategorized SignalType = "uncategorized" // Labels outside the closed taxonomy
	SignalDegraded      SignalType = "degraded"      // Documents that fell back to local analysis
)

// SignalSeverity indicates the importance of a signal
type SignalSeverity string

const (
	SeverityInfo     SignalSeverity = "info"
	SeverityWarning  SignalSeverity = "warning"
	SeverityCritical SignalSeverity = "critical"
)
