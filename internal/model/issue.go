package model

// IssueType is a finding category. Canonical values come from a closed
// taxonomy; labels a canonicalizer could not resolve are kept verbatim.
type IssueType string

const (
	IssueDuplicateCharge   IssueType = "duplicate_charge"
	IssueCodingError       IssueType = "coding_error"
	IssueGenderMismatch    IssueType = "gender_mismatch"
	IssueAgeInappropriate  IssueType = "age_inappropriate"
	IssueDrugInteraction   IssueType = "drug_interaction"
	IssueUnbundling        IssueType = "unbundling"
	IssueUpcoding          IssueType = "upcoding"
	IssueBalanceBilling    IssueType = "balance_billing"
	IssueOverbilling       IssueType = "overbilling"
	IssueMathError         IssueType = "math_error"
	IssueEOBMismatch       IssueType = "eob_mismatch"
	IssueFSAIneligible     IssueType = "fsa_ineligible"
	IssueMissingAdjustment IssueType = "missing_adjustment"
	IssueNetworkError      IssueType = "network_error"
	IssueOther             IssueType = "other"
)

var canonicalIssueTypes = []IssueType{
	IssueDuplicateCharge,
	IssueCodingError,
	IssueGenderMismatch,
	IssueAgeInappropriate,
	IssueDrugInteraction,
	IssueUnbundling,
	IssueUpcoding,
	IssueBalanceBilling,
	IssueOverbilling,
	IssueMathError,
	IssueEOBMismatch,
	IssueFSAIneligible,
	IssueMissingAdjustment,
	IssueNetworkError,
	IssueOther,
}

// IssueTypes returns the canonical taxonomy
func IssueTypes() []IssueType {
	out := make([]IssueType, len(canonicalIssueTypes))
	copy(out, canonicalIssueTypes)
	return out
}

// IsCanonical reports whether t belongs to the closed taxonomy
func (t IssueType) IsCanonical() bool {
	for _, c := range canonicalIssueTypes {
		if c == t {
			return true
		}
	}
	return false
}

// IssueSource identifies the sub-system that produced an issue
type IssueSource string

const (
	SourceModel         IssueSource = "model"
	SourceHeuristic     IssueSource = "heuristic"
	SourceCanonicalizer IssueSource = "canonicalizer"
)

// Issue is one advisory finding. Issues are append-only outputs.
type Issue struct {
	Type              IssueType   `json:"type"`
	Summary           string      `json:"summary"`
	Evidence          string      `json:"evidence"`
	Code              string      `json:"code,omitempty"`
	Date              string      `json:"date,omitempty"`
	RecommendedAction string      `json:"recommended_action,omitempty"`
	MaxSavings        *float64    `json:"max_savings,omitempty"`
	Source            IssueSource `json:"source"`
	Confidence        *float64    `json:"confidence,omitempty"`
	Provider          string      `json:"provider,omitempty"`
	DocumentID        string      `json:"document_id,omitempty"`
}

// Uncategorized reports whether the issue kept a label outside the taxonomy
func (i Issue) Uncategorized() bool {
	return !i.Type.IsCanonical()
}

// AnalysisResult is what every analysis provider returns
type AnalysisResult struct {
	Issues []Issue        `json:"issues"`
	Meta   map[string]any `json:"meta,omitempty"`
}

// Float returns a pointer to v, for the optional numeric Issue fields
func Float(v float64) *float64 {
	return &v
}
