package analysis

import (
	"regexp"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// labelAliases maps normalized free-form labels to canonical issue types.
// Canonical values are added in init.
var labelAliases = map[string]model.IssueType{
	"duplicate":              model.IssueDuplicateCharge,
	"duplicate billing":      model.IssueDuplicateCharge,
	"double billing":         model.IssueDuplicateCharge,
	"double charge":          model.IssueDuplicateCharge,
	"repeated charge":        model.IssueDuplicateCharge,
	"billed twice":           model.IssueDuplicateCharge,
	"billing error":          model.IssueCodingError,
	"incorrect code":         model.IssueCodingError,
	"wrong code":             model.IssueCodingError,
	"incorrect cpt":          model.IssueCodingError,
	"invalid code":           model.IssueCodingError,
	"coding issue":           model.IssueCodingError,
	"gender mismatch":        model.IssueGenderMismatch,
	"sex mismatch":           model.IssueGenderMismatch,
	"gender specific":        model.IssueGenderMismatch,
	"age mismatch":           model.IssueAgeInappropriate,
	"age inappropriate":      model.IssueAgeInappropriate,
	"age specific":           model.IssueAgeInappropriate,
	"drug interaction":       model.IssueDrugInteraction,
	"medication interaction": model.IssueDrugInteraction,
	"contraindication":       model.IssueDrugInteraction,
	"unbundled":              model.IssueUnbundling,
	"unbundled charges":      model.IssueUnbundling,
	"upcoded":                model.IssueUpcoding,
	"level of service":       model.IssueUpcoding,
	"surprise billing":       model.IssueBalanceBilling,
	"surprise bill":          model.IssueBalanceBilling,
	"out of network billing": model.IssueBalanceBilling,
	"overcharge":             model.IssueOverbilling,
	"overcharged":            model.IssueOverbilling,
	"excessive charge":       model.IssueOverbilling,
	"price too high":         model.IssueOverbilling,
	"calculation error":      model.IssueMathError,
	"arithmetic error":       model.IssueMathError,
	"total mismatch":         model.IssueMathError,
	"eob discrepancy":        model.IssueEOBMismatch,
	"eob mismatch":           model.IssueEOBMismatch,
	"insurance mismatch":     model.IssueEOBMismatch,
	"not fsa eligible":       model.IssueFSAIneligible,
	"hsa ineligible":         model.IssueFSAIneligible,
	"ineligible expense":     model.IssueFSAIneligible,
	"missing discount":       model.IssueMissingAdjustment,
	"missing write off":      model.IssueMissingAdjustment,
	"contractual adjustment": model.IssueMissingAdjustment,
	"out of network":         model.IssueNetworkError,
	"network status":         model.IssueNetworkError,
	"miscellaneous":          model.IssueOther,
}

func init() {
	for _, t := range model.IssueTypes() {
		labelAliases[NormalizeLabel(string(t))] = t
	}
}

var labelSeparators = regexp.MustCompile(`[^a-z0-9]+`)

// NormalizeLabel lowercases a label and collapses punctuation to single spaces
func NormalizeLabel(label string) string {
	return strings.TrimSpace(labelSeparators.ReplaceAllString(strings.ToLower(label), " "))
}

// CanonicalType resolves a label through the static table
func CanonicalType(label string) (model.IssueType, bool) {
	t, ok := labelAliases[NormalizeLabel(label)]
	return t, ok
}
