// Package classify assigns a document type to raw billing text by scoring
// it against a fixed table of per-type signal patterns.
package classify

import (
	"regexp"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// MinSignals is the minimum best score required to leave "generic"
const MinSignals = 2

// minConfidence is the floor once a type has been selected
const minConfidence = 0.25

// Backend keys used as default extractors
const (
	ExtractorHeuristic = "heuristic"
	ExtractorOpenAI    = "openai"
	ExtractorGemini    = "gemini"
	ExtractorMedGemma  = "medgemma"
)

// signal is one weighted pattern of the table
type signal struct {
	name    string
	pattern *regexp.Regexp
}

// signalTable is the fixed per-type signal table. Each match counts once.
var signalTable = map[model.DocType][]signal{
	model.DocMedicalBill: {
		{"cpt_code", regexp.MustCompile(`(?i)\b(?:cpt|procedure)\s*(?:code)?\s*[:#]?\s*\d{5}\b`)},
		{"bare_cpt", regexp.MustCompile(`\b9\d{4}\b`)},
		{"statement_marker", regexp.MustCompile(`(?i)\b(?:patient statement|itemized (?:bill|statement)|statement date|amount due|balance due)\b`)},
		{"hospital_marker", regexp.MustCompile(`(?i)\b(?:hospital|medical center|clinic|physician|emergency (?:room|department)|office visit)\b`)},
		{"icd_code", regexp.MustCompile(`\b[A-TV-Z]\d{2}\.\d{1,4}\b`)},
	},
	model.DocInsuranceEOB: {
		{"eob_marker", regexp.MustCompile(`(?i)\bexplanation of benefits\b|\bEOB\b`)},
		{"not_a_bill", regexp.MustCompile(`(?i)\bthis is not a bill\b`)},
		{"allowed_amount", regexp.MustCompile(`(?i)\b(?:allowed amount|plan paid|plan discount|amount you owe|patient responsibility)\b`)},
		{"claim_number", regexp.MustCompile(`(?i)\bclaim\s*(?:number|no\.?|#)`)},
		{"member_id", regexp.MustCompile(`(?i)\b(?:member|subscriber)\s*id\b`)},
	},
	model.DocPharmacyReceipt: {
		{"rx_marker", regexp.MustCompile(`(?i)\brx\s*(?:#|no\.?|number)?\s*:?\s*\d{5,}`)},
		{"pharmacy_marker", regexp.MustCompile(`(?i)\b(?:pharmacy|pharmacist|prescription|refills?|qty|days supply)\b`)},
		{"ndc_code", regexp.MustCompile(`\b\d{4,5}-\d{3,4}-\d{1,2}\b`)},
		{"dosage", regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mg|mcg|ml)\b`)},
	},
	model.DocDentalBill: {
		{"cdt_code", regexp.MustCompile(`\bD\d{4}\b`)},
		{"dental_marker", regexp.MustCompile(`(?i)\b(?:dental|dentist|dds|dmd|orthodont\w*|periodont\w*)\b`)},
		{"tooth_marker", regexp.MustCompile(`(?i)\b(?:tooth|teeth|molar|crown|filling|prophylaxis|cleaning)\b`)},
	},
	model.DocFSAClaims: {
		{"fsa_marker", regexp.MustCompile(`(?i)\b(?:fsa|hsa|hra|flexible spending|health savings)\b`)},
		{"reimbursement", regexp.MustCompile(`(?i)\breimburse(?:d|ment)?\b`)},
		{"claim_status", regexp.MustCompile(`(?i)\b(?:claim status|approved|denied|pending|substantiat\w*)\b`)},
		{"plan_year", regexp.MustCompile(`(?i)\bplan year\b`)},
	},
}

// defaultExtractors is the fixed type → extraction backend map
var defaultExtractors = map[model.DocType]string{
	model.DocMedicalBill:     ExtractorMedGemma,
	model.DocInsuranceEOB:    ExtractorOpenAI,
	model.DocPharmacyReceipt: ExtractorHeuristic,
	model.DocDentalBill:      ExtractorMedGemma,
	model.DocFSAClaims:       ExtractorHeuristic,
	model.DocGeneric:         ExtractorHeuristic,
}

// Result is the classifier output
type Result struct {
	Type       model.DocType         `json:"type"`
	Confidence float64               `json:"confidence"`
	Scores     map[model.DocType]int `json:"scores"`
	Extractor  string                `json:"extractor"`
}

// DefaultExtractor returns the default extraction backend key for t
func DefaultExtractor(t model.DocType) string {
	if e, ok := defaultExtractors[t]; ok {
		return e
	}
	return ExtractorHeuristic
}

// Classify scores text against the signal table. Pure function of text.
func Classify(text string) Result {
	scores := make(map[model.DocType]int, len(signalTable))
	for docType, signals := range signalTable {
		total := 0
		for _, s := range signals {
			total += len(s.pattern.FindAllStringIndex(text, -1))
		}
		scores[docType] = total
	}

	best, second := model.DocGeneric, 0
	bestScore := 0
	for _, docType := range model.DocTypes() {
		score := scores[docType]
		if score > bestScore {
			second = bestScore
			best, bestScore = docType, score
		} else if score > second {
			second = score
		}
	}

	if bestScore < MinSignals {
		return Result{
			Type:       model.DocGeneric,
			Confidence: 0,
			Scores:     scores,
			Extractor:  DefaultExtractor(model.DocGeneric),
		}
	}

	confidence := float64(bestScore-second) / float64(bestScore)
	if confidence < minConfidence {
		confidence = minConfidence
	}
	if confidence > 1 {
		confidence = 1
	}

	return Result{
		Type:       best,
		Confidence: confidence,
		Scores:     scores,
		Extractor:  DefaultExtractor(best),
	}
}

// SignalNames returns the signal names defined for t, for diagnostics
func SignalNames(t model.DocType) []string {
	var names []string
	for _, s := range signalTable[t] {
		names = append(names, s.name)
	}
	return names
}
