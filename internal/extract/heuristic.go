package extract

import (
	"context"
	"regexp"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
)

// Value shapes captured after a label
const (
	valueText   = `([^\n|]+?)(?:[ \t]{2,}|\||$)`
	valueDate   = `(\d{4}-\d{2}-\d{2}|\d{1,2}[/-]\d{1,2}[/-]\d{2,4}|[A-Za-z]{3,9}\.? \d{1,2},? \d{4})`
	valueTime   = `(\d{1,2}:\d{2}(?:\s?[APap][Mm])?)`
	valueAmount = `(\(?-?\$?\s?\d[\d,]*(?:\.\d{1,2})?\)?)`
	valueCode   = `([A-Za-z]?\d{4,5}[A-Za-z]?)\b`
	valueICD    = `([A-TV-Za-tv-z]\d{2}(?:\.\d{1,4})?[A-Za-z]?)\b`
	valueID     = `([A-Za-z0-9][A-Za-z0-9-]{3,})\b`
	valueNPI    = `(\d{10})\b`
	valueAge    = `(\d{1,3})\b`
	valueSex    = `(male|female|[MF])\b`
)

// labelledPattern is one "Label: value" rule for one canonical key
type labelledPattern struct {
	key     string
	pattern *regexp.Regexp
}

func labelled(key, labels, value string) labelledPattern {
	return labelledPattern{
		key:     key,
		pattern: regexp.MustCompile(`(?im)\b(?:` + labels + `)[ \t]*[:#][ \t]*` + value),
	}
}

// heuristicPatterns are tried per key in order; the first match wins.
// Only explicit labels are recognized.
var heuristicPatterns = []labelledPattern{
	labelled(model.FactPatientName, `patient\s+name|patient|member\s+name|insured\s+name`, valueText),
	labelled(model.FactPatientDOB, `date\s+of\s+birth|birth\s*date|dob`, valueDate),
	labelled(model.FactPatientSex, `sex|gender`, valueSex),
	labelled(model.FactPatientAge, `patient\s+age|age`, valueAge),
	labelled(model.FactProviderName, `billing\s+provider|rendering\s+provider|provider\s+name|provider|physician|facility|dentist`, valueText),
	labelled(model.FactProviderNPI, `npi`, valueNPI),
	labelled(model.FactServiceDate, `date\s+of\s+service|service\s+date|dos|date\s+of\s+visit|visit\s+date|fill\s+date|date\s+filled`, valueDate),
	labelled(model.FactServiceTime, `time\s+of\s+service|service\s+time|visit\s+time`, valueTime),
	labelled(model.FactProcedureCode, `cpt\s+code|cpt|hcpcs|cdt\s+code|cdt|procedure\s+code`, valueCode),
	labelled(model.FactDiagnosisCode, `icd-?10(?:\s+code)?|diagnosis\s+code|diagnosis|dx`, valueICD),
	labelled(model.FactBilledAmount, `total\s+charges?|total\s+billed|amount\s+billed|billed\s+amount|billed|charge\s+amount|retail\s+price`, valueAmount),
	labelled(model.FactAllowedAmount, `allowed\s+amount|plan\s+allowed|allowed`, valueAmount),
	labelled(model.FactPaidAmount, `plan\s+paid|insurance\s+paid|amount\s+paid|paid\s+amount|paid\s+by\s+plan|reimbursed\s+amount|reimbursed`, valueAmount),
	labelled(model.FactPatientResponsibility, `you\s+owe|amount\s+you\s+owe|patient\s+responsibility|your\s+responsibility|balance\s+due|amount\s+due|copay|you\s+paid`, valueAmount),
	labelled(model.FactClaimNumber, `claim\s*(?:#|no\.?|number|id)`, valueID),
	labelled(model.FactMemberID, `member\s*(?:id|#)|subscriber\s*id`, valueID),
	labelled(model.FactInsurerName, `insurance\s+company|insurer|payer|plan\s+name|health\s+plan`, valueText),
	labelled(model.FactPharmacyName, `pharmacy\s+name|pharmacy`, valueText),
	labelled(model.FactRxNumber, `rx\s*(?:#|no\.?|number)`, `(\d{5,})\b`),
	labelled(model.FactMedicationName, `medication|drug\s+name|drug`, valueText),
}

// HeuristicExtractor extracts facts with conservative labelled regexes only.
// It is zero-cost and always available.
type HeuristicExtractor struct {
	patterns []labelledPattern
}

// NewHeuristicExtractor creates a new heuristic extractor
func NewHeuristicExtractor() *HeuristicExtractor {
	return &HeuristicExtractor{patterns: heuristicPatterns}
}

// Name returns the extractor name
func (e *HeuristicExtractor) Name() string {
	return "heuristic"
}

// Extract populates a field only when its labelled pattern matches
func (e *HeuristicExtractor) Extract(ctx context.Context, rawText string) (facts model.Facts) {
	defer recoverFacts(e.Name(), &facts)

	facts = model.NewFacts()
	for _, p := range e.patterns {
		if facts[p.key] != "" {
			continue
		}
		m := p.pattern.FindStringSubmatch(rawText)
		if len(m) < 2 {
			continue
		}
		value := strings.TrimSpace(strings.TrimRight(m[1], " \t,;"))
		if value != "" {
			facts[p.key] = value
		}
	}
	return normalize.Facts(facts)
}
