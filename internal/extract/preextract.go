package extract

import (
	"regexp"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

var (
	cptPattern    = regexp.MustCompile(`(?i)\b(?:cpt|procedure)\b[^\n]{0,20}?\b\d{5}\b|\b99[0-9]{3}\b`)
	hcpcsPattern  = regexp.MustCompile(`\b[A-CEGHJ-V]\d{4}\b`)
	cdtPattern    = regexp.MustCompile(`\bD\d{4}\b`)
	ndcPattern    = regexp.MustCompile(`\b\d{4,5}-\d{3,4}-\d{1,2}\b`)
	icd10Pattern  = regexp.MustCompile(`\b[A-TV-Z]\d{2}\.\d{1,4}\b`)
	eobPattern    = regexp.MustCompile(`(?i)explanation of benefits|this is not a bill|allowed amount|plan paid`)
	rxPattern     = regexp.MustCompile(`(?i)\brx\b|pharmacy|prescription|refills?`)
	fsaPattern    = regexp.MustCompile(`(?i)\b(?:fsa|hsa|hra)\b|flexible spending|health savings|reimbursement`)
	amountPattern = regexp.MustCompile(`\$\s?\d[\d,]*(?:\.\d{2})?|\b\d{1,3}(?:,\d{3})*\.\d{2}\b`)
	datePattern   = regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}\b|\b\d{4}-\d{2}-\d{2}\b|\b(?:Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sep|Oct|Nov|Dec)[a-z]*\.? \d{1,2},? \d{4}\b`)
)

// PreExtract computes cheap routing signals without building the fact schema
func PreExtract(text string) model.Signals {
	lines := 0
	for _, l := range strings.Split(text, "\n") {
		if strings.TrimSpace(l) != "" {
			lines++
		}
	}

	return model.Signals{
		HasCPT:        cptPattern.MatchString(text),
		HasHCPCS:      hcpcsPattern.MatchString(text),
		HasCDT:        cdtPattern.MatchString(text),
		HasNDC:        ndcPattern.MatchString(text),
		HasICD10:      icd10Pattern.MatchString(text),
		HasEOBMarkers: eobPattern.MatchString(text),
		HasRxMarkers:  rxPattern.MatchString(text),
		HasFSAMarkers: fsaPattern.MatchString(text),
		AmountCount:   len(amountPattern.FindAllStringIndex(text, -1)),
		DateCount:     len(datePattern.FindAllStringIndex(text, -1)),
		LineCount:     lines,
		WordCount:     len(strings.Fields(text)),
	}
}
