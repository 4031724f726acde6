package analysis

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
	"github.com/shopspring/decimal"
)

// Heuristic confidences
const (
	duplicateConfidence = 0.9
	genderConfidence    = 0.75
	ageConfidence       = 0.7
	drugConfidence      = 0.6
)

// markerWindow is how far around a code occurrence a sex marker is searched
const markerWindow = 40

// sexSpecificCodes maps procedure codes to the sex they apply to
var sexSpecificCodes = map[string]string{
	// Pregnancy and female-only
	"59400": "F", // Routine obstetric care, vaginal delivery
	"59510": "F", // Routine obstetric care, cesarean
	"59025": "F", // Fetal non-stress test
	"76801": "F", // Obstetric ultrasound, first trimester
	"76805": "F", // Obstetric ultrasound, after first trimester
	"81025": "F", // Urine pregnancy test
	"58150": "F", // Total abdominal hysterectomy
	"88175": "F", // Cervical cytology
	"G0101": "F", // Pelvic and breast exam
	// Male-only
	"55700": "M", // Prostate biopsy
	"55866": "M", // Laparoscopic prostatectomy
	"84153": "M", // PSA, total
	"G0103": "M", // PSA screening
	"54150": "M", // Circumcision
}

var (
	maleMarker   = regexp.MustCompile(`(?i)\b(?:male|man|mr\.?|he|his|him)\b`)
	femaleMarker = regexp.MustCompile(`(?i)\b(?:female|woman|mrs\.?|ms\.?|she|her|pregnant)\b`)
	codeToken    = regexp.MustCompile(`\b(?:\d{5}|[A-V]\d{4})\b`)
	lineAmount   = regexp.MustCompile(`\$?\s?\d{1,3}(?:,\d{3})*\.\d{2}`)
)

// ageRange is an inclusive age bound in years
type ageRange struct {
	min, max int
	label    string
}

// ageSpecificCodes maps preventive visit codes to their age band
var ageSpecificCodes = map[string]ageRange{
	"99381": {0, 0, "new patient preventive visit, infant"},
	"99382": {1, 4, "new patient preventive visit, age 1-4"},
	"99383": {5, 11, "new patient preventive visit, age 5-11"},
	"99384": {12, 17, "new patient preventive visit, age 12-17"},
	"99385": {18, 39, "new patient preventive visit, age 18-39"},
	"99386": {40, 64, "new patient preventive visit, age 40-64"},
	"99387": {65, 150, "new patient preventive visit, age 65+"},
	"99391": {0, 0, "established patient preventive visit, infant"},
	"99392": {1, 4, "established patient preventive visit, age 1-4"},
	"99393": {5, 11, "established patient preventive visit, age 5-11"},
	"99394": {12, 17, "established patient preventive visit, age 12-17"},
	"99395": {18, 39, "established patient preventive visit, age 18-39"},
	"99396": {40, 64, "established patient preventive visit, age 40-64"},
	"99397": {65, 150, "established patient preventive visit, age 65+"},
}

// drugPair is a known interacting medication pair
type drugPair struct {
	a, b   string
	effect string
}

var interactingDrugs = []drugPair{
	{"warfarin", "aspirin", "increased bleeding risk"},
	{"warfarin", "ibuprofen", "increased bleeding risk"},
	{"sildenafil", "nitroglycerin", "severe hypotension"},
	{"simvastatin", "clarithromycin", "rhabdomyolysis risk"},
	{"lisinopril", "spironolactone", "hyperkalemia"},
	{"methotrexate", "trimethoprim", "bone marrow suppression"},
	{"fluoxetine", "tramadol", "serotonin syndrome"},
	{"clopidogrel", "omeprazole", "reduced antiplatelet effect"},
}

// Heuristics is the deterministic safety-net rule set. These rules need no
// model and run under every provider.
type Heuristics struct {
	// Now is the reference time for age derivation when no service date is known
	Now func() time.Time
}

// NewHeuristics creates the rule set with the wall clock
func NewHeuristics() *Heuristics {
	return &Heuristics{Now: time.Now}
}

// Run applies every rule. items may be nil, in which case line items are
// parsed heuristically from the text.
func (h *Heuristics) Run(rawText string, facts model.Facts, items []model.LineItem) []model.Issue {
	if items == nil {
		items = extract.HeuristicLineItems(rawText, nil)
	}

	var issues []model.Issue
	issues = append(issues, DuplicateCharges(items)...)
	issues = append(issues, GenderMismatches(rawText)...)
	issues = append(issues, h.AgeInappropriate(rawText, facts)...)
	issues = append(issues, DrugInteractions(rawText)...)
	return tag(issues, "", model.SourceHeuristic)
}

// DuplicateCandidate is the minimal shape the duplicate rule needs; both
// line items and normalized transactions reduce to it
type DuplicateCandidate struct {
	Date        string
	Amount      decimal.Decimal
	Code        string
	Description string
}

// DuplicateCharges flags line items sharing both date and billed amount
func DuplicateCharges(items []model.LineItem) []model.Issue {
	candidates := make([]DuplicateCandidate, 0, len(items))
	for _, it := range items {
		candidates = append(candidates, DuplicateCandidate{
			Date:        it.DateOfService,
			Amount:      it.BilledAmount,
			Code:        it.ProcedureCode,
			Description: it.Description,
		})
	}
	return DuplicateCandidates(candidates)
}

// DuplicateCandidates groups by (date, amount). A group of n >= 2 yields one
// issue whose savings are amount * (n - 1). Same date alone, or same amount
// alone, is not a duplicate.
func DuplicateCandidates(candidates []DuplicateCandidate) []model.Issue {
	type group struct {
		first DuplicateCandidate
		count int
	}
	groups := make(map[string]*group)
	var order []string

	for _, c := range candidates {
		date := normalize.Date(c.Date)
		if date == "" || !c.Amount.IsPositive() {
			continue
		}
		key := date + "|" + c.Amount.StringFixed(2)
		g, ok := groups[key]
		if !ok {
			c.Date = date
			g = &group{first: c}
			groups[key] = g
			order = append(order, key)
		}
		g.count++
	}

	var issues []model.Issue
	for _, key := range order {
		g := groups[key]
		if g.count < 2 {
			continue
		}
		savings, _ := g.first.Amount.Mul(decimal.NewFromInt(int64(g.count - 1))).Float64()
		what := g.first.Description
		if what == "" {
			what = g.first.Code
		}
		if what == "" {
			what = "charge"
		}
		issues = append(issues, model.Issue{
			Type:    model.IssueDuplicateCharge,
			Summary: fmt.Sprintf("%s billed %d times on %s", what, g.count, g.first.Date),
			Evidence: fmt.Sprintf("%d line items dated %s for $%s each",
				g.count, g.first.Date, g.first.Amount.StringFixed(2)),
			Code:              g.first.Code,
			Date:              g.first.Date,
			RecommendedAction: "Ask the provider for an itemized bill and confirm the service was performed only once.",
			MaxSavings:        model.Float(savings),
			Confidence:        model.Float(duplicateConfidence),
		})
	}
	return issues
}

// GenderMismatches flags sex-specific codes with a conflicting sex marker
// within markerWindow characters of the code
func GenderMismatches(text string) []model.Issue {
	var issues []model.Issue
	seen := make(map[string]bool)

	for _, loc := range codeToken.FindAllStringIndex(text, -1) {
		code := text[loc[0]:loc[1]]
		sex, ok := sexSpecificCodes[code]
		if !ok || seen[code] {
			continue
		}

		start := max(0, loc[0]-markerWindow)
		end := min(len(text), loc[1]+markerWindow)

		conflict := maleMarker
		patient := "male"
		if sex == "M" {
			conflict = femaleMarker
			patient = "female"
		}
		m := markerNear(conflict, text, start, end)
		if m == nil {
			continue
		}
		seen[code] = true
		window := text[min(start, m[0]):max(end, m[1])]

		issue := model.Issue{
			Type:              model.IssueGenderMismatch,
			Summary:           fmt.Sprintf("Sex-specific code %s billed for a %s patient", code, patient),
			Evidence:          strings.TrimSpace(window),
			Code:              code,
			RecommendedAction: "Confirm the patient's sex on file and the procedure code with the provider.",
			Confidence:        model.Float(genderConfidence),
		}
		if amt, ok := amountOnLine(text, loc[0]); ok {
			issue.MaxSavings = model.Float(amt)
		}
		issues = append(issues, issue)
	}
	return issues
}

// markerNear matches re against the whole text so word boundaries are the
// real ones, and returns the first match overlapping [lo, hi). A marker cut
// by the window edge counts as a whole word.
func markerNear(re *regexp.Regexp, text string, lo, hi int) []int {
	for _, m := range re.FindAllStringIndex(text, -1) {
		if m[0] >= hi {
			break
		}
		if m[1] > lo {
			return m
		}
	}
	return nil
}

// AgeInappropriate flags age-banded codes billed outside the patient's age
func (h *Heuristics) AgeInappropriate(text string, facts model.Facts) []model.Issue {
	age, ok := h.patientAge(facts)
	if !ok {
		return nil
	}

	var issues []model.Issue
	seen := make(map[string]bool)
	for _, loc := range codeToken.FindAllStringIndex(text, -1) {
		code := text[loc[0]:loc[1]]
		band, ok := ageSpecificCodes[code]
		if !ok || seen[code] {
			continue
		}
		seen[code] = true
		if age >= band.min && age <= band.max {
			continue
		}
		issue := model.Issue{
			Type:              model.IssueAgeInappropriate,
			Summary:           fmt.Sprintf("Code %s (%s) billed for a %d-year-old patient", code, band.label, age),
			Evidence:          lineAt(text, loc[0]),
			Code:              code,
			RecommendedAction: "Ask the provider to confirm the age-appropriate visit code.",
			Confidence:        model.Float(ageConfidence),
		}
		if amt, ok := amountOnLine(text, loc[0]); ok {
			issue.MaxSavings = model.Float(amt)
		}
		issues = append(issues, issue)
	}
	return issues
}

// patientAge uses patient_age, else derives it from DOB and service date
func (h *Heuristics) patientAge(facts model.Facts) (int, bool) {
	if facts == nil {
		return 0, false
	}
	if a := facts.Get(model.FactPatientAge); a != "" {
		if n, err := strconv.Atoi(a); err == nil && n >= 0 {
			return n, true
		}
	}

	dob, ok := normalize.ParseDate(facts.Get(model.FactPatientDOB))
	if !ok {
		return 0, false
	}
	ref, ok := normalize.ParseDate(facts.Get(model.FactServiceDate))
	if !ok {
		now := time.Now
		if h.Now != nil {
			now = h.Now
		}
		ref = now()
	}
	if ref.Before(dob) {
		return 0, false
	}

	years := ref.Year() - dob.Year()
	if ref.Month() < dob.Month() || (ref.Month() == dob.Month() && ref.Day() < dob.Day()) {
		years--
	}
	return years, true
}

// DrugInteractions flags known interacting pairs mentioned together
func DrugInteractions(text string) []model.Issue {
	lower := strings.ToLower(text)
	var issues []model.Issue
	for _, p := range interactingDrugs {
		if !containsWord(lower, p.a) || !containsWord(lower, p.b) {
			continue
		}
		issues = append(issues, model.Issue{
			Type:              model.IssueDrugInteraction,
			Summary:           fmt.Sprintf("%s and %s dispensed together: %s", p.a, p.b, p.effect),
			Evidence:          fmt.Sprintf("Both %s and %s appear in the document", p.a, p.b),
			RecommendedAction: "Review the combination with the prescriber or pharmacist.",
			MaxSavings:        model.Float(0),
			Confidence:        model.Float(drugConfidence),
		})
	}
	return issues
}

func containsWord(lower, word string) bool {
	for i := 0; ; {
		j := strings.Index(lower[i:], word)
		if j < 0 {
			return false
		}
		s, e := i+j, i+j+len(word)
		if (s == 0 || !isLetter(lower[s-1])) && (e == len(lower) || !isLetter(lower[e])) {
			return true
		}
		i = e
	}
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z'
}

// lineAt returns the trimmed line containing offset
func lineAt(text string, offset int) string {
	start := strings.LastIndexByte(text[:offset], '\n') + 1
	end := strings.IndexByte(text[offset:], '\n')
	if end < 0 {
		end = len(text)
	} else {
		end += offset
	}
	return strings.TrimSpace(text[start:end])
}

// amountOnLine returns the first money amount on the line containing offset
func amountOnLine(text string, offset int) (float64, bool) {
	m := lineAmount.FindString(lineAt(text, offset))
	if m == "" {
		return 0, false
	}
	d, ok := normalize.Amount(m)
	if !ok {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}

// heuristicCounts tallies issues per type for result metadata
func heuristicCounts(issues []model.Issue) map[string]int {
	counts := make(map[string]int)
	for _, i := range issues {
		counts[string(i.Type)]++
	}
	return counts
}
