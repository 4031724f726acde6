// Package normalize holds the string, date, time, code and money rules shared
// by every extractor and by transaction fingerprinting.
package normalize

import (
	"regexp"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/shopspring/decimal"
)

var (
	whitespace  = regexp.MustCompile(`\s+`)
	amountChars = regexp.MustCompile(`[^0-9.\-]`)
)

// dateLayouts are tried in order; the first that parses wins.
// US month-first layouts precede day-first ones.
var dateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"1/2/2006",
	"01-02-2006",
	"1-2-2006",
	"01/02/06",
	"1/2/06",
	"2006/01/02",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 Jan 2006",
	"02-Jan-2006",
	"2006-01-02T15:04:05Z07:00",
}

var timeLayouts = []string{
	"15:04",
	"15:04:05",
	"3:04 PM",
	"3:04PM",
	"3:04 pm",
	"3:04pm",
	"3 PM",
	"3PM",
}

// String trims, lower-cases and collapses internal whitespace
func String(s string) string {
	return strings.ToLower(whitespace.ReplaceAllString(strings.TrimSpace(s), " "))
}

// Name collapses whitespace and title-cases each word, for display-oriented facts
func Name(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	words := strings.Split(strings.ToLower(s), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Code upper-cases a procedure/diagnosis code and strips spaces and trailing punctuation
func Code(s string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, " ", "")
	return strings.TrimRight(s, ".,;:")
}

// Date converts a recognized date to YYYY-MM-DD. Unparseable input is
// returned trimmed so no information is lost.
func Date(s string) string {
	s = whitespace.ReplaceAllString(strings.TrimSpace(s), " ")
	if s == "" {
		return ""
	}
	if t, ok := ParseDate(s); ok {
		return t.Format("2006-01-02")
	}
	return s
}

// ParseDate parses s with the known layouts
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Time converts a recognized clock time to 24h HH:MM
func Time(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("15:04")
		}
	}
	return s
}

// Amount parses a money string such as "$1,234.50" or "(12.00)".
// Parenthesized amounts are negative.
func Amount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	negative := strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")")
	cleaned := amountChars.ReplaceAllString(s, "")
	if cleaned == "" || cleaned == "-" || cleaned == "." {
		return decimal.Zero, false
	}
	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, false
	}
	if negative && d.IsPositive() {
		d = d.Neg()
	}
	return d, true
}

// FormatAmount renders d with two fixed decimals
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// AmountString normalizes a money string to two decimals, or returns it trimmed
// when it is not a number
func AmountString(s string) string {
	if d, ok := Amount(s); ok {
		return FormatAmount(d)
	}
	return strings.TrimSpace(s)
}

// Facts applies the key-appropriate rule to every canonical field and
// returns a complete record
func Facts(f model.Facts) model.Facts {
	out := f.Complete()
	for key, value := range out {
		if value == "" {
			continue
		}
		switch key {
		case model.FactPatientDOB, model.FactServiceDate:
			out[key] = Date(value)
		case model.FactServiceTime:
			out[key] = Time(value)
		case model.FactProcedureCode, model.FactDiagnosisCode, model.FactClaimNumber,
			model.FactMemberID, model.FactRxNumber, model.FactProviderNPI:
			out[key] = Code(value)
		case model.FactBilledAmount, model.FactAllowedAmount, model.FactPaidAmount,
			model.FactPatientResponsibility:
			out[key] = AmountString(value)
		case model.FactPatientSex:
			out[key] = Sex(value)
		case model.FactPatientName, model.FactProviderName, model.FactInsurerName,
			model.FactPharmacyName, model.FactMedicationName:
			out[key] = Name(value)
		default:
			out[key] = whitespace.ReplaceAllString(strings.TrimSpace(value), " ")
		}
	}
	return out
}

// Sex maps common sex markers to "M" or "F"; anything else is returned trimmed
func Sex(s string) string {
	switch String(s) {
	case "m", "male", "man":
		return "M"
	case "f", "female", "woman":
		return "F"
	}
	return strings.TrimSpace(s)
}
