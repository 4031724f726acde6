package model

import (
	"sort"
	"strings"
)

// Facts is the flat canonical fact record produced by every extractor.
// A complete record holds every canonical key; unset fields are "".
type Facts map[string]string

// Canonical fact keys
const (
	FactPatientName           = "patient_name"
	FactPatientDOB            = "patient_dob"
	FactPatientSex            = "patient_sex"
	FactPatientAge            = "patient_age"
	FactProviderName          = "provider_name"
	FactProviderNPI           = "provider_npi"
	FactServiceDate           = "service_date"
	FactServiceTime           = "service_time"
	FactProcedureCode         = "procedure_code"
	FactDiagnosisCode         = "diagnosis_code"
	FactBilledAmount          = "billed_amount"
	FactAllowedAmount         = "allowed_amount"
	FactPaidAmount            = "paid_amount"
	FactPatientResponsibility = "patient_responsibility"
	FactClaimNumber           = "claim_number"
	FactMemberID              = "member_id"
	FactInsurerName           = "insurer_name"
	FactPharmacyName          = "pharmacy_name"
	FactRxNumber              = "rx_number"
	FactMedicationName        = "medication_name"
)

// canonicalKeys is the fixed, ordered key set. Order matters for Canonical().
var canonicalKeys = []string{
	FactPatientName,
	FactPatientDOB,
	FactPatientSex,
	FactPatientAge,
	FactProviderName,
	FactProviderNPI,
	FactServiceDate,
	FactServiceTime,
	FactProcedureCode,
	FactDiagnosisCode,
	FactBilledAmount,
	FactAllowedAmount,
	FactPaidAmount,
	FactPatientResponsibility,
	FactClaimNumber,
	FactMemberID,
	FactInsurerName,
	FactPharmacyName,
	FactRxNumber,
	FactMedicationName,
}

var canonicalKeySet = func() map[string]bool {
	set := make(map[string]bool, len(canonicalKeys))
	for _, k := range canonicalKeys {
		set[k] = true
	}
	return set
}()

// CanonicalKeys returns a copy of the canonical key set in canonical order
func CanonicalKeys() []string {
	keys := make([]string, len(canonicalKeys))
	copy(keys, canonicalKeys)
	return keys
}

// IsCanonicalKey reports whether key belongs to the canonical schema
func IsCanonicalKey(key string) bool {
	return canonicalKeySet[key]
}

// NewFacts returns the all-empty schema
func NewFacts() Facts {
	f := make(Facts, len(canonicalKeys))
	for _, k := range canonicalKeys {
		f[k] = ""
	}
	return f
}

// Complete returns a copy holding exactly the canonical keys.
// Missing keys become "", non-canonical keys are dropped, values are trimmed.
func (f Facts) Complete() Facts {
	out := NewFacts()
	for k, v := range f {
		if canonicalKeySet[k] {
			out[k] = strings.TrimSpace(v)
		}
	}
	return out
}

// Get returns the value for key ("" when unset)
func (f Facts) Get(key string) string {
	if f == nil {
		return ""
	}
	return f[key]
}

// Populated returns the canonical keys with non-empty values, sorted
func (f Facts) Populated() []string {
	var keys []string
	for k, v := range f {
		if canonicalKeySet[k] && v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys
}

// IsEmpty reports whether no canonical field is populated
func (f Facts) IsEmpty() bool {
	return len(f.Populated()) == 0
}

// Merge fills empty fields of f from other and returns the result as a new record
func (f Facts) Merge(other Facts) Facts {
	out := f.Complete()
	for _, k := range canonicalKeys {
		if out[k] == "" && other.Get(k) != "" {
			out[k] = strings.TrimSpace(other[k])
		}
	}
	return out
}

// Canonical renders the record as key=value lines in canonical order.
// It is the input for document identity hashing.
func (f Facts) Canonical() string {
	var b strings.Builder
	for _, k := range canonicalKeys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(strings.ToLower(strings.TrimSpace(f.Get(k))))
		b.WriteByte('\n')
	}
	return b.String()
}
