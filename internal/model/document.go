package model

import "strings"

// DocType classifies a billing document
type DocType string

const (
	DocMedicalBill     DocType = "medical_bill"      // Itemized provider/hospital bill
	DocPharmacyReceipt DocType = "pharmacy_receipt"  // Pharmacy receipt or Rx statement
	DocDentalBill      DocType = "dental_bill"       // Dental statement (CDT codes)
	DocInsuranceEOB    DocType = "insurance_eob"     // Explanation of benefits / claim history
	DocFSAClaims       DocType = "fsa_claim_history" // FSA/HSA claim or reimbursement log
	DocGeneric         DocType = "generic"           // Not enough signal to decide
)

// DocTypes lists the known document types in classifier tie-break order
func DocTypes() []DocType {
	return []DocType{DocMedicalBill, DocInsuranceEOB, DocPharmacyReceipt, DocDentalBill, DocFSAClaims}
}

// Title returns a human-readable name for the type
func (t DocType) Title() string {
	switch t {
	case DocMedicalBill:
		return "Medical Bill"
	case DocPharmacyReceipt:
		return "Pharmacy Receipt"
	case DocDentalBill:
		return "Dental Bill"
	case DocInsuranceEOB:
		return "Insurance EOB"
	case DocFSAClaims:
		return "FSA/HSA Claims"
	default:
		return "Document"
	}
}

// LineItemKind returns the coverage slot that line items of this type feed
func (t DocType) LineItemKind() LineItemKind {
	switch t {
	case DocInsuranceEOB:
		return KindInsurance
	case DocFSAClaims:
		return KindFSA
	default:
		return KindReceipt
	}
}

// ParseDocType maps a string to a DocType, falling back to generic
func ParseDocType(s string) DocType {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, t := range DocTypes() {
		if string(t) == s {
			return t
		}
	}
	return DocGeneric
}

// Document is one ingested billing document and everything derived from it
type Document struct {
	ID         string          `json:"id"`
	Label      string          `json:"label"`
	Name       string          `json:"name,omitempty"` // File or object name the text came from
	RawText    string          `json:"-"`
	Type       DocType         `json:"type"`
	Confidence float64         `json:"confidence"`
	Scores     map[DocType]int `json:"scores,omitempty"`
	Facts      Facts           `json:"facts"`
	Signals    Signals         `json:"signals"`
	LineItems  []LineItem      `json:"line_items"`
	Issues     []Issue         `json:"issues"`
	Provider   string          `json:"provider,omitempty"` // Analysis provider that produced Issues
	Meta       map[string]any  `json:"meta,omitempty"`
}

// Signals are cheap pre-extraction flags used for routing decisions
type Signals struct {
	HasCPT        bool `json:"has_cpt"`
	HasHCPCS      bool `json:"has_hcpcs"`
	HasCDT        bool `json:"has_cdt"`
	HasNDC        bool `json:"has_ndc"`
	HasICD10      bool `json:"has_icd10"`
	HasEOBMarkers bool `json:"has_eob_markers"`
	HasRxMarkers  bool `json:"has_rx_markers"`
	HasFSAMarkers bool `json:"has_fsa_markers"`
	AmountCount   int  `json:"amount_count"`
	DateCount     int  `json:"date_count"`
	LineCount     int  `json:"line_count"`
	WordCount     int  `json:"word_count"`
}

// NeedsModel reports whether the document is dense enough to justify a model backend
func (s Signals) NeedsModel() bool {
	return s.HasCPT || s.HasCDT || s.HasHCPCS || s.HasNDC || s.AmountCount >= 3
}

// SetMeta records a stage metadata value, allocating the map on first use
func (d *Document) SetMeta(key string, value any) {
	if d.Meta == nil {
		d.Meta = make(map[string]any)
	}
	d.Meta[key] = value
}

// SavingsTotal sums MaxSavings over the document's issues
func (d *Document) SavingsTotal() float64 {
	total := 0.0
	for _, issue := range d.Issues {
		if issue.MaxSavings != nil {
			total += *issue.MaxSavings
		}
	}
	return total
}
