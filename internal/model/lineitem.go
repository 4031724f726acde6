package model

import "github.com/shopspring/decimal"

// LineItemKind says which coverage slot a line item feeds
type LineItemKind string

const (
	KindReceipt   LineItemKind = "receipt"   // Provider charge, bill or receipt
	KindFSA       LineItemKind = "fsa"       // FSA/HSA claim or reimbursement
	KindInsurance LineItemKind = "insurance" // Insurance claim / EOB line
)

// LineItem is one billable event as parsed from a document
type LineItem struct {
	DateOfService    string              `json:"date_of_service"`
	ProcedureCode    string              `json:"procedure_code,omitempty"`
	Units            string              `json:"units,omitempty"`
	BilledAmount     decimal.Decimal     `json:"billed_amount"`
	AllowedAmount    decimal.NullDecimal `json:"allowed_amount"`
	PaidAmount       decimal.NullDecimal `json:"paid_amount"`
	Provider         string              `json:"provider,omitempty"`
	PatientDOB       string              `json:"patient_dob,omitempty"`
	Description      string              `json:"description,omitempty"`
	SourceDocumentID string              `json:"source_document_id"`
	Kind             LineItemKind        `json:"kind"`
}

// NormalizedTransaction is a line item reduced to its canonical identity.
// ID is the fingerprint of (patient DOB, provider, date, code, units, billed amount).
type NormalizedTransaction struct {
	ID               string       `json:"id"`
	PatientDOB       string       `json:"patient_dob"`
	Provider         string       `json:"provider"`
	DateOfService    string       `json:"date_of_service"`
	ProcedureCode    string       `json:"procedure_code"`
	Units            string       `json:"units"`
	BilledAmount     string       `json:"billed_amount"`
	AllowedAmount    string       `json:"allowed_amount,omitempty"`
	PaidAmount       string       `json:"paid_amount,omitempty"`
	Description      string       `json:"description"`
	Kind             LineItemKind `json:"kind"`
	SourceDocumentID string       `json:"source_document_id"`
}
