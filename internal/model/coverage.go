package model

import "sort"

// CoverageStatus summarizes how a real-world service was paid
type CoverageStatus string

const (
	CoverageCovered              CoverageStatus = "covered"               // Receipt matched by insurance and/or FSA
	CoverageAwaitingConfirmation CoverageStatus = "awaiting_confirmation" // Receipt only, awaiting insurance/FSA confirmation
	CoverageMissingReceipt       CoverageStatus = "missing_receipt"       // Claim without a matching receipt
	CoverageDiscrepancy          CoverageStatus = "discrepancy"           // Amounts disagree or grouping is ambiguous
	CoverageDoublePaid           CoverageStatus = "double_paid"           // Insurance and FSA both paid the full charge
)

// CoverageSlot is one amount/document-reference pair of a coverage row
type CoverageSlot struct {
	Amount      string   `json:"amount"`
	Paid        string   `json:"paid,omitempty"` // set when the paid amount differs from Amount
	DocumentIDs []string `json:"document_ids"`
}

// CoverageRow is one reconciled real-world service. Rows are rebuilt on
// every coverage-matrix invocation and never persisted on their own.
type CoverageRow struct {
	Description string         `json:"description"`
	Date        string         `json:"date"`
	Receipt     *CoverageSlot  `json:"receipt,omitempty"`
	FSA         *CoverageSlot  `json:"fsa,omitempty"`
	Insurance   *CoverageSlot  `json:"insurance,omitempty"`
	Status      CoverageStatus `json:"status"`
	Notes       string         `json:"notes,omitempty"`
}

// DocumentIDs returns the sorted union of every slot's document references
func (r CoverageRow) DocumentIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, slot := range []*CoverageSlot{r.Receipt, r.FSA, r.Insurance} {
		if slot == nil {
			continue
		}
		for _, id := range slot.DocumentIDs {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	sort.Strings(ids)
	return ids
}
