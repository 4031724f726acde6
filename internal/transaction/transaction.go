// Package transaction reduces parsed line items to canonical transactions and
// merges the same real-world event seen in several documents.
package transaction

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
)

// DefaultUnits is used when a line item states no quantity
const DefaultUnits = "1"

// Fingerprint is the stable identity of a billable event. Inputs are
// normalized before hashing so formatting differences do not matter.
func Fingerprint(dob, provider, date, code, units, billed string) string {
	parts := []string{
		normalize.Date(normalize.String(dob)),
		normalize.String(provider),
		normalize.Date(normalize.String(date)),
		normalize.String(code),
		units1(normalize.String(units)),
		normalize.AmountString(billed),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(sum[:])
}

func units1(u string) string {
	if u == "" {
		return DefaultUnits
	}
	if d, ok := normalize.Amount(u); ok {
		return d.String()
	}
	return u
}

// Normalize converts line items into canonical transactions. sourceDocumentID
// overrides each item's own source when non-empty.
func Normalize(items []model.LineItem, sourceDocumentID string) []model.NormalizedTransaction {
	txs := make([]model.NormalizedTransaction, 0, len(items))
	for _, it := range items {
		src := it.SourceDocumentID
		if sourceDocumentID != "" {
			src = sourceDocumentID
		}

		tx := model.NormalizedTransaction{
			PatientDOB:       normalize.Date(normalize.String(it.PatientDOB)),
			Provider:         normalize.String(it.Provider),
			DateOfService:    normalize.Date(normalize.String(it.DateOfService)),
			ProcedureCode:    normalize.String(it.ProcedureCode),
			Units:            units1(normalize.String(it.Units)),
			BilledAmount:     normalize.FormatAmount(it.BilledAmount),
			Description:      normalize.String(it.Description),
			Kind:             it.Kind,
			SourceDocumentID: src,
		}
		if it.AllowedAmount.Valid {
			tx.AllowedAmount = normalize.FormatAmount(it.AllowedAmount.Decimal)
		}
		if it.PaidAmount.Valid {
			tx.PaidAmount = normalize.FormatAmount(it.PaidAmount.Decimal)
		}
		tx.ID = Fingerprint(tx.PatientDOB, tx.Provider, tx.DateOfService, tx.ProcedureCode, tx.Units, tx.BilledAmount)
		txs = append(txs, tx)
	}
	return txs
}

// Deduplicate keeps the first occurrence of every fingerprint and records
// every document it was seen in
func Deduplicate(txs []model.NormalizedTransaction) (map[string]model.NormalizedTransaction, map[string][]string) {
	l := NewLedger()
	l.Add(txs...)
	return l.unique, l.sources
}
