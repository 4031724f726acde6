package transaction

import "github.com/boobootoo2/medbilldozer-sub000/internal/model"

// Ledger accumulates transactions in first-seen order. Not safe for
// concurrent use; the session reduction is single-threaded.
type Ledger struct {
	order       []string
	unique      map[string]model.NormalizedTransaction
	sources     map[string][]string
	occurrences map[string]int
}

// NewLedger creates an empty ledger
func NewLedger() *Ledger {
	return &Ledger{
		unique:      make(map[string]model.NormalizedTransaction),
		sources:     make(map[string][]string),
		occurrences: make(map[string]int),
	}
}

// Add merges txs. A repeat of a known ID only extends its provenance; the
// same source is never listed twice.
func (l *Ledger) Add(txs ...model.NormalizedTransaction) {
	for _, tx := range txs {
		l.occurrences[tx.ID]++
		if _, ok := l.unique[tx.ID]; !ok {
			l.unique[tx.ID] = tx
			l.order = append(l.order, tx.ID)
		}
		if tx.SourceDocumentID != "" && !contains(l.sources[tx.ID], tx.SourceDocumentID) {
			l.sources[tx.ID] = append(l.sources[tx.ID], tx.SourceDocumentID)
		}
	}
}

// Len returns the number of unique transactions
func (l *Ledger) Len() int {
	return len(l.order)
}

// Entries returns unique transactions in first-seen order
func (l *Ledger) Entries() []model.TransactionEntry {
	entries := make([]model.TransactionEntry, 0, len(l.order))
	for _, id := range l.order {
		entries = append(entries, model.TransactionEntry{
			Transaction: l.unique[id],
			Sources:     append([]string{}, l.sources[id]...),
			Occurrences: l.occurrences[id],
		})
	}
	return entries
}

// Transactions returns unique transactions in first-seen order
func (l *Ledger) Transactions() []model.NormalizedTransaction {
	out := make([]model.NormalizedTransaction, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, l.unique[id])
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
