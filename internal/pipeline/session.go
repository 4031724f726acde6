package pipeline

import (
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/coverage"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
	"github.com/boobootoo2/medbilldozer-sub000/internal/score"
	"github.com/boobootoo2/medbilldozer-sub000/internal/transaction"
	"github.com/google/uuid"
)

// SessionProvider tags cross-document findings
const SessionProvider = "session"

// BuildSession reduces analyzed documents to one report. It runs after every
// document has completed and is single-threaded.
func BuildSession(docs []*model.Document) *model.Session {
	var kept []*model.Document
	for _, d := range docs {
		if d != nil {
			kept = append(kept, d)
		}
	}

	ledger := transaction.NewLedger()
	for _, d := range kept {
		ledger.Add(transaction.Normalize(d.LineItems, d.ID)...)
	}
	entries := ledger.Entries()

	rows := coverage.Build(kept)
	issues := crossDocumentDuplicates(entries)

	return &model.Session{
		ID:           uuid.NewString(),
		CreatedAt:    time.Now().UTC(),
		Documents:    kept,
		Transactions: entries,
		Coverage:     rows,
		Issues:       issues,
		Summary:      score.Summarize(kept, issues, rows),
		Advisory:     true,
	}
}

// crossDocumentDuplicates runs the duplicate rule over deduplicated
// transactions. Groups confined to one document were already reported by
// that document's analysis and are skipped.
func crossDocumentDuplicates(entries []model.TransactionEntry) []model.Issue {
	type group struct {
		candidates []analysis.DuplicateCandidate
		docs       map[string]bool
	}
	groups := make(map[string]*group)
	var order []string

	for _, e := range entries {
		tx := e.Transaction
		// Only charges count; an EOB line for the same service is a
		// confirmation, not a second charge
		if tx.Kind != model.KindReceipt {
			continue
		}
		amount, ok := normalize.Amount(tx.BilledAmount)
		if !ok {
			continue
		}
		key := tx.DateOfService + "|" + tx.BilledAmount
		g, ok := groups[key]
		if !ok {
			g = &group{docs: make(map[string]bool)}
			groups[key] = g
			order = append(order, key)
		}
		g.candidates = append(g.candidates, analysis.DuplicateCandidate{
			Date:        tx.DateOfService,
			Amount:      amount,
			Code:        tx.ProcedureCode,
			Description: tx.Description,
		})
		for _, src := range e.Sources {
			g.docs[src] = true
		}
	}

	issues := []model.Issue{}
	for _, key := range order {
		g := groups[key]
		if len(g.candidates) < 2 || len(g.docs) < 2 {
			continue
		}
		for _, issue := range analysis.DuplicateCandidates(g.candidates) {
			issue.Source = model.SourceHeuristic
			issue.Provider = SessionProvider
			issues = append(issues, issue)
		}
	}
	return issues
}
