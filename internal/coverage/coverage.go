// Package coverage reconciles receipts, insurance claims and FSA/HSA claims
// for the same real-world service into one row per service.
package coverage

import (
	"fmt"
	"sort"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/normalize"
	"github.com/shopspring/decimal"
)

// slot accumulates the members of one kind within a group. amounts are the
// charges; paid is what each member reports as paid, or its charge when the
// line carries no paid amount.
type slot struct {
	amounts []decimal.Decimal
	paid    []decimal.Decimal
	docs    []string
}

func (s *slot) add(it model.LineItem, docID string) {
	s.amounts = append(s.amounts, it.BilledAmount)
	paid := it.BilledAmount
	if it.PaidAmount.Valid {
		paid = it.PaidAmount.Decimal
	}
	s.paid = append(s.paid, paid)
	if docID == "" {
		return
	}
	for _, d := range s.docs {
		if d == docID {
			return
		}
	}
	s.docs = append(s.docs, docID)
}

// conflicting reports whether members disagree on the amount
func (s *slot) conflicting() bool {
	for _, a := range s.amounts[1:] {
		if !a.Equal(s.amounts[0]) {
			return true
		}
	}
	return false
}

func (s *slot) amount() decimal.Decimal {
	return s.amounts[0]
}

func (s *slot) payment() decimal.Decimal {
	return s.paid[0]
}

func (s *slot) row() *model.CoverageSlot {
	if s == nil {
		return nil
	}
	out := &model.CoverageSlot{
		Amount:      normalize.FormatAmount(s.amount()),
		DocumentIDs: append([]string{}, s.docs...),
	}
	if !s.payment().Equal(s.amount()) {
		out.Paid = normalize.FormatAmount(s.payment())
	}
	return out
}

type group struct {
	description string
	date        string
	slots       map[model.LineItemKind]*slot
}

// Build groups every document's line items by (description, date) and
// assigns each group a status. Identical services on the same day collapse
// into one row.
func Build(docs []*model.Document) []model.CoverageRow {
	groups := make(map[string]*group)

	for _, doc := range docs {
		if doc == nil {
			continue
		}
		for _, it := range doc.LineItems {
			desc := normalize.String(it.Description)
			if desc == "" {
				desc = normalize.String(it.ProcedureCode)
			}
			date := normalize.Date(it.DateOfService)
			key := desc + "|" + date

			g, ok := groups[key]
			if !ok {
				g = &group{description: desc, date: date, slots: make(map[model.LineItemKind]*slot)}
				groups[key] = g
			}

			kind := it.Kind
			if kind == "" {
				kind = doc.Type.LineItemKind()
			}
			s, ok := g.slots[kind]
			if !ok {
				s = &slot{}
				g.slots[kind] = s
			}
			docID := it.SourceDocumentID
			if docID == "" {
				docID = doc.ID
			}
			s.add(it, docID)
		}
	}

	rows := make([]model.CoverageRow, 0, len(groups))
	for _, g := range groups {
		receipt, fsa, insurance := g.slots[model.KindReceipt], g.slots[model.KindFSA], g.slots[model.KindInsurance]
		status, notes := rowStatus(receipt, fsa, insurance)
		rows = append(rows, model.CoverageRow{
			Description: g.description,
			Date:        g.date,
			Receipt:     receipt.row(),
			FSA:         fsa.row(),
			Insurance:   insurance.row(),
			Status:      status,
			Notes:       notes,
		})
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Date != rows[j].Date {
			return rows[i].Date < rows[j].Date
		}
		return rows[i].Description < rows[j].Description
	})
	return rows
}

// rowStatus decides a row's status from its three slots; nil means absent.
// A claim matches a receipt on the charged amount. When insurance and FSA are
// both present the split is judged on what each actually paid.
func rowStatus(receipt, fsa, insurance *slot) (model.CoverageStatus, string) {
	names := []string{"receipt", "fsa", "insurance"}
	for i, s := range []*slot{receipt, fsa, insurance} {
		if s != nil && s.conflicting() {
			return model.CoverageDiscrepancy, fmt.Sprintf("%s documents disagree on the amount", names[i])
		}
	}

	switch {
	case receipt == nil:
		return model.CoverageMissingReceipt, "claim has no matching receipt"

	case fsa == nil && insurance == nil:
		return model.CoverageAwaitingConfirmation, "receipt not yet confirmed by insurance or FSA"

	case fsa != nil && insurance != nil:
		r := receipt.amount()
		if fsa.payment().Equal(r) && insurance.payment().Equal(r) {
			return model.CoverageDoublePaid, "insurance and FSA each cover the full charge"
		}
		if fsa.payment().Add(insurance.payment()).Equal(r) {
			return model.CoverageCovered, "insurance and FSA together cover the charge"
		}
		return model.CoverageDiscrepancy, "insurance and FSA amounts do not add up to the receipt"

	default:
		other := insurance
		if other == nil {
			other = fsa
		}
		if other.amount().Equal(receipt.amount()) {
			return model.CoverageCovered, ""
		}
		return model.CoverageDiscrepancy, fmt.Sprintf("receipt %s vs claim %s",
			normalize.FormatAmount(receipt.amount()), normalize.FormatAmount(other.amount()))
	}
}
