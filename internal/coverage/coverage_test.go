package coverage

import (
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/extract"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/shopspring/decimal"
)

func doc(id string, typ model.DocType, items ...model.LineItem) *model.Document {
	for i := range items {
		items[i].SourceDocumentID = id
		items[i].Kind = typ.LineItemKind()
	}
	return &model.Document{ID: id, Type: typ, LineItems: items}
}

func charge(date, desc, amount string) model.LineItem {
	return model.LineItem{DateOfService: date, Description: desc, BilledAmount: decimal.RequireFromString(amount)}
}

func TestBuild_Statuses(t *testing.T) {
	tests := []struct {
		name   string
		docs   []*model.Document
		expect model.CoverageStatus
	}{
		{"receipt only", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
		}, model.CoverageAwaitingConfirmation},
		{"claim without receipt", []*model.Document{
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "200")),
		}, model.CoverageMissingReceipt},
		{"receipt and insurance match", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("eob", model.DocInsuranceEOB, charge("01/10/2026", "OFFICE  VISIT", "200.00")),
		}, model.CoverageCovered},
		{"receipt and fsa match", []*model.Document{
			doc("rx", model.DocPharmacyReceipt, charge("2026-01-10", "Amoxicillin", "15")),
			doc("fsa", model.DocFSAClaims, charge("2026-01-10", "Amoxicillin", "15")),
		}, model.CoverageCovered},
		{"receipt and insurance mismatch", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "180")),
		}, model.CoverageDiscrepancy},
		{"all three full amount", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "200")),
			doc("fsa", model.DocFSAClaims, charge("2026-01-10", "Office visit", "200")),
		}, model.CoverageDoublePaid},
		{"all three split", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "150")),
			doc("fsa", model.DocFSAClaims, charge("2026-01-10", "Office visit", "50")),
		}, model.CoverageCovered},
		{"all three do not add up", []*model.Document{
			doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "150")),
			doc("fsa", model.DocFSAClaims, charge("2026-01-10", "Office visit", "20")),
		}, model.CoverageDiscrepancy},
		{"conflicting receipts", []*model.Document{
			doc("bill1", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
			doc("bill2", model.DocMedicalBill, charge("2026-01-10", "Office visit", "250")),
			doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "200")),
		}, model.CoverageDiscrepancy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Build(tt.docs)
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %d", len(rows))
			}
			if rows[0].Status != tt.expect {
				t.Errorf("expected %s, got %s (%s)", tt.expect, rows[0].Status, rows[0].Notes)
			}
		})
	}
}

func TestBuild_SlotsAndDocumentIDs(t *testing.T) {
	rows := Build([]*model.Document{
		doc("bill", model.DocMedicalBill, charge("2026-01-10", "Office visit", "200")),
		doc("eob", model.DocInsuranceEOB, charge("2026-01-10", "Office visit", "200")),
	})

	row := rows[0]
	if row.Receipt == nil || row.Receipt.Amount != "200.00" {
		t.Errorf("unexpected receipt slot: %+v", row.Receipt)
	}
	if row.FSA != nil {
		t.Error("expected no fsa slot")
	}
	ids := row.DocumentIDs()
	if len(ids) != 2 || ids[0] != "bill" || ids[1] != "eob" {
		t.Errorf("expected [bill eob], got %v", ids)
	}
}

func TestBuild_SortedByDateThenDescription(t *testing.T) {
	rows := Build([]*model.Document{
		doc("bill", model.DocMedicalBill,
			charge("2026-02-01", "X-ray", "80"),
			charge("2026-01-10", "Office visit", "200"),
			charge("2026-01-10", "Lab panel", "45"),
		),
	})

	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	if rows[0].Description != "lab panel" || rows[1].Description != "office visit" || rows[2].Date != "2026-02-01" {
		t.Errorf("unexpected order: %+v", rows)
	}
}

func TestBuild_Empty(t *testing.T) {
	if rows := Build(nil); len(rows) != 0 {
		t.Errorf("expected no rows, got %d", len(rows))
	}
}

func parsed(id string, typ model.DocType, text string) *model.Document {
	d := &model.Document{ID: id, Type: typ}
	d.LineItems = extract.HeuristicLineItems(text, d)
	return d
}

func TestBuild_UsesPaidAmountsForSplits(t *testing.T) {
	bill := parsed("bill", model.DocMedicalBill, "01/10/2026  Office visit  $200.00")

	tests := []struct {
		name   string
		eob    string
		fsa    string
		expect model.CoverageStatus
	}{
		{"plan and fsa split the charge",
			"01/10/2026  Office visit  $200.00  $150.00  $150.00",
			"01/10/2026  Office visit  $50.00  $50.00", model.CoverageCovered},
		{"fsa reimbursed the full charge too",
			"01/10/2026  Office visit  $200.00  $200.00  $200.00",
			"01/10/2026  Office visit  $200.00  $200.00", model.CoverageDoublePaid},
		{"payments fall short",
			"01/10/2026  Office visit  $200.00  $150.00  $120.00",
			"01/10/2026  Office visit  $50.00  $50.00", model.CoverageDiscrepancy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := Build([]*model.Document{
				bill,
				parsed("eob", model.DocInsuranceEOB, tt.eob),
				parsed("fsa", model.DocFSAClaims, tt.fsa),
			})
			if len(rows) != 1 {
				t.Fatalf("expected 1 row, got %+v", rows)
			}
			if rows[0].Status != tt.expect {
				t.Errorf("expected %s, got %s (%s)", tt.expect, rows[0].Status, rows[0].Notes)
			}
		})
	}
}

func TestBuild_InsuranceMatchesOnCharge(t *testing.T) {
	rows := Build([]*model.Document{
		parsed("bill", model.DocMedicalBill, "01/10/2026  Office visit  $200.00"),
		parsed("eob", model.DocInsuranceEOB, "01/10/2026  Office visit  $200.00  $150.00  $120.00"),
	})
	if len(rows) != 1 || rows[0].Status != model.CoverageCovered {
		t.Fatalf("expected one covered row, got %+v", rows)
	}
	ins := rows[0].Insurance
	if ins == nil || ins.Amount != "200.00" || ins.Paid != "120.00" {
		t.Errorf("unexpected insurance slot %+v", ins)
	}
	if rows[0].Receipt.Paid != "" {
		t.Errorf("receipt without a paid amount should not report one, got %q", rows[0].Receipt.Paid)
	}
}
