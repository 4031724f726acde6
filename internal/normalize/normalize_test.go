package normalize

import (
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

func TestString(t *testing.T) {
	if got := String("  Office   VISIT \n"); got != "office visit" {
		t.Errorf("expected 'office visit', got %q", got)
	}
}

func TestDate_Formats(t *testing.T) {
	inputs := []string{"2026-01-10", "01/10/2026", "1/10/2026", "01-10-2026", "01/10/26", "Jan 10, 2026", "January 10 2026"}
	for _, in := range inputs {
		if got := Date(in); got != "2026-01-10" {
			t.Errorf("Date(%q) = %q, expected 2026-01-10", in, got)
		}
	}
}

func TestDate_Unparseable(t *testing.T) {
	if got := Date("  sometime last week "); got != "sometime last week" {
		t.Errorf("expected trimmed input back, got %q", got)
	}
}

func TestTime(t *testing.T) {
	if got := Time("3:45 PM"); got != "15:45" {
		t.Errorf("expected 15:45, got %q", got)
	}
	if got := Time("09:05"); got != "09:05" {
		t.Errorf("expected 09:05, got %q", got)
	}
}

func TestAmount(t *testing.T) {
	d, ok := Amount("$1,234.5")
	if !ok {
		t.Fatal("expected amount to parse")
	}
	if FormatAmount(d) != "1234.50" {
		t.Errorf("expected 1234.50, got %s", FormatAmount(d))
	}

	d, ok = Amount("(12.00)")
	if !ok || FormatAmount(d) != "-12.00" {
		t.Errorf("expected -12.00, got %s (ok=%v)", FormatAmount(d), ok)
	}

	if _, ok := Amount("n/a"); ok {
		t.Error("expected n/a not to parse")
	}
}

func TestFacts_AppliesRulesAndCompletes(t *testing.T) {
	in := model.Facts{
		model.FactPatientName:   "  jane   DOE ",
		model.FactServiceDate:   "01/10/2026",
		model.FactProcedureCode: "99213.",
		model.FactBilledAmount:  "$200",
		model.FactPatientSex:    "female",
		"unknown_key":           "dropped",
	}

	out := Facts(in)

	if len(out) != len(model.CanonicalKeys()) {
		t.Fatalf("expected %d keys, got %d", len(model.CanonicalKeys()), len(out))
	}
	if _, ok := out["unknown_key"]; ok {
		t.Error("expected non-canonical key to be dropped")
	}
	if out[model.FactPatientName] != "Jane Doe" {
		t.Errorf("unexpected name: %q", out[model.FactPatientName])
	}
	if out[model.FactServiceDate] != "2026-01-10" {
		t.Errorf("unexpected date: %q", out[model.FactServiceDate])
	}
	if out[model.FactProcedureCode] != "99213" {
		t.Errorf("unexpected code: %q", out[model.FactProcedureCode])
	}
	if out[model.FactBilledAmount] != "200.00" {
		t.Errorf("unexpected amount: %q", out[model.FactBilledAmount])
	}
	if out[model.FactPatientSex] != "F" {
		t.Errorf("unexpected sex: %q", out[model.FactPatientSex])
	}
}
