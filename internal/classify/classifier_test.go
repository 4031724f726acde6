package classify

import (
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

func TestClassify_MedicalBill(t *testing.T) {
	text := "Patient Statement\nCity Hospital\nOffice Visit CPT 99213 $200.00\nAmount Due: $200.00"

	result := Classify(text)

	if result.Type != model.DocMedicalBill {
		t.Fatalf("expected medical_bill, got %s (scores %v)", result.Type, result.Scores)
	}
	if result.Confidence != 1.0 {
		t.Errorf("expected confidence 1.0 with no competing type, got %f", result.Confidence)
	}
	if result.Extractor != DefaultExtractor(model.DocMedicalBill) {
		t.Errorf("unexpected extractor %q", result.Extractor)
	}
}

func TestClassify_InsuranceEOB(t *testing.T) {
	text := "Explanation of Benefits\nTHIS IS NOT A BILL\nClaim Number: 884422\nMember ID: W1234\nAllowed Amount: $150.00"

	result := Classify(text)

	if result.Type != model.DocInsuranceEOB {
		t.Fatalf("expected insurance_eob, got %s (scores %v)", result.Type, result.Scores)
	}
	if result.Scores[model.DocInsuranceEOB] != 5 {
		t.Errorf("expected 5 EOB signals, got %d", result.Scores[model.DocInsuranceEOB])
	}
}

func TestClassify_DentalBill(t *testing.T) {
	result := Classify("Bright Smile Dental DDS\nD1110 prophylaxis cleaning $95.00")

	if result.Type != model.DocDentalBill {
		t.Fatalf("expected dental_bill, got %s (scores %v)", result.Type, result.Scores)
	}
}

func TestClassify_BelowMinSignalsIsGeneric(t *testing.T) {
	for _, text := range []string{"", "hello world", "Pharmacy"} {
		result := Classify(text)
		if result.Type != model.DocGeneric {
			t.Errorf("Classify(%q) = %s, expected generic", text, result.Type)
		}
		if result.Confidence != 0 {
			t.Errorf("Classify(%q) confidence = %f, expected 0", text, result.Confidence)
		}
		if result.Extractor != ExtractorHeuristic {
			t.Errorf("Classify(%q) extractor = %q, expected heuristic", text, result.Extractor)
		}
	}
}

func TestClassify_TieBreakKeepsTableOrder(t *testing.T) {
	// Two medical and two EOB signals
	text := "hospital clinic\nexplanation of benefits\nthis is not a bill"

	result := Classify(text)

	if result.Type != model.DocMedicalBill {
		t.Fatalf("expected medical_bill to win the tie, got %s (scores %v)", result.Type, result.Scores)
	}
	if result.Confidence != minConfidence {
		t.Errorf("expected floored confidence %f, got %f", minConfidence, result.Confidence)
	}
}

func TestClassify_ScoresCoverEveryType(t *testing.T) {
	result := Classify("anything")
	for _, docType := range model.DocTypes() {
		if _, ok := result.Scores[docType]; !ok {
			t.Errorf("missing score for %s", docType)
		}
	}
}

func TestClassify_Deterministic(t *testing.T) {
	text := "Rx #: 1234567 Walgreens Pharmacy Qty 30 Refills 2 Lisinopril 10 mg"
	first := Classify(text)
	for i := 0; i < 10; i++ {
		again := Classify(text)
		if again.Type != first.Type || again.Confidence != first.Confidence {
			t.Fatalf("classification changed between runs: %+v vs %+v", first, again)
		}
	}
	if first.Type != model.DocPharmacyReceipt {
		t.Errorf("expected pharmacy_receipt, got %s", first.Type)
	}
}
