package extract

import (
	"context"
	"errors"
	"testing"
	"unicode/utf8"

	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// MockBackend implements llm.Backend
type MockBackend struct {
	Text     string
	Err      error
	Panic    bool
	LastReq  llm.CompletionRequest
	NumCalls int
}

func (m *MockBackend) Name() string                         { return "mock" }
func (m *MockBackend) IsAvailable(ctx context.Context) bool { return true }

func (m *MockBackend) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.NumCalls++
	m.LastReq = req
	if m.Panic {
		panic("boom")
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.CompletionResponse{Text: m.Text}, nil
}

const sampleBill = `VALLEY MEDICAL GROUP
Patient Statement
Patient Name: Jane Doe   DOB: 03/14/1985
Sex: F
Provider: Valley Medical Group   NPI: 1234567890
Date of Service: 01/10/2026
CPT: 99213
Diagnosis: J06.9
01/10/2026  Office visit, established patient  99213  $200.00
Total Charges: $200.00
Amount Due: $200.00
`

func assertCompleteKeySet(t *testing.T, name string, facts model.Facts) {
	t.Helper()
	keys := model.CanonicalKeys()
	if len(facts) != len(keys) {
		t.Errorf("%s: expected %d keys, got %d", name, len(keys), len(facts))
	}
	for _, k := range keys {
		if _, ok := facts[k]; !ok {
			t.Errorf("%s: missing key %s", name, k)
		}
	}
	for k := range facts {
		if !model.IsCanonicalKey(k) {
			t.Errorf("%s: unexpected key %s", name, k)
		}
	}
}

func TestExtractors_AlwaysReturnCanonicalKeySet(t *testing.T) {
	ctx := context.Background()
	inputs := []string{"", "garbage ~~~ 123", sampleBill}

	extractors := []Extractor{
		NewHeuristicExtractor(),
		NewLLMExtractor(&MockBackend{Text: `{"patient_name": "Jane Doe", "extra_key": "x"}`}),
		NewLLMExtractor(&MockBackend{Text: "sorry, I cannot help with that"}),
		NewLLMExtractor(&MockBackend{Err: errors.New("connection refused")}),
		NewLLMExtractor(&MockBackend{Panic: true}),
		NewFallbackExtractor(NewLLMExtractor(&MockBackend{Err: errors.New("down")}), NewHeuristicExtractor()),
		ForBackend("heuristic", nil),
		ForBackend("openai", map[string]llm.Backend{"openai": &MockBackend{Text: "{}"}}),
	}

	for _, e := range extractors {
		for _, in := range inputs {
			assertCompleteKeySet(t, e.Name(), e.Extract(ctx, in))
		}
	}
}

func TestHeuristicExtractor_LabelledFields(t *testing.T) {
	facts := NewHeuristicExtractor().Extract(context.Background(), sampleBill)

	expected := map[string]string{
		model.FactPatientName:           "Jane Doe",
		model.FactPatientDOB:            "1985-03-14",
		model.FactPatientSex:            "F",
		model.FactProviderName:          "Valley Medical Group",
		model.FactProviderNPI:           "1234567890",
		model.FactServiceDate:           "2026-01-10",
		model.FactProcedureCode:         "99213",
		model.FactDiagnosisCode:         "J06.9",
		model.FactBilledAmount:          "200.00",
		model.FactPatientResponsibility: "200.00",
	}
	for k, want := range expected {
		if got := facts[k]; got != want {
			t.Errorf("%s: expected %q, got %q", k, want, got)
		}
	}

	if facts[model.FactClaimNumber] != "" {
		t.Errorf("expected unlabelled claim number to stay empty, got %q", facts[model.FactClaimNumber])
	}
}

func TestHeuristicExtractor_EOB(t *testing.T) {
	text := "Explanation of Benefits\nMember ID: W123456\nClaim Number: CLM-88421\nAllowed Amount: $150.00\nPlan Paid: $120.00\nYou Owe: $30.00\nInsurer: Acme Health"
	facts := NewHeuristicExtractor().Extract(context.Background(), text)

	if facts[model.FactMemberID] != "W123456" {
		t.Errorf("unexpected member id %q", facts[model.FactMemberID])
	}
	if facts[model.FactClaimNumber] != "CLM-88421" {
		t.Errorf("unexpected claim number %q", facts[model.FactClaimNumber])
	}
	if facts[model.FactAllowedAmount] != "150.00" || facts[model.FactPaidAmount] != "120.00" {
		t.Errorf("unexpected amounts %q / %q", facts[model.FactAllowedAmount], facts[model.FactPaidAmount])
	}
	if facts[model.FactPatientResponsibility] != "30.00" {
		t.Errorf("unexpected responsibility %q", facts[model.FactPatientResponsibility])
	}
	if facts[model.FactInsurerName] != "Acme Health" {
		t.Errorf("unexpected insurer %q", facts[model.FactInsurerName])
	}
}

func TestLLMExtractor_ParsesFencedJSON(t *testing.T) {
	backend := &MockBackend{Text: "Here you go:\n```json\n{\"patient_name\": \"jane doe\", \"billed_amount\": 200, \"service_date\": \"01/10/2026\", \"claim_number\": null}\n```"}
	facts := NewLLMExtractor(backend).Extract(context.Background(), sampleBill)

	if facts[model.FactPatientName] != "Jane Doe" {
		t.Errorf("unexpected name %q", facts[model.FactPatientName])
	}
	if facts[model.FactBilledAmount] != "200.00" {
		t.Errorf("unexpected amount %q", facts[model.FactBilledAmount])
	}
	if facts[model.FactServiceDate] != "2026-01-10" {
		t.Errorf("unexpected date %q", facts[model.FactServiceDate])
	}
	if facts[model.FactClaimNumber] != "" {
		t.Errorf("expected null to become empty, got %q", facts[model.FactClaimNumber])
	}
	if !backend.LastReq.JSON {
		t.Error("expected JSON mode request")
	}
}

func TestFallbackExtractor_UsesHeuristicOnEmptyPrimary(t *testing.T) {
	e := NewFallbackExtractor(NewLLMExtractor(&MockBackend{Err: errors.New("timeout")}), NewHeuristicExtractor())
	facts := e.Extract(context.Background(), sampleBill)

	if facts[model.FactPatientName] != "Jane Doe" {
		t.Errorf("expected heuristic fallback facts, got %q", facts[model.FactPatientName])
	}
}

func TestFallbackExtractor_KeepsPrimaryResult(t *testing.T) {
	primary := NewLLMExtractor(&MockBackend{Text: `{"patient_name": "From Model"}`})
	facts := NewFallbackExtractor(primary, NewHeuristicExtractor()).Extract(context.Background(), sampleBill)

	if facts[model.FactPatientName] != "From Model" {
		t.Errorf("expected primary result, got %q", facts[model.FactPatientName])
	}
}

func TestForBackend_UnknownKeyIsHeuristic(t *testing.T) {
	if e := ForBackend("medgemma", map[string]llm.Backend{}); e.Name() != "heuristic" {
		t.Errorf("expected heuristic for missing backend, got %s", e.Name())
	}
}

func TestCleanJSON(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\": 1}\n```":       `{"a": 1}`,
		"Sure! {\"a\": {\"b\": 2}} Done.": `{"a": {"b": 2}}`,
		"[1, 2] trailing":                 `[1, 2]`,
		"no json here":                    "",
	}
	for in, want := range cases {
		if got := CleanJSON(in); got != want {
			t.Errorf("CleanJSON(%q) = %q, expected %q", in, got, want)
		}
	}
}

func TestPreExtract(t *testing.T) {
	s := PreExtract(sampleBill)

	if !s.HasCPT {
		t.Error("expected CPT signal")
	}
	if !s.HasICD10 {
		t.Error("expected ICD-10 signal")
	}
	if s.HasEOBMarkers || s.HasRxMarkers {
		t.Errorf("unexpected markers: %+v", s)
	}
	if s.AmountCount != 3 {
		t.Errorf("expected 3 amounts, got %d", s.AmountCount)
	}
	if !s.NeedsModel() {
		t.Error("expected a coded bill to need a model")
	}

	empty := PreExtract("")
	if empty.NeedsModel() || empty.WordCount != 0 || empty.LineCount != 0 {
		t.Errorf("unexpected signals for empty text: %+v", empty)
	}
}

func TestTruncate_KeepsRunesWhole(t *testing.T) {
	tests := []struct {
		in   string
		n    int
		want string
	}{
		{"Café au lait", 4, "Caf"},
		{"Café au lait", 5, "Café"},
		{"short", 10, "short"},
		{"ü", 1, ""},
		{"Zoë • Rx", 7, "Zoë "},
	}
	for _, tt := range tests {
		got := truncate(tt.in, tt.n)
		if got != tt.want || !utf8.ValidString(got) {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.in, tt.n, got, tt.want)
		}
	}
}
