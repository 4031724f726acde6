package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

func testSession(t *testing.T) *model.Session {
	t.Helper()
	p := newTestPipeline(t, nil)
	var docs []*model.Document
	for _, text := range []string{billText, eobText, duplicateText} {
		doc, err := p.Analyze(context.Background(), text, Options{})
		if err != nil {
			t.Fatal(err)
		}
		docs = append(docs, doc)
	}
	return BuildSession(docs)
}

func TestDocumentIdentity(t *testing.T) {
	facts := model.NewFacts()
	id := DocumentID(facts, model.DocGeneric)
	if len(id) != 12 || id != DocumentID(model.NewFacts(), model.DocGeneric) {
		t.Errorf("identity should be 12 stable hex chars, got %q", id)
	}
	if id == DocumentID(facts, model.DocMedicalBill) {
		t.Error("type must be part of the identity")
	}
	if got := DocumentLabel(facts, model.DocGeneric); got != "Unknown provider · undated · Document" {
		t.Errorf("unexpected placeholder label %q", got)
	}

	facts[model.FactPharmacyName] = "Corner Pharmacy"
	facts[model.FactServiceDate] = "2026-02-01"
	if got := DocumentLabel(facts, model.DocPharmacyReceipt); got != "Corner Pharmacy · 2026-02-01 · Pharmacy Receipt" {
		t.Errorf("unexpected label %q", got)
	}
}

func TestEnrich_FactlessDocumentsStayDistinct(t *testing.T) {
	newDoc := func(text string) *model.Document {
		return &model.Document{RawText: text, Type: model.DocGeneric, Facts: model.NewFacts()}
	}
	a, b, again := newDoc("01/10/2026  Lab draw  $40.00"), newDoc("02/11/2026  X-ray  $90.00"), newDoc("01/10/2026  Lab draw  $40.00")
	for _, d := range []*model.Document{a, b, again} {
		enrich(d)
	}
	if a.ID == b.ID {
		t.Errorf("documents without facts share id %s", a.ID)
	}
	if a.ID != again.ID || len(a.ID) != 12 {
		t.Errorf("identity should be 12 stable hex chars, got %q and %q", a.ID, again.ID)
	}

	withFacts := newDoc("anything")
	withFacts.Facts[model.FactProviderName] = "Valley Medical Group"
	enrich(withFacts)
	if withFacts.ID != DocumentID(withFacts.Facts, model.DocGeneric) {
		t.Error("documents with facts keep the facts-only identity")
	}
}

func TestRoutes(t *testing.T) {
	r := Routes(model.DocInsuranceEOB, model.RoutingConfig{})
	if r.Extract != "openai" || r.LineItems != "openai" {
		t.Errorf("unexpected default EOB route %+v", r)
	}

	r = Routes(model.DocMedicalBill, model.RoutingConfig{
		Extract:   map[string]string{"medical_bill": "heuristic"},
		LineItems: map[string]string{"medical_bill": "gemini"},
	})
	if r.Extract != "heuristic" || r.LineItems != "gemini" {
		t.Errorf("overrides should win, got %+v", r)
	}

	if r := Routes(model.DocGeneric, model.RoutingConfig{}); r.LineItems != "heuristic" {
		t.Errorf("generic documents use the row parser, got %+v", r)
	}
}

func TestRenderer_Markdown(t *testing.T) {
	s := testSession(t)
	md := NewRenderer(true).Markdown(s)

	for _, want := range []string{"# Billing Review", "## Documents", "## Issues", "## Coverage", "duplicate_charge", "covered", "advisory"} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q", want)
		}
	}
	if strings.Contains(NewRenderer(false).Markdown(s), "advisory.") {
		t.Error("footer should be optional")
	}
}

func TestRenderer_RenderFiles(t *testing.T) {
	s := testSession(t)
	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "out", "report.json")
	mdPath := filepath.Join(dir, "out", "report.md")

	var stdout bytes.Buffer
	if err := NewRenderer(true).Render(context.Background(), s, jsonPath, mdPath, &stdout, true); err != nil {
		t.Fatalf("Render failed: %v", err)
	}

	data, err := os.ReadFile(jsonPath)
	if err != nil {
		t.Fatal(err)
	}
	var decoded model.Session
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if len(decoded.Documents) != 3 || decoded.Summary.IssueCount != s.Summary.IssueCount {
		t.Errorf("unexpected decoded session: %d documents, %d issues", len(decoded.Documents), decoded.Summary.IssueCount)
	}
	if strings.Contains(string(data), "Amount Due: $200.00") {
		t.Error("raw text must not be serialized")
	}

	if _, err := os.Stat(mdPath); err != nil {
		t.Errorf("markdown not written: %v", err)
	}
	if !strings.Contains(stdout.String(), "Wrote JSON") || !strings.Contains(stdout.String(), "Potential savings") {
		t.Errorf("unexpected stdout %q", stdout.String())
	}
}
