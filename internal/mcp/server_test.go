package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/boobootoo2/medbilldozer-sub000/internal/analysis"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
	"github.com/boobootoo2/medbilldozer-sub000/internal/pipeline"
	"github.com/boobootoo2/medbilldozer-sub000/internal/store"
	"github.com/mark3labs/mcp-go/server"
)

const duplicateBill = `VALLEY MEDICAL GROUP
Patient Statement
Provider: Valley Medical Group
01/10/2026  MRI brain  70551  $450.00
01/10/2026  MRI brain  70551  $450.00
Amount Due: $900.00
`

func newTestServer(t *testing.T, withStore bool) (*server.MCPServer, store.Store) {
	t.Helper()
	registry := analysis.NewRegistry(context.Background(), analysis.NewLocalProvider(nil))
	cfg := ServerConfig{
		Pipeline: pipeline.NewPipeline(model.DefaultConfig(), registry, nil),
		Registry: registry,
		Version:  "test",
	}
	if withStore {
		st, err := store.NewStore(":memory:")
		if err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = st.Close() })
		cfg.Store = st
	}
	return NewServer(cfg), cfg.Store
}

type toolResult struct {
	Text    string
	IsError bool
}

// callTool sends a tools/call JSON-RPC message and returns the text content
func callTool(t *testing.T, srv *server.MCPServer, name string, args map[string]any) toolResult {
	t.Helper()

	msg, err := json.Marshal(map[string]any{
		"jsonrpc": "2.0",
		"id":      1,
		"method":  "tools/call",
		"params": map[string]any{
			"name":      name,
			"arguments": args,
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	respBytes, err := json.Marshal(srv.HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}

	var resp struct {
		Result struct {
			Content []struct {
				Type string `json:"type"`
				Text string `json:"text"`
			} `json:"content"`
			IsError bool `json:"isError"`
		} `json:"result"`
		Error *struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(respBytes, &resp); err != nil {
		t.Fatalf("unmarshal response: %v\nraw: %s", err, string(respBytes))
	}
	if resp.Error != nil {
		t.Fatalf("JSON-RPC error: %d %s", resp.Error.Code, resp.Error.Message)
	}

	var out toolResult
	out.IsError = resp.Result.IsError
	for _, c := range resp.Result.Content {
		if c.Type == "text" {
			out.Text += c.Text
		}
	}
	return out
}

func TestAnalyzeDocument(t *testing.T) {
	srv, _ := newTestServer(t, false)

	res := callTool(t, srv, "analyze_document", map[string]any{"text": duplicateBill, "name": "bill.txt"})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Text)
	}

	var session model.Session
	if err := json.Unmarshal([]byte(res.Text), &session); err != nil {
		t.Fatalf("result is not a session: %v", err)
	}
	if len(session.Documents) != 1 || session.Documents[0].Type != model.DocMedicalBill {
		t.Fatalf("unexpected documents %+v", session.Documents)
	}
	if session.Summary.ByType[string(model.IssueDuplicateCharge)] != 1 {
		t.Errorf("expected one duplicate charge, got %v", session.Summary.ByType)
	}
	if !session.Advisory {
		t.Error("results must be marked advisory")
	}
}

func TestAnalyzeDocument_EmptyText(t *testing.T) {
	srv, _ := newTestServer(t, false)

	res := callTool(t, srv, "analyze_document", map[string]any{"text": "   "})
	if !res.IsError {
		t.Errorf("expected a tool error, got %s", res.Text)
	}
}

func TestAnalyzeDocument_Save(t *testing.T) {
	srv, st := newTestServer(t, true)

	res := callTool(t, srv, "analyze_document", map[string]any{"text": duplicateBill, "save": true})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Text)
	}

	runs, err := st.ListRuns(context.Background(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected one stored run, got %d", len(runs))
	}

	got := callTool(t, srv, "get_run", map[string]any{"id": runs[0].ID})
	if got.IsError || !strings.Contains(got.Text, "duplicate_charge") {
		t.Errorf("unexpected get_run result: %s", got.Text)
	}

	missing := callTool(t, srv, "get_run", map[string]any{"id": "nope"})
	if !missing.IsError {
		t.Error("expected an error for an unknown run")
	}

	list := callTool(t, srv, "list_runs", map[string]any{"limit": 5})
	if list.IsError || !strings.Contains(list.Text, runs[0].ID) {
		t.Errorf("unexpected list_runs result: %s", list.Text)
	}
}

func TestClassifyDocument(t *testing.T) {
	srv, _ := newTestServer(t, false)

	res := callTool(t, srv, "classify_document", map[string]any{
		"text": "EXPLANATION OF BENEFITS\nTHIS IS NOT A BILL\nAllowed Amount: $150.00\nPlan Paid: $120.00",
	})
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", res.Text)
	}
	if !strings.Contains(res.Text, `"type": "insurance_eob"`) {
		t.Errorf("expected insurance_eob, got %s", res.Text)
	}
}

func TestListProviders(t *testing.T) {
	srv, _ := newTestServer(t, false)

	res := callTool(t, srv, "list_providers", nil)
	var out struct {
		Providers []providerInfo `json:"providers"`
		Excluded  []string       `json:"excluded"`
	}
	if err := json.Unmarshal([]byte(res.Text), &out); err != nil {
		t.Fatal(err)
	}
	if len(out.Providers) != 1 || out.Providers[0].Key != analysis.KeyLocal {
		t.Errorf("expected only the local provider, got %+v", out.Providers)
	}
	if out.Excluded == nil {
		t.Error("excluded should be an empty list, not null")
	}
}

func TestHistoryToolsRequireStore(t *testing.T) {
	srv, _ := newTestServer(t, false)

	msg := []byte(`{"jsonrpc":"2.0","id":1,"method":"tools/list","params":{}}`)
	data, err := json.Marshal(srv.HandleMessage(context.Background(), msg))
	if err != nil {
		t.Fatal(err)
	}
	var resp struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		t.Fatal(err)
	}

	names := make(map[string]bool)
	for _, tool := range resp.Result.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{"analyze_document", "classify_document", "list_providers"} {
		if !names[want] {
			t.Errorf("tool %s not registered", want)
		}
	}
	if names["list_runs"] || names["get_run"] {
		t.Error("history tools should not be registered without a store")
	}
}
