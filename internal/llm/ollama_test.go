package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func newOllama(t *testing.T, h http.HandlerFunc) *OllamaBackend {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	b, err := NewOllamaBackend(Config{Vendor: "ollama", Name: "medgemma", BaseURL: srv.URL + "/", Model: "medgemma", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("NewOllamaBackend: %v", err)
	}
	return b
}

func TestOllamaBackend_Complete(t *testing.T) {
	b := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %s, want /api/chat", r.URL.Path)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Stream || req.Format != "json" {
			t.Errorf("stream=%v format=%q, want non-streaming json", req.Stream, req.Format)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Content != "bill" {
			t.Errorf("unexpected messages: %+v", req.Messages)
		}
		_ = json.NewEncoder(w).Encode(chatResponse{
			Model:           "medgemma:latest",
			Message:         chatMessage{Role: "assistant", Content: " {\"issues\": []}\n"},
			PromptEvalCount: 12,
			EvalCount:       8,
		})
	})

	if b.Name() != "medgemma" {
		t.Errorf("Name() = %s", b.Name())
	}
	resp, err := b.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "bill", JSON: true})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.Text != `{"issues": []}` || resp.TokensUsed != 20 || resp.Model != "medgemma:latest" {
		t.Errorf("unexpected response: %+v", resp)
	}
}

func TestOllamaBackend_Complete_EstimatesTokens(t *testing.T) {
	b := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"model":"medgemma","message":{"role":"assistant","content":"abcdefgh"}}`))
	})
	resp, err := b.Complete(context.Background(), CompletionRequest{Prompt: "12345678"})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if resp.TokensUsed != 4 {
		t.Errorf("TokensUsed = %d, want 4", resp.TokensUsed)
	}
}

func TestOllamaBackend_Complete_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantSub string
	}{
		{"api error field", http.StatusInternalServerError, `{"error": "model not loaded"}`, "model not loaded"},
		{"plain body", http.StatusBadGateway, "upstream down", "upstream down"},
		{"malformed reply", http.StatusOK, `{malformed`, "decode response"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newOllama(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := b.Complete(context.Background(), CompletionRequest{Prompt: "x"})
			if err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("err = %v, want it to mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestOllamaBackend_IsAvailable(t *testing.T) {
	tags := func(names string) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/api/tags" {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_, _ = w.Write([]byte(`{"models": [` + names + `]}`))
		}
	}

	if !newOllama(t, tags(`{"name":"llama3.1:8b"},{"name":"medgemma:latest"}`)).IsAvailable(context.Background()) {
		t.Error("pulled model reported unavailable")
	}
	if newOllama(t, tags(`{"name":"medgemma-2:latest"}`)).IsAvailable(context.Background()) {
		t.Error("different model matched by prefix")
	}

	down, _ := NewOllamaBackend(Config{BaseURL: "http://127.0.0.1:1", Model: "medgemma"})
	if down.IsAvailable(context.Background()) {
		t.Error("unreachable server reported available")
	}
}

func TestNewOllamaBackend_RequiresModel(t *testing.T) {
	if _, err := NewOllamaBackend(Config{Name: "medgemma"}); err == nil {
		t.Error("expected error without a model")
	}
}
