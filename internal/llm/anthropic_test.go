package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func anthropicMessageJSON(text string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5-20250929",` +
		`"content":[{"type":"text","text":` + mustJSON(text) + `}],` +
		`"stop_reason":"end_turn","usage":{"input_tokens":12,"output_tokens":8}}`
}

func mustJSON(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

func TestAnthropicBackend_Complete_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("Expected path /v1/messages, got %s", r.URL.Path)
		}
		if r.Header.Get("X-Api-Key") != "test-key" {
			t.Errorf("Expected x-api-key test-key, got %q", r.Header.Get("X-Api-Key"))
		}

		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["system"]; !ok {
			t.Error("expected system prompt in request")
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicMessageJSON(`{"issues": []}`)))
	}))
	defer server.Close()

	backend, err := NewAnthropicBackend(Config{Vendor: "anthropic", APIKey: "test-key", BaseURL: server.URL, Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("Failed to create backend: %v", err)
	}

	resp, err := backend.Complete(context.Background(), CompletionRequest{System: "sys", Prompt: "bill"})
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if resp.Text != `{"issues": []}` {
		t.Errorf("Unexpected text: %q", resp.Text)
	}
	if resp.TokensUsed != 20 {
		t.Errorf("Unexpected token usage: %d", resp.TokensUsed)
	}
}

func TestAnthropicBackend_Complete_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"type":"error","error":{"type":"invalid_request_error","message":"bad request"}}`))
	}))
	defer server.Close()

	backend, _ := NewAnthropicBackend(Config{APIKey: "k", BaseURL: server.URL, Timeout: 5 * time.Second})

	if _, err := backend.Complete(context.Background(), CompletionRequest{Prompt: "x"}); err == nil {
		t.Fatal("Expected error, got nil")
	}
}

func TestAnthropicBackend_IsAvailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicMessageJSON("Hi")))
	}))
	defer server.Close()

	backend, _ := NewAnthropicBackend(Config{APIKey: "k", BaseURL: server.URL})
	if !backend.IsAvailable(context.Background()) {
		t.Error("Expected backend to be available")
	}
}

func TestAnthropicBackend_IsAvailable_ProbesConfiguredModel(t *testing.T) {
	var probed []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		probed = append(probed, body.Model)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(anthropicMessageJSON("Hi")))
	}))
	defer server.Close()

	configured, _ := NewAnthropicBackend(Config{APIKey: "k", BaseURL: server.URL, Model: "claude-opus-4-1"})
	fallback, _ := NewAnthropicBackend(Config{APIKey: "k", BaseURL: server.URL})
	if !configured.IsAvailable(context.Background()) || !fallback.IsAvailable(context.Background()) {
		t.Fatal("Expected both backends to be available")
	}
	if len(probed) != 2 || probed[0] != "claude-opus-4-1" || probed[1] != defaultAnthropicModel {
		t.Errorf("unexpected probe models %v", probed)
	}
}

func TestNewAnthropicBackend_RequiresKey(t *testing.T) {
	if _, err := NewAnthropicBackend(Config{}); err == nil {
		t.Error("Expected error without API key")
	}
}
