package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/boobootoo2/medbilldozer-sub000/internal/util"
	"go.uber.org/zap"
)

const defaultOllamaURL = "http://localhost:11434"

// OllamaBackend talks to a self-hosted Ollama server. MedGemma is served
// this way.
type OllamaBackend struct {
	endpoint string
	client   *http.Client
	config   Config
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string         `json:"model"`
	Messages []chatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Format   string         `json:"format,omitempty"`
	Options  map[string]any `json:"options,omitempty"`
}

type chatResponse struct {
	Model           string      `json:"model"`
	Message         chatMessage `json:"message"`
	PromptEvalCount int         `json:"prompt_eval_count"`
	EvalCount       int         `json:"eval_count"`
	Error           string      `json:"error"`
}

type tagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

// NewOllamaBackend requires a model name; BaseURL defaults to the local daemon
func NewOllamaBackend(config Config) (*OllamaBackend, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("ollama backend %q: model is required (e.g. medgemma)", config.name())
	}
	endpoint := strings.TrimRight(config.BaseURL, "/")
	if endpoint == "" {
		endpoint = defaultOllamaURL
	}
	transport := &http.Transport{
		Proxy: util.NewProxyFunc(config.HTTPProxy, config.HTTPSProxy, config.NoProxy),
	}
	return &OllamaBackend{
		endpoint: endpoint,
		client:   &http.Client{Transport: transport},
		config:   config,
	}, nil
}

func (b *OllamaBackend) Name() string {
	return b.config.name()
}

// IsAvailable lists the pulled models and looks for the configured one.
// "medgemma" matches "medgemma:latest".
func (b *OllamaBackend) IsAvailable(ctx context.Context) bool {
	log := zap.L().With(zap.String("backend", b.Name()), zap.String("url", b.endpoint))

	var tags tagsResponse
	if err := b.call(ctx, http.MethodGet, "/api/tags", nil, &tags); err != nil {
		log.Warn("ollama unreachable", zap.Error(err))
		return false
	}
	for _, m := range tags.Models {
		if m.Name == b.config.Model || strings.HasPrefix(m.Name, b.config.Model+":") {
			return true
		}
	}
	log.Warn("ollama model not pulled", zap.String("model", b.config.Model))
	return false
}

// Complete sends one non-streaming chat turn
func (b *OllamaBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, b.config.timeout())
	defer cancel()

	body := chatRequest{
		Model: b.config.model(req, ""),
		Options: map[string]any{
			"temperature": req.Temperature,
			"num_predict": b.config.maxTokens(req),
		},
	}
	if req.System != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.System})
	}
	body.Messages = append(body.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		body.Format = "json"
	}

	var out chatResponse
	if err := b.call(ctx, http.MethodPost, "/api/chat", body, &out); err != nil {
		return nil, fmt.Errorf("ollama chat: %w", err)
	}

	text := strings.TrimSpace(out.Message.Content)
	used := out.PromptEvalCount + out.EvalCount
	if used == 0 {
		used = (len(req.Prompt) + len(text)) / 4
	}
	return &CompletionResponse{Text: text, Model: out.Model, TokensUsed: used}, nil
}

// call sends in (if any) as JSON and decodes the reply into out. Non-200
// replies surface Ollama's error field when present.
func (b *OllamaBackend) call(ctx context.Context, method, path string, in, out any) error {
	var payload io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		payload = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.endpoint+path, payload)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := b.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(raw, &e) == nil && e.Error != "" {
			return fmt.Errorf("status %d: %s", resp.StatusCode, e.Error)
		}
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
