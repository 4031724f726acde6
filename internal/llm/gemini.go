package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
	"go.uber.org/zap"
)

// GeminiBackend implements the Backend interface for Gemini models on Vertex AI.
// Credentials come from Application Default Credentials.
type GeminiBackend struct {
	client *genai.Client
	config Config
}

// NewGeminiBackend creates a new Vertex AI Gemini backend
func NewGeminiBackend(ctx context.Context, config Config) (*GeminiBackend, error) {
	if config.Project == "" {
		return nil, fmt.Errorf("Vertex AI project is required for gemini")
	}
	region := config.Region
	if region == "" {
		region = "us-central1"
	}

	client, err := genai.NewClient(ctx, config.Project, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}

	return &GeminiBackend{client: client, config: config}, nil
}

// Name returns the backend key
func (b *GeminiBackend) Name() string {
	return b.config.name()
}

// IsAvailable counts tokens of a tiny prompt as a probe
func (b *GeminiBackend) IsAvailable(ctx context.Context) bool {
	m := b.client.GenerativeModel(b.config.model(CompletionRequest{}, "gemini-1.5-pro"))
	if _, err := m.CountTokens(ctx, genai.Text("ping")); err != nil {
		zap.L().Warn("gemini availability check failed", zap.String("backend", b.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete runs one GenerateContent call
func (b *GeminiBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	modelName := b.config.model(req, "gemini-1.5-pro")

	ctx, cancel := context.WithTimeout(ctx, b.config.timeout())
	defer cancel()

	m := b.client.GenerativeModel(modelName)
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:     genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens: genai.Ptr(int32(b.config.maxTokens(req))),
	}
	if req.JSON {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("Gemini API error: %w", err)
	}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("no candidates in Gemini response")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			text.WriteString(string(t))
		}
	}

	tokens := 0
	if resp.UsageMetadata != nil {
		tokens = int(resp.UsageMetadata.TotalTokenCount)
	}

	return &CompletionResponse{
		Text:       strings.TrimSpace(text.String()),
		Model:      modelName,
		TokensUsed: tokens,
	}, nil
}

// Close releases the underlying Vertex AI client
func (b *GeminiBackend) Close() error {
	return b.client.Close()
}
