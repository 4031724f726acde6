package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

// AnthropicBackend implements the Backend interface for Anthropic Claude models
type AnthropicBackend struct {
	client anthropic.Client
	config Config
}

// NewAnthropicBackend creates a new Anthropic backend
func NewAnthropicBackend(config Config) (*AnthropicBackend, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(config.APIKey)}
	if config.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimSuffix(config.BaseURL, "/")+"/"))
	}

	return &AnthropicBackend{
		client: anthropic.NewClient(opts...),
		config: config,
	}, nil
}

// Name returns the backend key
func (b *AnthropicBackend) Name() string {
	return b.config.name()
}

// IsAvailable sends a minimal message to the configured model
func (b *AnthropicBackend) IsAvailable(ctx context.Context) bool {
	_, err := b.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(b.config.model(CompletionRequest{}, defaultAnthropicModel)),
		MaxTokens: 10,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("Hi")),
		},
	})
	if err != nil {
		zap.L().Warn("anthropic availability check failed", zap.String("backend", b.Name()), zap.Error(err))
		return false
	}
	return true
}

// Complete runs one Messages API call
func (b *AnthropicBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	modelName := b.config.model(req, defaultAnthropicModel)

	ctx, cancel := context.WithTimeout(ctx, b.config.timeout())
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(modelName),
		MaxTokens:   int64(b.config.maxTokens(req)),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := b.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("Anthropic API error: %w", err)
	}

	tokens := int(message.Usage.InputTokens + message.Usage.OutputTokens)
	for _, block := range message.Content {
		if block.Type == "text" {
			return &CompletionResponse{
				Text:       strings.TrimSpace(block.Text),
				Model:      string(message.Model),
				TokensUsed: tokens,
			}, nil
		}
	}
	return nil, fmt.Errorf("no text content in Anthropic response")
}
