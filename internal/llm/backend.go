package llm

import (
	"context"
	"errors"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// ErrNoBackend is returned when a stage needs a backend that is not configured
var ErrNoBackend = errors.New("no model backend configured")

// Backend defines the interface for model completion backends
type Backend interface {
	// Name returns the backend key ("openai", "anthropic", "gemini", "medgemma")
	Name() string

	// Complete sends one system+user prompt and returns the raw text answer
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)

	// IsAvailable checks if the backend is properly configured and reachable
	IsAvailable(ctx context.Context) bool
}

// CompletionRequest is one prompt for a backend
type CompletionRequest struct {
	System      string
	Prompt      string
	Model       string // Overrides the configured model when set
	MaxTokens   int
	Temperature float64
	JSON        bool // Ask the backend for a JSON-only answer where supported
}

// CompletionResponse is the backend's answer
type CompletionResponse struct {
	Text       string
	Model      string
	TokensUsed int
	Cached     bool
}

// Config holds one backend's configuration
type Config struct {
	// Vendor: "openai", "anthropic", "gemini", "ollama", ""
	Vendor string

	// Name is the backend key; defaults to the vendor
	Name string

	Model   string
	APIKey  string
	BaseURL string

	// Vertex AI only
	Project string
	Region  string

	Timeout   time.Duration
	MaxTokens int

	HTTPProxy  string
	HTTPSProxy string
	NoProxy    string
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		Vendor:    "", // Disabled by default
		Timeout:   60 * time.Second,
		MaxTokens: 2000,
	}
}

// ConfigFromModel converts a backend section of model.Config for the given vendor
func ConfigFromModel(name, vendor string, bc model.BackendConfig) Config {
	return Config{
		Vendor:     vendor,
		Name:       name,
		Model:      bc.Model,
		APIKey:     bc.APIKey,
		BaseURL:    bc.BaseURL,
		Project:    bc.Project,
		Region:     bc.Region,
		Timeout:    bc.Timeout,
		MaxTokens:  bc.MaxTokens,
		HTTPProxy:  bc.HTTPProxy,
		HTTPSProxy: bc.HTTPSProxy,
		NoProxy:    bc.NoProxy,
	}
}

func (c Config) name() string {
	if c.Name != "" {
		return c.Name
	}
	return c.Vendor
}

func (c Config) timeout() time.Duration {
	if c.Timeout <= 0 {
		return 60 * time.Second
	}
	return c.Timeout
}

func (c Config) maxTokens(req CompletionRequest) int {
	if req.MaxTokens > 0 {
		return req.MaxTokens
	}
	if c.MaxTokens > 0 {
		return c.MaxTokens
	}
	return 2000
}

func (c Config) model(req CompletionRequest, fallback string) string {
	if req.Model != "" {
		return req.Model
	}
	if c.Model != "" {
		return c.Model
	}
	return fallback
}

// Close releases the client held by b, looking through cache and limiter
// wrappers. Backends without a client are a no-op.
func Close(b Backend) error {
	for b != nil {
		if c, ok := b.(interface{ Close() error }); ok {
			return c.Close()
		}
		w, ok := b.(interface{ Unwrap() Backend })
		if !ok {
			return nil
		}
		b = w.Unwrap()
	}
	return nil
}
