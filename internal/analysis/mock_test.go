package analysis

import (
	"context"
	"sync"

	"github.com/boobootoo2/medbilldozer-sub000/internal/llm"
	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// MockBackend is a mock llm.Backend for testing
type MockBackend struct {
	BackendName string
	Text        string
	Err         error
	Available   bool

	mu      sync.Mutex
	prompts []string
}

func (m *MockBackend) Name() string {
	if m.BackendName == "" {
		return "mock"
	}
	return m.BackendName
}

func (m *MockBackend) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, req.Prompt)
	m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return &llm.CompletionResponse{Text: m.Text, Model: "mock-model", TokensUsed: 10}, nil
}

func (m *MockBackend) IsAvailable(ctx context.Context) bool {
	return m.Available
}

func (m *MockBackend) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

// MockProvider is a mock Provider for registry tests
type MockProvider struct {
	Key     string
	Healthy bool
	Result  *model.AnalysisResult
	Err     error
}

func (m *MockProvider) Name() string                         { return m.Key }
func (m *MockProvider) Description() string                  { return "mock " + m.Key }
func (m *MockProvider) HealthCheck(ctx context.Context) bool { return m.Healthy }

func (m *MockProvider) Analyze(ctx context.Context, rawText string, facts model.Facts) (*model.AnalysisResult, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	if m.Result == nil {
		return &model.AnalysisResult{Issues: []model.Issue{}}, nil
	}
	return m.Result, nil
}

type errString string

func (e errString) Error() string { return string(e) }
