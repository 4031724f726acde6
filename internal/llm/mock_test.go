package llm

import (
	"context"
	"errors"
	"sync/atomic"
)

// MockBackend implements Backend for wrapper tests
type MockBackend struct {
	BackendName string
	Text        string
	Err         error
	Available   bool
	calls       int32
}

func (m *MockBackend) Name() string { return m.BackendName }

func (m *MockBackend) IsAvailable(ctx context.Context) bool { return m.Available }

func (m *MockBackend) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	atomic.AddInt32(&m.calls, 1)
	if m.Err != nil {
		return nil, m.Err
	}
	return &CompletionResponse{Text: m.Text, Model: "mock", TokensUsed: 3}, nil
}

func (m *MockBackend) Calls() int {
	return int(atomic.LoadInt32(&m.calls))
}

var errMock = errors.New("backend down")
