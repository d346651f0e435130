package ai

import (
	"context"
	"sync"
)

type mockStep struct {
	resp CompletionResponse
	err  error
}

// MockProvider is a test double for AI providers. Steps are consumed in
// order; the last step repeats once the queue is exhausted.
type MockProvider struct {
	mu       sync.Mutex
	steps    []mockStep
	requests []CompletionRequest
}

// NewMockProvider creates a MockProvider that answers with content.
func NewMockProvider(content string) *MockProvider {
	return &MockProvider{steps: []mockStep{{resp: CompletionResponse{Content: content}}}}
}

// NewFailingProvider creates a MockProvider that fails with err.
func NewFailingProvider(err error) *MockProvider {
	return &MockProvider{steps: []mockStep{{err: err}}}
}

// Then queues another response.
func (m *MockProvider) Then(resp CompletionResponse) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{resp: resp})
	return m
}

// ThenFail queues another failure.
func (m *MockProvider) ThenFail(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, mockStep{err: err})
	return m
}

func (m *MockProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	i := len(m.requests)
	m.requests = append(m.requests, req)
	if len(m.steps) == 0 {
		return CompletionResponse{Model: req.Model}, nil
	}

	step := m.steps[min(i, len(m.steps)-1)]
	if step.err != nil {
		return CompletionResponse{}, step.err
	}
	resp := step.resp
	if resp.Model == "" {
		resp.Model = req.Model
	}
	return resp, nil
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []CompletionRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]CompletionRequest(nil), m.requests...)
}
