package generate

import (
	"context"
	"sync"
)

// MockText is the placeholder returned by MockGenerator.
const MockText = "This is a mock processed result."

var _ Generator = (*MockGenerator)(nil)

// MockGenerator returns a fixed placeholder regardless of input, with no
// latency. It records every request it receives.
type MockGenerator struct {
	mu    sync.Mutex
	text  string
	calls []Request
}

// NewMockGenerator returns a MockGenerator answering with MockText.
func NewMockGenerator() *MockGenerator {
	return &MockGenerator{text: MockText}
}

// Generate records req and returns the placeholder.
// It still honours cancellation so that interrupted jobs stop promptly.
func (m *MockGenerator) Generate(ctx context.Context, req Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, req)
	return m.text, nil
}

// Calls returns a copy of the recorded requests.
func (m *MockGenerator) Calls() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.calls))
	copy(out, m.calls)
	return out
}
