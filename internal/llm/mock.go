package llm

import (
	"context"
	"sync"
)

const MockName = "mock"

// Mock is an Invoker for tests. Respond computes each reply; when nil every
// prompt gets Response.
type Mock struct {
	Respond  func(prompt string) string
	Response string
	Err      error

	mu      sync.Mutex
	prompts []string
}

// NewMock returns a mock answering every prompt with response.
func NewMock(response string) *Mock {
	return &Mock{Response: response}
}

// Name returns the client identifier.
func (m *Mock) Name() string {
	return MockName
}

// Invoke records prompts and returns one reply per prompt.
func (m *Mock) Invoke(ctx context.Context, prompts []string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	m.prompts = append(m.prompts, prompts...)
	m.mu.Unlock()

	if m.Err != nil {
		return nil, m.Err
	}
	out := make([]string, len(prompts))
	for i, p := range prompts {
		if m.Respond != nil {
			out[i] = m.Respond(p)
		} else {
			out[i] = m.Response
		}
	}
	return out, nil
}

// Prompts returns every prompt received so far.
func (m *Mock) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.prompts...)
}

var _ Invoker = (*Mock)(nil)
