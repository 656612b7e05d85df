// Package mock provides a test double for the llm.LanguageModel interface.
//
// Use Model in unit tests to return controlled replies without a live
// backend and to verify the prompts the orchestrator produced.
package mock

import (
	"context"
	"sync"

	"github.com/voxgate/voxgate/pkg/provider/llm"
)

// Compile-time check that *Model satisfies [llm.LanguageModel].
var _ llm.LanguageModel = (*Model)(nil)

// GenerateCall records a single invocation of Generate.
type GenerateCall struct {
	// Prompt is the text passed to Generate.
	Prompt string
}

// Model is a mock implementation of llm.LanguageModel.
// Zero values cause Generate to return ("", nil).
type Model struct {
	mu sync.Mutex

	// Reply is returned from every call.
	Reply string

	// Err, if non-nil, is returned from every call.
	Err error

	// GenerateFunc, if non-nil, overrides all other fields.
	GenerateFunc func(ctx context.Context, prompt string) (string, error)

	calls []GenerateCall
}

// Generate implements llm.LanguageModel.
func (m *Model) Generate(ctx context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, GenerateCall{Prompt: prompt})
	fn := m.GenerateFunc
	reply, err := m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, prompt)
	}
	if err != nil {
		return "", err
	}
	return reply, nil
}

// Calls returns a snapshot of all recorded invocations.
func (m *Model) Calls() []GenerateCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateCall, len(m.calls))
	copy(out, m.calls)
	return out
}
