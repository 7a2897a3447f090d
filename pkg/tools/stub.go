package tools

import (
	"context"
	"sync"
)

// StubTool is a canned tool for tests: fixed result or error, with recorded
// invocations.
type StubTool struct {
	ToolName string
	Result   string
	Err      error

	mu    sync.Mutex
	calls []map[string]any
}

func (s *StubTool) Name() string        { return s.ToolName }
func (s *StubTool) Description() string { return "stub tool for tests" }

func (s *StubTool) ParametersSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (s *StubTool) Execute(_ context.Context, args map[string]any) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, args)
	s.mu.Unlock()
	if s.Err != nil {
		return "", s.Err
	}
	return s.Result, nil
}

// CallCount returns how many times the stub was executed.
func (s *StubTool) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// Ensure StubTool implements Tool.
var _ Tool = (*StubTool)(nil)
