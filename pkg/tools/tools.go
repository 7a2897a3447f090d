// Package tools defines the callable tool surface agents use during
// execution: the Tool interface, the registry with per-agent whitelisting,
// and the built-in tools.
package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/maestro-ai/maestro/pkg/llm"
)

// Tool is one callable capability exposed to agents.
type Tool interface {
	// Name is the identifier the model calls the tool by.
	Name() string
	// Description tells the model what the tool does.
	Description() string
	// ParametersSchema is the JSON-schema object describing arguments.
	ParametersSchema() map[string]any
	// Execute runs the tool. A non-nil error marks a failed call; the
	// caller frames it as an error-bearing tool response, never as a
	// control-flow failure.
	Execute(ctx context.Context, args map[string]any) (string, error)
}

// Registry holds the registered tools and resolves per-agent whitelists.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Duplicate names are rejected.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tools: duplicate tool %q", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Names returns all registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions returns the model-facing declarations for the whitelisted
// tools. Unknown whitelist entries are skipped; a nil whitelist exposes
// nothing.
func (r *Registry) Definitions(whitelist []string) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(whitelist))
	for _, name := range whitelist {
		t, ok := r.tools[name]
		if !ok {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:             t.Name(),
			Description:      t.Description(),
			ParametersSchema: t.ParametersSchema(),
		})
	}
	return defs
}

// Execute runs one requested tool call against the whitelist and frames the
// outcome as a tool response. Unknown tools, whitelist violations, and tool
// failures all become error-bearing responses — data for the model, not
// failures for the caller.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall, whitelist []string) llm.ToolResponse {
	allowed := false
	for _, name := range whitelist {
		if name == call.Name {
			allowed = true
			break
		}
	}
	if !allowed {
		return llm.ToolResponse{
			Name:     call.Name,
			Response: fmt.Sprintf("tool %q is not available to this agent", call.Name),
			IsError:  true,
		}
	}

	t, ok := r.Get(call.Name)
	if !ok {
		return llm.ToolResponse{
			Name:     call.Name,
			Response: fmt.Sprintf("unknown tool %q", call.Name),
			IsError:  true,
		}
	}

	result, err := t.Execute(ctx, call.Arguments)
	if err != nil {
		return llm.ToolResponse{Name: call.Name, Response: err.Error(), IsError: true}
	}
	return llm.ToolResponse{Name: call.Name, Response: result}
}

// stringArg extracts a required string argument.
func stringArg(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", fmt.Errorf("missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", fmt.Errorf("argument %q must be a non-empty string", key)
	}
	return s, nil
}
