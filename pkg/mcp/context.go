// Package mcp maintains the model context protocol buffer: the bounded,
// ordered conversation an agent accumulates across its tool loop. The
// buffer enforces a message-count cap and an estimated token cap by
// evicting the oldest non-system messages.
package mcp

import (
	"encoding/json"
	"log/slog"

	"github.com/maestro-ai/maestro/pkg/llm"
)

// Default bounds, overridable per context.
const (
	DefaultMaxMessages = 30
	DefaultMaxTokens   = 8000
)

// Context is the conversation buffer for one agent execution. It is owned
// by a single goroutine for its lifetime and is not safe for concurrent
// use.
//
// Invariants:
//   - at most one system message, always at index 0
//   - len(messages) <= maxMessages
//   - estimated token total <= maxTokens (as long as the floor allows)
//
// The eviction floor is the system message plus the most recent message:
// those two are never evicted, so a single oversized message can exceed the
// token cap rather than empty the buffer.
type Context struct {
	messages    []llm.Message
	maxMessages int
	maxTokens   int
	tokenTotal  int
	logger      *slog.Logger
}

// Config overrides the context bounds; zero values take the defaults.
type Config struct {
	MaxMessages int
	MaxTokens   int
}

// NewContext creates a buffer seeded with the system instruction.
func NewContext(systemInstruction string, cfg Config) *Context {
	maxMessages := cfg.MaxMessages
	if maxMessages <= 0 {
		maxMessages = DefaultMaxMessages
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}

	c := &Context{
		maxMessages: maxMessages,
		maxTokens:   maxTokens,
		logger:      slog.With("component", "mcp"),
	}
	if systemInstruction != "" {
		sys := llm.Message{Role: llm.RoleSystem, Content: systemInstruction}
		c.messages = append(c.messages, sys)
		c.tokenTotal = EstimateTokens(sys)
	}
	return c
}

// EstimateTokens estimates the token footprint of one message as
// ceil(serializedLength / 4). Serialization failure falls back to the raw
// content length.
func EstimateTokens(msg llm.Message) int {
	data, err := json.Marshal(msg)
	n := len(data)
	if err != nil {
		n = len(msg.Content)
	}
	return (n + 3) / 4
}

// Add appends a message and restores the bounds. Adding a second system
// message replaces the instruction in place instead of violating the
// single-system invariant.
func (c *Context) Add(msg llm.Message) {
	if msg.Role == llm.RoleSystem && len(c.messages) > 0 && c.messages[0].Role == llm.RoleSystem {
		c.logger.Warn("Replacing existing system instruction")
		c.tokenTotal -= EstimateTokens(c.messages[0])
		c.messages[0] = msg
		c.tokenTotal += EstimateTokens(msg)
		c.evict()
		return
	}

	c.messages = append(c.messages, msg)
	c.tokenTotal += EstimateTokens(msg)
	c.evict()
}

// AddUser appends a user text message.
func (c *Context) AddUser(content string) {
	c.Add(llm.Message{Role: llm.RoleUser, Content: content})
}

// AddAssistant appends an assistant text message.
func (c *Context) AddAssistant(content string) {
	c.Add(llm.Message{Role: llm.RoleAssistant, Content: content})
}

// AddToolCalls appends the assistant's tool-call request turn.
func (c *Context) AddToolCalls(calls []llm.ToolCall) {
	c.Add(llm.Message{Role: llm.RoleAssistant, ToolCalls: calls})
}

// AddToolResponses appends the tool results turn.
func (c *Context) AddToolResponses(responses []llm.ToolResponse) {
	c.Add(llm.Message{Role: llm.RoleTool, ToolResponses: responses})
}

// RecordProviderFailure notes a provider error in the conversation so the
// next turn sees what happened. Recorded as a user-role note: the system
// slot stays reserved for the identity instruction.
func (c *Context) RecordProviderFailure(err error) {
	c.AddUser("Note: the previous model call failed (" + err.Error() + "). Continue from the conversation so far.")
}

// evict removes oldest non-system messages until both bounds hold or only
// the floor remains.
func (c *Context) evict() {
	for len(c.messages) > c.maxMessages || c.tokenTotal > c.maxTokens {
		idx := c.oldestEvictable()
		if idx < 0 {
			return
		}
		evicted := c.messages[idx]
		c.tokenTotal -= EstimateTokens(evicted)
		c.messages = append(c.messages[:idx], c.messages[idx+1:]...)
		c.logger.Debug("Evicted context message",
			"role", evicted.Role, "remaining", len(c.messages), "tokens", c.tokenTotal)
	}
}

// oldestEvictable returns the index of the oldest message that may be
// evicted, or -1 when only the floor remains. The system message and the
// newest message are off limits.
func (c *Context) oldestEvictable() int {
	start := 0
	if len(c.messages) > 0 && c.messages[0].Role == llm.RoleSystem {
		start = 1
	}
	if start >= len(c.messages)-1 {
		return -1
	}
	return start
}

// Messages returns a copy of the buffer in order.
func (c *Context) Messages() []llm.Message {
	out := make([]llm.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Len returns the current message count.
func (c *Context) Len() int { return len(c.messages) }

// EstimatedTokens returns the running token estimate.
func (c *Context) EstimatedTokens() int { return c.tokenTotal }
