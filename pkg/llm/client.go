// Package llm defines the provider-facing LLM client: conversation message
// types, tool declarations, the Client interface, and the HTTP
// implementation against a Gemini-style generateContent API.
package llm

import (
	"context"
)

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResponse is the outcome of one tool call, fed back to the model.
// Errors are data: IsError marks a failed call whose Response carries the
// error text.
type ToolResponse struct {
	Name     string `json:"name"`
	Response string `json:"response"`
	IsError  bool   `json:"isError,omitempty"`
}

// ToolDefinition declares a callable tool to the model. ParametersSchema is
// a JSON-schema object.
type ToolDefinition struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	ParametersSchema map[string]any `json:"parametersSchema"`
}

// Message is one conversation message. Exactly one of Content, ToolCalls,
// or ToolResponses is populated depending on the message kind.
type Message struct {
	Role          Role           `json:"role"`
	Content       string         `json:"content,omitempty"`
	ToolCalls     []ToolCall     `json:"toolCalls,omitempty"`
	ToolResponses []ToolResponse `json:"toolResponses,omitempty"`
}

// GenerateInput is the request for one model turn.
type GenerateInput struct {
	Messages []Message
	Tools    []ToolDefinition
}

// Response is the model's reply to one turn: free text, tool-call requests,
// or both.
type Response struct {
	Text      string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model requested tool execution.
func (r *Response) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// Client is the provider abstraction used by every LLM-backed component.
type Client interface {
	// Generate runs one model turn. Provider failures return a
	// *ProviderError so callers can inspect status and retry hints.
	Generate(ctx context.Context, input GenerateInput) (*Response, error)

	// Embed returns the embedding vector for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)
}
