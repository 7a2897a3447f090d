package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// GeminiClient talks to a Gemini-style generateContent HTTP API.
type GeminiClient struct {
	baseURL        string
	model          string
	embeddingModel string
	apiKey         string
	httpClient     *http.Client
	logger         *slog.Logger
}

// GeminiConfig configures the HTTP client.
type GeminiConfig struct {
	BaseURL        string
	Model          string
	EmbeddingModel string
	APIKey         string
	Timeout        time.Duration
}

// NewGeminiClient creates a client for the configured provider endpoint.
func NewGeminiClient(cfg GeminiConfig) *GeminiClient {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	return &GeminiClient{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		model:          cfg.Model,
		embeddingModel: cfg.EmbeddingModel,
		apiKey:         cfg.APIKey,
		httpClient:     &http.Client{Timeout: timeout},
		logger:         slog.With("component", "llm"),
	}
}

// ─── Wire types ───

type wirePart struct {
	Text             string            `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResp `json:"functionResponse,omitempty"`
}

type wireFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireFunctionResp struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wireContent struct {
	Role  string     `json:"role"`
	Parts []wirePart `json:"parts"`
}

type wireRequest struct {
	Contents []wireContent `json:"contents"`
	Tools    []wireTools   `json:"tools,omitempty"`
}

type wireTools struct {
	FunctionDeclarations []wireFunctionDecl `json:"functionDeclarations"`
}

type wireFunctionDecl struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters,omitempty"`
}

type wireResponse struct {
	Candidates []struct {
		Content wireContent `json:"content"`
	} `json:"candidates"`
}

type wireError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
		Details []struct {
			Type       string `json:"@type"`
			RetryDelay string `json:"retryDelay"`
		} `json:"details"`
	} `json:"error"`
}

// providerRole maps conversation roles onto the two wire roles the provider
// accepts: model-authored messages (system identity, assistant turns) become
// "model"; everything fed to the model (user prompts, tool results) becomes
// "user".
func providerRole(r Role) string {
	switch r {
	case RoleSystem, RoleAssistant:
		return "model"
	default:
		return "user"
	}
}

// buildContents frames conversation messages into provider wire content.
// A message that cannot be framed structurally degrades to a text part so a
// single malformed entry never aborts the whole turn.
func (c *GeminiClient) buildContents(messages []Message) []wireContent {
	contents := make([]wireContent, 0, len(messages))
	for _, msg := range messages {
		content := wireContent{Role: providerRole(msg.Role)}

		switch {
		case len(msg.ToolCalls) > 0:
			for _, call := range msg.ToolCalls {
				if call.Name == "" {
					c.logger.Warn("Malformed tool call in conversation, degrading to text", "id", call.ID)
					content.Parts = append(content.Parts, wirePart{Text: fmt.Sprintf("Tool Call: %v", call.Arguments)})
					continue
				}
				args := call.Arguments
				if args == nil {
					args = map[string]any{}
				}
				content.Parts = append(content.Parts, wirePart{
					FunctionCall: &wireFunctionCall{Name: call.Name, Args: args},
				})
			}
		case len(msg.ToolResponses) > 0:
			for _, resp := range msg.ToolResponses {
				if resp.Name == "" {
					c.logger.Warn("Malformed tool response in conversation, degrading to text")
					content.Parts = append(content.Parts, wirePart{Text: resp.Response})
					continue
				}
				payload := map[string]any{"content": resp.Response}
				if resp.IsError {
					payload = map[string]any{"error": resp.Response}
				}
				content.Parts = append(content.Parts, wirePart{
					FunctionResponse: &wireFunctionResp{Name: resp.Name, Response: payload},
				})
			}
		default:
			content.Parts = append(content.Parts, wirePart{Text: msg.Content})
		}

		contents = append(contents, content)
	}
	return contents
}

// Generate implements Client.
func (c *GeminiClient) Generate(ctx context.Context, input GenerateInput) (*Response, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req := wireRequest{Contents: c.buildContents(input.Messages)}
	if len(input.Tools) > 0 {
		decls := make([]wireFunctionDecl, 0, len(input.Tools))
		for _, t := range input.Tools {
			decls = append(decls, wireFunctionDecl{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  t.ParametersSchema,
			})
		}
		req.Tools = []wireTools{{FunctionDeclarations: decls}}
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	body, err := c.post(ctx, url, req)
	if err != nil {
		return nil, err
	}

	var wire wireResponse
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("llm: failed to decode provider response: %w", err)
	}
	if len(wire.Candidates) == 0 {
		return nil, ErrEmptyResponse
	}

	resp := &Response{}
	var texts []string
	callSeq := 0
	for _, part := range wire.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
		if part.FunctionCall != nil {
			callSeq++
			resp.ToolCalls = append(resp.ToolCalls, ToolCall{
				ID:        fmt.Sprintf("call-%d", callSeq),
				Name:      part.FunctionCall.Name,
				Arguments: part.FunctionCall.Args,
			})
		}
	}
	resp.Text = strings.Join(texts, "\n")
	return resp, nil
}

// Embed implements Client.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	req := map[string]any{
		"content": map[string]any{
			"parts": []map[string]any{{"text": text}},
		},
	}
	url := fmt.Sprintf("%s/models/%s:embedContent?key=%s", c.baseURL, c.embeddingModel, c.apiKey)
	body, err := c.post(ctx, url, req)
	if err != nil {
		return nil, err
	}

	var wire struct {
		Embedding struct {
			Values []float32 `json:"values"`
		} `json:"embedding"`
	}
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("llm: failed to decode embedding response: %w", err)
	}
	if len(wire.Embedding.Values) == 0 {
		return nil, ErrEmptyResponse
	}
	return wire.Embedding.Values, nil
}

// post issues one JSON request and returns the raw body, converting non-2xx
// replies into *ProviderError with any retry hint attached.
func (c *GeminiClient) post(ctx context.Context, url string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("llm: failed to build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: request failed: %w", err)
	}
	defer func() { _ = httpResp.Body.Close() }()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("llm: failed to read response: %w", err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, c.providerError(httpResp.StatusCode, body)
	}
	return body, nil
}

func (c *GeminiClient) providerError(status int, body []byte) *ProviderError {
	pe := &ProviderError{StatusCode: status, Message: http.StatusText(status)}

	var wire wireError
	if err := json.Unmarshal(body, &wire); err == nil && wire.Error.Message != "" {
		pe.Message = wire.Error.Message
		for _, d := range wire.Error.Details {
			if d.RetryDelay == "" {
				continue
			}
			if delay, err := time.ParseDuration(d.RetryDelay); err == nil {
				pe.RetryAfter = delay
			}
		}
	}
	return pe
}

// Ensure GeminiClient implements Client.
var _ Client = (*GeminiClient)(nil)
