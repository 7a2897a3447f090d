package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/tokens"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// Builtin tool names referenced by the agent type whitelists.
const (
	ToolWebSearch         = "web_search"
	ToolSummarizeText     = "summarize_text"
	ToolRetrieveDocuments = "retrieve_documents"
)

// summarizeInputBudget bounds how much input text reaches the summarization
// prompt.
const summarizeInputBudget = 2000

// RegisterBuiltins registers the built-in tools against the shared
// dependencies.
func RegisterBuiltins(reg *Registry, llmClient llm.Client, store *vectorstore.Store) error {
	builtins := []Tool{
		&WebSearchTool{},
		&SummarizeTool{llm: llmClient},
		&RetrieveTool{store: store},
	}
	for _, t := range builtins {
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return nil
}

// ─── web_search ───

// WebSearchTool is the external-search stand-in. There is no upstream
// search backend wired in; results are synthesized acknowledgments that
// keep agent runs self-contained and deterministic.
type WebSearchTool struct{}

func (t *WebSearchTool) Name() string { return ToolWebSearch }

func (t *WebSearchTool) Description() string {
	return "Search the web for information about a topic. Returns a list of result snippets."
}

func (t *WebSearchTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "The search query",
			},
		},
		"required": []string{"query"},
	}
}

func (t *WebSearchTool) Execute(_ context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Search results for %q:\n", query)
	fmt.Fprintf(&b, "1. Overview of %s — general background, definitions, and context.\n", query)
	fmt.Fprintf(&b, "2. Recent developments related to %s — summaries of current activity.\n", query)
	fmt.Fprintf(&b, "3. Practical guidance on %s — common approaches and considerations.\n", query)
	return b.String(), nil
}

// ─── summarize_text ───

// SummarizeTool condenses text via the LLM. Input is token-truncated before
// prompting so oversized tool chains cannot blow the provider context.
type SummarizeTool struct {
	llm llm.Client
}

func (t *SummarizeTool) Name() string { return ToolSummarizeText }

func (t *SummarizeTool) Description() string {
	return "Summarize a piece of text into its key points."
}

func (t *SummarizeTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"text": map[string]any{
				"type":        "string",
				"description": "The text to summarize",
			},
		},
		"required": []string{"text"},
	}
}

func (t *SummarizeTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	text, err := stringArg(args, "text")
	if err != nil {
		return "", err
	}
	text = tokens.Truncate(text, summarizeInputBudget)

	resp, err := t.llm.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a precise summarizer. Produce a concise summary of the user's text, preserving key facts."},
			{Role: llm.RoleUser, Content: text},
		},
	})
	if err != nil {
		return "", fmt.Errorf("summarization failed: %w", err)
	}
	return resp.Text, nil
}

// ─── retrieve_documents ───

// RetrieveTool runs a semantic query over the knowledge base collection.
type RetrieveTool struct {
	store *vectorstore.Store
}

func (t *RetrieveTool) Name() string { return ToolRetrieveDocuments }

func (t *RetrieveTool) Description() string {
	return "Retrieve stored documents semantically related to a query."
}

func (t *RetrieveTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "What to look for",
			},
		},
		"required": []string{"query"},
	}
}

func (t *RetrieveTool) Execute(ctx context.Context, args map[string]any) (string, error) {
	query, err := stringArg(args, "query")
	if err != nil {
		return "", err
	}

	results, err := t.store.Query(ctx, vectorstore.CollectionKnowledgeBase, query, 3, nil)
	if err != nil {
		return "", fmt.Errorf("retrieval failed: %w", err)
	}
	if len(results) == 0 {
		return "No matching documents found.", nil
	}

	var b strings.Builder
	for i, r := range results {
		fmt.Fprintf(&b, "%d. [similarity %.2f] %s\n", i+1, r.Similarity, r.Content)
	}
	return b.String(), nil
}
