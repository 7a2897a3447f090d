package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// ─── Registry ───

func TestRegistry_RegisterAndGet(t *testing.T) {
	reg := NewRegistry()

	require.NoError(t, reg.Register(&StubTool{ToolName: "alpha"}))
	require.NoError(t, reg.Register(&StubTool{ToolName: "beta"}))

	_, ok := reg.Get("alpha")
	assert.True(t, ok)
	_, ok = reg.Get("gamma")
	assert.False(t, ok)

	assert.Equal(t, []string{"alpha", "beta"}, reg.Names())
}

func TestRegistry_DuplicateRejected(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&StubTool{ToolName: "dup"}))
	assert.Error(t, reg.Register(&StubTool{ToolName: "dup"}))
}

func TestRegistry_DefinitionsHonorWhitelist(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&StubTool{ToolName: "alpha"}))
	require.NoError(t, reg.Register(&StubTool{ToolName: "beta"}))

	defs := reg.Definitions([]string{"beta", "ghost"})
	require.Len(t, defs, 1)
	assert.Equal(t, "beta", defs[0].Name)

	assert.Empty(t, reg.Definitions(nil))
}

func TestRegistry_Execute(t *testing.T) {
	reg := NewRegistry()
	stub := &StubTool{ToolName: "echo", Result: "hello"}
	require.NoError(t, reg.Register(stub))

	resp := reg.Execute(context.Background(), llm.ToolCall{Name: "echo"}, []string{"echo"})
	assert.False(t, resp.IsError)
	assert.Equal(t, "hello", resp.Response)
	assert.Equal(t, 1, stub.CallCount())
}

func TestRegistry_ExecuteForbiddenTool(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&StubTool{ToolName: "echo"}))

	resp := reg.Execute(context.Background(), llm.ToolCall{Name: "echo"}, []string{"other"})
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Response, "not available")
}

func TestRegistry_ExecuteUnknownTool(t *testing.T) {
	reg := NewRegistry()

	resp := reg.Execute(context.Background(), llm.ToolCall{Name: "ghost"}, []string{"ghost"})
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Response, "unknown tool")
}

func TestRegistry_ExecuteFailureBecomesErrorResponse(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, reg.Register(&StubTool{ToolName: "flaky", Err: errors.New("backend down")}))

	resp := reg.Execute(context.Background(), llm.ToolCall{Name: "flaky"}, []string{"flaky"})
	assert.True(t, resp.IsError)
	assert.Equal(t, "backend down", resp.Response)
}

// ─── Built-ins ───

type summarizerLLM struct{}

func (summarizerLLM) Generate(context.Context, llm.GenerateInput) (*llm.Response, error) {
	return &llm.Response{Text: "a summary"}, nil
}

func (summarizerLLM) Embed(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func newBuiltinRegistry(t *testing.T) (*Registry, *vectorstore.Store) {
	t.Helper()
	store, err := vectorstore.New(vectorstore.Config{Embedder: vectorstore.NewLocalEmbedder()})
	require.NoError(t, err)

	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg, summarizerLLM{}, store))
	return reg, store
}

func TestRegisterBuiltins(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)
	assert.Equal(t, []string{ToolRetrieveDocuments, ToolSummarizeText, ToolWebSearch}, reg.Names())
}

func TestWebSearch(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	resp := reg.Execute(context.Background(),
		llm.ToolCall{Name: ToolWebSearch, Arguments: map[string]any{"query": "go concurrency"}},
		[]string{ToolWebSearch})
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Response, "go concurrency")
}

func TestWebSearch_MissingQuery(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	resp := reg.Execute(context.Background(),
		llm.ToolCall{Name: ToolWebSearch, Arguments: map[string]any{}},
		[]string{ToolWebSearch})
	assert.True(t, resp.IsError)
	assert.Contains(t, resp.Response, "query")
}

func TestSummarize(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	resp := reg.Execute(context.Background(),
		llm.ToolCall{Name: ToolSummarizeText, Arguments: map[string]any{"text": "long text to condense"}},
		[]string{ToolSummarizeText})
	assert.False(t, resp.IsError)
	assert.Equal(t, "a summary", resp.Response)
}

func TestRetrieve(t *testing.T) {
	reg, store := newBuiltinRegistry(t)
	ctx := context.Background()

	require.NoError(t, store.Add(ctx, vectorstore.CollectionKnowledgeBase,
		vectorstore.Document{ID: "k1", Content: "kubernetes deployment strategies"}))

	resp := reg.Execute(ctx,
		llm.ToolCall{Name: ToolRetrieveDocuments, Arguments: map[string]any{"query": "kubernetes deployment"}},
		[]string{ToolRetrieveDocuments})
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Response, "kubernetes deployment strategies")
}

func TestRetrieve_EmptyKnowledgeBase(t *testing.T) {
	reg, _ := newBuiltinRegistry(t)

	resp := reg.Execute(context.Background(),
		llm.ToolCall{Name: ToolRetrieveDocuments, Arguments: map[string]any{"query": "anything"}},
		[]string{ToolRetrieveDocuments})
	assert.False(t, resp.IsError)
	assert.Contains(t, resp.Response, "No matching documents")
}

func TestStringArg(t *testing.T) {
	_, err := stringArg(map[string]any{}, "q")
	assert.Error(t, err)

	_, err = stringArg(map[string]any{"q": 42}, "q")
	assert.Error(t, err)

	_, err = stringArg(map[string]any{"q": ""}, "q")
	assert.Error(t, err)

	v, err := stringArg(map[string]any{"q": "ok"}, "q")
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}
