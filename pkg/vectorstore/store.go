// Package vectorstore is the gateway to the embedded vector database. All
// durable artifacts — task records, agent execution reports, system
// knowledge, and agent memories — live in its four collections.
package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/philippgille/chromem-go"
)

// Collection names. Created on first use.
const (
	CollectionTasks           = "tasks"
	CollectionAgentExecutions = "agent_executions"
	CollectionKnowledgeBase   = "knowledge_base"
	CollectionAgentMemory     = "agent_memory"
)

// AllCollections lists every collection the stats surface reports on.
var AllCollections = []string{
	CollectionTasks,
	CollectionAgentExecutions,
	CollectionKnowledgeBase,
	CollectionAgentMemory,
}

// Embedder turns text into an embedding vector. The provider LLM client
// satisfies this; tests and keyless deployments use the local embedder.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Document is one artifact to persist.
type Document struct {
	ID       string
	Content  string
	Metadata map[string]string
}

// Result is one semantic search hit.
type Result struct {
	ID         string
	Content    string
	Metadata   map[string]string
	Similarity float32
}

// Masker scrubs text before it is durably persisted.
type Masker interface {
	Mask(text string) string
}

// Config configures the store.
type Config struct {
	// DataDir enables on-disk persistence when non-empty; otherwise the
	// store is memory-only and its contents vanish on restart.
	DataDir string
	// Embedder computes document and query embeddings.
	Embedder Embedder
	// Masker scrubs document content before persistence. Nil disables
	// masking.
	Masker Masker
}

// Store wraps a chromem database. Methods are safe for concurrent use.
type Store struct {
	db     *chromem.DB
	mu     sync.RWMutex
	cols   map[string]*chromem.Collection
	embed  chromem.EmbeddingFunc
	masker Masker
	logger *slog.Logger
}

// New creates the store, loading any existing on-disk database.
func New(cfg Config) (*Store, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("vectorstore: embedder is required")
	}

	logger := slog.With("component", "vectorstore")

	var db *chromem.DB
	if cfg.DataDir != "" {
		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return nil, fmt.Errorf("vectorstore: failed to create data dir: %w", err)
		}
		var err error
		db, err = chromem.NewPersistentDB(cfg.DataDir, false)
		if err != nil {
			return nil, fmt.Errorf("vectorstore: failed to open persistent database: %w", err)
		}
		logger.Info("Opened persistent vector database", "dir", cfg.DataDir)
	} else {
		db = chromem.NewDB()
		logger.Info("Created in-memory vector database (no persistence)")
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		return cfg.Embedder.Embed(ctx, text)
	}

	return &Store{
		db:     db,
		cols:   make(map[string]*chromem.Collection),
		embed:  embedFunc,
		masker: cfg.Masker,
		logger: logger,
	}, nil
}

// getCollection gets or creates a collection, caching the reference.
func (s *Store) getCollection(name string) (*chromem.Collection, error) {
	s.mu.RLock()
	if col, ok := s.cols[name]; ok {
		s.mu.RUnlock()
		return col, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()

	// Double-check after acquiring write lock
	if col, ok := s.cols[name]; ok {
		return col, nil
	}

	col, err := s.db.GetOrCreateCollection(name, nil, s.embed)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: failed to get/create collection %q: %w", name, err)
	}
	s.cols[name] = col
	return col, nil
}

// Add persists documents into a collection. Content passes through the
// masker when one is configured; embeddings are computed via the configured
// embedder.
func (s *Store) Add(ctx context.Context, collection string, docs ...Document) error {
	if len(docs) == 0 {
		return nil
	}
	col, err := s.getCollection(collection)
	if err != nil {
		return err
	}

	chromemDocs := make([]chromem.Document, 0, len(docs))
	for _, d := range docs {
		content := d.Content
		if s.masker != nil {
			content = s.masker.Mask(content)
		}
		chromemDocs = append(chromemDocs, chromem.Document{
			ID:       d.ID,
			Content:  content,
			Metadata: d.Metadata,
		})
	}
	if err := col.AddDocuments(ctx, chromemDocs, runtime.NumCPU()); err != nil {
		return fmt.Errorf("vectorstore: failed to add documents to %q: %w", collection, err)
	}
	return nil
}

// Query runs a semantic search over a collection, optionally filtered by
// exact metadata matches. topK is clamped to the collection size; an empty
// collection yields no results without error.
func (s *Store) Query(ctx context.Context, collection, query string, topK int, where map[string]string) ([]Result, error) {
	col, err := s.getCollection(collection)
	if err != nil {
		return nil, err
	}

	count := col.Count()
	if count == 0 || topK <= 0 {
		return nil, nil
	}
	if topK > count {
		topK = count
	}

	hits, err := col.Query(ctx, query, topK, where, nil)
	if err != nil {
		return nil, fmt.Errorf("vectorstore: query on %q failed: %w", collection, err)
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			ID:         h.ID,
			Content:    h.Content,
			Metadata:   h.Metadata,
			Similarity: h.Similarity,
		})
	}
	return results, nil
}

// Count returns the document count of one collection.
func (s *Store) Count(collection string) int {
	col, err := s.getCollection(collection)
	if err != nil {
		s.logger.Warn("Failed to resolve collection for count", "collection", collection, "error", err)
		return 0
	}
	return col.Count()
}

// Counts returns the document count of every known collection, for the
// stats surface.
func (s *Store) Counts() map[string]int {
	counts := make(map[string]int, len(AllCollections))
	for _, name := range AllCollections {
		counts[name] = s.Count(name)
	}
	return counts
}
