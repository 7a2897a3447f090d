// Package memory gives agents two recall horizons: an in-process short-term
// scratchpad scoped to one execution, and a long-term episodic store backed
// by the agent_memory vector collection.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// Entry is one short-term memory item, in insertion order.
type Entry struct {
	Key   string
	Value string
	At    time.Time
}

// ShortTerm is the per-execution scratchpad. Writes to an existing key
// update the value in place, preserving order.
type ShortTerm struct {
	mu      sync.RWMutex
	entries []Entry
	index   map[string]int
}

// NewShortTerm creates an empty scratchpad.
func NewShortTerm() *ShortTerm {
	return &ShortTerm{index: make(map[string]int)}
}

// Set stores or updates a value.
func (m *ShortTerm) Set(key, value string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[key]; ok {
		m.entries[i].Value = value
		m.entries[i].At = time.Now()
		return
	}
	m.index[key] = len(m.entries)
	m.entries = append(m.entries, Entry{Key: key, Value: value, At: time.Now()})
}

// Get returns a value by key.
func (m *ShortTerm) Get(key string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[key]
	if !ok {
		return "", false
	}
	return m.entries[i].Value, true
}

// All returns the entries in insertion order.
func (m *ShortTerm) All() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(m.entries))
	copy(out, m.entries)
	return out
}

// LongTerm is the episodic store over the agent_memory collection.
type LongTerm struct {
	store *vectorstore.Store
}

// NewLongTerm creates the episodic store.
func NewLongTerm(store *vectorstore.Store) *LongTerm {
	return &LongTerm{store: store}
}

// Remember persists one episode for an agent identity. kind labels the
// episode (e.g. "execution", "observation") for later filtering.
func (m *LongTerm) Remember(ctx context.Context, agentID, content, kind string) error {
	if content == "" {
		return nil
	}
	doc := vectorstore.Document{
		ID:      uuid.NewString(),
		Content: content,
		Metadata: map[string]string{
			"agent":     agentID,
			"kind":      kind,
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
	}
	if err := m.store.Add(ctx, vectorstore.CollectionAgentMemory, doc); err != nil {
		return fmt.Errorf("memory: failed to persist episode: %w", err)
	}
	return nil
}

// Recall returns up to k episodes for an agent identity, most similar to
// the query first.
func (m *LongTerm) Recall(ctx context.Context, agentID, query string, k int) ([]vectorstore.Result, error) {
	return m.store.Query(ctx, vectorstore.CollectionAgentMemory, query, k,
		map[string]string{"agent": agentID})
}
