package orch

import (
	"sort"
	"sync"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Store is the in-memory task registry. All mutation goes through the
// supervisor; readers get snapshots. Contents do not survive a restart —
// durable artifacts live in the vector store.
type Store struct {
	mu    sync.RWMutex
	tasks map[string]*models.Task
}

// NewStore creates an empty registry.
func NewStore() *Store {
	return &Store{tasks: make(map[string]*models.Task)}
}

// Insert adds a task.
func (s *Store) Insert(task *models.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks[task.ID] = task
}

// Get returns a snapshot of one task.
func (s *Store) Get(id string) (*models.Task, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, false
	}
	snapshot := *task
	return &snapshot, true
}

// List returns snapshots of all tasks, newest first.
func (s *Store) List() []*models.Task {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*models.Task, 0, len(s.tasks))
	for _, task := range s.tasks {
		snapshot := *task
		out = append(out, &snapshot)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Update applies mutate to a task under the write lock. Returns false when
// the task does not exist.
func (s *Store) Update(id string, mutate func(*models.Task)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return false
	}
	mutate(task)
	return true
}

// Delete removes a task. Returns false when the task does not exist.
func (s *Store) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return false
	}
	delete(s.tasks, id)
	return true
}

// Count returns the task count.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tasks)
}

// CountByStatus returns task counts grouped by status.
func (s *Store) CountByStatus() map[models.TaskStatus]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[models.TaskStatus]int)
	for _, task := range s.tasks {
		counts[task.Status]++
	}
	return counts
}
