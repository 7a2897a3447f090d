// Package orch owns the task lifecycle: the in-memory registry, the agent
// keyword registry, LLM decomposition, and the supervisor that drives each
// submitted task from pending to its terminal status.
package orch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/maestro-ai/maestro/pkg/engine"
	"github.com/maestro-ai/maestro/pkg/eval"
	"github.com/maestro-ai/maestro/pkg/events"
	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// Supervisor API errors.
var (
	ErrTaskNotFound     = errors.New("task not found")
	ErrEmptyDescription = errors.New("task description is required")
	ErrInvalidPriority  = errors.New("invalid priority")
	ErrInvalidStatus    = errors.New("invalid status")
)

// Deps bundles the supervisor's collaborators.
type Deps struct {
	LLM       llm.Client
	Engine    *engine.Engine
	Evaluator *eval.Evaluator
	Hub       *events.Hub
	Vectors   *vectorstore.Store
}

// AgentView is the API-facing view of one agent: its configuration plus its
// current status.
type AgentView struct {
	models.AgentConfig
	Status models.AgentStatus `json:"status"`
}

// SystemStats is the /system/stats payload.
type SystemStats struct {
	TotalTasks    int                       `json:"totalTasks"`
	TasksByStatus map[models.TaskStatus]int `json:"tasksByStatus"`
	ActiveTasks   int                       `json:"activeTasks"`
	Collections   map[string]int            `json:"collections"`
	Subscribers   int                       `json:"subscribers"`
}

// Supervisor drives task lifecycles. One per process.
type Supervisor struct {
	deps   Deps
	store  *Store
	logger *slog.Logger

	baseCtx    context.Context
	baseCancel context.CancelFunc
	wg         sync.WaitGroup

	mu            sync.Mutex
	active        map[string]context.CancelFunc
	agentConfigs  map[string][]models.AgentConfig
	agentStatuses map[string]map[string]models.AgentStatus
}

// NewSupervisor creates the supervisor.
func NewSupervisor(deps Deps) *Supervisor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Supervisor{
		deps:          deps,
		store:         NewStore(),
		logger:        slog.With("component", "supervisor"),
		baseCtx:       ctx,
		baseCancel:    cancel,
		active:        make(map[string]context.CancelFunc),
		agentConfigs:  make(map[string][]models.AgentConfig),
		agentStatuses: make(map[string]map[string]models.AgentStatus),
	}
}

// Submit accepts a task and starts its pipeline asynchronously. The
// returned snapshot is the task as registered, status pending.
func (s *Supervisor) Submit(description string, priority models.Priority, dueDate *time.Time) (*models.Task, error) {
	if strings.TrimSpace(description) == "" {
		return nil, ErrEmptyDescription
	}
	if priority == "" {
		priority = models.PriorityMedium
	}
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}

	now := time.Now().UTC()
	task := &models.Task{
		ID:          uuid.NewString(),
		Description: description,
		Priority:    priority,
		DueDate:     dueDate,
		Status:      models.TaskStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.store.Insert(task)
	s.broadcastTasks()

	ctx, cancel := context.WithCancel(s.baseCtx)
	s.mu.Lock()
	s.active[task.ID] = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.runPipeline(ctx, task.ID, description)

	s.logger.Info("Task submitted", "task_id", task.ID, "priority", priority)
	snapshot := *task
	return &snapshot, nil
}

// runPipeline drives one task end to end: decompose, instantiate, execute,
// evaluate, finalize. Every step failure lands the task in a terminal
// status; the goroutine never exits with the task mid-flight.
func (s *Supervisor) runPipeline(ctx context.Context, taskID, description string) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		if cancel, ok := s.active[taskID]; ok {
			cancel()
			delete(s.active, taskID)
		}
		s.mu.Unlock()
	}()

	logger := s.logger.With("task_id", taskID)

	// 1. Decompose
	s.setStatus(taskID, models.TaskStatusDecomposing)
	decomposition, err := Decompose(ctx, s.deps.LLM, description)
	if err != nil {
		s.failTask(taskID, fmt.Errorf("decomposition failed: %w", err))
		return
	}
	if err := engine.ValidateDecomposition(decomposition); err != nil {
		s.failTask(taskID, fmt.Errorf("invalid decomposition: %w", err))
		return
	}
	logger.Info("Task decomposed", "subtasks", len(decomposition.Subtasks))

	// 2. Instantiate agents
	configs := BuildAgentConfigs(taskID, decomposition)
	statuses := make(map[string]models.AgentStatus, len(configs))
	for _, cfg := range configs {
		statuses[cfg.ID] = models.AgentStatusPending
	}
	s.mu.Lock()
	s.agentConfigs[taskID] = configs
	s.agentStatuses[taskID] = statuses
	s.mu.Unlock()

	s.store.Update(taskID, func(t *models.Task) {
		t.Decomposition = decomposition
		t.AgentCount = len(configs)
		t.UpdatedAt = time.Now().UTC()
	})
	s.broadcastTasks()
	s.broadcastAgents()

	// 3. Execute
	s.setStatus(taskID, models.TaskStatusInProgress)
	reports, runStatus := s.deps.Engine.Execute(ctx, configs, s.agentEventHandler(taskID))

	if ctx.Err() != nil {
		s.failTask(taskID, fmt.Errorf("task cancelled: %w", ctx.Err()))
		return
	}

	// 4. Evaluate
	s.setStatus(taskID, models.TaskStatusEvaluating)
	record := &models.EvaluationRecord{}
	for _, cfg := range configs {
		report, ok := reports[cfg.ID]
		if !ok {
			// Engine contract violation; keep evaluating the rest.
			logger.Error("Missing report for agent", "agent_id", cfg.ID)
			continue
		}
		record.Agents = append(record.Agents, *s.deps.Evaluator.EvaluateAgent(ctx, report))
	}
	record.System = s.deps.Evaluator.EvaluateSystem(ctx, taskID, record.Agents)

	// 5. Finalize
	finalResult := composeFinalResult(configs, reports)
	finalStatus := models.TaskStatusCompleted
	if runStatus == engine.RunCompletedWithErrors {
		finalStatus = models.TaskStatusCompletedWithErrors
	}
	now := time.Now().UTC()
	score := record.System.AverageScore
	s.store.Update(taskID, func(t *models.Task) {
		t.Status = finalStatus
		t.FinalResult = finalResult
		t.Evaluations = record
		t.OverallScore = &score
		t.CompletedAt = &now
		t.UpdatedAt = now
	})
	logger.Info("Task finished", "status", finalStatus, "score", score)

	s.persistTask(taskID, description, finalResult, finalStatus)
	s.broadcastTasks()
	s.broadcastStats()
}

// agentEventHandler folds engine events into the per-task status map and
// broadcasts the agents snapshot on every delta.
func (s *Supervisor) agentEventHandler(taskID string) func(engine.Event) {
	return func(ev engine.Event) {
		s.mu.Lock()
		if statuses, ok := s.agentStatuses[taskID]; ok {
			statuses[ev.AgentID] = ev.Status
		}
		s.mu.Unlock()
		s.broadcastAgents()
	}
}

// composeFinalResult joins the results of the sink agents — those no other
// agent depends on. They are the DAG's outputs.
func composeFinalResult(configs []models.AgentConfig, reports map[string]*models.AgentReport) string {
	hasDependents := make(map[string]bool)
	for _, cfg := range configs {
		for _, dep := range cfg.Dependencies {
			hasDependents[dep] = true
		}
	}

	var parts []string
	for _, cfg := range configs {
		if hasDependents[cfg.ID] {
			continue
		}
		if report, ok := reports[cfg.ID]; ok && report.Succeeded() && report.Result != "" {
			parts = append(parts, report.Result)
		}
	}
	return strings.Join(parts, "\n\n")
}

func (s *Supervisor) failTask(taskID string, err error) {
	s.logger.Warn("Task failed", "task_id", taskID, "error", err)
	now := time.Now().UTC()
	s.store.Update(taskID, func(t *models.Task) {
		t.Status = models.TaskStatusError
		t.ErrorMessage = err.Error()
		t.CompletedAt = &now
		t.UpdatedAt = now
	})
	s.broadcastTasks()
}

func (s *Supervisor) setStatus(taskID string, status models.TaskStatus) {
	s.store.Update(taskID, func(t *models.Task) {
		t.Status = status
		t.UpdatedAt = time.Now().UTC()
	})
	s.broadcastTasks()
}

// persistTask writes the finished task artifact to the tasks collection.
// Best-effort: failure is logged, the task outcome stands.
func (s *Supervisor) persistTask(taskID, description, finalResult string, status models.TaskStatus) {
	if s.deps.Vectors == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := vectorstore.Document{
		ID:      taskID,
		Content: fmt.Sprintf("Task: %s\nOutcome: %s\nResult: %s", description, status, finalResult),
		Metadata: map[string]string{
			"status": string(status),
		},
	}
	if err := s.deps.Vectors.Add(ctx, vectorstore.CollectionTasks, doc); err != nil {
		s.logger.Warn("Failed to persist task artifact", "task_id", taskID, "error", err)
	}
}

// ─── Read and mutation API ───

// Get returns one task snapshot.
func (s *Supervisor) Get(id string) (*models.Task, bool) {
	return s.store.Get(id)
}

// List returns all task snapshots, newest first.
func (s *Supervisor) List() []*models.Task {
	return s.store.List()
}

// Agents returns the agent views for one task.
func (s *Supervisor) Agents(taskID string) ([]AgentView, bool) {
	if _, ok := s.store.Get(taskID); !ok {
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	configs := s.agentConfigs[taskID]
	statuses := s.agentStatuses[taskID]

	views := make([]AgentView, 0, len(configs))
	for _, cfg := range configs {
		views = append(views, AgentView{AgentConfig: cfg, Status: statuses[cfg.ID]})
	}
	return views, true
}

// UpdateStatus applies a manual status transition. Manual transitions never
// auto-advance the pipeline; they only relabel the task.
func (s *Supervisor) UpdateStatus(id string, status models.TaskStatus) (*models.Task, error) {
	if !status.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	ok := s.store.Update(id, func(t *models.Task) {
		t.Status = status
		t.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return nil, ErrTaskNotFound
	}
	s.broadcastTasks()
	task, _ := s.store.Get(id)
	return task, nil
}

// UpdatePriority changes a task's priority. Running agents are not
// preempted.
func (s *Supervisor) UpdatePriority(id string, priority models.Priority) (*models.Task, error) {
	if !priority.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPriority, priority)
	}
	ok := s.store.Update(id, func(t *models.Task) {
		t.Priority = priority
		t.UpdatedAt = time.Now().UTC()
	})
	if !ok {
		return nil, ErrTaskNotFound
	}
	s.broadcastTasks()
	task, _ := s.store.Get(id)
	return task, nil
}

// Delete removes a task, cancelling its pipeline if still running.
func (s *Supervisor) Delete(id string) bool {
	s.mu.Lock()
	if cancel, ok := s.active[id]; ok {
		cancel()
	}
	delete(s.agentConfigs, id)
	delete(s.agentStatuses, id)
	s.mu.Unlock()

	if !s.store.Delete(id) {
		return false
	}
	s.logger.Info("Task deleted", "task_id", id)
	s.broadcastTasks()
	return true
}

// PruneTerminal removes terminal tasks whose completion is older than the
// window and reports how many were removed. Active pipelines are never
// touched.
func (s *Supervisor) PruneTerminal(olderThan time.Duration) int {
	cutoff := time.Now().UTC().Add(-olderThan)
	removed := 0
	for _, task := range s.store.List() {
		if !task.Status.IsTerminal() {
			continue
		}
		if task.CompletedAt == nil || task.CompletedAt.After(cutoff) {
			continue
		}
		if s.store.Delete(task.ID) {
			s.mu.Lock()
			delete(s.agentConfigs, task.ID)
			delete(s.agentStatuses, task.ID)
			s.mu.Unlock()
			removed++
		}
	}
	if removed > 0 {
		s.logger.Info("Pruned terminal tasks", "count", removed, "older_than", olderThan)
		s.broadcastTasks()
	}
	return removed
}

// Stats assembles the system stats snapshot.
func (s *Supervisor) Stats() SystemStats {
	s.mu.Lock()
	activeTasks := len(s.active)
	s.mu.Unlock()

	stats := SystemStats{
		TotalTasks:    s.store.Count(),
		TasksByStatus: s.store.CountByStatus(),
		ActiveTasks:   activeTasks,
	}
	if s.deps.Vectors != nil {
		stats.Collections = s.deps.Vectors.Counts()
	}
	if s.deps.Hub != nil {
		stats.Subscribers = s.deps.Hub.SubscriberCount()
	}
	return stats
}

// Stop waits for in-flight pipelines until ctx expires, then cancels the
// stragglers and waits for them to wind down.
func (s *Supervisor) Stop(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return
	case <-ctx.Done():
		s.logger.Warn("Shutdown timeout, cancelling in-flight tasks")
		s.baseCancel()
	}
	<-done
}

// ─── Broadcasts ───

func (s *Supervisor) broadcastTasks() {
	if s.deps.Hub == nil {
		return
	}
	s.deps.Hub.Publish(events.NewTasksEvent(s.store.List()))
}

func (s *Supervisor) broadcastAgents() {
	if s.deps.Hub == nil {
		return
	}
	s.mu.Lock()
	snapshot := make(map[string]map[string]models.AgentStatus, len(s.agentStatuses))
	for taskID, statuses := range s.agentStatuses {
		copied := make(map[string]models.AgentStatus, len(statuses))
		for agentID, status := range statuses {
			copied[agentID] = status
		}
		snapshot[taskID] = copied
	}
	s.mu.Unlock()
	s.deps.Hub.Publish(events.NewAgentsEvent(snapshot))
}

func (s *Supervisor) broadcastStats() {
	if s.deps.Hub == nil || s.deps.Vectors == nil {
		return
	}
	s.deps.Hub.Publish(events.NewStatsEvent(s.deps.Vectors.Counts()))
}
