// Package models defines the domain types shared across the orchestrator:
// tasks, decompositions, agent configurations, reports, and evaluations.
package models

import "time"

// TaskStatus is the lifecycle status of a submitted task.
type TaskStatus string

const (
	// TaskStatusPending — accepted, not yet decomposed
	TaskStatusPending TaskStatus = "pending"
	// TaskStatusDecomposing — LLM decomposition in flight
	TaskStatusDecomposing TaskStatus = "decomposing"
	// TaskStatusInProgress — agents executing
	TaskStatusInProgress TaskStatus = "in-progress"
	// TaskStatusEvaluating — run finished, evaluations in flight
	TaskStatusEvaluating TaskStatus = "evaluating"
	// TaskStatusCompleted — all agents succeeded
	TaskStatusCompleted TaskStatus = "completed"
	// TaskStatusCompletedWithErrors — run finished but at least one agent failed
	TaskStatusCompletedWithErrors TaskStatus = "completed_with_errors"
	// TaskStatusError — pipeline failure (decomposition, validation, or internal)
	TaskStatusError TaskStatus = "error"
)

// IsValid checks if the task status is valid
func (s TaskStatus) IsValid() bool {
	switch s {
	case TaskStatusPending,
		TaskStatusDecomposing,
		TaskStatusInProgress,
		TaskStatusEvaluating,
		TaskStatusCompleted,
		TaskStatusCompletedWithErrors,
		TaskStatusError:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the task lifecycle.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusCompletedWithErrors || s == TaskStatusError
}

// Priority is the user-assigned task priority. It is carried and reported
// but never preempts running agents.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// IsValid checks if the priority is valid
func (p Priority) IsValid() bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// Task is the registry record for one submitted task. Instances handed out
// by the store are snapshots; mutation happens only inside the supervisor.
type Task struct {
	ID            string            `json:"id"`
	Description   string            `json:"description"`
	Priority      Priority          `json:"priority"`
	DueDate       *time.Time        `json:"dueDate,omitempty"`
	Status        TaskStatus        `json:"status"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
	CompletedAt   *time.Time        `json:"completedAt,omitempty"`
	OverallScore  *float64          `json:"overallScore,omitempty"`
	Decomposition *Decomposition    `json:"decomposition,omitempty"`
	AgentCount    int               `json:"agentCount"`
	FinalResult   string            `json:"finalResult,omitempty"`
	Evaluations   *EvaluationRecord `json:"evaluations,omitempty"`
	ErrorMessage  string            `json:"errorMessage,omitempty"`
}

// Decomposition is the validated output of the planning LLM call: the
// restated main task plus the subtask DAG.
type Decomposition struct {
	MainTask string    `json:"mainTask"`
	Subtasks []Subtask `json:"subtasks"`
}

// Subtask is one node of the decomposition DAG.
type Subtask struct {
	SubtaskID           string   `json:"subtaskId"`
	SubtaskName         string   `json:"subtaskName"`
	Dependencies        []string `json:"dependencies"`
	ParallelGroup       string   `json:"parallelGroup"`
	EstimatedComplexity *int     `json:"estimatedComplexity,omitempty"`
	Description         string   `json:"description"`
}

// EvaluationRecord bundles the per-agent and system-level evaluations
// attached to a finished task.
type EvaluationRecord struct {
	Agents []AgentEvaluation `json:"agents"`
	System *SystemEvaluation `json:"system,omitempty"`
}
