package models

import "time"

// AgentStatus is the execution status of a single agent. The scheduler owns
// transitions up to in-progress; the runtime owns the terminal ones.
type AgentStatus string

const (
	// AgentStatusPending — instantiated, not yet considered by the scheduler
	AgentStatusPending AgentStatus = "pending"
	// AgentStatusWaiting — has unmet dependencies
	AgentStatusWaiting AgentStatus = "waiting"
	// AgentStatusReady — dependencies satisfied, queued for its cohort
	AgentStatusReady AgentStatus = "ready_to_execute"
	// AgentStatusInProgress — executing
	AgentStatusInProgress AgentStatus = "in-progress"
	// AgentStatusCompleted — produced a result
	AgentStatusCompleted AgentStatus = "completed"
	// AgentStatusError — failed during execution
	AgentStatusError AgentStatus = "error"
	// AgentStatusBlockedError — never ran; a transitive dependency failed
	AgentStatusBlockedError AgentStatus = "blocked_error"
	// AgentStatusStalled — never ran; unsatisfiable dependencies (cycle or
	// reference to a node outside the DAG)
	AgentStatusStalled AgentStatus = "stalled"
)

// IsValid checks if the agent status is valid
func (s AgentStatus) IsValid() bool {
	switch s {
	case AgentStatusPending,
		AgentStatusWaiting,
		AgentStatusReady,
		AgentStatusInProgress,
		AgentStatusCompleted,
		AgentStatusError,
		AgentStatusBlockedError,
		AgentStatusStalled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether the status ends the agent lifecycle.
func (s AgentStatus) IsTerminal() bool {
	switch s {
	case AgentStatusCompleted, AgentStatusError, AgentStatusBlockedError, AgentStatusStalled:
		return true
	default:
		return false
	}
}

// AgentType selects the system instruction and tool whitelist an agent runs
// with. Assignment is keyword-based on the subtask name.
type AgentType string

const (
	AgentTypeResearcher AgentType = "RESEARCHER"
	AgentTypePlanner    AgentType = "PLANNER"
	AgentTypeEvaluator  AgentType = "EVALUATOR"
	AgentTypeExecutor   AgentType = "EXECUTOR"
	AgentTypeGeneral    AgentType = "GENERAL"
)

// IsValid checks if the agent type is valid
func (t AgentType) IsValid() bool {
	switch t {
	case AgentTypeResearcher, AgentTypePlanner, AgentTypeEvaluator, AgentTypeExecutor, AgentTypeGeneral:
		return true
	default:
		return false
	}
}

// AgentConfig is the immutable instantiation record for one agent. The agent
// identity is the subtask id it was created for.
type AgentConfig struct {
	ID                string    `json:"id"`
	TaskID            string    `json:"taskId"`
	TaskAssigned      string    `json:"taskAssigned"`
	Description       string    `json:"description"`
	Type              AgentType `json:"type"`
	SystemInstruction string    `json:"systemInstruction"`
	Tools             []string  `json:"tools"`
	ParallelGroup     string    `json:"parallelGroup"`
	Dependencies      []string  `json:"dependencies"`
	CreatedAt         time.Time `json:"createdAt"`
}

// AgentStats carries the deterministic execution counters of one agent run.
type AgentStats struct {
	ExecutionTimeMs int64 `json:"executionTimeMs"`
	ToolCallsMade   int   `json:"toolCallsMade"`
}

// AgentReport is the immutable outcome of one agent execution. Every agent
// the engine accepts produces exactly one report, success or not.
type AgentReport struct {
	AgentID         string      `json:"agentId"`
	TaskID          string      `json:"taskId"`
	TaskAssigned    string      `json:"taskAssigned"`
	Status          AgentStatus `json:"status"`
	StartedAt       time.Time   `json:"startedAt"`
	EndedAt         time.Time   `json:"endedAt"`
	Result          string      `json:"result"`
	Reasoning       string      `json:"reasoning,omitempty"`
	ToolsUsed       []string    `json:"toolsUsed,omitempty"`
	Stats           AgentStats  `json:"stats"`
	ErrorMessage    string      `json:"errorMessage,omitempty"`
}

// Succeeded reports whether the agent produced a usable result.
func (r *AgentReport) Succeeded() bool {
	return r.Status == AgentStatusCompleted
}
