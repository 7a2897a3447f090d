package events

import "github.com/maestro-ai/maestro/pkg/models"

// Channel names double as SSE event names on the streaming endpoint.
const (
	// ChannelTasks carries the full task list on every task change
	ChannelTasks = "tasks"
	// ChannelAgents carries the per-task agent status map on agent deltas
	ChannelAgents = "agents"
	// ChannelStats carries collection counts after task completion
	ChannelStats = "stats"
)

// Event is one notification: the channel it belongs on and its payload.
// Payloads are typed structs; serialization happens at the SSE edge.
type Event struct {
	Channel string
	Payload any
}

// TasksPayload is the full task snapshot, newest first.
type TasksPayload struct {
	Tasks []*models.Task `json:"tasks"`
}

// AgentsPayload maps task id to its agents' current statuses.
type AgentsPayload struct {
	Agents map[string]map[string]models.AgentStatus `json:"agents"`
}

// StatsPayload carries the vector store collection counts.
type StatsPayload struct {
	Collections map[string]int `json:"collections"`
}

// NewTasksEvent wraps a task snapshot.
func NewTasksEvent(tasks []*models.Task) Event {
	return Event{Channel: ChannelTasks, Payload: TasksPayload{Tasks: tasks}}
}

// NewAgentsEvent wraps an agent status snapshot.
func NewAgentsEvent(agents map[string]map[string]models.AgentStatus) Event {
	return Event{Channel: ChannelAgents, Payload: AgentsPayload{Agents: agents}}
}

// NewStatsEvent wraps collection counts.
func NewStatsEvent(collections map[string]int) Event {
	return Event{Channel: ChannelStats, Payload: StatsPayload{Collections: collections}}
}
