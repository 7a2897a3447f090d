package orch

import (
	"strings"
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/tools"
)

// typeKeywords maps subtask-name keywords to agent types. First match in
// declaration order wins; unmatched names fall through to GENERAL.
var typeKeywords = []struct {
	agentType models.AgentType
	keywords  []string
}{
	{models.AgentTypeResearcher, []string{"research", "find", "gather"}},
	{models.AgentTypePlanner, []string{"plan", "schedule", "organize", "break down"}},
	{models.AgentTypeEvaluator, []string{"evaluate", "assess", "review"}},
	{models.AgentTypeExecutor, []string{"execute", "perform", "implement"}},
}

// systemInstructions are the fixed identity prompts per agent type.
var systemInstructions = map[models.AgentType]string{
	models.AgentTypeResearcher: "You are a research agent. Gather accurate, relevant information for your assigned subtask using the available tools, then report your findings concisely.",
	models.AgentTypePlanner:    "You are a planning agent. Produce a clear, ordered plan for your assigned subtask, noting dependencies and risks.",
	models.AgentTypeEvaluator:  "You are an evaluation agent. Critically assess the material for your assigned subtask and report strengths, weaknesses, and a verdict.",
	models.AgentTypeExecutor:   "You are an execution agent. Carry out your assigned subtask directly and report the outcome.",
	models.AgentTypeGeneral:    "You are a general-purpose agent. Complete your assigned subtask using the available tools and report the result.",
}

// typeTools are the per-type tool whitelists.
var typeTools = map[models.AgentType][]string{
	models.AgentTypeResearcher: {tools.ToolWebSearch, tools.ToolSummarizeText, tools.ToolRetrieveDocuments},
	models.AgentTypePlanner:    {tools.ToolRetrieveDocuments, tools.ToolSummarizeText},
	models.AgentTypeEvaluator:  {tools.ToolRetrieveDocuments},
	models.AgentTypeExecutor:   {tools.ToolWebSearch, tools.ToolSummarizeText},
	models.AgentTypeGeneral:    {tools.ToolWebSearch, tools.ToolSummarizeText, tools.ToolRetrieveDocuments},
}

// AssignAgentType picks the agent type for a subtask by keyword match on
// its name.
func AssignAgentType(subtaskName string) models.AgentType {
	name := strings.ToLower(subtaskName)
	for _, entry := range typeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(name, kw) {
				return entry.agentType
			}
		}
	}
	return models.AgentTypeGeneral
}

// BuildAgentConfigs instantiates one agent per subtask. The agent id is the
// subtask id.
func BuildAgentConfigs(taskID string, d *models.Decomposition) []models.AgentConfig {
	configs := make([]models.AgentConfig, 0, len(d.Subtasks))
	for _, st := range d.Subtasks {
		agentType := AssignAgentType(st.SubtaskName)
		configs = append(configs, models.AgentConfig{
			ID:                st.SubtaskID,
			TaskID:            taskID,
			TaskAssigned:      st.SubtaskName,
			Description:       st.Description,
			Type:              agentType,
			SystemInstruction: systemInstructions[agentType],
			Tools:             typeTools[agentType],
			ParallelGroup:     st.ParallelGroup,
			Dependencies:      st.Dependencies,
			CreatedAt:         time.Now().UTC(),
		})
	}
	return configs
}
