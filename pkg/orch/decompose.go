package orch

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/models"
)

const decompositionSystemPrompt = `You are a task decomposition planner. Break the user's task into subtasks forming a dependency DAG.

Rules:
- Each subtask gets a unique subtaskId (short, kebab-case).
- dependencies lists the subtaskIds that must complete first.
- Subtasks that can run concurrently share a parallelGroup label (e.g. "group-1"); groups execute in label order.
- estimatedComplexity is 1 (trivial) to 5 (hard).

Respond with only this JSON:
{
  "mainTask": "<restatement of the task>",
  "subtasks": [
    {
      "subtaskId": "...",
      "subtaskName": "...",
      "description": "...",
      "dependencies": [],
      "parallelGroup": "group-1",
      "estimatedComplexity": 2
    }
  ]
}`

// Decompose asks the model to break a task description into a subtask DAG
// and parses the reply leniently: fenced code blocks, a missing mainTask,
// and a bare subtasks array are all tolerated. Structural validation is the
// caller's job.
func Decompose(ctx context.Context, client llm.Client, description string) (*models.Decomposition, error) {
	resp, err := client.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: decompositionSystemPrompt},
			{Role: llm.RoleUser, Content: description},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("decomposition call failed: %w", err)
	}
	return ParseDecomposition(resp.Text, description)
}

// ParseDecomposition parses model output into a decomposition.
// originalDescription backfills mainTask when the model omitted it.
func ParseDecomposition(text, originalDescription string) (*models.Decomposition, error) {
	candidate := llm.ExtractJSON(text)

	var d models.Decomposition
	if err := json.Unmarshal([]byte(candidate), &d); err != nil {
		// The model sometimes emits the subtask array without the wrapper
		// object.
		var subtasks []models.Subtask
		if arrErr := json.Unmarshal([]byte(candidate), &subtasks); arrErr != nil {
			return nil, fmt.Errorf("unparseable decomposition: %w", err)
		}
		d.Subtasks = subtasks
	}

	if strings.TrimSpace(d.MainTask) == "" {
		d.MainTask = originalDescription
	}
	return &d, nil
}
