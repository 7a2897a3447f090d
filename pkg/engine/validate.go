package engine

import (
	"errors"
	"fmt"

	"github.com/maestro-ai/maestro/pkg/models"
)

// Validation errors for incoming decompositions.
var (
	ErrNoSubtasks        = errors.New("decomposition has no subtasks")
	ErrDuplicateSubtask  = errors.New("duplicate subtask id")
	ErrUnknownDependency = errors.New("dependency references unknown subtask")
	ErrDependencyCycle   = errors.New("dependency cycle detected")
)

// ValidateDecomposition rejects malformed DAGs before any agent is
// instantiated: empty plans, duplicate ids, dangling dependency references,
// and cycles.
//
// Self-referential and cyclic plans are rejected here rather than left for
// the scheduler's stall detection — a plan known to be unrunnable should
// never reach execution.
func ValidateDecomposition(d *models.Decomposition) error {
	if d == nil || len(d.Subtasks) == 0 {
		return ErrNoSubtasks
	}

	byID := make(map[string]*models.Subtask, len(d.Subtasks))
	for i := range d.Subtasks {
		st := &d.Subtasks[i]
		if _, exists := byID[st.SubtaskID]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateSubtask, st.SubtaskID)
		}
		byID[st.SubtaskID] = st
	}

	for _, st := range d.Subtasks {
		for _, dep := range st.Dependencies {
			if _, ok := byID[dep]; !ok {
				return fmt.Errorf("%w: %q depends on %q", ErrUnknownDependency, st.SubtaskID, dep)
			}
		}
	}

	// Cycle detection: iterative DFS with three-color marking.
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := make(map[string]int, len(d.Subtasks))

	var visit func(id string) error
	visit = func(id string) error {
		switch color[id] {
		case gray:
			return fmt.Errorf("%w: involving %q", ErrDependencyCycle, id)
		case black:
			return nil
		}
		color[id] = gray
		for _, dep := range byID[id].Dependencies {
			if err := visit(dep); err != nil {
				return err
			}
		}
		color[id] = black
		return nil
	}

	for _, st := range d.Subtasks {
		if err := visit(st.SubtaskID); err != nil {
			return err
		}
	}
	return nil
}
