package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/models"
)

func subtask(id string, deps ...string) models.Subtask {
	return models.Subtask{
		SubtaskID:    id,
		SubtaskName:  "subtask " + id,
		Dependencies: deps,
	}
}

func TestValidateDecomposition(t *testing.T) {
	tests := []struct {
		name    string
		d       *models.Decomposition
		wantErr error
	}{
		{
			name:    "nil decomposition",
			d:       nil,
			wantErr: ErrNoSubtasks,
		},
		{
			name:    "empty subtasks",
			d:       &models.Decomposition{MainTask: "t"},
			wantErr: ErrNoSubtasks,
		},
		{
			name: "valid linear chain",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a"), subtask("b", "a"), subtask("c", "b"),
			}},
		},
		{
			name: "valid diamond",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a"), subtask("b", "a"), subtask("c", "a"), subtask("d", "b", "c"),
			}},
		},
		{
			name: "duplicate ids",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a"), subtask("a"),
			}},
			wantErr: ErrDuplicateSubtask,
		},
		{
			name: "unknown dependency",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a", "ghost"),
			}},
			wantErr: ErrUnknownDependency,
		},
		{
			name: "self reference",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a", "a"),
			}},
			wantErr: ErrDependencyCycle,
		},
		{
			name: "two node cycle",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a", "b"), subtask("b", "a"),
			}},
			wantErr: ErrDependencyCycle,
		},
		{
			name: "long cycle",
			d: &models.Decomposition{Subtasks: []models.Subtask{
				subtask("a", "c"), subtask("b", "a"), subtask("c", "b"),
			}},
			wantErr: ErrDependencyCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateDecomposition(tt.d)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
