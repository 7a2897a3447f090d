package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/orch"
)

// CreateTaskRequest is the POST /tasks body.
type CreateTaskRequest struct {
	Description string          `json:"description"`
	Priority    models.Priority `json:"priority,omitempty"`
	DueDate     *time.Time      `json:"dueDate,omitempty"`
}

// UpdateStatusRequest is the PUT /tasks/:id/status body.
type UpdateStatusRequest struct {
	Status models.TaskStatus `json:"status"`
}

// UpdatePriorityRequest is the PUT /tasks/:id/priority body.
type UpdatePriorityRequest struct {
	Priority models.Priority `json:"priority"`
}

func (s *Server) handleCreateTask(c *gin.Context) {
	var req CreateTaskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	task, err := s.supervisor.Submit(req.Description, req.Priority, req.DueDate)
	if err != nil {
		switch {
		case errors.Is(err, orch.ErrEmptyDescription), errors.Is(err, orch.ErrInvalidPriority):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			s.logger.Error("Task submission failed", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to submit task"})
		}
		return
	}
	c.JSON(http.StatusCreated, task)
}

func (s *Server) handleListTasks(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tasks": s.supervisor.List()})
}

func (s *Server) handleGetTask(c *gin.Context) {
	task, ok := s.supervisor.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleGetTaskAgents(c *gin.Context) {
	agents, ok := s.supervisor.Agents(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"agents": agents})
}

func (s *Server) handleUpdateStatus(c *gin.Context) {
	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	task, err := s.supervisor.UpdateStatus(c.Param("id"), req.Status)
	if err != nil {
		s.writeUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleUpdatePriority(c *gin.Context) {
	var req UpdatePriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	task, err := s.supervisor.UpdatePriority(c.Param("id"), req.Priority)
	if err != nil {
		s.writeUpdateError(c, err)
		return
	}
	c.JSON(http.StatusOK, task)
}

func (s *Server) handleDeleteTask(c *gin.Context) {
	if !s.supervisor.Delete(c.Param("id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "task deleted"})
}

func (s *Server) handleSystemStats(c *gin.Context) {
	c.JSON(http.StatusOK, s.supervisor.Stats())
}

func (s *Server) writeUpdateError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orch.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
	case errors.Is(err, orch.ErrInvalidStatus), errors.Is(err, orch.ErrInvalidPriority):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		s.logger.Error("Task update failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update task"})
	}
}
