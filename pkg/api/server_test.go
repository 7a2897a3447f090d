package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/engine"
	"github.com/maestro-ai/maestro/pkg/eval"
	"github.com/maestro-ai/maestro/pkg/events"
	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/orch"
)

// ─── Test helpers ───

// cannedLLM answers every prompt kind well enough for a pipeline to finish.
type cannedLLM struct{}

func (cannedLLM) Generate(_ context.Context, input llm.GenerateInput) (*llm.Response, error) {
	var combined string
	for _, msg := range input.Messages {
		combined += msg.Content + "\n"
	}
	switch {
	case strings.Contains(combined, "decomposition planner"):
		return &llm.Response{Text: `{"mainTask": "m", "subtasks": [
			{"subtaskId": "only-step", "subtaskName": "Execute the step", "dependencies": [], "parallelGroup": "group-1"}
		]}`}, nil
	case strings.Contains(combined, "quality evaluator"):
		return &llm.Response{Text: `{"accuracy": {"rating": 7, "reason": "r"}, "completeness": {"rating": 7, "reason": "r"}, "coherence": {"rating": 7, "reason": "r"}}`}, nil
	case strings.Contains(combined, "Assess the run"):
		return &llm.Response{Text: `{"systemRating": 7, "analysis": "fine", "recommendations": []}`}, nil
	default:
		return &llm.Response{Text: "done"}, nil
	}
}

func (cannedLLM) Embed(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

type instantRunner struct {
	cfg models.AgentConfig
}

func (r *instantRunner) Run(context.Context, map[string]string) *models.AgentReport {
	return &models.AgentReport{
		AgentID: r.cfg.ID,
		TaskID:  r.cfg.TaskID,
		Status:  models.AgentStatusCompleted,
		Result:  "agent result",
	}
}

func newTestServer(t *testing.T) (*Server, *orch.Supervisor) {
	t.Helper()
	client := cannedLLM{}
	hub := events.NewHub()
	eng := engine.New(func(cfg models.AgentConfig, _ func(models.AgentStatus)) engine.AgentRunner {
		return &instantRunner{cfg: cfg}
	})
	sup := orch.NewSupervisor(orch.Deps{
		LLM:       client,
		Engine:    eng,
		Evaluator: eval.New(client, nil),
		Hub:       hub,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		sup.Stop(ctx)
	})
	return NewServer(sup, hub), sup
}

func doJSON(t *testing.T, server *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func createTask(t *testing.T, server *Server) models.Task {
	t.Helper()
	w := doJSON(t, server, http.MethodPost, "/tasks", `{"description": "do the thing", "priority": "high"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var task models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &task))
	return task
}

func waitForTerminal(t *testing.T, sup *orch.Supervisor, taskID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		task, ok := sup.Get(taskID)
		return ok && task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
}

// ─── Health and CORS ───

func TestHealthz(t *testing.T) {
	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Status  string `json:"status"`
		Version string `json:"version"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.NotEmpty(t, body.Version)
}

func TestCORSPreflight(t *testing.T) {
	server, _ := newTestServer(t)
	w := doJSON(t, server, http.MethodOptions, "/tasks", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

// ─── Task CRUD ───

func TestCreateTask(t *testing.T) {
	server, _ := newTestServer(t)

	task := createTask(t, server)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, "do the thing", task.Description)
	assert.Equal(t, models.PriorityHigh, task.Priority)
	assert.Equal(t, models.TaskStatusPending, task.Status)
}

func TestCreateTask_ValidationErrors(t *testing.T) {
	server, _ := newTestServer(t)

	w := doJSON(t, server, http.MethodPost, "/tasks", `{"description": ""}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPost, "/tasks", `{"description": "x", "priority": "urgent"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPost, "/tasks", `not json`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestListTasks(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodGet, "/tasks", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Tasks []models.Task `json:"tasks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Tasks, 1)
	assert.Equal(t, task.ID, body.Tasks[0].ID)
}

func TestGetTask(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodGet, "/tasks/"+task.ID, "")
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.TaskStatusCompleted, got.Status)
	assert.Equal(t, "agent result", got.FinalResult)

	w = doJSON(t, server, http.MethodGet, "/tasks/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetTaskAgents(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodGet, "/tasks/"+task.ID+"/agents", "")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Agents []orch.AgentView `json:"agents"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Agents, 1)
	assert.Equal(t, "only-step", body.Agents[0].ID)
	assert.Equal(t, models.AgentStatusCompleted, body.Agents[0].Status)

	w = doJSON(t, server, http.MethodGet, "/tasks/unknown/agents", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateStatus(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodPut, "/tasks/"+task.ID+"/status", `{"status": "pending"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.TaskStatusPending, got.Status)

	w = doJSON(t, server, http.MethodPut, "/tasks/"+task.ID+"/status", `{"status": "bogus"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, server, http.MethodPut, "/tasks/unknown/status", `{"status": "pending"}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdatePriority(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodPut, "/tasks/"+task.ID+"/priority", `{"priority": "low"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var got models.Task
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, models.PriorityLow, got.Priority)

	w = doJSON(t, server, http.MethodPut, "/tasks/"+task.ID+"/priority", `{"priority": "asap"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteTask(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodDelete, "/tasks/"+task.ID, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"message": "task deleted"}`, w.Body.String())

	w = doJSON(t, server, http.MethodDelete, "/tasks/"+task.ID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSystemStats(t *testing.T) {
	server, sup := newTestServer(t)
	task := createTask(t, server)
	waitForTerminal(t, sup, task.ID)

	w := doJSON(t, server, http.MethodGet, "/system/stats", "")
	require.Equal(t, http.StatusOK, w.Code)

	var stats orch.SystemStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.TotalTasks)
	assert.Equal(t, 1, stats.TasksByStatus[models.TaskStatusCompleted])
}

// ─── Event stream ───

func TestEvents_SSEHandshake(t *testing.T) {
	server, _ := newTestServer(t)

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/events", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		server.Handler().ServeHTTP(w, req)
		close(done)
	}()

	// Give the handler time to write the handshake and initial snapshots,
	// then disconnect the client.
	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", w.Header().Get("Cache-Control"))

	body := w.Body.String()
	assert.Contains(t, body, "event: tasks\n")
	assert.Contains(t, body, "data: ")
}
