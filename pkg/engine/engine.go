// Package engine schedules a task's agents over their dependency DAG:
// parallel-group cohorts, dependency-gated dispatch, stall and error-cascade
// detection, and per-agent lifecycle events.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/maestro-ai/maestro/pkg/models"
)

// RunStatus is the engine-level outcome of one task run.
type RunStatus string

const (
	// RunCompleted — every agent completed
	RunCompleted RunStatus = "completed_successfully"
	// RunCompletedWithErrors — at least one agent ended error, blocked, or stalled
	RunCompletedWithErrors RunStatus = "completed_with_errors"
)

// Event is one agent lifecycle notification. Report is non-nil exactly on
// terminal events.
type Event struct {
	AgentID string
	Status  models.AgentStatus
	Report  *models.AgentReport
}

// AgentRunner executes one agent. Implementations must always return a
// report.
type AgentRunner interface {
	Run(ctx context.Context, depContext map[string]string) *models.AgentReport
}

// RunnerFactory builds the runner for one agent configuration. onStatus
// observes the runner's own non-terminal transitions.
type RunnerFactory func(cfg models.AgentConfig, onStatus func(models.AgentStatus)) AgentRunner

// Engine runs agent sets. Stateless; one Engine serves all tasks.
type Engine struct {
	factory RunnerFactory
	logger  *slog.Logger
}

// New creates an engine over the given runner factory.
func New(factory RunnerFactory) *Engine {
	return &Engine{
		factory: factory,
		logger:  slog.With("component", "engine"),
	}
}

// run tracks the mutable state of one Execute call. Owned by the scheduling
// goroutine; cohort goroutines only deliver reports through the channel.
type run struct {
	engine  *Engine
	ctx     context.Context
	onEvent func(Event)

	agents   map[string]models.AgentConfig
	statuses map[string]models.AgentStatus
	reports  map[string]*models.AgentReport
	results  map[string]string
	logger   *slog.Logger
}

// Execute runs every agent to a terminal status and returns the complete
// report map — one report per accepted agent, no exceptions. The second
// return reflects whether any agent failed.
//
// Guarantees per agent: a pending event, waiting while dependencies are
// unmet, ready_to_execute on dispatch eligibility, in-progress when
// execution starts, and exactly one terminal event carrying the report.
func (e *Engine) Execute(ctx context.Context, agents []models.AgentConfig, onEvent func(Event)) (map[string]*models.AgentReport, RunStatus) {
	if onEvent == nil {
		onEvent = func(Event) {}
	}

	r := &run{
		engine:   e,
		ctx:      ctx,
		onEvent:  onEvent,
		agents:   make(map[string]models.AgentConfig, len(agents)),
		statuses: make(map[string]models.AgentStatus, len(agents)),
		reports:  make(map[string]*models.AgentReport, len(agents)),
		results:  make(map[string]string, len(agents)),
		logger:   e.logger,
	}

	for _, cfg := range agents {
		r.agents[cfg.ID] = cfg
		r.statuses[cfg.ID] = models.AgentStatusPending
		onEvent(Event{AgentID: cfg.ID, Status: models.AgentStatusPending})
	}

	r.schedule()

	status := RunCompleted
	for _, report := range r.reports {
		if !report.Succeeded() {
			status = RunCompletedWithErrors
			break
		}
	}
	e.logger.Info("Run finished", "agents", len(r.reports), "status", status)
	return r.reports, status
}

// schedule drives the ready-set loop until every agent is terminal.
func (r *run) schedule() {
	for {
		remaining := r.remaining()
		if len(remaining) == 0 {
			return
		}

		if r.ctx.Err() != nil {
			r.cancelRemaining(remaining)
			return
		}

		ready, waiting := r.partitionReady(remaining)
		for _, id := range waiting {
			r.transition(id, models.AgentStatusWaiting)
		}

		if len(ready) == 0 {
			// Nothing can run and nothing is running: the rest of the DAG is
			// unreachable. Distinguish error cascades from unsatisfiable
			// dependencies.
			r.resolveUnreachable(remaining)
			return
		}

		cohort := r.nextCohort(ready)
		r.runCohort(cohort)
	}
}

// remaining returns the ids not yet terminal, sorted for determinism.
func (r *run) remaining() []string {
	var ids []string
	for id, status := range r.statuses {
		if !status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// partitionReady splits remaining agents into those whose dependencies are
// all completed and those still waiting.
func (r *run) partitionReady(remaining []string) (ready, waiting []string) {
	for _, id := range remaining {
		if r.depsSatisfied(id) {
			ready = append(ready, id)
		} else {
			waiting = append(waiting, id)
		}
	}
	return ready, waiting
}

func (r *run) depsSatisfied(id string) bool {
	for _, dep := range r.agents[id].Dependencies {
		if r.statuses[dep] != models.AgentStatusCompleted {
			return false
		}
	}
	return true
}

// nextCohort picks the ready agents of the lexicographically first parallel
// group. Groups run one at a time; agents within a group run concurrently.
func (r *run) nextCohort(ready []string) []string {
	groups := make(map[string][]string)
	for _, id := range ready {
		group := r.agents[id].ParallelGroup
		groups[group] = append(groups[group], id)
	}

	labels := make([]string, 0, len(groups))
	for label := range groups {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	cohort := groups[labels[0]]
	sort.Strings(cohort)
	return cohort
}

// runCohort executes one parallel group to completion. One goroutine per
// agent; reports come back over a channel sized to the cohort so no sender
// ever blocks.
func (r *run) runCohort(cohort []string) {
	r.logger.Info("Dispatching cohort",
		"group", r.agents[cohort[0]].ParallelGroup, "agents", cohort)

	resultsCh := make(chan *models.AgentReport, len(cohort))
	var wg sync.WaitGroup

	for _, id := range cohort {
		r.transition(id, models.AgentStatusReady)
		cfg := r.agents[id]
		depContext := r.dependencyContext(id)

		wg.Add(1)
		go func() {
			defer wg.Done()
			resultsCh <- r.runAgent(cfg, depContext)
		}()
	}

	wg.Wait()
	close(resultsCh)

	for report := range resultsCh {
		r.finish(report)
	}
}

// runAgent executes one agent, converting panics into error reports so a
// misbehaving agent can never take down the run.
func (r *run) runAgent(cfg models.AgentConfig, depContext map[string]string) (report *models.AgentReport) {
	started := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("Agent panicked", "agent_id", cfg.ID, "panic", rec)
			report = synthesizeErrorReport(cfg, started, fmt.Sprintf("agent panicked: %v", rec))
		}
		if report == nil {
			// Runner contract violation; synthesize rather than lose the agent.
			r.logger.Error("Agent runner returned nil report", "agent_id", cfg.ID)
			report = synthesizeErrorReport(cfg, started, "agent produced no report")
		}
	}()

	onStatus := func(status models.AgentStatus) {
		if !status.IsTerminal() {
			r.onEvent(Event{AgentID: cfg.ID, Status: status})
		}
	}
	runner := r.engine.factory(cfg, onStatus)
	return runner.Run(r.ctx, depContext)
}

// dependencyContext assembles the predecessor results for one agent. Every
// dependency is completed by the time this runs — the scheduler never
// dispatches earlier.
func (r *run) dependencyContext(id string) map[string]string {
	deps := r.agents[id].Dependencies
	if len(deps) == 0 {
		return nil
	}
	depContext := make(map[string]string, len(deps))
	for _, dep := range deps {
		depContext[dep] = r.results[dep]
	}
	return depContext
}

// finish records a terminal report and emits the terminal event.
func (r *run) finish(report *models.AgentReport) {
	r.reports[report.AgentID] = report
	r.statuses[report.AgentID] = report.Status
	if report.Succeeded() {
		r.results[report.AgentID] = report.Result
	}
	r.onEvent(Event{AgentID: report.AgentID, Status: report.Status, Report: report})
}

// resolveUnreachable terminates agents that can never run. Agents whose
// dependency chain contains a failure are blocked_error; the rest — cycles
// or references outside the DAG — are stalled.
func (r *run) resolveUnreachable(remaining []string) {
	blocked := make(map[string]bool)
	for id, status := range r.statuses {
		if status == models.AgentStatusError || status == models.AgentStatusBlockedError {
			blocked[id] = true
		}
	}

	// Propagate failure through the remaining DAG to a fixed point.
	for changed := true; changed; {
		changed = false
		for _, id := range remaining {
			if blocked[id] || r.statuses[id].IsTerminal() {
				continue
			}
			for _, dep := range r.agents[id].Dependencies {
				if blocked[dep] {
					blocked[id] = true
					changed = true
					break
				}
			}
		}
	}

	for _, id := range remaining {
		status := models.AgentStatusStalled
		reason := "unsatisfiable dependencies (cycle or unknown reference)"
		if blocked[id] {
			status = models.AgentStatusBlockedError
			reason = "a prerequisite subtask failed"
		}
		r.logger.Warn("Agent unreachable", "agent_id", id, "status", status)
		r.terminateWithoutRun(id, status, reason)
	}
}

// cancelRemaining terminates agents left behind by context cancellation.
func (r *run) cancelRemaining(remaining []string) {
	r.logger.Warn("Run cancelled, terminating remaining agents", "count", len(remaining))
	for _, id := range remaining {
		r.terminateWithoutRun(id, models.AgentStatusError, "run cancelled before execution")
	}
}

func (r *run) terminateWithoutRun(id string, status models.AgentStatus, reason string) {
	cfg := r.agents[id]
	report := synthesizeErrorReport(cfg, time.Now(), reason)
	report.Status = status
	r.reports[id] = report
	r.statuses[id] = status
	r.onEvent(Event{AgentID: id, Status: status, Report: report})
}

// transition emits a non-terminal status change exactly once per status.
func (r *run) transition(id string, status models.AgentStatus) {
	if r.statuses[id] == status {
		return
	}
	r.statuses[id] = status
	r.onEvent(Event{AgentID: id, Status: status})
}

// synthesizeErrorReport builds a well-formed report for an agent that never
// produced one.
func synthesizeErrorReport(cfg models.AgentConfig, started time.Time, reason string) *models.AgentReport {
	now := time.Now()
	return &models.AgentReport{
		AgentID:      cfg.ID,
		TaskID:       cfg.TaskID,
		TaskAssigned: cfg.TaskAssigned,
		Status:       models.AgentStatusError,
		StartedAt:    started,
		EndedAt:      now,
		ErrorMessage: reason,
		Stats: models.AgentStats{
			ExecutionTimeMs: now.Sub(started).Milliseconds(),
		},
	}
}
