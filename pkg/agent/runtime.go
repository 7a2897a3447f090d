// Package agent implements the per-subtask execution runtime: context
// priming, the bounded tool-use loop, forced conclusion, response
// classification, and report persistence.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/mcp"
	"github.com/maestro-ai/maestro/pkg/memory"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/tools"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// DefaultMaxToolLoops bounds the tool-use loop per execution.
const DefaultMaxToolLoops = 5

// maxConsecutiveFailures aborts the loop after this many provider failures
// in a row.
const maxConsecutiveFailures = 2

// dependencyResultBudget bounds the tokens one predecessor result may
// occupy in the primed context.
const dependencyResultBudget = 500

// Deps bundles everything a runtime needs. Store and Memory are optional:
// a nil store skips priming from prior tasks and report persistence.
type Deps struct {
	LLM           llm.Client
	Tools         *tools.Registry
	Store         *vectorstore.Store
	Memory        *memory.LongTerm
	MaxToolLoops  int
	ContextConfig mcp.Config
	ContextTopK   int
	// OnStatus, when set, observes non-terminal status transitions. The
	// terminal status travels on the report.
	OnStatus func(status models.AgentStatus)
}

// Runtime executes one agent configuration. A Runtime is single-use.
type Runtime struct {
	cfg       models.AgentConfig
	deps      Deps
	scratch   *memory.ShortTerm
	logger    *slog.Logger
	toolsUsed map[string]bool
	toolCalls int
}

// New creates a runtime for one agent configuration.
func New(cfg models.AgentConfig, deps Deps) *Runtime {
	if deps.MaxToolLoops <= 0 {
		deps.MaxToolLoops = DefaultMaxToolLoops
	}
	return &Runtime{
		cfg:       cfg,
		deps:      deps,
		scratch:   memory.NewShortTerm(),
		logger:    slog.With("component", "agent", "agent_id", cfg.ID, "agent_type", cfg.Type),
		toolsUsed: make(map[string]bool),
	}
}

// Run executes the agent to completion. It always returns a well-formed
// report: infrastructure failures, timeouts, and cancellation become
// error-status reports, never panics or nils.
func (r *Runtime) Run(ctx context.Context, depContext map[string]string) *models.AgentReport {
	started := time.Now()
	r.setStatus(models.AgentStatusInProgress)
	r.logger.Info("Agent execution started", "task", r.cfg.TaskAssigned)

	report := r.execute(ctx, started, depContext)

	r.persist(report)
	r.logger.Info("Agent execution finished",
		"status", report.Status,
		"duration_ms", report.Stats.ExecutionTimeMs,
		"tool_calls", report.Stats.ToolCallsMade)
	return report
}

func (r *Runtime) execute(ctx context.Context, started time.Time, depContext map[string]string) *models.AgentReport {
	// 1. Prime the conversation context
	conv := r.primeContext(ctx, depContext)

	// 2. Tool-use loop
	answer, err := r.toolLoop(ctx, conv)
	if err != nil {
		return r.errorReport(started, err)
	}

	// 3. Classify the final answer into result and reasoning
	result, reasoning := Classify(answer)

	return r.finishReport(started, models.AgentReport{
		Status:    models.AgentStatusCompleted,
		Result:    result,
		Reasoning: reasoning,
	})
}

// toolLoop runs up to MaxToolLoops model turns with tools, then forces a
// conclusion without them.
func (r *Runtime) toolLoop(ctx context.Context, conv *mcp.Context) (string, error) {
	defs := r.deps.Tools.Definitions(r.cfg.Tools)
	consecutiveFailures := 0

	for iteration := 0; iteration < r.deps.MaxToolLoops; iteration++ {
		resp, err := r.deps.LLM.Generate(ctx, llm.GenerateInput{
			Messages: conv.Messages(),
			Tools:    defs,
		})
		if err != nil {
			if ctxErr := classifyContextError(ctx, err); ctxErr != nil {
				return "", ctxErr
			}
			consecutiveFailures++
			if consecutiveFailures >= maxConsecutiveFailures {
				return "", fmt.Errorf("model call failed %d times in a row: %w", consecutiveFailures, err)
			}
			r.logger.Warn("Model call failed, retrying within loop", "iteration", iteration, "error", err)
			conv.RecordProviderFailure(err)
			continue
		}
		consecutiveFailures = 0

		if !resp.HasToolCalls() {
			return resp.Text, nil
		}

		conv.AddToolCalls(resp.ToolCalls)
		responses := r.executeToolCalls(ctx, resp.ToolCalls)
		conv.AddToolResponses(responses)
		conv.AddUser("The requested tools have been executed; their results are above. Provide your final answer, or request more tool calls if you still need information.")
	}

	// Loop budget exhausted: one final turn without tools.
	return r.forceConclusion(ctx, conv)
}

// executeToolCalls runs the requested calls concurrently and returns their
// responses in request order. Failures are framed as error responses.
func (r *Runtime) executeToolCalls(ctx context.Context, calls []llm.ToolCall) []llm.ToolResponse {
	responses := make([]llm.ToolResponse, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			responses[i] = r.deps.Tools.Execute(gctx, call, r.cfg.Tools)
			return nil
		})
	}
	_ = g.Wait()

	for _, call := range calls {
		r.toolsUsed[call.Name] = true
	}
	r.toolCalls += len(calls)
	return responses
}

// forceConclusion demands a final answer with no tools on offer.
func (r *Runtime) forceConclusion(ctx context.Context, conv *mcp.Context) (string, error) {
	r.logger.Info("Tool loop budget exhausted, forcing conclusion")
	conv.AddUser("You have used all available tool calls. Provide your final answer now, based on the information gathered so far. Do not request any more tools.")

	resp, err := r.deps.LLM.Generate(ctx, llm.GenerateInput{Messages: conv.Messages()})
	if err != nil {
		if ctxErr := classifyContextError(ctx, err); ctxErr != nil {
			return "", ctxErr
		}
		return "", fmt.Errorf("forced conclusion failed: %w", err)
	}
	return resp.Text, nil
}

// primeContext seeds the conversation: identity, predecessor results,
// similar prior tasks, and relevant long-term memories, then the
// assignment itself.
func (r *Runtime) primeContext(ctx context.Context, depContext map[string]string) *mcp.Context {
	conv := mcp.NewContext(r.cfg.SystemInstruction, r.deps.ContextConfig)

	if len(depContext) > 0 {
		// Deterministic ordering for reproducible prompts.
		ids := make([]string, 0, len(depContext))
		for id := range depContext {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		summary := "Results from prerequisite subtasks:\n"
		for _, id := range ids {
			result := truncateForPrompt(depContext[id], dependencyResultBudget)
			summary += fmt.Sprintf("- %s: %s\n", id, result)
			r.scratch.Set("dep:"+id, result)
		}
		conv.AddUser(summary)
	}

	if r.deps.Store != nil && r.deps.ContextTopK > 0 {
		prior, err := r.deps.Store.Query(ctx, vectorstore.CollectionTasks, r.cfg.TaskAssigned, r.deps.ContextTopK, nil)
		if err != nil {
			r.logger.Warn("Prior-task retrieval failed", "error", err)
		} else if len(prior) > 0 {
			note := "Similar past tasks for reference:\n"
			for _, p := range prior {
				note += "- " + truncateForPrompt(p.Content, dependencyResultBudget) + "\n"
			}
			conv.AddUser(note)
		}
	}

	if r.deps.Memory != nil && r.deps.ContextTopK > 0 {
		episodes, err := r.deps.Memory.Recall(ctx, r.cfg.ID, r.cfg.TaskAssigned, r.deps.ContextTopK)
		if err != nil {
			r.logger.Warn("Memory recall failed", "error", err)
		} else if len(episodes) > 0 {
			note := "Relevant memories from past executions:\n"
			for _, ep := range episodes {
				note += "- " + truncateForPrompt(ep.Content, dependencyResultBudget) + "\n"
			}
			conv.AddUser(note)
		}
	}

	conv.AddUser(fmt.Sprintf("Your assigned subtask: %s\n%s", r.cfg.TaskAssigned, r.cfg.Description))
	return conv
}

// persist writes the execution artifact and a memory episode. Failures are
// logged, never fatal — persistence is best-effort by contract.
func (r *Runtime) persist(report *models.AgentReport) {
	// Detached context: persistence should survive run cancellation.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if r.deps.Store != nil {
		doc := vectorstore.Document{
			ID:      fmt.Sprintf("%s-%d", report.AgentID, report.EndedAt.UnixNano()),
			Content: fmt.Sprintf("Subtask: %s\nStatus: %s\nResult: %s", report.TaskAssigned, report.Status, report.Result),
			Metadata: map[string]string{
				"agent":  report.AgentID,
				"task":   report.TaskID,
				"status": string(report.Status),
			},
		}
		if err := r.deps.Store.Add(ctx, vectorstore.CollectionAgentExecutions, doc); err != nil {
			r.logger.Warn("Failed to persist execution report", "error", err)
		}
	}

	if r.deps.Memory != nil {
		// Failures are remembered too, so future executions can recall what
		// went wrong.
		episode := fmt.Sprintf("Completed %q: %s", report.TaskAssigned, truncateForPrompt(report.Result, dependencyResultBudget))
		if !report.Succeeded() {
			episode = fmt.Sprintf("Failed %q: %s", report.TaskAssigned, report.ErrorMessage)
		}
		if err := r.deps.Memory.Remember(ctx, report.AgentID, episode, "execution"); err != nil {
			r.logger.Warn("Failed to persist memory episode", "error", err)
		}
	}
}

func (r *Runtime) setStatus(status models.AgentStatus) {
	if r.deps.OnStatus != nil {
		r.deps.OnStatus(status)
	}
}

func (r *Runtime) baseReport(started time.Time) models.AgentReport {
	ended := time.Now()
	toolsUsed := make([]string, 0, len(r.toolsUsed))
	for name := range r.toolsUsed {
		toolsUsed = append(toolsUsed, name)
	}
	sort.Strings(toolsUsed)

	return models.AgentReport{
		AgentID:      r.cfg.ID,
		TaskID:       r.cfg.TaskID,
		TaskAssigned: r.cfg.TaskAssigned,
		StartedAt:    started,
		EndedAt:      ended,
		ToolsUsed:    toolsUsed,
		Stats: models.AgentStats{
			ExecutionTimeMs: ended.Sub(started).Milliseconds(),
			ToolCallsMade:   r.toolCalls,
		},
	}
}

func (r *Runtime) finishReport(started time.Time, partial models.AgentReport) *models.AgentReport {
	report := r.baseReport(started)
	report.Status = partial.Status
	report.Result = partial.Result
	report.Reasoning = partial.Reasoning
	return &report
}

func (r *Runtime) errorReport(started time.Time, err error) *models.AgentReport {
	report := r.baseReport(started)
	report.Status = models.AgentStatusError
	report.ErrorMessage = err.Error()
	return &report
}

// classifyContextError maps provider failures caused by the run context
// into descriptive errors, or nil when the failure is the provider's own.
func classifyContextError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("agent execution timed out: %w", err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return fmt.Errorf("agent execution cancelled: %w", err)
	default:
		return nil
	}
}
