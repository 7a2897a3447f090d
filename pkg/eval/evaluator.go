// Package eval scores finished agent runs and the run as a whole.
// Accuracy, completeness, and coherence come from the model; efficiency is
// derived from execution time; the overall score is the mean of the four.
package eval

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
)

// ErrorEvaluationLLM marks an evaluation whose scoring call failed; the
// record carries floor scores instead of model judgments.
const ErrorEvaluationLLM = "evaluation_llm_error"

// Retry policy for rate-limited scoring calls.
const (
	DefaultMaxAttempts = 5
	DefaultBackoffBase = 1 * time.Second
)

// Evaluator scores agent reports and task runs.
type Evaluator struct {
	llm         llm.Client
	store       *vectorstore.Store
	maxAttempts int
	backoffBase time.Duration
	sleep       func(time.Duration)
	logger      *slog.Logger
}

// New creates an evaluator. store may be nil to skip knowledge-base
// persistence.
func New(llmClient llm.Client, store *vectorstore.Store) *Evaluator {
	return &Evaluator{
		llm:         llmClient,
		store:       store,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		sleep:       time.Sleep,
		logger:      slog.With("component", "eval"),
	}
}

// EvaluateAgent scores one agent report. Always returns a record: failed
// agents get floor scores without spending a model call, and scoring
// failures degrade to an error-marked record.
func (e *Evaluator) EvaluateAgent(ctx context.Context, report *models.AgentReport) *models.AgentEvaluation {
	eval := &models.AgentEvaluation{AgentID: report.AgentID}

	if !report.Succeeded() {
		reason := "agent did not produce a result"
		if report.ErrorMessage != "" {
			reason = report.ErrorMessage
		}
		floor := models.ScoredDimension{Rating: 1, Reason: reason}
		eval.Accuracy = floor
		eval.Completeness = floor
		eval.Coherence = floor
		eval.Efficiency = models.ScoredDimension{Rating: 1, Reason: "execution failed"}
		eval.Overall = 1
		eval.Feedback = "Agent failed: " + reason
		return eval
	}

	scored, err := e.scoreReport(ctx, report)
	if err != nil {
		e.logger.Warn("Scoring call failed", "agent_id", report.AgentID, "error", err)
		eval.Error = ErrorEvaluationLLM
		floor := models.ScoredDimension{Rating: 1, Reason: "scoring unavailable: " + err.Error()}
		eval.Accuracy = floor
		eval.Completeness = floor
		eval.Coherence = floor
	} else {
		eval.Accuracy = scored.Accuracy
		eval.Completeness = scored.Completeness
		eval.Coherence = scored.Coherence
	}

	eval.Efficiency = efficiencyScore(report.Stats.ExecutionTimeMs)
	eval.Overall = mean(
		eval.Accuracy.Rating,
		eval.Completeness.Rating,
		eval.Coherence.Rating,
		eval.Efficiency.Rating,
	)

	if feedback, err := e.feedback(ctx, report); err != nil {
		// No retry for the freeform feedback turn; the scores stand alone.
		e.logger.Warn("Feedback call failed", "agent_id", report.AgentID, "error", err)
	} else {
		eval.Feedback = feedback
	}

	return eval
}

// scoredDimensions is the model's scoring reply shape.
type scoredDimensions struct {
	Accuracy     models.ScoredDimension `json:"accuracy"`
	Completeness models.ScoredDimension `json:"completeness"`
	Coherence    models.ScoredDimension `json:"coherence"`
}

func (e *Evaluator) scoreReport(ctx context.Context, report *models.AgentReport) (*scoredDimensions, error) {
	prompt := fmt.Sprintf(`Evaluate the following agent execution.

Subtask: %s
Result: %s

Rate each dimension from 1 to 10 and justify briefly. Respond with only this JSON:
{"accuracy": {"rating": <1-10>, "reason": "..."}, "completeness": {"rating": <1-10>, "reason": "..."}, "coherence": {"rating": <1-10>, "reason": "..."}}`,
		report.TaskAssigned, report.Result)

	resp, err := e.generateWithRetry(ctx, llm.GenerateInput{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: "You are a strict quality evaluator for agent outputs."},
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, err
	}

	var scored scoredDimensions
	if err := llm.UnmarshalLenient(resp.Text, &scored); err != nil {
		return nil, fmt.Errorf("unparseable scoring reply: %w", err)
	}
	for _, d := range []*models.ScoredDimension{&scored.Accuracy, &scored.Completeness, &scored.Coherence} {
		d.Rating = clampRating(d.Rating)
	}
	return &scored, nil
}

func (e *Evaluator) feedback(ctx context.Context, report *models.AgentReport) (string, error) {
	prompt := fmt.Sprintf("In two or three sentences, give constructive feedback on this agent output.\n\nSubtask: %s\nResult: %s",
		report.TaskAssigned, report.Result)

	resp, err := e.llm.Generate(ctx, llm.GenerateInput{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp.Text), nil
}

// EvaluateSystem produces the run-level verdict and persists it to the
// knowledge base keyed by task id.
func (e *Evaluator) EvaluateSystem(ctx context.Context, taskID string, evals []models.AgentEvaluation) *models.SystemEvaluation {
	var sum float64
	for _, ev := range evals {
		sum += ev.Overall
	}
	avg := 0.0
	if len(evals) > 0 {
		avg = sum / float64(len(evals))
	}

	sysEval := &models.SystemEvaluation{AverageScore: avg}

	summary := &strings.Builder{}
	for _, ev := range evals {
		fmt.Fprintf(summary, "- %s: overall %.1f", ev.AgentID, ev.Overall)
		if ev.Error != "" {
			fmt.Fprintf(summary, " (%s)", ev.Error)
		}
		summary.WriteString("\n")
	}

	prompt := fmt.Sprintf(`These are the per-agent evaluation scores of a multi-agent task run:

%s
Assess the run as a whole. Respond with only this JSON:
{"systemRating": <1-10>, "analysis": "...", "recommendations": ["...", "..."]}`, summary.String())

	resp, err := e.generateWithRetry(ctx, llm.GenerateInput{
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
	})
	if err != nil {
		e.logger.Warn("System evaluation call failed, using score-derived fallback", "task_id", taskID, "error", err)
		sysEval.SystemRating = clampRating(int(avg + 0.5))
		sysEval.Analysis = "System evaluation unavailable: " + err.Error()
	} else {
		var parsed models.SystemEvaluation
		if err := llm.UnmarshalLenient(resp.Text, &parsed); err != nil {
			e.logger.Warn("Unparseable system evaluation reply", "task_id", taskID, "error", err)
			sysEval.SystemRating = clampRating(int(avg + 0.5))
			sysEval.Analysis = "System evaluation unavailable: unparseable reply"
		} else {
			sysEval.SystemRating = clampRating(parsed.SystemRating)
			sysEval.Analysis = parsed.Analysis
			sysEval.Recommendations = parsed.Recommendations
		}
	}

	e.persistSystemEvaluation(taskID, sysEval)
	return sysEval
}

func (e *Evaluator) persistSystemEvaluation(taskID string, sysEval *models.SystemEvaluation) {
	if e.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	doc := vectorstore.Document{
		ID:      "syseval-" + taskID,
		Content: fmt.Sprintf("System rating %d/10 (avg agent score %.1f): %s", sysEval.SystemRating, sysEval.AverageScore, sysEval.Analysis),
		Metadata: map[string]string{
			"task": taskID,
			"kind": "system_evaluation",
		},
	}
	if err := e.store.Add(ctx, vectorstore.CollectionKnowledgeBase, doc); err != nil {
		e.logger.Warn("Failed to persist system evaluation", "task_id", taskID, "error", err)
	}
}

// generateWithRetry retries rate-limited calls up to maxAttempts with
// exponential backoff starting at backoffBase. A provider retry hint
// overrides the computed delay. Any other failure is terminal.
func (e *Evaluator) generateWithRetry(ctx context.Context, input llm.GenerateInput) (*llm.Response, error) {
	delay := e.backoffBase
	var lastErr error

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		resp, err := e.llm.Generate(ctx, input)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if !llm.IsRateLimited(err) {
			return nil, err
		}
		if attempt == e.maxAttempts {
			break
		}

		wait := delay
		if hint, ok := llm.RetryHint(err); ok {
			wait = hint
		}
		e.logger.Warn("Rate limited, backing off",
			"attempt", attempt, "wait", wait)
		e.sleep(wait)
		delay *= 2

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, fmt.Errorf("rate limited after %d attempts: %w", e.maxAttempts, lastErr)
}

// efficiencyScore maps execution time onto the deterministic efficiency
// rating: under a second scores 9, under five seconds 7, anything slower 4.
func efficiencyScore(executionTimeMs int64) models.ScoredDimension {
	switch {
	case executionTimeMs < 1000:
		return models.ScoredDimension{Rating: 9, Reason: "completed in under a second"}
	case executionTimeMs < 5000:
		return models.ScoredDimension{Rating: 7, Reason: "completed in under five seconds"}
	default:
		return models.ScoredDimension{Rating: 4, Reason: "execution took five seconds or more"}
	}
}

func mean(ratings ...int) float64 {
	if len(ratings) == 0 {
		return 0
	}
	sum := 0
	for _, r := range ratings {
		sum += r
	}
	return float64(sum) / float64(len(ratings))
}

func clampRating(r int) int {
	if r < 1 {
		return 1
	}
	if r > 10 {
		return 10
	}
	return r
}
