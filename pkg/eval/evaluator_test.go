package eval

import (
	"context"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/models"
)

// ─── Test helpers ───

// scriptedLLM replays canned turns in order, repeating the last one when
// the script runs out.
type scriptedLLM struct {
	mu     sync.Mutex
	script []scriptedTurn
	calls  int
}

type scriptedTurn struct {
	text string
	err  error
}

func (s *scriptedLLM) Generate(context.Context, llm.GenerateInput) (*llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := s.calls
	s.calls++
	if idx >= len(s.script) {
		idx = len(s.script) - 1
	}
	turn := s.script[idx]
	if turn.err != nil {
		return nil, turn.err
	}
	return &llm.Response{Text: turn.text}, nil
}

func (s *scriptedLLM) Embed(context.Context, string) ([]float32, error) {
	return []float32{1}, nil
}

func (s *scriptedLLM) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func rateLimited(retryAfter time.Duration) error {
	return &llm.ProviderError{
		StatusCode: http.StatusTooManyRequests,
		Message:    "quota exceeded",
		RetryAfter: retryAfter,
	}
}

// newTestEvaluator wires a scripted client with recorded sleeps.
func newTestEvaluator(client *scriptedLLM) (*Evaluator, *[]time.Duration) {
	e := New(client, nil)
	sleeps := &[]time.Duration{}
	e.sleep = func(d time.Duration) { *sleeps = append(*sleeps, d) }
	return e, sleeps
}

func completedReport(executionMs int64) *models.AgentReport {
	return &models.AgentReport{
		AgentID:      "agent-1",
		TaskAssigned: "research topic",
		Status:       models.AgentStatusCompleted,
		Result:       "findings here",
		Stats:        models.AgentStats{ExecutionTimeMs: executionMs},
	}
}

const goodScoring = `{"accuracy": {"rating": 8, "reason": "solid"}, "completeness": {"rating": 6, "reason": "partial"}, "coherence": {"rating": 10, "reason": "clear"}}`

// ─── Per-agent evaluation ───

func TestEvaluateAgent_ScoresAndMean(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{text: goodScoring},
		{text: "nice work overall"},
	}}
	e, _ := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(500))

	assert.Equal(t, 8, eval.Accuracy.Rating)
	assert.Equal(t, 6, eval.Completeness.Rating)
	assert.Equal(t, 10, eval.Coherence.Rating)
	assert.Equal(t, 9, eval.Efficiency.Rating) // sub-second
	assert.InDelta(t, (8+6+10+9)/4.0, eval.Overall, 0.001)
	assert.Equal(t, "nice work overall", eval.Feedback)
	assert.Empty(t, eval.Error)
}

func TestEvaluateAgent_FailedAgentSkipsLLM(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{{text: "should never be used"}}}
	e, _ := newTestEvaluator(client)

	report := &models.AgentReport{
		AgentID:      "agent-1",
		Status:       models.AgentStatusError,
		ErrorMessage: "it broke",
	}
	eval := e.EvaluateAgent(context.Background(), report)

	assert.Equal(t, 0, client.callCount(), "failed agents must not spend model calls")
	assert.Equal(t, 1, eval.Accuracy.Rating)
	assert.Equal(t, 1, eval.Completeness.Rating)
	assert.Equal(t, 1, eval.Coherence.Rating)
	assert.Equal(t, 1, eval.Efficiency.Rating)
	assert.Equal(t, 1.0, eval.Overall)
	assert.Contains(t, eval.Feedback, "it broke")
}

func TestEvaluateAgent_UnparseableScoringDegrades(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{text: "I refuse to emit JSON"},
		{text: "feedback text"},
	}}
	e, _ := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(2000))

	assert.Equal(t, ErrorEvaluationLLM, eval.Error)
	assert.Equal(t, 1, eval.Accuracy.Rating)
	// Efficiency stays deterministic even when scoring failed.
	assert.Equal(t, 7, eval.Efficiency.Rating)
	assert.InDelta(t, (1+1+1+7)/4.0, eval.Overall, 0.001)
}

func TestEvaluateAgent_FeedbackFailureIsNonFatal(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{text: goodScoring},
		{err: &llm.ProviderError{StatusCode: 500, Message: "boom"}},
	}}
	e, _ := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(100))

	assert.Empty(t, eval.Feedback)
	assert.Equal(t, 8, eval.Accuracy.Rating)
	// Feedback gets no retry: exactly two calls happened.
	assert.Equal(t, 2, client.callCount())
}

// ─── Efficiency mapping ───

func TestEfficiencyScore(t *testing.T) {
	tests := []struct {
		ms   int64
		want int
	}{
		{0, 9},
		{999, 9},
		{1000, 7},
		{4999, 7},
		{5000, 4},
		{60000, 4},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, efficiencyScore(tt.ms).Rating, "for %dms", tt.ms)
	}
}

// ─── Retry discipline ───

func TestRetry_HonorsProviderHint(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{err: rateLimited(3 * time.Second)},
		{text: goodScoring},
		{text: "feedback"},
	}}
	e, sleeps := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(100))

	assert.Empty(t, eval.Error)
	assert.Equal(t, 8, eval.Accuracy.Rating)
	require.Len(t, *sleeps, 1)
	assert.Equal(t, 3*time.Second, (*sleeps)[0])
}

func TestRetry_ExponentialBackoffWithoutHint(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{err: rateLimited(0)},
		{err: rateLimited(0)},
		{err: rateLimited(0)},
		{text: goodScoring},
		{text: "feedback"},
	}}
	e, sleeps := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(100))

	assert.Empty(t, eval.Error)
	assert.Equal(t, []time.Duration{1 * time.Second, 2 * time.Second, 4 * time.Second}, *sleeps)
}

func TestRetry_ExhaustionAfterMaxAttempts(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{{err: rateLimited(0)}}}
	e, sleeps := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(100))

	assert.Equal(t, ErrorEvaluationLLM, eval.Error)
	// Five scoring attempts with four waits between them; the feedback call
	// is a separate non-retried turn.
	assert.Len(t, *sleeps, 4)
	assert.Equal(t, 6, client.callCount())
}

func TestRetry_NonRateLimitErrorIsTerminal(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{err: &llm.ProviderError{StatusCode: 500, Message: "server error"}},
	}}
	e, sleeps := newTestEvaluator(client)

	eval := e.EvaluateAgent(context.Background(), completedReport(100))

	assert.Equal(t, ErrorEvaluationLLM, eval.Error)
	assert.Empty(t, *sleeps)
}

// ─── System evaluation ───

func TestEvaluateSystem_ParsesVerdict(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{text: `{"systemRating": 8, "analysis": "went well", "recommendations": ["add caching"]}`},
	}}
	e, _ := newTestEvaluator(client)

	evals := []models.AgentEvaluation{
		{AgentID: "a", Overall: 8},
		{AgentID: "b", Overall: 6},
	}
	sysEval := e.EvaluateSystem(context.Background(), "task-1", evals)

	assert.Equal(t, 8, sysEval.SystemRating)
	assert.Equal(t, "went well", sysEval.Analysis)
	assert.Equal(t, []string{"add caching"}, sysEval.Recommendations)
	assert.InDelta(t, 7.0, sysEval.AverageScore, 0.001)
}

func TestEvaluateSystem_FallbackOnFailure(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{err: &llm.ProviderError{StatusCode: 500, Message: "down"}},
	}}
	e, _ := newTestEvaluator(client)

	evals := []models.AgentEvaluation{{AgentID: "a", Overall: 6}}
	sysEval := e.EvaluateSystem(context.Background(), "task-1", evals)

	assert.Equal(t, 6, sysEval.SystemRating)
	assert.Contains(t, sysEval.Analysis, "unavailable")
	assert.InDelta(t, 6.0, sysEval.AverageScore, 0.001)
}

func TestEvaluateSystem_NoAgents(t *testing.T) {
	client := &scriptedLLM{script: []scriptedTurn{
		{text: `{"systemRating": 1, "analysis": "nothing ran"}`},
	}}
	e, _ := newTestEvaluator(client)

	sysEval := e.EvaluateSystem(context.Background(), "task-1", nil)
	assert.Equal(t, 0.0, sysEval.AverageScore)
	assert.Equal(t, 1, sysEval.SystemRating)
}
