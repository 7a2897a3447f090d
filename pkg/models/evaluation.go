package models

// ScoredDimension is one rated quality dimension with its justification.
type ScoredDimension struct {
	Rating int    `json:"rating"`
	Reason string `json:"reason,omitempty"`
}

// AgentEvaluation scores one agent run on four dimensions, each 1-10.
// Accuracy, completeness and coherence are LLM-scored; efficiency is
// derived deterministically from execution time. Overall is the mean.
type AgentEvaluation struct {
	AgentID      string          `json:"agentId"`
	Accuracy     ScoredDimension `json:"accuracy"`
	Completeness ScoredDimension `json:"completeness"`
	Coherence    ScoredDimension `json:"coherence"`
	Efficiency   ScoredDimension `json:"efficiency"`
	Overall      float64         `json:"overall"`
	Feedback     string          `json:"feedback,omitempty"`
	// Error distinguishes scoring failures: "evaluation_llm_error" when the
	// scoring call itself failed, "" otherwise.
	Error string `json:"error,omitempty"`
}

// SystemEvaluation is the run-level verdict across all agent evaluations.
type SystemEvaluation struct {
	SystemRating    int      `json:"systemRating"`
	Analysis        string   `json:"analysis"`
	Recommendations []string `json:"recommendations,omitempty"`
	AverageScore    float64  `json:"averageScore"`
}
