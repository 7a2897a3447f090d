// Package config loads environment-driven settings for the orchestrator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Defaults applied when the corresponding environment variable is unset.
const (
	DefaultHTTPPort           = "8080"
	DefaultLLMModel           = "gemini-2.0-flash"
	DefaultEmbeddingModel     = "text-embedding-004"
	DefaultLLMBaseURL         = "https://generativelanguage.googleapis.com/v1beta"
	DefaultMaxToolLoops       = 5
	DefaultMaxContextMessages = 30
	DefaultMaxContextTokens   = 8000
	DefaultContextTopK        = 3
	DefaultAgentTimeout       = 2 * time.Minute
	DefaultLLMTimeout         = 60 * time.Second
	DefaultShutdownTimeout    = 10 * time.Second
	DefaultTaskRetention      = 24 * time.Hour
	DefaultCleanupInterval    = time.Hour
)

// Config is the umbrella configuration object returned by Load() and
// threaded through the application at startup.
type Config struct {
	// HTTPPort is the listen port for the REST/SSE server
	HTTPPort string

	// LLMAPIKey authenticates against the provider. Empty key puts the
	// process in offline mode: decomposition and evaluation fail fast and
	// embeddings fall back to the deterministic local embedder.
	LLMAPIKey string
	// LLMModel is the generation model identifier
	LLMModel string
	// EmbeddingModel is the embedding model identifier
	EmbeddingModel string
	// LLMBaseURL is the provider API root
	LLMBaseURL string
	// LLMTimeout bounds a single provider HTTP call
	LLMTimeout time.Duration

	// DataDir enables on-disk vector store persistence when non-empty
	DataDir string

	// MaxToolLoops bounds the agent tool-use loop per execution
	MaxToolLoops int
	// MaxContextMessages bounds the conversation buffer length
	MaxContextMessages int
	// MaxContextTokens bounds the estimated conversation token footprint
	MaxContextTokens int
	// ContextTopK is how many prior-task/memory documents prime an agent
	ContextTopK int
	// AgentTimeout bounds a single agent execution end to end
	AgentTimeout time.Duration

	// ShutdownTimeout bounds graceful shutdown of in-flight tasks
	ShutdownTimeout time.Duration

	// TaskRetention is how long terminal tasks stay in the registry
	TaskRetention time.Duration
	// CleanupInterval is how often the retention pass runs
	CleanupInterval time.Duration
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

// Load reads configuration from the environment, applying defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:       getEnv("HTTP_PORT", DefaultHTTPPort),
		LLMAPIKey:      getEnv("GEMINI_API_KEY", ""),
		LLMModel:       getEnv("LLM_MODEL", DefaultLLMModel),
		EmbeddingModel: getEnv("EMBEDDING_MODEL", DefaultEmbeddingModel),
		LLMBaseURL:     getEnv("LLM_BASE_URL", DefaultLLMBaseURL),
		DataDir:        getEnv("DATA_DIR", ""),
	}

	var err error
	if cfg.MaxToolLoops, err = getEnvInt("MAX_TOOL_LOOPS", DefaultMaxToolLoops); err != nil {
		return nil, err
	}
	if cfg.MaxContextMessages, err = getEnvInt("MAX_CONTEXT_MESSAGES", DefaultMaxContextMessages); err != nil {
		return nil, err
	}
	if cfg.MaxContextTokens, err = getEnvInt("MAX_CONTEXT_TOKENS", DefaultMaxContextTokens); err != nil {
		return nil, err
	}
	if cfg.ContextTopK, err = getEnvInt("CONTEXT_TOP_K", DefaultContextTopK); err != nil {
		return nil, err
	}
	if cfg.AgentTimeout, err = getEnvDuration("AGENT_TIMEOUT", DefaultAgentTimeout); err != nil {
		return nil, err
	}
	if cfg.LLMTimeout, err = getEnvDuration("LLM_TIMEOUT", DefaultLLMTimeout); err != nil {
		return nil, err
	}
	if cfg.ShutdownTimeout, err = getEnvDuration("SHUTDOWN_TIMEOUT", DefaultShutdownTimeout); err != nil {
		return nil, err
	}
	if cfg.TaskRetention, err = getEnvDuration("TASK_RETENTION", DefaultTaskRetention); err != nil {
		return nil, err
	}
	if cfg.CleanupInterval, err = getEnvDuration("CLEANUP_INTERVAL", DefaultCleanupInterval); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.MaxToolLoops < 1 {
		return fmt.Errorf("MAX_TOOL_LOOPS must be >= 1, got %d", c.MaxToolLoops)
	}
	if c.MaxContextMessages < 2 {
		// Floor: the system message plus at least one conversational message.
		return fmt.Errorf("MAX_CONTEXT_MESSAGES must be >= 2, got %d", c.MaxContextMessages)
	}
	if c.MaxContextTokens < 1 {
		return fmt.Errorf("MAX_CONTEXT_TOKENS must be >= 1, got %d", c.MaxContextTokens)
	}
	if c.ContextTopK < 0 {
		return fmt.Errorf("CONTEXT_TOP_K must be >= 0, got %d", c.ContextTopK)
	}
	if c.TaskRetention <= 0 {
		return fmt.Errorf("TASK_RETENTION must be positive, got %s", c.TaskRetention)
	}
	if c.CleanupInterval <= 0 {
		return fmt.Errorf("CLEANUP_INTERVAL must be positive, got %s", c.CleanupInterval)
	}
	return nil
}
