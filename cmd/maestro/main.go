// Maestro orchestrator server — accepts natural-language tasks, decomposes
// them into agent DAGs, runs and evaluates the agents, and streams live
// status over SSE.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/maestro-ai/maestro/pkg/agent"
	"github.com/maestro-ai/maestro/pkg/api"
	"github.com/maestro-ai/maestro/pkg/cleanup"
	"github.com/maestro-ai/maestro/pkg/config"
	"github.com/maestro-ai/maestro/pkg/engine"
	"github.com/maestro-ai/maestro/pkg/eval"
	"github.com/maestro-ai/maestro/pkg/events"
	"github.com/maestro-ai/maestro/pkg/llm"
	"github.com/maestro-ai/maestro/pkg/masking"
	"github.com/maestro-ai/maestro/pkg/mcp"
	"github.com/maestro-ai/maestro/pkg/memory"
	"github.com/maestro-ai/maestro/pkg/models"
	"github.com/maestro-ai/maestro/pkg/orch"
	"github.com/maestro-ai/maestro/pkg/tools"
	"github.com/maestro-ai/maestro/pkg/vectorstore"
	"github.com/maestro-ai/maestro/pkg/version"
)

func main() {
	if err := godotenv.Load(); err != nil {
		slog.Warn("Could not load .env file, continuing with existing environment", "error", err)
	}

	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	slog.Info("Starting maestro", "version", version.Full(), "http_port", cfg.HTTPPort, "model", cfg.LLMModel)

	// 2. LLM client
	llmClient := llm.NewGeminiClient(llm.GeminiConfig{
		BaseURL:        cfg.LLMBaseURL,
		Model:          cfg.LLMModel,
		EmbeddingModel: cfg.EmbeddingModel,
		APIKey:         cfg.LLMAPIKey,
		Timeout:        cfg.LLMTimeout,
	})

	// 3. Vector store. Without credentials the provider embedder cannot
	// work, so fall back to the deterministic local one. Persisted content
	// passes through the secret masker.
	var embedder vectorstore.Embedder = llmClient
	if cfg.LLMAPIKey == "" {
		slog.Warn("No API key configured; using local embedder")
		embedder = vectorstore.NewLocalEmbedder()
	}
	store, err := vectorstore.New(vectorstore.Config{
		DataDir:  cfg.DataDir,
		Embedder: embedder,
		Masker:   masking.NewService(nil),
	})
	if err != nil {
		slog.Error("Failed to initialize vector store", "error", err)
		os.Exit(1)
	}

	// 4. Tools and memory
	registry := tools.NewRegistry()
	if err := tools.RegisterBuiltins(registry, llmClient, store); err != nil {
		slog.Error("Failed to register tools", "error", err)
		os.Exit(1)
	}
	longTerm := memory.NewLongTerm(store)
	slog.Info("Tools registered", "tools", registry.Names())

	// 5. Engine over the agent runtime
	factory := func(agentCfg models.AgentConfig, onStatus func(models.AgentStatus)) engine.AgentRunner {
		return &timeoutRunner{
			runtime: agent.New(agentCfg, agent.Deps{
				LLM:    llmClient,
				Tools:  registry,
				Store:  store,
				Memory: longTerm,
				ContextConfig: mcp.Config{
					MaxMessages: cfg.MaxContextMessages,
					MaxTokens:   cfg.MaxContextTokens,
				},
				MaxToolLoops: cfg.MaxToolLoops,
				ContextTopK:  cfg.ContextTopK,
				OnStatus:     onStatus,
			}),
			timeout: cfg.AgentTimeout,
		}
	}
	eng := engine.New(factory)

	// 6. Supervisor and event hub
	hub := events.NewHub()
	evaluator := eval.New(llmClient, store)
	supervisor := orch.NewSupervisor(orch.Deps{
		LLM:       llmClient,
		Engine:    eng,
		Evaluator: evaluator,
		Hub:       hub,
		Vectors:   store,
	})

	// 7. Task retention
	retention := cleanup.NewService(cleanup.Config{
		Retention: cfg.TaskRetention,
		Interval:  cfg.CleanupInterval,
	}, supervisor)
	retention.Start(context.Background())

	// 8. HTTP server (non-blocking)
	server := api.NewServer(supervisor, hub)
	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.HTTPPort
		slog.Info("HTTP server listening", "addr", addr)
		if err := server.Start(addr); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			errCh <- err
		}
	}()

	// 9. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
	}

	// 10. Graceful shutdown: finish in-flight tasks within budget, then the
	// HTTP server gets its own smaller budget.
	retention.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	supervisor.Stop(shutdownCtx)

	httpCtx, httpCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer httpCancel()
	if err := server.Shutdown(httpCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("Shutdown complete")
}

// timeoutRunner bounds each agent execution with the configured timeout.
type timeoutRunner struct {
	runtime *agent.Runtime
	timeout time.Duration
}

func (t *timeoutRunner) Run(ctx context.Context, depContext map[string]string) *models.AgentReport {
	runCtx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.runtime.Run(runCtx, depContext)
}
