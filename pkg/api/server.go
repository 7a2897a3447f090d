// Package api exposes the orchestrator over HTTP: task CRUD, the agent and
// stats read surfaces, and the SSE live stream.
package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/maestro-ai/maestro/pkg/events"
	"github.com/maestro-ai/maestro/pkg/orch"
	"github.com/maestro-ai/maestro/pkg/version"
)

// Server is the HTTP server wrapping the supervisor and event hub.
type Server struct {
	supervisor *orch.Supervisor
	hub        *events.Hub
	router     *gin.Engine
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer creates the server and registers all routes.
func NewServer(supervisor *orch.Supervisor, hub *events.Hub) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(), corsMiddleware())

	s := &Server{
		supervisor: supervisor,
		hub:        hub,
		router:     router,
		logger:     slog.With("component", "api"),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/healthz", s.handleHealth)

	s.router.POST("/tasks", s.handleCreateTask)
	s.router.GET("/tasks", s.handleListTasks)
	s.router.GET("/tasks/:id", s.handleGetTask)
	s.router.GET("/tasks/:id/agents", s.handleGetTaskAgents)
	s.router.PUT("/tasks/:id/status", s.handleUpdateStatus)
	s.router.PUT("/tasks/:id/priority", s.handleUpdatePriority)
	s.router.DELETE("/tasks/:id", s.handleDeleteTask)

	s.router.GET("/system/stats", s.handleSystemStats)
	s.router.GET("/events", s.handleEvents)
}

// Handler exposes the router for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start runs the HTTP server; blocks until shutdown or failure.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown drains connections gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "version": version.Full()})
}

// requestLogger logs each request with method, path, status, and duration.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		// The event stream stays open for its whole lifetime; logging it on
		// close only adds noise.
		if c.FullPath() == "/events" {
			return
		}
		slog.Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

// corsMiddleware allows the reference UI to talk to the API from another
// origin.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
