// Package cleanup enforces task retention: terminal tasks older than the
// retention window are pruned from the in-memory registry so a long-running
// process does not grow without bound.
package cleanup

import (
	"context"
	"log/slog"
	"time"
)

// TaskPruner removes terminal tasks finished before the cutoff and reports
// how many were removed. The supervisor implements this.
type TaskPruner interface {
	PruneTerminal(olderThan time.Duration) int
}

// Config holds the retention settings.
type Config struct {
	// Retention is how long terminal tasks are kept after completion.
	Retention time.Duration
	// Interval is how often the pruning pass runs.
	Interval time.Duration
}

// Service runs the periodic pruning loop. Idempotent; pruning an already
// clean registry is a no-op.
type Service struct {
	config Config
	pruner TaskPruner

	cancel context.CancelFunc
	done   chan struct{}
}

// NewService creates the retention service.
func NewService(cfg Config, pruner TaskPruner) *Service {
	return &Service{config: cfg, pruner: pruner}
}

// Start launches the background pruning loop.
func (s *Service) Start(ctx context.Context) {
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})

	go s.run(ctx)

	slog.Info("Cleanup service started",
		"retention", s.config.Retention,
		"interval", s.config.Interval)
}

// Stop signals the pruning loop to exit and waits for it to finish.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	slog.Info("Cleanup service stopped")
}

func (s *Service) run(ctx context.Context) {
	defer close(s.done)

	s.prune()

	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.prune()
		}
	}
}

func (s *Service) prune() {
	count := s.pruner.PruneTerminal(s.config.Retention)
	if count > 0 {
		slog.Info("Retention: pruned terminal tasks", "count", count)
	}
}
