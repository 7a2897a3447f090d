package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingPruner struct {
	mu    sync.Mutex
	calls []time.Duration
	ret   int
}

func (p *recordingPruner) PruneTerminal(olderThan time.Duration) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, olderThan)
	return p.ret
}

func (p *recordingPruner) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.calls)
}

func TestService_PrunesImmediatelyOnStart(t *testing.T) {
	pruner := &recordingPruner{ret: 2}
	svc := NewService(Config{Retention: time.Hour, Interval: time.Hour}, pruner)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return pruner.callCount() >= 1
	}, time.Second, 5*time.Millisecond)

	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	assert.Equal(t, time.Hour, pruner.calls[0])
}

func TestService_PrunesOnInterval(t *testing.T) {
	pruner := &recordingPruner{}
	svc := NewService(Config{Retention: time.Hour, Interval: 10 * time.Millisecond}, pruner)

	svc.Start(context.Background())
	defer svc.Stop()

	require.Eventually(t, func() bool {
		return pruner.callCount() >= 3
	}, time.Second, 5*time.Millisecond)
}

func TestService_StopWaitsForLoop(t *testing.T) {
	pruner := &recordingPruner{}
	svc := NewService(Config{Retention: time.Hour, Interval: time.Hour}, pruner)

	svc.Start(context.Background())
	svc.Stop()

	// Stop after Stop is a no-op; Start-less Stop must not hang either.
	fresh := NewService(Config{Retention: time.Hour, Interval: time.Hour}, pruner)
	fresh.Stop()
}

func TestService_DoubleStartIgnored(t *testing.T) {
	pruner := &recordingPruner{}
	svc := NewService(Config{Retention: time.Hour, Interval: time.Hour}, pruner)

	svc.Start(context.Background())
	svc.Start(context.Background())
	svc.Stop()

	assert.GreaterOrEqual(t, pruner.callCount(), 1)
}
