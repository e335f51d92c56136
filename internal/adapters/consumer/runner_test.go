package consumer

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/brandpulse/internal/service"
)

// slowCycler blocks every cycle until release is closed and mimics the consumer's in-flight guard.
type slowCycler struct {
	release  chan struct{}
	inFlight atomic.Bool
	started  atomic.Int32
	skipped  atomic.Int32
}

func (s *slowCycler) Cycle(ctx context.Context) (service.CycleResult, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		return service.CycleResult{Skipped: true}, nil
	}
	defer s.inFlight.Store(false)
	s.started.Add(1)
	select {
	case <-s.release:
	case <-ctx.Done():
		return service.CycleResult{}, ctx.Err()
	}
	return service.CycleResult{Received: 1, Processed: 1}, nil
}

type tagSink struct {
	mu     sync.Mutex
	cycles []string
}

func (s *tagSink) Count(name string, _ int64, tags map[string]string) {
	if name != "consumer.cycle" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cycles = append(s.cycles, tags["result"])
}

func (s *tagSink) Gauge(string, float64, map[string]string)        {}
func (s *tagSink) Timing(string, time.Duration, map[string]string) {}

func (s *tagSink) results() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.cycles...)
}

func quietLogger() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestRunner_SlowCycleSkipsOverlappingTicks(t *testing.T) {
	cycler := &slowCycler{release: make(chan struct{})}
	sink := &tagSink{}
	r, err := NewRunner(RunnerOptions{
		Consumer: cycler,
		Interval: 5 * time.Millisecond,
		Logger:   quietLogger(),
		Metrics:  sink,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return cycler.skipped.Load() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), cycler.started.Load(), "only one cycle runs at a time")

	close(cycler.release)
	require.Eventually(t, func() bool {
		for _, res := range sink.results() {
			if res == "success" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.Contains(t, sink.results(), "skipped")
}

func TestRunner_StopWaitsForRunningCycle(t *testing.T) {
	cycler := &slowCycler{release: make(chan struct{})}
	r, err := NewRunner(RunnerOptions{Consumer: cycler, Interval: 5 * time.Millisecond, Logger: quietLogger()})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	require.Eventually(t, func() bool { return cycler.started.Load() == 1 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("runner did not stop")
	}
	assert.False(t, cycler.inFlight.Load(), "cycle returned before Run")
}

func TestNewRunner_RequiresConsumer(t *testing.T) {
	_, err := NewRunner(RunnerOptions{})
	require.Error(t, err)
}
