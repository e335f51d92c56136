// Package consumer provides the adapter that drains the job queue on a fixed cadence.
package consumer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
	"github.com/target/brandpulse/internal/service"
)

// Cycler runs one receive-dispatch-ack pass.
type Cycler interface {
	Cycle(ctx context.Context) (service.CycleResult, error)
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Consumer Cycler // Required
	Interval time.Duration
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// Runner starts a consumer cycle on every tick. Each cycle runs in its own goroutine, so a
// slow cycle turns the following ticks into skipped cycles instead of queueing them.
type Runner struct {
	consumer Cycler
	interval time.Duration
	logger   *slog.Logger
	metrics  statsd.Sink

	wg sync.WaitGroup
}

// NewRunner creates a new consumer runner.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Consumer == nil {
		return nil, errors.New("consumer is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		consumer: opts.Consumer,
		interval: opts.Interval,
		logger:   opts.Logger.With("component", "consumer_runner"),
		metrics:  opts.Metrics,
	}, nil
}

// Run ticks until the context is cancelled, then waits for the running cycle to return.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting consumer runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	defer r.wg.Wait()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "consumer runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.wg.Add(1)
			go func() {
				defer r.wg.Done()
				r.cycle(ctx)
			}()
		}
	}
}

func (r *Runner) cycle(ctx context.Context) {
	start := time.Now()
	res, err := r.consumer.Cycle(ctx)
	if res.Skipped {
		r.count("skipped", nil)
		return
	}
	if err != nil && ctx.Err() == nil {
		r.logger.ErrorContext(ctx, "consumer cycle failed", "error", err)
	}
	r.emitCycleMetrics(res, time.Since(start), err)
}

func (r *Runner) emitCycleMetrics(res service.CycleResult, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}
	result := metrics.CountResult(int64(res.Received), err)
	r.count(result, err)
	if elapsed > 0 {
		r.metrics.Timing("consumer.cycle_duration", elapsed, map[string]string{"result": result})
	}
	if res.Received > 0 {
		r.metrics.Count("consumer.messages_received", int64(res.Received), nil)
	}
	if err == nil {
		r.metrics.Gauge("consumer.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (r *Runner) count(result string, err error) {
	if r.metrics == nil {
		return
	}
	r.metrics.Count("consumer.cycle", 1, metrics.ResultTags(result, err))
}
