// Package scheduler provides adapters for running the calendar trigger loop.
package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// Ticker fires every due trigger at the given instant and reports how many fired.
type Ticker interface {
	Tick(ctx context.Context, now time.Time) (int, error)
}

// Runner drives a Ticker on a fixed interval.
type Runner struct {
	triggers Ticker
	interval time.Duration
	clock    func() time.Time
	logger   *slog.Logger
	metrics  statsd.Sink
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	Triggers Ticker // Required
	Interval time.Duration
	Clock    func() time.Time
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// NewRunner creates a new scheduler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}
	return &Runner{
		triggers: opts.Triggers,
		interval: opts.Interval,
		clock:    opts.Clock,
		logger:   opts.Logger.With("component", "scheduler_runner"),
		metrics:  opts.Metrics,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.Triggers == nil {
		return errors.New("trigger ticker is required")
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// Run starts the scheduler loop and runs until the context is cancelled.
// Tick errors are logged and the loop keeps running.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting scheduler runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "scheduler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			r.tick(ctx)
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	start := time.Now()
	fired, err := r.triggers.Tick(ctx, r.clock().UTC())
	r.emitTickMetrics(fired, time.Since(start), err)

	switch {
	case err != nil:
		r.logger.ErrorContext(ctx, "scheduler tick failed", "fired", fired, "error", err)
	case fired > 0:
		r.logger.InfoContext(ctx, "scheduler fired triggers", "fired", fired)
	}
}

func (r *Runner) emitTickMetrics(fired int, elapsed time.Duration, err error) {
	if r.metrics == nil {
		return
	}

	tags := metrics.ResultTags(metrics.CountResult(int64(fired), err), err)
	r.metrics.Count("scheduler.tick", 1, tags)

	if fired > 0 {
		r.metrics.Count("scheduler.triggers_fired", int64(fired), metrics.CloneTags(tags))
	}
	if elapsed > 0 {
		r.metrics.Timing("scheduler.tick_duration", elapsed, metrics.CloneTags(tags))
	}
	if err == nil {
		r.metrics.Gauge("scheduler.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
