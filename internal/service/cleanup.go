package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// CleanupServiceOptions groups dependencies for CleanupService.
type CleanupServiceOptions struct {
	Statistics  core.StatisticPruner  // Required when Config.StatisticsMaxAge is set
	DeadLetters core.DeadLetterPruner // Optional: only the Postgres transport parks dead letters
	Config      config.CleanupConfig
	Clock       func() time.Time // Optional: defaults to time.Now
	Logger      *slog.Logger
	Metrics     statsd.Sink
}

// CleanupResult reports how many rows each step removed.
type CleanupResult struct {
	Statistics  int64 `json:"statistics"`
	DeadLetters int64 `json:"deadLetters"`
}

// CleanupService prunes expired dead letters in batches and, when enabled,
// superseded statistics.
type CleanupService struct {
	statistics  core.StatisticPruner
	deadLetters core.DeadLetterPruner
	config      config.CleanupConfig
	clock       func() time.Time
	logger      *slog.Logger
	metrics     statsd.Sink
}

// NewCleanupService constructs a CleanupService.
func NewCleanupService(opts CleanupServiceOptions) (*CleanupService, error) {
	cfg := opts.Config
	cfg.Sanitize()
	if cfg.PruneStatistics() && opts.Statistics == nil {
		return nil, errors.New("StatisticPruner is required when statistics pruning is enabled")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupService{
		statistics:  opts.Statistics,
		deadLetters: opts.DeadLetters,
		config:      cfg,
		clock:       clock,
		logger:      logger.With("component", "cleanup_service"),
		metrics:     opts.Metrics,
	}, nil
}

type cleanupFunc func(context.Context) (int64, error)

type cleanupStep struct {
	fn        cleanupFunc
	operation string
	label     string
	count     *int64
}

// Run executes every cleanup step. Step errors are joined; a failing step does not stop the others.
func (s *CleanupService) Run(ctx context.Context) (CleanupResult, error) {
	start := time.Now()
	var (
		res                CleanupResult
		errs               []error
		allContextCanceled = true
	)

	var steps []cleanupStep
	if s.config.PruneStatistics() {
		steps = append(steps, cleanupStep{
			fn:        s.deleteSupersededStatistics,
			operation: "delete_superseded_statistics",
			label:     "delete superseded statistics",
			count:     &res.Statistics,
		})
	}
	if s.deadLetters != nil {
		steps = append(steps, cleanupStep{
			fn:        s.deleteExpiredDeadLetters,
			operation: "delete_dead_letters",
			label:     "delete expired dead letters",
			count:     &res.DeadLetters,
		})
	}

	var firstErr error
	for _, step := range steps {
		count, err := step.fn(ctx)
		*step.count = count
		metricErr := suppressContextCancellation(err)
		s.emitOperationMetric(step.operation, count, metricErr)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.label, err))
			allContextCanceled = allContextCanceled && isContextCancellation(err)
			if firstErr == nil && metricErr != nil {
				firstErr = metricErr
			}
		}
	}

	s.emitRunMetrics(res.Statistics+res.DeadLetters, firstErr, time.Since(start))

	if len(errs) > 0 {
		joined := errors.Join(errs...)
		if allContextCanceled && isContextCancellation(joined) {
			return res, context.Canceled
		}
		return res, fmt.Errorf("cleanup failed: %w", joined)
	}
	return res, nil
}

// drain repeats a batched delete until a batch removes nothing.
func (s *CleanupService) drain(ctx context.Context, fn func() (int64, error)) (int64, error) {
	var total int64
	for {
		count, err := fn()
		if err != nil {
			return total, err
		}
		total += count
		if count == 0 {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (s *CleanupService) deleteSupersededStatistics(ctx context.Context) (int64, error) {
	cutoff := s.clock().Add(-s.config.StatisticsMaxAge)
	total, err := s.drain(ctx, func() (int64, error) {
		return s.statistics.DeleteSuperseded(ctx, core.DeleteSupersededParams{
			OlderThan: cutoff,
			BatchSize: s.config.BatchSize,
		})
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted superseded statistics",
			"count", total,
			"max_age", s.config.StatisticsMaxAge)
	}
	return total, err
}

func (s *CleanupService) deleteExpiredDeadLetters(ctx context.Context) (int64, error) {
	cutoff := s.clock().Add(-s.config.DeadLetterMaxAge)
	total, err := s.drain(ctx, func() (int64, error) {
		return s.deadLetters.DeleteDeadLetters(ctx, core.DeleteDeadLettersParams{
			OlderThan: cutoff,
			BatchSize: s.config.BatchSize,
		})
	})
	if total > 0 {
		s.logger.InfoContext(ctx, "deleted expired dead letters",
			"count", total,
			"max_age", s.config.DeadLetterMaxAge)
	}
	return total, err
}

func (s *CleanupService) emitRunMetrics(total int64, firstErr error, elapsed time.Duration) {
	if s.metrics == nil {
		return
	}
	tags := metrics.ResultTags(metrics.CountResult(total, firstErr), firstErr)
	s.metrics.Count("cleanup.run", 1, tags)
	if elapsed > 0 {
		s.metrics.Timing("cleanup.run_duration", elapsed, metrics.CloneTags(tags))
	}
	if firstErr == nil {
		s.metrics.Gauge("cleanup.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}

func (s *CleanupService) emitOperationMetric(operation string, count int64, err error) {
	if s.metrics == nil {
		return
	}
	tags := metrics.ResultTags(metrics.CountResult(count, err), err)
	tags["operation"] = operation
	s.metrics.Count("cleanup.operation", 1, tags)
	if err == nil && count > 0 {
		s.metrics.Count("cleanup.rows_deleted", count, metrics.CloneTags(tags))
	}
}

func isContextCancellation(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func suppressContextCancellation(err error) error {
	if isContextCancellation(err) {
		return nil
	}
	return err
}
