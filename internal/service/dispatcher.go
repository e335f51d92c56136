package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// DispatcherOptions groups dependencies for Dispatcher.
type DispatcherOptions struct {
	Logger  *slog.Logger
	Metrics statsd.Sink
}

// Dispatcher routes decoded job messages to the handler registered for their type.
type Dispatcher struct {
	handlers map[model.JobType]core.JobHandler
	logger   *slog.Logger
	metrics  statsd.Sink
}

// NewDispatcher constructs an empty Dispatcher.
func NewDispatcher(opts DispatcherOptions) *Dispatcher {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		handlers: make(map[model.JobType]core.JobHandler),
		logger:   logger.With("component", "job_dispatcher"),
		metrics:  opts.Metrics,
	}
}

// Register binds a handler to a job type. A type can be registered once.
func (d *Dispatcher) Register(jobType model.JobType, h core.JobHandler) error {
	if h == nil {
		return fmt.Errorf("nil handler for %s", jobType)
	}
	if _, exists := d.handlers[jobType]; exists {
		return fmt.Errorf("handler already registered for %s", jobType)
	}
	d.handlers[jobType] = h
	return nil
}

// RegisterAll registers every handler in the map.
func (d *Dispatcher) RegisterAll(handlers map[model.JobType]core.JobHandler) error {
	var errs []error
	for jt, h := range handlers {
		if err := d.Register(jt, h); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Dispatch decodes body and runs its handler. Undecodable bodies and unknown types are
// logged and reported as handled; only handler errors are returned.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) error {
	msg, err := model.DecodeJobMessage(body)
	if err != nil {
		d.logger.ErrorContext(ctx, "dropping malformed job message", "error", err, "body_length", len(body))
		d.emit("unknown", metrics.ResultNoop, nil, 0)
		return nil
	}

	h, ok := d.handlers[msg.Type]
	if !ok {
		d.logger.WarnContext(ctx, "no handler for job type", "job_type", msg.Type)
		d.emit(string(msg.Type), metrics.ResultNoop, nil, 0)
		return nil
	}

	start := time.Now()
	err = h(ctx, msg)
	elapsed := time.Since(start)
	if err != nil {
		d.emit(string(msg.Type), metrics.ResultError, err, elapsed)
		return fmt.Errorf("handle %s: %w", msg.Type, err)
	}
	d.emit(string(msg.Type), metrics.ResultSuccess, nil, elapsed)
	return nil
}

func (d *Dispatcher) emit(jobType, result string, err error, elapsed time.Duration) {
	metrics.EmitJobLifecycle(d.metrics, metrics.JobMetric{
		JobType:    jobType,
		Transition: metrics.TransitionDispatch,
		Result:     result,
		Duration:   elapsed,
		Err:        err,
	})
}
