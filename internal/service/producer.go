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

// ProducerOptions groups dependencies for Producer.
type ProducerOptions struct {
	Transport core.QueueTransport // Required
	Clock     func() time.Time    // Optional: defaults to time.Now
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Producer serializes job messages onto the queue transport.
type Producer struct {
	transport core.QueueTransport
	clock     func() time.Time
	logger    *slog.Logger
	metrics   statsd.Sink
}

var _ core.JobEnqueuer = (*Producer)(nil)

// NewProducer constructs a Producer.
func NewProducer(opts ProducerOptions) (*Producer, error) {
	if opts.Transport == nil {
		return nil, errors.New("QueueTransport is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Producer{
		transport: opts.Transport,
		clock:     clock,
		logger:    logger.With("component", "queue_producer"),
		metrics:   opts.Metrics,
	}, nil
}

// Enqueue sends msg with a messageType attribute. Transport failures are returned as *model.DeliveryError.
func (p *Producer) Enqueue(ctx context.Context, msg model.JobMessage) (string, error) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = p.clock().UTC()
	}
	body, err := msg.Encode()
	if err != nil {
		return "", fmt.Errorf("encode job message: %w", err)
	}

	start := time.Now()
	id, err := p.transport.Send(ctx, model.SendRequest{
		Body:       body,
		Attributes: map[string]string{model.MessageTypeAttribute: string(msg.Type)},
	})
	if err != nil {
		metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
			JobType:    string(msg.Type),
			Transition: metrics.TransitionEnqueue,
			Result:     metrics.ResultError,
			Err:        err,
		})
		return "", &model.DeliveryError{JobType: msg.Type, Err: err}
	}

	metrics.EmitJobLifecycle(p.metrics, metrics.JobMetric{
		JobType:    string(msg.Type),
		Transition: metrics.TransitionEnqueue,
		Result:     metrics.ResultSuccess,
		Duration:   time.Since(start),
	})
	p.logger.DebugContext(ctx, "job message enqueued", "message_id", id, "job_type", msg.Type)
	return id, nil
}
