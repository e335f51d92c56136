package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	obserrors "github.com/target/brandpulse/internal/observability/errors"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/notify"
	"github.com/target/brandpulse/internal/observability/statsd"
)

const (
	defaultConsumerBatch       = 10
	defaultConsumerWait        = 20 * time.Second
	defaultConsumerMaxReceives = 5
	receiveGrace               = 5 * time.Second

	// maxRememberedFailures bounds the per-message failure memory.
	maxRememberedFailures = 1024
	receiveLimitClass     = "receive_limit"
)

// MessageDispatcher runs the handler for one raw message body.
type MessageDispatcher interface {
	Dispatch(ctx context.Context, body []byte) error
}

// DeadLetterNotifier announces messages that were taken out of circulation.
type DeadLetterNotifier interface {
	NotifyDeadLetter(ctx context.Context, payload notify.DeadLetterPayload)
}

// ConsumerOptions groups dependencies for Consumer.
type ConsumerOptions struct {
	Transport     core.QueueTransport // Required
	Dispatcher    MessageDispatcher   // Required
	TransportName string              // Optional: reported in notifications
	MaxBatch      int                 // Optional: defaults to 10
	Wait          time.Duration       // Optional: long-poll wait, defaults to 20s
	MaxReceives   int                 // Optional: poison cap, defaults to 5
	Notifier      DeadLetterNotifier  // Optional
	Logger        *slog.Logger
	Metrics       statsd.Sink
}

// CycleResult summarizes one drain cycle.
type CycleResult struct {
	Received     int  `json:"received"`
	Processed    int  `json:"processed"`
	Failed       int  `json:"failed"`
	DeadLettered int  `json:"deadLettered"`
	Skipped      bool `json:"skipped"`
}

// Consumer drains the queue one batch per cycle and acknowledges handled messages.
type Consumer struct {
	transport     core.QueueTransport
	dispatcher    MessageDispatcher
	transportName string
	maxBatch      int
	wait          time.Duration
	maxReceives   int
	notifier      DeadLetterNotifier
	logger        *slog.Logger
	metrics       statsd.Sink

	inFlight atomic.Bool
	// failures holds the last handler error per message id; only touched inside a cycle.
	failures map[string]error
}

// NewConsumer constructs a Consumer.
func NewConsumer(opts ConsumerOptions) (*Consumer, error) {
	if opts.Transport == nil {
		return nil, errors.New("QueueTransport is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("MessageDispatcher is required")
	}
	c := &Consumer{
		transport:     opts.Transport,
		dispatcher:    opts.Dispatcher,
		transportName: opts.TransportName,
		maxBatch:      opts.MaxBatch,
		wait:          opts.Wait,
		maxReceives:   opts.MaxReceives,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		failures:      make(map[string]error),
	}
	if c.maxBatch <= 0 {
		c.maxBatch = defaultConsumerBatch
	}
	if c.wait <= 0 {
		c.wait = defaultConsumerWait
	}
	if c.maxReceives <= 0 {
		c.maxReceives = defaultConsumerMaxReceives
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	c.logger = logger.With("component", "queue_consumer")
	return c, nil
}

// Cycle receives one batch and processes it sequentially. A call made while another
// cycle is running returns immediately with Skipped set.
func (c *Consumer) Cycle(ctx context.Context) (CycleResult, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		c.logger.DebugContext(ctx, "consumer cycle already in flight, skipping")
		return CycleResult{Skipped: true}, nil
	}
	defer c.inFlight.Store(false)

	var res CycleResult
	msgs, err := c.receive(ctx)
	if err != nil {
		return res, err
	}
	res.Received = len(msgs)

	for _, msg := range msgs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		c.process(ctx, msg, &res)
	}

	if res.Received > 0 {
		c.logger.InfoContext(ctx, "consumer cycle complete",
			"received", res.Received,
			"processed", res.Processed,
			"failed", res.Failed,
			"dead_lettered", res.DeadLettered)
	}
	return res, nil
}

func (c *Consumer) receive(ctx context.Context) ([]model.QueueMessage, error) {
	recvCtx, cancel := context.WithTimeout(ctx, c.wait+receiveGrace)
	defer cancel()

	msgs, err := c.transport.Receive(recvCtx, model.ReceiveRequest{MaxBatch: c.maxBatch, Wait: c.wait})
	if err != nil {
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			c.logger.WarnContext(ctx, "queue receive timed out", "wait", c.wait)
			return nil, nil
		}
		return nil, fmt.Errorf("receive messages: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) process(ctx context.Context, msg model.QueueMessage, res *CycleResult) {
	jobType := messageJobType(msg)
	logger := c.logger.With("message_id", msg.ID, "job_type", jobType, "receive_count", msg.ReceiveCount)

	if msg.ReceiveCount > c.maxReceives {
		reason := fmt.Sprintf("exceeded %d receives", c.maxReceives)
		if err := c.deadLetter(ctx, msg, reason); err != nil {
			logger.ErrorContext(ctx, "failed to dead-letter message", "error", err)
			res.Failed++
			return
		}
		cause := c.failures[msg.ID]
		delete(c.failures, msg.ID)
		logger.WarnContext(ctx, "message dead-lettered", "reason", reason, "last_error", cause)
		res.DeadLettered++
		c.emit(jobType, metrics.TransitionDeadLetter, metrics.ResultSuccess, nil)
		c.notify(ctx, msg, jobType, reason, cause)
		return
	}

	if err := c.dispatcher.Dispatch(ctx, msg.Body); err != nil {
		logger.ErrorContext(ctx, "job handler failed, leaving message for redelivery", "error", err)
		c.rememberFailure(msg.ID, err)
		res.Failed++
		return
	}
	delete(c.failures, msg.ID)

	if err := c.transport.Delete(ctx, msg.ReceiptHandle); err != nil {
		logger.ErrorContext(ctx, "failed to delete handled message", "error", err)
		res.Failed++
		c.emit(jobType, metrics.TransitionAck, metrics.ResultError, err)
		return
	}
	res.Processed++
	c.emit(jobType, metrics.TransitionAck, metrics.ResultSuccess, nil)
}

func (c *Consumer) deadLetter(ctx context.Context, msg model.QueueMessage, reason string) error {
	if dl, ok := c.transport.(core.DeadLetterer); ok {
		return dl.DeadLetter(ctx, msg, reason)
	}
	return c.transport.Delete(ctx, msg.ReceiptHandle)
}

func (c *Consumer) rememberFailure(id string, err error) {
	if id == "" {
		return
	}
	if _, ok := c.failures[id]; !ok && len(c.failures) >= maxRememberedFailures {
		clear(c.failures)
	}
	c.failures[id] = err
}

// notify reports the last handler error seen for the message. Messages that failed in
// another process, or before a restart, carry the receive limit as their error.
func (c *Consumer) notify(ctx context.Context, msg model.QueueMessage, jobType, reason string, cause error) {
	if c.notifier == nil {
		return
	}
	payload := notify.DeadLetterPayload{
		MessageID:    msg.ID,
		JobType:      jobType,
		Transport:    c.transportName,
		ReceiveCount: msg.ReceiveCount,
		Reason:       reason,
		Error:        reason,
		ErrorClass:   receiveLimitClass,
		OccurredAt:   time.Now().UTC(),
	}
	if cause != nil {
		payload.Error = cause.Error()
		payload.ErrorClass = obserrors.Classify(cause)
	}
	c.notifier.NotifyDeadLetter(ctx, payload)
}

func (c *Consumer) emit(jobType, transition, result string, err error) {
	metrics.EmitJobLifecycle(c.metrics, metrics.JobMetric{
		JobType:    jobType,
		Transition: transition,
		Result:     result,
		Err:        err,
	})
}

// messageJobType reads the job type from the transport attribute, falling back to the body.
func messageJobType(msg model.QueueMessage) string {
	if t := msg.Attributes[model.MessageTypeAttribute]; t != "" {
		return t
	}
	if decoded, err := model.DecodeJobMessage(msg.Body); err == nil {
		return string(decoded.Type)
	}
	return "unknown"
}
