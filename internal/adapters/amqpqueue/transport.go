// Package amqpqueue implements the queue transport on top of a RabbitMQ queue.
//
// AMQP has no visibility timeout. Deliveries that are still unacknowledged when
// the next Receive starts are treated as timed out: they are republished with an
// incremented retry header and the original delivery is acked. The retry header
// provides the receive count the consumer uses for its poison cap.
package amqpqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/streadway/amqp"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

const (
	retryCountHeader  = "x-brandpulse-retry-count"
	reasonHeader      = "x-brandpulse-dead-letter-reason"
	defaultPollPeriod = 200 * time.Millisecond
)

// ErrUnknownReceipt is returned when a receipt handle does not match an outstanding delivery.
var ErrUnknownReceipt = errors.New("unknown or expired receipt handle")

// channel is the subset of *amqp.Channel used by the transport.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueInspect(name string) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Get(queue string, autoAck bool) (amqp.Delivery, bool, error)
	Ack(tag uint64, multiple bool) error
	Close() error
}

// Options configures a Transport.
type Options struct {
	URL             string
	Queue           string
	DeadLetterQueue string
	// PollPeriod is the pause between basic.get attempts while waiting for the first message.
	PollPeriod time.Duration
	Logger     *slog.Logger

	// Channel overrides the broker channel (tests).
	Channel channel
}

// Transport sends and receives job messages through a durable RabbitMQ queue.
type Transport struct {
	conn       *amqp.Connection
	queue      string
	deadQueue  string
	pollPeriod time.Duration
	logger     *slog.Logger

	// mu serializes channel operations; amqp channels are not safe for concurrent use.
	mu          sync.Mutex
	ch          channel
	outstanding map[uint64]amqp.Delivery
}

var (
	_ core.QueueTransport = (*Transport)(nil)
	_ core.DeadLetterer     = (*Transport)(nil)
	_ core.QueueDepthReader = (*Transport)(nil)
)

// New dials the broker (unless a channel is injected) and declares both queues.
func New(opts Options) (*Transport, error) {
	if opts.Queue == "" {
		return nil, errors.New("amqp queue name is required")
	}
	t := &Transport{
		queue:       opts.Queue,
		deadQueue:   opts.DeadLetterQueue,
		pollPeriod:  opts.PollPeriod,
		logger:      opts.Logger,
		ch:          opts.Channel,
		outstanding: make(map[uint64]amqp.Delivery),
	}
	if t.deadQueue == "" {
		t.deadQueue = opts.Queue + ".dead"
	}
	if t.pollPeriod <= 0 {
		t.pollPeriod = defaultPollPeriod
	}
	if t.logger == nil {
		t.logger = slog.Default()
	}
	t.logger = t.logger.With("component", "amqp_transport", "queue", t.queue)

	if t.ch == nil {
		conn, err := amqp.Dial(opts.URL)
		if err != nil {
			return nil, fmt.Errorf("connect to rabbitmq: %w", err)
		}
		ch, err := conn.Channel()
		if err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("open channel: %w", err)
		}
		t.conn = conn
		t.ch = ch
	}

	for _, name := range []string{t.queue, t.deadQueue} {
		if _, err := t.ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			_ = t.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}
	return t, nil
}

// MessagesInQueue returns the ready count of the work queue. Deliveries held by
// this transport until the next Receive are not included.
func (t *Transport) MessagesInQueue(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	q, err := t.ch.QueueInspect(t.queue)
	if err != nil {
		return 0, fmt.Errorf("inspect queue %s: %w", t.queue, err)
	}
	return int64(q.Messages), nil
}

// Send publishes a persistent message to the work queue.
func (t *Transport) Send(ctx context.Context, req model.SendRequest) (string, error) {
	if len(req.Body) == 0 {
		return "", errors.New("message body is required")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	id := uuid.NewString()
	headers := amqp.Table{}
	for k, v := range req.Attributes {
		headers[k] = v
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.publishLocked(t.queue, id, req.Body, headers); err != nil {
		return "", fmt.Errorf("amqp publish: %w", err)
	}
	return id, nil
}

// Receive fetches up to MaxBatch messages, polling until the first arrives or Wait elapses.
func (t *Transport) Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error) {
	batch := max(req.MaxBatch, 1)
	deadline := time.Now().Add(max(req.Wait, 0))

	t.mu.Lock()
	t.expireOutstandingLocked(ctx)
	t.mu.Unlock()

	for {
		msgs, err := t.getBatch(batch)
		if err != nil {
			return nil, err
		}
		if len(msgs) > 0 || !time.Now().Before(deadline) {
			return msgs, nil
		}

		timer := time.NewTimer(min(t.pollPeriod, time.Until(deadline)))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
	}
}

func (t *Transport) getBatch(batch int) ([]model.QueueMessage, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var msgs []model.QueueMessage
	for len(msgs) < batch {
		d, ok, err := t.ch.Get(t.queue, false)
		if err != nil {
			return msgs, fmt.Errorf("amqp get: %w", err)
		}
		if !ok {
			break
		}
		t.outstanding[d.DeliveryTag] = d
		msgs = append(msgs, toQueueMessage(d))
	}
	return msgs, nil
}

// Delete acks the delivery identified by the receipt handle.
func (t *Transport) Delete(_ context.Context, receiptHandle string) error {
	tag, err := parseReceipt(receiptHandle)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.outstanding[tag]; !ok {
		return ErrUnknownReceipt
	}
	delete(t.outstanding, tag)
	if err := t.ch.Ack(tag, false); err != nil {
		return fmt.Errorf("amqp ack: %w", err)
	}
	return nil
}

// DeadLetter publishes the message to the dead-letter queue and acks the original delivery.
func (t *Transport) DeadLetter(_ context.Context, msg model.QueueMessage, reason string) error {
	tag, err := parseReceipt(msg.ReceiptHandle)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	d, ok := t.outstanding[tag]
	if !ok {
		return ErrUnknownReceipt
	}

	headers := cloneHeaders(d.Headers)
	headers[reasonHeader] = reason
	if err := t.publishLocked(t.deadQueue, d.MessageId, d.Body, headers); err != nil {
		return fmt.Errorf("amqp dead-letter publish: %w", err)
	}
	delete(t.outstanding, tag)
	if err := t.ch.Ack(tag, false); err != nil {
		return fmt.Errorf("amqp ack: %w", err)
	}
	return nil
}

// Close releases the channel and connection.
func (t *Transport) Close() error {
	var errs []error
	if t.ch != nil {
		if err := t.ch.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// expireOutstandingLocked returns every unacknowledged delivery of the previous cycle to the queue.
func (t *Transport) expireOutstandingLocked(ctx context.Context) {
	for tag, d := range t.outstanding {
		headers := cloneHeaders(d.Headers)
		headers[retryCountHeader] = int32(retryCount(d.Headers) + 1) // #nosec G115 - small counter
		if err := t.publishLocked(t.queue, d.MessageId, d.Body, headers); err != nil {
			t.logger.WarnContext(ctx, "failed to requeue expired delivery", "message_id", d.MessageId, "error", err)
			continue
		}
		if err := t.ch.Ack(tag, false); err != nil {
			t.logger.WarnContext(ctx, "failed to ack expired delivery", "message_id", d.MessageId, "error", err)
		}
		delete(t.outstanding, tag)
	}
}

func (t *Transport) publishLocked(queue, id string, body []byte, headers amqp.Table) error {
	return t.ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    id,
		Timestamp:    time.Now(),
		Headers:      headers,
		Body:         body,
	})
}

func toQueueMessage(d amqp.Delivery) model.QueueMessage {
	attrs := make(map[string]string, len(d.Headers))
	for k, v := range d.Headers {
		if k == retryCountHeader {
			continue
		}
		if s, ok := v.(string); ok {
			attrs[k] = s
		}
	}
	return model.QueueMessage{
		ID:            d.MessageId,
		ReceiptHandle: strconv.FormatUint(d.DeliveryTag, 10),
		Body:          d.Body,
		ReceiveCount:  retryCount(d.Headers) + 1,
		Attributes:    attrs,
	}
}

func retryCount(headers amqp.Table) int {
	switch v := headers[retryCountHeader].(type) {
	case int32:
		return max(int(v), 0)
	case int64:
		return max(int(v), 0)
	case int:
		return max(v, 0)
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return max(n, 0)
	default:
		return 0
	}
}

func cloneHeaders(in amqp.Table) amqp.Table {
	out := make(amqp.Table, len(in)+1)
	for k, v := range in {
		out[k] = v
	}
	return out
}

func parseReceipt(receipt string) (uint64, error) {
	if receipt == "" {
		return 0, errors.New("receipt handle is required")
	}
	tag, err := strconv.ParseUint(receipt, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid receipt handle %q: %w", receipt, err)
	}
	return tag, nil
}
