package service

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/target/brandpulse/internal/domain/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type metricCall struct {
	kind  string
	name  string
	value float64
	tags  map[string]string
}

// recordingSink captures emitted metrics.
type recordingSink struct {
	mu    sync.Mutex
	calls []metricCall
}

func (s *recordingSink) Count(name string, value int64, tags map[string]string) {
	s.record("count", name, float64(value), tags)
}

func (s *recordingSink) Gauge(name string, value float64, tags map[string]string) {
	s.record("gauge", name, value, tags)
}

func (s *recordingSink) Timing(name string, value time.Duration, tags map[string]string) {
	s.record("timing", name, value.Seconds(), tags)
}

func (s *recordingSink) record(kind, name string, value float64, tags map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, metricCall{kind: kind, name: name, value: value, tags: tags})
}

func (s *recordingSink) named(name string) []metricCall {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []metricCall
	for _, c := range s.calls {
		if c.name == name {
			out = append(out, c)
		}
	}
	return out
}

// memoryQueue is an in-memory transport with dead-letter support.
type memoryQueue struct {
	mu         sync.Mutex
	nextID     int
	messages   []model.QueueMessage
	deleted    []string
	dead       []model.QueueMessage
	reasons    []string
	sendErr    error
	receiveErr error
	deleteErr  error
	// receiveHook runs inside Receive, before messages are returned.
	receiveHook func(ctx context.Context)
}

func (q *memoryQueue) Send(_ context.Context, req model.SendRequest) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.sendErr != nil {
		return "", q.sendErr
	}
	q.nextID++
	id := "msg-" + strconv.Itoa(q.nextID)
	q.messages = append(q.messages, model.QueueMessage{
		ID:            id,
		ReceiptHandle: "rh-" + id,
		Body:          req.Body,
		ReceiveCount:  1,
		Attributes:    req.Attributes,
	})
	return id, nil
}

func (q *memoryQueue) Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error) {
	if q.receiveHook != nil {
		q.receiveHook(ctx)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.receiveErr != nil {
		return nil, q.receiveErr
	}
	n := min(req.MaxBatch, len(q.messages))
	out := append([]model.QueueMessage(nil), q.messages[:n]...)
	q.messages = q.messages[n:]
	return out, nil
}

func (q *memoryQueue) Delete(_ context.Context, receiptHandle string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deleteErr != nil {
		return q.deleteErr
	}
	q.deleted = append(q.deleted, receiptHandle)
	return nil
}

func (q *memoryQueue) DeadLetter(_ context.Context, msg model.QueueMessage, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, msg)
	q.reasons = append(q.reasons, reason)
	return nil
}

// plainQueue hides the DeadLetter method of a memoryQueue.
type plainQueue struct{ q *memoryQueue }

func (p plainQueue) Send(ctx context.Context, req model.SendRequest) (string, error) {
	return p.q.Send(ctx, req)
}

func (p plainQueue) Receive(ctx context.Context, req model.ReceiveRequest) ([]model.QueueMessage, error) {
	return p.q.Receive(ctx, req)
}

func (p plainQueue) Delete(ctx context.Context, receiptHandle string) error {
	return p.q.Delete(ctx, receiptHandle)
}

func encodeJob(jobType model.JobType, data any) []byte {
	msg, err := model.NewJobMessage(jobType, data, time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		panic(err)
	}
	b, err := msg.Encode()
	if err != nil {
		panic(err)
	}
	return b
}
