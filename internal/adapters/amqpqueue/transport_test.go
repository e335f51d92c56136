package amqpqueue

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/brandpulse/internal/domain/model"
)

// fakeChannel is an in-memory broker with one FIFO per queue.
type fakeChannel struct {
	mu       sync.Mutex
	queues   map[string][]amqp.Publishing
	declared []string
	acked    []uint64
	nextTag  uint64
	closed   bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{queues: map[string][]amqp.Publishing{}}
}

func (f *fakeChannel) QueueDeclare(name string, _, _, _, _ bool, _ amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) QueueInspect(name string) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return amqp.Queue{Name: name, Messages: len(f.queues[name])}, nil
}

func (f *fakeChannel) Publish(_, key string, _, _ bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queues[key] = append(f.queues[key], msg)
	return nil
}

func (f *fakeChannel) Get(queue string, _ bool) (amqp.Delivery, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := f.queues[queue]
	if len(q) == 0 {
		return amqp.Delivery{}, false, nil
	}
	p := q[0]
	f.queues[queue] = q[1:]
	f.nextTag++
	return amqp.Delivery{
		DeliveryTag: f.nextTag,
		MessageId:   p.MessageId,
		Headers:     p.Headers,
		Body:        p.Body,
	}, true, nil
}

func (f *fakeChannel) Ack(tag uint64, _ bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acked = append(f.acked, tag)
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func (f *fakeChannel) depth(queue string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.queues[queue])
}

func newTransport(t *testing.T) (*Transport, *fakeChannel) {
	t.Helper()
	ch := newFakeChannel()
	tr, err := New(Options{Queue: "brandpulse-jobs", Channel: ch, PollPeriod: 5 * time.Millisecond})
	require.NoError(t, err)
	return tr, ch
}

func TestNew_DeclaresQueues(t *testing.T) {
	_, ch := newTransport(t)
	assert.Equal(t, []string{"brandpulse-jobs", "brandpulse-jobs.dead"}, ch.declared)

	_, err := New(Options{Channel: newFakeChannel()})
	require.Error(t, err)
}

func TestTransport_SendReceiveDelete(t *testing.T) {
	tr, ch := newTransport(t)
	ctx := context.Background()

	id, err := tr.Send(ctx, model.SendRequest{
		Body:       []byte(`{"type":"CLEANUP"}`),
		Attributes: map[string]string{model.MessageTypeAttribute: "CLEANUP"},
	})
	require.NoError(t, err)
	assert.Len(t, id, 36)

	msgs, err := tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 10})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, id, msgs[0].ID)
	assert.Equal(t, 1, msgs[0].ReceiveCount)
	assert.Equal(t, "CLEANUP", msgs[0].Attributes[model.MessageTypeAttribute])

	require.NoError(t, tr.Delete(ctx, msgs[0].ReceiptHandle))
	assert.Len(t, ch.acked, 1)
	require.ErrorIs(t, tr.Delete(ctx, msgs[0].ReceiptHandle), ErrUnknownReceipt, "double ack is rejected")
}

func TestTransport_UnackedDeliveriesAreRedeliveredWithCount(t *testing.T) {
	tr, ch := newTransport(t)
	ctx := context.Background()

	_, err := tr.Send(ctx, model.SendRequest{Body: []byte(`{"type":"ANALYTICS"}`)})
	require.NoError(t, err)

	first, err := tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 1})
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 1})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, first[0].ID, second[0].ID)
	assert.Equal(t, 2, second[0].ReceiveCount)
	assert.NotEqual(t, first[0].ReceiptHandle, second[0].ReceiptHandle)

	require.ErrorIs(t, tr.Delete(ctx, first[0].ReceiptHandle), ErrUnknownReceipt, "expired receipt")
	require.NoError(t, tr.Delete(ctx, second[0].ReceiptHandle))
	assert.Equal(t, 0, ch.depth("brandpulse-jobs"))
}

func TestTransport_ReceiveWaits(t *testing.T) {
	tr, _ := newTransport(t)
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_, _ = tr.Send(ctx, model.SendRequest{Body: []byte("late")})
	}()

	msgs, err := tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 5, Wait: time.Second})
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, []byte("late"), msgs[0].Body)
}

func TestTransport_ReceiveTimesOutEmpty(t *testing.T) {
	tr, _ := newTransport(t)

	start := time.Now()
	msgs, err := tr.Receive(context.Background(), model.ReceiveRequest{MaxBatch: 5, Wait: 30 * time.Millisecond})
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.GreaterOrEqual(t, time.Since(start), 30*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 5, Wait: time.Minute})
	require.ErrorIs(t, err, context.Canceled)
}

func TestTransport_DeadLetter(t *testing.T) {
	tr, ch := newTransport(t)
	ctx := context.Background()

	_, err := tr.Send(ctx, model.SendRequest{Body: []byte(`{"type":"UPDATE_STATISTICS"}`)})
	require.NoError(t, err)
	msgs, err := tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 1})
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	require.NoError(t, tr.DeadLetter(ctx, msgs[0], "exceeded 5 receives"))
	assert.Equal(t, 1, ch.depth("brandpulse-jobs.dead"))
	assert.Equal(t, 0, ch.depth("brandpulse-jobs"))
	assert.Equal(t, "exceeded 5 receives", ch.queues["brandpulse-jobs.dead"][0].Headers[reasonHeader])

	err = tr.DeadLetter(ctx, model.QueueMessage{ReceiptHandle: strconv.Itoa(99)}, "x")
	require.ErrorIs(t, err, ErrUnknownReceipt)
}

func TestRetryCount(t *testing.T) {
	tests := []struct {
		name    string
		headers amqp.Table
		want    int
	}{
		{"missing", nil, 0},
		{"int32", amqp.Table{retryCountHeader: int32(3)}, 3},
		{"int64", amqp.Table{retryCountHeader: int64(4)}, 4},
		{"string", amqp.Table{retryCountHeader: "2"}, 2},
		{"negative", amqp.Table{retryCountHeader: int32(-1)}, 0},
		{"garbage", amqp.Table{retryCountHeader: "x"}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryCount(tt.headers))
		})
	}
}

func TestTransport_MessagesInQueue(t *testing.T) {
	tr, _ := newTransport(t)
	ctx := context.Background()
	for range 3 {
		_, err := tr.Send(ctx, model.SendRequest{Body: []byte(`{"type":"ANALYTICS"}`)})
		require.NoError(t, err)
	}

	n, err := tr.MessagesInQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	_, err = tr.Receive(ctx, model.ReceiveRequest{MaxBatch: 1})
	require.NoError(t, err)
	n, err = tr.MessagesInQueue(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}
