package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/core"
)

// batchPruner returns the queued batch counts in order, then zero.
type batchPruner struct {
	batches []int64
	err     error
	calls   int
	cutoffs []time.Time
	sizes   []int
}

func (p *batchPruner) next(cutoff time.Time, size int) (int64, error) {
	p.calls++
	p.cutoffs = append(p.cutoffs, cutoff)
	p.sizes = append(p.sizes, size)
	if p.err != nil {
		return 0, p.err
	}
	if len(p.batches) == 0 {
		return 0, nil
	}
	n := p.batches[0]
	p.batches = p.batches[1:]
	return n, nil
}

type statisticPrunerStub struct{ *batchPruner }

func (s statisticPrunerStub) DeleteSuperseded(_ context.Context, params core.DeleteSupersededParams) (int64, error) {
	return s.next(params.OlderThan, params.BatchSize)
}

type deadLetterPrunerStub struct{ *batchPruner }

func (s deadLetterPrunerStub) DeleteDeadLetters(_ context.Context, params core.DeleteDeadLettersParams) (int64, error) {
	return s.next(params.OlderThan, params.BatchSize)
}

var cleanupNow = time.Date(2026, 6, 1, 3, 0, 0, 0, time.UTC)

func newTestCleanup(t *testing.T, stats, dead *batchPruner, sink *recordingSink) *CleanupService {
	t.Helper()
	return newTestCleanupWithAge(t, 30*24*time.Hour, stats, dead, sink)
}

func newTestCleanupWithAge(t *testing.T, statsMaxAge time.Duration, stats, dead *batchPruner, sink *recordingSink) *CleanupService {
	t.Helper()
	opts := CleanupServiceOptions{
		Statistics: statisticPrunerStub{stats},
		Config: config.CleanupConfig{
			StatisticsMaxAge: statsMaxAge,
			DeadLetterMaxAge: 14 * 24 * time.Hour,
			BatchSize:        100,
		},
		Clock:   func() time.Time { return cleanupNow },
		Logger:  discardLogger(),
		Metrics: sink,
	}
	if dead != nil {
		opts.DeadLetters = deadLetterPrunerStub{dead}
	}
	svc, err := NewCleanupService(opts)
	require.NoError(t, err)
	return svc
}

func TestCleanupService_RunDrainsBatches(t *testing.T) {
	stats := &batchPruner{batches: []int64{100, 100, 20}}
	dead := &batchPruner{batches: []int64{4}}
	sink := &recordingSink{}

	res, err := newTestCleanup(t, stats, dead, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{Statistics: 220, DeadLetters: 4}, res)

	assert.Equal(t, 4, stats.calls, "loops until a batch deletes nothing")
	assert.Equal(t, cleanupNow.Add(-30*24*time.Hour), stats.cutoffs[0])
	assert.Equal(t, 100, stats.sizes[0])
	assert.Equal(t, cleanupNow.Add(-14*24*time.Hour), dead.cutoffs[0])

	runs := sink.named("cleanup.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "success", runs[0].tags["result"])
	assert.Len(t, sink.named("cleanup.operation"), 2)
	assert.Len(t, sink.named("cleanup.last_success_epoch"), 1)
}

func TestCleanupService_RunWithoutDeadLetterStore(t *testing.T) {
	sink := &recordingSink{}
	res, err := newTestCleanup(t, &batchPruner{}, nil, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.DeadLetters)

	runs := sink.named("cleanup.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "noop", runs[0].tags["result"])
	assert.Len(t, sink.named("cleanup.operation"), 1)
}

func TestCleanupService_RunJoinsStepErrors(t *testing.T) {
	cause := errors.New("lock timeout")
	stats := &batchPruner{err: cause}
	dead := &batchPruner{batches: []int64{2}}
	sink := &recordingSink{}

	res, err := newTestCleanup(t, stats, dead, sink).Run(context.Background())
	require.ErrorIs(t, err, cause)
	assert.Equal(t, int64(2), res.DeadLetters, "later steps still run")

	runs := sink.named("cleanup.run")
	require.Len(t, runs, 1)
	assert.Equal(t, "error", runs[0].tags["result"])
	assert.NotEmpty(t, runs[0].tags["error_class"])
	assert.Empty(t, sink.named("cleanup.last_success_epoch"))
}

func TestCleanupService_RunCanceled(t *testing.T) {
	stats := &batchPruner{err: context.Canceled}
	dead := &batchPruner{err: context.DeadlineExceeded}

	_, err := newTestCleanup(t, stats, dead, &recordingSink{}).Run(context.Background())
	require.ErrorIs(t, err, context.Canceled)
}

func TestCleanupService_StatisticsKeptByDefault(t *testing.T) {
	stats := &batchPruner{batches: []int64{50}}
	dead := &batchPruner{batches: []int64{3}}
	sink := &recordingSink{}

	res, err := newTestCleanupWithAge(t, 0, stats, dead, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, CleanupResult{DeadLetters: 3}, res)
	assert.Zero(t, stats.calls, "observations are never deleted unless pruning is configured")

	ops := sink.named("cleanup.operation")
	require.Len(t, ops, 1)
	assert.Equal(t, "delete_dead_letters", ops[0].tags["operation"])
}

func TestNewCleanupService_RequiresStatisticsWhenPruning(t *testing.T) {
	_, err := NewCleanupService(CleanupServiceOptions{
		Config: config.CleanupConfig{StatisticsMaxAge: 48 * time.Hour},
	})
	require.Error(t, err)

	_, err = NewCleanupService(CleanupServiceOptions{})
	require.NoError(t, err)
}
