package service

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

func TestDispatcher_Register(t *testing.T) {
	d := NewDispatcher(DispatcherOptions{Logger: discardLogger()})
	noop := func(context.Context, model.JobMessage) error { return nil }

	require.NoError(t, d.Register(model.JobTypeCleanup, noop))
	require.Error(t, d.Register(model.JobTypeCleanup, noop), "duplicate registration")
	require.Error(t, d.Register(model.JobTypeAnalytics, nil), "nil handler")
}

func TestDispatcher_Dispatch(t *testing.T) {
	var got []model.JobMessage
	handlerErr := errors.New("handler failed")
	sink := &recordingSink{}

	d := NewDispatcher(DispatcherOptions{Logger: discardLogger(), Metrics: sink})
	require.NoError(t, d.RegisterAll(map[model.JobType]core.JobHandler{
		model.JobTypeCleanup: func(_ context.Context, msg model.JobMessage) error {
			got = append(got, msg)
			return nil
		},
		model.JobTypeAnalytics: func(context.Context, model.JobMessage) error {
			return handlerErr
		},
	}))

	tests := []struct {
		name    string
		body    []byte
		wantErr error
	}{
		{name: "known type", body: encodeJob(model.JobTypeCleanup, model.CleanupData{})},
		{name: "handler error", body: encodeJob(model.JobTypeAnalytics, model.AnalyticsData{}), wantErr: handlerErr},
		{name: "unknown type is acknowledged", body: []byte(`{"type":"REINDEX","data":{}}`)},
		{name: "malformed body is acknowledged", body: []byte(`{not json`)},
		{name: "missing type is acknowledged", body: []byte(`{"data":{}}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := d.Dispatch(context.Background(), tt.body)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
		})
	}

	require.Len(t, got, 1)
	assert.Equal(t, model.JobTypeCleanup, got[0].Type)
	assert.Len(t, sink.named("job.transition"), len(tests))
}

func TestDispatcher_UnknownTypeIsWarnedNotDropped(t *testing.T) {
	var buf bytes.Buffer
	d := NewDispatcher(DispatcherOptions{Logger: slog.New(slog.NewJSONHandler(&buf, nil))})

	require.NoError(t, d.Dispatch(context.Background(), []byte(`{"type":"BOGUS","data":{},"timestamp":"2025-01-01T00:00:00.000Z"}`)))
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), `"msg":"no handler for job type"`)
	assert.Contains(t, buf.String(), `"job_type":"BOGUS"`)
	assert.NotContains(t, buf.String(), "malformed")

	buf.Reset()
	require.NoError(t, d.Dispatch(context.Background(), []byte(`{not json`)))
	assert.Contains(t, buf.String(), `"level":"ERROR"`)
	assert.Contains(t, buf.String(), "dropping malformed job message")
}
