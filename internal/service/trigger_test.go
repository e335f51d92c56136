package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/mocks"
)

var triggerNow = time.Date(2026, 5, 10, 1, 30, 0, 0, time.UTC)

func newTestTriggerService(t *testing.T, catalog *mocks.MockCatalogRepository, enq *mocks.MockJobEnqueuer) *TriggerService {
	t.Helper()
	svc, err := NewTriggerService(TriggerServiceOptions{
		Catalog:  catalog,
		Enqueuer: enq,
		Clock:    func() time.Time { return triggerNow },
		Logger:   discardLogger(),
	})
	require.NoError(t, err)
	return svc
}

func TestTriggerService_UpdateStatisticsFanOut(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	enq := mocks.NewMockJobEnqueuer(ctrl)
	svc := newTestTriggerService(t, catalog, enq)
	ctx := context.Background()

	catalog.EXPECT().ActiveUserIDs(ctx).Return([]int64{1, 2, 3, 4}, nil)
	catalog.EXPECT().QuestionIDsForUser(ctx, int64(1)).Return([]int64{12, 11}, nil)
	catalog.EXPECT().QuestionIDsForUser(ctx, int64(2)).Return(nil, nil)
	catalog.EXPECT().QuestionIDsForUser(ctx, int64(3)).Return([]int64{30}, nil)
	catalog.EXPECT().QuestionIDsForUser(ctx, int64(4)).Return([]int64{40}, nil)

	var sent []model.UpdateStatisticsData
	enq.EXPECT().Enqueue(ctx, gomock.Any()).Times(3).DoAndReturn(func(_ context.Context, msg model.JobMessage) (string, error) {
		assert.Equal(t, model.JobTypeUpdateStatistics, msg.Type)
		var data model.UpdateStatisticsData
		require.NoError(t, msg.DecodeData(&data))
		sent = append(sent, data)
		if data.UserID == 3 {
			return "", &model.DeliveryError{JobType: msg.Type, Err: errors.New("throttled")}
		}
		return "id", nil
	})

	res, err := svc.TriggerUpdateStatistics(ctx, model.TriggerRequest{Source: model.TriggerSourceManual})
	require.NoError(t, err)
	assert.Equal(t, FanOutResult{Enqueued: 2, Failed: 1, Skipped: 1}, res)

	require.Len(t, sent, 3)
	assert.Equal(t, []int64{12, 11}, sent[0].QuestionIDs)
	assert.Equal(t, int64(4), sent[2].UserID, "fan-out continues after a failed user")
	assert.Equal(t, model.TriggerSourceManual, sent[0].TriggeredBy)
	assert.True(t, sent[0].TriggeredAt.Equal(triggerNow))
}

func TestTriggerService_UpdateStatisticsUserListFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	svc := newTestTriggerService(t, catalog, mocks.NewMockJobEnqueuer(ctrl))

	catalog.EXPECT().ActiveUserIDs(gomock.Any()).Return(nil, errors.New("db down"))

	_, err := svc.TriggerUpdateStatistics(context.Background(), model.TriggerRequest{Source: model.TriggerSourceCron})
	require.Error(t, err)
}

func TestTriggerService_SingleMessageTriggers(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mocks.NewMockJobEnqueuer(ctrl)
	svc := newTestTriggerService(t, mocks.NewMockCatalogRepository(ctrl), enq)
	ctx := context.Background()

	enq.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, msg model.JobMessage) (string, error) {
		assert.Equal(t, model.JobTypeCleanup, msg.Type)
		var data model.CleanupData
		require.NoError(t, msg.DecodeData(&data))
		assert.Equal(t, model.TriggerSourceCron, data.TriggeredBy)
		return "c-1", nil
	})
	id, err := svc.TriggerCleanup(ctx, model.TriggerRequest{Source: model.TriggerSourceCron})
	require.NoError(t, err)
	assert.Equal(t, "c-1", id)

	deliveryErr := &model.DeliveryError{JobType: model.JobTypeAnalytics, Err: errors.New("down")}
	enq.EXPECT().Enqueue(ctx, gomock.Any()).Return("", deliveryErr)
	_, err = svc.TriggerAnalytics(ctx, model.TriggerRequest{Source: model.TriggerSourceManual})
	assert.True(t, model.IsDeliveryError(err))
}

func TestTriggerService_ParamsReachPayload(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mocks.NewMockJobEnqueuer(ctrl)
	svc := newTestTriggerService(t, mocks.NewMockCatalogRepository(ctrl), enq)
	ctx := context.Background()

	enq.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, msg model.JobMessage) (string, error) {
		var wire map[string]any
		require.NoError(t, json.Unmarshal(msg.Data, &wire))
		assert.Equal(t, "manual", wire["triggeredBy"])
		assert.Equal(t, map[string]any{"reason": "backfill"}, wire["params"])
		return "a-1", nil
	})
	_, err := svc.TriggerAnalytics(ctx, model.TriggerRequest{
		Source: model.TriggerSourceManual,
		Params: json.RawMessage(`{"reason":"backfill"}`),
	})
	require.NoError(t, err)

	enq.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, msg model.JobMessage) (string, error) {
		assert.NotContains(t, string(msg.Data), "params")
		return "c-2", nil
	})
	_, err = svc.TriggerCleanup(ctx, model.TriggerRequest{Source: model.TriggerSourceCron})
	require.NoError(t, err)
}

func TestTriggerService_Tick(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	enq := mocks.NewMockJobEnqueuer(ctrl)
	svc := newTestTriggerService(t, catalog, enq)
	ctx := context.Background()

	// Nothing is due before 02:00.
	fired, err := svc.Tick(ctx, triggerNow.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, fired)

	// At 03:30 the 02:00 and 03:00 triggers are due; each fires once.
	catalog.EXPECT().ActiveUserIDs(ctx).Return(nil, nil)
	enq.EXPECT().Enqueue(ctx, gomock.Any()).DoAndReturn(func(_ context.Context, msg model.JobMessage) (string, error) {
		assert.Equal(t, model.JobTypeCleanup, msg.Type)
		return "id", nil
	})
	at := time.Date(2026, 5, 10, 3, 30, 0, 0, time.UTC)
	fired, err = svc.Tick(ctx, at)
	require.NoError(t, err)
	assert.Equal(t, 2, fired)

	// Advanced triggers do not fire again the same day.
	fired, err = svc.Tick(ctx, at.Add(time.Minute))
	require.NoError(t, err)
	assert.Zero(t, fired)

	status := svc.Status()
	require.Len(t, status, 3)
	assert.Equal(t, TriggerNameUpdateStatistics, status[0].Name)
	assert.Equal(t, "0 2 * * *", status[0].Schedule)
	require.NotNil(t, status[0].LastRun)
	assert.True(t, status[0].LastRun.Equal(at))
	assert.Equal(t, time.Date(2026, 5, 11, 2, 0, 0, 0, time.UTC), status[0].NextRun)
	assert.Equal(t, time.Date(2026, 5, 10, 4, 0, 0, 0, time.UTC), status[2].NextRun)
	assert.Nil(t, status[2].LastRun)
}

func TestTriggerService_MissedFiresCollapse(t *testing.T) {
	ctrl := gomock.NewController(t)
	enq := mocks.NewMockJobEnqueuer(ctrl)
	svc, err := NewTriggerService(TriggerServiceOptions{
		Catalog:  mocks.NewMockCatalogRepository(ctrl),
		Enqueuer: enq,
		Config: config.SchedulerConfig{
			UpdateStatisticsSchedule: "0 0 1 1 *",
			CleanupSchedule:          "*/5 * * * *",
			AnalyticsSchedule:        "0 0 1 1 *",
		},
		Clock:  func() time.Time { return triggerNow },
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	enq.EXPECT().Enqueue(gomock.Any(), gomock.Any()).Return("id", nil).Times(1)
	fired, err := svc.Tick(context.Background(), triggerNow.Add(6*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestNewTriggerService_InvalidSchedule(t *testing.T) {
	ctrl := gomock.NewController(t)
	_, err := NewTriggerService(TriggerServiceOptions{
		Catalog:  mocks.NewMockCatalogRepository(ctrl),
		Enqueuer: mocks.NewMockJobEnqueuer(ctrl),
		Config:   config.SchedulerConfig{CleanupSchedule: "every day"},
	})
	require.Error(t, err)
}
