package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/mocks"
)

type aggregateFunc func(ctx context.Context, brandID int64) (*model.BrandRollup, error)

func (f aggregateFunc) Aggregate(ctx context.Context, brandID int64) (*model.BrandRollup, error) {
	return f(ctx, brandID)
}

type snapshotRecorder struct {
	saved []int64
	err   error
}

func (r *snapshotRecorder) Save(_ context.Context, rollup *model.BrandRollup) error {
	if r.err != nil {
		return r.err
	}
	r.saved = append(r.saved, rollup.BrandID)
	return nil
}

func rollupFor(brandID int64, chatgptAvg float64) *model.BrandRollup {
	r := &model.BrandRollup{BrandID: brandID, QuestionsCount: 2}
	r.Statistics.ChatGPT = model.EmptyProviderRollup()
	r.Statistics.ChatGPT.AveragePositioning = chatgptAvg
	r.Statistics.Gemini = model.EmptyProviderRollup()
	return r
}

func TestAnalyticsService_Run(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	catalog.EXPECT().BrandIDs(gomock.Any()).Return([]int64{1, 2, 3}, nil)

	aggErr := errors.New("query failed")
	snapshots := &snapshotRecorder{}
	sink := &recordingSink{}
	svc, err := NewAnalyticsService(AnalyticsServiceOptions{
		Catalog: catalog,
		Aggregator: aggregateFunc(func(_ context.Context, id int64) (*model.BrandRollup, error) {
			if id == 2 {
				return nil, aggErr
			}
			return rollupFor(id, 1.5), nil
		}),
		Snapshots: snapshots,
		Logger:    discardLogger(),
		Metrics:   sink,
	})
	require.NoError(t, err)

	res, err := svc.Run(context.Background())
	require.ErrorIs(t, err, aggErr)
	assert.Equal(t, AnalyticsResult{Brands: 3, Snapshots: 2, Failed: 1}, res)
	assert.Equal(t, []int64{1, 3}, snapshots.saved)

	gauges := sink.named("analytics.average_positioning")
	require.Len(t, gauges, 4, "one gauge per provider per successful brand")
	assert.Equal(t, "chatgpt", gauges[0].tags["provider"])
	assert.Equal(t, "1", gauges[0].tags["brand_id"])
	assert.InDelta(t, 1.5, gauges[0].value, 1e-9)
	assert.Len(t, sink.named("analytics.questions"), 2)
}

func TestAnalyticsService_RunWithoutSnapshots(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	catalog.EXPECT().BrandIDs(gomock.Any()).Return([]int64{4}, nil)

	svc, err := NewAnalyticsService(AnalyticsServiceOptions{
		Catalog: catalog,
		Aggregator: aggregateFunc(func(_ context.Context, id int64) (*model.BrandRollup, error) {
			return rollupFor(id, 0), nil
		}),
		Logger: discardLogger(),
	})
	require.NoError(t, err)

	res, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AnalyticsResult{Brands: 1}, res)
}

func TestAnalyticsService_RunListError(t *testing.T) {
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	catalog.EXPECT().BrandIDs(gomock.Any()).Return(nil, assert.AnError)

	svc, err := NewAnalyticsService(AnalyticsServiceOptions{
		Catalog:    catalog,
		Aggregator: aggregateFunc(func(context.Context, int64) (*model.BrandRollup, error) { return nil, nil }),
	})
	require.NoError(t, err)

	_, err = svc.Run(context.Background())
	require.ErrorIs(t, err, assert.AnError)
}
