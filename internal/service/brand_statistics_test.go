package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/target/brandpulse/internal/domain/model"
	apperrors "github.com/target/brandpulse/internal/errors"
	"github.com/target/brandpulse/internal/mocks"
)

func newTestBrandStatistics(t *testing.T) (*BrandStatisticsService, *mocks.MockCatalogRepository, *mocks.MockStatisticRepository) {
	t.Helper()
	ctrl := gomock.NewController(t)
	catalog := mocks.NewMockCatalogRepository(ctrl)
	stats := mocks.NewMockStatisticRepository(ctrl)
	svc, err := NewBrandStatisticsService(BrandStatisticsServiceOptions{
		Catalog:    catalog,
		Statistics: stats,
		Logger:     discardLogger(),
	})
	require.NoError(t, err)
	return svc, catalog, stats
}

func TestBrandStatisticsService_Aggregate(t *testing.T) {
	svc, catalog, stats := newTestBrandStatistics(t)
	ctx := context.Background()

	catalog.EXPECT().BrandName(ctx, int64(7)).Return("Acme", nil)
	catalog.EXPECT().QuestionIDs(ctx, int64(7)).Return([]int64{1, 2}, nil)
	stats.EXPECT().ByQuestions(ctx, []int64{1, 2}).Return([]model.Statistic{
		{
			ID: 1, QuestionID: 1, CreatedAt: time.Now(),
			ChatGPT: model.PositioningRecord{Positioning: map[string]float64{"Acme": 1, "Zenith": 3}, Density: map[string]float64{"Acme": 70, "Zenith": 30}},
			Gemini:  model.PositioningRecord{Positioning: map[string]float64{"acme": 2}, Density: map[string]float64{"acme": 100}},
		},
		{
			ID: 2, QuestionID: 2, CreatedAt: time.Now(),
			ChatGPT: model.PositioningRecord{Positioning: map[string]float64{"ACME": 3}, Density: map[string]float64{"ACME": 50}},
			Gemini:  model.ZeroPositioning(),
		},
	}, nil)

	out, err := svc.Aggregate(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), out.BrandID)
	assert.Equal(t, "Acme", out.BrandName)
	assert.Equal(t, 2, out.QuestionsCount)

	chatgpt := out.Statistics.ChatGPT
	assert.InDelta(t, 2.0, chatgpt.Positioning["acme"], 1e-9)
	assert.InDelta(t, 3.0, chatgpt.Positioning["zenith"], 1e-9)
	assert.InDelta(t, 120.0, chatgpt.Density["acme"], 1e-9, "density is summed, not renormalized")
	assert.InDelta(t, 7.0/3.0, chatgpt.AveragePositioning, 1e-9)

	assert.InDelta(t, 2.0, out.Statistics.Gemini.AveragePositioning, 1e-9)
}

func TestBrandStatisticsService_AggregateNoQuestions(t *testing.T) {
	svc, catalog, _ := newTestBrandStatistics(t)
	ctx := context.Background()

	catalog.EXPECT().BrandName(ctx, int64(3)).Return("Quiet", nil)
	catalog.EXPECT().QuestionIDs(ctx, int64(3)).Return(nil, nil)

	out, err := svc.Aggregate(ctx, 3)
	require.NoError(t, err)
	assert.Zero(t, out.QuestionsCount)
	assert.NotNil(t, out.Statistics.ChatGPT.Positioning)
	assert.NotNil(t, out.Statistics.Gemini.Density)
	assert.Zero(t, out.Statistics.Gemini.AveragePositioning)
}

func TestBrandStatisticsService_AggregateErrors(t *testing.T) {
	t.Run("unknown brand", func(t *testing.T) {
		svc, catalog, _ := newTestBrandStatistics(t)
		catalog.EXPECT().BrandName(gomock.Any(), int64(404)).Return("", model.ErrBrandNotFound)

		_, err := svc.Aggregate(context.Background(), 404)
		assert.True(t, apperrors.IsNotFound(err))
		require.ErrorIs(t, err, model.ErrBrandNotFound)
	})

	t.Run("store failure", func(t *testing.T) {
		svc, catalog, stats := newTestBrandStatistics(t)
		cause := errors.New("timeout")
		catalog.EXPECT().BrandName(gomock.Any(), int64(1)).Return("Acme", nil)
		catalog.EXPECT().QuestionIDs(gomock.Any(), int64(1)).Return([]int64{5}, nil)
		stats.EXPECT().ByQuestions(gomock.Any(), []int64{5}).Return(nil, cause)

		_, err := svc.Aggregate(context.Background(), 1)
		require.ErrorIs(t, err, cause)
		assert.False(t, apperrors.IsNotFound(err))
	})
}
