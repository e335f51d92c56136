package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/domain/rollup"
	apperrors "github.com/target/brandpulse/internal/errors"
)

// BrandStatisticsServiceOptions groups dependencies for BrandStatisticsService.
type BrandStatisticsServiceOptions struct {
	Catalog    core.CatalogRepository   // Required
	Statistics core.StatisticRepository // Required
	Logger     *slog.Logger
}

// BrandStatisticsService computes brand-level rollups on demand.
type BrandStatisticsService struct {
	catalog    core.CatalogRepository
	statistics core.StatisticRepository
	logger     *slog.Logger
}

// NewBrandStatisticsService constructs a BrandStatisticsService.
func NewBrandStatisticsService(opts BrandStatisticsServiceOptions) (*BrandStatisticsService, error) {
	if opts.Catalog == nil {
		return nil, errors.New("CatalogRepository is required")
	}
	if opts.Statistics == nil {
		return nil, errors.New("StatisticRepository is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BrandStatisticsService{
		catalog:    opts.Catalog,
		statistics: opts.Statistics,
		logger:     logger.With("component", "brand_statistics_service"),
	}, nil
}

// Aggregate folds every observation of the brand's questions into a BrandRollup.
// An unknown brand yields an AppError with code not_found.
func (s *BrandStatisticsService) Aggregate(ctx context.Context, brandID int64) (*model.BrandRollup, error) {
	name, err := s.catalog.BrandName(ctx, brandID)
	if err != nil {
		if errors.Is(err, model.ErrBrandNotFound) || apperrors.IsNotFound(err) {
			return nil, apperrors.Wrapf(err, apperrors.ErrCodeNotFound, "brand %d not found", brandID)
		}
		return nil, fmt.Errorf("resolve brand %d: %w", brandID, err)
	}

	questionIDs, err := s.catalog.QuestionIDs(ctx, brandID)
	if err != nil {
		return nil, fmt.Errorf("list questions of brand %d: %w", brandID, err)
	}

	out := &model.BrandRollup{
		BrandID:        brandID,
		BrandName:      name,
		QuestionsCount: len(questionIDs),
		Statistics:     rollup.Empty(),
	}
	if len(questionIDs) == 0 {
		return out, nil
	}

	stats, err := s.statistics.ByQuestions(ctx, questionIDs)
	if err != nil {
		return nil, fmt.Errorf("load statistics of brand %d: %w", brandID, err)
	}
	out.Statistics = rollup.Fold(stats)

	s.logger.DebugContext(ctx, "brand rollup computed",
		"brand_id", brandID,
		"questions", len(questionIDs),
		"observations", len(stats))
	return out, nil
}
