package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// BrandAggregator computes the rollup of one brand.
type BrandAggregator interface {
	Aggregate(ctx context.Context, brandID int64) (*model.BrandRollup, error)
}

// RollupSnapshotWriter persists a computed rollup.
type RollupSnapshotWriter interface {
	Save(ctx context.Context, rollup *model.BrandRollup) error
}

// AnalyticsServiceOptions groups dependencies for AnalyticsService.
type AnalyticsServiceOptions struct {
	Catalog    core.CatalogRepository // Required: brand enumeration
	Aggregator BrandAggregator        // Required
	Snapshots  RollupSnapshotWriter   // Optional: nil disables snapshots
	Logger     *slog.Logger
	Metrics    statsd.Sink
}

// AnalyticsResult summarizes one analytics run.
type AnalyticsResult struct {
	Brands    int `json:"brands"`
	Snapshots int `json:"snapshots"`
	Failed    int `json:"failed"`
}

// AnalyticsService snapshots every brand's rollup and reports it as gauges.
type AnalyticsService struct {
	catalog    core.CatalogRepository
	aggregator BrandAggregator
	snapshots  RollupSnapshotWriter
	logger     *slog.Logger
	metrics    statsd.Sink
}

// NewAnalyticsService constructs an AnalyticsService.
func NewAnalyticsService(opts AnalyticsServiceOptions) (*AnalyticsService, error) {
	if opts.Catalog == nil {
		return nil, errors.New("CatalogRepository is required")
	}
	if opts.Aggregator == nil {
		return nil, errors.New("BrandAggregator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalyticsService{
		catalog:    opts.Catalog,
		aggregator: opts.Aggregator,
		snapshots:  opts.Snapshots,
		logger:     logger.With("component", "analytics_service"),
		metrics:    opts.Metrics,
	}, nil
}

// Run processes every brand. Per-brand failures are joined and do not stop the others.
func (s *AnalyticsService) Run(ctx context.Context) (AnalyticsResult, error) {
	var res AnalyticsResult
	brandIDs, err := s.catalog.BrandIDs(ctx)
	if err != nil {
		return res, fmt.Errorf("list brands: %w", err)
	}

	var errs []error
	for _, brandID := range brandIDs {
		if ctx.Err() != nil {
			errs = append(errs, ctx.Err())
			break
		}
		res.Brands++
		if err := s.processBrand(ctx, brandID, &res); err != nil {
			res.Failed++
			errs = append(errs, fmt.Errorf("brand %d: %w", brandID, err))
		}
	}

	s.logger.InfoContext(ctx, "analytics run complete",
		"brands", res.Brands,
		"snapshots", res.Snapshots,
		"failed", res.Failed)
	return res, errors.Join(errs...)
}

func (s *AnalyticsService) processBrand(ctx context.Context, brandID int64, res *AnalyticsResult) error {
	r, err := s.aggregator.Aggregate(ctx, brandID)
	if err != nil {
		return err
	}
	s.emitGauges(r)

	if s.snapshots == nil {
		return nil
	}
	if err := s.snapshots.Save(ctx, r); err != nil {
		return err
	}
	res.Snapshots++
	return nil
}

func (s *AnalyticsService) emitGauges(r *model.BrandRollup) {
	if s.metrics == nil {
		return
	}
	brand := strconv.FormatInt(r.BrandID, 10)
	for _, p := range model.Providers() {
		tags := map[string]string{"provider": string(p), "brand_id": brand}
		s.metrics.Gauge("analytics.average_positioning", r.Statistics.For(p).AveragePositioning, tags)
	}
	s.metrics.Gauge("analytics.questions", float64(r.QuestionsCount),
		metrics.CloneTags(map[string]string{"brand_id": brand}))
}
