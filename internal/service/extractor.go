package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/domain/positioning"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// ExtractorOptions groups dependencies for Extractor.
type ExtractorOptions struct {
	Generator core.TextGenerator // Required: model used for the analysis
	Provider  string             // Optional: provider name for logs and metrics
	Timeout   time.Duration      // Optional: per-call timeout (0 = caller's deadline only)
	Logger    *slog.Logger
	Metrics   statsd.Sink
}

// Extractor turns a free-text answer into a PositioningRecord using a language model.
type Extractor struct {
	generator core.TextGenerator
	provider  string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   statsd.Sink
}

// NewExtractor constructs an Extractor.
func NewExtractor(opts ExtractorOptions) (*Extractor, error) {
	if opts.Generator == nil {
		return nil, errors.New("TextGenerator is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Extractor{
		generator: opts.Generator,
		provider:  opts.Provider,
		timeout:   opts.Timeout,
		logger:    logger.With("component", "positioning_extractor", "provider", opts.Provider),
		metrics:   opts.Metrics,
	}, nil
}

// Extract analyzes answer for brandName. Every failure yields the zero record.
func (e *Extractor) Extract(ctx context.Context, answer, brandName string) model.PositioningRecord {
	if strings.TrimSpace(answer) == "" {
		e.emit(metrics.ResultNoop, nil, 0)
		return model.ZeroPositioning()
	}

	callCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	text, err := e.generator.Generate(callCtx, positioning.AnalysisPrompt(answer, brandName))
	elapsed := time.Since(start)
	if err != nil {
		e.logger.WarnContext(ctx, "positioning analysis call failed",
			"brand", brandName,
			"duration", elapsed,
			"error", err)
		e.emit(metrics.ResultError, err, elapsed)
		return model.ZeroPositioning()
	}

	rec, err := positioning.Parse(text)
	if err != nil {
		e.logger.WarnContext(ctx, "positioning analysis unparseable",
			"brand", brandName,
			"response_length", len(text),
			"error", err)
		e.emit(metrics.ResultError, err, elapsed)
		return model.ZeroPositioning()
	}

	e.emit(metrics.ResultSuccess, nil, elapsed)
	return rec
}

func (e *Extractor) emit(result string, err error, elapsed time.Duration) {
	if e.metrics == nil {
		return
	}
	tags := metrics.ResultTags(result, err)
	tags["provider"] = e.provider
	e.metrics.Count("positioning.extract", 1, tags)
	if elapsed > 0 {
		e.metrics.Timing("positioning.extract_duration", elapsed, metrics.CloneTags(tags))
	}
}
