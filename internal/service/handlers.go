package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
)

// QuestionRegenerator regenerates one question's answers.
type QuestionRegenerator interface {
	Regenerate(ctx context.Context, questionID int64) (*model.Question, error)
}

// CleanupRunner runs one cleanup pass.
type CleanupRunner interface {
	Run(ctx context.Context) (CleanupResult, error)
}

// AnalyticsRunner runs one analytics pass.
type AnalyticsRunner interface {
	Run(ctx context.Context) (AnalyticsResult, error)
}

// JobHandlersOptions groups dependencies for JobHandlers.
type JobHandlersOptions struct {
	Regenerator QuestionRegenerator // Required
	Cleanup     CleanupRunner       // Required
	Analytics   AnalyticsRunner     // Required
	// Concurrency bounds parallel question regenerations within one message.
	Concurrency int
	Logger      *slog.Logger
}

// JobHandlers implements the handler of every job type.
type JobHandlers struct {
	regenerator QuestionRegenerator
	cleanup     CleanupRunner
	analytics   AnalyticsRunner
	concurrency int
	logger      *slog.Logger
}

// NewJobHandlers constructs JobHandlers.
func NewJobHandlers(opts JobHandlersOptions) (*JobHandlers, error) {
	switch {
	case opts.Regenerator == nil:
		return nil, errors.New("QuestionRegenerator is required")
	case opts.Cleanup == nil:
		return nil, errors.New("CleanupRunner is required")
	case opts.Analytics == nil:
		return nil, errors.New("AnalyticsRunner is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &JobHandlers{
		regenerator: opts.Regenerator,
		cleanup:     opts.Cleanup,
		analytics:   opts.Analytics,
		concurrency: max(opts.Concurrency, 1),
		logger:      logger.With("component", "job_handlers"),
	}, nil
}

// Handlers returns the handler table for the dispatcher.
func (h *JobHandlers) Handlers() map[model.JobType]core.JobHandler {
	return map[model.JobType]core.JobHandler{
		model.JobTypeUpdateStatistics: h.UpdateStatistics,
		model.JobTypeCleanup:          h.Cleanup,
		model.JobTypeAnalytics:        h.Analytics,
	}
}

// UpdateStatistics regenerates every question carried by the message. Missing questions are skipped.
func (h *JobHandlers) UpdateStatistics(ctx context.Context, msg model.JobMessage) error {
	var data model.UpdateStatisticsData
	if err := msg.DecodeData(&data); err != nil {
		return err
	}
	if len(data.QuestionIDs) == 0 {
		h.logger.InfoContext(ctx, "statistics update without questions", "user_id", data.UserID)
		return nil
	}

	var (
		mu   sync.Mutex
		errs []error
	)
	var g errgroup.Group
	g.SetLimit(h.concurrency)
	for _, id := range data.QuestionIDs {
		g.Go(func() error {
			_, err := h.regenerator.Regenerate(ctx, id)
			switch {
			case err == nil:
			case errors.Is(err, model.ErrQuestionNotFound):
				h.logger.WarnContext(ctx, "question no longer exists, skipping", "question_id", id)
			default:
				mu.Lock()
				errs = append(errs, fmt.Errorf("question %d: %w", id, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	h.logger.InfoContext(ctx, "statistics update handled",
		"user_id", data.UserID,
		"triggered_by", data.TriggeredBy,
		"questions", len(data.QuestionIDs),
		"failed", len(errs))
	return errors.Join(errs...)
}

// Cleanup runs the cleanup pass.
func (h *JobHandlers) Cleanup(ctx context.Context, msg model.JobMessage) error {
	res, err := h.cleanup.Run(ctx)
	h.logger.InfoContext(ctx, "cleanup handled",
		"statistics_deleted", res.Statistics,
		"dead_letters_deleted", res.DeadLetters,
		"timestamp", msg.Timestamp)
	return err
}

// Analytics runs the analytics pass.
func (h *JobHandlers) Analytics(ctx context.Context, msg model.JobMessage) error {
	res, err := h.analytics.Run(ctx)
	h.logger.InfoContext(ctx, "analytics handled",
		"brands", res.Brands,
		"failed", res.Failed,
		"timestamp", msg.Timestamp)
	return err
}
