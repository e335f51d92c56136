package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/domain/model"
	"github.com/target/brandpulse/internal/observability/metrics"
	"github.com/target/brandpulse/internal/observability/statsd"
)

// Calendar trigger names.
const (
	TriggerNameUpdateStatistics = "update-statistics"
	TriggerNameCleanup          = "cleanup"
	TriggerNameAnalytics        = "analytics"
)

// TriggerServiceOptions groups dependencies for TriggerService.
type TriggerServiceOptions struct {
	Catalog  core.CatalogRepository // Required: user and question lookup for the fan-out
	Enqueuer core.JobEnqueuer       // Required
	Config   config.SchedulerConfig // Cron expressions; empty fields use the defaults
	Clock    func() time.Time       // Optional: defaults to time.Now
	Logger   *slog.Logger
	Metrics  statsd.Sink
}

// FanOutResult reports the outcome of an UPDATE_STATISTICS fan-out.
type FanOutResult struct {
	Enqueued int `json:"enqueued"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
}

type calendarTrigger struct {
	name     string
	spec     string
	jobType  model.JobType
	schedule cron.Schedule
	next     time.Time
	last     *time.Time
}

// TriggerService emits job messages on calendar schedules and on demand.
type TriggerService struct {
	catalog  core.CatalogRepository
	enqueuer core.JobEnqueuer
	clock    func() time.Time
	logger   *slog.Logger
	metrics  statsd.Sink

	mu       sync.Mutex
	triggers []*calendarTrigger
}

// NewTriggerService parses the configured cron expressions and constructs a TriggerService.
func NewTriggerService(opts TriggerServiceOptions) (*TriggerService, error) {
	if opts.Catalog == nil {
		return nil, errors.New("CatalogRepository is required")
	}
	if opts.Enqueuer == nil {
		return nil, errors.New("JobEnqueuer is required")
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &TriggerService{
		catalog:  opts.Catalog,
		enqueuer: opts.Enqueuer,
		clock:    clock,
		logger:   logger.With("component", "trigger_service"),
		metrics:  opts.Metrics,
	}

	now := clock().UTC()
	specs := []struct {
		name    string
		spec    string
		def     string
		jobType model.JobType
	}{
		{TriggerNameUpdateStatistics, opts.Config.UpdateStatisticsSchedule, config.DefaultUpdateStatisticsSchedule, model.JobTypeUpdateStatistics},
		{TriggerNameCleanup, opts.Config.CleanupSchedule, config.DefaultCleanupSchedule, model.JobTypeCleanup},
		{TriggerNameAnalytics, opts.Config.AnalyticsSchedule, config.DefaultAnalyticsSchedule, model.JobTypeAnalytics},
	}
	for _, sp := range specs {
		expr := sp.spec
		if expr == "" {
			expr = sp.def
		}
		sched, err := cron.ParseStandard(expr)
		if err != nil {
			return nil, fmt.Errorf("parse %s schedule %q: %w", sp.name, expr, err)
		}
		s.triggers = append(s.triggers, &calendarTrigger{
			name:     sp.name,
			spec:     expr,
			jobType:  sp.jobType,
			schedule: sched,
			next:     sched.Next(now),
		})
	}
	return s, nil
}

// Tick fires every trigger whose next fire time is at or before now and advances it.
// Fires missed while the process was down collapse into one. It returns the number of fired triggers.
func (s *TriggerService) Tick(ctx context.Context, now time.Time) (int, error) {
	now = now.UTC()

	s.mu.Lock()
	var due []*calendarTrigger
	for _, t := range s.triggers {
		if t.next.After(now) {
			continue
		}
		fired := now
		t.last = &fired
		t.next = t.schedule.Next(now)
		due = append(due, t)
	}
	s.mu.Unlock()

	var errs []error
	for _, t := range due {
		s.logger.InfoContext(ctx, "calendar trigger fired", "trigger", t.name, "job_type", t.jobType)
		if err := s.fire(ctx, t.jobType); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", t.name, err))
		}
	}
	return len(due), errors.Join(errs...)
}

func (s *TriggerService) fire(ctx context.Context, jobType model.JobType) error {
	scheduled := model.TriggerRequest{Source: model.TriggerSourceCron}
	switch jobType {
	case model.JobTypeUpdateStatistics:
		_, err := s.TriggerUpdateStatistics(ctx, scheduled)
		return err
	case model.JobTypeCleanup:
		_, err := s.TriggerCleanup(ctx, scheduled)
		return err
	case model.JobTypeAnalytics:
		_, err := s.TriggerAnalytics(ctx, scheduled)
		return err
	default:
		return fmt.Errorf("no trigger for job type %s", jobType)
	}
}

// TriggerUpdateStatistics enqueues one UPDATE_STATISTICS message per active user that owns questions.
// Per-user enqueue failures are logged and counted; only a failure to list users is returned.
func (s *TriggerService) TriggerUpdateStatistics(ctx context.Context, req model.TriggerRequest) (FanOutResult, error) {
	var res FanOutResult
	userIDs, err := s.catalog.ActiveUserIDs(ctx)
	if err != nil {
		s.emitTrigger(model.JobTypeUpdateStatistics, metrics.ResultError, err)
		return res, fmt.Errorf("list active users: %w", err)
	}

	info := s.triggerInfo(req)
	for _, userID := range userIDs {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		questionIDs, qErr := s.catalog.QuestionIDsForUser(ctx, userID)
		if qErr != nil {
			s.logger.ErrorContext(ctx, "failed to list questions for user", "user_id", userID, "error", qErr)
			res.Failed++
			continue
		}
		if len(questionIDs) == 0 {
			res.Skipped++
			continue
		}

		msg, mErr := model.NewJobMessage(model.JobTypeUpdateStatistics, model.UpdateStatisticsData{
			TriggerInfo: info,
			UserID:      userID,
			QuestionIDs: questionIDs,
		}, s.clock())
		if mErr == nil {
			_, mErr = s.enqueuer.Enqueue(ctx, msg)
		}
		if mErr != nil {
			s.logger.ErrorContext(ctx, "failed to enqueue statistics update",
				"user_id", userID,
				"questions", len(questionIDs),
				"error", mErr)
			res.Failed++
			continue
		}
		res.Enqueued++
	}

	s.logger.InfoContext(ctx, "statistics update fan-out complete",
		"triggered_by", info.TriggeredBy,
		"users", len(userIDs),
		"enqueued", res.Enqueued,
		"failed", res.Failed,
		"skipped", res.Skipped)
	s.emitTrigger(model.JobTypeUpdateStatistics, metrics.CountResult(int64(res.Enqueued), nil), nil)
	return res, nil
}

// TriggerCleanup enqueues one CLEANUP message.
func (s *TriggerService) TriggerCleanup(ctx context.Context, req model.TriggerRequest) (string, error) {
	return s.enqueueSingle(ctx, model.JobTypeCleanup, model.CleanupData{TriggerInfo: s.triggerInfo(req)})
}

// TriggerAnalytics enqueues one ANALYTICS message.
func (s *TriggerService) TriggerAnalytics(ctx context.Context, req model.TriggerRequest) (string, error) {
	return s.enqueueSingle(ctx, model.JobTypeAnalytics, model.AnalyticsData{TriggerInfo: s.triggerInfo(req)})
}

func (s *TriggerService) enqueueSingle(ctx context.Context, jobType model.JobType, data any) (string, error) {
	msg, err := model.NewJobMessage(jobType, data, s.clock())
	if err != nil {
		return "", err
	}
	id, err := s.enqueuer.Enqueue(ctx, msg)
	if err != nil {
		s.emitTrigger(jobType, metrics.ResultError, err)
		return "", err
	}
	s.logger.InfoContext(ctx, "job triggered", "job_type", jobType, "message_id", id)
	s.emitTrigger(jobType, metrics.ResultSuccess, nil)
	return id, nil
}

// Status lists the calendar triggers ordered as configured.
func (s *TriggerService) Status() []model.ScheduledJobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.ScheduledJobInfo, 0, len(s.triggers))
	for _, t := range s.triggers {
		info := model.ScheduledJobInfo{
			Name:     t.name,
			Schedule: t.spec,
			JobType:  t.jobType,
			NextRun:  t.next,
		}
		if t.last != nil {
			last := *t.last
			info.LastRun = &last
		}
		out = append(out, info)
	}
	return out
}

func (s *TriggerService) triggerInfo(req model.TriggerRequest) model.TriggerInfo {
	source := req.Source
	if !source.Valid() {
		source = model.TriggerSourceManual
	}
	return model.TriggerInfo{TriggeredBy: source, TriggeredAt: s.clock().UTC(), Params: req.Params}
}

func (s *TriggerService) emitTrigger(jobType model.JobType, result string, err error) {
	if s.metrics == nil {
		return
	}
	tags := metrics.ResultTags(result, err)
	tags["job_type"] = string(jobType)
	s.metrics.Count("scheduler.trigger", 1, tags)
}
