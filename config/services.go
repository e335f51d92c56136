package config

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ServiceMode represents the available service modes.
type ServiceMode string

const (
	// ServiceModeHTTP runs the ops HTTP server.
	ServiceModeHTTP ServiceMode = "http"
	// ServiceModeScheduler runs the calendar triggers.
	ServiceModeScheduler ServiceMode = "scheduler"
	// ServiceModeConsumer runs the queue drain cycle.
	ServiceModeConsumer ServiceMode = "consumer"
)

// ValidServiceModes returns all valid service mode names.
func ValidServiceModes() []ServiceMode {
	return []ServiceMode{
		ServiceModeHTTP,
		ServiceModeScheduler,
		ServiceModeConsumer,
	}
}

// ParseServices parses a comma-delimited string of service names and returns the enabled services.
// It validates that all service names are valid and returns an error if any are invalid.
func ParseServices(servicesStr string) (map[ServiceMode]bool, error) {
	services := make(map[ServiceMode]bool)

	if servicesStr == "" {
		return services, errors.New("at least one service must be specified")
	}

	parts := strings.Split(servicesStr, ",")
	for _, part := range parts {
		serviceName := strings.TrimSpace(part)
		if serviceName == "" {
			continue
		}

		mode := ServiceMode(serviceName)
		switch mode {
		case ServiceModeHTTP, ServiceModeScheduler, ServiceModeConsumer:
			services[mode] = true
		default:
			return nil, fmt.Errorf(
				"invalid service name: %q (valid options: http, scheduler, consumer)",
				serviceName,
			)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("at least one valid service must be specified")
	}

	return services, nil
}

// Default calendar schedules (UTC, standard five-field cron).
const (
	DefaultUpdateStatisticsSchedule = "0 2 * * *"
	DefaultCleanupSchedule          = "0 3 * * *"
	DefaultAnalyticsSchedule        = "0 4 * * *"
)

// SchedulerConfig contains the calendar trigger configuration.
type SchedulerConfig struct {
	// Interval is how often the scheduler checks for due triggers.
	Interval time.Duration `env:"SCHEDULER_INTERVAL" envDefault:"30s"`

	UpdateStatisticsSchedule string `env:"SCHEDULER_UPDATE_STATISTICS_SCHEDULE" envDefault:"0 2 * * *"`
	CleanupSchedule          string `env:"SCHEDULER_CLEANUP_SCHEDULE"           envDefault:"0 3 * * *"`
	AnalyticsSchedule        string `env:"SCHEDULER_ANALYTICS_SCHEDULE"         envDefault:"0 4 * * *"`
}

// Sanitize applies guardrails to scheduler configuration values.
func (s *SchedulerConfig) Sanitize() {
	if s.Interval < time.Second {
		s.Interval = time.Second
	}
	s.UpdateStatisticsSchedule = orDefault(s.UpdateStatisticsSchedule, DefaultUpdateStatisticsSchedule)
	s.CleanupSchedule = orDefault(s.CleanupSchedule, DefaultCleanupSchedule)
	s.AnalyticsSchedule = orDefault(s.AnalyticsSchedule, DefaultAnalyticsSchedule)
}

// ConsumerConfig contains queue consumer configuration.
type ConsumerConfig struct {
	// PollInterval is the queue drain cadence.
	PollInterval time.Duration `env:"CONSUMER_POLL_INTERVAL" envDefault:"1m"`

	// MaxBatch bounds the messages requested per cycle.
	MaxBatch int `env:"CONSUMER_MAX_BATCH" envDefault:"10"`

	// Wait is the long-poll wait of a receive.
	Wait time.Duration `env:"CONSUMER_WAIT" envDefault:"20s"`

	// MaxReceives is the delivery budget of a message; past it the message is dead-lettered.
	MaxReceives int `env:"CONSUMER_MAX_RECEIVES" envDefault:"5"`
}

// Sanitize applies guardrails to consumer configuration values.
func (c *ConsumerConfig) Sanitize() {
	if c.PollInterval < time.Second {
		c.PollInterval = time.Second
	}
	if c.MaxBatch < 1 {
		c.MaxBatch = 1
	}
	if c.MaxBatch > 100 {
		c.MaxBatch = 100
	}
	if c.Wait < 0 {
		c.Wait = 0
	}
	if c.MaxReceives < 1 {
		c.MaxReceives = 1
	}
}

// AnalysisConfig controls question regeneration and positioning analysis.
type AnalysisConfig struct {
	// Provider selects the generator that performs the positioning analysis.
	Provider string `env:"ANALYSIS_PROVIDER" envDefault:"gemini"`

	// Timeout bounds a single analysis call.
	Timeout time.Duration `env:"ANALYSIS_TIMEOUT" envDefault:"30s"`

	// BackgroundTimeout bounds the detached analysis spawned after a regeneration.
	BackgroundTimeout time.Duration `env:"ANALYSIS_BACKGROUND_TIMEOUT" envDefault:"2m"`

	// Concurrency bounds how many questions of one UPDATE_STATISTICS message regenerate at once.
	Concurrency int `env:"ANALYSIS_CONCURRENCY" envDefault:"4"`
}

// Sanitize applies guardrails to analysis configuration values.
func (a *AnalysisConfig) Sanitize() {
	a.Provider = strings.ToLower(strings.TrimSpace(a.Provider))
	if a.Provider != "chatgpt" && a.Provider != "gemini" {
		a.Provider = "gemini"
	}
	if a.Timeout < time.Second {
		a.Timeout = time.Second
	}
	if a.BackgroundTimeout < a.Timeout {
		a.BackgroundTimeout = 2 * a.Timeout
	}
	if a.Concurrency < 1 {
		a.Concurrency = 1
	}
}

// CleanupConfig contains CLEANUP job configuration.
type CleanupConfig struct {
	// StatisticsMaxAge is the age after which superseded statistics are deleted.
	// Zero keeps every observation; rollups then cover the full history.
	StatisticsMaxAge time.Duration `env:"CLEANUP_STATISTICS_MAX_AGE" envDefault:"0"`

	// DeadLetterMaxAge is the retention of dead-lettered messages (Postgres transport).
	DeadLetterMaxAge time.Duration `env:"CLEANUP_DEAD_LETTER_MAX_AGE" envDefault:"336h"` // 14 days

	// BatchSize is the maximum number of rows to delete per statement.
	// Batching prevents long locks and I/O spikes on large tables.
	BatchSize int `env:"CLEANUP_BATCH_SIZE" envDefault:"1000"`
}

// PruneStatistics reports whether CLEANUP deletes superseded statistics.
func (c CleanupConfig) PruneStatistics() bool { return c.StatisticsMaxAge > 0 }

// Sanitize applies guardrails to cleanup configuration values.
func (c *CleanupConfig) Sanitize() {
	switch {
	case c.StatisticsMaxAge < 0:
		c.StatisticsMaxAge = 0
	case c.StatisticsMaxAge > 0 && c.StatisticsMaxAge < 24*time.Hour:
		c.StatisticsMaxAge = 24 * time.Hour
	}
	if c.DeadLetterMaxAge < time.Hour {
		c.DeadLetterMaxAge = time.Hour
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.BatchSize > 10000 {
		c.BatchSize = 10000
	}
}

// AnalyticsConfig contains ANALYTICS job configuration.
type AnalyticsConfig struct {
	// SnapshotTTL is how long a brand rollup snapshot stays in Redis.
	SnapshotTTL time.Duration `env:"ANALYTICS_SNAPSHOT_TTL" envDefault:"25h"`
}

// Sanitize applies guardrails to analytics configuration values.
func (a *AnalyticsConfig) Sanitize() {
	if a.SnapshotTTL < time.Minute {
		a.SnapshotTTL = time.Minute
	}
}

func orDefault(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimSpace(v)
}
