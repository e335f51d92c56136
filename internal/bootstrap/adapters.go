package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/adapters/amqpqueue"
	"github.com/target/brandpulse/internal/adapters/chatgpt"
	"github.com/target/brandpulse/internal/adapters/gemini"
	"github.com/target/brandpulse/internal/adapters/sqsqueue"
	"github.com/target/brandpulse/internal/core"
	"github.com/target/brandpulse/internal/data"
	"github.com/target/brandpulse/internal/observability/notify/pagerduty"
	"github.com/target/brandpulse/internal/observability/notify/slack"
	"github.com/target/brandpulse/internal/observability/promsink"
	"github.com/target/brandpulse/internal/observability/statsd"
	"github.com/target/brandpulse/internal/service/failurenotifier"
)

// QueueBundle is the active queue transport plus the optional capabilities it carries.
type QueueBundle struct {
	Name      string
	Transport core.QueueTransport
	// DeadLetters is set when dead-lettered messages live in Postgres.
	DeadLetters core.DeadLetterPruner
	// Postgres is set for the Postgres transport (depth breakdown, dead-letter listing).
	Postgres *data.QueueRepo
	// Depth reports the number of waiting messages; every transport sets it.
	Depth core.QueueDepthReader
	close    func() error
}

// Close releases broker connections held by the transport.
func (q QueueBundle) Close() error {
	if q.close == nil {
		return nil
	}
	return q.close()
}

// QueueConfig contains dependencies for building the queue transport.
type QueueConfig struct {
	Queue  config.QueueConfig
	DB     *sql.DB
	Logger *slog.Logger
}

// BuildQueueTransport selects the queue transport named by QUEUE_TRANSPORT.
func BuildQueueTransport(ctx context.Context, cfg QueueConfig) (QueueBundle, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := string(cfg.Queue.Transport)

	switch cfg.Queue.Transport {
	case config.QueueTransportSQS:
		t, err := sqsqueue.New(ctx, sqsqueue.Options{
			QueueURL:           cfg.Queue.SQS.QueueURL,
			DeadLetterQueueURL: cfg.Queue.SQS.DeadLetterQueueURL,
			Region:             cfg.Queue.SQS.Region,
			Endpoint:           cfg.Queue.SQS.Endpoint,
			AccessKeyID:        cfg.Queue.SQS.AccessKeyID,
			SecretAccessKey:    cfg.Queue.SQS.SecretAccessKey,
			Logger:             logger,
		})
		if err != nil {
			return QueueBundle{}, fmt.Errorf("create sqs transport: %w", err)
		}
		return QueueBundle{Name: name, Transport: t, Depth: t}, nil

	case config.QueueTransportAMQP:
		t, err := amqpqueue.New(amqpqueue.Options{
			URL:             cfg.Queue.AMQP.URL,
			Queue:           cfg.Queue.AMQP.Queue,
			DeadLetterQueue: cfg.Queue.AMQP.DeadLetterQueue,
			Logger:          logger,
		})
		if err != nil {
			return QueueBundle{}, fmt.Errorf("create amqp transport: %w", err)
		}
		return QueueBundle{Name: name, Transport: t, Depth: t, close: t.Close}, nil

	case config.QueueTransportPostgres, "":
		if cfg.DB == nil {
			return QueueBundle{}, errors.New("postgres queue transport requires a database")
		}
		repo := data.NewQueueRepo(cfg.DB, data.QueueRepoOptions{
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
			Logger:            logger,
		})
		return QueueBundle{
			Name:        string(config.QueueTransportPostgres),
			Transport:   repo,
			DeadLetters: repo,
			Postgres:    repo,
			Depth:       repo,
		}, nil

	default:
		return QueueBundle{}, fmt.Errorf("unknown queue transport %q", cfg.Queue.Transport)
	}
}

// Generators holds both language-model providers.
type Generators struct {
	ChatGPT core.TextGenerator
	Gemini  core.TextGenerator
}

// Analysis returns the provider selected for the positioning analysis.
//
//nolint:ireturn // the analysis provider is chosen at runtime.
func (g Generators) Analysis(provider string) core.TextGenerator {
	if provider == "chatgpt" {
		return g.ChatGPT
	}
	return g.Gemini
}

// BuildGenerators creates the ChatGPT and Gemini generators.
func BuildGenerators(ctx context.Context, cfg config.ProvidersConfig, logger *slog.Logger) (Generators, error) {
	gpt, err := chatgpt.New(chatgpt.Options{
		APIKey:            cfg.OpenAI.APIKey,
		BaseURL:           cfg.OpenAI.BaseURL,
		Model:             cfg.OpenAI.Model,
		RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
		Burst:             cfg.OpenAI.Burst,
		Timeout:           cfg.OpenAI.Timeout,
		Logger:            logger,
	})
	if err != nil {
		return Generators{}, fmt.Errorf("create chatgpt generator: %w", err)
	}

	gem, err := gemini.New(ctx, gemini.Options{
		APIKey:            cfg.Gemini.APIKey,
		Model:             cfg.Gemini.Model,
		RequestsPerSecond: cfg.Gemini.RequestsPerSecond,
		Burst:             cfg.Gemini.Burst,
		Timeout:           cfg.Gemini.Timeout,
		Logger:            logger,
	})
	if err != nil {
		return Generators{}, fmt.Errorf("create gemini generator: %w", err)
	}

	return Generators{ChatGPT: gpt, Gemini: gem}, nil
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	Metrics         statsd.Sink
	MetricsHandler  http.Handler
	MetricsConfig   config.ObservabilityMetricsConfig
	FailureNotifier *failurenotifier.Service
	NotifierConfig  config.ObservabilityNotificationsConfig
	closers         []func() error
}

// Close flushes and releases metric clients.
func (o ObservabilityContainer) Close() error {
	var errs []error
	for _, c := range o.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	out := ObservabilityContainer{
		MetricsConfig:   cfg.Metrics,
		FailureNotifier: buildFailureNotifier(obsLogger, cfg.Notifications),
		NotifierConfig:  cfg.Notifications,
	}

	switch {
	case cfg.Metrics.IsPrometheus():
		sink := promsink.New(promsink.Options{Namespace: cfg.Metrics.Prefix, Logger: obsLogger})
		out.Metrics = sink
		out.MetricsHandler = sink.Handler()
	case cfg.Metrics.IsEnabled():
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Metrics.StatsdAddress,
			Prefix:  cfg.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
			break
		}
		out.Metrics = client
		out.closers = append(out.closers, client.Close)
	}

	return out
}

func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	baseLogger := logger
	if baseLogger == nil {
		baseLogger = slog.Default()
	}

	if !cfg.Enabled {
		return failurenotifier.NewService(failurenotifier.Options{
			Logger: baseLogger.With("component", "failure_notifier"),
		})
	}

	sinks := make([]failurenotifier.SinkRegistration, 0, 2)

	if cfg.Slack.Enabled {
		client, err := slack.NewClient(slack.Config{
			WebhookURL: cfg.Slack.WebhookURL,
			Channel:    cfg.Slack.Channel,
			Username:   cfg.Slack.Username,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise slack notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "slack", Sink: client})
		}
	}

	if cfg.PagerDuty.Enabled {
		client, err := pagerduty.NewClient(pagerduty.Config{
			RoutingKey: cfg.PagerDuty.RoutingKey,
			Source:     cfg.PagerDuty.Source,
			Component:  cfg.PagerDuty.Component,
			Timeout:    cfg.Timeout,
			RetryLimit: cfg.RetryLimit,
		})
		if err != nil {
			baseLogger.Error("failed to initialise pagerduty notifier", "error", err)
		} else {
			sinks = append(sinks, failurenotifier.SinkRegistration{Name: "pagerduty", Sink: client})
		}
	}

	return failurenotifier.NewService(failurenotifier.Options{
		Logger: baseLogger.With("component", "failure_notifier"),
		Sinks:  sinks,
	})
}
