// Command brandpulse runs the question-analysis pipeline: the scheduler that
// triggers jobs, the consumer that processes them and the HTTP API, in any
// combination selected by SERVICES.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/bootstrap"
)

func main() {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("load config", "error", err)
		os.Exit(1) //nolint:forbidigo // process entrypoint
	}

	logger := bootstrap.InitLogger(cfg.IsDev)
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, logger, &cfg)
	stop()
	if err != nil {
		logger.Error("brandpulse exited", "error", err)
		os.Exit(1) //nolint:forbidigo // process entrypoint
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) (err error) {
	if err = bootstrap.ValidateServiceConfig(cfg); err != nil {
		return err
	}
	logger.InfoContext(ctx, "starting brandpulse",
		"services", bootstrap.GetEnabledServices(cfg),
		"queue_transport", cfg.Queue.Transport,
		"db", fmt.Sprintf("%s:%d/%s", cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.Name),
		"redis", cfg.Redis.Enabled)

	infra, err := bootstrap.OpenInfrastructure(cfg, logger)
	if err != nil {
		return err
	}
	defer func() { err = errors.Join(err, infra.Close()) }()

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, infra.DB, logger); err != nil {
			return err
		}
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      cfg,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Logger:      logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	return bootstrap.RunServicesWithShutdown(ctx, &bootstrap.ServiceOrchestrationConfig{
		Config:   cfg,
		Services: services,
		Logger:   logger,
	})
}
