package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/target/brandpulse/config"
	"github.com/target/brandpulse/internal/bootstrap"
)

// runtime is the infrastructure and service graph a command works against.
type runtime struct {
	bootstrap.Infrastructure
	Services bootstrap.ServiceContainer
	logger   *slog.Logger
}

// Close releases services first, then the connections they use.
func (r *runtime) Close() {
	if err := errors.Join(r.Services.Close(), r.Infrastructure.Close()); err != nil {
		r.logger.Warn("runtime close failed", "error", err)
	}
}

// openRuntime builds services as if only mode were enabled.
// The consumer mode also builds the language-model providers.
func openRuntime(ctx context.Context, cmdCtx *commandContext, mode config.ServiceMode) (*runtime, error) {
	cfg := cmdCtx.Config
	cfg.Services = string(mode)

	infra, err := bootstrap.OpenInfrastructure(&cfg, cmdCtx.Logger)
	if err != nil {
		return nil, err
	}

	services, err := bootstrap.NewServices(ctx, &bootstrap.ServiceDeps{
		Config:      &cfg,
		DB:          infra.DB,
		RedisClient: infra.Redis,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return nil, errors.Join(fmt.Errorf("build services: %w", err), infra.Close())
	}
	return &runtime{Infrastructure: infra, Services: services, logger: cmdCtx.Logger}, nil
}
