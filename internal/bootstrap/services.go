package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/brandpulse/config"
	consumerrunner "github.com/target/brandpulse/internal/adapters/consumer"
	schedrunner "github.com/target/brandpulse/internal/adapters/scheduler"
	"github.com/target/brandpulse/internal/data"
	httpx "github.com/target/brandpulse/internal/http"
	"github.com/target/brandpulse/internal/observability/statsd"
	"github.com/target/brandpulse/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Queue            QueueBundle
	Producer         *service.Producer
	Triggers         *service.TriggerService
	Consumer         *service.Consumer
	BrandStatistics  *service.BrandStatisticsService
	QuestionAnalysis *service.QuestionAnalysisService // nil when no service needs the providers
	Cleanup          *service.CleanupService
	Analytics        *service.AnalyticsService
	Snapshots        *data.RollupSnapshotStore // nil without Redis
	Observability    ObservabilityContainer
	// Probes report Postgres and Redis reachability on /readyz.
	Probes []httpx.Probe
}

// Close releases the queue transport and flushes metrics.
func (s ServiceContainer) Close() error {
	return errors.Join(s.Queue.Close(), s.Observability.Close())
}

// ServiceDeps contains dependencies for creating services.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

type serviceRepositories struct {
	Catalog    *data.CatalogRepo
	Statistics *data.StatisticRepo
	Snapshots  *data.RollupSnapshotStore
}

func buildRepositories(db *sql.DB, redisClient redis.UniversalClient, cfg *config.AppConfig) serviceRepositories {
	repos := serviceRepositories{
		Catalog:    data.NewCatalogRepo(db, data.CatalogRepoOptions{}),
		Statistics: data.NewStatisticRepo(db, data.StatisticRepoOptions{}),
	}
	if redisClient != nil {
		repos.Snapshots = data.NewRollupSnapshotStore(data.NewRedisCacheRepo(redisClient), cfg.Analytics.SnapshotTTL)
	}
	return repos
}

func readinessProbes(db *sql.DB, redisClient redis.UniversalClient) []httpx.Probe {
	var probes []httpx.Probe
	if db != nil {
		probes = append(probes, httpx.Probe{Name: "postgres", Check: db.PingContext})
	}
	if redisClient != nil {
		probes = append(probes, httpx.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return probes
}

// needsProviders reports whether an enabled service calls the language-model providers.
func needsProviders(cfg *config.AppConfig) bool {
	return cfg.IsHTTPServerEnabled() || cfg.IsConsumerEnabled()
}

// NewServices wires repositories, the queue transport and the job services.
func NewServices(ctx context.Context, deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	observability := buildObservability(logger, cfg.Observability)
	metrics := observability.Metrics
	repos := buildRepositories(deps.DB, deps.RedisClient, cfg)

	queue, err := BuildQueueTransport(ctx, QueueConfig{Queue: cfg.Queue, DB: deps.DB, Logger: logger})
	if err != nil {
		return ServiceContainer{}, err
	}
	out := ServiceContainer{
		Queue:         queue,
		Snapshots:     repos.Snapshots,
		Observability: observability,
		Probes:        readinessProbes(deps.DB, deps.RedisClient),
	}

	fail := func(err error) (ServiceContainer, error) {
		if closeErr := out.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return ServiceContainer{}, err
	}

	if out.Producer, err = service.NewProducer(service.ProducerOptions{
		Transport: queue.Transport,
		Logger:    logger,
		Metrics:   metrics,
	}); err != nil {
		return fail(fmt.Errorf("create producer: %w", err))
	}

	if out.Triggers, err = service.NewTriggerService(service.TriggerServiceOptions{
		Catalog:  repos.Catalog,
		Enqueuer: out.Producer,
		Config:   cfg.Scheduler,
		Logger:   logger,
		Metrics:  metrics,
	}); err != nil {
		return fail(fmt.Errorf("create trigger service: %w", err))
	}

	if out.BrandStatistics, err = service.NewBrandStatisticsService(service.BrandStatisticsServiceOptions{
		Catalog:    repos.Catalog,
		Statistics: repos.Statistics,
		Logger:     logger,
	}); err != nil {
		return fail(fmt.Errorf("create brand statistics service: %w", err))
	}

	if out.Cleanup, err = service.NewCleanupService(newCleanupOptions(repos, queue, cfg, logger, metrics)); err != nil {
		return fail(fmt.Errorf("create cleanup service: %w", err))
	}

	analyticsOpts := service.AnalyticsServiceOptions{
		Catalog:    repos.Catalog,
		Aggregator: out.BrandStatistics,
		Logger:     logger,
		Metrics:    metrics,
	}
	if repos.Snapshots != nil {
		analyticsOpts.Snapshots = repos.Snapshots
	}
	if out.Analytics, err = service.NewAnalyticsService(analyticsOpts); err != nil {
		return fail(fmt.Errorf("create analytics service: %w", err))
	}

	if !needsProviders(cfg) {
		return out, nil
	}

	if out.QuestionAnalysis, err = newQuestionAnalysis(ctx, repos, cfg, logger, observability); err != nil {
		return fail(err)
	}

	if cfg.IsConsumerEnabled() {
		if out.Consumer, err = newConsumer(out, cfg, logger); err != nil {
			return fail(err)
		}
	}

	return out, nil
}

func newCleanupOptions(
	repos serviceRepositories,
	queue QueueBundle,
	cfg *config.AppConfig,
	logger *slog.Logger,
	metrics statsd.Sink,
) service.CleanupServiceOptions {
	opts := service.CleanupServiceOptions{
		Statistics: repos.Statistics,
		Config:     cfg.Cleanup,
		Logger:     logger,
		Metrics:    metrics,
	}
	if queue.DeadLetters != nil {
		opts.DeadLetters = queue.DeadLetters
	}
	return opts
}

func newQuestionAnalysis(
	ctx context.Context,
	repos serviceRepositories,
	cfg *config.AppConfig,
	logger *slog.Logger,
	obs ObservabilityContainer,
) (*service.QuestionAnalysisService, error) {
	generators, err := BuildGenerators(ctx, cfg.Providers, logger)
	if err != nil {
		return nil, err
	}

	extractor, err := service.NewExtractor(service.ExtractorOptions{
		Generator: generators.Analysis(cfg.Analysis.Provider),
		Provider:  cfg.Analysis.Provider,
		Timeout:   cfg.Analysis.Timeout,
		Logger:    logger,
		Metrics:   obs.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create positioning extractor: %w", err)
	}

	qa, err := service.NewQuestionAnalysisService(service.QuestionAnalysisServiceOptions{
		Questions:         repos.Catalog,
		Catalog:           repos.Catalog,
		Statistics:        repos.Statistics,
		ChatGPT:           generators.ChatGPT,
		Gemini:            generators.Gemini,
		Extractor:         extractor,
		BackgroundTimeout: cfg.Analysis.BackgroundTimeout,
		Logger:            logger,
		Metrics:           obs.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create question analysis service: %w", err)
	}
	return qa, nil
}

func newConsumer(svcs ServiceContainer, cfg *config.AppConfig, logger *slog.Logger) (*service.Consumer, error) {
	handlers, err := service.NewJobHandlers(service.JobHandlersOptions{
		Regenerator: svcs.QuestionAnalysis,
		Cleanup:     svcs.Cleanup,
		Analytics:   svcs.Analytics,
		Concurrency: cfg.Analysis.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("create job handlers: %w", err)
	}

	dispatcher := service.NewDispatcher(service.DispatcherOptions{
		Logger:  logger,
		Metrics: svcs.Observability.Metrics,
	})
	if err = dispatcher.RegisterAll(handlers.Handlers()); err != nil {
		return nil, fmt.Errorf("register job handlers: %w", err)
	}

	consumer, err := service.NewConsumer(service.ConsumerOptions{
		Transport:     svcs.Queue.Transport,
		Dispatcher:    dispatcher,
		TransportName: svcs.Queue.Name,
		MaxBatch:      cfg.Consumer.MaxBatch,
		Wait:          cfg.Consumer.Wait,
		MaxReceives:   cfg.Consumer.MaxReceives,
		Notifier:      svcs.Observability.FailureNotifier,
		Logger:        logger,
		Metrics:       svcs.Observability.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("create consumer: %w", err)
	}
	return consumer, nil
}

// ServiceOrchestrationConfig contains dependencies for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newSchedulerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeScheduler,
		name: "scheduler",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Triggers == nil {
				return errors.New("scheduler enabled without trigger service")
			}
			runner, err := schedrunner.NewRunner(schedrunner.RunnerOptions{
				Triggers: deps.cfg.Services.Triggers,
				Interval: deps.cfg.Config.Scheduler.Interval,
				Logger:   deps.logger,
				Metrics:  deps.cfg.Services.Observability.Metrics,
			})
			if err != nil {
				return fmt.Errorf("create scheduler runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func newConsumerBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeConsumer,
		name: "consumer",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Services.Consumer == nil {
				return errors.New("consumer enabled without queue consumer")
			}
			runner, err := consumerrunner.NewRunner(consumerrunner.RunnerOptions{
				Consumer: deps.cfg.Services.Consumer,
				Interval: deps.cfg.Config.Consumer.PollInterval,
				Logger:   deps.logger,
				Metrics:  deps.cfg.Services.Observability.Metrics,
			})
			if err != nil {
				return fmt.Errorf("create consumer runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newSchedulerBackgroundService(deps),
		newConsumerBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts all enabled services and blocks until ctx is
// done or a service fails, then stops everything gracefully.
func RunServicesWithShutdown(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	// Determine which services are enabled
	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	// Start all enabled services
	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	// Wait for shutdown signal or error
	return waitForShutdown(shutdownConfig{
		ctx:             serviceCtx,
		cancel:          cancel,
		errCh:           errCh,
		httpServer:      result.HTTPServer,
		httpTimeout:     cfg.Config.HTTP.ShutdownTimeout,
		analysis:        cfg.Services.QuestionAnalysis,
		logger:          logger,
		backgrounds:     result.Background,
		releaseServices: cfg.Services.Close,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	ctx             context.Context
	cancel          context.CancelFunc
	errCh           <-chan error
	httpServer      *http.Server
	httpTimeout     time.Duration
	analysis        *service.QuestionAnalysisService
	logger          *slog.Logger
	backgrounds     []backgroundServiceHandle
	releaseServices func() error
}

// waitForShutdown blocks until the service context ends or a service reports an error.
func waitForShutdown(cfg shutdownConfig) error {
	select {
	case <-cfg.ctx.Done():
		cfg.logger.Info("shutting down services", "cause", context.Cause(cfg.ctx))
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop attempts to gracefully stop all services.
func gracefulStop(cfg shutdownConfig) error {
	var errs []error

	// HTTP shutdown gets a fresh context: the service context is already canceled.
	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Timeout: cfg.httpTimeout,
			Logger:  cfg.logger,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	// Wait for background services to finish
	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	// Detached positioning analyses finish before the process exits.
	if cfg.analysis != nil {
		done := make(chan struct{})
		go func() {
			cfg.analysis.Wait()
			close(done)
		}()
		waitForService(done, "background analyses", cfg.logger)
	}

	if cfg.releaseServices != nil {
		if err := cfg.releaseServices(); err != nil {
			errs = append(errs, fmt.Errorf("release services: %w", err))
		}
	}

	return errors.Join(errs...)
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
