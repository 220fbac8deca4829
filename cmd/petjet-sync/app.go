package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/petjet/petjet-sync/internal/adapters/driven/ai"
	"github.com/petjet/petjet-sync/internal/adapters/driven/flightapi"
	"github.com/petjet/petjet-sync/internal/adapters/driven/postgres"
	postgresqueue "github.com/petjet/petjet-sync/internal/adapters/driven/queue/postgres"
	redisqueue "github.com/petjet/petjet-sync/internal/adapters/driven/queue/redis"
	redisadapter "github.com/petjet/petjet-sync/internal/adapters/driven/redis"
	"github.com/petjet/petjet-sync/internal/adapters/driving/http"
	"github.com/petjet/petjet-sync/internal/config"
	"github.com/petjet/petjet-sync/internal/core/domain"
	"github.com/petjet/petjet-sync/internal/core/ports/driven"
	"github.com/petjet/petjet-sync/internal/core/services"
	"github.com/petjet/petjet-sync/internal/normalisers"
)

// app holds the wired engine for one process.
type app struct {
	cfg    *config.Config
	logger *slog.Logger

	db          *postgres.DB
	redisClient *redis.Client

	taskQueue   driven.TaskQueue
	lock        driven.DistributedLock
	retrier     *services.Retrier
	syncService *services.SyncService
	scheduler   *services.Scheduler // nil unless requested and enabled

	checks map[string]http.Pinger
}

// pingFunc adapts a function to http.Pinger.
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

// newApp connects the backends and builds the engine.
// The scheduler is only built when withScheduler is set.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, withScheduler bool) (*app, error) {
	a := &app{cfg: cfg, logger: logger, checks: map[string]http.Pinger{}}

	// ===== PostgreSQL =====
	logger.Info("connecting to postgres")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	a.db = db
	if err := db.InitSchema(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	a.checks["postgres"] = db

	// ===== Redis (optional) =====
	if cfg.Redis.URL != "" {
		logger.Info("connecting to redis")
		opts, err := redis.ParseURL(cfg.Redis.URL)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		a.redisClient = redis.NewClient(opts)
		if err := a.redisClient.Ping(ctx).Err(); err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		client := a.redisClient
		a.checks["redis"] = pingFunc(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	// ===== Progress store =====
	var stateStore driven.SyncStateStore
	if cfg.Redis.ProgressBackend == config.BackendRedis {
		stateStore = redisadapter.NewSyncStateStore(a.redisClient)
	} else {
		stateStore = postgres.NewSyncStateStore(db)
	}
	logger.Info("progress store selected", "backend", cfg.Redis.ProgressBackend)

	// ===== Task queue and lock (Redis if available, otherwise PostgreSQL) =====
	if a.redisClient != nil {
		q, err := redisqueue.NewQueue(ctx, a.redisClient, "worker-"+uuid.NewString())
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("create task queue: %w", err)
		}
		a.taskQueue = q
		a.lock = redisadapter.NewLock(a.redisClient)
	} else {
		a.taskQueue = postgresqueue.NewQueue(db.DB)
		a.lock = postgres.NewAdvisoryLock(db)
	}
	a.checks["queue"] = a.taskQueue

	// ===== Engine =====
	maxRetries := cfg.Sync.MaxRetries
	a.retrier = services.NewRetrier(services.RetrierConfig{
		MaxRetries: &maxRetries,
		Timeout:    cfg.Sync.OperationTimeout,
		BaseDelay:  cfg.Sync.RetryBaseDelay,
		Logger:     logger,
	})
	progress := services.NewProgressStore(services.ProgressStoreConfig{
		Store:  stateStore,
		Logger: logger,
	})
	orchestrator := services.NewChunkOrchestrator(services.ChunkOrchestratorConfig{
		Progress:   progress,
		Retrier:    a.retrier,
		Logger:     logger,
		ChunkSize:  cfg.Sync.ChunkSize,
		ChunkDelay: cfg.Sync.ChunkDelay,
	})

	var analyzerLimiter *rate.Limiter
	if cfg.Sync.AnalyzerRPS > 0 {
		analyzerLimiter = rate.NewLimiter(rate.Limit(cfg.Sync.AnalyzerRPS), 1)
	}
	bindings := services.BuildResources(services.ResourceDeps{
		Sources: postgres.NewSources(db),
		Sink:    postgres.NewRecordStore(db),
		Flights: flightapi.NewClient(flightapi.Config{
			BaseURL:           cfg.FlightAPI.BaseURL,
			ClientID:          cfg.FlightAPI.ClientID,
			ClientSecret:      cfg.FlightAPI.ClientSecret,
			Timeout:           cfg.FlightAPI.Timeout,
			RequestsPerSecond: cfg.FlightAPI.RequestsPerSecond,
		}),
		Analyzer: ai.NewAnalyzer(ai.Config{
			APIKey:    cfg.Anthropic.APIKey,
			Model:     cfg.Anthropic.Model,
			BaseURL:   cfg.Anthropic.BaseURL,
			MaxTokens: cfg.Anthropic.MaxTokens,
			Timeout:   cfg.Anthropic.Timeout,
		}),
		Detector:        services.NewChangeDetector(),
		Logger:          logger,
		PolicyStaleness: cfg.Sync.PolicyStaleness,
		AnalyzerLimiter: analyzerLimiter,
		PolicyChunkSize: cfg.Sync.PolicyChunkSize,
		TouchUnchanged:  cfg.Sync.TouchUnchanged,
		Normalisers:     normalisers.DefaultRegistry(),
	})
	registry, err := services.NewRegistry(services.RegistryConfig{
		Bindings:     bindings,
		Orchestrator: orchestrator,
		Progress:     progress,
		Logger:       logger,
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("build registry: %w", err)
	}
	a.syncService = services.NewSyncService(services.SyncServiceConfig{
		Registry:  registry,
		Progress:  progress,
		TaskQueue: a.taskQueue,
		Logger:    logger,
	})
	logger.Info("sync types registered", "types", a.syncService.Types())

	// ===== Scheduler =====
	if withScheduler && cfg.Scheduler.Enabled {
		a.scheduler = services.NewScheduler(services.SchedulerConfig{
			Store:        postgres.NewSchedulerStore(db),
			TaskQueue:    a.taskQueue,
			Lock:         a.lock,
			Logger:       logger,
			PollInterval: cfg.Scheduler.PollInterval,
			LockOptional: !cfg.Scheduler.LockRequired,
		})
		if err := a.scheduler.EnsureSchedules(ctx, domain.DefaultSyncSchedules(cfg.Scheduler.Intervals)); err != nil {
			a.Close()
			return nil, fmt.Errorf("ensure schedules: %w", err)
		}
		logger.Info("scheduler enabled", "lock_required", cfg.Scheduler.LockRequired)
	} else if withScheduler {
		logger.Info("scheduler disabled via SCHEDULER_ENABLED=false")
	}

	return a, nil
}

// Close releases the backend connections.
func (a *app) Close() {
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", "error", err)
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close database", "error", err)
		}
	}
}
