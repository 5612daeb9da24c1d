package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/dispatch-service/internal/api/http"
	"github.com/spec-kit/dispatch-service/internal/api/http/handlers"
	"github.com/spec-kit/dispatch-service/internal/auth"
	"github.com/spec-kit/dispatch-service/internal/autonomy"
	"github.com/spec-kit/dispatch-service/internal/closeout"
	"github.com/spec-kit/dispatch-service/internal/config"
	"github.com/spec-kit/dispatch-service/internal/domain"
	"github.com/spec-kit/dispatch-service/internal/events"
	"github.com/spec-kit/dispatch-service/internal/idempotency"
	"github.com/spec-kit/dispatch-service/internal/observability"
	"github.com/spec-kit/dispatch-service/internal/persistence"
	"github.com/spec-kit/dispatch-service/internal/policy"
	"github.com/spec-kit/dispatch-service/internal/queue"
	"github.com/spec-kit/dispatch-service/internal/repository"
	"github.com/spec-kit/dispatch-service/internal/service"
	"github.com/spec-kit/dispatch-service/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	logger = observability.WithService(logger, cfg.App)
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.App, cfg.Tracing, logger)
	if err != nil {
		logger.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		_ = shutdownTracing(flushCtx)
	}()

	table, registry, err := loadTables(cfg.Dispatch)
	if err != nil {
		logger.Fatal("failed to load dispatch tables", zap.Error(err))
	}

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	store, checks, err := buildStore(ctx, cfg, pg, logger)
	if err != nil {
		logger.Fatal("failed to prepare store", zap.Error(err))
	}
	var cache idempotency.Cache
	if redis != nil {
		cache = idempotency.NewRedisCache(redis.Client, cfg.Redis.IdempotencyTTL())
		checks = append(checks, handlers.ReadinessCheck{Name: "redis", Ping: redis.Ping})
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	gate := policy.NewGate(table)
	evaluator := closeout.NewEvaluator(registry)
	resolver := autonomy.NewResolver(autonomy.Defaults{
		GlobalPaused:        cfg.Autonomy.GlobalPaused,
		PausedIncidentTypes: cfg.Autonomy.PausedIncidentTypes,
	})

	pipeline := service.NewPipeline(service.PipelineDependencies{
		Store:      store,
		Gate:       gate,
		Cache:      cache,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
	})
	ticketService := service.NewTicketService(service.TicketDependencies{
		Pipeline:                  pipeline,
		IntakeConfidenceThreshold: cfg.Dispatch.IntakeConfidenceThreshold,
	})
	scheduleService := service.NewScheduleService(pipeline)
	assignmentService := service.NewAssignmentService(pipeline)
	closeoutService := service.NewCloseoutService(service.CloseoutDependencies{
		Pipeline:  pipeline,
		Evaluator: evaluator,
		Resolver:  resolver,
	})
	autonomyService := service.NewAutonomyService(service.AutonomyDependencies{
		Pipeline: pipeline,
		Store:    store,
		Gate:     gate,
		Resolver: resolver,
	})
	queryService := service.NewQueryService(service.QueryDependencies{
		Store:     store,
		Gate:      gate,
		Evaluator: evaluator,
		Metrics:   metrics,
		Queue:     queueConfig(cfg.Dispatch),
		Alerts:    cfg.Alerts,
	})

	worker.StartNotificationWorker(ctx, service.NewNotificationService(dispatcher, logger, cfg.Notification), 256, logger)
	go worker.StartAlertMonitor(ctx, queryService, time.Minute, logger)

	var tokens *auth.TokenManager
	if cfg.Auth.JWTSecret != "" {
		tokens = auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.AccessTokenTTLMinutes)
	}

	app := fiber.New(fiber.Config{AppName: cfg.App.Name, Immutable: true})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:     handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, checks...),
		Tickets:    handlers.NewTicketsHandler(ticketService, queryService),
		Schedule:   handlers.NewScheduleHandler(scheduleService),
		Assignment: handlers.NewAssignmentHandler(assignmentService),
		Closeout:   handlers.NewCloseoutHandler(closeoutService, queryService),
		Ops:        handlers.NewOpsHandler(autonomyService, queryService),
		Actor:      auth.NewActorMiddleware(tokens, cfg.Auth.RequireToken),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.ShutdownWithTimeout(10 * time.Second)
}

func loadTables(cfg config.DispatchConfig) (*policy.Table, *closeout.Registry, error) {
	table, err := policy.LoadFile(cfg.PolicyFile)
	if err != nil {
		return nil, nil, err
	}
	registry, err := closeout.LoadRegistry(cfg.TemplatesFile)
	if err != nil {
		return nil, nil, err
	}
	return table, registry, nil
}

// buildStore picks Postgres when a DSN is configured and the in-memory store otherwise.
func buildStore(ctx context.Context, cfg *config.Config, pg *persistence.Postgres, logger *zap.Logger) (repository.Store, []handlers.ReadinessCheck, error) {
	seed, err := repository.LoadSeedFile(cfg.Dispatch.SeedFile)
	if err != nil {
		return nil, nil, err
	}

	pool := pg.PoolHandle()
	if pool == nil {
		logger.Warn("POSTGRES_DSN not set; using the in-memory store")
		store := repository.NewMemoryStore()
		store.ApplySeed(seed)
		return store, nil, nil
	}

	if cfg.Postgres.RunMigrations {
		if _, err := persistence.RunMigrations(ctx, pool, cfg.Postgres.MigrationsDir, logger); err != nil {
			return nil, nil, err
		}
	}
	store := repository.NewPostgresStore(pool)
	if cfg.Dispatch.SeedFile != "" {
		if err := store.Seed(ctx, seed); err != nil {
			return nil, nil, err
		}
	}
	return store, []handlers.ReadinessCheck{{Name: "postgres", Ping: pg.Ping}}, nil
}

func queueConfig(cfg config.DispatchConfig) queue.Config {
	return queue.Config{
		PriorityMinutes: map[domain.TicketPriority]int{
			domain.TicketPriorityEmergency: cfg.SLAEmergencyMinutes,
			domain.TicketPriorityUrgent:    cfg.SLAUrgentMinutes,
			domain.TicketPriorityRoutine:   cfg.SLARoutineMinutes,
		},
		DefaultMinutes: cfg.SLADefaultMinutes,
		WarningMinutes: cfg.SLAWarningMinutes,
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
