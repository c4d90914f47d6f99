package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	ledgerapp "github.com/haven/ledger/internal/application/ledger"
	"github.com/haven/ledger/internal/domain/ledger"
	"github.com/haven/ledger/internal/domain/shared"
	"github.com/haven/ledger/internal/infrastructure/auth"
	"github.com/haven/ledger/internal/infrastructure/cache"
	"github.com/haven/ledger/internal/infrastructure/config"
	"github.com/haven/ledger/internal/infrastructure/event"
	"github.com/haven/ledger/internal/infrastructure/logger"
	"github.com/haven/ledger/internal/infrastructure/messaging"
	"github.com/haven/ledger/internal/infrastructure/notification"
	"github.com/haven/ledger/internal/infrastructure/persistence"
	"github.com/haven/ledger/internal/infrastructure/redaction"
	"github.com/haven/ledger/internal/infrastructure/scheduler"
	"github.com/haven/ledger/internal/infrastructure/telemetry"
	"github.com/haven/ledger/internal/interfaces/http/handler"
	"github.com/haven/ledger/internal/interfaces/http/middleware"
	"github.com/haven/ledger/internal/interfaces/http/router"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

//	@title			Housing Assistance Ledger API
//	@version		1.0
//	@description	Double-entry financial ledger for housing assistance clients
//	@BasePath		/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	baseLog, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Service:    cfg.App.Name,
		MaskFields: cfg.Log.MaskFields,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(baseLog)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, baseLog)
	if err != nil {
		baseLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log := providers.BridgeLogger(baseLog, zapcore.InfoLevel)

	profiler, err := telemetry.StartProfiler(cfg.Telemetry, cfg.App.Env, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.Enabled() {
		providers.EnableSpanProfiles()
	}

	log.Info("Starting ledger service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("database", cfg.Database.Driver),
	)

	var meter metric.Meter
	if providers.MetricsEnabled() {
		meter = providers.Meter("github.com/haven/ledger")
	}

	// Storage
	var (
		db         *persistence.Database
		ledgerRepo ledger.Repository
		runRepo    ledger.ReconciliationRunRepository
	)
	if cfg.Database.Driver == "memory" {
		ledgerRepo = persistence.NewMemoryLedgerRepository()
		runRepo = persistence.NewMemoryReconciliationRunRepository()
		log.Warn("Using in-memory ledger store; data is lost on restart")
	} else {
		db, err = openDatabase(cfg, log, meter)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		ledgerRepo = persistence.NewGormLedgerRepository(db.DB)
		runRepo = persistence.NewGormReconciliationRunRepository(db.DB)
		log.Info("Database connected successfully")
	}

	// Redis coordinates locks, idempotency, revocations and rate limits
	// across instances. Without it every piece falls back to process memory.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	var locker ledgerapp.Locker = ledgerapp.NewKeyedLocker()
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	var limiter middleware.Limiter
	if redisClient != nil {
		locker = cache.NewRedisLocker(redisClient, cfg.Redis.KeyPrefix, cfg.Redis.LockTTL,
			cache.WithLockLogger(log))
		revocations = auth.NewRedisRevocationList(redisClient, cfg.Redis.KeyPrefix)
	}
	if cfg.HTTP.RateLimitEnabled {
		if redisClient != nil {
			limiter = cache.NewRedisRateLimiter(redisClient, cfg.Redis.KeyPrefix,
				cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		} else {
			limiter = middleware.NewMemoryRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		}
	}
	idempotency := cache.NewIdempotencyStore(redisClient, cfg.Redis.KeyPrefix, log)
	defer func() { _ = idempotency.Close() }()

	// Business metrics
	var ledgerMetrics *telemetry.LedgerMetrics
	if meter != nil {
		metricsCfg := telemetry.LedgerMetricsConfig{
			Meter:           meter,
			Logger:          log,
			CollectInterval: cfg.Scheduler.MetricsCollectTick,
		}
		if db != nil {
			metricsCfg.StatsProvider = telemetry.NewGormLedgerStatsProvider(db.DB)
		}
		ledgerMetrics, err = telemetry.NewLedgerMetrics(metricsCfg)
		if err != nil {
			log.Fatal("Failed to create ledger metrics", zap.Error(err))
		}
		ledgerMetrics.StartPeriodicCollection(ctx, cfg.Scheduler.MetricsCollectTick)
		defer ledgerMetrics.Stop()
	}

	// Notification channels
	var notifiers []ledgerapp.Notifier
	notifiers = append(notifiers, notification.NewLogNotifier(log))

	var eventPublisher *messaging.EventPublisher
	if cfg.Kafka.Enabled {
		alertPublisher := messaging.NewAlertPublisher(messaging.NewWriter(cfg.Kafka, cfg.Kafka.AlertsTopic), log)
		defer func() { _ = alertPublisher.Close() }()
		notifiers = append(notifiers, alertPublisher)

		eventPublisher = messaging.NewEventPublisher(messaging.NewWriter(cfg.Kafka, cfg.Kafka.EventsTopic), event.NewLedgerCodec(), log)
		defer func() { _ = eventPublisher.Close() }()
	}

	// Application services
	policy := alertPolicy(cfg.Alerts)
	ledgerService := ledgerapp.NewLedgerService(ledgerRepo, locker, redaction.NewProjector(), log)
	ledgerService.SetAlertPolicy(policy)
	ledgerService.SetLedgerMetrics(ledgerMetrics)

	documents, err := newDocumentStore(ctx, cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize document storage", zap.Error(err))
	}
	ledgerService.SetDocumentStore(documents)

	alertsService := ledgerapp.NewAlertsService(
		ledgerRepo,
		redaction.NewComplianceChecker(),
		notification.NewFanoutNotifier(notifiers...),
		alertRecipients(cfg.Alerts),
		ledgerapp.AlertsConfig{Policy: policy, Workers: cfg.Alerts.Workers, PageSize: cfg.Alerts.PageSize},
		log,
	)
	alertsService.SetLedgerMetrics(ledgerMetrics)

	reconciliationService := ledgerapp.NewReconciliationService(ledgerRepo, runRepo, log)
	reconciliationService.SetAlertPolicy(policy)
	reconciliationService.SetLedgerMetrics(ledgerMetrics)

	// Domain events
	eventBus := event.NewInMemoryEventBus(log)
	idemConfig := shared.IdempotencyConfig{TTL: cfg.Kafka.IdempotencyTTL, Enabled: true}
	eventBus.Subscribe(event.NewIdempotentHandler(
		ledgerapp.NewLargeDisbursementHandler(alertsService, policy, log),
		idempotency, log, event.WithIdempotencyConfig(idemConfig),
	))
	if eventPublisher != nil {
		eventBus.Subscribe(eventPublisher)
	}
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	ledgerService.SetEventPublisher(eventBus)

	// Inbound payment feed
	var paymentConsumer *messaging.PaymentConsumer
	if cfg.Kafka.Enabled {
		integration := ledgerapp.NewPaymentIntegrationHandler(ledgerService, idempotency, log)
		integration.SetIdempotencyConfig(idemConfig)
		paymentConsumer = messaging.NewPaymentConsumer(
			messaging.NewReader(cfg.Kafka, cfg.Kafka.PaymentsTopic),
			integration,
			messaging.DefaultPaymentConsumerConfig(),
			log,
		)
		paymentConsumer.Start(ctx)
		log.Info("Payment consumer started", zap.String("topic", cfg.Kafka.PaymentsTopic))
	}

	// Scheduled sweeps
	var (
		jobs *scheduler.Pool
		cron *scheduler.LedgerCronScheduler
	)
	if cfg.Scheduler.Enabled {
		jobs = scheduler.NewPool(scheduler.PoolConfig{
			Workers:    cfg.Scheduler.MaxConcurrentJobs,
			JobTimeout: cfg.Scheduler.JobTimeout,
			RetryDelay: cfg.Scheduler.RetryDelay,
		}, scheduler.NewLedgerJobExecutor(alertsService, reconciliationService, log), log)

		cron, err = scheduler.NewLedgerCronScheduler(cfg.Scheduler, jobs, log)
		if err != nil {
			log.Fatal("Failed to create cron scheduler", zap.Error(err))
		}
		jobs.OnFinished(cron.ObserveJob)

		if err := jobs.Start(ctx); err != nil {
			log.Fatal("Failed to start scheduler", zap.Error(err))
		}
		cron.Start(ctx)
		log.Info("Scheduler started",
			zap.String("alert_schedule", cfg.Scheduler.AlertCronSchedule),
			zap.String("reconcile_schedule", cfg.Scheduler.ReconcileSchedule),
		)
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	routerCfg := router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		Logger:         log,
		CORS:           corsConfig(cfg.HTTP),
		Security:       middleware.SecurityConfig{HSTSEnabled: cfg.App.Env == "production"},
		MaxBodyBytes:   cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		RateLimiter:    limiter,
		Tracing:        providers.TracingEnabled(),
		Meter:          meter,
		Profiling:      profiler.Enabled(),
	}

	handlers := router.Handlers{
		System:         handler.NewSystemHandler(cfg.App.Name, telemetry.ServiceVersion, healthChecks(db, redisClient)...),
		Ledger:         handler.NewLedgerHandler(ledgerService),
		Alert:          handler.NewAlertHandler(alertsService),
		Reconciliation: handler.NewReconciliationHandler(reconciliationService),
	}
	if cfg.JWT.Enabled {
		routerCfg.Auth = &middleware.AuthConfig{
			Validator:   auth.NewJWTService(cfg.JWT),
			Revocations: revocations,
		}
		handlers.Auth = handler.NewAuthHandler(revocations)
	} else {
		log.Warn("JWT disabled; callers identify themselves with " + middleware.HeaderUserID)
	}

	engine, err := router.NewEngine(routerCfg, handlers)
	if err != nil {
		log.Fatal("Failed to build HTTP engine", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if cron != nil {
		cron.Stop()
	}
	if jobs != nil {
		if err := jobs.Stop(shutdownCtx); err != nil {
			log.Warn("Scheduler did not stop cleanly", zap.Error(err))
		}
	}
	if paymentConsumer != nil {
		if err := paymentConsumer.Stop(); err != nil {
			log.Warn("Payment consumer did not stop cleanly", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Warn("Event bus did not stop cleanly", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Profiler did not stop cleanly", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		baseLog.Warn("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}
