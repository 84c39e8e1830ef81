package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	eventapp "github.com/revsplit/backend/internal/application/event"
	apprevenue "github.com/revsplit/backend/internal/application/revenue"
	"github.com/revsplit/backend/internal/domain/shared"
	"github.com/revsplit/backend/internal/domain/shared/valueobject"
	"github.com/revsplit/backend/internal/infrastructure/auth"
	"github.com/revsplit/backend/internal/infrastructure/cache"
	"github.com/revsplit/backend/internal/infrastructure/config"
	"github.com/revsplit/backend/internal/infrastructure/event"
	"github.com/revsplit/backend/internal/infrastructure/logger"
	"github.com/revsplit/backend/internal/infrastructure/persistence"
	"github.com/revsplit/backend/internal/infrastructure/storage"
	"github.com/revsplit/backend/internal/infrastructure/telemetry"
	"github.com/revsplit/backend/internal/interfaces/http/handler"
	"github.com/revsplit/backend/internal/interfaces/http/middleware"
	"github.com/revsplit/backend/internal/interfaces/http/router"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	}
	bootLog, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	ctx := context.Background()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, version, bootLog)
	if err != nil {
		bootLog.Fatal("Failed to initialize telemetry", zap.Error(err))
	}

	// Once the providers exist, the process logger also feeds the OTLP log pipeline
	log, err := logger.New(logCfg, providers.Logs.Core(logger.ParseLevel(cfg.Log.Level)))
	if err != nil {
		bootLog.Fatal("Failed to initialize logger", zap.Error(err))
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting revenue ledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Database.SlowThreshold))
	db, err := persistence.NewDatabase(&cfg.Database, persistence.WithLogger(gormLog))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected", zap.String("driver", cfg.Database.Driver))

	// Postgres schemas are owned by cmd/migrate; sqlite is for local runs
	if cfg.Database.Driver == "sqlite" {
		if err := db.AutoMigrate(); err != nil {
			log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
		}
	}

	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
		Enabled:         cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		DBName:          cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}

	meter := providers.Meter.Meter("revenue-ledger")
	if err := telemetry.RegisterDBPoolMetrics(meter, db.DB); err != nil {
		log.Warn("Failed to register database pool metrics", zap.Error(err))
	}

	stores, err := cache.NewFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithFactoryBalanceTTL(cfg.Revenue.BalanceCacheTTL),
	).Create()
	if err != nil {
		log.Fatal("Failed to initialize cache", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing cache", zap.Error(err))
		}
	}()

	// Repositories
	ruleRepo := persistence.NewGormRevenueRuleRepository(db.DB)
	paymentRepo := persistence.NewGormPaymentRepository(db.DB)
	entryRepo := persistence.NewGormLedgerEntryRepository(db.DB)
	settlementRepo := persistence.NewGormSettlementRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)

	var outboxSaver shared.OutboxEventSaver
	if cfg.Event.OutboxEnabled {
		outboxSaver = event.NewOutboxPublisher(serializer, event.WithMaxRetries(cfg.Event.MaxRetries))
	}
	txScope := persistence.NewGormTransactionScope(db.DB, outboxSaver)

	settings := revenueSettings(cfg.Revenue, log)

	// Services
	ruleService := apprevenue.NewRevenueRuleService(ruleRepo, entryRepo, txScope, log)
	approvalService := apprevenue.NewApprovalService(paymentRepo, txScope, settings, log)
	ledgerService := apprevenue.NewLedgerService(entryRepo, txScope, settings, log)
	balanceService := apprevenue.NewBalanceService(entryRepo, stores.Balances, settings, log)
	settlementService := apprevenue.NewSettlementService(settlementRepo, txScope, log)
	payoutService := apprevenue.NewPayoutSummaryService(balanceService, settings, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)
	ledgerService.SetBalanceInvalidator(balanceService)
	settlementService.SetBalanceInvalidator(balanceService)

	eventBus := event.NewInMemoryEventBus(log)
	for _, h := range subscribers(ctx, cfg, ledgerService, stores, meter, log) {
		eventBus.Subscribe(h)
	}

	// Without the outbox, services hand committed events straight to the bus
	if !cfg.Event.OutboxEnabled {
		ruleService.SetEventPublisher(eventBus)
		approvalService.SetEventPublisher(eventBus)
		ledgerService.SetEventPublisher(eventBus)
		settlementService.SetEventPublisher(eventBus)
	}

	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}

	var outboxProcessor *event.OutboxProcessor
	if cfg.Event.OutboxEnabled {
		outboxProcessor = event.NewOutboxProcessor(outboxRepo, eventBus, serializer, event.OutboxProcessorConfig{
			BatchSize:        cfg.Event.BatchSize,
			PollInterval:     cfg.Event.PollInterval,
			CleanupEnabled:   cfg.Event.CleanupEnabled,
			CleanupRetention: cfg.Event.CleanupRetention,
		}, log)
		if err := outboxProcessor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	if err := middleware.SetupValidator(); err != nil {
		log.Fatal("Failed to register validators", zap.Error(err))
	}

	engine, err := router.NewEngine(router.EngineConfig{
		Logger:         log,
		Validator:      auth.NewValidator(cfg.JWT),
		Meter:          meter,
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: cfg.Telemetry.Enabled,
		Profiling:      cfg.Telemetry.ProfilingEnabled,
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
	}, router.Handlers{
		Rules:    handler.NewRevenueRuleHandler(ruleService),
		Payments: handler.NewPaymentHandler(approvalService, ledgerService),
		Ledger:   handler.NewLedgerHandler(ledgerService, balanceService, settlementService, payoutService),
		Outbox:   handler.NewOutboxHandler(outboxService),
		System:   handler.NewSystemHandler(version, db),
	})
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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if outboxProcessor != nil {
		if err := outboxProcessor.Stop(shutdownCtx); err != nil {
			log.Error("Error stopping outbox processor", zap.Error(err))
		}
	}
	if err := eventBus.Stop(shutdownCtx); err != nil {
		log.Error("Error stopping event bus", zap.Error(err))
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Error shutting down telemetry", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

func revenueSettings(cfg config.RevenueConfig, log *zap.Logger) apprevenue.Settings {
	settings := apprevenue.DefaultSettings()
	if cfg.ApprovalQuorum > 0 {
		settings.ApprovalQuorum = cfg.ApprovalQuorum
	}
	if cfg.MaxRetries > 0 {
		settings.MaxRetries = cfg.MaxRetries
	}
	if cfg.SummaryConcurrency > 0 {
		settings.SummaryConcurrency = cfg.SummaryConcurrency
	}
	if cfg.DefaultCurrency != "" {
		cur, err := valueobject.ParseCurrency(cfg.DefaultCurrency)
		if err != nil {
			log.Fatal("Invalid revenue.default_currency", zap.Error(err))
		}
		settings.DefaultCurrency = cur
	}
	return settings
}

// subscribers builds the event handlers, each wrapped for idempotent delivery
func subscribers(
	ctx context.Context,
	cfg *config.Config,
	ledger *apprevenue.LedgerService,
	stores *cache.Stores,
	meter metric.Meter,
	log *zap.Logger,
) []shared.EventHandler {
	handlers := []shared.EventHandler{
		eventapp.NewBalanceCacheInvalidator(stores.Balances, log),
	}

	if metrics, err := telemetry.NewRevenueMetrics(meter); err != nil {
		log.Warn("Revenue metrics disabled", zap.Error(err))
	} else {
		handlers = append(handlers, eventapp.NewRevenueMetricsRecorder(metrics))
	}

	if cfg.Revenue.AutoProcessOnVerify {
		handlers = append(handlers, eventapp.NewAutoRevenueProcessor(ledger, log))
	}

	if cfg.Storage.Enabled {
		archive, err := storage.NewS3Archive(ctx, cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize settlement archive", zap.Error(err))
		}
		if err := archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare settlement archive bucket", zap.Error(err))
		}
		handlers = append(handlers, eventapp.NewSettlementArchiver(archive, log))
	}

	idem := shared.DefaultIdempotencyConfig()
	if cfg.Event.IdempotencyTTL > 0 {
		idem.TTL = cfg.Event.IdempotencyTTL
	}
	return event.WrapHandlersWithIdempotency(handlers, stores.Idempotency, log,
		event.WithIdempotencyConfig(idem))
}
