package app

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/ayo6706/escrow-ledger/internal/api"
	"github.com/ayo6706/escrow-ledger/internal/api/middleware"
	"github.com/ayo6706/escrow-ledger/internal/config"
	"github.com/ayo6706/escrow-ledger/internal/db"
	"github.com/ayo6706/escrow-ledger/internal/events"
	"github.com/ayo6706/escrow-ledger/internal/gateway"
	"github.com/ayo6706/escrow-ledger/internal/idempotency"
	"github.com/ayo6706/escrow-ledger/internal/lock"
	"github.com/ayo6706/escrow-ledger/internal/observability"
	"github.com/ayo6706/escrow-ledger/internal/repository"
	"github.com/ayo6706/escrow-ledger/internal/service"
	"github.com/ayo6706/escrow-ledger/internal/worker"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// serviceVersion is stamped at build time with -ldflags "-X ...app.serviceVersion=...".
var serviceVersion = "dev"

// Run bootstraps the HTTP server and background workers, blocking until
// shutdown.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)
	observability.Init()
	middleware.SetJWTSecret(cfg.JWTSecret)
	middleware.SetJWTValidation(cfg.JWTIssuer, cfg.JWTAudience)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.ServiceName,
		ServiceVersion: serviceVersion,
		Endpoint:       cfg.OTLPEndpoint,
	})
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, flushCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer flushCancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}()
	if cfg.OTLPEndpoint != "" {
		logger.Info("exporting traces", zap.String("endpoint", cfg.OTLPEndpoint))
	}

	if cfg.MigrateOnStart {
		if err := db.Migrate(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
		logger.Info("database migrations applied")
	}

	pool, err := db.Connect(ctx, cfg.DatabaseURL, db.PoolOptions{MaxConns: cfg.DBMaxConns, StatementTimeout: 30 * time.Second})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	// Redis is optional. Without it idempotency lives in Postgres only and
	// scheduled jobs are guarded per process.
	var (
		redisCmd redis.Cmdable
		locker   lock.Locker = lock.NewLocalLock()
	)
	if cfg.RedisURL != "" {
		redisClient, err := newRedisClient(cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer redisClient.Close()
		redisCmd = redisClient
		locker = lock.NewDistributedLock(redisClient, 2*time.Minute)
	} else {
		logger.Warn("REDIS_URL not set, using in-process locks")
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		return fmt.Errorf("connect event broker: %w", err)
	}
	defer closePublisher()

	store := repository.NewStore(pool).WithLockTimeout(cfg.LockTimeout)
	idemStore := idempotency.NewStore(redisCmd, pool, cfg.IdempotencyTTL)

	ledgerSvc := service.NewLedgerService(store)
	catalog := service.NewServiceTypeCatalog(store)
	escrowSvc := service.NewEscrowService(store, ledgerSvc, catalog, publisher)
	payoutGateway := gateway.NewBreakerGateway(gateway.NewMockGateway(), cfg.GatewayTripAfter, cfg.GatewayOpenFor)
	withdrawalSvc := service.NewWithdrawalService(store, ledgerSvc, payoutGateway)
	webhookSvc := service.NewWebhookService(store, ledgerSvc, cfg.WebhookHMACKey, cfg.WebhookSkipSignature)
	reconciliationSvc := service.NewReconciliationService(store)

	withdrawalWorker := worker.NewWithdrawalWorker(withdrawalSvc).
		WithPollInterval(cfg.WithdrawalPollInterval).
		WithBatchSize(cfg.WithdrawalBatchSize)
	stopWithdrawals := withdrawalWorker.Run(ctx)
	logger.Info("withdrawal worker started", zap.Duration("interval", cfg.WithdrawalPollInterval), zap.Int32("batch", cfg.WithdrawalBatchSize))

	reconciliationWorker := worker.NewReconciliationWorker(reconciliationSvc, locker).
		WithInterval(cfg.ReconciliationInterval)
	stopReconciliation := reconciliationWorker.Run(ctx)

	expiry := worker.NewExpiryScheduler(escrowSvc, locker).
		WithSchedule(cfg.ExpirySchedule).
		WithBatchSize(cfg.ExpiryBatchSize).
		WithIdempotencyPurge(idemStore, worker.DefaultPurgeSchedule)
	if err := expiry.Start(); err != nil {
		stopWithdrawals()
		stopReconciliation()
		return fmt.Errorf("start expiry scheduler: %w", err)
	}
	logger.Info("expiry scheduler started", zap.String("schedule", cfg.ExpirySchedule))

	router := api.NewRouter(cfg, logger, pool, redisCmd, idemStore, api.Services{
		Ledger:       ledgerSvc,
		Escrows:      escrowSvc,
		Withdrawals:  withdrawalSvc,
		Webhooks:     webhookSvc,
		ServiceTypes: catalog,
	})

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router.Routes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("http server starting", zap.String("port", cfg.HTTPPort))
		serverErr <- server.ListenAndServe()
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	var runErr error
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case err := <-serverErr:
		if err != nil && err != http.ErrServerClosed {
			runErr = fmt.Errorf("server error: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}

	logger.Info("stopping background workers")
	select {
	case <-expiry.Stop().Done():
	case <-shutdownCtx.Done():
		logger.Warn("expiry sweep did not finish before shutdown deadline")
	}
	stopWithdrawals()
	stopReconciliation()

	logger.Info("shutdown complete")
	return runErr
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	switch strings.ToLower(level) {
	case "debug":
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info", "":
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}
	return cfg.Build()
}

func newRedisClient(url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// newPublisher dials the broker when AMQP_URL is set and otherwise falls back
// to logging events.
func newPublisher(cfg *config.Config, logger *zap.Logger) (service.EventPublisher, func(), error) {
	if cfg.AMQPURL == "" {
		logger.Warn("AMQP_URL not set, escrow events will only be logged")
		return events.LogPublisher{}, func() {}, nil
	}
	pub, err := events.Dial(cfg.AMQPURL, events.Options{Exchange: cfg.EventsExchange})
	if err != nil {
		return nil, nil, err
	}
	logger.Info("publishing escrow events", zap.String("exchange", cfg.EventsExchange))
	return pub, pub.Close, nil
}
