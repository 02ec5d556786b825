package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"blocks/internal/amqp"
	"blocks/internal/cache"
	"blocks/internal/cli"
	apphttp "blocks/internal/http"
	"blocks/internal/log"
	"blocks/internal/services"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	ctx := context.Background()

	cfg := cli.LoadAndValidateConfig(ctx, logger)
	store := cli.InitStore(ctx, logger, cfg)

	feedClient, err := cli.NewFeedClient(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize feed client", log.FieldError, err)
		os.Exit(1)
	}
	caches := cache.NewManager()
	caches.Register(feedClient.Cleaner())

	orchestrator := services.NewOrchestrator(store.Store, feedClient, logger.WithComponent(log.ComponentSync))

	deps := apphttp.Dependencies{
		Sync:         orchestrator,
		Spending:     services.NewSpendingService(store.Store),
		Transactions: services.NewTransactionService(store.Store),
		Logger:       logger.WithComponent(log.ComponentHTTP),
	}
	if pinger, ok := store.Store.(interface{ Ping(context.Context) error }); ok {
		deps.Ready = pinger.Ping
	}

	// With a broker, sync requests go to blocks-worker; without one the
	// server schedules its own passes.
	var (
		amqpClient *amqp.Client
		scheduler  *services.Scheduler
	)
	if cfg.AMQPEnabled() {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to initialize AMQP client", log.FieldError, err)
			os.Exit(1)
		}
		deps.Requests = amqpClient
		logger.InfoContext(ctx, "Sync requests delegated to worker", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		scheduler = services.NewScheduler(orchestrator, services.SchedulerConfig{
			Interval:   cfg.SyncInterval,
			RunOnStart: true,
		})
	}

	srv := apphttp.NewServer(":"+cfg.Port, deps)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = 2 * cfg.FeedTimeout
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16

	shutdownCtx, done := cli.GracefulShutdown(logger, 30*time.Second, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.ErrorContext(ctx, "Server shutdown error", log.FieldError, err)
		}
		if scheduler != nil {
			if err := scheduler.Stop(ctx); err != nil {
				logger.WarnContext(ctx, "Scheduler stop error", log.FieldError, err)
			}
		}
		caches.Stop()
		if amqpClient != nil {
			_ = amqpClient.Close()
		}
		if err := store.Cleanup(); err != nil {
			logger.WarnContext(ctx, "Store close error", log.FieldError, err)
		}
	})

	caches.StartCleanup(shutdownCtx, cfg.FeedCacheTTL)
	if scheduler != nil {
		if err := scheduler.Start(shutdownCtx); err != nil {
			logger.ErrorContext(ctx, "Failed to start scheduler", log.FieldError, err)
			os.Exit(1)
		}
	}

	logger.InfoContext(ctx, "Starting blocks server",
		"port", cfg.Port,
		"backend", cfg.StoreBackend,
		"amqp", cfg.AMQPEnabled(),
		"sync_interval", cfg.SyncInterval)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.ErrorContext(ctx, "Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(shutdownCtx, done)
	logger.InfoContext(ctx, "Server stopped gracefully")
}
