package main

import (
	"context"
	"errors"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"blocks/internal/amqp"
	"blocks/internal/cache"
	"blocks/internal/cli"
	"blocks/internal/core"
	"blocks/internal/log"
	"blocks/internal/services"
	"blocks/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	ctx := context.Background()

	logger.InfoContext(ctx, "Starting blocks-worker")

	cfg := cli.LoadAndValidateConfig(ctx, logger)
	if !cfg.AMQPEnabled() {
		logger.ErrorContext(ctx, "AMQP_URL is required for the worker")
		os.Exit(1)
	}

	store := cli.InitStore(ctx, logger, cfg)
	defer func() {
		if err := store.Cleanup(); err != nil {
			logger.WarnContext(ctx, "Store close error", log.FieldError, err)
		}
	}()

	feedClient, err := cli.NewFeedClient(cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize feed client", log.FieldError, err)
		os.Exit(1)
	}
	caches := cache.NewManager()
	caches.Register(feedClient.Cleaner())
	defer caches.Stop()

	report, err := cli.NewReportWriter(ctx, cfg)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize Google Sheets client", log.FieldError, err)
		os.Exit(1)
	}
	if report != nil {
		logger.InfoContext(ctx, "Google Sheets report enabled",
			"spreadsheet_id", cfg.GoogleSpreadsheetID,
			"sheet", cfg.ReportSheetName)
	} else {
		logger.InfoContext(ctx, "Google Sheets report disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	amqpClient, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to initialize AMQP client", log.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	orchestrator := services.NewOrchestrator(store.Store, feedClient, logger.WithComponent(log.ComponentSync))
	syncWorker := worker.NewSyncWorker(worker.Config{
		Syncer:         orchestrator,
		Store:          store.Store,
		Spending:       services.NewSpendingService(store.Store),
		Report:         report,
		Results:        amqpClient,
		CategoryMaxAge: cfg.CategoryMaxAge,
	})

	runCtx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)
	caches.StartCleanup(runCtx, cfg.FeedCacheTTL)

	// Catch up before consuming requests; a failure here is not fatal.
	logger.InfoContext(runCtx, "Performing startup sync")
	if err := syncWorker.StartupSync(runCtx); err != nil {
		logger.LogError(runCtx, "Startup sync failed", err, log.OpStartup, nil)
	}

	scheduler := services.NewScheduler(orchestrator, services.SchedulerConfig{
		Interval: cfg.SyncInterval,
		OnOutcome: func(ctx context.Context, out services.Outcome) {
			if out.Kind != core.KindTransactions || out.Result() != services.ResultSuccess {
				return
			}
			ref, err := syncWorker.ExportReport(ctx)
			if err != nil {
				logger.LogError(ctx, "Scheduled report export failed", err, log.OpExport, nil)
				return
			}
			if ref != "" {
				logger.InfoContext(ctx, "Budget report exported", log.FieldSheetsRef, ref)
			}
		},
	})

	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return amqpClient.ConsumeSyncRequests(gctx, syncWorker.HandleSyncRequest)
	})
	g.Go(func() error {
		if err := scheduler.Start(gctx); err != nil {
			return err
		}
		scheduler.Wait()
		return nil
	})

	logger.InfoContext(runCtx, "Worker running",
		"queue", cfg.AMQPQueue,
		"sync_interval", cfg.SyncInterval)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.ErrorContext(ctx, "Worker stopped with error", log.FieldError, err)
		os.Exit(1)
	}

	cli.WaitForShutdown(runCtx, done)
	logger.InfoContext(ctx, "Worker shutdown complete")
}
