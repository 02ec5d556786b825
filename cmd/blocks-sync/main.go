package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"blocks/internal/backend"
	"blocks/internal/cli"
	"blocks/internal/config"
	"blocks/internal/log"
	"blocks/internal/services"
	"blocks/internal/worker"
)

// app holds what every subcommand needs. It is built once before the
// subcommand runs.
type app struct {
	logger       *log.Logger
	cfg          *config.Config
	store        *backend.BackendResult
	orchestrator *services.Orchestrator
	spending     *services.SpendingService
	worker       *worker.SyncWorker
}

var (
	current *app
	rootCmd = &cobra.Command{
		Use:               "blocks-sync",
		Short:             "Run one-shot budget sync operations",
		Long:              "blocks-sync runs a single sync pass, budget update, clear or report export against the configured store and feed, then exits.",
		SilenceUsage:      true,
		PersistentPreRunE: setup,
	}
)

func init() {
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(budgetCmd())
	rootCmd.AddCommand(clearCmd())
	rootCmd.AddCommand(overviewCmd())
	rootCmd.AddCommand(reportCmd())
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	if current != nil {
		current.close()
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, _ []string) error {
	cli.LoadEnvFile()
	ctx := cmd.Context()
	logger := cli.SetupLogger(log.ComponentSync)
	cfg := cli.LoadAndValidateConfig(ctx, logger)
	store := cli.InitStore(ctx, logger, cfg)

	feedClient, err := cli.NewFeedClient(cfg)
	if err != nil {
		_ = store.Cleanup()
		return fmt.Errorf("feed client: %w", err)
	}
	report, err := cli.NewReportWriter(ctx, cfg)
	if err != nil {
		_ = store.Cleanup()
		return fmt.Errorf("report writer: %w", err)
	}

	orchestrator := services.NewOrchestrator(store.Store, feedClient, logger)
	spending := services.NewSpendingService(store.Store)
	current = &app{
		logger:       logger,
		cfg:          cfg,
		store:        store,
		orchestrator: orchestrator,
		spending:     spending,
		worker: worker.NewSyncWorker(worker.Config{
			Syncer:         orchestrator,
			Store:          store.Store,
			Spending:       spending,
			Report:         report,
			CategoryMaxAge: cfg.CategoryMaxAge,
		}),
	}
	return nil
}

func (a *app) close() {
	if err := a.store.Cleanup(); err != nil {
		a.logger.WarnContext(context.Background(), "Store close error", log.FieldError, err)
	}
}
