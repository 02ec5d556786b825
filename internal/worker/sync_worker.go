package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blocks/internal/amqp"
	"blocks/internal/core"
	"blocks/internal/services"
	"blocks/internal/sheets"
	"blocks/internal/storage"
)

// DefaultCategoryMaxAge is how old the last categories pass may be before
// SyncCategoriesIfNeeded refreshes it.
const DefaultCategoryMaxAge = 7 * 24 * time.Hour

// Syncer runs one sync pass of a kind.
type Syncer interface {
	Sync(ctx context.Context, kind core.SyncKind) <-chan services.Outcome
}

// Overviewer computes the budget overview exported after a pass.
type Overviewer interface {
	Overview(ctx context.Context) (core.BudgetOverview, error)
}

// ResultPublisher reports the result of a request back to its sender.
type ResultPublisher interface {
	PublishSyncResult(ctx context.Context, msg *amqp.SyncResultMessage) error
}

// Config wires the collaborators of a SyncWorker. Report and Results are
// optional.
type Config struct {
	Syncer         Syncer
	Store          storage.Store
	Spending       Overviewer
	Report         sheets.ReportWriter
	Results        ResultPublisher
	CategoryMaxAge time.Duration
}

// SyncWorker runs sync passes requested over AMQP and exports the resulting
// budget report.
type SyncWorker struct {
	syncer         Syncer
	store          storage.Store
	spending       Overviewer
	report         sheets.ReportWriter
	results        ResultPublisher
	categoryMaxAge time.Duration
	now            func() time.Time
}

func NewSyncWorker(cfg Config) *SyncWorker {
	if cfg.CategoryMaxAge <= 0 {
		cfg.CategoryMaxAge = DefaultCategoryMaxAge
	}
	return &SyncWorker{
		syncer:         cfg.Syncer,
		store:          cfg.Store,
		spending:       cfg.Spending,
		report:         cfg.Report,
		results:        cfg.Results,
		categoryMaxAge: cfg.CategoryMaxAge,
		now:            time.Now,
	}
}

// HandleSyncRequest processes a single sync request message from AMQP.
// Failed passes are reported in the result message and acknowledged; an
// error is returned only when the result could not be published, so the
// request is redelivered.
func (w *SyncWorker) HandleSyncRequest(ctx context.Context, msg *amqp.SyncRequestMessage) error {
	slog.InfoContext(ctx, "Processing sync request",
		"request_id", msg.RequestID,
		"kind", msg.Kind)

	out, err := w.runSync(ctx, msg.Kind)
	if err != nil {
		return err
	}

	result := &amqp.SyncResultMessage{
		RequestID: msg.RequestID,
		Kind:      msg.Kind,
		Result:    string(out.Result()),
		Message:   out.Message,
		Created:   out.Stats.Created,
		Updated:   out.Stats.Updated,
		Skipped:   out.Stats.Skipped,
		Finished:  out.Finished,
	}
	if out.Err != nil {
		result.Error = out.Err.Error()
	}

	if out.Result() == services.ResultSuccess {
		ref, err := w.ExportReport(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Failed to export budget report",
				"request_id", msg.RequestID,
				"error", err)
			result.ExportError = err.Error()
		}
		result.SheetsRef = ref
	}

	if w.results == nil {
		return nil
	}
	if err := w.results.PublishSyncResult(ctx, result); err != nil {
		return fmt.Errorf("publish sync result: %w", err)
	}

	slog.InfoContext(ctx, "Sync request completed",
		"request_id", msg.RequestID,
		"kind", msg.Kind,
		"result", result.Result,
		"sheets_ref", result.SheetsRef)
	return nil
}

// ExportReport writes the current budget overview through the report
// writer. It is a no-op without one.
func (w *SyncWorker) ExportReport(ctx context.Context) (string, error) {
	if w.report == nil || w.spending == nil {
		return "", nil
	}
	overview, err := w.spending.Overview(ctx)
	if err != nil {
		return "", fmt.Errorf("compute overview: %w", err)
	}
	ref, err := w.report.WriteOverview(ctx, overview)
	if err != nil {
		return "", fmt.Errorf("write overview: %w", err)
	}
	return ref, nil
}

// SyncCategoriesIfNeeded runs a categories pass when:
// 1. the store holds no category, or
// 2. the last successful categories pass is older than the max age.
func (w *SyncWorker) SyncCategoriesIfNeeded(ctx context.Context) error {
	count, err := w.categoryCount(ctx)
	if err != nil {
		return fmt.Errorf("check category count: %w", err)
	}

	if count == 0 {
		slog.InfoContext(ctx, "No categories found in store, loading from feed...")
		return w.syncCategories(ctx)
	}

	lastSync, err := w.store.LastSync(ctx, core.KindCategories)
	if err != nil {
		slog.WarnContext(ctx, "Could not determine last sync time, keeping current categories", "error", err)
		return nil
	}

	age := w.now().Sub(lastSync)
	if lastSync.IsZero() || age > w.categoryMaxAge {
		slog.InfoContext(ctx, "Categories are stale, refreshing from feed",
			"last_sync", lastSync.Format(time.RFC3339),
			"age", age.Round(time.Hour))
		return w.syncCategories(ctx)
	}

	slog.InfoContext(ctx, "Categories are fresh",
		"count", count,
		"last_sync", lastSync.Format(time.RFC3339),
		"age", age.Round(time.Hour))
	return nil
}

// ForceRefreshCategories runs a categories pass regardless of age.
func (w *SyncWorker) ForceRefreshCategories(ctx context.Context) error {
	slog.InfoContext(ctx, "Force refreshing categories from feed")
	return w.syncCategories(ctx)
}

// StartupSync refreshes stale categories and then syncs transactions, so a
// worker that was down catches up before consuming requests.
func (w *SyncWorker) StartupSync(ctx context.Context) error {
	if err := w.SyncCategoriesIfNeeded(ctx); err != nil {
		return err
	}
	out, err := w.runSync(ctx, core.KindTransactions)
	if err != nil {
		return err
	}
	if out.Err != nil {
		return fmt.Errorf("startup transactions sync: %w", out.Err)
	}
	slog.InfoContext(ctx, "Startup sync completed",
		"result", out.Result(),
		"created", out.Stats.Created,
		"updated", out.Stats.Updated,
		"skipped", out.Stats.Skipped)
	return nil
}

func (w *SyncWorker) syncCategories(ctx context.Context) error {
	out, err := w.runSync(ctx, core.KindCategories)
	if err != nil {
		return err
	}
	if out.Err != nil {
		return fmt.Errorf("sync categories: %w", out.Err)
	}
	if out.Message != "" {
		slog.WarnContext(ctx, "Categories sync returned server message", "message", out.Message)
		return nil
	}
	slog.InfoContext(ctx, "Categories successfully synced",
		"created", out.Stats.Created,
		"updated", out.Stats.Updated,
		"skipped", out.Stats.Skipped)
	return nil
}

// runSync starts a pass and waits for its outcome or for ctx to end.
func (w *SyncWorker) runSync(ctx context.Context, kind core.SyncKind) (services.Outcome, error) {
	select {
	case out := <-w.syncer.Sync(ctx, kind):
		return out, nil
	case <-ctx.Done():
		return services.Outcome{}, ctx.Err()
	}
}

func (w *SyncWorker) categoryCount(ctx context.Context) (int, error) {
	ws, err := w.store.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer ws.Discard()
	return len(ws.Categories()), nil
}
