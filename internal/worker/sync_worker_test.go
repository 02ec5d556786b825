package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocks/internal/amqp"
	"blocks/internal/core"
	"blocks/internal/reconcile"
	"blocks/internal/services"
	"blocks/internal/sheets/memory"
	"blocks/internal/storage"
)

type fakeSyncer struct {
	mu       sync.Mutex
	outcomes map[core.SyncKind]services.Outcome
	calls    []core.SyncKind
	block    bool
}

func (f *fakeSyncer) Sync(_ context.Context, kind core.SyncKind) <-chan services.Outcome {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, kind)
	ch := make(chan services.Outcome, 1)
	if f.block {
		return ch
	}
	out := f.outcomes[kind]
	out.Kind = kind
	ch <- out
	close(ch)
	return ch
}

func (f *fakeSyncer) Calls() []core.SyncKind {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]core.SyncKind(nil), f.calls...)
}

type fakePublisher struct {
	mu      sync.Mutex
	results []*amqp.SyncResultMessage
	err     error
}

func (p *fakePublisher) PublishSyncResult(_ context.Context, msg *amqp.SyncResultMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.results = append(p.results, msg)
	return nil
}

type failingWriter struct{}

func (failingWriter) WriteOverview(context.Context, core.BudgetOverview) (string, error) {
	return "", errors.New("quota exceeded")
}

func seededStore() *storage.MemoryStore {
	return storage.NewMemoryStore(storage.Snapshot{
		Categories: []core.Category{{CategoryID: 1, Name: "Food", Budget: core.Money{Cents: 10000}}},
		Transactions: []core.Transaction{
			{TransactionID: "t1", Name: "Groceries", Amount: core.Money{Cents: 2500}, Date: core.NewDate(2024, 3, 1), CategoryID: core.CategoryRef(1)},
		},
	})
}

func TestHandleSyncRequestPublishesResultAndReport(t *testing.T) {
	store := seededStore()
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{
		core.KindTransactions: {Stats: reconcile.Stats{Created: 2, Updated: 1, Skipped: 1}},
	}}
	report := memory.New()
	pub := &fakePublisher{}
	w := NewSyncWorker(Config{
		Syncer:   syncer,
		Store:    store,
		Spending: services.NewSpendingService(store),
		Report:   report,
		Results:  pub,
	})

	msg := amqp.NewSyncRequestMessage(core.KindTransactions)
	require.NoError(t, w.HandleSyncRequest(context.Background(), msg))

	require.Len(t, pub.results, 1)
	res := pub.results[0]
	assert.Equal(t, msg.RequestID, res.RequestID)
	assert.Equal(t, string(services.ResultSuccess), res.Result)
	assert.Equal(t, 2, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, "mem:1", res.SheetsRef)
	assert.Empty(t, res.Error)

	rows := report.Last()
	require.NotEmpty(t, rows)
	assert.Equal(t, "Food", rows[1][1])
	assert.Equal(t, "25.00", rows[1][3])
}

func TestHandleSyncRequestReportsFailureWithoutExport(t *testing.T) {
	store := seededStore()
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{
		core.KindCategories: {Err: errors.New("connection refused")},
	}}
	report := memory.New()
	pub := &fakePublisher{}
	w := NewSyncWorker(Config{Syncer: syncer, Store: store, Spending: services.NewSpendingService(store), Report: report, Results: pub})

	require.NoError(t, w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage(core.KindCategories)))

	require.Len(t, pub.results, 1)
	assert.Equal(t, string(services.ResultFailure), pub.results[0].Result)
	assert.Equal(t, "connection refused", pub.results[0].Error)
	assert.Empty(t, report.Reports())
}

func TestHandleSyncRequestPassesServerMessage(t *testing.T) {
	store := seededStore()
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{
		core.KindTransactions: {Message: "Bank link expired"},
	}}
	pub := &fakePublisher{}
	w := NewSyncWorker(Config{Syncer: syncer, Store: store, Results: pub})

	require.NoError(t, w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage(core.KindTransactions)))
	require.Len(t, pub.results, 1)
	assert.Equal(t, string(services.ResultPartialFailure), pub.results[0].Result)
	assert.Equal(t, "Bank link expired", pub.results[0].Message)
}

func TestHandleSyncRequestExportFailureIsReported(t *testing.T) {
	store := seededStore()
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{}}
	pub := &fakePublisher{}
	w := NewSyncWorker(Config{Syncer: syncer, Store: store, Spending: services.NewSpendingService(store), Report: failingWriter{}, Results: pub})

	require.NoError(t, w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage(core.KindCategories)))
	require.Len(t, pub.results, 1)
	assert.Equal(t, string(services.ResultSuccess), pub.results[0].Result)
	assert.Empty(t, pub.results[0].Error)
	assert.Contains(t, pub.results[0].ExportError, "quota exceeded")
}

func TestHandleSyncRequestPublishFailureRequeues(t *testing.T) {
	store := seededStore()
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{}}
	pub := &fakePublisher{err: errors.New("circuit breaker is open")}
	w := NewSyncWorker(Config{Syncer: syncer, Store: store, Results: pub})

	err := w.HandleSyncRequest(context.Background(), amqp.NewSyncRequestMessage(core.KindCategories))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish sync result")
}

func TestHandleSyncRequestStopsOnContextCancel(t *testing.T) {
	store := seededStore()
	w := NewSyncWorker(Config{Syncer: &fakeSyncer{block: true}, Store: store})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := w.HandleSyncRequest(ctx, amqp.NewSyncRequestMessage(core.KindCategories))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSyncCategoriesIfNeeded(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name     string
		store    func(t *testing.T) *storage.MemoryStore
		wantSync bool
	}{
		{
			name: "empty store",
			store: func(*testing.T) *storage.MemoryStore {
				return storage.NewMemoryStore(storage.Snapshot{})
			},
			wantSync: true,
		},
		{
			name: "never synced",
			store: func(*testing.T) *storage.MemoryStore {
				return seededStore()
			},
			wantSync: true,
		},
		{
			name: "stale",
			store: func(t *testing.T) *storage.MemoryStore {
				s := seededStore()
				require.NoError(t, s.MarkSynced(context.Background(), core.KindCategories, now.Add(-8*24*time.Hour)))
				return s
			},
			wantSync: true,
		},
		{
			name: "fresh",
			store: func(t *testing.T) *storage.MemoryStore {
				s := seededStore()
				require.NoError(t, s.MarkSynced(context.Background(), core.KindCategories, now.Add(-time.Hour)))
				return s
			},
			wantSync: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{}}
			w := NewSyncWorker(Config{Syncer: syncer, Store: tt.store(t)})
			w.now = func() time.Time { return now }

			require.NoError(t, w.SyncCategoriesIfNeeded(context.Background()))
			if tt.wantSync {
				assert.Equal(t, []core.SyncKind{core.KindCategories}, syncer.Calls())
			} else {
				assert.Empty(t, syncer.Calls())
			}
		})
	}
}

func TestSyncCategoriesIfNeededReturnsPassError(t *testing.T) {
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{
		core.KindCategories: {Err: errors.New("boom")},
	}}
	w := NewSyncWorker(Config{Syncer: syncer, Store: storage.NewMemoryStore(storage.Snapshot{})})

	err := w.SyncCategoriesIfNeeded(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestStartupSyncRunsBothKinds(t *testing.T) {
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{}}
	w := NewSyncWorker(Config{Syncer: syncer, Store: storage.NewMemoryStore(storage.Snapshot{})})

	require.NoError(t, w.StartupSync(context.Background()))
	assert.Equal(t, []core.SyncKind{core.KindCategories, core.KindTransactions}, syncer.Calls())
}

func TestForceRefreshCategories(t *testing.T) {
	syncer := &fakeSyncer{outcomes: map[core.SyncKind]services.Outcome{}}
	store := seededStore()
	require.NoError(t, store.MarkSynced(context.Background(), core.KindCategories, time.Now()))
	w := NewSyncWorker(Config{Syncer: syncer, Store: store})

	require.NoError(t, w.ForceRefreshCategories(context.Background()))
	assert.Equal(t, []core.SyncKind{core.KindCategories}, syncer.Calls())
}

func TestExportReportWithoutWriter(t *testing.T) {
	w := NewSyncWorker(Config{Syncer: &fakeSyncer{}, Store: seededStore()})
	ref, err := w.ExportReport(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ref)
}
