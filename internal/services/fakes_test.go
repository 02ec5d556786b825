package services

import (
	"context"
	"sync"
	"testing"

	"blocks/internal/core"
	"blocks/internal/feed"
	"blocks/internal/storage"
)

// fakeSource serves fixed documents. When gate is set, category and
// transaction fetches block until it is closed. transactionsGate and
// budgetGate hold back only their own call.
type fakeSource struct {
	mu           sync.Mutex
	categories   string
	transactions string
	budget       string
	err          error
	gate         chan struct{}
	started      chan struct{}

	transactionsGate    chan struct{}
	transactionsStarted chan struct{}
	budgetGate          chan struct{}
	budgetStarted       chan struct{}

	budgetCalls []core.Money
}

func (f *fakeSource) wait(ctx context.Context) error {
	return hold(ctx, f.started, f.gate)
}

// hold signals started, when set, and blocks until gate is closed.
func hold(ctx context.Context, started, gate chan struct{}) error {
	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) FetchCategories(ctx context.Context) (feed.Node, error) {
	if err := f.wait(ctx); err != nil {
		return feed.Node{}, err
	}
	if f.err != nil {
		return feed.Node{}, f.err
	}
	return feed.MustParse(f.categories), nil
}

func (f *fakeSource) FetchTransactions(ctx context.Context) (feed.Node, error) {
	if err := f.wait(ctx); err != nil {
		return feed.Node{}, err
	}
	if err := hold(ctx, f.transactionsStarted, f.transactionsGate); err != nil {
		return feed.Node{}, err
	}
	if f.err != nil {
		return feed.Node{}, f.err
	}
	return feed.MustParse(f.transactions), nil
}

func (f *fakeSource) SetCategoryBudget(ctx context.Context, _ int64, budget core.Money) (feed.Node, error) {
	f.mu.Lock()
	f.budgetCalls = append(f.budgetCalls, budget)
	f.mu.Unlock()
	if err := hold(ctx, f.budgetStarted, f.budgetGate); err != nil {
		return feed.Node{}, err
	}
	if f.err != nil {
		return feed.Node{}, f.err
	}
	return feed.MustParse(f.budget), nil
}

// failingStore wraps a MemoryStore and fails every commit.
type failingStore struct {
	*storage.MemoryStore
	err error
}

func (s *failingStore) Begin(ctx context.Context) (*storage.WorkingSet, error) {
	ws, err := s.MemoryStore.Begin(ctx)
	if err != nil {
		return nil, err
	}
	var snap storage.Snapshot
	for _, c := range ws.Categories() {
		snap.Categories = append(snap.Categories, *c)
	}
	for _, t := range ws.Transactions() {
		snap.Transactions = append(snap.Transactions, *t)
	}
	return storage.NewWorkingSet(snap, func(context.Context, storage.Changes) error { return s.err }), nil
}

func snapshotOf(t *testing.T, s storage.Store) ([]core.Category, []core.Transaction) {
	t.Helper()
	ws, err := s.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer ws.Discard()
	var cats []core.Category
	for _, c := range ws.Categories() {
		cats = append(cats, *c)
	}
	var txs []core.Transaction
	for _, tx := range ws.Transactions() {
		txs = append(txs, *tx)
	}
	return cats, txs
}
