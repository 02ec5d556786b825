package storage

import (
	"context"
	"sync"
	"time"

	"blocks/internal/core"
)

// MemoryStore keeps the durable state in process memory. Commits are applied
// under a single lock so readers never see half of a diff.
type MemoryStore struct {
	mu           sync.Mutex
	categories   map[int64]core.Category
	transactions map[string]core.Transaction
	synced       map[core.SyncKind]time.Time
}

// NewMemoryStore returns a store seeded with snap.
func NewMemoryStore(snap Snapshot) *MemoryStore {
	s := &MemoryStore{
		categories:   make(map[int64]core.Category),
		transactions: make(map[string]core.Transaction),
		synced:       make(map[core.SyncKind]time.Time),
	}
	for _, c := range snap.Categories {
		s.categories[c.CategoryID] = c
	}
	for _, t := range snap.Transactions {
		s.transactions[t.TransactionID] = cloneTransaction(t)
	}
	return s
}

func (s *MemoryStore) Begin(_ context.Context) (*WorkingSet, error) {
	s.mu.Lock()
	snap := Snapshot{
		Categories:   make([]core.Category, 0, len(s.categories)),
		Transactions: make([]core.Transaction, 0, len(s.transactions)),
	}
	for _, c := range s.categories {
		snap.Categories = append(snap.Categories, c)
	}
	for _, t := range s.transactions {
		snap.Transactions = append(snap.Transactions, cloneTransaction(t))
	}
	s.mu.Unlock()
	return NewWorkingSet(snap, s.apply), nil
}

func (s *MemoryStore) apply(ctx context.Context, ch Changes) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range ch.UpsertCategories {
		s.categories[c.CategoryID] = c
	}
	for _, t := range ch.UpsertTransactions {
		s.transactions[t.TransactionID] = cloneTransaction(t)
	}
	for _, id := range ch.DeleteTransactions {
		delete(s.transactions, id)
	}
	for _, id := range ch.DeleteCategories {
		delete(s.categories, id)
		for tid, t := range s.transactions {
			if t.LinkedTo(id) {
				t.CategoryID = nil
				s.transactions[tid] = t
			}
		}
	}
	return nil
}

func (s *MemoryStore) LastSync(_ context.Context, kind core.SyncKind) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.synced[kind], nil
}

func (s *MemoryStore) MarkSynced(_ context.Context, kind core.SyncKind, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced[kind] = at
	return nil
}

func (s *MemoryStore) Close() error { return nil }
