package storage

import (
	"context"
	"fmt"
	"sort"

	"blocks/internal/core"
)

// WorkingSet is an in-memory view of the store. Pointers returned by its
// accessors are the live instances: writing to their fields is an update that
// Commit will persist. A WorkingSet is not safe for concurrent use.
type WorkingSet struct {
	categories   map[int64]*core.Category
	transactions map[string]*core.Transaction

	baseCategories   map[int64]core.Category
	baseTransactions map[string]core.Transaction

	apply     ApplyFunc
	discarded bool
}

// NewWorkingSet builds a working set over snap. Backends call it from Begin
// with the function that persists the committed diff.
func NewWorkingSet(snap Snapshot, apply ApplyFunc) *WorkingSet {
	ws := &WorkingSet{
		categories:   make(map[int64]*core.Category, len(snap.Categories)),
		transactions: make(map[string]*core.Transaction, len(snap.Transactions)),
		apply:        apply,
	}
	for _, c := range snap.Categories {
		c := c
		ws.categories[c.CategoryID] = &c
	}
	for _, t := range snap.Transactions {
		t := cloneTransaction(t)
		ws.transactions[t.TransactionID] = &t
	}
	ws.rebase()
	return ws
}

// Categories returns every category ordered by id.
func (ws *WorkingSet) Categories() []*core.Category {
	out := make([]*core.Category, 0, len(ws.categories))
	for _, c := range ws.categories {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CategoryID < out[j].CategoryID })
	return out
}

// Transactions returns every transaction ordered by id.
func (ws *WorkingSet) Transactions() []*core.Transaction {
	out := make([]*core.Transaction, 0, len(ws.transactions))
	for _, t := range ws.transactions {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TransactionID < out[j].TransactionID })
	return out
}

func (ws *WorkingSet) CategoryByID(id int64) (*core.Category, bool) {
	c, ok := ws.categories[id]
	return c, ok
}

func (ws *WorkingSet) TransactionByID(id string) (*core.Transaction, bool) {
	t, ok := ws.transactions[id]
	return t, ok
}

// CreateCategory inserts c into the working set and returns the live instance.
func (ws *WorkingSet) CreateCategory(c core.Category) (*core.Category, error) {
	if _, exists := ws.categories[c.CategoryID]; exists {
		return nil, fmt.Errorf("category %d: %w", c.CategoryID, ErrDuplicateID)
	}
	ws.categories[c.CategoryID] = &c
	return &c, nil
}

// CreateTransaction inserts t into the working set and returns the live instance.
func (ws *WorkingSet) CreateTransaction(t core.Transaction) (*core.Transaction, error) {
	if _, exists := ws.transactions[t.TransactionID]; exists {
		return nil, fmt.Errorf("transaction %s: %w", t.TransactionID, ErrDuplicateID)
	}
	t = cloneTransaction(t)
	ws.transactions[t.TransactionID] = &t
	return &t, nil
}

// DeleteCategory removes a category and unlinks every transaction that
// referenced it.
func (ws *WorkingSet) DeleteCategory(id int64) error {
	if _, ok := ws.categories[id]; !ok {
		return fmt.Errorf("category %d: %w", id, ErrNotFound)
	}
	delete(ws.categories, id)
	for _, t := range ws.transactions {
		if t.LinkedTo(id) {
			t.CategoryID = nil
		}
	}
	return nil
}

func (ws *WorkingSet) DeleteTransaction(id string) error {
	if _, ok := ws.transactions[id]; !ok {
		return fmt.Errorf("transaction %s: %w", id, ErrNotFound)
	}
	delete(ws.transactions, id)
	return nil
}

// DeleteAll removes every transaction and then every category.
func (ws *WorkingSet) DeleteAll() {
	clear(ws.transactions)
	clear(ws.categories)
}

// Changes computes the staged diff against the loaded snapshot.
func (ws *WorkingSet) Changes() Changes {
	var ch Changes
	for _, c := range ws.Categories() {
		if base, ok := ws.baseCategories[c.CategoryID]; !ok || base != *c {
			ch.UpsertCategories = append(ch.UpsertCategories, *c)
		}
	}
	for _, t := range ws.Transactions() {
		if base, ok := ws.baseTransactions[t.TransactionID]; !ok || !sameTransaction(base, *t) {
			ch.UpsertTransactions = append(ch.UpsertTransactions, cloneTransaction(*t))
		}
	}
	for id := range ws.baseTransactions {
		if _, ok := ws.transactions[id]; !ok {
			ch.DeleteTransactions = append(ch.DeleteTransactions, id)
		}
	}
	for id := range ws.baseCategories {
		if _, ok := ws.categories[id]; !ok {
			ch.DeleteCategories = append(ch.DeleteCategories, id)
		}
	}
	sort.Strings(ch.DeleteTransactions)
	sort.Slice(ch.DeleteCategories, func(i, j int) bool { return ch.DeleteCategories[i] < ch.DeleteCategories[j] })
	return ch
}

// Validate checks that no transaction references a category missing from the
// working set.
func (ws *WorkingSet) Validate() error {
	for _, t := range ws.Transactions() {
		if t.CategoryID == nil {
			continue
		}
		if _, ok := ws.categories[*t.CategoryID]; !ok {
			return fmt.Errorf("transaction %s -> category %d: %w", t.TransactionID, *t.CategoryID, ErrDanglingCategory)
		}
	}
	return nil
}

// Commit persists the staged diff. On failure the durable store is left as
// it was and the error is returned unchanged apart from wrapping; the working
// set keeps its staged state so the caller can inspect or discard it. On
// success the working set becomes the new baseline.
func (ws *WorkingSet) Commit(ctx context.Context) error {
	if ws.discarded {
		return ErrWorkingSetDiscarded
	}
	if err := ws.Validate(); err != nil {
		return err
	}
	ch := ws.Changes()
	if ch.Empty() {
		return nil
	}
	if err := ws.apply(ctx, ch); err != nil {
		return fmt.Errorf("commit working set: %w", err)
	}
	ws.rebase()
	return nil
}

// Discard drops staged changes. The working set cannot be committed afterwards.
func (ws *WorkingSet) Discard() {
	ws.discarded = true
	ws.categories = ws.restoreCategories()
	ws.transactions = ws.restoreTransactions()
}

func (ws *WorkingSet) rebase() {
	ws.baseCategories = make(map[int64]core.Category, len(ws.categories))
	for id, c := range ws.categories {
		ws.baseCategories[id] = *c
	}
	ws.baseTransactions = make(map[string]core.Transaction, len(ws.transactions))
	for id, t := range ws.transactions {
		ws.baseTransactions[id] = cloneTransaction(*t)
	}
}

func (ws *WorkingSet) restoreCategories() map[int64]*core.Category {
	out := make(map[int64]*core.Category, len(ws.baseCategories))
	for id, c := range ws.baseCategories {
		c := c
		out[id] = &c
	}
	return out
}

func (ws *WorkingSet) restoreTransactions() map[string]*core.Transaction {
	out := make(map[string]*core.Transaction, len(ws.baseTransactions))
	for id, t := range ws.baseTransactions {
		t := cloneTransaction(t)
		out[id] = &t
	}
	return out
}

// cloneTransaction copies t so the category reference is not shared.
func cloneTransaction(t core.Transaction) core.Transaction {
	if t.CategoryID != nil {
		t.CategoryID = core.CategoryRef(*t.CategoryID)
	}
	return t
}

func sameTransaction(a, b core.Transaction) bool {
	if a.Name != b.Name || a.Amount != b.Amount || !a.Date.Equal(b.Date.Time) {
		return false
	}
	switch {
	case a.CategoryID == nil && b.CategoryID == nil:
		return true
	case a.CategoryID == nil || b.CategoryID == nil:
		return false
	default:
		return *a.CategoryID == *b.CategoryID
	}
}
