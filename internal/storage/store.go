// Package storage holds the local entity store: a working set that stages
// creates, in-place updates and deletes, and backends that commit the staged
// diff durably in one step.
package storage

import (
	"context"
	"errors"
	"time"

	"blocks/internal/core"
)

var (
	ErrDuplicateID         = errors.New("entity with this id already exists")
	ErrNotFound            = errors.New("entity not found")
	ErrDanglingCategory    = errors.New("transaction references a missing category")
	ErrWorkingSetDiscarded = errors.New("working set already discarded")
)

// Store is a durable collection of categories and transactions.
type Store interface {
	// Begin loads a consistent snapshot of both entity kinds into a new
	// working set.
	Begin(ctx context.Context) (*WorkingSet, error)
	// LastSync returns when the given pass last committed successfully, or
	// the zero time if it never did.
	LastSync(ctx context.Context, kind core.SyncKind) (time.Time, error)
	MarkSynced(ctx context.Context, kind core.SyncKind, at time.Time) error
	Close() error
}

// Snapshot is the durable state a working set starts from.
type Snapshot struct {
	Categories   []core.Category
	Transactions []core.Transaction
}

// Changes is the diff between a working set and the snapshot it was loaded
// from. Upserts carry full entity values.
type Changes struct {
	UpsertCategories   []core.Category
	UpsertTransactions []core.Transaction
	DeleteTransactions []string
	DeleteCategories   []int64
}

// Empty reports whether there is nothing to commit.
func (c Changes) Empty() bool {
	return len(c.UpsertCategories) == 0 && len(c.UpsertTransactions) == 0 &&
		len(c.DeleteTransactions) == 0 && len(c.DeleteCategories) == 0
}

// ApplyFunc persists a validated diff atomically. It must either apply every
// change or none of them.
type ApplyFunc func(ctx context.Context, ch Changes) error
