package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"blocks/internal/core"

	_ "modernc.org/sqlite"
)

// SQLiteRepository is the durable Store backend.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	// Run migrations before the main connection is opened
	if err := RunMigrations(dbPath); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// One connection serializes commits and keeps the pragmas in effect.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Ping reports whether the database is reachable.
func (r *SQLiteRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Begin implements Store
func (r *SQLiteRepository) Begin(ctx context.Context) (*WorkingSet, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin snapshot: %w", err)
	}
	defer tx.Rollback()

	cats, err := loadCategories(ctx, tx)
	if err != nil {
		return nil, err
	}
	txs, err := loadTransactions(ctx, tx)
	if err != nil {
		return nil, err
	}
	return NewWorkingSet(Snapshot{Categories: cats, Transactions: txs}, r.apply), nil
}

func loadCategories(ctx context.Context, tx *sql.Tx) ([]core.Category, error) {
	rows, err := tx.QueryContext(ctx, `SELECT category_id, name, budget_cents FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, fmt.Errorf("query categories: %w", err)
	}
	defer rows.Close()

	var out []core.Category
	for rows.Next() {
		var c core.Category
		if err := rows.Scan(&c.CategoryID, &c.Name, &c.Budget.Cents); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func loadTransactions(ctx context.Context, tx *sql.Tx) ([]core.Transaction, error) {
	rows, err := tx.QueryContext(ctx, `SELECT transaction_id, name, amount_cents, payment_date, category_id FROM transactions ORDER BY transaction_id`)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []core.Transaction
	for rows.Next() {
		var (
			t        core.Transaction
			day      string
			category sql.NullInt64
		)
		if err := rows.Scan(&t.TransactionID, &t.Name, &t.Amount.Cents, &day, &category); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		if t.Date, err = core.ParseFeedDate(day); err != nil {
			return nil, fmt.Errorf("transaction %s date %q: %w", t.TransactionID, day, err)
		}
		if category.Valid {
			t.CategoryID = core.CategoryRef(category.Int64)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// apply writes the whole diff inside one database transaction.
func (r *SQLiteRepository) apply(ctx context.Context, ch Changes) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				slog.ErrorContext(ctx, "Failed to roll back commit", "error", rbErr)
			}
		}
	}()

	for _, c := range ch.UpsertCategories {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO categories (category_id, name, budget_cents) VALUES (?, ?, ?)
			ON CONFLICT(category_id) DO UPDATE SET name = excluded.name, budget_cents = excluded.budget_cents`,
			c.CategoryID, c.Name, c.Budget.Cents); err != nil {
			return fmt.Errorf("upsert category %d: %w", c.CategoryID, err)
		}
	}
	for _, t := range ch.UpsertTransactions {
		var category sql.NullInt64
		if t.CategoryID != nil {
			category = sql.NullInt64{Int64: *t.CategoryID, Valid: true}
		}
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO transactions (transaction_id, name, amount_cents, payment_date, category_id) VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(transaction_id) DO UPDATE SET name = excluded.name, amount_cents = excluded.amount_cents,
				payment_date = excluded.payment_date, category_id = excluded.category_id`,
			t.TransactionID, t.Name, t.Amount.Cents, t.Date.String(), category); err != nil {
			return fmt.Errorf("upsert transaction %s: %w", t.TransactionID, err)
		}
	}
	for _, id := range ch.DeleteTransactions {
		if _, err = tx.ExecContext(ctx, `DELETE FROM transactions WHERE transaction_id = ?`, id); err != nil {
			return fmt.Errorf("delete transaction %s: %w", id, err)
		}
	}
	for _, id := range ch.DeleteCategories {
		if _, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE category_id = ?`, id); err != nil {
			return fmt.Errorf("delete category %d: %w", id, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	slog.DebugContext(ctx, "Working set committed",
		"categories_upserted", len(ch.UpsertCategories),
		"transactions_upserted", len(ch.UpsertTransactions),
		"transactions_deleted", len(ch.DeleteTransactions),
		"categories_deleted", len(ch.DeleteCategories))
	return nil
}

// LastSync implements Store
func (r *SQLiteRepository) LastSync(ctx context.Context, kind core.SyncKind) (time.Time, error) {
	var raw string
	err := r.db.QueryRowContext(ctx, `SELECT last_synced_at FROM sync_state WHERE kind = ?`, string(kind)).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("get last sync: %w", err)
	}
	at, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse last sync %q: %w", raw, err)
	}
	return at, nil
}

// MarkSynced implements Store
func (r *SQLiteRepository) MarkSynced(ctx context.Context, kind core.SyncKind, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sync_state (kind, last_synced_at) VALUES (?, ?)
		ON CONFLICT(kind) DO UPDATE SET last_synced_at = excluded.last_synced_at`,
		string(kind), at.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("mark synced: %w", err)
	}
	return nil
}
