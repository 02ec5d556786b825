package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"blocks/internal/core"
	"blocks/internal/storage"
)

// LocalIDPrefix marks transactions entered by hand rather than fetched.
const LocalIDPrefix = "local-"

// TransactionService handles transactions the user creates or deletes
// locally.
type TransactionService struct {
	store storage.Store
}

func NewTransactionService(store storage.Store) *TransactionService {
	return &TransactionService{store: store}
}

// CreateTransaction stores a manual transaction. An empty id is replaced by a
// generated local id.
func (s *TransactionService) CreateTransaction(ctx context.Context, t core.Transaction) (core.Transaction, error) {
	if strings.TrimSpace(t.TransactionID) == "" {
		t.TransactionID = LocalIDPrefix + uuid.NewString()
	}
	if err := t.Validate(); err != nil {
		return core.Transaction{}, err
	}

	ws, err := s.store.Begin(ctx)
	if err != nil {
		return core.Transaction{}, fmt.Errorf("load store: %w", err)
	}
	if _, err := ws.CreateTransaction(t); err != nil {
		ws.Discard()
		return core.Transaction{}, err
	}
	if err := ws.Commit(ctx); err != nil {
		ws.Discard()
		return core.Transaction{}, fmt.Errorf("save transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction created",
		"transaction_id", t.TransactionID,
		"amount_cents", t.Amount.Cents,
		"date", t.Date.String())
	return t, nil
}

// DeleteTransaction removes one transaction.
func (s *TransactionService) DeleteTransaction(ctx context.Context, id string) error {
	ws, err := s.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}
	if err := ws.DeleteTransaction(id); err != nil {
		ws.Discard()
		return err
	}
	if err := ws.Commit(ctx); err != nil {
		ws.Discard()
		return fmt.Errorf("delete transaction: %w", err)
	}
	slog.InfoContext(ctx, "Transaction deleted", "transaction_id", id)
	return nil
}

// ListTransactions returns every transaction, or only those linked to
// categoryID when it is not nil.
func (s *TransactionService) ListTransactions(ctx context.Context, categoryID *int64) ([]core.Transaction, error) {
	ws, err := s.store.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("load store: %w", err)
	}
	defer ws.Discard()

	out := []core.Transaction{}
	for _, t := range ws.Transactions() {
		if categoryID != nil && !t.LinkedTo(*categoryID) {
			continue
		}
		out = append(out, *t)
	}
	return out, nil
}
