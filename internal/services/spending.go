package services

import (
	"context"
	"fmt"

	"blocks/internal/core"
	"blocks/internal/storage"
)

// TotalSpending sums the amounts of the transactions linked to categoryID.
// It is zero when no transaction is linked.
func TotalSpending(txs []*core.Transaction, categoryID int64) core.Money {
	var total core.Money
	for _, t := range txs {
		if t.LinkedTo(categoryID) {
			total = total.Add(t.Amount)
		}
	}
	return total
}

// SpendingService computes spending figures from the store on every call.
type SpendingService struct {
	store storage.Store
}

func NewSpendingService(store storage.Store) *SpendingService {
	return &SpendingService{store: store}
}

// TotalSpending returns the total spent in one category.
func (s *SpendingService) TotalSpending(ctx context.Context, categoryID int64) (core.Money, error) {
	ws, err := s.store.Begin(ctx)
	if err != nil {
		return core.Money{}, fmt.Errorf("load store: %w", err)
	}
	defer ws.Discard()

	if _, ok := ws.CategoryByID(categoryID); !ok {
		return core.Money{}, fmt.Errorf("category %d: %w", categoryID, storage.ErrNotFound)
	}
	return TotalSpending(ws.Transactions(), categoryID), nil
}

// Overview returns every category with its budget, spending and remainder.
func (s *SpendingService) Overview(ctx context.Context) (core.BudgetOverview, error) {
	ws, err := s.store.Begin(ctx)
	if err != nil {
		return core.BudgetOverview{}, fmt.Errorf("load store: %w", err)
	}
	defer ws.Discard()

	spent := make(map[int64]core.Money)
	var overview core.BudgetOverview
	for _, t := range ws.Transactions() {
		if t.CategoryID == nil {
			overview.Unlinked = overview.Unlinked.Add(t.Amount)
			continue
		}
		spent[*t.CategoryID] = spent[*t.CategoryID].Add(t.Amount)
	}

	for _, c := range ws.Categories() {
		row := core.CategorySpending{
			CategoryID: c.CategoryID,
			Name:       c.Name,
			Budget:     c.Budget,
			Spent:      spent[c.CategoryID],
		}
		row.Remaining = row.Budget.Sub(row.Spent)
		overview.Categories = append(overview.Categories, row)
		overview.TotalBudget = overview.TotalBudget.Add(row.Budget)
		overview.TotalSpent = overview.TotalSpent.Add(row.Spent)
	}
	return overview, nil
}
