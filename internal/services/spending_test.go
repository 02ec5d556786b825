package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blocks/internal/core"
	"blocks/internal/storage"
)

func tx(id string, cents int64, category *int64) core.Transaction {
	return core.Transaction{TransactionID: id, Name: "t" + id, Amount: core.Money{Cents: cents}, Date: core.NewDate(2024, 1, 1), CategoryID: category}
}

func TestTotalSpending(t *testing.T) {
	a, b, c, other := tx("1", 100, core.CategoryRef(1)), tx("2", 250, core.CategoryRef(1)), tx("3", -50, core.CategoryRef(1)), tx("4", 999, core.CategoryRef(2))
	txs := []*core.Transaction{&a, &b, &c, &other}

	assert.Equal(t, int64(300), TotalSpending(txs, 1).Cents)
	assert.Equal(t, int64(999), TotalSpending(txs, 2).Cents)
	assert.Equal(t, int64(0), TotalSpending(txs, 3).Cents)
	assert.Equal(t, int64(0), TotalSpending(nil, 1).Cents)
}

func TestSpendingServiceTotal(t *testing.T) {
	store := storage.NewMemoryStore(storage.Snapshot{
		Categories: []core.Category{{CategoryID: 1, Name: "Food"}, {CategoryID: 2, Name: "Empty"}},
		Transactions: []core.Transaction{
			tx("1", 100, core.CategoryRef(1)),
			tx("2", 250, core.CategoryRef(1)),
			tx("3", -50, core.CategoryRef(1)),
		},
	})
	svc := NewSpendingService(store)

	total, err := svc.TotalSpending(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(300), total.Cents)

	total, err = svc.TotalSpending(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, total.Cents)

	_, err = svc.TotalSpending(context.Background(), 3)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestSpendingServiceOverview(t *testing.T) {
	store := storage.NewMemoryStore(storage.Snapshot{
		Categories: []core.Category{
			{CategoryID: 1, Name: "Food", Budget: core.Money{Cents: 1000}},
			{CategoryID: 2, Name: "Rent", Budget: core.Money{Cents: 5000}},
		},
		Transactions: []core.Transaction{
			tx("1", 400, core.CategoryRef(1)),
			tx("2", 5500, core.CategoryRef(2)),
			tx("3", 75, nil),
		},
	})

	ov, err := NewSpendingService(store).Overview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []core.CategorySpending{
		{CategoryID: 1, Name: "Food", Budget: core.Money{Cents: 1000}, Spent: core.Money{Cents: 400}, Remaining: core.Money{Cents: 600}},
		{CategoryID: 2, Name: "Rent", Budget: core.Money{Cents: 5000}, Spent: core.Money{Cents: 5500}, Remaining: core.Money{Cents: -500}},
	}, ov.Categories)
	assert.Equal(t, int64(6000), ov.TotalBudget.Cents)
	assert.Equal(t, int64(5900), ov.TotalSpent.Cents)
	assert.Equal(t, int64(75), ov.Unlinked.Cents)
}

func TestSpendingAfterClearIsEmpty(t *testing.T) {
	store := storage.NewMemoryStore(storage.Snapshot{
		Categories:   []core.Category{{CategoryID: 1, Name: "Food"}},
		Transactions: []core.Transaction{tx("1", 100, core.CategoryRef(1))},
	})
	require.NoError(t, NewOrchestrator(store, &fakeSource{}, nil).ClearAll(context.Background()))

	ov, err := NewSpendingService(store).Overview(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ov.Categories)
	assert.Zero(t, ov.TotalSpent.Cents)
}
