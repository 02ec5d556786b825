// Package reconcile merges decoded feed records into a storage working set.
//
// Entities are matched by their stable identifiers through a hash index. A
// match is updated in place; anything unseen is created. Nothing is ever
// deleted here.
package reconcile

import (
	"fmt"

	"blocks/internal/core"
	"blocks/internal/feed"
	"blocks/internal/storage"
)

// Stats counts what one reconciliation pass did. Skipped is the number of
// feed records dropped during decoding, carried through for reporting.
type Stats struct {
	Created int
	Updated int
	Skipped int

	// Category upserts made while reconciling a transactions document.
	CategoriesCreated int
	CategoriesUpdated int
}

// Session is the part of a working set the reconciler needs.
type Session interface {
	Categories() []*core.Category
	Transactions() []*core.Transaction
	CreateCategory(c core.Category) (*core.Category, error)
	CreateTransaction(t core.Transaction) (*core.Transaction, error)
}

var _ Session = (*storage.WorkingSet)(nil)

// Categories upserts every category record. Existing categories take the
// record's name and budget. When a feed repeats an id the last record wins.
func Categories(s Session, records []feed.CategoryRecord) (Stats, error) {
	var st Stats
	index := indexCategories(s)
	created := make(map[int64]bool)

	for _, rec := range records {
		if c, ok := index[rec.CategoryID]; ok {
			c.Name = rec.Name
			c.Budget = rec.Budget
			if !created[rec.CategoryID] {
				st.Updated++
			}
			continue
		}
		c, err := s.CreateCategory(core.Category{CategoryID: rec.CategoryID, Name: rec.Name, Budget: rec.Budget})
		if err != nil {
			return st, fmt.Errorf("create category %d: %w", rec.CategoryID, err)
		}
		index[rec.CategoryID] = c
		created[rec.CategoryID] = true
		st.Created++
	}
	return st, nil
}

// Transactions reconciles a transactions document in two phases. First each
// group's category is upserted by name only; new categories start with a zero
// budget. Then every transaction is upserted and linked to its group's
// category, or unlinked when the group had no usable category.
func Transactions(s Session, groups []feed.CategoryGroup) (Stats, error) {
	var st Stats
	categories := indexCategories(s)
	createdCats := make(map[int64]bool)

	for _, g := range groups {
		if g.Category == nil {
			continue
		}
		id := g.Category.CategoryID
		if c, ok := categories[id]; ok {
			c.Name = g.Category.Name
			if !createdCats[id] {
				st.CategoriesUpdated++
			}
			continue
		}
		c, err := s.CreateCategory(core.Category{CategoryID: id, Name: g.Category.Name})
		if err != nil {
			return st, fmt.Errorf("create category %d: %w", id, err)
		}
		categories[id] = c
		createdCats[id] = true
		st.CategoriesCreated++
	}

	transactions := make(map[string]*core.Transaction)
	for _, t := range s.Transactions() {
		transactions[t.TransactionID] = t
	}
	createdTxs := make(map[string]bool)

	for _, g := range groups {
		var link *int64
		if g.Category != nil {
			link = &categories[g.Category.CategoryID].CategoryID
		}
		for _, rec := range g.Transactions {
			if t, ok := transactions[rec.TransactionID]; ok {
				t.Name = rec.Name
				t.Amount = rec.Amount
				t.Date = rec.Date
				t.CategoryID = copyRef(link)
				if !createdTxs[rec.TransactionID] {
					st.Updated++
				}
				continue
			}
			t, err := s.CreateTransaction(core.Transaction{
				TransactionID: rec.TransactionID,
				Name:          rec.Name,
				Amount:        rec.Amount,
				Date:          rec.Date,
				CategoryID:    copyRef(link),
			})
			if err != nil {
				return st, fmt.Errorf("create transaction %s: %w", rec.TransactionID, err)
			}
			transactions[rec.TransactionID] = t
			createdTxs[rec.TransactionID] = true
			st.Created++
		}
	}
	return st, nil
}

func indexCategories(s Session) map[int64]*core.Category {
	index := make(map[int64]*core.Category)
	for _, c := range s.Categories() {
		index[c.CategoryID] = c
	}
	return index
}

func copyRef(id *int64) *int64 {
	if id == nil {
		return nil
	}
	return core.CategoryRef(*id)
}
