package feed

import (
	"strings"

	"blocks/internal/core"
)

// CategoryRecord is one entry of the categories document.
type CategoryRecord struct {
	CategoryID int64
	Name       string
	Budget     core.Money
}

// GroupCategory identifies the category a group of transactions belongs to.
type GroupCategory struct {
	CategoryID int64
	Name       string
}

// TransactionRecord is one decoded transaction.
type TransactionRecord struct {
	TransactionID string
	Name          string
	Amount        core.Money
	Date          core.Date
}

// CategoryGroup is one entry of the transactions document. Category is nil
// when the group's id or name could not be decoded; its transactions are then
// stored without a category.
type CategoryGroup struct {
	Category     *GroupCategory
	Transactions []TransactionRecord
}

// DecodeCategories reads a categories document: an array of
// {id, name, budget}. Records that fail to decode are dropped and counted in
// skipped. A missing or null budget is zero.
func DecodeCategories(doc Node) (records []CategoryRecord, skipped int, err error) {
	items, ok := doc.Array()
	if !ok {
		return nil, 0, shapeError(doc, "array of categories")
	}
	records = make([]CategoryRecord, 0, len(items))
	for _, item := range items {
		rec, ok := decodeCategory(item)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	return records, skipped, nil
}

func decodeCategory(item Node) (CategoryRecord, bool) {
	id, name, ok := decodeIDName(item)
	if !ok {
		return CategoryRecord{}, false
	}
	rec := CategoryRecord{CategoryID: id, Name: name}
	if raw, present := item.Get("$.budget"); present {
		text, ok := raw.Text()
		if !ok {
			return CategoryRecord{}, false
		}
		budget, err := core.ParseCents(text)
		if err != nil {
			return CategoryRecord{}, false
		}
		rec.Budget = budget
	}
	return rec, true
}

// DecodeTransactions reads a transactions document:
// {"Categories": [{id, name, transactions: [...]}]}. Skipped counts dropped
// transactions and group headers that could not be decoded.
func DecodeTransactions(doc Node) (groups []CategoryGroup, skipped int, err error) {
	if !doc.isObject() {
		return nil, 0, shapeError(doc, `object with "Categories"`)
	}
	cats, ok := doc.Get("$.Categories")
	if !ok {
		return nil, 0, shapeError(doc, `"Categories" array`)
	}
	items, ok := cats.Array()
	if !ok {
		return nil, 0, shapeError(doc, `"Categories" array`)
	}

	groups = make([]CategoryGroup, 0, len(items))
	for _, item := range items {
		var g CategoryGroup
		if id, name, ok := decodeIDName(item); ok {
			g.Category = &GroupCategory{CategoryID: id, Name: name}
		} else {
			skipped++
		}

		if !item.isObject() {
			continue
		}
		if list, present := item.Get("$.transactions"); present {
			txs, ok := list.Array()
			if !ok {
				skipped++
			}
			for _, tx := range txs {
				rec, ok := decodeTransaction(tx)
				if !ok {
					skipped++
					continue
				}
				g.Transactions = append(g.Transactions, rec)
			}
		}
		groups = append(groups, g)
	}
	return groups, skipped, nil
}

func decodeTransaction(item Node) (TransactionRecord, bool) {
	var rec TransactionRecord
	if !item.isObject() {
		return rec, false
	}

	raw, ok := item.Get("$.id")
	if !ok {
		return rec, false
	}
	if id, isInt := raw.Int(); isInt {
		rec.TransactionID = formatID(id)
	} else if s, isString := raw.String(); isString && strings.TrimSpace(s) != "" {
		rec.TransactionID = strings.TrimSpace(s)
	} else {
		return rec, false
	}

	if rec.Name, ok = stringField(item, "$.name"); !ok {
		return rec, false
	}

	amount, ok := item.Get("$.amount")
	if !ok {
		return rec, false
	}
	text, ok := amount.Text()
	if !ok {
		return rec, false
	}
	var err error
	if rec.Amount, err = core.ParseCents(text); err != nil {
		return rec, false
	}

	day, ok := stringField(item, "$.payment_date")
	if !ok {
		return rec, false
	}
	if rec.Date, err = core.ParseFeedDate(day); err != nil {
		return rec, false
	}
	return rec, true
}

// DecodeBudget reads the {amount} document returned after a budget update.
func DecodeBudget(doc Node) (core.Money, error) {
	raw, ok := doc.Get("$.amount")
	if !ok {
		return core.Money{}, shapeError(doc, `object with "amount"`)
	}
	text, ok := raw.Text()
	if !ok {
		return core.Money{}, shapeError(doc, `numeric "amount"`)
	}
	amount, err := core.ParseCents(text)
	if err != nil {
		return core.Money{}, shapeError(doc, `numeric "amount"`)
	}
	return amount, nil
}

func decodeIDName(item Node) (int64, string, bool) {
	if !item.isObject() {
		return 0, "", false
	}
	raw, ok := item.Get("$.id")
	if !ok {
		return 0, "", false
	}
	id, ok := raw.Int()
	if !ok || id <= 0 {
		return 0, "", false
	}
	name, ok := stringField(item, "$.name")
	if !ok {
		return 0, "", false
	}
	return id, name, true
}

func stringField(item Node, path string) (string, bool) {
	raw, ok := item.Get(path)
	if !ok {
		return "", false
	}
	s, ok := raw.String()
	if !ok || strings.TrimSpace(s) == "" {
		return "", false
	}
	return s, true
}
