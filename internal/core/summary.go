package core

// CategorySpending is one row of the budget overview.
type CategorySpending struct {
	CategoryID int64
	Name       string
	Budget     Money
	Spent      Money
	Remaining  Money
}

// BudgetOverview summarizes every category with totals computed from linked
// transactions. Unlinked holds the sum of transactions with no category.
type BudgetOverview struct {
	Categories  []CategorySpending
	TotalBudget Money
	TotalSpent  Money
	Unlinked    Money
}
