// Package sheets exports budget reports to spreadsheets.
package sheets

import (
	"context"
	"strconv"

	"blocks/internal/core"
)

// ReportWriter publishes a budget overview and returns a reference to where
// it was written.
type ReportWriter interface {
	WriteOverview(ctx context.Context, overview core.BudgetOverview) (ref string, err error)
}

// ReportHeader is the first row of every report.
var ReportHeader = []any{"Category ID", "Category", "Budget", "Spent", "Remaining"}

// ReportRows lays out an overview as spreadsheet rows: the header, one row
// per category, then the totals and the spending with no category.
func ReportRows(overview core.BudgetOverview) [][]any {
	rows := make([][]any, 0, len(overview.Categories)+3)
	rows = append(rows, ReportHeader)
	for _, c := range overview.Categories {
		rows = append(rows, []any{
			strconv.FormatInt(c.CategoryID, 10),
			c.Name,
			c.Budget.String(),
			c.Spent.String(),
			c.Remaining.String(),
		})
	}
	remaining := overview.TotalBudget.Sub(overview.TotalSpent)
	rows = append(rows,
		[]any{"", "Total", overview.TotalBudget.String(), overview.TotalSpent.String(), remaining.String()},
		[]any{"", "Uncategorized", "", overview.Unlinked.String(), ""},
	)
	return rows
}
