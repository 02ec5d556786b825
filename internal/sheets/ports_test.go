package sheets

import (
	"testing"

	"blocks/internal/core"
)

func TestReportRows(t *testing.T) {
	ov := core.BudgetOverview{
		Categories: []core.CategorySpending{
			{CategoryID: 1, Name: "Food", Budget: core.Money{Cents: 1000}, Spent: core.Money{Cents: 450}, Remaining: core.Money{Cents: 550}},
		},
		TotalBudget: core.Money{Cents: 1000},
		TotalSpent:  core.Money{Cents: 450},
		Unlinked:    core.Money{Cents: 75},
	}

	rows := ReportRows(ov)
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}
	if rows[0][1] != "Category" {
		t.Fatalf("unexpected header %v", rows[0])
	}
	want := []any{"1", "Food", "10.00", "4.50", "5.50"}
	for i, v := range want {
		if rows[1][i] != v {
			t.Fatalf("row 1 col %d expected %v, got %v", i, v, rows[1][i])
		}
	}
	if rows[2][4] != "5.50" || rows[3][3] != "0.75" {
		t.Fatalf("unexpected totals %v %v", rows[2], rows[3])
	}
}
