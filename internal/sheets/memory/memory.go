// Package memory is an in-process ReportWriter for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"blocks/internal/core"
	"blocks/internal/sheets"
)

type Writer struct {
	mu      sync.Mutex
	reports [][][]any
}

var _ sheets.ReportWriter = (*Writer)(nil)

func New() *Writer {
	return &Writer{}
}

// WriteOverview stores the rendered report and returns a synthetic reference.
func (w *Writer) WriteOverview(ctx context.Context, overview core.BudgetOverview) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.reports = append(w.reports, sheets.ReportRows(overview))
	return fmt.Sprintf("mem:%d", len(w.reports)), nil
}

// Reports returns every report written so far.
func (w *Writer) Reports() [][][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([][][]any(nil), w.reports...)
}

// Last returns the most recent report, or nil.
func (w *Writer) Last() [][]any {
	w.mu.Lock()
	defer w.mu.Unlock()
	if len(w.reports) == 0 {
		return nil
	}
	return w.reports[len(w.reports)-1]
}
