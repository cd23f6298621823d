// Package memory provides an in-memory report sink, used in tests and
// when running without a spreadsheet configured.
package memory

import (
	"context"
	"sync"

	"budget/internal/export"
)

type Store struct {
	mu      sync.Mutex
	reports []export.MonthReport
}

var _ export.ReportExporter = (*Store)(nil)

func New() *Store {
	return &Store{}
}

// ExportMonthReport records the report.
func (s *Store) ExportMonthReport(_ context.Context, r export.MonthReport) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return nil
}

// Reports returns a copy of everything exported so far.
func (s *Store) Reports() []export.MonthReport {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]export.MonthReport(nil), s.reports...)
}
