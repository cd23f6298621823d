package export

import (
	"context"
	"time"

	"budget/internal/core"
)

// MonthReport is the snapshot pushed to an external report sink when a
// month is closed.
type MonthReport struct {
	Owner          string
	Month          time.Time
	NetIncome      core.Money
	TotalRecurring core.Money
	TotalVariable  core.Money
	TotalExpenses  core.Money
	Balance        core.Money
	Categories     []core.CategoryBreakdown
}

// ReportExporter is the port for outbound report adapters.
type ReportExporter interface {
	ExportMonthReport(ctx context.Context, r MonthReport) error
}
