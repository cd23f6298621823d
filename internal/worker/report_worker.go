// Package worker consumes budget events from the queue and reacts to
// them out of band. The server only publishes; exporting month reports
// happens here so a slow spreadsheet append never sits on a request.
package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"budget/internal/amqp"
	"budget/internal/export"
	"budget/internal/storage"
)

// ReportWorker exports a month report whenever a month is closed.
// Other events are acknowledged after logging.
type ReportWorker struct {
	repo     *storage.Repository
	exporter export.ReportExporter
}

func NewReportWorker(repo *storage.Repository, exporter export.ReportExporter) *ReportWorker {
	return &ReportWorker{repo: repo, exporter: exporter}
}

// HandleEvent dispatches one queue delivery by its event name. A nil
// return acknowledges the delivery; an error requeues it. Payloads
// that cannot be decoded are logged and acknowledged so a malformed
// message never loops through the queue forever.
func (w *ReportWorker) HandleEvent(ctx context.Context, body []byte) error {
	var head struct {
		Event string `json:"event"`
	}
	if err := json.Unmarshal(body, &head); err != nil {
		slog.ErrorContext(ctx, "Dropping undecodable event", "error", err)
		return nil
	}

	switch head.Event {
	case amqp.EventMonthCreated, amqp.EventMonthClosed:
		msg, err := amqp.MonthEventMessageFromJSON(body)
		if err != nil {
			slog.ErrorContext(ctx, "Dropping malformed month event", "error", err)
			return nil
		}
		return w.handleMonthEvent(ctx, msg)
	case amqp.EventExpenseCreated, amqp.EventExpenseUpdated, amqp.EventExpenseDeleted:
		msg, err := amqp.ExpenseEventMessageFromJSON(body)
		if err != nil {
			slog.ErrorContext(ctx, "Dropping malformed expense event", "error", err)
			return nil
		}
		slog.InfoContext(ctx, "Expense event received",
			"event", msg.Event, "expense_id", msg.ExpenseID, "month_id", msg.MonthID)
		return nil
	default:
		slog.WarnContext(ctx, "Unknown event", "event", head.Event)
		return nil
	}
}

func (w *ReportWorker) handleMonthEvent(ctx context.Context, msg *amqp.MonthEventMessage) error {
	slog.InfoContext(ctx, "Month event received",
		"event", msg.Event, "owner", msg.Owner, "month", msg.Month)

	if msg.Event != amqp.EventMonthClosed || w.exporter == nil {
		return nil
	}
	return w.exportReport(ctx, msg.MonthID)
}

func (w *ReportWorker) exportReport(ctx context.Context, monthID int64) error {
	m, err := w.repo.GetMonth(ctx, monthID)
	if err != nil {
		return fmt.Errorf("load month %d: %w", monthID, err)
	}
	totals, err := w.repo.MonthTotals(ctx, monthID)
	if err != nil {
		return fmt.Errorf("month %d totals: %w", monthID, err)
	}
	breakdown, err := w.repo.CategoryBreakdown(ctx, monthID)
	if err != nil {
		return fmt.Errorf("month %d breakdown: %w", monthID, err)
	}

	report := export.MonthReport{
		Owner:          m.Owner,
		Month:          m.Month,
		NetIncome:      m.NetIncome,
		TotalRecurring: totals.TotalRecurring,
		TotalVariable:  totals.TotalVariable,
		TotalExpenses:  totals.TotalExpenses,
		Balance:        totals.Balance,
		Categories:     breakdown,
	}
	if err := w.exporter.ExportMonthReport(ctx, report); err != nil {
		return fmt.Errorf("export month %d report: %w", monthID, err)
	}

	slog.InfoContext(ctx, "Month report exported", "owner", m.Owner, "month_id", monthID)
	return nil
}
