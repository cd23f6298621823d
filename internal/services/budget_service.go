// Package services orchestrates the budget domain: the month lifecycle
// engine, the forecast engine and seed import. Storage enforces the
// closed-month guard; this layer sequences multi-step operations,
// publishes events and exports reports.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/export"
	"budget/internal/storage"
)

// BudgetService exposes every operation the presentation layer calls
// into. The event client and report exporter are optional; a nil value
// simply skips that side effect.
type BudgetService struct {
	repo     *storage.Repository
	events   *amqp.Client
	exporter export.ReportExporter

	forecastWindow int
}

type Option func(*BudgetService)

func WithEvents(client *amqp.Client) Option {
	return func(s *BudgetService) { s.events = client }
}

func WithExporter(exp export.ReportExporter) Option {
	return func(s *BudgetService) { s.exporter = exp }
}

func WithForecastWindow(window int) Option {
	return func(s *BudgetService) { s.forecastWindow = window }
}

func NewBudgetService(repo *storage.Repository, opts ...Option) *BudgetService {
	s := &BudgetService{
		repo:           repo,
		forecastWindow: 3,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close releases the service's connections.
func (s *BudgetService) Close() error {
	var errs []error
	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}
	if s.events != nil {
		if err := s.events.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close budget service: %v", errs)
	}
	return nil
}

// Months

func (s *BudgetService) GetMonth(ctx context.Context, id int64) (core.BudgetMonth, error) {
	return s.repo.GetMonth(ctx, id)
}

func (s *BudgetService) GetMonthByKey(ctx context.Context, owner string, month time.Time) (core.BudgetMonth, error) {
	return s.repo.GetMonthByKey(ctx, owner, core.NormalizeMonth(month))
}

func (s *BudgetService) ListMonths(ctx context.Context, owner string, limit int) ([]core.BudgetMonth, error) {
	return s.repo.ListMonths(ctx, owner, limit)
}

func (s *BudgetService) MonthTotals(ctx context.Context, monthID int64) (core.MonthTotals, error) {
	return s.repo.MonthTotals(ctx, monthID)
}

func (s *BudgetService) ListCategories(ctx context.Context, monthID int64) ([]core.Category, error) {
	return s.repo.ListCategories(ctx, monthID)
}

func (s *BudgetService) ListExpenses(ctx context.Context, monthID int64) ([]core.Expense, error) {
	return s.repo.ListExpenses(ctx, monthID)
}

// CloseMonth freezes a month. Closing an already closed month is a
// no-op. The report export and the event publish run after the status
// change commits and never fail the request.
func (s *BudgetService) CloseMonth(ctx context.Context, id int64) (core.BudgetMonth, error) {
	before, err := s.repo.GetMonth(ctx, id)
	if err != nil {
		return core.BudgetMonth{}, err
	}
	m, err := s.repo.CloseMonth(ctx, id)
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("close month: %w", err)
	}
	if before.Closed() {
		return m, nil
	}

	s.publishMonthEvent(ctx, amqp.EventMonthClosed, m)
	s.exportMonthReport(ctx, m)
	return m, nil
}

// UpdateIncome sets a month's net income. Rejected once the month is
// closed unless the administrative override is set.
func (s *BudgetService) UpdateIncome(ctx context.Context, monthID, cents int64, adminOverride bool) (core.BudgetMonth, error) {
	err := s.repo.SetNetIncome(ctx, storage.SetNetIncomeParams{
		MonthID:       monthID,
		Cents:         cents,
		AdminOverride: adminOverride,
	})
	if err != nil {
		return core.BudgetMonth{}, err
	}
	return s.repo.GetMonth(ctx, monthID)
}

// Categories

func (s *BudgetService) AddCategory(ctx context.Context, monthID int64, name string, sortOrder int64, adminOverride bool) (core.Category, error) {
	if sortOrder == 0 {
		max, err := s.repo.MaxSortOrder(ctx, monthID)
		if err != nil {
			return core.Category{}, err
		}
		sortOrder = max + 10
	}
	return s.repo.CreateCategory(ctx, storage.CreateCategoryParams{
		MonthID:       monthID,
		Name:          name,
		SortOrder:     sortOrder,
		AdminOverride: adminOverride,
	})
}

func (s *BudgetService) UpdateCategory(ctx context.Context, id int64, name string, sortOrder int64, adminOverride bool) (core.Category, error) {
	return s.repo.UpdateCategory(ctx, storage.UpdateCategoryParams{
		ID:            id,
		Name:          name,
		SortOrder:     sortOrder,
		AdminOverride: adminOverride,
	})
}

// DeleteCategory removes a category. A category that still has expenses
// requires a reassignment target in the same month; the move and the
// delete commit together.
func (s *BudgetService) DeleteCategory(ctx context.Context, id, reassignTo int64, adminOverride bool) error {
	return s.repo.WithTx(ctx, func(q *storage.Queries) error {
		n, err := q.CountCategoryExpenses(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 && reassignTo == 0 {
			return core.ErrCategoryNotEmpty
		}
		if reassignTo != 0 {
			if err := q.ReassignExpenses(ctx, id, reassignTo, adminOverride); err != nil {
				return err
			}
		}
		return q.DeleteCategory(ctx, id, adminOverride)
	})
}

// Expenses

func (s *BudgetService) AddExpense(ctx context.Context, arg storage.CreateExpenseParams) (core.Expense, error) {
	e, err := s.repo.CreateExpense(ctx, arg)
	if err != nil {
		return core.Expense{}, err
	}
	s.publishExpenseEvent(ctx, amqp.EventExpenseCreated, e)
	return e, nil
}

func (s *BudgetService) UpdateExpense(ctx context.Context, arg storage.UpdateExpenseParams) (core.Expense, error) {
	e, err := s.repo.UpdateExpense(ctx, arg)
	if err != nil {
		return core.Expense{}, err
	}
	s.publishExpenseEvent(ctx, amqp.EventExpenseUpdated, e)
	return e, nil
}

func (s *BudgetService) DeleteExpense(ctx context.Context, id int64, adminOverride bool) error {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteExpense(ctx, id, adminOverride); err != nil {
		return err
	}
	s.publishExpenseEvent(ctx, amqp.EventExpenseDeleted, e)
	return nil
}

// ToggleExpenseKind flips an expense between recurring and variable.
// Turning variable sets the date to the month's first day; turning
// recurring clears it.
func (s *BudgetService) ToggleExpenseKind(ctx context.Context, id int64, adminOverride bool) (core.Expense, error) {
	e, err := s.repo.GetExpense(ctx, id)
	if err != nil {
		return core.Expense{}, err
	}
	kind := core.Recurring
	if e.Kind == core.Recurring {
		kind = core.Variable
	}
	return s.UpdateExpense(ctx, storage.UpdateExpenseParams{
		ID:            e.ID,
		CategoryID:    e.CategoryID,
		Name:          e.Name,
		AmountCents:   e.Amount.Cents,
		Kind:          kind,
		Enabled:       e.Enabled,
		Notes:         e.Notes,
		AdminOverride: adminOverride,
	})
}

// Forecast overrides

func (s *BudgetService) SetForecastOverride(ctx context.Context, o core.ForecastOverride, adminOverride bool) (core.ForecastOverride, error) {
	return s.repo.SetOverride(ctx, o, adminOverride)
}

func (s *BudgetService) ClearForecastOverride(ctx context.Context, monthID, categoryID int64, adminOverride bool) error {
	return s.repo.DeleteOverride(ctx, monthID, categoryID, adminOverride)
}

// Templates

func (s *BudgetService) UpsertTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	return s.repo.UpsertTemplate(ctx, t)
}

func (s *BudgetService) ListTemplates(ctx context.Context, owner string, activeOnly bool) ([]core.ExpenseTemplate, error) {
	return s.repo.ListTemplates(ctx, owner, activeOnly)
}

func (s *BudgetService) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	return s.repo.SetTemplateActive(ctx, id, active)
}

// Dashboard reads

// Trend returns the last `months` months oldest first, each with its
// totals, for the dashboard trend chart.
func (s *BudgetService) Trend(ctx context.Context, owner string, months int) ([]core.TrendPoint, error) {
	list, err := s.repo.ListMonths(ctx, owner, months)
	if err != nil {
		return nil, err
	}
	points := make([]core.TrendPoint, 0, len(list))
	for i := len(list) - 1; i >= 0; i-- {
		m := list[i]
		totals, err := s.repo.MonthTotals(ctx, m.ID)
		if err != nil {
			return nil, err
		}
		points = append(points, core.TrendPoint{
			Month:     m.Month,
			Income:    m.NetIncome,
			Recurring: totals.TotalRecurring,
			Variable:  totals.TotalVariable,
			Total:     totals.TotalExpenses,
			Balance:   totals.Balance,
		})
	}
	return points, nil
}

func (s *BudgetService) CategoryBreakdown(ctx context.Context, monthID int64) ([]core.CategoryBreakdown, error) {
	return s.repo.CategoryBreakdown(ctx, monthID)
}

func (s *BudgetService) TopVariableExpenses(ctx context.Context, owner string, limit int) ([]core.TopExpense, error) {
	return s.repo.TopVariableExpenses(ctx, owner, limit)
}

// Event and export side effects. Both are best-effort: a budget write
// that committed is never failed afterwards.

func (s *BudgetService) publishMonthEvent(ctx context.Context, event string, m core.BudgetMonth) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishMonthEvent(ctx, event, m.Owner, m.ID, m.Month); err != nil {
		slog.ErrorContext(ctx, "Failed to publish month event",
			"event", event, "month_id", m.ID, "error", err)
	}
}

func (s *BudgetService) publishExpenseEvent(ctx context.Context, event string, e core.Expense) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishExpenseEvent(ctx, event, e.ID, e.MonthID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish expense event",
			"event", event, "expense_id", e.ID, "error", err)
	}
}

func (s *BudgetService) exportMonthReport(ctx context.Context, m core.BudgetMonth) {
	if s.exporter == nil {
		return
	}
	totals, err := s.repo.MonthTotals(ctx, m.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute totals for report", "month_id", m.ID, "error", err)
		return
	}
	breakdown, err := s.repo.CategoryBreakdown(ctx, m.ID)
	if err != nil {
		slog.ErrorContext(ctx, "Failed to compute breakdown for report", "month_id", m.ID, "error", err)
		return
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
	if err := s.exporter.ExportMonthReport(ctx, report); err != nil {
		slog.ErrorContext(ctx, "Failed to export month report",
			"month_id", m.ID, "month", core.FormatMonth(m.Month), "error", err)
		return
	}
	slog.InfoContext(ctx, "Month report exported", "month", core.FormatMonth(m.Month))
}
