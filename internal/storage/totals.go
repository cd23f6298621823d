package storage

import (
	"context"
	"fmt"
	"time"

	"budget/internal/core"
)

// CategoryTotal pairs a category name with a cent total.
type CategoryTotal struct {
	Name  string
	Cents int64
}

// MonthTotals computes the read-side aggregates for a month.
// total_recurring counts only enabled recurring expenses; the enabled
// flag does not apply to variable expenses. Sums over zero rows are
// exact zero.
func (q *Queries) MonthTotals(ctx context.Context, monthID int64) (core.MonthTotals, error) {
	m, err := q.GetMonth(ctx, monthID)
	if err != nil {
		return core.MonthTotals{}, err
	}

	var recurring, variable int64
	err = q.db.QueryRowContext(ctx,
		`SELECT
		     COALESCE(SUM(CASE WHEN kind = 'recurring' AND enabled = 1 THEN amount_cents ELSE 0 END), 0),
		     COALESCE(SUM(CASE WHEN kind = 'variable' THEN amount_cents ELSE 0 END), 0)
		   FROM expenses WHERE month_id = ?`, monthID).Scan(&recurring, &variable)
	if err != nil {
		return core.MonthTotals{}, fmt.Errorf("month totals: %w", err)
	}

	totals := core.MonthTotals{
		TotalRecurring: core.Money{Cents: recurring},
		TotalVariable:  core.Money{Cents: variable},
		TotalExpenses:  core.Money{Cents: recurring + variable},
	}
	totals.Balance = m.NetIncome.Sub(totals.TotalExpenses)
	return totals, nil
}

// CategoryBreakdown splits a month's spend per category by kind, in
// category sort order.
func (q *Queries) CategoryBreakdown(ctx context.Context, monthID int64) ([]core.CategoryBreakdown, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.name,
		        COALESCE(SUM(CASE WHEN e.kind = 'recurring' AND e.enabled = 1 THEN e.amount_cents ELSE 0 END), 0),
		        COALESCE(SUM(CASE WHEN e.kind = 'variable' THEN e.amount_cents ELSE 0 END), 0)
		   FROM categories c
		   LEFT JOIN expenses e ON e.category_id = c.id
		  WHERE c.month_id = ?
		  GROUP BY c.id
		  ORDER BY c.sort_order, c.name`, monthID)
	if err != nil {
		return nil, fmt.Errorf("category breakdown: %w", err)
	}
	defer rows.Close()

	var breakdown []core.CategoryBreakdown
	for rows.Next() {
		var (
			b                   core.CategoryBreakdown
			recurring, variable int64
		)
		if err := rows.Scan(&b.Name, &recurring, &variable); err != nil {
			return nil, fmt.Errorf("scan category breakdown: %w", err)
		}
		b.Recurring = core.Money{Cents: recurring}
		b.Variable = core.Money{Cents: variable}
		b.Total = core.Money{Cents: recurring + variable}
		breakdown = append(breakdown, b)
	}
	return breakdown, rows.Err()
}

// RecurringByCategory sums a month's enabled recurring expenses grouped
// by category name, in category sort order. This is the forecast
// baseline.
func (q *Queries) RecurringByCategory(ctx context.Context, monthID int64) ([]CategoryTotal, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.name, COALESCE(SUM(e.amount_cents), 0)
		   FROM expenses e
		   JOIN categories c ON c.id = e.category_id
		  WHERE e.month_id = ? AND e.kind = 'recurring' AND e.enabled = 1
		  GROUP BY c.id
		  ORDER BY c.sort_order, c.name`, monthID)
	if err != nil {
		return nil, fmt.Errorf("recurring by category: %w", err)
	}
	defer rows.Close()

	var totals []CategoryTotal
	for rows.Next() {
		var t CategoryTotal
		if err := rows.Scan(&t.Name, &t.Cents); err != nil {
			return nil, fmt.Errorf("scan recurring total: %w", err)
		}
		totals = append(totals, t)
	}
	return totals, rows.Err()
}

// VariableHistory returns per-month summed variable spend for a named
// category across months strictly before the given one, newest first,
// at most limit rows. Categories are matched by name because category
// records are re-created per month.
func (q *Queries) VariableHistory(ctx context.Context, owner, categoryName string, before time.Time, limit int) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT SUM(e.amount_cents)
		   FROM expenses e
		   JOIN categories c ON c.id = e.category_id
		   JOIN budget_months m ON m.id = c.month_id
		  WHERE m.owner = ? AND c.name = ? AND e.kind = 'variable' AND m.month < ?
		  GROUP BY m.month
		  ORDER BY m.month DESC
		  LIMIT ?`,
		owner, categoryName, core.NormalizeMonth(before).Format(dayLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("variable history: %w", err)
	}
	defer rows.Close()

	var totals []int64
	for rows.Next() {
		var cents int64
		if err := rows.Scan(&cents); err != nil {
			return nil, fmt.Errorf("scan variable history: %w", err)
		}
		totals = append(totals, cents)
	}
	return totals, rows.Err()
}

// TopVariableExpenses ranks variable expense names by their summed
// amount across all of an owner's months.
func (q *Queries) TopVariableExpenses(ctx context.Context, owner string, limit int) ([]core.TopExpense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT e.name, SUM(e.amount_cents) AS total
		   FROM expenses e
		   JOIN budget_months m ON m.id = e.month_id
		  WHERE m.owner = ? AND e.kind = 'variable'
		  GROUP BY e.name
		  ORDER BY total DESC
		  LIMIT ?`, owner, limit)
	if err != nil {
		return nil, fmt.Errorf("top variable expenses: %w", err)
	}
	defer rows.Close()

	var top []core.TopExpense
	for rows.Next() {
		var (
			t     core.TopExpense
			cents int64
		)
		if err := rows.Scan(&t.Name, &cents); err != nil {
			return nil, fmt.Errorf("scan top expense: %w", err)
		}
		t.Total = core.Money{Cents: cents}
		top = append(top, t)
	}
	return top, rows.Err()
}
