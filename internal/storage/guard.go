package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

// The closed-month guard. Every mutating query on month-owned data
// resolves the owning month (directly or via its category) and rejects
// the write with core.ErrMonthClosed once the month is closed, unless
// the caller passed the explicit administrative override. Reads are
// never guarded.

func (q *Queries) monthStatus(ctx context.Context, monthID int64) (core.MonthStatus, error) {
	var status string
	err := q.db.QueryRowContext(ctx,
		`SELECT status FROM budget_months WHERE id = ?`, monthID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrMonthNotFound
	}
	if err != nil {
		return "", fmt.Errorf("resolve month status: %w", err)
	}
	return core.MonthStatus(status), nil
}

func (q *Queries) guardMonth(ctx context.Context, monthID int64, adminOverride bool) error {
	status, err := q.monthStatus(ctx, monthID)
	if err != nil {
		return err
	}
	if status == core.MonthClosed && !adminOverride {
		return core.ErrMonthClosed
	}
	return nil
}

// guardCategory resolves the month through the category.
func (q *Queries) guardCategory(ctx context.Context, categoryID int64, adminOverride bool) error {
	var status string
	err := q.db.QueryRowContext(ctx,
		`SELECT m.status
		   FROM categories c
		   JOIN budget_months m ON m.id = c.month_id
		  WHERE c.id = ?`, categoryID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrCategoryNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve category month status: %w", err)
	}
	if core.MonthStatus(status) == core.MonthClosed && !adminOverride {
		return core.ErrMonthClosed
	}
	return nil
}

func (q *Queries) guardExpense(ctx context.Context, expenseID int64, adminOverride bool) error {
	var status string
	err := q.db.QueryRowContext(ctx,
		`SELECT m.status
		   FROM expenses e
		   JOIN budget_months m ON m.id = e.month_id
		  WHERE e.id = ?`, expenseID,
	).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ErrExpenseNotFound
	}
	if err != nil {
		return fmt.Errorf("resolve expense month status: %w", err)
	}
	if core.MonthStatus(status) == core.MonthClosed && !adminOverride {
		return core.ErrMonthClosed
	}
	return nil
}

// categoryMonth returns the month a category belongs to, for the
// cross-month consistency checks on expense writes.
func (q *Queries) categoryMonth(ctx context.Context, categoryID int64) (int64, error) {
	var monthID int64
	err := q.db.QueryRowContext(ctx,
		`SELECT month_id FROM categories WHERE id = ?`, categoryID,
	).Scan(&monthID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, core.ErrCategoryNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("resolve category month: %w", err)
	}
	return monthID, nil
}
