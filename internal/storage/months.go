package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"
)

const monthColumns = `id, owner, month, net_income_cents, status, created_at, updated_at`

func scanMonth(row interface{ Scan(...any) error }) (core.BudgetMonth, error) {
	var (
		m                    core.BudgetMonth
		monthStr             string
		createdAt, updatedAt string
	)
	err := row.Scan(&m.ID, &m.Owner, &monthStr, &m.NetIncome.Cents, &m.Status, &createdAt, &updatedAt)
	if err != nil {
		return core.BudgetMonth{}, err
	}
	m.Month = parseDay(monthStr)
	m.CreatedAt = parseTimestamp(createdAt)
	m.UpdatedAt = parseTimestamp(updatedAt)
	return m, nil
}

type InsertMonthParams struct {
	Owner          string
	Month          time.Time
	NetIncomeCents int64
}

// InsertMonth creates a month if none exists for (owner, month) and
// reports whether this call created it. A concurrent creator loses the
// INSERT on the unique constraint and observes the winner's row, so at
// most one month per (owner, month) ever exists.
func (q *Queries) InsertMonth(ctx context.Context, arg InsertMonthParams) (core.BudgetMonth, bool, error) {
	monthKey := core.NormalizeMonth(arg.Month).Format(dayLayout)
	res, err := q.db.ExecContext(ctx,
		`INSERT INTO budget_months (owner, month, net_income_cents, status)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT (owner, month) DO NOTHING`,
		arg.Owner, monthKey, arg.NetIncomeCents, core.MonthOpen,
	)
	if err != nil {
		return core.BudgetMonth{}, false, fmt.Errorf("insert month: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return core.BudgetMonth{}, false, fmt.Errorf("insert month rows affected: %w", err)
	}

	m, err := q.GetMonthByKey(ctx, arg.Owner, core.NormalizeMonth(arg.Month))
	if err != nil {
		return core.BudgetMonth{}, false, err
	}
	return m, affected > 0, nil
}

func (q *Queries) GetMonth(ctx context.Context, id int64) (core.BudgetMonth, error) {
	m, err := scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetMonth{}, core.ErrMonthNotFound
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("get month: %w", err)
	}
	return m, nil
}

func (q *Queries) GetMonthByKey(ctx context.Context, owner string, month time.Time) (core.BudgetMonth, error) {
	m, err := scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months WHERE owner = ? AND month = ?`,
		owner, core.NormalizeMonth(month).Format(dayLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetMonth{}, core.ErrMonthNotFound
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("get month by key: %w", err)
	}
	return m, nil
}

// LatestMonthBefore returns the most recent month strictly before the
// given one, by calendar order, not creation order.
func (q *Queries) LatestMonthBefore(ctx context.Context, owner string, before time.Time) (core.BudgetMonth, error) {
	m, err := scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months
		  WHERE owner = ? AND month < ?
		  ORDER BY month DESC LIMIT 1`,
		owner, core.NormalizeMonth(before).Format(dayLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetMonth{}, core.ErrMonthNotFound
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("latest month before: %w", err)
	}
	return m, nil
}

// LatestMonthAtOrBefore is the forecast baseline lookup.
func (q *Queries) LatestMonthAtOrBefore(ctx context.Context, owner string, at time.Time) (core.BudgetMonth, error) {
	m, err := scanMonth(q.db.QueryRowContext(ctx,
		`SELECT `+monthColumns+` FROM budget_months
		  WHERE owner = ? AND month <= ?
		  ORDER BY month DESC LIMIT 1`,
		owner, core.NormalizeMonth(at).Format(dayLayout)))
	if errors.Is(err, sql.ErrNoRows) {
		return core.BudgetMonth{}, core.ErrMonthNotFound
	}
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("latest month at or before: %w", err)
	}
	return m, nil
}

// ListMonths returns months newest first. limit <= 0 means no limit.
func (q *Queries) ListMonths(ctx context.Context, owner string, limit int) ([]core.BudgetMonth, error) {
	query := `SELECT ` + monthColumns + ` FROM budget_months WHERE owner = ? ORDER BY month DESC`
	args := []any{owner}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list months: %w", err)
	}
	defer rows.Close()

	var months []core.BudgetMonth
	for rows.Next() {
		m, err := scanMonth(rows)
		if err != nil {
			return nil, fmt.Errorf("scan month: %w", err)
		}
		months = append(months, m)
	}
	return months, rows.Err()
}

type SetNetIncomeParams struct {
	MonthID       int64
	Cents         int64
	AdminOverride bool
}

// SetNetIncome updates a month's net income. Income is immutable once
// the month is closed.
func (q *Queries) SetNetIncome(ctx context.Context, arg SetNetIncomeParams) error {
	if arg.Cents < 0 {
		return core.ErrInvalidAmount
	}
	if err := q.guardMonth(ctx, arg.MonthID, arg.AdminOverride); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		`UPDATE budget_months SET net_income_cents = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		arg.Cents, arg.MonthID)
	if err != nil {
		return fmt.Errorf("set net income: %w", err)
	}
	return nil
}

// CloseMonth marks a month closed. Closing an already closed month is a
// no-op; there is no transition back to open.
func (q *Queries) CloseMonth(ctx context.Context, id int64) (core.BudgetMonth, error) {
	m, err := q.GetMonth(ctx, id)
	if err != nil {
		return core.BudgetMonth{}, err
	}
	if m.Closed() {
		return m, nil
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE budget_months SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		core.MonthClosed, id)
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("close month: %w", err)
	}
	m.Status = core.MonthClosed
	return m, nil
}
