package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"budget/internal/core"
)

const expenseColumns = `id, month_id, category_id, name, amount_cents, kind, date, enabled, template_id, notes`

func scanExpense(row interface{ Scan(...any) error }) (core.Expense, error) {
	var (
		e          core.Expense
		date       sql.NullString
		templateID sql.NullInt64
	)
	err := row.Scan(&e.ID, &e.MonthID, &e.CategoryID, &e.Name, &e.Amount.Cents,
		&e.Kind, &date, &e.Enabled, &templateID, &e.Notes)
	if err != nil {
		return core.Expense{}, err
	}
	if date.Valid {
		e.Date = parseDay(date.String)
	}
	if templateID.Valid {
		e.TemplateID = templateID.Int64
	}
	return e, nil
}

func nullTemplateID(id int64) any {
	if id == 0 {
		return nil
	}
	return id
}

// normalizeExpenseDate applies the kind/date rules: recurring expenses
// carry no date, variable expenses default to the month's first day.
func (q *Queries) normalizeExpenseDate(ctx context.Context, kind core.ExpenseKind, date time.Time, monthID int64) (time.Time, error) {
	if kind == core.Recurring {
		return time.Time{}, nil
	}
	if !date.IsZero() {
		return date, nil
	}
	m, err := q.GetMonth(ctx, monthID)
	if err != nil {
		return time.Time{}, err
	}
	return m.Month, nil
}

type CreateExpenseParams struct {
	MonthID       int64
	CategoryID    int64
	Name          string
	AmountCents   int64
	Kind          core.ExpenseKind
	Date          time.Time
	Enabled       bool
	TemplateID    int64
	Notes         string
	AdminOverride bool
}

func (q *Queries) CreateExpense(ctx context.Context, arg CreateExpenseParams) (core.Expense, error) {
	e := core.Expense{
		MonthID:    arg.MonthID,
		CategoryID: arg.CategoryID,
		Name:       arg.Name,
		Amount:     core.Money{Cents: arg.AmountCents},
		Kind:       arg.Kind,
		Enabled:    arg.Enabled,
		TemplateID: arg.TemplateID,
		Notes:      arg.Notes,
	}
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}
	if err := q.guardMonth(ctx, arg.MonthID, arg.AdminOverride); err != nil {
		return core.Expense{}, err
	}
	catMonth, err := q.categoryMonth(ctx, arg.CategoryID)
	if err != nil {
		return core.Expense{}, err
	}
	if catMonth != arg.MonthID {
		return core.Expense{}, core.ErrInvalidCategorySelection
	}

	e.Date, err = q.normalizeExpenseDate(ctx, arg.Kind, arg.Date, arg.MonthID)
	if err != nil {
		return core.Expense{}, err
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO expenses (month_id, category_id, name, amount_cents, kind, date, enabled, template_id, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		arg.MonthID, arg.CategoryID, arg.Name, arg.AmountCents, arg.Kind,
		nullDay(e.Date), arg.Enabled, nullTemplateID(arg.TemplateID), arg.Notes)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	e.ID, err = res.LastInsertId()
	if err != nil {
		return core.Expense{}, fmt.Errorf("expense insert id: %w", err)
	}
	return e, nil
}

func (q *Queries) GetExpense(ctx context.Context, id int64) (core.Expense, error) {
	e, err := scanExpense(q.db.QueryRowContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Expense{}, core.ErrExpenseNotFound
	}
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// ListExpenses returns a month's expenses ordered by category sort
// order, then kind, then name.
func (q *Queries) ListExpenses(ctx context.Context, monthID int64) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT e.id, e.month_id, e.category_id, e.name, e.amount_cents, e.kind, e.date, e.enabled, e.template_id, e.notes
		   FROM expenses e
		   JOIN categories c ON c.id = e.category_id
		  WHERE e.month_id = ?
		  ORDER BY c.sort_order, c.name, e.kind, e.name`, monthID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

func (q *Queries) ListCategoryExpenses(ctx context.Context, categoryID int64) ([]core.Expense, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE category_id = ? ORDER BY kind, name`, categoryID)
	if err != nil {
		return nil, fmt.Errorf("list category expenses: %w", err)
	}
	defer rows.Close()

	var expenses []core.Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, fmt.Errorf("scan expense: %w", err)
		}
		expenses = append(expenses, e)
	}
	return expenses, rows.Err()
}

type UpdateExpenseParams struct {
	ID            int64
	CategoryID    int64
	Name          string
	AmountCents   int64
	Kind          core.ExpenseKind
	Date          time.Time
	Enabled       bool
	Notes         string
	AdminOverride bool
}

func (q *Queries) UpdateExpense(ctx context.Context, arg UpdateExpenseParams) (core.Expense, error) {
	if err := q.guardExpense(ctx, arg.ID, arg.AdminOverride); err != nil {
		return core.Expense{}, err
	}
	current, err := q.GetExpense(ctx, arg.ID)
	if err != nil {
		return core.Expense{}, err
	}

	e := current
	e.CategoryID = arg.CategoryID
	e.Name = arg.Name
	e.Amount = core.Money{Cents: arg.AmountCents}
	e.Kind = arg.Kind
	e.Enabled = arg.Enabled
	e.Notes = arg.Notes
	if err := e.Validate(); err != nil {
		return core.Expense{}, err
	}

	catMonth, err := q.categoryMonth(ctx, arg.CategoryID)
	if err != nil {
		return core.Expense{}, err
	}
	if catMonth != current.MonthID {
		return core.Expense{}, core.ErrInvalidCategorySelection
	}

	e.Date, err = q.normalizeExpenseDate(ctx, arg.Kind, arg.Date, current.MonthID)
	if err != nil {
		return core.Expense{}, err
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE expenses
		    SET category_id = ?, name = ?, amount_cents = ?, kind = ?, date = ?, enabled = ?, notes = ?
		  WHERE id = ?`,
		e.CategoryID, e.Name, e.Amount.Cents, e.Kind, nullDay(e.Date), e.Enabled, e.Notes, e.ID)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	return e, nil
}

func (q *Queries) DeleteExpense(ctx context.Context, id int64, adminOverride bool) error {
	if err := q.guardExpense(ctx, id, adminOverride); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM expenses WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete expense rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrExpenseNotFound
	}
	return nil
}
