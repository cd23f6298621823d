package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

const templateColumns = `id, owner, name, default_amount_cents, default_category, active, notes`

func scanTemplate(row interface{ Scan(...any) error }) (core.ExpenseTemplate, error) {
	var t core.ExpenseTemplate
	err := row.Scan(&t.ID, &t.Owner, &t.Name, &t.DefaultAmount.Cents,
		&t.DefaultCategory, &t.Active, &t.Notes)
	return t, err
}

// UpsertTemplate inserts or updates a template keyed on (owner, name).
// Templates live outside any month, so no guard applies.
func (q *Queries) UpsertTemplate(ctx context.Context, t core.ExpenseTemplate) (core.ExpenseTemplate, error) {
	if err := t.Validate(); err != nil {
		return core.ExpenseTemplate{}, err
	}
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO expense_templates (owner, name, default_amount_cents, default_category, active, notes)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (owner, name) DO UPDATE SET
		     default_amount_cents = excluded.default_amount_cents,
		     default_category = excluded.default_category,
		     active = excluded.active,
		     notes = excluded.notes,
		     updated_at = CURRENT_TIMESTAMP`,
		t.Owner, t.Name, t.DefaultAmount.Cents, t.DefaultCategory, t.Active, t.Notes)
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("upsert template: %w", err)
	}
	return q.GetTemplateByName(ctx, t.Owner, t.Name)
}

func (q *Queries) GetTemplate(ctx context.Context, id int64) (core.ExpenseTemplate, error) {
	t, err := scanTemplate(q.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM expense_templates WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseTemplate{}, core.ErrTemplateNotFound
	}
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("get template: %w", err)
	}
	return t, nil
}

func (q *Queries) GetTemplateByName(ctx context.Context, owner, name string) (core.ExpenseTemplate, error) {
	t, err := scanTemplate(q.db.QueryRowContext(ctx,
		`SELECT `+templateColumns+` FROM expense_templates WHERE owner = ? AND name = ?`,
		owner, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.ExpenseTemplate{}, core.ErrTemplateNotFound
	}
	if err != nil {
		return core.ExpenseTemplate{}, fmt.Errorf("get template by name: %w", err)
	}
	return t, nil
}

// ListTemplates returns an owner's templates by name. Seeding iterates
// this ordering, which is what makes new-category sort orders
// deterministic.
func (q *Queries) ListTemplates(ctx context.Context, owner string, activeOnly bool) ([]core.ExpenseTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM expense_templates WHERE owner = ?`
	if activeOnly {
		query += ` AND active = 1`
	}
	query += ` ORDER BY name`

	rows, err := q.db.QueryContext(ctx, query, owner)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var templates []core.ExpenseTemplate
	for rows.Next() {
		t, err := scanTemplate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (q *Queries) SetTemplateActive(ctx context.Context, id int64, active bool) error {
	res, err := q.db.ExecContext(ctx,
		`UPDATE expense_templates SET active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		active, id)
	if err != nil {
		return fmt.Errorf("set template active: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set template active rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrTemplateNotFound
	}
	return nil
}
