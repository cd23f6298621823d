package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

func scanCategory(row interface{ Scan(...any) error }) (core.Category, error) {
	var c core.Category
	err := row.Scan(&c.ID, &c.MonthID, &c.Name, &c.SortOrder)
	return c, err
}

type CreateCategoryParams struct {
	MonthID       int64
	Name          string
	SortOrder     int64
	AdminOverride bool
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (core.Category, error) {
	c := core.Category{MonthID: arg.MonthID, Name: arg.Name, SortOrder: arg.SortOrder}
	if err := c.Validate(); err != nil {
		return core.Category{}, err
	}
	if err := q.guardMonth(ctx, arg.MonthID, arg.AdminOverride); err != nil {
		return core.Category{}, err
	}

	var exists int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories WHERE month_id = ? AND name = ?`,
		arg.MonthID, arg.Name).Scan(&exists)
	if err != nil {
		return core.Category{}, fmt.Errorf("check category name: %w", err)
	}
	if exists > 0 {
		return core.Category{}, core.ErrDuplicateCategory
	}

	res, err := q.db.ExecContext(ctx,
		`INSERT INTO categories (month_id, name, sort_order) VALUES (?, ?, ?)`,
		arg.MonthID, arg.Name, arg.SortOrder)
	if err != nil {
		return core.Category{}, fmt.Errorf("create category: %w", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.Category{}, fmt.Errorf("category insert id: %w", err)
	}
	return c, nil
}

func (q *Queries) GetCategory(ctx context.Context, id int64) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx,
		`SELECT id, month_id, name, sort_order FROM categories WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

func (q *Queries) GetCategoryByName(ctx context.Context, monthID int64, name string) (core.Category, error) {
	c, err := scanCategory(q.db.QueryRowContext(ctx,
		`SELECT id, month_id, name, sort_order FROM categories WHERE month_id = ? AND name = ?`,
		monthID, name))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, core.ErrCategoryNotFound
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category by name: %w", err)
	}
	return c, nil
}

// ListCategories returns a month's categories by sort order, ties
// broken alphabetically.
func (q *Queries) ListCategories(ctx context.Context, monthID int64) ([]core.Category, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, month_id, name, sort_order FROM categories
		  WHERE month_id = ? ORDER BY sort_order, name`, monthID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	var cats []core.Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

type UpdateCategoryParams struct {
	ID            int64
	Name          string
	SortOrder     int64
	AdminOverride bool
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (core.Category, error) {
	if err := (core.Category{Name: arg.Name}).Validate(); err != nil {
		return core.Category{}, err
	}
	if err := q.guardCategory(ctx, arg.ID, arg.AdminOverride); err != nil {
		return core.Category{}, err
	}

	var exists int
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM categories
		  WHERE month_id = (SELECT month_id FROM categories WHERE id = ?)
		    AND name = ? AND id != ?`,
		arg.ID, arg.Name, arg.ID).Scan(&exists)
	if err != nil {
		return core.Category{}, fmt.Errorf("check category name: %w", err)
	}
	if exists > 0 {
		return core.Category{}, core.ErrDuplicateCategory
	}

	_, err = q.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, sort_order = ? WHERE id = ?`,
		arg.Name, arg.SortOrder, arg.ID)
	if err != nil {
		return core.Category{}, fmt.Errorf("update category: %w", err)
	}
	return q.GetCategory(ctx, arg.ID)
}

func (q *Queries) DeleteCategory(ctx context.Context, id int64, adminOverride bool) error {
	if err := q.guardCategory(ctx, id, adminOverride); err != nil {
		return err
	}
	res, err := q.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete category rows affected: %w", err)
	}
	if affected == 0 {
		return core.ErrCategoryNotFound
	}
	return nil
}

func (q *Queries) CountCategoryExpenses(ctx context.Context, categoryID int64) (int64, error) {
	var n int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM expenses WHERE category_id = ?`, categoryID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count category expenses: %w", err)
	}
	return n, nil
}

// ReassignExpenses moves every expense of one category to another
// category in the same month.
func (q *Queries) ReassignExpenses(ctx context.Context, fromID, toID int64, adminOverride bool) error {
	if err := q.guardCategory(ctx, fromID, adminOverride); err != nil {
		return err
	}
	fromMonth, err := q.categoryMonth(ctx, fromID)
	if err != nil {
		return err
	}
	toMonth, err := q.categoryMonth(ctx, toID)
	if err != nil {
		return err
	}
	if fromMonth != toMonth {
		return core.ErrInvalidCategorySelection
	}
	_, err = q.db.ExecContext(ctx,
		`UPDATE expenses SET category_id = ? WHERE category_id = ?`, toID, fromID)
	if err != nil {
		return fmt.Errorf("reassign expenses: %w", err)
	}
	return nil
}

// MaxSortOrder returns the highest sort order in a month, 0 when the
// month has no categories yet.
func (q *Queries) MaxSortOrder(ctx context.Context, monthID int64) (int64, error) {
	var max int64
	err := q.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(sort_order), 0) FROM categories WHERE month_id = ?`, monthID).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max sort order: %w", err)
	}
	return max, nil
}
