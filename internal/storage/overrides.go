package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"budget/internal/core"
)

// SetOverride upserts the manual forecast override for (month,
// category). Writes are guarded like any other month-owned data.
func (q *Queries) SetOverride(ctx context.Context, o core.ForecastOverride, adminOverride bool) (core.ForecastOverride, error) {
	if err := o.Validate(); err != nil {
		return core.ForecastOverride{}, err
	}
	if err := q.guardMonth(ctx, o.MonthID, adminOverride); err != nil {
		return core.ForecastOverride{}, err
	}
	catMonth, err := q.categoryMonth(ctx, o.CategoryID)
	if err != nil {
		return core.ForecastOverride{}, err
	}
	if catMonth != o.MonthID {
		return core.ForecastOverride{}, core.ErrInvalidCategorySelection
	}

	_, err = q.db.ExecContext(ctx,
		`INSERT INTO forecast_overrides (month_id, category_id, override_amount_cents)
		 VALUES (?, ?, ?)
		 ON CONFLICT (month_id, category_id) DO UPDATE SET
		     override_amount_cents = excluded.override_amount_cents`,
		o.MonthID, o.CategoryID, o.Amount.Cents)
	if err != nil {
		return core.ForecastOverride{}, fmt.Errorf("set forecast override: %w", err)
	}
	stored, _, err := q.GetOverride(ctx, o.MonthID, o.CategoryID)
	return stored, err
}

// GetOverride returns the override for (month, category) and whether
// one exists.
func (q *Queries) GetOverride(ctx context.Context, monthID, categoryID int64) (core.ForecastOverride, bool, error) {
	var o core.ForecastOverride
	err := q.db.QueryRowContext(ctx,
		`SELECT id, month_id, category_id, override_amount_cents
		   FROM forecast_overrides WHERE month_id = ? AND category_id = ?`,
		monthID, categoryID).Scan(&o.ID, &o.MonthID, &o.CategoryID, &o.Amount.Cents)
	if errors.Is(err, sql.ErrNoRows) {
		return core.ForecastOverride{}, false, nil
	}
	if err != nil {
		return core.ForecastOverride{}, false, fmt.Errorf("get forecast override: %w", err)
	}
	return o, true, nil
}

// OverridesByCategoryName maps category names to override amounts for a
// month. The forecast engine matches categories by name across months.
func (q *Queries) OverridesByCategoryName(ctx context.Context, monthID int64) (map[string]int64, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT c.name, o.override_amount_cents
		   FROM forecast_overrides o
		   JOIN categories c ON c.id = o.category_id
		  WHERE o.month_id = ?`, monthID)
	if err != nil {
		return nil, fmt.Errorf("list forecast overrides: %w", err)
	}
	defer rows.Close()

	overrides := make(map[string]int64)
	for rows.Next() {
		var (
			name  string
			cents int64
		)
		if err := rows.Scan(&name, &cents); err != nil {
			return nil, fmt.Errorf("scan forecast override: %w", err)
		}
		overrides[name] = cents
	}
	return overrides, rows.Err()
}

func (q *Queries) DeleteOverride(ctx context.Context, monthID, categoryID int64, adminOverride bool) error {
	if err := q.guardMonth(ctx, monthID, adminOverride); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM forecast_overrides WHERE month_id = ? AND category_id = ?`,
		monthID, categoryID)
	if err != nil {
		return fmt.Errorf("delete forecast override: %w", err)
	}
	return nil
}
