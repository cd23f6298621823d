package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"budget/internal/amqp"
	"budget/internal/core"
	"budget/internal/storage"
)

// newCategoryGap is the sort-order gap left between seeded categories
// so they can be reordered by hand without collisions.
const newCategoryGap = 10

// EnsureMonth returns the BudgetMonth for (owner, target), creating it
// if needed. The target is normalized to the first day of its calendar
// month. When a month already exists it is returned unchanged, so the
// operation is idempotent and safe to retry.
//
// A freshly created month is populated inside one transaction:
//   - with a prior month (latest by calendar order): its income is
//     optionally carried forward and its categories and expenses are
//     cloned into independent records;
//   - without one: categories and recurring expenses are seeded from
//     the owner's active templates.
//
// Either the month and all of its children commit, or nothing does.
// Creation is never blocked by a closed prior month; the guard only
// protects months that already exist.
func (s *BudgetService) EnsureMonth(ctx context.Context, owner string, target time.Time, carryForwardIncome bool) (core.BudgetMonth, error) {
	if owner == "" {
		return core.BudgetMonth{}, core.ErrEmptyOwner
	}
	target = core.NormalizeMonth(target)

	if m, err := s.repo.GetMonthByKey(ctx, owner, target); err == nil {
		return m, nil
	} else if !errors.Is(err, core.ErrMonthNotFound) {
		return core.BudgetMonth{}, err
	}

	var (
		monthID int64
		created bool
	)
	err := s.repo.WithTx(ctx, func(q *storage.Queries) error {
		m, createdNow, err := q.InsertMonth(ctx, storage.InsertMonthParams{
			Owner: owner,
			Month: target,
		})
		if err != nil {
			return err
		}
		monthID = m.ID
		if !createdNow {
			// A concurrent creator won the unique constraint; observe
			// its result instead of re-cloning.
			return nil
		}
		created = true

		prev, err := q.LatestMonthBefore(ctx, owner, target)
		switch {
		case err == nil:
			return s.cloneFromPrior(ctx, q, m, prev, carryForwardIncome)
		case errors.Is(err, core.ErrMonthNotFound):
			return s.seedFromTemplates(ctx, q, m)
		default:
			return err
		}
	})
	if err != nil {
		return core.BudgetMonth{}, fmt.Errorf("ensure month %s: %w", core.FormatMonth(target), err)
	}

	m, err := s.repo.GetMonth(ctx, monthID)
	if err != nil {
		return core.BudgetMonth{}, err
	}
	if created {
		slog.InfoContext(ctx, "Budget month created",
			"owner", owner, "month", core.FormatMonth(m.Month))
		s.publishMonthEvent(ctx, amqp.EventMonthCreated, m)
	}
	return m, nil
}

// cloneFromPrior copies the previous month's structure into the new
// month. Clones are independent records: renaming or deleting them
// later never touches the originals. Variable expense dates are reset
// to the new month's first day; recurring expenses carry no date.
func (s *BudgetService) cloneFromPrior(ctx context.Context, q *storage.Queries, m, prev core.BudgetMonth, carryForwardIncome bool) error {
	if carryForwardIncome {
		err := q.SetNetIncome(ctx, storage.SetNetIncomeParams{
			MonthID: m.ID,
			Cents:   prev.NetIncome.Cents,
		})
		if err != nil {
			return fmt.Errorf("carry forward income: %w", err)
		}
	}

	cats, err := q.ListCategories(ctx, prev.ID)
	if err != nil {
		return err
	}
	clonedByPrevID := make(map[int64]core.Category, len(cats))
	for _, cat := range cats {
		clone, err := q.CreateCategory(ctx, storage.CreateCategoryParams{
			MonthID:   m.ID,
			Name:      cat.Name,
			SortOrder: cat.SortOrder,
		})
		if err != nil {
			return fmt.Errorf("clone category %q: %w", cat.Name, err)
		}
		clonedByPrevID[cat.ID] = clone
	}

	expenses, err := q.ListExpenses(ctx, prev.ID)
	if err != nil {
		return err
	}
	for _, e := range expenses {
		target, ok := clonedByPrevID[e.CategoryID]
		if !ok {
			return fmt.Errorf("clone expense %q: %w", e.Name, core.ErrCategoryNotFound)
		}
		// Zero date lets storage default variable expenses to the new
		// month's first day; the old date never carries forward.
		_, err := q.CreateExpense(ctx, storage.CreateExpenseParams{
			MonthID:     m.ID,
			CategoryID:  target.ID,
			Name:        e.Name,
			AmountCents: e.Amount.Cents,
			Kind:        e.Kind,
			Enabled:     e.Enabled,
			TemplateID:  e.TemplateID,
			Notes:       e.Notes,
		})
		if err != nil {
			return fmt.Errorf("clone expense %q: %w", e.Name, err)
		}
	}
	return nil
}

// seedFromTemplates populates a first month from the owner's active
// templates. Categories are created on first encounter of their name,
// appended after all existing ones with a sort-order gap.
func (s *BudgetService) seedFromTemplates(ctx context.Context, q *storage.Queries, m core.BudgetMonth) error {
	templates, err := q.ListTemplates(ctx, m.Owner, true)
	if err != nil {
		return err
	}

	byName := make(map[string]core.Category)
	for _, t := range templates {
		cat, ok := byName[t.DefaultCategory]
		if !ok {
			max, err := q.MaxSortOrder(ctx, m.ID)
			if err != nil {
				return err
			}
			cat, err = q.CreateCategory(ctx, storage.CreateCategoryParams{
				MonthID:   m.ID,
				Name:      t.DefaultCategory,
				SortOrder: max + newCategoryGap,
			})
			if err != nil {
				return fmt.Errorf("seed category %q: %w", t.DefaultCategory, err)
			}
			byName[t.DefaultCategory] = cat
		}
		_, err := q.CreateExpense(ctx, storage.CreateExpenseParams{
			MonthID:     m.ID,
			CategoryID:  cat.ID,
			Name:        t.Name,
			AmountCents: t.DefaultAmount.Cents,
			Kind:        core.Recurring,
			Enabled:     true,
			TemplateID:  t.ID,
			Notes:       t.Notes,
		})
		if err != nil {
			return fmt.Errorf("seed expense %q: %w", t.Name, err)
		}
	}
	return nil
}
