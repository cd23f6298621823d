package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/core"
)

func newTestRepo(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func mustMonth(t *testing.T, repo *Repository, owner string, year int, month time.Month) core.BudgetMonth {
	t.Helper()
	m, _, err := repo.InsertMonth(context.Background(), InsertMonthParams{
		Owner: owner,
		Month: time.Date(year, month, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("insert month: %v", err)
	}
	return m
}

func mustCategory(t *testing.T, repo *Repository, monthID int64, name string) core.Category {
	t.Helper()
	c, err := repo.CreateCategory(context.Background(), CreateCategoryParams{
		MonthID:   monthID,
		Name:      name,
		SortOrder: 10,
	})
	if err != nil {
		t.Fatalf("create category %q: %v", name, err)
	}
	return c
}

func mustExpense(t *testing.T, repo *Repository, monthID, categoryID int64, name string, cents int64, kind core.ExpenseKind) core.Expense {
	t.Helper()
	e, err := repo.CreateExpense(context.Background(), CreateExpenseParams{
		MonthID:     monthID,
		CategoryID:  categoryID,
		Name:        name,
		AmountCents: cents,
		Kind:        kind,
		Enabled:     true,
	})
	if err != nil {
		t.Fatalf("create expense %q: %v", name, err)
	}
	return e
}

func TestInsertMonthIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, created, err := repo.InsertMonth(ctx, InsertMonthParams{
		Owner: "alice",
		Month: time.Date(2025, 3, 15, 10, 30, 0, 0, time.UTC), // mid-month input
	})
	if err != nil {
		t.Fatalf("insert: %v", err)
	}
	if !created {
		t.Error("expected first insert to create")
	}
	if got := first.Month.Format("2006-01-02"); got != "2025-03-01" {
		t.Errorf("expected month normalized to first day, got %s", got)
	}
	if first.Status != core.MonthOpen {
		t.Errorf("expected new month open, got %s", first.Status)
	}

	second, created, err := repo.InsertMonth(ctx, InsertMonthParams{
		Owner: "alice",
		Month: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("second insert: %v", err)
	}
	if created {
		t.Error("expected second insert to be a no-op")
	}
	if second.ID != first.ID {
		t.Errorf("expected same row, got ids %d and %d", first.ID, second.ID)
	}

	// Different owner, same month: distinct row.
	_, created, err = repo.InsertMonth(ctx, InsertMonthParams{
		Owner: "bob",
		Month: time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil || !created {
		t.Errorf("expected bob's month created, created=%v err=%v", created, err)
	}
}

func TestMonthTotalsExactness(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	if err := repo.SetNetIncome(ctx, SetNetIncomeParams{MonthID: m.ID, Cents: 100000}); err != nil {
		t.Fatalf("set income: %v", err)
	}

	housing := mustCategory(t, repo, m.ID, "Housing")
	food := mustCategory(t, repo, m.ID, "Food")

	mustExpense(t, repo, m.ID, housing.ID, "Rent", 60000, core.Recurring)
	mustExpense(t, repo, m.ID, food.ID, "Groceries", 5000, core.Variable)
	mustExpense(t, repo, m.ID, food.ID, "Takeaway", 3000, core.Variable)

	totals, err := repo.MonthTotals(ctx, m.ID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalRecurring.Cents != 60000 {
		t.Errorf("recurring = %d, want 60000", totals.TotalRecurring.Cents)
	}
	if totals.TotalVariable.Cents != 8000 {
		t.Errorf("variable = %d, want 8000", totals.TotalVariable.Cents)
	}
	if totals.TotalExpenses.Cents != 68000 {
		t.Errorf("total = %d, want 68000", totals.TotalExpenses.Cents)
	}
	if totals.Balance.Cents != 32000 {
		t.Errorf("balance = %d, want 32000", totals.Balance.Cents)
	}
}

func TestMonthTotalsEmptyMonthIsZero(t *testing.T) {
	repo := newTestRepo(t)
	m := mustMonth(t, repo, "alice", 2025, time.January)

	totals, err := repo.MonthTotals(context.Background(), m.ID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalExpenses.Cents != 0 || totals.TotalRecurring.Cents != 0 || totals.TotalVariable.Cents != 0 {
		t.Errorf("expected exact zeros, got %+v", totals)
	}
}

func TestDisabledExpensesExcludedFromTotals(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	cat := mustCategory(t, repo, m.ID, "Subscriptions")
	e := mustExpense(t, repo, m.ID, cat.ID, "Streaming", 1500, core.Recurring)

	if _, err := repo.UpdateExpense(ctx, UpdateExpenseParams{
		ID:          e.ID,
		CategoryID:  cat.ID,
		Name:        e.Name,
		AmountCents: e.Amount.Cents,
		Kind:        e.Kind,
		Enabled:     false,
	}); err != nil {
		t.Fatalf("disable expense: %v", err)
	}

	totals, err := repo.MonthTotals(ctx, m.ID)
	if err != nil {
		t.Fatalf("totals: %v", err)
	}
	if totals.TotalRecurring.Cents != 0 {
		t.Errorf("disabled expense counted: %d", totals.TotalRecurring.Cents)
	}
}

func TestClosedMonthGuard(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	cat := mustCategory(t, repo, m.ID, "Food")
	e := mustExpense(t, repo, m.ID, cat.ID, "Groceries", 5000, core.Variable)

	closed, err := repo.CloseMonth(ctx, m.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != core.MonthClosed {
		t.Fatalf("expected closed, got %s", closed.Status)
	}

	// Closing again is a no-op.
	if _, err := repo.CloseMonth(ctx, m.ID); err != nil {
		t.Errorf("second close errored: %v", err)
	}

	t.Run("writes rejected", func(t *testing.T) {
		_, err := repo.CreateCategory(ctx, CreateCategoryParams{MonthID: m.ID, Name: "Late", SortOrder: 20})
		if !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("create category: expected ErrMonthClosed, got %v", err)
		}

		_, err = repo.CreateExpense(ctx, CreateExpenseParams{
			MonthID: m.ID, CategoryID: cat.ID, Name: "Late", AmountCents: 100, Kind: core.Variable, Enabled: true,
		})
		if !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("create expense: expected ErrMonthClosed, got %v", err)
		}

		_, err = repo.UpdateExpense(ctx, UpdateExpenseParams{
			ID: e.ID, CategoryID: cat.ID, Name: "Changed", AmountCents: 6000, Kind: core.Variable, Enabled: true,
		})
		if !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("update expense: expected ErrMonthClosed, got %v", err)
		}

		if err := repo.DeleteExpense(ctx, e.ID, false); !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("delete expense: expected ErrMonthClosed, got %v", err)
		}

		if err := repo.SetNetIncome(ctx, SetNetIncomeParams{MonthID: m.ID, Cents: 1}); !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("set income: expected ErrMonthClosed, got %v", err)
		}

		if err := repo.DeleteCategory(ctx, cat.ID, false); !errors.Is(err, core.ErrMonthClosed) {
			t.Errorf("delete category: expected ErrMonthClosed, got %v", err)
		}
	})

	t.Run("reads permitted", func(t *testing.T) {
		if _, err := repo.GetMonth(ctx, m.ID); err != nil {
			t.Errorf("get month: %v", err)
		}
		expenses, err := repo.ListExpenses(ctx, m.ID)
		if err != nil || len(expenses) != 1 {
			t.Errorf("list expenses: n=%d err=%v", len(expenses), err)
		}
		if _, err := repo.MonthTotals(ctx, m.ID); err != nil {
			t.Errorf("totals: %v", err)
		}
	})

	t.Run("admin override bypasses", func(t *testing.T) {
		updated, err := repo.UpdateExpense(ctx, UpdateExpenseParams{
			ID: e.ID, CategoryID: cat.ID, Name: "Corrected", AmountCents: 5500,
			Kind: core.Variable, Enabled: true, AdminOverride: true,
		})
		if err != nil {
			t.Fatalf("admin update: %v", err)
		}
		if updated.Amount.Cents != 5500 {
			t.Errorf("amount = %d, want 5500", updated.Amount.Cents)
		}
	})
}

func TestExpenseDateNormalization(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.April)
	cat := mustCategory(t, repo, m.ID, "Food")

	// Variable expense with no date defaults to the month's first day.
	variable := mustExpense(t, repo, m.ID, cat.ID, "Groceries", 1000, core.Variable)
	if got := variable.Date.Format("2006-01-02"); got != "2025-04-01" {
		t.Errorf("variable date = %s, want 2025-04-01", got)
	}

	// Recurring expenses carry no date even when one is supplied.
	recurring, err := repo.CreateExpense(ctx, CreateExpenseParams{
		MonthID: m.ID, CategoryID: cat.ID, Name: "Rent", AmountCents: 60000,
		Kind: core.Recurring, Date: time.Date(2025, 4, 12, 0, 0, 0, 0, time.UTC), Enabled: true,
	})
	if err != nil {
		t.Fatalf("create recurring: %v", err)
	}
	if !recurring.Date.IsZero() {
		t.Errorf("recurring date = %v, want zero", recurring.Date)
	}
}

func TestCategoryConstraints(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	a := mustMonth(t, repo, "alice", 2025, time.March)
	b := mustMonth(t, repo, "alice", 2025, time.April)
	catA := mustCategory(t, repo, a.ID, "Food")
	catB := mustCategory(t, repo, b.ID, "Food")

	// Duplicate name within the same month.
	_, err := repo.CreateCategory(ctx, CreateCategoryParams{MonthID: a.ID, Name: "Food", SortOrder: 20})
	if !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("expected ErrDuplicateCategory, got %v", err)
	}

	// Expense may not reference a category of another month.
	_, err = repo.CreateExpense(ctx, CreateExpenseParams{
		MonthID: a.ID, CategoryID: catB.ID, Name: "Cross", AmountCents: 100, Kind: core.Variable, Enabled: true,
	})
	if !errors.Is(err, core.ErrInvalidCategorySelection) {
		t.Errorf("expected ErrInvalidCategorySelection, got %v", err)
	}

	// Reassignment across months is rejected too.
	mustExpense(t, repo, a.ID, catA.ID, "Groceries", 1000, core.Variable)
	if err := repo.ReassignExpenses(ctx, catA.ID, catB.ID, false); !errors.Is(err, core.ErrInvalidCategorySelection) {
		t.Errorf("expected ErrInvalidCategorySelection on reassign, got %v", err)
	}
}

func TestUpdateCategoryRejectsDuplicateName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	mustCategory(t, repo, m.ID, "Food")
	other := mustCategory(t, repo, m.ID, "Housing")

	_, err := repo.UpdateCategory(ctx, UpdateCategoryParams{
		ID: other.ID, Name: "Food", SortOrder: other.SortOrder,
	})
	if !errors.Is(err, core.ErrDuplicateCategory) {
		t.Errorf("expected ErrDuplicateCategory, got %v", err)
	}

	// Keeping its own name is not a collision.
	got, err := repo.UpdateCategory(ctx, UpdateCategoryParams{
		ID: other.ID, Name: "Housing", SortOrder: 30,
	})
	if err != nil {
		t.Fatalf("rename to own name: %v", err)
	}
	if got.SortOrder != 30 {
		t.Errorf("sort order = %d, want 30", got.SortOrder)
	}
}

func TestReassignAndDeleteCategory(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	from := mustCategory(t, repo, m.ID, "Misc")
	to := mustCategory(t, repo, m.ID, "Food")
	mustExpense(t, repo, m.ID, from.ID, "Groceries", 1000, core.Variable)

	if err := repo.ReassignExpenses(ctx, from.ID, to.ID, false); err != nil {
		t.Fatalf("reassign: %v", err)
	}
	count, err := repo.CountCategoryExpenses(ctx, from.ID)
	if err != nil || count != 0 {
		t.Fatalf("expected empty source category, count=%d err=%v", count, err)
	}
	if err := repo.DeleteCategory(ctx, from.ID, false); err != nil {
		t.Fatalf("delete: %v", err)
	}

	moved, err := repo.ListCategoryExpenses(ctx, to.ID)
	if err != nil || len(moved) != 1 {
		t.Fatalf("expected 1 moved expense, n=%d err=%v", len(moved), err)
	}
	if moved[0].CategoryID != to.ID {
		t.Errorf("expense category = %d, want %d", moved[0].CategoryID, to.ID)
	}
}

func TestLatestMonthLookups(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	jan := mustMonth(t, repo, "alice", 2025, time.January)
	mar := mustMonth(t, repo, "alice", 2025, time.March)

	before, err := repo.LatestMonthBefore(ctx, "alice", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("latest before: %v", err)
	}
	if before.ID != jan.ID {
		t.Errorf("latest before March = %d, want January %d", before.ID, jan.ID)
	}

	atOrBefore, err := repo.LatestMonthAtOrBefore(ctx, "alice", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("latest at or before: %v", err)
	}
	if atOrBefore.ID != mar.ID {
		t.Errorf("latest at or before March = %d, want March %d", atOrBefore.ID, mar.ID)
	}

	_, err = repo.LatestMonthBefore(ctx, "alice", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	if !errors.Is(err, core.ErrMonthNotFound) {
		t.Errorf("expected ErrMonthNotFound, got %v", err)
	}
}

func TestVariableHistoryOrderAndWindow(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i, cents := range []int64{1000, 2000, 3000} {
		m := mustMonth(t, repo, "alice", 2025, time.Month(i+1))
		cat := mustCategory(t, repo, m.ID, "Food")
		mustExpense(t, repo, m.ID, cat.ID, "Groceries", cents, core.Variable)
	}

	history, err := repo.VariableHistory(ctx, "alice", "Food", time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), 2)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected window of 2, got %d", len(history))
	}
	// Most recent month first.
	if history[0] != 3000 || history[1] != 2000 {
		t.Errorf("history = %v, want [3000 2000]", history)
	}

	// `before` is exclusive.
	history, err = repo.VariableHistory(ctx, "alice", "Food", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), 12)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 2 || history[0] != 2000 {
		t.Errorf("history before March = %v, want [2000 1000]", history)
	}
}

func TestForecastOverrideRoundTrip(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)
	cat := mustCategory(t, repo, m.ID, "Food")

	o, err := repo.SetOverride(ctx, core.ForecastOverride{
		MonthID: m.ID, CategoryID: cat.ID, Amount: core.Money{Cents: 7500},
	}, false)
	if err != nil {
		t.Fatalf("set override: %v", err)
	}
	if o.ID == 0 {
		t.Error("expected override id")
	}

	// Upsert replaces the amount.
	if _, err := repo.SetOverride(ctx, core.ForecastOverride{
		MonthID: m.ID, CategoryID: cat.ID, Amount: core.Money{Cents: 8000},
	}, false); err != nil {
		t.Fatalf("second set: %v", err)
	}

	byName, err := repo.OverridesByCategoryName(ctx, m.ID)
	if err != nil {
		t.Fatalf("overrides by name: %v", err)
	}
	if byName["Food"] != 8000 {
		t.Errorf("override = %d, want 8000", byName["Food"])
	}

	if err := repo.DeleteOverride(ctx, m.ID, cat.ID, false); err != nil {
		t.Fatalf("delete override: %v", err)
	}
	_, found, err := repo.GetOverride(ctx, m.ID, cat.ID)
	if err != nil {
		t.Fatalf("get override: %v", err)
	}
	if found {
		t.Error("expected override gone")
	}
}

func TestTemplateUpsertKeyedByOwnerAndName(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	first, err := repo.UpsertTemplate(ctx, core.ExpenseTemplate{
		Owner: "alice", Name: "Rent", DefaultAmount: core.Money{Cents: 60000},
		DefaultCategory: "Housing", Active: true,
	})
	if err != nil {
		t.Fatalf("upsert: %v", err)
	}

	second, err := repo.UpsertTemplate(ctx, core.ExpenseTemplate{
		Owner: "alice", Name: "Rent", DefaultAmount: core.Money{Cents: 65000},
		DefaultCategory: "Housing", Active: true,
	})
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("expected update in place, ids %d and %d", first.ID, second.ID)
	}
	if second.DefaultAmount.Cents != 65000 {
		t.Errorf("amount = %d, want 65000", second.DefaultAmount.Cents)
	}

	templates, err := repo.ListTemplates(ctx, "alice", false)
	if err != nil || len(templates) != 1 {
		t.Fatalf("expected 1 template, n=%d err=%v", len(templates), err)
	}

	if err := repo.SetTemplateActive(ctx, first.ID, false); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	active, err := repo.ListTemplates(ctx, "alice", true)
	if err != nil || len(active) != 0 {
		t.Errorf("expected no active templates, n=%d err=%v", len(active), err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	m := mustMonth(t, repo, "alice", 2025, time.March)

	wantErr := errors.New("boom")
	err := repo.WithTx(ctx, func(q *Queries) error {
		if _, err := q.CreateCategory(ctx, CreateCategoryParams{MonthID: m.ID, Name: "Doomed", SortOrder: 10}); err != nil {
			return err
		}
		return wantErr
	})
	if !errors.Is(err, wantErr) {
		t.Fatalf("expected wrapped boom, got %v", err)
	}

	cats, err := repo.ListCategories(ctx, m.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(cats) != 0 {
		t.Errorf("expected rollback, found %d categories", len(cats))
	}
}
