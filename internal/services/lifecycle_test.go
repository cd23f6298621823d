package services

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"budget/internal/core"
	"budget/internal/storage"
)

func newTestService(t *testing.T) *BudgetService {
	t.Helper()
	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "budget.db"))
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	svc := NewBudgetService(repo)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func month(year int, m time.Month) time.Time {
	return time.Date(year, m, 1, 0, 0, 0, 0, time.UTC)
}

func TestEnsureMonthIdempotent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	first, err := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Status != core.MonthOpen {
		t.Errorf("status = %s, want open", first.Status)
	}

	// Mid-month target normalizes to the same month.
	again, err := svc.EnsureMonth(ctx, "alice", time.Date(2025, 3, 17, 12, 0, 0, 0, time.UTC), false)
	if err != nil {
		t.Fatalf("second ensure: %v", err)
	}
	if again.ID != first.ID {
		t.Errorf("expected same month, ids %d and %d", first.ID, again.ID)
	}

	months, err := svc.ListMonths(ctx, "alice", 0)
	if err != nil || len(months) != 1 {
		t.Fatalf("expected exactly 1 month, n=%d err=%v", len(months), err)
	}
}

func TestEnsureMonthRequiresOwner(t *testing.T) {
	svc := newTestService(t)
	if _, err := svc.EnsureMonth(context.Background(), "", month(2025, time.March), false); !errors.Is(err, core.ErrEmptyOwner) {
		t.Errorf("expected ErrEmptyOwner, got %v", err)
	}
}

func TestEnsureMonthClonesPrior(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	prior, err := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	if err != nil {
		t.Fatalf("ensure prior: %v", err)
	}
	if _, err := svc.UpdateIncome(ctx, prior.ID, 120000, false); err != nil {
		t.Fatalf("income: %v", err)
	}

	housing, err := svc.AddCategory(ctx, prior.ID, "Housing", 0, false)
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	food, err := svc.AddCategory(ctx, prior.ID, "Food", 0, false)
	if err != nil {
		t.Fatalf("category: %v", err)
	}

	if _, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: prior.ID, CategoryID: housing.ID, Name: "Rent",
		AmountCents: 60000, Kind: core.Recurring, Enabled: true,
	}); err != nil {
		t.Fatalf("rent: %v", err)
	}
	if _, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: prior.ID, CategoryID: food.ID, Name: "Groceries",
		AmountCents: 5000, Kind: core.Variable,
		Date: time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC), Enabled: true,
	}); err != nil {
		t.Fatalf("groceries: %v", err)
	}

	next, err := svc.EnsureMonth(ctx, "alice", month(2025, time.April), true)
	if err != nil {
		t.Fatalf("ensure next: %v", err)
	}

	if next.NetIncome.Cents != 120000 {
		t.Errorf("carried income = %d, want 120000", next.NetIncome.Cents)
	}

	cats, err := svc.ListCategories(ctx, next.ID)
	if err != nil || len(cats) != 2 {
		t.Fatalf("expected 2 cloned categories, n=%d err=%v", len(cats), err)
	}
	for _, c := range cats {
		if c.MonthID != next.ID {
			t.Errorf("category %q belongs to month %d, want %d", c.Name, c.MonthID, next.ID)
		}
	}

	expenses, err := svc.ListExpenses(ctx, next.ID)
	if err != nil || len(expenses) != 2 {
		t.Fatalf("expected 2 cloned expenses, n=%d err=%v", len(expenses), err)
	}
	for _, e := range expenses {
		switch e.Name {
		case "Rent":
			if e.Kind != core.Recurring || !e.Date.IsZero() {
				t.Errorf("cloned rent: kind=%s date=%v", e.Kind, e.Date)
			}
			if e.Amount.Cents != 60000 {
				t.Errorf("cloned rent amount = %d", e.Amount.Cents)
			}
		case "Groceries":
			// Variable dates reset to the new month's first day.
			if got := e.Date.Format("2006-01-02"); got != "2025-04-01" {
				t.Errorf("cloned groceries date = %s, want 2025-04-01", got)
			}
		default:
			t.Errorf("unexpected expense %q", e.Name)
		}
	}
}

func TestCloneIsolatedFromPrior(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	prior, _ := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	cat, err := svc.AddCategory(ctx, prior.ID, "Food", 0, false)
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	e, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: prior.ID, CategoryID: cat.ID, Name: "Groceries",
		AmountCents: 5000, Kind: core.Variable, Enabled: true,
	})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}

	next, err := svc.EnsureMonth(ctx, "alice", month(2025, time.April), false)
	if err != nil {
		t.Fatalf("ensure next: %v", err)
	}

	// Mutating the clone leaves the prior month untouched.
	cloned, err := svc.ListExpenses(ctx, next.ID)
	if err != nil || len(cloned) != 1 {
		t.Fatalf("cloned expenses: n=%d err=%v", len(cloned), err)
	}
	if _, err := svc.UpdateExpense(ctx, storage.UpdateExpenseParams{
		ID: cloned[0].ID, CategoryID: cloned[0].CategoryID, Name: "Renamed",
		AmountCents: 9999, Kind: core.Variable, Enabled: true,
	}); err != nil {
		t.Fatalf("update clone: %v", err)
	}

	orig, err := svc.ListExpenses(ctx, prior.ID)
	if err != nil || len(orig) != 1 {
		t.Fatalf("prior expenses: n=%d err=%v", len(orig), err)
	}
	if orig[0].ID != e.ID || orig[0].Name != "Groceries" || orig[0].Amount.Cents != 5000 {
		t.Errorf("prior month mutated: %+v", orig[0])
	}
}

func TestEnsureMonthClonesFromClosedPrior(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	prior, _ := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	cat, _ := svc.AddCategory(ctx, prior.ID, "Food", 0, false)
	if _, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: prior.ID, CategoryID: cat.ID, Name: "Groceries",
		AmountCents: 5000, Kind: core.Variable, Enabled: true,
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}
	if _, err := svc.CloseMonth(ctx, prior.ID); err != nil {
		t.Fatalf("close: %v", err)
	}

	// A closed prior month does not block creating the next one.
	next, err := svc.EnsureMonth(ctx, "alice", month(2025, time.April), false)
	if err != nil {
		t.Fatalf("ensure after close: %v", err)
	}
	expenses, err := svc.ListExpenses(ctx, next.ID)
	if err != nil || len(expenses) != 1 {
		t.Errorf("expected clone from closed month, n=%d err=%v", len(expenses), err)
	}
}

func TestEnsureMonthSeedsFromTemplates(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	templates := []core.ExpenseTemplate{
		{Owner: "alice", Name: "Rent", DefaultAmount: core.Money{Cents: 60000}, DefaultCategory: "Housing", Active: true},
		{Owner: "alice", Name: "Electricity", DefaultAmount: core.Money{Cents: 8000}, DefaultCategory: "Housing", Active: true},
		{Owner: "alice", Name: "Gym", DefaultAmount: core.Money{Cents: 3000}, DefaultCategory: "Health", Active: true},
		{Owner: "alice", Name: "Old sub", DefaultAmount: core.Money{Cents: 500}, DefaultCategory: "Health", Active: false},
	}
	for _, tpl := range templates {
		if _, err := svc.UpsertTemplate(ctx, tpl); err != nil {
			t.Fatalf("upsert %q: %v", tpl.Name, err)
		}
	}

	m, err := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}

	cats, err := svc.ListCategories(ctx, m.ID)
	if err != nil || len(cats) != 2 {
		t.Fatalf("expected 2 seeded categories, n=%d err=%v", len(cats), err)
	}
	// Categories appear in creation order with a sort-order gap of 10.
	for i, c := range cats {
		if want := int64((i + 1) * 10); c.SortOrder != want {
			t.Errorf("category %q sort order = %d, want %d", c.Name, c.SortOrder, want)
		}
	}

	expenses, err := svc.ListExpenses(ctx, m.ID)
	if err != nil || len(expenses) != 3 {
		t.Fatalf("expected 3 seeded expenses (inactive skipped), n=%d err=%v", len(expenses), err)
	}
	for _, e := range expenses {
		if e.Kind != core.Recurring || !e.Enabled {
			t.Errorf("seeded expense %q: kind=%s enabled=%v", e.Name, e.Kind, e.Enabled)
		}
		if e.TemplateID == 0 {
			t.Errorf("seeded expense %q has no template link", e.Name)
		}
	}
}

func TestCloseMonthIsTerminal(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m, _ := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)

	closed, err := svc.CloseMonth(ctx, m.ID)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.Status != core.MonthClosed {
		t.Errorf("status = %s, want closed", closed.Status)
	}

	again, err := svc.CloseMonth(ctx, m.ID)
	if err != nil {
		t.Fatalf("second close: %v", err)
	}
	if again.Status != core.MonthClosed {
		t.Errorf("second close status = %s", again.Status)
	}

	if _, err := svc.AddCategory(ctx, m.ID, "Late", 0, false); !errors.Is(err, core.ErrMonthClosed) {
		t.Errorf("expected ErrMonthClosed, got %v", err)
	}
}

func TestDeleteCategoryRequiresReassignment(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m, _ := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	from, _ := svc.AddCategory(ctx, m.ID, "Misc", 0, false)
	to, _ := svc.AddCategory(ctx, m.ID, "Food", 0, false)
	if _, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: m.ID, CategoryID: from.ID, Name: "Groceries",
		AmountCents: 1000, Kind: core.Variable, Enabled: true,
	}); err != nil {
		t.Fatalf("expense: %v", err)
	}

	if err := svc.DeleteCategory(ctx, from.ID, 0, false); !errors.Is(err, core.ErrCategoryNotEmpty) {
		t.Errorf("expected ErrCategoryNotEmpty, got %v", err)
	}

	if err := svc.DeleteCategory(ctx, from.ID, to.ID, false); err != nil {
		t.Fatalf("delete with reassignment: %v", err)
	}

	expenses, err := svc.ListExpenses(ctx, m.ID)
	if err != nil || len(expenses) != 1 {
		t.Fatalf("expenses after delete: n=%d err=%v", len(expenses), err)
	}
	if expenses[0].CategoryID != to.ID {
		t.Errorf("expense category = %d, want %d", expenses[0].CategoryID, to.ID)
	}
}

func TestToggleExpenseKind(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m, _ := svc.EnsureMonth(ctx, "alice", month(2025, time.March), false)
	cat, _ := svc.AddCategory(ctx, m.ID, "Food", 0, false)
	e, err := svc.AddExpense(ctx, storage.CreateExpenseParams{
		MonthID: m.ID, CategoryID: cat.ID, Name: "Groceries",
		AmountCents: 5000, Kind: core.Variable, Enabled: true,
	})
	if err != nil {
		t.Fatalf("expense: %v", err)
	}

	toggled, err := svc.ToggleExpenseKind(ctx, e.ID, false)
	if err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if toggled.Kind != core.Recurring || !toggled.Date.IsZero() {
		t.Errorf("after toggle: kind=%s date=%v", toggled.Kind, toggled.Date)
	}

	back, err := svc.ToggleExpenseKind(ctx, e.ID, false)
	if err != nil {
		t.Fatalf("toggle back: %v", err)
	}
	if back.Kind != core.Variable {
		t.Errorf("after second toggle: kind=%s", back.Kind)
	}
	if got := back.Date.Format("2006-01-02"); got != "2025-03-01" {
		t.Errorf("variable date after toggle = %s, want 2025-03-01", got)
	}
}
