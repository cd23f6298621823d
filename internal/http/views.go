package http

import (
	"budget/internal/core"
)

// Wire views. Amounts serialize as decimal strings via core.Money.

type monthView struct {
	ID        int64      `json:"id"`
	Owner     string     `json:"owner"`
	Month     string     `json:"month"`
	NetIncome core.Money `json:"net_income"`
	Status    string     `json:"status"`
}

func toMonthView(m core.BudgetMonth) monthView {
	return monthView{
		ID:        m.ID,
		Owner:     m.Owner,
		Month:     core.FormatMonth(m.Month),
		NetIncome: m.NetIncome,
		Status:    string(m.Status),
	}
}

type categoryView struct {
	ID        int64  `json:"id"`
	MonthID   int64  `json:"month_id"`
	Name      string `json:"name"`
	SortOrder int64  `json:"sort_order"`
}

func toCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, MonthID: c.MonthID, Name: c.Name, SortOrder: c.SortOrder}
}

type expenseView struct {
	ID         int64      `json:"id"`
	MonthID    int64      `json:"month_id"`
	CategoryID int64      `json:"category_id"`
	Name       string     `json:"name"`
	Amount     core.Money `json:"amount"`
	Kind       string     `json:"kind"`
	Date       string     `json:"date,omitempty"`
	Enabled    bool       `json:"enabled"`
	TemplateID int64      `json:"template_id,omitempty"`
	Notes      string     `json:"notes,omitempty"`
}

func toExpenseView(e core.Expense) expenseView {
	v := expenseView{
		ID:         e.ID,
		MonthID:    e.MonthID,
		CategoryID: e.CategoryID,
		Name:       e.Name,
		Amount:     e.Amount,
		Kind:       string(e.Kind),
		Enabled:    e.Enabled,
		TemplateID: e.TemplateID,
		Notes:      e.Notes,
	}
	if !e.Date.IsZero() {
		v.Date = e.Date.Format("2006-01-02")
	}
	return v
}

type templateView struct {
	ID              int64      `json:"id"`
	Owner           string     `json:"owner"`
	Name            string     `json:"name"`
	DefaultAmount   core.Money `json:"default_amount"`
	DefaultCategory string     `json:"default_category"`
	Active          bool       `json:"active"`
	Notes           string     `json:"notes,omitempty"`
}

func toTemplateView(t core.ExpenseTemplate) templateView {
	return templateView{
		ID:              t.ID,
		Owner:           t.Owner,
		Name:            t.Name,
		DefaultAmount:   t.DefaultAmount,
		DefaultCategory: t.DefaultCategory,
		Active:          t.Active,
		Notes:           t.Notes,
	}
}

type overrideView struct {
	ID         int64      `json:"id"`
	MonthID    int64      `json:"month_id"`
	CategoryID int64      `json:"category_id"`
	Amount     core.Money `json:"amount"`
}

func toOverrideView(o core.ForecastOverride) overrideView {
	return overrideView{ID: o.ID, MonthID: o.MonthID, CategoryID: o.CategoryID, Amount: o.Amount}
}

type totalsView struct {
	TotalRecurring core.Money `json:"total_recurring"`
	TotalVariable  core.Money `json:"total_variable"`
	TotalExpenses  core.Money `json:"total_expenses"`
	Balance        core.Money `json:"balance"`
}

func toTotalsView(t core.MonthTotals) totalsView {
	return totalsView{
		TotalRecurring: t.TotalRecurring,
		TotalVariable:  t.TotalVariable,
		TotalExpenses:  t.TotalExpenses,
		Balance:        t.Balance,
	}
}

// monthSummary is the cached dashboard read for a single month.
type monthSummary struct {
	Month  monthView  `json:"month"`
	Totals totalsView `json:"totals"`
}

type breakdownView struct {
	Name      string     `json:"name"`
	Recurring core.Money `json:"recurring"`
	Variable  core.Money `json:"variable"`
	Total     core.Money `json:"total"`
}

type trendPointView struct {
	Month     string     `json:"month"`
	Income    core.Money `json:"income"`
	Recurring core.Money `json:"recurring"`
	Variable  core.Money `json:"variable"`
	Total     core.Money `json:"total"`
	Balance   core.Money `json:"balance"`
}

type forecastView struct {
	Month            string     `json:"month"`
	RecurringTotal   core.Money `json:"recurring_total"`
	VariableEstimate core.Money `json:"variable_estimate"`
	TotalExpenses    core.Money `json:"total_expenses"`
	Balance          core.Money `json:"balance"`
}

type topExpenseView struct {
	Name  string     `json:"name"`
	Total core.Money `json:"total"`
}

type monthDetail struct {
	Month      monthView      `json:"month"`
	Totals     totalsView     `json:"totals"`
	Categories []categoryView `json:"categories"`
	Expenses   []expenseView  `json:"expenses"`
}
