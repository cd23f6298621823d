package core

import "time"

// MonthTotals are the lazily computed read-side aggregates of a month.
// Sums over zero rows are exact zero, never absent.
type MonthTotals struct {
	TotalRecurring Money
	TotalVariable  Money
	TotalExpenses  Money
	Balance        Money
}

// CategoryBreakdown splits a category's spend by expense kind.
type CategoryBreakdown struct {
	Name      string
	Recurring Money
	Variable  Money
	Total     Money
}

// TrendPoint is one month of the historical dashboard trend.
type TrendPoint struct {
	Month     time.Time
	Income    Money
	Recurring Money
	Variable  Money
	Total     Money
	Balance   Money
}

// TopExpense is a variable expense name ranked by its summed amount
// across all months.
type TopExpense struct {
	Name  string
	Total Money
}

// ForecastResult is one projected month. Balance is the negative of
// TotalExpenses: income is deliberately not part of this projection and
// is left for the caller to layer in.
type ForecastResult struct {
	Month            time.Time
	RecurringTotal   Money
	VariableEstimate Money
	TotalExpenses    Money
	Balance          Money
}
