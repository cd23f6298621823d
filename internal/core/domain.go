package core

import (
	"errors"
	"strings"
	"time"
)

const (
	MonthOpen   MonthStatus = "open"
	MonthClosed MonthStatus = "closed"

	Recurring ExpenseKind = "recurring"
	Variable  ExpenseKind = "variable"
)

type (
	MonthStatus string

	ExpenseKind string

	// BudgetMonth is one calendar month of budgeting for an owner.
	// Month is always normalized to the first day of the month (UTC).
	BudgetMonth struct {
		ID        int64
		Owner     string
		Month     time.Time
		NetIncome Money
		Status    MonthStatus
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	// Category groups expenses within a single month. Categories are
	// re-created per month; name is unique within the owning month.
	Category struct {
		ID        int64
		MonthID   int64
		Name      string
		SortOrder int64
	}

	// Expense belongs to exactly one category. The month reference is
	// denormalized for fast scoping. Recurring expenses carry no date;
	// variable expenses default their date to the month's first day.
	// TemplateID is 0 when the expense was not generated from a template.
	Expense struct {
		ID         int64
		MonthID    int64
		CategoryID int64
		Name       string
		Amount     Money
		Kind       ExpenseKind
		Date       time.Time
		Enabled    bool
		TemplateID int64
		Notes      string
	}

	// ExpenseTemplate seeds recurring expenses into a first month.
	// Its lifetime is independent of any month.
	ExpenseTemplate struct {
		ID              int64
		Owner           string
		Name            string
		DefaultAmount   Money
		DefaultCategory string
		Active          bool
		Notes           string
	}

	// ForecastOverride replaces the computed variable estimate for a
	// category in a month. At most one per (month, category).
	ForecastOverride struct {
		ID         int64
		MonthID    int64
		CategoryID int64
		Amount     Money
	}
)

var (
	ErrMonthClosed              = errors.New("month is closed")
	ErrMonthNotFound            = errors.New("month not found")
	ErrCategoryNotFound         = errors.New("category not found")
	ErrExpenseNotFound          = errors.New("expense not found")
	ErrTemplateNotFound         = errors.New("template not found")
	ErrInvalidCategorySelection = errors.New("category belongs to a different month")
	ErrCategoryNotEmpty         = errors.New("category still has expenses")
	ErrDuplicateCategory        = errors.New("category name already used in this month")
	ErrInvalidAmount            = errors.New("invalid amount")
	ErrEmptyName                = errors.New("empty name")
	ErrEmptyOwner               = errors.New("empty owner")
	ErrInvalidKind              = errors.New("invalid expense kind")
	ErrInvalidMonth             = errors.New("invalid month")
)

func (s MonthStatus) Valid() bool {
	return s == MonthOpen || s == MonthClosed
}

func (k ExpenseKind) Valid() bool {
	return k == Recurring || k == Variable
}

func (m BudgetMonth) Closed() bool {
	return m.Status == MonthClosed
}

func (c Category) Validate() error {
	if len(strings.TrimSpace(c.Name)) == 0 {
		return ErrEmptyName
	}
	if len(c.Name) > 200 {
		return errors.New("category name too long (max 200 characters)")
	}
	return nil
}

func (e Expense) Validate() error {
	if len(strings.TrimSpace(e.Name)) == 0 {
		return ErrEmptyName
	}
	if len(e.Name) > 200 {
		return errors.New("expense name too long (max 200 characters)")
	}
	if err := e.Amount.Validate(); err != nil {
		return err
	}
	if !e.Kind.Valid() {
		return ErrInvalidKind
	}
	if e.CategoryID == 0 {
		return ErrCategoryNotFound
	}
	return nil
}

func (t ExpenseTemplate) Validate() error {
	if strings.TrimSpace(t.Owner) == "" {
		return ErrEmptyOwner
	}
	if len(strings.TrimSpace(t.Name)) == 0 {
		return ErrEmptyName
	}
	if len(t.Name) > 200 {
		return errors.New("template name too long (max 200 characters)")
	}
	if strings.TrimSpace(t.DefaultCategory) == "" {
		return errors.New("empty default category")
	}
	return t.DefaultAmount.Validate()
}

func (o ForecastOverride) Validate() error {
	if o.MonthID == 0 {
		return ErrMonthNotFound
	}
	if o.CategoryID == 0 {
		return ErrCategoryNotFound
	}
	return o.Amount.Validate()
}
