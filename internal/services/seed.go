package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"budget/internal/core"
)

// SeedData is the one-time setup import: a net income plus named
// categories of recurring items. Each item becomes an ExpenseTemplate
// upserted on (owner, name); the net income is applied to the first
// created month.
type SeedData struct {
	NetIncome  core.Money     `json:"net_income"`
	Categories []SeedCategory `json:"categories"`
}

type SeedCategory struct {
	Name  string     `json:"name"`
	Items []SeedItem `json:"items"`
}

type SeedItem struct {
	Name   string     `json:"name"`
	Amount core.Money `json:"amount"`
	Notes  string     `json:"notes,omitempty"`
}

// ParseSeedData decodes the seed import format.
func ParseSeedData(r io.Reader) (SeedData, error) {
	var data SeedData
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&data); err != nil {
		return SeedData{}, fmt.Errorf("decode seed data: %w", err)
	}
	return data, nil
}

func (d SeedData) validate() error {
	for _, cat := range d.Categories {
		if strings.TrimSpace(cat.Name) == "" {
			return fmt.Errorf("seed category: %w", core.ErrEmptyName)
		}
		for _, item := range cat.Items {
			if strings.TrimSpace(item.Name) == "" {
				return fmt.Errorf("seed item in %q: %w", cat.Name, core.ErrEmptyName)
			}
			if item.Amount.Cents <= 0 {
				return fmt.Errorf("seed item %q: %w", item.Name, core.ErrInvalidAmount)
			}
		}
	}
	return nil
}

// ImportSeed upserts the owner's templates from the seed data, ensures
// the first month and applies the seed net income to it. Re-running the
// import updates template amounts without duplicating anything.
func (s *BudgetService) ImportSeed(ctx context.Context, owner string, data SeedData, firstMonth time.Time) (core.BudgetMonth, error) {
	if owner == "" {
		return core.BudgetMonth{}, core.ErrEmptyOwner
	}
	if err := data.validate(); err != nil {
		return core.BudgetMonth{}, err
	}

	count := 0
	for _, cat := range data.Categories {
		for _, item := range cat.Items {
			_, err := s.repo.UpsertTemplate(ctx, core.ExpenseTemplate{
				Owner:           owner,
				Name:            item.Name,
				DefaultAmount:   item.Amount,
				DefaultCategory: cat.Name,
				Active:          true,
				Notes:           item.Notes,
			})
			if err != nil {
				return core.BudgetMonth{}, fmt.Errorf("seed template %q: %w", item.Name, err)
			}
			count++
		}
	}
	slog.InfoContext(ctx, "Seed templates imported", "owner", owner, "templates", count)

	m, err := s.EnsureMonth(ctx, owner, firstMonth, true)
	if err != nil {
		return core.BudgetMonth{}, err
	}
	if data.NetIncome.Cents > 0 {
		m, err = s.UpdateIncome(ctx, m.ID, data.NetIncome.Cents, false)
		if err != nil {
			return core.BudgetMonth{}, fmt.Errorf("apply seed income: %w", err)
		}
	}
	return m, nil
}
