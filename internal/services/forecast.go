package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"budget/internal/core"
	"budget/internal/storage"
)

// TrailingAverage computes the mean of the per-month summed variable
// spend for a named category over up to `window` months strictly before
// `before` (by calendar order). A category with no history yields
// exactly zero, not an error. Categories match by name across months
// because category records are re-created per month.
func (s *BudgetService) TrailingAverage(ctx context.Context, owner, categoryName string, before time.Time, window int) (core.Money, error) {
	if window <= 0 {
		window = s.forecastWindow
	}
	totals, err := s.repo.VariableHistory(ctx, owner, categoryName, before, window)
	if err != nil {
		return core.Money{}, fmt.Errorf("trailing average for %q: %w", categoryName, err)
	}
	return core.Money{Cents: core.MeanCents(totals)}, nil
}

// Forecast projects `horizon` consecutive months starting at `start`.
//
// The recurring total is taken from the latest existing month at or
// before `start` (enabled recurring expenses grouped by category name).
// The variable estimate sums the per-category trailing averages, except
// where the baseline month carries a manual forecast override for a
// category, which wins.
//
// Balance is the negative of total expenses: no income is forecast
// here, callers layer expected income in themselves.
func (s *BudgetService) Forecast(ctx context.Context, owner string, start time.Time, horizon int) ([]core.ForecastResult, error) {
	start = core.NormalizeMonth(start)
	if horizon < 1 {
		horizon = 1
	}

	var (
		recurring []storage.CategoryTotal
		overrides map[string]int64
	)
	baseline, err := s.repo.LatestMonthAtOrBefore(ctx, owner, start)
	switch {
	case err == nil:
		recurring, err = s.repo.RecurringByCategory(ctx, baseline.ID)
		if err != nil {
			return nil, err
		}
		overrides, err = s.repo.OverridesByCategoryName(ctx, baseline.ID)
		if err != nil {
			return nil, err
		}
	case errors.Is(err, core.ErrMonthNotFound):
		// No history at all: forecast flat zeroes.
	default:
		return nil, err
	}

	var recurringTotal int64
	for _, ct := range recurring {
		recurringTotal += ct.Cents
	}

	results := make([]core.ForecastResult, 0, horizon)
	for i := 0; i < horizon; i++ {
		month := core.AddMonths(start, i)

		variable, err := s.variableEstimate(ctx, owner, month, recurring, overrides)
		if err != nil {
			return nil, err
		}

		total := recurringTotal + variable
		results = append(results, core.ForecastResult{
			Month:            month,
			RecurringTotal:   core.Money{Cents: recurringTotal},
			VariableEstimate: core.Money{Cents: variable},
			TotalExpenses:    core.Money{Cents: total},
			Balance:          core.Money{Cents: -total},
		})
	}
	return results, nil
}

// variableEstimate sums per-category trailing averages for one forecast
// month, fanning the history queries out with a bounded errgroup.
func (s *BudgetService) variableEstimate(ctx context.Context, owner string, month time.Time, recurring []storage.CategoryTotal, overrides map[string]int64) (int64, error) {
	estimates := make([]int64, len(recurring))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for i, ct := range recurring {
		if cents, ok := overrides[ct.Name]; ok {
			estimates[i] = cents
			continue
		}
		i, name := i, ct.Name
		g.Go(func() error {
			totals, err := s.repo.VariableHistory(gctx, owner, name, month, s.forecastWindow)
			if err != nil {
				return fmt.Errorf("variable history for %q: %w", name, err)
			}
			estimates[i] = core.MeanCents(totals)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	var sum int64
	for _, e := range estimates {
		sum += e
	}
	return sum, nil
}
