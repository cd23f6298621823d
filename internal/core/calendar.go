package core

import (
	"time"
)

// NormalizeMonth truncates a time to the first day of its calendar
// month at midnight UTC. Every BudgetMonth.Month value passes through
// here before hitting storage.
func NormalizeMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// AddMonths steps a normalized month forward (or back) by n calendar
// months, always landing on the first day regardless of month length.
func AddMonths(month time.Time, n int) time.Time {
	return time.Date(month.Year(), month.Month()+time.Month(n), 1, 0, 0, 0, 0, time.UTC)
}

// ParseMonth parses "2006-01" or "2006-01-02" and normalizes the result
// to the first day of the month.
func ParseMonth(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NormalizeMonth(t), nil
		}
	}
	return time.Time{}, ErrInvalidMonth
}

// FormatMonth renders a month key as "2006-01".
func FormatMonth(t time.Time) string {
	return t.Format("2006-01")
}
