package http

import (
	"net/http"
	"time"

	"budget/internal/core"
)

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	key := summaryCacheKey(id)
	if cached, ok := s.summaryCache.Get(key); ok {
		w.Header().Set("X-Cache", "HIT")
		writeJSON(w, http.StatusOK, cached)
		return
	}

	m, err := s.svc.GetMonth(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.svc.MonthTotals(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	summary := monthSummary{
		Month:  toMonthView(m),
		Totals: toTotalsView(totals),
	}
	s.summaryCache.Set(key, summary)
	w.Header().Set("X-Cache", "MISS")
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleBreakdown(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	breakdown, err := s.svc.CategoryBreakdown(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]breakdownView, 0, len(breakdown))
	for _, b := range breakdown {
		views = append(views, breakdownView{
			Name:      b.Name,
			Recurring: b.Recurring,
			Variable:  b.Variable,
			Total:     b.Total,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTrend(w http.ResponseWriter, r *http.Request) {
	months := queryInt(r, "months", s.trendMonths)
	points, err := s.svc.Trend(r.Context(), s.requestOwner(r), months)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]trendPointView, 0, len(points))
	for _, p := range points {
		views = append(views, trendPointView{
			Month:     core.FormatMonth(p.Month),
			Income:    p.Income,
			Recurring: p.Recurring,
			Variable:  p.Variable,
			Total:     p.Total,
			Balance:   p.Balance,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	start := core.NormalizeMonth(time.Now())
	if v := r.URL.Query().Get("start"); v != "" {
		parsed, err := core.ParseMonth(v)
		if err != nil {
			badRequest(w, "invalid start, expected YYYY-MM")
			return
		}
		start = parsed
	}
	horizon := queryInt(r, "horizon", s.forecastHorizon)

	results, err := s.svc.Forecast(r.Context(), s.requestOwner(r), start, horizon)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]forecastView, 0, len(results))
	for _, f := range results {
		views = append(views, forecastView{
			Month:            core.FormatMonth(f.Month),
			RecurringTotal:   f.RecurringTotal,
			VariableEstimate: f.VariableEstimate,
			TotalExpenses:    f.TotalExpenses,
			Balance:          f.Balance,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleTopVariable(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 10)
	top, err := s.svc.TopVariableExpenses(r.Context(), s.requestOwner(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]topExpenseView, 0, len(top))
	for _, t := range top {
		views = append(views, topExpenseView{Name: t.Name, Total: t.Total})
	}
	writeJSON(w, http.StatusOK, views)
}
