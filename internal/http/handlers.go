package http

import (
	"net/http"
	"strconv"
	"time"

	"budget/internal/core"
	"budget/internal/storage"
)

// Months

type ensureMonthRequest struct {
	Month              string `json:"month"`
	CarryForwardIncome bool   `json:"carry_forward_income"`
}

func (s *Server) handleEnsureMonth(w http.ResponseWriter, r *http.Request) {
	var req ensureMonthRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	target, err := core.ParseMonth(req.Month)
	if err != nil {
		badRequest(w, "invalid month, expected YYYY-MM")
		return
	}

	m, err := s.svc.EnsureMonth(r.Context(), s.requestOwner(r), target, req.CarryForwardIncome)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toMonthView(m))
}

func (s *Server) handleListMonths(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 24)
	months, err := s.svc.ListMonths(r.Context(), s.requestOwner(r), limit)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]monthView, 0, len(months))
	for _, m := range months {
		views = append(views, toMonthView(m))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleGetMonth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	ctx := r.Context()

	m, err := s.svc.GetMonth(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	totals, err := s.svc.MonthTotals(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	cats, err := s.svc.ListCategories(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	expenses, err := s.svc.ListExpenses(ctx, id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	detail := monthDetail{
		Month:      toMonthView(m),
		Totals:     toTotalsView(totals),
		Categories: make([]categoryView, 0, len(cats)),
		Expenses:   make([]expenseView, 0, len(expenses)),
	}
	for _, c := range cats {
		detail.Categories = append(detail.Categories, toCategoryView(c))
	}
	for _, e := range expenses {
		detail.Expenses = append(detail.Expenses, toExpenseView(e))
	}
	writeJSON(w, http.StatusOK, detail)
}

func (s *Server) handleCloseMonth(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	m, err := s.svc.CloseMonth(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(id)
	writeJSON(w, http.StatusOK, toMonthView(m))
}

type incomeRequest struct {
	NetIncome string `json:"net_income"`
}

func (s *Server) handleUpdateIncome(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req incomeRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, err := core.ParseIncomeCents(req.NetIncome)
	if err != nil {
		writeError(w, r, err)
		return
	}

	m, err := s.svc.UpdateIncome(r.Context(), id, cents, adminOverride(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(id)
	writeJSON(w, http.StatusOK, toMonthView(m))
}

// Categories

type categoryRequest struct {
	Name      string `json:"name"`
	SortOrder int64  `json:"sort_order"`
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	monthID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := s.svc.AddCategory(r.Context(), monthID, sanitizeInput(req.Name), req.SortOrder, adminOverride(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(monthID)
	writeJSON(w, http.StatusCreated, toCategoryView(c))
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req categoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	c, err := s.svc.UpdateCategory(r.Context(), id, sanitizeInput(req.Name), req.SortOrder, adminOverride(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(c.MonthID)
	writeJSON(w, http.StatusOK, toCategoryView(c))
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var reassignTo int64
	if v := r.URL.Query().Get("reassign_to"); v != "" {
		reassignTo, err = strconv.ParseInt(v, 10, 64)
		if err != nil || reassignTo <= 0 {
			badRequest(w, "invalid reassign_to")
			return
		}
	}

	if err := s.svc.DeleteCategory(r.Context(), id, reassignTo, adminOverride(r)); err != nil {
		writeError(w, r, err)
		return
	}
	// Deletes do not report the owning month, so drop the whole cache.
	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

// Expenses

type expenseRequest struct {
	CategoryID int64  `json:"category_id"`
	Name       string `json:"name"`
	Amount     string `json:"amount"`
	Kind       string `json:"kind"`
	Date       string `json:"date"`
	Enabled    *bool  `json:"enabled"`
	Notes      string `json:"notes"`
}

func (r expenseRequest) parse() (cents int64, kind core.ExpenseKind, date time.Time, err error) {
	cents, err = core.ParseDecimalToCents(r.Amount)
	if err != nil {
		return 0, "", time.Time{}, err
	}
	kind = core.ExpenseKind(r.Kind)
	if !kind.Valid() {
		return 0, "", time.Time{}, core.ErrInvalidKind
	}
	if r.Date != "" {
		date, err = time.Parse("2006-01-02", r.Date)
		if err != nil {
			return 0, "", time.Time{}, core.ErrInvalidMonth
		}
	}
	return cents, kind, date, nil
}

func (r expenseRequest) enabled() bool {
	if r.Enabled == nil {
		return true
	}
	return *r.Enabled
}

func (s *Server) handleAddExpense(w http.ResponseWriter, r *http.Request) {
	monthID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, kind, date, err := req.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.svc.AddExpense(r.Context(), storage.CreateExpenseParams{
		MonthID:       monthID,
		CategoryID:    req.CategoryID,
		Name:          sanitizeInput(req.Name),
		AmountCents:   cents,
		Kind:          kind,
		Date:          date,
		Enabled:       req.enabled(),
		Notes:         sanitizeInput(req.Notes),
		AdminOverride: adminOverride(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(monthID)
	writeJSON(w, http.StatusCreated, toExpenseView(e))
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req expenseRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, kind, date, err := req.parse()
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.svc.UpdateExpense(r.Context(), storage.UpdateExpenseParams{
		ID:            id,
		CategoryID:    req.CategoryID,
		Name:          sanitizeInput(req.Name),
		AmountCents:   cents,
		Kind:          kind,
		Date:          date,
		Enabled:       req.enabled(),
		Notes:         sanitizeInput(req.Notes),
		AdminOverride: adminOverride(r),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(e.MonthID)
	writeJSON(w, http.StatusOK, toExpenseView(e))
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.svc.DeleteExpense(r.Context(), id, adminOverride(r)); err != nil {
		writeError(w, r, err)
		return
	}
	s.summaryCache.Purge()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleExpense(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	e, err := s.svc.ToggleExpenseKind(r.Context(), id, adminOverride(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.invalidateMonth(e.MonthID)
	writeJSON(w, http.StatusOK, toExpenseView(e))
}

// Forecast overrides

type overrideRequest struct {
	Amount string `json:"amount"`
}

func (s *Server) handleSetOverride(w http.ResponseWriter, r *http.Request) {
	monthID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req overrideRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.Amount)
	if err != nil {
		writeError(w, r, err)
		return
	}

	o, err := s.svc.SetForecastOverride(r.Context(), core.ForecastOverride{
		MonthID:    monthID,
		CategoryID: categoryID,
		Amount:     core.Money{Cents: cents},
	}, adminOverride(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOverrideView(o))
}

func (s *Server) handleClearOverride(w http.ResponseWriter, r *http.Request) {
	monthID, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	categoryID, err := pathID(r, "categoryID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.svc.ClearForecastOverride(r.Context(), monthID, categoryID, adminOverride(r)); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Templates

type templateRequest struct {
	Name            string `json:"name"`
	DefaultAmount   string `json:"default_amount"`
	DefaultCategory string `json:"default_category"`
	Active          *bool  `json:"active"`
	Notes           string `json:"notes"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	templates, err := s.svc.ListTemplates(r.Context(), s.requestOwner(r), activeOnly)
	if err != nil {
		writeError(w, r, err)
		return
	}
	views := make([]templateView, 0, len(templates))
	for _, t := range templates {
		views = append(views, toTemplateView(t))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleUpsertTemplate(w http.ResponseWriter, r *http.Request) {
	var req templateRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, err := core.ParseDecimalToCents(req.DefaultAmount)
	if err != nil {
		writeError(w, r, err)
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	t, err := s.svc.UpsertTemplate(r.Context(), core.ExpenseTemplate{
		Owner:           s.requestOwner(r),
		Name:            sanitizeInput(req.Name),
		DefaultAmount:   core.Money{Cents: cents},
		DefaultCategory: sanitizeInput(req.DefaultCategory),
		Active:          active,
		Notes:           sanitizeInput(req.Notes),
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTemplateView(t))
}

type templateActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetTemplateActive(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req templateActiveRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	if err := s.svc.SetTemplateActive(r.Context(), id, req.Active); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) invalidateMonth(monthID int64) {
	s.summaryCache.Delete(summaryCacheKey(monthID))
}

func summaryCacheKey(monthID int64) string {
	return "summary:" + strconv.FormatInt(monthID, 10)
}
