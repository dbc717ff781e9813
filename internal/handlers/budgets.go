package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/errs"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/store"
	"fintrack/internal/validator"
)

type budgetRequest struct {
	CategoryID string `json:"category_id"`
	Amount     string `json:"amount"`
	Currency   string `json:"currency"`
}

// UpsertBudget creates or replaces the single budget for a category.
func (h *Handler) UpsertBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req budgetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.CategoryID == "" {
		respondError(w, http.StatusBadRequest, "category_id is required")
		return
	}
	amount, err := parseAmountMinor(req.Amount)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_amount")
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if err := validator.ValidateCurrency(req.Currency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	category, err := h.categories.GetByID(r.Context(), userID, req.CategoryID)
	if err != nil {
		handleError(w, err)
		return
	}
	if category.Type != models.TransactionExpense {
		respondError(w, http.StatusBadRequest, "budgets apply to expense categories only")
		return
	}
	budgetID := uuid.NewString()
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.budgets.Upsert(r.Context(), tx, store.BudgetInput{
			ID:         budgetID,
			UserID:     userID,
			CategoryID: req.CategoryID,
			Amount:     amount,
			Currency:   req.Currency,
		}); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "budget_upsert", "budget", req.CategoryID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to save budget")
		return
	}
	budget, err := h.budgets.GetByCategory(r.Context(), userID, req.CategoryID)
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, budgetResponse(budget))
}

func (h *Handler) ListBudgets(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgets, err := h.budgets.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load budgets")
		return
	}
	response := make([]map[string]any, 0, len(budgets))
	for _, budget := range budgets {
		response = append(response, budgetResponse(budget))
	}
	respondJSON(w, http.StatusOK, response)
}

func (h *Handler) DeleteBudget(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	budgetID := chi.URLParam(r, "id")
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.budgets.Delete(r.Context(), tx, userID, budgetID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "budget_delete", "budget", budgetID, "{}")
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": budgetID})
}

// BudgetProgress reports spending against a category budget over a
// period. Spending counts the category's whole subtree. A subcategory
// without its own budget falls back to the budget on its root
// category. The period defaults to the current calendar month in UTC.
func (h *Handler) BudgetProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	categoryID := chi.URLParam(r, "categoryId")
	budget, err := h.budgets.GetByCategory(r.Context(), userID, categoryID)
	if errs.IsNotFound(err) {
		rootID, rootErr := h.categories.GetRootID(r.Context(), userID, categoryID)
		if rootErr == nil && rootID != categoryID {
			budget, err = h.budgets.GetByCategory(r.Context(), userID, rootID)
		}
	}
	if err != nil {
		handleError(w, err)
		return
	}
	start, err := parseEpochMillis(r.URL.Query().Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseEpochMillis(r.URL.Query().Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end")
		return
	}
	if start == nil || end == nil {
		monthStart, monthEnd := currentMonthRange(time.Now().UTC())
		if start == nil {
			start = &monthStart
		}
		if end == nil {
			end = &monthEnd
		}
	}
	categoryIDs, err := h.categories.GetWithDescendants(r.Context(), userID, categoryID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to walk category tree")
		return
	}
	spent, err := h.transactions.SumExpensesByCategories(r.Context(), userID, categoryIDs, *start, *end)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to compute spending")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"category_id": categoryID,
		"budget":      valueToMoney(budget.Amount),
		"spent":       valueToMoney(spent),
		"remaining":   valueToMoney(budget.Amount - spent),
		"percent":     money.Ratio(spent, budget.Amount),
		"currency":    budget.Currency,
		"start":       *start,
		"end":         *end,
	})
}

func budgetResponse(budget models.Budget) map[string]any {
	return map[string]any{
		"id":          budget.ID,
		"category_id": budget.CategoryID,
		"amount":      valueToMoney(budget.Amount),
		"currency":    budget.Currency,
		"created_at":  budget.CreatedAt,
		"updated_at":  budget.UpdatedAt,
	}
}

func currentMonthRange(now time.Time) (int64, int64) {
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0).Add(-time.Millisecond)
	return start.UnixMilli(), end.UnixMilli()
}
