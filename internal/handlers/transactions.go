package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/services"
	"fintrack/internal/store"
	"fintrack/internal/validator"
)

type transactionRequest struct {
	Type           string  `json:"type"`
	Date           *int64  `json:"date"`
	Description    string  `json:"description"`
	AccountID      string  `json:"account_id"`
	CategoryID     *string `json:"category_id"`
	Amount         string  `json:"amount"`
	IncomeType     string  `json:"income_type"`
	ExpenseType    string  `json:"expense_type"`
	FromAccountID  string  `json:"from_account_id"`
	ToAccountID    string  `json:"to_account_id"`
	AmountSent     string  `json:"amount_sent"`
	AmountReceived string  `json:"amount_received"`
	Rate           string  `json:"rate"`
}

// payloadFromRequest maps the flat wire shape onto the tagged union.
// Fields belonging to a different type are ignored, not errors; the
// union's own validation rejects anything structurally wrong.
func payloadFromRequest(req transactionRequest) (services.TransactionPayload, error) {
	if err := validator.ValidateTransactionType(req.Type); err != nil {
		return nil, err
	}
	switch req.Type {
	case models.TransactionIncome:
		amount, err := parseAmountMinor(req.Amount)
		if err != nil {
			return nil, err
		}
		incomeType := req.IncomeType
		if incomeType == "" {
			incomeType = "active"
		}
		return services.IncomePayload{
			AccountID:  req.AccountID,
			CategoryID: req.CategoryID,
			Amount:     amount,
			IncomeType: incomeType,
		}, nil
	case models.TransactionExpense:
		amount, err := parseAmountMinor(req.Amount)
		if err != nil {
			return nil, err
		}
		expenseType := req.ExpenseType
		if expenseType == "" {
			expenseType = "optional"
		}
		return services.ExpensePayload{
			AccountID:   req.AccountID,
			CategoryID:  req.CategoryID,
			Amount:      amount,
			ExpenseType: expenseType,
		}, nil
	default:
		sentRaw := req.AmountSent
		if sentRaw == "" {
			sentRaw = req.Amount
		}
		sent, err := parseAmountMinor(sentRaw)
		if err != nil {
			return nil, err
		}
		var received int64
		switch {
		case req.AmountReceived != "":
			received, err = parseAmountMinor(req.AmountReceived)
			if err != nil {
				return nil, err
			}
		case req.Rate != "":
			rate, err := parseRate(req.Rate)
			if err != nil {
				return nil, err
			}
			received = money.ConvertMinor(sent, rate)
		default:
			received = sent
		}
		return services.TransferPayload{
			FromAccountID:  req.FromAccountID,
			ToAccountID:    req.ToAccountID,
			AmountSent:     sent,
			AmountReceived: received,
		}, nil
	}
}

func (h *Handler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	payload, err := payloadFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var date int64
	if req.Date != nil {
		date = *req.Date
	}
	created, err := h.ledger.CreateTransaction(r.Context(), services.CreateTransactionRequest{
		UserID:      userID,
		Date:        date,
		Description: req.Description,
		Payload:     payload,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, transactionResponse(created))
}

func (h *Handler) UpdateTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req transactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	payload, err := payloadFromRequest(req)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var date int64
	if req.Date != nil {
		date = *req.Date
	}
	updated, err := h.ledger.UpdateTransaction(r.Context(), services.UpdateTransactionRequest{
		UserID:        userID,
		TransactionID: chi.URLParam(r, "id"),
		Date:          date,
		Description:   req.Description,
		Payload:       payload,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, transactionResponse(updated))
}

func (h *Handler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	transactionID := chi.URLParam(r, "id")
	if err := h.ledger.DeleteTransaction(r.Context(), userID, transactionID); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": transactionID})
}

type deleteAllRequest struct {
	ResetAccountBalances *bool  `json:"reset_account_balances"`
	Baseline             string `json:"baseline"`
}

// DeleteAllTransactions requires the caller to state explicitly what
// happens to account balances; there is no implicit default.
func (h *Handler) DeleteAllTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req deleteAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if req.ResetAccountBalances == nil {
		respondError(w, http.StatusBadRequest, "reset_account_balances is required")
		return
	}
	var baseline int64
	if req.Baseline != "" {
		parsed, err := parseSignedAmountMinor(req.Baseline)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_baseline")
			return
		}
		baseline = parsed
	}
	err := h.ledger.DeleteAllTransactions(r.Context(), userID, services.DeleteAllOptions{
		ResetAccountBalances: *req.ResetAccountBalances,
		Baseline:             baseline,
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) WipeUserData(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.ledger.WipeUserData(r.Context(), userID); err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "wiped"})
}

func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	query := r.URL.Query()
	filter := store.TransactionFilter{
		AccountID: query.Get("account_id"),
		Type:      query.Get("type"),
		Search:    strings.TrimSpace(query.Get("search")),
		Limit:     parseInt(query.Get("limit"), 50),
		Ascending: query.Get("order") == "asc",
	}
	if filter.Type != "" {
		if err := validator.ValidateTransactionType(filter.Type); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	start, err := parseEpochMillis(query.Get("start"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid start")
		return
	}
	end, err := parseEpochMillis(query.Get("end"))
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid end")
		return
	}
	filter.StartDate = start
	filter.EndDate = end
	if categoryID := query.Get("category_id"); categoryID != "" {
		if categoryID == "uncategorized" {
			filter.IncludeUncategorized = true
		} else {
			// Filtering by a category means the whole subtree.
			ids, err := h.categories.GetWithDescendants(r.Context(), userID, categoryID)
			if err != nil {
				respondError(w, http.StatusInternalServerError, "unable to walk category tree")
				return
			}
			filter.CategoryIDs = ids
		}
	}
	if cursorID := query.Get("cursor_id"); cursorID != "" {
		cursorDate, err := parseEpochMillis(query.Get("cursor_date"))
		if err != nil || cursorDate == nil {
			respondError(w, http.StatusBadRequest, "invalid cursor")
			return
		}
		filter.Cursor = &store.Cursor{Date: *cursorDate, ID: cursorID}
	}
	result, err := h.ledger.ListTransactions(r.Context(), userID, filter)
	if err != nil {
		handleError(w, err)
		return
	}
	items := make([]map[string]any, 0, len(result.Items))
	for _, item := range result.Items {
		items = append(items, transactionResponse(item))
	}
	response := map[string]any{
		"items":    items,
		"has_more": result.HasMore,
	}
	if result.NextCursor != nil {
		response["next_cursor"] = map[string]any{
			"date": result.NextCursor.Date,
			"id":   result.NextCursor.ID,
		}
	}
	respondJSON(w, http.StatusOK, response)
}

// transactionResponse renders minor-unit columns as major-unit strings
// while keeping the row's tagged shape: only the fields matching the
// type appear.
func transactionResponse(row models.Transaction) map[string]any {
	response := map[string]any{
		"id":          row.ID,
		"type":        row.Type,
		"date":        row.Date,
		"description": row.Description,
		"created_at":  row.CreatedAt,
		"updated_at":  row.UpdatedAt,
	}
	if row.Amount != nil {
		response["amount"] = valueToMoney(*row.Amount)
	}
	if row.AccountID != nil {
		response["account_id"] = *row.AccountID
	}
	if row.CategoryID != nil {
		response["category_id"] = *row.CategoryID
	}
	if row.IncomeType != nil {
		response["income_type"] = *row.IncomeType
	}
	if row.ExpenseType != nil {
		response["expense_type"] = *row.ExpenseType
	}
	if row.FromAccountID != nil {
		response["from_account_id"] = *row.FromAccountID
	}
	if row.ToAccountID != nil {
		response["to_account_id"] = *row.ToAccountID
	}
	if row.AmountSent != nil {
		response["amount_sent"] = valueToMoney(*row.AmountSent)
	}
	if row.AmountReceived != nil {
		response["amount_received"] = valueToMoney(*row.AmountReceived)
	}
	if row.ImportJobID != nil {
		response["import_job_id"] = *row.ImportJobID
	}
	return response
}
