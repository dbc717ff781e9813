package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/middleware"
	"fintrack/internal/store"
	"fintrack/internal/validator"
)

type accountRequest struct {
	Name     string `json:"name"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
	Type     string `json:"type"`
	Icon     string `json:"icon"`
	Color    string `json:"color"`
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req accountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	if err := validator.ValidateName(req.Name); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}
	if err := validator.ValidateCurrency(req.Currency); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Type == "" {
		req.Type = "cash"
	}
	if err := validator.ValidateAccountType(req.Type); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	var balance int64
	if req.Balance != "" {
		parsed, err := parseSignedAmountMinor(req.Balance)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_balance")
			return
		}
		balance = parsed
	}
	accountID := uuid.NewString()
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Create(r.Context(), tx, store.AccountInput{
			ID:       accountID,
			UserID:   userID,
			Name:     req.Name,
			Balance:  balance,
			Currency: req.Currency,
			Type:     req.Type,
			Icon:     req.Icon,
			Color:    req.Color,
		}); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "account_create", "account", accountID, "{}")
	})
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to create account")
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"id": accountID})
}

func (h *Handler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accounts, err := h.accounts.ListByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to load accounts")
		return
	}
	normalized := make([]map[string]any, 0, len(accounts))
	for _, account := range accounts {
		normalized = append(normalized, map[string]any{
			"id":         account.ID,
			"name":       account.Name,
			"balance":    valueToMoney(account.Balance),
			"currency":   account.Currency,
			"type":       account.Type,
			"icon":       account.Icon,
			"color":      account.Color,
			"created_at": account.CreatedAt,
		})
	}
	respondJSON(w, http.StatusOK, normalized)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	account, err := h.accounts.GetByID(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"id":         account.ID,
		"name":       account.Name,
		"balance":    valueToMoney(account.Balance),
		"currency":   account.Currency,
		"type":       account.Type,
		"icon":       account.Icon,
		"color":      account.Color,
		"created_at": account.CreatedAt,
	})
}

type accountUpdateRequest struct {
	Name     *string `json:"name"`
	Currency *string `json:"currency"`
	Type     *string `json:"type"`
	Icon     *string `json:"icon"`
	Color    *string `json:"color"`
	// Balance here is an explicit user correction; it bypasses no
	// ledger bookkeeping because it IS the separate correction path.
	Balance *string `json:"balance"`
}

func (h *Handler) UpdateAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	var req accountUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid payload")
		return
	}
	update := store.AccountUpdate{
		Name:     req.Name,
		Currency: req.Currency,
		Type:     req.Type,
		Icon:     req.Icon,
		Color:    req.Color,
	}
	if req.Name != nil {
		if err := validator.ValidateName(*req.Name); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Currency != nil {
		if err := validator.ValidateCurrency(*req.Currency); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Type != nil {
		if err := validator.ValidateAccountType(*req.Type); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.Balance != nil {
		parsed, err := parseSignedAmountMinor(*req.Balance)
		if err != nil {
			respondError(w, http.StatusBadRequest, "invalid_balance")
			return
		}
		update.Balance = &parsed
	}
	accountID := chi.URLParam(r, "id")
	err := h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Update(r.Context(), tx, userID, accountID, update); err != nil {
			return err
		}
		action := "account_update"
		if update.Balance != nil {
			action = "account_balance_correction"
		}
		return h.audit.Log(r.Context(), tx, userID, action, "account", accountID, "{}")
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": accountID})
}

// DeleteAccount blocks while transactions still reference the account;
// the caller must delete or re-point them first.
func (h *Handler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountID := chi.URLParam(r, "id")
	count, err := h.transactions.CountByAccount(r.Context(), userID, accountID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to check account references")
		return
	}
	if count > 0 {
		respondError(w, http.StatusConflict, "account has transactions")
		return
	}
	err = h.txRunner.WithTx(r.Context(), func(tx *sqlx.Tx) error {
		if err := h.accounts.Delete(r.Context(), tx, userID, accountID); err != nil {
			return err
		}
		return h.audit.Log(r.Context(), tx, userID, "account_delete", "account", accountID, "{}")
	})
	if err != nil {
		handleError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"id": accountID})
}

func (h *Handler) SelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	rows, err := h.reconcile.ByUser(r.Context(), userID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to self_check")
		return
	}
	response := make([]map[string]any, 0, len(rows))
	for _, item := range rows {
		response = append(response, map[string]any{
			"account_id":         item.AccountID,
			"stored_balance":     valueToMoney(item.StoredBalance),
			"calculated_balance": valueToMoney(item.CalculatedBalance),
			"difference":         valueToMoney(item.Difference),
		})
	}
	respondJSON(w, http.StatusOK, response)
}

// AccountSelfCheck reconciles a single account.
func (h *Handler) AccountSelfCheck(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	accountID := chi.URLParam(r, "id")
	account, err := h.accounts.GetByID(r.Context(), userID, accountID)
	if err != nil {
		handleError(w, err)
		return
	}
	calculated, err := h.reconcile.SumEffectsByAccount(r.Context(), account.ID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "unable to self_check")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"account_id":         account.ID,
		"stored_balance":     valueToMoney(account.Balance),
		"calculated_balance": valueToMoney(calculated),
		"difference":         valueToMoney(account.Balance - calculated),
	})
}
