package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"fintrack/internal/models"
	"fintrack/internal/store"
)

func TestCreateAccount(t *testing.T) {
	var created store.AccountInput
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			createFn: func(_ context.Context, _ store.Execer, input store.AccountInput) error {
				created = input
				return nil
			},
		},
	})

	body := `{"name":"Wallet","balance":"150.25","currency":"EUR","type":"cash"}`
	rr := httptest.NewRecorder()
	handler.CreateAccount(rr, authedRequest(t, http.MethodPost, "/accounts", "user-1", body))

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if created.UserID != "user-1" || created.Name != "Wallet" {
		t.Fatalf("unexpected input: %+v", created)
	}
	if created.Balance != 15025 {
		t.Fatalf("expected balance of 15025 minor units, got %d", created.Balance)
	}
	if created.Currency != "EUR" || created.Type != "cash" {
		t.Fatalf("unexpected input: %+v", created)
	}
}

func TestCreateAccountRejectsBadInput(t *testing.T) {
	handler := newTestHandler(handlerDeps{})
	cases := []struct {
		name string
		body string
	}{
		{"missing name", `{"balance":"1.00"}`},
		{"bad currency", `{"name":"Wallet","currency":"EURO"}`},
		{"bad type", `{"name":"Wallet","type":"crypto"}`},
		{"bad balance", `{"name":"Wallet","balance":"1.005"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr := httptest.NewRecorder()
			handler.CreateAccount(rr, authedRequest(t, http.MethodPost, "/accounts", "user-1", tc.body))
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", rr.Code)
			}
		})
	}
}

func TestListAccountsFormatsBalances(t *testing.T) {
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			listByUserFn: func(context.Context, string) ([]models.Account, error) {
				return []models.Account{
					{ID: "acc-1", Name: "Wallet", Balance: 15025, Currency: "EUR"},
					{ID: "acc-2", Name: "Loan", Balance: -50000, Currency: "EUR"},
				}, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	handler.ListAccounts(rr, authedRequest(t, http.MethodGet, "/accounts", "user-1", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var response []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("expected 2 accounts, got %d", len(response))
	}
	if response[0]["balance"] != "150.25" {
		t.Fatalf("expected formatted balance 150.25, got %v", response[0]["balance"])
	}
	if response[1]["balance"] != "-500.00" {
		t.Fatalf("expected formatted balance -500.00, got %v", response[1]["balance"])
	}
}

func TestDeleteAccountBlockedByTransactions(t *testing.T) {
	deleted := false
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			deleteFn: func(context.Context, store.Execer, string, string) error {
				deleted = true
				return nil
			},
		},
		transactions: stubTransactionStore{
			countByAccountFn: func(context.Context, string, string) (int64, error) {
				return 3, nil
			},
		},
	})

	req := withURLParam(authedRequest(t, http.MethodDelete, "/accounts/acc-1", "user-1", ""), "id", "acc-1")
	rr := httptest.NewRecorder()
	handler.DeleteAccount(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if deleted {
		t.Fatal("account must not be deleted while transactions reference it")
	}
}

func TestDeleteAccountWithoutReferences(t *testing.T) {
	deleted := false
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			deleteFn: func(_ context.Context, _ store.Execer, userID, accountID string) error {
				if userID != "user-1" || accountID != "acc-1" {
					t.Fatalf("unexpected delete args: %s %s", userID, accountID)
				}
				deleted = true
				return nil
			},
		},
	})

	req := withURLParam(authedRequest(t, http.MethodDelete, "/accounts/acc-1", "user-1", ""), "id", "acc-1")
	rr := httptest.NewRecorder()
	handler.DeleteAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if !deleted {
		t.Fatal("expected the account to be deleted")
	}
}

func TestUpdateAccountBalanceCorrection(t *testing.T) {
	var applied store.AccountUpdate
	auditActions := make([]string, 0, 1)
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			updateFn: func(_ context.Context, _ store.Execer, _, _ string, update store.AccountUpdate) error {
				applied = update
				return nil
			},
		},
		audit: stubAuditStore{
			logFn: func(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
				auditActions = append(auditActions, action)
				return nil
			},
		},
	})

	body := `{"balance":"-12.40"}`
	req := withURLParam(authedRequest(t, http.MethodPut, "/accounts/acc-1", "user-1", body), "id", "acc-1")
	rr := httptest.NewRecorder()
	handler.UpdateAccount(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if applied.Balance == nil || *applied.Balance != -1240 {
		t.Fatalf("expected -1240 minor units, got %+v", applied.Balance)
	}
	if len(auditActions) != 1 || auditActions[0] != "account_balance_correction" {
		t.Fatalf("unexpected audit actions: %v", auditActions)
	}
}

func TestSelfCheck(t *testing.T) {
	handler := newTestHandler(handlerDeps{
		reconcile: stubReconcileStore{
			byUserFn: func(context.Context, string) ([]store.ReconcileRow, error) {
				return []store.ReconcileRow{
					{AccountID: "acc-1", StoredBalance: 10000, CalculatedBalance: 10000, Difference: 0},
					{AccountID: "acc-2", StoredBalance: 5000, CalculatedBalance: 4500, Difference: 500},
				}, nil
			},
		},
	})

	rr := httptest.NewRecorder()
	handler.SelfCheck(rr, authedRequest(t, http.MethodGet, "/accounts/self-check", "user-1", ""))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var response []map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if len(response) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(response))
	}
	if response[1]["difference"] != "5.00" {
		t.Fatalf("expected difference 5.00, got %v", response[1]["difference"])
	}
}

func TestAccountSelfCheck(t *testing.T) {
	handler := newTestHandler(handlerDeps{
		accounts: stubAccountStore{
			getByIDFn: func(_ context.Context, _, accountID string) (models.Account, error) {
				return models.Account{ID: accountID, Balance: 10000, Currency: "USD"}, nil
			},
		},
		reconcile: stubReconcileStore{
			sumEffectsByAccountFn: func(_ context.Context, accountID string) (int64, error) {
				if accountID != "acc-1" {
					t.Fatalf("unexpected account id %q", accountID)
				}
				return 9500, nil
			},
		},
	})

	req := withURLParam(authedRequest(t, http.MethodGet, "/accounts/acc-1/self-check", "user-1", ""), "id", "acc-1")
	rr := httptest.NewRecorder()
	handler.AccountSelfCheck(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var response map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &response); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if response["calculated_balance"] != "95.00" || response["difference"] != "5.00" {
		t.Fatalf("unexpected reconciliation: %v", response)
	}
}
