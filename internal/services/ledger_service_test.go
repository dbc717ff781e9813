package services

import (
	"context"
	"errors"
	"testing"

	"fintrack/internal/errs"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

func newTestLedger(accounts *memAccountStore, categories *stubCategoryStore, transactions *memTransactionStore) (*LedgerService, *stubAuditStore, *recordingHub) {
	if categories == nil {
		categories = &stubCategoryStore{}
	}
	audit := &stubAuditStore{}
	hub := &recordingHub{}
	service := NewLedgerService(fakeTxRunner{}, accounts, categories, transactions, &stubBudgetStore{}, &stubImportJobStore{}, audit, hub)
	return service, audit, hub
}

func account(id, userID string, balance int64, currency string) models.Account {
	return models.Account{ID: id, UserID: userID, Balance: balance, Currency: currency}
}

func TestCreateIncomeCreditsAccount(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 10000, "USD"))
	transactions := newMemTransactionStore()
	service, audit, hub := newTestLedger(accounts, nil, transactions)

	created, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
		UserID:  "user-1",
		Payload: IncomePayload{AccountID: "acc-1", Amount: 2500, IncomeType: "active"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-1") != 12500 {
		t.Fatalf("expected 12500, got %d", accounts.balance("acc-1"))
	}
	if created.Date == 0 {
		t.Fatal("expected the date to default to now")
	}
	if len(transactions.inserted) != 1 {
		t.Fatalf("expected one inserted row, got %d", len(transactions.inserted))
	}
	if len(audit.actions) != 1 || audit.actions[0] != "transaction_create" {
		t.Fatalf("unexpected audit actions: %v", audit.actions)
	}
	if len(hub.updates) != 1 || hub.updates[0].Balance != "125.00" {
		t.Fatalf("unexpected broadcast: %+v", hub.updates)
	}
}

func TestCreateExpenseDebitsAccount(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 10000, "USD"))
	service, _, _ := newTestLedger(accounts, nil, newMemTransactionStore())

	_, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
		UserID:  "user-1",
		Payload: ExpensePayload{AccountID: "acc-1", Amount: 2599, ExpenseType: "mandatory"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-1") != 7401 {
		t.Fatalf("expected 7401, got %d", accounts.balance("acc-1"))
	}
}

func TestCreateTransferMovesIndependentAmounts(t *testing.T) {
	accounts := newMemAccountStore(
		account("acc-usd", "user-1", 100000, "USD"),
		account("acc-eur", "user-1", 0, "EUR"),
	)
	service, _, hub := newTestLedger(accounts, nil, newMemTransactionStore())

	_, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
		UserID:  "user-1",
		Payload: TransferPayload{FromAccountID: "acc-usd", ToAccountID: "acc-eur", AmountSent: 10000, AmountReceived: 9200},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-usd") != 90000 {
		t.Fatalf("expected 90000 on the sender, got %d", accounts.balance("acc-usd"))
	}
	if accounts.balance("acc-eur") != 9200 {
		t.Fatalf("expected 9200 on the receiver, got %d", accounts.balance("acc-eur"))
	}
	if len(hub.updates) != 2 {
		t.Fatalf("expected two broadcasts, got %d", len(hub.updates))
	}
}

func TestCreateRejectsCategoryTypeMismatch(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 10000, "USD"))
	categories := &stubCategoryStore{
		getByIDFn: func(_ context.Context, userID, categoryID string) (models.Category, error) {
			return models.Category{ID: categoryID, UserID: userID, Type: "income"}, nil
		},
	}
	transactions := newMemTransactionStore()
	service, _, _ := newTestLedger(accounts, categories, transactions)

	categoryID := "cat-salary"
	_, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
		UserID:  "user-1",
		Payload: ExpensePayload{AccountID: "acc-1", CategoryID: &categoryID, Amount: 100, ExpenseType: "optional"},
	})
	var validation *errs.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected a validation error, got %v", err)
	}
	if accounts.balance("acc-1") != 10000 {
		t.Fatalf("balance must be untouched, got %d", accounts.balance("acc-1"))
	}
}

func TestCreateRejectsUnknownAccount(t *testing.T) {
	accounts := newMemAccountStore()
	service, _, _ := newTestLedger(accounts, nil, newMemTransactionStore())

	_, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
		UserID:  "user-1",
		Payload: IncomePayload{AccountID: "missing", Amount: 100, IncomeType: "active"},
	})
	if !errs.IsNotFound(err) {
		t.Fatalf("expected a not-found error, got %v", err)
	}
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	service, _, _ := newTestLedger(newMemAccountStore(), nil, newMemTransactionStore())
	cases := []struct {
		name    string
		payload TransactionPayload
	}{
		{"nil payload", nil},
		{"zero amount", IncomePayload{AccountID: "acc-1", Amount: 0, IncomeType: "active"}},
		{"bad income type", IncomePayload{AccountID: "acc-1", Amount: 100, IncomeType: "windfall"}},
		{"self transfer", TransferPayload{FromAccountID: "acc-1", ToAccountID: "acc-1", AmountSent: 100, AmountReceived: 100}},
		{"negative received", TransferPayload{FromAccountID: "acc-1", ToAccountID: "acc-2", AmountSent: 100, AmountReceived: -5}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := service.CreateTransaction(context.Background(), CreateTransactionRequest{
				UserID:  "user-1",
				Payload: tc.payload,
			})
			var validation *errs.ValidationError
			if !errors.As(err, &validation) {
				t.Fatalf("expected a validation error, got %v", err)
			}
		})
	}
}

func TestDeleteTransactionRestoresBalances(t *testing.T) {
	accounts := newMemAccountStore(
		account("acc-usd", "user-1", 90000, "USD"),
		account("acc-eur", "user-1", 9200, "EUR"),
	)
	from, to := "acc-usd", "acc-eur"
	sent, received := int64(10000), int64(9200)
	transactions := newMemTransactionStore(models.Transaction{
		ID: "tx-1", UserID: "user-1", Type: models.TransactionTransfer, Date: 1000,
		FromAccountID: &from, ToAccountID: &to, AmountSent: &sent, AmountReceived: &received,
	})
	service, audit, _ := newTestLedger(accounts, nil, transactions)

	if err := service.DeleteTransaction(context.Background(), "user-1", "tx-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-usd") != 100000 {
		t.Fatalf("expected the sent amount back, got %d", accounts.balance("acc-usd"))
	}
	if accounts.balance("acc-eur") != 0 {
		t.Fatalf("expected the received amount removed, got %d", accounts.balance("acc-eur"))
	}
	if _, ok := transactions.rows["tx-1"]; ok {
		t.Fatal("expected the row deleted")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "transaction_delete" {
		t.Fatalf("unexpected audit actions: %v", audit.actions)
	}
}

func TestUpdateTransactionRetargetsAccounts(t *testing.T) {
	accounts := newMemAccountStore(
		account("acc-x", "user-1", 9500, "USD"),
		account("acc-y", "user-1", 20000, "USD"),
	)
	amount := int64(500)
	accountX := "acc-x"
	expenseType := "optional"
	transactions := newMemTransactionStore(models.Transaction{
		ID: "tx-1", UserID: "user-1", Type: models.TransactionExpense, Date: 1000,
		Amount: &amount, AccountID: &accountX, ExpenseType: &expenseType,
	})
	service, _, _ := newTestLedger(accounts, nil, transactions)

	_, err := service.UpdateTransaction(context.Background(), UpdateTransactionRequest{
		UserID:        "user-1",
		TransactionID: "tx-1",
		Payload:       ExpensePayload{AccountID: "acc-y", Amount: 500, ExpenseType: "optional"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-x") != 10000 {
		t.Fatalf("old account must get the effect back, got %d", accounts.balance("acc-x"))
	}
	if accounts.balance("acc-y") != 19500 {
		t.Fatalf("new account must carry the effect, got %d", accounts.balance("acc-y"))
	}
	row := transactions.rows["tx-1"]
	if row.AccountID == nil || *row.AccountID != "acc-y" {
		t.Fatalf("row must point at the new account: %+v", row)
	}
}

func TestUpdateTransactionKeepsDateWhenUnset(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 10000, "USD"))
	amount := int64(100)
	accountID := "acc-1"
	incomeType := "active"
	transactions := newMemTransactionStore(models.Transaction{
		ID: "tx-1", UserID: "user-1", Type: models.TransactionIncome, Date: 4242,
		Amount: &amount, AccountID: &accountID, IncomeType: &incomeType,
	})
	service, _, _ := newTestLedger(accounts, nil, transactions)

	updated, err := service.UpdateTransaction(context.Background(), UpdateTransactionRequest{
		UserID:        "user-1",
		TransactionID: "tx-1",
		Payload:       IncomePayload{AccountID: "acc-1", Amount: 200, IncomeType: "active"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Date != 4242 {
		t.Fatalf("expected the stored date kept, got %d", updated.Date)
	}
	// -100 old effect, +200 new effect.
	if accounts.balance("acc-1") != 10100 {
		t.Fatalf("expected 10100, got %d", accounts.balance("acc-1"))
	}
}

func TestUpdateTransactionChangesType(t *testing.T) {
	accounts := newMemAccountStore(
		account("acc-1", "user-1", 10000, "USD"),
		account("acc-2", "user-1", 5000, "USD"),
	)
	amount := int64(1000)
	accountID := "acc-1"
	incomeType := "active"
	transactions := newMemTransactionStore(models.Transaction{
		ID: "tx-1", UserID: "user-1", Type: models.TransactionIncome, Date: 1000,
		Amount: &amount, AccountID: &accountID, IncomeType: &incomeType,
	})
	service, _, _ := newTestLedger(accounts, nil, transactions)

	_, err := service.UpdateTransaction(context.Background(), UpdateTransactionRequest{
		UserID:        "user-1",
		TransactionID: "tx-1",
		Payload:       TransferPayload{FromAccountID: "acc-1", ToAccountID: "acc-2", AmountSent: 1000, AmountReceived: 1000},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Undo +1000 income, then -1000 sent: acc-1 nets to 8000.
	if accounts.balance("acc-1") != 8000 {
		t.Fatalf("expected 8000, got %d", accounts.balance("acc-1"))
	}
	if accounts.balance("acc-2") != 6000 {
		t.Fatalf("expected 6000, got %d", accounts.balance("acc-2"))
	}
	row := transactions.rows["tx-1"]
	if row.Type != models.TransactionTransfer {
		t.Fatalf("expected the row type changed, got %s", row.Type)
	}
	if row.AccountID != nil || row.IncomeType != nil {
		t.Fatalf("old-type columns must be cleared: %+v", row)
	}
}

func TestDeleteAllTransactionsResetsBalances(t *testing.T) {
	accounts := newMemAccountStore(
		account("acc-1", "user-1", 12345, "USD"),
		account("acc-2", "user-1", -500, "USD"),
	)
	transactions := newMemTransactionStore(models.Transaction{ID: "tx-1", UserID: "user-1"})
	service, audit, _ := newTestLedger(accounts, nil, transactions)

	err := service.DeleteAllTransactions(context.Background(), "user-1", DeleteAllOptions{
		ResetAccountBalances: true,
		Baseline:             0,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions.rows) != 0 {
		t.Fatalf("expected all rows deleted, got %d", len(transactions.rows))
	}
	if accounts.balance("acc-1") != 0 || accounts.balance("acc-2") != 0 {
		t.Fatal("expected all balances reset")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "transactions_delete_all" {
		t.Fatalf("unexpected audit actions: %v", audit.actions)
	}
}

func TestDeleteAllTransactionsKeepsBalancesWithoutReset(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 12345, "USD"))
	transactions := newMemTransactionStore(models.Transaction{ID: "tx-1", UserID: "user-1"})
	service, _, _ := newTestLedger(accounts, nil, transactions)

	err := service.DeleteAllTransactions(context.Background(), "user-1", DeleteAllOptions{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if accounts.balance("acc-1") != 12345 {
		t.Fatalf("balances must stay when reset is off, got %d", accounts.balance("acc-1"))
	}
	if len(accounts.resets) != 0 {
		t.Fatalf("expected no resets, got %v", accounts.resets)
	}
}

func TestWipeUserData(t *testing.T) {
	accounts := newMemAccountStore(account("acc-1", "user-1", 100, "USD"))
	categories := &stubCategoryStore{}
	transactions := newMemTransactionStore(models.Transaction{ID: "tx-1", UserID: "user-1"})
	budgets := &stubBudgetStore{}
	imports := &stubImportJobStore{}
	audit := &stubAuditStore{}
	service := NewLedgerService(fakeTxRunner{}, accounts, categories, transactions, budgets, imports, audit, &recordingHub{})

	if err := service.WipeUserData(context.Background(), "user-1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(transactions.rows) != 0 || len(accounts.accounts) != 0 {
		t.Fatal("expected transactions and accounts gone")
	}
	if budgets.deleted != 1 || imports.deleted != 1 || categories.deleted != 1 {
		t.Fatal("expected budgets, import jobs and categories wiped")
	}
	if len(audit.actions) != 1 || audit.actions[0] != "user_data_wipe" {
		t.Fatalf("unexpected audit actions: %v", audit.actions)
	}
}

func TestListTransactionsPagination(t *testing.T) {
	rows := []models.Transaction{
		{ID: "tx-3", Date: 3000},
		{ID: "tx-2", Date: 2000},
		{ID: "tx-1", Date: 1000},
	}
	transactions := newMemTransactionStore()
	transactions.listFn = func(_ context.Context, _ string, filter store.TransactionFilter) ([]models.Transaction, error) {
		if filter.Limit != 2 {
			t.Fatalf("expected limit 2 passed through, got %d", filter.Limit)
		}
		return rows, nil
	}
	service, _, _ := newTestLedger(newMemAccountStore(), nil, transactions)

	result, err := service.ListTransactions(context.Background(), "user-1", store.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Items) != 2 {
		t.Fatalf("expected the page trimmed to 2, got %d", len(result.Items))
	}
	if !result.HasMore {
		t.Fatal("expected has-more")
	}
	if result.NextCursor == nil || result.NextCursor.ID != "tx-2" || result.NextCursor.Date != 2000 {
		t.Fatalf("unexpected cursor: %+v", result.NextCursor)
	}
}

func TestListTransactionsLastPage(t *testing.T) {
	transactions := newMemTransactionStore()
	transactions.listFn = func(context.Context, string, store.TransactionFilter) ([]models.Transaction, error) {
		return []models.Transaction{{ID: "tx-1", Date: 1000}}, nil
	}
	service, _, _ := newTestLedger(newMemAccountStore(), nil, transactions)

	result, err := service.ListTransactions(context.Background(), "user-1", store.TransactionFilter{Limit: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.HasMore || result.NextCursor != nil {
		t.Fatalf("expected a final page, got %+v", result)
	}
}

func TestListTransactionsEmpty(t *testing.T) {
	service, _, _ := newTestLedger(newMemAccountStore(), nil, newMemTransactionStore())

	result, err := service.ListTransactions(context.Background(), "user-1", store.TransactionFilter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Items == nil {
		t.Fatal("items must be an empty slice, not nil")
	}
}
