package services

import (
	"context"

	"github.com/jmoiron/sqlx"

	"fintrack/internal/errs"
	"fintrack/internal/models"
	"fintrack/internal/store"
	"fintrack/internal/websocket"
)

type fakeTxRunner struct {
	withTxFn func(ctx context.Context, fn func(*sqlx.Tx) error) error
}

func (f fakeTxRunner) WithTx(ctx context.Context, fn func(*sqlx.Tx) error) error {
	if f.withTxFn != nil {
		return f.withTxFn(ctx, fn)
	}
	return fn(nil)
}

// memAccountStore keeps balances in a map so a test can assert the net
// effect of a whole service call.
type memAccountStore struct {
	accounts map[string]models.Account
	resets   []int64
}

func newMemAccountStore(accounts ...models.Account) *memAccountStore {
	byID := make(map[string]models.Account, len(accounts))
	for _, account := range accounts {
		byID[account.ID] = account
	}
	return &memAccountStore{accounts: byID}
}

func (m *memAccountStore) GetForUpdate(_ context.Context, _ store.Getter, userID, accountID string) (models.Account, error) {
	account, ok := m.accounts[accountID]
	if !ok || account.UserID != userID {
		return models.Account{}, notFound("account not found")
	}
	return account, nil
}

func (m *memAccountStore) AdjustBalance(_ context.Context, _ store.Execer, accountID string, delta int64) error {
	account, ok := m.accounts[accountID]
	if !ok {
		return notFound("account not found")
	}
	account.Balance += delta
	m.accounts[accountID] = account
	return nil
}

func (m *memAccountStore) ResetBalances(_ context.Context, _ store.Execer, userID string, baseline int64) error {
	m.resets = append(m.resets, baseline)
	for id, account := range m.accounts {
		if account.UserID == userID {
			account.Balance = baseline
			m.accounts[id] = account
		}
	}
	return nil
}

func (m *memAccountStore) DeleteAllByUser(_ context.Context, _ store.Execer, userID string) error {
	for id, account := range m.accounts {
		if account.UserID == userID {
			delete(m.accounts, id)
		}
	}
	return nil
}

func (m *memAccountStore) balance(accountID string) int64 {
	return m.accounts[accountID].Balance
}

type stubCategoryStore struct {
	getByIDFn func(ctx context.Context, userID, categoryID string) (models.Category, error)
	deleted   int
}

func (s *stubCategoryStore) GetByID(ctx context.Context, userID, categoryID string) (models.Category, error) {
	if s.getByIDFn == nil {
		return models.Category{ID: categoryID, UserID: userID}, nil
	}
	return s.getByIDFn(ctx, userID, categoryID)
}

func (s *stubCategoryStore) DeleteAllByUser(context.Context, store.Execer, string) error {
	s.deleted++
	return nil
}

// memTransactionStore holds rows by id; List is not exercised through
// it beyond pass-through.
type memTransactionStore struct {
	rows     map[string]models.Transaction
	inserted []store.TransactionInput
	listFn   func(ctx context.Context, userID string, filter store.TransactionFilter) ([]models.Transaction, error)
	wiped    int
}

func newMemTransactionStore(rows ...models.Transaction) *memTransactionStore {
	byID := make(map[string]models.Transaction, len(rows))
	for _, row := range rows {
		byID[row.ID] = row
	}
	return &memTransactionStore{rows: byID}
}

func (m *memTransactionStore) Insert(_ context.Context, _ store.Execer, input store.TransactionInput) error {
	m.inserted = append(m.inserted, input)
	m.rows[input.ID] = transactionFromInput(input)
	return nil
}

func (m *memTransactionStore) GetForUpdate(_ context.Context, _ store.Getter, userID, transactionID string) (models.Transaction, error) {
	row, ok := m.rows[transactionID]
	if !ok || row.UserID != userID {
		return models.Transaction{}, notFound("transaction not found")
	}
	return row, nil
}

func (m *memTransactionStore) Update(_ context.Context, _ store.Execer, input store.TransactionInput) error {
	if _, ok := m.rows[input.ID]; !ok {
		return notFound("transaction not found")
	}
	m.rows[input.ID] = transactionFromInput(input)
	return nil
}

func (m *memTransactionStore) Delete(_ context.Context, _ store.Execer, userID, transactionID string) error {
	row, ok := m.rows[transactionID]
	if !ok || row.UserID != userID {
		return notFound("transaction not found")
	}
	delete(m.rows, transactionID)
	return nil
}

func (m *memTransactionStore) DeleteAllByUser(_ context.Context, _ store.Execer, userID string) error {
	m.wiped++
	for id, row := range m.rows {
		if row.UserID == userID {
			delete(m.rows, id)
		}
	}
	return nil
}

func (m *memTransactionStore) List(ctx context.Context, userID string, filter store.TransactionFilter) ([]models.Transaction, error) {
	if m.listFn == nil {
		return nil, nil
	}
	return m.listFn(ctx, userID, filter)
}

type stubBudgetStore struct {
	deleted int
}

func (s *stubBudgetStore) DeleteAllByUser(context.Context, store.Execer, string) error {
	s.deleted++
	return nil
}

type stubImportJobStore struct {
	created  []string
	statuses []string
	metadata []string
	deleted  int
}

func (s *stubImportJobStore) Create(_ context.Context, _ store.Execer, id, _, _, _ string) error {
	s.created = append(s.created, id)
	return nil
}

func (s *stubImportJobStore) UpdateStatus(_ context.Context, _ store.Execer, _, status, metadata string) error {
	s.statuses = append(s.statuses, status)
	s.metadata = append(s.metadata, metadata)
	return nil
}

func (s *stubImportJobStore) DeleteAllByUser(context.Context, store.Execer, string) error {
	s.deleted++
	return nil
}

type stubAuditStore struct {
	actions []string
}

func (s *stubAuditStore) Log(_ context.Context, _ store.Execer, _, action, _, _, _ string) error {
	s.actions = append(s.actions, action)
	return nil
}

type recordingHub struct {
	updates []websocket.BalanceUpdate
}

func (h *recordingHub) BroadcastBalance(_ string, update websocket.BalanceUpdate) {
	h.updates = append(h.updates, update)
}

func notFound(message string) error {
	return errs.NewNotFoundError(message)
}
