package services

import (
	"context"
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/db"
	"fintrack/internal/errs"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/store"
	"fintrack/internal/websocket"
)

type AccountStore interface {
	GetForUpdate(ctx context.Context, tx store.Getter, userID, accountID string) (models.Account, error)
	AdjustBalance(ctx context.Context, tx store.Execer, accountID string, delta int64) error
	ResetBalances(ctx context.Context, tx store.Execer, userID string, baseline int64) error
	DeleteAllByUser(ctx context.Context, tx store.Execer, userID string) error
}

type CategoryStore interface {
	GetByID(ctx context.Context, userID, categoryID string) (models.Category, error)
	DeleteAllByUser(ctx context.Context, tx store.Execer, userID string) error
}

type TransactionStore interface {
	Insert(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	GetForUpdate(ctx context.Context, tx store.Getter, userID, transactionID string) (models.Transaction, error)
	Update(ctx context.Context, tx store.Execer, input store.TransactionInput) error
	Delete(ctx context.Context, tx store.Execer, userID, transactionID string) error
	DeleteAllByUser(ctx context.Context, tx store.Execer, userID string) error
	List(ctx context.Context, userID string, filter store.TransactionFilter) ([]models.Transaction, error)
}

type BudgetStore interface {
	DeleteAllByUser(ctx context.Context, tx store.Execer, userID string) error
}

type ImportJobStore interface {
	Create(ctx context.Context, tx store.Execer, id, userID, source, metadata string) error
	UpdateStatus(ctx context.Context, tx store.Execer, jobID, status, metadata string) error
	DeleteAllByUser(ctx context.Context, tx store.Execer, userID string) error
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
}

type BalanceHub interface {
	BroadcastBalance(userID string, update websocket.BalanceUpdate)
}

// LedgerService owns the transaction life cycle and is the only caller
// that mutates account balances. Every mutation runs inside one
// serializable unit of work: the transaction row and its balance effect
// commit together or not at all.
type LedgerService struct {
	txRunner     db.TxRunner
	accounts     AccountStore
	categories   CategoryStore
	transactions TransactionStore
	budgets      BudgetStore
	imports      ImportJobStore
	audit        AuditStore
	hub          BalanceHub
}

func NewLedgerService(txRunner db.TxRunner, accounts AccountStore, categories CategoryStore, transactions TransactionStore, budgets BudgetStore, imports ImportJobStore, audit AuditStore, hub BalanceHub) *LedgerService {
	return &LedgerService{
		txRunner:     txRunner,
		accounts:     accounts,
		categories:   categories,
		transactions: transactions,
		budgets:      budgets,
		imports:      imports,
		audit:        audit,
		hub:          hub,
	}
}

type CreateTransactionRequest struct {
	UserID      string
	Date        int64
	Description string
	Payload     TransactionPayload
	ImportJobID *string
}

func (s *LedgerService) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (models.Transaction, error) {
	if req.Payload == nil {
		return models.Transaction{}, errs.NewValidationError("transaction payload is required")
	}
	if err := req.Payload.validate(); err != nil {
		return models.Transaction{}, err
	}
	if req.Date == 0 {
		req.Date = time.Now().UnixMilli()
	}

	transactionID := uuid.NewString()
	input := store.TransactionInput{
		ID:          transactionID,
		UserID:      req.UserID,
		Type:        req.Payload.transactionType(),
		Date:        req.Date,
		Description: req.Description,
		ImportJobID: req.ImportJobID,
	}
	req.Payload.fill(&input)

	var updates []websocket.BalanceUpdate
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		locked, err := s.lockAccounts(ctx, tx, req.UserID, req.Payload.accountIDs())
		if err != nil {
			return err
		}
		if err := s.checkCategory(ctx, req.UserID, req.Payload); err != nil {
			return err
		}
		if err := s.transactions.Insert(ctx, tx, input); err != nil {
			return err
		}
		updates, err = s.applyDeltas(ctx, tx, locked, req.Payload.effects())
		if err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"type": input.Type})
		return s.audit.Log(ctx, tx, req.UserID, "transaction_create", "transaction", transactionID, string(data))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.broadcast(req.UserID, updates)
	return transactionFromInput(input), nil
}

type UpdateTransactionRequest struct {
	UserID        string
	TransactionID string
	Date          int64
	Description   string
	Payload       TransactionPayload
}

// UpdateTransaction undoes the stored row's effect and applies the new
// payload's effect in the same unit of work. When the referenced
// accounts change, the undo targets the old accounts and the apply
// targets the new ones.
func (s *LedgerService) UpdateTransaction(ctx context.Context, req UpdateTransactionRequest) (models.Transaction, error) {
	if req.Payload == nil {
		return models.Transaction{}, errs.NewValidationError("transaction payload is required")
	}
	if err := req.Payload.validate(); err != nil {
		return models.Transaction{}, err
	}

	input := store.TransactionInput{
		ID:          req.TransactionID,
		UserID:      req.UserID,
		Type:        req.Payload.transactionType(),
		Date:        req.Date,
		Description: req.Description,
	}
	req.Payload.fill(&input)

	var updates []websocket.BalanceUpdate
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.transactions.GetForUpdate(ctx, tx, req.UserID, req.TransactionID)
		if err != nil {
			return err
		}
		oldPayload, err := payloadFromRow(existing)
		if err != nil {
			return err
		}
		if input.Date == 0 {
			input.Date = existing.Date
		}
		accountIDs := unionIDs(oldPayload.accountIDs(), req.Payload.accountIDs())
		locked, err := s.lockAccounts(ctx, tx, req.UserID, accountIDs)
		if err != nil {
			return err
		}
		if err := s.checkCategory(ctx, req.UserID, req.Payload); err != nil {
			return err
		}
		deltas := append(invert(oldPayload.effects()), req.Payload.effects()...)
		updates, err = s.applyDeltas(ctx, tx, locked, deltas)
		if err != nil {
			return err
		}
		if err := s.transactions.Update(ctx, tx, input); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"old_type": existing.Type, "new_type": input.Type})
		return s.audit.Log(ctx, tx, req.UserID, "transaction_update", "transaction", req.TransactionID, string(data))
	})
	if err != nil {
		return models.Transaction{}, err
	}
	s.broadcast(req.UserID, updates)
	return transactionFromInput(input), nil
}

// DeleteTransaction applies the inverse of the stored effect and then
// removes the row, returning every touched balance to its prior value.
func (s *LedgerService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	var updates []websocket.BalanceUpdate
	err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		existing, err := s.transactions.GetForUpdate(ctx, tx, userID, transactionID)
		if err != nil {
			return err
		}
		payload, err := payloadFromRow(existing)
		if err != nil {
			return err
		}
		locked, err := s.lockAccounts(ctx, tx, userID, payload.accountIDs())
		if err != nil {
			return err
		}
		updates, err = s.applyDeltas(ctx, tx, locked, invert(payload.effects()))
		if err != nil {
			return err
		}
		if err := s.transactions.Delete(ctx, tx, userID, transactionID); err != nil {
			return err
		}
		data, _ := json.Marshal(map[string]string{"type": existing.Type})
		return s.audit.Log(ctx, tx, userID, "transaction_delete", "transaction", transactionID, string(data))
	})
	if err != nil {
		return err
	}
	s.broadcast(userID, updates)
	return nil
}

type DeleteAllOptions struct {
	// ResetAccountBalances zeroes every account in the same unit of
	// work. Required because removing all effects without resetting
	// would leave balances orphaned from an empty transaction set.
	ResetAccountBalances bool
	Baseline             int64
}

func (s *LedgerService) DeleteAllTransactions(ctx context.Context, userID string, opts DeleteAllOptions) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.transactions.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		if opts.ResetAccountBalances {
			if err := s.accounts.ResetBalances(ctx, tx, userID, opts.Baseline); err != nil {
				return err
			}
		}
		data, _ := json.Marshal(map[string]bool{"reset_balances": opts.ResetAccountBalances})
		return s.audit.Log(ctx, tx, userID, "transactions_delete_all", "user", userID, string(data))
	})
}

// WipeUserData removes transactions, budgets, categories, import jobs
// and accounts in one unit of work. Balances are not reset: the
// accounts themselves are gone.
func (s *LedgerService) WipeUserData(ctx context.Context, userID string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.transactions.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.budgets.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.imports.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.categories.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		if err := s.accounts.DeleteAllByUser(ctx, tx, userID); err != nil {
			return err
		}
		return s.audit.Log(ctx, tx, userID, "user_data_wipe", "user", userID, "{}")
	})
}

type ListResult struct {
	Items      []models.Transaction `json:"items"`
	NextCursor *store.Cursor        `json:"next_cursor,omitempty"`
	HasMore    bool                 `json:"has_more"`
}

// ListTransactions is a pure read; it needs no unit of work.
func (s *LedgerService) ListTransactions(ctx context.Context, userID string, filter store.TransactionFilter) (ListResult, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
		filter.Limit = limit
	}
	rows, err := s.transactions.List(ctx, userID, filter)
	if err != nil {
		return ListResult{}, err
	}
	result := ListResult{Items: rows}
	if len(rows) > limit {
		result.Items = rows[:limit]
		result.HasMore = true
	}
	if len(result.Items) > 0 && result.HasMore {
		last := result.Items[len(result.Items)-1]
		result.NextCursor = &store.Cursor{Date: last.Date, ID: last.ID}
	}
	if result.Items == nil {
		result.Items = []models.Transaction{}
	}
	return result, nil
}

// lockAccounts takes FOR UPDATE locks in ascending id order so two
// concurrent units of work touching the same pair cannot deadlock.
func (s *LedgerService) lockAccounts(ctx context.Context, tx *sqlx.Tx, userID string, accountIDs []string) (map[string]models.Account, error) {
	sorted := append([]string(nil), accountIDs...)
	sort.Strings(sorted)
	locked := make(map[string]models.Account, len(sorted))
	for _, accountID := range sorted {
		if _, ok := locked[accountID]; ok {
			continue
		}
		account, err := s.accounts.GetForUpdate(ctx, tx, userID, accountID)
		if err != nil {
			return nil, err
		}
		locked[accountID] = account
	}
	return locked, nil
}

func (s *LedgerService) checkCategory(ctx context.Context, userID string, payload TransactionPayload) error {
	categoryID := payload.categoryID()
	if categoryID == nil {
		return nil
	}
	category, err := s.categories.GetByID(ctx, userID, *categoryID)
	if err != nil {
		return err
	}
	if category.Type != payload.transactionType() {
		return errs.NewValidationError("category type does not match transaction type")
	}
	return nil
}

// applyDeltas nets the effects per account, applies them and returns
// the post-commit balance updates for broadcasting.
func (s *LedgerService) applyDeltas(ctx context.Context, tx *sqlx.Tx, locked map[string]models.Account, deltas []accountDelta) ([]websocket.BalanceUpdate, error) {
	net := make(map[string]int64)
	var order []string
	for _, delta := range deltas {
		if _, ok := net[delta.AccountID]; !ok {
			order = append(order, delta.AccountID)
		}
		net[delta.AccountID] += delta.Delta
	}
	var updates []websocket.BalanceUpdate
	for _, accountID := range order {
		if err := s.accounts.AdjustBalance(ctx, tx, accountID, net[accountID]); err != nil {
			return nil, err
		}
		account, ok := locked[accountID]
		if !ok {
			continue
		}
		updates = append(updates, websocket.BalanceUpdate{
			AccountID: accountID,
			Balance:   money.FormatMinor(account.Balance + net[accountID]),
			Currency:  account.Currency,
		})
	}
	return updates, nil
}

func (s *LedgerService) broadcast(userID string, updates []websocket.BalanceUpdate) {
	for _, update := range updates {
		s.hub.BroadcastBalance(userID, update)
	}
}

func unionIDs(left, right []string) []string {
	seen := make(map[string]struct{}, len(left)+len(right))
	var result []string
	for _, id := range append(append([]string(nil), left...), right...) {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		result = append(result, id)
	}
	return result
}

func transactionFromInput(input store.TransactionInput) models.Transaction {
	return models.Transaction{
		ID:             input.ID,
		UserID:         input.UserID,
		Type:           input.Type,
		Date:           input.Date,
		Description:    input.Description,
		Amount:         input.Amount,
		AccountID:      input.AccountID,
		CategoryID:     input.CategoryID,
		FromAccountID:  input.FromAccountID,
		ToAccountID:    input.ToAccountID,
		AmountSent:     input.AmountSent,
		AmountReceived: input.AmountReceived,
		ExpenseType:    input.ExpenseType,
		IncomeType:     input.IncomeType,
		ImportJobID:    input.ImportJobID,
	}
}
