package services

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"fintrack/internal/db"
	"fintrack/internal/errs"
	"fintrack/internal/models"
	"fintrack/internal/money"
	"fintrack/internal/store"
)

type ImportAccountStore interface {
	Create(ctx context.Context, tx store.Execer, input store.AccountInput) error
	GetByID(ctx context.Context, userID, accountID string) (models.Account, error)
	GetByName(ctx context.Context, userID, name string) (models.Account, error)
}

type ImportCategoryStore interface {
	GetByID(ctx context.Context, userID, categoryID string) (models.Category, error)
	GetByName(ctx context.Context, userID, name, categoryType string) (models.Category, error)
	Create(ctx context.Context, tx store.Execer, input store.CategoryInput) error
}

type Ledger interface {
	CreateTransaction(ctx context.Context, req CreateTransactionRequest) (models.Transaction, error)
}

// ImportService ingests already-normalized rows. Each row delegates to
// the ledger's create path so its balance effect is applied exactly
// like a manually entered transaction. Row failures are counted and do
// not abort the batch; the strict all-or-nothing contract belongs to
// single-record mutations only.
type ImportService struct {
	txRunner   db.TxRunner
	accounts   ImportAccountStore
	categories ImportCategoryStore
	jobs       ImportJobStore
	ledger     Ledger
}

func NewImportService(txRunner db.TxRunner, accounts ImportAccountStore, categories ImportCategoryStore, jobs ImportJobStore, ledger Ledger) *ImportService {
	return &ImportService{
		txRunner:   txRunner,
		accounts:   accounts,
		categories: categories,
		jobs:       jobs,
		ledger:     ledger,
	}
}

// ImportRow is one normalized row. Accounts and categories may be
// referenced by id or by name-for-creation; amounts are minor units.
type ImportRow struct {
	Type            string `json:"type"`
	Date            int64  `json:"date"`
	Description     string `json:"description"`
	Amount          int64  `json:"amount"`
	AccountID       string `json:"account_id"`
	AccountName     string `json:"account_name"`
	CategoryID      string `json:"category_id"`
	CategoryName    string `json:"category_name"`
	FromAccountID   string `json:"from_account_id"`
	FromAccountName string `json:"from_account_name"`
	ToAccountID     string `json:"to_account_id"`
	ToAccountName   string `json:"to_account_name"`
	AmountSent      int64  `json:"amount_sent"`
	AmountReceived  int64  `json:"amount_received"`
	Rate            string `json:"rate"`
	Currency        string `json:"currency"`
	ExpenseType     string `json:"expense_type"`
	IncomeType      string `json:"income_type"`
}

type ImportResult struct {
	JobID         string `json:"job_id"`
	SuccessCount  int    `json:"success_count"`
	ErrorCount    int    `json:"error_count"`
	NewAccounts   int    `json:"new_accounts"`
	NewCategories int    `json:"new_categories"`
}

func (s *ImportService) ImportRows(ctx context.Context, userID, source string, rows []ImportRow) (ImportResult, error) {
	jobID := uuid.NewString()
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.jobs.Create(ctx, tx, jobID, userID, source, "{}")
	}); err != nil {
		return ImportResult{}, err
	}
	if err := s.setStatus(ctx, jobID, models.ImportStatusRunning, "{}"); err != nil {
		return ImportResult{}, err
	}

	result := ImportResult{JobID: jobID}
	for i, row := range rows {
		if err := s.importRow(ctx, userID, jobID, row, &result); err != nil {
			result.ErrorCount++
			log.Printf("import job %s: row %d failed: %v", jobID, i, err)
			continue
		}
		result.SuccessCount++
	}

	status := models.ImportStatusCompleted
	if result.SuccessCount == 0 && result.ErrorCount > 0 {
		status = models.ImportStatusFailed
	}
	metadata, _ := json.Marshal(map[string]int{
		"success_count":  result.SuccessCount,
		"error_count":    result.ErrorCount,
		"new_accounts":   result.NewAccounts,
		"new_categories": result.NewCategories,
	})
	if err := s.setStatus(ctx, jobID, status, string(metadata)); err != nil {
		return result, err
	}
	return result, nil
}

func (s *ImportService) importRow(ctx context.Context, userID, jobID string, row ImportRow, result *ImportResult) error {
	payload, err := s.buildPayload(ctx, userID, row, result)
	if err != nil {
		return err
	}
	_, err = s.ledger.CreateTransaction(ctx, CreateTransactionRequest{
		UserID:      userID,
		Date:        row.Date,
		Description: row.Description,
		Payload:     payload,
		ImportJobID: &jobID,
	})
	return err
}

func (s *ImportService) buildPayload(ctx context.Context, userID string, row ImportRow, result *ImportResult) (TransactionPayload, error) {
	switch row.Type {
	case models.TransactionIncome:
		accountID, err := s.resolveAccount(ctx, userID, row.AccountID, row.AccountName, row.Currency, result)
		if err != nil {
			return nil, err
		}
		categoryID, err := s.resolveCategory(ctx, userID, row.CategoryID, row.CategoryName, models.TransactionIncome, result)
		if err != nil {
			return nil, err
		}
		incomeType := row.IncomeType
		if incomeType == "" {
			incomeType = "active"
		}
		return IncomePayload{AccountID: accountID, CategoryID: categoryID, Amount: row.Amount, IncomeType: incomeType}, nil
	case models.TransactionExpense:
		accountID, err := s.resolveAccount(ctx, userID, row.AccountID, row.AccountName, row.Currency, result)
		if err != nil {
			return nil, err
		}
		categoryID, err := s.resolveCategory(ctx, userID, row.CategoryID, row.CategoryName, models.TransactionExpense, result)
		if err != nil {
			return nil, err
		}
		expenseType := row.ExpenseType
		if expenseType == "" {
			expenseType = "optional"
		}
		return ExpensePayload{AccountID: accountID, CategoryID: categoryID, Amount: row.Amount, ExpenseType: expenseType}, nil
	case models.TransactionTransfer:
		fromID, err := s.resolveAccount(ctx, userID, row.FromAccountID, row.FromAccountName, row.Currency, result)
		if err != nil {
			return nil, err
		}
		toID, err := s.resolveAccount(ctx, userID, row.ToAccountID, row.ToAccountName, row.Currency, result)
		if err != nil {
			return nil, err
		}
		sent := row.AmountSent
		if sent == 0 {
			sent = row.Amount
		}
		received := row.AmountReceived
		if received == 0 && row.Rate != "" {
			rate, err := decimal.NewFromString(row.Rate)
			if err != nil {
				return nil, errs.NewValidationError("invalid rate")
			}
			received = money.ConvertMinor(sent, rate)
		}
		if received == 0 {
			received = sent
		}
		return TransferPayload{FromAccountID: fromID, ToAccountID: toID, AmountSent: sent, AmountReceived: received}, nil
	default:
		return nil, errs.NewValidationError("unknown transaction type")
	}
}

func (s *ImportService) resolveAccount(ctx context.Context, userID, accountID, name, currency string, result *ImportResult) (string, error) {
	if accountID != "" {
		account, err := s.accounts.GetByID(ctx, userID, accountID)
		if err != nil {
			return "", err
		}
		return account.ID, nil
	}
	if name == "" {
		return "", errs.NewValidationError("account reference is required")
	}
	account, err := s.accounts.GetByName(ctx, userID, name)
	if err == nil {
		return account.ID, nil
	}
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		return "", err
	}
	if currency == "" {
		currency = "USD"
	}
	newID := uuid.NewString()
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.accounts.Create(ctx, tx, store.AccountInput{
			ID:       newID,
			UserID:   userID,
			Name:     name,
			Currency: currency,
			Type:     "cash",
		})
	}); err != nil {
		return "", err
	}
	result.NewAccounts++
	return newID, nil
}

func (s *ImportService) resolveCategory(ctx context.Context, userID, categoryID, name, categoryType string, result *ImportResult) (*string, error) {
	if categoryID != "" {
		category, err := s.categories.GetByID(ctx, userID, categoryID)
		if err != nil {
			return nil, err
		}
		return &category.ID, nil
	}
	if name == "" {
		// uncategorized
		return nil, nil
	}
	category, err := s.categories.GetByName(ctx, userID, name, categoryType)
	if err == nil {
		return &category.ID, nil
	}
	var notFound *errs.NotFoundError
	if !errors.As(err, &notFound) {
		return nil, err
	}
	newID := uuid.NewString()
	if err := s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.categories.Create(ctx, tx, store.CategoryInput{
			ID:     newID,
			UserID: userID,
			Name:   name,
			Type:   categoryType,
		})
	}); err != nil {
		return nil, err
	}
	result.NewCategories++
	return &newID, nil
}

func (s *ImportService) setStatus(ctx context.Context, jobID, status, metadata string) error {
	return s.txRunner.WithTx(ctx, func(tx *sqlx.Tx) error {
		return s.jobs.UpdateStatus(ctx, tx, jobID, status, metadata)
	})
}
