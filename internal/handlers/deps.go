package handlers

import (
	"context"

	"fintrack/internal/models"
	"fintrack/internal/services"
	"fintrack/internal/store"
)

type UserStore interface {
	Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	GetByEmail(ctx context.Context, email string) (models.User, error)
	GetByID(ctx context.Context, userID string) (models.User, error)
}

type AccountStore interface {
	Create(ctx context.Context, tx store.Execer, input store.AccountInput) error
	GetByID(ctx context.Context, userID, accountID string) (models.Account, error)
	ListByUser(ctx context.Context, userID string) ([]models.Account, error)
	Update(ctx context.Context, tx store.Execer, userID, accountID string, update store.AccountUpdate) error
	Delete(ctx context.Context, tx store.Execer, userID, accountID string) error
}

type CategoryStore interface {
	Create(ctx context.Context, tx store.Execer, input store.CategoryInput) error
	GetByID(ctx context.Context, userID, categoryID string) (models.Category, error)
	ListByUser(ctx context.Context, userID string) ([]models.Category, error)
	Update(ctx context.Context, tx store.Execer, userID, categoryID string, name *string, parentID *string) error
	Delete(ctx context.Context, tx store.Execer, userID, categoryID string) error
	GetWithDescendants(ctx context.Context, userID, categoryID string) ([]string, error)
	GetRootID(ctx context.Context, userID, categoryID string) (string, error)
}

type BudgetStore interface {
	Upsert(ctx context.Context, tx store.Execer, input store.BudgetInput) error
	GetByCategory(ctx context.Context, userID, categoryID string) (models.Budget, error)
	ListByUser(ctx context.Context, userID string) ([]models.Budget, error)
	Delete(ctx context.Context, tx store.Execer, userID, budgetID string) error
}

type TransactionStore interface {
	CountByAccount(ctx context.Context, userID, accountID string) (int64, error)
	CountByCategory(ctx context.Context, userID, categoryID string) (int64, error)
	SumExpensesByCategories(ctx context.Context, userID string, categoryIDs []string, startDate, endDate int64) (int64, error)
}

type ImportJobStore interface {
	GetByID(ctx context.Context, userID, jobID string) (models.ImportJob, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ImportJob, error)
}

type ReconcileStore interface {
	ByUser(ctx context.Context, userID string) ([]store.ReconcileRow, error)
	SumEffectsByAccount(ctx context.Context, accountID string) (int64, error)
}

type AuditStore interface {
	Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error)
}

type LedgerService interface {
	CreateTransaction(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error)
	UpdateTransaction(ctx context.Context, req services.UpdateTransactionRequest) (models.Transaction, error)
	DeleteTransaction(ctx context.Context, userID, transactionID string) error
	DeleteAllTransactions(ctx context.Context, userID string, opts services.DeleteAllOptions) error
	WipeUserData(ctx context.Context, userID string) error
	ListTransactions(ctx context.Context, userID string, filter store.TransactionFilter) (services.ListResult, error)
}

type ImportService interface {
	ImportRows(ctx context.Context, userID, source string, rows []services.ImportRow) (services.ImportResult, error)
}
