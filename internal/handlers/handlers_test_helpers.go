package handlers

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jmoiron/sqlx"

	"fintrack/internal/config"
	"fintrack/internal/middleware"
	"fintrack/internal/models"
	"fintrack/internal/services"
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

type stubUserStore struct {
	createFn     func(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error
	getByEmailFn func(ctx context.Context, email string) (models.User, error)
	getByIDFn    func(ctx context.Context, userID string) (models.User, error)
}

func (s stubUserStore) Create(ctx context.Context, tx store.Execer, id, username, email, passwordHash string) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, id, username, email, passwordHash)
}

func (s stubUserStore) GetByEmail(ctx context.Context, email string) (models.User, error) {
	if s.getByEmailFn == nil {
		return models.User{}, nil
	}
	return s.getByEmailFn(ctx, email)
}

func (s stubUserStore) GetByID(ctx context.Context, userID string) (models.User, error) {
	if s.getByIDFn == nil {
		return models.User{}, nil
	}
	return s.getByIDFn(ctx, userID)
}

type stubAccountStore struct {
	createFn     func(ctx context.Context, tx store.Execer, input store.AccountInput) error
	getByIDFn    func(ctx context.Context, userID, accountID string) (models.Account, error)
	listByUserFn func(ctx context.Context, userID string) ([]models.Account, error)
	updateFn     func(ctx context.Context, tx store.Execer, userID, accountID string, update store.AccountUpdate) error
	deleteFn     func(ctx context.Context, tx store.Execer, userID, accountID string) error
}

func (s stubAccountStore) Create(ctx context.Context, tx store.Execer, input store.AccountInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubAccountStore) GetByID(ctx context.Context, userID, accountID string) (models.Account, error) {
	if s.getByIDFn == nil {
		return models.Account{}, nil
	}
	return s.getByIDFn(ctx, userID, accountID)
}

func (s stubAccountStore) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubAccountStore) Update(ctx context.Context, tx store.Execer, userID, accountID string, update store.AccountUpdate) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, userID, accountID, update)
}

func (s stubAccountStore) Delete(ctx context.Context, tx store.Execer, userID, accountID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, userID, accountID)
}

type stubCategoryStore struct {
	createFn             func(ctx context.Context, tx store.Execer, input store.CategoryInput) error
	getByIDFn            func(ctx context.Context, userID, categoryID string) (models.Category, error)
	listByUserFn         func(ctx context.Context, userID string) ([]models.Category, error)
	updateFn             func(ctx context.Context, tx store.Execer, userID, categoryID string, name *string, parentID *string) error
	deleteFn             func(ctx context.Context, tx store.Execer, userID, categoryID string) error
	getWithDescendantsFn func(ctx context.Context, userID, categoryID string) ([]string, error)
	getRootIDFn          func(ctx context.Context, userID, categoryID string) (string, error)
}

func (s stubCategoryStore) Create(ctx context.Context, tx store.Execer, input store.CategoryInput) error {
	if s.createFn == nil {
		return nil
	}
	return s.createFn(ctx, tx, input)
}

func (s stubCategoryStore) GetByID(ctx context.Context, userID, categoryID string) (models.Category, error) {
	if s.getByIDFn == nil {
		return models.Category{}, nil
	}
	return s.getByIDFn(ctx, userID, categoryID)
}

func (s stubCategoryStore) ListByUser(ctx context.Context, userID string) ([]models.Category, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubCategoryStore) Update(ctx context.Context, tx store.Execer, userID, categoryID string, name *string, parentID *string) error {
	if s.updateFn == nil {
		return nil
	}
	return s.updateFn(ctx, tx, userID, categoryID, name, parentID)
}

func (s stubCategoryStore) Delete(ctx context.Context, tx store.Execer, userID, categoryID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, userID, categoryID)
}

func (s stubCategoryStore) GetWithDescendants(ctx context.Context, userID, categoryID string) ([]string, error) {
	if s.getWithDescendantsFn == nil {
		return []string{categoryID}, nil
	}
	return s.getWithDescendantsFn(ctx, userID, categoryID)
}

func (s stubCategoryStore) GetRootID(ctx context.Context, userID, categoryID string) (string, error) {
	if s.getRootIDFn == nil {
		return categoryID, nil
	}
	return s.getRootIDFn(ctx, userID, categoryID)
}

type stubBudgetStore struct {
	upsertFn        func(ctx context.Context, tx store.Execer, input store.BudgetInput) error
	getByCategoryFn func(ctx context.Context, userID, categoryID string) (models.Budget, error)
	listByUserFn    func(ctx context.Context, userID string) ([]models.Budget, error)
	deleteFn        func(ctx context.Context, tx store.Execer, userID, budgetID string) error
}

func (s stubBudgetStore) Upsert(ctx context.Context, tx store.Execer, input store.BudgetInput) error {
	if s.upsertFn == nil {
		return nil
	}
	return s.upsertFn(ctx, tx, input)
}

func (s stubBudgetStore) GetByCategory(ctx context.Context, userID, categoryID string) (models.Budget, error) {
	if s.getByCategoryFn == nil {
		return models.Budget{}, nil
	}
	return s.getByCategoryFn(ctx, userID, categoryID)
}

func (s stubBudgetStore) ListByUser(ctx context.Context, userID string) ([]models.Budget, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID)
}

func (s stubBudgetStore) Delete(ctx context.Context, tx store.Execer, userID, budgetID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, tx, userID, budgetID)
}

type stubTransactionStore struct {
	countByAccountFn          func(ctx context.Context, userID, accountID string) (int64, error)
	countByCategoryFn         func(ctx context.Context, userID, categoryID string) (int64, error)
	sumExpensesByCategoriesFn func(ctx context.Context, userID string, categoryIDs []string, startDate, endDate int64) (int64, error)
}

func (s stubTransactionStore) CountByAccount(ctx context.Context, userID, accountID string) (int64, error) {
	if s.countByAccountFn == nil {
		return 0, nil
	}
	return s.countByAccountFn(ctx, userID, accountID)
}

func (s stubTransactionStore) CountByCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	if s.countByCategoryFn == nil {
		return 0, nil
	}
	return s.countByCategoryFn(ctx, userID, categoryID)
}

func (s stubTransactionStore) SumExpensesByCategories(ctx context.Context, userID string, categoryIDs []string, startDate, endDate int64) (int64, error) {
	if s.sumExpensesByCategoriesFn == nil {
		return 0, nil
	}
	return s.sumExpensesByCategoriesFn(ctx, userID, categoryIDs, startDate, endDate)
}

type stubImportJobStore struct {
	getByIDFn    func(ctx context.Context, userID, jobID string) (models.ImportJob, error)
	listByUserFn func(ctx context.Context, userID string, limit, offset int) ([]models.ImportJob, error)
}

func (s stubImportJobStore) GetByID(ctx context.Context, userID, jobID string) (models.ImportJob, error) {
	if s.getByIDFn == nil {
		return models.ImportJob{}, nil
	}
	return s.getByIDFn(ctx, userID, jobID)
}

func (s stubImportJobStore) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.ImportJob, error) {
	if s.listByUserFn == nil {
		return nil, nil
	}
	return s.listByUserFn(ctx, userID, limit, offset)
}

type stubReconcileStore struct {
	byUserFn              func(ctx context.Context, userID string) ([]store.ReconcileRow, error)
	sumEffectsByAccountFn func(ctx context.Context, accountID string) (int64, error)
}

func (s stubReconcileStore) ByUser(ctx context.Context, userID string) ([]store.ReconcileRow, error) {
	if s.byUserFn == nil {
		return nil, nil
	}
	return s.byUserFn(ctx, userID)
}

func (s stubReconcileStore) SumEffectsByAccount(ctx context.Context, accountID string) (int64, error) {
	if s.sumEffectsByAccountFn == nil {
		return 0, nil
	}
	return s.sumEffectsByAccountFn(ctx, accountID)
}

type stubAuditStore struct {
	logFn         func(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error
	listByActorFn func(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error)
}

func (s stubAuditStore) ListByActor(ctx context.Context, actorID string, limit, offset int) ([]store.AuditLog, error) {
	if s.listByActorFn == nil {
		return nil, nil
	}
	return s.listByActorFn(ctx, actorID, limit, offset)
}

func (s stubAuditStore) Log(ctx context.Context, tx store.Execer, actorID, action, entityType, entityID, data string) error {
	if s.logFn == nil {
		return nil
	}
	return s.logFn(ctx, tx, actorID, action, entityType, entityID, data)
}

type stubLedgerService struct {
	createFn    func(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error)
	updateFn    func(ctx context.Context, req services.UpdateTransactionRequest) (models.Transaction, error)
	deleteFn    func(ctx context.Context, userID, transactionID string) error
	deleteAllFn func(ctx context.Context, userID string, opts services.DeleteAllOptions) error
	wipeFn      func(ctx context.Context, userID string) error
	listFn      func(ctx context.Context, userID string, filter store.TransactionFilter) (services.ListResult, error)
}

func (s stubLedgerService) CreateTransaction(ctx context.Context, req services.CreateTransactionRequest) (models.Transaction, error) {
	if s.createFn == nil {
		return models.Transaction{}, nil
	}
	return s.createFn(ctx, req)
}

func (s stubLedgerService) UpdateTransaction(ctx context.Context, req services.UpdateTransactionRequest) (models.Transaction, error) {
	if s.updateFn == nil {
		return models.Transaction{}, nil
	}
	return s.updateFn(ctx, req)
}

func (s stubLedgerService) DeleteTransaction(ctx context.Context, userID, transactionID string) error {
	if s.deleteFn == nil {
		return nil
	}
	return s.deleteFn(ctx, userID, transactionID)
}

func (s stubLedgerService) DeleteAllTransactions(ctx context.Context, userID string, opts services.DeleteAllOptions) error {
	if s.deleteAllFn == nil {
		return nil
	}
	return s.deleteAllFn(ctx, userID, opts)
}

func (s stubLedgerService) WipeUserData(ctx context.Context, userID string) error {
	if s.wipeFn == nil {
		return nil
	}
	return s.wipeFn(ctx, userID)
}

func (s stubLedgerService) ListTransactions(ctx context.Context, userID string, filter store.TransactionFilter) (services.ListResult, error) {
	if s.listFn == nil {
		return services.ListResult{}, nil
	}
	return s.listFn(ctx, userID, filter)
}

type stubImportService struct {
	importFn func(ctx context.Context, userID, source string, rows []services.ImportRow) (services.ImportResult, error)
}

func (s stubImportService) ImportRows(ctx context.Context, userID, source string, rows []services.ImportRow) (services.ImportResult, error) {
	if s.importFn == nil {
		return services.ImportResult{}, nil
	}
	return s.importFn(ctx, userID, source, rows)
}

type handlerDeps struct {
	txRunner     fakeTxRunner
	users        stubUserStore
	accounts     stubAccountStore
	categories   stubCategoryStore
	budgets      stubBudgetStore
	transactions stubTransactionStore
	imports      stubImportJobStore
	reconcile    stubReconcileStore
	audit        stubAuditStore
	ledger       stubLedgerService
	importer     stubImportService
}

func newTestHandler(deps handlerDeps) *Handler {
	cfg := config.Config{
		AppEnv:         "test",
		Port:           "0",
		DatabaseURL:    "",
		JWTSecret:      "secret",
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
	}
	return New(deps.txRunner, cfg, deps.users, deps.accounts, deps.categories, deps.budgets, deps.transactions, deps.imports, deps.reconcile, deps.audit, deps.ledger, deps.importer, websocket.NewHub())
}

// authedRequest carries the user identity directly so handler funcs can
// be exercised without running the auth middleware.
func authedRequest(t *testing.T, method, target, userID, body string) *http.Request {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	return req.WithContext(middleware.ContextWithUserID(req.Context(), userID))
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))
}

func stringPtr(value string) *string {
	return &value
}
