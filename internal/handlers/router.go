package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"fintrack/internal/config"
	"fintrack/internal/db"
	"fintrack/internal/middleware"
	"fintrack/internal/websocket"
)

type Handler struct {
	txRunner     db.TxRunner
	cfg          config.Config
	users        UserStore
	accounts     AccountStore
	categories   CategoryStore
	budgets      BudgetStore
	transactions TransactionStore
	imports      ImportJobStore
	reconcile    ReconcileStore
	audit        AuditStore
	ledger       LedgerService
	importer     ImportService
	hub          *websocket.Hub
}

func New(txRunner db.TxRunner, cfg config.Config, users UserStore, accounts AccountStore, categories CategoryStore, budgets BudgetStore, transactions TransactionStore, imports ImportJobStore, reconcile ReconcileStore, audit AuditStore, ledger LedgerService, importer ImportService, hub *websocket.Hub) *Handler {
	return &Handler{
		txRunner:     txRunner,
		cfg:          cfg,
		users:        users,
		accounts:     accounts,
		categories:   categories,
		budgets:      budgets,
		transactions: transactions,
		imports:      imports,
		reconcile:    reconcile,
		audit:        audit,
		ledger:       ledger,
		importer:     importer,
		hub:          hub,
	}
}

func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(chimiddleware.Logger)
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{h.cfg.AllowedOrigins},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	router.Route("/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
		r.With(middleware.Auth(h.cfg.JWTSecret)).Get("/me", h.Me)
	})

	router.Group(func(r chi.Router) {
		r.Use(middleware.Auth(h.cfg.JWTSecret))

		r.Post("/accounts", h.CreateAccount)
		r.Get("/accounts", h.ListAccounts)
		r.Get("/accounts/{id}", h.GetAccount)
		r.Put("/accounts/{id}", h.UpdateAccount)
		r.Delete("/accounts/{id}", h.DeleteAccount)
		r.Get("/accounts/self-check", h.SelfCheck)
		r.Get("/accounts/{id}/self-check", h.AccountSelfCheck)

		r.Post("/categories", h.CreateCategory)
		r.Get("/categories", h.ListCategories)
		r.Get("/categories/{id}", h.GetCategory)
		r.Put("/categories/{id}", h.UpdateCategory)
		r.Delete("/categories/{id}", h.DeleteCategory)
		r.Get("/categories/{id}/descendants", h.CategoryDescendants)

		r.Put("/budgets", h.UpsertBudget)
		r.Get("/budgets", h.ListBudgets)
		r.Delete("/budgets/{id}", h.DeleteBudget)
		r.Get("/budgets/{categoryId}/progress", h.BudgetProgress)

		r.Post("/transactions", h.CreateTransaction)
		r.Get("/transactions", h.ListTransactions)
		r.Put("/transactions/{id}", h.UpdateTransaction)
		r.Delete("/transactions/{id}", h.DeleteTransaction)
		r.Post("/transactions/delete-all", h.DeleteAllTransactions)
		r.Post("/wipe", h.WipeUserData)

		r.Post("/imports", h.ImportRows)
		r.Get("/imports", h.ListImportJobs)
		r.Get("/imports/{id}", h.GetImportJob)

		r.Get("/activity", h.ListActivity)
	})

	router.Get("/ws/balances", h.WSBalances)

	router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	return router
}
