package models

import "time"

type User struct {
	ID           string    `db:"id" json:"id"`
	Username     string    `db:"username" json:"username"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
}

type Account struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Balance   int64     `db:"balance" json:"balance"`
	Currency  string    `db:"currency" json:"currency"`
	Type      string    `db:"type" json:"type"`
	Icon      string    `db:"icon" json:"icon"`
	Color     string    `db:"color" json:"color"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

type Category struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Name      string    `db:"name" json:"name"`
	Type      string    `db:"type" json:"type"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Budget struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	CategoryID string    `db:"category_id" json:"category_id"`
	Amount     int64     `db:"amount" json:"amount"`
	Currency   string    `db:"currency" json:"currency"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// Transaction is the persisted row shape. Exactly one of AccountID or
// the FromAccountID/ToAccountID pair is populated, matching Type.
type Transaction struct {
	ID             string    `db:"id" json:"id"`
	UserID         string    `db:"user_id" json:"user_id"`
	Type           string    `db:"type" json:"type"`
	Date           int64     `db:"date" json:"date"`
	Description    string    `db:"description" json:"description"`
	Amount         *int64    `db:"amount" json:"amount,omitempty"`
	AccountID      *string   `db:"account_id" json:"account_id,omitempty"`
	CategoryID     *string   `db:"category_id" json:"category_id,omitempty"`
	FromAccountID  *string   `db:"from_account_id" json:"from_account_id,omitempty"`
	ToAccountID    *string   `db:"to_account_id" json:"to_account_id,omitempty"`
	AmountSent     *int64    `db:"amount_sent" json:"amount_sent,omitempty"`
	AmountReceived *int64    `db:"amount_received" json:"amount_received,omitempty"`
	ExpenseType    *string   `db:"expense_type" json:"expense_type,omitempty"`
	IncomeType     *string   `db:"income_type" json:"income_type,omitempty"`
	ImportJobID    *string   `db:"import_job_id" json:"import_job_id,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

type ImportJob struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	Source    string    `db:"source" json:"source"`
	Status    string    `db:"status" json:"status"`
	Metadata  string    `db:"metadata" json:"metadata"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

const (
	TransactionIncome   = "income"
	TransactionExpense  = "expense"
	TransactionTransfer = "transfer"
)

const (
	ImportStatusPending   = "pending"
	ImportStatusRunning   = "running"
	ImportStatusCompleted = "completed"
	ImportStatusFailed    = "failed"
)
