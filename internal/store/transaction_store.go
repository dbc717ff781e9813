package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

type TransactionStore struct {
	db DB
}

func NewTransactionStore(db DB) *TransactionStore {
	return &TransactionStore{db: db}
}

type TransactionInput struct {
	ID             string
	UserID         string
	Type           string
	Date           int64
	Description    string
	Amount         *int64
	AccountID      *string
	CategoryID     *string
	FromAccountID  *string
	ToAccountID    *string
	AmountSent     *int64
	AmountReceived *int64
	ExpenseType    *string
	IncomeType     *string
	ImportJobID    *string
}

const transactionColumns = `id, user_id, type, date, description, amount, account_id, category_id,
	from_account_id, to_account_id, amount_sent, amount_received, expense_type, income_type,
	import_job_id, created_at, updated_at`

func (s *TransactionStore) Insert(ctx context.Context, tx Execer, input TransactionInput) error {
	query := `
		INSERT INTO transactions (id, user_id, type, date, description, amount, account_id, category_id,
			from_account_id, to_account_id, amount_sent, amount_received, expense_type, income_type, import_job_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Type, input.Date, input.Description, input.Amount,
		input.AccountID, input.CategoryID, input.FromAccountID, input.ToAccountID,
		input.AmountSent, input.AmountReceived, input.ExpenseType, input.IncomeType, input.ImportJobID,
	)
	return err
}

func (s *TransactionStore) GetByID(ctx context.Context, userID, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := s.db.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND user_id = $2
	`, transactionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, errs.NewNotFoundError("transaction not found")
	}
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// GetForUpdate locks the transaction row so a concurrent edit or delete
// of the same transaction serializes on the backing store.
func (s *TransactionStore) GetForUpdate(ctx context.Context, tx Getter, userID, transactionID string) (models.Transaction, error) {
	var row models.Transaction
	err := tx.GetContext(ctx, &row, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, transactionID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Transaction{}, errs.NewNotFoundError("transaction not found")
	}
	if err != nil {
		return models.Transaction{}, err
	}
	return row, nil
}

// Update overwrites the full type-dependent payload of the row; the
// caller has already undone the old balance effect and applied the new
// one inside the same unit of work.
func (s *TransactionStore) Update(ctx context.Context, tx Execer, input TransactionInput) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET type = $1, date = $2, description = $3, amount = $4, account_id = $5, category_id = $6,
		    from_account_id = $7, to_account_id = $8, amount_sent = $9, amount_received = $10,
		    expense_type = $11, income_type = $12, updated_at = NOW()
		WHERE id = $13 AND user_id = $14
	`, input.Type, input.Date, input.Description, input.Amount, input.AccountID, input.CategoryID,
		input.FromAccountID, input.ToAccountID, input.AmountSent, input.AmountReceived,
		input.ExpenseType, input.IncomeType, input.ID, input.UserID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("transaction not found")
	}
	return nil
}

func (s *TransactionStore) Delete(ctx context.Context, tx Execer, userID, transactionID string) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM transactions
		WHERE id = $1 AND user_id = $2
	`, transactionID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("transaction not found")
	}
	return nil
}

func (s *TransactionStore) DeleteAllByUser(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM transactions WHERE user_id = $1`, userID)
	return err
}

func (s *TransactionStore) CountByAccount(ctx context.Context, userID, accountID string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND (account_id = $2 OR from_account_id = $2 OR to_account_id = $2)
	`, userID, accountID)
	return count, err
}

func (s *TransactionStore) CountByCategory(ctx context.Context, userID, categoryID string) (int64, error) {
	var count int64
	err := s.db.GetContext(ctx, &count, `
		SELECT COUNT(*)
		FROM transactions
		WHERE user_id = $1 AND category_id = $2
	`, userID, categoryID)
	return count, err
}

// SumExpensesByCategories totals expense amounts over a category
// closure within an inclusive date range. Read path for budgets.
func (s *TransactionStore) SumExpensesByCategories(ctx context.Context, userID string, categoryIDs []string, startDate, endDate int64) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT COALESCE(SUM(amount), 0)
		FROM transactions
		WHERE user_id = $1 AND type = 'expense' AND category_id = ANY($2)
		  AND date >= $3 AND date <= $4
	`, userID, pq.Array(categoryIDs), startDate, endDate)
	return sum, err
}

// Cursor is a (date, id) pair of the last row the caller has seen.
// Paging by key rather than offset stays stable under concurrent
// inserts.
type Cursor struct {
	Date int64
	ID   string
}

type TransactionFilter struct {
	AccountID            string
	CategoryIDs          []string
	IncludeUncategorized bool
	Type                 string
	StartDate            *int64
	EndDate              *int64
	Search               string
	Limit                int
	Cursor               *Cursor
	Ascending            bool
}

// List applies the filter and returns up to limit+1 rows so the caller
// can detect whether another page exists. Ordered by date with id as
// the stable tiebreaker.
func (s *TransactionStore) List(ctx context.Context, userID string, filter TransactionFilter) ([]models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE user_id = $1`
	args := []any{userID}
	param := 2

	if filter.AccountID != "" {
		query += fmt.Sprintf(" AND (account_id = $%d OR from_account_id = $%d OR to_account_id = $%d)", param, param, param)
		args = append(args, filter.AccountID)
		param++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", param)
		args = append(args, filter.Type)
		param++
	}
	switch {
	case len(filter.CategoryIDs) > 0 && filter.IncludeUncategorized:
		query += fmt.Sprintf(" AND (category_id = ANY($%d) OR category_id IS NULL)", param)
		args = append(args, pq.Array(filter.CategoryIDs))
		param++
	case len(filter.CategoryIDs) > 0:
		query += fmt.Sprintf(" AND category_id = ANY($%d)", param)
		args = append(args, pq.Array(filter.CategoryIDs))
		param++
	case filter.IncludeUncategorized:
		query += " AND category_id IS NULL"
	}
	if filter.StartDate != nil {
		query += fmt.Sprintf(" AND date >= $%d", param)
		args = append(args, *filter.StartDate)
		param++
	}
	if filter.EndDate != nil {
		query += fmt.Sprintf(" AND date <= $%d", param)
		args = append(args, *filter.EndDate)
		param++
	}
	if filter.Search != "" {
		query += fmt.Sprintf(" AND description ILIKE '%%' || $%d || '%%'", param)
		args = append(args, filter.Search)
		param++
	}
	if filter.Cursor != nil {
		if filter.Ascending {
			query += fmt.Sprintf(" AND (date > $%d OR (date = $%d AND id > $%d))", param, param, param+1)
		} else {
			query += fmt.Sprintf(" AND (date < $%d OR (date = $%d AND id < $%d))", param, param, param+1)
		}
		args = append(args, filter.Cursor.Date, filter.Cursor.ID)
		param += 2
	}
	if filter.Ascending {
		query += " ORDER BY date ASC, id ASC"
	} else {
		query += " ORDER BY date DESC, id DESC"
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += fmt.Sprintf(" LIMIT $%d", param)
	args = append(args, limit+1)

	var rows []models.Transaction
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return rows, nil
}
