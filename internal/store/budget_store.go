package store

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

type BudgetStore struct {
	db DB
}

func NewBudgetStore(db DB) *BudgetStore {
	return &BudgetStore{db: db}
}

type BudgetInput struct {
	ID         string
	UserID     string
	CategoryID string
	Amount     int64
	Currency   string
}

// Upsert keeps the at-most-one-budget-per-(user, category) invariant
// via the unique index rather than a read-then-write.
func (s *BudgetStore) Upsert(ctx context.Context, tx Execer, input BudgetInput) error {
	query := `
		INSERT INTO budgets (id, user_id, category_id, amount, currency)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, category_id)
		DO UPDATE SET amount = EXCLUDED.amount, currency = EXCLUDED.currency, updated_at = NOW()
	`
	_, err := tx.ExecContext(ctx, query, input.ID, input.UserID, input.CategoryID, input.Amount, input.Currency)
	return err
}

func (s *BudgetStore) GetByCategory(ctx context.Context, userID, categoryID string) (models.Budget, error) {
	var row models.Budget
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, category_id, amount, currency, created_at, updated_at
		FROM budgets
		WHERE user_id = $1 AND category_id = $2
	`, userID, categoryID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Budget{}, errs.NewNotFoundError("budget not found")
	}
	if err != nil {
		return models.Budget{}, err
	}
	return row, nil
}

func (s *BudgetStore) ListByUser(ctx context.Context, userID string) ([]models.Budget, error) {
	var rows []models.Budget
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, category_id, amount, currency, created_at, updated_at
		FROM budgets
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *BudgetStore) Delete(ctx context.Context, tx Execer, userID, budgetID string) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM budgets
		WHERE id = $1 AND user_id = $2
	`, budgetID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("budget not found")
	}
	return nil
}

func (s *BudgetStore) DeleteAllByUser(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM budgets WHERE user_id = $1`, userID)
	return err
}
