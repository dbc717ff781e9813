package store

import (
	"context"
	"database/sql"
	"errors"

	"fintrack/internal/errs"
	"fintrack/internal/models"
)

// AccountStore is the sole owner of account balances. AdjustBalance is
// only ever called from inside the ledger's unit of work; SetBalance is
// the separate, explicitly user-initiated correction path.
type AccountStore struct {
	db DB
}

func NewAccountStore(db DB) *AccountStore {
	return &AccountStore{db: db}
}

type AccountInput struct {
	ID       string
	UserID   string
	Name     string
	Balance  int64
	Currency string
	Type     string
	Icon     string
	Color    string
}

func (s *AccountStore) Create(ctx context.Context, tx Execer, input AccountInput) error {
	query := `
		INSERT INTO accounts (id, user_id, name, balance, currency, type, icon, color)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := tx.ExecContext(ctx, query,
		input.ID, input.UserID, input.Name, input.Balance, input.Currency, input.Type, input.Icon, input.Color,
	)
	return err
}

func (s *AccountStore) GetByID(ctx context.Context, userID, accountID string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, balance, currency, type, icon, color, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, errs.NewNotFoundError("account not found")
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

func (s *AccountStore) ListByUser(ctx context.Context, userID string) ([]models.Account, error) {
	var rows []models.Account
	err := s.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, name, balance, currency, type, icon, color, created_at, updated_at
		FROM accounts
		WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// GetForUpdate locks the account row for the duration of the enclosing
// unit of work. Callers locking two accounts must do so in id order.
func (s *AccountStore) GetForUpdate(ctx context.Context, tx Getter, userID, accountID string) (models.Account, error) {
	var row models.Account
	err := tx.GetContext(ctx, &row, `
		SELECT id, user_id, name, balance, currency, type, icon, color, created_at, updated_at
		FROM accounts
		WHERE id = $1 AND user_id = $2
		FOR UPDATE
	`, accountID, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, errs.NewNotFoundError("account not found")
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}

// AdjustBalance applies a signed delta. Ledger-internal: this is the
// only mutation path that keeps balance equal to the net ledger effect.
func (s *AccountStore) AdjustBalance(ctx context.Context, tx Execer, accountID string, delta int64) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = balance + $1, updated_at = NOW()
		WHERE id = $2
	`, delta, accountID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("account not found")
	}
	return nil
}

// ResetBalances zeroes every account of a user in one statement. Used
// only by the delete-all-transactions path inside its unit of work.
func (s *AccountStore) ResetBalances(ctx context.Context, tx Execer, userID string, baseline int64) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET balance = $1, updated_at = NOW()
		WHERE user_id = $2
	`, baseline, userID)
	return err
}

type AccountUpdate struct {
	Name     *string
	Currency *string
	Type     *string
	Icon     *string
	Color    *string
	Balance  *int64
}

// Update renames/recolors/retypes an account. A non-nil Balance is an
// explicit user correction, distinct from ledger deltas.
func (s *AccountStore) Update(ctx context.Context, tx Execer, userID, accountID string, update AccountUpdate) error {
	res, err := tx.ExecContext(ctx, `
		UPDATE accounts
		SET name = COALESCE($1, name),
		    currency = COALESCE($2, currency),
		    type = COALESCE($3, type),
		    icon = COALESCE($4, icon),
		    color = COALESCE($5, color),
		    balance = COALESCE($6, balance),
		    updated_at = NOW()
		WHERE id = $7 AND user_id = $8
	`, update.Name, update.Currency, update.Type, update.Icon, update.Color, update.Balance, accountID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("account not found")
	}
	return nil
}

func (s *AccountStore) Delete(ctx context.Context, tx Execer, userID, accountID string) error {
	res, err := tx.ExecContext(ctx, `
		DELETE FROM accounts
		WHERE id = $1 AND user_id = $2
	`, accountID, userID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return errs.NewNotFoundError("account not found")
	}
	return nil
}

func (s *AccountStore) DeleteAllByUser(ctx context.Context, tx Execer, userID string) error {
	_, err := tx.ExecContext(ctx, `DELETE FROM accounts WHERE user_id = $1`, userID)
	return err
}

func (s *AccountStore) GetByName(ctx context.Context, userID, name string) (models.Account, error) {
	var row models.Account
	err := s.db.GetContext(ctx, &row, `
		SELECT id, user_id, name, balance, currency, type, icon, color, created_at, updated_at
		FROM accounts
		WHERE user_id = $1 AND name = $2
	`, userID, name)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Account{}, errs.NewNotFoundError("account not found")
	}
	if err != nil {
		return models.Account{}, err
	}
	return row, nil
}
