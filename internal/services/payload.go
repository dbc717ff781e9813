package services

import (
	"fintrack/internal/errs"
	"fintrack/internal/models"
	"fintrack/internal/store"
)

// accountDelta is one signed ledger effect: the contribution a
// transaction makes to a single account's balance.
type accountDelta struct {
	AccountID string
	Delta     int64
}

// TransactionPayload is the type-dependent part of a transaction,
// modeled as a tagged union so an expense can never carry transfer
// fields and vice versa.
type TransactionPayload interface {
	transactionType() string
	validate() error
	effects() []accountDelta
	fill(input *store.TransactionInput)
	categoryID() *string
	accountIDs() []string
}

type IncomePayload struct {
	AccountID  string
	CategoryID *string
	Amount     int64
	IncomeType string
}

func (p IncomePayload) transactionType() string { return models.TransactionIncome }

func (p IncomePayload) validate() error {
	if p.AccountID == "" {
		return errs.NewValidationError("account_id is required")
	}
	if p.Amount <= 0 {
		return errs.NewValidationError("amount must be positive")
	}
	if p.IncomeType != "active" && p.IncomeType != "passive" {
		return errs.NewValidationError("income_type must be active or passive")
	}
	return nil
}

func (p IncomePayload) effects() []accountDelta {
	return []accountDelta{{AccountID: p.AccountID, Delta: p.Amount}}
}

func (p IncomePayload) fill(input *store.TransactionInput) {
	amount := p.Amount
	incomeType := p.IncomeType
	accountID := p.AccountID
	input.Amount = &amount
	input.AccountID = &accountID
	input.CategoryID = p.CategoryID
	input.IncomeType = &incomeType
}

func (p IncomePayload) categoryID() *string { return p.CategoryID }

func (p IncomePayload) accountIDs() []string { return []string{p.AccountID} }

type ExpensePayload struct {
	AccountID   string
	CategoryID  *string
	Amount      int64
	ExpenseType string
}

func (p ExpensePayload) transactionType() string { return models.TransactionExpense }

func (p ExpensePayload) validate() error {
	if p.AccountID == "" {
		return errs.NewValidationError("account_id is required")
	}
	if p.Amount <= 0 {
		return errs.NewValidationError("amount must be positive")
	}
	if p.ExpenseType != "mandatory" && p.ExpenseType != "optional" {
		return errs.NewValidationError("expense_type must be mandatory or optional")
	}
	return nil
}

func (p ExpensePayload) effects() []accountDelta {
	return []accountDelta{{AccountID: p.AccountID, Delta: -p.Amount}}
}

func (p ExpensePayload) fill(input *store.TransactionInput) {
	amount := p.Amount
	expenseType := p.ExpenseType
	accountID := p.AccountID
	input.Amount = &amount
	input.AccountID = &accountID
	input.CategoryID = p.CategoryID
	input.ExpenseType = &expenseType
}

func (p ExpensePayload) categoryID() *string { return p.CategoryID }

func (p ExpensePayload) accountIDs() []string { return []string{p.AccountID} }

// TransferPayload records the sent and received amounts independently,
// which is what makes cross-currency transfers exact: neither side is
// ever recomputed from the other.
type TransferPayload struct {
	FromAccountID  string
	ToAccountID    string
	AmountSent     int64
	AmountReceived int64
}

func (p TransferPayload) transactionType() string { return models.TransactionTransfer }

func (p TransferPayload) validate() error {
	if p.FromAccountID == "" || p.ToAccountID == "" {
		return errs.NewValidationError("from_account_id and to_account_id are required")
	}
	if p.FromAccountID == p.ToAccountID {
		return errs.NewValidationError("cannot transfer to the same account")
	}
	if p.AmountSent <= 0 || p.AmountReceived <= 0 {
		return errs.NewValidationError("amounts must be positive")
	}
	return nil
}

func (p TransferPayload) effects() []accountDelta {
	return []accountDelta{
		{AccountID: p.FromAccountID, Delta: -p.AmountSent},
		{AccountID: p.ToAccountID, Delta: p.AmountReceived},
	}
}

func (p TransferPayload) fill(input *store.TransactionInput) {
	sent := p.AmountSent
	received := p.AmountReceived
	fromID := p.FromAccountID
	toID := p.ToAccountID
	input.AmountSent = &sent
	input.AmountReceived = &received
	input.FromAccountID = &fromID
	input.ToAccountID = &toID
	if sent == received {
		canonical := sent
		input.Amount = &canonical
	}
}

func (p TransferPayload) categoryID() *string { return nil }

func (p TransferPayload) accountIDs() []string { return []string{p.FromAccountID, p.ToAccountID} }

// payloadFromRow reconstructs the tagged union from a stored row so the
// row's current effect can be inverted exactly.
func payloadFromRow(row models.Transaction) (TransactionPayload, error) {
	switch row.Type {
	case models.TransactionIncome:
		if row.AccountID == nil || row.Amount == nil {
			return nil, errs.NewValidationError("malformed income row")
		}
		incomeType := "active"
		if row.IncomeType != nil {
			incomeType = *row.IncomeType
		}
		return IncomePayload{
			AccountID:  *row.AccountID,
			CategoryID: row.CategoryID,
			Amount:     *row.Amount,
			IncomeType: incomeType,
		}, nil
	case models.TransactionExpense:
		if row.AccountID == nil || row.Amount == nil {
			return nil, errs.NewValidationError("malformed expense row")
		}
		expenseType := "optional"
		if row.ExpenseType != nil {
			expenseType = *row.ExpenseType
		}
		return ExpensePayload{
			AccountID:   *row.AccountID,
			CategoryID:  row.CategoryID,
			Amount:      *row.Amount,
			ExpenseType: expenseType,
		}, nil
	case models.TransactionTransfer:
		if row.FromAccountID == nil || row.ToAccountID == nil || row.AmountSent == nil || row.AmountReceived == nil {
			return nil, errs.NewValidationError("malformed transfer row")
		}
		return TransferPayload{
			FromAccountID:  *row.FromAccountID,
			ToAccountID:    *row.ToAccountID,
			AmountSent:     *row.AmountSent,
			AmountReceived: *row.AmountReceived,
		}, nil
	default:
		return nil, errs.NewValidationError("unknown transaction type")
	}
}

func invert(deltas []accountDelta) []accountDelta {
	inverted := make([]accountDelta, len(deltas))
	for i, delta := range deltas {
		inverted[i] = accountDelta{AccountID: delta.AccountID, Delta: -delta.Delta}
	}
	return inverted
}
