package store

import "context"

// ReconcileStore computes, per account, the balance implied by the
// current transaction set and compares it against the stored balance.
// Read-only: the stored balance is never overwritten here.
type ReconcileStore struct {
	db DB
}

func NewReconcileStore(db DB) *ReconcileStore {
	return &ReconcileStore{db: db}
}

type ReconcileRow struct {
	AccountID         string `db:"account_id"`
	StoredBalance     int64  `db:"stored_balance"`
	CalculatedBalance int64  `db:"calculated_balance"`
	Difference        int64  `db:"difference"`
}

// effectSumExpr derives each transaction's signed effect on an account:
// income credits, expense debits, transfers debit the sender by
// amount_sent and credit the receiver by amount_received.
const effectSumExpr = `
	COALESCE((SELECT SUM(CASE t.type WHEN 'income' THEN t.amount WHEN 'expense' THEN -t.amount ELSE 0 END)
	          FROM transactions t WHERE t.account_id = a.id), 0)
	+ COALESCE((SELECT SUM(-t.amount_sent) FROM transactions t WHERE t.from_account_id = a.id), 0)
	+ COALESCE((SELECT SUM(t.amount_received) FROM transactions t WHERE t.to_account_id = a.id), 0)`

func (s *ReconcileStore) ByUser(ctx context.Context, userID string) ([]ReconcileRow, error) {
	var rows []ReconcileRow
	err := s.db.SelectContext(ctx, &rows, `
		SELECT a.id AS account_id,
		       a.balance AS stored_balance,
		       (`+effectSumExpr+`) AS calculated_balance,
		       a.balance - (`+effectSumExpr+`) AS difference
		FROM accounts a
		WHERE a.user_id = $1
		ORDER BY a.id
	`, userID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// SumEffectsByAccount returns the computed effect sum for one account.
func (s *ReconcileStore) SumEffectsByAccount(ctx context.Context, accountID string) (int64, error) {
	var sum int64
	err := s.db.GetContext(ctx, &sum, `
		SELECT `+effectSumExpr+`
		FROM accounts a
		WHERE a.id = $1
	`, accountID)
	return sum, err
}
