package core

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// LedgerRepository is the sql-backed billing bridge. A debit is a single
// conditional UPDATE, so two debits against one account serialize on the
// row and can never take the balance below zero.
type LedgerRepository struct {
	db *sqlx.DB
}

func NewLedgerRepository(db *sqlx.DB) Ledger {
	return &LedgerRepository{
		db: db,
	}
}

func (r *LedgerRepository) Debit(accountID string, amount int64) error {
	result, err := r.db.Exec(
		`UPDATE token_accounts SET balance = balance - $1, updated_at = NOW()
			WHERE account_id = $2 AND balance >= $1`,
		amount,
		accountID,
	)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	// Distinguish a short balance from a missing account.
	if _, err := r.Balance(accountID); err != nil {
		return err
	}

	return ErrInsufficientFunds
}

func (r *LedgerRepository) Credit(accountID string, amount int64) error {
	result, err := r.db.Exec(
		`UPDATE token_accounts SET balance = balance + $1, updated_at = NOW()
			WHERE account_id = $2`,
		amount,
		accountID,
	)
	if err != nil {
		return err
	}

	return errIfNoRows(result)
}

func (r *LedgerRepository) Balance(accountID string) (int64, error) {
	var balance int64

	err := r.db.Get(&balance,
		`SELECT balance FROM token_accounts WHERE account_id = $1 LIMIT 1`,
		accountID,
	)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, err
	}

	return balance, nil
}
