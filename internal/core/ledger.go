package core

import "time"

// TokenAccount is a read model of the external token ledger. The core
// never caches balances authoritatively; every debit goes to the store.
type TokenAccount struct {
	AccountID string    `json:"account_id" db:"account_id"`
	Balance   int64     `json:"balance" db:"balance"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Ledger is the billing bridge. Debits for the same account are
// serialized by the implementation so a tip and a metering tick can
// never race an account below zero. Revenue split and withdrawal rules
// live behind this interface, not in the core.
type Ledger interface {
	// Debit withdraws amount tokens, returning ErrInsufficientFunds when
	// the balance is short and ErrNotFound for an unknown account.
	Debit(accountID string, amount int64) error
	Credit(accountID string, amount int64) error
	Balance(accountID string) (int64, error)
}
