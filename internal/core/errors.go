package core

import "errors"

// Error taxonomy of the coordination core. Handlers map these to HTTP
// statuses; services never wrap them in anything that breaks errors.Is.
var (
	// ErrNotFound - unknown broadcaster, session or participant
	ErrNotFound = errors.New("not found")
	// ErrConflict - truly irreconcilable state, e.g. an ended session reused
	ErrConflict = errors.New("conflict")
	// ErrForbidden - role or ownership violation
	ErrForbidden = errors.New("forbidden")
	// ErrInsufficientFunds - ledger refused a debit
	ErrInsufficientFunds = errors.New("insufficient funds")
	// ErrSessionEnded - operation against a session that has finished
	ErrSessionEnded = errors.New("session ended")
	// ErrGated - viewer's preview window is over, access needs a tip
	ErrGated = errors.New("gated")
)
