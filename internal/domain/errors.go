package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Construction errors
	ErrMissingID         = errors.New("transaction id is required")
	ErrEmptyItems        = errors.New("transaction has no line items")
	ErrBadQuantity       = errors.New("line item quantity must be positive")
	ErrLineTotalMismatch = errors.New("line total does not equal quantity x unit price")
	ErrTotalMismatch     = errors.New("total does not equal subtotal + tax")
	ErrBadPayment        = errors.New("unknown payment method")

	// Store errors
	ErrNotFound    = errors.New("transaction not found")
	ErrDuplicateID = errors.New("transaction id already exists")

	// Gateway errors
	ErrUnreachable = errors.New("remote system unreachable")
	ErrRejected    = errors.New("transaction rejected by server")

	// Sync errors
	ErrSyncInProgress = errors.New("a sync pass is already running")
	ErrNotRetryable   = errors.New("transaction is not in a retryable state")
)
