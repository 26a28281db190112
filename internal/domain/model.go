// Package domain contains pure business types with ZERO infrastructure imports.
// This is the innermost ring of clean architecture — it depends on nothing.
package domain

import (
	"fmt"
	"time"
)

// ─── Payment ────────────────────────────────────────────────────────────────

// PaymentMethod is how the customer paid at the counter.
type PaymentMethod string

const (
	PaymentCash   PaymentMethod = "cash"
	PaymentCredit PaymentMethod = "credit"
	PaymentDebit  PaymentMethod = "debit"
)

// Valid reports whether the payment method is one of the closed set.
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCredit, PaymentDebit:
		return true
	}
	return false
}

// ─── Status ─────────────────────────────────────────────────────────────────

// Status is the queue state of a locally persisted transaction.
// Sales that succeed on the immediate path never enter the store and
// therefore never carry one of these.
type Status string

const (
	StatusPending Status = "pending"
	StatusSyncing Status = "syncing"
	StatusSynced  Status = "synced"
	StatusFailed  Status = "failed"
)

// Valid reports whether the status is a known queue state.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusSyncing, StatusSynced, StatusFailed:
		return true
	}
	return false
}

// ─── Transaction ────────────────────────────────────────────────────────────

// LineItem is a single sale line. Immutable once the transaction is built.
type LineItem struct {
	ProductID      string `json:"product_id"`
	Name           string `json:"name"`
	Quantity       int    `json:"quantity"`
	UnitPriceCents int64  `json:"unit_price_cents"`
	LineTotalCents int64  `json:"line_total_cents"`
}

// Transaction is the unit of work: one completed or attempted sale.
// Monetary values are integer cents — totals come from the external
// pricing collaborator and are never recomputed here.
type Transaction struct {
	ID            string        `json:"id"`
	Items         []LineItem    `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	CreatedAt     time.Time     `json:"created_at"`
	Status        Status        `json:"status"`
	Offline       bool          `json:"offline"`
	Retries       int           `json:"retries"`
}

// Draft carries the externally computed sale data before an ID and
// timestamp are assigned.
type Draft struct {
	Items         []LineItem    `json:"items"`
	SubtotalCents int64         `json:"subtotal_cents"`
	TaxCents      int64         `json:"tax_cents"`
	TotalCents    int64         `json:"total_cents"`
	PaymentMethod PaymentMethod `json:"payment_method"`
}

// NewTransaction builds a Transaction from a draft, checking the
// construction-time invariants. The caller supplies the id (generated
// before any side effect so retries and server-side deduplication key
// on the same value) and the creation timestamp.
func NewTransaction(id string, d Draft, now time.Time) (*Transaction, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if len(d.Items) == 0 {
		return nil, ErrEmptyItems
	}
	for i, it := range d.Items {
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("item %d quantity %d: %w", i, it.Quantity, ErrBadQuantity)
		}
		if it.LineTotalCents != int64(it.Quantity)*it.UnitPriceCents {
			return nil, fmt.Errorf("item %d: %w", i, ErrLineTotalMismatch)
		}
	}
	if d.TotalCents != d.SubtotalCents+d.TaxCents {
		return nil, fmt.Errorf("subtotal %d + tax %d != total %d: %w",
			d.SubtotalCents, d.TaxCents, d.TotalCents, ErrTotalMismatch)
	}
	if !d.PaymentMethod.Valid() {
		return nil, fmt.Errorf("payment method %q: %w", d.PaymentMethod, ErrBadPayment)
	}

	items := make([]LineItem, len(d.Items))
	copy(items, d.Items)

	return &Transaction{
		ID:            id,
		Items:         items,
		SubtotalCents: d.SubtotalCents,
		TaxCents:      d.TaxCents,
		TotalCents:    d.TotalCents,
		PaymentMethod: d.PaymentMethod,
		CreatedAt:     now,
		Status:        StatusPending,
	}, nil
}

// ─── Sync verdicts ──────────────────────────────────────────────────────────

// SyncResult is the per-transaction verdict returned by the batch
// sync endpoint.
type SyncResult struct {
	TransactionID string `json:"transactionId"`
	Success       bool   `json:"success"`
	Error         string `json:"error,omitempty"`
}

// QueueSummary aggregates store contents for display.
type QueueSummary struct {
	Pending int `json:"pending"`
	Syncing int `json:"syncing"`
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Total   int `json:"total"`
}

// ─── Utilities ──────────────────────────────────────────────────────────────

// FormatCents renders integer cents as a dollar string for receipts
// and CLI output.
func FormatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign = "-"
		c = -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}
