// Package inspector is the operator-facing view of the offline queue:
// counts and listings for display, plus the two mutating actions an
// operator may take — retrying one failed record and purging synced
// history. Both go through the same store contract as the sync engine;
// there is no parallel write path.
package inspector

import (
	"context"
	"errors"
	"log"

	"github.com/tillsync/tillsync/internal/app/syncer"
	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/observability"
)

// Retrier is the slice of the sync engine the inspector needs for
// manual retries.
type Retrier interface {
	SyncOne(ctx context.Context, id string) (syncer.Report, error)
}

// Inspector aggregates queue state for display and operator actions.
type Inspector struct {
	store   domain.Store
	retrier Retrier
}

// New creates an inspector. retrier may be nil, in which case RetryOne
// only resets the record and leaves submission to the next pass.
func New(store domain.Store, retrier Retrier) *Inspector {
	return &Inspector{store: store, retrier: retrier}
}

// Summary returns per-status counts.
func (i *Inspector) Summary() (domain.QueueSummary, error) {
	sum, err := i.store.Summary()
	if err == nil {
		observability.ObserveQueue(sum)
	}
	return sum, err
}

// List returns stored transactions, optionally filtered by status,
// oldest first.
func (i *Inspector) List(status domain.Status) ([]*domain.Transaction, error) {
	if status == "" {
		return i.store.ListAll()
	}
	if !status.Valid() {
		return nil, errors.New("unknown status filter: " + string(status))
	}
	return i.store.ListByStatus(status)
}

// Get returns one stored transaction.
func (i *Inspector) Get(id string) (*domain.Transaction, error) {
	return i.store.Get(id)
}

// RetryOne resets a failed record to pending and immediately attempts
// a best-effort sync of that single record. The retry counter is
// preserved: it tracks lifetime failures, and resetting it would hide
// a chronically bad record from the operator.
func (i *Inspector) RetryOne(ctx context.Context, id string) error {
	tx, err := i.store.Get(id)
	if err != nil {
		return err
	}
	if tx.Status != domain.StatusFailed {
		return domain.ErrNotRetryable
	}

	if err := i.store.SetStatus(id, domain.StatusPending, tx.Retries); err != nil {
		return err
	}
	log.Printf("[inspector] manual retry %s (retries=%d)", id, tx.Retries)

	if i.retrier == nil {
		return nil
	}
	// Best effort: a busy engine or an unreachable server just leaves
	// the record pending for the next pass.
	if _, err := i.retrier.SyncOne(ctx, id); err != nil &&
		!errors.Is(err, domain.ErrSyncInProgress) && !errors.Is(err, domain.ErrUnreachable) {
		log.Printf("[inspector] retry sync %s: %v", id, err)
	}
	return nil
}

// PurgeSynced removes all synced records. Idempotent: a second call
// with nothing left to purge removes zero rows.
func (i *Inspector) PurgeSynced() (int, error) {
	n, err := i.store.PurgeSynced()
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Printf("[inspector] purged %d synced transactions", n)
	}
	if sum, serr := i.store.Summary(); serr == nil {
		observability.ObserveQueue(sum)
	}
	return n, nil
}
