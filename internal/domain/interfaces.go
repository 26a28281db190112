package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// Store abstracts the durable local transaction queue. All mutating
// operations are atomic: a crash mid-write never leaves a half-updated
// record visible.
type Store interface {
	// Put inserts a new transaction. ErrDuplicateID if the id exists.
	Put(tx *Transaction) error

	// Get returns the transaction or ErrNotFound.
	Get(id string) (*Transaction, error)

	// ListAll returns every stored transaction ordered by creation
	// time ascending, from a consistent snapshot.
	ListAll() ([]*Transaction, error)

	// ListByStatus returns transactions in the given state ordered by
	// creation time ascending.
	ListByStatus(status Status) ([]*Transaction, error)

	// Update replaces a record by id. ErrNotFound if absent.
	Update(tx *Transaction) error

	// Delete removes a record. ErrNotFound if absent.
	Delete(id string) error

	// SetStatus updates one record's status and retry counter
	// atomically. ErrNotFound if absent.
	SetStatus(id string, status Status, retries int) error

	// MarkSyncing flips all the given ids to syncing in one atomic
	// step, claiming them for an in-flight sync pass.
	MarkSyncing(ids []string) error

	// PurgeSynced deletes every synced record and reports the count.
	// Idempotent: purging an empty set removes nothing.
	PurgeSynced() (int, error)

	// Summary returns per-status counts.
	Summary() (QueueSummary, error)
}

// Gateway abstracts the remote server of record.
type Gateway interface {
	// Submit sends one transaction. ErrRejected (wrapped) on a
	// business rejection, ErrUnreachable (wrapped) on transport
	// failure or timeout.
	Submit(ctx context.Context, tx *Transaction) error

	// SubmitBatch sends queued transactions in one request and
	// returns one verdict per submitted id. The server deduplicates
	// by id, so re-submitting an accepted id succeeds without a
	// duplicate sale.
	SubmitBatch(ctx context.Context, txs []*Transaction) ([]SyncResult, error)
}

// Connectivity reports and signals network availability. A positive
// signal is only a hint — callers still handle submission failures.
type Connectivity interface {
	// Online is a point-in-time check.
	Online() bool

	// Subscribe registers a callback fired on every edge transition.
	Subscribe(fn func(online bool))
}
