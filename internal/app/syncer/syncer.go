// Package syncer drains the offline queue: it collects pending and
// failed transactions, ships them to the server in one batch, and
// applies the per-transaction verdicts back into the store.
//
// One pass at a time. A pass claims its batch by flipping every
// candidate to syncing before transmission, and always resolves every
// claimed record before returning — a record is never left in syncing
// past the end of a pass, crash excepted (and startup recovery demotes
// those, see the store's RecoverInflight).
package syncer

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/observability"
)

// Trigger records what started a sync pass, for logs and metrics.
type Trigger string

const (
	TriggerEdge   Trigger = "edge"   // connectivity offline→online transition
	TriggerTimer  Trigger = "timer"  // periodic scheduler
	TriggerManual Trigger = "manual" // operator action (API/CLI)
)

// Report summarizes one sync pass.
type Report struct {
	Attempted int `json:"attempted"`
	Synced    int `json:"synced"`
	Failed    int `json:"failed"`
}

// Engine is the sync engine for one terminal's queue.
type Engine struct {
	store   domain.Store
	gateway domain.Gateway
	timeout time.Duration

	mu       sync.Mutex // single-flight guard: one pass at a time
	inFlight bool
}

// New creates a sync engine. timeout bounds the batch call.
func New(store domain.Store, gw domain.Gateway, timeout time.Duration) *Engine {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Engine{store: store, gateway: gw, timeout: timeout}
}

// tryAcquire claims the single-flight slot. Returns false if a pass
// is already running.
func (e *Engine) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight {
		return false
	}
	e.inFlight = true
	return true
}

func (e *Engine) release() {
	e.mu.Lock()
	e.inFlight = false
	e.mu.Unlock()
}

// SyncAll runs one sync pass over everything pending or failed.
// Returns domain.ErrSyncInProgress when a pass is already in flight;
// concurrent triggers (timer + connectivity edge) must not
// double-submit the same batch.
func (e *Engine) SyncAll(ctx context.Context, trigger Trigger) (Report, error) {
	if !e.tryAcquire() {
		observability.SyncSkipped.Inc()
		return Report{}, domain.ErrSyncInProgress
	}
	defer e.release()

	pending, err := e.store.ListByStatus(domain.StatusPending)
	if err != nil {
		return Report{}, err
	}
	failed, err := e.store.ListByStatus(domain.StatusFailed)
	if err != nil {
		return Report{}, err
	}

	// Merge preserving createdAt order: both lists are already sorted.
	batch := mergeByCreatedAt(pending, failed)
	if len(batch) == 0 {
		return Report{}, nil
	}

	observability.SyncPasses.WithLabelValues(string(trigger)).Inc()
	log.Printf("[syncer] pass start trigger=%s batch=%d", trigger, len(batch))

	report, err := e.submit(ctx, batch)
	if err != nil {
		return report, err
	}

	log.Printf("[syncer] pass done trigger=%s synced=%d failed=%d", trigger, report.Synced, report.Failed)
	return report, nil
}

// SyncOne makes a best-effort attempt to sync a single record that was
// just reset to pending by a manual retry.
func (e *Engine) SyncOne(ctx context.Context, id string) (Report, error) {
	if !e.tryAcquire() {
		observability.SyncSkipped.Inc()
		return Report{}, domain.ErrSyncInProgress
	}
	defer e.release()

	tx, err := e.store.Get(id)
	if err != nil {
		return Report{}, err
	}
	if tx.Status != domain.StatusPending && tx.Status != domain.StatusFailed {
		return Report{}, domain.ErrNotRetryable
	}

	return e.submit(ctx, []*domain.Transaction{tx})
}

// submit claims the batch, ships it, and applies verdicts. Caller
// holds the single-flight slot.
func (e *Engine) submit(ctx context.Context, batch []*domain.Transaction) (Report, error) {
	ids := make([]string, len(batch))
	for i, tx := range batch {
		ids[i] = tx.ID
	}
	if err := e.store.MarkSyncing(ids); err != nil {
		return Report{}, err
	}

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	start := time.Now()
	results, err := e.gateway.SubmitBatch(callCtx, batch)
	cancel()
	observability.SyncBatchDuration.Observe(time.Since(start).Seconds())

	report := Report{Attempted: len(batch)}

	verdicts := make(map[string]domain.SyncResult, len(results))
	for _, r := range results {
		verdicts[r.TransactionID] = r
	}
	if err != nil {
		log.Printf("[syncer] batch call failed, failing %d in-flight records: %v", len(batch), err)
	}

	// Every claimed record resolves to a terminal-for-this-pass state,
	// verdict or not. A total call failure fails the whole batch.
	for _, tx := range batch {
		v, ok := verdicts[tx.ID]
		switch {
		case ok && v.Success:
			if uerr := e.store.SetStatus(tx.ID, domain.StatusSynced, tx.Retries); uerr != nil {
				log.Printf("[syncer] mark synced %s: %v", tx.ID, uerr)
				continue
			}
			observability.SyncVerdicts.WithLabelValues("synced").Inc()
			report.Synced++

		default:
			if uerr := e.store.SetStatus(tx.ID, domain.StatusFailed, tx.Retries+1); uerr != nil {
				log.Printf("[syncer] mark failed %s: %v", tx.ID, uerr)
				continue
			}
			if ok {
				observability.SyncVerdicts.WithLabelValues("failed").Inc()
				if v.Error != "" {
					log.Printf("[syncer] server rejected %s: %s", tx.ID, v.Error)
				}
			} else {
				observability.SyncVerdicts.WithLabelValues("unanswered").Inc()
			}
			report.Failed++
		}
	}

	if sum, serr := e.store.Summary(); serr == nil {
		observability.ObserveQueue(sum)
	}
	return report, nil
}

// mergeByCreatedAt merges two createdAt-sorted lists into one.
func mergeByCreatedAt(a, b []*domain.Transaction) []*domain.Transaction {
	out := make([]*domain.Transaction, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i].CreatedAt.After(b[j].CreatedAt) {
			out = append(out, b[j])
			j++
		} else {
			out = append(out, a[i])
			i++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}
