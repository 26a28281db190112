// Package submitter handles sale completion: one bounded attempt at
// the server when online, falling back to the durable queue when the
// network is down or the call fails.
//
// The contract the cashier cares about: a sale is never lost and never
// blocks on a hung server. The only hard error out of Submit is a
// local persistence failure — the last line of defense against losing
// the sale.
package submitter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/observability"
)

// Outcome is the result of an immediate submission attempt.
type Outcome string

const (
	// OutcomeCompleted means the server accepted the sale on the
	// immediate path; nothing was persisted locally.
	OutcomeCompleted Outcome = "completed"

	// OutcomeQueued means the sale was persisted to the local queue
	// for a later sync pass.
	OutcomeQueued Outcome = "queued"
)

// Receipt reports what happened to a submitted sale.
type Receipt struct {
	Transaction *domain.Transaction `json:"transaction"`
	Outcome     Outcome             `json:"outcome"`
}

// Submitter routes completed sales to the server or the local queue.
type Submitter struct {
	store   domain.Store
	gateway domain.Gateway
	conn    domain.Connectivity
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// New creates a submitter. timeout bounds the immediate remote attempt.
func New(store domain.Store, gw domain.Gateway, conn domain.Connectivity, timeout time.Duration) *Submitter {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Submitter{
		store:   store,
		gateway: gw,
		conn:    conn,
		timeout: timeout,
		now:     time.Now,
		newID:   func() string { return uuid.NewString() },
	}
}

// Submit finalizes a sale.
//
// The id is assigned before any side effect so the server can
// deduplicate retries against the same key. Business rejections
// surface to the caller and are never queued — retrying them would
// not change the verdict. Network failure is converted into a queue
// write, never into a user-facing error.
func (s *Submitter) Submit(ctx context.Context, draft domain.Draft) (*Receipt, error) {
	tx, err := domain.NewTransaction(s.newID(), draft, s.now())
	if err != nil {
		return nil, err
	}

	online := s.conn.Online()
	if online {
		callCtx, cancel := context.WithTimeout(ctx, s.timeout)
		err := s.gateway.Submit(callCtx, tx)
		cancel()

		switch {
		case err == nil:
			observability.SubmitOutcomes.WithLabelValues(string(OutcomeCompleted)).Inc()
			log.Printf("[submitter] sale %s accepted immediately, total=%s", tx.ID, domain.FormatCents(tx.TotalCents))
			return &Receipt{Transaction: tx, Outcome: OutcomeCompleted}, nil

		case errors.Is(err, domain.ErrRejected):
			observability.SubmitOutcomes.WithLabelValues("rejected").Inc()
			return nil, err

		default:
			// Transport failure: fall through to the queue.
			log.Printf("[submitter] sale %s immediate attempt failed, queuing: %v", tx.ID, err)
		}
	}

	tx.Status = domain.StatusPending
	tx.Offline = !online
	if err := s.store.Put(tx); err != nil {
		// The one hard error: the terminal cannot promise to remember
		// the sale.
		return nil, fmt.Errorf("queue sale %s: %w", tx.ID, err)
	}

	observability.SubmitOutcomes.WithLabelValues(string(OutcomeQueued)).Inc()
	log.Printf("[submitter] sale %s queued (offline=%v), total=%s", tx.ID, tx.Offline, domain.FormatCents(tx.TotalCents))
	return &Receipt{Transaction: tx, Outcome: OutcomeQueued}, nil
}
