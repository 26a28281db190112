package syncer

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/observability"
)

// Scheduler drives the engine from the two automatic triggers: a
// fixed-interval ticker and offline→online connectivity edges.
//
// The interval is fixed with no backoff: a failed record retries
// forever at the same cadence, keeping recovery time predictable. The
// retries counter makes runaway records visible to the operator
// instead.
type Scheduler struct {
	engine   *Engine
	conn     domain.Connectivity
	interval time.Duration
	kick     chan struct{}
}

// NewScheduler wires a scheduler to the engine and connectivity monitor.
func NewScheduler(e *Engine, conn domain.Connectivity, interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	s := &Scheduler{
		engine:   e,
		conn:     conn,
		interval: interval,
		kick:     make(chan struct{}, 1),
	}
	conn.Subscribe(func(online bool) {
		if online {
			observability.ConnectivityOnline.Set(1)
			// Coalesce: one queued kick is enough.
			select {
			case s.kick <- struct{}{}:
			default:
			}
		} else {
			observability.ConnectivityOnline.Set(0)
		}
	})
	return s
}

// Run loops until ctx is cancelled. Timer ticks are skipped while
// offline; an edge back online syncs immediately instead of waiting
// out the interval.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-s.kick:
			s.pass(ctx, TriggerEdge)

		case <-ticker.C:
			if !s.conn.Online() {
				continue
			}
			s.pass(ctx, TriggerTimer)
		}
	}
}

func (s *Scheduler) pass(ctx context.Context, trigger Trigger) {
	_, err := s.engine.SyncAll(ctx, trigger)
	if err != nil && !errors.Is(err, domain.ErrSyncInProgress) {
		log.Printf("[syncer] scheduled pass (%s) error: %v", trigger, err)
	}
}
