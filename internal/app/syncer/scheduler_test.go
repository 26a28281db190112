package syncer

import (
	"context"
	"testing"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/connectivity"
)

func TestScheduler_SyncsOnOnlineEdge(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)
	monitor := connectivity.NewMonitor(false)

	// Long interval: only the edge can trigger the pass.
	s := NewScheduler(e, monitor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	monitor.SetOnline(true)

	deadline := time.After(2 * time.Second)
	for gw.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("online edge never triggered a sync pass")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	waitForStatus(t, store, "tx-a", domain.StatusSynced)
}

func TestScheduler_OfflineEdgeDoesNotTrigger(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)
	monitor := connectivity.NewMonitor(true)
	s := NewScheduler(e, monitor, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	monitor.SetOnline(false)
	time.Sleep(50 * time.Millisecond)

	if gw.callCount() != 0 {
		t.Errorf("gateway calls = %d after offline edge, want 0", gw.callCount())
	}
}

func TestScheduler_TimerSkipsWhileOffline(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)
	monitor := connectivity.NewMonitor(false)
	s := NewScheduler(e, monitor, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	time.Sleep(60 * time.Millisecond)
	if gw.callCount() != 0 {
		t.Errorf("gateway calls = %d while offline, want 0", gw.callCount())
	}
}

func TestScheduler_TimerSyncsWhileOnline(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)
	monitor := connectivity.NewMonitor(true)
	s := NewScheduler(e, monitor, 10*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	deadline := time.After(2 * time.Second)
	for gw.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("timer never triggered a sync pass")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	waitForStatus(t, store, "tx-a", domain.StatusSynced)
}

func waitForStatus(t *testing.T, store domain.Store, id string, want domain.Status) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		tx, err := store.Get(id)
		if err == nil && tx.Status == want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("record %s never reached status %q", id, want)
		default:
			time.Sleep(time.Millisecond)
		}
	}
}
