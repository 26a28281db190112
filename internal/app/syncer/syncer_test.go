package syncer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/sqlite"
)

// fakeGateway scripts batch verdicts per call.
type fakeGateway struct {
	verdicts func(txs []*domain.Transaction) ([]domain.SyncResult, error)
	block    chan struct{} // non-nil: SubmitBatch waits until closed

	mu      sync.Mutex
	calls   int
	batches [][]string
}

func (g *fakeGateway) Submit(ctx context.Context, tx *domain.Transaction) error {
	return errors.New("not used in syncer tests")
}

func (g *fakeGateway) SubmitBatch(ctx context.Context, txs []*domain.Transaction) ([]domain.SyncResult, error) {
	ids := make([]string, len(txs))
	for i, tx := range txs {
		ids[i] = tx.ID
	}
	g.mu.Lock()
	g.calls++
	g.batches = append(g.batches, ids)
	g.mu.Unlock()
	if g.block != nil {
		<-g.block
	}
	return g.verdicts(txs)
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

func allSucceed(txs []*domain.Transaction) ([]domain.SyncResult, error) {
	out := make([]domain.SyncResult, len(txs))
	for i, tx := range txs {
		out[i] = domain.SyncResult{TransactionID: tx.ID, Success: true}
	}
	return out, nil
}

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.Open(filepath.Join(t.TempDir(), "queue.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func seed(t *testing.T, s *sqlite.Store, id string, status domain.Status, created time.Time, retries int) {
	t.Helper()
	err := s.Put(&domain.Transaction{
		ID: id,
		Items: []domain.LineItem{
			{ProductID: "sku-1", Name: "coffee", Quantity: 1, UnitPriceCents: 500, LineTotalCents: 500},
		},
		SubtotalCents: 500,
		TotalCents:    500,
		PaymentMethod: domain.PaymentCash,
		CreatedAt:     created,
		Status:        status,
		Retries:       retries,
	})
	if err != nil {
		t.Fatal(err)
	}
}

// ─── SyncAll ────────────────────────────────────────────────────────────────

func TestSyncAll_MixedVerdicts(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seed(t, store, "tx-a", domain.StatusPending, now, 0)
	seed(t, store, "tx-b", domain.StatusPending, now.Add(time.Second), 0)
	seed(t, store, "tx-c", domain.StatusPending, now.Add(2*time.Second), 0)

	gw := &fakeGateway{verdicts: func(txs []*domain.Transaction) ([]domain.SyncResult, error) {
		out, _ := allSucceed(txs)
		out[1].Success = false
		out[1].Error = "card declined"
		return out, nil
	}}
	e := New(store, gw, time.Second)

	report, err := e.SyncAll(context.Background(), TriggerManual)
	if err != nil {
		t.Fatalf("SyncAll() error: %v", err)
	}
	if report.Attempted != 3 || report.Synced != 2 || report.Failed != 1 {
		t.Errorf("report = %+v, want attempted=3 synced=2 failed=1", report)
	}

	sum, _ := store.Summary()
	if sum.Synced != 2 || sum.Failed != 1 {
		t.Errorf("summary = %+v, want 2 synced / 1 failed", sum)
	}
	if sum.Syncing != 0 {
		t.Errorf("%d records stuck in syncing after the pass", sum.Syncing)
	}

	failed, _ := store.Get("tx-b")
	if failed.Retries != 1 {
		t.Errorf("failed record retries = %d, want 1", failed.Retries)
	}
}

func TestSyncAll_OrdersBatchByCreatedAt(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	// A failed record older than a pending one must come first.
	seed(t, store, "tx-old-failed", domain.StatusFailed, now, 2)
	seed(t, store, "tx-new-pending", domain.StatusPending, now.Add(time.Second), 0)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)

	if _, err := e.SyncAll(context.Background(), TriggerTimer); err != nil {
		t.Fatal(err)
	}
	if len(gw.batches) != 1 {
		t.Fatalf("gateway calls = %d, want 1", len(gw.batches))
	}
	got := gw.batches[0]
	if len(got) != 2 || got[0] != "tx-old-failed" || got[1] != "tx-new-pending" {
		t.Errorf("batch order = %v, want [tx-old-failed tx-new-pending]", got)
	}
}

func TestSyncAll_EmptyQueueSkipsCall(t *testing.T) {
	store := newTestStore(t)
	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)

	report, err := e.SyncAll(context.Background(), TriggerTimer)
	if err != nil {
		t.Fatalf("SyncAll() error: %v", err)
	}
	if report.Attempted != 0 {
		t.Errorf("attempted = %d, want 0", report.Attempted)
	}
	if gw.calls != 0 {
		t.Errorf("gateway calls = %d, want 0 on empty queue", gw.calls)
	}
}

func TestSyncAll_TotalCallFailure(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seed(t, store, "tx-a", domain.StatusPending, now, 0)
	seed(t, store, "tx-b", domain.StatusFailed, now.Add(time.Second), 1)

	gw := &fakeGateway{verdicts: func([]*domain.Transaction) ([]domain.SyncResult, error) {
		return nil, fmt.Errorf("batch sync: %w", domain.ErrUnreachable)
	}}
	e := New(store, gw, time.Second)

	report, err := e.SyncAll(context.Background(), TriggerEdge)
	if err != nil {
		t.Fatalf("SyncAll() error: %v", err)
	}
	if report.Failed != 2 || report.Synced != 0 {
		t.Errorf("report = %+v, want all failed", report)
	}

	// Every in-flight record resolved, none orphaned in syncing.
	sum, _ := store.Summary()
	if sum.Syncing != 0 {
		t.Errorf("%d records orphaned in syncing", sum.Syncing)
	}
	a, _ := store.Get("tx-a")
	b, _ := store.Get("tx-b")
	if a.Status != domain.StatusFailed || a.Retries != 1 {
		t.Errorf("tx-a = %s/%d, want failed/1", a.Status, a.Retries)
	}
	if b.Status != domain.StatusFailed || b.Retries != 2 {
		t.Errorf("tx-b = %s/%d, want failed/2", b.Status, b.Retries)
	}
}

func TestSyncAll_MissingVerdictFails(t *testing.T) {
	store := newTestStore(t)
	now := time.Now()
	seed(t, store, "tx-a", domain.StatusPending, now, 0)
	seed(t, store, "tx-b", domain.StatusPending, now.Add(time.Second), 0)

	// Server answers for tx-a only; tx-b gets no verdict.
	gw := &fakeGateway{verdicts: func(txs []*domain.Transaction) ([]domain.SyncResult, error) {
		return []domain.SyncResult{{TransactionID: "tx-a", Success: true}}, nil
	}}
	e := New(store, gw, time.Second)

	if _, err := e.SyncAll(context.Background(), TriggerManual); err != nil {
		t.Fatal(err)
	}

	b, _ := store.Get("tx-b")
	if b.Status != domain.StatusFailed || b.Retries != 1 {
		t.Errorf("unanswered record = %s/%d, want failed/1", b.Status, b.Retries)
	}
}

func TestSyncAll_MonotonicRetries(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: func(txs []*domain.Transaction) ([]domain.SyncResult, error) {
		return []domain.SyncResult{{TransactionID: "tx-a", Success: false, Error: "declined"}}, nil
	}}
	e := New(store, gw, time.Second)

	for want := 1; want <= 3; want++ {
		if _, err := e.SyncAll(context.Background(), TriggerTimer); err != nil {
			t.Fatal(err)
		}
		got, _ := store.Get("tx-a")
		if got.Retries != want {
			t.Fatalf("after pass %d: retries = %d, want %d", want, got.Retries, want)
		}
	}
}

func TestSyncAll_SingleFlight(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 0)

	gw := &fakeGateway{verdicts: allSucceed, block: make(chan struct{})}
	e := New(store, gw, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := e.SyncAll(context.Background(), TriggerTimer)
		done <- err
	}()

	// Wait until the first pass is inside the gateway call.
	deadline := time.After(2 * time.Second)
	for gw.callCount() == 0 {
		select {
		case <-deadline:
			t.Fatal("first pass never reached the gateway")
		default:
			time.Sleep(time.Millisecond)
		}
	}

	_, err := e.SyncAll(context.Background(), TriggerEdge)
	if !errors.Is(err, domain.ErrSyncInProgress) {
		t.Errorf("concurrent SyncAll() error = %v, want ErrSyncInProgress", err)
	}

	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("first pass error: %v", err)
	}
	if gw.callCount() != 1 {
		t.Errorf("gateway calls = %d, want 1 (no double submit)", gw.callCount())
	}
}

// ─── SyncOne ────────────────────────────────────────────────────────────────

func TestSyncOne(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusPending, time.Now(), 2)

	gw := &fakeGateway{verdicts: allSucceed}
	e := New(store, gw, time.Second)

	report, err := e.SyncOne(context.Background(), "tx-a")
	if err != nil {
		t.Fatalf("SyncOne() error: %v", err)
	}
	if report.Synced != 1 {
		t.Errorf("synced = %d, want 1", report.Synced)
	}
	got, _ := store.Get("tx-a")
	if got.Status != domain.StatusSynced {
		t.Errorf("status = %q, want synced", got.Status)
	}
}

func TestSyncOne_NotRetryable(t *testing.T) {
	store := newTestStore(t)
	seed(t, store, "tx-a", domain.StatusSynced, time.Now(), 0)

	e := New(store, &fakeGateway{verdicts: allSucceed}, time.Second)
	_, err := e.SyncOne(context.Background(), "tx-a")
	if !errors.Is(err, domain.ErrNotRetryable) {
		t.Errorf("SyncOne(synced) error = %v, want ErrNotRetryable", err)
	}
}

// ─── Merge helper ───────────────────────────────────────────────────────────

func TestMergeByCreatedAt(t *testing.T) {
	now := time.Now()
	mk := func(id string, off time.Duration) *domain.Transaction {
		return &domain.Transaction{ID: id, CreatedAt: now.Add(off)}
	}

	a := []*domain.Transaction{mk("a1", 0), mk("a2", 3*time.Second)}
	b := []*domain.Transaction{mk("b1", time.Second), mk("b2", 2*time.Second)}

	out := mergeByCreatedAt(a, b)
	want := []string{"a1", "b1", "b2", "a2"}
	if len(out) != len(want) {
		t.Fatalf("merged length = %d, want %d", len(out), len(want))
	}
	for i, id := range want {
		if out[i].ID != id {
			t.Errorf("out[%d] = %q, want %q", i, out[i].ID, id)
		}
	}
}
