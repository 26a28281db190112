package submitter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/tillsync/tillsync/internal/domain"
	"github.com/tillsync/tillsync/internal/infra/connectivity"
	"github.com/tillsync/tillsync/internal/infra/sqlite"
)

// fakeGateway scripts the remote system's behavior.
type fakeGateway struct {
	submitErr error
	submitted []string
}

func (g *fakeGateway) Submit(ctx context.Context, tx *domain.Transaction) error {
	g.submitted = append(g.submitted, tx.ID)
	return g.submitErr
}

func (g *fakeGateway) SubmitBatch(ctx context.Context, txs []*domain.Transaction) ([]domain.SyncResult, error) {
	return nil, errors.New("not used in submitter tests")
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

func testDraft(totalCents int64) domain.Draft {
	return domain.Draft{
		Items: []domain.LineItem{
			{ProductID: "sku-1", Name: "coffee", Quantity: 1, UnitPriceCents: totalCents, LineTotalCents: totalCents},
		},
		SubtotalCents: totalCents,
		TaxCents:      0,
		TotalCents:    totalCents,
		PaymentMethod: domain.PaymentCash,
	}
}

func TestSubmit_OnlineImmediateSuccess(t *testing.T) {
	store := newTestStore(t)
	gw := &fakeGateway{}
	conn := connectivity.NewMonitor(true)
	sub := New(store, gw, conn, time.Second)

	receipt, err := sub.Submit(context.Background(), testDraft(1081))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if receipt.Outcome != OutcomeCompleted {
		t.Errorf("outcome = %q, want completed", receipt.Outcome)
	}
	if receipt.Transaction.ID == "" {
		t.Error("transaction id not assigned")
	}
	if len(gw.submitted) != 1 {
		t.Errorf("gateway calls = %d, want 1", len(gw.submitted))
	}

	// Immediate success never touches the durable store.
	sum, _ := store.Summary()
	if sum.Total != 0 {
		t.Errorf("store has %d records after immediate success, want 0", sum.Total)
	}
}

func TestSubmit_OfflineQueues(t *testing.T) {
	store := newTestStore(t)
	gw := &fakeGateway{}
	conn := connectivity.NewMonitor(false)
	sub := New(store, gw, conn, time.Second)

	receipt, err := sub.Submit(context.Background(), testDraft(500))
	if err != nil {
		t.Fatalf("Submit() error: %v", err)
	}
	if receipt.Outcome != OutcomeQueued {
		t.Errorf("outcome = %q, want queued", receipt.Outcome)
	}
	if len(gw.submitted) != 0 {
		t.Error("gateway must not be called while offline")
	}

	got, err := store.Get(receipt.Transaction.ID)
	if err != nil {
		t.Fatalf("queued sale missing from store: %v", err)
	}
	if got.Status != domain.StatusPending {
		t.Errorf("status = %q, want pending", got.Status)
	}
	if !got.Offline {
		t.Error("offline flag = false, want true")
	}
	if got.Retries != 0 {
		t.Errorf("retries = %d, want 0", got.Retries)
	}
}

func TestSubmit_NetworkFailureQueues(t *testing.T) {
	store := newTestStore(t)
	gw := &fakeGateway{submitErr: fmt.Errorf("submit: %w", domain.ErrUnreachable)}
	conn := connectivity.NewMonitor(true)
	sub := New(store, gw, conn, time.Second)

	receipt, err := sub.Submit(context.Background(), testDraft(500))
	if err != nil {
		t.Fatalf("network failure must not surface to the cashier: %v", err)
	}
	if receipt.Outcome != OutcomeQueued {
		t.Errorf("outcome = %q, want queued", receipt.Outcome)
	}

	got, _ := store.Get(receipt.Transaction.ID)
	if got == nil {
		t.Fatal("sale not queued after network failure")
	}
	// Created while the monitor said online — the flag records the
	// creation context, not the attempt result.
	if got.Offline {
		t.Error("offline flag = true for online-but-failed submission")
	}
}

func TestSubmit_BusinessRejectionSurfaces(t *testing.T) {
	store := newTestStore(t)
	gw := &fakeGateway{submitErr: fmt.Errorf("invalid payment: %w", domain.ErrRejected)}
	conn := connectivity.NewMonitor(true)
	sub := New(store, gw, conn, time.Second)

	_, err := sub.Submit(context.Background(), testDraft(500))
	if !errors.Is(err, domain.ErrRejected) {
		t.Fatalf("Submit() error = %v, want ErrRejected", err)
	}

	// Rejections are not queued; retrying would not change the verdict.
	sum, _ := store.Summary()
	if sum.Total != 0 {
		t.Errorf("store has %d records after rejection, want 0", sum.Total)
	}
}

func TestSubmit_InvalidDraftRejected(t *testing.T) {
	store := newTestStore(t)
	sub := New(store, &fakeGateway{}, connectivity.NewMonitor(true), time.Second)

	d := testDraft(500)
	d.TotalCents = 9999
	_, err := sub.Submit(context.Background(), d)
	if !errors.Is(err, domain.ErrTotalMismatch) {
		t.Errorf("Submit() error = %v, want ErrTotalMismatch", err)
	}
}

func TestSubmit_PersistenceFailureIsHardError(t *testing.T) {
	store := newTestStore(t)
	store.Close() // queue db gone: the last line of defense fails

	gw := &fakeGateway{}
	conn := connectivity.NewMonitor(false)
	sub := New(store, gw, conn, time.Second)

	_, err := sub.Submit(context.Background(), testDraft(500))
	if err == nil {
		t.Fatal("Submit() must surface a persistence failure")
	}
}

func TestSubmit_UniqueIDs(t *testing.T) {
	store := newTestStore(t)
	sub := New(store, &fakeGateway{}, connectivity.NewMonitor(false), time.Second)

	seen := map[string]bool{}
	for i := 0; i < 10; i++ {
		r, err := sub.Submit(context.Background(), testDraft(100))
		if err != nil {
			t.Fatal(err)
		}
		if seen[r.Transaction.ID] {
			t.Fatalf("duplicate id generated: %s", r.Transaction.ID)
		}
		seen[r.Transaction.ID] = true
	}
}
