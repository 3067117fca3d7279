package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/adapters/memory"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/shared/backoff"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type statusTransport struct {
	mu     sync.Mutex
	calls  int
	status ports.StatusResult
	err    error
}

func (t *statusTransport) Transfer(context.Context, ports.TransferRequest) (ports.TransferResult, error) {
	return ports.TransferResult{}, errors.New("reconciler must not initiate transfers")
}

func (t *statusTransport) QueryStatus(context.Context, string) (ports.StatusResult, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()
	return t.status, t.err
}

func (t *statusTransport) queryCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

type collectSink struct {
	mu      sync.Mutex
	records []entities.DisbursementRecord
}

func (s *collectSink) NotifyUnknown(_ context.Context, record entities.DisbursementRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, record)
	return nil
}

func (s *collectSink) notified() []entities.DisbursementRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entities.DisbursementRecord(nil), s.records...)
}

func seedPending(t *testing.T, store *memory.Store, attemptCount int, due time.Time) entities.DisbursementRecord {
	t.Helper()
	now := time.Now().UTC()
	record := entities.DisbursementRecord{
		IdempotencyKey:       uuid.NewString(),
		DisbursementID:       uuid.NewString(),
		State:                entities.StatePending,
		RequestFingerprint:   "fp-reconcile",
		UserID:               "user_rec",
		WalletID:             "wallet_rec",
		Destination:          entities.Destination{BankCode: "058", AccountNumber: "0123456789", AccountName: "Ada Obi"},
		Amount:               decimal.NewFromInt(500),
		Currency:             "NGN",
		AttemptCount:         attemptCount,
		NextReconciliationAt: &due,
		CreatedAt:            now,
		UpdatedAt:            now,
		Version:              3,
	}
	created, err := store.CreateRecord(context.Background(), record)
	if err != nil || !created {
		t.Fatalf("seed pending record failed: created=%v err=%v", created, err)
	}
	return record
}

func newReconciler(store *memory.Store, transport ports.TransportClient, sink ports.ManualResolutionSink) Reconciler {
	return Reconciler{
		Records:     store,
		Transport:   transport,
		Sink:        sink,
		Outbox:      store,
		Clock:       store,
		IDGen:       store,
		Backoff:     backoff.NewConstant(time.Minute),
		MaxAttempts: 10,
		BatchSize:   100,
	}
}

func TestReconcilerCompletesPendingRecord(t *testing.T) {
	store := memory.NewStore()
	transport := &statusTransport{
		status: ports.StatusResult{Status: ports.TransferCompleted, Reference: "TRF-NGN-000777"},
	}
	reconciler := newReconciler(store, transport, &collectSink{})
	seeded := seedPending(t, store, 0, time.Now().UTC().Add(-time.Minute))

	if err := reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	record, found, err := store.GetRecord(context.Background(), seeded.IdempotencyKey)
	if err != nil || !found {
		t.Fatalf("record lookup failed: found=%v err=%v", found, err)
	}
	if record.State != entities.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", record.State)
	}
	if record.ExternalReference != "TRF-NGN-000777" {
		t.Fatalf("unexpected external reference %q", record.ExternalReference)
	}
	if record.Version != seeded.Version+1 {
		t.Fatalf("expected version %d, got %d", seeded.Version+1, record.Version)
	}
	if record.NextReconciliationAt != nil {
		t.Fatal("terminal record must not stay scheduled")
	}

	outbox, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("outbox list failed: %v", err)
	}
	if len(outbox) != 1 {
		t.Fatalf("expected one lifecycle event in the outbox, got %d", len(outbox))
	}
}

func TestReconcilerReschedulesWhenStillPending(t *testing.T) {
	store := memory.NewStore()
	transport := &statusTransport{status: ports.StatusResult{Status: ports.TransferPending}}
	reconciler := newReconciler(store, transport, &collectSink{})
	seeded := seedPending(t, store, 0, time.Now().UTC().Add(-time.Minute))

	if err := reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	record, _, err := store.GetRecord(context.Background(), seeded.IdempotencyKey)
	if err != nil {
		t.Fatalf("record lookup failed: %v", err)
	}
	if record.State != entities.StatePending {
		t.Fatalf("expected PENDING, got %s", record.State)
	}
	if record.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", record.AttemptCount)
	}
	if record.NextReconciliationAt == nil || !record.NextReconciliationAt.After(time.Now().UTC()) {
		t.Fatal("rescheduled record must be due in the future")
	}
}

func TestReconcilerQueryErrorCountsAsAttempt(t *testing.T) {
	store := memory.NewStore()
	transport := &statusTransport{err: errors.New("status endpoint unreachable")}
	reconciler := newReconciler(store, transport, &collectSink{})
	seeded := seedPending(t, store, 0, time.Now().UTC().Add(-time.Minute))

	if err := reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	record, _, err := store.GetRecord(context.Background(), seeded.IdempotencyKey)
	if err != nil {
		t.Fatalf("record lookup failed: %v", err)
	}
	if record.State != entities.StatePending {
		t.Fatalf("expected PENDING, got %s", record.State)
	}
	if record.AttemptCount != 1 {
		t.Fatalf("expected attempt count 1, got %d", record.AttemptCount)
	}
}

func TestReconcilerExhaustsToUnknown(t *testing.T) {
	store := memory.NewStore()
	transport := &statusTransport{status: ports.StatusResult{Status: ports.TransferPending}}
	sink := &collectSink{}
	reconciler := newReconciler(store, transport, sink)
	seeded := seedPending(t, store, reconciler.MaxAttempts-1, time.Now().UTC().Add(-time.Minute))

	if err := reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}

	record, _, err := store.GetRecord(context.Background(), seeded.IdempotencyKey)
	if err != nil {
		t.Fatalf("record lookup failed: %v", err)
	}
	if record.State != entities.StateUnknown {
		t.Fatalf("expected UNKNOWN after exhausting attempts, got %s", record.State)
	}
	if record.NextReconciliationAt != nil {
		t.Fatal("UNKNOWN record must never be rescheduled")
	}
	if notified := sink.notified(); len(notified) != 1 || notified[0].IdempotencyKey != seeded.IdempotencyKey {
		t.Fatalf("expected one manual-resolution notification for the record, got %d", len(notified))
	}

	// A later cycle must not pick the record up again.
	callsBefore := transport.queryCalls()
	if err := reconciler.RunOnce(context.Background()); err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if transport.queryCalls() != callsBefore {
		t.Fatal("UNKNOWN record was re-queried")
	}
}
