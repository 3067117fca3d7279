package application

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/adapters/memory"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/shared/backoff"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type scriptedTransport struct {
	mu      sync.Mutex
	calls   int
	latency time.Duration
	result  ports.TransferResult
	err     error
}

func (t *scriptedTransport) Transfer(ctx context.Context, _ ports.TransferRequest) (ports.TransferResult, error) {
	t.mu.Lock()
	t.calls++
	t.mu.Unlock()

	if t.latency > 0 {
		select {
		case <-ctx.Done():
			return ports.TransferResult{}, ctx.Err()
		case <-time.After(t.latency):
		}
	}
	return t.result, t.err
}

func (t *scriptedTransport) QueryStatus(context.Context, string) (ports.StatusResult, error) {
	return ports.StatusResult{Status: ports.TransferPending}, nil
}

func (t *scriptedTransport) transferCalls() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.calls
}

func newTestService(store *memory.Store, transport ports.TransportClient) Service {
	return Service{
		Records:          store,
		Executor:         Executor{Transport: transport, Timeout: time.Second},
		Outbox:           store,
		Clock:            store,
		IDGen:            store,
		Backoff:          backoff.NewConstant(time.Minute),
		WaitTimeout:      2 * time.Second,
		WaitPollInterval: 10 * time.Millisecond,
	}
}

func sampleInput() ports.SubmitInput {
	return ports.SubmitInput{
		UserID:   "user_1",
		WalletID: "wallet_1",
		Destination: entities.Destination{
			BankCode:      "058",
			AccountNumber: "0123456789",
			AccountName:   "Ada Obi",
		},
		Amount:   decimal.NewFromInt(2500),
		Currency: "NGN",
	}
}

func TestSubmitOwnerCompletesTransfer(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{
		result: ports.TransferResult{Reference: "TRF-NGN-000042", Status: ports.TransferCompleted},
	}
	service := newTestService(store, transport)

	record, replayed, err := service.Submit(context.Background(), uuid.NewString(), sampleInput())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if replayed {
		t.Fatal("fresh submit must not be marked replayed")
	}
	if record.State != entities.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", record.State)
	}
	if record.ExternalReference != "TRF-NGN-000042" {
		t.Fatalf("unexpected external reference %q", record.ExternalReference)
	}
	if record.Version != 3 {
		t.Fatalf("expected version 3 after create + in-progress + settle, got %d", record.Version)
	}
}

func TestSubmitReplaysTerminalResult(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{
		result: ports.TransferResult{Reference: "TRF-NGN-000007", Status: ports.TransferCompleted},
	}
	service := newTestService(store, transport)
	key := uuid.NewString()

	first, _, err := service.Submit(context.Background(), key, sampleInput())
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	second, replayed, err := service.Submit(context.Background(), key, sampleInput())
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if !replayed {
		t.Fatal("retry with the same key and payload must replay")
	}
	if second.DisbursementID != first.DisbursementID {
		t.Fatalf("replay returned a different disbursement: %s vs %s", second.DisbursementID, first.DisbursementID)
	}
	if calls := transport.transferCalls(); calls != 1 {
		t.Fatalf("expected exactly one transfer call, got %d", calls)
	}
}

func TestSubmitRejectsChangedPayload(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{
		result: ports.TransferResult{Reference: "TRF-NGN-000011", Status: ports.TransferCompleted},
	}
	service := newTestService(store, transport)
	key := uuid.NewString()

	if _, _, err := service.Submit(context.Background(), key, sampleInput()); err != nil {
		t.Fatalf("first submit failed: %v", err)
	}

	changed := sampleInput()
	changed.Amount = decimal.NewFromInt(9999)
	_, _, err := service.Submit(context.Background(), key, changed)
	if !errors.Is(err, domainerrors.ErrConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
	if calls := transport.transferCalls(); calls != 1 {
		t.Fatalf("conflicting submit must not execute a transfer, got %d calls", calls)
	}
}

func TestSubmitKeyAndInputValidation(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(store, &scriptedTransport{})

	_, _, err := service.Submit(context.Background(), "", sampleInput())
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyMissing) {
		t.Fatalf("expected missing key error, got %v", err)
	}

	_, _, err = service.Submit(context.Background(), "not-a-uuid", sampleInput())
	if !errors.Is(err, domainerrors.ErrIdempotencyKeyInvalid) {
		t.Fatalf("expected invalid key error, got %v", err)
	}

	invalid := sampleInput()
	invalid.Amount = decimal.NewFromInt(-5)
	_, _, err = service.Submit(context.Background(), uuid.NewString(), invalid)
	if !errors.Is(err, domainerrors.ErrInvalidInput) {
		t.Fatalf("expected invalid input error, got %v", err)
	}
}

func TestSubmitAmbiguousOutcomeParksPending(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{err: errors.New("connection reset by peer")}
	service := newTestService(store, transport)

	record, replayed, err := service.Submit(context.Background(), uuid.NewString(), sampleInput())
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if replayed {
		t.Fatal("ambiguous submit must not be marked replayed")
	}
	if record.State != entities.StatePending {
		t.Fatalf("expected PENDING after ambiguous transfer, got %s", record.State)
	}
	if record.NextReconciliationAt == nil {
		t.Fatal("pending record must carry a reconciliation due time")
	}
}

func TestSubmitConcurrentCallsExecuteOnce(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{
		latency: 50 * time.Millisecond,
		result:  ports.TransferResult{Reference: "TRF-NGN-000099", Status: ports.TransferCompleted},
	}
	service := newTestService(store, transport)
	key := uuid.NewString()

	const callers = 8
	states := make([]entities.State, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			record, _, err := service.Submit(context.Background(), key, sampleInput())
			states[idx] = record.State
			errs[idx] = err
		}(i)
	}
	wg.Wait()

	if calls := transport.transferCalls(); calls != 1 {
		t.Fatalf("expected exactly one transfer across %d concurrent submits, got %d", callers, calls)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d failed: %v", i, errs[i])
		}
		if states[i] != entities.StateSuccess {
			t.Fatalf("caller %d got state %s, want SUCCESS", i, states[i])
		}
	}
}

func TestSubmitWaitTimeoutReturnsInFlightState(t *testing.T) {
	store := memory.NewStore()
	service := newTestService(store, &scriptedTransport{})
	service.WaitTimeout = 50 * time.Millisecond

	key := uuid.NewString()
	input := sampleInput()
	now := time.Now().UTC()
	seeded := entities.DisbursementRecord{
		IdempotencyKey:     key,
		DisbursementID:     uuid.NewString(),
		State:              entities.StateInProgress,
		RequestFingerprint: Fingerprint(input),
		UserID:             input.UserID,
		WalletID:           input.WalletID,
		Destination:        input.Destination,
		Amount:             input.Amount,
		Currency:           input.Currency,
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            2,
	}
	if _, err := store.CreateRecord(context.Background(), seeded); err != nil {
		t.Fatalf("seed record failed: %v", err)
	}

	record, replayed, err := service.Submit(context.Background(), key, input)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if replayed {
		t.Fatal("timed-out wait must not be marked replayed")
	}
	if record.State != entities.StateInProgress {
		t.Fatalf("expected best-known IN_PROGRESS state, got %s", record.State)
	}
}

func TestGetNeverExecutes(t *testing.T) {
	store := memory.NewStore()
	transport := &scriptedTransport{
		result: ports.TransferResult{Reference: "TRF-NGN-000123", Status: ports.TransferCompleted},
	}
	service := newTestService(store, transport)
	key := uuid.NewString()

	if _, _, err := service.Submit(context.Background(), key, sampleInput()); err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	record, err := service.Get(context.Background(), key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if record.State != entities.StateSuccess {
		t.Fatalf("expected SUCCESS, got %s", record.State)
	}
	if calls := transport.transferCalls(); calls != 1 {
		t.Fatalf("get must not trigger a transfer, got %d calls", calls)
	}

	_, err = service.Get(context.Background(), uuid.NewString())
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
