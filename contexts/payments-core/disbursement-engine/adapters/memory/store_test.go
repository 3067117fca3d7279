package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"

	"github.com/shopspring/decimal"
)

func record(key string, state entities.State, version int64) entities.DisbursementRecord {
	now := time.Now().UTC()
	return entities.DisbursementRecord{
		IdempotencyKey: key,
		DisbursementID: "disb_" + key,
		State:          state,
		UserID:         "user_store",
		WalletID:       "wallet_store",
		Amount:         decimal.NewFromInt(100),
		Currency:       "NGN",
		CreatedAt:      now,
		UpdatedAt:      now,
		Version:        version,
	}
}

func TestCreateRecordFirstWriterWins(t *testing.T) {
	store := NewStore()

	created, err := store.CreateRecord(context.Background(), record("key-1", entities.StateReceived, 1))
	if err != nil || !created {
		t.Fatalf("first create failed: created=%v err=%v", created, err)
	}
	created, err = store.CreateRecord(context.Background(), record("key-1", entities.StateReceived, 1))
	if err != nil {
		t.Fatalf("second create errored: %v", err)
	}
	if created {
		t.Fatal("second create for the same key must lose")
	}
}

func TestUpdateRecordVersionGuard(t *testing.T) {
	store := NewStore()
	if _, err := store.CreateRecord(context.Background(), record("key-2", entities.StateReceived, 1)); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	next := record("key-2", entities.StateInProgress, 2)
	ok, err := store.UpdateRecord(context.Background(), 1, next)
	if err != nil || !ok {
		t.Fatalf("guarded update failed: ok=%v err=%v", ok, err)
	}

	stale := record("key-2", entities.StateSuccess, 2)
	ok, err = store.UpdateRecord(context.Background(), 1, stale)
	if err != nil {
		t.Fatalf("stale update errored: %v", err)
	}
	if ok {
		t.Fatal("update with a stale expected version must lose")
	}

	_, err = store.UpdateRecord(context.Background(), 1, record("missing", entities.StateSuccess, 2))
	if !errors.Is(err, domainerrors.ErrNotFound) {
		t.Fatalf("expected not found for missing key, got %v", err)
	}
}

func TestListDueReconciliationsFiltersAndOrders(t *testing.T) {
	store := NewStore()
	now := time.Now().UTC()

	early := record("due-early", entities.StatePending, 2)
	earlyAt := now.Add(-2 * time.Minute)
	early.NextReconciliationAt = &earlyAt

	late := record("due-late", entities.StatePending, 2)
	lateAt := now.Add(-time.Minute)
	late.NextReconciliationAt = &lateAt

	future := record("due-future", entities.StatePending, 2)
	futureAt := now.Add(time.Hour)
	future.NextReconciliationAt = &futureAt

	settled := record("settled", entities.StateSuccess, 3)

	for _, r := range []entities.DisbursementRecord{late, early, future, settled} {
		if _, err := store.CreateRecord(context.Background(), r); err != nil {
			t.Fatalf("create %s failed: %v", r.IdempotencyKey, err)
		}
	}

	due, err := store.ListDueReconciliations(context.Background(), now, 10)
	if err != nil {
		t.Fatalf("list due failed: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("expected 2 due records, got %d", len(due))
	}
	if due[0].IdempotencyKey != "due-early" || due[1].IdempotencyKey != "due-late" {
		t.Fatalf("expected oldest-due-first order, got %s then %s", due[0].IdempotencyKey, due[1].IdempotencyKey)
	}
}

func TestListRecordsByUserPagination(t *testing.T) {
	store := NewStore()
	base := time.Now().UTC()

	for i := 0; i < 3; i++ {
		r := record("user-key-"+string(rune('a'+i)), entities.StateSuccess, 3)
		r.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if _, err := store.CreateRecord(context.Background(), r); err != nil {
			t.Fatalf("create failed: %v", err)
		}
	}

	page, err := store.ListRecordsByUser(context.Background(), "user_store", 2, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(page) != 2 {
		t.Fatalf("expected page of 2, got %d", len(page))
	}
	if !page[0].CreatedAt.After(page[1].CreatedAt) {
		t.Fatal("expected newest-first ordering")
	}

	rest, err := store.ListRecordsByUser(context.Background(), "user_store", 2, 2)
	if err != nil {
		t.Fatalf("list offset failed: %v", err)
	}
	if len(rest) != 1 {
		t.Fatalf("expected 1 record on the second page, got %d", len(rest))
	}
}
