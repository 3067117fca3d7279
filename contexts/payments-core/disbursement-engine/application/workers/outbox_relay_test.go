package workers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/adapters/memory"
	"kobo/contexts/payments-core/disbursement-engine/application"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type collectPublisher struct {
	mu     sync.Mutex
	err    error
	topics []string
	events []ports.EventEnvelope
}

func (p *collectPublisher) Publish(_ context.Context, topic string, event ports.EventEnvelope) error {
	if p.err != nil {
		return p.err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topics = append(p.topics, topic)
	p.events = append(p.events, event)
	return nil
}

func appendLifecycleEvent(t *testing.T, store *memory.Store, state entities.State) ports.EventEnvelope {
	t.Helper()
	record := entities.DisbursementRecord{
		IdempotencyKey: uuid.NewString(),
		DisbursementID: uuid.NewString(),
		State:          state,
		UserID:         "user_relay",
		WalletID:       "wallet_relay",
		Amount:         decimal.NewFromInt(100),
		Currency:       "NGN",
		UpdatedAt:      time.Now().UTC(),
	}
	envelope := application.LifecycleEnvelope(uuid.NewString(), record)
	if err := store.AppendOutbox(context.Background(), envelope); err != nil {
		t.Fatalf("append outbox failed: %v", err)
	}
	return envelope
}

func TestOutboxRelayPublishesAndMarks(t *testing.T) {
	store := memory.NewStore()
	publisher := &collectPublisher{}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, BatchSize: 10}

	appended := appendLifecycleEvent(t, store, entities.StateSuccess)

	if err := relay.RunOnce(context.Background()); err != nil {
		t.Fatalf("run once failed: %v", err)
	}
	if len(publisher.events) != 1 {
		t.Fatalf("expected one published event, got %d", len(publisher.events))
	}
	if publisher.topics[0] != application.EventDisbursementSucceeded {
		t.Fatalf("expected topic %q, got %q", application.EventDisbursementSucceeded, publisher.topics[0])
	}
	if publisher.events[0].EventID != appended.EventID {
		t.Fatalf("published event id %q does not match appended %q", publisher.events[0].EventID, appended.EventID)
	}

	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("outbox list failed: %v", err)
	}
	if len(pending) != 0 {
		t.Fatalf("published rows must leave the pending set, %d remain", len(pending))
	}
}

func TestOutboxRelayKeepsRowsOnPublishFailure(t *testing.T) {
	store := memory.NewStore()
	publisher := &collectPublisher{err: errors.New("broker unavailable")}
	relay := OutboxRelay{Outbox: store, Publisher: publisher, Clock: store, BatchSize: 10}

	appendLifecycleEvent(t, store, entities.StateFailed)

	if err := relay.RunOnce(context.Background()); err == nil {
		t.Fatal("expected publish failure to surface")
	}
	pending, err := store.ListPendingOutbox(context.Background(), 10)
	if err != nil {
		t.Fatalf("outbox list failed: %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("unpublished row must stay pending, got %d", len(pending))
	}
}
