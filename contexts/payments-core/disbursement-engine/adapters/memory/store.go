package memory

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	"kobo/contexts/payments-core/disbursement-engine/ports"

	"github.com/google/uuid"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Store is an in-memory record store with the same atomic create-if-absent
// and compare-and-swap guarantees the engine demands from durable stores.
// Used for tests and single-process development runs.
type Store struct {
	mu sync.RWMutex

	records map[string]entities.DisbursementRecord
	outbox  map[string]outboxRecord
}

type outboxRecord struct {
	Message     ports.OutboxMessage
	Status      string
	PublishedAt *time.Time
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]entities.DisbursementRecord),
		outbox:  make(map[string]outboxRecord),
	}
}

func (s *Store) CreateRecord(_ context.Context, record entities.DisbursementRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.IdempotencyKey)
	if key == "" {
		return false, domainerrors.ErrIdempotencyKeyMissing
	}
	if _, exists := s.records[key]; exists {
		return false, nil
	}
	s.records[key] = record
	return true, nil
}

func (s *Store) GetRecord(_ context.Context, idempotencyKey string) (entities.DisbursementRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[strings.TrimSpace(idempotencyKey)]
	if !ok {
		return entities.DisbursementRecord{}, false, nil
	}
	return record, true, nil
}

func (s *Store) UpdateRecord(_ context.Context, expectedVersion int64, record entities.DisbursementRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.TrimSpace(record.IdempotencyKey)
	existing, ok := s.records[key]
	if !ok {
		return false, domainerrors.ErrNotFound
	}
	if existing.Version != expectedVersion {
		return false, nil
	}
	s.records[key] = record
	return true, nil
}

func (s *Store) ListDueReconciliations(_ context.Context, now time.Time, limit int) ([]entities.DisbursementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]entities.DisbursementRecord, 0)
	for _, record := range s.records {
		if record.State != entities.StatePending || record.NextReconciliationAt == nil {
			continue
		}
		if record.NextReconciliationAt.After(now) {
			continue
		}
		items = append(items, record)
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].NextReconciliationAt.Before(*items[j].NextReconciliationAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) ListRecordsByUser(_ context.Context, userID string, limit int, offset int) ([]entities.DisbursementRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	items := make([]entities.DisbursementRecord, 0)
	for _, record := range s.records {
		if record.UserID == strings.TrimSpace(userID) {
			items = append(items, record)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.After(items[j].CreatedAt)
	})
	if offset >= len(items) {
		return []entities.DisbursementRecord{}, nil
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return append([]entities.DisbursementRecord(nil), items[offset:end]...), nil
}

func (s *Store) AppendOutbox(_ context.Context, envelope ports.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidInput
	}
	if _, ok := s.outbox[outboxID]; ok {
		return nil
	}
	s.outbox[outboxID] = outboxRecord{
		Message: ports.OutboxMessage{
			OutboxID:     outboxID,
			EventType:    envelope.EventType,
			PartitionKey: envelope.EntityID,
			Payload:      payload,
			CreatedAt:    envelope.OccurredAtUTC,
		},
		Status: outboxStatusPending,
	}
	return nil
}

func (s *Store) ListPendingOutbox(_ context.Context, limit int) ([]ports.OutboxMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 100
	}
	items := make([]ports.OutboxMessage, 0)
	for _, row := range s.outbox {
		if row.Status == outboxStatusPending {
			items = append(items, row.Message)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		return items[i].CreatedAt.Before(items[j].CreatedAt)
	})
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (s *Store) MarkOutboxPublished(_ context.Context, outboxID string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, ok := s.outbox[strings.TrimSpace(outboxID)]
	if !ok {
		return domainerrors.ErrNotFound
	}
	ts := publishedAt.UTC()
	row.Status = outboxStatusPublished
	row.PublishedAt = &ts
	s.outbox[strings.TrimSpace(outboxID)] = row
	return nil
}

func (s *Store) Now() time.Time {
	return time.Now().UTC()
}

func (s *Store) NewID(_ context.Context) (string, error) {
	return uuid.NewString(), nil
}
