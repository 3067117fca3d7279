package ports

import (
	"context"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/internal/shared/events"

	"github.com/shopspring/decimal"
)

// SubmitInput carries the business parameters of one logical disbursement.
type SubmitInput struct {
	UserID      string
	WalletID    string
	Destination entities.Destination
	Amount      decimal.Decimal
	Currency    string
}

// RecordStore is the single shared mutable resource. All mutual exclusion
// the engine relies on lives here: a uniqueness guarantee on the
// idempotency key at creation, and a version-guarded compare-and-swap on
// every later mutation.
type RecordStore interface {
	// CreateRecord atomically creates the record if no record exists for
	// its idempotency key. It returns false (and no error) when the key
	// is already present.
	CreateRecord(ctx context.Context, record entities.DisbursementRecord) (bool, error)

	GetRecord(ctx context.Context, idempotencyKey string) (entities.DisbursementRecord, bool, error)

	// UpdateRecord persists record only if the stored version still equals
	// expectedVersion. Callers must set record.Version to
	// expectedVersion+1. It returns false (and no error) on a lost race.
	UpdateRecord(ctx context.Context, expectedVersion int64, record entities.DisbursementRecord) (bool, error)

	// ListDueReconciliations returns PENDING records whose
	// next_reconciliation_at is at or before now, oldest due first.
	ListDueReconciliations(ctx context.Context, now time.Time, limit int) ([]entities.DisbursementRecord, error)

	ListRecordsByUser(ctx context.Context, userID string, limit int, offset int) ([]entities.DisbursementRecord, error)
}

// TransferStatus is the downstream network's classification of a transfer.
type TransferStatus string

const (
	TransferCompleted TransferStatus = "completed"
	TransferRejected  TransferStatus = "rejected"
	TransferPending   TransferStatus = "pending"
)

type TransferRequest struct {
	IdempotencyKey string
	DisbursementID string
	Destination    entities.Destination
	Amount         decimal.Decimal
	Currency       string
}

type TransferResult struct {
	Reference string
	Status    TransferStatus
	Reason    string
}

type StatusResult struct {
	Status    TransferStatus
	Reference string
	Reason    string
}

// TransportClient is the downstream bank/switch client. Transfer errors
// are treated as ambiguous outcomes by the engine; only an explicit
// TransferRejected status is a definitive failure.
type TransportClient interface {
	Transfer(ctx context.Context, request TransferRequest) (TransferResult, error)
	// QueryStatus looks a transfer up by downstream reference, or by
	// idempotency key when no reference was ever returned.
	QueryStatus(ctx context.Context, referenceOrKey string) (StatusResult, error)
}

// ManualResolutionSink receives records the engine gave up reconciling.
// It is fire-and-forget: failures are logged, never propagated.
type ManualResolutionSink interface {
	NotifyUnknown(ctx context.Context, record entities.DisbursementRecord) error
}

type EventEnvelope = events.Envelope

type OutboxMessage struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	CreatedAt    time.Time
}

type OutboxWriter interface {
	AppendOutbox(ctx context.Context, envelope EventEnvelope) error
}

type OutboxRepository interface {
	ListPendingOutbox(ctx context.Context, limit int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error
}

type EventPublisher interface {
	Publish(ctx context.Context, topic string, event EventEnvelope) error
}

type Clock interface {
	Now() time.Time
}

type IDGenerator interface {
	NewID(ctx context.Context) (string, error)
}
