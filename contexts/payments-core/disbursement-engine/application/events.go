package application

import (
	"strings"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"
)

const (
	EventDisbursementSucceeded = "disbursement.succeeded"
	EventDisbursementFailed    = "disbursement.failed"
	EventDisbursementUnknown   = "disbursement.unknown"
)

// LifecycleEnvelope builds the event emitted when a record reaches
// SUCCESS, FAILED, or UNKNOWN.
func LifecycleEnvelope(eventID string, record entities.DisbursementRecord) ports.EventEnvelope {
	eventType := EventDisbursementUnknown
	switch record.State {
	case entities.StateSuccess:
		eventType = EventDisbursementSucceeded
	case entities.StateFailed:
		eventType = EventDisbursementFailed
	}

	return ports.EventEnvelope{
		EventID:        strings.TrimSpace(eventID),
		EventType:      eventType,
		SourceService:  "disbursement-engine",
		OccurredAtUTC:  record.UpdatedAt.UTC(),
		CorrelationID:  record.IdempotencyKey,
		EntityType:     "disbursement",
		EntityID:       record.DisbursementID,
		PayloadVersion: 1,
		Payload: map[string]any{
			"disbursement_id":    record.DisbursementID,
			"idempotency_key":    record.IdempotencyKey,
			"state":              string(record.State),
			"user_id":            record.UserID,
			"wallet_id":          record.WalletID,
			"amount":             record.Amount.StringFixed(2),
			"currency":           record.Currency,
			"external_reference": record.ExternalReference,
			"failure_reason":     record.FailureReason,
			"attempt_count":      record.AttemptCount,
		},
	}
}
