// Package ops adapts the manual-resolution sink onto the event bus:
// records parked in UNKNOWN are published to an operations topic for a
// human to reconcile against the bank statement.
package ops

import (
	"context"
	"log/slog"
	"strings"

	application "kobo/contexts/payments-core/disbursement-engine/application"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"
)

type PublisherSink struct {
	Publisher ports.EventPublisher
	IDGen     ports.IDGenerator
	Topic     string
	Logger    *slog.Logger
}

func (s PublisherSink) NotifyUnknown(ctx context.Context, record entities.DisbursementRecord) error {
	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return err
	}
	envelope := application.LifecycleEnvelope(eventID, record)
	if err := s.Publisher.Publish(ctx, s.topic(), envelope); err != nil {
		return err
	}
	application.ResolveLogger(s.Logger).Info("unknown disbursement escalated",
		"event", "disbursement_unknown_escalated",
		"module", "payments-core/disbursement-engine",
		"layer", "adapter",
		"idempotency_key", record.IdempotencyKey,
		"disbursement_id", record.DisbursementID,
		"attempt_count", record.AttemptCount,
	)
	return nil
}

func (s PublisherSink) topic() string {
	if strings.TrimSpace(s.Topic) == "" {
		return "disbursement.ops.unknown"
	}
	return s.Topic
}
