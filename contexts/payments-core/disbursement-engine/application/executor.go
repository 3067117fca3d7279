package application

import (
	"context"
	"log/slog"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"
)

// OutcomeKind classifies a downstream transfer attempt.
type OutcomeKind string

const (
	OutcomeSucceeded OutcomeKind = "succeeded"
	OutcomeFailed    OutcomeKind = "failed"
	OutcomeAmbiguous OutcomeKind = "ambiguous"
)

// Outcome is the executor's proposal for the record's next state.
type Outcome struct {
	Kind      OutcomeKind
	Reference string
	Reason    string
}

// Executor invokes the downstream transfer call once and classifies the
// result. It never retries: retry of ambiguous outcomes belongs to the
// reconciler once the record is PENDING. Only the record owner may call
// Execute, and at most once per IN_PROGRESS entry.
type Executor struct {
	Transport ports.TransportClient
	Timeout   time.Duration
	Logger    *slog.Logger
}

func (e Executor) Execute(ctx context.Context, record entities.DisbursementRecord) Outcome {
	logger := ResolveLogger(e.Logger)

	callCtx, cancel := context.WithTimeout(ctx, e.timeout())
	defer cancel()

	result, err := e.Transport.Transfer(callCtx, ports.TransferRequest{
		IdempotencyKey: record.IdempotencyKey,
		DisbursementID: record.DisbursementID,
		Destination:    record.Destination,
		Amount:         record.Amount,
		Currency:       record.Currency,
	})
	if err != nil {
		// Timeout, connection reset, cancellation, or any response the
		// transport cannot classify. The transfer may have landed, so the
		// result must be recorded as ambiguous, never dropped.
		logger.Warn("disbursement transfer outcome ambiguous",
			"event", "disbursement_transfer_ambiguous",
			"module", "payments-core/disbursement-engine",
			"layer", "application",
			"idempotency_key", record.IdempotencyKey,
			"disbursement_id", record.DisbursementID,
			"error", err.Error(),
		)
		return Outcome{Kind: OutcomeAmbiguous, Reason: err.Error()}
	}

	switch result.Status {
	case ports.TransferCompleted:
		return Outcome{Kind: OutcomeSucceeded, Reference: result.Reference}
	case ports.TransferRejected:
		return Outcome{Kind: OutcomeFailed, Reference: result.Reference, Reason: result.Reason}
	default:
		// The downstream accepted the call but has not settled it.
		return Outcome{Kind: OutcomeAmbiguous, Reference: result.Reference, Reason: result.Reason}
	}
}

func (e Executor) timeout() time.Duration {
	if e.Timeout <= 0 {
		return 10 * time.Second
	}
	return e.Timeout
}
