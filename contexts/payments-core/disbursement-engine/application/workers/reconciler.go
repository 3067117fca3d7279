package workers

import (
	"context"
	"log/slog"
	"time"

	application "kobo/contexts/payments-core/disbursement-engine/application"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/shared/backoff"
)

// Reconciler drives PENDING records to a terminal state by re-querying the
// downstream status endpoint. It only ever writes PENDING -> * transitions,
// so it cannot race the coordinator's ownership window; both sides are
// version-guarded regardless. A record that exhausts its attempt budget is
// parked in UNKNOWN and handed to the manual-resolution sink — the engine
// never guesses a terminal state.
type Reconciler struct {
	Records     ports.RecordStore
	Transport   ports.TransportClient
	Sink        ports.ManualResolutionSink
	Outbox      ports.OutboxWriter
	Clock       ports.Clock
	IDGen       ports.IDGenerator
	Backoff     backoff.Strategy
	MaxAttempts int
	BatchSize   int
	Logger      *slog.Logger
}

func (r Reconciler) RunOnce(ctx context.Context) error {
	logger := application.ResolveLogger(r.Logger)
	now := r.now()

	due, err := r.Records.ListDueReconciliations(ctx, now, r.batchSize())
	if err != nil {
		logger.Error("reconciliation listing failed",
			"event", "disbursement_reconcile_list_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "worker",
			"error", err.Error(),
		)
		return err
	}
	if len(due) == 0 {
		return nil
	}

	for _, record := range due {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := r.reconcileOne(ctx, record); err != nil {
			return err
		}
	}

	logger.Info("reconciliation cycle completed",
		"event", "disbursement_reconcile_cycle_completed",
		"module", "payments-core/disbursement-engine",
		"layer", "worker",
		"reconciled_count", len(due),
	)
	return nil
}

func (r Reconciler) reconcileOne(ctx context.Context, record entities.DisbursementRecord) error {
	logger := application.ResolveLogger(r.Logger)
	if record.State != entities.StatePending {
		return nil
	}

	reference := record.ExternalReference
	if reference == "" {
		// No downstream id was ever returned; fall back to a by-reference
		// lookup keyed on the idempotency key.
		reference = record.IdempotencyKey
	}

	status, err := r.Transport.QueryStatus(ctx, reference)
	if err != nil {
		// An unreachable status endpoint counts as one more ambiguous
		// attempt against the budget.
		status = ports.StatusResult{Status: ports.TransferPending, Reason: err.Error()}
	}

	next := record
	next.Version = record.Version + 1
	next.UpdatedAt = r.now()
	attempt := record.AttemptCount + 1

	switch status.Status {
	case ports.TransferCompleted:
		next.State = entities.StateSuccess
		if status.Reference != "" {
			next.ExternalReference = status.Reference
		}
		next.NextReconciliationAt = nil
	case ports.TransferRejected:
		next.State = entities.StateFailed
		next.FailureReason = status.Reason
		next.NextReconciliationAt = nil
	default:
		next.AttemptCount = attempt
		if attempt >= r.maxAttempts() {
			next.State = entities.StateUnknown
			next.NextReconciliationAt = nil
		} else {
			next.State = entities.StatePending
			due := r.now().Add(r.backoff().Delay(attempt))
			next.NextReconciliationAt = &due
		}
	}

	ok, err := r.Records.UpdateRecord(ctx, record.Version, next)
	if err != nil {
		return err
	}
	if !ok {
		// Another replica got there first; the fresh state is picked up
		// on the next cycle.
		logger.Debug("reconciliation write lost version guard",
			"event", "disbursement_reconcile_guard_lost",
			"module", "payments-core/disbursement-engine",
			"layer", "worker",
			"idempotency_key", record.IdempotencyKey,
		)
		return nil
	}

	if next.State.Terminal() {
		r.appendLifecycleOutbox(ctx, next)
	}
	if next.State == entities.StateUnknown {
		r.notifyUnknown(ctx, next)
	}

	logger.Info("disbursement reconciled",
		"event", "disbursement_reconciled",
		"module", "payments-core/disbursement-engine",
		"layer", "worker",
		"idempotency_key", next.IdempotencyKey,
		"disbursement_id", next.DisbursementID,
		"state", string(next.State),
		"attempt_count", next.AttemptCount,
	)
	return nil
}

// notifyUnknown is fire-and-forget: the sink sits off the engine's
// critical path, so failures are logged and swallowed.
func (r Reconciler) notifyUnknown(ctx context.Context, record entities.DisbursementRecord) {
	if r.Sink == nil {
		return
	}
	if err := r.Sink.NotifyUnknown(ctx, record); err != nil {
		application.ResolveLogger(r.Logger).Warn("manual resolution notify failed",
			"event", "disbursement_manual_notify_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "worker",
			"idempotency_key", record.IdempotencyKey,
			"disbursement_id", record.DisbursementID,
			"error", err.Error(),
		)
	}
}

func (r Reconciler) appendLifecycleOutbox(ctx context.Context, record entities.DisbursementRecord) {
	if r.Outbox == nil || r.IDGen == nil {
		return
	}
	logger := application.ResolveLogger(r.Logger)

	eventID, err := r.IDGen.NewID(ctx)
	if err != nil {
		logger.Warn("reconciler outbox event id generation failed",
			"event", "disbursement_outbox_append_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "worker",
			"idempotency_key", record.IdempotencyKey,
			"error", err.Error(),
		)
		return
	}
	if err := r.Outbox.AppendOutbox(ctx, application.LifecycleEnvelope(eventID, record)); err != nil {
		logger.Warn("reconciler outbox append failed",
			"event", "disbursement_outbox_append_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "worker",
			"idempotency_key", record.IdempotencyKey,
			"error", err.Error(),
		)
	}
}

func (r Reconciler) now() time.Time {
	if r.Clock == nil {
		return time.Now().UTC()
	}
	return r.Clock.Now().UTC()
}

func (r Reconciler) backoff() backoff.Strategy {
	if r.Backoff == nil {
		return backoff.NewExponentialWithJitter(30*time.Second, 15*time.Minute)
	}
	return r.Backoff
}

func (r Reconciler) maxAttempts() int {
	if r.MaxAttempts <= 0 {
		return 10
	}
	return r.MaxAttempts
}

func (r Reconciler) batchSize() int {
	if r.BatchSize <= 0 {
		return 100
	}
	return r.BatchSize
}
