package application

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	"kobo/internal/shared/backoff"

	"github.com/google/uuid"
)

// Service is the idempotency coordinator. For every incoming submit it
// decides whether to originate a new disbursement, wait on an in-flight
// one, replay a terminal result, or reject a conflicting reuse of the key.
// Ownership is arbitrated solely by the store's create-if-absent; every
// later mutation is version-guarded, so no process-local locking is needed
// and the service can be replicated freely.
type Service struct {
	Records          ports.RecordStore
	Executor         Executor
	Outbox           ports.OutboxWriter
	Clock            ports.Clock
	IDGen            ports.IDGenerator
	Backoff          backoff.Strategy
	WaitTimeout      time.Duration
	WaitPollInterval time.Duration
	CASRetryLimit    int
	Logger           *slog.Logger
}

// Submit executes one logical disbursement at most once. The returned bool
// reports whether the response was served from an already-settled record
// instead of a transfer performed by this call.
func (s Service) Submit(
	ctx context.Context,
	idempotencyKey string,
	input ports.SubmitInput,
) (entities.DisbursementRecord, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return entities.DisbursementRecord{}, false, domainerrors.ErrIdempotencyKeyMissing
	}
	if _, err := uuid.Parse(key); err != nil {
		return entities.DisbursementRecord{}, false, domainerrors.ErrIdempotencyKeyInvalid
	}
	if !isValidSubmitInput(input) {
		return entities.DisbursementRecord{}, false, domainerrors.ErrInvalidInput
	}

	fingerprint := Fingerprint(input)
	now := s.now()

	disbursementID, err := s.IDGen.NewID(ctx)
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}

	record := entities.DisbursementRecord{
		IdempotencyKey:     key,
		DisbursementID:     strings.TrimSpace(disbursementID),
		State:              entities.StateReceived,
		RequestFingerprint: fingerprint,
		UserID:             strings.TrimSpace(input.UserID),
		WalletID:           strings.TrimSpace(input.WalletID),
		Destination:        normalizeDestination(input.Destination),
		Amount:             input.Amount.Round(2),
		Currency:           strings.ToUpper(strings.TrimSpace(input.Currency)),
		CreatedAt:          now,
		UpdatedAt:          now,
		Version:            1,
	}

	created, err := s.Records.CreateRecord(ctx, record)
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}
	if !created {
		return s.joinExisting(ctx, key, fingerprint)
	}
	return s.runAsOwner(ctx, record)
}

// Get returns the current persisted record without side effects. It never
// invokes the executor.
func (s Service) Get(ctx context.Context, idempotencyKey string) (entities.DisbursementRecord, error) {
	key := strings.TrimSpace(idempotencyKey)
	if key == "" {
		return entities.DisbursementRecord{}, domainerrors.ErrIdempotencyKeyMissing
	}
	record, found, err := s.Records.GetRecord(ctx, key)
	if err != nil {
		return entities.DisbursementRecord{}, err
	}
	if !found {
		return entities.DisbursementRecord{}, domainerrors.ErrNotFound
	}
	return record, nil
}

func (s Service) ListByUser(
	ctx context.Context,
	userID string,
	limit int,
	offset int,
) ([]entities.DisbursementRecord, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, domainerrors.ErrInvalidInput
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.Records.ListRecordsByUser(ctx, strings.TrimSpace(userID), limit, offset)
}

// runAsOwner is the path of the caller that won record creation. Only the
// owner transitions RECEIVED -> IN_PROGRESS and invokes the executor, and
// it does so exactly once.
func (s Service) runAsOwner(
	ctx context.Context,
	record entities.DisbursementRecord,
) (entities.DisbursementRecord, bool, error) {
	logger := ResolveLogger(s.Logger)

	inProgress := record
	inProgress.State = entities.StateInProgress
	inProgress.Version = record.Version + 1
	inProgress.UpdatedAt = s.now()

	ok, err := s.Records.UpdateRecord(ctx, record.Version, inProgress)
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}
	if !ok {
		// The uniqueness constraint makes a lost guard here unreachable
		// in a healthy store. Demote to non-owner rather than guess.
		logger.Warn("owner lost in-progress guard",
			"event", "disbursement_owner_guard_lost",
			"module", "payments-core/disbursement-engine",
			"layer", "application",
			"idempotency_key", record.IdempotencyKey,
		)
		return s.joinExisting(ctx, record.IdempotencyKey, record.RequestFingerprint)
	}

	outcome := s.Executor.Execute(ctx, inProgress)
	final, err := s.settleOwnerOutcome(ctx, inProgress, outcome)
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}

	logger.Info("disbursement submitted",
		"event", "disbursement_submitted",
		"module", "payments-core/disbursement-engine",
		"layer", "application",
		"idempotency_key", final.IdempotencyKey,
		"disbursement_id", final.DisbursementID,
		"state", string(final.State),
	)
	return final, false, nil
}

// settleOwnerOutcome persists the executor's proposal through a
// version-guarded write. Lost races are retried with a fresh read, bounded
// to avoid livelock; if another writer already settled the record, its
// terminal state wins.
func (s Service) settleOwnerOutcome(
	ctx context.Context,
	current entities.DisbursementRecord,
	outcome Outcome,
) (entities.DisbursementRecord, error) {
	for attempt := 0; attempt < s.casRetryLimit(); attempt++ {
		next := current
		next.Version = current.Version + 1
		next.UpdatedAt = s.now()

		switch outcome.Kind {
		case OutcomeSucceeded:
			next.State = entities.StateSuccess
			next.ExternalReference = outcome.Reference
			next.NextReconciliationAt = nil
		case OutcomeFailed:
			next.State = entities.StateFailed
			next.ExternalReference = outcome.Reference
			next.FailureReason = outcome.Reason
			next.NextReconciliationAt = nil
		default:
			next.State = entities.StatePending
			next.ExternalReference = outcome.Reference
			due := s.now().Add(s.backoff().Delay(1))
			next.NextReconciliationAt = &due
		}
		if !current.State.CanTransitionTo(next.State) {
			return current, nil
		}

		ok, err := s.Records.UpdateRecord(ctx, current.Version, next)
		if err != nil {
			return entities.DisbursementRecord{}, err
		}
		if ok {
			if next.State.Terminal() {
				s.appendLifecycleOutbox(ctx, next)
			}
			return next, nil
		}

		fresh, found, err := s.Records.GetRecord(ctx, current.IdempotencyKey)
		if err != nil {
			return entities.DisbursementRecord{}, err
		}
		if !found {
			return entities.DisbursementRecord{}, domainerrors.ErrNotFound
		}
		if fresh.State.Terminal() {
			return fresh, nil
		}
		current = fresh
	}
	return entities.DisbursementRecord{}, domainerrors.ErrStoreContention
}

// joinExisting is the path of every caller that did not win creation:
// replay, wait, or reject.
func (s Service) joinExisting(
	ctx context.Context,
	key string,
	fingerprint string,
) (entities.DisbursementRecord, bool, error) {
	record, found, err := s.Records.GetRecord(ctx, key)
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}
	if !found {
		// CreateRecord reported the key present and records are never
		// deleted, so a miss is store inconsistency.
		return entities.DisbursementRecord{}, false, domainerrors.ErrStoreContention
	}
	if record.RequestFingerprint != fingerprint {
		return entities.DisbursementRecord{}, false, domainerrors.ErrConflict
	}
	if record.State.Terminal() {
		return record, true, nil
	}
	return s.awaitResolution(ctx, record)
}

// awaitResolution blocks this caller only, polling the store until the
// record settles or the bounded wait elapses. On timeout the best-known
// current state is returned as a valid response, not an error; ambiguity
// is pushed to the caller to retry.
func (s Service) awaitResolution(
	ctx context.Context,
	record entities.DisbursementRecord,
) (entities.DisbursementRecord, bool, error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.waitTimeout())
	defer cancel()

	ticker := time.NewTicker(s.waitPollInterval())
	defer ticker.Stop()

	current := record
	for {
		select {
		case <-waitCtx.Done():
			return current, false, nil
		case <-ticker.C:
		}

		fresh, found, err := s.Records.GetRecord(ctx, record.IdempotencyKey)
		if err != nil {
			return entities.DisbursementRecord{}, false, err
		}
		if found {
			current = fresh
		}
		if current.State.Terminal() {
			return current, true, nil
		}
	}
}

func (s Service) appendLifecycleOutbox(ctx context.Context, record entities.DisbursementRecord) {
	if s.Outbox == nil {
		return
	}
	logger := ResolveLogger(s.Logger)

	eventID, err := s.IDGen.NewID(ctx)
	if err != nil {
		logger.Warn("disbursement outbox event id generation failed",
			"event", "disbursement_outbox_append_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "application",
			"idempotency_key", record.IdempotencyKey,
			"error", err.Error(),
		)
		return
	}
	// The state transition is already durable; a failed outbox append must
	// not turn a settled disbursement into a caller-visible error.
	if err := s.Outbox.AppendOutbox(ctx, LifecycleEnvelope(eventID, record)); err != nil {
		logger.Warn("disbursement outbox append failed",
			"event", "disbursement_outbox_append_failed",
			"module", "payments-core/disbursement-engine",
			"layer", "application",
			"idempotency_key", record.IdempotencyKey,
			"disbursement_id", record.DisbursementID,
			"error", err.Error(),
		)
	}
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now().UTC()
	}
	return s.Clock.Now().UTC()
}

func (s Service) backoff() backoff.Strategy {
	if s.Backoff == nil {
		return backoff.NewExponentialWithJitter(30*time.Second, 15*time.Minute)
	}
	return s.Backoff
}

func (s Service) waitTimeout() time.Duration {
	if s.WaitTimeout <= 0 {
		return 5 * time.Second
	}
	return s.WaitTimeout
}

func (s Service) waitPollInterval() time.Duration {
	if s.WaitPollInterval <= 0 {
		return 100 * time.Millisecond
	}
	return s.WaitPollInterval
}

func (s Service) casRetryLimit() int {
	if s.CASRetryLimit <= 0 {
		return 5
	}
	return s.CASRetryLimit
}

func isValidSubmitInput(input ports.SubmitInput) bool {
	return strings.TrimSpace(input.UserID) != "" &&
		strings.TrimSpace(input.WalletID) != "" &&
		strings.TrimSpace(input.Destination.BankCode) != "" &&
		strings.TrimSpace(input.Destination.AccountNumber) != "" &&
		strings.TrimSpace(input.Destination.AccountName) != "" &&
		len(strings.TrimSpace(input.Currency)) == 3 &&
		input.Amount.IsPositive()
}
