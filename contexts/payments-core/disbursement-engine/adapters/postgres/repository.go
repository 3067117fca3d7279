package postgresadapter

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	"kobo/contexts/payments-core/disbursement-engine/ports"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	outboxStatusPending   = "pending"
	outboxStatusPublished = "published"
)

// Repository is the durable record store. The unique primary key on
// idempotency_key arbitrates record creation, and every update is guarded
// by the row version, which is all the mutual exclusion the engine needs.
type Repository struct {
	db     *gorm.DB
	logger *slog.Logger
}

func NewRepository(db *gorm.DB, logger *slog.Logger) *Repository {
	if logger == nil {
		logger = slog.Default()
	}
	return &Repository{
		db:     db,
		logger: logger,
	}
}

func (r *Repository) CreateRecord(ctx context.Context, record entities.DisbursementRecord) (bool, error) {
	row := recordModelFromEntity(record)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, r.logError("disbursement_repo_create_failed", err,
			"idempotency_key", record.IdempotencyKey,
		)
	}
	return true, nil
}

func (r *Repository) GetRecord(ctx context.Context, idempotencyKey string) (entities.DisbursementRecord, bool, error) {
	var row recordModel
	err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", strings.TrimSpace(idempotencyKey)).
		First(&row).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return entities.DisbursementRecord{}, false, nil
		}
		return entities.DisbursementRecord{}, false, r.logError("disbursement_repo_get_failed", err,
			"idempotency_key", strings.TrimSpace(idempotencyKey),
		)
	}
	return row.toEntity(), true, nil
}

func (r *Repository) UpdateRecord(ctx context.Context, expectedVersion int64, record entities.DisbursementRecord) (bool, error) {
	row := recordModelFromEntity(record)
	result := r.db.WithContext(ctx).Model(&recordModel{}).
		Where("idempotency_key = ? AND version = ?", row.IdempotencyKey, expectedVersion).
		Updates(map[string]any{
			"state":                  row.State,
			"external_reference":     row.ExternalReference,
			"failure_reason":         row.FailureReason,
			"attempt_count":          row.AttemptCount,
			"next_reconciliation_at": row.NextReconciliationAt,
			"updated_at":             row.UpdatedAt,
			"version":                row.Version,
		})
	if result.Error != nil {
		return false, r.logError("disbursement_repo_update_failed", result.Error,
			"idempotency_key", record.IdempotencyKey,
			"expected_version", expectedVersion,
		)
	}
	return result.RowsAffected == 1, nil
}

func (r *Repository) ListDueReconciliations(ctx context.Context, now time.Time, limit int) ([]entities.DisbursementRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []recordModel
	err := r.db.WithContext(ctx).
		Where("state = ?", string(entities.StatePending)).
		Where("next_reconciliation_at IS NOT NULL AND next_reconciliation_at <= ?", now.UTC()).
		Order("next_reconciliation_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("disbursement_repo_list_due_failed", err)
	}
	items := make([]entities.DisbursementRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) ListRecordsByUser(ctx context.Context, userID string, limit int, offset int) ([]entities.DisbursementRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var rows []recordModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", strings.TrimSpace(userID)).
		Order("created_at DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("disbursement_repo_list_by_user_failed", err,
			"user_id", strings.TrimSpace(userID),
		)
	}
	items := make([]entities.DisbursementRecord, 0, len(rows))
	for _, row := range rows {
		items = append(items, row.toEntity())
	}
	return items, nil
}

func (r *Repository) AppendOutbox(ctx context.Context, envelope ports.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	outboxID := strings.TrimSpace(envelope.EventID)
	if outboxID == "" {
		return domainerrors.ErrInvalidInput
	}
	row := outboxModel{
		ID:           outboxID,
		EventType:    envelope.EventType,
		PartitionKey: envelope.EntityID,
		Payload:      payload,
		Status:       outboxStatusPending,
		CreatedAt:    envelope.OccurredAtUTC.UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return nil
		}
		return r.logError("disbursement_repo_outbox_append_failed", err,
			"outbox_id", outboxID,
		)
	}
	return nil
}

func (r *Repository) ListPendingOutbox(ctx context.Context, limit int) ([]ports.OutboxMessage, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []outboxModel
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).
		Error
	if err != nil {
		return nil, r.logError("disbursement_repo_outbox_list_failed", err)
	}
	items := make([]ports.OutboxMessage, 0, len(rows))
	for _, row := range rows {
		items = append(items, ports.OutboxMessage{
			OutboxID:     row.ID,
			EventType:    row.EventType,
			PartitionKey: row.PartitionKey,
			Payload:      row.Payload,
			CreatedAt:    row.CreatedAt,
		})
	}
	return items, nil
}

func (r *Repository) MarkOutboxPublished(ctx context.Context, outboxID string, publishedAt time.Time) error {
	ts := publishedAt.UTC()
	result := r.db.WithContext(ctx).Model(&outboxModel{}).
		Where("id = ?", strings.TrimSpace(outboxID)).
		Updates(map[string]any{
			"status":       outboxStatusPublished,
			"published_at": &ts,
		})
	if result.Error != nil {
		return r.logError("disbursement_repo_outbox_mark_failed", result.Error,
			"outbox_id", strings.TrimSpace(outboxID),
		)
	}
	if result.RowsAffected == 0 {
		return domainerrors.ErrNotFound
	}
	return nil
}

func (r *Repository) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "payments-core/disbursement-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	r.logger.Error("disbursement repository operation failed", fields...)
	return err
}

type recordModel struct {
	IdempotencyKey       string          `gorm:"column:idempotency_key;primaryKey"`
	DisbursementID       string          `gorm:"column:disbursement_id"`
	State                string          `gorm:"column:state"`
	RequestFingerprint   string          `gorm:"column:request_fingerprint"`
	UserID               string          `gorm:"column:user_id"`
	WalletID             string          `gorm:"column:wallet_id"`
	BankCode             string          `gorm:"column:bank_code"`
	AccountNumber        string          `gorm:"column:account_number"`
	AccountName          string          `gorm:"column:account_name"`
	Amount               decimal.Decimal `gorm:"column:amount;type:numeric(20,2)"`
	Currency             string          `gorm:"column:currency"`
	ExternalReference    string          `gorm:"column:external_reference"`
	FailureReason        string          `gorm:"column:failure_reason"`
	AttemptCount         int             `gorm:"column:attempt_count"`
	NextReconciliationAt *time.Time      `gorm:"column:next_reconciliation_at"`
	CreatedAt            time.Time       `gorm:"column:created_at"`
	UpdatedAt            time.Time       `gorm:"column:updated_at"`
	Version              int64           `gorm:"column:version"`
}

func (recordModel) TableName() string {
	return "disbursement_records"
}

func recordModelFromEntity(record entities.DisbursementRecord) recordModel {
	return recordModel{
		IdempotencyKey:       strings.TrimSpace(record.IdempotencyKey),
		DisbursementID:       strings.TrimSpace(record.DisbursementID),
		State:                string(record.State),
		RequestFingerprint:   record.RequestFingerprint,
		UserID:               strings.TrimSpace(record.UserID),
		WalletID:             strings.TrimSpace(record.WalletID),
		BankCode:             record.Destination.BankCode,
		AccountNumber:        record.Destination.AccountNumber,
		AccountName:          record.Destination.AccountName,
		Amount:               record.Amount,
		Currency:             record.Currency,
		ExternalReference:    record.ExternalReference,
		FailureReason:        record.FailureReason,
		AttemptCount:         record.AttemptCount,
		NextReconciliationAt: record.NextReconciliationAt,
		CreatedAt:            record.CreatedAt.UTC(),
		UpdatedAt:            record.UpdatedAt.UTC(),
		Version:              record.Version,
	}
}

func (m recordModel) toEntity() entities.DisbursementRecord {
	return entities.DisbursementRecord{
		IdempotencyKey:     m.IdempotencyKey,
		DisbursementID:     m.DisbursementID,
		State:              entities.State(m.State),
		RequestFingerprint: m.RequestFingerprint,
		UserID:             m.UserID,
		WalletID:           m.WalletID,
		Destination: entities.Destination{
			BankCode:      m.BankCode,
			AccountNumber: m.AccountNumber,
			AccountName:   m.AccountName,
		},
		Amount:               m.Amount,
		Currency:             m.Currency,
		ExternalReference:    m.ExternalReference,
		FailureReason:        m.FailureReason,
		AttemptCount:         m.AttemptCount,
		NextReconciliationAt: m.NextReconciliationAt,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
		Version:              m.Version,
	}
}

type outboxModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	EventType    string     `gorm:"column:event_type"`
	PartitionKey string     `gorm:"column:partition_key"`
	Payload      []byte     `gorm:"column:payload"`
	Status       string     `gorm:"column:status"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	CreatedAt    time.Time  `gorm:"column:created_at"`
}

func (outboxModel) TableName() string {
	return "disbursement_outbox"
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
