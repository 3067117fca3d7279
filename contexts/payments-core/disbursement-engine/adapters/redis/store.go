// Package redisadapter implements the record store on Redis. Creation is
// arbitrated by SET NX, and version-guarded updates run as a Lua script so
// the read-compare-write is atomic on the server. Records pending
// reconciliation are indexed in a sorted set scored by their due time.
package redisadapter

import (
	"context"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
)

const (
	recordKeyPrefix = "disb:record:"
	dueIndexKey     = "disb:due"
	userIndexPrefix = "disb:user:"
)

// casScript compares the stored record's version against ARGV[1] and, on
// match, swaps in ARGV[2] and refreshes the due index entry for ARGV[3]
// (score ARGV[4], empty to remove). Returns 1 on swap, 0 on lost race,
// -1 when the record is missing.
var casScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if not current then
  return -1
end
local record = cjson.decode(current)
if tonumber(record['version']) ~= tonumber(ARGV[1]) then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2])
redis.call('ZREM', KEYS[2], ARGV[3])
if ARGV[4] ~= '' then
  redis.call('ZADD', KEYS[2], tonumber(ARGV[4]), ARGV[3])
end
return 1
`)

type Store struct {
	client redis.Cmdable
	logger *slog.Logger
}

// NewStore wraps an existing client; the caller owns its lifecycle.
func NewStore(client redis.Cmdable, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{client: client, logger: logger}
}

func (s *Store) CreateRecord(ctx context.Context, record entities.DisbursementRecord) (bool, error) {
	key := strings.TrimSpace(record.IdempotencyKey)
	if key == "" {
		return false, domainerrors.ErrIdempotencyKeyMissing
	}
	payload, err := json.Marshal(recordDocFromEntity(record))
	if err != nil {
		return false, err
	}

	created, err := s.client.SetNX(ctx, recordKeyPrefix+key, payload, 0).Result()
	if err != nil {
		return false, s.logError("disbursement_redis_create_failed", err, "idempotency_key", key)
	}
	if !created {
		return false, nil
	}
	if err := s.client.ZAdd(ctx, userIndexPrefix+record.UserID, redis.Z{
		Score:  float64(record.CreatedAt.UTC().UnixMilli()),
		Member: key,
	}).Err(); err != nil {
		return true, s.logError("disbursement_redis_user_index_failed", err, "idempotency_key", key)
	}
	return true, nil
}

func (s *Store) GetRecord(ctx context.Context, idempotencyKey string) (entities.DisbursementRecord, bool, error) {
	key := strings.TrimSpace(idempotencyKey)
	raw, err := s.client.Get(ctx, recordKeyPrefix+key).Result()
	if err != nil {
		if err == redis.Nil {
			return entities.DisbursementRecord{}, false, nil
		}
		return entities.DisbursementRecord{}, false, s.logError("disbursement_redis_get_failed", err, "idempotency_key", key)
	}
	record, err := decodeRecord([]byte(raw))
	if err != nil {
		return entities.DisbursementRecord{}, false, err
	}
	return record, true, nil
}

func (s *Store) UpdateRecord(ctx context.Context, expectedVersion int64, record entities.DisbursementRecord) (bool, error) {
	key := strings.TrimSpace(record.IdempotencyKey)
	payload, err := json.Marshal(recordDocFromEntity(record))
	if err != nil {
		return false, err
	}

	dueScore := ""
	if record.State == entities.StatePending && record.NextReconciliationAt != nil {
		dueScore = strconv.FormatInt(record.NextReconciliationAt.UTC().UnixMilli(), 10)
	}

	result, err := casScript.Run(ctx, s.client,
		[]string{recordKeyPrefix + key, dueIndexKey},
		expectedVersion, payload, key, dueScore,
	).Int()
	if err != nil {
		return false, s.logError("disbursement_redis_update_failed", err, "idempotency_key", key)
	}
	if result == -1 {
		return false, domainerrors.ErrNotFound
	}
	return result == 1, nil
}

func (s *Store) ListDueReconciliations(ctx context.Context, now time.Time, limit int) ([]entities.DisbursementRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	keys, err := s.client.ZRangeByScore(ctx, dueIndexKey, &redis.ZRangeBy{
		Min:   "-inf",
		Max:   strconv.FormatInt(now.UTC().UnixMilli(), 10),
		Count: int64(limit),
	}).Result()
	if err != nil {
		return nil, s.logError("disbursement_redis_list_due_failed", err)
	}
	return s.fetchRecords(ctx, keys)
}

func (s *Store) ListRecordsByUser(ctx context.Context, userID string, limit int, offset int) ([]entities.DisbursementRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	keys, err := s.client.ZRevRange(ctx,
		userIndexPrefix+strings.TrimSpace(userID),
		int64(offset), int64(offset+limit-1),
	).Result()
	if err != nil {
		return nil, s.logError("disbursement_redis_list_by_user_failed", err, "user_id", userID)
	}
	return s.fetchRecords(ctx, keys)
}

func (s *Store) fetchRecords(ctx context.Context, keys []string) ([]entities.DisbursementRecord, error) {
	items := make([]entities.DisbursementRecord, 0, len(keys))
	for _, key := range keys {
		record, found, err := s.GetRecord(ctx, key)
		if err != nil {
			return nil, err
		}
		if found {
			items = append(items, record)
		}
	}
	return items, nil
}

func (s *Store) logError(event string, err error, args ...any) error {
	fields := append([]any{
		"event", event,
		"module", "payments-core/disbursement-engine",
		"layer", "adapter",
		"error", err.Error(),
	}, args...)
	s.logger.Error("disbursement redis store operation failed", fields...)
	return err
}

// recordDoc is the wire shape stored in Redis. Version stays a JSON number
// so the CAS script can compare it server-side.
type recordDoc struct {
	IdempotencyKey       string     `json:"idempotency_key"`
	DisbursementID       string     `json:"disbursement_id"`
	State                string     `json:"state"`
	RequestFingerprint   string     `json:"request_fingerprint"`
	UserID               string     `json:"user_id"`
	WalletID             string     `json:"wallet_id"`
	BankCode             string     `json:"bank_code"`
	AccountNumber        string     `json:"account_number"`
	AccountName          string     `json:"account_name"`
	Amount               string     `json:"amount"`
	Currency             string     `json:"currency"`
	ExternalReference    string     `json:"external_reference"`
	FailureReason        string     `json:"failure_reason"`
	AttemptCount         int        `json:"attempt_count"`
	NextReconciliationAt *time.Time `json:"next_reconciliation_at"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
	Version              int64      `json:"version"`
}

func recordDocFromEntity(record entities.DisbursementRecord) recordDoc {
	return recordDoc{
		IdempotencyKey:       strings.TrimSpace(record.IdempotencyKey),
		DisbursementID:       strings.TrimSpace(record.DisbursementID),
		State:                string(record.State),
		RequestFingerprint:   record.RequestFingerprint,
		UserID:               strings.TrimSpace(record.UserID),
		WalletID:             strings.TrimSpace(record.WalletID),
		BankCode:             record.Destination.BankCode,
		AccountNumber:        record.Destination.AccountNumber,
		AccountName:          record.Destination.AccountName,
		Amount:               record.Amount.StringFixed(2),
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

func decodeRecord(raw []byte) (entities.DisbursementRecord, error) {
	var doc recordDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return entities.DisbursementRecord{}, err
	}
	amount, err := decimal.NewFromString(doc.Amount)
	if err != nil {
		return entities.DisbursementRecord{}, err
	}
	return entities.DisbursementRecord{
		IdempotencyKey:     doc.IdempotencyKey,
		DisbursementID:     doc.DisbursementID,
		State:              entities.State(doc.State),
		RequestFingerprint: doc.RequestFingerprint,
		UserID:             doc.UserID,
		WalletID:           doc.WalletID,
		Destination: entities.Destination{
			BankCode:      doc.BankCode,
			AccountNumber: doc.AccountNumber,
			AccountName:   doc.AccountName,
		},
		Amount:               amount,
		Currency:             doc.Currency,
		ExternalReference:    doc.ExternalReference,
		FailureReason:        doc.FailureReason,
		AttemptCount:         doc.AttemptCount,
		NextReconciliationAt: doc.NextReconciliationAt,
		CreatedAt:            doc.CreatedAt,
		UpdatedAt:            doc.UpdatedAt,
		Version:              doc.Version,
	}, nil
}
