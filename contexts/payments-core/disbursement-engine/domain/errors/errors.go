package errors

import "errors"

var (
	ErrInvalidInput          = errors.New("disbursement input is invalid")
	ErrIdempotencyKeyMissing = errors.New("idempotency key is required")
	ErrIdempotencyKeyInvalid = errors.New("idempotency key must be a valid uuid")
	ErrConflict              = errors.New("idempotency key reused with different parameters")
	ErrNotFound              = errors.New("disbursement not found")
	ErrStoreContention       = errors.New("record store contention retries exhausted")
)
