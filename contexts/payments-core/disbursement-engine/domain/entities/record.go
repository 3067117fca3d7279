package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the lifecycle state of a disbursement record.
type State string

const (
	StateReceived   State = "RECEIVED"
	StateInProgress State = "IN_PROGRESS"
	StateSuccess    State = "SUCCESS"
	StateFailed     State = "FAILED"
	StatePending    State = "PENDING"
	StateUnknown    State = "UNKNOWN"
)

// Terminal reports whether the state admits no further transitions.
// UNKNOWN is terminal for the engine; resolving it is a manual operation
// outside the state machine.
func (s State) Terminal() bool {
	return s == StateSuccess || s == StateFailed || s == StateUnknown
}

// CanTransitionTo enforces the forward-only transition graph:
// RECEIVED -> IN_PROGRESS -> {SUCCESS, FAILED, PENDING},
// PENDING -> {SUCCESS, FAILED, PENDING, UNKNOWN}.
func (s State) CanTransitionTo(next State) bool {
	switch s {
	case StateReceived:
		return next == StateInProgress
	case StateInProgress:
		return next == StateSuccess || next == StateFailed || next == StatePending
	case StatePending:
		return next == StateSuccess || next == StateFailed || next == StatePending || next == StateUnknown
	default:
		return false
	}
}

// Destination identifies the receiving bank account.
type Destination struct {
	BankCode      string
	AccountNumber string
	AccountName   string
}

// DisbursementRecord is the single entity of record, keyed by the
// caller-supplied idempotency key. One record exists per key; creation is
// first-writer-wins and the record is never deleted by the engine.
type DisbursementRecord struct {
	IdempotencyKey       string
	DisbursementID       string
	State                State
	RequestFingerprint   string
	UserID               string
	WalletID             string
	Destination          Destination
	Amount               decimal.Decimal
	Currency             string
	ExternalReference    string
	FailureReason        string
	AttemptCount         int
	NextReconciliationAt *time.Time
	CreatedAt            time.Time
	UpdatedAt            time.Time
	Version              int64
}
