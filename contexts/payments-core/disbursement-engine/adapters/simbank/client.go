// Package simbank is a simulated bank switch for development and tests.
// It reproduces the production failure mode this engine exists for: a
// configurable fraction of transfers are debited successfully downstream
// while the response to the caller is lost, so the caller sees an error
// for money that actually moved. Status lookups against the simulator are
// always definitive.
package simbank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/ports"
)

var ErrNetwork = errors.New("partner bank network failed while responding")

type Client struct {
	// AmbiguousRate is the probability a completed transfer's response is
	// lost on the wire. RejectRate is the probability the bank rejects the
	// transfer outright.
	AmbiguousRate float64
	RejectRate    float64
	Latency       time.Duration
	Logger        *slog.Logger

	mu        sync.Mutex
	transfers map[string]ports.TransferResult
}

func NewClient(ambiguousRate float64, rejectRate float64, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		AmbiguousRate: ambiguousRate,
		RejectRate:    rejectRate,
		Logger:        logger,
		transfers:     make(map[string]ports.TransferResult),
	}
}

func (c *Client) Transfer(ctx context.Context, request ports.TransferRequest) (ports.TransferResult, error) {
	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return ports.TransferResult{}, ctx.Err()
		case <-time.After(c.Latency):
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	key := strings.TrimSpace(request.IdempotencyKey)
	// The partner bank dedupes on the transfer key, so a retried call
	// replays the stored result.
	if result, seen := c.transfers[key]; seen {
		return result, nil
	}

	if rand.Float64() < c.RejectRate {
		result := ports.TransferResult{
			Status: ports.TransferRejected,
			Reason: "destination account could not be resolved",
		}
		c.transfers[key] = result
		return result, nil
	}

	result := ports.TransferResult{
		Reference: fmt.Sprintf("TRF-%s-%06d", strings.ToUpper(request.Currency), rand.IntN(1000000)),
		Status:    ports.TransferCompleted,
	}
	c.transfers[key] = result
	c.transfers[result.Reference] = result

	if rand.Float64() < c.AmbiguousRate {
		// The debit landed but the response never makes it back.
		c.Logger.Debug("simulated response loss after successful debit",
			"event", "simbank_response_lost",
			"module", "payments-core/disbursement-engine",
			"layer", "adapter",
			"idempotency_key", key,
			"reference", result.Reference,
		)
		return ports.TransferResult{}, ErrNetwork
	}
	return result, nil
}

func (c *Client) QueryStatus(ctx context.Context, referenceOrKey string) (ports.StatusResult, error) {
	if err := ctx.Err(); err != nil {
		return ports.StatusResult{}, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	result, seen := c.transfers[strings.TrimSpace(referenceOrKey)]
	if !seen {
		// The bank has no trace of the transfer, so it never executed.
		return ports.StatusResult{
			Status: ports.TransferRejected,
			Reason: "no transfer on record at partner bank",
		}, nil
	}
	return ports.StatusResult{
		Status:    result.Status,
		Reference: result.Reference,
		Reason:    result.Reason,
	}, nil
}
