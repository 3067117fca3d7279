package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"

	"github.com/shopspring/decimal"
)

// Fingerprint produces the deterministic content hash that decides whether
// two requests carrying the same idempotency key describe the same logical
// disbursement. Business fields are normalized first (trimmed, case-folded
// account identifiers, amount canonicalized to minor units at fixed scale)
// so cosmetic differences never register as conflicts. Equality is exact;
// there is no tolerance window.
func Fingerprint(input ports.SubmitInput) string {
	payload := map[string]any{
		"user_id":        strings.TrimSpace(input.UserID),
		"wallet_id":      strings.TrimSpace(input.WalletID),
		"bank_code":      strings.ToLower(strings.TrimSpace(input.Destination.BankCode)),
		"account_number": strings.ToLower(strings.TrimSpace(input.Destination.AccountNumber)),
		"account_name":   strings.TrimSpace(input.Destination.AccountName),
		"amount_minor":   minorUnits(input.Amount),
		"currency":       strings.ToUpper(strings.TrimSpace(input.Currency)),
	}
	raw, _ := json.Marshal(payload)
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}

// minorUnits canonicalizes an amount to an integer count of minor units
// (kobo for NGN) at two decimal places.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Round(2).Shift(2).IntPart()
}

func normalizeDestination(destination entities.Destination) entities.Destination {
	return entities.Destination{
		BankCode:      strings.ToLower(strings.TrimSpace(destination.BankCode)),
		AccountNumber: strings.ToLower(strings.TrimSpace(destination.AccountNumber)),
		AccountName:   strings.TrimSpace(destination.AccountName),
	}
}
