package application

import (
	"testing"

	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	"kobo/contexts/payments-core/disbursement-engine/ports"

	"github.com/shopspring/decimal"
)

func fingerprintInput() ports.SubmitInput {
	return ports.SubmitInput{
		UserID:   "user_fp",
		WalletID: "wallet_fp",
		Destination: entities.Destination{
			BankCode:      "058",
			AccountNumber: "0123456789",
			AccountName:   "Ada Obi",
		},
		Amount:   decimal.NewFromInt(1250),
		Currency: "NGN",
	}
}

func TestFingerprintIgnoresCosmeticDifferences(t *testing.T) {
	base := Fingerprint(fingerprintInput())

	variant := fingerprintInput()
	variant.Destination.BankCode = " 058 "
	variant.Destination.AccountNumber = "0123456789 "
	variant.Destination.AccountName = "  Ada Obi"
	variant.Currency = "ngn"
	variant.Amount = decimal.RequireFromString("1250.00")

	if Fingerprint(variant) != base {
		t.Fatal("normalized-equal requests must fingerprint identically")
	}
}

func TestFingerprintCaseFoldsAccountIdentifiers(t *testing.T) {
	base := fingerprintInput()
	base.Destination.AccountNumber = "ab12cd"

	variant := base
	variant.Destination.AccountNumber = "AB12CD"

	if Fingerprint(base) != Fingerprint(variant) {
		t.Fatal("account identifier case must not affect the fingerprint")
	}
}

func TestFingerprintDiscriminatesAmount(t *testing.T) {
	base := Fingerprint(fingerprintInput())

	variant := fingerprintInput()
	variant.Amount = decimal.RequireFromString("1250.01")

	if Fingerprint(variant) == base {
		t.Fatal("a one-kobo difference must change the fingerprint")
	}
}

func TestFingerprintDiscriminatesDestination(t *testing.T) {
	base := Fingerprint(fingerprintInput())

	variant := fingerprintInput()
	variant.Destination.AccountNumber = "9876543210"

	if Fingerprint(variant) == base {
		t.Fatal("a different destination account must change the fingerprint")
	}
}
