package http

type ErrorResponse struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
	State          string `json:"state,omitempty"`
}

type DestinationDTO struct {
	BankCode      string `json:"bank_code"`
	AccountNumber string `json:"account_number"`
	AccountName   string `json:"account_name"`
}

type CreateDisbursementRequest struct {
	IdempotencyKey string         `json:"idempotency_key"`
	UserID         string         `json:"user_id"`
	WalletID       string         `json:"wallet_id"`
	Destination    DestinationDTO `json:"destination"`
	Amount         string         `json:"amount"`
	Currency       string         `json:"currency"`
}

type DisbursementDTO struct {
	DisbursementID       string         `json:"disbursement_id"`
	IdempotencyKey       string         `json:"idempotency_key"`
	Status               string         `json:"status"`
	UserID               string         `json:"user_id"`
	WalletID             string         `json:"wallet_id"`
	Destination          DestinationDTO `json:"destination"`
	Amount               string         `json:"amount"`
	Currency             string         `json:"currency"`
	ExternalReference    string         `json:"external_reference,omitempty"`
	Reason               string         `json:"reason,omitempty"`
	AttemptCount         int            `json:"attempt_count,omitempty"`
	NextReconciliationAt string         `json:"next_reconciliation_at,omitempty"`
	CreatedAt            string         `json:"created_at"`
	UpdatedAt            string         `json:"updated_at"`
}

type CreateDisbursementResponse struct {
	Status   string          `json:"status"`
	Replayed bool            `json:"replayed,omitempty"`
	Data     DisbursementDTO `json:"data"`
}

type GetDisbursementResponse struct {
	Status string          `json:"status"`
	Data   DisbursementDTO `json:"data"`
}

type ListDisbursementsRequest struct {
	UserID string
	Limit  int
	Offset int
}

type ListDisbursementsResponse struct {
	Status string            `json:"status"`
	Data   []DisbursementDTO `json:"data"`
}
