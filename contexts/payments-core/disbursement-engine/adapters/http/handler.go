package httpadapter

import (
	"context"
	"log/slog"
	"time"

	"kobo/contexts/payments-core/disbursement-engine/application"
	"kobo/contexts/payments-core/disbursement-engine/domain/entities"
	domainerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	"kobo/contexts/payments-core/disbursement-engine/ports"
	httptransport "kobo/contexts/payments-core/disbursement-engine/transport/http"

	"github.com/shopspring/decimal"
)

type Handler struct {
	Service application.Service
	Logger  *slog.Logger
}

func (h Handler) SubmitHandler(
	ctx context.Context,
	req httptransport.CreateDisbursementRequest,
) (httptransport.CreateDisbursementResponse, error) {
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		return httptransport.CreateDisbursementResponse{}, domainerrors.ErrInvalidInput
	}

	record, replayed, err := h.Service.Submit(ctx, req.IdempotencyKey, ports.SubmitInput{
		UserID:   req.UserID,
		WalletID: req.WalletID,
		Destination: entities.Destination{
			BankCode:      req.Destination.BankCode,
			AccountNumber: req.Destination.AccountNumber,
			AccountName:   req.Destination.AccountName,
		},
		Amount:   amount,
		Currency: req.Currency,
	})
	if err != nil {
		return httptransport.CreateDisbursementResponse{}, err
	}
	return httptransport.CreateDisbursementResponse{
		Status:   "success",
		Replayed: replayed,
		Data:     toDTO(record),
	}, nil
}

func (h Handler) GetHandler(
	ctx context.Context,
	idempotencyKey string,
) (httptransport.GetDisbursementResponse, error) {
	record, err := h.Service.Get(ctx, idempotencyKey)
	if err != nil {
		return httptransport.GetDisbursementResponse{}, err
	}
	return httptransport.GetDisbursementResponse{
		Status: "success",
		Data:   toDTO(record),
	}, nil
}

func (h Handler) ListHandler(
	ctx context.Context,
	req httptransport.ListDisbursementsRequest,
) (httptransport.ListDisbursementsResponse, error) {
	items, err := h.Service.ListByUser(ctx, req.UserID, req.Limit, req.Offset)
	if err != nil {
		return httptransport.ListDisbursementsResponse{}, err
	}
	resp := httptransport.ListDisbursementsResponse{
		Status: "success",
		Data:   make([]httptransport.DisbursementDTO, 0, len(items)),
	}
	for _, item := range items {
		resp.Data = append(resp.Data, toDTO(item))
	}
	return resp, nil
}

func toDTO(record entities.DisbursementRecord) httptransport.DisbursementDTO {
	dto := httptransport.DisbursementDTO{
		DisbursementID: record.DisbursementID,
		IdempotencyKey: record.IdempotencyKey,
		Status:         string(record.State),
		UserID:         record.UserID,
		WalletID:       record.WalletID,
		Destination: httptransport.DestinationDTO{
			BankCode:      record.Destination.BankCode,
			AccountNumber: record.Destination.AccountNumber,
			AccountName:   record.Destination.AccountName,
		},
		Amount:            record.Amount.StringFixed(2),
		Currency:          record.Currency,
		ExternalReference: record.ExternalReference,
		Reason:            record.FailureReason,
		AttemptCount:      record.AttemptCount,
		CreatedAt:         record.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:         record.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if record.NextReconciliationAt != nil {
		dto.NextReconciliationAt = record.NextReconciliationAt.UTC().Format(time.RFC3339)
	}
	return dto
}
