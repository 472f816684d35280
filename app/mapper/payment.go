package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/types"
)

func SessionToCreateResponse(session *entity.PaymentSession) *types.CreatePaymentResponse {
	if session == nil {
		return nil
	}

	return &types.CreatePaymentResponse{
		PaymentID:   session.PaymentID,
		Status:      session.Status.String(),
		QRPayload:   session.QRPayload,
		PaymentLink: session.PaymentLink,
		ExpiresAt:   session.ExpiresAt.UTC().Format(time.RFC3339),
		Amount:      session.Order.Total.StringFixed(2),
		Currency:    session.Order.Currency,
		Description: session.Order.Description,
	}
}

func SessionToStatusResponse(session *entity.PaymentSession) *types.PaymentStatusResponse {
	if session == nil {
		return nil
	}

	response := &types.PaymentStatusResponse{
		PaymentID: session.PaymentID,
		Status:    session.Status.String(),
		Amount:    session.Order.Total.StringFixed(2),
		Currency:  session.Order.Currency,
		ExpiresAt: session.ExpiresAt.UTC().Format(time.RFC3339),
	}
	if session.ProviderTransactionID != nil {
		response.TransactionID = *session.ProviderTransactionID
	}
	if session.CompletedAt != nil {
		response.CompletedAt = session.CompletedAt.UTC().Format(time.RFC3339)
	}

	return response
}
