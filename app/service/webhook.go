package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/provider"
	"github.com/vibast-solutions/ms-go-yappy/app/types"
)

// HandleProviderWebhook verifies an IPN delivery and applies its outcome.
// The signature is checked against the raw payload before any session state
// is read or written; a delivery that fails verification never reaches the
// state machine.
func (s *SessionService) HandleProviderWebhook(ctx context.Context, req *types.WebhookRequest) (*entity.PaymentSession, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	if !s.verifier.Verify(req.RawPayload, req.Signature) {
		s.logger.WithField("order_id", req.OrderID).Warn("Webhook signature rejected")
		return nil, ErrSignatureInvalid
	}

	outcome := provider.OutcomeFromIPNStatus(req.Status)
	if outcome == provider.OutcomeUnknown {
		return nil, ErrInvalidRequest
	}

	paymentID := strings.TrimSpace(req.PaymentID)
	if paymentID == "" {
		session, err := s.store.FindByOrderID(ctx, strings.TrimSpace(req.OrderID))
		if err != nil {
			return nil, err
		}
		if session == nil {
			return nil, ErrSessionNotFound
		}
		paymentID = session.PaymentID
	}

	session, err := s.ApplyProviderEvent(ctx, paymentID, outcome, req.TransactionID)
	if err != nil {
		return nil, err
	}

	s.checkWebhookAmount(session, req.Amount)

	payload := string(req.RawPayload)
	event := &entity.SessionEvent{
		PaymentID:   session.PaymentID,
		EventType:   "webhook_received",
		NewStatus:   session.Status,
		PayloadJSON: &payload,
		CreatedAt:   s.now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithField("payment_id", session.PaymentID).Warn("Failed to record session event")
	}

	return session, nil
}

// A mismatched amount is logged, not rejected: the provider's report is
// authoritative for the outcome, and the order total was fixed at creation.
func (s *SessionService) checkWebhookAmount(session *entity.PaymentSession, amount string) {
	amount = strings.TrimSpace(amount)
	if amount == "" {
		return
	}

	reported, err := decimal.NewFromString(amount)
	if err != nil || !reported.Equal(session.Order.Total) {
		s.logger.WithField("payment_id", session.PaymentID).
			WithField("webhook_amount", amount).
			WithField("order_total", session.Order.Total.StringFixed(2)).
			Warn("Webhook amount does not match order total")
	}
}
