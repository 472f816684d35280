package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-yappy/app/encoder"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/factory"
	"github.com/vibast-solutions/ms-go-yappy/app/provider"
	"github.com/vibast-solutions/ms-go-yappy/app/repository"
	"github.com/vibast-solutions/ms-go-yappy/app/types"
	"github.com/vibast-solutions/ms-go-yappy/config"
)

const defaultBatchSize = int32(100)

type SessionStore interface {
	Create(ctx context.Context, session *entity.PaymentSession) error
	FindByID(ctx context.Context, paymentID string) (*entity.PaymentSession, error)
	FindByOrderID(ctx context.Context, orderID string) (*entity.PaymentSession, error)
	TransitionIfPending(ctx context.Context, paymentID string, transition repository.Transition) (*entity.PaymentSession, bool, error)
	ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentSession, error)
	ListPendingForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentSession, error)
}

type SessionEventLog interface {
	Create(ctx context.Context, event *entity.SessionEvent) error
}

// AccessGranter unlocks the purchased course. The implementation is expected
// to be idempotent per paymentID; this service additionally guarantees it is
// invoked at most once per session, on the transition that won the CAS.
type AccessGranter interface {
	GrantCourseAccess(ctx context.Context, userID, courseID, paymentID string) error
}

// OutcomeNotifier feeds the UI/toast layer. Best-effort, fire-and-forget.
type OutcomeNotifier interface {
	NotifyPaymentOutcome(paymentID string, status entity.SessionStatus)
}

// SessionService owns the payment-session lifecycle. It is the single source
// of truth consulted by both confirmation paths: the payer-facing poller and
// the provider's webhook. All state changes out of Pending go through the
// store's compare-and-swap, so exactly one transition per session wins.
type SessionService struct {
	store    SessionStore
	events   SessionEventLog
	client   provider.Client
	verifier provider.WebhookVerifier
	access   AccessGranter
	notifier OutcomeNotifier

	sessionsCfg config.SessionsConfig
	logger      logrus.FieldLogger

	now func() time.Time
}

func NewSessionService(
	store SessionStore,
	events SessionEventLog,
	client provider.Client,
	verifier provider.WebhookVerifier,
	access AccessGranter,
	notifier OutcomeNotifier,
	sessionsCfg config.SessionsConfig,
) *SessionService {
	if sessionsCfg.TTL <= 0 {
		sessionsCfg.TTL = 15 * time.Minute
	}

	return &SessionService{
		store:       store,
		events:      events,
		client:      client,
		verifier:    verifier,
		access:      access,
		notifier:    notifier,
		sessionsCfg: sessionsCfg,
		logger:      factory.NewModuleLogger("payments-service"),
		now:         time.Now,
	}
}

// CreateSession validates the merchant, creates the provider order, and
// persists a Pending session with the payer-facing artifacts. Provider
// failures yield a persisted Failed session, not an error: every caller code
// path gets a session, so the poll/webhook contract stays uniform.
func (s *SessionService) CreateSession(ctx context.Context, req *types.CreatePaymentRequest) (*entity.PaymentSession, error) {
	if req == nil {
		return nil, ErrInvalidRequest
	}

	order, err := req.Order()
	if err != nil {
		return nil, ErrInvalidRequest
	}

	existing, err := s.store.FindByOrderID(ctx, order.OrderID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	token, err := s.client.ValidateMerchant(ctx)
	if err != nil {
		return s.createFailedSession(ctx, req, &order, "merchant validation failed", err)
	}

	result, err := s.client.CreateOrder(ctx, token, &order)
	if err != nil {
		return s.createFailedSession(ctx, req, &order, "order creation failed", err)
	}

	now := s.now().UTC()
	artifacts := encoder.Input{
		TransactionID: result.TransactionID,
		ProviderToken: result.Token,
		DocumentName:  result.DocumentName,
		MerchantID:    order.MerchantID,
		OrderID:       order.OrderID,
		Description:   order.Description,
		Currency:      order.Currency,
		Amount:        order.Total.StringFixed(2),
		GeneratedAt:   now,
	}

	qrPayload, err := encoder.QRPayload(artifacts)
	if err != nil {
		return nil, err
	}

	session := &entity.PaymentSession{
		PaymentID:     result.TransactionID,
		Order:         order,
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		Status:        entity.StatusPending,
		ProviderToken: result.Token,
		DocumentName:  result.DocumentName,
		QRPayload:     qrPayload,
		PaymentLink:   encoder.PaymentLink(artifacts),
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.sessionsCfg.TTL),
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyExists) {
			return s.store.FindByOrderID(ctx, order.OrderID)
		}
		return nil, err
	}

	s.recordEvent(ctx, session.PaymentID, "session_created", nil, session.Status, nil)
	return session, nil
}

// GetStatus returns the session, applying lazy expiry first: a Pending
// session past its deadline transitions to Expired on read, no background
// sweeper required. In simulation mode only, a still-live Pending session
// also consults the simulated client's randomized resolution.
func (s *SessionService) GetStatus(ctx context.Context, paymentID string) (*entity.PaymentSession, error) {
	paymentID = strings.TrimSpace(paymentID)
	if paymentID == "" {
		return nil, ErrInvalidRequest
	}

	session, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status != entity.StatusPending {
		return session, nil
	}

	now := s.now().UTC()
	if session.ExpiredBy(now) {
		return s.resolve(ctx, session, repository.Transition{
			To: entity.StatusExpired,
			At: now,
		}, "session_expired")
	}

	if s.client.Simulated() && session.Simulated() {
		return s.resolveSimulated(ctx, session, now)
	}

	return session, nil
}

// ApplyProviderEvent transitions a session on a provider-reported outcome.
// The caller has already verified the delivery. Terminal sessions are left
// untouched and returned as-is; a session past its deadline expires instead,
// so a very late webhook cannot resurrect it.
func (s *SessionService) ApplyProviderEvent(ctx context.Context, paymentID string, outcome provider.Outcome, transactionID string) (*entity.PaymentSession, error) {
	session, err := s.store.FindByID(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}
	if session.Status.Terminal() {
		return session, nil
	}

	now := s.now().UTC()
	if session.ExpiredBy(now) {
		return s.resolve(ctx, session, repository.Transition{
			To: entity.StatusExpired,
			At: now,
		}, "session_expired")
	}

	transactionID = strings.TrimSpace(transactionID)
	switch outcome {
	case provider.OutcomeCompleted:
		if transactionID == "" {
			transactionID = session.PaymentID
		}
		return s.resolve(ctx, session, repository.Transition{
			To:                    entity.StatusCompleted,
			ProviderTransactionID: &transactionID,
			CompletedAt:           &now,
			At:                    now,
		}, "session_completed")
	case provider.OutcomeFailed:
		reason := "provider reported failure"
		return s.resolve(ctx, session, repository.Transition{
			To:            entity.StatusFailed,
			FailureReason: &reason,
			At:            now,
		}, "session_failed")
	case provider.OutcomeExpired:
		return s.resolve(ctx, session, repository.Transition{
			To: entity.StatusExpired,
			At: now,
		}, "session_expired")
	default:
		return session, nil
	}
}

// resolve applies one transition through the store CAS. Only the winning
// call records the event and triggers side effects; losers get the session
// as resolved by whoever won, which makes duplicate webhook deliveries and
// poll/webhook races harmless no-ops.
func (s *SessionService) resolve(ctx context.Context, session *entity.PaymentSession, transition repository.Transition, eventType string) (*entity.PaymentSession, error) {
	oldStatus := session.Status

	updated, won, err := s.store.TransitionIfPending(ctx, session.PaymentID, transition)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	if !won {
		return updated, nil
	}

	s.recordEvent(ctx, updated.PaymentID, eventType, &oldStatus, updated.Status, nil)

	if updated.Status == entity.StatusCompleted {
		if err := s.access.GrantCourseAccess(ctx, updated.UserID, updated.CourseID, updated.PaymentID); err != nil {
			// The session is already Completed; granting is retried out of
			// band, never by re-running the transition.
			s.logger.WithError(err).WithField("payment_id", updated.PaymentID).Error("Grant course access failed")
		}
	}
	if updated.Status.Terminal() {
		s.notifier.NotifyPaymentOutcome(updated.PaymentID, updated.Status)
	}

	return updated, nil
}

func (s *SessionService) resolveSimulated(ctx context.Context, session *entity.PaymentSession, now time.Time) (*entity.PaymentSession, error) {
	outcome, err := s.client.QueryOrderStatus(ctx, session.PaymentID)
	if err != nil {
		return session, nil
	}

	switch outcome {
	case provider.OutcomeCompleted:
		txnID := session.PaymentID
		return s.resolve(ctx, session, repository.Transition{
			To:                    entity.StatusCompleted,
			ProviderTransactionID: &txnID,
			CompletedAt:           &now,
			At:                    now,
		}, "session_completed")
	case provider.OutcomeFailed:
		reason := "simulated decline"
		return s.resolve(ctx, session, repository.Transition{
			To:            entity.StatusFailed,
			FailureReason: &reason,
			At:            now,
		}, "session_failed")
	default:
		return session, nil
	}
}

func (s *SessionService) createFailedSession(ctx context.Context, req *types.CreatePaymentRequest, order *entity.PaymentOrder, reason string, cause error) (*entity.PaymentSession, error) {
	entry := s.logger.WithError(cause).WithField("order_id", order.OrderID)
	if errors.Is(cause, provider.ErrMalformedResponse) {
		entry.Error("Provider response contract drift")
	} else {
		entry.Warn("Provider call failed; creating failed session")
	}

	now := s.now().UTC()
	failure := reason + ": " + cause.Error()
	session := &entity.PaymentSession{
		PaymentID:     "FAILED-" + uuid.NewString(),
		Order:         *order,
		UserID:        req.UserID,
		CourseID:      req.CourseID,
		Status:        entity.StatusFailed,
		FailureReason: &failure,
		CreatedAt:     now,
		ExpiresAt:     now.Add(s.sessionsCfg.TTL),
		UpdatedAt:     now,
	}

	if err := s.store.Create(ctx, session); err != nil {
		if errors.Is(err, repository.ErrSessionAlreadyExists) {
			return s.store.FindByOrderID(ctx, order.OrderID)
		}
		return nil, err
	}

	s.recordEvent(ctx, session.PaymentID, "session_create_failed", nil, session.Status, &failure)
	s.notifier.NotifyPaymentOutcome(session.PaymentID, session.Status)
	return session, nil
}

func (s *SessionService) recordEvent(ctx context.Context, paymentID, eventType string, oldStatus *entity.SessionStatus, newStatus entity.SessionStatus, errMsg *string) {
	event := &entity.SessionEvent{
		PaymentID: paymentID,
		EventType: eventType,
		OldStatus: oldStatus,
		NewStatus: newStatus,
		Error:     errMsg,
		CreatedAt: s.now().UTC(),
	}
	if err := s.events.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithField("payment_id", paymentID).Warn("Failed to record session event")
	}
}

func (s *SessionService) batchSize() int32 {
	if s.sessionsCfg.JobBatchSize > 0 {
		return s.sessionsCfg.JobBatchSize
	}
	return defaultBatchSize
}
