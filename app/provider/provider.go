package provider

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

var (
	// ErrProviderUnreachable covers network and timeout failures before a
	// response envelope was obtained. Recoverable, but never retried below
	// the caller: order creation is not confirmed idempotent.
	ErrProviderUnreachable = errors.New("payment provider unreachable")
	// ErrProviderRejected is a non-success status envelope from the provider.
	ErrProviderRejected = errors.New("payment provider rejected the request")
	// ErrOrderRejected is a domain-level decline on an accepted order call.
	ErrOrderRejected = errors.New("payment provider rejected the order")
	// ErrMalformedResponse signals contract drift: a 2xx response missing an
	// expected field.
	ErrMalformedResponse = errors.New("malformed provider response")
)

// Outcome is the provider-reported result of a payment attempt.
type Outcome int32

const (
	OutcomeUnknown   Outcome = 0
	OutcomePending   Outcome = 1
	OutcomeCompleted Outcome = 2
	OutcomeFailed    Outcome = 3
	OutcomeExpired   Outcome = 4
)

type OrderResult struct {
	TransactionID string
	Token         string
	DocumentName  string
}

type Client interface {
	// ValidateMerchant exchanges merchant identity for a short-lived bearer token.
	ValidateMerchant(ctx context.Context) (string, error)
	// CreateOrder registers one payment attempt with the provider. paymentDate
	// is captured at call time, not order-creation time.
	CreateOrder(ctx context.Context, token string, order *entity.PaymentOrder) (*OrderResult, error)
	// QueryOrderStatus asks the provider for the current outcome of an order.
	QueryOrderStatus(ctx context.Context, transactionID string) (Outcome, error)
	// Simulated reports whether this client is the credential-less stand-in.
	Simulated() bool
}
