package entity

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type SessionStatus int32

const (
	StatusPending   SessionStatus = 1
	StatusCompleted SessionStatus = 2
	StatusFailed    SessionStatus = 3
	StatusExpired   SessionStatus = 4
)

// SimulatedPaymentIDPrefix marks sessions created without real merchant
// credentials so production code paths can assert they are not running
// against the simulator.
const SimulatedPaymentIDPrefix = "SIM-"

func (s SessionStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	case StatusExpired:
		return "expired"
	default:
		return "unknown"
	}
}

func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusExpired:
		return true
	default:
		return false
	}
}

// PaymentOrder is the immutable purchase snapshot a session is created from.
// Monetary fields decompose as subtotal - discount + taxes == total.
type PaymentOrder struct {
	OrderID     string
	Description string
	Currency    string

	Subtotal decimal.Decimal
	Discount decimal.Decimal
	Taxes    decimal.Decimal
	Total    decimal.Decimal

	MerchantID string
	Domain     string
}

type PaymentSession struct {
	PaymentID string

	Order PaymentOrder

	UserID   string
	CourseID string

	Status SessionStatus

	ProviderToken string
	DocumentName  string

	QRPayload   string
	PaymentLink string

	ProviderTransactionID *string
	CompletedAt           *time.Time
	FailureReason         *string

	CreatedAt time.Time
	ExpiresAt time.Time
	UpdatedAt time.Time
}

func (s *PaymentSession) Simulated() bool {
	return strings.HasPrefix(s.PaymentID, SimulatedPaymentIDPrefix)
}

func (s *PaymentSession) ExpiredBy(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
