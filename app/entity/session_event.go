package entity

import "time"

type SessionEvent struct {
	ID uint64

	PaymentID string

	EventType string

	OldStatus *SessionStatus
	NewStatus SessionStatus

	PayloadJSON *string
	Error       *string

	CreatedAt time.Time
}
