package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

// SessionEventLog appends transition and webhook-delivery records. Audit
// only; nothing reads it on the request path.
type SessionEventLog struct {
	db DBTX
}

func NewSessionEventLog(db DBTX) *SessionEventLog {
	return &SessionEventLog{db: db}
}

func (r *SessionEventLog) Create(ctx context.Context, event *entity.SessionEvent) error {
	query := `
		INSERT INTO payment_session_events (
			payment_id, event_type, old_status, new_status, payload_json, error, created_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var oldStatus interface{}
	if event.OldStatus != nil {
		oldStatus = int32(*event.OldStatus)
	}

	result, err := r.db.ExecContext(ctx, query,
		event.PaymentID,
		event.EventType,
		oldStatus,
		int32(event.NewStatus),
		nullableStringValue(event.PayloadJSON),
		nullableStringValue(event.Error),
		event.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	event.ID = uint64(id)
	return nil
}
