package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

const sessionColumns = `
	payment_id, order_id, description, currency,
	subtotal, discount, taxes, total,
	merchant_id, domain, user_id, course_id,
	status, provider_token, document_name, qr_payload, payment_link,
	provider_transaction_id, completed_at, failure_reason,
	created_at, expires_at, updated_at
`

// SessionStore persists payment sessions in MySQL. Transitions out of
// Pending are applied with a conditional UPDATE so the row-level CAS decides
// the winner when the poll and webhook paths race.
type SessionStore struct {
	db DBTX
}

func NewSessionStore(db DBTX) *SessionStore {
	return &SessionStore{db: db}
}

func (r *SessionStore) Create(ctx context.Context, session *entity.PaymentSession) error {
	query := `
		INSERT INTO payment_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, query,
		session.PaymentID,
		session.Order.OrderID,
		session.Order.Description,
		session.Order.Currency,
		session.Order.Subtotal,
		session.Order.Discount,
		session.Order.Taxes,
		session.Order.Total,
		session.Order.MerchantID,
		session.Order.Domain,
		session.UserID,
		session.CourseID,
		int32(session.Status),
		session.ProviderToken,
		session.DocumentName,
		session.QRPayload,
		session.PaymentLink,
		nullableStringValue(session.ProviderTransactionID),
		nullableTimeValue(session.CompletedAt),
		nullableStringValue(session.FailureReason),
		session.CreatedAt,
		session.ExpiresAt,
		session.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrSessionAlreadyExists
		}
		return err
	}

	return nil
}

func (r *SessionStore) FindByID(ctx context.Context, paymentID string) (*entity.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE payment_id = ?`

	session := &entity.PaymentSession{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, paymentID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionStore) FindByOrderID(ctx context.Context, orderID string) (*entity.PaymentSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM payment_sessions WHERE order_id = ? LIMIT 1`

	session := &entity.PaymentSession{}
	if err := scanSession(r.db.QueryRowContext(ctx, query, orderID), session); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}

	return session, nil
}

func (r *SessionStore) TransitionIfPending(ctx context.Context, paymentID string, transition Transition) (*entity.PaymentSession, bool, error) {
	query := `
		UPDATE payment_sessions SET
			status = ?,
			provider_transaction_id = COALESCE(?, provider_transaction_id),
			completed_at = ?,
			failure_reason = COALESCE(?, failure_reason),
			updated_at = ?
		WHERE payment_id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		int32(transition.To),
		nullableStringValue(transition.ProviderTransactionID),
		nullableTimeValue(transition.CompletedAt),
		nullableStringValue(transition.FailureReason),
		transition.At,
		paymentID,
		int32(entity.StatusPending),
	)
	if err != nil {
		return nil, false, err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, err
	}

	session, err := r.FindByID(ctx, paymentID)
	if err != nil {
		return nil, false, err
	}
	if session == nil {
		return nil, false, ErrSessionNotFound
	}

	return session, affected > 0, nil
}

func (r *SessionStore) ListExpiredPending(ctx context.Context, now time.Time, limit int32) ([]*entity.PaymentSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM payment_sessions
		WHERE status = ? AND expires_at <= ?
		ORDER BY expires_at ASC
		LIMIT ?
	`
	return r.listSessions(ctx, query, int32(entity.StatusPending), now, limit)
}

func (r *SessionStore) ListPendingForReconcile(ctx context.Context, before time.Time, limit int32) ([]*entity.PaymentSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM payment_sessions
		WHERE status = ? AND updated_at <= ?
		ORDER BY updated_at ASC
		LIMIT ?
	`
	return r.listSessions(ctx, query, int32(entity.StatusPending), before, limit)
}

func (r *SessionStore) listSessions(ctx context.Context, query string, args ...interface{}) ([]*entity.PaymentSession, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*entity.PaymentSession, 0)
	for rows.Next() {
		item := &entity.PaymentSession{}
		if err := scanSession(rows, item); err != nil {
			return nil, err
		}
		sessions = append(sessions, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return sessions, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSession(scan rowScanner, session *entity.PaymentSession) error {
	var status int32
	var providerTransactionID sql.NullString
	var completedAt sql.NullTime
	var failureReason sql.NullString

	err := scan.Scan(
		&session.PaymentID,
		&session.Order.OrderID,
		&session.Order.Description,
		&session.Order.Currency,
		&session.Order.Subtotal,
		&session.Order.Discount,
		&session.Order.Taxes,
		&session.Order.Total,
		&session.Order.MerchantID,
		&session.Order.Domain,
		&session.UserID,
		&session.CourseID,
		&status,
		&session.ProviderToken,
		&session.DocumentName,
		&session.QRPayload,
		&session.PaymentLink,
		&providerTransactionID,
		&completedAt,
		&failureReason,
		&session.CreatedAt,
		&session.ExpiresAt,
		&session.UpdatedAt,
	)
	if err != nil {
		return err
	}

	session.Status = entity.SessionStatus(status)
	session.ProviderTransactionID = stringPtrFromNull(providerTransactionID)
	session.CompletedAt = timePtrFromNull(completedAt)
	session.FailureReason = stringPtrFromNull(failureReason)

	return nil
}
