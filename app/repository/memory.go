package repository

import (
	"context"
	"sync"
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

// MemoryStore keeps sessions in a mutexed map. It is the default backend for
// local development and satisfies the same CAS contract as the MySQL and
// Redis stores; callers always receive copies, never the stored record.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]*entity.PaymentSession
	byOrder  map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: map[string]*entity.PaymentSession{},
		byOrder:  map[string]string{},
	}
}

func (s *MemoryStore) Create(_ context.Context, session *entity.PaymentSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[session.PaymentID]; ok {
		return ErrSessionAlreadyExists
	}
	if _, ok := s.byOrder[session.Order.OrderID]; ok {
		return ErrSessionAlreadyExists
	}

	copyItem := *session
	s.sessions[session.PaymentID] = &copyItem
	s.byOrder[session.Order.OrderID] = session.PaymentID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, paymentID string) (*entity.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[paymentID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s *MemoryStore) FindByOrderID(_ context.Context, orderID string) (*entity.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	paymentID, ok := s.byOrder[orderID]
	if !ok {
		return nil, nil
	}
	item, ok := s.sessions[paymentID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (s *MemoryStore) TransitionIfPending(_ context.Context, paymentID string, transition Transition) (*entity.PaymentSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.sessions[paymentID]
	if !ok {
		return nil, false, ErrSessionNotFound
	}
	if item.Status != entity.StatusPending {
		copyItem := *item
		return &copyItem, false, nil
	}

	item.Status = transition.To
	if transition.ProviderTransactionID != nil {
		item.ProviderTransactionID = transition.ProviderTransactionID
	}
	item.CompletedAt = transition.CompletedAt
	if transition.FailureReason != nil {
		item.FailureReason = transition.FailureReason
	}
	item.UpdatedAt = transition.At

	copyItem := *item
	return &copyItem, true, nil
}

func (s *MemoryStore) ListExpiredPending(_ context.Context, now time.Time, limit int32) ([]*entity.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.PaymentSession, 0)
	for _, item := range s.sessions {
		if int32(len(items)) >= limit {
			break
		}
		if item.Status == entity.StatusPending && item.ExpiredBy(now) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

func (s *MemoryStore) ListPendingForReconcile(_ context.Context, before time.Time, limit int32) ([]*entity.PaymentSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]*entity.PaymentSession, 0)
	for _, item := range s.sessions {
		if int32(len(items)) >= limit {
			break
		}
		if item.Status == entity.StatusPending && !item.UpdatedAt.After(before) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	return items, nil
}

// MemoryEventLog records transition events in-process. Used with the memory
// and redis backends, and by tests to assert on emitted events.
type MemoryEventLog struct {
	mu     sync.Mutex
	events []*entity.SessionEvent
}

func NewMemoryEventLog() *MemoryEventLog {
	return &MemoryEventLog{}
}

func (l *MemoryEventLog) Create(_ context.Context, event *entity.SessionEvent) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	copyItem := *event
	copyItem.ID = uint64(len(l.events) + 1)
	l.events = append(l.events, &copyItem)
	return nil
}

func (l *MemoryEventLog) Events() []*entity.SessionEvent {
	l.mu.Lock()
	defer l.mu.Unlock()

	items := make([]*entity.SessionEvent, 0, len(l.events))
	for _, event := range l.events {
		copyItem := *event
		items = append(items, &copyItem)
	}
	return items
}
