package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-yappy/app/entity"
)

func newTestSession(paymentID, orderID string) *entity.PaymentSession {
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	return &entity.PaymentSession{
		PaymentID: paymentID,
		Order: entity.PaymentOrder{
			OrderID:  orderID,
			Currency: "USD",
			Subtotal: decimal.NewFromInt(95),
			Total:    decimal.NewFromInt(95),
		},
		UserID:    "user-1",
		CourseID:  "course-1",
		Status:    entity.StatusPending,
		CreatedAt: now,
		ExpiresAt: now.Add(15 * time.Minute),
		UpdatedAt: now,
	}
}

func TestMemoryStoreCreateAndFind(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("TXN-1", "ord-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	byID, err := store.FindByID(ctx, "TXN-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if byID == nil || byID.Order.OrderID != "ord-1" {
		t.Fatalf("FindByID returned %+v", byID)
	}

	byOrder, err := store.FindByOrderID(ctx, "ord-1")
	if err != nil {
		t.Fatalf("FindByOrderID: %v", err)
	}
	if byOrder == nil || byOrder.PaymentID != "TXN-1" {
		t.Fatalf("FindByOrderID returned %+v", byOrder)
	}

	missing, err := store.FindByID(ctx, "TXN-2")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if missing != nil {
		t.Fatalf("expected nil for a missing session, got %+v", missing)
	}
}

func TestMemoryStoreRejectsDuplicateOrder(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("TXN-1", "ord-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, newTestSession("TXN-2", "ord-1")); err != ErrSessionAlreadyExists {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
	if err := store.Create(ctx, newTestSession("TXN-1", "ord-2")); err != ErrSessionAlreadyExists {
		t.Fatalf("expected ErrSessionAlreadyExists, got %v", err)
	}
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("TXN-1", "ord-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	first, _ := store.FindByID(ctx, "TXN-1")
	first.Status = entity.StatusCompleted

	second, _ := store.FindByID(ctx, "TXN-1")
	if second.Status != entity.StatusPending {
		t.Fatal("mutating a returned session leaked into the store")
	}
}

func TestTransitionIfPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("TXN-1", "ord-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	at := time.Date(2025, 3, 1, 12, 5, 0, 0, time.UTC)
	txnID := "BANK-1"
	updated, won, err := store.TransitionIfPending(ctx, "TXN-1", Transition{
		To:                    entity.StatusCompleted,
		ProviderTransactionID: &txnID,
		CompletedAt:           &at,
		At:                    at,
	})
	if err != nil {
		t.Fatalf("TransitionIfPending: %v", err)
	}
	if !won {
		t.Fatal("expected the first transition to win")
	}
	if updated.Status != entity.StatusCompleted {
		t.Errorf("status = %s, want completed", updated.Status)
	}
	if updated.ProviderTransactionID == nil || *updated.ProviderTransactionID != "BANK-1" {
		t.Errorf("transaction id = %v", updated.ProviderTransactionID)
	}
	if updated.CompletedAt == nil || !updated.CompletedAt.Equal(at) {
		t.Errorf("completedAt = %v", updated.CompletedAt)
	}

	// A second transition loses and leaves the record untouched.
	reason := "late failure"
	after, won, err := store.TransitionIfPending(ctx, "TXN-1", Transition{
		To:            entity.StatusFailed,
		FailureReason: &reason,
		At:            at.Add(time.Minute),
	})
	if err != nil {
		t.Fatalf("TransitionIfPending: %v", err)
	}
	if won {
		t.Fatal("transition on a terminal session must not win")
	}
	if after.Status != entity.StatusCompleted {
		t.Errorf("status = %s, want completed", after.Status)
	}
	if after.FailureReason != nil {
		t.Errorf("failure reason leaked onto a completed session: %v", *after.FailureReason)
	}
}

func TestTransitionIfPendingMissingSession(t *testing.T) {
	store := NewMemoryStore()

	_, _, err := store.TransitionIfPending(context.Background(), "TXN-404", Transition{
		To: entity.StatusExpired,
		At: time.Now(),
	})
	if err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestTransitionIfPendingSingleWinner(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Create(ctx, newTestSession("TXN-1", "ord-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	const racers = 32
	var wg sync.WaitGroup
	wins := make(chan entity.SessionStatus, racers)

	for i := 0; i < racers; i++ {
		target := entity.StatusCompleted
		if i%2 == 1 {
			target = entity.StatusExpired
		}
		wg.Add(1)
		go func(to entity.SessionStatus) {
			defer wg.Done()
			_, won, err := store.TransitionIfPending(ctx, "TXN-1", Transition{To: to, At: time.Now()})
			if err != nil {
				t.Errorf("TransitionIfPending: %v", err)
				return
			}
			if won {
				wins <- to
			}
		}(target)
	}

	wg.Wait()
	close(wins)

	var winners []entity.SessionStatus
	for status := range wins {
		winners = append(winners, status)
	}
	if len(winners) != 1 {
		t.Fatalf("expected exactly one winning transition, got %d", len(winners))
	}

	final, _ := store.FindByID(ctx, "TXN-1")
	if final.Status != winners[0] {
		t.Errorf("final status %s does not match the winning transition %s", final.Status, winners[0])
	}
}

func TestListExpiredPending(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	expired := newTestSession("TXN-1", "ord-1")
	expired.ExpiresAt = now.Add(-time.Minute)
	live := newTestSession("TXN-2", "ord-2")
	live.ExpiresAt = now.Add(10 * time.Minute)
	done := newTestSession("TXN-3", "ord-3")
	done.ExpiresAt = now.Add(-time.Minute)
	done.Status = entity.StatusCompleted

	for _, session := range []*entity.PaymentSession{expired, live, done} {
		if err := store.Create(ctx, session); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, err := store.ListExpiredPending(ctx, now, 10)
	if err != nil {
		t.Fatalf("ListExpiredPending: %v", err)
	}
	if len(items) != 1 || items[0].PaymentID != "TXN-1" {
		t.Fatalf("ListExpiredPending = %+v, want only TXN-1", items)
	}
}

func TestListPendingForReconcile(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	cutoff := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	stale := newTestSession("TXN-1", "ord-1")
	stale.UpdatedAt = cutoff.Add(-time.Minute)
	fresh := newTestSession("TXN-2", "ord-2")
	fresh.UpdatedAt = cutoff.Add(time.Minute)

	for _, session := range []*entity.PaymentSession{stale, fresh} {
		if err := store.Create(ctx, session); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	items, err := store.ListPendingForReconcile(ctx, cutoff, 10)
	if err != nil {
		t.Fatalf("ListPendingForReconcile: %v", err)
	}
	if len(items) != 1 || items[0].PaymentID != "TXN-1" {
		t.Fatalf("ListPendingForReconcile = %+v, want only TXN-1", items)
	}
}

func TestMemoryEventLogAssignsIDs(t *testing.T) {
	log := NewMemoryEventLog()
	ctx := context.Background()

	for _, eventType := range []string{"session_created", "session_completed"} {
		if err := log.Create(ctx, &entity.SessionEvent{PaymentID: "TXN-1", EventType: eventType, NewStatus: entity.StatusPending}); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	events := log.Events()
	if len(events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(events))
	}
	if events[0].ID == events[1].ID {
		t.Error("event ids must be unique")
	}
}
