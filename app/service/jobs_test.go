package service

import (
	"context"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/provider"
)

func TestRunExpirePendingBatch(t *testing.T) {
	f := newServiceFixture(defaultClient())
	created := f.mustCreate(t)

	f.clock.Advance(16 * time.Minute)

	if err := f.svc.RunExpirePendingBatch(context.Background()); err != nil {
		t.Fatalf("RunExpirePendingBatch: %v", err)
	}

	session, err := f.store.FindByID(context.Background(), created.PaymentID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if session.Status != entity.StatusExpired {
		t.Fatalf("status = %s, want expired", session.Status)
	}
}

func TestRunExpirePendingBatchLeavesLiveSessions(t *testing.T) {
	f := newServiceFixture(defaultClient())
	created := f.mustCreate(t)

	f.clock.Advance(5 * time.Minute)

	if err := f.svc.RunExpirePendingBatch(context.Background()); err != nil {
		t.Fatalf("RunExpirePendingBatch: %v", err)
	}

	session, err := f.store.FindByID(context.Background(), created.PaymentID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if session.Status != entity.StatusPending {
		t.Fatalf("status = %s, want pending", session.Status)
	}
}

func TestRunReconcileBatchAppliesProviderOutcome(t *testing.T) {
	f := newServiceFixture(defaultClient())
	created := f.mustCreate(t)
	f.client.outcomes = []provider.Outcome{provider.OutcomeCompleted}

	// Past the stale threshold but well before the deadline.
	f.clock.Advance(6 * time.Minute)

	if err := f.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch: %v", err)
	}

	session, err := f.store.FindByID(context.Background(), created.PaymentID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if session.Status != entity.StatusCompleted {
		t.Fatalf("status = %s, want completed", session.Status)
	}
	if f.granter.count() != 1 {
		t.Errorf("grant count = %d, want 1", f.granter.count())
	}
}

func TestRunReconcileBatchSkipsStillPending(t *testing.T) {
	f := newServiceFixture(defaultClient())
	created := f.mustCreate(t)
	f.client.outcomes = []provider.Outcome{provider.OutcomePending}

	f.clock.Advance(6 * time.Minute)

	if err := f.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch: %v", err)
	}

	session, err := f.store.FindByID(context.Background(), created.PaymentID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if session.Status != entity.StatusPending {
		t.Fatalf("status = %s, want pending", session.Status)
	}
}

func TestRunReconcileBatchExpiresPastDeadline(t *testing.T) {
	f := newServiceFixture(defaultClient())
	created := f.mustCreate(t)

	f.clock.Advance(16 * time.Minute)

	if err := f.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch: %v", err)
	}

	session, err := f.store.FindByID(context.Background(), created.PaymentID)
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if session.Status != entity.StatusExpired {
		t.Fatalf("status = %s, want expired", session.Status)
	}
	if f.client.queryCalls != 0 {
		t.Errorf("expired session must not be queried against the provider, got %d calls", f.client.queryCalls)
	}
}
