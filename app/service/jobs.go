package service

import (
	"context"

	"github.com/vibast-solutions/ms-go-yappy/app/entity"
	"github.com/vibast-solutions/ms-go-yappy/app/provider"
	"github.com/vibast-solutions/ms-go-yappy/app/repository"
)

// RunExpirePendingBatch sweeps Pending sessions past their deadline. Lazy
// expiry on read already guarantees correctness for polled sessions; this
// batch keeps abandoned sessions from lingering Pending forever when nobody
// polls them again.
func (s *SessionService) RunExpirePendingBatch(ctx context.Context) error {
	now := s.now().UTC()
	items, err := s.store.ListExpiredPending(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, session := range items {
		if session == nil {
			continue
		}
		_, err := s.resolve(ctx, session, repository.Transition{
			To: entity.StatusExpired,
			At: now,
		}, "session_expired")
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

// RunReconcileBatch queries the provider for Pending sessions that have not
// moved in a while, covering webhook deliveries that never arrived. Sessions
// already past their deadline expire instead of consulting the provider.
func (s *SessionService) RunReconcileBatch(ctx context.Context) error {
	now := s.now().UTC()
	before := now.Add(-s.sessionsCfg.ReconcileStaleAfter)
	items, err := s.store.ListPendingForReconcile(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, session := range items {
		if session == nil {
			continue
		}
		if session.ExpiredBy(now) {
			if _, err := s.resolve(ctx, session, repository.Transition{
				To: entity.StatusExpired,
				At: now,
			}, "session_expired"); err != nil {
				firstErr = keepFirstErr(firstErr, err)
			}
			continue
		}

		outcome, err := s.client.QueryOrderStatus(ctx, session.PaymentID)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if outcome == provider.OutcomeUnknown || outcome == provider.OutcomePending {
			continue
		}

		if _, err := s.ApplyProviderEvent(ctx, session.PaymentID, outcome, ""); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}
