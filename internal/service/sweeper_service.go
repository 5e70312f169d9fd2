package service

import (
	"context"

	domain "race-registration/internal/domain/registration"
	"race-registration/pkg/logger"

	"github.com/google/uuid"
)

// CleanupExpiredRegistrations cancels every hold whose expiry has lapsed and
// marks the pending invites of those registrations as expired. Returns the
// number of registrations cancelled; zero matches is a normal no-op.
//
// The whole sweep is one transaction: it either completes or rolls back and is
// retried on the next scheduled run.
func (s *RegistrationService) CleanupExpiredRegistrations(ctx context.Context) (int, error) {
	now := s.clock.Now()

	var cancelled int
	err := s.store.InTx(ctx, func(tx domain.RegistrationTx) error {
		expired, err := tx.ExpiredHolds(ctx, now)
		if err != nil {
			return err
		}
		if len(expired) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(expired))
		for _, registration := range expired {
			ids = append(ids, registration.RegistrationID)
		}

		if err := tx.CancelRegistrations(ctx, ids); err != nil {
			return err
		}
		if err := tx.ExpireInvites(ctx, ids); err != nil {
			return err
		}
		cancelled = len(ids)
		return nil
	})
	if err != nil {
		return 0, err
	}

	if cancelled > 0 {
		logger.Info("Cancelled %d expired registration holds", cancelled)
	}
	return cancelled, nil
}
