package service

import (
	"context"
	"time"

	domain "race-registration/internal/domain/registration"
	"race-registration/pkg/clock"
	"race-registration/pkg/logger"

	"github.com/google/uuid"
)

// DefaultHoldTTL is how long a freshly started registration reserves its spot
// before the sweeper may cancel it.
const DefaultHoldTTL = 15 * time.Minute

// RegistrationService is the registration ledger: it acquires capacity holds,
// keeps order totals in sync and expires lapsed holds. All time comparisons go
// through the injected clock.
type RegistrationService struct {
	store   domain.RegistrationStore
	clock   clock.Clock
	holdTTL time.Duration
}

// NewRegistrationService wires the service. A nil clk falls back to the system
// clock; a non-positive holdTTL falls back to DefaultHoldTTL.
func NewRegistrationService(store domain.RegistrationStore, clk clock.Clock, holdTTL time.Duration) *RegistrationService {
	if clk == nil {
		clk = clock.System{}
	}
	if holdTTL <= 0 {
		holdTTL = DefaultHoldTTL
	}
	return &RegistrationService{
		store:   store,
		clock:   clk,
		holdTTL: holdTTL,
	}
}

// StartRegistration reserves a spot on a distance for a user, or resumes the
// user's in-progress hold for that distance.
//
// Rejections are typed *domain.Error values (NOT_FOUND, NOT_PUBLISHED,
// REGISTRATION_PAUSED, REGISTRATION_NOT_OPEN, REGISTRATION_CLOSED, SOLD_OUT,
// ALREADY_REGISTERED). Infrastructure failures propagate unwrapped; callers
// may retry but must re-validate from the top, since a transient SOLD_OUT can
// succeed later.
func (s *RegistrationService) StartRegistration(ctx context.Context, userID, distanceID uuid.UUID) (*domain.Registration, error) {
	now := s.clock.Now()

	distance, err := s.store.GetDistance(ctx, distanceID)
	if err != nil {
		return nil, err
	}
	if distance == nil {
		return nil, domain.ErrNotFound
	}

	if err := domain.ValidateOpen(&distance.Edition, now); err != nil {
		return nil, err
	}

	quote := domain.QuotePrice(distance, now)

	var result *domain.Registration
	err = s.store.InTx(ctx, func(tx domain.RegistrationTx) error {
		// Lock order is fixed for every caller: edition first, then
		// distance. The edition lock serializes all attempts within the
		// edition, which the cross-distance single-registration rule needs;
		// the distance lock serializes capacity checks for this distance.
		edition, err := tx.LockEdition(ctx, distance.EditionID)
		if err != nil {
			return err
		}
		if edition == nil {
			return domain.ErrNotFound
		}

		locked, err := tx.LockDistance(ctx, distanceID)
		if err != nil {
			return err
		}
		if locked == nil {
			return domain.ErrNotFound
		}

		existing, err := tx.FindActiveByUser(ctx, userID, edition.EditionID, now)
		if err != nil {
			return err
		}
		if existing != nil {
			if existing.DistanceID == distanceID && existing.IsResumable() {
				// Idempotent resume: hand the in-progress hold back
				// untouched, no new row.
				result = existing
				return nil
			}
			return domain.ErrAlreadyRegistered
		}

		var countScope *uuid.UUID
		if locked.CapacityScope != domain.CapacityScopeSharedPool {
			countScope = &locked.DistanceID
		}
		activeCount, err := tx.ActiveCount(ctx, edition.EditionID, countScope, now)
		if err != nil {
			return err
		}
		if !domain.HasCapacity(edition, locked, activeCount) {
			return domain.ErrSoldOut
		}

		expiresAt := now.Add(s.holdTTL)
		total := quote.TotalCents
		registration := &domain.Registration{
			RegistrationID: uuid.New(),
			EditionID:      edition.EditionID,
			DistanceID:     locked.DistanceID,
			BuyerUserID:    &userID,
			Status:         domain.StatusStarted,
			BasePriceCents: quote.BasePriceCents,
			FeesCents:      quote.FeesCents,
			TaxCents:       quote.TaxCents,
			TotalCents:     &total,
			ExpiresAt:      &expiresAt,
		}
		if err := tx.CreateRegistration(ctx, registration); err != nil {
			return err
		}
		result = registration
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Registration %s for user %s on distance %s (status %s)",
		result.RegistrationID, userID, distanceID, result.Status)
	return result, nil
}
