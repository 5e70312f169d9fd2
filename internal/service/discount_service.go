package service

import (
	"context"

	domain "race-registration/internal/domain/registration"
	"race-registration/pkg/logger"

	"github.com/google/uuid"
)

// SyncGroupDiscount recomputes a registration's derived money fields after its
// order composition changed: add-on selections, a redeemed discount code, or
// group membership growth.
//
// Returns nil when the registration is missing or soft-deleted. Registrations
// that are no longer in started/submitted state are returned as an unchanged
// snapshot; the aggregator never mutates a finalized or dead registration.
// Group discounts are monotonic: a previously granted percent-off never
// decreases.
func (s *RegistrationService) SyncGroupDiscount(ctx context.Context, registrationID uuid.UUID) (*domain.DiscountSnapshot, error) {
	now := s.clock.Now()

	var snapshot *domain.DiscountSnapshot
	err := s.store.InTx(ctx, func(tx domain.RegistrationTx) error {
		registration, err := tx.LockRegistration(ctx, registrationID)
		if err != nil {
			return err
		}
		if registration == nil {
			return nil
		}
		if !registration.IsResumable() {
			snapshot = snapshotOf(registration)
			return nil
		}

		addOnTotal, err := tx.SumAddOns(ctx, registrationID)
		if err != nil {
			return err
		}
		redemption, err := tx.Redemption(ctx, registrationID)
		if err != nil {
			return err
		}
		var discountAmount int64
		if redemption != nil {
			discountAmount = redemption.AmountCents
		}

		percent := registration.GroupDiscountPercentOff
		if registration.RegistrationGroupID != nil && redemption == nil {
			resolved, err := tx.BestGroupDiscountPercent(ctx, registration.EditionID, *registration.RegistrationGroupID, now)
			if err != nil {
				return err
			}
			if resolved != nil && (percent == nil || *resolved > *percent) {
				percent = resolved
			}
		}

		var groupAmount *int64
		if percent != nil {
			amount := domain.PercentOfBase(registration.BasePriceCents, *percent)
			groupAmount = &amount
		}

		total := domain.ComputeTotal(
			registration.BasePriceCents,
			registration.FeesCents,
			registration.TaxCents,
			addOnTotal,
			discountAmount,
			groupAmount,
		)

		if !discountFieldsChanged(registration, percent, groupAmount, total) {
			snapshot = snapshotOf(registration)
			return nil
		}

		registration.GroupDiscountPercentOff = percent
		registration.GroupDiscountAmountCents = groupAmount
		registration.TotalCents = &total
		if err := tx.UpdateDiscountFields(ctx, registration); err != nil {
			return err
		}

		logger.Info("Synced discounts for registration %s (total %d cents)", registrationID, total)
		snapshot = snapshotOf(registration)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func snapshotOf(registration *domain.Registration) *domain.DiscountSnapshot {
	return &domain.DiscountSnapshot{
		RegistrationID:           registration.RegistrationID,
		GroupDiscountPercentOff:  registration.GroupDiscountPercentOff,
		GroupDiscountAmountCents: registration.GroupDiscountAmountCents,
		TotalCents:               registration.TotalCents,
	}
}

// discountFieldsChanged reports whether any of the three derived fields would
// actually change, so unchanged registrations skip the write entirely.
func discountFieldsChanged(registration *domain.Registration, percent *int, groupAmount *int64, total int64) bool {
	if !intPtrEqual(registration.GroupDiscountPercentOff, percent) {
		return true
	}
	if !int64PtrEqual(registration.GroupDiscountAmountCents, groupAmount) {
		return true
	}
	return registration.TotalCents == nil || *registration.TotalCents != total
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
