package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RegistrationStore is the persistence boundary for the registration core.
// Soft-deleted rows are invisible through every method.
type RegistrationStore interface {
	// GetDistance loads a distance with its edition and pricing tiers.
	// Returns nil when the distance does not exist or is soft-deleted.
	GetDistance(ctx context.Context, distanceID uuid.UUID) (*EventDistance, error)

	// ActiveCount counts active registrations (per Registration.IsActive) for
	// an edition; a non-nil distanceID narrows the count to that distance.
	ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error)

	// InTx runs fn inside one transaction. Row locks taken through the tx are
	// held until commit or rollback. The error from fn is returned unchanged
	// so typed domain errors survive the rollback.
	InTx(ctx context.Context, fn func(tx RegistrationTx) error) error
}

// RegistrationTx is the transaction-scoped view of the store. Lock methods
// acquire exclusive row-level locks; the ledger takes them in a fixed order
// (edition, then distance) before any decision-relevant read.
type RegistrationTx interface {
	// LockEdition locks the edition row. Returns nil when missing or deleted.
	LockEdition(ctx context.Context, editionID uuid.UUID) (*EventEdition, error)

	// LockDistance locks the distance row. Returns nil when missing or deleted.
	LockDistance(ctx context.Context, distanceID uuid.UUID) (*EventDistance, error)

	// LockRegistration locks a single registration row. Returns nil when
	// missing or deleted.
	LockRegistration(ctx context.Context, registrationID uuid.UUID) (*Registration, error)

	// FindActiveByUser returns the user's active registration within the
	// edition, or nil. At most one can exist by invariant.
	FindActiveByUser(ctx context.Context, userID, editionID uuid.UUID, now time.Time) (*Registration, error)

	// ActiveCount is the in-transaction variant of RegistrationStore.ActiveCount.
	ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error)

	// CreateRegistration inserts a new registration row.
	CreateRegistration(ctx context.Context, registration *Registration) error

	// UpdateDiscountFields persists the registration's derived money fields
	// (group discount percent, group discount amount, total).
	UpdateDiscountFields(ctx context.Context, registration *Registration) error

	// SumAddOns totals the registration's add-on line totals.
	SumAddOns(ctx context.Context, registrationID uuid.UUID) (int64, error)

	// Redemption returns the registration's discount redemption, or nil.
	Redemption(ctx context.Context, registrationID uuid.UUID) (*DiscountRedemption, error)

	// BestGroupDiscountPercent resolves the highest percent-off the group
	// currently qualifies for within the edition, or nil when none applies.
	BestGroupDiscountPercent(ctx context.Context, editionID, groupID uuid.UUID, now time.Time) (*int, error)

	// ExpiredHolds returns non-deleted registrations in a hold status whose
	// expires_at has lapsed at or before now.
	ExpiredHolds(ctx context.Context, now time.Time) ([]*Registration, error)

	// CancelRegistrations marks the given registrations cancelled and clears
	// their expiry.
	CancelRegistrations(ctx context.Context, registrationIDs []uuid.UUID) error

	// ExpireInvites marks draft/sent invites of the given registrations as
	// expired and no longer current. Only invites carrying an expiry are
	// touched; the parent registration lapsing is the triggering event, so
	// the invite's own timestamp is deliberately not consulted.
	ExpireInvites(ctx context.Context, registrationIDs []uuid.UUID) error
}
