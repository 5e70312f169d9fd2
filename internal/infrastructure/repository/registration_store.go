package repository

import (
	"context"
	"errors"
	"time"

	domain "race-registration/internal/domain/registration"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RegistrationStore implements domain.RegistrationStore on GORM/Postgres.
// Row-level exclusivity comes from SELECT ... FOR UPDATE inside a transaction;
// soft deletion is enforced uniformly by gorm.DeletedAt on the models.
type RegistrationStore struct {
	db *gorm.DB
}

var _ domain.RegistrationStore = (*RegistrationStore)(nil)

// NewRegistrationStore creates a GORM-backed registration store.
func NewRegistrationStore(db *gorm.DB) domain.RegistrationStore {
	return &RegistrationStore{db: db}
}

func (s *RegistrationStore) GetDistance(ctx context.Context, distanceID uuid.UUID) (*domain.EventDistance, error) {
	var distance domain.EventDistance
	err := s.db.WithContext(ctx).
		Preload("Edition").
		Preload("PricingTiers").
		First(&distance, "distance_id = ?", distanceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	// A soft-deleted edition leaves the preload empty; the distance is then
	// just as unavailable as a deleted one.
	if distance.Edition.EditionID == uuid.Nil {
		return nil, nil
	}
	return &distance, nil
}

func (s *RegistrationStore) ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error) {
	return countActive(s.db.WithContext(ctx), editionID, distanceID, now)
}

func (s *RegistrationStore) InTx(ctx context.Context, fn func(tx domain.RegistrationTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&registrationTx{db: tx})
	})
}

// activeRegistrations narrows a registrations query to rows that count as
// active: confirmed, or an unexpired hold. This is the single predicate shared
// by the ledger, the aggregator and the sweeper.
func activeRegistrations(q *gorm.DB, now time.Time) *gorm.DB {
	return q.Where(
		"(status = ? OR (status IN ? AND expires_at > ?))",
		domain.StatusConfirmed, domain.HoldStatuses, now,
	)
}

func countActive(db *gorm.DB, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error) {
	q := db.Model(&domain.Registration{}).Where("edition_id = ?", editionID)
	if distanceID != nil {
		q = q.Where("distance_id = ?", *distanceID)
	}
	var count int64
	if err := activeRegistrations(q, now).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// registrationTx is the transaction-scoped store view handed to InTx callers.
type registrationTx struct {
	db *gorm.DB
}

var forUpdate = clause.Locking{Strength: "UPDATE"}

func (t *registrationTx) LockEdition(ctx context.Context, editionID uuid.UUID) (*domain.EventEdition, error) {
	var edition domain.EventEdition
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		First(&edition, "edition_id = ?", editionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &edition, nil
}

func (t *registrationTx) LockDistance(ctx context.Context, distanceID uuid.UUID) (*domain.EventDistance, error) {
	var distance domain.EventDistance
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		First(&distance, "distance_id = ?", distanceID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &distance, nil
}

func (t *registrationTx) LockRegistration(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error) {
	var registration domain.Registration
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		First(&registration, "registration_id = ?", registrationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

func (t *registrationTx) FindActiveByUser(ctx context.Context, userID, editionID uuid.UUID, now time.Time) (*domain.Registration, error) {
	q := t.db.WithContext(ctx).
		Where("buyer_user_id = ? AND edition_id = ?", userID, editionID)
	var registration domain.Registration
	err := activeRegistrations(q, now).First(&registration).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &registration, nil
}

func (t *registrationTx) ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error) {
	return countActive(t.db.WithContext(ctx), editionID, distanceID, now)
}

func (t *registrationTx) CreateRegistration(ctx context.Context, registration *domain.Registration) error {
	return t.db.WithContext(ctx).Create(registration).Error
}

func (t *registrationTx) UpdateDiscountFields(ctx context.Context, registration *domain.Registration) error {
	return t.db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("registration_id = ?", registration.RegistrationID).
		Updates(map[string]interface{}{
			"group_discount_percent_off":  registration.GroupDiscountPercentOff,
			"group_discount_amount_cents": registration.GroupDiscountAmountCents,
			"total_cents":                 registration.TotalCents,
		}).Error
}

func (t *registrationTx) SumAddOns(ctx context.Context, registrationID uuid.UUID) (int64, error) {
	var total int64
	err := t.db.WithContext(ctx).
		Model(&domain.AddOnSelection{}).
		Where("registration_id = ?", registrationID).
		Select("COALESCE(SUM(line_total_cents), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (t *registrationTx) Redemption(ctx context.Context, registrationID uuid.UUID) (*domain.DiscountRedemption, error) {
	var redemption domain.DiscountRedemption
	err := t.db.WithContext(ctx).
		First(&redemption, "registration_id = ?", registrationID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &redemption, nil
}

func (t *registrationTx) BestGroupDiscountPercent(ctx context.Context, editionID, groupID uuid.UUID, now time.Time) (*int, error) {
	q := t.db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("edition_id = ? AND registration_group_id = ?", editionID, groupID)
	var groupSize int64
	if err := activeRegistrations(q, now).Count(&groupSize).Error; err != nil {
		return nil, err
	}

	var tier domain.GroupDiscountTier
	err := t.db.WithContext(ctx).
		Where("edition_id = ? AND min_group_size <= ?", editionID, groupSize).
		Order("percent_off DESC").
		First(&tier).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &tier.PercentOff, nil
}

func (t *registrationTx) ExpiredHolds(ctx context.Context, now time.Time) ([]*domain.Registration, error) {
	var expired []*domain.Registration
	err := t.db.WithContext(ctx).Clauses(forUpdate).
		Where("status IN ?", domain.HoldStatuses).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Find(&expired).Error
	if err != nil {
		return nil, err
	}
	return expired, nil
}

func (t *registrationTx) CancelRegistrations(ctx context.Context, registrationIDs []uuid.UUID) error {
	return t.db.WithContext(ctx).
		Model(&domain.Registration{}).
		Where("registration_id IN ?", registrationIDs).
		Updates(map[string]interface{}{
			"status":     domain.StatusCancelled,
			"expires_at": nil,
		}).Error
}

func (t *registrationTx) ExpireInvites(ctx context.Context, registrationIDs []uuid.UUID) error {
	return t.db.WithContext(ctx).
		Model(&domain.RegistrationInvite{}).
		Where("registration_id IN ?", registrationIDs).
		Where("status IN ?", []domain.InviteStatus{domain.InviteDraft, domain.InviteSent}).
		Where("expires_at IS NOT NULL").
		Updates(map[string]interface{}{
			"status":     domain.InviteExpired,
			"is_current": false,
		}).Error
}
