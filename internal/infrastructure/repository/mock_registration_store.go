package repository

import (
	"context"
	"sync"
	"time"

	domain "race-registration/internal/domain/registration"

	"github.com/google/uuid"
)

// MockRegistrationStore is an in-memory implementation of
// domain.RegistrationStore for tests. One mutex guards all state and is held
// for the duration of every transaction, which reproduces the serialization
// the database provides through row locks: conflicting transactions never
// interleave.
type MockRegistrationStore struct {
	mu            sync.Mutex
	editions      map[uuid.UUID]*domain.EventEdition
	distances     map[uuid.UUID]*domain.EventDistance
	registrations map[uuid.UUID]*domain.Registration
	invites       map[uuid.UUID]*domain.RegistrationInvite
	addOns        map[uuid.UUID][]*domain.AddOnSelection
	redemptions   map[uuid.UUID]*domain.DiscountRedemption
	discountTiers []*domain.GroupDiscountTier
}

var _ domain.RegistrationStore = (*MockRegistrationStore)(nil)

// NewMockRegistrationStore creates an empty in-memory store.
func NewMockRegistrationStore() *MockRegistrationStore {
	return &MockRegistrationStore{
		editions:      make(map[uuid.UUID]*domain.EventEdition),
		distances:     make(map[uuid.UUID]*domain.EventDistance),
		registrations: make(map[uuid.UUID]*domain.Registration),
		invites:       make(map[uuid.UUID]*domain.RegistrationInvite),
		addOns:        make(map[uuid.UUID][]*domain.AddOnSelection),
		redemptions:   make(map[uuid.UUID]*domain.DiscountRedemption),
	}
}

// Seed helpers

func (s *MockRegistrationStore) AddEdition(edition *domain.EventEdition) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.editions[edition.EditionID] = edition
}

func (s *MockRegistrationStore) AddDistance(distance *domain.EventDistance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.distances[distance.DistanceID] = distance
}

func (s *MockRegistrationStore) AddRegistration(registration *domain.Registration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registrations[registration.RegistrationID] = registration
}

func (s *MockRegistrationStore) AddInvite(invite *domain.RegistrationInvite) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invites[invite.InviteID] = invite
}

func (s *MockRegistrationStore) AddAddOn(addOn *domain.AddOnSelection) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.addOns[addOn.RegistrationID] = append(s.addOns[addOn.RegistrationID], addOn)
}

func (s *MockRegistrationStore) AddRedemption(redemption *domain.DiscountRedemption) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.redemptions[redemption.RegistrationID] = redemption
}

func (s *MockRegistrationStore) AddGroupDiscountTier(tier *domain.GroupDiscountTier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.discountTiers = append(s.discountTiers, tier)
}

// GetRegistration reads a stored registration directly, for test assertions.
func (s *MockRegistrationStore) GetRegistration(registrationID uuid.UUID) *domain.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	registration, ok := s.registrations[registrationID]
	if !ok {
		return nil
	}
	copied := *registration
	return &copied
}

// GetInvite reads a stored invite directly, for test assertions.
func (s *MockRegistrationStore) GetInvite(inviteID uuid.UUID) *domain.RegistrationInvite {
	s.mu.Lock()
	defer s.mu.Unlock()
	invite, ok := s.invites[inviteID]
	if !ok {
		return nil
	}
	copied := *invite
	return &copied
}

// domain.RegistrationStore

func (s *MockRegistrationStore) GetDistance(ctx context.Context, distanceID uuid.UUID) (*domain.EventDistance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	distance, ok := s.distances[distanceID]
	if !ok || distance.DeletedAt.Valid {
		return nil, nil
	}
	edition, ok := s.editions[distance.EditionID]
	if !ok || edition.DeletedAt.Valid {
		return nil, nil
	}
	copied := *distance
	copied.Edition = *edition
	return &copied, nil
}

func (s *MockRegistrationStore) ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.countActive(editionID, distanceID, now), nil
}

func (s *MockRegistrationStore) InTx(ctx context.Context, fn func(tx domain.RegistrationTx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Snapshot the mutable sets so a failed transaction leaves no partial
	// writes, matching the database rollback contract.
	registrations := make(map[uuid.UUID]*domain.Registration, len(s.registrations))
	for id, registration := range s.registrations {
		copied := *registration
		registrations[id] = &copied
	}
	invites := make(map[uuid.UUID]*domain.RegistrationInvite, len(s.invites))
	for id, invite := range s.invites {
		copied := *invite
		invites[id] = &copied
	}

	if err := fn(&mockTx{store: s}); err != nil {
		s.registrations = registrations
		s.invites = invites
		return err
	}
	return nil
}

func (s *MockRegistrationStore) countActive(editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) int64 {
	var count int64
	for _, registration := range s.registrations {
		if registration.DeletedAt.Valid || registration.EditionID != editionID {
			continue
		}
		if distanceID != nil && registration.DistanceID != *distanceID {
			continue
		}
		if registration.IsActive(now) {
			count++
		}
	}
	return count
}

// mockTx operates on the live maps; the store mutex is already held.
type mockTx struct {
	store *MockRegistrationStore
}

func (t *mockTx) LockEdition(ctx context.Context, editionID uuid.UUID) (*domain.EventEdition, error) {
	edition, ok := t.store.editions[editionID]
	if !ok || edition.DeletedAt.Valid {
		return nil, nil
	}
	copied := *edition
	return &copied, nil
}

func (t *mockTx) LockDistance(ctx context.Context, distanceID uuid.UUID) (*domain.EventDistance, error) {
	distance, ok := t.store.distances[distanceID]
	if !ok || distance.DeletedAt.Valid {
		return nil, nil
	}
	copied := *distance
	return &copied, nil
}

func (t *mockTx) LockRegistration(ctx context.Context, registrationID uuid.UUID) (*domain.Registration, error) {
	registration, ok := t.store.registrations[registrationID]
	if !ok || registration.DeletedAt.Valid {
		return nil, nil
	}
	copied := *registration
	return &copied, nil
}

func (t *mockTx) FindActiveByUser(ctx context.Context, userID, editionID uuid.UUID, now time.Time) (*domain.Registration, error) {
	for _, registration := range t.store.registrations {
		if registration.DeletedAt.Valid || registration.EditionID != editionID {
			continue
		}
		if registration.BuyerUserID == nil || *registration.BuyerUserID != userID {
			continue
		}
		if registration.IsActive(now) {
			copied := *registration
			return &copied, nil
		}
	}
	return nil, nil
}

func (t *mockTx) ActiveCount(ctx context.Context, editionID uuid.UUID, distanceID *uuid.UUID, now time.Time) (int64, error) {
	return t.store.countActive(editionID, distanceID, now), nil
}

func (t *mockTx) CreateRegistration(ctx context.Context, registration *domain.Registration) error {
	copied := *registration
	t.store.registrations[registration.RegistrationID] = &copied
	return nil
}

func (t *mockTx) UpdateDiscountFields(ctx context.Context, registration *domain.Registration) error {
	stored, ok := t.store.registrations[registration.RegistrationID]
	if !ok {
		return nil
	}
	stored.GroupDiscountPercentOff = registration.GroupDiscountPercentOff
	stored.GroupDiscountAmountCents = registration.GroupDiscountAmountCents
	stored.TotalCents = registration.TotalCents
	return nil
}

func (t *mockTx) SumAddOns(ctx context.Context, registrationID uuid.UUID) (int64, error) {
	var total int64
	for _, addOn := range t.store.addOns[registrationID] {
		total += addOn.LineTotalCents
	}
	return total, nil
}

func (t *mockTx) Redemption(ctx context.Context, registrationID uuid.UUID) (*domain.DiscountRedemption, error) {
	redemption, ok := t.store.redemptions[registrationID]
	if !ok {
		return nil, nil
	}
	copied := *redemption
	return &copied, nil
}

func (t *mockTx) BestGroupDiscountPercent(ctx context.Context, editionID, groupID uuid.UUID, now time.Time) (*int, error) {
	var groupSize int64
	for _, registration := range t.store.registrations {
		if registration.DeletedAt.Valid || registration.EditionID != editionID {
			continue
		}
		if registration.RegistrationGroupID == nil || *registration.RegistrationGroupID != groupID {
			continue
		}
		if registration.IsActive(now) {
			groupSize++
		}
	}

	var best *int
	for _, tier := range t.store.discountTiers {
		if tier.EditionID != editionID || int64(tier.MinGroupSize) > groupSize {
			continue
		}
		if best == nil || tier.PercentOff > *best {
			percent := tier.PercentOff
			best = &percent
		}
	}
	return best, nil
}

func (t *mockTx) ExpiredHolds(ctx context.Context, now time.Time) ([]*domain.Registration, error) {
	var expired []*domain.Registration
	for _, registration := range t.store.registrations {
		if registration.DeletedAt.Valid {
			continue
		}
		if !isHoldStatus(registration.Status) {
			continue
		}
		if registration.ExpiresAt == nil || registration.ExpiresAt.After(now) {
			continue
		}
		copied := *registration
		expired = append(expired, &copied)
	}
	return expired, nil
}

func (t *mockTx) CancelRegistrations(ctx context.Context, registrationIDs []uuid.UUID) error {
	for _, id := range registrationIDs {
		if registration, ok := t.store.registrations[id]; ok {
			registration.Status = domain.StatusCancelled
			registration.ExpiresAt = nil
		}
	}
	return nil
}

func (t *mockTx) ExpireInvites(ctx context.Context, registrationIDs []uuid.UUID) error {
	ids := make(map[uuid.UUID]struct{}, len(registrationIDs))
	for _, id := range registrationIDs {
		ids[id] = struct{}{}
	}
	for _, invite := range t.store.invites {
		if _, ok := ids[invite.RegistrationID]; !ok {
			continue
		}
		if invite.Status != domain.InviteDraft && invite.Status != domain.InviteSent {
			continue
		}
		if invite.ExpiresAt == nil {
			continue
		}
		invite.Status = domain.InviteExpired
		invite.IsCurrent = false
	}
	return nil
}

func isHoldStatus(status domain.RegistrationStatus) bool {
	for _, hold := range domain.HoldStatuses {
		if status == hold {
			return true
		}
	}
	return false
}
