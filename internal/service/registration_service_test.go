package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	domain "race-registration/internal/domain/registration"
	"race-registration/internal/infrastructure/repository"
	"race-registration/pkg/clock"

	"github.com/google/uuid"
)

var testNow = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(v int) *int              { return &v }

// newFixture seeds a published edition with one capacity-limited distance and
// an active pricing tier.
func newFixture(capacity *int) (*repository.MockRegistrationStore, *clock.Fake, *RegistrationService, *domain.EventEdition, *domain.EventDistance) {
	store := repository.NewMockRegistrationStore()
	clk := clock.NewFake(testNow)
	svc := NewRegistrationService(store, clk, DefaultHoldTTL)

	edition := &domain.EventEdition{
		EditionID:            uuid.New(),
		Name:                 "City Marathon 2026",
		Visibility:           domain.VisibilityPublished,
		RegistrationOpensAt:  timePtr(testNow.Add(-24 * time.Hour)),
		RegistrationClosesAt: timePtr(testNow.Add(24 * time.Hour)),
	}
	distance := &domain.EventDistance{
		DistanceID:    uuid.New(),
		EditionID:     edition.EditionID,
		Name:          "10K",
		Capacity:      capacity,
		CapacityScope: domain.CapacityScopeDistance,
		PricingTiers: []domain.PricingTier{
			{TierID: uuid.New(), Name: "Regular", PriceCents: 5000, SortOrder: 0},
		},
	}

	store.AddEdition(edition)
	store.AddDistance(distance)
	return store, clk, svc, edition, distance
}

func TestStartRegistration_CreatesHold(t *testing.T) {
	store, _, svc, edition, distance := newFixture(intPtr(100))
	userID := uuid.New()

	registration, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if registration == nil {
		t.Fatal("Expected a registration, got nil")
	}

	if registration.Status != domain.StatusStarted {
		t.Errorf("Expected status started, got %s", registration.Status)
	}
	if registration.EditionID != edition.EditionID {
		t.Errorf("Expected edition %s, got %s", edition.EditionID, registration.EditionID)
	}
	if registration.BuyerUserID == nil || *registration.BuyerUserID != userID {
		t.Error("Expected buyer user id to be set")
	}
	if registration.BasePriceCents != 5000 {
		t.Errorf("Expected base price 5000, got %d", registration.BasePriceCents)
	}
	if registration.FeesCents != 250 {
		t.Errorf("Expected fees 250, got %d", registration.FeesCents)
	}
	if registration.TotalCents == nil || *registration.TotalCents != 5250 {
		t.Errorf("Expected total 5250, got %v", registration.TotalCents)
	}
	if registration.ExpiresAt == nil || !registration.ExpiresAt.Equal(testNow.Add(DefaultHoldTTL)) {
		t.Errorf("Expected hold to expire at now+%s, got %v", DefaultHoldTTL, registration.ExpiresAt)
	}

	if stored := store.GetRegistration(registration.RegistrationID); stored == nil {
		t.Error("Expected registration to be persisted")
	}
}

func TestStartRegistration_UnknownDistance(t *testing.T) {
	_, _, svc, _, _ := newFixture(intPtr(100))

	_, err := svc.StartRegistration(context.Background(), uuid.New(), uuid.New())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("Expected NOT_FOUND, got %v", err)
	}
}

func TestStartRegistration_WindowRejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*domain.EventEdition)
		want   error
	}{
		{
			name:   "unpublished edition",
			mutate: func(e *domain.EventEdition) { e.Visibility = domain.VisibilityDraft },
			want:   domain.ErrNotPublished,
		},
		{
			name:   "paused edition",
			mutate: func(e *domain.EventEdition) { e.IsRegistrationPaused = true },
			want:   domain.ErrRegistrationPaused,
		},
		{
			name:   "not yet open",
			mutate: func(e *domain.EventEdition) { e.RegistrationOpensAt = timePtr(testNow.Add(time.Hour)) },
			want:   domain.ErrRegistrationNotOpen,
		},
		{
			name:   "already closed",
			mutate: func(e *domain.EventEdition) { e.RegistrationClosesAt = timePtr(testNow.Add(-time.Hour)) },
			want:   domain.ErrRegistrationClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, _, svc, edition, distance := newFixture(intPtr(100))
			tt.mutate(edition)
			store.AddEdition(edition)

			_, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestStartRegistration_SoldOut(t *testing.T) {
	_, _, svc, _, distance := newFixture(intPtr(2))

	for i := 0; i < 2; i++ {
		if _, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID); err != nil {
			t.Fatalf("Expected registration %d to succeed, got %v", i+1, err)
		}
	}

	_, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if !errors.Is(err, domain.ErrSoldOut) {
		t.Fatalf("Expected SOLD_OUT, got %v", err)
	}
}

func TestStartRegistration_ConcurrentNeverOversells(t *testing.T) {
	const capacity = 5
	const attempts = 25

	_, _, svc, _, distance := newFixture(intPtr(capacity))

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded, soldOut := 0, 0
	for err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrSoldOut):
			soldOut++
		default:
			t.Fatalf("Unexpected error: %v", err)
		}
	}

	if succeeded != capacity {
		t.Errorf("Expected exactly %d successful registrations, got %d", capacity, succeeded)
	}
	if soldOut != attempts-capacity {
		t.Errorf("Expected %d SOLD_OUT rejections, got %d", attempts-capacity, soldOut)
	}
}

func TestStartRegistration_ResumeReturnsSameHold(t *testing.T) {
	_, _, svc, _, distance := newFixture(intPtr(100))
	userID := uuid.New()

	first, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected first start to succeed, got %v", err)
	}

	second, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected resume to succeed, got %v", err)
	}

	if second.RegistrationID != first.RegistrationID {
		t.Errorf("Expected the same registration back, got %s and %s", first.RegistrationID, second.RegistrationID)
	}
	if second.ExpiresAt == nil || !second.ExpiresAt.Equal(*first.ExpiresAt) {
		t.Error("Expected resume to leave the hold expiry untouched")
	}
}

func TestStartRegistration_BlocksSecondDistanceInEdition(t *testing.T) {
	store, _, svc, edition, distance := newFixture(intPtr(100))
	userID := uuid.New()

	other := &domain.EventDistance{
		DistanceID:    uuid.New(),
		EditionID:     edition.EditionID,
		Name:          "Half Marathon",
		CapacityScope: domain.CapacityScopeDistance,
	}
	store.AddDistance(other)

	if _, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID); err != nil {
		t.Fatalf("Expected first registration to succeed, got %v", err)
	}

	_, err := svc.StartRegistration(context.Background(), userID, other.DistanceID)
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("Expected ALREADY_REGISTERED, got %v", err)
	}
}

func TestStartRegistration_ConfirmedBlocksResume(t *testing.T) {
	store, _, svc, _, distance := newFixture(intPtr(100))
	userID := uuid.New()

	first, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected first start to succeed, got %v", err)
	}

	confirmed := store.GetRegistration(first.RegistrationID)
	confirmed.Status = domain.StatusConfirmed
	confirmed.ExpiresAt = nil
	store.AddRegistration(confirmed)

	_, err = svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("Expected ALREADY_REGISTERED for confirmed registration, got %v", err)
	}
}

func TestStartRegistration_ExpiredHoldReleasesSpot(t *testing.T) {
	_, clk, svc, _, distance := newFixture(intPtr(1))
	userID := uuid.New()

	if _, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID); err != nil {
		t.Fatalf("Expected first start to succeed, got %v", err)
	}

	blocked, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if !errors.Is(err, domain.ErrSoldOut) {
		t.Fatalf("Expected SOLD_OUT while the hold is live, got %v (registration %v)", err, blocked)
	}

	// Once the hold lapses, the spot frees up without any sweeper run.
	clk.Advance(DefaultHoldTTL + time.Minute)

	if _, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID); err != nil {
		t.Fatalf("Expected registration after hold expiry to succeed, got %v", err)
	}
}

func TestStartRegistration_ReRegisterAfterCancel(t *testing.T) {
	store, _, svc, _, distance := newFixture(intPtr(100))
	userID := uuid.New()

	first, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected first start to succeed, got %v", err)
	}

	cancelled := store.GetRegistration(first.RegistrationID)
	cancelled.Status = domain.StatusCancelled
	cancelled.ExpiresAt = nil
	store.AddRegistration(cancelled)

	second, err := svc.StartRegistration(context.Background(), userID, distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected re-registration after cancel to succeed, got %v", err)
	}
	if second.RegistrationID == first.RegistrationID {
		t.Error("Expected a fresh registration, got the cancelled one back")
	}
}

func TestStartRegistration_SharedPoolCapacity(t *testing.T) {
	store := repository.NewMockRegistrationStore()
	clk := clock.NewFake(testNow)
	svc := NewRegistrationService(store, clk, DefaultHoldTTL)

	edition := &domain.EventEdition{
		EditionID:      uuid.New(),
		Name:           "Trail Weekend",
		Visibility:     domain.VisibilityPublished,
		SharedCapacity: intPtr(2),
	}
	store.AddEdition(edition)

	short := &domain.EventDistance{
		DistanceID:    uuid.New(),
		EditionID:     edition.EditionID,
		Name:          "Short Trail",
		CapacityScope: domain.CapacityScopeSharedPool,
	}
	long := &domain.EventDistance{
		DistanceID:    uuid.New(),
		EditionID:     edition.EditionID,
		Name:          "Long Trail",
		CapacityScope: domain.CapacityScopeSharedPool,
	}
	store.AddDistance(short)
	store.AddDistance(long)

	if _, err := svc.StartRegistration(context.Background(), uuid.New(), short.DistanceID); err != nil {
		t.Fatalf("Expected first registration to succeed, got %v", err)
	}
	if _, err := svc.StartRegistration(context.Background(), uuid.New(), long.DistanceID); err != nil {
		t.Fatalf("Expected second registration to succeed, got %v", err)
	}

	// The pool is shared across distances, so the third attempt fails even
	// though each distance has no individual cap.
	_, err := svc.StartRegistration(context.Background(), uuid.New(), short.DistanceID)
	if !errors.Is(err, domain.ErrSoldOut) {
		t.Fatalf("Expected SOLD_OUT from the shared pool, got %v", err)
	}
}

func TestSyncGroupDiscount_MissingRegistration(t *testing.T) {
	_, _, svc, _, _ := newFixture(intPtr(100))

	snapshot, err := svc.SyncGroupDiscount(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snapshot != nil {
		t.Errorf("Expected nil snapshot for a missing registration, got %+v", snapshot)
	}
}

func TestSyncGroupDiscount_AddOnsAndRedemption(t *testing.T) {
	store, _, svc, _, distance := newFixture(intPtr(100))

	registration, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	store.AddAddOn(&domain.AddOnSelection{
		SelectionID:    uuid.New(),
		RegistrationID: registration.RegistrationID,
		Name:           "Finisher Shirt",
		LineTotalCents: 1500,
	})
	store.AddRedemption(&domain.DiscountRedemption{
		RedemptionID:   uuid.New(),
		RegistrationID: registration.RegistrationID,
		Code:           "SPRING10",
		AmountCents:    1000,
	})

	snapshot, err := svc.SyncGroupDiscount(context.Background(), registration.RegistrationID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// 5000 + 250 + 1500 - 1000
	if snapshot.TotalCents == nil || *snapshot.TotalCents != 5750 {
		t.Errorf("Expected total 5750, got %v", snapshot.TotalCents)
	}
	if snapshot.GroupDiscountPercentOff != nil {
		t.Errorf("Expected no group discount with a redemption on file, got %v", snapshot.GroupDiscountPercentOff)
	}
}

func TestSyncGroupDiscount_ResolvesGroupTier(t *testing.T) {
	store, _, svc, edition, distance := newFixture(intPtr(100))
	groupID := uuid.New()

	store.AddGroupDiscountTier(&domain.GroupDiscountTier{
		TierID:       uuid.New(),
		EditionID:    edition.EditionID,
		MinGroupSize: 3,
		PercentOff:   10,
	})

	var members []*domain.Registration
	for i := 0; i < 3; i++ {
		registration, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
		if err != nil {
			t.Fatalf("Expected member %d to register, got %v", i+1, err)
		}
		stored := store.GetRegistration(registration.RegistrationID)
		stored.RegistrationGroupID = &groupID
		store.AddRegistration(stored)
		members = append(members, stored)
	}

	snapshot, err := svc.SyncGroupDiscount(context.Background(), members[0].RegistrationID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if snapshot.GroupDiscountPercentOff == nil || *snapshot.GroupDiscountPercentOff != 10 {
		t.Fatalf("Expected 10%% group discount, got %v", snapshot.GroupDiscountPercentOff)
	}
	if snapshot.GroupDiscountAmountCents == nil || *snapshot.GroupDiscountAmountCents != 500 {
		t.Errorf("Expected group discount amount 500, got %v", snapshot.GroupDiscountAmountCents)
	}
	// 5000 + 250 - 500
	if snapshot.TotalCents == nil || *snapshot.TotalCents != 4750 {
		t.Errorf("Expected total 4750, got %v", snapshot.TotalCents)
	}
}

func TestSyncGroupDiscount_Monotonic(t *testing.T) {
	store, _, svc, edition, distance := newFixture(intPtr(100))
	groupID := uuid.New()

	store.AddGroupDiscountTier(&domain.GroupDiscountTier{
		TierID:       uuid.New(),
		EditionID:    edition.EditionID,
		MinGroupSize: 2,
		PercentOff:   10,
	})

	registration, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	// Previously granted 15% even though the current group only earns 10%.
	granted := 15
	stored := store.GetRegistration(registration.RegistrationID)
	stored.RegistrationGroupID = &groupID
	stored.GroupDiscountPercentOff = &granted
	store.AddRegistration(stored)

	second, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected second member to register, got %v", err)
	}
	member := store.GetRegistration(second.RegistrationID)
	member.RegistrationGroupID = &groupID
	store.AddRegistration(member)

	snapshot, err := svc.SyncGroupDiscount(context.Background(), registration.RegistrationID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if snapshot.GroupDiscountPercentOff == nil || *snapshot.GroupDiscountPercentOff != 15 {
		t.Errorf("Expected granted discount to stay at 15, got %v", snapshot.GroupDiscountPercentOff)
	}
}

func TestSyncGroupDiscount_FinalizedRegistrationUnchanged(t *testing.T) {
	store, _, svc, _, distance := newFixture(intPtr(100))

	registration, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	confirmed := store.GetRegistration(registration.RegistrationID)
	confirmed.Status = domain.StatusConfirmed
	store.AddRegistration(confirmed)

	store.AddAddOn(&domain.AddOnSelection{
		SelectionID:    uuid.New(),
		RegistrationID: registration.RegistrationID,
		Name:           "Finisher Shirt",
		LineTotalCents: 1500,
	})

	snapshot, err := svc.SyncGroupDiscount(context.Background(), registration.RegistrationID)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	// The confirmed total must not pick up the add-on.
	if snapshot.TotalCents == nil || *snapshot.TotalCents != 5250 {
		t.Errorf("Expected confirmed total to stay 5250, got %v", snapshot.TotalCents)
	}
}

func TestCleanupExpiredRegistrations(t *testing.T) {
	store, clk, svc, _, distance := newFixture(intPtr(100))

	expired, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}

	invite := &domain.RegistrationInvite{
		InviteID:       uuid.New(),
		RegistrationID: expired.RegistrationID,
		Email:          "runner@example.com",
		Status:         domain.InviteSent,
		IsCurrent:      true,
		ExpiresAt:      timePtr(testNow.Add(DefaultHoldTTL)),
	}
	store.AddInvite(invite)

	clk.Advance(DefaultHoldTTL + time.Minute)

	live, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID)
	if err != nil {
		t.Fatalf("Expected live registration to succeed, got %v", err)
	}

	cancelled, err := svc.CleanupExpiredRegistrations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if cancelled != 1 {
		t.Fatalf("Expected 1 cancelled registration, got %d", cancelled)
	}

	swept := store.GetRegistration(expired.RegistrationID)
	if swept.Status != domain.StatusCancelled {
		t.Errorf("Expected expired hold to be cancelled, got %s", swept.Status)
	}
	if swept.ExpiresAt != nil {
		t.Error("Expected cancelled registration to have its expiry cleared")
	}

	untouched := store.GetRegistration(live.RegistrationID)
	if untouched.Status != domain.StatusStarted {
		t.Errorf("Expected live hold to survive the sweep, got %s", untouched.Status)
	}

	sweptInvite := store.GetInvite(invite.InviteID)
	if sweptInvite.Status != domain.InviteExpired {
		t.Errorf("Expected pending invite to expire, got %s", sweptInvite.Status)
	}
	if sweptInvite.IsCurrent {
		t.Error("Expected expired invite to lose its current flag")
	}
}

func TestCleanupExpiredRegistrations_SecondRunIsNoOp(t *testing.T) {
	_, clk, svc, _, distance := newFixture(intPtr(100))

	if _, err := svc.StartRegistration(context.Background(), uuid.New(), distance.DistanceID); err != nil {
		t.Fatalf("Expected registration to succeed, got %v", err)
	}
	clk.Advance(DefaultHoldTTL + time.Minute)

	first, err := svc.CleanupExpiredRegistrations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if first != 1 {
		t.Fatalf("Expected 1 cancelled registration, got %d", first)
	}

	second, err := svc.CleanupExpiredRegistrations(context.Background())
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if second != 0 {
		t.Errorf("Expected second sweep to cancel nothing, got %d", second)
	}
}
