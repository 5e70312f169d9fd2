package domain

import (
	"errors"
	"testing"
	"time"
)

func timePtr(t time.Time) *time.Time { return &t }
func intPtr(v int) *int              { return &v }

func publishedEdition(now time.Time) *EventEdition {
	return &EventEdition{
		Name:                 "City Marathon 2026",
		Visibility:           VisibilityPublished,
		RegistrationOpensAt:  timePtr(now.Add(-time.Hour)),
		RegistrationClosesAt: timePtr(now.Add(time.Hour)),
	}
}

func TestValidateOpen_Accepts(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := ValidateOpen(publishedEdition(now), now); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
}

func TestValidateOpen_NilBoundsAreOpen(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	edition := &EventEdition{Visibility: VisibilityPublished}

	if err := ValidateOpen(edition, now); err != nil {
		t.Fatalf("Expected open window with nil bounds, got %v", err)
	}
}

func TestValidateOpen_CheckOrder(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		edition *EventEdition
		want    error
	}{
		{
			name: "draft edition is rejected before anything else",
			edition: &EventEdition{
				Visibility:           VisibilityDraft,
				IsRegistrationPaused: true,
				RegistrationOpensAt:  timePtr(now.Add(time.Hour)),
			},
			want: ErrNotPublished,
		},
		{
			name: "archived edition counts as unpublished",
			edition: &EventEdition{
				Visibility: VisibilityArchived,
			},
			want: ErrNotPublished,
		},
		{
			name: "pause wins over a not-yet-open window",
			edition: &EventEdition{
				Visibility:           VisibilityPublished,
				IsRegistrationPaused: true,
				RegistrationOpensAt:  timePtr(now.Add(time.Hour)),
			},
			want: ErrRegistrationPaused,
		},
		{
			name: "not yet open",
			edition: &EventEdition{
				Visibility:          VisibilityPublished,
				RegistrationOpensAt: timePtr(now.Add(time.Minute)),
			},
			want: ErrRegistrationNotOpen,
		},
		{
			name: "already closed",
			edition: &EventEdition{
				Visibility:           VisibilityPublished,
				RegistrationClosesAt: timePtr(now.Add(-time.Minute)),
			},
			want: ErrRegistrationClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOpen(tt.edition, now)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestValidateOpen_BoundaryInstants(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Opening exactly now is open; closing exactly now is still open.
	edition := &EventEdition{
		Visibility:           VisibilityPublished,
		RegistrationOpensAt:  timePtr(now),
		RegistrationClosesAt: timePtr(now),
	}
	if err := ValidateOpen(edition, now); err != nil {
		t.Fatalf("Expected boundary instants to be inside the window, got %v", err)
	}
}

func TestIsWithinWindow_PauseIsHardStop(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	edition := publishedEdition(now)
	edition.IsRegistrationPaused = true

	if IsWithinWindow(edition, now) {
		t.Error("Expected paused edition to be outside the window")
	}
}

func TestCapacityLimit_ScopeSelection(t *testing.T) {
	edition := &EventEdition{SharedCapacity: intPtr(500)}

	distanceScoped := &EventDistance{Capacity: intPtr(100), CapacityScope: CapacityScopeDistance}
	if limit := CapacityLimit(edition, distanceScoped); limit == nil || *limit != 100 {
		t.Errorf("Expected distance limit 100, got %v", limit)
	}

	shared := &EventDistance{Capacity: intPtr(100), CapacityScope: CapacityScopeSharedPool}
	if limit := CapacityLimit(edition, shared); limit == nil || *limit != 500 {
		t.Errorf("Expected shared limit 500, got %v", limit)
	}
}

func TestHasCapacity(t *testing.T) {
	edition := &EventEdition{}

	limited := &EventDistance{Capacity: intPtr(2), CapacityScope: CapacityScopeDistance}
	if !HasCapacity(edition, limited, 1) {
		t.Error("Expected capacity below the limit to be available")
	}
	if HasCapacity(edition, limited, 2) {
		t.Error("Expected a full distance to have no capacity")
	}

	unlimited := &EventDistance{CapacityScope: CapacityScopeDistance}
	if !HasCapacity(edition, unlimited, 1_000_000) {
		t.Error("Expected nil capacity to mean unlimited")
	}

	sharedUnlimited := &EventDistance{Capacity: intPtr(1), CapacityScope: CapacityScopeSharedPool}
	if !HasCapacity(edition, sharedUnlimited, 1_000_000) {
		t.Error("Expected nil shared capacity to mean unlimited for shared-pool distances")
	}
}
