package domain

import "time"

// IsPublished reports whether the edition accepts public traffic at all.
func IsPublished(edition *EventEdition) bool {
	return edition.Visibility == VisibilityPublished
}

// IsWithinWindow reports whether registration is open at the given instant.
// The pause flag is a hard stop checked before the window bounds; a nil bound
// leaves that side of the window open.
func IsWithinWindow(edition *EventEdition, now time.Time) bool {
	if edition.IsRegistrationPaused {
		return false
	}
	if edition.RegistrationOpensAt != nil && now.Before(*edition.RegistrationOpensAt) {
		return false
	}
	if edition.RegistrationClosesAt != nil && now.After(*edition.RegistrationClosesAt) {
		return false
	}
	return true
}

// ValidateOpen runs the edition checks in their fixed order and returns the
// typed error for the first failing one: published before window, paused
// before the open/close bounds. The order decides which code a caller sees
// when several conditions fail at once.
func ValidateOpen(edition *EventEdition, now time.Time) error {
	if !IsPublished(edition) {
		return ErrNotPublished
	}
	if edition.IsRegistrationPaused {
		return ErrRegistrationPaused
	}
	if edition.RegistrationOpensAt != nil && now.Before(*edition.RegistrationOpensAt) {
		return ErrRegistrationNotOpen
	}
	if edition.RegistrationClosesAt != nil && now.After(*edition.RegistrationClosesAt) {
		return ErrRegistrationClosed
	}
	return nil
}

// CapacityLimit returns the applicable limit for the distance, or nil when
// capacity is unlimited. Shared-pool distances defer to the edition-wide
// shared capacity.
func CapacityLimit(edition *EventEdition, distance *EventDistance) *int {
	if distance.CapacityScope == CapacityScopeSharedPool {
		return edition.SharedCapacity
	}
	return distance.Capacity
}

// HasCapacity compares the active registration count for the applicable scope
// against the applicable limit. activeCount must already be scoped: edition-
// wide for shared-pool distances, distance-scoped otherwise.
func HasCapacity(edition *EventEdition, distance *EventDistance, activeCount int64) bool {
	limit := CapacityLimit(edition, distance)
	if limit == nil {
		return true
	}
	return activeCount < int64(*limit)
}
