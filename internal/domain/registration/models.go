package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EditionVisibility controls whether an edition is visible to participants.
type EditionVisibility string

const (
	VisibilityDraft     EditionVisibility = "draft"
	VisibilityPublished EditionVisibility = "published"
	VisibilityArchived  EditionVisibility = "archived"
)

// CapacityScope selects how a distance's capacity is counted.
type CapacityScope string

const (
	// CapacityScopeDistance counts active registrations for the distance alone.
	CapacityScopeDistance CapacityScope = "distance"
	// CapacityScopeSharedPool counts active registrations across every
	// distance of the edition against the edition's shared capacity.
	CapacityScopeSharedPool CapacityScope = "shared_pool"
)

// EventEdition is one dated instance of a recurring event series.
type EventEdition struct {
	EditionID            uuid.UUID         `json:"edition_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	Name                 string            `json:"name" gorm:"not null"`
	Visibility           EditionVisibility `json:"visibility" gorm:"type:text;not null;default:draft"`
	IsRegistrationPaused bool              `json:"is_registration_paused" gorm:"not null;default:false"`
	RegistrationOpensAt  *time.Time        `json:"registration_opens_at"`
	RegistrationClosesAt *time.Time        `json:"registration_closes_at"`
	SharedCapacity       *int              `json:"shared_capacity"`
	CreatedAt            time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt            gorm.DeletedAt    `json:"-" gorm:"index"`
}

// EventDistance is a race category/length within an edition. A nil Capacity
// means unlimited (when scoped to the distance itself).
type EventDistance struct {
	DistanceID    uuid.UUID      `json:"distance_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EditionID     uuid.UUID      `json:"edition_id" gorm:"type:uuid;not null;index"`
	Name          string         `json:"name" gorm:"not null"`
	Capacity      *int           `json:"capacity"`
	CapacityScope CapacityScope  `json:"capacity_scope" gorm:"type:text;not null;default:distance"`
	CreatedAt     time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt     time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt     gorm.DeletedAt `json:"-" gorm:"index"`
	Edition       EventEdition   `json:"edition,omitempty" gorm:"foreignKey:EditionID"`
	PricingTiers  []PricingTier  `json:"pricing_tiers,omitempty" gorm:"foreignKey:DistanceID"`
}

// PricingTier is one price point for a distance, optionally bounded to an
// activation window. Lower sort order wins among concurrently active tiers.
type PricingTier struct {
	TierID     uuid.UUID  `json:"tier_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	DistanceID uuid.UUID  `json:"distance_id" gorm:"type:uuid;not null;index"`
	Name       string     `json:"name" gorm:"not null"`
	PriceCents int64      `json:"price_cents" gorm:"not null;check:price_cents >= 0"`
	SortOrder  int        `json:"sort_order" gorm:"not null"`
	StartsAt   *time.Time `json:"starts_at"`
	EndsAt     *time.Time `json:"ends_at"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt  time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}

// RegistrationStatus is the lifecycle state of a registration.
type RegistrationStatus string

const (
	StatusStarted        RegistrationStatus = "started"
	StatusSubmitted      RegistrationStatus = "submitted"
	StatusPaymentPending RegistrationStatus = "payment_pending"
	StatusConfirmed      RegistrationStatus = "confirmed"
	StatusCancelled      RegistrationStatus = "cancelled"
)

// HoldStatuses are the unconfirmed, time-limited states. A registration in one
// of these states counts against capacity only while its hold has not lapsed.
var HoldStatuses = []RegistrationStatus{StatusStarted, StatusSubmitted, StatusPaymentPending}

// Registration is one user's claim on a distance within an edition.
//
// TotalCents, GroupDiscountPercentOff and GroupDiscountAmountCents are
// pointers because "not yet computed" is distinct from an explicit zero.
type Registration struct {
	RegistrationID           uuid.UUID          `json:"registration_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EditionID                uuid.UUID          `json:"edition_id" gorm:"type:uuid;not null;index"`
	DistanceID               uuid.UUID          `json:"distance_id" gorm:"type:uuid;not null;index"`
	BuyerUserID              *uuid.UUID         `json:"buyer_user_id" gorm:"type:uuid;index"`
	Status                   RegistrationStatus `json:"status" gorm:"type:text;not null;default:started"`
	BasePriceCents           int64              `json:"base_price_cents" gorm:"not null;default:0"`
	FeesCents                int64              `json:"fees_cents" gorm:"not null;default:0"`
	TaxCents                 int64              `json:"tax_cents" gorm:"not null;default:0"`
	TotalCents               *int64             `json:"total_cents"`
	GroupDiscountPercentOff  *int               `json:"group_discount_percent_off"`
	GroupDiscountAmountCents *int64             `json:"group_discount_amount_cents"`
	RegistrationGroupID      *uuid.UUID         `json:"registration_group_id" gorm:"type:uuid;index"`
	ExpiresAt                *time.Time         `json:"expires_at"`
	CreatedAt                time.Time          `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt                time.Time          `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt                gorm.DeletedAt     `json:"-" gorm:"index"`
	Edition                  EventEdition       `json:"edition,omitempty" gorm:"foreignKey:EditionID"`
	Distance                 EventDistance      `json:"distance,omitempty" gorm:"foreignKey:DistanceID"`
}

// IsActive reports whether the registration counts against capacity and the
// one-active-registration-per-edition rule: confirmed, or holding an
// unexpired started/submitted/payment_pending reservation.
func (r *Registration) IsActive(now time.Time) bool {
	switch r.Status {
	case StatusConfirmed:
		return true
	case StatusStarted, StatusSubmitted, StatusPaymentPending:
		return r.ExpiresAt != nil && r.ExpiresAt.After(now)
	default:
		return false
	}
}

// IsResumable reports whether StartRegistration may hand this registration
// back unchanged instead of creating a new one.
func (r *Registration) IsResumable() bool {
	return r.Status == StatusStarted || r.Status == StatusSubmitted
}

// InviteStatus is the lifecycle state of a registration invite.
type InviteStatus string

const (
	InviteDraft    InviteStatus = "draft"
	InviteSent     InviteStatus = "sent"
	InviteAccepted InviteStatus = "accepted"
	InviteDeclined InviteStatus = "declined"
	InviteExpired  InviteStatus = "expired"
)

// RegistrationInvite links a registration to an invited participant in a
// group-upload flow. The sweeper expires pending invites when the parent
// registration's hold lapses.
type RegistrationInvite struct {
	InviteID       uuid.UUID    `json:"invite_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	RegistrationID uuid.UUID    `json:"registration_id" gorm:"type:uuid;not null;index"`
	Email          string       `json:"email" gorm:"not null"`
	Status         InviteStatus `json:"status" gorm:"type:text;not null;default:draft"`
	IsCurrent      bool         `json:"is_current" gorm:"not null;default:true"`
	ExpiresAt      *time.Time   `json:"expires_at"`
	CreatedAt      time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
}

// DiscountRedemption is a fixed-amount discount applied to a registration,
// created by checkout flows and read by the discount aggregator.
type DiscountRedemption struct {
	RedemptionID   uuid.UUID `json:"redemption_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	Code           string    `json:"code" gorm:"not null"`
	AmountCents    int64     `json:"amount_cents" gorm:"not null;check:amount_cents >= 0"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// AddOnSelection is a purchasable extra (shirt, meal, timing chip) attached to
// a registration.
type AddOnSelection struct {
	SelectionID    uuid.UUID `json:"selection_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	RegistrationID uuid.UUID `json:"registration_id" gorm:"type:uuid;not null;index"`
	Name           string    `json:"name" gorm:"not null"`
	LineTotalCents int64     `json:"line_total_cents" gorm:"not null;check:line_total_cents >= 0"`
	CreatedAt      time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// GroupDiscountTier configures the percentage granted to registration groups
// of a given size within an edition. The aggregator picks the highest
// percent_off whose min_group_size the group currently satisfies.
type GroupDiscountTier struct {
	TierID       uuid.UUID `json:"tier_id" gorm:"type:uuid;primaryKey;default:uuid_generate_v4()"`
	EditionID    uuid.UUID `json:"edition_id" gorm:"type:uuid;not null;index"`
	MinGroupSize int       `json:"min_group_size" gorm:"not null;check:min_group_size > 0"`
	PercentOff   int       `json:"percent_off" gorm:"not null;check:percent_off >= 0 AND percent_off <= 100"`
	CreatedAt    time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// DiscountSnapshot is what SyncGroupDiscount returns: the derived money
// fields after recomputation.
type DiscountSnapshot struct {
	RegistrationID           uuid.UUID `json:"registration_id"`
	GroupDiscountPercentOff  *int      `json:"group_discount_percent_off"`
	GroupDiscountAmountCents *int64    `json:"group_discount_amount_cents"`
	TotalCents               *int64    `json:"total_cents"`
}

// TableName overrides for the pluralized defaults that GORM gets wrong.
func (EventEdition) TableName() string  { return "event_editions" }
func (EventDistance) TableName() string { return "event_distances" }
