package domain

import "time"

// FeePercent is the platform fee charged on the base price, rounded to the
// nearest cent. Tax is computed downstream of this core and stays zero here.
const FeePercent = 5

// PriceQuote is the resolved price for a distance at a given instant.
type PriceQuote struct {
	BasePriceCents int64 `json:"base_price_cents"`
	FeesCents      int64 `json:"fees_cents"`
	TaxCents       int64 `json:"tax_cents"`
	TotalCents     int64 `json:"total_cents"`
}

// ResolveActiveTier picks the pricing tier in effect at now: among tiers whose
// optional starts_at/ends_at bracket the instant, the one with the lowest sort
// order wins. Returns nil when no tier is active (price zero).
func ResolveActiveTier(distance *EventDistance, now time.Time) *PricingTier {
	var active *PricingTier
	for i := range distance.PricingTiers {
		tier := &distance.PricingTiers[i]
		if tier.StartsAt != nil && now.Before(*tier.StartsAt) {
			continue
		}
		if tier.EndsAt != nil && now.After(*tier.EndsAt) {
			continue
		}
		if active == nil || tier.SortOrder < active.SortOrder {
			active = tier
		}
	}
	return active
}

// QuotePrice resolves the active tier and computes base price, fees and tax.
func QuotePrice(distance *EventDistance, now time.Time) PriceQuote {
	var base int64
	if tier := ResolveActiveTier(distance, now); tier != nil {
		base = tier.PriceCents
	}
	fees := roundedPercent(base, FeePercent)
	return PriceQuote{
		BasePriceCents: base,
		FeesCents:      fees,
		TaxCents:       0,
		TotalCents:     base + fees,
	}
}

// PercentOfBase computes a percentage of the base price in cents, rounded to
// the nearest cent. Used for the group discount amount.
func PercentOfBase(baseCents int64, percent int) int64 {
	return roundedPercent(baseCents, percent)
}

func roundedPercent(cents int64, percent int) int64 {
	return (cents*int64(percent) + 50) / 100
}

// ComputeTotal applies the order total invariant:
//
//	total = max(0, base + fees + tax + addOns - discount - groupDiscount)
//
// Nil discount components contribute zero.
func ComputeTotal(base, fees, tax, addOnTotal, discountAmount int64, groupDiscountAmount *int64) int64 {
	total := base + fees + tax + addOnTotal - discountAmount
	if groupDiscountAmount != nil {
		total -= *groupDiscountAmount
	}
	if total < 0 {
		total = 0
	}
	return total
}
