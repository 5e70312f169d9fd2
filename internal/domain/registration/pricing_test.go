package domain

import (
	"testing"
	"time"
)

func TestResolveActiveTier(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	distance := &EventDistance{
		PricingTiers: []PricingTier{
			{Name: "Early Bird", PriceCents: 4000, SortOrder: 0, EndsAt: timePtr(now.Add(-time.Hour))},
			{Name: "Regular", PriceCents: 5000, SortOrder: 1},
			{Name: "Late", PriceCents: 6000, SortOrder: 2, StartsAt: timePtr(now.Add(time.Hour))},
		},
	}

	tier := ResolveActiveTier(distance, now)
	if tier == nil {
		t.Fatal("Expected an active tier, got nil")
	}
	if tier.Name != "Regular" {
		t.Errorf("Expected Regular tier, got %s", tier.Name)
	}
}

func TestResolveActiveTier_LowestSortOrderWins(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	// Both tiers are active at once; the lower sort order takes precedence.
	distance := &EventDistance{
		PricingTiers: []PricingTier{
			{Name: "Promo", PriceCents: 3500, SortOrder: 0},
			{Name: "Regular", PriceCents: 5000, SortOrder: 1},
		},
	}

	tier := ResolveActiveTier(distance, now)
	if tier == nil || tier.Name != "Promo" {
		t.Fatalf("Expected Promo tier, got %v", tier)
	}
}

func TestResolveActiveTier_NoneActive(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	distance := &EventDistance{
		PricingTiers: []PricingTier{
			{Name: "Early Bird", PriceCents: 4000, SortOrder: 0, EndsAt: timePtr(now.Add(-time.Hour))},
		},
	}

	if tier := ResolveActiveTier(distance, now); tier != nil {
		t.Errorf("Expected no active tier, got %s", tier.Name)
	}
}

func TestQuotePrice(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	distance := &EventDistance{
		PricingTiers: []PricingTier{
			{Name: "Regular", PriceCents: 4999, SortOrder: 0},
		},
	}

	quote := QuotePrice(distance, now)
	if quote.BasePriceCents != 4999 {
		t.Errorf("Expected base 4999, got %d", quote.BasePriceCents)
	}
	// 5% of 4999 = 249.95, rounds to 250.
	if quote.FeesCents != 250 {
		t.Errorf("Expected fees 250, got %d", quote.FeesCents)
	}
	if quote.TaxCents != 0 {
		t.Errorf("Expected tax 0, got %d", quote.TaxCents)
	}
	if quote.TotalCents != 5249 {
		t.Errorf("Expected total 5249, got %d", quote.TotalCents)
	}
}

func TestQuotePrice_NoTierMeansFree(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	quote := QuotePrice(&EventDistance{}, now)
	if quote.BasePriceCents != 0 || quote.FeesCents != 0 || quote.TotalCents != 0 {
		t.Errorf("Expected zero quote without an active tier, got %+v", quote)
	}
}

func TestPercentOfBase_RoundsToNearestCent(t *testing.T) {
	tests := []struct {
		base    int64
		percent int
		want    int64
	}{
		{10000, 10, 1000},
		{4999, 5, 250},  // 249.95 rounds up
		{4989, 5, 249},  // 249.45 rounds down
		{1, 5, 0},       // 0.05 rounds down
		{10, 5, 1},      // 0.5 rounds up
		{10000, 0, 0},
	}

	for _, tt := range tests {
		if got := PercentOfBase(tt.base, tt.percent); got != tt.want {
			t.Errorf("PercentOfBase(%d, %d) = %d, want %d", tt.base, tt.percent, got, tt.want)
		}
	}
}

func TestComputeTotal(t *testing.T) {
	groupDiscount := int64(500)

	tests := []struct {
		name          string
		base          int64
		fees          int64
		tax           int64
		addOns        int64
		discount      int64
		groupDiscount *int64
		want          int64
	}{
		{"base plus fees", 5000, 250, 0, 0, 0, nil, 5250},
		{"add-ons included", 5000, 250, 0, 1500, 0, nil, 6750},
		{"discount subtracted", 5000, 250, 0, 0, 1000, nil, 4250},
		{"group discount subtracted", 5000, 250, 0, 0, 0, &groupDiscount, 4750},
		{"floored at zero", 1000, 50, 0, 0, 5000, &groupDiscount, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComputeTotal(tt.base, tt.fees, tt.tax, tt.addOns, tt.discount, tt.groupDiscount)
			if got != tt.want {
				t.Errorf("Expected total %d, got %d", tt.want, got)
			}
		})
	}
}
