package services

import (
	"testing"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
)

func TestResolveSellPrice_PrefersLiveCompetitivePrice(t *testing.T) {
	pricing := &types.PricingSnapshot{ASIN: "B0", CompetitivePrice: fptr(19.99), OfferCount: 4}
	catalog := &types.CatalogSnapshot{ASIN: "B0", TrackedPrice: fptr(24.50)}

	rp := ResolveSellPrice(pricing, catalog)
	if rp.Price == nil || *rp.Price != 19.99 {
		t.Fatalf("expected live price 19.99 got %v", rp.Price)
	}
	if rp.Source != types.PriceSourcePrimary {
		t.Fatalf("expected source %q got %q", types.PriceSourcePrimary, rp.Source)
	}
}

func TestResolveSellPrice_FallsBackToTrackedPrice(t *testing.T) {
	pricing := &types.PricingSnapshot{ASIN: "B0", CompetitivePrice: nil, OfferCount: 0}
	catalog := &types.CatalogSnapshot{ASIN: "B0", TrackedPrice: fptr(24.50)}

	rp := ResolveSellPrice(pricing, catalog)
	if rp.Price == nil || *rp.Price != 24.50 {
		t.Fatalf("expected tracked price 24.50 got %v", rp.Price)
	}
	if rp.Source != types.PriceSourceFallback {
		t.Fatalf("expected source %q got %q", types.PriceSourceFallback, rp.Source)
	}
}

func TestResolveSellPrice_NilPricingSnapshotUsesFallback(t *testing.T) {
	catalog := &types.CatalogSnapshot{ASIN: "B0", TrackedPrice: fptr(12)}

	rp := ResolveSellPrice(nil, catalog)
	if rp.Price == nil || *rp.Price != 12 {
		t.Fatalf("expected tracked price 12 got %v", rp.Price)
	}
	if rp.Source != types.PriceSourceFallback {
		t.Fatalf("expected fallback source got %q", rp.Source)
	}
}

func TestResolveSellPrice_NoPriceAnywhere(t *testing.T) {
	rp := ResolveSellPrice(nil, &types.CatalogSnapshot{ASIN: "B0"})
	if rp.Price != nil {
		t.Fatalf("expected nil price got %v", *rp.Price)
	}
	if rp.Source != types.PriceSourceNone {
		t.Fatalf("expected source none got %q", rp.Source)
	}

	rp = ResolveSellPrice(nil, nil)
	if rp.Price != nil || rp.Source != types.PriceSourceNone {
		t.Fatalf("expected empty outcome, got %+v", rp)
	}
}

func TestResolveSellPrice_IgnoresNonPositivePrices(t *testing.T) {
	pricing := &types.PricingSnapshot{ASIN: "B0", CompetitivePrice: fptr(0)}
	catalog := &types.CatalogSnapshot{ASIN: "B0", TrackedPrice: fptr(-1)}

	rp := ResolveSellPrice(pricing, catalog)
	if rp.Price != nil || rp.Source != types.PriceSourceNone {
		t.Fatalf("zero and negative prices must not be used, got %+v", rp)
	}
}
