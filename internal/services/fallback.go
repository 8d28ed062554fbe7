package services

import (
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
)

// ResolvedPrice is the outcome of the sell-price fallback chain. Source is
// always set so every result records where its price came from.
type ResolvedPrice struct {
	Price  *float64
	Source string
}

// ResolveSellPrice walks the fallback chain for a sell price: live
// competitive price first, then the tracked price from catalog history,
// then nothing. Either snapshot may be nil when its fetch failed.
func ResolveSellPrice(pricing *types.PricingSnapshot, catalog *types.CatalogSnapshot) ResolvedPrice {
	if pricing != nil && pricing.CompetitivePrice != nil && *pricing.CompetitivePrice > 0 {
		return ResolvedPrice{Price: pricing.CompetitivePrice, Source: types.PriceSourcePrimary}
	}
	if catalog != nil && catalog.TrackedPrice != nil && *catalog.TrackedPrice > 0 {
		return ResolvedPrice{Price: catalog.TrackedPrice, Source: types.PriceSourceFallback}
	}
	return ResolvedPrice{Source: types.PriceSourceNone}
}
