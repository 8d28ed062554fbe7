package keepa

import (
	"math"
	"time"
)

// The provider's minute epoch is offset from the unix epoch.
const epochOffsetMinutes = 21564000

func epochToTime(minutes int64) time.Time {
	return time.Unix((minutes+epochOffsetMinutes)*60, 0).UTC()
}

// TrackedPrice returns the most recent tracked price in currency units, or
// nil when the provider has never observed one.
func (p *Product) TrackedPrice() *float64 {
	if p.TrackedPriceCents <= 0 {
		return nil
	}
	v := float64(p.TrackedPriceCents) / 100
	return &v
}

// ListedAt converts the provider's listing epoch, nil when unknown.
func (p *Product) ListedAt() *time.Time {
	if p.ListedSinceEpoch <= 0 {
		return nil
	}
	t := epochToTime(p.ListedSinceEpoch)
	return &t
}

// CountRankDrops counts sales-rank improvement events over the trailing
// window. Each drop approximates one sale; this estimate beats the provider's
// own when full history is present.
func (p *Product) CountRankDrops(now time.Time, window time.Duration) (int, bool) {
	if len(p.RankHistory) < 4 {
		return 0, false
	}
	cutoff := now.Add(-window)

	drops := 0
	var prev int64 = -1
	for i := 0; i+1 < len(p.RankHistory); i += 2 {
		ts := epochToTime(p.RankHistory[i])
		rank := p.RankHistory[i+1]
		if rank < 0 {
			continue
		}
		if ts.Before(cutoff) {
			prev = rank
			continue
		}
		if prev > 0 && rank < prev {
			drops++
		}
		prev = rank
	}
	return drops, true
}

// PriceVolatility is the coefficient of variation (stddev/mean) of the
// tracked price series. Zero when there is not enough history.
func (p *Product) PriceVolatility() float64 {
	prices := make([]float64, 0, len(p.PriceHistory)/2)
	for i := 0; i+1 < len(p.PriceHistory); i += 2 {
		cents := p.PriceHistory[i+1]
		if cents <= 0 {
			continue
		}
		prices = append(prices, float64(cents)/100)
	}
	if len(prices) < 2 {
		return 0
	}

	sum := 0.0
	for _, v := range prices {
		sum += v
	}
	mean := sum / float64(len(prices))
	if mean <= 0 {
		return 0
	}

	variance := 0.0
	for _, v := range prices {
		diff := v - mean
		variance += diff * diff
	}
	variance /= float64(len(prices))

	return math.Sqrt(variance) / mean
}
