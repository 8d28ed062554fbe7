package services

import (
	"fmt"
	"strings"
	"time"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// Grade bands for the composite score.
const (
	GradeA = "A"
	GradeB = "B"
	GradeC = "C"
	GradeD = "D"
)

// ScoreInput is everything the scorer may look at for one item. Market and
// Pricing can be nil when those providers had nothing; the affected metrics
// score neutral rather than failing the item.
type ScoreInput struct {
	Profitability types.Profitability
	SellPrice     *float64
	Catalog       *types.CatalogSnapshot
	Pricing       *types.PricingSnapshot
	Market        *types.MarketStats
	Now           time.Time
}

// ScoreOutput is either a disqualification (no numeric score, never ranked)
// or a 0-100 composite with its breakdown and generated insights.
type ScoreOutput struct {
	Disqualified       bool
	DisqualifyReason   string
	Score              float64
	Grade              string
	Breakdown          types.ScoreBreakdown
	Insights           types.Insights
	EstMonthlySales    int
	SalesEstimateBasis string
}

// Scorer turns profitability plus market signals into the composite
// opportunity score. Weights come from configuration; per-account thresholds
// are passed at call time, never read from ambient state.
type Scorer struct {
	log     *logger.Logger
	weights types.ScoreWeights
}

func NewScorer(baseLog *logger.Logger, weights types.ScoreWeights) *Scorer {
	return &Scorer{
		log:     baseLog.With("service", "Scorer"),
		weights: weights,
	}
}

// Score evaluates hard disqualifiers before any weighting: a disqualified
// item gets no numeric score at all, so it can never rank alongside scored
// items no matter how strong its other metrics are.
func (s *Scorer) Score(in ScoreInput, th types.AccountThresholds) ScoreOutput {
	if reason := s.disqualify(in, th); reason != "" {
		return ScoreOutput{Disqualified: true, DisqualifyReason: reason}
	}

	if in.Now.IsZero() {
		in.Now = time.Now().UTC()
	}

	est, basis := s.estimateMonthlySales(in.Market)

	breakdown := types.ScoreBreakdown{
		Profitability: s.scoreProfitability(in),
		Velocity:      s.scoreVelocity(in, est),
		Competition:   s.scoreCompetition(in),
		Risk:          s.scoreRisk(in, th),
		Opportunity:   s.scoreOpportunity(in, est),
	}

	total := breakdown.Profitability*s.weights.Profitability +
		breakdown.Velocity*s.weights.Velocity +
		breakdown.Competition*s.weights.Competition +
		breakdown.Risk*s.weights.Risk +
		breakdown.Opportunity*s.weights.Opportunity
	total = clampRange(total, 0, 100)

	return ScoreOutput{
		Score:              total,
		Grade:              gradeFor(total),
		Breakdown:          breakdown,
		Insights:           s.buildInsights(in, breakdown, est),
		EstMonthlySales:    est,
		SalesEstimateBasis: basis,
	}
}

func (s *Scorer) disqualify(in ScoreInput, th types.AccountThresholds) string {
	if in.Catalog != nil {
		for _, brand := range th.RestrictedBrands {
			if brand != "" && strings.EqualFold(strings.TrimSpace(brand), strings.TrimSpace(in.Catalog.Brand)) {
				return fmt.Sprintf("brand %q is restricted for this account", in.Catalog.Brand)
			}
		}
		if in.Catalog.Hazmat && !th.HazmatAllowed {
			return "item is flagged hazmat and the account cannot handle hazmat"
		}
	}
	if in.Profitability.ROI != nil && *in.Profitability.ROI < th.MinROI {
		return fmt.Sprintf("roi %.1f%% is below the account minimum %.1f%%", *in.Profitability.ROI, th.MinROI)
	}
	if th.MaxSellers > 0 && in.Pricing != nil && in.Pricing.OfferCount > th.MaxSellers {
		return fmt.Sprintf("%d competing sellers exceeds the account maximum %d", in.Pricing.OfferCount, th.MaxSellers)
	}
	return ""
}

// estimateMonthlySales prefers counting rank-improvement events over the
// trailing window; the provider's own estimate is the fallback when history
// is unavailable.
func (s *Scorer) estimateMonthlySales(market *types.MarketStats) (int, string) {
	if market == nil {
		return 0, "none"
	}
	if market.HasRankHistory {
		return market.RankDrops30d, "rank_drops"
	}
	return market.ProviderSalesEst, "provider_estimate"
}

// Each sub-score sums clamped, normalized component metrics so a single
// extreme metric cannot exceed its allotted share of the dimension.

func (s *Scorer) scoreProfitability(in ScoreInput) float64 {
	p := in.Profitability
	score := 0.0
	if p.ROI != nil {
		score += clamp01(*p.ROI/100) * 40
	}
	if p.Profit != nil {
		score += clamp01(*p.Profit/15) * 35
	}
	if p.Margin != nil {
		score += clamp01(*p.Margin/40) * 25
	}
	return clampRange(score, 0, 100)
}

func (s *Scorer) scoreVelocity(in ScoreInput, estMonthlySales int) float64 {
	score := clamp01(float64(estMonthlySales)/300) * 40

	if in.Catalog != nil && in.Catalog.SalesRank > 0 {
		score += (1 - clamp01(float64(in.Catalog.SalesRank)/250000)) * 25
	}

	offers := 0
	if in.Pricing != nil {
		offers = in.Pricing.OfferCount
	}
	if estMonthlySales > 0 {
		// Rough days to move one unit past the existing offer depth.
		daysToSell := 30 * float64(offers+1) / float64(estMonthlySales)
		score += (1 - clamp01(daysToSell/90)) * 20

		sellThrough := float64(estMonthlySales) / float64(max(offers, 1))
		score += clamp01(sellThrough/10) * 15
	}
	return clampRange(score, 0, 100)
}

func (s *Scorer) scoreCompetition(in ScoreInput) float64 {
	score := 0.0
	if in.Pricing != nil {
		score += (1 - clamp01(float64(in.Pricing.OfferCount)/20)) * 40
	} else {
		score += 20 // unknown offer depth scores neutral
	}

	if in.Market != nil {
		score += (1 - clamp01(in.Market.BuyBoxShare)) * 25

		// Negative trend (sellers leaving) is good.
		trend := float64(in.Market.OfferCountTrend30d)
		score += (1 - clamp01((trend+5)/10)) * 20

		if in.Market.AvgPrice90d != nil && *in.Market.AvgPrice90d > 0 && in.SellPrice != nil {
			ratio := *in.SellPrice / *in.Market.AvgPrice90d
			// Below-average prices signal compression: less room to compete.
			score += clamp01((ratio-0.5)/0.6) * 15
		}
	} else {
		score += 30
	}
	return clampRange(score, 0, 100)
}

func (s *Scorer) scoreRisk(in ScoreInput, th types.AccountThresholds) float64 {
	score := 100.0

	if in.Market != nil {
		score -= clamp01(in.Market.PriceVolatility/0.5) * 25
		score -= clamp01(in.Market.StockOutRate) * 20
		score -= clamp01(in.Market.ReviewVolatility) * 10
	}
	if in.Catalog != nil {
		if in.Catalog.Hazmat {
			// Account can handle hazmat (or it would have disqualified),
			// but it still costs handling overhead.
			score -= 15
		}
		for _, cat := range th.RiskyCategories {
			if cat != "" && strings.EqualFold(strings.TrimSpace(cat), strings.TrimSpace(in.Catalog.Category)) {
				score -= 15
				break
			}
		}
		if ipRiskBrand(in.Catalog.Brand) {
			score -= 15
		}
	}
	return clampRange(score, 0, 100)
}

func (s *Scorer) scoreOpportunity(in ScoreInput, estMonthlySales int) float64 {
	score := 0.0

	if in.Market != nil {
		if in.Market.AvgPrice90d != nil && *in.Market.AvgPrice90d > 0 && in.SellPrice != nil &&
			*in.SellPrice < 0.9**in.Market.AvgPrice90d {
			score += 30
		}
		if in.Market.OfferCountTrend30d < 0 || (estMonthlySales > 0 && in.Market.RankDrops30d > estMonthlySales/2) {
			score += 20
		}
		if in.Market.PrimaryOutOfStock {
			score += 15
		}
		if in.Market.ListedAt != nil && in.Now.Sub(*in.Market.ListedAt) < 90*24*time.Hour {
			score += 15
		}
	}
	if in.Pricing != nil && in.Pricing.OfferCount > 0 && in.Pricing.OfferCount <= 3 {
		score += 20
	}
	return clampRange(score, 0, 100)
}

func (s *Scorer) buildInsights(in ScoreInput, breakdown types.ScoreBreakdown, estMonthlySales int) types.Insights {
	var out types.Insights
	p := in.Profitability

	if p.ROI != nil && *p.ROI >= 100 {
		out.Strengths = append(out.Strengths, fmt.Sprintf("ROI of %.0f%% doubles the invested capital per unit", *p.ROI))
	}
	if p.Margin != nil && *p.Margin >= 30 {
		out.Strengths = append(out.Strengths, fmt.Sprintf("Margin of %.0f%% leaves room for price drops", *p.Margin))
	}
	if estMonthlySales >= 100 {
		out.Strengths = append(out.Strengths, fmt.Sprintf("Estimated %d sales/month supports fast turnover", estMonthlySales))
	}

	if p.Profit != nil && *p.Profit < 3 {
		out.Weaknesses = append(out.Weaknesses, fmt.Sprintf("Absolute profit of $%.2f/unit is thin", *p.Profit))
	}
	if estMonthlySales > 0 && estMonthlySales < 10 {
		out.Weaknesses = append(out.Weaknesses, fmt.Sprintf("Only ~%d estimated sales/month; capital may sit in inventory", estMonthlySales))
	}
	if in.Catalog != nil && in.Catalog.SalesRank > 150000 {
		out.Weaknesses = append(out.Weaknesses, fmt.Sprintf("Sales rank %d is deep in the category tail", in.Catalog.SalesRank))
	}

	if in.Market != nil {
		if in.Market.PrimaryOutOfStock {
			out.Opportunities = append(out.Opportunities, "Primary seller is currently out of stock")
		}
		if in.Market.AvgPrice90d != nil && *in.Market.AvgPrice90d > 0 && in.SellPrice != nil &&
			*in.SellPrice < 0.9**in.Market.AvgPrice90d {
			out.Opportunities = append(out.Opportunities, fmt.Sprintf("Current price $%.2f sits below the 90-day average $%.2f", *in.SellPrice, *in.Market.AvgPrice90d))
		}
		if in.Market.PriceVolatility > 0.3 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("Price volatility of %.0f%% makes the sell price unreliable", in.Market.PriceVolatility*100))
		}
	}
	if in.Pricing != nil {
		if in.Pricing.OfferCount > 0 && in.Pricing.OfferCount <= 3 {
			out.Opportunities = append(out.Opportunities, fmt.Sprintf("Only %d competing sellers on the listing", in.Pricing.OfferCount))
		}
		if in.Pricing.OfferCount >= 15 {
			out.Warnings = append(out.Warnings, fmt.Sprintf("%d sellers already compete on this listing", in.Pricing.OfferCount))
		}
	}
	if in.Catalog != nil && in.Catalog.Hazmat {
		out.Warnings = append(out.Warnings, "Item is flagged hazmat; expect handling restrictions")
	}
	return out
}

func gradeFor(score float64) string {
	switch {
	case score >= 80:
		return GradeA
	case score >= 65:
		return GradeB
	case score >= 50:
		return GradeC
	default:
		return GradeD
	}
}

// Brands with a history of IP complaints against resellers. Kept short and
// conservative; the real risk control is the per-account restricted list.
func ipRiskBrand(brand string) bool {
	switch strings.ToLower(strings.TrimSpace(brand)) {
	case "lego", "disney", "nike", "apple":
		return true
	default:
		return false
	}
}

func clamp01(v float64) float64 {
	return clampRange(v, 0, 1)
}

func clampRange(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
