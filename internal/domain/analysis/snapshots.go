package analysis

import "time"

// Price provenance values recorded on every result so callers can tell where
// a sell price came from.
const (
	PriceSourcePrimary  = "spapi_competitive"
	PriceSourceFallback = "keepa_history"
	PriceSourceNone     = "none"
)

// AnalysisInput is one already-normalized row handed to the pipeline.
// Identifier extraction and column mapping happen upstream.
type AnalysisInput struct {
	Identifier     string  `json:"identifier"`
	IdentifierType string  `json:"identifier_type"`
	UnitCost       float64 `json:"unit_cost"`
	PackSize       int     `json:"pack_size"`
	GroupingKey    string  `json:"grouping_key,omitempty"`
}

// CatalogSnapshot holds catalog attributes for an ASIN. Owned by the catalog
// cache; valid until ExpiresAt (24h TTL).
type CatalogSnapshot struct {
	ASIN         string    `json:"asin"`
	Title        string    `json:"title"`
	Brand        string    `json:"brand,omitempty"`
	ImageURLs    []string  `json:"image_urls,omitempty"`
	Category     string    `json:"category,omitempty"`
	SalesRank    int       `json:"sales_rank,omitempty"`
	Hazmat       bool      `json:"hazmat,omitempty"`
	TrackedPrice *float64  `json:"tracked_price,omitempty"`
	FetchedAt    time.Time `json:"fetched_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// PricingSnapshot holds live competitive pricing for an ASIN. Never cached
// beyond one run; prices are volatile.
type PricingSnapshot struct {
	ASIN             string    `json:"asin"`
	CompetitivePrice *float64  `json:"competitive_price,omitempty"`
	OfferCount       int       `json:"offer_count"`
	Source           string    `json:"source"`
	FetchedAt        time.Time `json:"fetched_at"`
}

// FeeSnapshot holds marketplace fees for an (ASIN, price) pair. Cached for
// 7 days keyed by price bucket since fees shift by price bracket, not cent.
type FeeSnapshot struct {
	ASIN           string    `json:"asin"`
	Price          float64   `json:"price"`
	ReferralFee    float64   `json:"referral_fee"`
	FulfillmentFee float64   `json:"fulfillment_fee"`
	TotalFees      float64   `json:"total_fees"`
	FetchedAt      time.Time `json:"fetched_at"`
	ExpiresAt      time.Time `json:"expires_at"`
}

// MarketStats are history-derived signals from the secondary provider used by
// the velocity/competition/risk/opportunity scoring dimensions.
type MarketStats struct {
	ASIN               string     `json:"asin"`
	HasRankHistory     bool       `json:"has_rank_history"`
	RankDrops30d       int        `json:"rank_drops_30d"`
	ProviderSalesEst   int        `json:"provider_sales_est"`
	AvgPrice90d        *float64   `json:"avg_price_90d,omitempty"`
	PriceVolatility    float64    `json:"price_volatility"`
	OfferCountTrend30d int        `json:"offer_count_trend_30d"`
	BuyBoxShare        float64    `json:"buy_box_share"`
	PrimaryOutOfStock  bool       `json:"primary_out_of_stock"`
	StockOutRate       float64    `json:"stock_out_rate"`
	ReviewVolatility   float64    `json:"review_volatility"`
	ListedAt           *time.Time `json:"listed_at,omitempty"`
}

// AccountThresholds are per-account scoring controls. Immutable and passed
// into the scorer at call time.
type AccountThresholds struct {
	MinROI           float64
	MaxSellers       int
	HazmatAllowed    bool
	RestrictedBrands []string
	RiskyCategories  []string
}

// ScoreWeights are the five dimension weights. Business-tunable; defaults
// come from config, never hard-coded at call sites.
type ScoreWeights struct {
	Profitability float64
	Velocity      float64
	Competition   float64
	Risk          float64
	Opportunity   float64
}

// ScoreBreakdown reports each weighted dimension on a 0-100 scale.
type ScoreBreakdown struct {
	Profitability float64 `json:"profitability"`
	Velocity      float64 `json:"velocity"`
	Competition   float64 `json:"competition"`
	Risk          float64 `json:"risk"`
	Opportunity   float64 `json:"opportunity"`
}

// Insights are generated, human-readable observations from threshold checks.
type Insights struct {
	Strengths     []string `json:"strengths,omitempty"`
	Weaknesses    []string `json:"weaknesses,omitempty"`
	Opportunities []string `json:"opportunities,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
}

// Profitability is the pure calculator output. Nil metrics mean the
// denominator was zero or an input was missing, never a thrown error.
type Profitability struct {
	CostPerUnit    float64  `json:"cost_per_unit"`
	Profit         *float64 `json:"profit,omitempty"`
	ROI            *float64 `json:"roi,omitempty"`
	Margin         *float64 `json:"margin,omitempty"`
	BreakEvenPrice *float64 `json:"break_even_price,omitempty"`
}

// RunSummary aggregates a run's per-item outcomes by status.
type RunSummary struct {
	Total        int `json:"total"`
	Succeeded    int `json:"succeeded"`
	Partial      int `json:"partial"`
	Failed       int `json:"failed"`
	Disqualified int `json:"disqualified"`
	NoPrice      int `json:"no_price"`
	Unresolved   int `json:"unresolved"`
}
