package keepa

// Product is the provider's catalog+history payload for one ASIN. History
// series are (minute-epoch, value) pairs flattened into a single slice, the
// provider's native encoding; -1 values mean "no data at that point".
type Product struct {
	ASIN             string   `json:"asin"`
	Title            string   `json:"title"`
	Brand            string   `json:"brand,omitempty"`
	Category         string   `json:"categoryTree,omitempty"`
	ImageURLs        []string `json:"imagesCSV,omitempty"`
	Hazmat           bool     `json:"hazmat,omitempty"`
	SalesRank        int      `json:"salesRank"`
	ListedSinceEpoch int64    `json:"listedSince,omitempty"`

	// History series. RankHistory is frequently absent; callers must fall
	// back to SalesEstimate when it is.
	RankHistory  []int64 `json:"rankHistory,omitempty"`
	PriceHistory []int64 `json:"priceHistory,omitempty"`

	// Provider-computed aggregates.
	SalesEstimate      int      `json:"salesEstimate"`
	AvgPrice90d        *float64 `json:"avgPrice90,omitempty"`
	BuyBoxShare        float64  `json:"buyBoxShare"`
	OfferCountTrend30d int      `json:"offerCountTrend30,omitempty"`
	OutOfStockPct90d   float64  `json:"outOfStockPercentage90,omitempty"`
	PrimaryOutOfStock  bool     `json:"buyBoxIsOutOfStock,omitempty"`
	ReviewVolatility   float64  `json:"reviewVolatility,omitempty"`

	// Most recent tracked price, in cents, used as the fallback sell price
	// when live competitive pricing yields nothing. -1 when untracked.
	TrackedPriceCents int64 `json:"trackedPrice"`
}

type productResponse struct {
	Products       []Product `json:"products"`
	TokensLeft     int       `json:"tokensLeft"`
	RefillIn       int64     `json:"refillIn"`
	ProcessingTime int64     `json:"processingTimeInMs"`
}
