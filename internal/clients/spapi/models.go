package spapi

// CatalogMatch is one catalog item returned by an identifier search. A single
// identifier can map to zero, one or many matches.
type CatalogMatch struct {
	Identifier string `json:"identifier"`
	ASIN       string `json:"asin"`
	Title      string `json:"title"`
	Brand      string `json:"brand,omitempty"`
	ImageURL   string `json:"image_url,omitempty"`
}

// PricingItem is the competitive-pricing row for one ASIN. CompetitivePrice
// is nil when the marketplace has no buy-box price for the item.
type PricingItem struct {
	ASIN             string   `json:"asin"`
	CompetitivePrice *float64 `json:"competitive_price,omitempty"`
	OfferCount       int      `json:"offer_count"`
}

// FeesEstimate is the marketplace's fee breakdown for selling one unit of the
// ASIN at the given price.
type FeesEstimate struct {
	ASIN           string  `json:"asin"`
	Price          float64 `json:"price"`
	ReferralFee    float64 `json:"referral_fee"`
	FulfillmentFee float64 `json:"fulfillment_fee"`
	TotalFees      float64 `json:"total_fees"`
}

type searchCatalogRequest struct {
	Identifiers    []string `json:"identifiers"`
	IdentifierType string   `json:"identifierType"`
	MarketplaceID  string   `json:"marketplaceId"`
}

type searchCatalogResponse struct {
	Items []struct {
		Identifier string `json:"identifier"`
		ASIN       string `json:"asin"`
		Summaries  []struct {
			ItemName string `json:"itemName"`
			Brand    string `json:"brand"`
		} `json:"summaries"`
		Images []struct {
			Link string `json:"link"`
		} `json:"images"`
	} `json:"items"`
}

type competitivePricingRequest struct {
	ASINs         []string `json:"asins"`
	MarketplaceID string   `json:"marketplaceId"`
}

type competitivePricingResponse struct {
	Payload []struct {
		ASIN    string `json:"asin"`
		Product struct {
			CompetitivePricing struct {
				CompetitivePrices []struct {
					Price struct {
						ListingPrice struct {
							Amount float64 `json:"amount"`
						} `json:"listingPrice"`
					} `json:"price"`
				} `json:"competitivePrices"`
				NumberOfOfferListings []struct {
					Condition string `json:"condition"`
					Count     int    `json:"count"`
				} `json:"numberOfOfferListings"`
			} `json:"competitivePricing"`
		} `json:"product"`
	} `json:"payload"`
}

type feesEstimateRequest struct {
	MarketplaceID string  `json:"marketplaceId"`
	ASIN          string  `json:"asin"`
	ListingPrice  float64 `json:"listingPrice"`
}

type feesEstimateResponse struct {
	Payload struct {
		FeesEstimateResult struct {
			Status       string `json:"status"`
			FeesEstimate struct {
				TotalFeesEstimate struct {
					Amount float64 `json:"amount"`
				} `json:"totalFeesEstimate"`
				FeeDetailList []struct {
					FeeType   string `json:"feeType"`
					FeeAmount struct {
						Amount float64 `json:"amount"`
					} `json:"feeAmount"`
				} `json:"feeDetailList"`
			} `json:"feesEstimate"`
		} `json:"feesEstimateResult"`
	} `json:"payload"`
}
