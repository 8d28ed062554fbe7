package spapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ls5986/habexa-backend/internal/pkg/httpx"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// Batch limits the selling-partner API accepts per request. Callers chunk to
// these; the client rejects oversized batches outright.
const (
	SearchBatchLimit  = 20
	PricingBatchLimit = 20
)

// Client is the primary marketplace provider: identifier search, live
// competitive pricing and fee estimates.
type Client interface {
	SearchCatalogItems(ctx context.Context, identifiers []string, identifierType string) ([]CatalogMatch, error)
	GetCompetitivePricing(ctx context.Context, asins []string) ([]PricingItem, error)
	GetFeesEstimate(ctx context.Context, asin string, price float64) (*FeesEstimate, error)
}

type client struct {
	log           *logger.Logger
	baseURL       string
	apiKey        string
	marketplaceID string
	httpClient    *http.Client
	maxRetries    int
}

func NewClient(log *logger.Logger) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}

	apiKey := strings.TrimSpace(os.Getenv("SPAPI_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("missing SPAPI_API_KEY")
	}

	baseURL := strings.TrimSpace(os.Getenv("SPAPI_BASE_URL"))
	if baseURL == "" {
		baseURL = "https://sellingpartnerapi-na.amazon.com"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	marketplaceID := strings.TrimSpace(os.Getenv("SPAPI_MARKETPLACE_ID"))
	if marketplaceID == "" {
		marketplaceID = "ATVPDKIKX0DER"
	}

	timeoutSec := 30
	if v := os.Getenv("SPAPI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}

	maxRetries := 3
	if v := os.Getenv("SPAPI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}

	return &client{
		log:           log.With("service", "SPAPIClient"),
		baseURL:       baseURL,
		apiKey:        apiKey,
		marketplaceID: marketplaceID,
		httpClient:    &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries:    maxRetries,
	}, nil
}

// HTTPError carries the provider status code so retry classification can see it.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("spapi http %d: %s", e.StatusCode, e.Body)
}

func (e *HTTPError) HTTPStatusCode() int {
	if e == nil {
		return 0
	}
	return e.StatusCode
}

// DecodeError marks a malformed provider payload. The raw payload is kept so
// it can be logged alongside the affected items.
type DecodeError struct {
	Raw []byte
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("spapi decode error: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func (c *client) doOnce(ctx context.Context, method, path string, body any) (*http.Response, []byte, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &buf)
	if err != nil {
		return nil, nil, err
	}
	req.Header.Set("x-amz-access-token", c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, nil, err
	}

	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return resp, nil, readErr
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp, raw, &HTTPError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return resp, raw, nil
}

func (c *client) do(ctx context.Context, method, path string, body any, out any) error {
	backoff := 1 * time.Second

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		resp, raw, err := c.doOnce(ctx, method, path, body)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return &DecodeError{Raw: raw, Err: uErr}
			}
			return nil
		}

		if !httpx.IsRetryableError(err) {
			return err
		}
		if attempt == c.maxRetries {
			return err
		}

		sleepFor := httpx.RetryAfterDuration(resp, backoff, 10*time.Second)
		sleepFor = httpx.JitterSleep(sleepFor)

		c.log.Warn("SPAPI request retrying",
			"path", path,
			"attempt", attempt+1,
			"max_retries", c.maxRetries,
			"sleep", sleepFor.String(),
			"error", err.Error(),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(sleepFor):
		}
		backoff *= 2
	}

	return fmt.Errorf("unreachable retry loop")
}

func (c *client) SearchCatalogItems(ctx context.Context, identifiers []string, identifierType string) ([]CatalogMatch, error) {
	if len(identifiers) == 0 {
		return []CatalogMatch{}, nil
	}
	if len(identifiers) > SearchBatchLimit {
		return nil, fmt.Errorf("spapi search batch %d exceeds limit %d", len(identifiers), SearchBatchLimit)
	}

	req := searchCatalogRequest{
		Identifiers:    identifiers,
		IdentifierType: strings.ToUpper(identifierType),
		MarketplaceID:  c.marketplaceID,
	}

	var resp searchCatalogResponse
	if err := c.do(ctx, "POST", "/catalog/2022-04-01/items/search", req, &resp); err != nil {
		return nil, err
	}

	out := make([]CatalogMatch, 0, len(resp.Items))
	for _, item := range resp.Items {
		m := CatalogMatch{
			Identifier: item.Identifier,
			ASIN:       item.ASIN,
		}
		if len(item.Summaries) > 0 {
			m.Title = item.Summaries[0].ItemName
			m.Brand = item.Summaries[0].Brand
		}
		if len(item.Images) > 0 {
			m.ImageURL = item.Images[0].Link
		}
		out = append(out, m)
	}
	return out, nil
}

func (c *client) GetCompetitivePricing(ctx context.Context, asins []string) ([]PricingItem, error) {
	if len(asins) == 0 {
		return []PricingItem{}, nil
	}
	if len(asins) > PricingBatchLimit {
		return nil, fmt.Errorf("spapi pricing batch %d exceeds limit %d", len(asins), PricingBatchLimit)
	}

	req := competitivePricingRequest{
		ASINs:         asins,
		MarketplaceID: c.marketplaceID,
	}

	var resp competitivePricingResponse
	if err := c.do(ctx, "POST", "/products/pricing/v0/competitivePrice", req, &resp); err != nil {
		return nil, err
	}

	out := make([]PricingItem, 0, len(resp.Payload))
	for _, row := range resp.Payload {
		item := PricingItem{ASIN: row.ASIN}
		cp := row.Product.CompetitivePricing
		if len(cp.CompetitivePrices) > 0 {
			amount := cp.CompetitivePrices[0].Price.ListingPrice.Amount
			if amount > 0 {
				item.CompetitivePrice = &amount
			}
		}
		for _, listing := range cp.NumberOfOfferListings {
			if listing.Condition == "" || strings.EqualFold(listing.Condition, "new") {
				item.OfferCount = listing.Count
				break
			}
		}
		out = append(out, item)
	}
	return out, nil
}

func (c *client) GetFeesEstimate(ctx context.Context, asin string, price float64) (*FeesEstimate, error) {
	if asin == "" {
		return nil, fmt.Errorf("asin required")
	}
	if price <= 0 {
		return nil, fmt.Errorf("price must be positive")
	}

	req := feesEstimateRequest{
		MarketplaceID: c.marketplaceID,
		ASIN:          asin,
		ListingPrice:  price,
	}

	var resp feesEstimateResponse
	if err := c.do(ctx, "POST", "/products/fees/v0/items/"+asin+"/feesEstimate", req, &resp); err != nil {
		return nil, err
	}

	result := resp.Payload.FeesEstimateResult
	if result.Status != "" && !strings.EqualFold(result.Status, "success") {
		return nil, fmt.Errorf("spapi fees estimate status %q for %s", result.Status, asin)
	}

	est := &FeesEstimate{
		ASIN:      asin,
		Price:     price,
		TotalFees: result.FeesEstimate.TotalFeesEstimate.Amount,
	}
	for _, fee := range result.FeesEstimate.FeeDetailList {
		switch fee.FeeType {
		case "ReferralFee":
			est.ReferralFee = fee.FeeAmount.Amount
		case "FBAFees", "FulfillmentFee":
			est.FulfillmentFee = fee.FeeAmount.Amount
		}
	}
	return est, nil
}
