package services

import (
	"context"
	"time"

	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
)

// CatalogData bundles the catalog snapshot with the history-derived market
// stats that come from the same provider payload. Both share the 24h TTL:
// they are derived and refetchable, never a source of truth.
type CatalogData struct {
	Snapshot types.CatalogSnapshot `json:"snapshot"`
	Market   types.MarketStats     `json:"market"`
}

func catalogCacheKey(asin string) string { return "catalog:" + asin }

// CatalogService fetches catalog attributes and market history from the
// secondary provider, with a 24h cache in front.
type CatalogService struct {
	log        *logger.Logger
	provider   keepa.Client
	cache      rediscl.Store
	limiter    *ratelimit.Limiter
	batchLimit int
	ttl        time.Duration
}

func NewCatalogService(
	baseLog *logger.Logger,
	provider keepa.Client,
	cache rediscl.Store,
	limiter *ratelimit.Limiter,
	batchLimit int,
	ttl time.Duration,
) *CatalogService {
	if batchLimit < 1 || batchLimit > keepa.ProductBatchLimit {
		batchLimit = keepa.ProductBatchLimit
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &CatalogService{
		log:        baseLog.With("service", "CatalogService"),
		provider:   provider,
		cache:      cache,
		limiter:    limiter,
		batchLimit: batchLimit,
		ttl:        ttl,
	}
}

// Fetch partitions the ASINs into cache hits and misses, requests the misses
// in provider-sized chunks, and merges. A failed chunk is logged and skipped:
// its ASINs simply carry no catalog data for this run.
func (s *CatalogService) Fetch(ctx context.Context, asins []string) (map[string]*CatalogData, error) {
	out := make(map[string]*CatalogData, len(asins))
	if len(asins) == 0 {
		return out, nil
	}

	misses := make([]string, 0, len(asins))
	seen := map[string]bool{}
	for _, asin := range asins {
		if asin == "" || seen[asin] {
			continue
		}
		seen[asin] = true

		var cached CatalogData
		ok, err := s.cache.GetJSON(ctx, catalogCacheKey(asin), &cached)
		if err != nil {
			s.log.Warn("Catalog cache read failed", "asin", asin, "error", err)
		}
		if ok && time.Now().Before(cached.Snapshot.ExpiresAt) {
			out[asin] = &cached
			continue
		}
		misses = append(misses, asin)
	}

	for start := 0; start < len(misses); start += s.batchLimit {
		end := start + s.batchLimit
		if end > len(misses) {
			end = len(misses)
		}
		chunk := misses[start:end]

		if err := s.fetchChunk(ctx, chunk, out); err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.log.Warn("Catalog chunk failed, items proceed without catalog data",
				"size", len(chunk),
				"error", err,
			)
		}
	}
	return out, nil
}

func (s *CatalogService) fetchChunk(ctx context.Context, asins []string, out map[string]*CatalogData) error {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return classifyProviderErr("keepa", "product", err)
	}

	products, err := s.provider.GetProducts(ctx, asins)
	release()
	if err != nil {
		if de, ok := err.(*keepa.DecodeError); ok {
			s.log.Error("Malformed catalog payload", "raw", string(de.Raw))
		}
		return classifyProviderErr("keepa", "product", err)
	}

	now := time.Now().UTC()
	for i := range products {
		p := &products[i]
		if p.ASIN == "" {
			continue
		}
		drops, hasHistory := p.CountRankDrops(now, 30*24*time.Hour)
		data := &CatalogData{
			Snapshot: types.CatalogSnapshot{
				ASIN:         p.ASIN,
				Title:        p.Title,
				Brand:        p.Brand,
				ImageURLs:    p.ImageURLs,
				Category:     p.Category,
				SalesRank:    p.SalesRank,
				Hazmat:       p.Hazmat,
				TrackedPrice: p.TrackedPrice(),
				FetchedAt:    now,
				ExpiresAt:    now.Add(s.ttl),
			},
			Market: types.MarketStats{
				ASIN:               p.ASIN,
				HasRankHistory:     hasHistory,
				RankDrops30d:       drops,
				ProviderSalesEst:   p.SalesEstimate,
				AvgPrice90d:        p.AvgPrice90d,
				PriceVolatility:    p.PriceVolatility(),
				OfferCountTrend30d: p.OfferCountTrend30d,
				BuyBoxShare:        p.BuyBoxShare,
				PrimaryOutOfStock:  p.PrimaryOutOfStock,
				StockOutRate:       p.OutOfStockPct90d / 100,
				ReviewVolatility:   p.ReviewVolatility,
				ListedAt:           p.ListedAt(),
			},
		}
		out[p.ASIN] = data

		if err := s.cache.SetJSON(ctx, catalogCacheKey(p.ASIN), data, s.ttl); err != nil {
			s.log.Warn("Catalog cache write failed", "asin", p.ASIN, "error", err)
		}
	}
	return nil
}
