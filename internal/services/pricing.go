package services

import (
	"context"
	"time"

	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
)

// PricingService fetches live competitive pricing. Deliberately uncached:
// prices are volatile and a snapshot is stale the moment the run ends.
type PricingService struct {
	log        *logger.Logger
	provider   spapi.Client
	limiter    *ratelimit.Limiter
	batchLimit int
}

func NewPricingService(
	baseLog *logger.Logger,
	provider spapi.Client,
	limiter *ratelimit.Limiter,
	batchLimit int,
) *PricingService {
	if batchLimit < 1 || batchLimit > spapi.PricingBatchLimit {
		batchLimit = spapi.PricingBatchLimit
	}
	return &PricingService{
		log:        baseLog.With("service", "PricingService"),
		provider:   provider,
		limiter:    limiter,
		batchLimit: batchLimit,
	}
}

// Fetch requests pricing in provider-sized chunks. A failed chunk is logged
// and skipped; its ASINs carry no pricing snapshot for this run and fall
// through to the price fallback chain.
func (s *PricingService) Fetch(ctx context.Context, asins []string) (map[string]*types.PricingSnapshot, error) {
	out := make(map[string]*types.PricingSnapshot, len(asins))
	if len(asins) == 0 {
		return out, nil
	}

	distinct := make([]string, 0, len(asins))
	seen := map[string]bool{}
	for _, asin := range asins {
		if asin == "" || seen[asin] {
			continue
		}
		seen[asin] = true
		distinct = append(distinct, asin)
	}

	for start := 0; start < len(distinct); start += s.batchLimit {
		end := start + s.batchLimit
		if end > len(distinct) {
			end = len(distinct)
		}
		chunk := distinct[start:end]

		if err := s.fetchChunk(ctx, chunk, out); err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.log.Warn("Pricing chunk failed, items fall back",
				"size", len(chunk),
				"error", err,
			)
		}
	}
	return out, nil
}

func (s *PricingService) fetchChunk(ctx context.Context, asins []string, out map[string]*types.PricingSnapshot) error {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return classifyProviderErr("spapi", "pricing", err)
	}

	items, err := s.provider.GetCompetitivePricing(ctx, asins)
	release()
	if err != nil {
		if de, ok := err.(*spapi.DecodeError); ok {
			s.log.Error("Malformed pricing payload", "raw", string(de.Raw))
		}
		return classifyProviderErr("spapi", "pricing", err)
	}

	now := time.Now().UTC()
	for _, item := range items {
		if item.ASIN == "" {
			continue
		}
		out[item.ASIN] = &types.PricingSnapshot{
			ASIN:             item.ASIN,
			CompetitivePrice: item.CompetitivePrice,
			OfferCount:       item.OfferCount,
			Source:           types.PriceSourcePrimary,
			FetchedAt:        now,
		}
	}
	return nil
}
