package services

import (
	"context"
	"fmt"
	"math"
	"time"

	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
)

// feeBucket rounds a price to the nearest 50 cents. Marketplace fees shift
// by price bracket, not by cent, so nearby prices share a cache entry.
func feeBucket(price float64) int {
	return int(math.Round(price * 2))
}

func feeCacheKey(asin string, price float64) string {
	return fmt.Sprintf("fees:%s:%d", asin, feeBucket(price))
}

// FeeRequest asks for the fee estimate of selling one ASIN at a price.
type FeeRequest struct {
	ASIN  string
	Price float64
}

// FeeService fetches marketplace fee estimates with a 7-day cache keyed by
// (asin, price bucket). The provider only quotes fees one item at a time, so
// the cache is what keeps large runs affordable.
type FeeService struct {
	log      *logger.Logger
	provider spapi.Client
	cache    rediscl.Store
	limiter  *ratelimit.Limiter
	ttl      time.Duration
}

func NewFeeService(
	baseLog *logger.Logger,
	provider spapi.Client,
	cache rediscl.Store,
	limiter *ratelimit.Limiter,
	ttl time.Duration,
) *FeeService {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &FeeService{
		log:      baseLog.With("service", "FeeService"),
		provider: provider,
		cache:    cache,
		limiter:  limiter,
		ttl:      ttl,
	}
}

// Fetch returns fee snapshots keyed by ASIN. A failed estimate is logged and
// skipped; the item proceeds without fees and its result degrades to partial.
func (s *FeeService) Fetch(ctx context.Context, reqs []FeeRequest) (map[string]*types.FeeSnapshot, error) {
	out := make(map[string]*types.FeeSnapshot, len(reqs))

	for _, req := range reqs {
		if req.ASIN == "" || req.Price <= 0 {
			continue
		}
		if _, ok := out[req.ASIN]; ok {
			continue
		}

		var cached types.FeeSnapshot
		ok, err := s.cache.GetJSON(ctx, feeCacheKey(req.ASIN, req.Price), &cached)
		if err != nil {
			s.log.Warn("Fee cache read failed", "asin", req.ASIN, "error", err)
		}
		if ok && time.Now().Before(cached.ExpiresAt) {
			out[req.ASIN] = &cached
			continue
		}

		snap, err := s.fetchOne(ctx, req)
		if err != nil {
			if IsFatal(err) {
				return nil, err
			}
			s.log.Warn("Fee estimate failed, item proceeds without fees",
				"asin", req.ASIN,
				"price", req.Price,
				"error", err,
			)
			continue
		}
		out[req.ASIN] = snap
	}
	return out, nil
}

func (s *FeeService) fetchOne(ctx context.Context, req FeeRequest) (*types.FeeSnapshot, error) {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return nil, classifyProviderErr("spapi", "fees", err)
	}

	est, err := s.provider.GetFeesEstimate(ctx, req.ASIN, req.Price)
	release()
	if err != nil {
		if de, ok := err.(*spapi.DecodeError); ok {
			s.log.Error("Malformed fees payload", "raw", string(de.Raw))
		}
		return nil, classifyProviderErr("spapi", "fees", err)
	}

	now := time.Now().UTC()
	snap := &types.FeeSnapshot{
		ASIN:           est.ASIN,
		Price:          est.Price,
		ReferralFee:    est.ReferralFee,
		FulfillmentFee: est.FulfillmentFee,
		TotalFees:      est.TotalFees,
		FetchedAt:      now,
		ExpiresAt:      now.Add(s.ttl),
	}
	if err := s.cache.SetJSON(ctx, feeCacheKey(req.ASIN, req.Price), snap, s.ttl); err != nil {
		s.log.Warn("Fee cache write failed", "asin", req.ASIN, "error", err)
	}
	return snap, nil
}
