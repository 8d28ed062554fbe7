package services

import (
	"context"
	"time"

	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// CacheEntryInfo describes one cache key for the diagnostics endpoint.
type CacheEntryInfo struct {
	Key        string `json:"key"`
	Present    bool   `json:"present"`
	TTLSeconds *int64 `json:"ttl_seconds,omitempty"`
}

// CacheDiagnostics is the payload behind the cache inspection endpoint. It
// reports, for one ASIN, whether each cache layer holds an entry and how
// long it has left.
type CacheDiagnostics struct {
	ASIN       string           `json:"asin"`
	Catalog    CacheEntryInfo   `json:"catalog"`
	Fees       []CacheEntryInfo `json:"fees"`
	Resolution []CacheEntryInfo `json:"resolution,omitempty"`
}

// DiagnosticsService answers "why did this item hit/miss the cache" questions
// without touching the providers.
type DiagnosticsService struct {
	log   *logger.Logger
	cache rediscl.Store
}

func NewDiagnosticsService(baseLog *logger.Logger, cache rediscl.Store) *DiagnosticsService {
	return &DiagnosticsService{
		log:   baseLog.With("service", "DiagnosticsService"),
		cache: cache,
	}
}

// Inspect reports cache state for an ASIN. feePrices are the sell prices the
// caller wants fee-bucket entries checked for; identifiers are raw input
// identifiers to check the resolution cache for.
func (s *DiagnosticsService) Inspect(ctx context.Context, asin string, feePrices []float64, identifiers map[string]string) (*CacheDiagnostics, error) {
	out := &CacheDiagnostics{ASIN: asin}

	entry, err := s.lookup(ctx, catalogCacheKey(asin))
	if err != nil {
		return nil, err
	}
	out.Catalog = entry

	for _, price := range feePrices {
		entry, err := s.lookup(ctx, feeCacheKey(asin, price))
		if err != nil {
			return nil, err
		}
		out.Fees = append(out.Fees, entry)
	}

	for idType, id := range identifiers {
		entry, err := s.lookup(ctx, resolutionCacheKey(idType, id))
		if err != nil {
			return nil, err
		}
		out.Resolution = append(out.Resolution, entry)
	}
	return out, nil
}

func (s *DiagnosticsService) lookup(ctx context.Context, key string) (CacheEntryInfo, error) {
	ttl, present, err := s.cache.TTL(ctx, key)
	if err != nil {
		s.log.Error("Cache TTL lookup failed", "key", key, "error", err)
		return CacheEntryInfo{}, err
	}
	info := CacheEntryInfo{Key: key, Present: present}
	if present && ttl > 0 {
		secs := int64(ttl / time.Second)
		info.TTLSeconds = &secs
	}
	return info, nil
}
