package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	repos "github.com/ls5986/habexa-backend/internal/data/repos/analysis"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
)

// ResolveRequest is one identifier to resolve.
type ResolveRequest struct {
	Identifier     string
	IdentifierType string
}

// cachedResolution is the identifier cache payload. Identifier-to-ASIN
// mapping is marketplace truth, not account data, so the cache is global and
// has no expiry.
type cachedResolution struct {
	Status     string                      `json:"status"`
	ASIN       string                      `json:"asin,omitempty"`
	Candidates []types.ResolutionCandidate `json:"candidates,omitempty"`
	ResolvedAt time.Time                   `json:"resolved_at"`
}

func resolutionCacheKey(identifierType, identifier string) string {
	return "resolve:" + identifierType + ":" + identifier
}

// ResolverService converts universal product codes into canonical ASINs:
// identifier cache first, then terminal database records, then chunked
// provider searches for whatever is left.
type ResolverService struct {
	log        *logger.Logger
	provider   spapi.Client
	cache      rediscl.Store
	repo       repos.ResolutionRepo
	limiter    *ratelimit.Limiter
	batchLimit int
}

func NewResolverService(
	baseLog *logger.Logger,
	provider spapi.Client,
	cache rediscl.Store,
	repo repos.ResolutionRepo,
	limiter *ratelimit.Limiter,
	batchLimit int,
) *ResolverService {
	if batchLimit < 1 || batchLimit > spapi.SearchBatchLimit {
		batchLimit = spapi.SearchBatchLimit
	}
	return &ResolverService{
		log:        baseLog.With("service", "ResolverService"),
		provider:   provider,
		cache:      cache,
		repo:       repo,
		limiter:    limiter,
		batchLimit: batchLimit,
	}
}

// Resolve returns one record per distinct input identifier. Codes already in
// a terminal state (cache or database) never trigger another provider call.
// A failed provider batch degrades only its own codes to status error; the
// rest of the run proceeds.
func (s *ResolverService) Resolve(ctx context.Context, accountID uuid.UUID, reqs []ResolveRequest) (map[string]*types.ResolutionRecord, error) {
	out := make(map[string]*types.ResolutionRecord, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	pending := make([]ResolveRequest, 0, len(reqs))
	seen := make(map[string]bool, len(reqs))
	for _, req := range reqs {
		if req.Identifier == "" || seen[req.Identifier] {
			continue
		}
		seen[req.Identifier] = true

		// Direct ASINs skip resolution entirely.
		if req.IdentifierType == types.IdentifierTypeASIN {
			asin := req.Identifier
			out[req.Identifier] = &types.ResolutionRecord{
				AccountID:       accountID,
				InputIdentifier: req.Identifier,
				IdentifierType:  req.IdentifierType,
				ASIN:            &asin,
				Status:          types.ResolutionFound,
				ResolvedAt:      time.Now().UTC(),
			}
			continue
		}
		pending = append(pending, req)
	}

	pending = s.hitCache(ctx, accountID, pending, out)
	remaining, err := s.hitDatabase(ctx, accountID, pending, out)
	if err != nil {
		return nil, err
	}

	if err := s.resolveRemote(ctx, accountID, remaining, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ResolverService) hitCache(ctx context.Context, accountID uuid.UUID, reqs []ResolveRequest, out map[string]*types.ResolutionRecord) []ResolveRequest {
	misses := make([]ResolveRequest, 0, len(reqs))
	for _, req := range reqs {
		var cached cachedResolution
		ok, err := s.cache.GetJSON(ctx, resolutionCacheKey(req.IdentifierType, req.Identifier), &cached)
		if err != nil {
			s.log.Warn("Identifier cache read failed", "identifier", req.Identifier, "error", err)
		}
		if ok {
			out[req.Identifier] = cachedToRecord(accountID, req, cached)
			continue
		}
		misses = append(misses, req)
	}
	return misses
}

func (s *ResolverService) hitDatabase(ctx context.Context, accountID uuid.UUID, reqs []ResolveRequest, out map[string]*types.ResolutionRecord) ([]ResolveRequest, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	byType := map[string][]string{}
	for _, req := range reqs {
		byType[req.IdentifierType] = append(byType[req.IdentifierType], req.Identifier)
	}

	terminal := map[string]*types.ResolutionRecord{}
	for identifierType, identifiers := range byType {
		rows, err := s.repo.GetByIdentifiers(ctx, nil, accountID, identifierType, identifiers)
		if err != nil {
			return nil, fmt.Errorf("load resolution records: %w", err)
		}
		for _, row := range rows {
			if row.Terminal() {
				terminal[row.InputIdentifier] = row
				s.writeCache(ctx, row)
			}
		}
	}

	remaining := make([]ResolveRequest, 0, len(reqs))
	for _, req := range reqs {
		if row, ok := terminal[req.Identifier]; ok {
			out[req.Identifier] = row
			continue
		}
		remaining = append(remaining, req)
	}
	return remaining, nil
}

func (s *ResolverService) resolveRemote(ctx context.Context, accountID uuid.UUID, reqs []ResolveRequest, out map[string]*types.ResolutionRecord) error {
	if len(reqs) == 0 {
		return nil
	}

	byType := map[string][]ResolveRequest{}
	for _, req := range reqs {
		byType[req.IdentifierType] = append(byType[req.IdentifierType], req)
	}

	for identifierType, typed := range byType {
		for start := 0; start < len(typed); start += s.batchLimit {
			end := start + s.batchLimit
			if end > len(typed) {
				end = len(typed)
			}
			chunk := typed[start:end]

			if err := s.resolveChunk(ctx, accountID, identifierType, chunk, out); err != nil {
				if IsFatal(err) {
					return err
				}
				// The chunk degrades; the rest of the identifiers proceed.
				s.log.Warn("Resolution chunk failed",
					"identifier_type", identifierType,
					"size", len(chunk),
					"error", err,
				)
				for _, req := range chunk {
					out[req.Identifier] = &types.ResolutionRecord{
						AccountID:       accountID,
						InputIdentifier: req.Identifier,
						IdentifierType:  req.IdentifierType,
						Status:          types.ResolutionError,
						ResolvedAt:      time.Now().UTC(),
					}
				}
			}
		}
	}
	return nil
}

func (s *ResolverService) resolveChunk(ctx context.Context, accountID uuid.UUID, identifierType string, chunk []ResolveRequest, out map[string]*types.ResolutionRecord) error {
	release, err := s.limiter.Acquire(ctx)
	if err != nil {
		return classifyProviderErr("spapi", "search", err)
	}

	identifiers := make([]string, len(chunk))
	for i, req := range chunk {
		identifiers[i] = req.Identifier
	}
	matches, err := s.provider.SearchCatalogItems(ctx, identifiers, identifierType)
	release()
	if err != nil {
		if de, ok := err.(*spapi.DecodeError); ok {
			s.log.Error("Malformed search payload", "raw", string(de.Raw))
		}
		return classifyProviderErr("spapi", "search", err)
	}

	matchesByIdentifier := map[string][]spapi.CatalogMatch{}
	for _, m := range matches {
		matchesByIdentifier[m.Identifier] = append(matchesByIdentifier[m.Identifier], m)
	}

	now := time.Now().UTC()
	records := make([]*types.ResolutionRecord, 0, len(chunk))
	for _, req := range chunk {
		rec := classifyMatches(accountID, req, matchesByIdentifier[req.Identifier], now)
		records = append(records, rec)
		out[req.Identifier] = rec
	}

	if _, err := s.repo.Upsert(ctx, nil, records); err != nil {
		return fmt.Errorf("persist resolution records: %w", err)
	}
	for _, rec := range records {
		s.writeCache(ctx, rec)
	}
	return nil
}

// classifyMatches: 0 matches is not_found, exactly 1 is found, 2+ is
// ambiguous with every candidate stored for later disambiguation.
func classifyMatches(accountID uuid.UUID, req ResolveRequest, matches []spapi.CatalogMatch, now time.Time) *types.ResolutionRecord {
	rec := &types.ResolutionRecord{
		AccountID:       accountID,
		InputIdentifier: req.Identifier,
		IdentifierType:  req.IdentifierType,
		ResolvedAt:      now,
	}
	switch len(matches) {
	case 0:
		rec.Status = types.ResolutionNotFound
	case 1:
		asin := matches[0].ASIN
		rec.Status = types.ResolutionFound
		rec.ASIN = &asin
	default:
		rec.Status = types.ResolutionAmbiguous
		candidates := make([]types.ResolutionCandidate, 0, len(matches))
		for _, m := range matches {
			candidates = append(candidates, types.ResolutionCandidate{
				ASIN:     m.ASIN,
				Title:    m.Title,
				Brand:    m.Brand,
				ImageURL: m.ImageURL,
			})
		}
		if raw, err := json.Marshal(candidates); err == nil {
			rec.Candidates = datatypes.JSON(raw)
		}
	}
	return rec
}

func (s *ResolverService) writeCache(ctx context.Context, rec *types.ResolutionRecord) {
	if !rec.Terminal() {
		return
	}
	cached := cachedResolution{
		Status:     rec.Status,
		ResolvedAt: rec.ResolvedAt,
	}
	if rec.ASIN != nil {
		cached.ASIN = *rec.ASIN
	}
	if len(rec.Candidates) > 0 {
		_ = json.Unmarshal(rec.Candidates, &cached.Candidates)
	}
	if err := s.cache.SetJSON(ctx, resolutionCacheKey(rec.IdentifierType, rec.InputIdentifier), cached, 0); err != nil {
		s.log.Warn("Identifier cache write failed", "identifier", rec.InputIdentifier, "error", err)
	}
}

// Disambiguate applies an explicit user choice to a not_found or ambiguous
// identifier, transitioning it to manual. Manual records are treated exactly
// like found downstream.
func (s *ResolverService) Disambiguate(ctx context.Context, accountID uuid.UUID, identifierType, identifier, asin string) (*types.ResolutionRecord, error) {
	updated, err := s.repo.SetManual(ctx, nil, accountID, identifierType, identifier, asin)
	if err != nil {
		return nil, err
	}
	if !updated {
		return nil, fmt.Errorf("no ambiguous or not_found record for %q", identifier)
	}
	rec := &types.ResolutionRecord{
		AccountID:       accountID,
		InputIdentifier: identifier,
		IdentifierType:  identifierType,
		ASIN:            &asin,
		Status:          types.ResolutionManual,
		ResolvedAt:      time.Now().UTC(),
	}
	s.writeCache(ctx, rec)
	return rec, nil
}

// RegisterManual records a directly supplied (identifier, asin) pair,
// skipping resolution entirely.
func (s *ResolverService) RegisterManual(ctx context.Context, accountID uuid.UUID, identifierType, identifier, asin string) (*types.ResolutionRecord, error) {
	if identifier == "" || asin == "" {
		return nil, fmt.Errorf("identifier and asin required")
	}
	rec := &types.ResolutionRecord{
		AccountID:       accountID,
		InputIdentifier: identifier,
		IdentifierType:  identifierType,
		ASIN:            &asin,
		Status:          types.ResolutionManual,
		ResolvedAt:      time.Now().UTC(),
	}
	if _, err := s.repo.Upsert(ctx, nil, []*types.ResolutionRecord{rec}); err != nil {
		return nil, err
	}
	s.writeCache(ctx, rec)
	return rec, nil
}

func cachedToRecord(accountID uuid.UUID, req ResolveRequest, cached cachedResolution) *types.ResolutionRecord {
	rec := &types.ResolutionRecord{
		AccountID:       accountID,
		InputIdentifier: req.Identifier,
		IdentifierType:  req.IdentifierType,
		Status:          cached.Status,
		ResolvedAt:      cached.ResolvedAt,
	}
	if cached.ASIN != "" {
		asin := cached.ASIN
		rec.ASIN = &asin
	}
	if len(cached.Candidates) > 0 {
		if raw, err := json.Marshal(cached.Candidates); err == nil {
			rec.Candidates = datatypes.JSON(raw)
		}
	}
	return rec
}
