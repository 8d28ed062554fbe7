package services

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
)

func newTestLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("development")
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	return log
}

func newTestLimiter(t *testing.T) *ratelimit.Limiter {
	t.Helper()
	return ratelimit.New("test", 10000, 10000, 16, 1024, newTestLogger(t))
}

// fakeMarketplace is an in-memory spapi.Client that records call shapes.
type fakeMarketplace struct {
	mu sync.Mutex

	matches    map[string][]spapi.CatalogMatch
	searchErr  error
	searchLens []int

	pricing     map[string]spapi.PricingItem
	pricingErr  error
	pricingLens []int

	fees     map[string]spapi.FeesEstimate
	feesErr  error
	feesReqs int
}

func (f *fakeMarketplace) SearchCatalogItems(ctx context.Context, identifiers []string, identifierType string) ([]spapi.CatalogMatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchLens = append(f.searchLens, len(identifiers))
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	var out []spapi.CatalogMatch
	for _, id := range identifiers {
		out = append(out, f.matches[id]...)
	}
	return out, nil
}

func (f *fakeMarketplace) GetCompetitivePricing(ctx context.Context, asins []string) ([]spapi.PricingItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pricingLens = append(f.pricingLens, len(asins))
	if f.pricingErr != nil {
		return nil, f.pricingErr
	}
	var out []spapi.PricingItem
	for _, asin := range asins {
		if item, ok := f.pricing[asin]; ok {
			out = append(out, item)
		}
	}
	return out, nil
}

func (f *fakeMarketplace) GetFeesEstimate(ctx context.Context, asin string, price float64) (*spapi.FeesEstimate, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feesReqs++
	if f.feesErr != nil {
		return nil, f.feesErr
	}
	if est, ok := f.fees[asin]; ok {
		est.Price = price
		return &est, nil
	}
	referral := price * 0.15
	return &spapi.FeesEstimate{
		ASIN:           asin,
		Price:          price,
		ReferralFee:    referral,
		FulfillmentFee: 3.5,
		TotalFees:      referral + 3.5,
	}, nil
}

// fakeProductAPI is an in-memory keepa.Client.
type fakeProductAPI struct {
	mu sync.Mutex

	products  map[string]keepa.Product
	err       error
	batchLens []int
}

func (f *fakeProductAPI) GetProducts(ctx context.Context, asins []string) ([]keepa.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batchLens = append(f.batchLens, len(asins))
	if f.err != nil {
		return nil, f.err
	}
	var out []keepa.Product
	for _, asin := range asins {
		if p, ok := f.products[asin]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func resolutionKey(accountID uuid.UUID, identifierType, identifier string) string {
	return accountID.String() + "|" + identifierType + "|" + identifier
}

// fakeResolutionRepo keeps records in a map keyed like the unique index.
type fakeResolutionRepo struct {
	mu   sync.Mutex
	rows map[string]*types.ResolutionRecord
}

func newFakeResolutionRepo() *fakeResolutionRepo {
	return &fakeResolutionRepo{rows: map[string]*types.ResolutionRecord{}}
}

func (f *fakeResolutionRepo) GetByIdentifiers(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType string, identifiers []string) ([]*types.ResolutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.ResolutionRecord
	for _, id := range identifiers {
		if row, ok := f.rows[resolutionKey(accountID, identifierType, id)]; ok {
			cp := *row
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (f *fakeResolutionRepo) Upsert(ctx context.Context, tx *gorm.DB, records []*types.ResolutionRecord) ([]*types.ResolutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, rec := range records {
		cp := *rec
		f.rows[resolutionKey(rec.AccountID, rec.IdentifierType, rec.InputIdentifier)] = &cp
	}
	return records, nil
}

func (f *fakeResolutionRepo) SetManual(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifierType, identifier, asin string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.rows[resolutionKey(accountID, identifierType, identifier)]
	if !ok {
		return false, nil
	}
	if row.Status != types.ResolutionNotFound && row.Status != types.ResolutionAmbiguous {
		return false, nil
	}
	row.Status = types.ResolutionManual
	row.ASIN = &asin
	return true, nil
}

// fakeRunRepo holds runs in memory with the same status transition rules as
// the real repo.
type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*types.AnalysisRun
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: map[uuid.UUID]*types.AnalysisRun{}}
}

func (f *fakeRunRepo) Create(ctx context.Context, tx *gorm.DB, run *types.AnalysisRun) (*types.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run.ID = uuid.New()
	cp := *run
	f.runs[run.ID] = &cp
	return run, nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*types.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return nil, nil
	}
	cp := *run
	return &cp, nil
}

func (f *fakeRunRepo) UpdateFields(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if v, ok := updates["status"]; ok {
		run.Status = v.(string)
	}
	if v, ok := updates["error"]; ok {
		run.Error = v.(string)
	}
	if v, ok := updates["succeeded"]; ok {
		run.Succeeded = v.(int)
	}
	if v, ok := updates["partial"]; ok {
		run.Partial = v.(int)
	}
	if v, ok := updates["failed"]; ok {
		run.Failed = v.(int)
	}
	if v, ok := updates["disqualified"]; ok {
		run.Disqualified = v.(int)
	}
	if v, ok := updates["no_price"]; ok {
		run.NoPrice = v.(int)
	}
	if v, ok := updates["unresolved"]; ok {
		run.Unresolved = v.(int)
	}
	return nil
}

func (f *fakeRunRepo) RequestCancel(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return false, nil
	}
	if run.Status != types.RunPending && run.Status != types.RunRunning {
		return false, nil
	}
	run.Status = types.RunCancelled
	return true, nil
}

func (f *fakeRunRepo) IsCancelRequested(ctx context.Context, tx *gorm.DB, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[id]
	if !ok {
		return false, nil
	}
	return run.Status == types.RunCancelled, nil
}

func (f *fakeRunRepo) ListByAccount(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, limit int) ([]*types.AnalysisRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AnalysisRun
	for _, run := range f.runs {
		if run.AccountID == accountID {
			cp := *run
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeResultRepo struct {
	mu      sync.Mutex
	results []*types.AnalysisResult
}

func (f *fakeResultRepo) Create(ctx context.Context, tx *gorm.DB, results []*types.AnalysisResult) ([]*types.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.results = append(f.results, results...)
	return results, nil
}

func (f *fakeResultRepo) GetByRunID(ctx context.Context, tx *gorm.DB, runID uuid.UUID) ([]*types.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*types.AnalysisResult
	for _, r := range f.results {
		if r.RunID == runID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (f *fakeResultRepo) CountByStatus(ctx context.Context, tx *gorm.DB, runID uuid.UUID) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]int{}
	for _, r := range f.results {
		if r.RunID == runID {
			out[r.Status]++
		}
	}
	return out, nil
}

func (f *fakeResultRepo) GetLatestByIdentifier(ctx context.Context, tx *gorm.DB, accountID uuid.UUID, identifier string) (*types.AnalysisResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.results) - 1; i >= 0; i-- {
		if f.results[i].AccountID == accountID && f.results[i].InputIdentifier == identifier {
			cp := *f.results[i]
			return &cp, nil
		}
	}
	return nil, nil
}

// fakeQuota mirrors the reserve-up-front contract: Reserve charges, Release
// gives back.
type fakeQuota struct {
	mu         sync.Mutex
	reserveErr error
	reserved   int
	released   int
}

func (f *fakeQuota) Reserve(ctx context.Context, accountID uuid.UUID, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reserveErr != nil {
		return f.reserveErr
	}
	f.reserved += n
	return nil
}

func (f *fakeQuota) Release(ctx context.Context, accountID uuid.UUID, n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released += n
	return nil
}

func (f *fakeQuota) Usage(ctx context.Context, accountID uuid.UUID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return int64(f.reserved - f.released), 10000, nil
}
