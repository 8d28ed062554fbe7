package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"

	repos "github.com/ls5986/habexa-backend/internal/data/repos/analysis"
	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	apperrors "github.com/ls5986/habexa-backend/internal/pkg/errors"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

// processingChunkSize is how many input items one worker handles per chunk.
// It matches the smallest provider batch limit so a chunk never has to split
// a single provider call.
const processingChunkSize = 20

// RunRequest starts one analysis over a batch of normalized inputs.
type RunRequest struct {
	AccountID  uuid.UUID
	Inputs     []types.AnalysisInput
	Thresholds *types.AccountThresholds
}

// PipelineService drives a run end to end: resolution, catalog, pricing,
// fees, profitability and scoring, then persistence. Items degrade
// individually; only credential failures abort a whole run.
type PipelineService struct {
	log        *logger.Logger
	resolver   *ResolverService
	catalog    *CatalogService
	pricing    *PricingService
	fees       *FeeService
	scorer     *Scorer
	quota      QuotaService
	runRepo    repos.AnalysisRunRepo
	resultRepo repos.AnalysisResultRepo
	workers    int
	defaults   types.AccountThresholds
}

func NewPipelineService(
	baseLog *logger.Logger,
	resolver *ResolverService,
	catalog *CatalogService,
	pricing *PricingService,
	fees *FeeService,
	scorer *Scorer,
	quota QuotaService,
	runRepo repos.AnalysisRunRepo,
	resultRepo repos.AnalysisResultRepo,
	workers int,
	defaults types.AccountThresholds,
) *PipelineService {
	if workers < 1 {
		workers = 1
	}
	return &PipelineService{
		log:        baseLog.With("service", "PipelineService"),
		resolver:   resolver,
		catalog:    catalog,
		pricing:    pricing,
		fees:       fees,
		scorer:     scorer,
		quota:      quota,
		runRepo:    runRepo,
		resultRepo: resultRepo,
		workers:    workers,
		defaults:   defaults,
	}
}

// StartRun validates the request, reserves quota and persists a pending run.
// The caller decides whether to Execute synchronously or in the background.
func (s *PipelineService) StartRun(ctx context.Context, req RunRequest) (*types.AnalysisRun, error) {
	if req.AccountID == uuid.Nil {
		return nil, fmt.Errorf("%w: account id required", apperrors.ErrInvalidArgument)
	}
	inputs := dedupeInputs(req.Inputs)
	if len(inputs) == 0 {
		return nil, fmt.Errorf("%w: no analyzable items", apperrors.ErrInvalidArgument)
	}

	if err := s.quota.Reserve(ctx, req.AccountID, len(inputs)); err != nil {
		return nil, err
	}

	run := &types.AnalysisRun{
		AccountID: req.AccountID,
		Status:    types.RunPending,
		Total:     len(inputs),
	}
	run, err := s.runRepo.Create(ctx, nil, run)
	if err != nil {
		if rbErr := s.quota.Release(ctx, req.AccountID, len(inputs)); rbErr != nil {
			s.log.Warn("Quota release failed", "account_id", req.AccountID, "error", rbErr)
		}
		return nil, err
	}
	s.log.Info("Analysis run created",
		"run_id", run.ID,
		"account_id", req.AccountID,
		"total", len(inputs),
	)
	return run, nil
}

// Execute processes the run's inputs chunk by chunk across the worker pool.
// It checks for a cancellation request before dispatching each chunk; chunks
// already in flight finish and their results are kept.
func (s *PipelineService) Execute(ctx context.Context, run *types.AnalysisRun, req RunRequest) error {
	inputs := dedupeInputs(req.Inputs)
	thresholds := s.defaults
	if req.Thresholds != nil {
		thresholds = *req.Thresholds
	}

	// A cancel can land between run creation and execution.
	if requested, err := s.runRepo.IsCancelRequested(ctx, nil, run.ID); err == nil && requested {
		s.log.Info("Run cancelled before execution started", "run_id", run.ID)
		if rbErr := s.quota.Release(ctx, req.AccountID, len(inputs)); rbErr != nil {
			s.log.Warn("Quota release failed", "account_id", req.AccountID, "error", rbErr)
		}
		return nil
	}

	now := time.Now().UTC()
	if err := s.runRepo.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":     types.RunRunning,
		"started_at": now,
	}); err != nil {
		return err
	}

	var (
		mu        sync.Mutex
		summary   types.RunSummary
		cancelled bool
	)
	summary.Total = len(inputs)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for start := 0; start < len(inputs); start += processingChunkSize {
		requested, err := s.runRepo.IsCancelRequested(ctx, nil, run.ID)
		if err != nil {
			s.log.Warn("Cancellation check failed, continuing", "run_id", run.ID, "error", err)
		}
		if requested {
			cancelled = true
			break
		}

		end := start + processingChunkSize
		if end > len(inputs) {
			end = len(inputs)
		}
		chunk := inputs[start:end]

		g.Go(func() error {
			chunkSummary, err := s.processChunk(gctx, run, req.AccountID, chunk, thresholds)
			if err != nil {
				return err
			}
			mu.Lock()
			summary.Succeeded += chunkSummary.Succeeded
			summary.Partial += chunkSummary.Partial
			summary.Failed += chunkSummary.Failed
			summary.Disqualified += chunkSummary.Disqualified
			summary.NoPrice += chunkSummary.NoPrice
			summary.Unresolved += chunkSummary.Unresolved
			mu.Unlock()
			return nil
		})
	}

	runErr := g.Wait()
	finished := time.Now().UTC()

	updates := map[string]interface{}{
		"succeeded":    summary.Succeeded,
		"partial":      summary.Partial,
		"failed":       summary.Failed,
		"disqualified": summary.Disqualified,
		"no_price":     summary.NoPrice,
		"unresolved":   summary.Unresolved,
		"finished_at":  finished,
	}

	switch {
	case runErr != nil:
		updates["status"] = types.RunFailed
		updates["error"] = runErr.Error()
		s.log.Error("Analysis run failed", "run_id", run.ID, "error", runErr)
	case cancelled:
		updates["status"] = types.RunCancelled
		s.log.Info("Analysis run cancelled",
			"run_id", run.ID,
			"processed", summary.Succeeded+summary.Partial+summary.Failed+summary.Disqualified+summary.NoPrice+summary.Unresolved,
		)
	default:
		updates["status"] = types.RunCompleted
		s.log.Info("Analysis run completed",
			"run_id", run.ID,
			"succeeded", summary.Succeeded,
			"partial", summary.Partial,
			"failed", summary.Failed,
			"disqualified", summary.Disqualified,
			"no_price", summary.NoPrice,
			"unresolved", summary.Unresolved,
		)
	}

	// Items never dispatched keep their reserved quota only if analyzed;
	// give the rest back.
	processed := summary.Succeeded + summary.Partial + summary.Failed +
		summary.Disqualified + summary.NoPrice + summary.Unresolved
	if unprocessed := len(inputs) - processed; unprocessed > 0 {
		if rbErr := s.quota.Release(context.WithoutCancel(ctx), req.AccountID, unprocessed); rbErr != nil {
			s.log.Warn("Quota release failed", "account_id", req.AccountID, "error", rbErr)
		}
	}

	if err := s.runRepo.UpdateFields(context.WithoutCancel(ctx), nil, run.ID, updates); err != nil {
		s.log.Error("Run finalization write failed", "run_id", run.ID, "error", err)
		if runErr == nil {
			runErr = err
		}
	}
	return runErr
}

// processChunk runs every pipeline stage for one slice of inputs and persists
// the resulting rows in one batch insert. Per-item failures degrade that item
// only; a fatal provider error aborts with an error.
func (s *PipelineService) processChunk(ctx context.Context, run *types.AnalysisRun, accountID uuid.UUID, chunk []types.AnalysisInput, thresholds types.AccountThresholds) (types.RunSummary, error) {
	var summary types.RunSummary

	resolveReqs := make([]ResolveRequest, 0, len(chunk))
	for _, in := range chunk {
		resolveReqs = append(resolveReqs, ResolveRequest{
			Identifier:     in.Identifier,
			IdentifierType: in.IdentifierType,
		})
	}
	resolutions, err := s.resolver.Resolve(ctx, accountID, resolveReqs)
	if err != nil {
		return summary, err
	}

	asins := make([]string, 0, len(chunk))
	seen := make(map[string]bool, len(chunk))
	for _, in := range chunk {
		rec := resolutions[in.Identifier]
		if rec != nil && rec.Usable() && !seen[*rec.ASIN] {
			seen[*rec.ASIN] = true
			asins = append(asins, *rec.ASIN)
		}
	}

	catalogData, err := s.catalog.Fetch(ctx, asins)
	if err != nil {
		return summary, err
	}
	pricingData, err := s.pricing.Fetch(ctx, asins)
	if err != nil {
		return summary, err
	}

	// Fees need a sell price, which only exists after the fallback chain ran.
	feeReqs := make([]FeeRequest, 0, len(asins))
	prices := make(map[string]ResolvedPrice, len(asins))
	for _, asin := range asins {
		var snap *types.CatalogSnapshot
		if cd, ok := catalogData[asin]; ok {
			snap = &cd.Snapshot
		}
		rp := ResolveSellPrice(pricingData[asin], snap)
		prices[asin] = rp
		if rp.Price != nil {
			feeReqs = append(feeReqs, FeeRequest{ASIN: asin, Price: *rp.Price})
		}
	}
	feeData, err := s.fees.Fetch(ctx, feeReqs)
	if err != nil {
		return summary, err
	}

	results := make([]*types.AnalysisResult, 0, len(chunk))
	for _, in := range chunk {
		result := s.buildResult(run, accountID, in, resolutions[in.Identifier], catalogData, pricingData, feeData, prices, thresholds)
		results = append(results, result)

		switch result.Status {
		case types.ResultSuccess:
			summary.Succeeded++
		case types.ResultPartial:
			summary.Partial++
		case types.ResultNoPrice:
			summary.NoPrice++
		case types.ResultDisqualified:
			summary.Disqualified++
		default:
			if result.ASIN == nil {
				summary.Unresolved++
			} else {
				summary.Failed++
			}
		}
	}

	if _, err := s.resultRepo.Create(ctx, nil, results); err != nil {
		return summary, err
	}
	return summary, nil
}

// buildResult assembles one immutable result row from whatever the stages
// produced for this item.
func (s *PipelineService) buildResult(
	run *types.AnalysisRun,
	accountID uuid.UUID,
	in types.AnalysisInput,
	rec *types.ResolutionRecord,
	catalogData map[string]*CatalogData,
	pricingData map[string]*types.PricingSnapshot,
	feeData map[string]*types.FeeSnapshot,
	prices map[string]ResolvedPrice,
	thresholds types.AccountThresholds,
) *types.AnalysisResult {
	result := &types.AnalysisResult{
		RunID:           run.ID,
		AccountID:       accountID,
		InputIdentifier: in.Identifier,
		IdentifierType:  in.IdentifierType,
		GroupingKey:     in.GroupingKey,
		UnitCost:        in.UnitCost,
		PackSize:        in.PackSize,
		PriceSource:     types.PriceSourceNone,
	}

	if rec == nil || !rec.Usable() {
		result.Status = types.ResultError
		result.ErrorReason = unresolvedReason(rec)
		return result
	}
	asin := *rec.ASIN
	result.ASIN = &asin

	var catalog *types.CatalogSnapshot
	var market *types.MarketStats
	if cd, ok := catalogData[asin]; ok {
		catalog = &cd.Snapshot
		market = &cd.Market
		result.Title = cd.Snapshot.Title
		result.Brand = cd.Snapshot.Brand
		result.Category = cd.Snapshot.Category
		if cd.Snapshot.SalesRank > 0 {
			rank := cd.Snapshot.SalesRank
			result.SalesRank = &rank
		}
	}
	pricing := pricingData[asin]

	rp := prices[asin]
	result.PriceSource = rp.Source
	result.SellPrice = rp.Price

	var totalFees *float64
	if fee, ok := feeData[asin]; ok {
		result.ReferralFee = &fee.ReferralFee
		result.FulfillmentFee = &fee.FulfillmentFee
		result.TotalFees = &fee.TotalFees
		totalFees = &fee.TotalFees
	}

	profit := CalculateProfitability(in.UnitCost, in.PackSize, rp.Price, totalFees)
	result.Profit = profit.Profit
	result.ROI = profit.ROI
	result.Margin = profit.Margin
	result.BreakEvenPrice = profit.BreakEvenPrice

	score := s.scorer.Score(ScoreInput{
		Profitability: profit,
		SellPrice:     rp.Price,
		Catalog:       catalog,
		Pricing:       pricing,
		Market:        market,
	}, thresholds)

	if score.Disqualified {
		result.Status = types.ResultDisqualified
		result.ErrorReason = score.DisqualifyReason
		return result
	}

	if rp.Price == nil {
		result.Status = types.ResultNoPrice
		return result
	}

	sc := score.Score
	result.Score = &sc
	result.Grade = score.Grade
	if b, err := json.Marshal(score.Breakdown); err == nil {
		result.ScoreBreakdown = datatypes.JSON(b)
	}
	if b, err := json.Marshal(score.Insights); err == nil {
		result.Insights = datatypes.JSON(b)
	}

	// Success hinges on price and fees only; a missing catalog snapshot
	// degrades the enrichment fields, not the item.
	if totalFees == nil {
		result.Status = types.ResultPartial
		return result
	}
	result.Status = types.ResultSuccess
	return result
}

// ReprocessItem re-runs the post-resolution stages for one identifier whose
// resolution was just settled manually, writing a fresh result row against
// the item's most recent run. Unit cost and pack size carry over from that
// run's stored row.
func (s *PipelineService) ReprocessItem(ctx context.Context, accountID uuid.UUID, rec *types.ResolutionRecord) (*types.AnalysisResult, error) {
	if rec == nil || !rec.Usable() {
		return nil, fmt.Errorf("%w: resolution carries no usable asin", apperrors.ErrInvalidArgument)
	}
	prior, err := s.resultRepo.GetLatestByIdentifier(ctx, nil, accountID, rec.InputIdentifier)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, fmt.Errorf("%w: no prior analysis for %q", apperrors.ErrNotFound, rec.InputIdentifier)
	}
	run, err := s.runRepo.GetByID(ctx, nil, prior.RunID)
	if err != nil {
		return nil, err
	}
	if run == nil {
		return nil, apperrors.ErrNotFound
	}

	if err := s.quota.Reserve(ctx, accountID, 1); err != nil {
		return nil, err
	}

	in := types.AnalysisInput{
		Identifier:     rec.InputIdentifier,
		IdentifierType: rec.IdentifierType,
		GroupingKey:    prior.GroupingKey,
		UnitCost:       prior.UnitCost,
		PackSize:       prior.PackSize,
	}
	asin := *rec.ASIN

	result, err := s.analyzeResolved(ctx, run, accountID, in, rec, asin)
	if err != nil {
		if rbErr := s.quota.Release(ctx, accountID, 1); rbErr != nil {
			s.log.Warn("Quota release failed", "account_id", accountID, "error", rbErr)
		}
		return nil, err
	}
	s.log.Info("Item reprocessed after manual resolution",
		"run_id", run.ID,
		"identifier", rec.InputIdentifier,
		"asin", asin,
		"status", result.Status,
	)
	return result, nil
}

func (s *PipelineService) analyzeResolved(ctx context.Context, run *types.AnalysisRun, accountID uuid.UUID, in types.AnalysisInput, rec *types.ResolutionRecord, asin string) (*types.AnalysisResult, error) {
	catalogData, err := s.catalog.Fetch(ctx, []string{asin})
	if err != nil {
		return nil, err
	}
	pricingData, err := s.pricing.Fetch(ctx, []string{asin})
	if err != nil {
		return nil, err
	}

	var snap *types.CatalogSnapshot
	if cd, ok := catalogData[asin]; ok {
		snap = &cd.Snapshot
	}
	rp := ResolveSellPrice(pricingData[asin], snap)

	feeReqs := []FeeRequest{}
	if rp.Price != nil {
		feeReqs = append(feeReqs, FeeRequest{ASIN: asin, Price: *rp.Price})
	}
	feeData, err := s.fees.Fetch(ctx, feeReqs)
	if err != nil {
		return nil, err
	}

	result := s.buildResult(run, accountID, in, rec, catalogData, pricingData, feeData, map[string]ResolvedPrice{asin: rp}, s.defaults)
	if _, err := s.resultRepo.Create(ctx, nil, []*types.AnalysisResult{result}); err != nil {
		return nil, err
	}
	return result, nil
}

// Summary recomputes a run's aggregate counters from its stored row.
func (s *PipelineService) Summary(ctx context.Context, runID uuid.UUID) (*types.AnalysisRun, types.RunSummary, error) {
	run, err := s.runRepo.GetByID(ctx, nil, runID)
	if err != nil {
		return nil, types.RunSummary{}, err
	}
	if run == nil {
		return nil, types.RunSummary{}, apperrors.ErrNotFound
	}
	return run, types.RunSummary{
		Total:        run.Total,
		Succeeded:    run.Succeeded,
		Partial:      run.Partial,
		Failed:       run.Failed,
		Disqualified: run.Disqualified,
		NoPrice:      run.NoPrice,
		Unresolved:   run.Unresolved,
	}, nil
}

// Cancel flags a pending or running run for cancellation. In-flight chunks
// finish; no new chunks are dispatched afterwards.
func (s *PipelineService) Cancel(ctx context.Context, runID uuid.UUID) (bool, error) {
	return s.runRepo.RequestCancel(ctx, nil, runID)
}

// ListRuns returns an account's most recent runs.
func (s *PipelineService) ListRuns(ctx context.Context, accountID uuid.UUID, limit int) ([]*types.AnalysisRun, error) {
	return s.runRepo.ListByAccount(ctx, nil, accountID, limit)
}

// Results returns a run's stored rows, best score first.
func (s *PipelineService) Results(ctx context.Context, runID uuid.UUID) ([]*types.AnalysisResult, error) {
	return s.resultRepo.GetByRunID(ctx, nil, runID)
}

func unresolvedReason(rec *types.ResolutionRecord) string {
	if rec == nil {
		return "identifier not resolved"
	}
	switch rec.Status {
	case types.ResolutionAmbiguous:
		return "identifier matched multiple products, disambiguation required"
	case types.ResolutionNotFound:
		return "identifier not found in catalog"
	default:
		return "identifier resolution failed"
	}
}

func dedupeInputs(inputs []types.AnalysisInput) []types.AnalysisInput {
	out := make([]types.AnalysisInput, 0, len(inputs))
	seen := make(map[string]bool, len(inputs))
	for _, in := range inputs {
		if in.Identifier == "" || seen[in.Identifier] {
			continue
		}
		seen[in.Identifier] = true
		out = append(out, in)
	}
	return out
}
