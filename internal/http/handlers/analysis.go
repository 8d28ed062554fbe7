package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	types "github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/http/response"
	apperrors "github.com/ls5986/habexa-backend/internal/pkg/errors"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/services"
)

type AnalysisHandler struct {
	log      *logger.Logger
	pipeline *services.PipelineService
	quota    services.QuotaService
}

func NewAnalysisHandler(baseLog *logger.Logger, pipeline *services.PipelineService, quota services.QuotaService) *AnalysisHandler {
	return &AnalysisHandler{
		log:      baseLog.With("handler", "AnalysisHandler"),
		pipeline: pipeline,
		quota:    quota,
	}
}

type startRunRequest struct {
	AccountID  uuid.UUID                `json:"account_id" binding:"required"`
	Items      []types.AnalysisInput    `json:"items" binding:"required"`
	Thresholds *types.AccountThresholds `json:"thresholds,omitempty"`
}

// POST /api/runs
func (h *AnalysisHandler) StartRun(c *gin.Context) {
	var req startRunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	runReq := services.RunRequest{
		AccountID:  req.AccountID,
		Inputs:     req.Items,
		Thresholds: req.Thresholds,
	}
	run, err := h.pipeline.StartRun(c.Request.Context(), runReq)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrQuotaExceeded):
			response.RespondError(c, http.StatusTooManyRequests, "quota_exceeded", err)
		case errors.Is(err, apperrors.ErrInvalidArgument):
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		default:
			response.RespondError(c, http.StatusInternalServerError, "start_run_failed", err)
		}
		return
	}

	// The run executes detached from the request; callers poll by run id.
	go func() {
		if err := h.pipeline.Execute(context.Background(), run, runReq); err != nil {
			h.log.Error("Background run execution failed", "run_id", run.ID, "error", err)
		}
	}()

	response.RespondAccepted(c, gin.H{"run": run})
}

// GET /api/runs?account_id=&limit=
func (h *AnalysisHandler) ListRuns(c *gin.Context) {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_account_id", err)
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	runs, err := h.pipeline.ListRuns(c.Request.Context(), accountID, limit)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "list_runs_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}

// GET /api/runs/:id
func (h *AnalysisHandler) GetRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	run, summary, err := h.pipeline.Summary(c.Request.Context(), runID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "run_not_found", err)
			return
		}
		response.RespondError(c, http.StatusInternalServerError, "get_run_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"run": run, "summary": summary})
}

// GET /api/runs/:id/results
func (h *AnalysisHandler) GetRunResults(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	results, err := h.pipeline.Results(c.Request.Context(), runID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_results_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"results": results})
}

// POST /api/runs/:id/cancel
func (h *AnalysisHandler) CancelRun(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_run_id", err)
		return
	}
	ok, err := h.pipeline.Cancel(c.Request.Context(), runID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cancel_run_failed", err)
		return
	}
	if !ok {
		response.RespondError(c, http.StatusConflict, "run_not_cancellable", errors.New("run is not pending or running"))
		return
	}
	response.RespondOK(c, gin.H{"cancelled": true})
}

// GET /api/quota?account_id=
func (h *AnalysisHandler) GetQuota(c *gin.Context) {
	accountID, err := uuid.Parse(c.Query("account_id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_account_id", err)
		return
	}
	used, limit, err := h.quota.Usage(c.Request.Context(), accountID)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "get_quota_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"used": used, "limit": limit})
}
