package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ls5986/habexa-backend/internal/http/response"
	apperrors "github.com/ls5986/habexa-backend/internal/pkg/errors"
	"github.com/ls5986/habexa-backend/internal/services"
)

type ResolutionHandler struct {
	resolver *services.ResolverService
	pipeline *services.PipelineService
}

func NewResolutionHandler(resolver *services.ResolverService, pipeline *services.PipelineService) *ResolutionHandler {
	return &ResolutionHandler{resolver: resolver, pipeline: pipeline}
}

type disambiguateRequest struct {
	AccountID      uuid.UUID `json:"account_id" binding:"required"`
	IdentifierType string    `json:"identifier_type" binding:"required"`
	Identifier     string    `json:"identifier" binding:"required"`
	ASIN           string    `json:"asin" binding:"required"`
}

// POST /api/resolutions/disambiguate
func (h *ResolutionHandler) Disambiguate(c *gin.Context) {
	var req disambiguateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	rec, err := h.resolver.Disambiguate(c.Request.Context(), req.AccountID, req.IdentifierType, req.Identifier, req.ASIN)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondError(c, http.StatusNotFound, "resolution_not_found", err)
			return
		}
		response.RespondError(c, http.StatusBadRequest, "disambiguate_failed", err)
		return
	}

	// The item re-enters the pipeline at the post-resolution stage, producing
	// a fresh result row on its most recent run. An identifier without any
	// prior analysis has nothing to reprocess.
	result, err := h.pipeline.ReprocessItem(c.Request.Context(), req.AccountID, rec)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			response.RespondOK(c, gin.H{"resolution": rec})
			return
		}
		if errors.Is(err, apperrors.ErrQuotaExceeded) {
			response.RespondError(c, http.StatusTooManyRequests, "quota_exceeded", err)
			return
		}
		response.RespondError(c, http.StatusBadGateway, "reprocess_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"resolution": rec, "result": result})
}

// POST /api/resolutions/manual
func (h *ResolutionHandler) RegisterManual(c *gin.Context) {
	var req disambiguateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}

	rec, err := h.resolver.RegisterManual(c.Request.Context(), req.AccountID, req.IdentifierType, req.Identifier, req.ASIN)
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "register_manual_failed", err)
		return
	}
	response.RespondOK(c, gin.H{"resolution": rec})
}
