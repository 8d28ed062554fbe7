package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ls5986/habexa-backend/internal/http/response"
	"github.com/ls5986/habexa-backend/internal/services"
)

type CacheHandler struct {
	diagnostics *services.DiagnosticsService
}

func NewCacheHandler(diagnostics *services.DiagnosticsService) *CacheHandler {
	return &CacheHandler{diagnostics: diagnostics}
}

// GET /api/cache/:asin?price=19.99&price=24.99&upc=...&ean=...
func (h *CacheHandler) Inspect(c *gin.Context) {
	asin := c.Param("asin")

	var prices []float64
	for _, raw := range c.QueryArray("price") {
		p, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_price", err)
			return
		}
		prices = append(prices, p)
	}

	identifiers := map[string]string{}
	if upc := c.Query("upc"); upc != "" {
		identifiers["upc"] = upc
	}
	if ean := c.Query("ean"); ean != "" {
		identifiers["ean"] = ean
	}

	diag, err := h.diagnostics.Inspect(c.Request.Context(), asin, prices, identifiers)
	if err != nil {
		response.RespondError(c, http.StatusInternalServerError, "cache_inspect_failed", err)
		return
	}
	response.RespondOK(c, diag)
}
