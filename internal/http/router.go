package http

import (
	"github.com/gin-gonic/gin"

	httpH "github.com/ls5986/habexa-backend/internal/http/handlers"
	httpMW "github.com/ls5986/habexa-backend/internal/http/middleware"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AnalysisHandler   *httpH.AnalysisHandler
	ResolutionHandler *httpH.ResolutionHandler
	CacheHandler      *httpH.CacheHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.CORS())

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Analysis runs
		if cfg.AnalysisHandler != nil {
			api.POST("/runs", cfg.AnalysisHandler.StartRun)
			api.GET("/runs", cfg.AnalysisHandler.ListRuns)
			api.GET("/runs/:id", cfg.AnalysisHandler.GetRun)
			api.GET("/runs/:id/results", cfg.AnalysisHandler.GetRunResults)
			api.POST("/runs/:id/cancel", cfg.AnalysisHandler.CancelRun)
			api.GET("/quota", cfg.AnalysisHandler.GetQuota)
		}

		// Identifier resolution
		if cfg.ResolutionHandler != nil {
			api.POST("/resolutions/disambiguate", cfg.ResolutionHandler.Disambiguate)
			api.POST("/resolutions/manual", cfg.ResolutionHandler.RegisterManual)
		}

		// Cache diagnostics
		if cfg.CacheHandler != nil {
			api.GET("/cache/:asin", cfg.CacheHandler.Inspect)
		}
	}

	return r
}
