package app

import (
	"time"

	"github.com/ls5986/habexa-backend/internal/domain/analysis"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/utils"
)

// Config carries every tunable the pipeline reads. Batch limits come from the
// providers and should not be raised past what they accept per request.
type Config struct {
	SearchBatchLimit  int
	PricingBatchLimit int
	CatalogBatchLimit int

	CatalogTTL time.Duration
	FeeTTL     time.Duration

	SearchRPS      float64
	SearchBurst    int
	PricingRPS     float64
	PricingBurst   int
	FeesRPS        float64
	FeesBurst      int
	CatalogRPS     float64
	CatalogBurst   int
	MaxInFlight    int
	MaxQueueDepth  int
	WorkerPoolSize int

	ProviderMaxRetries int

	Weights  analysis.ScoreWeights
	Defaults analysis.AccountThresholds
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		SearchBatchLimit:  utils.GetEnvAsInt("SEARCH_BATCH_LIMIT", 20, log),
		PricingBatchLimit: utils.GetEnvAsInt("PRICING_BATCH_LIMIT", 20, log),
		CatalogBatchLimit: utils.GetEnvAsInt("CATALOG_BATCH_LIMIT", 100, log),

		CatalogTTL: time.Duration(utils.GetEnvAsInt("CATALOG_TTL_HOURS", 24, log)) * time.Hour,
		FeeTTL:     time.Duration(utils.GetEnvAsInt("FEE_TTL_DAYS", 7, log)) * 24 * time.Hour,

		SearchRPS:      utils.GetEnvAsFloat("SEARCH_RPS", 2, log),
		SearchBurst:    utils.GetEnvAsInt("SEARCH_BURST", 2, log),
		PricingRPS:     utils.GetEnvAsFloat("PRICING_RPS", 0.5, log),
		PricingBurst:   utils.GetEnvAsInt("PRICING_BURST", 1, log),
		FeesRPS:        utils.GetEnvAsFloat("FEES_RPS", 1, log),
		FeesBurst:      utils.GetEnvAsInt("FEES_BURST", 2, log),
		CatalogRPS:     utils.GetEnvAsFloat("CATALOG_RPS", 1, log),
		CatalogBurst:   utils.GetEnvAsInt("CATALOG_BURST", 5, log),
		MaxInFlight:    utils.GetEnvAsInt("PROVIDER_MAX_IN_FLIGHT", 4, log),
		MaxQueueDepth:  utils.GetEnvAsInt("PROVIDER_MAX_QUEUE_DEPTH", 256, log),
		WorkerPoolSize: utils.GetEnvAsInt("PIPELINE_WORKERS", 4, log),

		ProviderMaxRetries: utils.GetEnvAsInt("PROVIDER_MAX_RETRIES", 3, log),

		Weights: analysis.ScoreWeights{
			Profitability: utils.GetEnvAsFloat("SCORE_WEIGHT_PROFITABILITY", 0.30, log),
			Velocity:      utils.GetEnvAsFloat("SCORE_WEIGHT_VELOCITY", 0.25, log),
			Competition:   utils.GetEnvAsFloat("SCORE_WEIGHT_COMPETITION", 0.15, log),
			Risk:          utils.GetEnvAsFloat("SCORE_WEIGHT_RISK", 0.15, log),
			Opportunity:   utils.GetEnvAsFloat("SCORE_WEIGHT_OPPORTUNITY", 0.15, log),
		},
		Defaults: analysis.AccountThresholds{
			MinROI:        utils.GetEnvAsFloat("DEFAULT_MIN_ROI", 20, log),
			MaxSellers:    utils.GetEnvAsInt("DEFAULT_MAX_SELLERS", 20, log),
			HazmatAllowed: false,
		},
	}
}
