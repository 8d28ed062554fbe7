package main

import (
	"fmt"
	"os"

	"github.com/ls5986/habexa-backend/internal/app"
	"github.com/ls5986/habexa-backend/internal/clients/keepa"
	rediscl "github.com/ls5986/habexa-backend/internal/clients/redis"
	"github.com/ls5986/habexa-backend/internal/clients/spapi"
	repos "github.com/ls5986/habexa-backend/internal/data/repos/analysis"
	"github.com/ls5986/habexa-backend/internal/db"
	httpapi "github.com/ls5986/habexa-backend/internal/http"
	httpH "github.com/ls5986/habexa-backend/internal/http/handlers"
	"github.com/ls5986/habexa-backend/internal/platform/logger"
	"github.com/ls5986/habexa-backend/internal/ratelimit"
	"github.com/ls5986/habexa-backend/internal/services"
	"github.com/ls5986/habexa-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Config
	log.Info("Loading configuration...")
	cfg := app.LoadConfig(log)
	listenAddr := utils.GetEnv("LISTEN_ADDR", ":8080", log)
	quotaLimit := utils.GetEnvAsInt("MONTHLY_QUOTA_LIMIT", 10000, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Redis-backed store; in-memory fallback for local development.
	var store rediscl.Store
	if os.Getenv("REDIS_ADDR") != "" {
		store, err = rediscl.NewStore(log)
		if err != nil {
			log.Fatal("Redis init failed", "error", err)
		}
	} else {
		log.Warn("REDIS_ADDR not set, using in-memory store")
		store = rediscl.NewMemoryStore()
	}
	defer store.Close()

	// Repos
	log.Info("Setting up Repos from main...")
	resolutionRepo := repos.NewResolutionRepo(thePG, log)
	runRepo := repos.NewAnalysisRunRepo(thePG, log)
	resultRepo := repos.NewAnalysisResultRepo(thePG, log)

	// Provider clients
	log.Info("Setting up provider clients from main...")
	spapiClient, err := spapi.NewClient(log)
	if err != nil {
		log.Fatal("SP-API client init failed", "error", err)
	}
	keepaClient, err := keepa.NewClient(log)
	if err != nil {
		log.Fatal("Keepa client init failed", "error", err)
	}

	// Per-endpoint rate limiters
	limiters := ratelimit.NewRegistry(log)
	searchLimiter := limiters.Get("spapi", "search", cfg.SearchRPS, cfg.SearchBurst, cfg.MaxInFlight, cfg.MaxQueueDepth)
	pricingLimiter := limiters.Get("spapi", "pricing", cfg.PricingRPS, cfg.PricingBurst, cfg.MaxInFlight, cfg.MaxQueueDepth)
	feesLimiter := limiters.Get("spapi", "fees", cfg.FeesRPS, cfg.FeesBurst, cfg.MaxInFlight, cfg.MaxQueueDepth)
	catalogLimiter := limiters.Get("keepa", "product", cfg.CatalogRPS, cfg.CatalogBurst, cfg.MaxInFlight, cfg.MaxQueueDepth)

	// Services
	log.Info("Setting up Services from main...")
	resolverService := services.NewResolverService(log, spapiClient, store, resolutionRepo, searchLimiter, cfg.SearchBatchLimit)
	catalogService := services.NewCatalogService(log, keepaClient, store, catalogLimiter, cfg.CatalogBatchLimit, cfg.CatalogTTL)
	pricingService := services.NewPricingService(log, spapiClient, pricingLimiter, cfg.PricingBatchLimit)
	feeService := services.NewFeeService(log, spapiClient, store, feesLimiter, cfg.FeeTTL)
	scorer := services.NewScorer(log, cfg.Weights)
	quotaService := services.NewQuotaService(log, store, int64(quotaLimit), nil)
	diagnosticsService := services.NewDiagnosticsService(log, store)
	pipelineService := services.NewPipelineService(
		log,
		resolverService,
		catalogService,
		pricingService,
		feeService,
		scorer,
		quotaService,
		runRepo,
		resultRepo,
		cfg.WorkerPoolSize,
		cfg.Defaults,
	)

	// HTTP
	log.Info("Setting up HTTP server from main...")
	server := httpapi.NewServer(httpapi.RouterConfig{
		Log:               log,
		AnalysisHandler:   httpH.NewAnalysisHandler(log, pipelineService, quotaService),
		ResolutionHandler: httpH.NewResolutionHandler(resolverService, pipelineService),
		CacheHandler:      httpH.NewCacheHandler(diagnosticsService),
		HealthHandler:     httpH.NewHealthHandler(),
	})

	log.Info("Starting server", "addr", listenAddr)
	if err := server.Run(listenAddr); err != nil {
		log.Fatal("Server exited", "error", err)
	}
}
