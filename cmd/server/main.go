package main

import (
	"fmt"
	"log"

	"github.com/shopspring/decimal"

	"taxatlas/internal/address"
	"taxatlas/internal/config"
	"taxatlas/internal/email/noop"
	"taxatlas/internal/email/ses"
	"taxatlas/internal/engine"
	"taxatlas/internal/exemption"
	"taxatlas/internal/handler"
	"taxatlas/internal/learner"
	"taxatlas/internal/lookup"
	"taxatlas/internal/port"
	"taxatlas/internal/rates"
	"taxatlas/internal/repository/postgres"
	"taxatlas/internal/router"
	"taxatlas/internal/service"
	s3storage "taxatlas/internal/storage/s3"
)

// @title           TaxAtlas API
// @version         1.0
// @description     Tax jurisdiction resolution and calculation engine.
// @BasePath        /api/v1
func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := postgres.NewDB(&cfg.DB)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	// Initialize repositories
	jurisdictionRepo := postgres.NewJurisdictionRepo(db)
	rangeRepo := postgres.NewAddressRangeRepo(db)
	patternRepo := postgres.NewPatternRepo(db)
	cacheRepo := postgres.NewQueryCacheRepo(db)
	rateRepo := postgres.NewRateRepo(db)
	exemptionRepo := postgres.NewExemptionRepo(db)
	calcRepo := postgres.NewCalculationRepo(db)

	// Initialize storage
	s3Client, err := s3storage.NewS3Client(&cfg.S3)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}

	// Initialize email sender
	var emailSender port.EmailSender
	if cfg.Email.Provider == "ses" {
		emailSender, err = ses.NewSESSender(cfg.Email.Region, cfg.Email.FromAddress, cfg.Email.FromName)
		if err != nil {
			return fmt.Errorf("failed to initialize SES sender: %w", err)
		}
	} else {
		emailSender = noop.NewNoopSender()
	}

	// Initialize the resolution and calculation pipeline. The external
	// lookup adapter is deployment-provided; without one, the cache
	// degrades to a no-op and resolution stops at learned patterns.
	patternLearner := learner.New(patternRepo, decimal.NewFromFloat(cfg.Resolver.ConfidenceAlpha))
	lookupCache := lookup.New(cacheRepo, externalAdapter(), cfg.Resolver.CacheTTL, cfg.Resolver.MaxInflightLookups)
	resolver := address.NewResolver(rangeRepo, jurisdictionRepo, patternLearner, lookupCache, address.Config{
		MinPatternConfidence: decimal.NewFromFloat(cfg.Resolver.MinPatternConfidence),
		Provider:             cfg.Resolver.LookupProvider,
	})
	catalog := rates.NewCatalog(rateRepo, nil)
	evaluator := exemption.NewEvaluator(exemptionRepo)
	eng := engine.New(resolver, catalog, evaluator, calcRepo, jurisdictionRepo,
		decimal.NewFromFloat(cfg.Resolver.MinPatternConfidence))

	// Initialize services
	calcSvc := service.NewCalculationService(eng, calcRepo, emailSender, cfg.Email.ReviewInbox)
	exemptionSvc := service.NewExemptionService(exemptionRepo, s3Client, cfg.S3.Bucket)

	// Initialize handlers
	calcH := handler.NewCalculationHandler(calcSvc)
	exemptionH := handler.NewExemptionHandler(exemptionSvc)
	rateH := handler.NewRateHandler(catalog, jurisdictionRepo)
	healthH := handler.NewHealthHandler(db)

	// Setup router
	r := router.Setup(cfg.CORS.AllowedOrigins, calcH, exemptionH, rateH, healthH)

	log.Printf("Server starting on %s", cfg.Server.Port)
	if err := r.Run(cfg.Server.Port); err != nil {
		return fmt.Errorf("server failed: %w", err)
	}

	return nil
}

// externalAdapter returns the external jurisdiction lookup adapter.
// Providers are wired per deployment; the default build carries none.
func externalAdapter() port.ExternalLookup {
	return nil
}
