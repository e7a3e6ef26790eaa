package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	_ "github.com/joho/godotenv/autoload"

	"assisted-venue-dedup/internal/admin"
	"assisted-venue-dedup/internal/auth"
	"assisted-venue-dedup/internal/constants"
	"assisted-venue-dedup/internal/dedup"
	"assisted-venue-dedup/internal/domain"
	"assisted-venue-dedup/internal/exclusion"
	"assisted-venue-dedup/internal/geocode"
	"assisted-venue-dedup/internal/infrastructure/repository"
	"assisted-venue-dedup/internal/merge"
	"assisted-venue-dedup/internal/review"
	"assisted-venue-dedup/internal/spatial"
	"assisted-venue-dedup/pkg/config"
	"assisted-venue-dedup/pkg/container"
	"assisted-venue-dedup/pkg/database"
	"assisted-venue-dedup/pkg/events"
	"assisted-venue-dedup/pkg/health"
	"assisted-venue-dedup/pkg/logging"
	"assisted-venue-dedup/pkg/metrics"
)

func main() {
	// Build container and register providers
	c := container.New()

	// Config and logger (singletons)
	_ = c.Provide(func() *config.Config { return config.Load() }, true)
	_ = c.Provide(func(cfg *config.Config) (*logging.Logger, error) {
		return logging.NewLogger(logging.LogConfig{Level: logging.ParseLevel(cfg.LogLevel), Format: cfg.LogFormat, Output: cfg.LogOutput})
	}, true)

	// Database (singleton)
	_ = c.Provide(func(cfg *config.Config) (*database.DB, error) { return database.NewWithConfig(cfg.DatabaseURL, cfg) }, true)

	// Repository and UoW factory (singletons)
	_ = c.Provide(func(db *database.DB) domain.Repository { return repository.NewSQLRepository(db) }, true)
	_ = c.Provide(func(db *database.DB) domain.UnitOfWorkFactory { return repository.NewSQLUnitOfWorkFactory(db) }, true)

	// Event store (singleton)
	_ = c.Provide(func(db *database.DB) events.EventStore { return events.NewSQLEventStore(db) }, true)

	// Spatial provider (singleton)
	_ = c.Provide(func(db *database.DB) spatial.Provider { return spatial.NewSQLProvider(db) }, true)

	// Dedup service (singleton)
	_ = c.Provide(func(repo domain.Repository, sp spatial.Provider, es events.EventStore, lg *logging.Logger, cfg *config.Config) *dedup.Service {
		return dedup.NewService(repo, sp, es, lg, dedup.Config{
			MaxDistanceM:     cfg.DedupMaxDistanceM,
			DefaultMinSim:    cfg.DedupDefaultMinSim,
			RowLimit:         cfg.DedupRowLimit,
			CandidateRadiusM: cfg.CandidateRadiusM,
			CandidateLimit:   cfg.CandidateLimitDefault,
		})
	}, true)

	// Exclusion registry and merge engine (singletons)
	_ = c.Provide(func(repo domain.Repository, es events.EventStore, lg *logging.Logger) *exclusion.Registry {
		return exclusion.NewRegistry(repo, es, lg)
	}, true)
	_ = c.Provide(func(uow domain.UnitOfWorkFactory, es events.EventStore, lg *logging.Logger) *merge.Engine {
		return merge.NewEngine(uow, es, lg)
	}, true)

	// Resolve config and logger early
	var (
		cfg    *config.Config
		logger *logging.Logger
	)
	c.MustResolve(&cfg)
	c.MustResolve(&logger)
	mainLog := logger.WithComponent("main")
	mainLog.Info("starting venue dedup service", logging.String("env", cfg.Env))

	// Resolve runtime dependencies
	var (
		db       *database.DB
		repo     domain.Repository
		store    events.EventStore
		dedupSvc *dedup.Service
		registry *exclusion.Registry
		mergeEng *merge.Engine
	)
	for _, target := range []interface{}{&db, &repo, &store, &dedupSvc, &registry, &mergeEng} {
		c.MustResolve(target)
	}

	// Optional providers degrade to absent rather than failing startup.
	var reviewer *review.PairReviewer
	if cfg.OpenAIAPIKey != "" {
		reviewer = review.NewPairReviewer(cfg.OpenAIAPIKey, cfg.OpenAIModel, cfg.OpenAITimeout, logger)
	} else {
		mainLog.Warn("OPENAI_API_KEY not set, pair review endpoint disabled")
	}

	var backfiller *geocode.Backfiller
	if cfg.GoogleMapsAPIKey != "" {
		geocoder, err := geocode.NewGoogleGeocoder(cfg.GoogleMapsAPIKey, cfg.GeocodeRatePerSecond, logger)
		if err != nil {
			mainLog.Error("google geocoder init failed", err)
		} else {
			backfiller = geocode.NewBackfiller(repo, geocoder, logger)
		}
	} else {
		mainLog.Warn("GOOGLE_MAPS_API_KEY not set, locality backfill endpoint disabled")
	}

	// Health checks
	healthMgr := health.NewManager()
	healthMgr.Register(&health.DBChecker{DB: db.Conn()})

	// Admin resolver for IP-based authentication on mutating routes
	adminResolver := auth.NewAdminResolver(cfg.AdminsYAMLPath, logger)
	adminAuthMiddleware := auth.NewAdminAuthMiddleware(adminResolver)

	// HTTP routing
	router := mux.NewRouter()
	router.Use(admin.RequestMiddleware(logger))

	router.Handle("/health", healthMgr.Handler()).Methods("GET")
	if cfg.MetricsEnabled {
		router.Handle(cfg.MetricsPath, metrics.Default.Handler()).Methods("GET")
	}

	// Read-only duplicate surfaces
	router.HandleFunc("/api/duplicates", admin.DuplicatePairsHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/duplicate-groups", admin.DuplicateGroupsHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/duplicate-report", admin.CityReportHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/duplicate-counts", admin.DuplicateCountsHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/venues/{id}/duplicate-count", admin.DuplicateCountHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/venues/{id}/candidates", admin.CandidatesHandler(dedupSvc)).Methods("GET")
	router.HandleFunc("/api/venues/{id}/exclusions", admin.ExcludedPartnersHandler(registry)).Methods("GET")
	router.HandleFunc("/api/venues/{id}/merge-audits", admin.MergeAuditsByVenueHandler(repo)).Methods("GET")
	router.HandleFunc("/api/venues/{id}/events", admin.VenueEventsHandler(store)).Methods("GET")
	router.HandleFunc("/api/merge-audits", admin.MergeAuditsHandler(repo)).Methods("GET")

	// Mutating routes require a resolvable admin
	authed := router.PathPrefix("/api").Subrouter()
	authed.Use(adminAuthMiddleware.Handler)
	authed.HandleFunc("/exclusions", admin.ExcludeHandler(registry)).Methods("POST")
	authed.HandleFunc("/exclusions/{id1}/{id2}", admin.RemoveExclusionHandler(registry)).Methods("DELETE")
	authed.HandleFunc("/merges", admin.MergeHandler(mergeEng)).Methods("POST")
	authed.HandleFunc("/venues/{id}/backfill-locality", admin.BackfillLocalityHandler(backfiller)).Methods("POST")
	authed.HandleFunc("/review", admin.ReviewPairHandler(reviewer, repo)).Methods("POST")

	server := &http.Server{Addr: ":" + cfg.Port, Handler: router}

	// Graceful shutdown context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		mainLog.Info("received shutdown signal, initiating graceful shutdown")
		cancel()
	}()

	go func() {
		mainLog.Info("server starting", logging.String("port", cfg.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error:", err)
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), constants.GracefulShutdownTimeoutDefault)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		mainLog.Error("HTTP server shutdown error", err)
	}
	if err := db.Close(); err != nil {
		mainLog.Error("database close error", err)
	}
	mainLog.Info("shutdown complete")
}
