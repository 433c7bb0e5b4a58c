package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkpress-cms/mediakeeper/api/controllers"
	"github.com/inkpress-cms/mediakeeper/api/routes"
	"github.com/inkpress-cms/mediakeeper/internal/assets"
	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/internal/content"
	"github.com/inkpress-cms/mediakeeper/internal/gate"
	"github.com/inkpress-cms/mediakeeper/internal/monitor"
	"github.com/inkpress-cms/mediakeeper/internal/querycache"
	"github.com/inkpress-cms/mediakeeper/internal/scheduler"
	"github.com/inkpress-cms/mediakeeper/internal/tracker"
	"github.com/inkpress-cms/mediakeeper/internal/verifier"
	"github.com/inkpress-cms/mediakeeper/pkg/config"
	"github.com/inkpress-cms/mediakeeper/pkg/db"
	"github.com/inkpress-cms/mediakeeper/pkg/logger"
	"github.com/inkpress-cms/mediakeeper/pkg/metrics"
	"github.com/inkpress-cms/mediakeeper/pkg/migrate"
	"github.com/inkpress-cms/mediakeeper/pkg/redis"
	"github.com/inkpress-cms/mediakeeper/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	storageClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap gcs", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	cleanupMetrics := metrics.NewCleanupMetrics(registry)

	assetRepo := assets.NewRepository(dbClient.DB())
	referenceRepo := tracker.NewRepository(dbClient.DB())
	contentRepo := content.NewRepository(dbClient.DB())
	operationRepo := cleanup.NewRepository(dbClient.DB())
	scheduleRepo := scheduler.NewRepository(dbClient.DB())
	auditRepo := gate.NewRepository(dbClient.DB())

	cache, err := querycache.NewManager(querycache.Params{
		Store:  redisClient,
		Config: cfg.Cache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create query cache", err)
		os.Exit(1)
	}

	assetService, err := assets.NewService(assets.Params{
		Repo:       assetRepo,
		References: referenceRepo,
		Storage:    storageClient,
		Cache:      cache,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create asset service", err)
		os.Exit(1)
	}

	trackerService, err := tracker.NewService(tracker.Params{
		DB:         dbClient,
		References: referenceRepo,
		Assets:     assetRepo,
		Cache:      cache,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create reference tracker", err)
		os.Exit(1)
	}

	verifierService, err := verifier.NewService(verifier.Params{
		Assets:            assetRepo,
		References:        referenceRepo,
		Storage:           storageClient,
		Content:           contentRepo,
		Logger:            logg,
		RecentUploadGrace: cfg.Cleanup.RecentUploadGrace,
		ContentScanBlocks: cfg.FeatureFlags.BlockingContentScan,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create orphan verifier", err)
		os.Exit(1)
	}

	monitorService, err := monitor.NewService(monitor.Params{
		Assets:     assetRepo,
		Operations: operationRepo,
		Schedules:  scheduleRepo,
		Thresholds: cfg.Alerts,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create monitor", err)
		os.Exit(1)
	}

	executor, err := cleanup.NewExecutor(cleanup.Params{
		Verifier:   verifierService,
		Assets:     assetRepo,
		Storage:    storageClient,
		Operations: operationRepo,
		Observer:   monitorService,
		Cache:      cache,
		Metrics:    cleanupMetrics,
		Logger:     logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cleanup executor", err)
		os.Exit(1)
	}

	schedulerService, err := scheduler.NewService(scheduler.Params{
		Repo:         scheduleRepo,
		Assets:       assetRepo,
		Executor:     executor,
		Logger:       logg,
		MaxBatchSize: cfg.Cleanup.MaxBatchSize,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler service", err)
		os.Exit(1)
	}

	gateService, err := gate.NewService(gate.Params{
		Limiter: redisClient,
		Audits:  auditRepo,
		Limits:  cfg.RateLimit,
		Logger:  logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create access gate", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	id := os.Getenv("DYNO")
	if id == "" {
		id = "local"
	}
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": id,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config: cfg,
			Logger: logg,
			Pingers: map[string]controllers.Pinger{
				"db":    dbClient,
				"redis": redisClient,
				"gcs":   storageClient,
			},
			Gate:       gateService,
			Audits:     auditRepo,
			Assets:     assetService,
			Tracker:    trackerService,
			Verifier:   verifierService,
			Executor:   executor,
			Operations: operationRepo,
			Monitor:    monitorService,
			Scheduler:  schedulerService,
			Registry:   registry,
		}),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
