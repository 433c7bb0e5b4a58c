package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/inkpress-cms/mediakeeper/internal/assets"
	"github.com/inkpress-cms/mediakeeper/internal/cleanup"
	"github.com/inkpress-cms/mediakeeper/internal/content"
	"github.com/inkpress-cms/mediakeeper/internal/events"
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
	"github.com/inkpress-cms/mediakeeper/pkg/pubsub"
	"github.com/inkpress-cms/mediakeeper/pkg/redis"
	"github.com/inkpress-cms/mediakeeper/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cleanup-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cleanup-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cleanup-worker",
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

	assetRepo := assets.NewRepository(dbClient.DB())
	referenceRepo := tracker.NewRepository(dbClient.DB())
	contentRepo := content.NewRepository(dbClient.DB())
	operationRepo := cleanup.NewRepository(dbClient.DB())
	scheduleRepo := scheduler.NewRepository(dbClient.DB())

	cache, err := querycache.NewManager(querycache.Params{
		Store:  redisClient,
		Config: cfg.Cache,
		Logger: logg,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create query cache", err)
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
		Metrics:    metrics.NewCleanupMetrics(prometheus.DefaultRegisterer),
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

	worker, err := scheduler.NewWorker(scheduler.WorkerParams{
		Scheduler:    schedulerService,
		Locks:        redisClient,
		Logger:       logg,
		Metrics:      metrics.NewSchedulerMetrics(prometheus.DefaultRegisterer),
		PollInterval: cfg.Scheduler.PollInterval,
		LockTTL:      cfg.Scheduler.LockTTL,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create scheduler worker", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cleanup worker")

	if cfg.PubSub.StorageEventsSubscription != "" {
		pubsubClient, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap pubsub", err)
			os.Exit(1)
		}
		defer pubsubClient.Close()

		deletionConsumer, err := events.NewDeletionConsumer(
			assetRepo,
			referenceRepo,
			dbClient,
			cache,
			pubsubClient.StorageEventsSubscription(),
			logg,
		)
		if err != nil {
			logg.Error(ctx, "failed to create deletion consumer", err)
			os.Exit(1)
		}

		go func() {
			if err := deletionConsumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "deletion consumer stopped unexpectedly", err)
			}
		}()
	} else {
		logg.Warn(ctx, "storage events subscription not configured, skipping deletion consumer")
	}

	worker.Run(ctx)

	logg.Info(ctx, "cleanup worker shutting down gracefully")
}
