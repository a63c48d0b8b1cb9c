package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tradebridge-io/tradebridge-backend/internal/cron"
	"github.com/tradebridge-io/tradebridge-backend/internal/orders"
	"github.com/tradebridge-io/tradebridge-backend/pkg/config"
	"github.com/tradebridge-io/tradebridge-backend/pkg/db"
	"github.com/tradebridge-io/tradebridge-backend/pkg/logger"
	"github.com/tradebridge-io/tradebridge-backend/pkg/metrics"
	"github.com/tradebridge-io/tradebridge-backend/pkg/migrate"
	"github.com/tradebridge-io/tradebridge-backend/pkg/outbox"
	"github.com/tradebridge-io/tradebridge-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
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

	outboxService := outbox.NewService(outbox.NewRepository(dbClient.DB()), logg)
	ordersRepo := orders.NewRepository(dbClient)

	metricsCollector := metrics.NewCronJobMetrics(prometheus.DefaultRegisterer)

	registry := cron.NewRegistry(
		cron.NewAssignmentExpiryJob(dbClient, ordersRepo, outboxService, metricsCollector, logg),
	)

	lockFor := func(jobName string) *cron.RedisLock {
		// lock TTL matches the tick interval so a crashed worker frees up
		// by the next run
		return cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+jobName), cfg.Cron.Interval)
	}

	service := cron.NewService(registry, cfg.Cron.Interval, lockFor, metricsCollector, logg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}
