package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/tablestars-backend/internal/cron"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/instance"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
	"github.com/angelmondragon/tablestars-backend/pkg/migrate"
	"github.com/angelmondragon/tablestars-backend/pkg/redis"
)

const serviceName = "cron-worker"

func main() {
	once := flag.Bool("once", false, "run a single sweep and exit")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		logger.New(logger.Options{ServiceName: serviceName}).Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceName

	logg := logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
		"schedule":    cfg.Cron.Schedule,
	})

	if err := run(ctx, cfg, logg, *once); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker shutting down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer redisClient.Close()

	lock, err := cron.NewRedisLock(redisClient, cron.SweepLockName(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		return err
	}
	sweep, err := cron.NewSubscriptionSweep(cron.SweepParams{
		DB:      dbClient,
		Lock:    lock,
		Logger:  logg,
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Config:  cfg.Cron,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running a single subscription sweep")
		return sweep.RunOnce(ctx)
	}
	logg.Info(ctx, "starting cron worker")
	return sweep.Run(ctx)
}
