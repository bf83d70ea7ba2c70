// Command boost-sweeper runs a single boost expiry pass and exits. It is meant
// for external schedulers; the API runs the same job on its own ticker.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"marketplace/internal/cron"
	"marketplace/internal/repositories"
	"marketplace/pkg/config"
	"marketplace/pkg/db"
	"marketplace/pkg/logger"
	"marketplace/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "boost-sweeper"})

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	logg = logger.New(logger.Options{
		ServiceName: "boost-sweeper",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(ctx, "boost sweep failed", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, logg *logger.Logger) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	var lock cron.Lock = cron.NewLocalLock()
	if cfg.Redis.URL != "" {
		redisClient, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		if lock, err = cron.NewRedisLock(redisClient, redisClient.LockKey("boost-expiry"), cfg.Sweeper.LockTTL); err != nil {
			return err
		}
	}

	job, err := cron.NewBoostExpiryJob(cron.BoostExpiryJobParams{
		Logger:    logg,
		Products:  repositories.NewGORMProductRepository(dbClient.DB()),
		BatchSize: cfg.Sweeper.BatchSize,
	})
	if err != nil {
		return err
	}
	sweeper, err := cron.NewSweeper(cron.SweeperConfig{Jobs: []cron.Job{job}, Lock: lock, Logger: logg})
	if err != nil {
		return err
	}
	ran, err := sweeper.Sweep(ctx)
	if !ran && err == nil {
		logg.Info(ctx, "another sweeper holds the lock; nothing to do")
	}
	return err
}
