package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"pulpe/internal/config"
	"pulpe/internal/database"
	"pulpe/internal/logger"
	"pulpe/internal/scheduler"
	"pulpe/internal/services"
)

// The worker keeps every user's cached ending balances in step with their
// periods by refreshing the rollover chains on a cron schedule.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Env, cfg.LogLevel)
	defer logger.Sync()

	if err := run(cfg, os.Args[1:]); err != nil {
		logger.Get().Fatalf("Worker error: %v", err)
	}
}

func run(cfg *config.Config, args []string) error {
	log := logger.Named("worker")

	dbManager, err := database.NewManager(database.NewConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to create database manager: %w", err)
	}
	defer func() {
		if err := dbManager.Close(); err != nil {
			log.Warnf("database close error: %v", err)
		}
	}()

	db := dbManager.DB()
	refresher := scheduler.NewRefresher(
		services.NewUserService(db),
		services.NewBudgetPeriodService(db),
		cfg.RefreshWorkers,
		logger.Named("refresher"),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// "once" refreshes every chain a single time and exits.
	if len(args) > 0 && args[0] == "once" {
		report, err := refresher.RunNow(ctx)
		if err != nil {
			return err
		}
		log.Infow("Refresh finished", "users", report.Users, "periods", report.Periods, "failed", report.Failed, "duration", report.Duration)
		return nil
	}

	if err := refresher.Schedule(ctx, cfg.RefreshCron); err != nil {
		return err
	}
	refresher.Start()
	log.Infow("Worker started", "cron", cfg.RefreshCron, "workers", cfg.RefreshWorkers)

	<-ctx.Done()
	log.Info("Shutting down worker...")
	refresher.Stop()
	return nil
}
