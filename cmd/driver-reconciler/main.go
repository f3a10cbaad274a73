package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	bookingrepo "movez/internal/bookings/repository"
	driverrepo "movez/internal/drivers/repository"
	"movez/internal/reconciler"
	"movez/pkg/config"
	"movez/pkg/events"
)

const JobName = "driver-reconciler"

func main() {
	cfg := config.Load(JobName)
	cfg.SetMongo()
	leased := cfg.SetRedis()
	defer cfg.GracefulShutdown()

	publisher, closePublisher, err := events.Connect(cfg, JobName)
	if err != nil {
		cfg.Log.Fatal("Failed to set up event publishing", "error", err)
	}
	defer closePublisher()

	var lease reconciler.Lease
	if leased {
		lease = reconciler.NewRedisLease(cfg.Client.Redis, reconciler.DefaultLeaseKey, cfg.ReconcileLeaseTTL)
	} else {
		cfg.Log.Warn("REDIS_URL not set; every replica sweeps on each tick")
	}

	job := reconciler.NewJob(
		driverrepo.NewMongoDriverRepository(cfg),
		bookingrepo.NewMongoBookingRepository(cfg),
		lease,
		publisher,
		cfg,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := job.Start(ctx); err != nil {
		cfg.Log.Fatal("Failed to start reconciler", "error", err)
	}

	<-ctx.Done()
	cfg.Log.Info("Shutdown signal received")
	job.Stop()
}
