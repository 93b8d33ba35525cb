package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	directoryrepo "urgent_dispatch_backend/internal/directory/repository"
	directoryservice "urgent_dispatch_backend/internal/directory/service"
	dispatchrepo "urgent_dispatch_backend/internal/dispatch/repository"
	dispatchservice "urgent_dispatch_backend/internal/dispatch/service"
	"urgent_dispatch_backend/internal/events"
	"urgent_dispatch_backend/internal/notification"
	pricingrepo "urgent_dispatch_backend/internal/pricing/repository"
	pricingservice "urgent_dispatch_backend/internal/pricing/service"
	"urgent_dispatch_backend/internal/scheduler"
	"urgent_dispatch_backend/internal/settlement"
	"urgent_dispatch_backend/platform/config"
	"urgent_dispatch_backend/platform/db"
	"urgent_dispatch_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting scheduler", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	eventBus := events.NewInMemoryBus(log)

	// Notifications and settlements fire from retry decisions too, so the
	// worker carries the same subscribers as the API process.
	notificationModule := notification.NewModule(pool, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	settlementModule := settlement.NewModule(pool, cfg, log)
	settlementModule.RegisterHandlers(eventBus)
	go settlementModule.Run(ctx)

	sweepClient, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		panic("failed to initialize scheduler client: " + err.Error())
	}
	defer func() { _ = sweepClient.Close() }()

	directorySvc := directoryservice.New(directoryrepo.New(pool))
	pricingSvc := pricingservice.New(pricingrepo.New(pool), cfg)

	dispatchSvc := dispatchservice.New(
		dispatchrepo.New(pool),
		directorySvc,
		pricingSvc,
		sweepClient,
		eventBus,
		cfg,
		log,
	)

	worker, err := scheduler.NewWorker(cfg, dispatchSvc, log)
	if err != nil {
		log.Error("failed to initialize scheduler worker", "error", err)
		panic("failed to initialize scheduler worker: " + err.Error())
	}

	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
