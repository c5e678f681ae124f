package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadbot_backend/internal/crm"
	"leadbot_backend/internal/gateway"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/internal/notify"
	"leadbot_backend/internal/outreach"
	"leadbot_backend/internal/scheduler"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/db"
	"leadbot_backend/platform/events"
	"leadbot_backend/platform/logger"
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

	eventBus := events.NewInMemoryBus(func(eventName string, err error) {
		log.Error("event handler failed", "event", eventName, "error", err)
	})

	if cfg.GetNotifyEnabled() {
		notify.Register(eventBus, notify.NewSMTPMailer(cfg), log)
		log.Info("operator email alerts enabled")
	}

	repo := repository.New(pool)
	crmClient := crm.NewClient(cfg, log)
	gatewayClient := gateway.NewClient(cfg, log)

	outreachSvc := outreach.NewService(repo, crmClient, gatewayClient, cfg.CRMRegionField, log)

	contacts, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = contacts.Close() }()

	sweeper := scheduler.NewSweeper(
		repo, crmClient, contacts, eventBus,
		cfg, cfg.CRMConcludedStageID, log,
	)
	go sweeper.Run(ctx)

	worker, err := scheduler.NewWorker(cfg, outreachSvc, log)
	if err != nil {
		log.Error("failed to start task worker", "error", err)
		panic("failed to start task worker: " + err.Error())
	}
	worker.Run(ctx)
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
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
