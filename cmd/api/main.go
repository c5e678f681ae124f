package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"leadbot_backend/internal/classifier"
	"leadbot_backend/internal/conversation"
	"leadbot_backend/internal/crm"
	"leadbot_backend/internal/gateway"
	apphttp "leadbot_backend/internal/http"
	"leadbot_backend/internal/http/router"
	"leadbot_backend/internal/inbound"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/internal/media"
	"leadbot_backend/internal/notify"
	"leadbot_backend/internal/scheduler"
	"leadbot_backend/internal/transcribe"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/db"
	"leadbot_backend/platform/events"
	"leadbot_backend/platform/logger"
	"leadbot_backend/platform/validator"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

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
	log.Info("database connection established")

	eventBus := events.NewInMemoryBus(func(eventName string, err error) {
		log.Error("event handler failed", "event", eventName, "error", err)
	})

	repo := repository.New(pool)
	crmClient := crm.NewClient(cfg, log)
	gatewayClient := gateway.NewClient(cfg, log)

	materials, err := media.New(cfg, log)
	if err != nil {
		log.Error("failed to initialize materials store", "error", err)
		panic("failed to initialize materials store: " + err.Error())
	}

	var cls conversation.Classifier = classifier.Disabled{}
	if cfg.IsClassifierEnabled() {
		gemini, err := classifier.NewGemini(ctx, cfg, log)
		if err != nil {
			log.Error("failed to initialize classifier", "error", err)
			panic("failed to initialize classifier: " + err.Error())
		}
		cls = gemini
	} else {
		log.Warn("GEMINI_API_KEY not configured; intent classification disabled")
	}

	// ========================================================================
	// Conversation Pipeline
	// ========================================================================

	responder := conversation.NewResponder(
		repo, crmClient, gatewayClient, cls, materials,
		eventBus, cfg.CRMConfirmedStageID, log,
	)
	debouncer := conversation.NewDebouncer(cfg.DebounceWindow, responder.HandleReply, log)

	transcriber := transcribe.NewClient(cfg, log)
	inboundSvc := inbound.NewService(repo, gatewayClient, transcriber, debouncer, log)

	contacts, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to connect to redis", "error", err)
		panic("failed to connect to redis: " + err.Error())
	}
	defer func() { _ = contacts.Close() }()

	if cfg.GetNotifyEnabled() {
		notify.Register(eventBus, notify.NewSMTPMailer(cfg), log)
		log.Info("operator email alerts enabled")
	}

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	handler := inbound.NewHandler(inboundSvc, contacts, repo, gatewayClient, validator.New(), cfg.IsProduction(), log)

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   pool,
		EventBus: eventBus,
		Modules: []apphttp.Module{
			inbound.NewModule(handler),
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
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
