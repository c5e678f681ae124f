package scheduler

import (
	"context"

	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// ContactService performs the initial contact for one CRM lead.
type ContactService interface {
	ContactLead(ctx context.Context, crmLeadID int64) error
}

type Worker struct {
	server  *asynq.Server
	mux     *asynq.ServeMux
	contact ContactService
	log     *logger.Logger
}

func NewWorker(cfg config.RedisConfig, contact ContactService, log *logger.Logger) (*Worker, error) {
	opt, err := redisClientOpt(cfg.GetRedisURL(), cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	server := asynq.NewServer(opt, asynq.Config{
		// Sends are throttled by the gateway rate limiter anyway.
		Concurrency: 2,
	})

	w := &Worker{
		server:  server,
		mux:     asynq.NewServeMux(),
		contact: contact,
		log:     log,
	}
	w.mux.HandleFunc(TaskLeadContact, w.handleLeadContact)

	return w, nil
}

func (w *Worker) handleLeadContact(ctx context.Context, task *asynq.Task) error {
	payload, err := ParseLeadContactPayload(task)
	if err != nil {
		return err
	}
	return w.contact.ContactLead(ctx, payload.CRMLeadID)
}

func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
