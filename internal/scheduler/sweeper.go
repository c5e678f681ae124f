package scheduler

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"leadbot_backend/internal/events"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"

	platformevents "leadbot_backend/platform/events"

	"golang.org/x/sync/errgroup"
)

const (
	exhaustedNote = "IDENTIFICAÇÃO FINALIZADA\n" +
		"Todos os números vinculados a este lead foram contatados e finalizados."

	expiredNote = "TIMEOUT AUTOMÁTICO (24H)\n" +
		"Passaram-se 24 horas desde a entrada do lead e não houve uma " +
		"identificação positiva clara nos números testados.\n" +
		"O Lead foi movido para Qualificação Humana para análise manual."
)

// SweepStore is the persistence surface the sweeper needs.
type SweepStore interface {
	ListExhaustedLeads(ctx context.Context) ([]repository.Lead, error)
	ListExpiredLeads(ctx context.Context, maxAge time.Duration) ([]repository.Lead, error)
	ConcludeLead(ctx context.Context, leadID int64) error
	DequeuePendingLead(ctx context.Context) (repository.Lead, error)
}

// SweepCRM moves finalized leads to the human-qualification stage.
type SweepCRM interface {
	UpdateLeadStage(ctx context.Context, id, stageID int64) error
	CreateNote(ctx context.Context, leadID int64, text string) error
}

// Sweeper periodically finalizes stale leads and feeds the contact queue.
// Cycles are spaced by a random interval within the configured bounds.
type Sweeper struct {
	store            SweepStore
	crm              SweepCRM
	contacts         ContactScheduler
	bus              platformevents.Bus
	log              *logger.Logger
	concludedStageID int64
	leadExpiry       time.Duration
	minInterval      time.Duration
	maxInterval      time.Duration
}

func NewSweeper(
	store SweepStore,
	crm SweepCRM,
	contacts ContactScheduler,
	bus platformevents.Bus,
	cfg config.SchedulerConfig,
	concludedStageID int64,
	log *logger.Logger,
) *Sweeper {
	return &Sweeper{
		store:            store,
		crm:              crm,
		contacts:         contacts,
		bus:              bus,
		log:              log,
		concludedStageID: concludedStageID,
		leadExpiry:       cfg.GetLeadExpiry(),
		minInterval:      cfg.GetSweepMinInterval(),
		maxInterval:      cfg.GetSweepMaxInterval(),
	}
}

// Run loops until the context is canceled.
func (s *Sweeper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.nextInterval()):
		}
		s.sweepOnce(ctx)
	}
}

func (s *Sweeper) nextInterval() time.Duration {
	if s.maxInterval <= s.minInterval {
		return s.minInterval
	}
	return s.minInterval + time.Duration(rand.Int63n(int64(s.maxInterval-s.minInterval)))
}

// sweepOnce runs one cycle. The two finalize scans touch disjoint leads,
// so they run concurrently; dispatch waits for both to avoid re-queueing a
// lead that is being concluded.
func (s *Sweeper) sweepOnce(ctx context.Context) {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.finalizeExhausted(gctx)
		return nil
	})
	g.Go(func() error {
		s.finalizeExpired(gctx)
		return nil
	})
	_ = g.Wait()

	s.dispatchNext(ctx)
}

func (s *Sweeper) finalizeExhausted(ctx context.Context) {
	leads, err := s.store.ListExhaustedLeads(ctx)
	if err != nil {
		s.log.DatabaseError("list exhausted leads", err)
		return
	}
	for _, lead := range leads {
		s.finalize(ctx, lead, "exhausted", exhaustedNote)
	}
}

func (s *Sweeper) finalizeExpired(ctx context.Context) {
	leads, err := s.store.ListExpiredLeads(ctx, s.leadExpiry)
	if err != nil {
		s.log.DatabaseError("list expired leads", err)
		return
	}
	for _, lead := range leads {
		s.finalize(ctx, lead, "expired", expiredNote)
	}
}

// finalize advances the CRM stage, leaves the closing note, and concludes
// the local record. The CRM move comes first: if it fails, the local state
// is left untouched so the next cycle retries the whole lead.
func (s *Sweeper) finalize(ctx context.Context, lead repository.Lead, reason, note string) {
	if err := s.crm.UpdateLeadStage(ctx, lead.CRMLeadID, s.concludedStageID); err != nil {
		s.log.RemoteError("crm", "finalize lead stage", err)
		return
	}
	if err := s.crm.CreateNote(ctx, lead.CRMLeadID, note); err != nil {
		s.log.RemoteError("crm", "finalize lead note", err)
	}
	if err := s.store.ConcludeLead(ctx, lead.ID); err != nil {
		s.log.DatabaseError("conclude lead", err)
		return
	}

	s.log.OutreachEvent("lead_finalized", lead.CRMLeadID, "", true, reason)
	if s.bus != nil {
		s.bus.Publish(ctx, events.LeadFinalized{
			BaseEvent:   events.NewBaseEvent(),
			CRMLeadID:   lead.CRMLeadID,
			ContactName: lead.ContactName,
			Reason:      reason,
		})
	}
}

// dispatchNext pulls the oldest lead that still has an untried number and
// queues its next contact attempt.
func (s *Sweeper) dispatchNext(ctx context.Context) {
	lead, err := s.store.DequeuePendingLead(ctx)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.log.DatabaseError("dequeue pending lead", err)
		}
		return
	}
	if err := s.contacts.EnqueueLeadContact(ctx, lead.CRMLeadID); err != nil {
		s.log.Error("enqueue lead contact failed", "crm_lead_id", lead.CRMLeadID, "error", err)
		return
	}
	s.log.OutreachEvent("contact_enqueued", lead.CRMLeadID, "", true, "")
}
