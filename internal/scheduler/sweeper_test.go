package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"

	platformevents "leadbot_backend/platform/events"
)

type fakeSweepStore struct {
	mu        sync.Mutex
	exhausted []repository.Lead
	expired   []repository.Lead
	pending   *repository.Lead
	concluded []int64
}

func (s *fakeSweepStore) ListExhaustedLeads(ctx context.Context) ([]repository.Lead, error) {
	return s.exhausted, nil
}

func (s *fakeSweepStore) ListExpiredLeads(ctx context.Context, maxAge time.Duration) ([]repository.Lead, error) {
	return s.expired, nil
}

func (s *fakeSweepStore) ConcludeLead(ctx context.Context, leadID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.concluded = append(s.concluded, leadID)
	return nil
}

func (s *fakeSweepStore) DequeuePendingLead(ctx context.Context) (repository.Lead, error) {
	if s.pending == nil {
		return repository.Lead{}, repository.ErrNotFound
	}
	return *s.pending, nil
}

type fakeSweepCRM struct {
	mu           sync.Mutex
	stageUpdates []int64
	notes        []string
	stageErr     error
}

func (c *fakeSweepCRM) UpdateLeadStage(ctx context.Context, id, stageID int64) error {
	if c.stageErr != nil {
		return c.stageErr
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stageUpdates = append(c.stageUpdates, stageID)
	return nil
}

func (c *fakeSweepCRM) CreateNote(ctx context.Context, leadID int64, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.notes = append(c.notes, text)
	return nil
}

type fakeContacts struct {
	enqueued []int64
	err      error
}

func (c *fakeContacts) EnqueueLeadContact(ctx context.Context, crmLeadID int64) error {
	if c.err != nil {
		return c.err
	}
	c.enqueued = append(c.enqueued, crmLeadID)
	return nil
}

func sweepConfig() *config.Config {
	return &config.Config{
		SweepMinInterval: 3 * time.Minute,
		SweepMaxInterval: 6 * time.Minute,
		LeadExpiry:       24 * time.Hour,
	}
}

func newSweeper(store *fakeSweepStore, crm *fakeSweepCRM, contacts *fakeContacts, bus platformevents.Bus) *Sweeper {
	return NewSweeper(store, crm, contacts, bus, sweepConfig(), 777, logger.New("development"))
}

func TestSweepFinalizesExhaustedLead(t *testing.T) {
	store := &fakeSweepStore{
		exhausted: []repository.Lead{{ID: 1, CRMLeadID: 42, ContactName: "Gustavo Silva"}},
	}
	crm := &fakeSweepCRM{}
	bus := platformevents.NewInMemoryBus(nil)

	eventCh := make(chan platformevents.Event, 1)
	bus.Subscribe("lead.finalized", platformevents.HandlerFunc(
		func(ctx context.Context, e platformevents.Event) error {
			eventCh <- e
			return nil
		}))

	s := newSweeper(store, crm, &fakeContacts{}, bus)
	s.sweepOnce(context.Background())

	if len(crm.stageUpdates) != 1 || crm.stageUpdates[0] != 777 {
		t.Fatalf("stage updates = %v", crm.stageUpdates)
	}
	if len(crm.notes) != 1 || crm.notes[0] != exhaustedNote {
		t.Fatalf("notes = %v", crm.notes)
	}
	if len(store.concluded) != 1 || store.concluded[0] != 1 {
		t.Fatalf("concluded = %v", store.concluded)
	}

	select {
	case <-eventCh:
	case <-time.After(2 * time.Second):
		t.Fatal("finalized event not published")
	}
}

func TestSweepExpiredLeadGetsTimeoutNote(t *testing.T) {
	store := &fakeSweepStore{
		expired: []repository.Lead{{ID: 2, CRMLeadID: 43, ContactName: "Maria"}},
	}
	crm := &fakeSweepCRM{}

	s := newSweeper(store, crm, &fakeContacts{}, platformevents.NewInMemoryBus(nil))
	s.sweepOnce(context.Background())

	if len(crm.notes) != 1 || crm.notes[0] != expiredNote {
		t.Fatalf("notes = %v", crm.notes)
	}
	if len(store.concluded) != 1 || store.concluded[0] != 2 {
		t.Fatalf("concluded = %v", store.concluded)
	}
}

func TestSweepCRMFailureSkipsLocalConclude(t *testing.T) {
	store := &fakeSweepStore{
		exhausted: []repository.Lead{{ID: 1, CRMLeadID: 42}},
	}
	crm := &fakeSweepCRM{stageErr: errors.New("crm down")}

	s := newSweeper(store, crm, &fakeContacts{}, platformevents.NewInMemoryBus(nil))
	s.sweepOnce(context.Background())

	if len(store.concluded) != 0 {
		t.Fatalf("lead must stay open when the CRM move fails, got %v", store.concluded)
	}
	if len(crm.notes) != 0 {
		t.Fatalf("no note should be written on stage failure")
	}
}

func TestSweepEnqueuesPendingLead(t *testing.T) {
	store := &fakeSweepStore{pending: &repository.Lead{ID: 3, CRMLeadID: 44}}
	contacts := &fakeContacts{}

	s := newSweeper(store, &fakeSweepCRM{}, contacts, platformevents.NewInMemoryBus(nil))
	s.sweepOnce(context.Background())

	if len(contacts.enqueued) != 1 || contacts.enqueued[0] != 44 {
		t.Fatalf("enqueued = %v", contacts.enqueued)
	}
}

func TestSweepEmptyQueueEnqueuesNothing(t *testing.T) {
	contacts := &fakeContacts{}
	s := newSweeper(&fakeSweepStore{}, &fakeSweepCRM{}, contacts, platformevents.NewInMemoryBus(nil))
	s.sweepOnce(context.Background())

	if len(contacts.enqueued) != 0 {
		t.Fatalf("enqueued = %v", contacts.enqueued)
	}
}

func TestNextIntervalStaysWithinBounds(t *testing.T) {
	s := newSweeper(&fakeSweepStore{}, &fakeSweepCRM{}, &fakeContacts{}, platformevents.NewInMemoryBus(nil))
	for i := 0; i < 100; i++ {
		d := s.nextInterval()
		if d < 3*time.Minute || d > 6*time.Minute {
			t.Fatalf("interval %v out of bounds", d)
		}
	}
}

func TestLeadContactTaskRoundTrip(t *testing.T) {
	task, err := NewLeadContactTask(LeadContactPayload{CRMLeadID: 42})
	if err != nil {
		t.Fatalf("NewLeadContactTask: %v", err)
	}
	if task.Type() != TaskLeadContact {
		t.Fatalf("task type = %q", task.Type())
	}
	payload, err := ParseLeadContactPayload(task)
	if err != nil {
		t.Fatalf("ParseLeadContactPayload: %v", err)
	}
	if payload.CRMLeadID != 42 {
		t.Fatalf("crm lead id = %d", payload.CRMLeadID)
	}
}
