package inbound

import (
	"context"
	"errors"
	"sync"
	"testing"

	"leadbot_backend/internal/conversation"
	"leadbot_backend/internal/gateway"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/logger"
)

type fakeStore struct {
	conv    *repository.Conversation
	findErr error
	saved   []string
}

func (s *fakeStore) FindConversationByNumber(ctx context.Context, raw string) (*repository.Conversation, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.conv, nil
}

func (s *fakeStore) SaveUserMessage(ctx context.Context, numberID int64, content string) error {
	s.saved = append(s.saved, content)
	return nil
}

type fakeMedia struct {
	audio string
	err   error
}

func (m *fakeMedia) FetchMediaBase64(ctx context.Context, instance, messageID, remoteJID string, fromMe bool) (string, error) {
	return m.audio, m.err
}

type fakeTranscriber struct {
	enabled bool
	text    string
	err     error
}

func (t *fakeTranscriber) Enabled() bool { return t.enabled }

func (t *fakeTranscriber) Transcribe(ctx context.Context, audioBase64 string) (string, error) {
	return t.text, t.err
}

type fakeDebouncer struct {
	mu   sync.Mutex
	adds []conversation.Inbound
}

func (d *fakeDebouncer) Add(in conversation.Inbound) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.adds = append(d.adds, in)
}

func (d *fakeDebouncer) all() []conversation.Inbound {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]conversation.Inbound(nil), d.adds...)
}

func openConversation() *repository.Conversation {
	return &repository.Conversation{
		Lead:   repository.Lead{ID: 1, CRMLeadID: 42, ContactName: "Gustavo Silva"},
		Number: repository.ContactNumber{ID: 11, Number: "+5511987654321", Status: repository.NumberAwaitingReply},
	}
}

func textEvent(text string) gateway.Event {
	return gateway.Event{
		Event:    "messages.upsert",
		Instance: "vendas01",
		Data: gateway.EventData{
			Key: gateway.MessageKey{
				RemoteJID: "5511987654321@s.whatsapp.net",
				ID:        "MSG-1",
			},
			PushName: "Gustavo",
			Message:  &gateway.Message{Conversation: text},
		},
	}
}

func newService(store *fakeStore, media *fakeMedia, tr *fakeTranscriber, deb *fakeDebouncer) *Service {
	return NewService(store, media, tr, deb, logger.New("development"))
}

func TestTextMessageIsSavedAndDebounced(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{}, deb)

	svc.ProcessGatewayEvent(textEvent("oi, sou eu sim"))

	if len(store.saved) != 1 || store.saved[0] != "oi, sou eu sim" {
		t.Fatalf("saved = %v", store.saved)
	}
	adds := deb.all()
	if len(adds) != 1 {
		t.Fatalf("expected one debounced fragment, got %d", len(adds))
	}
	if adds[0].ConversationKey != "+5511987654321" || adds[0].Instance != "vendas01" {
		t.Fatalf("fragment = %+v", adds[0])
	}
	if adds[0].PushName != "Gustavo" {
		t.Fatalf("push name = %q", adds[0].PushName)
	}
}

func TestOwnMessagesAreDropped(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{}, deb)

	event := textEvent("mensagem do bot")
	event.Data.Key.FromMe = true
	svc.ProcessGatewayEvent(event)

	if len(store.saved) != 0 || len(deb.all()) != 0 {
		t.Fatal("own messages must be ignored")
	}
}

func TestNonUpsertEventsAreIgnored(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{}, deb)

	event := textEvent("oi")
	event.Event = "connection.update"
	svc.ProcessGatewayEvent(event)

	if len(deb.all()) != 0 {
		t.Fatal("only messages.upsert should be processed")
	}
}

func TestUnknownNumberIsIgnored(t *testing.T) {
	store := &fakeStore{findErr: repository.ErrNotFound}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{}, deb)

	svc.ProcessGatewayEvent(textEvent("oi"))

	if len(deb.all()) != 0 {
		t.Fatal("unknown numbers must be ignored")
	}
}

func TestResolvedConversationIsIgnored(t *testing.T) {
	conv := openConversation()
	conv.Number.Status = repository.NumberDenied
	store := &fakeStore{conv: conv}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{}, deb)

	svc.ProcessGatewayEvent(textEvent("oi de novo"))

	if len(store.saved) != 0 || len(deb.all()) != 0 {
		t.Fatal("resolved conversations must not accept new messages")
	}
}

func audioEvent() gateway.Event {
	event := textEvent("")
	event.Data.Message = &gateway.Message{
		AudioMessage: &gateway.AudioMessage{Mimetype: "audio/ogg; codecs=opus", PTT: true},
	}
	return event
}

func TestAudioIsTranscribed(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store,
		&fakeMedia{audio: "T2dnUw=="},
		&fakeTranscriber{enabled: true, text: "sim, pode falar"},
		deb)

	svc.ProcessGatewayEvent(audioEvent())

	if len(store.saved) != 1 || store.saved[0] != "sim, pode falar" {
		t.Fatalf("saved = %v", store.saved)
	}
}

func TestAudioWithoutTranscriberUsesPlaceholder(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store, &fakeMedia{}, &fakeTranscriber{enabled: false}, deb)

	svc.ProcessGatewayEvent(audioEvent())

	if len(store.saved) != 1 || store.saved[0] != "[Áudio enviado]" {
		t.Fatalf("saved = %v", store.saved)
	}
}

func TestTranscriptionFailureFallsBackToPlaceholder(t *testing.T) {
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	svc := newService(store,
		&fakeMedia{audio: "T2dnUw=="},
		&fakeTranscriber{enabled: true, err: errors.New("model timeout")},
		deb)

	svc.ProcessGatewayEvent(audioEvent())

	if len(store.saved) != 1 || store.saved[0] != "[Áudio enviado]" {
		t.Fatalf("saved = %v", store.saved)
	}
}
