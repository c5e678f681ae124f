// Package inbound receives the webhook traffic that drives the bot: CRM
// lead events that trigger the initial contact, and gateway message events
// that feed the reply pipeline.
package inbound

import (
	"context"
	"errors"
	"strings"
	"time"

	"leadbot_backend/internal/conversation"
	"leadbot_backend/internal/gateway"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/logger"
)

// eventMessagesUpsert is the only gateway event type the bot consumes.
const eventMessagesUpsert = "messages.upsert"

const processTimeout = 90 * time.Second

// Store is the persistence surface of the inbound pipeline.
type Store interface {
	FindConversationByNumber(ctx context.Context, rawNumber string) (*repository.Conversation, error)
	SaveUserMessage(ctx context.Context, numberID int64, content string) error
}

// MediaFetcher downloads audio payloads referenced by a gateway event.
type MediaFetcher interface {
	FetchMediaBase64(ctx context.Context, instance, messageID, remoteJID string, fromMe bool) (string, error)
}

// Transcriber converts audio to text.
type Transcriber interface {
	Enabled() bool
	Transcribe(ctx context.Context, audioBase64 string) (string, error)
}

// Debouncer coalesces message fragments per conversation.
type Debouncer interface {
	Add(in conversation.Inbound)
}

// Service turns raw gateway events into debounced conversation input.
type Service struct {
	store      Store
	media      MediaFetcher
	transcribe Transcriber
	debouncer  Debouncer
	log        *logger.Logger
}

func NewService(store Store, media MediaFetcher, transcribe Transcriber, debouncer Debouncer, log *logger.Logger) *Service {
	return &Service{
		store:      store,
		media:      media,
		transcribe: transcribe,
		debouncer:  debouncer,
		log:        log,
	}
}

// ProcessGatewayEvent handles one webhook delivery. The webhook response
// has already been written; failures here are logged, never surfaced.
func (s *Service) ProcessGatewayEvent(event gateway.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
	defer cancel()

	if event.Event != eventMessagesUpsert || event.Data.Message == nil {
		return
	}
	if event.Data.Key.FromMe {
		return
	}

	key := conversation.ConversationKeyFromJID(event.Data.SenderJID())
	if key == "" {
		return
	}
	log := s.log.WithConversation(key)

	conv, err := s.store.FindConversationByNumber(ctx, key)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			log.Debug("message from unknown number ignored")
		} else {
			log.DatabaseError("find conversation", err)
		}
		return
	}
	if !conv.Number.Status.Open() {
		log.Debug("conversation already resolved, message ignored",
			"status", string(conv.Number.Status))
		return
	}

	text := s.messageText(ctx, log, event)
	if strings.TrimSpace(text) == "" {
		log.Debug("event carried no usable text")
		return
	}

	if err := s.store.SaveUserMessage(ctx, conv.Number.ID, text); err != nil {
		log.DatabaseError("save user message", err)
		return
	}

	s.debouncer.Add(conversation.Inbound{
		ConversationKey: key,
		Instance:        event.Instance,
		PushName:        event.Data.PushName,
		MessageID:       event.Data.Key.ID,
		Text:            text,
	})
}

// messageText extracts the text content of the event, transcribing audio
// payloads when the transcription service is configured.
func (s *Service) messageText(ctx context.Context, log *logger.Logger, event gateway.Event) string {
	msg := event.Data.Message.Unwrap()
	if text, ok := msg.ExtractText(); ok {
		return text
	}
	if !msg.HasAudio() {
		return ""
	}
	if !s.transcribe.Enabled() {
		return "[Áudio enviado]"
	}

	audio, err := s.media.FetchMediaBase64(ctx,
		event.Instance, event.Data.Key.ID, event.Data.Key.RemoteJID, event.Data.Key.FromMe)
	if err != nil {
		log.RemoteError("gateway", "fetch audio", err)
		return "[Áudio enviado]"
	}

	text, err := s.transcribe.Transcribe(ctx, audio)
	if err != nil {
		log.RemoteError("transcribe", "audio transcription", err)
		return "[Áudio enviado]"
	}
	return text
}
