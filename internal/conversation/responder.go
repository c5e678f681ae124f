package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"leadbot_backend/internal/events"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/internal/messages"
	platformevents "leadbot_backend/platform/events"
	"leadbot_backend/platform/logger"
	"leadbot_backend/platform/phone"
)

// Store is the repository subset the responder mutates.
type Store interface {
	FindConversationByNumber(ctx context.Context, rawNumber string) (*repository.Conversation, error)
	SaveAgentMessage(ctx context.Context, numberID int64, content string) error
	UpdateNumberStatus(ctx context.Context, numberID int64, status repository.NumberStatus) error
	PickTemplate(ctx context.Context, kind string) (repository.Template, error)
}

// CRM is the pipeline-side collaborator.
type CRM interface {
	UpdateLeadStage(ctx context.Context, id, stageID int64) error
	CreateNote(ctx context.Context, leadID int64, text string) error
}

// Gateway sends outbound WhatsApp messages.
type Gateway interface {
	SendText(ctx context.Context, number, text, instance string) (string, error)
	SendMedia(ctx context.Context, number, instance, fileBase64, filename, caption string) (string, error)
}

// MaterialSource provides the presentation document.
type MaterialSource interface {
	PresentationBase64(ctx context.Context) (string, error)
	Filename() string
	Caption() string
}

// Responder drives the reply state machine: it resolves the conversation
// behind a coalesced inbound message, classifies the intent, and applies
// the per-intent side effects.
type Responder struct {
	store            Store
	crm              CRM
	gateway          Gateway
	classifier       Classifier
	materials        MaterialSource
	bus              platformevents.Bus
	log              *logger.Logger
	confirmedStageID int64
	now              func() time.Time
}

// NewResponder wires the reply handler.
func NewResponder(
	store Store,
	crm CRM,
	gateway Gateway,
	classifier Classifier,
	materials MaterialSource,
	bus platformevents.Bus,
	confirmedStageID int64,
	log *logger.Logger,
) *Responder {
	return &Responder{
		store:            store,
		crm:              crm,
		gateway:          gateway,
		classifier:       classifier,
		materials:        materials,
		bus:              bus,
		log:              log,
		confirmedStageID: confirmedStageID,
		now:              time.Now,
	}
}

// HandleReply processes one debounced inbound context. All failures are
// terminal for this invocation only: state is left unchanged so the next
// inbound message or scheduler cycle retries naturally.
func (r *Responder) HandleReply(in Inbound) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	log := r.log.WithConversation(in.ConversationKey)

	conv, err := r.store.FindConversationByNumber(ctx, in.ConversationKey)
	if errors.Is(err, repository.ErrNotFound) {
		log.Debug("inbound from unknown number, ignoring")
		return
	}
	if err != nil {
		log.DatabaseError("find conversation", err)
		return
	}

	if !conv.Number.Status.Open() {
		log.Debug("conversation already resolved", "status", string(conv.Number.Status))
		return
	}

	transcript := RenderTranscript(historyTurns(conv.History), in.Text)

	intent, err := r.classifier.ClassifyIntent(ctx, transcript)
	if err != nil {
		log.RemoteError("classifier", "classify_intent", err)
		intent = IntentUnclassified
	}
	log.IntentEvent(in.ConversationKey, string(intent), conv.Lead.CRMLeadID)

	r.dispatch(ctx, log, intent, conv, in)
}

// dispatch routes the classified intent to its action handler. Neutral and
// unclassified intents keep the number open with no side effects.
func (r *Responder) dispatch(ctx context.Context, log *logger.Logger, intent Intent, conv *repository.Conversation, in Inbound) {
	switch intent {
	case IntentConfirmation:
		r.handleConfirmation(ctx, log, conv)
	case IntentObjection:
		r.handleObjection(ctx, log, conv, in)
	case IntentDenial:
		r.handleDenial(ctx, log, conv, in)
	case IntentRelative:
		r.handleRelative(ctx, log, conv, in)
	case IntentNeutral, IntentUnclassified:
		// Keep the conversation open for further replies.
	}
}

func (r *Responder) handleConfirmation(ctx context.Context, log *logger.Logger, conv *repository.Conversation) {
	if err := r.crm.UpdateLeadStage(ctx, conv.Lead.CRMLeadID, r.confirmedStageID); err != nil {
		log.RemoteError("crm", "update_lead_stage", err)
		return
	}

	note := RenderNote("✅ Lead confirmou a identidade pelo WhatsApp.", historyTurns(conv.History))
	if err := r.crm.CreateNote(ctx, conv.Lead.CRMLeadID, note); err != nil {
		log.RemoteError("crm", "create_note", err)
	}

	if err := r.store.UpdateNumberStatus(ctx, conv.Number.ID, repository.NumberConfirmed); err != nil {
		log.DatabaseError("update number status", err)
	}
}

func (r *Responder) handleObjection(ctx context.Context, log *logger.Logger, conv *repository.Conversation, in Inbound) {
	caption := r.templateText(ctx, log, messages.KindPresentation, r.materials.Caption(), messages.Values{
		ContactName: conv.Lead.ContactName,
		AgentName:   conv.AgentName,
		Now:         r.now(),
	})
	sent, text := r.sendPresentation(ctx, log, conv.Number.Number, in.Instance, caption)
	if !sent {
		return
	}

	if err := r.store.SaveAgentMessage(ctx, conv.Number.ID, text); err != nil {
		log.DatabaseError("save agent message", err)
	}
	if err := r.store.UpdateNumberStatus(ctx, conv.Number.ID, repository.NumberObjection); err != nil {
		log.DatabaseError("update number status", err)
	}

	if err := r.crm.UpdateLeadStage(ctx, conv.Lead.CRMLeadID, r.confirmedStageID); err != nil {
		log.RemoteError("crm", "update_lead_stage", err)
	}
	note := RenderNote("⚠️ Lead respondeu com objeção. Material de apresentação enviado.", historyTurns(conv.History))
	if err := r.crm.CreateNote(ctx, conv.Lead.CRMLeadID, note); err != nil {
		log.RemoteError("crm", "create_note", err)
	}
}

// handleDenial applies the fake-mismatch sub-rule: an exact profile/lead
// name match short-circuits equivalence, otherwise the classifier judges
// nickname equivalence. Equivalent names mean the denial is suspect, so no
// reply is sent at all.
func (r *Responder) handleDenial(ctx context.Context, log *logger.Logger, conv *repository.Conversation, in Inbound) {
	if r.namesMatch(ctx, log, in.PushName, conv.Lead.ContactName) {
		if err := r.store.UpdateNumberStatus(ctx, conv.Number.ID, repository.NumberFakeMismatch); err != nil {
			log.DatabaseError("update number status", err)
			return
		}

		headline := fmt.Sprintf(
			"🚨 ALERTA: contato negou ser o lead, mas o nome do WhatsApp (%s) é compatível com o nome do lead (%s). Nenhuma resposta foi enviada.",
			in.PushName, conv.Lead.ContactName)
		if err := r.crm.CreateNote(ctx, conv.Lead.CRMLeadID, RenderNote(headline, historyTurns(conv.History))); err != nil {
			log.RemoteError("crm", "create_note", err)
		}

		r.bus.Publish(ctx, events.FakeMismatchDetected{
			BaseEvent:   platformevents.NewBaseEvent(),
			CRMLeadID:   conv.Lead.CRMLeadID,
			ContactName: conv.Lead.ContactName,
			ProfileName: in.PushName,
			Number:      conv.Number.Number,
		})
		return
	}

	apology := r.templateText(ctx, log, messages.KindApology, messages.Apology, messages.Values{
		ContactName: conv.Lead.ContactName,
		AgentName:   conv.AgentName,
		Now:         r.now(),
	})
	if _, err := r.gateway.SendText(ctx, conv.Number.Number, apology, in.Instance); err != nil {
		log.RemoteError("gateway", "send_text", err)
		return
	}

	if err := r.store.SaveAgentMessage(ctx, conv.Number.ID, apology); err != nil {
		log.DatabaseError("save agent message", err)
	}
	if err := r.store.UpdateNumberStatus(ctx, conv.Number.ID, repository.NumberDenied); err != nil {
		log.DatabaseError("update number status", err)
	}
	note := RenderNote("ℹ️ Contato negou ser o lead. Mensagem de desculpas enviada.", historyTurns(conv.History))
	if err := r.crm.CreateNote(ctx, conv.Lead.CRMLeadID, note); err != nil {
		log.RemoteError("crm", "create_note", err)
	}
}

func (r *Responder) handleRelative(ctx context.Context, log *logger.Logger, conv *repository.Conversation, in Inbound) {
	gender, err := r.classifier.DetectGender(ctx, messages.FirstName(conv.Lead.ContactName))
	if err != nil {
		gender = "M"
	}
	handOff := r.templateText(ctx, log, messages.KindRelative,
		messages.RelativeHandOff(conv.Lead.ContactName, gender, r.now()),
		messages.Values{
			ContactName: conv.Lead.ContactName,
			AgentName:   conv.AgentName,
			Gender:      gender,
			Now:         r.now(),
		})

	sent, text := r.sendPresentation(ctx, log, conv.Number.Number, in.Instance, handOff)
	if !sent {
		return
	}

	if err := r.store.SaveAgentMessage(ctx, conv.Number.ID, text); err != nil {
		log.DatabaseError("save agent message", err)
	}
	if err := r.store.UpdateNumberStatus(ctx, conv.Number.ID, repository.NumberRelative); err != nil {
		log.DatabaseError("update number status", err)
	}

	if err := r.crm.UpdateLeadStage(ctx, conv.Lead.CRMLeadID, r.confirmedStageID); err != nil {
		log.RemoteError("crm", "update_lead_stage", err)
	}
	note := RenderNote("ℹ️ Um parente/terceiro respondeu. Mensagem de repasse enviada.", historyTurns(conv.History))
	if err := r.crm.CreateNote(ctx, conv.Lead.CRMLeadID, note); err != nil {
		log.RemoteError("crm", "create_note", err)
	}
}

// templateText picks the least-used stored template of a kind and renders
// it. When none is stored, or the lookup fails, the built-in fallback text
// is rendered instead.
func (r *Responder) templateText(ctx context.Context, log *logger.Logger, kind, fallback string, v messages.Values) string {
	tpl, err := r.store.PickTemplate(ctx, kind)
	if errors.Is(err, repository.ErrNotFound) {
		return messages.Render(fallback, v)
	}
	if err != nil {
		log.DatabaseError("pick template", err)
		return messages.Render(fallback, v)
	}
	return messages.Render(tpl.Body, v)
}

// sendPresentation tries the presentation attachment with the caption, then
// falls back to sending the caption as plain text. Returns whether anything
// was delivered and the text recorded for the conversation history.
func (r *Responder) sendPresentation(ctx context.Context, log *logger.Logger, number, instance, caption string) (bool, string) {
	fileBase64, err := r.materials.PresentationBase64(ctx)
	if err == nil {
		if _, err := r.gateway.SendMedia(ctx, number, instance, fileBase64, r.materials.Filename(), caption); err == nil {
			return true, caption
		} else {
			log.RemoteError("gateway", "send_media", err)
		}
	} else {
		log.RemoteError("materials", "presentation_base64", err)
	}

	if _, err := r.gateway.SendText(ctx, number, caption, instance); err != nil {
		log.RemoteError("gateway", "send_text", err)
		return false, ""
	}
	return true, caption
}

// namesMatch implements the denial name-equivalence check. A missing
// profile name is treated as non-matching; classifier failures count as
// non-matching too.
func (r *Responder) namesMatch(ctx context.Context, log *logger.Logger, profileName, leadName string) bool {
	profileName = strings.TrimSpace(profileName)
	leadName = strings.TrimSpace(leadName)
	if profileName == "" || leadName == "" {
		return false
	}

	if strings.EqualFold(profileName, leadName) {
		return true
	}

	equivalent, err := r.classifier.NamesEquivalent(ctx, profileName, leadName)
	if err != nil {
		log.RemoteError("classifier", "names_equivalent", err)
		return false
	}
	return equivalent
}

func historyTurns(history []repository.Message) []Turn {
	turns := make([]Turn, 0, len(history))
	for _, msg := range history {
		turns = append(turns, Turn{
			FromAgent: msg.Sender == repository.SenderAgent,
			Content:   msg.Content,
		})
	}
	return turns
}

// ConversationKeyFromJID reduces a gateway JID to the digits-only
// conversation key used for lookups and debouncing.
func ConversationKeyFromJID(jid string) string {
	if at := strings.IndexByte(jid, '@'); at >= 0 {
		jid = jid[:at]
	}
	return phone.Normalize(jid)
}
