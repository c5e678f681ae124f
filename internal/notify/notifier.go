package notify

import (
	"context"
	"fmt"

	"leadbot_backend/internal/events"
	"leadbot_backend/platform/logger"
)

// Register subscribes the operator alerts to the qualification events.
func Register(bus events.Bus, mailer Mailer, log *logger.Logger) {
	n := &notifier{mailer: mailer, log: log}
	bus.Subscribe(events.FakeMismatchDetected{}.EventName(), events.HandlerFunc(n.handleFakeMismatch))
	bus.Subscribe(events.LeadFinalized{}.EventName(), events.HandlerFunc(n.handleLeadFinalized))
}

type notifier struct {
	mailer Mailer
	log    *logger.Logger
}

func (n *notifier) handleFakeMismatch(ctx context.Context, event events.Event) error {
	e, ok := event.(events.FakeMismatchDetected)
	if !ok {
		return nil
	}

	subject := fmt.Sprintf("[Leadbot] Possível lead falso: %s", e.ContactName)
	body := fmt.Sprintf(
		"O contato no número %s negou ser o lead, mas o nome do perfil do WhatsApp (%s) "+
			"é compatível com o nome do lead (%s).\n\n"+
			"Nenhuma resposta automática foi enviada. Lead no CRM: %d.\n",
		e.Number, e.ProfileName, e.ContactName, e.CRMLeadID)

	if err := n.mailer.Send(ctx, subject, body); err != nil {
		n.log.Error("fake mismatch alert failed", "crm_lead_id", e.CRMLeadID, "error", err)
	}
	return nil
}

func (n *notifier) handleLeadFinalized(ctx context.Context, event events.Event) error {
	e, ok := event.(events.LeadFinalized)
	if !ok {
		return nil
	}

	var detail string
	switch e.Reason {
	case "expired":
		detail = "O lead expirou sem identificação positiva em 24 horas."
	default:
		detail = "Todos os números do lead foram contatados e finalizados."
	}

	subject := fmt.Sprintf("[Leadbot] Lead encerrado: %s", e.ContactName)
	body := fmt.Sprintf("%s\n\nLead no CRM: %d. O lead foi movido para qualificação humana.\n",
		detail, e.CRMLeadID)

	if err := n.mailer.Send(ctx, subject, body); err != nil {
		n.log.Error("lead finalized alert failed", "crm_lead_id", e.CRMLeadID, "error", err)
	}
	return nil
}
