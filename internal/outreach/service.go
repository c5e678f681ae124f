// Package outreach implements the initial contact flow: resolve a CRM lead
// to an outbound identity, pick the next untried number, and send the
// opening message.
package outreach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadbot_backend/internal/crm"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/internal/messages"
	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/logger"
	"leadbot_backend/platform/phone"
)

// minPhoneDigits filters out landline fragments and junk values that
// sometimes land in the CRM phone field.
const minPhoneDigits = 9

// Store is the persistence surface the contact flow needs.
type Store interface {
	FindAgentByCRMUserID(ctx context.Context, crmUserID int64) (repository.Agent, error)
	SelectOutboundIdentity(ctx context.Context, agentID int64, region string) (repository.OutboundIdentity, error)
	UpsertLead(ctx context.Context, params repository.UpsertLeadParams) (repository.Lead, error)
	SyncNumbers(ctx context.Context, leadID int64, numbers []string) error
	NextUntriedNumber(ctx context.Context, leadID int64) (repository.ContactNumber, error)
	PickTemplate(ctx context.Context, kind string) (repository.Template, error)
	LogInitialContact(ctx context.Context, numberID int64, content string) error
}

// CRM is the lead-side collaborator.
type CRM interface {
	GetLead(ctx context.Context, id int64) (*crm.Lead, error)
	GetContact(ctx context.Context, id int64) (*crm.Contact, error)
}

// Gateway sends the opening message.
type Gateway interface {
	SendText(ctx context.Context, number, text, instance string) (string, error)
}

// Service drives the initial contact flow for one CRM lead at a time.
type Service struct {
	store       Store
	crm         CRM
	gateway     Gateway
	log         *logger.Logger
	regionField string
	now         func() time.Time
}

func NewService(store Store, crmClient CRM, gateway Gateway, regionField string, log *logger.Logger) *Service {
	return &Service{
		store:       store,
		crm:         crmClient,
		gateway:     gateway,
		log:         log,
		regionField: regionField,
		now:         time.Now,
	}
}

// ContactLead performs the initial contact for a CRM lead. Data misses end
// the flow with a log line and a nil error so the task is not retried;
// transient failures are returned so the queue retries them.
func (s *Service) ContactLead(ctx context.Context, crmLeadID int64) error {
	log := s.log.WithContext(ctx)

	lead, err := s.crm.GetLead(ctx, crmLeadID)
	if err != nil {
		return s.miss(log, crmLeadID, "lead lookup", err)
	}

	contactID := lead.MainContactID()
	if contactID == 0 {
		log.OutreachEvent("initial_contact_skipped", crmLeadID, "", false, "lead has no contacts")
		return nil
	}
	contact, err := s.crm.GetContact(ctx, contactID)
	if err != nil {
		return s.miss(log, crmLeadID, "contact lookup", err)
	}

	region := crm.CustomFieldText(lead.CustomFields, s.regionField)
	if region == "" {
		region = repository.WildcardRegion
	}

	agent, err := s.store.FindAgentByCRMUserID(ctx, lead.ResponsibleUserID)
	if err != nil {
		return s.miss(log, crmLeadID, "agent lookup", err)
	}
	identity, err := s.store.SelectOutboundIdentity(ctx, agent.ID, region)
	if err != nil {
		return s.miss(log, crmLeadID, "identity selection", err)
	}

	numbers := usableNumbers(contact.PhoneNumbers())
	if len(numbers) == 0 {
		log.OutreachEvent("initial_contact_skipped", crmLeadID, "", false, "contact has no usable numbers")
		return nil
	}

	contactName := contact.Name
	if contactName == "" {
		contactName = lead.Name
	}
	localLead, err := s.store.UpsertLead(ctx, repository.UpsertLeadParams{
		CRMLeadID:    crmLeadID,
		CRMContactID: contactID,
		AgentID:      agent.ID,
		ContactName:  contactName,
	})
	if err != nil {
		return fmt.Errorf("upsert lead %d: %w", crmLeadID, err)
	}
	if err := s.store.SyncNumbers(ctx, localLead.ID, numbers); err != nil {
		return fmt.Errorf("sync numbers for lead %d: %w", crmLeadID, err)
	}

	next, err := s.store.NextUntriedNumber(ctx, localLead.ID)
	if err != nil {
		return s.miss(log, crmLeadID, "next number", err)
	}

	text := messages.Render(s.openingBody(ctx, log), messages.Values{
		ContactName: contactName,
		AgentName:   agent.Name,
		Now:         s.now(),
	})
	if _, err := s.gateway.SendText(ctx, next.Number, text, identity.InstanceID); err != nil {
		log.OutreachEvent("initial_contact_failed", crmLeadID, next.Number, false, err.Error())
		return fmt.Errorf("send opening to %s: %w", next.Number, err)
	}

	if err := s.store.LogInitialContact(ctx, next.ID, text); err != nil {
		log.DatabaseError("log initial contact", err)
		return err
	}

	log.OutreachEvent("initial_contact_sent", crmLeadID, next.Number, true, "")
	return nil
}

// openingBody returns the stored opening template, falling back to the
// built-in default when none is configured.
func (s *Service) openingBody(ctx context.Context, log *logger.Logger) string {
	tmpl, err := s.store.PickTemplate(ctx, messages.KindOpening)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			log.DatabaseError("pick opening template", err)
		}
		return messages.DefaultOpening
	}
	return tmpl.Body
}

// miss distinguishes data misses (logged, flow ends) from transient
// failures (returned for retry).
func (s *Service) miss(log *logger.Logger, crmLeadID int64, step string, err error) error {
	if errors.Is(err, repository.ErrNotFound) || apperr.Is(err, apperr.KindNotFound) {
		log.OutreachEvent("initial_contact_skipped", crmLeadID, "", false, step+": not found")
		return nil
	}
	return fmt.Errorf("%s for lead %d: %w", step, crmLeadID, err)
}

// usableNumbers normalizes and dedupes the raw CRM phone values, dropping
// entries too short to be a mobile number.
func usableNumbers(raw []string) []string {
	seen := make(map[string]struct{}, len(raw))
	var numbers []string
	for _, value := range raw {
		normalized := phone.NormalizeE164(value)
		if normalized == "" || phone.DigitCount(normalized) < minPhoneDigits {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		numbers = append(numbers, normalized)
	}
	return numbers
}
