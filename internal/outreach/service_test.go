package outreach

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"leadbot_backend/internal/crm"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/apperr"
	"leadbot_backend/platform/logger"
)

type fakeStore struct {
	agent       repository.Agent
	agentErr    error
	identity    repository.OutboundIdentity
	identityErr error
	regionAsked string
	lead        repository.Lead
	synced      []string
	next        repository.ContactNumber
	nextErr     error
	template    repository.Template
	templateErr error
	logged      []string
}

func (s *fakeStore) FindAgentByCRMUserID(ctx context.Context, crmUserID int64) (repository.Agent, error) {
	return s.agent, s.agentErr
}

func (s *fakeStore) SelectOutboundIdentity(ctx context.Context, agentID int64, region string) (repository.OutboundIdentity, error) {
	s.regionAsked = region
	return s.identity, s.identityErr
}

func (s *fakeStore) UpsertLead(ctx context.Context, params repository.UpsertLeadParams) (repository.Lead, error) {
	s.lead = repository.Lead{
		ID: 7, CRMLeadID: params.CRMLeadID, CRMContactID: params.CRMContactID,
		AgentID: params.AgentID, ContactName: params.ContactName,
		Status: repository.LeadInProgress,
	}
	return s.lead, nil
}

func (s *fakeStore) SyncNumbers(ctx context.Context, leadID int64, numbers []string) error {
	s.synced = numbers
	return nil
}

func (s *fakeStore) NextUntriedNumber(ctx context.Context, leadID int64) (repository.ContactNumber, error) {
	return s.next, s.nextErr
}

func (s *fakeStore) PickTemplate(ctx context.Context, kind string) (repository.Template, error) {
	return s.template, s.templateErr
}

func (s *fakeStore) LogInitialContact(ctx context.Context, numberID int64, content string) error {
	s.logged = append(s.logged, content)
	return nil
}

type fakeCRM struct {
	lead       *crm.Lead
	leadErr    error
	contact    *crm.Contact
	contactErr error
}

func (c *fakeCRM) GetLead(ctx context.Context, id int64) (*crm.Lead, error) {
	return c.lead, c.leadErr
}

func (c *fakeCRM) GetContact(ctx context.Context, id int64) (*crm.Contact, error) {
	return c.contact, c.contactErr
}

type fakeGateway struct {
	sends     []string
	instances []string
	err       error
}

func (g *fakeGateway) SendText(ctx context.Context, number, text, instance string) (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.sends = append(g.sends, text)
	g.instances = append(g.instances, instance)
	return "MSG-1", nil
}

func crmLead(region string) *crm.Lead {
	lead := &crm.Lead{ID: 42, Name: "Gustavo Silva", ResponsibleUserID: 9}
	lead.Embedded.Contacts = []crm.EmbeddedContact{{ID: 100, IsMain: true}}
	if region != "" {
		lead.CustomFields = []crm.CustomField{{
			FieldName: "Estado",
			Values:    []crm.CustomFieldValue{{Value: region}},
		}}
	}
	return lead
}

func crmContact(numbers ...string) *crm.Contact {
	values := make([]crm.CustomFieldValue, 0, len(numbers))
	for _, n := range numbers {
		values = append(values, crm.CustomFieldValue{Value: n})
	}
	return &crm.Contact{
		ID:   100,
		Name: "Gustavo Silva",
		CustomFields: []crm.CustomField{{
			FieldCode: "PHONE",
			Values:    values,
		}},
	}
}

func readyStore() *fakeStore {
	return &fakeStore{
		agent:       repository.Agent{ID: 3, CRMUserID: 9},
		identity:    repository.OutboundIdentity{ID: 1, AgentID: 3, Number: "+5511900000000", InstanceID: "vendas01"},
		next:        repository.ContactNumber{ID: 55, LeadID: 7, Number: "+5511987654321", Status: repository.NumberUntried},
		templateErr: repository.ErrNotFound,
	}
}

func newService(store *fakeStore, crmClient *fakeCRM, gw *fakeGateway) *Service {
	svc := NewService(store, crmClient, gw, "Estado", logger.New("development"))
	svc.now = func() time.Time {
		return time.Date(2026, time.March, 10, 13, 0, 0, 0, time.UTC) // 10:00 in São Paulo
	}
	return svc
}

func TestContactLeadSendsOpening(t *testing.T) {
	store := readyStore()
	gw := &fakeGateway{}
	svc := newService(store, &fakeCRM{lead: crmLead("SP"), contact: crmContact("+55 (11) 98765-4321")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("ContactLead: %v", err)
	}

	if store.regionAsked != "SP" {
		t.Fatalf("region = %q, want SP", store.regionAsked)
	}
	if len(store.synced) != 1 || store.synced[0] != "+5511987654321" {
		t.Fatalf("synced numbers = %v", store.synced)
	}
	if len(gw.sends) != 1 {
		t.Fatalf("expected one send, got %d", len(gw.sends))
	}
	if !strings.Contains(gw.sends[0], "Bom dia") || !strings.Contains(gw.sends[0], "Gustavo") {
		t.Fatalf("opening text = %q", gw.sends[0])
	}
	if gw.instances[0] != "vendas01" {
		t.Fatalf("instance = %q", gw.instances[0])
	}
	if len(store.logged) != 1 || store.logged[0] != gw.sends[0] {
		t.Fatalf("logged contact = %v", store.logged)
	}
}

func TestContactLeadRegionFallsBackToWildcard(t *testing.T) {
	store := readyStore()
	svc := newService(store, &fakeCRM{lead: crmLead(""), contact: crmContact("+5511987654321")}, &fakeGateway{})

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("ContactLead: %v", err)
	}
	if store.regionAsked != repository.WildcardRegion {
		t.Fatalf("region = %q, want %q", store.regionAsked, repository.WildcardRegion)
	}
}

func TestContactLeadMissingLeadEndsFlow(t *testing.T) {
	gw := &fakeGateway{}
	svc := newService(readyStore(), &fakeCRM{leadErr: apperr.NotFound("crm resource not found")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("missing lead must not be retried, got %v", err)
	}
	if len(gw.sends) != 0 {
		t.Fatalf("nothing should be sent")
	}
}

func TestContactLeadTransientCRMFailureIsReturned(t *testing.T) {
	svc := newService(readyStore(), &fakeCRM{leadErr: apperr.Remote("crm returned 502", nil)}, &fakeGateway{})

	if err := svc.ContactLead(context.Background(), 42); err == nil {
		t.Fatal("transient failure must be returned for retry")
	}
}

func TestContactLeadNoIdentityEndsFlow(t *testing.T) {
	store := readyStore()
	store.identityErr = repository.ErrNotFound
	gw := &fakeGateway{}
	svc := newService(store, &fakeCRM{lead: crmLead("SP"), contact: crmContact("+5511987654321")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("identity miss must not be retried, got %v", err)
	}
	if len(gw.sends) != 0 {
		t.Fatalf("nothing should be sent without an identity")
	}
}

func TestContactLeadNoUsableNumbersEndsFlow(t *testing.T) {
	store := readyStore()
	gw := &fakeGateway{}
	svc := newService(store, &fakeCRM{lead: crmLead("SP"), contact: crmContact("1234", "")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("ContactLead: %v", err)
	}
	if len(gw.sends) != 0 || store.synced != nil {
		t.Fatalf("short numbers must be filtered out")
	}
}

func TestContactLeadSendFailureIsReturned(t *testing.T) {
	store := readyStore()
	gw := &fakeGateway{err: errors.New("gateway down")}
	svc := newService(store, &fakeCRM{lead: crmLead("SP"), contact: crmContact("+5511987654321")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err == nil {
		t.Fatal("send failure must be returned for retry")
	}
	if len(store.logged) != 0 {
		t.Fatalf("failed send must not be logged as contact")
	}
}

func TestContactLeadUsesStoredTemplate(t *testing.T) {
	store := readyStore()
	store.template = repository.Template{ID: 1, Kind: "opening", Body: "Olá {nome}!"}
	store.templateErr = nil
	gw := &fakeGateway{}
	svc := newService(store, &fakeCRM{lead: crmLead("SP"), contact: crmContact("+5511987654321")}, gw)

	if err := svc.ContactLead(context.Background(), 42); err != nil {
		t.Fatalf("ContactLead: %v", err)
	}
	if gw.sends[0] != "Olá Gustavo!" {
		t.Fatalf("rendered text = %q", gw.sends[0])
	}
}

func TestUsableNumbersDedupesAndFilters(t *testing.T) {
	got := usableNumbers([]string{
		"+55 (11) 98765-4321",
		"5511987654321",
		"1234",
		"",
	})
	if len(got) != 1 || got[0] != "+5511987654321" {
		t.Fatalf("usableNumbers = %v", got)
	}
}
