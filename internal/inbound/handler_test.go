package inbound

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	apphttp "leadbot_backend/internal/http"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/platform/config"
	"leadbot_backend/platform/logger"
	"leadbot_backend/platform/validator"
)

type fakeContacts struct {
	enqueued []int64
}

func (c *fakeContacts) EnqueueLeadContact(ctx context.Context, crmLeadID int64) error {
	c.enqueued = append(c.enqueued, crmLeadID)
	return nil
}

type fakeAdminStore struct {
	resets   int
	identity repository.OutboundIdentity
	getErr   error
}

func (s *fakeAdminStore) ResetAllConversations(ctx context.Context) error {
	s.resets++
	return nil
}

func (s *fakeAdminStore) GetOutboundIdentity(ctx context.Context, id int64) (repository.OutboundIdentity, error) {
	if s.getErr != nil {
		return repository.OutboundIdentity{}, s.getErr
	}
	return s.identity, nil
}

type fakePairing struct {
	code string
	err  error
}

func (p *fakePairing) FetchPairingCode(ctx context.Context, instance string) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	return p.code, nil
}

type testEnv struct {
	engine   *gin.Engine
	contacts *fakeContacts
	admin    *fakeAdminStore
	store    *fakeStore
	deb      *fakeDebouncer
}

func newTestEnv(t *testing.T, production bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.New("development")
	store := &fakeStore{conv: openConversation()}
	deb := &fakeDebouncer{}
	service := NewService(store, &fakeMedia{}, &fakeTranscriber{}, deb, log)

	contacts := &fakeContacts{}
	admin := &fakeAdminStore{
		identity: repository.OutboundIdentity{ID: 1, InstanceID: "vendas01"},
	}
	handler := NewHandler(service, contacts, admin, &fakePairing{code: "PAIR-1234"}, validator.New(), production, log)

	cfg := &config.Config{
		CRMWebhookToken:     "crm-secret",
		GatewayWebhookToken: "gw-secret",
	}

	engine := gin.New()
	ctx := &apphttp.RouterContext{
		Engine:   engine,
		API:      engine.Group("/api"),
		Webhooks: engine.Group("/webhook"),
		Admin:    engine.Group("/admin"),
		Webhook:  cfg,
	}
	NewModule(handler).RegisterRoutes(ctx)

	return &testEnv{engine: engine, contacts: contacts, admin: admin, store: store, deb: deb}
}

func TestCRMWebhookEnqueuesLeads(t *testing.T) {
	env := newTestEnv(t, false)

	form := url.Values{}
	form.Set("leads[status][0][id]", "42")
	form.Set("leads[add][0][id]", "43")
	form.Set("leads[status][0][status_id]", "999")

	req := httptest.NewRequest(http.MethodPost, "/webhook/crm", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Webhook-Token", "crm-secret")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(env.contacts.enqueued) != 2 {
		t.Fatalf("enqueued = %v", env.contacts.enqueued)
	}
}

func TestCRMWebhookRejectsBadToken(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/webhook/crm", strings.NewReader("leads[add][0][id]=42"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("X-Webhook-Token", "wrong")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
	if len(env.contacts.enqueued) != 0 {
		t.Fatal("nothing should be enqueued without a valid token")
	}
}

func TestGatewayWebhookAcknowledgesImmediately(t *testing.T) {
	env := newTestEnv(t, false)

	body := `{"event":"messages.upsert","instance":"vendas01",` +
		`"data":{"key":{"remoteJid":"5511987654321@s.whatsapp.net","id":"M1"},` +
		`"pushName":"Gustavo","message":{"conversation":"oi"}}}`

	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", "gw-secret")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestGatewayWebhookDropsIncompleteEnvelope(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway", strings.NewReader(`{"data":{}}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Webhook-Token", "gw-secret")
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	// Still acknowledged so the gateway does not retry, but never processed.
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if adds := env.deb.all(); len(adds) != 0 {
		t.Fatalf("debounced messages = %d, want 0", len(adds))
	}
}

func TestResetRefusedInProduction(t *testing.T) {
	env := newTestEnv(t, true)

	req := httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
	if env.admin.resets != 0 {
		t.Fatal("reset must not run in production")
	}
}

func TestResetWipesConversations(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodPost, "/admin/reset", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if env.admin.resets != 1 {
		t.Fatalf("resets = %d", env.admin.resets)
	}
}

func TestIdentityQRReturnsPNG(t *testing.T) {
	env := newTestEnv(t, false)

	req := httptest.NewRequest(http.MethodGet, "/admin/identities/1/qr", nil)
	rec := httptest.NewRecorder()
	env.engine.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Fatalf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Fatal("empty image body")
	}
}

func TestParseCRMLeadIDsDedupes(t *testing.T) {
	form := url.Values{}
	form.Add("leads[status][0][id]", "42")
	form.Add("leads[add][0][id]", "42")
	form.Add("leads[add][1][id]", "0")
	form.Add("unrelated", "junk")

	ids := parseCRMLeadIDs(form)
	if len(ids) != 1 || ids[0] != 42 {
		t.Fatalf("ids = %v", ids)
	}
}
