package inbound

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"

	"leadbot_backend/internal/gateway"
	"leadbot_backend/internal/leads/repository"
	"leadbot_backend/internal/scheduler"
	"leadbot_backend/platform/httpkit"
	"leadbot_backend/platform/logger"
	"leadbot_backend/platform/validator"
)

// AdminStore is the persistence surface of the operational endpoints.
type AdminStore interface {
	ResetAllConversations(ctx context.Context) error
	GetOutboundIdentity(ctx context.Context, id int64) (repository.OutboundIdentity, error)
}

// PairingSource produces a pairing code for an outbound identity instance.
type PairingSource interface {
	FetchPairingCode(ctx context.Context, instance string) (string, error)
}

// Handler handles the webhook and admin HTTP endpoints.
type Handler struct {
	service    *Service
	contacts   scheduler.ContactScheduler
	admin      AdminStore
	pairing    PairingSource
	val        *validator.Validator
	production bool
	log        *logger.Logger
}

func NewHandler(
	service *Service,
	contacts scheduler.ContactScheduler,
	admin AdminStore,
	pairing PairingSource,
	val *validator.Validator,
	production bool,
	log *logger.Logger,
) *Handler {
	return &Handler{
		service:    service,
		contacts:   contacts,
		admin:      admin,
		pairing:    pairing,
		val:        val,
		production: production,
		log:        log,
	}
}

// HandleCRMWebhook receives lead stage-change notifications from the CRM.
// POST /webhook/crm
// The CRM delivers form-encoded payloads and retries on non-2xx responses,
// so malformed bodies are acknowledged and dropped.
func (h *Handler) HandleCRMWebhook(c *gin.Context) {
	if err := c.Request.ParseForm(); err != nil {
		h.log.Warn("crm webhook with unparseable body", "error", err)
		httpkit.OK(c, gin.H{"ok": true})
		return
	}

	ids := parseCRMLeadIDs(c.Request.PostForm)
	for _, id := range ids {
		if err := h.contacts.EnqueueLeadContact(c.Request.Context(), id); err != nil {
			h.log.Error("enqueue lead contact failed", "crm_lead_id", id, "error", err)
		}
	}

	httpkit.OK(c, gin.H{"ok": true, "queued": len(ids)})
}

// HandleGatewayWebhook receives message events from the messaging gateway.
// POST /webhook/gateway
// The response is written before processing so a slow transcription or
// database call never makes the gateway retry the delivery.
func (h *Handler) HandleGatewayWebhook(c *gin.Context) {
	var event gateway.Event
	if err := c.ShouldBindJSON(&event); err != nil {
		h.log.Warn("gateway webhook with unparseable body", "error", err)
		httpkit.OK(c, gin.H{"ok": true})
		return
	}
	if err := h.val.Struct(event); err != nil {
		h.log.Warn("gateway webhook with incomplete envelope", "error", err)
		httpkit.OK(c, gin.H{"ok": true})
		return
	}

	httpkit.OK(c, gin.H{"ok": true})

	go h.service.ProcessGatewayEvent(event)
}

// HandleReset wipes all local conversation state.
// POST /admin/reset
// Refused in production; it exists for staging resets between test runs.
func (h *Handler) HandleReset(c *gin.Context) {
	if h.production {
		httpkit.Error(c, http.StatusForbidden, "reset is disabled in production", nil)
		return
	}

	if err := h.admin.ResetAllConversations(c.Request.Context()); httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, gin.H{"ok": true})
}

// HandleIdentityQR returns a pairing QR code for an outbound identity.
// GET /admin/identities/:id/qr
func (h *Handler) HandleIdentityQR(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, "invalid identity id", nil)
		return
	}

	identity, err := h.admin.GetOutboundIdentity(c.Request.Context(), id)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	code, err := h.pairing.FetchPairingCode(c.Request.Context(), identity.InstanceID)
	if err != nil {
		httpkit.HandleError(c, err)
		return
	}

	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		httpkit.Error(c, http.StatusInternalServerError, "qr encoding failed", nil)
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}

// parseCRMLeadIDs digs lead ids out of the CRM's bracketed form encoding,
// e.g. leads[status][0][id]=123 or leads[add][0][id]=123.
func parseCRMLeadIDs(form url.Values) []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	for key, values := range form {
		if !strings.HasPrefix(key, "leads[") || !strings.HasSuffix(key, "[id]") {
			continue
		}
		for _, value := range values {
			id, err := strconv.ParseInt(value, 10, 64)
			if err != nil || id <= 0 {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}
