package inbound

import (
	apphttp "leadbot_backend/internal/http"
	"leadbot_backend/platform/httpkit"
)

// Module is the inbound bounded context implementing http.Module.
type Module struct {
	handler *Handler
}

func NewModule(handler *Handler) *Module {
	return &Module{handler: handler}
}

func (m *Module) Name() string {
	return "inbound"
}

// RegisterRoutes mounts the webhook and admin routes. Each webhook carries
// the shared secret of its collaborator in the X-Webhook-Token header.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	ctx.Webhooks.POST("/crm",
		httpkit.TokenRequired("X-Webhook-Token", ctx.Webhook.GetCRMWebhookToken()),
		m.handler.HandleCRMWebhook)
	ctx.Webhooks.POST("/gateway",
		httpkit.TokenRequired("X-Webhook-Token", ctx.Webhook.GetGatewayWebhookToken()),
		m.handler.HandleGatewayWebhook)

	ctx.Admin.POST("/reset", m.handler.HandleReset)
	ctx.Admin.GET("/identities/:id/qr", m.handler.HandleIdentityQR)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
