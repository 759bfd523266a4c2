// Package sms is the SMS transport module: the provider webhook, the
// outbound gateway, and the admin conversation views. The conversation
// state machine itself lives in internal/conversation.
package sms

import (
	convrepo "winterops_backend/internal/conversation/repository"
	convsvc "winterops_backend/internal/conversation/service"
	apphttp "winterops_backend/internal/http"
	"winterops_backend/platform/config"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/validator"
)

// Module is the SMS bounded context module implementing http.Module.
type Module struct {
	handler *Handler
	gateway *Gateway
	dedupe  *Dedupe
}

// NewModule creates and initializes the SMS module with all its dependencies.
func NewModule(conversations *convsvc.Service, repo *convrepo.Repository, smsCfg config.SMSConfig, redisCfg config.RedisConfig, val *validator.Validator, log *logger.Logger) *Module {
	gateway := NewGateway(smsCfg, log)
	dedupe := NewDedupe(redisCfg, log)
	handler := NewHandler(conversations, repo, dedupe, gateway, smsCfg.GetDefaultRegion(), val, log)

	return &Module{
		handler: handler,
		gateway: gateway,
		dedupe:  dedupe,
	}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "sms"
}

// Gateway exposes the outbound client for other modules' notifications.
func (m *Module) Gateway() *Gateway {
	return m.gateway
}

// Close releases the dedupe cache connection.
func (m *Module) Close() error {
	return m.dedupe.Close()
}

// RegisterRoutes mounts SMS routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	// Provider webhook (no JWT; signature lives with the provider account,
	// rate limited per IP).
	webhook := ctx.V1.Group("/sms")
	webhook.Use(ctx.WebhookRateLimiter.RateLimit())
	webhook.POST("/webhook", m.handler.Webhook)

	// Admin conversation views.
	admin := ctx.Admin.Group("/sms")
	admin.GET("/conversations", m.handler.ListConversations)
	admin.GET("/conversations/:id/messages", m.handler.ListMessages)
	admin.POST("/notify-assignment", m.handler.NotifyAssignment)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
