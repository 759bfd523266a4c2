// Package tickets provides the work-order bounded context: the manual ops
// form path for submitting, editing, and closing winter service logs.
package tickets

import (
	"winterops_backend/internal/events"
	apphttp "winterops_backend/internal/http"
	"winterops_backend/internal/tickets/handler"
	"winterops_backend/internal/tickets/repository"
	"winterops_backend/internal/tickets/service"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the tickets bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	repo    *repository.Repository
	svc     *service.Service
}

// NewModule creates and initializes the tickets module with all its dependencies.
func NewModule(pool *pgxpool.Pool, resolver service.EventResolver, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.NewRepository(pool)
	svc := service.New(repo, resolver, bus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, repo: repo, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "tickets"
}

// Repository exposes the ticket repository for cross-module wiring
// (the conversation engine and the bulk rebind pass share the table).
func (m *Module) Repository() *repository.Repository {
	return m.repo
}

// RegisterRoutes mounts ticket routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/tickets")
	group.POST("", m.handler.SubmitLog)
	group.GET("/open", m.handler.ListOpen)
	group.GET("/suggested-time", m.handler.SuggestedTime)
	group.PUT("/:id", m.handler.UpdateLog)
	group.POST("/:id/close", m.handler.CloseLog)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
