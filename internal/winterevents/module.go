// Package winterevents provides the storm-window bounded context: event
// lifecycle management and the timestamp resolver that binds tickets to
// storm windows.
package winterevents

import (
	"winterops_backend/internal/events"
	apphttp "winterops_backend/internal/http"
	"winterops_backend/internal/winterevents/handler"
	"winterops_backend/internal/winterevents/repository"
	"winterops_backend/internal/winterevents/service"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the winter events bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the winter events module.
// scheduler may be nil; window edits then rebind inline.
func NewModule(pool *pgxpool.Pool, tickets service.TicketStore, scheduler service.RebindScheduler, bus events.Bus, val *validator.Validator, log *logger.Logger) *Module {
	repo := repository.NewRepository(pool)
	svc := service.New(repo, tickets, scheduler, bus, log)
	h := handler.New(svc, val)

	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "winterevents"
}

// Service exposes the event service; the tickets and routes modules use it
// as their event resolver.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts winter event routes on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/winter-events")
	group.GET("", m.handler.List)
	group.POST("", m.handler.Create)
	group.PUT("/:id", m.handler.Update)
	group.POST("/:id/complete", m.handler.Complete)
	group.POST("/:id/cancel", m.handler.Cancel)
	group.POST("/reassign", m.handler.Reassign)

	// Deleting an event orphans its tickets; admin only.
	ctx.Admin.DELETE("/winter-events/:id", m.handler.Delete)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
