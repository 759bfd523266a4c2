// Package routes provides the route sequencer bounded context: activating
// a route opens one ticket per property, and completions advance the crew
// through the sequence one property at a time.
package routes

import (
	"winterops_backend/internal/events"
	apphttp "winterops_backend/internal/http"
	"winterops_backend/internal/routes/handler"
	"winterops_backend/internal/routes/repository"
	"winterops_backend/internal/routes/service"
	"winterops_backend/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Module is the routes bounded context module implementing http.Module.
type Module struct {
	handler *handler.Handler
	svc     *service.Service
}

// NewModule creates and initializes the routes module.
func NewModule(pool *pgxpool.Pool, tickets service.TicketCreator, resolver service.EventResolver, bus events.Bus, log *logger.Logger) *Module {
	repo := repository.NewRepository(pool)
	svc := service.New(repo, tickets, resolver, bus, log)
	h := handler.New(svc)

	return &Module{handler: h, svc: svc}
}

// Name returns the module identifier.
func (m *Module) Name() string {
	return "routes"
}

// Service exposes the sequencer; the conversation state machine completes
// route tickets through it.
func (m *Module) Service() *service.Service {
	return m.svc
}

// RegisterRoutes mounts route endpoints on the provided router context.
func (m *Module) RegisterRoutes(ctx *apphttp.RouterContext) {
	group := ctx.Protected.Group("/routes")
	group.GET("", m.handler.List)
	group.GET("/:id", m.handler.Get)
	group.POST("/:id/activate", m.handler.Activate)
	group.GET("/:id/progress", m.handler.Progress)
	group.POST("/tickets/:id/complete", m.handler.CompleteTicket)
}

// Compile-time check that Module implements http.Module
var _ apphttp.Module = (*Module)(nil)
