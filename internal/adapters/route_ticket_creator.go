package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	routesvc "winterops_backend/internal/routes/service"
	ticketdomain "winterops_backend/internal/tickets/domain"
	ticketrepo "winterops_backend/internal/tickets/repository"
)

// RouteTicketCreator adapts the tickets repository for route activation,
// satisfying the sequencer's TicketCreator port.
type RouteTicketCreator struct {
	repo *ticketrepo.Repository
}

// NewRouteTicketCreator creates a new route ticket adapter.
func NewRouteTicketCreator(repo *ticketrepo.Repository) *RouteTicketCreator {
	return &RouteTicketCreator{repo: repo}
}

// CreateRouteTicket opens one ticket carrying the route fields.
func (a *RouteTicketCreator) CreateRouteTicket(ctx context.Context, params routesvc.TicketParams) (uuid.UUID, error) {
	routeStatus := ticketdomain.RouteStatus(params.RouteStatus)
	ticket, err := a.repo.Create(ctx, ticketrepo.CreateParams{
		PropertyID:    params.PropertyID,
		OwnerID:       params.OwnerID,
		TimeIn:        params.TimeIn,
		WinterEventID: params.WinterEventID,
		RouteID:       &params.RouteID,
		RouteSequence: &params.Sequence,
		RouteStatus:   &routeStatus,
		Status:        ticketdomain.StatusOpen,
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("route ticket adapter: create: %w", err)
	}
	return ticket.ID, nil
}

// Compile-time check that RouteTicketCreator implements the sequencer port.
var _ routesvc.TicketCreator = (*RouteTicketCreator)(nil)
