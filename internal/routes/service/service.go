// Package service implements the route sequencer: route activation fans out
// one ticket per property, and completing the active property atomically
// advances the crew to the next stop.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/routes/domain"
	"winterops_backend/internal/routes/repository"
	ticketdomain "winterops_backend/internal/tickets/domain"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/keymutex"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

// activateRetries bounds the compare-and-swap retry loop when activating a
// successor. Under the keyed mutex a retry should never be needed; the loop
// covers route state changed through another code path.
const activateRetries = 3

// RouteRepository is the persistence contract for the sequencer.
type RouteRepository interface {
	GetRoute(ctx context.Context, id uuid.UUID) (domain.Route, error)
	ListRoutes(ctx context.Context) ([]domain.Route, error)
	ListProperties(ctx context.Context, routeID uuid.UUID) ([]domain.RouteProperty, error)
	GetRouteTicket(ctx context.Context, id uuid.UUID) (domain.RouteTicket, error)
	CompleteTicket(ctx context.Context, id uuid.UUID, timeOut time.Time) (bool, error)
	ActivateTicket(ctx context.Context, id uuid.UUID, timeIn time.Time) (bool, error)
	NextQueued(ctx context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID, afterSeq int) (*domain.RouteTicket, error)
	ActiveTicketForCrew(ctx context.Context, crewID uuid.UUID, eventID *uuid.UUID) (*domain.RouteTicket, error)
	Progress(ctx context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID) (domain.Progress, error)
	CrewName(ctx context.Context, crewID uuid.UUID) (string, error)
}

// TicketParams describes one route ticket to fan out during activation.
type TicketParams struct {
	PropertyID    uuid.UUID
	OwnerID       uuid.UUID
	RouteID       uuid.UUID
	Sequence      int
	RouteStatus   domain.RouteStatus
	TimeIn        time.Time
	WinterEventID *uuid.UUID
}

// TicketCreator is the slice of the ticket repository route activation needs.
type TicketCreator interface {
	CreateRouteTicket(ctx context.Context, params TicketParams) (uuid.UUID, error)
}

// EventResolver supplies the active winter event for activation and progress.
type EventResolver interface {
	ActiveEventID(ctx context.Context) (*uuid.UUID, error)
}

// Service implements route sequencing operations.
type Service struct {
	repo     RouteRepository
	tickets  TicketCreator
	resolver EventResolver
	keys     *keymutex.KeyMutex
	bus      events.Bus
	log      *logger.Logger
}

// New creates the route sequencer service.
func New(repo RouteRepository, tickets TicketCreator, resolver EventResolver, bus events.Bus, log *logger.Logger) *Service {
	return &Service{
		repo:     repo,
		tickets:  tickets,
		resolver: resolver,
		keys:     keymutex.New(),
		bus:      bus,
		log:      log,
	}
}

// CompletionResult is the outcome of completing the active property.
type CompletionResult struct {
	NextPropertyName *string         `json:"next_property_name"`
	RouteComplete    bool            `json:"route_complete"`
	Progress         domain.Progress `json:"progress"`
}

// CompleteCurrentProperty closes the crew's active route ticket and
// activates the next queued stop on the same route for the same event.
// The (route, event, crew) mutex serializes concurrent completions; the
// repository's conditional updates keep a lost race harmless.
func (s *Service) CompleteCurrentProperty(ctx context.Context, ticketID, callerID uuid.UUID, privileged bool) (CompletionResult, error) {
	ticket, err := s.getTicket(ctx, ticketID)
	if err != nil {
		return CompletionResult{}, err
	}
	if !privileged && ticket.OwnerID != callerID {
		return CompletionResult{}, apperr.Forbidden("you may only complete your own route tickets")
	}
	if !ticket.OnRoute() {
		return CompletionResult{}, apperr.Validation("ticket is not part of a route")
	}

	routeID, crewID, eventID := *ticket.RouteID, ticket.OwnerID, ticket.WinterEventID
	unlock := s.keys.Lock(seqKey(routeID, eventID, crewID))
	defer unlock()

	now := ticketdomain.Snap(time.Now())
	completed, err := s.repo.CompleteTicket(ctx, ticket.ID, now)
	if err != nil {
		return CompletionResult{}, apperr.Wrap(apperr.KindInternal, "failed to complete route ticket", err)
	}
	if !completed {
		return CompletionResult{}, apperr.Conflict("route ticket is not active")
	}

	activated, err := s.activateSuccessor(ctx, routeID, eventID, crewID, *ticket.Sequence)
	if err != nil {
		return CompletionResult{}, err
	}

	progress, err := s.repo.Progress(ctx, routeID, eventID, crewID)
	if err != nil {
		return CompletionResult{}, apperr.Wrap(apperr.KindInternal, "failed to load route progress", err)
	}

	result := CompletionResult{Progress: progress}
	if activated != nil {
		result.NextPropertyName = &activated.PropertyName
		s.log.RouteAdvance(routeID.String(), crewID.String(), ticket.ID.String(), activated.ID.String())
		s.bus.Publish(ctx, events.RouteAdvanced{
			BaseEvent:       events.NewBaseEvent(),
			RouteID:         routeID,
			CrewID:          crewID,
			CompletedTicket: ticket.ID,
			ActivatedTicket: activated.ID,
			NextProperty:    activated.PropertyName,
		})
		return result, nil
	}

	result.RouteComplete = progress.Done()
	if result.RouteComplete {
		s.publishRouteCompleted(ctx, routeID, crewID, eventID, progress)
	}
	return result, nil
}

// activateSuccessor finds and activates the next queued ticket. A failed
// compare-and-swap re-reads the successor and tries again.
func (s *Service) activateSuccessor(ctx context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID, afterSeq int) (*domain.RouteTicket, error) {
	for attempt := 0; attempt < activateRetries; attempt++ {
		next, err := s.repo.NextQueued(ctx, routeID, eventID, crewID, afterSeq)
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to find next route property", err)
		}
		if next == nil {
			return nil, nil
		}
		ok, err := s.repo.ActivateTicket(ctx, next.ID, ticketdomain.Snap(time.Now()))
		if err != nil {
			return nil, apperr.Wrap(apperr.KindInternal, "failed to activate next route property", err)
		}
		if ok {
			return next, nil
		}
		s.log.Warn("route activation lost compare-and-swap, retrying", "route_id", routeID, "ticket_id", next.ID)
	}
	return nil, apperr.Internal("could not activate next route property")
}

// ActivationResult is the outcome of starting a route for a crew.
type ActivationResult struct {
	RouteID       uuid.UUID       `json:"route_id"`
	WinterEventID *uuid.UUID      `json:"winter_event_id,omitempty"`
	TicketsOpened int             `json:"tickets_opened"`
	FirstProperty string          `json:"first_property"`
	Progress      domain.Progress `json:"progress"`
}

// ActivateRoute fans out one queued ticket per route property for the crew
// under the active winter event and activates the first stop. A crew with
// an active route ticket for the event must finish it first.
func (s *Service) ActivateRoute(ctx context.Context, routeID, crewID uuid.UUID) (ActivationResult, error) {
	if _, err := s.getRoute(ctx, routeID); err != nil {
		return ActivationResult{}, err
	}

	eventID, err := s.resolver.ActiveEventID(ctx)
	if err != nil {
		return ActivationResult{}, apperr.Wrap(apperr.KindInternal, "failed to resolve active winter event", err)
	}

	unlock := s.keys.Lock(seqKey(routeID, eventID, crewID))
	defer unlock()

	active, err := s.repo.ActiveTicketForCrew(ctx, crewID, eventID)
	if err != nil {
		return ActivationResult{}, apperr.Wrap(apperr.KindInternal, "failed to check active route tickets", err)
	}
	if active != nil {
		return ActivationResult{}, apperr.Conflict(fmt.Sprintf("finish the current property (%s) first", active.PropertyName))
	}

	props, err := s.repo.ListProperties(ctx, routeID)
	if err != nil {
		return ActivationResult{}, apperr.Wrap(apperr.KindInternal, "failed to load route properties", err)
	}
	if len(props) == 0 {
		return ActivationResult{}, apperr.Validation("route has no properties")
	}

	now := ticketdomain.Snap(time.Now())
	var firstTicket uuid.UUID
	for i, prop := range props {
		status := domain.RouteQueued
		if i == 0 {
			status = domain.RouteActive
		}
		id, err := s.tickets.CreateRouteTicket(ctx, TicketParams{
			PropertyID:    prop.PropertyID,
			OwnerID:       crewID,
			RouteID:       routeID,
			Sequence:      prop.Sequence,
			RouteStatus:   status,
			TimeIn:        now,
			WinterEventID: eventID,
		})
		if err != nil {
			return ActivationResult{}, apperr.Wrap(apperr.KindInternal, "failed to open route tickets", err)
		}
		if i == 0 {
			firstTicket = id
		}
	}

	s.bus.Publish(ctx, events.TicketOpened{
		BaseEvent:     events.NewBaseEvent(),
		TicketID:      firstTicket,
		PropertyID:    props[0].PropertyID,
		OwnerID:       crewID,
		WinterEventID: eventID,
		Source:        "route",
		TimeIn:        now,
	})

	progress, err := s.repo.Progress(ctx, routeID, eventID, crewID)
	if err != nil {
		return ActivationResult{}, apperr.Wrap(apperr.KindInternal, "failed to load route progress", err)
	}
	return ActivationResult{
		RouteID:       routeID,
		WinterEventID: eventID,
		TicketsOpened: len(props),
		FirstProperty: props[0].PropertyName,
		Progress:      progress,
	}, nil
}

// Progress returns the crew's position on the route under the active event.
func (s *Service) Progress(ctx context.Context, routeID, crewID uuid.UUID) (domain.Progress, error) {
	if _, err := s.getRoute(ctx, routeID); err != nil {
		return domain.Progress{}, err
	}
	eventID, err := s.resolver.ActiveEventID(ctx)
	if err != nil {
		return domain.Progress{}, apperr.Wrap(apperr.KindInternal, "failed to resolve active winter event", err)
	}
	progress, err := s.repo.Progress(ctx, routeID, eventID, crewID)
	if err != nil {
		return domain.Progress{}, apperr.Wrap(apperr.KindInternal, "failed to load route progress", err)
	}
	return progress, nil
}

// List returns all routes.
func (s *Service) List(ctx context.Context) ([]domain.Route, error) {
	routes, err := s.repo.ListRoutes(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list routes", err)
	}
	return routes, nil
}

// Get returns one route with its ordered properties.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (domain.Route, []domain.RouteProperty, error) {
	route, err := s.getRoute(ctx, id)
	if err != nil {
		return domain.Route{}, nil, err
	}
	props, err := s.repo.ListProperties(ctx, id)
	if err != nil {
		return domain.Route{}, nil, apperr.Wrap(apperr.KindInternal, "failed to load route properties", err)
	}
	return route, props, nil
}

func (s *Service) publishRouteCompleted(ctx context.Context, routeID, crewID uuid.UUID, eventID *uuid.UUID, progress domain.Progress) {
	route, err := s.repo.GetRoute(ctx, routeID)
	if err != nil {
		s.log.Error("failed to load route for completion event", "route_id", routeID, "error", err)
	}
	crewName, err := s.repo.CrewName(ctx, crewID)
	if err != nil {
		s.log.Error("failed to load crew name for completion event", "crew_id", crewID, "error", err)
	}
	s.bus.Publish(ctx, events.RouteCompleted{
		BaseEvent:     events.NewBaseEvent(),
		RouteID:       routeID,
		RouteName:     route.Name,
		CrewID:        crewID,
		CrewName:      crewName,
		WinterEventID: eventID,
		Completed:     progress.Completed,
		Total:         progress.Total,
	})
}

func (s *Service) getRoute(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	route, err := s.repo.GetRoute(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrRouteNotFound) {
			return domain.Route{}, apperr.NotFound("route not found")
		}
		return domain.Route{}, apperr.Wrap(apperr.KindInternal, "failed to load route", err)
	}
	return route, nil
}

func (s *Service) getTicket(ctx context.Context, id uuid.UUID) (domain.RouteTicket, error) {
	ticket, err := s.repo.GetRouteTicket(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return domain.RouteTicket{}, apperr.NotFound("ticket not found")
		}
		return domain.RouteTicket{}, apperr.Wrap(apperr.KindInternal, "failed to load ticket", err)
	}
	return ticket, nil
}

// seqKey builds the serialization key for one crew's run of a route under
// one event.
func seqKey(routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID) string {
	event := "none"
	if eventID != nil {
		event = eventID.String()
	}
	return routeID.String() + "|" + event + "|" + crewID.String()
}
