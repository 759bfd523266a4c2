// Package service implements the ops form path for work-order tickets:
// manual log submission, partial updates, closing, and the suggested
// log-time helper used by the dispatch UI.
package service

import (
	"context"
	"errors"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/tickets/domain"
	"winterops_backend/internal/tickets/repository"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

// TicketRepository is the persistence contract the service depends on.
type TicketRepository interface {
	Create(ctx context.Context, params repository.CreateParams) (domain.Ticket, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Ticket, error)
	Apply(ctx context.Context, id uuid.UUID, update domain.Update) error
	Close(ctx context.Context, id uuid.UUID, timeOut time.Time) error
	ListOpenByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ticket, error)
	LatestClosedTimeOut(ctx context.Context, ownerID uuid.UUID) (*time.Time, error)
	SetEventBinding(ctx context.Context, id uuid.UUID, eventID *uuid.UUID) error
}

// EventResolver binds a timestamp to the winter event whose window contains
// it. A nil result is a valid outcome: the ticket stays unbound.
type EventResolver interface {
	Resolve(ctx context.Context, t time.Time) (*uuid.UUID, error)
	ActiveEventStart(ctx context.Context) (*time.Time, error)
}

// Service implements the ops ticket operations.
type Service struct {
	repo     TicketRepository
	resolver EventResolver
	bus      events.Bus
	log      *logger.Logger
}

// New creates the ticket service.
func New(repo TicketRepository, resolver EventResolver, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, resolver: resolver, bus: bus, log: log}
}

// SubmitLogInput is a manual winter-log submission from the dispatch form.
type SubmitLogInput struct {
	PropertyID  uuid.UUID
	Equipment   string
	TimeIn      time.Time
	TimeOut     *time.Time
	BulkSaltQty float64
	BagSaltQty  float64
	CalciumQty  float64
	Notes       string
}

// SubmitLog creates a ticket from the manual form. Times are snapped to the
// billing grid and the event binding is resolved from the snapped time-in.
func (s *Service) SubmitLog(ctx context.Context, ownerID uuid.UUID, input SubmitLogInput) (domain.Ticket, error) {
	timeIn := domain.Snap(input.TimeIn)

	eventID, err := s.resolver.Resolve(ctx, timeIn)
	if err != nil {
		s.log.DatabaseError("tickets.resolve_event", err)
		return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to resolve winter event", err)
	}

	status := domain.StatusOpen
	if input.TimeOut != nil {
		status = domain.StatusClosed
	}

	ticket, err := s.repo.Create(ctx, repository.CreateParams{
		PropertyID:    input.PropertyID,
		OwnerID:       ownerID,
		Equipment:     input.Equipment,
		TimeIn:        timeIn,
		WinterEventID: eventID,
		Status:        status,
		Notes:         input.Notes,
	})
	if err != nil {
		return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to create ticket", err)
	}

	update := domain.Update{}
	if input.BulkSaltQty > 0 {
		update.BulkSaltQty = &input.BulkSaltQty
	}
	if input.BagSaltQty > 0 {
		update.BagSaltQty = &input.BagSaltQty
	}
	if input.CalciumQty > 0 {
		update.CalciumQty = &input.CalciumQty
	}
	if input.TimeOut != nil {
		snapped := domain.Snap(*input.TimeOut)
		update.TimeOut = &snapped
	}
	if !update.Empty() {
		if err := s.repo.Apply(ctx, ticket.ID, update); err != nil {
			return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to store ticket details", err)
		}
		ticket, err = s.repo.GetByID(ctx, ticket.ID)
		if err != nil {
			return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to reload ticket", err)
		}
	}

	s.bus.Publish(ctx, events.TicketOpened{
		BaseEvent:     events.NewBaseEvent(),
		TicketID:      ticket.ID,
		PropertyID:    ticket.PropertyID,
		OwnerID:       ownerID,
		WinterEventID: eventID,
		Source:        "form",
		TimeIn:        timeIn,
	})

	return ticket, nil
}

// UpdateLogInput is a partial edit of an existing log.
type UpdateLogInput struct {
	Equipment   *string
	TimeIn      *time.Time
	TimeOut     *time.Time
	BulkSaltQty *float64
	BagSaltQty  *float64
	CalciumQty  *float64
	Note        *string
}

// UpdateLog applies a partial update. Only the owner or a privileged caller
// may edit a log; a changed time-in re-resolves the event binding.
func (s *Service) UpdateLog(ctx context.Context, callerID uuid.UUID, privileged bool, ticketID uuid.UUID, input UpdateLogInput) (domain.Ticket, error) {
	ticket, err := s.authorize(ctx, callerID, privileged, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}

	update := domain.Update{
		Equipment:   input.Equipment,
		BulkSaltQty: input.BulkSaltQty,
		BagSaltQty:  input.BagSaltQty,
		CalciumQty:  input.CalciumQty,
		Note:        input.Note,
	}
	if input.TimeIn != nil {
		snapped := domain.Snap(*input.TimeIn)
		update.TimeIn = &snapped
	}
	if input.TimeOut != nil {
		snapped := domain.Snap(*input.TimeOut)
		update.TimeOut = &snapped
	}
	if update.Empty() {
		return domain.Ticket{}, apperr.Validation("no fields to update")
	}

	if err := s.repo.Apply(ctx, ticket.ID, update); err != nil {
		return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to update ticket", err)
	}

	if update.TimeIn != nil {
		eventID, err := s.resolver.Resolve(ctx, *update.TimeIn)
		if err != nil {
			s.log.DatabaseError("tickets.resolve_event", err)
		} else if err := s.repo.SetEventBinding(ctx, ticket.ID, eventID); err != nil {
			s.log.DatabaseError("tickets.rebind_event", err)
		}
	}

	return s.repo.GetByID(ctx, ticket.ID)
}

// CloseLog closes an open log at the given (or current) time, snapped.
func (s *Service) CloseLog(ctx context.Context, callerID uuid.UUID, privileged bool, ticketID uuid.UUID, timeOut *time.Time) (domain.Ticket, error) {
	ticket, err := s.authorize(ctx, callerID, privileged, ticketID)
	if err != nil {
		return domain.Ticket{}, err
	}
	if ticket.Status == domain.StatusClosed {
		return domain.Ticket{}, apperr.Conflict("ticket is already closed")
	}

	at := time.Now()
	if timeOut != nil {
		at = *timeOut
	}
	snapped := domain.Snap(at)

	if err := s.repo.Close(ctx, ticket.ID, snapped); err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return domain.Ticket{}, apperr.Conflict("ticket is already closed")
		}
		return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to close ticket", err)
	}

	s.bus.Publish(ctx, events.TicketClosed{
		BaseEvent:  events.NewBaseEvent(),
		TicketID:   ticket.ID,
		PropertyID: ticket.PropertyID,
		OwnerID:    ticket.OwnerID,
		TimeOut:    snapped,
		Source:     "form",
	})

	return s.repo.GetByID(ctx, ticket.ID)
}

// ListOpen returns the caller's open tickets.
func (s *Service) ListOpen(ctx context.Context, ownerID uuid.UUID) ([]domain.Ticket, error) {
	tickets, err := s.repo.ListOpenByOwner(ctx, ownerID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list open tickets", err)
	}
	return tickets, nil
}

// SuggestedTime proposes a time-in for the next manual log: the caller's
// previous time-out, else the active event's start, else now. Snapped.
func (s *Service) SuggestedTime(ctx context.Context, ownerID uuid.UUID) (time.Time, error) {
	previous, err := s.repo.LatestClosedTimeOut(ctx, ownerID)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindInternal, "failed to look up previous log", err)
	}
	if previous != nil {
		return domain.Snap(*previous), nil
	}

	start, err := s.resolver.ActiveEventStart(ctx)
	if err != nil {
		return time.Time{}, apperr.Wrap(apperr.KindInternal, "failed to look up active event", err)
	}
	if start != nil {
		return domain.Snap(*start), nil
	}

	return domain.Snap(time.Now()), nil
}

func (s *Service) authorize(ctx context.Context, callerID uuid.UUID, privileged bool, ticketID uuid.UUID) (domain.Ticket, error) {
	ticket, err := s.repo.GetByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return domain.Ticket{}, apperr.NotFound("ticket not found")
		}
		return domain.Ticket{}, apperr.Wrap(apperr.KindInternal, "failed to load ticket", err)
	}
	if ticket.OwnerID != callerID && !privileged {
		return domain.Ticket{}, apperr.Forbidden("not authorized to modify this ticket")
	}
	return ticket, nil
}
