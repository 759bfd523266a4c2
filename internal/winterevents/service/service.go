// Package service implements winter event lifecycle management and the
// timestamp-based binding of tickets to storm windows.
package service

import (
	"context"
	"errors"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/winterevents/domain"
	"winterops_backend/internal/winterevents/repository"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// rebindParallelism bounds the concurrent ticket updates in a bulk pass.
const rebindParallelism = 8

// EventRepository is the persistence contract for winter events.
type EventRepository interface {
	Create(ctx context.Context, name string, start time.Time, end *time.Time, status domain.Status, notes string) (domain.WinterEvent, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.WinterEvent, error)
	Update(ctx context.Context, event domain.WinterEvent) (domain.WinterEvent, error)
	Delete(ctx context.Context, id uuid.UUID) error
	List(ctx context.Context) ([]domain.WinterEvent, error)
	ListResolvable(ctx context.Context) ([]domain.WinterEvent, error)
	ActiveEvent(ctx context.Context) (*domain.WinterEvent, error)
}

// TicketBinding is the projection of a ticket the rebind pass works on.
type TicketBinding struct {
	TicketID      uuid.UUID
	TimeIn        time.Time
	WinterEventID *uuid.UUID
}

// TicketStore is the slice of the ticket repository the rebind pass needs.
type TicketStore interface {
	ListBindings(ctx context.Context) ([]TicketBinding, error)
	SetEventBinding(ctx context.Context, ticketID uuid.UUID, eventID *uuid.UUID) error
}

// RebindScheduler enqueues a background bulk rebind. Optional: when nil,
// window edits trigger the pass inline.
type RebindScheduler interface {
	EnqueueEventRebind(ctx context.Context) error
}

// Service implements winter event operations.
type Service struct {
	repo      EventRepository
	tickets   TicketStore
	scheduler RebindScheduler
	bus       events.Bus
	log       *logger.Logger
}

// New creates the winter event service. scheduler may be nil.
func New(repo EventRepository, tickets TicketStore, scheduler RebindScheduler, bus events.Bus, log *logger.Logger) *Service {
	return &Service{repo: repo, tickets: tickets, scheduler: scheduler, bus: bus, log: log}
}

// CreateInput describes a new storm window.
type CreateInput struct {
	Name      string
	StartDate time.Time
	EndDate   *time.Time
	Notes     string
}

// Create opens a new winter event. A window without an end date becomes the
// active storm; only one event may be active at a time, so creation is
// rejected while another storm is still open. A window with an end date is
// recorded as already completed (back-filled storms).
func (s *Service) Create(ctx context.Context, input CreateInput) (domain.WinterEvent, error) {
	status := domain.StatusActive
	if input.EndDate != nil {
		status = domain.StatusCompleted
		if input.EndDate.Before(input.StartDate) {
			return domain.WinterEvent{}, apperr.Validation("end date must not be before start date")
		}
	}

	if status == domain.StatusActive {
		active, err := s.repo.ActiveEvent(ctx)
		if err != nil {
			return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to check for active event", err)
		}
		if active != nil {
			return domain.WinterEvent{}, apperr.Conflict("another winter event is still active; complete it first")
		}
	}

	event, err := s.repo.Create(ctx, input.Name, input.StartDate, input.EndDate, status, input.Notes)
	if err != nil {
		return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to create winter event", err)
	}

	s.windowChanged(ctx, event)
	return event, nil
}

// Complete closes the event's window at the given (or current) time.
func (s *Service) Complete(ctx context.Context, id uuid.UUID, end *time.Time) (domain.WinterEvent, error) {
	event, err := s.get(ctx, id)
	if err != nil {
		return domain.WinterEvent{}, err
	}
	if event.Status == domain.StatusCompleted {
		return domain.WinterEvent{}, apperr.Conflict("winter event is already completed")
	}

	at := time.Now()
	if end != nil {
		at = *end
	}
	if at.Before(event.StartDate) {
		return domain.WinterEvent{}, apperr.Validation("end date must not be before start date")
	}

	event.EndDate = &at
	event.Status = domain.StatusCompleted
	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to complete winter event", err)
	}

	s.windowChanged(ctx, updated)
	return updated, nil
}

// UpdateInput describes an edit of an existing window.
type UpdateInput struct {
	Name      *string
	StartDate *time.Time
	EndDate   *time.Time
	ClearEnd  bool
	Notes     *string
}

// Update edits the event's window. Status is derived from the end date:
// an event with an end date is completed, one without is active (re-opening
// a window is rejected while a different storm is active).
func (s *Service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (domain.WinterEvent, error) {
	event, err := s.get(ctx, id)
	if err != nil {
		return domain.WinterEvent{}, err
	}
	if event.Status == domain.StatusCancelled {
		return domain.WinterEvent{}, apperr.Conflict("cancelled events cannot be edited")
	}

	if input.Name != nil {
		event.Name = *input.Name
	}
	if input.StartDate != nil {
		event.StartDate = *input.StartDate
	}
	if input.ClearEnd {
		event.EndDate = nil
	} else if input.EndDate != nil {
		event.EndDate = input.EndDate
	}
	if input.Notes != nil {
		event.Notes = *input.Notes
	}
	if event.EndDate != nil && event.EndDate.Before(event.StartDate) {
		return domain.WinterEvent{}, apperr.Validation("end date must not be before start date")
	}

	if event.EndDate != nil {
		event.Status = domain.StatusCompleted
	} else {
		active, err := s.repo.ActiveEvent(ctx)
		if err != nil {
			return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to check for active event", err)
		}
		if active != nil && active.ID != event.ID {
			return domain.WinterEvent{}, apperr.Conflict("another winter event is still active")
		}
		event.Status = domain.StatusActive
	}

	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to update winter event", err)
	}

	s.windowChanged(ctx, updated)
	return updated, nil
}

// Cancel marks the event cancelled; its window no longer claims tickets.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (domain.WinterEvent, error) {
	event, err := s.get(ctx, id)
	if err != nil {
		return domain.WinterEvent{}, err
	}
	if event.Status == domain.StatusCancelled {
		return domain.WinterEvent{}, apperr.Conflict("winter event is already cancelled")
	}

	event.Status = domain.StatusCancelled
	updated, err := s.repo.Update(ctx, event)
	if err != nil {
		return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to cancel winter event", err)
	}

	s.windowChanged(ctx, updated)
	return updated, nil
}

// Delete removes the event entirely. Bound tickets keep their reference
// until the rebind pass that follows clears or re-targets them.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	event, err := s.get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, event.ID); err != nil {
		return apperr.Wrap(apperr.KindInternal, "failed to delete winter event", err)
	}
	s.windowChanged(ctx, event)
	return nil
}

// List returns all events.
func (s *Service) List(ctx context.Context) ([]domain.WinterEvent, error) {
	list, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindInternal, "failed to list winter events", err)
	}
	return list, nil
}

// Resolve binds a timestamp to the best matching event window, or nil.
func (s *Service) Resolve(ctx context.Context, t time.Time) (*uuid.UUID, error) {
	candidates, err := s.repo.ListResolvable(ctx)
	if err != nil {
		return nil, err
	}
	match := domain.ResolveEvent(candidates, t)
	if match == nil {
		return nil, nil
	}
	return &match.ID, nil
}

// ActiveEventID returns the active event's ID, or nil when no storm is open.
func (s *Service) ActiveEventID(ctx context.Context) (*uuid.UUID, error) {
	active, err := s.repo.ActiveEvent(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return &active.ID, nil
}

// ActiveEventStart returns the active event's start date, or nil.
func (s *Service) ActiveEventStart(ctx context.Context) (*time.Time, error) {
	active, err := s.repo.ActiveEvent(ctx)
	if err != nil {
		return nil, err
	}
	if active == nil {
		return nil, nil
	}
	return &active.StartDate, nil
}

// ReassignStats summarizes one bulk rebind pass.
type ReassignStats struct {
	Total      int `json:"total"`
	Assigned   int `json:"assigned"`
	Unassigned int `json:"unassigned"`
	Changed    int `json:"changed"`
}

// ReassignAll recomputes every ticket's event binding against the current
// windows. Used after a window edit; safe to run repeatedly.
func (s *Service) ReassignAll(ctx context.Context) (ReassignStats, error) {
	candidates, err := s.repo.ListResolvable(ctx)
	if err != nil {
		return ReassignStats{}, apperr.Wrap(apperr.KindInternal, "failed to load winter events", err)
	}
	bindings, err := s.tickets.ListBindings(ctx)
	if err != nil {
		return ReassignStats{}, apperr.Wrap(apperr.KindInternal, "failed to load ticket bindings", err)
	}

	stats := ReassignStats{Total: len(bindings)}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(rebindParallelism)
	results := make([]bool, len(bindings))

	for i, binding := range bindings {
		match := domain.ResolveEvent(candidates, binding.TimeIn)
		var want *uuid.UUID
		if match != nil {
			want = &match.ID
			stats.Assigned++
		} else {
			stats.Unassigned++
		}

		if sameBinding(binding.WinterEventID, want) {
			continue
		}

		i, binding, want := i, binding, want
		group.Go(func() error {
			if err := s.tickets.SetEventBinding(groupCtx, binding.TicketID, want); err != nil {
				return err
			}
			results[i] = true
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return ReassignStats{}, apperr.Wrap(apperr.KindInternal, "failed to rebind tickets", err)
	}
	for _, did := range results {
		if did {
			stats.Changed++
		}
	}

	s.log.Info("winter event rebind complete",
		"total", stats.Total, "assigned", stats.Assigned,
		"unassigned", stats.Unassigned, "changed", stats.Changed)
	return stats, nil
}

func (s *Service) get(ctx context.Context, id uuid.UUID) (domain.WinterEvent, error) {
	event, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrEventNotFound) {
			return domain.WinterEvent{}, apperr.NotFound("winter event not found")
		}
		return domain.WinterEvent{}, apperr.Wrap(apperr.KindInternal, "failed to load winter event", err)
	}
	return event, nil
}

// windowChanged publishes the domain event and schedules a rebind pass.
// Without a scheduler the pass runs inline, best-effort.
func (s *Service) windowChanged(ctx context.Context, event domain.WinterEvent) {
	s.bus.Publish(ctx, events.WinterEventWindowChanged{
		BaseEvent:     events.NewBaseEvent(),
		WinterEventID: event.ID,
		StartDate:     event.StartDate,
		EndDate:       event.EndDate,
		Status:        string(event.Status),
	})

	if s.scheduler != nil {
		if err := s.scheduler.EnqueueEventRebind(ctx); err != nil {
			s.log.Error("failed to enqueue rebind task", "error", err)
		}
		return
	}
	if _, err := s.ReassignAll(ctx); err != nil {
		s.log.Error("inline rebind failed", "error", err)
	}
}

func sameBinding(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
