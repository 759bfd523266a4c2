package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	ticketrepo "winterops_backend/internal/tickets/repository"
	eventsvc "winterops_backend/internal/winterevents/service"
)

// TicketBindingStore adapts the tickets repository for the winter events
// domain, satisfying its TicketStore port for bulk rebind passes.
type TicketBindingStore struct {
	repo *ticketrepo.Repository
}

// NewTicketBindingStore creates a new ticket binding adapter.
func NewTicketBindingStore(repo *ticketrepo.Repository) *TicketBindingStore {
	return &TicketBindingStore{repo: repo}
}

// ListBindings returns every ticket's current event binding.
func (a *TicketBindingStore) ListBindings(ctx context.Context) ([]eventsvc.TicketBinding, error) {
	bindings, err := a.repo.ListBindings(ctx)
	if err != nil {
		return nil, fmt.Errorf("ticket binding adapter: list: %w", err)
	}

	out := make([]eventsvc.TicketBinding, len(bindings))
	for i, b := range bindings {
		out[i] = eventsvc.TicketBinding{
			TicketID:      b.ID,
			TimeIn:        b.TimeIn,
			WinterEventID: b.WinterEventID,
		}
	}
	return out, nil
}

// SetEventBinding points the ticket at the given event, or clears it.
func (a *TicketBindingStore) SetEventBinding(ctx context.Context, ticketID uuid.UUID, eventID *uuid.UUID) error {
	if err := a.repo.SetEventBinding(ctx, ticketID, eventID); err != nil {
		return fmt.Errorf("ticket binding adapter: set: %w", err)
	}
	return nil
}

// Compile-time check that TicketBindingStore implements the winter events port.
var _ eventsvc.TicketStore = (*TicketBindingStore)(nil)
