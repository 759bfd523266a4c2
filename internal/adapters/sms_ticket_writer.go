package adapters

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	convsvc "winterops_backend/internal/conversation/service"
	"winterops_backend/internal/intent"
	ticketdomain "winterops_backend/internal/tickets/domain"
	ticketrepo "winterops_backend/internal/tickets/repository"
	ticketsvc "winterops_backend/internal/tickets/service"
)

// SMSTicketWriter adapts the tickets repository for the conversation
// engine, satisfying its TicketWriter port. Times are snapped to the
// billing grid and the event binding is resolved at open time.
type SMSTicketWriter struct {
	repo     *ticketrepo.Repository
	resolver ticketsvc.EventResolver
}

// NewSMSTicketWriter creates a new SMS ticket adapter.
func NewSMSTicketWriter(repo *ticketrepo.Repository, resolver ticketsvc.EventResolver) *SMSTicketWriter {
	return &SMSTicketWriter{repo: repo, resolver: resolver}
}

// Open creates a ticket at the snapped current time for a crew member who
// texted START, carrying any details the first message already held.
func (a *SMSTicketWriter) Open(ctx context.Context, ownerID, propertyID uuid.UUID, cls intent.Classification) (convsvc.TicketRef, error) {
	timeIn := ticketdomain.Snap(time.Now())

	eventID, err := a.resolver.Resolve(ctx, timeIn)
	if err != nil {
		return convsvc.TicketRef{}, fmt.Errorf("sms ticket adapter: resolve event: %w", err)
	}

	ticket, err := a.repo.Create(ctx, ticketrepo.CreateParams{
		PropertyID:    propertyID,
		OwnerID:       ownerID,
		Equipment:     cls.Equipment,
		TimeIn:        timeIn,
		WinterEventID: eventID,
		Status:        ticketdomain.StatusOpen,
		Notes:         "Ticket started via SMS",
	})
	if err != nil {
		return convsvc.TicketRef{}, fmt.Errorf("sms ticket adapter: create: %w", err)
	}

	if update := detailsUpdate(cls); !update.Empty() {
		if err := a.repo.Apply(ctx, ticket.ID, update); err != nil {
			return convsvc.TicketRef{}, fmt.Errorf("sms ticket adapter: apply opening details: %w", err)
		}
	}

	return convsvc.TicketRef{ID: ticket.ID, TimeIn: timeIn, WinterEventID: eventID}, nil
}

// ApplyDetails records extracted fields against the open ticket.
func (a *SMSTicketWriter) ApplyDetails(ctx context.Context, ticketID uuid.UUID, cls intent.Classification) error {
	update := detailsUpdate(cls)
	if update.Empty() {
		return nil
	}
	if err := a.repo.Apply(ctx, ticketID, update); err != nil {
		return fmt.Errorf("sms ticket adapter: apply details: %w", err)
	}
	return nil
}

// Complete closes the ticket at the snapped current time, recording any
// trailing details the DONE message carried.
func (a *SMSTicketWriter) Complete(ctx context.Context, ticketID uuid.UUID, cls intent.Classification) (time.Time, error) {
	update := detailsUpdate(cls)
	if update.Note != nil {
		note := "[Completed] " + *update.Note
		update.Note = &note
	}
	if !update.Empty() {
		if err := a.repo.Apply(ctx, ticketID, update); err != nil {
			return time.Time{}, fmt.Errorf("sms ticket adapter: apply closing details: %w", err)
		}
	}

	timeOut := ticketdomain.Snap(time.Now())
	if err := a.repo.Close(ctx, ticketID, timeOut); err != nil {
		return time.Time{}, fmt.Errorf("sms ticket adapter: close: %w", err)
	}
	return timeOut, nil
}

// detailsUpdate converts classifier output into a ticket update. Salt
// quantities arrive as whole units over SMS; the ticket stores them as
// fractional yards and bags.
func detailsUpdate(cls intent.Classification) ticketdomain.Update {
	var update ticketdomain.Update
	if cls.Equipment != "" {
		equipment := cls.Equipment
		update.Equipment = &equipment
	}
	if cls.BulkSalt != nil {
		qty := float64(*cls.BulkSalt)
		update.BulkSaltQty = &qty
	}
	if cls.BagSalt != nil {
		qty := float64(*cls.BagSalt)
		update.BagSaltQty = &qty
	}
	if cls.Calcium != nil {
		qty := float64(*cls.Calcium)
		update.CalciumQty = &qty
	}
	if cls.Notes != "" {
		note := cls.Notes
		update.Note = &note
	}
	return update
}

// Compile-time check that SMSTicketWriter implements the conversation port.
var _ convsvc.TicketWriter = (*SMSTicketWriter)(nil)
