// Package events provides domain event definitions for decoupled,
// event-driven communication between modules.
// Infrastructure (Bus, Handler) is in platform/events.
package events

import (
	"time"

	"winterops_backend/platform/events"

	"github.com/google/uuid"
)

// Re-export platform types for convenience
type (
	Event       = events.Event
	Bus         = events.Bus
	Handler     = events.Handler
	HandlerFunc = events.HandlerFunc
	BaseEvent   = events.BaseEvent
)

// Re-export platform functions
var NewBaseEvent = events.NewBaseEvent

// =============================================================================
// Ticket Domain Events
// =============================================================================

// TicketOpened is published when a work-order ticket is created, either from
// an SMS conversation or by activating a route.
type TicketOpened struct {
	BaseEvent
	TicketID     uuid.UUID  `json:"ticketId"`
	PropertyID   uuid.UUID  `json:"propertyId"`
	OwnerID      uuid.UUID  `json:"ownerId"`
	WinterEventID *uuid.UUID `json:"winterEventId,omitempty"`
	Source       string     `json:"source"` // "sms", "route", "form"
	TimeIn       time.Time  `json:"timeIn"`
}

func (e TicketOpened) EventName() string { return "tickets.opened" }

// TicketClosed is published when a ticket is closed (time-out set).
type TicketClosed struct {
	BaseEvent
	TicketID   uuid.UUID `json:"ticketId"`
	PropertyID uuid.UUID `json:"propertyId"`
	OwnerID    uuid.UUID `json:"ownerId"`
	TimeOut    time.Time `json:"timeOut"`
	Source     string    `json:"source"`
}

func (e TicketClosed) EventName() string { return "tickets.closed" }

// =============================================================================
// Route Domain Events
// =============================================================================

// RouteAdvanced is published when completing a route property activates the
// next queued property for the same crew.
type RouteAdvanced struct {
	BaseEvent
	RouteID         uuid.UUID `json:"routeId"`
	CrewID          uuid.UUID `json:"crewId"`
	CompletedTicket uuid.UUID `json:"completedTicket"`
	ActivatedTicket uuid.UUID `json:"activatedTicket"`
	NextProperty    string    `json:"nextProperty"`
}

func (e RouteAdvanced) EventName() string { return "routes.advanced" }

// RouteCompleted is published when the last property of a crew's route is
// completed. Subscribers notify dispatch.
type RouteCompleted struct {
	BaseEvent
	RouteID       uuid.UUID  `json:"routeId"`
	RouteName     string     `json:"routeName"`
	CrewID        uuid.UUID  `json:"crewId"`
	CrewName      string     `json:"crewName"`
	WinterEventID *uuid.UUID `json:"winterEventId,omitempty"`
	Completed     int        `json:"completed"`
	Total         int        `json:"total"`
}

func (e RouteCompleted) EventName() string { return "routes.completed" }

// =============================================================================
// Winter Event Domain Events
// =============================================================================

// WinterEventWindowChanged is published when an event's storm window is
// created, edited, or completed; subscribers recompute ticket bindings.
type WinterEventWindowChanged struct {
	BaseEvent
	WinterEventID uuid.UUID  `json:"winterEventId"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       *time.Time `json:"endDate,omitempty"`
	Status        string     `json:"status"`
}

func (e WinterEventWindowChanged) EventName() string { return "winterevents.window.changed" }

// =============================================================================
// SMS Domain Events
// =============================================================================

// InboundMessageProcessed is published after one webhook turn has been fully
// handled (state transition applied, reply queued for delivery).
type InboundMessageProcessed struct {
	BaseEvent
	ConversationID uuid.UUID `json:"conversationId"`
	Phone          string    `json:"phone"`
	Intent         string    `json:"intent"`
	State          string    `json:"state"`
}

func (e InboundMessageProcessed) EventName() string { return "sms.inbound.processed" }
