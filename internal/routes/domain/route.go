// Package domain holds the route sequencing model: routes, their ordered
// properties, and the per-crew execution state carried on tickets.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// RouteStatus is a ticket's position in the route execution lifecycle.
// Transitions are strictly forward: queued -> active -> complete.
type RouteStatus string

const (
	RouteQueued   RouteStatus = "queued"
	RouteActive   RouteStatus = "active"
	RouteComplete RouteStatus = "complete"
)

// Route is an ordered sequence of properties assigned to a crew.
type Route struct {
	ID            uuid.UUID
	Name          string
	Description   string
	OwnerID       uuid.UUID
	IsTemplate    bool
	PropertyCount int
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// RouteProperty is one stop on a route, in sequence order.
type RouteProperty struct {
	RouteID          uuid.UUID
	PropertyID       uuid.UUID
	PropertyName     string
	Sequence         int
	EstimatedMinutes *int
	Notes            string
}

// RouteTicket is the sequencer's projection of a ticket. The route fields
// are pointers because not every ticket belongs to a route.
type RouteTicket struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	PropertyName  string
	OwnerID       uuid.UUID
	WinterEventID *uuid.UUID
	RouteID       *uuid.UUID
	Sequence      *int
	Status        *RouteStatus
}

// OnRoute reports whether the ticket carries the full set of route fields.
func (t RouteTicket) OnRoute() bool {
	return t.RouteID != nil && t.Sequence != nil && t.Status != nil
}

// Progress aggregates a crew's position on a route for one event.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Active    int `json:"active"`
	Queued    int `json:"queued"`
}

// Done reports whether every property on the route has been completed.
func (p Progress) Done() bool {
	return p.Total > 0 && p.Completed == p.Total
}
