// Package domain defines the work-order ticket model shared by the SMS
// conversation engine, the route sequencer, and the ops form endpoints.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// Status is the ticket's open/closed lifecycle state.
// A ticket is open exactly while time_out is null.
type Status string

const (
	StatusOpen   Status = "open"
	StatusClosed Status = "closed"
)

// RouteStatus tracks a ticket's position within a route's execution order.
// Transitions are monotonic: queued -> active -> complete.
type RouteStatus string

const (
	RouteQueued   RouteStatus = "queued"
	RouteActive   RouteStatus = "active"
	RouteComplete RouteStatus = "complete"
)

// Ticket represents one crew visit to one property.
type Ticket struct {
	ID            uuid.UUID
	PropertyID    uuid.UUID
	PropertyName  string
	OwnerID       uuid.UUID
	Equipment     string
	TimeIn        time.Time
	TimeOut       *time.Time
	Status        Status
	BulkSaltQty   float64
	BagSaltQty    float64
	CalciumQty    float64
	Notes         string
	WinterEventID *uuid.UUID
	RouteID       *uuid.UUID
	RouteSequence *int
	RouteStatus   *RouteStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OnRoute reports whether the ticket belongs to a route.
func (t *Ticket) OnRoute() bool {
	return t.RouteID != nil
}

// Update carries a partial mutation of a ticket. Nil fields are left
// untouched; Note is appended to the existing notes, never replaced.
type Update struct {
	Equipment   *string
	BulkSaltQty *float64
	BagSaltQty  *float64
	CalciumQty  *float64
	Note        *string
	TimeIn      *time.Time
	TimeOut     *time.Time
}

// Empty reports whether the update carries no field at all.
func (u Update) Empty() bool {
	return u.Equipment == nil && u.BulkSaltQty == nil && u.BagSaltQty == nil &&
		u.CalciumQty == nil && u.Note == nil && u.TimeIn == nil && u.TimeOut == nil
}
