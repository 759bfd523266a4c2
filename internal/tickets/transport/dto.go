package transport

import (
	"time"

	"winterops_backend/internal/tickets/domain"

	"github.com/google/uuid"
)

// SubmitLogRequest contains data for a manual winter-log submission.
type SubmitLogRequest struct {
	PropertyID  uuid.UUID  `json:"propertyId" validate:"required"`
	Equipment   string     `json:"equipment" validate:"omitempty,max=100"`
	TimeIn      time.Time  `json:"timeIn" validate:"required"`
	TimeOut     *time.Time `json:"timeOut,omitempty"`
	BulkSaltQty float64    `json:"bulkSaltQty" validate:"min=0"`
	BagSaltQty  float64    `json:"bagSaltQty" validate:"min=0"`
	CalciumQty  float64    `json:"calciumChlorideQty" validate:"min=0"`
	Notes       string     `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateLogRequest contains a partial edit of an existing log.
type UpdateLogRequest struct {
	Equipment   *string    `json:"equipment,omitempty" validate:"omitempty,max=100"`
	TimeIn      *time.Time `json:"timeIn,omitempty"`
	TimeOut     *time.Time `json:"timeOut,omitempty"`
	BulkSaltQty *float64   `json:"bulkSaltQty,omitempty" validate:"omitempty,min=0"`
	BagSaltQty  *float64   `json:"bagSaltQty,omitempty" validate:"omitempty,min=0"`
	CalciumQty  *float64   `json:"calciumChlorideQty,omitempty" validate:"omitempty,min=0"`
	Note        *string    `json:"note,omitempty" validate:"omitempty,max=2000"`
}

// CloseLogRequest optionally carries an explicit time-out.
type CloseLogRequest struct {
	TimeOut *time.Time `json:"timeOut,omitempty"`
}

// TicketResponse represents a ticket in API responses.
type TicketResponse struct {
	ID            uuid.UUID  `json:"id"`
	PropertyID    uuid.UUID  `json:"propertyId"`
	PropertyName  string     `json:"propertyName"`
	OwnerID       uuid.UUID  `json:"ownerId"`
	Equipment     string     `json:"equipment,omitempty"`
	TimeIn        time.Time  `json:"timeIn"`
	TimeOut       *time.Time `json:"timeOut,omitempty"`
	Status        string     `json:"status"`
	BulkSaltQty   float64    `json:"bulkSaltQty"`
	BagSaltQty    float64    `json:"bagSaltQty"`
	CalciumQty    float64    `json:"calciumChlorideQty"`
	Notes         string     `json:"notes,omitempty"`
	WinterEventID *uuid.UUID `json:"winterEventId,omitempty"`
	RouteID       *uuid.UUID `json:"routeId,omitempty"`
	RouteSequence *int       `json:"routeSequence,omitempty"`
	RouteStatus   *string    `json:"routeStatus,omitempty"`
}

// TicketListResponse wraps a list of tickets.
type TicketListResponse struct {
	Items []TicketResponse `json:"items"`
	Total int              `json:"total"`
}

// SuggestedTimeResponse carries the proposed next time-in.
type SuggestedTimeResponse struct {
	SuggestedTime time.Time `json:"suggestedTime"`
}

// FromDomain maps a domain ticket to its API representation.
func FromDomain(t domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		PropertyID:    t.PropertyID,
		PropertyName:  t.PropertyName,
		OwnerID:       t.OwnerID,
		Equipment:     t.Equipment,
		TimeIn:        t.TimeIn,
		TimeOut:       t.TimeOut,
		Status:        string(t.Status),
		BulkSaltQty:   t.BulkSaltQty,
		BagSaltQty:    t.BagSaltQty,
		CalciumQty:    t.CalciumQty,
		Notes:         t.Notes,
		WinterEventID: t.WinterEventID,
		RouteID:       t.RouteID,
		RouteSequence: t.RouteSequence,
	}
	if t.RouteStatus != nil {
		status := string(*t.RouteStatus)
		resp.RouteStatus = &status
	}
	return resp
}

// FromDomainList maps a slice of domain tickets.
func FromDomainList(tickets []domain.Ticket) TicketListResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for _, t := range tickets {
		items = append(items, FromDomain(t))
	}
	return TicketListResponse{Items: items, Total: len(items)}
}
