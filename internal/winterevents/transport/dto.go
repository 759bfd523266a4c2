package transport

import (
	"time"

	"winterops_backend/internal/winterevents/domain"

	"github.com/google/uuid"
)

// CreateEventRequest describes a new storm window.
type CreateEventRequest struct {
	Name      string     `json:"name" validate:"required,min=1,max=200"`
	StartDate time.Time  `json:"startDate" validate:"required"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Notes     string     `json:"notes" validate:"omitempty,max=2000"`
}

// UpdateEventRequest is a partial edit of an existing window.
type UpdateEventRequest struct {
	Name      *string    `json:"name,omitempty" validate:"omitempty,min=1,max=200"`
	StartDate *time.Time `json:"startDate,omitempty"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	ClearEnd  bool       `json:"clearEnd,omitempty"`
	Notes     *string    `json:"notes,omitempty" validate:"omitempty,max=2000"`
}

// CompleteEventRequest optionally carries an explicit end timestamp.
type CompleteEventRequest struct {
	EndDate *time.Time `json:"endDate,omitempty"`
}

// EventResponse represents a winter event in API responses.
type EventResponse struct {
	ID        uuid.UUID  `json:"id"`
	Name      string     `json:"name"`
	StartDate time.Time  `json:"startDate"`
	EndDate   *time.Time `json:"endDate,omitempty"`
	Status    string     `json:"status"`
	Notes     string     `json:"notes,omitempty"`
}

// EventListResponse wraps a list of events.
type EventListResponse struct {
	Items []EventResponse `json:"items"`
	Total int             `json:"total"`
}

// FromDomain maps a domain event to its API representation.
func FromDomain(e domain.WinterEvent) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Name:      e.Name,
		StartDate: e.StartDate,
		EndDate:   e.EndDate,
		Status:    string(e.Status),
		Notes:     e.Notes,
	}
}

// FromDomainList maps a slice of domain events.
func FromDomainList(list []domain.WinterEvent) EventListResponse {
	items := make([]EventResponse, 0, len(list))
	for _, e := range list {
		items = append(items, FromDomain(e))
	}
	return EventListResponse{Items: items, Total: len(items)}
}
