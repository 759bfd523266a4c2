package transport

import (
	"time"

	"winterops_backend/internal/routes/domain"

	"github.com/google/uuid"
)

// RouteResponse represents a route in API responses.
type RouteResponse struct {
	ID            uuid.UUID  `json:"id"`
	Name          string     `json:"name"`
	Description   string     `json:"description,omitempty"`
	OwnerID       uuid.UUID  `json:"ownerId"`
	IsTemplate    bool       `json:"isTemplate"`
	PropertyCount int        `json:"propertyCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// RoutePropertyResponse is one stop on a route.
type RoutePropertyResponse struct {
	PropertyID       uuid.UUID `json:"propertyId"`
	PropertyName     string    `json:"propertyName"`
	Sequence         int       `json:"sequence"`
	EstimatedMinutes *int      `json:"estimatedMinutes,omitempty"`
	Notes            string    `json:"notes,omitempty"`
}

// RouteDetailResponse is a route with its ordered stops.
type RouteDetailResponse struct {
	RouteResponse
	Properties []RoutePropertyResponse `json:"properties"`
}

// RouteListResponse wraps a list of routes.
type RouteListResponse struct {
	Items []RouteResponse `json:"items"`
	Total int             `json:"total"`
}

// FromDomain maps a domain route to its API representation.
func FromDomain(r domain.Route) RouteResponse {
	return RouteResponse{
		ID:            r.ID,
		Name:          r.Name,
		Description:   r.Description,
		OwnerID:       r.OwnerID,
		IsTemplate:    r.IsTemplate,
		PropertyCount: r.PropertyCount,
		CreatedAt:     r.CreatedAt,
	}
}

// FromDomainDetail maps a route and its stops.
func FromDomainDetail(r domain.Route, props []domain.RouteProperty) RouteDetailResponse {
	out := RouteDetailResponse{RouteResponse: FromDomain(r)}
	out.Properties = make([]RoutePropertyResponse, 0, len(props))
	for _, p := range props {
		out.Properties = append(out.Properties, RoutePropertyResponse{
			PropertyID:       p.PropertyID,
			PropertyName:     p.PropertyName,
			Sequence:         p.Sequence,
			EstimatedMinutes: p.EstimatedMinutes,
			Notes:            p.Notes,
		})
	}
	return out
}

// FromDomainList maps a slice of routes.
func FromDomainList(list []domain.Route) RouteListResponse {
	items := make([]RouteResponse, 0, len(list))
	for _, r := range list {
		items = append(items, FromDomain(r))
	}
	return RouteListResponse{Items: items, Total: len(items)}
}
