// Package repository provides data access for routes and the sequencer's
// conditional updates on ticket route state.
package repository

import (
	"context"
	"errors"
	"time"

	"winterops_backend/internal/routes/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrRouteNotFound  = errors.New("route not found")
	ErrTicketNotFound = errors.New("ticket not found")
)

// Repository provides data access for routes and route tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new route repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetRoute retrieves one route with its property count.
func (r *Repository) GetRoute(ctx context.Context, id uuid.UUID) (domain.Route, error) {
	var route domain.Route
	err := r.pool.QueryRow(ctx, `
		SELECT r.id, r.name, r.description, r.owner_id, r.is_template,
			(SELECT COUNT(*) FROM route_properties rp WHERE rp.route_id = r.id),
			r.created_at, r.updated_at
		FROM routes r
		WHERE r.id = $1
	`, id).Scan(&route.ID, &route.Name, &route.Description, &route.OwnerID,
		&route.IsTemplate, &route.PropertyCount, &route.CreatedAt, &route.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Route{}, ErrRouteNotFound
	}
	return route, err
}

// ListRoutes returns all routes with property counts, newest first.
func (r *Repository) ListRoutes(ctx context.Context) ([]domain.Route, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT r.id, r.name, r.description, r.owner_id, r.is_template,
			(SELECT COUNT(*) FROM route_properties rp WHERE rp.route_id = r.id),
			r.created_at, r.updated_at
		FROM routes r
		ORDER BY r.created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []domain.Route
	for rows.Next() {
		var route domain.Route
		if err := rows.Scan(&route.ID, &route.Name, &route.Description, &route.OwnerID,
			&route.IsTemplate, &route.PropertyCount, &route.CreatedAt, &route.UpdatedAt); err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	return routes, rows.Err()
}

// ListProperties returns the route's stops in sequence order.
func (r *Repository) ListProperties(ctx context.Context, routeID uuid.UUID) ([]domain.RouteProperty, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rp.route_id, rp.property_id, COALESCE(p.name, ''),
			rp.sequence_order, rp.estimated_time_minutes, COALESCE(rp.notes, '')
		FROM route_properties rp
		LEFT JOIN properties p ON p.id = rp.property_id
		WHERE rp.route_id = $1
		ORDER BY rp.sequence_order ASC
	`, routeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []domain.RouteProperty
	for rows.Next() {
		var p domain.RouteProperty
		if err := rows.Scan(&p.RouteID, &p.PropertyID, &p.PropertyName,
			&p.Sequence, &p.EstimatedMinutes, &p.Notes); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

const routeTicketColumns = `
	t.id, t.property_id, COALESCE(p.name, ''), t.owner_id,
	t.winter_event_id, t.route_id, t.route_sequence, t.route_status`

// GetRouteTicket retrieves the sequencer's projection of one ticket.
func (r *Repository) GetRouteTicket(ctx context.Context, id uuid.UUID) (domain.RouteTicket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+routeTicketColumns+`
		FROM tickets t
		LEFT JOIN properties p ON p.id = t.property_id
		WHERE t.id = $1
	`, id)
	ticket, err := scanRouteTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.RouteTicket{}, ErrTicketNotFound
	}
	return ticket, err
}

// CompleteTicket flips the ticket from active to complete, closing it with
// the given time-out. The WHERE clause makes the transition a compare-and-
// swap: it reports false when the ticket was not active, so a lost race (or
// a double tap) never moves route state backward.
func (r *Repository) CompleteTicket(ctx context.Context, id uuid.UUID, timeOut time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET route_status = 'complete', status = 'closed', time_out = $2, updated_at = now()
		WHERE id = $1 AND route_status = 'active'
	`, id, timeOut)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// ActivateTicket flips the ticket from queued to active, re-opening it with
// a fresh time-in. Compare-and-swap on the same terms as CompleteTicket.
func (r *Repository) ActivateTicket(ctx context.Context, id uuid.UUID, timeIn time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET route_status = 'active', status = 'open', time_out = NULL, time_in = $2, updated_at = now()
		WHERE id = $1 AND route_status = 'queued'
	`, id, timeIn)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// NextQueued returns the crew's queued ticket with the smallest sequence
// position after the given one, or nil when the route is finished.
func (r *Repository) NextQueued(ctx context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID, afterSeq int) (*domain.RouteTicket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+routeTicketColumns+`
		FROM tickets t
		LEFT JOIN properties p ON p.id = t.property_id
		WHERE t.route_id = $1
		  AND t.winter_event_id IS NOT DISTINCT FROM $2
		  AND t.owner_id = $3
		  AND t.route_status = 'queued'
		  AND t.route_sequence > $4
		ORDER BY t.route_sequence ASC
		LIMIT 1
	`, routeID, eventID, crewID, afterSeq)
	ticket, err := scanRouteTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// ActiveTicketForCrew returns the crew's active route ticket for the event,
// on any route, or nil. Used as the one-property-at-a-time activation guard.
func (r *Repository) ActiveTicketForCrew(ctx context.Context, crewID uuid.UUID, eventID *uuid.UUID) (*domain.RouteTicket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+routeTicketColumns+`
		FROM tickets t
		LEFT JOIN properties p ON p.id = t.property_id
		WHERE t.owner_id = $1
		  AND t.winter_event_id IS NOT DISTINCT FROM $2
		  AND t.route_status = 'active'
		LIMIT 1
	`, crewID, eventID)
	ticket, err := scanRouteTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ticket, nil
}

// Progress aggregates the crew's route ticket counts for one event.
func (r *Repository) Progress(ctx context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID) (domain.Progress, error) {
	var p domain.Progress
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE route_status = 'complete'),
			COUNT(*) FILTER (WHERE route_status = 'active'),
			COUNT(*) FILTER (WHERE route_status = 'queued')
		FROM tickets
		WHERE route_id = $1
		  AND winter_event_id IS NOT DISTINCT FROM $2
		  AND owner_id = $3
	`, routeID, eventID, crewID).Scan(&p.Total, &p.Completed, &p.Active, &p.Queued)
	return p, err
}

// CrewName returns the crew member's display name, empty when unknown.
func (r *Repository) CrewName(ctx context.Context, crewID uuid.UUID) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT name FROM users WHERE id = $1`, crewID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return name, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRouteTicket(row rowScanner) (domain.RouteTicket, error) {
	var t domain.RouteTicket
	err := row.Scan(&t.ID, &t.PropertyID, &t.PropertyName, &t.OwnerID,
		&t.WinterEventID, &t.RouteID, &t.Sequence, &t.Status)
	return t, err
}
