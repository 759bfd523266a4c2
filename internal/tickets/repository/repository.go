// Package repository provides data access for work-order tickets.
package repository

import (
	"context"
	"errors"
	"time"

	"winterops_backend/internal/tickets/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrTicketNotFound = errors.New("ticket not found")

const ticketColumns = `
	t.id, t.property_id, COALESCE(p.name, ''), t.owner_id, t.equipment,
	t.time_in, t.time_out, t.status,
	t.bulk_salt_qty, t.bag_salt_qty, t.calcium_chloride_qty, t.notes,
	t.winter_event_id, t.route_id, t.route_sequence, t.route_status,
	t.created_at, t.updated_at`

// Repository provides data access for tickets.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new ticket repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreateParams holds the fields needed to open a new ticket.
type CreateParams struct {
	PropertyID    uuid.UUID
	OwnerID       uuid.UUID
	Equipment     string
	TimeIn        time.Time
	WinterEventID *uuid.UUID
	RouteID       *uuid.UUID
	RouteSequence *int
	RouteStatus   *domain.RouteStatus
	Status        domain.Status
	Notes         string
}

// Create inserts a new ticket and returns the stored record.
func (r *Repository) Create(ctx context.Context, params CreateParams) (domain.Ticket, error) {
	var id uuid.UUID
	err := r.pool.QueryRow(ctx, `
		INSERT INTO tickets (property_id, owner_id, equipment, time_in, status,
			notes, winter_event_id, route_id, route_sequence, route_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id
	`, params.PropertyID, params.OwnerID, params.Equipment, params.TimeIn, params.Status,
		params.Notes, params.WinterEventID, params.RouteID, params.RouteSequence, params.RouteStatus,
	).Scan(&id)
	if err != nil {
		return domain.Ticket{}, err
	}
	return r.GetByID(ctx, id)
}

// GetByID retrieves one ticket with its property name.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Ticket, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		LEFT JOIN properties p ON p.id = t.property_id
		WHERE t.id = $1
	`, id)
	ticket, err := scanTicket(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Ticket{}, ErrTicketNotFound
	}
	return ticket, err
}

// Apply performs a partial update. Nil fields are left untouched; the note,
// when present, is appended to the existing notes column.
func (r *Repository) Apply(ctx context.Context, id uuid.UUID, update domain.Update) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET
			equipment            = COALESCE($2, equipment),
			bulk_salt_qty        = COALESCE($3, bulk_salt_qty),
			bag_salt_qty         = COALESCE($4, bag_salt_qty),
			calcium_chloride_qty = COALESCE($5, calcium_chloride_qty),
			notes = CASE
				WHEN $6::text IS NULL THEN notes
				WHEN notes = '' THEN $6
				ELSE notes || E'\n' || $6
			END,
			time_in  = COALESCE($7, time_in),
			time_out = COALESCE($8, time_out),
			updated_at = now()
		WHERE id = $1
	`, id, update.Equipment, update.BulkSaltQty, update.BagSaltQty, update.CalciumQty,
		update.Note, update.TimeIn, update.TimeOut)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// Close sets time-out and flips the ticket to closed. Closing an already
// closed ticket is rejected so double completion cannot move time_out.
func (r *Repository) Close(ctx context.Context, id uuid.UUID, timeOut time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets
		SET time_out = $2, status = 'closed', updated_at = now()
		WHERE id = $1 AND status = 'open'
	`, id, timeOut)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// ListOpenByOwner returns the owner's open tickets, newest first.
func (r *Repository) ListOpenByOwner(ctx context.Context, ownerID uuid.UUID) ([]domain.Ticket, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+ticketColumns+`
		FROM tickets t
		LEFT JOIN properties p ON p.id = t.property_id
		WHERE t.owner_id = $1 AND t.status = 'open'
		ORDER BY t.time_in DESC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTickets(rows)
}

// LatestClosedTimeOut returns the most recent time-out among the owner's
// closed tickets, or nil when none exist.
func (r *Repository) LatestClosedTimeOut(ctx context.Context, ownerID uuid.UUID) (*time.Time, error) {
	var timeOut *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT time_out FROM tickets
		WHERE owner_id = $1 AND status = 'closed' AND time_out IS NOT NULL
		ORDER BY time_out DESC
		LIMIT 1
	`, ownerID).Scan(&timeOut)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return timeOut, err
}

// SetEventBinding rebinds the ticket to a winter event (or unbinds on nil).
func (r *Repository) SetEventBinding(ctx context.Context, id uuid.UUID, eventID *uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE tickets SET winter_event_id = $2, updated_at = now()
		WHERE id = $1
	`, id, eventID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrTicketNotFound
	}
	return nil
}

// Binding is the minimal projection used by the bulk event-rebind pass.
type Binding struct {
	ID            uuid.UUID
	TimeIn        time.Time
	WinterEventID *uuid.UUID
}

// ListBindings returns every ticket's current event binding.
func (r *Repository) ListBindings(ctx context.Context) ([]Binding, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, time_in, winter_event_id FROM tickets ORDER BY time_in
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bindings []Binding
	for rows.Next() {
		var b Binding
		if err := rows.Scan(&b.ID, &b.TimeIn, &b.WinterEventID); err != nil {
			return nil, err
		}
		bindings = append(bindings, b)
	}
	return bindings, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTicket(row rowScanner) (domain.Ticket, error) {
	var t domain.Ticket
	err := row.Scan(
		&t.ID, &t.PropertyID, &t.PropertyName, &t.OwnerID, &t.Equipment,
		&t.TimeIn, &t.TimeOut, &t.Status,
		&t.BulkSaltQty, &t.BagSaltQty, &t.CalciumQty, &t.Notes,
		&t.WinterEventID, &t.RouteID, &t.RouteSequence, &t.RouteStatus,
		&t.CreatedAt, &t.UpdatedAt,
	)
	return t, err
}

func scanTickets(rows pgx.Rows) ([]domain.Ticket, error) {
	var tickets []domain.Ticket
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, err
		}
		tickets = append(tickets, ticket)
	}
	return tickets, rows.Err()
}
