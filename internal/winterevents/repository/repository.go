// Package repository provides data access for winter events.
package repository

import (
	"context"
	"errors"
	"time"

	"winterops_backend/internal/winterevents/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrEventNotFound = errors.New("winter event not found")

const eventColumns = `id, name, start_date, end_date, status, notes, created_at, updated_at`

// Repository provides data access for winter events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new winter event repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new event.
func (r *Repository) Create(ctx context.Context, name string, start time.Time, end *time.Time, status domain.Status, notes string) (domain.WinterEvent, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO winter_events (name, start_date, end_date, status, notes)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+eventColumns+`
	`, name, start, end, status, notes)
	return scanEvent(row)
}

// GetByID retrieves one event.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.WinterEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM winter_events WHERE id = $1
	`, id)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WinterEvent{}, ErrEventNotFound
	}
	return event, err
}

// Update rewrites the event's window, name, notes, and status.
func (r *Repository) Update(ctx context.Context, event domain.WinterEvent) (domain.WinterEvent, error) {
	row := r.pool.QueryRow(ctx, `
		UPDATE winter_events
		SET name = $2, start_date = $3, end_date = $4, status = $5, notes = $6, updated_at = now()
		WHERE id = $1
		RETURNING `+eventColumns+`
	`, event.ID, event.Name, event.StartDate, event.EndDate, event.Status, event.Notes)
	updated, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.WinterEvent{}, ErrEventNotFound
	}
	return updated, err
}

// Delete removes the event. Tickets bound to it keep a dangling reference
// until the next rebind pass clears them.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM winter_events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrEventNotFound
	}
	return nil
}

// List returns all events, newest first.
func (r *Repository) List(ctx context.Context) ([]domain.WinterEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM winter_events ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListResolvable returns the candidate set for timestamp resolution:
// every event that has not been cancelled.
func (r *Repository) ListResolvable(ctx context.Context) ([]domain.WinterEvent, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+eventColumns+` FROM winter_events
		WHERE status <> 'cancelled'
		ORDER BY start_date DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ActiveEvent returns the currently active event, or nil when none is.
func (r *Repository) ActiveEvent(ctx context.Context) (*domain.WinterEvent, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+eventColumns+` FROM winter_events
		WHERE status = 'active'
		ORDER BY start_date DESC
		LIMIT 1
	`)
	event, err := scanEvent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (domain.WinterEvent, error) {
	var e domain.WinterEvent
	err := row.Scan(&e.ID, &e.Name, &e.StartDate, &e.EndDate, &e.Status, &e.Notes, &e.CreatedAt, &e.UpdatedAt)
	return e, err
}

func scanEvents(rows pgx.Rows) ([]domain.WinterEvent, error) {
	var events []domain.WinterEvent
	for rows.Next() {
		event, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, event)
	}
	return events, rows.Err()
}
