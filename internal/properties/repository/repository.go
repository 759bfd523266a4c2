// Package repository provides read access to properties and their accepted
// crew assignments.
package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// maxAssignments caps the candidate list offered over SMS; a longer list
// does not fit a readable text message.
const maxAssignments = 5

// Property is a serviced location.
type Property struct {
	ID      uuid.UUID
	Name    string
	Address string
}

// Repository provides read access to property assignments.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new property repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListAcceptedForCrew returns the crew member's accepted property
// assignments, capped for SMS presentation.
func (r *Repository) ListAcceptedForCrew(ctx context.Context, crewID uuid.UUID) ([]Property, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT p.id, p.name, COALESCE(p.address, '')
		FROM properties p
		JOIN property_assignments pa ON pa.property_id = p.id
		WHERE pa.user_id = $1 AND pa.acceptance_status = 'accepted'
		ORDER BY p.name
		LIMIT $2
	`, crewID, maxAssignments)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var props []Property
	for rows.Next() {
		var p Property
		if err := rows.Scan(&p.ID, &p.Name, &p.Address); err != nil {
			return nil, err
		}
		props = append(props, p)
	}
	return props, rows.Err()
}

// GetByID retrieves one property, or nil when unknown.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Property, error) {
	var p Property
	err := r.pool.QueryRow(ctx, `
		SELECT id, name, COALESCE(address, '') FROM properties WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Address)
	if err != nil {
		return nil, err
	}
	return &p, nil
}
