package adapters

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	convdomain "winterops_backend/internal/conversation/domain"
	convsvc "winterops_backend/internal/conversation/service"
	proprepo "winterops_backend/internal/properties/repository"
)

// SMSAssignmentReader adapts the properties repository for the conversation
// engine, satisfying its AssignmentReader port.
type SMSAssignmentReader struct {
	repo *proprepo.Repository
}

// NewSMSAssignmentReader creates a new assignment reader adapter.
func NewSMSAssignmentReader(repo *proprepo.Repository) *SMSAssignmentReader {
	return &SMSAssignmentReader{repo: repo}
}

// AssignedProperties returns the crew member's accepted assignments as
// selection candidates.
func (a *SMSAssignmentReader) AssignedProperties(ctx context.Context, crewID uuid.UUID) ([]convdomain.PropertyCandidate, error) {
	props, err := a.repo.ListAcceptedForCrew(ctx, crewID)
	if err != nil {
		return nil, fmt.Errorf("sms assignment adapter: list: %w", err)
	}

	candidates := make([]convdomain.PropertyCandidate, len(props))
	for i, p := range props {
		candidates[i] = convdomain.PropertyCandidate{ID: p.ID, Name: p.Name, Address: p.Address}
	}
	return candidates, nil
}

// Compile-time check that SMSAssignmentReader implements the conversation port.
var _ convsvc.AssignmentReader = (*SMSAssignmentReader)(nil)
