package sms

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"winterops_backend/internal/conversation/domain"
	convrepo "winterops_backend/internal/conversation/repository"
)

// ConversationSummaryResponse is the admin list view row.
type ConversationSummaryResponse struct {
	ID             uuid.UUID  `json:"id"`
	Phone          string     `json:"phone"`
	State          string     `json:"state"`
	UserName       string     `json:"userName"`
	PropertyName   *string    `json:"propertyName,omitempty"`
	ActiveTicketID *uuid.UUID `json:"activeTicketId,omitempty"`
	LastMessageAt  time.Time  `json:"lastMessageAt"`
}

// FromSummaries maps repository rows to the admin response.
func FromSummaries(summaries []convrepo.ConversationSummary) []ConversationSummaryResponse {
	out := make([]ConversationSummaryResponse, len(summaries))
	for i, s := range summaries {
		out[i] = ConversationSummaryResponse{
			ID:             s.ID,
			Phone:          s.Phone,
			State:          string(s.State),
			UserName:       s.UserName,
			PropertyName:   s.PropertyName,
			ActiveTicketID: s.ActiveTicketID,
			LastMessageAt:  s.LastMessageAt,
		}
	}
	return out
}

// MessageResponse is one transcript entry, with the classifier's reading
// attached to inbound messages.
type MessageResponse struct {
	ID             uuid.UUID       `json:"id"`
	Direction      string          `json:"direction"`
	Body           string          `json:"body"`
	ProviderSID    string          `json:"providerSid,omitempty"`
	Interpretation json.RawMessage `json:"interpretation,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
}

// FromMessages maps transcript rows to the admin response.
func FromMessages(messages []domain.Message) []MessageResponse {
	out := make([]MessageResponse, len(messages))
	for i, m := range messages {
		out[i] = MessageResponse{
			ID:             m.ID,
			Direction:      string(m.Direction),
			Body:           m.Body,
			ProviderSID:    m.ProviderSID,
			Interpretation: m.Interpretation,
			CreatedAt:      m.CreatedAt,
		}
	}
	return out
}
