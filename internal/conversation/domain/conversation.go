// Package domain holds the SMS conversation model: one conversation per
// phone number, its state machine position, and the context bag carried
// between messages.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// State is the conversation's position in the ticket flow.
type State string

const (
	StateIdle              State = "idle"
	StateAwaitingSelection State = "awaiting_property_selection"
	StateCollectingDetails State = "collecting_ticket_details"
)

// PropertyCandidate is one property offered for selection over SMS.
type PropertyCandidate struct {
	ID      uuid.UUID `json:"id"`
	Name    string    `json:"name"`
	Address string    `json:"address,omitempty"`
}

// SelectionContext is carried while the crew member picks a property.
// OpenedAt bounds how long the offered list stays valid.
type SelectionContext struct {
	Candidates []PropertyCandidate `json:"candidates"`
	OpenedAt   time.Time           `json:"openedAt"`
}

// Expired reports whether the selection window has lapsed.
func (s *SelectionContext) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.OpenedAt) > ttl
}

// DetailsContext is carried while details are collected for the active
// ticket.
type DetailsContext struct {
	PropertyName string `json:"propertyName,omitempty"`
	LastPrompt   string `json:"lastPrompt,omitempty"`
}

// Context is the conversation's context bag. Exactly one variant is set
// outside the idle state; idle carries neither.
type Context struct {
	Selection *SelectionContext `json:"selection,omitempty"`
	Details   *DetailsContext   `json:"details,omitempty"`
}

// Conversation is the per-phone-number conversation record.
type Conversation struct {
	ID               uuid.UUID
	UserID           uuid.UUID
	Phone            string
	State            State
	ActiveTicketID   *uuid.UUID
	ActivePropertyID *uuid.UUID
	Context          Context
	LastMessageAt    time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Reset returns the conversation to idle and drops the context bag.
func (c *Conversation) Reset() {
	c.State = StateIdle
	c.ActiveTicketID = nil
	c.ActivePropertyID = nil
	c.Context = Context{}
}

// Direction distinguishes inbound crew messages from outbound replies.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Message is one SMS in a conversation's transcript.
type Message struct {
	ID             uuid.UUID
	ConversationID uuid.UUID
	Phone          string
	Direction      Direction
	Body           string
	ProviderSID    string
	Interpretation []byte
	CreatedAt      time.Time
}
