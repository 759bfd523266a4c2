// Package repository provides data access for SMS conversations and their
// message transcripts.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"winterops_backend/internal/conversation/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrConversationNotFound = errors.New("conversation not found")

// UserRef identifies the crew member a phone number belongs to.
type UserRef struct {
	ID   uuid.UUID
	Name string
}

// Repository provides data access for conversations and messages.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new conversation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ResolveUser finds the crew member registered under the phone number, or
// nil when the number is unknown.
func (r *Repository) ResolveUser(ctx context.Context, phone string) (*UserRef, error) {
	var ref UserRef
	err := r.pool.QueryRow(ctx, `
		SELECT id, name FROM users WHERE phone_number = $1 LIMIT 1
	`, phone).Scan(&ref.ID, &ref.Name)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

const conversationColumns = `
	id, user_id, phone_number, state, active_ticket_id, active_property_id,
	context, last_message_at, created_at, updated_at`

// GetByPhone returns the phone number's conversation, or nil when none
// exists yet.
func (r *Repository) GetByPhone(ctx context.Context, phone string) (*domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE phone_number = $1
	`, phone)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetByID retrieves one conversation.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+conversationColumns+` FROM conversations WHERE id = $1
	`, id)
	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Conversation{}, ErrConversationNotFound
	}
	return conv, err
}

// Create opens an idle conversation for the phone number.
func (r *Repository) Create(ctx context.Context, userID uuid.UUID, phone string) (domain.Conversation, error) {
	row := r.pool.QueryRow(ctx, `
		INSERT INTO conversations (user_id, phone_number, state, context)
		VALUES ($1, $2, 'idle', '{}')
		RETURNING `+conversationColumns+`
	`, userID, phone)
	return scanConversation(row)
}

// Save persists the conversation's state machine position in one write,
// refreshing the last-message timestamp.
func (r *Repository) Save(ctx context.Context, conv domain.Conversation) error {
	contextJSON, err := json.Marshal(conv.Context)
	if err != nil {
		return fmt.Errorf("marshal conversation context: %w", err)
	}
	tag, err := r.pool.Exec(ctx, `
		UPDATE conversations
		SET state = $2, active_ticket_id = $3, active_property_id = $4,
			context = $5, last_message_at = now(), updated_at = now()
		WHERE id = $1
	`, conv.ID, conv.State, conv.ActiveTicketID, conv.ActivePropertyID, contextJSON)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

// RecordInbound stores one inbound message. The unique provider SID makes
// this the durable half of webhook idempotency: a redelivered message is
// not inserted and reports false.
func (r *Repository) RecordInbound(ctx context.Context, conversationID uuid.UUID, phone, body, providerSID string) (bool, error) {
	tag, err := r.pool.Exec(ctx, `
		INSERT INTO messages (conversation_id, phone_number, direction, body, provider_sid)
		VALUES ($1, $2, 'inbound', $3, $4)
		ON CONFLICT (provider_sid) DO NOTHING
	`, conversationID, phone, body, providerSID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

// RecordOutbound stores one outbound reply. Provider SID is set once the
// gateway accepts the message.
func (r *Repository) RecordOutbound(ctx context.Context, conversationID uuid.UUID, phone, body string, providerSID *string) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO messages (conversation_id, phone_number, direction, body, provider_sid)
		VALUES ($1, $2, 'outbound', $3, $4)
	`, conversationID, phone, body, providerSID)
	return err
}

// SetInterpretation attaches the classifier's reading to the inbound
// message, for the admin transcript view.
func (r *Repository) SetInterpretation(ctx context.Context, providerSID string, interpretation []byte) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE messages SET interpretation = $2 WHERE provider_sid = $1
	`, providerSID, interpretation)
	return err
}

// ConversationSummary is the admin list view row.
type ConversationSummary struct {
	ID             uuid.UUID
	Phone          string
	State          domain.State
	UserName       string
	PropertyName   *string
	ActiveTicketID *uuid.UUID
	LastMessageAt  time.Time
}

// ListSummaries returns recent conversations for the admin view.
func (r *Repository) ListSummaries(ctx context.Context, limit int) ([]ConversationSummary, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT c.id, c.phone_number, c.state, COALESCE(u.name, ''),
			p.name, c.active_ticket_id, c.last_message_at
		FROM conversations c
		LEFT JOIN users u ON u.id = c.user_id
		LEFT JOIN properties p ON p.id = c.active_property_id
		ORDER BY c.last_message_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ConversationSummary
	for rows.Next() {
		var s ConversationSummary
		if err := rows.Scan(&s.ID, &s.Phone, &s.State, &s.UserName,
			&s.PropertyName, &s.ActiveTicketID, &s.LastMessageAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListMessages returns the conversation's transcript, oldest first.
func (r *Repository) ListMessages(ctx context.Context, conversationID uuid.UUID) ([]domain.Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, conversation_id, phone_number, direction, body,
			COALESCE(provider_sid, ''), interpretation, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at ASC
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Message
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.Phone, &m.Direction,
			&m.Body, &m.ProviderSID, &m.Interpretation, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConversation(row rowScanner) (domain.Conversation, error) {
	var conv domain.Conversation
	var contextJSON []byte
	err := row.Scan(&conv.ID, &conv.UserID, &conv.Phone, &conv.State,
		&conv.ActiveTicketID, &conv.ActivePropertyID, &contextJSON,
		&conv.LastMessageAt, &conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return domain.Conversation{}, err
	}
	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &conv.Context); err != nil {
			return domain.Conversation{}, fmt.Errorf("unmarshal conversation context: %w", err)
		}
	}
	return conv, nil
}
