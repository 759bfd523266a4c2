// Package service drives the SMS conversation state machine: one inbound
// message in, one state transition and one reply out.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"winterops_backend/internal/conversation/domain"
	"winterops_backend/internal/conversation/repository"
	"winterops_backend/internal/events"
	"winterops_backend/internal/intent"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/keymutex"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

// defaultSelectionTTL bounds how long an offered property list stays
// answerable. A reply after a lapsed window gets a fresh list instead of
// binding to a stale one.
const defaultSelectionTTL = 30 * time.Minute

// Reply texts are plain ASCII; carrier gateways mangle anything fancier.
const (
	replyUnregistered = "This number is not registered with dispatch. Contact your administrator to get set up."
	replyHelp         = "Text START when you arrive at a property and DONE when you finish. " +
		"While a ticket is open, text the equipment and salt used, e.g. \"Plow truck 3 yards bulk salt\"."
	replyNoAssignments   = "No properties are assigned to you yet. Contact dispatch."
	replyNoOpenTicket    = "You don't have an open ticket. Text START to begin one."
	replyAskDetails      = "Tell me the equipment and salt used, e.g. \"Plow truck 3 yards bulk salt\"."
	selectionPrompt      = "Which property are you at? Reply with a number:"
	invalidSelectionNote = "Sorry, that didn't match."
)

// ConversationRepository is the persistence contract the service depends on.
type ConversationRepository interface {
	ResolveUser(ctx context.Context, phone string) (*repository.UserRef, error)
	GetByPhone(ctx context.Context, phone string) (*domain.Conversation, error)
	Create(ctx context.Context, userID uuid.UUID, phone string) (domain.Conversation, error)
	Save(ctx context.Context, conv domain.Conversation) error
	RecordInbound(ctx context.Context, conversationID uuid.UUID, phone, body, providerSID string) (bool, error)
	SetInterpretation(ctx context.Context, providerSID string, interpretation []byte) error
}

// Classifier interprets one inbound message.
type Classifier interface {
	Classify(ctx context.Context, body string, convCtx intent.Context) intent.Classification
}

// TicketRef identifies a ticket opened over SMS together with the fields
// the opened event carries.
type TicketRef struct {
	ID            uuid.UUID
	TimeIn        time.Time
	WinterEventID *uuid.UUID
}

// TicketWriter is the ticket-side contract: open, enrich, and complete
// tickets on behalf of a texting crew member.
type TicketWriter interface {
	Open(ctx context.Context, ownerID, propertyID uuid.UUID, cls intent.Classification) (TicketRef, error)
	ApplyDetails(ctx context.Context, ticketID uuid.UUID, cls intent.Classification) error
	Complete(ctx context.Context, ticketID uuid.UUID, cls intent.Classification) (time.Time, error)
}

// AssignmentReader lists the properties a crew member may open tickets for.
type AssignmentReader interface {
	AssignedProperties(ctx context.Context, crewID uuid.UUID) ([]domain.PropertyCandidate, error)
}

// Reply is the outcome of one webhook turn. The transport delivers Text
// through the outbound gateway and records it against ConversationID;
// a Nil ConversationID means there is no transcript to record on (the
// number is not registered).
type Reply struct {
	Text           string
	ConversationID uuid.UUID
	Duplicate      bool
}

// Service implements the conversation state machine.
type Service struct {
	repo        ConversationRepository
	classifier  Classifier
	tickets     TicketWriter
	assignments AssignmentReader
	bus         events.Bus
	log         *logger.Logger

	// phones serializes turns per phone number so rapid-fire texts cannot
	// interleave their read-transition-write cycles.
	phones *keymutex.KeyMutex

	selectionTTL time.Duration
}

// New creates the conversation service. A non-positive selectionTTL falls
// back to the default window.
func New(repo ConversationRepository, classifier Classifier, tickets TicketWriter, assignments AssignmentReader, selectionTTL time.Duration, bus events.Bus, log *logger.Logger) *Service {
	if selectionTTL <= 0 {
		selectionTTL = defaultSelectionTTL
	}
	return &Service{
		repo:         repo,
		classifier:   classifier,
		tickets:      tickets,
		assignments:  assignments,
		bus:          bus,
		log:          log,
		phones:       keymutex.New(),
		selectionTTL: selectionTTL,
	}
}

// HandleInbound processes one delivered SMS: resolve the conversation,
// record the message, classify it, apply exactly one state transition, and
// return the reply for the transport to deliver out-of-band. Redelivered
// messages are detected by provider SID and produce no reply and no writes.
func (s *Service) HandleInbound(ctx context.Context, phone, body, providerSID string) (Reply, error) {
	unlock := s.phones.Lock(phone)
	defer unlock()

	conv, err := s.repo.GetByPhone(ctx, phone)
	if err != nil {
		return Reply{}, apperr.Wrap(apperr.KindInternal, "failed to load conversation", err)
	}
	if conv == nil {
		user, err := s.repo.ResolveUser(ctx, phone)
		if err != nil {
			return Reply{}, apperr.Wrap(apperr.KindInternal, "failed to resolve phone number", err)
		}
		if user == nil {
			// Unknown numbers get a pointer to the admin and nothing else:
			// no conversation row, no transcript.
			return Reply{Text: replyUnregistered}, nil
		}
		created, err := s.repo.Create(ctx, user.ID, phone)
		if err != nil {
			return Reply{}, apperr.Wrap(apperr.KindInternal, "failed to open conversation", err)
		}
		conv = &created
	}

	inserted, err := s.repo.RecordInbound(ctx, conv.ID, phone, body, providerSID)
	if err != nil {
		return Reply{}, apperr.Wrap(apperr.KindInternal, "failed to record inbound message", err)
	}
	if !inserted {
		s.log.Info("duplicate inbound message ignored", "phone", phone, "provider_sid", providerSID)
		return Reply{Duplicate: true}, nil
	}

	cls := s.classifier.Classify(ctx, body, intent.Context{
		State:           string(conv.State),
		PropertyName:    s.propertyName(conv),
		HasActiveTicket: conv.ActiveTicketID != nil,
	})
	if raw, err := json.Marshal(cls); err == nil {
		if err := s.repo.SetInterpretation(ctx, providerSID, raw); err != nil {
			s.log.DatabaseError("conversation.set_interpretation", err)
		}
	}

	text, err := s.transition(ctx, conv, body, cls)
	if err != nil {
		return Reply{}, err
	}

	if err := s.repo.Save(ctx, *conv); err != nil {
		return Reply{}, apperr.Wrap(apperr.KindInternal, "failed to save conversation", err)
	}

	s.bus.Publish(ctx, events.InboundMessageProcessed{
		BaseEvent:      events.NewBaseEvent(),
		ConversationID: conv.ID,
		Phone:          phone,
		Intent:         string(cls.Intent),
		State:          string(conv.State),
	})

	return Reply{Text: text, ConversationID: conv.ID}, nil
}

// transition applies one state machine step, mutating conv in place and
// returning the reply text. Start intent wins from any state; everything
// else is read against the conversation's current position.
func (s *Service) transition(ctx context.Context, conv *domain.Conversation, body string, cls intent.Classification) (string, error) {
	if cls.Intent == intent.KindStartTicket {
		return s.startFlow(ctx, conv, cls)
	}

	if cls.Intent == intent.KindCompleteTicket {
		if conv.ActiveTicketID == nil {
			return replyNoOpenTicket, nil
		}
		return s.completeFlow(ctx, conv, cls)
	}

	switch conv.State {
	case domain.StateAwaitingSelection:
		return s.selectionFlow(ctx, conv, body, cls)
	case domain.StateCollectingDetails:
		return s.detailsFlow(ctx, conv, cls)
	}

	// Idle, with no recognized command. A detail-bearing message without an
	// open ticket most likely means the crew forgot to text START.
	if cls.HasDetails() {
		return replyNoOpenTicket, nil
	}
	return replyHelp, nil
}

// startFlow opens a ticket when the crew member has exactly one assigned
// property, or offers a numbered list otherwise. It replaces whatever the
// conversation was doing before.
func (s *Service) startFlow(ctx context.Context, conv *domain.Conversation, cls intent.Classification) (string, error) {
	props, err := s.assignments.AssignedProperties(ctx, conv.UserID)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to list assigned properties", err)
	}
	if len(props) == 0 {
		conv.Reset()
		return replyNoAssignments, nil
	}
	if len(props) == 1 {
		return s.openTicket(ctx, conv, props[0], cls)
	}

	conv.Reset()
	conv.State = domain.StateAwaitingSelection
	conv.Context.Selection = &domain.SelectionContext{
		Candidates: props,
		OpenedAt:   time.Now(),
	}
	return formatSelection(selectionPrompt, props), nil
}

// selectionFlow resolves the crew member's answer against the offered list.
// A lapsed window restarts the flow with a fresh list.
func (s *Service) selectionFlow(ctx context.Context, conv *domain.Conversation, body string, cls intent.Classification) (string, error) {
	sel := conv.Context.Selection
	if sel == nil || sel.Expired(time.Now(), s.selectionTTL) {
		return s.startFlow(ctx, conv, cls)
	}

	picked := domain.Select(sel.Candidates, body)
	if picked == nil {
		return formatSelection(invalidSelectionNote+" "+selectionPrompt, sel.Candidates), nil
	}
	return s.openTicket(ctx, conv, *picked, cls)
}

// detailsFlow records extracted details against the active ticket, or asks
// for specifics when the message carried none.
func (s *Service) detailsFlow(ctx context.Context, conv *domain.Conversation, cls intent.Classification) (string, error) {
	if conv.ActiveTicketID == nil {
		conv.Reset()
		return replyNoOpenTicket, nil
	}
	if !cls.HasDetails() {
		return replyAskDetails, nil
	}

	if err := s.tickets.ApplyDetails(ctx, *conv.ActiveTicketID, cls); err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to record ticket details", err)
	}
	return fmt.Sprintf("Got it. Logged for %s. Text DONE when you finish.", s.propertyName(conv)), nil
}

func (s *Service) openTicket(ctx context.Context, conv *domain.Conversation, prop domain.PropertyCandidate, cls intent.Classification) (string, error) {
	ref, err := s.tickets.Open(ctx, conv.UserID, prop.ID, cls)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to open ticket", err)
	}

	conv.Reset()
	conv.State = domain.StateCollectingDetails
	conv.ActiveTicketID = &ref.ID
	conv.ActivePropertyID = &prop.ID
	conv.Context.Details = &domain.DetailsContext{PropertyName: prop.Name}

	s.bus.Publish(ctx, events.TicketOpened{
		BaseEvent:     events.NewBaseEvent(),
		TicketID:      ref.ID,
		PropertyID:    prop.ID,
		OwnerID:       conv.UserID,
		WinterEventID: ref.WinterEventID,
		Source:        "sms",
		TimeIn:        ref.TimeIn,
	})

	return fmt.Sprintf("Ticket started for %s at %s. Text the equipment and salt used as you work. Text DONE when you finish.",
		prop.Name, ref.TimeIn.Format("3:04 PM")), nil
}

func (s *Service) completeFlow(ctx context.Context, conv *domain.Conversation, cls intent.Classification) (string, error) {
	ticketID := *conv.ActiveTicketID
	propertyID := conv.ActivePropertyID
	name := s.propertyName(conv)

	timeOut, err := s.tickets.Complete(ctx, ticketID, cls)
	if err != nil {
		return "", apperr.Wrap(apperr.KindInternal, "failed to complete ticket", err)
	}

	closed := events.TicketClosed{
		BaseEvent: events.NewBaseEvent(),
		TicketID:  ticketID,
		OwnerID:   conv.UserID,
		TimeOut:   timeOut,
		Source:    "sms",
	}
	if propertyID != nil {
		closed.PropertyID = *propertyID
	}
	s.bus.Publish(ctx, closed)

	conv.Reset()
	if name == "" {
		return fmt.Sprintf("Ticket completed at %s. Thanks.", timeOut.Format("3:04 PM")), nil
	}
	return fmt.Sprintf("Ticket for %s completed at %s. Thanks.", name, timeOut.Format("3:04 PM")), nil
}

func (s *Service) propertyName(conv *domain.Conversation) string {
	if conv.Context.Details != nil {
		return conv.Context.Details.PropertyName
	}
	return ""
}

func formatSelection(prompt string, candidates []domain.PropertyCandidate) string {
	var b strings.Builder
	b.WriteString(prompt)
	for i, c := range candidates {
		fmt.Fprintf(&b, "\n%d. %s", i+1, c.Name)
	}
	return b.String()
}
