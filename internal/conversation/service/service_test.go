package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"winterops_backend/internal/conversation/domain"
	"winterops_backend/internal/conversation/repository"
	"winterops_backend/internal/events"
	"winterops_backend/internal/intent"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeConvRepo struct {
	users         map[string]repository.UserRef
	conversations map[string]*domain.Conversation
	seenSIDs      map[string]bool
	saveCalls     int
}

func newFakeConvRepo() *fakeConvRepo {
	return &fakeConvRepo{
		users:         map[string]repository.UserRef{},
		conversations: map[string]*domain.Conversation{},
		seenSIDs:      map[string]bool{},
	}
}

func (f *fakeConvRepo) ResolveUser(_ context.Context, phone string) (*repository.UserRef, error) {
	if ref, ok := f.users[phone]; ok {
		return &ref, nil
	}
	return nil, nil
}

func (f *fakeConvRepo) GetByPhone(_ context.Context, phone string) (*domain.Conversation, error) {
	if conv, ok := f.conversations[phone]; ok {
		copied := *conv
		return &copied, nil
	}
	return nil, nil
}

func (f *fakeConvRepo) Create(_ context.Context, userID uuid.UUID, phone string) (domain.Conversation, error) {
	conv := domain.Conversation{
		ID:     uuid.New(),
		UserID: userID,
		Phone:  phone,
		State:  domain.StateIdle,
	}
	f.conversations[phone] = &conv
	return conv, nil
}

func (f *fakeConvRepo) Save(_ context.Context, conv domain.Conversation) error {
	f.saveCalls++
	f.conversations[conv.Phone] = &conv
	return nil
}

func (f *fakeConvRepo) RecordInbound(_ context.Context, _ uuid.UUID, _, _, providerSID string) (bool, error) {
	if f.seenSIDs[providerSID] {
		return false, nil
	}
	f.seenSIDs[providerSID] = true
	return true, nil
}

func (f *fakeConvRepo) SetInterpretation(_ context.Context, _ string, _ []byte) error {
	return nil
}

// fakeClassifier matches shorthand and falls back to a canned table.
type fakeClassifier struct {
	canned map[string]intent.Classification
}

func (f *fakeClassifier) Classify(_ context.Context, body string, _ intent.Context) intent.Classification {
	if match, ok := intent.MatchShorthand(body); ok {
		return match
	}
	if cls, ok := f.canned[body]; ok {
		return cls
	}
	return intent.Unknown()
}

type fakeTicketWriter struct {
	nextID        uuid.UUID
	timeIn        time.Time
	timeOut       time.Time
	openCalls     int
	applyCalls    int
	completeCalls int
}

func (f *fakeTicketWriter) Open(_ context.Context, _, _ uuid.UUID, _ intent.Classification) (TicketRef, error) {
	f.openCalls++
	return TicketRef{ID: f.nextID, TimeIn: f.timeIn}, nil
}

func (f *fakeTicketWriter) ApplyDetails(_ context.Context, _ uuid.UUID, _ intent.Classification) error {
	f.applyCalls++
	return nil
}

func (f *fakeTicketWriter) Complete(_ context.Context, _ uuid.UUID, _ intent.Classification) (time.Time, error) {
	f.completeCalls++
	return f.timeOut, nil
}

type fakeAssignments struct {
	props []domain.PropertyCandidate
}

func (f *fakeAssignments) AssignedProperties(_ context.Context, _ uuid.UUID) ([]domain.PropertyCandidate, error) {
	return f.props, nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, e events.Event) { f.published = append(f.published, e) }
func (f *fakeBus) PublishSync(_ context.Context, e events.Event) error {
	f.published = append(f.published, e)
	return nil
}
func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) names() []string {
	var out []string
	for _, e := range f.published {
		out = append(out, e.EventName())
	}
	return out
}

type harness struct {
	svc         *Service
	repo        *fakeConvRepo
	tickets     *fakeTicketWriter
	assignments *fakeAssignments
	bus         *fakeBus
}

func newHarness(props ...domain.PropertyCandidate) *harness {
	repo := newFakeConvRepo()
	tickets := &fakeTicketWriter{
		nextID:  uuid.New(),
		timeIn:  time.Date(2026, 1, 10, 18, 15, 0, 0, time.UTC),
		timeOut: time.Date(2026, 1, 10, 19, 30, 0, 0, time.UTC),
	}
	assignments := &fakeAssignments{props: props}
	bus := &fakeBus{}
	svc := New(repo, &fakeClassifier{}, tickets, assignments, 0, bus, logger.New("development"))
	return &harness{svc: svc, repo: repo, tickets: tickets, assignments: assignments, bus: bus}
}

func (h *harness) registerCrew(phone string) uuid.UUID {
	id := uuid.New()
	h.repo.users[phone] = repository.UserRef{ID: id, Name: "Sam Driver"}
	return id
}

func (h *harness) text(t *testing.T, phone, body string) Reply {
	t.Helper()
	reply, err := h.svc.HandleInbound(context.Background(), phone, body, uuid.New().String())
	if err != nil {
		t.Fatalf("HandleInbound(%q) error: %v", body, err)
	}
	return reply
}

func prop(name string) domain.PropertyCandidate {
	return domain.PropertyCandidate{ID: uuid.New(), Name: name}
}

func TestUnknownPhoneGetsAdminReplyAndNoConversation(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))

	reply := h.text(t, "+15550001111", "START")

	if !strings.Contains(reply.Text, "not registered") {
		t.Fatalf("reply = %q, want unregistered notice", reply.Text)
	}
	if reply.ConversationID != uuid.Nil {
		t.Fatalf("ConversationID = %s, want nil (no transcript for unknown numbers)", reply.ConversationID)
	}
	if len(h.repo.conversations) != 0 {
		t.Fatal("conversation was created for an unknown number")
	}
	if h.repo.saveCalls != 0 {
		t.Fatalf("saveCalls = %d, want 0", h.repo.saveCalls)
	}
}

func TestDuplicateDeliveryIsIgnored(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")

	sid := "SM-dup-1"
	first, err := h.svc.HandleInbound(context.Background(), "+15550001111", "START", sid)
	if err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if first.Duplicate || first.Text == "" {
		t.Fatalf("first delivery = %+v, want a reply", first)
	}

	savesAfterFirst := h.repo.saveCalls
	opensAfterFirst := h.tickets.openCalls

	second, err := h.svc.HandleInbound(context.Background(), "+15550001111", "START", sid)
	if err != nil {
		t.Fatalf("redelivery: %v", err)
	}
	if !second.Duplicate || second.Text != "" {
		t.Fatalf("redelivery = %+v, want silent duplicate", second)
	}
	if h.repo.saveCalls != savesAfterFirst {
		t.Fatal("redelivery wrote conversation state")
	}
	if h.tickets.openCalls != opensAfterFirst {
		t.Fatal("redelivery opened a second ticket")
	}
}

func TestStartWithSingleAssignmentOpensTicketImmediately(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")

	reply := h.text(t, "+15550001111", "START")

	if !strings.Contains(reply.Text, "Depot Plaza") || !strings.Contains(reply.Text, "6:15 PM") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if h.tickets.openCalls != 1 {
		t.Fatalf("openCalls = %d, want 1", h.tickets.openCalls)
	}

	conv := h.repo.conversations["+15550001111"]
	if conv.State != domain.StateCollectingDetails {
		t.Fatalf("state = %s, want collecting", conv.State)
	}
	if conv.ActiveTicketID == nil || *conv.ActiveTicketID != h.tickets.nextID {
		t.Fatal("active ticket not recorded on conversation")
	}
	if got := h.bus.names(); len(got) != 2 || got[0] != "tickets.opened" || got[1] != "sms.inbound.processed" {
		t.Fatalf("events = %v", got)
	}
}

func TestStartWithMultipleAssignmentsOffersNumberedSelection(t *testing.T) {
	h := newHarness(prop("Depot Plaza"), prop("Mill Creek Office"), prop("Harbor Warehouse"))
	h.registerCrew("+15550001111")

	reply := h.text(t, "+15550001111", "START")

	if !strings.Contains(reply.Text, "1. Depot Plaza") || !strings.Contains(reply.Text, "3. Harbor Warehouse") {
		t.Fatalf("reply = %q, want numbered list", reply.Text)
	}
	if h.tickets.openCalls != 0 {
		t.Fatal("ticket opened before a property was chosen")
	}
	if conv := h.repo.conversations["+15550001111"]; conv.State != domain.StateAwaitingSelection {
		t.Fatalf("state = %s, want awaiting selection", conv.State)
	}

	// An unmatched answer re-offers the list without losing the state.
	retry := h.text(t, "+15550001111", "the airport one")
	if !strings.Contains(retry.Text, "didn't match") || !strings.Contains(retry.Text, "2. Mill Creek Office") {
		t.Fatalf("retry reply = %q", retry.Text)
	}

	chosen := h.text(t, "+15550001111", "2")
	if !strings.Contains(chosen.Text, "Mill Creek Office") {
		t.Fatalf("chosen reply = %q", chosen.Text)
	}
	if h.tickets.openCalls != 1 {
		t.Fatalf("openCalls = %d, want 1", h.tickets.openCalls)
	}
	conv := h.repo.conversations["+15550001111"]
	if conv.State != domain.StateCollectingDetails {
		t.Fatalf("state after selection = %s", conv.State)
	}
}

func TestExpiredSelectionRestartsWithFreshList(t *testing.T) {
	h := newHarness(prop("Depot Plaza"), prop("Mill Creek Office"))
	h.registerCrew("+15550001111")
	h.text(t, "+15550001111", "START")

	conv := h.repo.conversations["+15550001111"]
	conv.Context.Selection.OpenedAt = time.Now().Add(-time.Hour)

	reply := h.text(t, "+15550001111", "2")
	if !strings.Contains(reply.Text, "Which property") {
		t.Fatalf("reply = %q, want a fresh list", reply.Text)
	}
	if h.tickets.openCalls != 0 {
		t.Fatal("stale selection opened a ticket")
	}
	fresh := h.repo.conversations["+15550001111"]
	if fresh.Context.Selection == nil || time.Since(fresh.Context.Selection.OpenedAt) > time.Minute {
		t.Fatal("selection window was not reopened")
	}
}

func TestDetailsAreAppliedToActiveTicket(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")
	h.text(t, "+15550001111", "START")

	three := 3
	classifier := &fakeClassifier{canned: map[string]intent.Classification{
		"Plow truck 3 yards salt": {
			Intent:     intent.KindProvideDetails,
			Equipment:  "Plow Truck",
			BulkSalt:   &three,
			Confidence: intent.ConfidenceHigh,
		},
	}}
	h.svc.classifier = classifier

	reply := h.text(t, "+15550001111", "Plow truck 3 yards salt")
	if !strings.Contains(reply.Text, "Logged for Depot Plaza") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if h.tickets.applyCalls != 1 {
		t.Fatalf("applyCalls = %d, want 1", h.tickets.applyCalls)
	}

	// A message with nothing extractable asks for specifics and writes no
	// ticket update.
	vague := h.text(t, "+15550001111", "yeah")
	if vague.Text != replyAskDetails {
		t.Fatalf("vague reply = %q", vague.Text)
	}
	if h.tickets.applyCalls != 1 {
		t.Fatalf("applyCalls after vague message = %d, want 1", h.tickets.applyCalls)
	}
}

func TestCompleteClosesTicketAndResetsConversation(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")
	h.text(t, "+15550001111", "START")

	reply := h.text(t, "+15550001111", "DONE")
	if !strings.Contains(reply.Text, "Depot Plaza") || !strings.Contains(reply.Text, "7:30 PM") {
		t.Fatalf("reply = %q", reply.Text)
	}
	if h.tickets.completeCalls != 1 {
		t.Fatalf("completeCalls = %d, want 1", h.tickets.completeCalls)
	}

	conv := h.repo.conversations["+15550001111"]
	if conv.State != domain.StateIdle || conv.ActiveTicketID != nil {
		t.Fatalf("conversation not reset: state=%s ticket=%v", conv.State, conv.ActiveTicketID)
	}

	names := h.bus.names()
	var closed bool
	for _, n := range names {
		if n == "tickets.closed" {
			closed = true
		}
	}
	if !closed {
		t.Fatalf("events = %v, want tickets.closed", names)
	}
}

func TestCompleteWithoutOpenTicketPointsAtStart(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")

	reply := h.text(t, "+15550001111", "DONE")
	if reply.Text != replyNoOpenTicket {
		t.Fatalf("reply = %q", reply.Text)
	}
	if h.tickets.completeCalls != 0 {
		t.Fatal("completed a ticket that does not exist")
	}
}

func TestUnrecognizedMessageGetsHelp(t *testing.T) {
	h := newHarness(prop("Depot Plaza"))
	h.registerCrew("+15550001111")

	reply := h.text(t, "+15550001111", "what do I do")
	if reply.Text != replyHelp {
		t.Fatalf("reply = %q", reply.Text)
	}
	if reply2 := h.text(t, "+15550001111", "HELP"); reply2.Text != replyHelp {
		t.Fatalf("HELP reply = %q", reply2.Text)
	}
}

func TestEachTurnWritesConversationOnce(t *testing.T) {
	h := newHarness(prop("Depot Plaza"), prop("Mill Creek Office"))
	h.registerCrew("+15550001111")

	replies := []Reply{
		h.text(t, "+15550001111", "START"),
		h.text(t, "+15550001111", "1"),
		h.text(t, "+15550001111", "DONE"),
	}

	if h.repo.saveCalls != 3 {
		t.Fatalf("saveCalls = %d, want 3 (one per turn)", h.repo.saveCalls)
	}
	conv := h.repo.conversations["+15550001111"]
	for i, reply := range replies {
		if reply.ConversationID != conv.ID {
			t.Fatalf("turn %d ConversationID = %s, want %s", i+1, reply.ConversationID, conv.ID)
		}
	}
}
