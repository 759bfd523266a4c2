package service

import (
	"context"
	"testing"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/tickets/domain"
	"winterops_backend/internal/tickets/repository"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	tickets     map[uuid.UUID]domain.Ticket
	createCalls int
	applyCalls  int
	lastUpdate  domain.Update
	lastClose   time.Time
	latestOut   *time.Time
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{tickets: make(map[uuid.UUID]domain.Ticket)}
}

func (f *fakeRepo) Create(_ context.Context, params repository.CreateParams) (domain.Ticket, error) {
	f.createCalls++
	t := domain.Ticket{
		ID:            uuid.New(),
		PropertyID:    params.PropertyID,
		OwnerID:       params.OwnerID,
		Equipment:     params.Equipment,
		TimeIn:        params.TimeIn,
		Status:        params.Status,
		Notes:         params.Notes,
		WinterEventID: params.WinterEventID,
	}
	f.tickets[t.ID] = t
	return t, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.Ticket, error) {
	t, ok := f.tickets[id]
	if !ok {
		return domain.Ticket{}, repository.ErrTicketNotFound
	}
	return t, nil
}

func (f *fakeRepo) Apply(_ context.Context, id uuid.UUID, update domain.Update) error {
	f.applyCalls++
	f.lastUpdate = update
	t, ok := f.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	if update.TimeOut != nil {
		t.TimeOut = update.TimeOut
	}
	f.tickets[id] = t
	return nil
}

func (f *fakeRepo) Close(_ context.Context, id uuid.UUID, timeOut time.Time) error {
	t, ok := f.tickets[id]
	if !ok || t.Status != domain.StatusOpen {
		return repository.ErrTicketNotFound
	}
	f.lastClose = timeOut
	t.Status = domain.StatusClosed
	t.TimeOut = &timeOut
	f.tickets[id] = t
	return nil
}

func (f *fakeRepo) ListOpenByOwner(_ context.Context, ownerID uuid.UUID) ([]domain.Ticket, error) {
	var out []domain.Ticket
	for _, t := range f.tickets {
		if t.OwnerID == ownerID && t.Status == domain.StatusOpen {
			out = append(out, t)
		}
	}
	return out, nil
}

func (f *fakeRepo) LatestClosedTimeOut(_ context.Context, _ uuid.UUID) (*time.Time, error) {
	return f.latestOut, nil
}

func (f *fakeRepo) SetEventBinding(_ context.Context, id uuid.UUID, eventID *uuid.UUID) error {
	t, ok := f.tickets[id]
	if !ok {
		return repository.ErrTicketNotFound
	}
	t.WinterEventID = eventID
	f.tickets[id] = t
	return nil
}

type fakeResolver struct {
	eventID     *uuid.UUID
	activeStart *time.Time
	calls       int
}

func (f *fakeResolver) Resolve(_ context.Context, _ time.Time) (*uuid.UUID, error) {
	f.calls++
	return f.eventID, nil
}

func (f *fakeResolver) ActiveEventStart(_ context.Context) (*time.Time, error) {
	return f.activeStart, nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, event events.Event)          { f.published = append(f.published, event) }
func (f *fakeBus) PublishSync(_ context.Context, event events.Event) error {
	f.published = append(f.published, event)
	return nil
}
func (f *fakeBus) Subscribe(string, events.Handler) {}

func newService(repo *fakeRepo, resolver *fakeResolver, bus *fakeBus) *Service {
	return New(repo, resolver, bus, logger.New("development"))
}

func TestSubmitLogSnapsAndBindsEvent(t *testing.T) {
	repo := newFakeRepo()
	eventID := uuid.New()
	resolver := &fakeResolver{eventID: &eventID}
	bus := &fakeBus{}
	svc := newService(repo, resolver, bus)

	rawIn := time.Date(2026, 1, 14, 6, 7, 30, 0, time.UTC)
	ticket, err := svc.SubmitLog(context.Background(), uuid.New(), SubmitLogInput{
		PropertyID: uuid.New(),
		Equipment:  "plow truck 4",
		TimeIn:     rawIn,
	})
	if err != nil {
		t.Fatalf("SubmitLog: %v", err)
	}

	wantIn := time.Date(2026, 1, 14, 6, 15, 0, 0, time.UTC)
	if !ticket.TimeIn.Equal(wantIn) {
		t.Fatalf("time-in not snapped: got %v, want %v", ticket.TimeIn, wantIn)
	}
	if ticket.WinterEventID == nil || *ticket.WinterEventID != eventID {
		t.Fatalf("ticket not bound to active event")
	}
	if ticket.Status != domain.StatusOpen {
		t.Fatalf("ticket without time-out should be open, got %s", ticket.Status)
	}
	if len(bus.published) != 1 || bus.published[0].EventName() != "tickets.opened" {
		t.Fatalf("expected one tickets.opened event, got %v", bus.published)
	}
}

func TestSubmitLogWithTimeOutIsClosed(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeResolver{}, &fakeBus{})

	out := time.Date(2026, 1, 14, 9, 52, 30, 0, time.UTC)
	ticket, err := svc.SubmitLog(context.Background(), uuid.New(), SubmitLogInput{
		PropertyID: uuid.New(),
		TimeIn:     time.Date(2026, 1, 14, 6, 0, 0, 0, time.UTC),
		TimeOut:    &out,
	})
	if err != nil {
		t.Fatalf("SubmitLog: %v", err)
	}
	if ticket.Status != domain.StatusClosed {
		t.Fatalf("ticket with time-out should be closed")
	}
	wantOut := time.Date(2026, 1, 14, 10, 0, 0, 0, time.UTC)
	if repo.lastUpdate.TimeOut == nil || !repo.lastUpdate.TimeOut.Equal(wantOut) {
		t.Fatalf("time-out not snapped up: got %v, want %v", repo.lastUpdate.TimeOut, wantOut)
	}
}

func TestUpdateLogRequiresOwnerOrPrivilege(t *testing.T) {
	repo := newFakeRepo()
	svc := newService(repo, &fakeResolver{}, &fakeBus{})

	owner := uuid.New()
	ticket, err := svc.SubmitLog(context.Background(), owner, SubmitLogInput{
		PropertyID: uuid.New(),
		TimeIn:     time.Now(),
	})
	if err != nil {
		t.Fatalf("SubmitLog: %v", err)
	}

	note := "salted twice"
	_, err = svc.UpdateLog(context.Background(), uuid.New(), false, ticket.ID, UpdateLogInput{Note: &note})
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}

	if _, err := svc.UpdateLog(context.Background(), uuid.New(), true, ticket.ID, UpdateLogInput{Note: &note}); err != nil {
		t.Fatalf("privileged caller should be allowed: %v", err)
	}
}

func TestCloseLogRejectsAlreadyClosed(t *testing.T) {
	repo := newFakeRepo()
	bus := &fakeBus{}
	svc := newService(repo, &fakeResolver{}, bus)

	owner := uuid.New()
	ticket, err := svc.SubmitLog(context.Background(), owner, SubmitLogInput{
		PropertyID: uuid.New(),
		TimeIn:     time.Now(),
	})
	if err != nil {
		t.Fatalf("SubmitLog: %v", err)
	}

	if _, err := svc.CloseLog(context.Background(), owner, false, ticket.ID, nil); err != nil {
		t.Fatalf("first close: %v", err)
	}
	_, err = svc.CloseLog(context.Background(), owner, false, ticket.ID, nil)
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double close, got %v", err)
	}
}

func TestSuggestedTimeFallbackChain(t *testing.T) {
	repo := newFakeRepo()
	resolver := &fakeResolver{}
	svc := newService(repo, resolver, &fakeBus{})
	owner := uuid.New()

	// Previous log wins.
	prev := time.Date(2026, 1, 10, 4, 7, 0, 0, time.UTC)
	repo.latestOut = &prev
	got, err := svc.SuggestedTime(context.Background(), owner)
	if err != nil {
		t.Fatalf("SuggestedTime: %v", err)
	}
	if want := time.Date(2026, 1, 10, 4, 0, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected previous time-out snapped, got %v", got)
	}

	// Then the active event start.
	repo.latestOut = nil
	start := time.Date(2026, 1, 12, 22, 50, 0, 0, time.UTC)
	resolver.activeStart = &start
	got, err = svc.SuggestedTime(context.Background(), owner)
	if err != nil {
		t.Fatalf("SuggestedTime: %v", err)
	}
	if want := time.Date(2026, 1, 12, 22, 45, 0, 0, time.UTC); !got.Equal(want) {
		t.Fatalf("expected active event start snapped, got %v", got)
	}

	// Finally now.
	resolver.activeStart = nil
	got, err = svc.SuggestedTime(context.Background(), owner)
	if err != nil {
		t.Fatalf("SuggestedTime: %v", err)
	}
	if time.Since(got) > 20*time.Minute || time.Until(got) > 20*time.Minute {
		t.Fatalf("expected roughly now, got %v", got)
	}
}
