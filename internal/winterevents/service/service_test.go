package service

import (
	"context"
	"testing"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/winterevents/domain"
	"winterops_backend/internal/winterevents/repository"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

type fakeRepo struct {
	events      map[uuid.UUID]domain.WinterEvent
	updateCalls int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{events: make(map[uuid.UUID]domain.WinterEvent)}
}

func (f *fakeRepo) Create(_ context.Context, name string, start time.Time, end *time.Time, status domain.Status, notes string) (domain.WinterEvent, error) {
	e := domain.WinterEvent{ID: uuid.New(), Name: name, StartDate: start, EndDate: end, Status: status, Notes: notes}
	f.events[e.ID] = e
	return e, nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (domain.WinterEvent, error) {
	e, ok := f.events[id]
	if !ok {
		return domain.WinterEvent{}, repository.ErrEventNotFound
	}
	return e, nil
}

func (f *fakeRepo) Update(_ context.Context, event domain.WinterEvent) (domain.WinterEvent, error) {
	f.updateCalls++
	f.events[event.ID] = event
	return event, nil
}

func (f *fakeRepo) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.events, id)
	return nil
}

func (f *fakeRepo) List(_ context.Context) ([]domain.WinterEvent, error) {
	var out []domain.WinterEvent
	for _, e := range f.events {
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepo) ListResolvable(_ context.Context) ([]domain.WinterEvent, error) {
	var out []domain.WinterEvent
	for _, e := range f.events {
		if e.Status != domain.StatusCancelled {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeRepo) ActiveEvent(_ context.Context) (*domain.WinterEvent, error) {
	for _, e := range f.events {
		if e.Status == domain.StatusActive {
			active := e
			return &active, nil
		}
	}
	return nil, nil
}

type fakeTickets struct {
	bindings []TicketBinding
	setCalls int
	updates  map[uuid.UUID]*uuid.UUID
}

func newFakeTickets(bindings ...TicketBinding) *fakeTickets {
	return &fakeTickets{bindings: bindings, updates: make(map[uuid.UUID]*uuid.UUID)}
}

func (f *fakeTickets) ListBindings(_ context.Context) ([]TicketBinding, error) {
	return f.bindings, nil
}

func (f *fakeTickets) SetEventBinding(_ context.Context, ticketID uuid.UUID, eventID *uuid.UUID) error {
	f.setCalls++
	f.updates[ticketID] = eventID
	return nil
}

type fakeBus struct {
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, e events.Event)           { f.published = append(f.published, e) }
func (f *fakeBus) PublishSync(_ context.Context, e events.Event) error { f.published = append(f.published, e); return nil }
func (f *fakeBus) Subscribe(string, events.Handler)                    {}

func newTestService(repo *fakeRepo, tickets *fakeTickets) (*Service, *fakeBus) {
	bus := &fakeBus{}
	return New(repo, tickets, nil, bus, logger.New("development")), bus
}

func TestCreateRejectsSecondActiveEvent(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeTickets())
	ctx := context.Background()

	if _, err := svc.Create(ctx, CreateInput{Name: "Storm A", StartDate: time.Now()}); err != nil {
		t.Fatalf("first create: unexpected error %v", err)
	}

	_, err := svc.Create(ctx, CreateInput{Name: "Storm B", StartDate: time.Now()})
	if !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict for second active event, got %v", err)
	}
}

func TestCreateWithEndDateIsCompleted(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeTickets())

	start := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Hour)
	event, err := svc.Create(context.Background(), CreateInput{Name: "Backfill", StartDate: start, EndDate: &end})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if event.Status != domain.StatusCompleted {
		t.Fatalf("expected completed status, got %s", event.Status)
	}
	// A back-filled storm must not block opening a live one.
	if _, err := svc.Create(context.Background(), CreateInput{Name: "Live", StartDate: time.Now()}); err != nil {
		t.Fatalf("live create after backfill: %v", err)
	}
}

func TestCompleteValidatesEndAfterStart(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeTickets())
	ctx := context.Background()

	start := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	event, err := svc.Create(ctx, CreateInput{Name: "Storm", StartDate: start})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	bad := start.Add(-time.Hour)
	if _, err := svc.Complete(ctx, event.ID, &bad); !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}

	good := start.Add(6 * time.Hour)
	completed, err := svc.Complete(ctx, event.ID, &good)
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if completed.Status != domain.StatusCompleted || completed.EndDate == nil || !completed.EndDate.Equal(good) {
		t.Fatalf("unexpected completed event: %+v", completed)
	}

	if _, err := svc.Complete(ctx, event.ID, nil); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double complete, got %v", err)
	}
}

func TestReassignAllCountsAndOnlyWritesChanges(t *testing.T) {
	repo := newFakeRepo()
	start := time.Date(2026, 1, 10, 18, 0, 0, 0, time.UTC)
	end := start.Add(12 * time.Hour)
	event := domain.WinterEvent{ID: uuid.New(), Name: "Storm", StartDate: start, EndDate: &end, Status: domain.StatusCompleted}
	repo.events[event.ID] = event

	stale := uuid.New()
	inside := TicketBinding{TicketID: uuid.New(), TimeIn: start.Add(time.Hour)}               // should bind
	already := TicketBinding{TicketID: uuid.New(), TimeIn: start.Add(2 * time.Hour), WinterEventID: &event.ID} // no write
	outside := TicketBinding{TicketID: uuid.New(), TimeIn: end.Add(time.Hour), WinterEventID: &stale}          // should clear

	tickets := newFakeTickets(inside, already, outside)
	svc, _ := newTestService(repo, tickets)

	stats, err := svc.ReassignAll(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Total != 3 || stats.Assigned != 2 || stats.Unassigned != 1 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if stats.Changed != 2 {
		t.Fatalf("expected 2 changed, got %d", stats.Changed)
	}
	if tickets.setCalls != 2 {
		t.Fatalf("expected 2 binding writes, got %d", tickets.setCalls)
	}
	if got := tickets.updates[inside.TicketID]; got == nil || *got != event.ID {
		t.Fatalf("inside ticket not bound to event: %v", got)
	}
	if got, ok := tickets.updates[outside.TicketID]; !ok || got != nil {
		t.Fatalf("outside ticket binding not cleared: %v %v", got, ok)
	}
}

func TestCancelledEventsCannotBeEdited(t *testing.T) {
	repo := newFakeRepo()
	svc, _ := newTestService(repo, newFakeTickets())
	ctx := context.Background()

	event, err := svc.Create(ctx, CreateInput{Name: "Storm", StartDate: time.Now()})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Cancel(ctx, event.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	name := "renamed"
	if _, err := svc.Update(ctx, event.ID, UpdateInput{Name: &name}); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict editing cancelled event, got %v", err)
	}
}
