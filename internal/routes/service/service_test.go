package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"winterops_backend/internal/events"
	"winterops_backend/internal/routes/domain"
	"winterops_backend/platform/apperr"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

// ticketRow is the fake store's flat representation of a route ticket.
type ticketRow struct {
	id           uuid.UUID
	propertyID   uuid.UUID
	propertyName string
	ownerID      uuid.UUID
	eventID      *uuid.UUID
	routeID      *uuid.UUID
	sequence     *int
	status       *domain.RouteStatus
}

// fakeStore implements RouteRepository and TicketCreator over in-memory
// maps. Each mutation holds the store lock, matching the row-level
// atomicity of the real conditional updates.
type fakeStore struct {
	mu            sync.Mutex
	routes        map[uuid.UUID]domain.Route
	props         map[uuid.UUID][]domain.RouteProperty
	tickets       map[uuid.UUID]*ticketRow
	completeTimes map[uuid.UUID]time.Time
	activateTimes map[uuid.UUID]time.Time
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		routes:        make(map[uuid.UUID]domain.Route),
		props:         make(map[uuid.UUID][]domain.RouteProperty),
		tickets:       make(map[uuid.UUID]*ticketRow),
		completeTimes: make(map[uuid.UUID]time.Time),
		activateTimes: make(map[uuid.UUID]time.Time),
	}
}

func (f *fakeStore) addRoute(name string, propertyNames ...string) uuid.UUID {
	id := uuid.New()
	f.routes[id] = domain.Route{ID: id, Name: name, PropertyCount: len(propertyNames)}
	for i, propName := range propertyNames {
		f.props[id] = append(f.props[id], domain.RouteProperty{
			RouteID:      id,
			PropertyID:   uuid.New(),
			PropertyName: propName,
			Sequence:     i + 1,
		})
	}
	return id
}

func (f *fakeStore) GetRoute(_ context.Context, id uuid.UUID) (domain.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	route, ok := f.routes[id]
	if !ok {
		return domain.Route{}, errRouteNotFound
	}
	return route, nil
}

func (f *fakeStore) ListRoutes(_ context.Context) ([]domain.Route, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Route
	for _, r := range f.routes {
		out = append(out, r)
	}
	return out, nil
}

func (f *fakeStore) ListProperties(_ context.Context, routeID uuid.UUID) ([]domain.RouteProperty, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.props[routeID], nil
}

func (f *fakeStore) GetRouteTicket(_ context.Context, id uuid.UUID) (domain.RouteTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tickets[id]
	if !ok {
		return domain.RouteTicket{}, errTicketNotFound
	}
	return row.projection(), nil
}

func (f *fakeStore) CompleteTicket(_ context.Context, id uuid.UUID, timeOut time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tickets[id]
	if !ok || row.status == nil || *row.status != domain.RouteActive {
		return false, nil
	}
	*row.status = domain.RouteComplete
	f.completeTimes[id] = timeOut
	return true, nil
}

func (f *fakeStore) ActivateTicket(_ context.Context, id uuid.UUID, timeIn time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	row, ok := f.tickets[id]
	if !ok || row.status == nil || *row.status != domain.RouteQueued {
		return false, nil
	}
	*row.status = domain.RouteActive
	f.activateTimes[id] = timeIn
	return true, nil
}

func (f *fakeStore) NextQueued(_ context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID, afterSeq int) (*domain.RouteTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *ticketRow
	for _, row := range f.tickets {
		if row.routeID == nil || *row.routeID != routeID || row.ownerID != crewID {
			continue
		}
		if !sameEvent(row.eventID, eventID) || *row.status != domain.RouteQueued || *row.sequence <= afterSeq {
			continue
		}
		if best == nil || *row.sequence < *best.sequence {
			best = row
		}
	}
	if best == nil {
		return nil, nil
	}
	p := best.projection()
	return &p, nil
}

func (f *fakeStore) ActiveTicketForCrew(_ context.Context, crewID uuid.UUID, eventID *uuid.UUID) (*domain.RouteTicket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.tickets {
		if row.ownerID == crewID && sameEvent(row.eventID, eventID) &&
			row.status != nil && *row.status == domain.RouteActive {
			p := row.projection()
			return &p, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) Progress(_ context.Context, routeID uuid.UUID, eventID *uuid.UUID, crewID uuid.UUID) (domain.Progress, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var p domain.Progress
	for _, row := range f.tickets {
		if row.routeID == nil || *row.routeID != routeID || row.ownerID != crewID || !sameEvent(row.eventID, eventID) {
			continue
		}
		p.Total++
		switch *row.status {
		case domain.RouteComplete:
			p.Completed++
		case domain.RouteActive:
			p.Active++
		case domain.RouteQueued:
			p.Queued++
		}
	}
	return p, nil
}

func (f *fakeStore) CrewName(_ context.Context, _ uuid.UUID) (string, error) {
	return "Crew One", nil
}

func (f *fakeStore) CreateRouteTicket(_ context.Context, params TicketParams) (uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	status := params.RouteStatus
	seq := params.Sequence
	routeID := params.RouteID
	row := &ticketRow{
		id:         uuid.New(),
		propertyID: params.PropertyID,
		ownerID:    params.OwnerID,
		eventID:    params.WinterEventID,
		routeID:    &routeID,
		sequence:   &seq,
		status:     &status,
	}
	for _, prop := range f.props[routeID] {
		if prop.PropertyID == params.PropertyID {
			row.propertyName = prop.PropertyName
		}
	}
	f.tickets[row.id] = row
	return row.id, nil
}

func (f *fakeStore) activeCount(routeID, crewID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, row := range f.tickets {
		if row.routeID != nil && *row.routeID == routeID && row.ownerID == crewID && *row.status == domain.RouteActive {
			n++
		}
	}
	return n
}

func (f *fakeStore) ticketBySequence(routeID uuid.UUID, seq int) *ticketRow {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, row := range f.tickets {
		if row.routeID != nil && *row.routeID == routeID && row.sequence != nil && *row.sequence == seq {
			return row
		}
	}
	return nil
}

func (t *ticketRow) projection() domain.RouteTicket {
	p := domain.RouteTicket{
		ID:            t.id,
		PropertyID:    t.propertyID,
		PropertyName:  t.propertyName,
		OwnerID:       t.ownerID,
		WinterEventID: t.eventID,
		RouteID:       t.routeID,
		Sequence:      t.sequence,
	}
	if t.status != nil {
		status := *t.status
		p.Status = &status
	}
	return p
}

func sameEvent(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

var (
	errRouteNotFound  = routeRepoErr("route not found")
	errTicketNotFound = routeRepoErr("ticket not found")
)

type routeRepoErr string

func (e routeRepoErr) Error() string { return string(e) }

type fakeResolver struct {
	eventID *uuid.UUID
}

func (f *fakeResolver) ActiveEventID(context.Context) (*uuid.UUID, error) {
	return f.eventID, nil
}

type fakeBus struct {
	mu        sync.Mutex
	published []events.Event
}

func (f *fakeBus) Publish(_ context.Context, e events.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = append(f.published, e)
}

func (f *fakeBus) PublishSync(ctx context.Context, e events.Event) error {
	f.Publish(ctx, e)
	return nil
}

func (f *fakeBus) Subscribe(string, events.Handler) {}

func (f *fakeBus) names() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.published {
		out = append(out, e.EventName())
	}
	return out
}

func newTestService(store *fakeStore, eventID *uuid.UUID) (*Service, *fakeBus) {
	bus := &fakeBus{}
	svc := New(store, store, &fakeResolver{eventID: eventID}, bus, logger.New("development"))
	return svc, bus
}

func TestActivateRouteOpensTicketsAndActivatesFirst(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "Depot Plaza", "Mill Creek Office", "Harbor Warehouse")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, bus := newTestService(store, &eventID)

	result, err := svc.ActivateRoute(context.Background(), routeID, crewID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.TicketsOpened != 3 {
		t.Fatalf("expected 3 tickets, got %d", result.TicketsOpened)
	}
	if result.FirstProperty != "Depot Plaza" {
		t.Fatalf("expected first property Depot Plaza, got %q", result.FirstProperty)
	}
	if result.Progress.Active != 1 || result.Progress.Queued != 2 {
		t.Fatalf("unexpected progress: %+v", result.Progress)
	}
	if n := store.activeCount(routeID, crewID); n != 1 {
		t.Fatalf("expected 1 active ticket, got %d", n)
	}

	found := false
	for _, name := range bus.names() {
		if name == "tickets.opened" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected tickets.opened event")
	}
}

func TestActivateRouteRejectsBusyCrew(t *testing.T) {
	store := newFakeStore()
	routeA := store.addRoute("Route A", "One")
	routeB := store.addRoute("Route B", "Two")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, _ := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeA, crewID); err != nil {
		t.Fatalf("first activation: %v", err)
	}
	if _, err := svc.ActivateRoute(ctx, routeB, crewID); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict while a property is active, got %v", err)
	}
}

func TestAutoAdvanceThroughThreePropertyRoute(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "Depot Plaza", "Mill Creek Office", "Harbor Warehouse")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, bus := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeID, crewID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	complete := func(seq int) CompletionResult {
		t.Helper()
		row := store.ticketBySequence(routeID, seq)
		if row == nil {
			t.Fatalf("no ticket at sequence %d", seq)
		}
		result, err := svc.CompleteCurrentProperty(ctx, row.id, crewID, false)
		if err != nil {
			t.Fatalf("complete sequence %d: %v", seq, err)
		}
		if n := store.activeCount(routeID, crewID); n > 1 {
			t.Fatalf("after completing %d: %d active tickets", seq, n)
		}
		return result
	}

	first := complete(1)
	if first.NextPropertyName == nil || *first.NextPropertyName != "Mill Creek Office" {
		t.Fatalf("expected Mill Creek Office next, got %v", first.NextPropertyName)
	}
	if first.RouteComplete {
		t.Fatal("route reported complete after first property")
	}

	second := complete(2)
	if second.NextPropertyName == nil || *second.NextPropertyName != "Harbor Warehouse" {
		t.Fatalf("expected Harbor Warehouse next, got %v", second.NextPropertyName)
	}

	last := complete(3)
	if last.NextPropertyName != nil {
		t.Fatalf("expected no next property, got %v", *last.NextPropertyName)
	}
	if !last.RouteComplete {
		t.Fatal("expected route_complete after final property")
	}
	if last.Progress.Completed != 3 || last.Progress.Queued != 0 || last.Progress.Active != 0 {
		t.Fatalf("unexpected final progress: %+v", last.Progress)
	}

	found := false
	for _, name := range bus.names() {
		if name == "routes.completed" {
			found = true
		}
	}
	if !found {
		t.Fatal("expected routes.completed event")
	}
}

func TestAdvanceWritesGridAlignedTimestamps(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "Depot Plaza", "Mill Creek Office")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, _ := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeID, crewID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	first := store.ticketBySequence(routeID, 1)
	if _, err := svc.CompleteCurrentProperty(ctx, first.id, crewID, false); err != nil {
		t.Fatalf("complete: %v", err)
	}

	onGrid := func(ts time.Time) bool { return ts.Equal(ts.Truncate(15 * time.Minute)) }

	timeOut, ok := store.completeTimes[first.id]
	if !ok {
		t.Fatal("no time-out recorded for the completed stop")
	}
	if !onGrid(timeOut) {
		t.Fatalf("time-out %v is off the billing grid", timeOut)
	}

	successor := store.ticketBySequence(routeID, 2)
	timeIn, ok := store.activateTimes[successor.id]
	if !ok {
		t.Fatal("no time-in recorded for the advanced stop")
	}
	if !onGrid(timeIn) {
		t.Fatalf("successor time-in %v is off the billing grid", timeIn)
	}
}

func TestCompleteIsRejectedUnlessActive(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "One", "Two")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, _ := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeID, crewID); err != nil {
		t.Fatalf("activate: %v", err)
	}

	queued := store.ticketBySequence(routeID, 2)
	if _, err := svc.CompleteCurrentProperty(ctx, queued.id, crewID, false); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict completing a queued ticket, got %v", err)
	}

	active := store.ticketBySequence(routeID, 1)
	if _, err := svc.CompleteCurrentProperty(ctx, active.id, crewID, false); err != nil {
		t.Fatalf("complete active: %v", err)
	}
	// Completing twice must not disturb route state.
	if _, err := svc.CompleteCurrentProperty(ctx, active.id, crewID, false); !apperr.Is(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on double completion, got %v", err)
	}
	if got := *store.ticketBySequence(routeID, 1).status; got != domain.RouteComplete {
		t.Fatalf("completed ticket regressed to %s", got)
	}
	if got := *store.ticketBySequence(routeID, 2).status; got != domain.RouteActive {
		t.Fatalf("expected sequence 2 active, got %s", got)
	}
}

func TestCompleteRequiresOwnerOrPrivilege(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "One")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, _ := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeID, crewID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	ticket := store.ticketBySequence(routeID, 1)

	stranger := uuid.New()
	if _, err := svc.CompleteCurrentProperty(ctx, ticket.id, stranger, false); !apperr.Is(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden for stranger, got %v", err)
	}
	if _, err := svc.CompleteCurrentProperty(ctx, ticket.id, stranger, true); err != nil {
		t.Fatalf("manager completion: %v", err)
	}
}

func TestConcurrentCompletionsActivateOneSuccessor(t *testing.T) {
	store := newFakeStore()
	routeID := store.addRoute("North Loop", "One", "Two", "Three")
	eventID := uuid.New()
	crewID := uuid.New()
	svc, _ := newTestService(store, &eventID)
	ctx := context.Background()

	if _, err := svc.ActivateRoute(ctx, routeID, crewID); err != nil {
		t.Fatalf("activate: %v", err)
	}
	active := store.ticketBySequence(routeID, 1)

	const callers = 10
	var wg sync.WaitGroup
	errs := make([]error, callers)
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CompleteCurrentProperty(ctx, active.id, crewID, true)
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else if !apperr.Is(err, apperr.KindConflict) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 {
		t.Fatalf("expected exactly one successful completion, got %d", succeeded)
	}
	if n := store.activeCount(routeID, crewID); n != 1 {
		t.Fatalf("expected exactly one active successor, got %d", n)
	}
	if got := *store.ticketBySequence(routeID, 2).status; got != domain.RouteActive {
		t.Fatalf("expected sequence 2 active, got %s", got)
	}
	if got := *store.ticketBySequence(routeID, 3).status; got != domain.RouteQueued {
		t.Fatalf("expected sequence 3 still queued, got %s", got)
	}
}

func TestCompleteRejectsNonRouteTicket(t *testing.T) {
	store := newFakeStore()
	svc, _ := newTestService(store, nil)

	crewID := uuid.New()
	row := &ticketRow{id: uuid.New(), propertyID: uuid.New(), ownerID: crewID}
	store.tickets[row.id] = row

	_, err := svc.CompleteCurrentProperty(context.Background(), row.id, crewID, false)
	if !apperr.Is(err, apperr.KindValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
