package notification

import (
	"context"
	"testing"

	"winterops_backend/internal/events"
	"winterops_backend/platform/logger"

	"github.com/google/uuid"
)

type testEmailConfig struct {
	enabled bool
}

func (c testEmailConfig) GetSMTPHost() string         { return "smtp.example.com" }
func (c testEmailConfig) GetSMTPPort() int            { return 587 }
func (c testEmailConfig) GetSMTPUsername() string     { return "ops" }
func (c testEmailConfig) GetSMTPPassword() string     { return "secret" }
func (c testEmailConfig) GetEmailFromAddress() string { return "ops@example.com" }
func (c testEmailConfig) GetDispatchEmail() string    { return "dispatch@example.com" }
func (c testEmailConfig) GetEmailEnabled() bool       { return c.enabled }

type testSender struct {
	routeCompletedCalls int
	lastRoute           string
	lastCrew            string
}

func (s *testSender) SendRouteCompletedEmail(_ context.Context, _, routeName, crewName string, _, _ int) error {
	s.routeCompletedCalls++
	s.lastRoute = routeName
	s.lastCrew = crewName
	return nil
}

func routeCompletedEvent() events.RouteCompleted {
	return events.RouteCompleted{
		BaseEvent: events.NewBaseEvent(),
		RouteID:   uuid.New(),
		RouteName: "North Industrial Loop",
		CrewID:    uuid.New(),
		CrewName:  "Sam Driver",
		Completed: 6,
		Total:     6,
	}
}

func TestRouteCompletedEmailsDispatch(t *testing.T) {
	sender := &testSender{}
	m := New(sender, testEmailConfig{enabled: true}, logger.New("development"))

	if err := m.Handle(context.Background(), routeCompletedEvent()); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if sender.routeCompletedCalls != 1 {
		t.Fatalf("routeCompletedCalls = %d, want 1", sender.routeCompletedCalls)
	}
	if sender.lastRoute != "North Industrial Loop" || sender.lastCrew != "Sam Driver" {
		t.Fatalf("email sent with route=%q crew=%q", sender.lastRoute, sender.lastCrew)
	}
}

func TestRouteCompletedWithEmailDisabledSendsNothing(t *testing.T) {
	sender := &testSender{}
	m := New(sender, testEmailConfig{enabled: false}, logger.New("development"))

	if err := m.Handle(context.Background(), routeCompletedEvent()); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if sender.routeCompletedCalls != 0 {
		t.Fatalf("routeCompletedCalls = %d, want 0", sender.routeCompletedCalls)
	}
}
