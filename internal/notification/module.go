// Package notification subscribes to domain events and notifies dispatch.
// Domain modules publish what happened; this module decides who hears
// about it and over which channel.
package notification

import (
	"context"

	"winterops_backend/internal/email"
	"winterops_backend/internal/events"
	"winterops_backend/platform/config"
	"winterops_backend/platform/logger"
)

// Module handles notification-related event subscriptions.
type Module struct {
	sender email.Sender
	cfg    config.EmailConfig
	log    *logger.Logger
}

// New creates a new notification module. sender may be nil when email is
// not configured; events are then logged and dropped.
func New(sender email.Sender, cfg config.EmailConfig, log *logger.Logger) *Module {
	return &Module{sender: sender, cfg: cfg, log: log}
}

// RegisterHandlers subscribes to the domain events dispatch cares about.
func (m *Module) RegisterHandlers(bus events.Bus) {
	bus.Subscribe(events.RouteCompleted{}.EventName(), m)

	m.log.Info("notification module registered event handlers")
}

// Handle routes events to the appropriate handler method.
func (m *Module) Handle(ctx context.Context, event events.Event) error {
	switch e := event.(type) {
	case events.RouteCompleted:
		return m.handleRouteCompleted(ctx, e)
	default:
		m.log.Warn("unhandled event type", "event", event.EventName())
		return nil
	}
}

func (m *Module) handleRouteCompleted(ctx context.Context, e events.RouteCompleted) error {
	if m.sender == nil || !m.cfg.GetEmailEnabled() {
		m.log.Info("route completed; email disabled",
			"routeId", e.RouteID,
			"route", e.RouteName,
			"crew", e.CrewName,
		)
		return nil
	}

	toEmail := m.cfg.GetDispatchEmail()
	if err := m.sender.SendRouteCompletedEmail(ctx, toEmail, e.RouteName, e.CrewName, e.Completed, e.Total); err != nil {
		m.log.Error("failed to send route completed email",
			"routeId", e.RouteID,
			"email", toEmail,
			"error", err,
		)
		return err
	}

	m.log.Info("route completed email sent", "routeId", e.RouteID, "email", toEmail)
	return nil
}
