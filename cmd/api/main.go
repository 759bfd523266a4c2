package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"winterops_backend/internal/adapters"
	convrepo "winterops_backend/internal/conversation/repository"
	convsvc "winterops_backend/internal/conversation/service"
	"winterops_backend/internal/email"
	"winterops_backend/internal/events"
	apphttp "winterops_backend/internal/http"
	"winterops_backend/internal/http/router"
	"winterops_backend/internal/intent"
	"winterops_backend/internal/notification"
	"winterops_backend/internal/properties"
	"winterops_backend/internal/routes"
	"winterops_backend/internal/scheduler"
	"winterops_backend/internal/sms"
	"winterops_backend/internal/tickets"
	ticketrepo "winterops_backend/internal/tickets/repository"
	"winterops_backend/internal/winterevents"
	eventsvc "winterops_backend/internal/winterevents/service"
	"winterops_backend/platform/config"
	"winterops_backend/platform/db"
	"winterops_backend/platform/logger"
	"winterops_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	// Initialize structured logger
	log := logger.New(cfg.Env)
	log.Info("starting server", "env", cfg.Env, "addr", cfg.HTTPAddr)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// ========================================================================
	// Infrastructure Layer
	// ========================================================================

	if err := withRetry(ctx, log, "database migrations", 5, 2*time.Second, func() error {
		return db.RunMigrations(ctx, cfg, "migrations")
	}); err != nil {
		log.Error("failed to run database migrations", "error", err)
		panic("failed to run database migrations: " + err.Error())
	}
	log.Info("database migrations complete")

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()
	log.Info("database connection established")

	// Event bus for decoupled communication between modules
	eventBus := events.NewInMemoryBus(log)

	rebindScheduler, closeScheduler := initRebindScheduler(cfg, log)
	if closeScheduler != nil {
		defer closeScheduler()
	}

	// Shared validator instance for dependency injection
	val := validator.New()

	// ========================================================================
	// Domain Modules (Composition Root)
	// ========================================================================

	// Notification module subscribes to domain events (not HTTP-facing)
	var sender email.Sender
	if cfg.GetEmailEnabled() {
		sender = email.NewSMTPSender(
			cfg.GetSMTPHost(),
			cfg.GetSMTPPort(),
			cfg.GetSMTPUsername(),
			cfg.GetSMTPPassword(),
			cfg.GetEmailFromAddress(),
		)
	}
	notificationModule := notification.New(sender, cfg, log)
	notificationModule.RegisterHandlers(eventBus)

	// Ticket repository is shared with the adapters that bridge the SMS
	// engine, the route sequencer, and the event rebind pass into tickets.
	ticketRepo := ticketrepo.NewRepository(pool)

	bindingStore := adapters.NewTicketBindingStore(ticketRepo)
	winterEventsModule := winterevents.NewModule(pool, bindingStore, rebindScheduler, eventBus, val, log)
	resolver := winterEventsModule.Service()

	ticketsModule := tickets.NewModule(pool, resolver, eventBus, val, log)
	propertiesModule := properties.NewModule(pool)

	routeTickets := adapters.NewRouteTicketCreator(ticketRepo)
	routesModule := routes.NewModule(pool, routeTickets, resolver, eventBus, log)

	// Conversation engine: classifier, state machine, and its ticket and
	// assignment bridges.
	classifier, err := intent.NewClassifier(cfg.GetMoonshotAPIKey(), cfg.GetClassifierTimeout(), log)
	if err != nil {
		log.Error("failed to initialize intent classifier", "error", err)
		panic("failed to initialize intent classifier: " + err.Error())
	}

	conversationRepo := convrepo.NewRepository(pool)
	smsTickets := adapters.NewSMSTicketWriter(ticketRepo, resolver)
	smsAssignments := adapters.NewSMSAssignmentReader(propertiesModule.Repository())
	conversationService := convsvc.New(conversationRepo, classifier, smsTickets, smsAssignments, cfg.GetSelectionTTL(), eventBus, log)

	smsModule := sms.NewModule(conversationService, conversationRepo, cfg, cfg, val, log)
	defer func() {
		_ = smsModule.Close()
	}()

	// ========================================================================
	// HTTP Layer
	// ========================================================================

	app := &apphttp.App{
		Config:   cfg,
		Logger:   log,
		Health:   db.NewPoolAdapter(pool),
		EventBus: eventBus,
		Modules: []apphttp.Module{
			ticketsModule,
			winterEventsModule,
			routesModule,
			propertiesModule,
			smsModule,
		},
	}

	engine := router.New(app)

	srvErr := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.HTTPAddr)
		srvErr <- engine.Run(cfg.HTTPAddr)
	}()

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, gracefully shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = shutdownCtx
	case err := <-srvErr:
		if err != nil {
			log.Error("server error", "error", err)
			panic("server error: " + err.Error())
		}
	}
}

func initRebindScheduler(cfg config.SchedulerConfig, log *logger.Logger) (eventsvc.RebindScheduler, func()) {
	if cfg.GetRedisURL() == "" {
		log.Warn("REDIS_URL not configured; event rebind runs inline")
		return nil, nil
	}

	client, err := scheduler.NewClient(cfg)
	if err != nil {
		log.Error("failed to initialize scheduler client", "error", err)
		return nil, nil
	}

	return client, func() {
		_ = client.Close()
	}
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return fmt.Errorf("%s: invalid retry attempts", name)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
