package scheduler

import (
	"context"
	"fmt"

	eventsvc "winterops_backend/internal/winterevents/service"
	"winterops_backend/platform/config"
	"winterops_backend/platform/logger"

	"github.com/hibiken/asynq"
)

// Rebinder is the slice of the winter event service the worker needs.
type Rebinder interface {
	ReassignAll(ctx context.Context) (eventsvc.ReassignStats, error)
}

// Worker consumes scheduler tasks.
type Worker struct {
	server   *asynq.Server
	mux      *asynq.ServeMux
	rebinder Rebinder
	log      *logger.Logger
}

// NewWorker builds the task consumer.
func NewWorker(cfg config.SchedulerConfig, rebinder Rebinder, log *logger.Logger) (*Worker, error) {
	redisURL := cfg.GetRedisURL()
	if redisURL == "" {
		return nil, fmt.Errorf("redis url not configured")
	}

	opt, err := redisClientOpt(redisURL, cfg.GetRedisTLSInsecure())
	if err != nil {
		return nil, err
	}

	queue := cfg.GetAsynqQueueName()
	if queue == "" {
		queue = "default"
	}

	concurrency := cfg.GetAsynqConcurrency()
	if concurrency < 1 {
		concurrency = 10
	}

	server := asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			queue: 1,
		},
	})

	mux := asynq.NewServeMux()
	w := &Worker{
		server:   server,
		mux:      mux,
		rebinder: rebinder,
		log:      log,
	}

	mux.HandleFunc(TaskEventRebind, w.handleEventRebind)

	return w, nil
}

func (w *Worker) handleEventRebind(ctx context.Context, _ *asynq.Task) error {
	stats, err := w.rebinder.ReassignAll(ctx)
	if err != nil {
		return err
	}

	w.log.Info("event rebind pass finished",
		"total", stats.Total,
		"assigned", stats.Assigned,
		"unassigned", stats.Unassigned,
		"changed", stats.Changed,
	)
	return nil
}

// Run serves tasks until the context is cancelled.
func (w *Worker) Run(ctx context.Context) {
	if w == nil || w.server == nil {
		return
	}

	go func() {
		<-ctx.Done()
		w.server.Shutdown()
	}()

	if err := w.server.Run(w.mux); err != nil {
		w.log.Error("scheduler worker stopped", "error", err)
	}
}
