// Package scheduler queues background work on asynq: today that is the
// bulk event-rebind pass triggered by storm window edits.
package scheduler

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"winterops_backend/platform/config"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Client enqueues scheduler tasks. A nil client drops enqueues silently so
// callers can run without Redis and fall back to inline work.
type Client struct {
	client *asynq.Client
	queue  string
}

// NewClient connects the task queue.
func NewClient(cfg config.SchedulerConfig) (*Client, error) {
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

	return &Client{
		client: asynq.NewClient(opt),
		queue:  queue,
	}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

// EnqueueEventRebind queues a bulk rebind pass. Uniqueness collapses the
// burst of edits a dispatcher makes while adjusting a storm window into a
// single pass.
func (c *Client) EnqueueEventRebind(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}

	_, err := c.client.EnqueueContext(ctx, NewEventRebindTask(),
		asynq.Queue(c.queue),
		asynq.Unique(30*time.Second),
		asynq.MaxRetry(3),
	)
	if err != nil && err != asynq.ErrDuplicateTask {
		return err
	}
	return nil
}

func redisClientOpt(redisURL string, tlsInsecure bool) (asynq.RedisClientOpt, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return asynq.RedisClientOpt{}, err
	}

	var tlsConfig *tls.Config
	if opt.TLSConfig != nil {
		clone := opt.TLSConfig.Clone()
		if tlsInsecure {
			clone.InsecureSkipVerify = true
		}
		tlsConfig = clone
	} else if tlsInsecure {
		tlsConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return asynq.RedisClientOpt{
		Addr:      opt.Addr,
		Password:  opt.Password,
		DB:        opt.DB,
		TLSConfig: tlsConfig,
	}, nil
}
