package sms

import (
	"context"
	"time"

	"winterops_backend/platform/config"
	"winterops_backend/platform/logger"

	"github.com/redis/go-redis/v9"
)

// seenTTL covers Twilio's redelivery window with margin.
const seenTTL = 24 * time.Hour

// Dedupe is the fast half of webhook idempotency: a Redis SETNX per message
// SID rejects redeliveries before any database work. The unique constraint
// on the messages table remains the durable half, so the cache fails open.
type Dedupe struct {
	client *redis.Client
	log    *logger.Logger
}

// NewDedupe creates the delivery cache. Without Redis every message passes
// through to the database check.
func NewDedupe(cfg config.RedisConfig, log *logger.Logger) *Dedupe {
	if !cfg.IsRedisEnabled() {
		log.Warn("redis not configured; webhook dedupe relies on the database only")
		return &Dedupe{log: log}
	}

	opt, err := redis.ParseURL(cfg.GetRedisURL())
	if err != nil {
		log.Error("invalid redis url; webhook dedupe relies on the database only", "error", err)
		return &Dedupe{log: log}
	}

	return &Dedupe{client: redis.NewClient(opt), log: log}
}

// FirstDelivery reports whether this message SID has not been seen yet.
func (d *Dedupe) FirstDelivery(ctx context.Context, providerSID string) bool {
	if d == nil || d.client == nil {
		return true
	}

	ok, err := d.client.SetNX(ctx, "sms:seen:"+providerSID, 1, seenTTL).Result()
	if err != nil {
		d.log.Error("sms dedupe cache unavailable", "error", err)
		return true
	}
	return ok
}

// Forget releases a SID claimed by FirstDelivery. Called when a turn fails
// before anything was persisted, so the provider's retry is processed
// instead of being swallowed for the TTL.
func (d *Dedupe) Forget(ctx context.Context, providerSID string) {
	if d == nil || d.client == nil {
		return
	}
	if err := d.client.Del(ctx, "sms:seen:"+providerSID).Err(); err != nil {
		d.log.Error("sms dedupe release failed", "sid", providerSID, "error", err)
	}
}

// Close releases the Redis connection.
func (d *Dedupe) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
