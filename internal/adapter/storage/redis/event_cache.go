package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"investment-core/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
)

// EventCache implements ports.ProcessedEventCache. It only short-circuits
// replays; the settlement procedure remains the source of truth.
type EventCache struct {
	client goredis.UniversalClient
	prefix string
}

// NewEventCache creates a Redis-backed processed-event cache.
func NewEventCache(client goredis.UniversalClient) *EventCache {
	return &EventCache{
		client: client,
		prefix: "webhook:processed:",
	}
}

// Seen reports whether eventID has already been handled.
func (c *EventCache) Seen(ctx context.Context, eventID string) (bool, error) {
	_, err := c.client.Get(ctx, c.prefix+eventID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis event cache get: %w", err)
	}
	return true, nil
}

// Remember marks eventID as handled with the given outcome.
func (c *EventCache) Remember(ctx context.Context, eventID string, outcome domain.WebhookOutcome, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.prefix+eventID, string(outcome), ttl).Err(); err != nil {
		return fmt.Errorf("redis event cache set: %w", err)
	}
	return nil
}

// Outcome returns the stored outcome for eventID, or "" when unknown.
func (c *EventCache) Outcome(ctx context.Context, eventID string) (domain.WebhookOutcome, error) {
	val, err := c.client.Get(ctx, c.prefix+eventID).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("redis event cache get: %w", err)
	}
	return domain.WebhookOutcome(val), nil
}
