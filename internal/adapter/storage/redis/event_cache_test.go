package redis

import (
	"context"
	"testing"
	"time"

	"investment-core/internal/core/domain"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventCache_RememberAndSeen(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	ctx := context.Background()

	seen, err := cache.Seen(ctx, "pay_123")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.Remember(ctx, "pay_123", domain.WebhookSettled, time.Hour))

	seen, err = cache.Seen(ctx, "pay_123")
	require.NoError(t, err)
	assert.True(t, seen)

	outcome, err := cache.Outcome(ctx, "pay_123")
	require.NoError(t, err)
	assert.Equal(t, domain.WebhookSettled, outcome)

	assert.True(t, s.Exists("webhook:processed:pay_123"))
}

func TestEventCache_Expiry(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	ctx := context.Background()

	require.NoError(t, cache.Remember(ctx, "pay_456", domain.WebhookDuplicate, time.Second))
	s.FastForward(2 * time.Second)

	seen, err := cache.Seen(ctx, "pay_456")
	require.NoError(t, err)
	assert.False(t, seen, "expired marker falls back to the database check")

	outcome, err := cache.Outcome(ctx, "pay_456")
	require.NoError(t, err)
	assert.Empty(t, outcome)
}

func TestEventCache_ConnectionError(t *testing.T) {
	s := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: s.Addr()})
	cache := NewEventCache(client)
	s.Close()

	_, err := cache.Seen(context.Background(), "pay_789")
	assert.Error(t, err)
}
