package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const defaultLockTTL = 15 * time.Minute

// releaseScript deletes the key only while it still holds our owner token.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// JobLock is a SET NX lock that keeps scheduled jobs single-runner across
// worker replicas.
type JobLock struct {
	client goredis.UniversalClient
	key    string
	ttl    time.Duration

	mu    sync.Mutex
	owner string
}

// NewJobLock creates a Redis-backed job lock.
func NewJobLock(client goredis.UniversalClient, key string, ttl time.Duration) (*JobLock, error) {
	if client == nil {
		return nil, errors.New("redis client required for lock")
	}
	if key == "" {
		return nil, errors.New("lock key is required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &JobLock{client: client, key: key, ttl: ttl}, nil
}

// Acquire tries to own the lock for the configured TTL.
// Returns false when another runner holds it.
func (l *JobLock) Acquire(ctx context.Context) (bool, error) {
	owner := uuid.NewString()
	_, err := l.client.SetArgs(ctx, l.key, owner, goredis.SetArgs{
		Mode: "NX",
		TTL:  l.ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis lock acquire: %w", err)
	}

	l.mu.Lock()
	l.owner = owner
	l.mu.Unlock()
	return true, nil
}

// Release frees the lock if this instance still owns it.
func (l *JobLock) Release(ctx context.Context) error {
	l.mu.Lock()
	owner := l.owner
	l.owner = ""
	l.mu.Unlock()

	if owner == "" {
		return nil
	}
	if err := releaseScript.Run(ctx, l.client, []string{l.key}, owner).Err(); err != nil && !errors.Is(err, goredis.Nil) {
		return fmt.Errorf("redis lock release: %w", err)
	}
	return nil
}
