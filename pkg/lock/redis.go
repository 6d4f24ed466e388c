package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotAcquired = errors.New("slot lock not acquired")

// SlotLocker guards the check-then-insert window of the booking workflow
// for one (date, time) slot. It is advisory only: the partial unique
// index on appointments is the actual safety mechanism.
type SlotLocker interface {
	WithSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error
}

type redisSlotLocker struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisSlotLocker creates a locker keyed per slot.
func NewRedisSlotLocker(client *redis.Client, ttl time.Duration) SlotLocker {
	return &redisSlotLocker{client: client, ttl: ttl}
}

func (l *redisSlotLocker) WithSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error {
	key := fmt.Sprintf("lock:slot:%s:%s", date, slot)
	token := uuid.NewString()

	ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("acquire slot lock: %w", err)
	}
	if !ok {
		return ErrNotAcquired
	}

	defer func() {
		_ = l.release(ctx, key, token)
	}()

	lockCtx, cancel := context.WithTimeout(ctx, l.ttl)
	defer cancel()

	return fn(lockCtx)
}

var unlockScript = redis.NewScript(`
local val = redis.call("GET", KEYS[1])
if val == ARGV[1] then
  return redis.call("DEL", KEYS[1])
else
  return 0
end
`)

func (l *redisSlotLocker) release(ctx context.Context, key, token string) error {
	_, err := unlockScript.Run(ctx, l.client, []string{key}, token).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release slot lock: %w", err)
	}
	return nil
}

// NoopLocker runs the critical section without locking. Used when Redis
// is not configured; the database constraint still holds.
type NoopLocker struct{}

func (NoopLocker) WithSlotLock(ctx context.Context, date, slot string, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
