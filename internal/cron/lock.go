package cron

import (
	"context"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// locker is the minimal Redis surface the distributed lock needs.
type locker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock is a best-effort distributed lock keeping multiple worker
// replicas from running the same tick concurrently.
type RedisLock struct {
	store locker
	key   string
	ttl   time.Duration
	owner string
}

func NewRedisLock(store locker, key string, ttl time.Duration) *RedisLock {
	return &RedisLock{
		store: store,
		key:   key,
		ttl:   ttl,
		owner: uuid.NewString(),
	}
}

// Acquire attempts to take the lock; false means another replica holds it.
func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	return l.store.SetNX(ctx, l.key, l.owner, l.ttl)
}

// Release drops the lock only when this replica still owns it.
func (l *RedisLock) Release(ctx context.Context) error {
	current, err := l.store.Get(ctx, l.key)
	if err != nil {
		if err == goredis.Nil {
			return nil
		}
		return err
	}
	if current != l.owner {
		return nil
	}
	return l.store.Del(ctx, l.key)
}
