package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fooddash-backend/pkg/instance"
)

// A tick that outlives the lock lets a second worker start the same sweep,
// so the default stays well above the cron interval.
const defaultLockTTL = 10 * time.Minute

// Lock keeps top-up expiry and wallet reconciliation to one worker per tick.
type Lock interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

type redisStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Get(ctx context.Context, key string) (string, error)
	Del(ctx context.Context, keys ...string) error
}

// RedisLock stores "<instance>/<token>" under key so operators can see which
// worker holds the sweep.
type RedisLock struct {
	store redisStore
	key   string
	ttl   time.Duration
	held  string
}

func NewRedisLock(store redisStore, key string, ttl time.Duration) (*RedisLock, error) {
	switch {
	case store == nil:
		return nil, errors.New("cron lock: redis store required")
	case key == "":
		return nil, errors.New("cron lock: key required")
	}
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLock{store: store, key: key, ttl: ttl}, nil
}

// Holder returns the value written by the last successful Acquire.
func (l *RedisLock) Holder() string {
	return l.held
}

func (l *RedisLock) Acquire(ctx context.Context) (bool, error) {
	token := instance.GetID() + "/" + uuid.NewString()
	won, err := l.store.SetNX(ctx, l.key, token, l.ttl)
	if err != nil {
		return false, fmt.Errorf("cron lock %s: %w", l.key, err)
	}
	if won {
		l.held = token
	}
	return won, nil
}

// Release deletes the key only while it still carries this lock's token. An
// expired lock that another worker has since taken is left alone.
func (l *RedisLock) Release(ctx context.Context) error {
	if l.held == "" {
		return nil
	}
	token := l.held
	l.held = ""

	current, err := l.store.Get(ctx, l.key)
	switch {
	case errors.Is(err, redis.Nil):
		return nil
	case err != nil:
		return fmt.Errorf("cron lock %s: read holder: %w", l.key, err)
	case current != token:
		return nil
	}
	if err := l.store.Del(ctx, l.key); err != nil {
		return fmt.Errorf("cron lock %s: delete: %w", l.key, err)
	}
	return nil
}
