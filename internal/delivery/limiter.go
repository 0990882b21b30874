package delivery

import (
	"context"
	"errors"
	"time"
)

type attemptStore interface {
	IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error)
	Del(ctx context.Context, keys ...string) error
	AttemptKey(scope, id string) string
}

const attemptScope = "delivery-code"

// AttemptLimiter counts delivery-code submissions per order in a fixed window
// that starts at the first submission. A matching code resets the count.
type AttemptLimiter struct {
	store  attemptStore
	max    int
	window time.Duration
}

func NewAttemptLimiter(store attemptStore, max int, window time.Duration) (*AttemptLimiter, error) {
	if store == nil {
		return nil, errors.New("attempt store required")
	}
	if max <= 0 {
		return nil, errors.New("max failed attempts must be positive")
	}
	if window <= 0 {
		return nil, errors.New("attempt window must be positive")
	}
	return &AttemptLimiter{store: store, max: max, window: window}, nil
}

// Reserve takes one attempt slot for orderID before the code is compared.
// The increment is the check, so concurrent callers never share a slot.
// allowed is false once the window's slots are spent; remaining is what is
// left after this attempt.
func (l *AttemptLimiter) Reserve(ctx context.Context, orderID string) (remaining int, allowed bool, err error) {
	used, err := l.store.IncrWithTTL(ctx, l.store.AttemptKey(attemptScope, orderID), l.window)
	if err != nil {
		return 0, false, err
	}
	if used > int64(l.max) {
		return 0, false, nil
	}
	return l.max - int(used), true, nil
}

func (l *AttemptLimiter) Reset(ctx context.Context, orderID string) error {
	return l.store.Del(ctx, l.store.AttemptKey(attemptScope, orderID))
}

func (l *AttemptLimiter) Max() int {
	return l.max
}

func (l *AttemptLimiter) Window() time.Duration {
	return l.window
}
