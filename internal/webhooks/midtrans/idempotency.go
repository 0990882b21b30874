package midtranswebhook

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/redis"
)

// IdempotencyGuard remembers which notifications were already handled so
// gateway redeliveries become no-ops.
type IdempotencyGuard struct {
	store redis.IdempotencyStore
	ttl   time.Duration
	scope string
}

func NewIdempotencyGuard(store redis.IdempotencyStore, ttl time.Duration, scope string) (*IdempotencyGuard, error) {
	if store == nil {
		return nil, errors.New("idempotency store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	if scope == "" {
		return nil, errors.New("scope is required")
	}
	return &IdempotencyGuard{
		store: store,
		ttl:   ttl,
		scope: scope,
	}, nil
}

// CheckAndMark returns true when key was seen before.
func (g *IdempotencyGuard) CheckAndMark(ctx context.Context, key string) (bool, error) {
	if key == "" {
		return false, errors.New("notification key is required")
	}
	set, err := g.store.SetNX(ctx, g.store.IdempotencyKey(g.scope, key), "1", g.ttl)
	if err != nil {
		return false, fmt.Errorf("set idempotency key: %w", err)
	}
	return !set, nil
}

// Release forgets key so a failed notification can be retried.
func (g *IdempotencyGuard) Release(ctx context.Context, key string) error {
	if key == "" {
		return errors.New("notification key is required")
	}
	return g.store.Del(ctx, g.store.IdempotencyKey(g.scope, key))
}
