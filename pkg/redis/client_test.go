package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fooddash-backend/pkg/config"
)

func TestIncrWithTTLCountsAndExpiresOnce(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.AttemptKey("delivery", "order-1")

	for want := int64(1); want <= 3; want++ {
		got, err := client.IncrWithTTL(ctx, key, 15*time.Minute)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	assert.Equal(t, 15*time.Minute, mock.ttl[key], "first window must stick")
	assert.Equal(t, 3, mock.expireNXCalls)

	require.NoError(t, client.Del(ctx, key))
	_, err := client.Get(ctx, key)
	assert.ErrorIs(t, err, redis.Nil)
}

func TestIncrWithTTLReportsExpireFailure(t *testing.T) {
	mock := newMockCmdable()
	mock.expireErr = errors.New("READONLY")
	client := &Client{store: mock}

	count, err := client.IncrWithTTL(context.Background(), "k", time.Minute)
	require.Error(t, err)
	assert.Equal(t, int64(1), count)
}

func TestPublishRecordsChannel(t *testing.T) {
	mock := newMockCmdable()
	client := &Client{store: mock}

	channel := client.ChannelKey("realtime", "user-1")
	require.NoError(t, client.Publish(context.Background(), channel, []byte(`{"event":"wallet.balance_updated"}`)))
	assert.Len(t, mock.published[channel], 1)
}

func TestUninitializedClientErrors(t *testing.T) {
	client := &Client{}
	assert.ErrorIs(t, client.Publish(context.Background(), "c", nil), errNotInitialized)
	_, err := client.SetNX(context.Background(), "k", "v", time.Second)
	assert.ErrorIs(t, err, errNotInitialized)
	assert.NoError(t, client.Close())
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	assert.Equal(t, "fd:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	assert.Equal(t, "fd:attempts:delivery", client.AttemptKey("delivery", " "))
	assert.Equal(t, "fd:lock:cron-worker:prod", client.LockKey("cron-worker:prod"))
	assert.Equal(t, "fd:channel:realtime:u1", client.ChannelKey("realtime", "u1"))

	staging := &Client{prefix: "fd-staging"}
	assert.Equal(t, "fd-staging:lock:cron", staging.LockKey("cron"))
}

func TestOptionsFromConfig(t *testing.T) {
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://:secret@cache:6380/2", PoolSize: 7, DB: 5})
	require.NoError(t, err)
	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB, "url db wins")
	assert.Equal(t, 7, opts.PoolSize)

	opts, err = optionsFromConfig(config.RedisConfig{Address: "localhost:6379", DialTimeout: time.Second})
	require.NoError(t, err)
	assert.Equal(t, time.Second, opts.DialTimeout)

	_, err = optionsFromConfig(config.RedisConfig{})
	assert.Error(t, err)
}

type mockCmdable struct {
	data          map[string]string
	counters      map[string]int64
	ttl           map[string]time.Duration
	published     map[string][]string
	expireNXCalls int
	expireErr     error
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data:      map[string]string{},
		counters:  map[string]int64{},
		ttl:       map[string]time.Duration{},
		published: map[string][]string{},
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.counters[key]++
	m.data[key] = fmt.Sprint(m.counters[key])
	return redis.NewIntResult(m.counters[key], nil)
}

func (m *mockCmdable) ExpireNX(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireNXCalls++
	if m.expireErr != nil {
		return redis.NewBoolResult(false, m.expireErr)
	}
	if _, set := m.ttl[key]; set {
		return redis.NewBoolResult(false, nil)
	}
	m.ttl[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
		delete(m.counters, key)
		delete(m.ttl, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func (m *mockCmdable) Publish(_ context.Context, channel string, message any) *redis.IntCmd {
	m.published[channel] = append(m.published[channel], fmt.Sprint(message))
	return redis.NewIntResult(1, nil)
}
