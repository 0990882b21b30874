package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/fooddash-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
)

type fakeStore struct {
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeStore) Get(_ context.Context, key string) (string, error) {
	if v, ok := f.data[key]; ok {
		return v, nil
	}
	return "", redis.Nil
}

func (f *fakeStore) SetNX(_ context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if _, ok := f.data[key]; ok {
		return false, nil
	}
	str, _ := value.(string)
	f.data[key] = str
	f.ttls[key] = ttl
	return true, nil
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return fmt.Sprintf("fake:%s:%s", scope, id)
}

func TestRouteTTLSelection(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   time.Duration
		ok     bool
	}{
		{"create order", http.MethodPost, "/api/v1/orders", criticalIdempotencyTTL, true},
		{"initialize topup", http.MethodPost, "/api/v1/wallet/topups", criticalIdempotencyTTL, true},
		{"complete topup", http.MethodPost, "/api/v1/wallet/topups/TOPUP-1/complete", criticalIdempotencyTTL, true},
		{"change status", http.MethodPost, "/api/v1/orders/abc/status", 0, true},
		{"assign rider", http.MethodPost, "/api/admin/v1/orders/abc/assign-rider", 0, true},
		{"read order", http.MethodGet, "/api/v1/orders/abc", 0, false},
		{"verify delivery", http.MethodPost, "/api/v1/rider/orders/abc/verify-delivery", 0, false},
		{"webhook", http.MethodPost, "/api/v1/webhooks/midtrans", 0, false},
	}

	for _, tt := range tests {
		ttl, ok := routeTTL(tt.method, tt.path)
		assert.Equal(t, tt.ok, ok, tt.name)
		if ok {
			assert.Equal(t, tt.want, ttl, tt.name)
		}
	}
}

func countingHandler(calls *int, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		body, _ := io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprintf(w, `{"data":{"call":%d,"echo":%q}}`, *calls, string(body))
	})
}

func post(path, key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req.WithContext(WithUserID(req.Context(), "user-1"))
}

func TestIdempotencyReplaysStoredResponse(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, post("/api/v1/orders", "k1", `{"a":1}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, post("/api/v1/orders", "k1", `{"a":1}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	for _, ttl := range store.ttls {
		assert.Equal(t, criticalIdempotencyTTL, ttl)
	}
}

func TestIdempotencyUsesDefaultTTL(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusOK))
	handler.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders/abc/status", "k1", `{}`))

	require.Len(t, store.ttls, 1)
	for _, ttl := range store.ttls {
		assert.Equal(t, time.Hour, ttl)
	}
}

func TestIdempotencyRejectsKeyReuseWithDifferentBody(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusCreated))

	handler.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders", "k1", `{"a":1}`))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, post("/api/v1/orders", "k1", `{"a":2}`))

	assert.Equal(t, 1, calls)
	var body responses.ErrorEnvelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, string(pkgerrors.CodeIdempotency), body.Error.Code)
}

func TestIdempotencyRequiresHeader(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), time.Hour, nil)(countingHandler(&calls, http.StatusCreated))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, post("/api/v1/wallet/topups", "", `{}`))

	assert.Equal(t, http.StatusBadRequest, resp.Code)
	assert.Zero(t, calls)
}

func TestIdempotencyDoesNotCacheServerErrors(t *testing.T) {
	store := newFakeStore()
	calls := 0
	handler := Idempotency(store, time.Hour, nil)(countingHandler(&calls, http.StatusServiceUnavailable))

	handler.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders", "k1", `{}`))
	handler.ServeHTTP(httptest.NewRecorder(), post("/api/v1/orders", "k1", `{}`))
	assert.Equal(t, 2, calls)
	assert.Empty(t, store.data)
}

func TestIdempotencySkipsUnlistedRoutes(t *testing.T) {
	calls := 0
	handler := Idempotency(newFakeStore(), time.Hour, nil)(countingHandler(&calls, http.StatusOK))
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, post("/api/v1/rider/orders/abc/verify-delivery", "", `{}`))
	assert.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, 1, calls)
}

func TestIdempotencyRejectsConcurrentDuplicate(t *testing.T) {
	store := newFakeStore()
	calls := 0
	var inner *httptest.ResponseRecorder
	var handler http.Handler
	handler = Idempotency(store, time.Hour, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		// a duplicate arrives while the first request is still being served
		inner = httptest.NewRecorder()
		handler.ServeHTTP(inner, post("/api/v1/wallet/topups", "k1", `{"amount_minor":50000}`))
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, post("/api/v1/wallet/topups", "k1", `{"amount_minor":50000}`))

	assert.Equal(t, 1, calls)
	assert.Equal(t, http.StatusCreated, first.Code)
	require.NotNil(t, inner)
	assert.Equal(t, http.StatusConflict, inner.Code)
}
