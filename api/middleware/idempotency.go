package middleware

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/fooddash-backend/api/responses"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
	pkgredis "github.com/angelmondragon/fooddash-backend/pkg/redis"
)

const (
	idempotencyHeader = "Idempotency-Key"
	// Orders and top-ups move money; their keys outlive client retry windows.
	criticalIdempotencyTTL = 7 * 24 * time.Hour
	// A reservation that outlives this is treated as a crashed request.
	inflightTTL = 2 * time.Minute
)

type idempotentRoute struct {
	prefix string
	suffix string
	exact  bool
	ttl    time.Duration
}

func (r idempotentRoute) matches(path string) bool {
	if r.exact {
		return path == r.prefix
	}
	return strings.HasPrefix(path, r.prefix) && strings.HasSuffix(path, r.suffix)
}

// Only POSTs are listed. A zero ttl falls back to the ttl given to Idempotency.
var idempotentRoutes = []idempotentRoute{
	{prefix: "/api/v1/orders", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/wallet/topups", exact: true, ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/wallet/topups/", suffix: "/complete", ttl: criticalIdempotencyTTL},
	{prefix: "/api/v1/orders/", suffix: "/status"},
	{prefix: "/api/admin/v1/orders/", suffix: "/assign-rider"},
	{prefix: "/api/v1/notifications/", suffix: "/read"},
	{prefix: "/api/v1/notifications/read-all", exact: true},
}

func routeTTL(method, path string) (time.Duration, bool) {
	if method != http.MethodPost || path == "" {
		return 0, false
	}
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	for _, route := range idempotentRoutes {
		if route.matches(path) {
			return route.ttl, true
		}
	}
	return 0, false
}

// storedResponse is what a key resolves to. Pending marks a request that is
// still being served.
type storedResponse struct {
	Pending     bool   `json:"pending,omitempty"`
	RequestHash string `json:"request_hash"`
	Status      int    `json:"status,omitempty"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body,omitempty"`
}

// Idempotency requires an Idempotency-Key on the listed routes. It reserves
// the key before the handler runs, so a concurrent duplicate gets 409 instead
// of a second order or top-up. Completed responses below 500 are replayed.
// Reusing a key with another body is rejected.
func Idempotency(store pkgredis.IdempotencyStore, defaultTTL time.Duration, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ttl, listed := routeTTL(r.Method, r.URL.Path)
			if !listed || store == nil {
				next.ServeHTTP(w, r)
				return
			}
			if ttl == 0 {
				ttl = defaultTTL
			}
			ctx := r.Context()
			fail := func(err error) { responses.WriteError(ctx, logg, w, err) }

			clientKey := strings.TrimSpace(r.Header.Get(idempotencyHeader))
			if clientKey == "" {
				fail(pkgerrors.New(pkgerrors.CodeValidation, idempotencyHeader+" header required"))
				return
			}
			body, err := io.ReadAll(r.Body)
			if err != nil {
				fail(pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
				return
			}
			r.Body = io.NopCloser(bytes.NewReader(body))

			sum := sha256.Sum256(body)
			hash := hex.EncodeToString(sum[:])
			key := store.IdempotencyKey(UserIDFromContext(ctx)+"|"+r.Method+"|"+r.URL.Path, clientKey)

			reserved, err := reserve(ctx, store, key, hash)
			if err != nil {
				fail(err)
				return
			}
			if !reserved {
				existing, err := load(ctx, store, key)
				if err != nil {
					fail(err)
					return
				}
				switch {
				case existing == nil:
					fail(pkgerrors.New(pkgerrors.CodeConflict, "idempotent request expired mid-flight, retry"))
				case existing.RequestHash != hash:
					fail(pkgerrors.New(pkgerrors.CodeIdempotency, "idempotency key reused with different request body"))
				case existing.Pending:
					fail(pkgerrors.New(pkgerrors.CodeConflict, "request with this idempotency key is still in progress"))
				default:
					replay(w, existing)
				}
				return
			}

			capture := &responseCapture{ResponseWriter: w}
			next.ServeHTTP(capture, r)

			// Drop the reservation so 5xx stays retryable, then store the final
			// response for everything else. Background ctx: the client may be gone.
			bg := context.WithoutCancel(ctx)
			if err := store.Del(bg, key); err != nil {
				logStoreError(bg, logg, "release idempotency reservation", err)
				return
			}
			if capture.code() >= http.StatusInternalServerError {
				return
			}
			final, _ := json.Marshal(storedResponse{
				RequestHash: hash,
				Status:      capture.code(),
				ContentType: capture.Header().Get("Content-Type"),
				Body:        capture.body.Bytes(),
			})
			if _, err := store.SetNX(bg, key, string(final), ttl); err != nil {
				logStoreError(bg, logg, "store idempotent response", err)
			}
		})
	}
}

func reserve(ctx context.Context, store pkgredis.IdempotencyStore, key, hash string) (bool, error) {
	pending, _ := json.Marshal(storedResponse{Pending: true, RequestHash: hash})
	ok, err := store.SetNX(ctx, key, string(pending), inflightTTL)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve idempotency key")
	}
	return ok, nil
}

func load(ctx context.Context, store pkgredis.IdempotencyStore, key string) (*storedResponse, error) {
	raw, err := store.Get(ctx, key)
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load idempotency record")
	}
	var rec storedResponse
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode idempotency record")
	}
	return &rec, nil
}

func replay(w http.ResponseWriter, rec *storedResponse) {
	if rec.ContentType != "" {
		w.Header().Set("Content-Type", rec.ContentType)
	}
	w.Header().Set("Idempotent-Replayed", "true")
	w.WriteHeader(rec.Status)
	_, _ = w.Write(rec.Body)
}

type responseCapture struct {
	http.ResponseWriter
	body   bytes.Buffer
	status int
}

func (c *responseCapture) code() int {
	if c.status == 0 {
		return http.StatusOK
	}
	return c.status
}

func (c *responseCapture) WriteHeader(status int) {
	if c.status == 0 {
		c.status = status
	}
	c.ResponseWriter.WriteHeader(status)
}

func (c *responseCapture) Write(b []byte) (int, error) {
	if c.status == 0 {
		c.status = http.StatusOK
	}
	c.body.Write(b)
	return c.ResponseWriter.Write(b)
}

func logStoreError(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if logg != nil {
		logg.Error(ctx, msg, err)
	}
}
