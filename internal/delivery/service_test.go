package delivery

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/internal/catalog"
	"github.com/angelmondragon/fooddash-backend/internal/notifications/notificationstest"
	"github.com/angelmondragon/fooddash-backend/internal/orders"
	"github.com/angelmondragon/fooddash-backend/internal/users"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

type memoryAttempts struct {
	mu      sync.Mutex
	counts  map[string]int64
	// latency is slept before and after the increment to widen race windows.
	latency time.Duration
}

func newMemoryAttempts() *memoryAttempts {
	return &memoryAttempts{counts: map[string]int64{}}
}

func (m *memoryAttempts) IncrWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	time.Sleep(m.latency)
	m.mu.Lock()
	m.counts[key]++
	n := m.counts[key]
	m.mu.Unlock()
	time.Sleep(m.latency)
	return n, nil
}

func (m *memoryAttempts) Del(ctx context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.counts, k)
	}
	return nil
}

func (m *memoryAttempts) AttemptKey(scope, id string) string {
	return "fd:attempt:" + scope + ":" + id
}

var deliveredAt = time.Date(2026, 7, 4, 18, 30, 0, 0, time.UTC)

type harness struct {
	conn     *gorm.DB
	svc      Service
	orders   orders.Service
	attempts *memoryAttempts
	admin    models.User
	rider    models.User
	order    *orders.OrderView
	code     string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	client := db.NewFromGorm(conn)
	recorder := &notificationstest.Recorder{}

	ledger, err := wallet.NewService(wallet.NewRepository(conn), client, recorder, nil, logger.Nop(), wallet.Config{Currency: "IDR"})
	require.NoError(t, err)
	directory, err := users.NewDirectory(users.NewRepository(conn))
	require.NoError(t, err)
	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:      orderRepo,
		DB:        client,
		Directory: directory,
		Catalog:   catalog.NewRepository(conn),
		Ledger:    ledger,
		Notifier:  recorder,
		Logger:    logger.Nop(),
		Config:    orders.Config{Currency: "IDR"},
		Clock:     func() time.Time { return deliveredAt },
	})
	require.NoError(t, err)

	attempts := newMemoryAttempts()
	limiter, err := NewAttemptLimiter(attempts, 3, 15*time.Minute)
	require.NoError(t, err)
	svc, err := NewService(orderRepo, orderSvc, limiter, logger.Nop())
	require.NoError(t, err)

	h := &harness{conn: conn, svc: svc, orders: orderSvc, attempts: attempts}
	customer := dbtest.SeedUser(t, conn, enums.UserRoleCustomer)
	h.admin = dbtest.SeedUser(t, conn, enums.UserRoleAdmin)
	h.rider = dbtest.SeedUser(t, conn, enums.UserRoleRider)
	address := dbtest.SeedAddress(t, conn, customer.ID)
	food := dbtest.SeedFood(t, conn, "sate ayam", 30000, true)

	ctx := context.Background()
	order, err := orderSvc.CreateOrder(ctx, orders.CreateOrderInput{
		CustomerID:    customer.ID,
		AddressID:     address.ID,
		Items:         []orders.OrderItemInput{{FoodID: food.ID, Quantity: 1}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	require.NoError(t, err)
	h.order = order
	h.change(t, h.admin.ID, enums.OrderStatusConfirmed)
	assigned, err := orderSvc.AssignRider(ctx, orders.AssignRiderInput{OrderID: order.ID, RiderID: h.rider.ID, ActorUserID: h.admin.ID})
	require.NoError(t, err)
	require.NotNil(t, assigned.DeliveryCode)
	h.code = *assigned.DeliveryCode
	return h
}

func (h *harness) change(t *testing.T, actor uuid.UUID, statuses ...enums.OrderStatus) {
	t.Helper()
	for _, status := range statuses {
		_, err := h.orders.ChangeStatus(context.Background(), orders.ChangeStatusInput{OrderID: h.order.ID, Target: status, ActorUserID: actor})
		require.NoError(t, err)
	}
}

func (h *harness) wrongCode() string {
	if h.code == "000000" {
		return "111111"
	}
	return "000000"
}

func (h *harness) stored(t *testing.T) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", h.order.ID).Error)
	return order
}

func (h *harness) status(t *testing.T) enums.OrderStatus {
	t.Helper()
	return h.stored(t).Status
}

func (h *harness) outForDelivery(t *testing.T) {
	t.Helper()
	h.change(t, h.admin.ID, enums.OrderStatusPreparing, enums.OrderStatusReady)
	h.change(t, h.rider.ID, enums.OrderStatusPickedUp, enums.OrderStatusOutForDelivery)
}

func TestVerifyDeliveryMatchCompletesOrder(t *testing.T) {
	h := newHarness(t)
	h.outForDelivery(t)

	res, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: h.code, RiderID: h.rider.ID})
	require.NoError(t, err)
	assert.True(t, res.Verified)
	require.NotNil(t, res.Order)
	assert.Equal(t, enums.OrderStatusDelivered, res.Order.Status)
	assert.Nil(t, res.Order.DeliveryCode)

	stored := h.stored(t)
	assert.Equal(t, enums.OrderStatusDelivered, stored.Status)
	require.NotNil(t, stored.DeliveryTime)
	assert.True(t, deliveredAt.Equal(*stored.DeliveryTime), "delivery_time %v", *stored.DeliveryTime)
}

func TestVerifyDeliveryMismatchChangesNothing(t *testing.T) {
	h := newHarness(t)
	h.outForDelivery(t)

	res, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: h.wrongCode(), RiderID: h.rider.ID})
	require.NoError(t, err)
	assert.False(t, res.Verified)
	assert.Equal(t, 2, res.AttemptsRemaining)

	stored := h.stored(t)
	assert.Equal(t, enums.OrderStatusOutForDelivery, stored.Status)
	assert.Nil(t, stored.DeliveryTime)
}

func TestVerifyDeliveryLimitsFailedAttempts(t *testing.T) {
	h := newHarness(t)
	h.outForDelivery(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := h.svc.VerifyDelivery(ctx, VerifyDeliveryInput{OrderID: h.order.ID, Code: h.wrongCode(), RiderID: h.rider.ID})
		require.NoError(t, err)
		assert.False(t, res.Verified)
	}

	_, err := h.svc.VerifyDelivery(ctx, VerifyDeliveryInput{OrderID: h.order.ID, Code: h.code, RiderID: h.rider.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeRateLimit), "even the right code is refused once exhausted")
	assert.Equal(t, enums.OrderStatusOutForDelivery, h.status(t))
}

func TestVerifyDeliveryRejectsOtherRider(t *testing.T) {
	h := newHarness(t)
	other := dbtest.SeedUser(t, h.conn, enums.UserRoleRider)

	_, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: h.code, RiderID: other.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
}

func TestVerifyDeliveryUnknownOrder(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: uuid.New(), Code: "123456", RiderID: h.rider.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestVerifyDeliveryMatchFromWrongStatusIsInvalidTransition(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: h.code, RiderID: h.rider.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeInvalidTransition))
	assert.Equal(t, enums.OrderStatusConfirmed, h.status(t))
}

func TestVerifyDeliveryWithoutCodeIsStateConflict(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.conn.Model(&models.Order{}).Where("id = ?", h.order.ID).Update("delivery_code", nil).Error)

	_, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: "123456", RiderID: h.rider.ID})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeStateConflict))
}

func TestVerifyDeliveryConcurrentGuessesRespectLimit(t *testing.T) {
	h := newHarness(t)
	h.outForDelivery(t)
	h.attempts.latency = 10 * time.Millisecond

	const guesses = 20
	var (
		wg       sync.WaitGroup
		compared atomic.Int32
		limited  atomic.Int32
	)
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.svc.VerifyDelivery(context.Background(), VerifyDeliveryInput{OrderID: h.order.ID, Code: h.wrongCode(), RiderID: h.rider.ID})
			switch {
			case err == nil && !res.Verified:
				compared.Add(1)
			case pkgerrors.IsCode(err, pkgerrors.CodeRateLimit):
				limited.Add(1)
			default:
				t.Errorf("unexpected result %+v, %v", res, err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(3), compared.Load())
	assert.Equal(t, int32(guesses-3), limited.Load())
	assert.Equal(t, enums.OrderStatusOutForDelivery, h.status(t))
}

func TestAttemptLimiterReserveAndReset(t *testing.T) {
	store := newMemoryAttempts()
	limiter, err := NewAttemptLimiter(store, 2, time.Minute)
	require.NoError(t, err)
	ctx := context.Background()

	left, ok, err := limiter.Reserve(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, left)
	left, ok, err = limiter.Reserve(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, left)
	_, ok, err = limiter.Reserve(ctx, "o1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, limiter.Reset(ctx, "o1"))
	left, ok, err = limiter.Reserve(ctx, "o1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, left)

	_, err = NewAttemptLimiter(store, 0, time.Minute)
	assert.Error(t, err)
}
