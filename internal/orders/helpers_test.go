package orders

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/internal/catalog"
	"github.com/angelmondragon/fooddash-backend/internal/notifications/notificationstest"
	"github.com/angelmondragon/fooddash-backend/internal/users"
	"github.com/angelmondragon/fooddash-backend/internal/wallet"
	"github.com/angelmondragon/fooddash-backend/pkg/db"
	"github.com/angelmondragon/fooddash-backend/pkg/db/dbtest"
	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/logger"
)

type harness struct {
	conn     *gorm.DB
	svc      Service
	ledger   wallet.Service
	recorder *notificationstest.Recorder
	food     models.Food
	customer models.User
	address  models.Address
	admin    models.User
	rider    models.User
}

func newHarness(t *testing.T, cfg Config) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	recorder := &notificationstest.Recorder{}
	client := db.NewFromGorm(conn)

	ledger, err := wallet.NewService(wallet.NewRepository(conn), client, recorder, nil, logger.Nop(), wallet.Config{Currency: "IDR"})
	require.NoError(t, err)
	directory, err := users.NewDirectory(users.NewRepository(conn))
	require.NoError(t, err)

	if cfg.Currency == "" {
		cfg.Currency = "IDR"
	}
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		DB:        client,
		Directory: directory,
		Catalog:   catalog.NewRepository(conn),
		Ledger:    ledger,
		Notifier:  recorder,
		Logger:    logger.Nop(),
		Config:    cfg,
	})
	require.NoError(t, err)

	h := &harness{conn: conn, svc: svc, ledger: ledger, recorder: recorder}
	h.customer = dbtest.SeedUser(t, conn, enums.UserRoleCustomer)
	h.admin = dbtest.SeedUser(t, conn, enums.UserRoleAdmin)
	h.rider = dbtest.SeedUser(t, conn, enums.UserRoleRider)
	h.address = dbtest.SeedAddress(t, conn, h.customer.ID)
	h.food = dbtest.SeedFood(t, conn, "nasi goreng", 25000, true)
	return h
}

func (h *harness) cashOrder(t *testing.T) *OrderView {
	t.Helper()
	view, err := h.svc.CreateOrder(t.Context(), CreateOrderInput{
		CustomerID:    h.customer.ID,
		AddressID:     h.address.ID,
		Items:         []OrderItemInput{{FoodID: h.food.ID, Quantity: 2}},
		PaymentMethod: enums.PaymentMethodCash,
	})
	require.NoError(t, err)
	return view
}

func (h *harness) advance(t *testing.T, orderID, actor uuid.UUID, statuses ...enums.OrderStatus) {
	t.Helper()
	for _, status := range statuses {
		_, err := h.svc.ChangeStatus(t.Context(), ChangeStatusInput{OrderID: orderID, Target: status, ActorUserID: actor})
		require.NoError(t, err, "advance to %s", status)
	}
}

func (h *harness) stored(t *testing.T, orderID uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, h.conn.First(&order, "id = ?", orderID).Error)
	return order
}

func (h *harness) orderCount(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.Order{}).Count(&count).Error)
	return count
}
