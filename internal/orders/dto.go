package orders

import (
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/money"
	"github.com/google/uuid"
)

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	FoodID   uuid.UUID
	Quantity int
}

type CreateOrderInput struct {
	CustomerID    uuid.UUID
	AddressID     uuid.UUID
	Items         []OrderItemInput
	PaymentMethod enums.PaymentMethod
}

type ChangeStatusInput struct {
	OrderID     uuid.UUID
	Target      enums.OrderStatus
	ActorUserID uuid.UUID
}

type AssignRiderInput struct {
	OrderID     uuid.UUID
	RiderID     uuid.UUID
	ActorUserID uuid.UUID
}

// OrderView is the order as returned to API callers.
type OrderView struct {
	ID            uuid.UUID           `json:"id"`
	CustomerID    uuid.UUID           `json:"customer_id"`
	AddressID     uuid.UUID           `json:"address_id"`
	RiderID       *uuid.UUID          `json:"rider_id,omitempty"`
	Status        enums.OrderStatus   `json:"status"`
	NextStatuses  []enums.OrderStatus `json:"next_statuses"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	PaymentStatus enums.PaymentStatus `json:"payment_status"`
	Total         money.Amount        `json:"total"`
	DeliveryCode  *string             `json:"delivery_code,omitempty"`
	DeliveryTime  *time.Time          `json:"delivery_time,omitempty"`
	Items         []OrderItemView     `json:"items"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
}

type OrderItemView struct {
	ID        uuid.UUID    `json:"id"`
	FoodID    uuid.UUID    `json:"food_id"`
	Quantity  int          `json:"quantity"`
	UnitPrice money.Amount `json:"unit_price"`
	LineTotal money.Amount `json:"line_total"`
}

// StatusEventView is one entry of an order's status history.
type StatusEventView struct {
	FromStatus  *string           `json:"from_status,omitempty"`
	ToStatus    enums.OrderStatus `json:"to_status"`
	ActorUserID uuid.UUID         `json:"actor_user_id"`
	ActorRole   enums.UserRole    `json:"actor_role"`
	CreatedAt   time.Time         `json:"created_at"`
}

// toView renders an order for viewer. Riders never see the delivery code;
// they must obtain it from the customer at handoff.
func toView(order *models.Order, viewer enums.UserRole, currency string, digits int32) *OrderView {
	view := &OrderView{
		ID:            order.ID,
		CustomerID:    order.CustomerID,
		AddressID:     order.AddressID,
		RiderID:       order.RiderID,
		Status:        order.Status,
		NextStatuses:  NextStatuses(order.Status),
		PaymentMethod: order.PaymentMethod,
		PaymentStatus: order.PaymentStatus,
		Total:         money.New(order.TotalMinor, currency, digits),
		DeliveryTime:  order.DeliveryTime,
		Items:         make([]OrderItemView, 0, len(order.Items)),
		CreatedAt:     order.CreatedAt,
		UpdatedAt:     order.UpdatedAt,
	}
	if viewer != enums.UserRoleRider {
		view.DeliveryCode = order.DeliveryCode
	}
	for _, item := range order.Items {
		view.Items = append(view.Items, OrderItemView{
			ID:        item.ID,
			FoodID:    item.FoodID,
			Quantity:  item.Quantity,
			UnitPrice: money.New(item.UnitPriceMinor, currency, digits),
			LineTotal: money.New(item.LineTotalMinor(), currency, digits),
		})
	}
	return view
}
