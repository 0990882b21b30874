package enums

import "slices"

// OrderStatus tracks the fulfillment lifecycle of a customer order.
type OrderStatus string

const (
	OrderStatusPlaced         OrderStatus = "placed"
	OrderStatusConfirmed      OrderStatus = "confirmed"
	OrderStatusPreparing      OrderStatus = "preparing"
	OrderStatusReady          OrderStatus = "ready"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusOutForDelivery OrderStatus = "out_for_delivery"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// lifecycle order
var orderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusConfirmed,
	OrderStatusPreparing,
	OrderStatusReady,
	OrderStatusPickedUp,
	OrderStatusOutForDelivery,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

func (o OrderStatus) String() string { return string(o) }

func (o OrderStatus) IsValid() bool { return isMember(orderStatuses, o) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parseMember(orderStatuses, value, "order status")
}

func AllOrderStatuses() []OrderStatus {
	return slices.Clone(orderStatuses)
}

// IsTerminal reports whether no further transition can leave the status.
func (o OrderStatus) IsTerminal() bool {
	return o == OrderStatusDelivered || o == OrderStatusCancelled
}

// AcceptsRiderAssignment is true until the food has left the restaurant.
func (o OrderStatus) AcceptsRiderAssignment() bool {
	switch o {
	case OrderStatusConfirmed, OrderStatusPreparing, OrderStatusReady:
		return true
	}
	return false
}
