package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// Order is a customer order moving through the fulfillment lifecycle.
// TotalMinor is fixed at placement; DeliveryCode is issued once per order.
type Order struct {
	ID            uuid.UUID           `gorm:"type:uuid;primaryKey"`
	CustomerID    uuid.UUID           `gorm:"type:uuid;column:customer_id;not null"`
	AddressID     uuid.UUID           `gorm:"type:uuid;column:address_id;not null"`
	RiderID       *uuid.UUID          `gorm:"type:uuid;column:rider_id"`
	TotalMinor    int64               `gorm:"column:total_minor;not null"`
	Status        enums.OrderStatus   `gorm:"column:status;type:text;not null"`
	PaymentMethod enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus enums.PaymentStatus `gorm:"column:payment_status;type:text;not null"`
	DeliveryCode  *string             `gorm:"column:delivery_code"`
	DeliveryTime  *time.Time          `gorm:"column:delivery_time"`
	CreatedAt     time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Items []OrderItem `gorm:"foreignKey:OrderID"`
}
