package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots the unit price at placement.
type OrderItem struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey"`
	OrderID        uuid.UUID `gorm:"type:uuid;column:order_id;not null"`
	FoodID         uuid.UUID `gorm:"type:uuid;column:food_id;not null"`
	Quantity       int       `gorm:"column:quantity;not null"`
	UnitPriceMinor int64     `gorm:"column:unit_price_minor;not null"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (i OrderItem) LineTotalMinor() int64 {
	return int64(i.Quantity) * i.UnitPriceMinor
}
