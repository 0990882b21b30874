package models

import (
	"time"

	"github.com/google/uuid"
)

type Food struct {
	ID         uuid.UUID `gorm:"type:uuid;primaryKey"`
	Name       string    `gorm:"column:name;not null"`
	PriceMinor int64     `gorm:"column:price_minor;not null"`
	Available  bool      `gorm:"column:available;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
