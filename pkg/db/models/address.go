package models

import (
	"time"

	"github.com/google/uuid"
)

type Address struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;column:user_id;not null"`
	Label     string    `gorm:"column:label"`
	Line1     string    `gorm:"column:line1;not null"`
	City      string    `gorm:"column:city;not null"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}
