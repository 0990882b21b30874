package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// OrderStatusEvent is the append-only audit row written for every applied transition.
type OrderStatusEvent struct {
	ID          uuid.UUID         `gorm:"type:uuid;primaryKey"`
	OrderID     uuid.UUID         `gorm:"type:uuid;column:order_id;not null"`
	FromStatus  *string           `gorm:"column:from_status"`
	ToStatus    enums.OrderStatus `gorm:"column:to_status;type:text;not null"`
	ActorUserID uuid.UUID         `gorm:"type:uuid;column:actor_user_id;not null"`
	ActorRole   enums.UserRole    `gorm:"column:actor_role;type:text;not null"`
	CreatedAt   time.Time         `gorm:"column:created_at;autoCreateTime"`
}
