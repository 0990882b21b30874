package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// WalletTopup is an external funding attempt. It moves from pending to
// exactly one of completed or failed.
type WalletTopup struct {
	ID               uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID           uuid.UUID          `gorm:"type:uuid;column:user_id;not null"`
	WalletID         uuid.UUID          `gorm:"type:uuid;column:wallet_id;not null"`
	AmountMinor      int64              `gorm:"column:amount_minor;not null"`
	PaymentReference string             `gorm:"column:payment_reference;not null;uniqueIndex"`
	Gateway          enums.TopupGateway `gorm:"column:gateway;type:text;not null"`
	Status           enums.TopupStatus  `gorm:"column:status;type:text;not null"`
	RedirectURL      *string            `gorm:"column:redirect_url"`
	GatewayPayload   json.RawMessage    `gorm:"column:gateway_payload;type:jsonb"`
	FailureReason    *string            `gorm:"column:failure_reason"`
	CompletedAt      *time.Time         `gorm:"column:completed_at"`
	FailedAt         *time.Time         `gorm:"column:failed_at"`
	CreatedAt        time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
