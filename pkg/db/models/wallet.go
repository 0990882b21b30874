package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// Wallet holds a user's spendable balance in minor units. Only the wallet
// ledger writes BalanceMinor, always together with a WalletTransaction row.
type Wallet struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey"`
	UserID       uuid.UUID          `gorm:"type:uuid;column:user_id;not null;uniqueIndex"`
	BalanceMinor int64              `gorm:"column:balance_minor;not null"`
	Currency     string             `gorm:"column:currency;not null"`
	Status       enums.WalletStatus `gorm:"column:status;type:text;not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
