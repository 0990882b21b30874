package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// WalletTransaction is an immutable ledger entry.
type WalletTransaction struct {
	ID                 uuid.UUID                   `gorm:"type:uuid;primaryKey" json:"id"`
	WalletID           uuid.UUID                   `gorm:"type:uuid;column:wallet_id;not null" json:"wallet_id"`
	Type               enums.WalletTransactionType `gorm:"column:type;type:text;not null" json:"type"`
	AmountMinor        int64                       `gorm:"column:amount_minor;not null" json:"amount_minor"`
	BalanceBeforeMinor int64                       `gorm:"column:balance_before_minor;not null" json:"balance_before_minor"`
	BalanceAfterMinor  int64                       `gorm:"column:balance_after_minor;not null" json:"balance_after_minor"`
	Reference          string                      `gorm:"column:reference;not null;uniqueIndex" json:"reference"`
	Description        string                      `gorm:"column:description;not null" json:"description"`
	OrderID            *uuid.UUID                  `gorm:"type:uuid;column:order_id" json:"order_id,omitempty"`
	TopupID            *uuid.UUID                  `gorm:"type:uuid;column:topup_id" json:"topup_id,omitempty"`
	Status             string                      `gorm:"column:status;not null" json:"status"`
	CreatedAt          time.Time                   `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

const WalletTransactionStatusCompleted = "completed"
