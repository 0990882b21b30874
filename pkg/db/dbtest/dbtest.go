// Package dbtest opens isolated in-memory SQLite databases carrying the
// fooddash schema for repository and service tests.
package dbtest

import (
	"fmt"
	"io"
	"log"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

var schema = []string{
	`CREATE TABLE users (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  email TEXT NOT NULL UNIQUE,
  role TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE foods (
  id TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price_minor INTEGER NOT NULL CHECK (price_minor >= 0),
  available INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE addresses (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  label TEXT,
  line1 TEXT NOT NULL,
  city TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  customer_id TEXT NOT NULL,
  address_id TEXT NOT NULL,
  rider_id TEXT,
  total_minor INTEGER NOT NULL CHECK (total_minor >= 0),
  status TEXT NOT NULL,
  payment_method TEXT NOT NULL,
  payment_status TEXT NOT NULL,
  delivery_code TEXT,
  delivery_time DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE order_items (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL REFERENCES orders(id),
  food_id TEXT NOT NULL,
  quantity INTEGER NOT NULL CHECK (quantity > 0),
  unit_price_minor INTEGER NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE order_status_events (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  from_status TEXT,
  to_status TEXT NOT NULL,
  actor_user_id TEXT NOT NULL,
  actor_role TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE wallets (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL UNIQUE,
  balance_minor INTEGER NOT NULL DEFAULT 0 CHECK (balance_minor >= 0),
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE wallet_transactions (
  id TEXT PRIMARY KEY,
  wallet_id TEXT NOT NULL REFERENCES wallets(id),
  type TEXT NOT NULL,
  amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
  balance_before_minor INTEGER NOT NULL,
  balance_after_minor INTEGER NOT NULL,
  reference TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL,
  order_id TEXT,
  topup_id TEXT,
  status TEXT NOT NULL,
  created_at DATETIME
);`,
	`CREATE TABLE wallet_topups (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  wallet_id TEXT NOT NULL,
  amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
  payment_reference TEXT NOT NULL UNIQUE,
  gateway TEXT NOT NULL,
  status TEXT NOT NULL,
  redirect_url TEXT,
  gateway_payload BLOB,
  failure_reason TEXT,
  completed_at DATETIME,
  failed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  order_id TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns a fresh database with the full schema applied. Every call
// gets its own named in-memory database pinned to a single connection, so
// concurrent transactions in a test serialize the way row locks would.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger: gormlogger.New(
			log.New(io.Discard, "", log.LstdFlags),
			gormlogger.Config{LogLevel: gormlogger.Silent},
		),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}

func SeedUser(t testing.TB, conn *gorm.DB, role enums.UserRole) models.User {
	t.Helper()
	id := uuid.New()
	user := models.User{
		ID:    id,
		Name:  string(role) + "-" + id.String()[:8],
		Email: id.String() + "@fooddash.test",
		Role:  role,
	}
	if err := conn.Create(&user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func SeedFood(t testing.TB, conn *gorm.DB, name string, priceMinor int64, available bool) models.Food {
	t.Helper()
	food := models.Food{ID: uuid.New(), Name: name, PriceMinor: priceMinor, Available: available}
	if err := conn.Create(&food).Error; err != nil {
		t.Fatalf("seed food: %v", err)
	}
	return food
}

func SeedAddress(t testing.TB, conn *gorm.DB, userID uuid.UUID) models.Address {
	t.Helper()
	addr := models.Address{ID: uuid.New(), UserID: userID, Label: "home", Line1: "Jl. Merdeka 1", City: "Jakarta"}
	if err := conn.Create(&addr).Error; err != nil {
		t.Fatalf("seed address: %v", err)
	}
	return addr
}

func SeedWallet(t testing.TB, conn *gorm.DB, userID uuid.UUID, balanceMinor int64, status enums.WalletStatus) models.Wallet {
	t.Helper()
	wallet := models.Wallet{ID: uuid.New(), UserID: userID, BalanceMinor: balanceMinor, Currency: "IDR", Status: status}
	if err := conn.Create(&wallet).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	if balanceMinor > 0 {
		entry := models.WalletTransaction{
			ID:                uuid.New(),
			WalletID:          wallet.ID,
			Type:              enums.WalletTransactionTypeCredit,
			AmountMinor:       balanceMinor,
			BalanceAfterMinor: balanceMinor,
			Reference:         "SEED-" + uuid.NewString(),
			Description:       "opening balance",
			Status:            models.WalletTransactionStatusCompleted,
		}
		if err := conn.Create(&entry).Error; err != nil {
			t.Fatalf("seed opening balance: %v", err)
		}
	}
	return wallet
}
