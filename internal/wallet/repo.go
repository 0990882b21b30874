package wallet

import (
	"context"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/angelmondragon/fooddash-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository manages persistence for wallets and their ledger rows.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	LockByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	CreateIfAbsent(ctx context.Context, wallet *models.Wallet) (bool, error)
	CompareAndSetBalance(ctx context.Context, walletID uuid.UUID, expected, next int64, at time.Time) (bool, error)
	AppendTransaction(ctx context.Context, entry *models.WalletTransaction) error
	ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error)
	SumByType(ctx context.Context, walletID uuid.UUID) (map[enums.WalletTransactionType]int64, error)
	ListOwnersAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a wallet repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// LockByUserID reads the wallet with SELECT ... FOR UPDATE. Only meaningful
// inside a transaction.
func (r *repository) LockByUserID(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	var wallet models.Wallet
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&wallet, "user_id = ?", userID).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

// CreateIfAbsent inserts the wallet unless the user already has one. The
// boolean reports whether this call created the row.
func (r *repository) CreateIfAbsent(ctx context.Context, wallet *models.Wallet) (bool, error) {
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(wallet)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// CompareAndSetBalance writes next only when the stored balance still equals
// expected.
func (r *repository) CompareAndSetBalance(ctx context.Context, walletID uuid.UUID, expected, next int64, at time.Time) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.Wallet{}).
		Where("id = ? AND balance_minor = ?", walletID, expected).
		Updates(map[string]any{
			"balance_minor": next,
			"updated_at":    at,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *repository) AppendTransaction(ctx context.Context, entry *models.WalletTransaction) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListTransactions(ctx context.Context, walletID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, error) {
	query := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Where("wallet_id = ?", walletID)
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.WalletTransaction
	if err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) SumByType(ctx context.Context, walletID uuid.UUID) (map[enums.WalletTransactionType]int64, error) {
	type total struct {
		Type  enums.WalletTransactionType
		Total int64
	}
	var rows []total
	if err := r.db.WithContext(ctx).
		Model(&models.WalletTransaction{}).
		Select("type, COALESCE(SUM(amount_minor), 0) AS total").
		Where("wallet_id = ?", walletID).
		Group("type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	out := make(map[enums.WalletTransactionType]int64, len(rows))
	for _, row := range rows {
		out[row.Type] = row.Total
	}
	return out, nil
}

// ListOwnersAfter pages through wallet owners in user_id order. Pass
// uuid.Nil to start from the beginning.
func (r *repository) ListOwnersAfter(ctx context.Context, after uuid.UUID, limit int) ([]uuid.UUID, error) {
	query := r.db.WithContext(ctx).Model(&models.Wallet{})
	if after != uuid.Nil {
		query = query.Where("user_id > ?", after)
	}
	var ids []uuid.UUID
	if err := query.Order("user_id ASC").Limit(limit).Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
