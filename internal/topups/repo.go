package topups

import (
	"context"
	"encoding/json"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository persists wallet top-ups.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, topup *models.WalletTopup) error
	FindByReference(ctx context.Context, reference string) (*models.WalletTopup, error)
	LockByReference(ctx context.Context, reference string) (*models.WalletTopup, error)
	SetRedirectURL(ctx context.Context, id uuid.UUID, url string) error
	MarkCompleted(ctx context.Context, id uuid.UUID, payload json.RawMessage, at time.Time) (bool, error)
	MarkFailed(ctx context.Context, id uuid.UUID, reason string, payload json.RawMessage, at time.Time) (bool, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WalletTopup, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, topup *models.WalletTopup) error {
	return r.db.WithContext(ctx).Create(topup).Error
}

func (r *repository) FindByReference(ctx context.Context, reference string) (*models.WalletTopup, error) {
	var topup models.WalletTopup
	if err := r.db.WithContext(ctx).First(&topup, "payment_reference = ?", reference).Error; err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *repository) LockByReference(ctx context.Context, reference string) (*models.WalletTopup, error) {
	var topup models.WalletTopup
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&topup, "payment_reference = ?", reference).Error; err != nil {
		return nil, err
	}
	return &topup, nil
}

func (r *repository) SetRedirectURL(ctx context.Context, id uuid.UUID, url string) error {
	return r.db.WithContext(ctx).
		Model(&models.WalletTopup{}).
		Where("id = ?", id).
		Update("redirect_url", url).Error
}

// MarkCompleted moves a pending top-up to completed. It reports false when
// the row was no longer pending.
func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, payload json.RawMessage, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":       enums.TopupStatusCompleted,
		"completed_at": at,
		"updated_at":   at,
	}
	if len(payload) > 0 {
		updates["gateway_payload"] = payload
	}
	return r.transition(ctx, id, updates)
}

func (r *repository) MarkFailed(ctx context.Context, id uuid.UUID, reason string, payload json.RawMessage, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":         enums.TopupStatusFailed,
		"failure_reason": reason,
		"failed_at":      at,
		"updated_at":     at,
	}
	if len(payload) > 0 {
		updates["gateway_payload"] = payload
	}
	return r.transition(ctx, id, updates)
}

func (r *repository) transition(ctx context.Context, id uuid.UUID, updates map[string]any) (bool, error) {
	result := r.db.WithContext(ctx).
		Model(&models.WalletTopup{}).
		Where("id = ? AND status = ?", id, enums.TopupStatusPending).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// ListPendingBefore returns the oldest pending top-ups created before cutoff.
func (r *repository) ListPendingBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.WalletTopup, error) {
	var rows []models.WalletTopup
	query := r.db.WithContext(ctx).
		Where("status = ? AND created_at < ?", enums.TopupStatusPending, cutoff).
		Order("created_at ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
