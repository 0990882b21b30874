package notifications

import (
	"context"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository is the notification store used by the Dispatcher and Service.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	ListForUser(ctx context.Context, filter inboxFilter, limit int, cursor *pagination.Cursor) ([]models.Notification, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (readOutcome, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
}

type inboxFilter struct {
	UserID     uuid.UUID
	UnreadOnly bool
}

type readOutcome int

const (
	readMissing readOutcome = iota
	readMarked
	readAlready
)

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

func (r *gormRepository) scoped(ctx context.Context, userID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("user_id = ?", userID)
}

func (r *gormRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Create(notification).Error
}

// ListForUser reads up to limit rows, newest first, strictly after cursor.
// Callers pass pagination.LimitWithBuffer to learn whether a next page exists.
func (r *gormRepository) ListForUser(ctx context.Context, filter inboxFilter, limit int, cursor *pagination.Cursor) ([]models.Notification, error) {
	query := r.scoped(ctx, filter.UserID)
	if filter.UnreadOnly {
		query = query.Where("read_at IS NULL")
	}
	if cursor != nil {
		query = query.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	rows := make([]models.Notification, 0, limit)
	err := query.Order("created_at DESC, id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}

func (r *gormRepository) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, at time.Time) (readOutcome, error) {
	res := r.scoped(ctx, userID).
		Where("id = ? AND read_at IS NULL", notificationID).
		UpdateColumn("read_at", at)
	if res.Error != nil {
		return readMissing, res.Error
	}
	if res.RowsAffected > 0 {
		return readMarked, nil
	}

	var ids []uuid.UUID
	if err := r.scoped(ctx, userID).Where("id = ?", notificationID).Limit(1).Pluck("id", &ids).Error; err != nil {
		return readMissing, err
	}
	if len(ids) == 0 {
		return readMissing, nil
	}
	return readAlready, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	res := r.scoped(ctx, userID).Where("read_at IS NULL").UpdateColumn("read_at", at)
	return res.RowsAffected, res.Error
}
