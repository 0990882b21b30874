package notifications

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
)

// Retention prunes notifications the user has already read. Unread rows are
// kept regardless of age.
type Retention struct{}

func NewRetention() *Retention {
	return &Retention{}
}

// DeleteReadBatch removes up to limit read notifications created before
// cutoff and reports how many went.
func (Retention) DeleteReadBatch(ctx context.Context, tx *gorm.DB, cutoff time.Time, limit int) (int64, error) {
	batch := tx.Model(&models.Notification{}).
		Select("id").
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Order("created_at").
		Limit(limit)
	res := tx.WithContext(ctx).Where("id IN (?)", batch).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
