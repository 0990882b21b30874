package orders

import (
	"context"
	"time"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository defines persistence operations for orders, their items and
// their status audit trail.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, expected, next enums.OrderStatus, updates map[string]any) (bool, error)
	AssignRider(ctx context.Context, id uuid.UUID, expected enums.OrderStatus, riderID uuid.UUID, code string, at time.Time) (bool, error)
	AppendStatusEvent(ctx context.Context, event *models.OrderStatusEvent) error
	ListStatusEvents(ctx context.Context, orderID uuid.UUID) ([]models.OrderStatusEvent, error)
}
