// Package catalog is the read-only view of foods and delivery addresses
// consulted when an order is placed.
package catalog

import (
	"context"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindFoods(ctx context.Context, ids []uuid.UUID) ([]models.Food, error)
	FindAddress(ctx context.Context, id uuid.UUID) (*models.Address, error)
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

// FindFoods returns the subset of ids that exist; callers detect misses.
func (r *repository) FindFoods(ctx context.Context, ids []uuid.UUID) ([]models.Food, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var foods []models.Food
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&foods).Error; err != nil {
		return nil, err
	}
	return foods, nil
}

func (r *repository) FindAddress(ctx context.Context, id uuid.UUID) (*models.Address, error) {
	var addr models.Address
	if err := r.db.WithContext(ctx).First(&addr, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &addr, nil
}
