package users

import (
	"context"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository reads the users table. Accounts are provisioned elsewhere;
// this service never writes them.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// FindByID loads only the columns role checks need. Returns
// gorm.ErrRecordNotFound for unknown ids.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user := &models.User{}
	err := r.db.WithContext(ctx).
		Select("id", "role").
		Where("id = ?", id).
		Take(user).Error
	if err != nil {
		return nil, err
	}
	return user, nil
}
