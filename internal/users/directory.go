package users

import (
	"context"
	"errors"

	"github.com/angelmondragon/fooddash-backend/pkg/db/models"
	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Actor is the resolved identity behind a request.
type Actor struct {
	ID   uuid.UUID
	Role enums.UserRole
}

// Directory resolves user ids to their current role.
type Directory interface {
	Resolve(ctx context.Context, id uuid.UUID) (Actor, error)
}

type finder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type directory struct {
	repo finder
}

func NewDirectory(repo finder) (Directory, error) {
	if repo == nil {
		return nil, errors.New("users repository required")
	}
	return &directory{repo: repo}, nil
}

// Resolve returns NOT_FOUND for unknown users and DATA_INTEGRITY for rows
// carrying a role outside the known set.
func (d *directory) Resolve(ctx context.Context, id uuid.UUID) (Actor, error) {
	if id == uuid.Nil {
		return Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	user, err := d.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Actor{}, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return Actor{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	if !user.Role.IsValid() {
		return Actor{}, pkgerrors.New(pkgerrors.CodeDataIntegrity, "user has unknown role").
			WithDetails(map[string]any{"role": string(user.Role)})
	}
	return Actor{ID: user.ID, Role: user.Role}, nil
}
