package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/fooddash-backend/pkg/errors"
)

type contextKey int

const (
	ctxUserID contextKey = iota
	ctxRole
	ctxRequestID
)

func stringValue(ctx context.Context, key contextKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}

func UserIDFromContext(ctx context.Context) string    { return stringValue(ctx, ctxUserID) }
func RoleFromContext(ctx context.Context) string      { return stringValue(ctx, ctxRole) }
func RequestIDFromContext(ctx context.Context) string { return stringValue(ctx, ctxRequestID) }

// ActorID is the authenticated user, or UNAUTHORIZED when Auth did not run.
func ActorID(ctx context.Context) (uuid.UUID, error) {
	raw := UserIDFromContext(ctx)
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user identity")
	}
	return id, nil
}

// ActorRole is the token's role. Services still resolve the authoritative
// role through the user directory.
func ActorRole(ctx context.Context) (enums.UserRole, bool) {
	role := enums.UserRole(RoleFromContext(ctx))
	return role, role.IsValid()
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, ctxUserID, userID)
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, ctxRole, role)
}
