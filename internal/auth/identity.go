package auth

import (
	"context"

	"github.com/BearBump/ParcelBox/internal/apperrors"
	"github.com/BearBump/ParcelBox/internal/models"
)

// Identity is the authenticated caller attached to a request context.
type Identity struct {
	UserID   string
	Username string
	Role     models.Role
}

type identityContextKey struct{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityContextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityContextKey{}).(Identity)
	return id, ok && id.UserID != ""
}

// Require returns the caller's identity if it has one of roles.
// With no roles any authenticated caller passes.
func Require(ctx context.Context, roles ...models.Role) (Identity, error) {
	id, ok := FromContext(ctx)
	if !ok {
		return Identity{}, apperrors.Unauthenticated("missing token")
	}
	if len(roles) == 0 {
		return id, nil
	}
	for _, r := range roles {
		if id.Role == r {
			return id, nil
		}
	}
	return Identity{}, apperrors.Forbidden("not authorized")
}

// Actor is the name recorded in status history for the caller.
func Actor(ctx context.Context) string {
	if id, ok := FromContext(ctx); ok {
		return id.Username
	}
	return "system"
}
