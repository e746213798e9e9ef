package middleware

import (
	"context"

	"github.com/google/uuid"

	pkgAuth "github.com/angelmondragon/tablestars-backend/pkg/auth"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

type contextKey string

const ctxIdentity contextKey = "identity"

// Identity is the authenticated caller, resolved once per request.
type Identity struct {
	UserID       uuid.UUID
	Role         enums.Role
	RestaurantID *uuid.UUID
	AccessID     string
	Capabilities pkgAuth.Capabilities
}

// WithIdentity stores id in ctx. Tests use it to bypass token parsing.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	if id.Capabilities == nil {
		id.Capabilities = pkgAuth.CapabilitiesFor(id.Role)
	}
	return context.WithValue(ctx, ctxIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	id, ok := ctx.Value(ctxIdentity).(Identity)
	return id, ok
}

func UserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	return id.UserID
}

// RestaurantIDFromContext returns the owner's active restaurant or uuid.Nil.
func RestaurantIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := IdentityFromContext(ctx)
	if id.RestaurantID == nil {
		return uuid.Nil
	}
	return *id.RestaurantID
}

func AccessIDFromContext(ctx context.Context) string {
	id, _ := IdentityFromContext(ctx)
	return id.AccessID
}
