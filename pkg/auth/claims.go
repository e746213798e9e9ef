package auth

import (
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID       uuid.UUID
	Role         enums.Role
	RestaurantID *uuid.UUID
	JTI          string
}

// AccessTokenClaims represents the typed JWT issued to clients.
// RestaurantID is the owner's active restaurant and is empty for every other role.
type AccessTokenClaims struct {
	UserID       uuid.UUID  `json:"user_id"`
	Role         enums.Role `json:"role"`
	RestaurantID *uuid.UUID `json:"restaurant_id,omitempty"`
	jwt.RegisteredClaims
}
