package auth

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// RegisterRequest onboards either a customer or a restaurant owner.
type RegisterRequest struct {
	Email       string                             `json:"email" validate:"required,email"`
	Password    string                             `json:"password" validate:"required,min=8,max=128"`
	FirstName   string                             `json:"firstName" validate:"required,min=1,max=100"`
	LastName    string                             `json:"lastName" validate:"required,min=1,max=100"`
	Phone       *string                            `json:"phone" validate:"omitempty,max=32"`
	AccountType enums.AccountType                  `json:"accountType" validate:"required,oneof=user restaurant"`
	Restaurant  *restaurants.CreateRestaurantInput `json:"restaurant" validate:"required_if=AccountType restaurant"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" validate:"required"`
}

type SwitchRestaurantRequest struct {
	RestaurantID uuid.UUID `json:"restaurantId" validate:"required"`
	RefreshToken string    `json:"refreshToken" validate:"required"`
}

// RestaurantSummary lists one restaurant the owner can act as.
type RestaurantSummary struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsActive bool      `json:"isActive"`
}

// Session is returned by register, login, refresh and switch.
type Session struct {
	AccessToken        string              `json:"accessToken"`
	RefreshToken       string              `json:"refreshToken"`
	User               *users.UserDTO      `json:"user"`
	Restaurants        []RestaurantSummary `json:"restaurants"`
	ActiveRestaurantID *uuid.UUID          `json:"activeRestaurantId,omitempty"`
}
