package restaurants

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/geo"
)

// RestaurantDTO is the public view of a restaurant. QR codes are never exposed here.
type RestaurantDTO struct {
	ID                   uuid.UUID `json:"id"`
	OwnerID              uuid.UUID `json:"ownerId"`
	Name                 string    `json:"name"`
	Description          *string   `json:"description,omitempty"`
	Address              string    `json:"address"`
	ImageURL             *string   `json:"imageUrl,omitempty"`
	Latitude             float64   `json:"latitude"`
	Longitude            float64   `json:"longitude"`
	IsActive             bool      `json:"isActive"`
	IsSubscriptionActive bool      `json:"isSubscriptionActive"`
	CreatedAt            time.Time `json:"createdAt"`
	UpdatedAt            time.Time `json:"updatedAt"`
}

// OwnerRestaurantDTO adds the printable QR codes for the owning account.
type OwnerRestaurantDTO struct {
	RestaurantDTO
	QRCodeMeal  string `json:"qrCodeMeal"`
	QRCodeDrink string `json:"qrCodeDrink"`
}

// RestaurantDetailDTO is what customers see when opening a restaurant.
type RestaurantDetailDTO struct {
	RestaurantDTO
	Packages []PackageDTO `json:"packages"`
}

// PackageDTO exposes a top-up package.
type PackageDTO struct {
	ID           uuid.UUID       `json:"id"`
	RestaurantID uuid.UUID       `json:"restaurantId"`
	Name         string          `json:"name"`
	Amount       decimal.Decimal `json:"amount"`
	Bonus        decimal.Decimal `json:"bonus"`
	Total        decimal.Decimal `json:"total"`
	IsActive     bool            `json:"isActive"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// CreateRestaurantInput is the restaurant half of an owner registration.
type CreateRestaurantInput struct {
	Name        string  `json:"name" validate:"required,min=1,max=200"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
	Address     string  `json:"address" validate:"required,min=1,max=500"`
	Latitude    float64 `json:"latitude" validate:"gte=-90,lte=90"`
	Longitude   float64 `json:"longitude" validate:"gte=-180,lte=180"`
}

// UpdateRestaurantInput lists owner-editable fields. Nil means untouched.
type UpdateRestaurantInput struct {
	Name        *string  `json:"name" validate:"omitempty,min=1,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Address     *string  `json:"address" validate:"omitempty,min=1,max=500"`
	ImageURL    *string  `json:"imageUrl" validate:"omitempty,url"`
	Latitude    *float64 `json:"latitude" validate:"omitempty,gte=-90,lte=90"`
	Longitude   *float64 `json:"longitude" validate:"omitempty,gte=-180,lte=180"`
}

// RotateQRInput picks which code to regenerate.
type RotateQRInput struct {
	Type enums.QRType `json:"type" validate:"required,oneof=meal drink"`
}

// CreatePackageInput defines a new top-up package.
type CreatePackageInput struct {
	Name   string          `json:"name" validate:"required,min=1,max=120"`
	Amount decimal.Decimal `json:"amount" validate:"gt=0"`
	Bonus  decimal.Decimal `json:"bonus"`
}

// ToModel builds a restaurant row with the provided QR codes. New restaurants
// stay inactive until a subscription activates them.
func (in CreateRestaurantInput) ToModel(ownerID uuid.UUID, mealCode, drinkCode string) *models.Restaurant {
	return &models.Restaurant{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		Description: trimmedOrNil(in.Description),
		Address:     strings.TrimSpace(in.Address),
		Latitude:    in.Latitude,
		Longitude:   in.Longitude,
		QRCodeMeal:  mealCode,
		QRCodeDrink: drinkCode,
	}
}

// Location returns the coordinates as a geo point.
func (in CreateRestaurantInput) Location() geo.Point {
	return geo.Point{Lat: in.Latitude, Lng: in.Longitude}
}

func FromModel(m *models.Restaurant) *RestaurantDTO {
	if m == nil {
		return nil
	}
	return &RestaurantDTO{
		ID:                   m.ID,
		OwnerID:              m.OwnerID,
		Name:                 m.Name,
		Description:          m.Description,
		Address:              m.Address,
		ImageURL:             m.ImageURL,
		Latitude:             m.Latitude,
		Longitude:            m.Longitude,
		IsActive:             m.IsActive,
		IsSubscriptionActive: m.IsSubscriptionActive,
		CreatedAt:            m.CreatedAt,
		UpdatedAt:            m.UpdatedAt,
	}
}

func ownerFromModel(m *models.Restaurant) *OwnerRestaurantDTO {
	return &OwnerRestaurantDTO{
		RestaurantDTO: *FromModel(m),
		QRCodeMeal:    m.QRCodeMeal,
		QRCodeDrink:   m.QRCodeDrink,
	}
}

func packageFromModel(m models.TopUpPackage) PackageDTO {
	return PackageDTO{
		ID:           m.ID,
		RestaurantID: m.RestaurantID,
		Name:         m.Name,
		Amount:       m.Amount,
		Bonus:        m.Bonus,
		Total:        m.Total(),
		IsActive:     m.IsActive,
		CreatedAt:    m.CreatedAt,
	}
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	if s == "" {
		return nil
	}
	return &s
}
