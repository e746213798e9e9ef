package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Restaurant is a tenant that customers earn and spend balance at.
type Restaurant struct {
	ID                   uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OwnerID              uuid.UUID `gorm:"column:owner_id;type:uuid;not null;index"`
	Name                 string    `gorm:"column:name;not null"`
	Description          *string   `gorm:"column:description"`
	Address              string    `gorm:"column:address;not null"`
	ImageURL             *string   `gorm:"column:image_url"`
	Latitude             float64   `gorm:"column:latitude;not null"`
	Longitude            float64   `gorm:"column:longitude;not null"`
	QRCodeMeal           string    `gorm:"column:qr_code_meal;not null;uniqueIndex"`
	QRCodeDrink          string    `gorm:"column:qr_code_drink;not null;uniqueIndex"`
	IsActive             bool      `gorm:"column:is_active;not null;default:false"`
	IsSubscriptionActive bool      `gorm:"column:is_subscription_active;not null;default:false"`
	CreatedAt            time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Restaurant) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
