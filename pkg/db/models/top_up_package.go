package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TopUpPackage is a restaurant-defined cash bundle sold at the counter.
type TopUpPackage struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;index"`
	Name         string          `gorm:"column:name;not null"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Bonus        decimal.Decimal `gorm:"column:bonus;type:numeric(12,2);not null;default:0"`
	IsActive     bool            `gorm:"column:is_active;not null;default:true"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *TopUpPackage) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// Total is what a customer receives when the package is applied.
func (p TopUpPackage) Total() decimal.Decimal {
	return p.Amount.Add(p.Bonus)
}
