package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UserRestaurantBalance holds one customer's cash and stars at one restaurant.
type UserRestaurantBalance struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_balance_user_restaurant"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null;uniqueIndex:ux_balance_user_restaurant"`
	Balance      decimal.Decimal `gorm:"column:balance;type:numeric(12,2);not null;default:0"`
	StarsMeal    int64           `gorm:"column:stars_meal;not null;default:0"`
	StarsDrink   int64           `gorm:"column:stars_drink;not null;default:0"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (UserRestaurantBalance) TableName() string {
	return "user_restaurant_balances"
}

func (b *UserRestaurantBalance) BeforeCreate(*gorm.DB) error {
	ensureID(&b.ID)
	return nil
}
