package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RestaurantGroup pools balances across its owner restaurant and members.
type RestaurantGroup struct {
	ID                uuid.UUID `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	Name              string    `gorm:"column:name;not null"`
	OwnerRestaurantID uuid.UUID `gorm:"column:owner_restaurant_id;type:uuid;not null;uniqueIndex"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (g *RestaurantGroup) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}

// RestaurantGroupMember joins a restaurant to at most one group.
type RestaurantGroupMember struct {
	GroupID      uuid.UUID `gorm:"column:group_id;type:uuid;primaryKey"`
	RestaurantID uuid.UUID `gorm:"column:restaurant_id;type:uuid;primaryKey;uniqueIndex"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
}
