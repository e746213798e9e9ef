package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// DeviceToken is an FCM registration token for a user's device.
type DeviceToken struct {
	ID        uuid.UUID            `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID    uuid.UUID            `gorm:"column:user_id;type:uuid;not null;index"`
	Token     string               `gorm:"column:token;not null;uniqueIndex"`
	Platform  enums.DevicePlatform `gorm:"column:platform;type:device_platform;not null"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeviceToken) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
