package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// Subscription ties a restaurant to a plan for a date range.
type Subscription struct {
	ID                      uuid.UUID                `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	RestaurantID            uuid.UUID                `gorm:"column:restaurant_id;type:uuid;not null;index"`
	PlanID                  uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	Status                  enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null;default:'PENDING'"`
	StartDate               *time.Time               `gorm:"column:start_date"`
	EndDate                 *time.Time               `gorm:"column:end_date"`
	StripeCheckoutSessionID *string                  `gorm:"column:stripe_checkout_session_id;uniqueIndex"`
	StripeSubscriptionID    *string                  `gorm:"column:stripe_subscription_id;uniqueIndex"`
	CancelledAt             *time.Time               `gorm:"column:cancelled_at"`
	CreatedAt               time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt               time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Subscription) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// IsCurrent reports whether the subscription grants access at now.
func (s Subscription) IsCurrent(now time.Time) bool {
	if s.Status != enums.SubscriptionStatusActive || s.StartDate == nil || s.EndDate == nil {
		return false
	}
	return !now.Before(*s.StartDate) && now.Before(*s.EndDate)
}
