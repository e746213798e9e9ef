package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RecomputeRestaurantFlags sets is_subscription_active and is_active from
// whether the restaurant holds an ACTIVE subscription with
// start_date <= now < end_date. It runs on conn, so callers pass their
// transaction to keep the flags consistent with the subscription write.
func RecomputeRestaurantFlags(ctx context.Context, conn *gorm.DB, restaurantID uuid.UUID, now time.Time) (bool, error) {
	repo := NewRepository(conn)
	active, err := repo.HasCurrent(ctx, restaurantID, now)
	if err != nil {
		return false, err
	}
	if err := repo.SetRestaurantFlags(ctx, restaurantID, active); err != nil {
		return false, err
	}
	return active, nil
}
