package dbtest

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// SeedUser inserts a customer with a unique email and QR code.
func SeedUser(t *testing.T, conn *gorm.DB, mutate ...func(*models.User)) *models.User {
	t.Helper()
	id := uuid.New()
	user := &models.User{
		ID:           id,
		Email:        id.String() + "@example.com",
		PasswordHash: "hash",
		FirstName:    "Test",
		LastName:     "User",
		Role:         enums.RoleUser,
		QRCode:       "user-" + id.String(),
		IsActive:     true,
	}
	for _, fn := range mutate {
		fn(user)
	}
	require.NoError(t, conn.Create(user).Error)
	return user
}

// SeedRestaurant inserts an active restaurant owned by ownerID.
func SeedRestaurant(t *testing.T, conn *gorm.DB, ownerID uuid.UUID, mutate ...func(*models.Restaurant)) *models.Restaurant {
	t.Helper()
	id := uuid.New()
	restaurant := &models.Restaurant{
		ID:                   id,
		OwnerID:              ownerID,
		Name:                 "Restaurant " + id.String()[:8],
		Address:              "1 Main St",
		Latitude:             40.4168,
		Longitude:            -3.7038,
		QRCodeMeal:           "meal-" + id.String(),
		QRCodeDrink:          "drink-" + id.String(),
		IsActive:             true,
		IsSubscriptionActive: true,
	}
	for _, fn := range mutate {
		fn(restaurant)
	}
	require.NoError(t, conn.Create(restaurant).Error)
	return restaurant
}

// SeedBalance inserts a balance row with the given counters.
func SeedBalance(t *testing.T, conn *gorm.DB, userID, restaurantID uuid.UUID, balance string, starsMeal, starsDrink int64) *models.UserRestaurantBalance {
	t.Helper()
	row := &models.UserRestaurantBalance{
		UserID:       userID,
		RestaurantID: restaurantID,
		Balance:      decimal.RequireFromString(balance),
		StarsMeal:    starsMeal,
		StarsDrink:   starsDrink,
	}
	require.NoError(t, conn.Create(row).Error)
	return row
}

// SeedGroup creates a group owned by ownerRestaurantID with the given members.
func SeedGroup(t *testing.T, conn *gorm.DB, ownerRestaurantID uuid.UUID, memberIDs ...uuid.UUID) *models.RestaurantGroup {
	t.Helper()
	group := &models.RestaurantGroup{Name: "Group", OwnerRestaurantID: ownerRestaurantID}
	require.NoError(t, conn.Create(group).Error)
	for _, id := range memberIDs {
		require.NoError(t, conn.Create(&models.RestaurantGroupMember{GroupID: group.ID, RestaurantID: id}).Error)
	}
	return group
}

// SeedPlan inserts an active plan lasting durationDays.
func SeedPlan(t *testing.T, conn *gorm.DB, durationDays int, mutate ...func(*models.Plan)) *models.Plan {
	t.Helper()
	plan := &models.Plan{
		Name:         "Plan " + uuid.NewString()[:8],
		Price:        decimal.RequireFromString("29.99"),
		Currency:     enums.CurrencyUSD,
		DurationDays: durationDays,
		IsActive:     true,
	}
	for _, fn := range mutate {
		fn(plan)
	}
	require.NoError(t, conn.Create(plan).Error)
	return plan
}

// SeedSubscription inserts a subscription row spanning [start, end).
func SeedSubscription(t *testing.T, conn *gorm.DB, restaurantID, planID uuid.UUID, status enums.SubscriptionStatus, start, end time.Time) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		RestaurantID: restaurantID,
		PlanID:       planID,
		Status:       status,
		StartDate:    &start,
		EndDate:      &end,
	}
	require.NoError(t, conn.Create(sub).Error)
	return sub
}
