package subscriptions

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

// Repository persists plans and subscriptions.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) CreatePlan(ctx context.Context, plan *models.Plan) error {
	return r.db.WithContext(ctx).Create(plan).Error
}

func (r *Repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	var plan models.Plan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		return nil, err
	}
	return &plan, nil
}

func (r *Repository) UpdatePlanFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Plan{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListPlans returns plans cheapest first.
func (r *Repository) ListPlans(ctx context.Context, activeOnly bool) ([]models.Plan, error) {
	q := r.db.WithContext(ctx).Order("price ASC").Order("name ASC")
	if activeOnly {
		q = q.Where("is_active = ?", true)
	}
	var plans []models.Plan
	return plans, q.Find(&plans).Error
}

func (r *Repository) CreateSubscription(ctx context.Context, sub *models.Subscription) error {
	return r.db.WithContext(ctx).Create(sub).Error
}

func (r *Repository) DeleteSubscription(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Subscription{}).Error
}

// LockSubscription loads a subscription FOR UPDATE.
func (r *Repository) LockSubscription(ctx context.Context, id uuid.UUID) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LockByCheckoutSession loads the subscription created for a checkout session FOR UPDATE.
func (r *Repository) LockByCheckoutSession(ctx context.Context, sessionID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_checkout_session_id = ?", sessionID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// LockByStripeSubscription loads a subscription by its Stripe id FOR UPDATE.
func (r *Repository) LockByStripeSubscription(ctx context.Context, stripeID string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("stripe_subscription_id = ?", stripeID).
		First(&sub).Error
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *Repository) UpdateSubscriptionFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	res := r.db.WithContext(ctx).Model(&models.Subscription{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *Repository) ListSubscriptions(ctx context.Context, filter ListFilter, cursor *pagination.Cursor) ([]models.Subscription, error) {
	q := r.db.WithContext(ctx).Scopes(pagination.Keyset(cursor, filter.Limit))
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.RestaurantID != nil {
		q = q.Where("restaurant_id = ?", *filter.RestaurantID)
	}
	var subs []models.Subscription
	return subs, q.Find(&subs).Error
}

func (r *Repository) ListByRestaurant(ctx context.Context, restaurantID uuid.UUID) ([]models.Subscription, error) {
	var subs []models.Subscription
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&subs).Error
	return subs, err
}

// HasCurrent reports whether restaurantID holds an ACTIVE subscription covering now.
func (r *Repository) HasCurrent(ctx context.Context, restaurantID uuid.UUID, now time.Time) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("restaurant_id = ? AND status = ?", restaurantID, enums.SubscriptionStatusActive).
		Where("start_date <= ? AND end_date > ?", now, now).
		Count(&n).Error
	return n > 0, err
}

// ExpireEnded flips every ACTIVE subscription whose end_date has passed to
// EXPIRED and returns how many rows changed.
func (r *Repository) ExpireEnded(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Subscription{}).
		Where("status = ? AND end_date < ?", enums.SubscriptionStatusActive, now).
		Updates(map[string]any{"status": enums.SubscriptionStatusExpired, "updated_at": now})
	return res.RowsAffected, res.Error
}

// RestaurantIDs lists every restaurant id.
func (r *Repository) RestaurantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Model(&models.Restaurant{}).Order("id ASC").Pluck("id", &ids).Error
	return ids, err
}

// SetRestaurantFlags writes both activity flags of a restaurant.
func (r *Repository) SetRestaurantFlags(ctx context.Context, restaurantID uuid.UUID, active bool) error {
	res := r.db.WithContext(ctx).
		Model(&models.Restaurant{}).
		Where("id = ?", restaurantID).
		Updates(map[string]any{"is_active": active, "is_subscription_active": active})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
