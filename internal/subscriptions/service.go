package subscriptions

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/notifications"
	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

// Service covers plan administration and the restaurant subscription lifecycle.
type Service interface {
	ListActivePlans(ctx context.Context) ([]PlanDTO, error)
	ListPlans(ctx context.Context) ([]PlanDTO, error)
	CreatePlan(ctx context.Context, input CreatePlanInput) (*PlanDTO, error)
	UpdatePlan(ctx context.Context, planID uuid.UUID, input UpdatePlanInput) (*PlanDTO, error)

	List(ctx context.Context, filter ListFilter) (pagination.Page[SubscriptionDTO], error)
	Grant(ctx context.Context, input GrantInput) (*SubscriptionDTO, error)
	Cancel(ctx context.Context, subscriptionID uuid.UUID) (*SubscriptionDTO, error)

	ListForOwner(ctx context.Context, ownerID, restaurantID uuid.UUID) ([]SubscriptionDTO, error)
	Checkout(ctx context.Context, ownerID, restaurantID uuid.UUID, input CheckoutInput) (*CheckoutResultDTO, error)
	CancelForOwner(ctx context.Context, ownerID, restaurantID, subscriptionID uuid.UUID) (*SubscriptionDTO, error)
}

// ServiceParams packages the dependencies for the subscription service.
// Stripe may be nil, in which case online checkout is unavailable.
type ServiceParams struct {
	DB         *db.Client
	Stripe     StripeClient
	SuccessURL string
	CancelURL  string
	Notifier   notifications.Notifier
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	db         *db.Client
	stripe     StripeClient
	successURL string
	cancelURL  string
	notifier   notifications.Notifier
	logg       *logger.Logger
	now        func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	svc := &service{
		db:         params.DB,
		stripe:     params.Stripe,
		successURL: strings.TrimSpace(params.SuccessURL),
		cancelURL:  strings.TrimSpace(params.CancelURL),
		notifier:   params.Notifier,
		logg:       params.Logger,
		now:        params.Now,
	}
	if svc.notifier == nil {
		svc.notifier = notifications.NopNotifier{}
	}
	if svc.logg == nil {
		svc.logg = logger.Nop()
	}
	if svc.now == nil {
		svc.now = func() time.Time { return time.Now().UTC() }
	}
	return svc, nil
}

func (s *service) ListActivePlans(ctx context.Context) ([]PlanDTO, error) {
	return s.listPlans(ctx, true)
}

func (s *service) ListPlans(ctx context.Context) ([]PlanDTO, error) {
	return s.listPlans(ctx, false)
}

func (s *service) listPlans(ctx context.Context, activeOnly bool) ([]PlanDTO, error) {
	plans, err := NewRepository(s.db.DB()).ListPlans(ctx, activeOnly)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list plans")
	}
	out := make([]PlanDTO, 0, len(plans))
	for i := range plans {
		out = append(out, planFromModel(&plans[i]))
	}
	return out, nil
}

func (s *service) CreatePlan(ctx context.Context, input CreatePlanInput) (*PlanDTO, error) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "name is required")
	}
	if err := validatePrice(input.Price); err != nil {
		return nil, err
	}
	if input.DurationDays <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "durationDays must be positive")
	}
	currency := input.Currency
	if currency == "" {
		currency = enums.CurrencyUSD
	}
	if !currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
	}

	plan := &models.Plan{
		Name:          name,
		Description:   trimmed(input.Description),
		Price:         input.Price,
		Currency:      currency,
		DurationDays:  input.DurationDays,
		StripePriceID: trimmed(input.StripePriceID),
		IsActive:      true,
	}
	if input.Features != nil {
		raw, err := json.Marshal(input.Features)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode features")
		}
		plan.Features = datatypes.JSON(raw)
	}

	repo := NewRepository(s.db.DB())
	if err := repo.CreatePlan(ctx, plan); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "a plan with this name already exists")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create plan")
	}
	stored, err := repo.FindPlan(ctx, plan.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload plan")
	}
	dto := planFromModel(stored)
	return &dto, nil
}

func (s *service) UpdatePlan(ctx context.Context, planID uuid.UUID, input UpdatePlanInput) (*PlanDTO, error) {
	fields := map[string]any{}
	if input.Name != nil {
		name := strings.TrimSpace(*input.Name)
		if name == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "name cannot be blank")
		}
		fields["name"] = name
	}
	if input.Description != nil {
		fields["description"] = trimmed(input.Description)
	}
	if input.Price != nil {
		if err := validatePrice(*input.Price); err != nil {
			return nil, err
		}
		fields["price"] = *input.Price
	}
	if input.Currency != nil {
		if !input.Currency.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency")
		}
		fields["currency"] = *input.Currency
	}
	if input.DurationDays != nil {
		if *input.DurationDays <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "durationDays must be positive")
		}
		fields["duration_days"] = *input.DurationDays
	}
	if input.StripePriceID != nil {
		fields["stripe_price_id"] = trimmed(input.StripePriceID)
	}
	if input.Features != nil {
		raw, err := json.Marshal(input.Features)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "encode features")
		}
		fields["features"] = datatypes.JSON(raw)
	}
	if input.IsActive != nil {
		fields["is_active"] = *input.IsActive
	}

	repo := NewRepository(s.db.DB())
	if len(fields) > 0 {
		if err := repo.UpdatePlanFields(ctx, planID, fields); err != nil {
			switch {
			case errors.Is(err, gorm.ErrRecordNotFound):
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
			case db.IsUniqueViolation(err, ""):
				return nil, pkgerrors.New(pkgerrors.CodeConflict, "a plan with this name already exists")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update plan")
		}
	}
	plan, err := repo.FindPlan(ctx, planID)
	if err != nil {
		return nil, notFoundOr(err, "plan not found", "load plan")
	}
	dto := planFromModel(plan)
	return &dto, nil
}

func (s *service) List(ctx context.Context, filter ListFilter) (pagination.Page[SubscriptionDTO], error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return pagination.Page[SubscriptionDTO]{}, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter")
	}
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return pagination.Page[SubscriptionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	subs, err := NewRepository(s.db.DB()).ListSubscriptions(ctx, filter, cursor)
	if err != nil {
		return pagination.Page[SubscriptionDTO]{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	dtos := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		dtos = append(dtos, subscriptionFromModel(&subs[i]))
	}
	return pagination.NewPage(dtos, filter.Limit, func(d SubscriptionDTO) pagination.Cursor {
		return pagination.Cursor{CreatedAt: d.CreatedAt, ID: d.ID}
	}), nil
}

// Grant activates a plan for a restaurant immediately, without payment.
func (s *service) Grant(ctx context.Context, input GrantInput) (*SubscriptionDTO, error) {
	if input.RestaurantID == uuid.Nil || input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restaurantId and planId are required")
	}
	now := s.now()

	var (
		out        SubscriptionDTO
		restaurant *models.Restaurant
	)
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		restaurant, err = restaurants.NewRepository(tx).FindByID(ctx, input.RestaurantID)
		if err != nil {
			return notFoundOr(err, "restaurant not found", "load restaurant")
		}
		repo := NewRepository(tx)
		plan, err := repo.FindPlan(ctx, input.PlanID)
		if err != nil {
			return notFoundOr(err, "plan not found", "load plan")
		}

		end := now.Add(plan.Duration())
		sub := &models.Subscription{
			RestaurantID: restaurant.ID,
			PlanID:       plan.ID,
			Status:       enums.SubscriptionStatusActive,
			StartDate:    &now,
			EndDate:      &end,
		}
		if err := repo.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		if _, err := RecomputeRestaurantFlags(ctx, tx, restaurant.ID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute restaurant flags")
		}
		out = subscriptionFromModel(sub)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifyOwner(ctx, restaurant, "Subscription active", restaurant.Name+" is now visible to customers", out.ID)
	return &out, nil
}

func (s *service) Cancel(ctx context.Context, subscriptionID uuid.UUID) (*SubscriptionDTO, error) {
	return s.cancel(ctx, subscriptionID, func(*models.Subscription) error { return nil })
}

func (s *service) ListForOwner(ctx context.Context, ownerID, restaurantID uuid.UUID) ([]SubscriptionDTO, error) {
	conn := s.db.DB()
	if _, err := ownedRestaurant(ctx, conn, ownerID, restaurantID); err != nil {
		return nil, err
	}
	subs, err := NewRepository(conn).ListByRestaurant(ctx, restaurantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	out := make([]SubscriptionDTO, 0, len(subs))
	for i := range subs {
		out = append(out, subscriptionFromModel(&subs[i]))
	}
	return out, nil
}

// Checkout opens a Stripe Checkout Session for planID and records a PENDING
// subscription that the webhook activates once payment completes.
func (s *service) Checkout(ctx context.Context, ownerID, restaurantID uuid.UUID, input CheckoutInput) (*CheckoutResultDTO, error) {
	if input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "planId is required")
	}
	conn := s.db.DB()
	restaurant, err := ownedRestaurant(ctx, conn, ownerID, restaurantID)
	if err != nil {
		return nil, err
	}
	repo := NewRepository(conn)
	plan, err := repo.FindPlan(ctx, input.PlanID)
	if err != nil {
		return nil, notFoundOr(err, "plan not found", "load plan")
	}
	if !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "plan not found")
	}
	if plan.StripePriceID == nil || strings.TrimSpace(*plan.StripePriceID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "plan is not available for online checkout")
	}
	if s.stripe == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "online checkout is not configured")
	}

	sub := &models.Subscription{
		RestaurantID: restaurant.ID,
		PlanID:       plan.ID,
		Status:       enums.SubscriptionStatusPending,
	}
	if err := repo.CreateSubscription(ctx, sub); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create pending subscription")
	}

	metadata := map[string]string{
		"subscription_id": sub.ID.String(),
		"restaurant_id":   restaurant.ID.String(),
		"plan_id":         plan.ID.String(),
	}
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		ClientReferenceID: stripe.String(sub.ID.String()),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Price:    stripe.String(strings.TrimSpace(*plan.StripePriceID)),
			Quantity: stripe.Int64(1),
		}},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{Metadata: metadata},
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}

	checkout, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		if delErr := repo.DeleteSubscription(ctx, sub.ID); delErr != nil {
			s.logg.Error(ctx, "subscriptions.checkout.cleanup_failed", delErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := repo.UpdateSubscriptionFields(ctx, sub.ID, map[string]any{"stripe_checkout_session_id": checkout.ID}); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store checkout session")
	}

	ctx = s.logg.WithFields(ctx, map[string]any{"subscription_id": sub.ID.String(), "checkout_session_id": checkout.ID})
	s.logg.Info(ctx, "subscriptions.checkout.created")
	return &CheckoutResultDTO{SubscriptionID: sub.ID, CheckoutURL: checkout.URL}, nil
}

func (s *service) CancelForOwner(ctx context.Context, ownerID, restaurantID, subscriptionID uuid.UUID) (*SubscriptionDTO, error) {
	if _, err := ownedRestaurant(ctx, s.db.DB(), ownerID, restaurantID); err != nil {
		return nil, err
	}
	return s.cancel(ctx, subscriptionID, func(sub *models.Subscription) error {
		if sub.RestaurantID != restaurantID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "subscription not found")
		}
		return nil
	})
}

// cancel marks a live subscription CANCELLED, cancelling it at Stripe first
// when it was paid online.
func (s *service) cancel(ctx context.Context, subscriptionID uuid.UUID, authorize func(*models.Subscription) error) (*SubscriptionDTO, error) {
	if subscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscriptionId is required")
	}
	now := s.now()

	var out SubscriptionDTO
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := NewRepository(tx)
		sub, err := repo.LockSubscription(ctx, subscriptionID)
		if err != nil {
			return notFoundOr(err, "subscription not found", "load subscription")
		}
		if err := authorize(sub); err != nil {
			return err
		}
		if sub.Status == enums.SubscriptionStatusCancelled || sub.Status == enums.SubscriptionStatusExpired {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "subscription is already "+strings.ToLower(string(sub.Status))).
				WithDetails(map[string]any{"status": sub.Status})
		}

		if sub.StripeSubscriptionID != nil && *sub.StripeSubscriptionID != "" {
			if s.stripe == nil {
				return pkgerrors.New(pkgerrors.CodeDependency, "online checkout is not configured")
			}
			if _, err := s.stripe.CancelSubscription(ctx, *sub.StripeSubscriptionID, nil); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel stripe subscription")
			}
		}

		if err := repo.UpdateSubscriptionFields(ctx, sub.ID, map[string]any{
			"status":       enums.SubscriptionStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
		}
		if _, err := RecomputeRestaurantFlags(ctx, tx, sub.RestaurantID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute restaurant flags")
		}

		sub.Status = enums.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		out = subscriptionFromModel(sub)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *service) notifyOwner(ctx context.Context, restaurant *models.Restaurant, title, body string, subscriptionID uuid.UUID) {
	if restaurant == nil {
		return
	}
	s.notifier.Notify(ctx, notifications.Message{
		UserID: restaurant.OwnerID,
		Type:   enums.NotificationTypeSubscription,
		Title:  title,
		Body:   body,
		Data: map[string]any{
			"restaurantId":   restaurant.ID.String(),
			"subscriptionId": subscriptionID.String(),
		},
	})
}

func ownedRestaurant(ctx context.Context, conn *gorm.DB, ownerID, restaurantID uuid.UUID) (*models.Restaurant, error) {
	if restaurantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "no active restaurant selected")
	}
	restaurant, err := restaurants.NewRepository(conn).FindByID(ctx, restaurantID)
	if err != nil {
		return nil, notFoundOr(err, "restaurant not found", "load restaurant")
	}
	if restaurant.OwnerID != ownerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "restaurant belongs to another owner")
	}
	return restaurant, nil
}

func validatePrice(price decimal.Decimal) error {
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "price cannot be negative")
	}
	if !price.Round(2).Equal(price) {
		return pkgerrors.New(pkgerrors.CodeValidation, "price allows at most two decimal places")
	}
	return nil
}

func notFoundOr(err error, notFound, op string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, notFound)
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, op)
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
