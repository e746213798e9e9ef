package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/internal/notifications"
	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/subscriptions"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
)

// billing_reason of the first invoice, already covered by checkout completion.
const billingReasonCreate = "subscription_create"

type ServiceParams struct {
	DB       *db.Client
	Notifier notifications.Notifier
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service applies verified Stripe events to local subscriptions.
type Service struct {
	db       *db.Client
	notifier notifications.Notifier
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "database client required")
	}
	s := &Service{db: params.DB, notifier: params.Notifier, logg: params.Logger, now: params.Now}
	if s.notifier == nil {
		s.notifier = notifications.NopNotifier{}
	}
	if s.logg == nil {
		s.logg = logger.Nop()
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	return s, nil
}

// HandleEvent dispatches on event type. Unknown types are acknowledged.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": string(event.Type)})

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
		}
		return s.completeCheckout(ctx, &session)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode subscription")
		}
		return s.cancelSubscription(ctx, sub.ID)
	case stripe.EventTypeInvoicePaid:
		var inv paidInvoice
		if err := json.Unmarshal(event.Data.Raw, &inv); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode invoice")
		}
		if inv.BillingReason == billingReasonCreate {
			return nil
		}
		stripeSubID := inv.subscriptionID()
		if stripeSubID == "" {
			s.logg.Debug(ctx, "stripe.webhook.invoice.no_subscription")
			return nil
		}
		return s.extendSubscription(ctx, stripeSubID)
	default:
		s.logg.Debug(ctx, "stripe.webhook.ignored")
		return nil
	}
}

// completeCheckout activates the PENDING row referenced by the session.
func (s *Service) completeCheckout(ctx context.Context, session *stripe.CheckoutSession) error {
	now := s.now()
	var restaurant *models.Restaurant
	var activated *models.Subscription

	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := subscriptions.NewRepository(tx)
		sub, err := lockForSession(ctx, repo, session)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "stripe.webhook.checkout.unknown_subscription")
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if sub.Status != enums.SubscriptionStatusPending {
			return nil
		}
		plan, err := repo.FindPlan(ctx, sub.PlanID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}

		end := now.Add(plan.Duration())
		fields := map[string]any{
			"status":                     enums.SubscriptionStatusActive,
			"start_date":                 now,
			"end_date":                   end,
			"stripe_checkout_session_id": session.ID,
		}
		if session.Subscription != nil && session.Subscription.ID != "" {
			fields["stripe_subscription_id"] = session.Subscription.ID
		}
		if err := repo.UpdateSubscriptionFields(ctx, sub.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate subscription")
		}
		if _, err := subscriptions.RecomputeRestaurantFlags(ctx, tx, sub.RestaurantID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute restaurant flags")
		}
		restaurant, err = restaurants.NewRepository(tx).FindByID(ctx, sub.RestaurantID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load restaurant")
		}
		activated = sub
		return nil
	})
	if err != nil || activated == nil {
		return err
	}

	s.logg.Info(s.logg.WithField(ctx, "subscription_id", activated.ID.String()), "stripe.webhook.checkout.activated")
	s.notifier.Notify(ctx, notifications.Message{
		UserID: restaurant.OwnerID,
		Type:   enums.NotificationTypeSubscription,
		Title:  "Subscription active",
		Body:   restaurant.Name + " is now visible to customers",
		Data: map[string]any{
			"restaurantId":   restaurant.ID.String(),
			"subscriptionId": activated.ID.String(),
		},
	})
	return nil
}

func (s *Service) cancelSubscription(ctx context.Context, stripeSubID string) error {
	if stripeSubID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "subscription id missing")
	}
	now := s.now()
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := subscriptions.NewRepository(tx)
		sub, err := repo.LockByStripeSubscription(ctx, stripeSubID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusPending {
			return nil
		}
		if err := repo.UpdateSubscriptionFields(ctx, sub.ID, map[string]any{
			"status":       enums.SubscriptionStatusCancelled,
			"cancelled_at": now,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel subscription")
		}
		if _, err := subscriptions.RecomputeRestaurantFlags(ctx, tx, sub.RestaurantID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute restaurant flags")
		}
		return nil
	})
}

// extendSubscription pushes end_date out by one plan period from
// max(end_date, now) for a renewal invoice.
func (s *Service) extendSubscription(ctx context.Context, stripeSubID string) error {
	now := s.now()
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := subscriptions.NewRepository(tx)
		sub, err := repo.LockByStripeSubscription(ctx, stripeSubID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.logg.Warn(ctx, "stripe.webhook.invoice.unknown_subscription")
			return nil
		}
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
		}
		if sub.Status != enums.SubscriptionStatusActive && sub.Status != enums.SubscriptionStatusExpired {
			return nil
		}
		plan, err := repo.FindPlan(ctx, sub.PlanID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
		}

		from := now
		if sub.EndDate != nil && sub.EndDate.After(now) {
			from = *sub.EndDate
		}
		fields := map[string]any{
			"status":   enums.SubscriptionStatusActive,
			"end_date": from.Add(plan.Duration()),
		}
		if sub.StartDate == nil {
			fields["start_date"] = now
		}
		if err := repo.UpdateSubscriptionFields(ctx, sub.ID, fields); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "extend subscription")
		}
		if _, err := subscriptions.RecomputeRestaurantFlags(ctx, tx, sub.RestaurantID, now); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "recompute restaurant flags")
		}
		return nil
	})
}

func lockForSession(ctx context.Context, repo *subscriptions.Repository, session *stripe.CheckoutSession) (*models.Subscription, error) {
	if id, err := uuid.Parse(session.ClientReferenceID); err == nil {
		return repo.LockSubscription(ctx, id)
	}
	if session.ID == "" {
		return nil, gorm.ErrRecordNotFound
	}
	return repo.LockByCheckoutSession(ctx, session.ID)
}

// paidInvoice is the part of an invoice payload renewals need. Newer API
// versions nest the subscription under parent.subscription_details, older ones
// carry it at the top level; either may be null, an id, or an expanded object.
type paidInvoice struct {
	BillingReason string          `json:"billing_reason"`
	Subscription  json.RawMessage `json:"subscription"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription json.RawMessage `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

func (inv paidInvoice) subscriptionID() string {
	if inv.Parent != nil && inv.Parent.SubscriptionDetails != nil {
		if id := stripeRefID(inv.Parent.SubscriptionDetails.Subscription); id != "" {
			return id
		}
	}
	return stripeRefID(inv.Subscription)
}

// stripeRefID reads an expandable reference: a bare id string or an object with an id.
func stripeRefID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var id string
	if err := json.Unmarshal(raw, &id); err == nil {
		return id
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return obj.ID
	}
	return ""
}
