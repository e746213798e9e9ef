package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

type fakeStripe struct {
	sessionParams *stripe.CheckoutSessionParams
	sessionErr    error
	cancelled     []string
	cancelErr     error
}

func (f *fakeStripe) CreateCheckoutSession(_ context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	f.sessionParams = params
	if f.sessionErr != nil {
		return nil, f.sessionErr
	}
	return &stripe.CheckoutSession{ID: "cs_test_123", URL: "https://checkout.stripe.test/cs_test_123"}, nil
}

func (f *fakeStripe) CancelSubscription(_ context.Context, id string, _ *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	if f.cancelErr != nil {
		return nil, f.cancelErr
	}
	f.cancelled = append(f.cancelled, id)
	return &stripe.Subscription{ID: id, Status: stripe.SubscriptionStatusCanceled}, nil
}

type fixture struct {
	conn   *gorm.DB
	svc    Service
	stripe *fakeStripe
	now    time.Time
	owner  *models.User
	rest   *models.Restaurant
}

func setup(t *testing.T) fixture {
	t.Helper()
	conn := dbtest.Open(t)
	fake := &fakeStripe{}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc, err := NewService(ServiceParams{
		DB:         db.Wrap(conn),
		Stripe:     fake,
		SuccessURL: "https://app.test/success",
		CancelURL:  "https://app.test/cancel",
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	owner := dbtest.SeedUser(t, conn, func(u *models.User) { u.Role = enums.RoleRestaurantOwner })
	rest := dbtest.SeedRestaurant(t, conn, owner.ID)
	require.NoError(t, conn.Model(&models.Restaurant{}).Where("id = ?", rest.ID).
		Updates(map[string]any{"is_active": false, "is_subscription_active": false}).Error)
	return fixture{conn: conn, svc: svc, stripe: fake, now: now, owner: owner, rest: rest}
}

func (f fixture) restaurant(t *testing.T) *models.Restaurant {
	t.Helper()
	var r models.Restaurant
	require.NoError(t, f.conn.Where("id = ?", f.rest.ID).First(&r).Error)
	return &r
}

func withPrice(id string) func(*models.Plan) {
	return func(p *models.Plan) { p.StripePriceID = &id }
}

func TestCreateAndUpdatePlan(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	plan, err := f.svc.CreatePlan(ctx, CreatePlanInput{
		Name:         "  Monthly ",
		Price:        decimal.RequireFromString("19.99"),
		DurationDays: 30,
		Features:     []string{"groups", "top-ups"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Monthly", plan.Name)
	assert.Equal(t, enums.CurrencyUSD, plan.Currency)
	assert.JSONEq(t, `["groups","top-ups"]`, string(plan.Features))
	assert.True(t, plan.IsActive)

	_, err = f.svc.CreatePlan(ctx, CreatePlanInput{Name: "Monthly", Price: decimal.NewFromInt(5), DurationDays: 30})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.CreatePlan(ctx, CreatePlanInput{Name: "Broken", Price: decimal.RequireFromString("1.999"), DurationDays: 30})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	inactive := false
	days := 31
	updated, err := f.svc.UpdatePlan(ctx, plan.ID, UpdatePlanInput{IsActive: &inactive, DurationDays: &days})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 31, updated.DurationDays)

	active, err := f.svc.ListActivePlans(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := f.svc.ListPlans(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)

	_, err = f.svc.UpdatePlan(ctx, uuid.New(), UpdatePlanInput{IsActive: &inactive})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestGrantActivatesRestaurant(t *testing.T) {
	f := setup(t)
	plan := dbtest.SeedPlan(t, f.conn, 30)

	sub, err := f.svc.Grant(context.Background(), GrantInput{RestaurantID: f.rest.ID, PlanID: plan.ID})
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusActive, sub.Status)
	require.NotNil(t, sub.EndDate)
	assert.True(t, sub.EndDate.Equal(f.now.Add(30*24*time.Hour)))

	r := f.restaurant(t)
	assert.True(t, r.IsActive)
	assert.True(t, r.IsSubscriptionActive)

	_, err = f.svc.Grant(context.Background(), GrantInput{RestaurantID: uuid.New(), PlanID: plan.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))
}

func TestCancelDeactivatesAndRejectsRepeat(t *testing.T) {
	f := setup(t)
	plan := dbtest.SeedPlan(t, f.conn, 30)
	sub, err := f.svc.Grant(context.Background(), GrantInput{RestaurantID: f.rest.ID, PlanID: plan.ID})
	require.NoError(t, err)

	cancelled, err := f.svc.Cancel(context.Background(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CancelledAt)
	assert.False(t, f.restaurant(t).IsActive)
	assert.Empty(t, f.stripe.cancelled)

	_, err = f.svc.Cancel(context.Background(), sub.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeStateConflict))
}

func TestCancelForOwnerCancelsAtStripe(t *testing.T) {
	f := setup(t)
	plan := dbtest.SeedPlan(t, f.conn, 30)
	sub := dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now.Add(-time.Hour), f.now.Add(time.Hour))
	require.NoError(t, f.conn.Model(sub).Update("stripe_subscription_id", "sub_123").Error)

	stranger := dbtest.SeedUser(t, f.conn, func(u *models.User) { u.Role = enums.RoleRestaurantOwner })
	_, err := f.svc.CancelForOwner(context.Background(), stranger.ID, f.rest.ID, sub.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeForbidden))

	other := dbtest.SeedRestaurant(t, f.conn, f.owner.ID)
	_, err = f.svc.CancelForOwner(context.Background(), f.owner.ID, other.ID, sub.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	f.stripe.cancelErr = errors.New("stripe down")
	_, err = f.svc.CancelForOwner(context.Background(), f.owner.ID, f.rest.ID, sub.ID)
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
	var still models.Subscription
	require.NoError(t, f.conn.Where("id = ?", sub.ID).First(&still).Error)
	assert.Equal(t, enums.SubscriptionStatusActive, still.Status)

	f.stripe.cancelErr = nil
	out, err := f.svc.CancelForOwner(context.Background(), f.owner.ID, f.rest.ID, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, enums.SubscriptionStatusCancelled, out.Status)
	assert.Equal(t, []string{"sub_123"}, f.stripe.cancelled)
}

func TestCheckoutCreatesPendingSubscription(t *testing.T) {
	f := setup(t)
	plan := dbtest.SeedPlan(t, f.conn, 30, withPrice("price_123"))

	out, err := f.svc.Checkout(context.Background(), f.owner.ID, f.rest.ID, CheckoutInput{PlanID: plan.ID})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_123", out.CheckoutURL)

	var sub models.Subscription
	require.NoError(t, f.conn.Where("id = ?", out.SubscriptionID).First(&sub).Error)
	assert.Equal(t, enums.SubscriptionStatusPending, sub.Status)
	require.NotNil(t, sub.StripeCheckoutSessionID)
	assert.Equal(t, "cs_test_123", *sub.StripeCheckoutSessionID)

	params := f.stripe.sessionParams
	require.NotNil(t, params)
	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *params.Mode)
	assert.Equal(t, out.SubscriptionID.String(), *params.ClientReferenceID)
	require.Len(t, params.LineItems, 1)
	assert.Equal(t, "price_123", *params.LineItems[0].Price)
	assert.Equal(t, f.rest.ID.String(), params.Metadata["restaurant_id"])

	assert.False(t, f.restaurant(t).IsActive)
}

func TestCheckoutRejections(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	noPrice := dbtest.SeedPlan(t, f.conn, 30)
	priced := dbtest.SeedPlan(t, f.conn, 30, withPrice("price_123"))

	_, err := f.svc.Checkout(ctx, f.owner.ID, f.rest.ID, CheckoutInput{PlanID: noPrice.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeConflict))

	_, err = f.svc.Checkout(ctx, f.owner.ID, f.rest.ID, CheckoutInput{PlanID: uuid.New()})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeNotFound))

	f.stripe.sessionErr = errors.New("stripe down")
	_, err = f.svc.Checkout(ctx, f.owner.ID, f.rest.ID, CheckoutInput{PlanID: priced.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))

	var n int64
	require.NoError(t, f.conn.Model(&models.Subscription{}).Count(&n).Error)
	assert.Zero(t, n)
}

func TestCheckoutWithoutStripe(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(ServiceParams{DB: db.Wrap(conn)})
	require.NoError(t, err)
	owner := dbtest.SeedUser(t, conn)
	rest := dbtest.SeedRestaurant(t, conn, owner.ID)
	plan := dbtest.SeedPlan(t, conn, 30, withPrice("price_1"))

	_, err = svc.Checkout(context.Background(), owner.ID, rest.ID, CheckoutInput{PlanID: plan.ID})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeDependency))
}

func TestListFiltersAndPages(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	plan := dbtest.SeedPlan(t, f.conn, 30)
	other := dbtest.SeedRestaurant(t, f.conn, f.owner.ID)
	for i := 0; i < 3; i++ {
		dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now, f.now.Add(time.Hour))
	}
	dbtest.SeedSubscription(t, f.conn, other.ID, plan.ID, enums.SubscriptionStatusExpired, f.now.Add(-2*time.Hour), f.now.Add(-time.Hour))

	page, err := f.svc.List(ctx, ListFilter{Status: enums.SubscriptionStatusActive, Params: pagination.Params{Limit: 2}})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	require.NotEmpty(t, page.NextCursor)

	next, err := f.svc.List(ctx, ListFilter{Status: enums.SubscriptionStatusActive, Params: pagination.Params{Limit: 2, Cursor: page.NextCursor}})
	require.NoError(t, err)
	require.Len(t, next.Items, 1)
	assert.Empty(t, next.NextCursor)

	byRest, err := f.svc.List(ctx, ListFilter{RestaurantID: &other.ID})
	require.NoError(t, err)
	require.Len(t, byRest.Items, 1)
	assert.Equal(t, enums.SubscriptionStatusExpired, byRest.Items[0].Status)

	_, err = f.svc.List(ctx, ListFilter{Status: "BOGUS"})
	assert.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	mine, err := f.svc.ListForOwner(ctx, f.owner.ID, f.rest.ID)
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestRecomputeRestaurantFlags(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	plan := dbtest.SeedPlan(t, f.conn, 30)

	active, err := RecomputeRestaurantFlags(ctx, f.conn, f.rest.ID, f.now)
	require.NoError(t, err)
	assert.False(t, active)

	dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now.Add(time.Hour), f.now.Add(2*time.Hour))
	active, err = RecomputeRestaurantFlags(ctx, f.conn, f.rest.ID, f.now)
	require.NoError(t, err)
	assert.False(t, active, "future subscription does not count yet")

	dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now.Add(-time.Hour), f.now.Add(time.Hour))
	active, err = RecomputeRestaurantFlags(ctx, f.conn, f.rest.ID, f.now)
	require.NoError(t, err)
	assert.True(t, active)
	assert.True(t, f.restaurant(t).IsActive)

	_, err = RecomputeRestaurantFlags(ctx, f.conn, uuid.New(), f.now)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExpireEnded(t *testing.T) {
	f := setup(t)
	plan := dbtest.SeedPlan(t, f.conn, 30)
	ended := dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now.Add(-48*time.Hour), f.now.Add(-time.Hour))
	live := dbtest.SeedSubscription(t, f.conn, f.rest.ID, plan.ID, enums.SubscriptionStatusActive, f.now.Add(-time.Hour), f.now.Add(time.Hour))

	n, err := NewRepository(f.conn).ExpireEnded(context.Background(), f.now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	var expired, current models.Subscription
	require.NoError(t, f.conn.Where("id = ?", ended.ID).First(&expired).Error)
	assert.Equal(t, enums.SubscriptionStatusExpired, expired.Status)
	require.NoError(t, f.conn.Where("id = ?", live.ID).First(&current).Error)
	assert.Equal(t, enums.SubscriptionStatusActive, current.Status)
}
