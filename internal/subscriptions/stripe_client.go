package subscriptions

import (
	"context"

	"github.com/stripe/stripe-go/v84"

	pkgstripe "github.com/angelmondragon/tablestars-backend/pkg/stripe"
)

// StripeClient is the slice of Stripe the subscription flows call.
type StripeClient interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error)
}

// NewStripeClient returns nil for a nil api so callers can keep online checkout disabled
// without tripping over a typed-nil interface.
func NewStripeClient(api *pkgstripe.Client) StripeClient {
	if api == nil {
		return nil
	}
	return api
}
