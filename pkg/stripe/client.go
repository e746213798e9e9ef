package stripe

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/subscription"

	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
)

const (
	EnvTest = "test"
	EnvLive = "live"

	maxNetworkRetries = 2
)

var (
	errAPIKeyRequired   = errors.New("stripe api key is required")
	errSecretRequired   = errors.New("stripe webhook secret is required")
	errInvalidStripeEnv = fmt.Errorf("stripe environment must be %q or %q", EnvTest, EnvLive)
)

var keyPrefixes = map[string][]string{
	EnvTest: {"sk_test_", "rk_test_"},
	EnvLive: {"sk_live_", "rk_live_"},
}

// Client is the configured Stripe account used for subscription checkout.
type Client struct {
	environment   string
	signingSecret string
}

// NewClient checks that the key matches the environment, then installs it on
// the process-wide Stripe backend with retries and logging routed to logg.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	env := strings.TrimSpace(strings.ToLower(cfg.Environment()))
	if _, ok := keyPrefixes[env]; !ok {
		return nil, errInvalidStripeEnv
	}
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	if !hasKeyPrefix(env, apiKey) {
		return nil, fmt.Errorf("stripe environment %q requires a %s secret key (%s)", env, env, strings.Join(keyPrefixes[env], "/"))
	}

	stripe.Key = apiKey
	backendCfg := &stripe.BackendConfig{MaxNetworkRetries: stripe.Int64(maxNetworkRetries)}
	if logg != nil {
		backendCfg.LeveledLogger = leveledLogger{logg: logg, ctx: logg.WithField(ctx, "component", "stripe")}
		logg.Info(logg.WithField(ctx, "stripe_env", env), "stripe.client.ready")
	}
	stripe.SetBackend(stripe.APIBackend, stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg))

	return &Client{environment: env, signingSecret: secret}, nil
}

func hasKeyPrefix(env, key string) bool {
	for _, p := range keyPrefixes[env] {
		if strings.HasPrefix(key, p) {
			return true
		}
	}
	return false
}

func (c *Client) Environment() string {
	if c == nil {
		return ""
	}
	return c.environment
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreateCheckoutSession opens a hosted checkout bound to ctx.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if params == nil {
		return nil, errors.New("checkout session params are required")
	}
	params.Context = ctx
	return session.New(params)
}

func (c *Client) CancelSubscription(ctx context.Context, id string, params *stripe.SubscriptionCancelParams) (*stripe.Subscription, error) {
	if strings.TrimSpace(id) == "" {
		return nil, errors.New("stripe subscription id is required")
	}
	if params == nil {
		params = &stripe.SubscriptionCancelParams{}
	}
	params.Context = ctx
	return subscription.Cancel(id, params)
}

// leveledLogger adapts the service logger to stripe-go's logging hook.
type leveledLogger struct {
	logg *logger.Logger
	ctx  context.Context
}

func (l leveledLogger) Debugf(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

func (l leveledLogger) Infof(format string, v ...any) {
	l.logg.Debug(l.ctx, fmt.Sprintf(format, v...))
}

func (l leveledLogger) Warnf(format string, v ...any) {
	l.logg.Warn(l.ctx, fmt.Sprintf(format, v...))
}

func (l leveledLogger) Errorf(format string, v ...any) {
	l.logg.Error(l.ctx, fmt.Sprintf(format, v...), nil)
}
