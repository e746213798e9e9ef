package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/tablestars-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/tablestars-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tablestars-backend/api/middleware"
	"github.com/angelmondragon/tablestars-backend/internal/balances"
	"github.com/angelmondragon/tablestars-backend/internal/groups"
	"github.com/angelmondragon/tablestars-backend/internal/notifications"
	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/subscriptions"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	pkgAuth "github.com/angelmondragon/tablestars-backend/pkg/auth"
	"github.com/angelmondragon/tablestars-backend/pkg/auth/session"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
	"github.com/angelmondragon/tablestars-backend/pkg/redis"
)

// Deps carries everything the router wires into handlers.
// Redis is optional in tests; without it idempotency and auth rate limits are off.
type Deps struct {
	Config   *config.Config
	Logger   *logger.Logger
	Pingers  map[string]controllers.Pinger
	Redis    *redis.Client
	Sessions session.AccessSessionChecker
	Gatherer prometheus.Gatherer
	HTTP     *metrics.HTTPMetrics

	Auth          controllers.AuthService
	Users         users.Service
	Restaurants   restaurants.Service
	Groups        groups.Service
	Balances      balances.Service
	Notifications notifications.Service
	Subscriptions subscriptions.Service

	StripeWebhook      webhookcontrollers.StripeWebhookService
	StripeWebhookGuard webhookcontrollers.StripeEventGuard
	StripeSecret       string
}

func NewRouter(d Deps) http.Handler {
	cfg, logg := d.Config, d.Logger

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.CORS(cfg.CORS.AllowedOrigins),
		middleware.Metrics(d.HTTP),
		middleware.Logging(logg),
	)

	var (
		idempotency = func(next http.Handler) http.Handler { return next }
		loginLimit  = idempotency
		regLimit    = idempotency
	)
	if d.Redis != nil {
		idempotency = middleware.Idempotency(d.Redis, logg)
		loginLimit = middleware.AuthRateLimit(middleware.NewAuthRateLimitPolicy(
			"login",
			cfg.AuthRateLimit.LoginWindow,
			cfg.AuthRateLimit.LoginIPLimit,
			cfg.AuthRateLimit.LoginEmailLimit,
		), d.Redis, logg)
		regLimit = middleware.AuthRateLimit(middleware.NewAuthRateLimitPolicy(
			"register",
			cfg.AuthRateLimit.RegisterWindow,
			cfg.AuthRateLimit.RegisterIPLimit,
			cfg.AuthRateLimit.RegisterEmailLimit,
		), d.Redis, logg)
	}

	authenticated := middleware.Auth(cfg.JWT, d.Sessions, logg)
	can := func(c pkgAuth.Capability) func(http.Handler) http.Handler {
		return middleware.RequireCapability(c, logg)
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive())
		r.Get("/ready", controllers.HealthReady(d.Pingers, logg))
	})
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Get("/api/plans", controllers.ListPlans(d.Subscriptions, logg))
	r.Post("/api/webhooks/stripe", webhookcontrollers.StripeWebhook(d.StripeWebhook, d.StripeSecret, d.StripeWebhookGuard, logg))

	r.Route("/api/auth", func(r chi.Router) {
		r.With(regLimit).Post("/register", controllers.AuthRegister(d.Auth, logg))
		r.With(loginLimit).Post("/login", controllers.AuthLogin(d.Auth, logg))
		r.Post("/refresh", controllers.AuthRefresh(d.Auth, logg))
		r.With(authenticated).Post("/logout", controllers.AuthLogout(d.Auth, logg))
		r.With(authenticated, can(pkgAuth.CapRestaurantManage)).Post("/switch-restaurant", controllers.AuthSwitchRestaurant(d.Auth, logg))
	})

	r.Route("/api/client", func(r chi.Router) {
		r.Use(authenticated, idempotency)

		r.Group(func(r chi.Router) {
			r.Use(can(pkgAuth.CapClientProfile))
			r.Get("/profile", controllers.GetProfile(d.Users, logg))
			r.Patch("/profile", controllers.UpdateProfile(d.Users, logg))
			r.Get("/profile/qr", controllers.GetProfileQR(d.Users, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(can(pkgAuth.CapClientBalance))
			r.Route("/balance", func(r chi.Router) {
				r.Get("/", controllers.ListBalances(d.Balances, logg))
				r.Get("/history", controllers.BalanceHistory(d.Balances, logg))
				r.Get("/{restaurantId}", controllers.GetBalance(d.Balances, logg))
				r.Post("/scan-qr", controllers.ScanQR(d.Balances, logg))
				r.Post("/pay", controllers.Pay(d.Balances, logg))
				r.Post("/gift", controllers.Gift(d.Balances, logg))
			})
			r.Get("/restaurants", controllers.ListActiveRestaurants(d.Restaurants, logg))
			r.Get("/restaurants/{restaurantId}", controllers.GetRestaurant(d.Restaurants, logg))
		})

		// Inbox and devices are shared by customers and owners.
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(d.Notifications, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(d.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(d.Notifications, logg))
		})
		r.Post("/devices", controllers.RegisterDevice(d.Notifications, logg))
		r.Delete("/devices/{token}", controllers.RemoveDevice(d.Notifications, logg))
	})

	r.Route("/api/restaurant", func(r chi.Router) {
		r.Use(authenticated)
		r.With(can(pkgAuth.CapRestaurantManage)).Get("/owned", controllers.ListOwnedRestaurants(d.Restaurants, logg))

		r.Group(func(r chi.Router) {
			r.Use(middleware.RequireActiveRestaurant(logg), idempotency)

			r.Group(func(r chi.Router) {
				r.Use(can(pkgAuth.CapRestaurantManage))
				r.Get("/me", controllers.GetMyRestaurant(d.Restaurants, logg))
				r.Patch("/me", controllers.UpdateMyRestaurant(d.Restaurants, logg))
				r.Post("/me/qr/rotate", controllers.RotateRestaurantQR(d.Restaurants, logg))

				r.Get("/packages", controllers.ListPackages(d.Restaurants, logg))
				r.Post("/packages", controllers.CreatePackage(d.Restaurants, logg))
				r.Delete("/packages/{packageId}", controllers.DeactivatePackage(d.Restaurants, logg))

				r.Post("/groups", controllers.CreateGroup(d.Groups, logg))
				r.Get("/groups/me", controllers.GetMyGroup(d.Groups, logg))
				r.Post("/groups/members", controllers.AddGroupMember(d.Groups, logg))
				r.Delete("/groups/members/{restaurantId}", controllers.RemoveGroupMember(d.Groups, logg))
			})

			r.With(can(pkgAuth.CapRestaurantTopUp)).Post("/balance/topup", controllers.TopUp(d.Balances, logg))

			r.Route("/subscriptions", func(r chi.Router) {
				r.Use(can(pkgAuth.CapRestaurantSubscribe))
				r.Get("/", controllers.ListRestaurantSubscriptions(d.Subscriptions, logg))
				r.Post("/checkout", controllers.SubscriptionCheckout(d.Subscriptions, logg))
				r.Post("/{subscriptionId}/cancel", controllers.CancelRestaurantSubscription(d.Subscriptions, logg))
			})
		})
	})

	r.Route("/api/admin", func(r chi.Router) {
		r.Use(authenticated, idempotency)

		r.Group(func(r chi.Router) {
			r.Use(can(pkgAuth.CapAdminRead))
			r.Get("/restaurants", controllers.AdminListRestaurants(d.Restaurants, logg))
			r.Get("/plans", controllers.AdminListPlans(d.Subscriptions, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(can(pkgAuth.CapAdminUsers))
			r.Get("/users", controllers.AdminListUsers(d.Users, logg))
			r.Patch("/users/{userId}/status", controllers.AdminSetUserStatus(d.Users, logg))
		})

		r.Group(func(r chi.Router) {
			r.Use(can(pkgAuth.CapAdminPlans))
			r.Post("/plans", controllers.AdminCreatePlan(d.Subscriptions, logg))
			r.Patch("/plans/{planId}", controllers.AdminUpdatePlan(d.Subscriptions, logg))
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Use(can(pkgAuth.CapAdminSubscriptions))
			r.Get("/", controllers.AdminListSubscriptions(d.Subscriptions, logg))
			r.Post("/", controllers.AdminGrantSubscription(d.Subscriptions, logg))
			r.Post("/{subscriptionId}/cancel", controllers.AdminCancelSubscription(d.Subscriptions, logg))
		})
	})

	return r
}
