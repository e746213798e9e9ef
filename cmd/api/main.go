package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/tablestars-backend/api/controllers"
	webhookcontrollers "github.com/angelmondragon/tablestars-backend/api/controllers/webhooks"
	"github.com/angelmondragon/tablestars-backend/api/routes"
	"github.com/angelmondragon/tablestars-backend/internal/auth"
	"github.com/angelmondragon/tablestars-backend/internal/balances"
	"github.com/angelmondragon/tablestars-backend/internal/cron"
	"github.com/angelmondragon/tablestars-backend/internal/groups"
	"github.com/angelmondragon/tablestars-backend/internal/notifications"
	"github.com/angelmondragon/tablestars-backend/internal/restaurants"
	"github.com/angelmondragon/tablestars-backend/internal/subscriptions"
	"github.com/angelmondragon/tablestars-backend/internal/users"
	stripewebhook "github.com/angelmondragon/tablestars-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tablestars-backend/pkg/auth/session"
	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/fcm"
	"github.com/angelmondragon/tablestars-backend/pkg/instance"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
	"github.com/angelmondragon/tablestars-backend/pkg/migrate"
	"github.com/angelmondragon/tablestars-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/tablestars-backend/pkg/stripe"
)

const (
	webhookEventTTL = 72 * time.Hour
	shutdownTimeout = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	fatalIf(logg, "failed to load config", err)

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	fatalIf(logg, "failed to bootstrap database", err)
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	fatalIf(logg, "failed to run dev migrations", migrate.MaybeRunDev(ctx, cfg, logg, dbClient))

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	fatalIf(logg, "failed to bootstrap redis", err)
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	fatalIf(logg, "failed to create session manager", err)

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := metrics.NewHTTPMetrics(registry)
	ledgerMetrics := metrics.NewLedgerMetrics(registry)
	notificationMetrics := metrics.NewNotificationMetrics(registry)
	cronMetrics := metrics.NewCronJobMetrics(registry)

	sender, err := fcm.New(ctx, cfg.FCM, logg)
	fatalIf(logg, "failed to create push sender", err)

	notificationRepo := notifications.NewRepository(dbClient.DB())
	dispatcher, err := notifications.NewDispatcher(notifications.DispatcherParams{
		Repo:        notificationRepo,
		Sender:      sender,
		Logger:      logg,
		Metrics:     notificationMetrics,
		Workers:     cfg.Notifications.Workers,
		QueueSize:   cfg.Notifications.QueueSize,
		SendTimeout: cfg.Notifications.SendTimeout,
	})
	fatalIf(logg, "failed to start notification dispatcher", err)
	defer dispatcher.Stop()

	var stripeClient subscriptions.StripeClient
	if cfg.Stripe.Enabled() {
		api, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
		fatalIf(logg, "failed to create stripe client", err)
		stripeClient = subscriptions.NewStripeClient(api)
	} else {
		logg.Warn(ctx, "stripe not configured; online checkout disabled")
	}

	authService, err := auth.NewService(auth.ServiceParams{
		DB:             dbClient,
		Sessions:       sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
		Logger:         logg,
	})
	fatalIf(logg, "failed to create auth service", err)

	userService, err := users.NewService(users.NewRepository(dbClient.DB()))
	fatalIf(logg, "failed to create user service", err)

	restaurantService, err := restaurants.NewService(restaurants.NewRepository(dbClient.DB()))
	fatalIf(logg, "failed to create restaurant service", err)

	groupService, err := groups.NewService(groups.ServiceParams{DB: dbClient})
	fatalIf(logg, "failed to create group service", err)

	balanceService, err := balances.NewService(balances.ServiceParams{
		DB:          dbClient,
		Restaurants: restaurantService,
		Notifier:    dispatcher,
		Metrics:     ledgerMetrics,
		Logger:      logg,
		Geofence:    cfg.Geofence,
		Ledger:      cfg.Ledger,
	})
	fatalIf(logg, "failed to create balance service", err)

	notificationService, err := notifications.NewService(notificationRepo)
	fatalIf(logg, "failed to create notification service", err)

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		DB:         dbClient,
		Stripe:     stripeClient,
		SuccessURL: cfg.Stripe.SuccessURL,
		CancelURL:  cfg.Stripe.CancelURL,
		Notifier:   dispatcher,
		Logger:     logg,
	})
	fatalIf(logg, "failed to create subscription service", err)

	webhookService, err := stripewebhook.NewService(stripewebhook.ServiceParams{
		DB:       dbClient,
		Notifier: dispatcher,
		Logger:   logg,
	})
	fatalIf(logg, "failed to create stripe webhook service", err)

	var webhookGuard webhookcontrollers.StripeEventGuard
	if guard, err := stripewebhook.NewEventGuard(redisClient, webhookEventTTL); err != nil {
		logg.Error(ctx, "stripe webhook dedupe disabled", err)
	} else {
		webhookGuard = guard
	}

	if cfg.Cron.Embedded {
		lock, err := cron.NewRedisLock(redisClient, cron.SweepLockName(cfg.App.Env), cfg.Cron.LockTTL)
		fatalIf(logg, "failed to create cron lock", err)
		sweep, err := cron.NewSubscriptionSweep(cron.SweepParams{
			DB:      dbClient,
			Lock:    lock,
			Logger:  logg,
			Metrics: cronMetrics,
			Config:  cfg.Cron,
		})
		fatalIf(logg, "failed to create subscription sweep", err)
		go func() {
			if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "embedded cron stopped unexpectedly", err)
			}
		}()
	}

	handler := routes.NewRouter(routes.Deps{
		Config: cfg,
		Logger: logg,
		Pingers: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Redis:              redisClient,
		Sessions:           sessionManager,
		Gatherer:           registry,
		HTTP:               httpMetrics,
		Auth:               authService,
		Users:              userService,
		Restaurants:        restaurantService,
		Groups:             groupService,
		Balances:           balanceService,
		Notifications:      notificationService,
		Subscriptions:      subscriptionService,
		StripeWebhook:      webhookService,
		StripeWebhookGuard: webhookGuard,
		StripeSecret:       cfg.Stripe.Secret,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logg.Info(logg.WithField(ctx, "addr", addr), "starting api server")
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func fatalIf(logg *logger.Logger, msg string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), msg, err)
	os.Exit(1)
}
