package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/tablestars-backend/internal/subscriptions"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
)

const subscriptionExpiryJobName = "subscription-expiry"

type SubscriptionExpiryJobParams struct {
	DB     *db.Client
	Logger *logger.Logger
	Now    func() time.Time
}

// SubscriptionExpiryJob expires ended subscriptions and resyncs every
// restaurant's visibility flags.
type SubscriptionExpiryJob struct {
	db   *db.Client
	logg *logger.Logger
	now  func() time.Time
}

func NewSubscriptionExpiryJob(params SubscriptionExpiryJobParams) (*SubscriptionExpiryJob, error) {
	if params.DB == nil {
		return nil, errors.New("database client required")
	}
	job := &SubscriptionExpiryJob{db: params.DB, logg: params.Logger, now: params.Now}
	if job.logg == nil {
		job.logg = logger.Nop()
	}
	if job.now == nil {
		job.now = func() time.Time { return time.Now().UTC() }
	}
	return job, nil
}

func (j *SubscriptionExpiryJob) Name() string { return subscriptionExpiryJobName }

func (j *SubscriptionExpiryJob) Run(ctx context.Context) error {
	now := j.now()
	conn := j.db.DB().WithContext(ctx)
	repo := subscriptions.NewRepository(conn)

	expired, err := repo.ExpireEnded(ctx, now)
	if err != nil {
		return fmt.Errorf("expire ended subscriptions: %w", err)
	}

	ids, err := repo.RestaurantIDs(ctx)
	if err != nil {
		return fmt.Errorf("list restaurants: %w", err)
	}

	var errs error
	active := 0
	for _, id := range ids {
		ok, err := subscriptions.RecomputeRestaurantFlags(ctx, conn, id, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("restaurant %s: %w", id, err))
			continue
		}
		if ok {
			active++
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired":            expired,
		"restaurants":        len(ids),
		"active_restaurants": active,
		"failures":           len(multierr.Errors(errs)),
	}), "subscription sweep finished")
	return errs
}
