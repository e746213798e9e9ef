package cron

import (
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/db"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
)

// SweepLockName is the redis lock every sweep runner in env contends for.
func SweepLockName(env string) string {
	if env == "" {
		env = "local"
	}
	return "cron:subscriptions:" + env
}

// SweepParams wire the hourly subscription sweep shared by the API and the cron worker.
type SweepParams struct {
	DB      *db.Client
	Lock    Lock
	Logger  *logger.Logger
	Metrics *metrics.CronJobMetrics
	Config  config.CronConfig
	Now     func() time.Time
}

func NewSubscriptionSweep(params SweepParams) (*Service, error) {
	if params.DB == nil {
		return nil, errors.New("database client required")
	}
	loc := time.UTC
	if tz := params.Config.Timezone; tz != "" {
		loaded, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load cron timezone %q: %w", tz, err)
		}
		loc = loaded
	}

	job, err := NewSubscriptionExpiryJob(SubscriptionExpiryJobParams{
		DB:     params.DB,
		Logger: params.Logger,
		Now:    params.Now,
	})
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Logger:   params.Logger,
		Registry: NewRegistry(job),
		Lock:     params.Lock,
		Metrics:  params.Metrics,
		Schedule: params.Config.Schedule,
		Location: loc,
	})
}
