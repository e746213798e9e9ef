package notifications

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/fcm"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
	"github.com/angelmondragon/tablestars-backend/pkg/metrics"
)

const (
	defaultWorkers     = 4
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
)

// DispatcherParams configures the notification worker pool.
type DispatcherParams struct {
	Repo        Repository
	Sender      fcm.Sender
	Logger      *logger.Logger
	Metrics     *metrics.NotificationMetrics
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

type job struct {
	ctx context.Context
	msg Message
}

// Dispatcher stores and pushes notifications on a bounded pool of workers.
// Notify never blocks; when the queue is full the message is dropped.
type Dispatcher struct {
	repo    Repository
	sender  fcm.Sender
	logg    *logger.Logger
	metrics *metrics.NotificationMetrics
	timeout time.Duration

	jobs   chan job
	wg     sync.WaitGroup
	mu     sync.RWMutex
	closed bool
}

// NewDispatcher starts the workers. Call Stop to drain them.
func NewDispatcher(params DispatcherParams) (*Dispatcher, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	if params.Sender == nil {
		return nil, fmt.Errorf("push sender required")
	}
	if params.Logger == nil {
		params.Logger = logger.Nop()
	}
	if params.Workers <= 0 {
		params.Workers = defaultWorkers
	}
	if params.QueueSize <= 0 {
		params.QueueSize = defaultQueueSize
	}
	if params.SendTimeout <= 0 {
		params.SendTimeout = defaultSendTimeout
	}

	d := &Dispatcher{
		repo:    params.Repo,
		sender:  params.Sender,
		logg:    params.Logger,
		metrics: params.Metrics,
		timeout: params.SendTimeout,
		jobs:    make(chan job, params.QueueSize),
	}
	for i := 0; i < params.Workers; i++ {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				d.deliver(j.ctx, j.msg)
			}
		}()
	}
	return d, nil
}

// Notify queues msg. The request context is detached so delivery outlives the request.
func (d *Dispatcher) Notify(ctx context.Context, msg Message) {
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(ctx, msg, "dispatcher stopped")
		return
	}
	select {
	case d.jobs <- job{ctx: context.WithoutCancel(ctx), msg: msg}:
	default:
		d.drop(ctx, msg, "notification queue full")
	}
}

// Stop refuses new messages and waits for queued ones to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) drop(ctx context.Context, msg Message, reason string) {
	d.metrics.Inc(msg.Type.String(), "dropped")
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"notification_type": msg.Type,
		"target_user_id":    msg.UserID.String(),
	})
	d.logg.Warn(logCtx, reason)
}

func (d *Dispatcher) deliver(ctx context.Context, msg Message) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	kind := msg.Type.String()
	logCtx := d.logg.WithFields(ctx, map[string]any{
		"notification_type": msg.Type,
		"target_user_id":    msg.UserID.String(),
	})

	row := &models.Notification{
		UserID: msg.UserID,
		Type:   msg.Type,
		Title:  msg.Title,
		Body:   msg.Body,
	}
	if len(msg.Data) > 0 {
		row.Data = datatypes.JSONMap(msg.Data)
	}
	if err := d.repo.Create(ctx, row); err != nil {
		d.metrics.Inc(kind, "failed")
		d.logg.Error(logCtx, "store notification", err)
		return
	}
	d.metrics.Inc(kind, "stored")

	tokens, err := d.repo.ListDeviceTokens(ctx, msg.UserID)
	if err != nil {
		d.metrics.Inc(kind, "failed")
		d.logg.Error(logCtx, "list device tokens", err)
		return
	}

	data := fcm.StringData(msg.Data)
	data["notificationId"] = row.ID.String()
	data["type"] = kind
	for _, token := range tokens {
		err := d.sender.Send(ctx, fcm.Push{Token: token.Token, Title: msg.Title, Body: msg.Body, Data: data})
		switch {
		case err == nil:
			d.metrics.Inc(kind, "delivered")
		case errors.Is(err, fcm.ErrTokenUnregistered):
			d.metrics.Inc(kind, "unregistered")
			if delErr := d.repo.DeleteToken(ctx, token.Token); delErr != nil {
				d.logg.Error(logCtx, "delete unregistered device token", delErr)
			}
		default:
			d.metrics.Inc(kind, "failed")
			d.logg.Error(logCtx, "push notification", err)
		}
	}
}
