package fcm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"github.com/angelmondragon/tablestars-backend/pkg/config"
	"github.com/angelmondragon/tablestars-backend/pkg/logger"
)

// ErrTokenUnregistered is returned when FCM reports the device token as gone.
var ErrTokenUnregistered = errors.New("fcm token unregistered")

// Push is one device-addressed notification.
type Push struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

// Sender delivers a push to a single device token.
type Sender interface {
	Send(ctx context.Context, push Push) error
}

type messagingClient interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// Client sends through Firebase Cloud Messaging.
type Client struct {
	messaging messagingClient
}

// New builds the FCM sender. When FCM is disabled it returns a NopSender that only logs.
func New(ctx context.Context, cfg config.FCMConfig, logg *logger.Logger) (Sender, error) {
	if !cfg.Enabled {
		return NopSender{logg: logg}, nil
	}

	var opts []option.ClientOption
	switch {
	case strings.TrimSpace(cfg.CredentialsJSON) != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	case strings.TrimSpace(cfg.CredentialsFile) != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}

	var fbCfg *firebase.Config
	if cfg.ProjectID != "" {
		fbCfg = &firebase.Config{ProjectID: cfg.ProjectID}
	}

	app, err := firebase.NewApp(ctx, fbCfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init firebase messaging: %w", err)
	}
	return &Client{messaging: client}, nil
}

func (c *Client) Send(ctx context.Context, push Push) error {
	if strings.TrimSpace(push.Token) == "" {
		return fmt.Errorf("device token is required")
	}
	_, err := c.messaging.Send(ctx, buildMessage(push))
	if err != nil {
		if messaging.IsUnregistered(err) {
			return ErrTokenUnregistered
		}
		return fmt.Errorf("fcm send: %w", err)
	}
	return nil
}

func buildMessage(push Push) *messaging.Message {
	return &messaging.Message{
		Token: push.Token,
		Notification: &messaging.Notification{
			Title: push.Title,
			Body:  push.Body,
		},
		Data: push.Data,
		Android: &messaging.AndroidConfig{
			Priority:     "high",
			Notification: &messaging.AndroidNotification{Sound: "default"},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{Sound: "default"},
			},
		},
	}
}

// NopSender is used when FCM is not configured.
type NopSender struct {
	logg *logger.Logger
}

func (n NopSender) Send(ctx context.Context, push Push) error {
	if n.logg != nil {
		n.logg.Debug(n.logg.WithField(ctx, "title", push.Title), "fcm.disabled.skip")
	}
	return nil
}

// StringData flattens arbitrary values into the string map FCM requires.
func StringData(data map[string]any) map[string]string {
	out := make(map[string]string, len(data))
	for k, v := range data {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			out[k] = val
		case int:
			out[k] = strconv.Itoa(val)
		case int64:
			out[k] = strconv.FormatInt(val, 10)
		case bool:
			out[k] = strconv.FormatBool(val)
		case fmt.Stringer:
			out[k] = val.String()
		default:
			b, err := json.Marshal(val)
			if err != nil {
				continue
			}
			out[k] = string(b)
		}
	}
	return out
}
