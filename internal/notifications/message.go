package notifications

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// Message is one user-facing notification, stored in the inbox and pushed to devices.
type Message struct {
	UserID uuid.UUID
	Type   enums.NotificationType
	Title  string
	Body   string
	Data   map[string]any
}

// Notifier accepts messages for delivery. Implementations never report failures to the caller.
type Notifier interface {
	Notify(ctx context.Context, msg Message)
}

// NopNotifier discards every message.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, Message) {}
