package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tablestars-backend/pkg/errors"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

// Service defines inbox and device registration operations.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	RegisterDevice(ctx context.Context, userID uuid.UUID, input RegisterDeviceInput) (*DeviceDTO, error)
	RemoveDevice(ctx context.Context, userID uuid.UUID, token string) error
}

type service struct {
	repo Repository
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items      []NotificationDTO `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

// NotificationDTO is an inbox entry.
type NotificationDTO struct {
	ID        uuid.UUID              `json:"id"`
	Type      enums.NotificationType `json:"type"`
	Title     string                 `json:"title"`
	Body      string                 `json:"body"`
	Data      map[string]any         `json:"data,omitempty"`
	ReadAt    *time.Time             `json:"readAt,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// RegisterDeviceInput is an FCM token registration.
type RegisterDeviceInput struct {
	Token    string               `json:"token" validate:"required,max=4096"`
	Platform enums.DevicePlatform `json:"platform" validate:"required,oneof=ios android web"`
}

// DeviceDTO echoes a stored registration.
type DeviceDTO struct {
	ID        uuid.UUID            `json:"id"`
	Platform  enums.DevicePlatform `json:"platform"`
	CreatedAt time.Time            `json:"createdAt"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	result := &ListResult{Items: make([]NotificationDTO, 0, len(rows))}
	for _, row := range rows {
		result.Items = append(result.Items, toDTO(row))
	}
	if next != nil {
		result.NextCursor = pagination.EncodeCursor(*next)
	}
	return result, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, time.Now().UTC())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

func (s *service) RegisterDevice(ctx context.Context, userID uuid.UUID, input RegisterDeviceInput) (*DeviceDTO, error) {
	token := strings.TrimSpace(input.Token)
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "token is required")
	}
	if !input.Platform.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform must be ios, android or web")
	}
	row, err := s.repo.UpsertDeviceToken(ctx, userID, token, input.Platform)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "register device")
	}
	return &DeviceDTO{ID: row.ID, Platform: row.Platform, CreatedAt: row.CreatedAt}, nil
}

func (s *service) RemoveDevice(ctx context.Context, userID uuid.UUID, token string) error {
	removed, err := s.repo.DeleteDeviceToken(ctx, userID, strings.TrimSpace(token))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove device")
	}
	if !removed {
		return pkgerrors.New(pkgerrors.CodeNotFound, "device not found")
	}
	return nil
}

func toDTO(row models.Notification) NotificationDTO {
	dto := NotificationDTO{
		ID:        row.ID,
		Type:      row.Type,
		Title:     row.Title,
		Body:      row.Body,
		ReadAt:    row.ReadAt,
		CreatedAt: row.CreatedAt,
	}
	if len(row.Data) > 0 {
		dto.Data = map[string]any(row.Data)
	}
	return dto
}
