package subscriptions

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
	"github.com/angelmondragon/tablestars-backend/pkg/pagination"
)

type PlanDTO struct {
	ID            uuid.UUID       `json:"id"`
	Name          string          `json:"name"`
	Description   *string         `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      enums.Currency  `json:"currency"`
	DurationDays  int             `json:"durationDays"`
	StripePriceID *string         `json:"stripePriceId,omitempty"`
	Features      json.RawMessage `json:"features"`
	IsActive      bool            `json:"isActive"`
	CreatedAt     time.Time       `json:"createdAt"`
}

type CreatePlanInput struct {
	Name          string          `json:"name" validate:"required,max=120"`
	Description   *string         `json:"description,omitempty"`
	Price         decimal.Decimal `json:"price"`
	Currency      enums.Currency  `json:"currency"`
	DurationDays  int             `json:"durationDays" validate:"required,min=1,max=3660"`
	StripePriceID *string         `json:"stripePriceId,omitempty"`
	Features      []string        `json:"features,omitempty"`
}

// UpdatePlanInput carries a partial plan update; nil fields are left alone.
type UpdatePlanInput struct {
	Name          *string          `json:"name,omitempty"`
	Description   *string          `json:"description,omitempty"`
	Price         *decimal.Decimal `json:"price,omitempty"`
	Currency      *enums.Currency  `json:"currency,omitempty"`
	DurationDays  *int             `json:"durationDays,omitempty"`
	StripePriceID *string          `json:"stripePriceId,omitempty"`
	Features      []string         `json:"features,omitempty"`
	IsActive      *bool            `json:"isActive,omitempty"`
}

type SubscriptionDTO struct {
	ID                   uuid.UUID                `json:"id"`
	RestaurantID         uuid.UUID                `json:"restaurantId"`
	PlanID               uuid.UUID                `json:"planId"`
	Status               enums.SubscriptionStatus `json:"status"`
	StartDate            *time.Time               `json:"startDate,omitempty"`
	EndDate              *time.Time               `json:"endDate,omitempty"`
	StripeSubscriptionID *string                  `json:"stripeSubscriptionId,omitempty"`
	CancelledAt          *time.Time               `json:"cancelledAt,omitempty"`
	CreatedAt            time.Time                `json:"createdAt"`
}

type GrantInput struct {
	RestaurantID uuid.UUID `json:"restaurantId"`
	PlanID       uuid.UUID `json:"planId"`
}

type CheckoutInput struct {
	PlanID uuid.UUID `json:"planId"`
}

type CheckoutResultDTO struct {
	SubscriptionID uuid.UUID `json:"subscriptionId"`
	CheckoutURL    string    `json:"checkoutUrl"`
}

// ListFilter narrows the admin subscription listing.
type ListFilter struct {
	Status       enums.SubscriptionStatus
	RestaurantID *uuid.UUID
	pagination.Params
}

func planFromModel(p *models.Plan) PlanDTO {
	features := json.RawMessage(p.Features)
	if len(features) == 0 {
		features = json.RawMessage("[]")
	}
	return PlanDTO{
		ID:            p.ID,
		Name:          p.Name,
		Description:   p.Description,
		Price:         p.Price,
		Currency:      p.Currency,
		DurationDays:  p.DurationDays,
		StripePriceID: p.StripePriceID,
		Features:      features,
		IsActive:      p.IsActive,
		CreatedAt:     p.CreatedAt,
	}
}

func subscriptionFromModel(s *models.Subscription) SubscriptionDTO {
	return SubscriptionDTO{
		ID:                   s.ID,
		RestaurantID:         s.RestaurantID,
		PlanID:               s.PlanID,
		Status:               s.Status,
		StartDate:            s.StartDate,
		EndDate:              s.EndDate,
		StripeSubscriptionID: s.StripeSubscriptionID,
		CancelledAt:          s.CancelledAt,
		CreatedAt:            s.CreatedAt,
	}
}
