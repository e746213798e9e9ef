package balances

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tablestars-backend/pkg/db/models"
	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// BalanceDTO is one customer's holdings at one restaurant.
type BalanceDTO struct {
	RestaurantID   uuid.UUID       `json:"restaurantId"`
	RestaurantName string          `json:"restaurantName"`
	Balance        decimal.Decimal `json:"balance"`
	StarsMeal      int64           `json:"starsMeal"`
	StarsDrink     int64           `json:"starsDrink"`
	UpdatedAt      *time.Time      `json:"updatedAt,omitempty"`
}

// ScanInput is a QR scan with the device location.
type ScanInput struct {
	QRCode    string   `json:"qrCode" validate:"required,max=128"`
	Latitude  *float64 `json:"latitude" validate:"required"`
	Longitude *float64 `json:"longitude" validate:"required"`
}

// PayInput debits the caller at a restaurant or across a group.
type PayInput struct {
	TargetID     uuid.UUID          `json:"targetId"`
	CurrencyType enums.CurrencyType `json:"currencyType" validate:"required,currency"`
	Amount       decimal.Decimal    `json:"amount" validate:"gt=0"`
}

// GiftInput moves currency from the caller to the holder of QRCode.
type GiftInput struct {
	QRCode       string             `json:"qrCode" validate:"required,max=128"`
	TargetID     uuid.UUID          `json:"targetId"`
	CurrencyType enums.CurrencyType `json:"currencyType" validate:"required,currency"`
	Amount       decimal.Decimal    `json:"amount" validate:"gt=0"`
}

// TopUpInput credits a package to the customer holding UserQR.
type TopUpInput struct {
	UserQR    string    `json:"userQr" validate:"required,max=128"`
	PackageID uuid.UUID `json:"packageId"`
}

// LegDTO is the part of a pooled operation applied at one restaurant.
type LegDTO struct {
	RestaurantID uuid.UUID       `json:"restaurantId"`
	Amount       decimal.Decimal `json:"amount"`
}

// PaymentResultDTO summarizes a successful debit.
type PaymentResultDTO struct {
	TargetID     uuid.UUID          `json:"targetId"`
	GroupID      *uuid.UUID         `json:"groupId,omitempty"`
	CurrencyType enums.CurrencyType `json:"currencyType"`
	Amount       decimal.Decimal    `json:"amount"`
	Legs         []LegDTO           `json:"legs"`
	Balances     []BalanceDTO       `json:"balances"`
}

// GiftResultDTO summarizes a successful transfer from the sender's side.
type GiftResultDTO struct {
	RecipientID  uuid.UUID          `json:"recipientId"`
	TargetID     uuid.UUID          `json:"targetId"`
	GroupID      *uuid.UUID         `json:"groupId,omitempty"`
	CurrencyType enums.CurrencyType `json:"currencyType"`
	Amount       decimal.Decimal    `json:"amount"`
	Legs         []LegDTO           `json:"legs"`
	Balances     []BalanceDTO       `json:"balances"`
}

// TopUpResultDTO is returned to the restaurant after crediting a customer.
type TopUpResultDTO struct {
	UserID  uuid.UUID       `json:"userId"`
	Amount  decimal.Decimal `json:"amount"`
	Bonus   decimal.Decimal `json:"bonus"`
	Total   decimal.Decimal `json:"total"`
	Balance BalanceDTO      `json:"balance"`
}

// History entry kinds.
const (
	HistoryScan         = "scan"
	HistoryPurchase     = "purchase"
	HistoryGiftSent     = "gift_sent"
	HistoryGiftReceived = "gift_received"
	HistoryTopUp        = "top_up"
)

// HistoryEntryDTO is one audit row seen from the caller's side.
type HistoryEntryDTO struct {
	ID             uuid.UUID          `json:"id"`
	Kind           string             `json:"kind"`
	RestaurantID   uuid.UUID          `json:"restaurantId"`
	GroupID        *uuid.UUID         `json:"groupId,omitempty"`
	CurrencyType   enums.CurrencyType `json:"currencyType"`
	Amount         decimal.Decimal    `json:"amount"`
	CounterpartyID *uuid.UUID         `json:"counterpartyId,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
}

func toDTO(row *models.UserRestaurantBalance, restaurantName string) BalanceDTO {
	updated := row.UpdatedAt
	return BalanceDTO{
		RestaurantID:   row.RestaurantID,
		RestaurantName: restaurantName,
		Balance:        row.Balance,
		StarsMeal:      row.StarsMeal,
		StarsDrink:     row.StarsDrink,
		UpdatedAt:      &updated,
	}
}

func emptyDTO(restaurantID uuid.UUID, restaurantName string) BalanceDTO {
	return BalanceDTO{
		RestaurantID:   restaurantID,
		RestaurantName: restaurantName,
		Balance:        decimal.Zero,
	}
}
