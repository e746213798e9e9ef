package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/tablestars-backend/pkg/enums"
)

// ScanLog records every accepted QR scan.
type ScanLog struct {
	ID             uuid.UUID    `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID         uuid.UUID    `gorm:"column:user_id;type:uuid;not null;index"`
	RestaurantID   uuid.UUID    `gorm:"column:restaurant_id;type:uuid;not null"`
	QRType         enums.QRType `gorm:"column:qr_type;type:qr_type;not null"`
	Latitude       float64      `gorm:"column:latitude;not null"`
	Longitude      float64      `gorm:"column:longitude;not null"`
	DistanceMeters float64      `gorm:"column:distance_meters;not null"`
	StarsAwarded   int64        `gorm:"column:stars_awarded;not null"`
	CreatedAt      time.Time    `gorm:"column:created_at;autoCreateTime"`
}

func (s *ScanLog) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// StarsTransaction is the star-ledger entry written next to a ScanLog.
type StarsTransaction struct {
	ID           uuid.UUID                  `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID                  `gorm:"column:user_id;type:uuid;not null;index"`
	RestaurantID uuid.UUID                  `gorm:"column:restaurant_id;type:uuid;not null"`
	StarType     enums.CurrencyType         `gorm:"column:star_type;type:currency_type;not null"`
	Amount       int64                      `gorm:"column:amount;not null"`
	Kind         enums.StarsTransactionKind `gorm:"column:kind;type:stars_transaction_kind;not null"`
	CreatedAt    time.Time                  `gorm:"column:created_at;autoCreateTime"`
}

func (s *StarsTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}

// Purchase records a debit against one restaurant balance row.
type Purchase struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID          `gorm:"column:user_id;type:uuid;not null;index"`
	RestaurantID uuid.UUID          `gorm:"column:restaurant_id;type:uuid;not null"`
	GroupID      *uuid.UUID         `gorm:"column:group_id;type:uuid"`
	CurrencyType enums.CurrencyType `gorm:"column:currency_type;type:currency_type;not null"`
	Amount       decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (p *Purchase) BeforeCreate(*gorm.DB) error {
	ensureID(&p.ID)
	return nil
}

// TopUp records a restaurant crediting a customer's cash balance.
type TopUp struct {
	ID           uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	UserID       uuid.UUID       `gorm:"column:user_id;type:uuid;not null;index"`
	RestaurantID uuid.UUID       `gorm:"column:restaurant_id;type:uuid;not null"`
	PackageID    uuid.UUID       `gorm:"column:package_id;type:uuid;not null"`
	Amount       decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null"`
	Bonus        decimal.Decimal `gorm:"column:bonus;type:numeric(12,2);not null"`
	Total        decimal.Decimal `gorm:"column:total;type:numeric(12,2);not null"`
	CreatedAt    time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (t *TopUp) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}

// Gift records one sender-to-recipient transfer leg at a single restaurant.
type Gift struct {
	ID           uuid.UUID          `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	SenderID     uuid.UUID          `gorm:"column:sender_id;type:uuid;not null;index"`
	RecipientID  uuid.UUID          `gorm:"column:recipient_id;type:uuid;not null;index"`
	RestaurantID uuid.UUID          `gorm:"column:restaurant_id;type:uuid;not null"`
	GroupID      *uuid.UUID         `gorm:"column:group_id;type:uuid"`
	CurrencyType enums.CurrencyType `gorm:"column:currency_type;type:currency_type;not null"`
	Amount       decimal.Decimal    `gorm:"column:amount;type:numeric(12,2);not null"`
	CreatedAt    time.Time          `gorm:"column:created_at;autoCreateTime"`
}

func (g *Gift) BeforeCreate(*gorm.DB) error {
	ensureID(&g.ID)
	return nil
}
