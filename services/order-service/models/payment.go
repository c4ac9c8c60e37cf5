package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	PaymentProviderRazorpay = "razorpay"
	PaymentStatusCaptured   = "captured"
	PaymentMethodUnknown    = "unknown"
)

// OrderPayment is the audit record of a gateway settlement. At most one per
// order; the provider payment id is unique so a payment can settle only once.
type OrderPayment struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID           uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex"`
	Provider          string          `gorm:"type:varchar(20);not null;default:'razorpay'"`
	Amount            decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	Currency          string          `gorm:"type:varchar(10);not null"`
	Status            string          `gorm:"type:varchar(50);not null"`
	Method            string          `gorm:"type:varchar(50)"`
	RawPayload        *string         `gorm:"type:jsonb"`
	ProviderOrderID   string          `gorm:"type:varchar(100);index"`
	ProviderPaymentID *string         `gorm:"type:varchar(100);uniqueIndex"`
	ProviderSignature string          `gorm:"type:varchar(255)"`
	CreatedAt         time.Time       `gorm:"autoCreateTime"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
}
