package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusShipped   OrderStatus = "shipped"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed: {OrderStatusShipped},
	OrderStatusShipped:   {OrderStatusDelivered},
}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the lifecycle allows s → next.
// delivered and cancelled are terminal.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range orderTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodUPI        PaymentMethod = "upi"
	PaymentMethodCard       PaymentMethod = "card"
	PaymentMethodNetbanking PaymentMethod = "netbanking"
	// PaymentMethodRazorpay is set only by the gateway checkout path.
	PaymentMethodRazorpay PaymentMethod = "razorpay"
)

// DirectPaymentMethod reports whether m may be chosen for direct checkout.
func DirectPaymentMethod(m PaymentMethod) bool {
	switch m {
	case PaymentMethodCash, PaymentMethodUPI, PaymentMethodCard, PaymentMethodNetbanking:
		return true
	}
	return false
}

type Order struct {
	ID                uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderNumber       string          `gorm:"type:varchar(32);uniqueIndex;not null"`
	UserID            uuid.UUID       `gorm:"type:uuid;not null;index"`
	Status            OrderStatus     `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentMethod     PaymentMethod   `gorm:"type:varchar(20);not null"`
	ShippingAddressID *uuid.UUID      `gorm:"type:uuid"`
	TotalAmount       decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt         time.Time       `gorm:"autoCreateTime;index"`
	UpdatedAt         time.Time       `gorm:"autoUpdateTime"`
	OrderItems        []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:RESTRICT"`
	Payment           *OrderPayment   `gorm:"foreignKey:OrderID"`
	ShippingAddress   *Address        `gorm:"foreignKey:ShippingAddressID;references:ID"`
}

type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;default:gen_random_uuid();primaryKey"`
	OrderID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null;index"`
	Quantity  int             `gorm:"not null;check:quantity >= 1"`
	Price     decimal.Decimal `gorm:"type:numeric(10,2);not null"`
	CreatedAt time.Time       `gorm:"autoCreateTime"`
	Product   *Product        `gorm:"foreignKey:ProductID;references:ID"`
}

// TotalPrice is derived, never stored.
func (i OrderItem) TotalPrice() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// NewOrderNumber returns ORD- followed by 12 upper-case hex characters.
func NewOrderNumber() string {
	hex := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("ORD-%s", strings.ToUpper(hex[:12]))
}

// ItemsTotal recomputes Σ quantity × price over the order lines.
func (o *Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, it := range o.OrderItems {
		total = total.Add(it.TotalPrice())
	}
	return total
}

// ValidateInvariants checks the header against its lines.
func (o *Order) ValidateInvariants() error {
	if len(o.OrderItems) == 0 {
		return fmt.Errorf("order %s has no lines", o.OrderNumber)
	}
	for _, it := range o.OrderItems {
		if it.Quantity < 1 {
			return fmt.Errorf("order %s line %s has quantity %d", o.OrderNumber, it.ProductID, it.Quantity)
		}
	}
	if !o.ItemsTotal().Equal(o.TotalAmount) {
		return fmt.Errorf("order %s total %s does not match lines %s", o.OrderNumber, o.TotalAmount.StringFixed(2), o.ItemsTotal().StringFixed(2))
	}
	return nil
}
