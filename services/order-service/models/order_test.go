package models_test

import (
	"regexp"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

func TestOrderStatus_Transitions(t *testing.T) {
	all := []models.OrderStatus{
		models.OrderStatusPending, models.OrderStatusConfirmed, models.OrderStatusShipped,
		models.OrderStatusDelivered, models.OrderStatusCancelled,
	}
	allowed := map[[2]models.OrderStatus]bool{
		{models.OrderStatusPending, models.OrderStatusConfirmed}:  true,
		{models.OrderStatusPending, models.OrderStatusCancelled}:  true,
		{models.OrderStatusConfirmed, models.OrderStatusShipped}:  true,
		{models.OrderStatusShipped, models.OrderStatusDelivered}: true,
	}

	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]models.OrderStatus{from, to}]
			assert.Equal(t, want, from.CanTransitionTo(to), "%s -> %s", from, to)
		}
	}
}

func TestOrderStatus_Valid(t *testing.T) {
	assert.True(t, models.OrderStatusShipped.Valid())
	assert.False(t, models.OrderStatus("refunded").Valid())
}

func TestDirectPaymentMethod(t *testing.T) {
	assert.True(t, models.DirectPaymentMethod(models.PaymentMethodCash))
	assert.True(t, models.DirectPaymentMethod(models.PaymentMethodNetbanking))
	assert.False(t, models.DirectPaymentMethod(models.PaymentMethodRazorpay))
	assert.False(t, models.DirectPaymentMethod("bitcoin"))
}

func TestNewOrderNumber(t *testing.T) {
	n := models.NewOrderNumber()
	assert.Regexp(t, regexp.MustCompile(`^ORD-[0-9A-F]{12}$`), n)
	assert.NotEqual(t, n, models.NewOrderNumber())
}

func TestOrder_ValidateInvariants(t *testing.T) {
	o := &models.Order{
		OrderNumber: "ORD-000000000001",
		TotalAmount: decimal.RequireFromString("70.50"),
		OrderItems: []models.OrderItem{
			{ProductID: uuid.New(), Quantity: 2, Price: decimal.RequireFromString("10.25")},
			{ProductID: uuid.New(), Quantity: 1, Price: decimal.RequireFromString("50.00")},
		},
	}
	assert.NoError(t, o.ValidateInvariants())
	assert.Equal(t, "20.50", o.OrderItems[0].TotalPrice().StringFixed(2))

	o.TotalAmount = decimal.RequireFromString("70.49")
	assert.Error(t, o.ValidateInvariants())

	assert.Error(t, (&models.Order{}).ValidateInvariants())
}

func TestCartTotal_SkipsMissingSnapshot(t *testing.T) {
	lines := []models.CartItem{
		{Quantity: 3, Product: &models.Product{Price: decimal.RequireFromString("0.10")}},
		{Quantity: 2},
	}
	assert.Equal(t, "0.30", models.CartTotal(lines).StringFixed(2))
}

func TestNewOrderEvent(t *testing.T) {
	o := &models.Order{
		ID:            uuid.New(),
		OrderNumber:   "ORD-ABCDEF012345",
		UserID:        uuid.New(),
		Status:        models.OrderStatusPending,
		PaymentMethod: models.PaymentMethodUPI,
		TotalAmount:   decimal.RequireFromString("20"),
		OrderItems:    []models.OrderItem{{ProductID: uuid.New(), Quantity: 2, Price: decimal.RequireFromString("10")}},
	}
	evt := models.NewOrderEvent(models.EventOrderCreated, o, "INR", time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))

	assert.Equal(t, "20.00", evt.TotalAmount)
	assert.Equal(t, "10.00", evt.Items[0].Price)
	assert.Equal(t, "upi", evt.PaymentMethod)
	assert.Equal(t, models.EventOrderCreated, evt.Type)
}
