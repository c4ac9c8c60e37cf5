package models

import "time"

const (
	EventOrderCreated       = "order.created"
	EventOrderStatusChanged = "order.status_changed"
)

// OrderEvent is published after an order commits or changes status.
// Reporting and catalog consumers treat it as read-only input.
type OrderEvent struct {
	Type           string      `json:"type"`
	OrderID        string      `json:"order_id"`
	OrderNumber    string      `json:"order_number"`
	UserID         string      `json:"user_id"`
	Status         string      `json:"status"`
	PreviousStatus string      `json:"previous_status,omitempty"`
	TotalAmount    string      `json:"total_amount"`
	Currency       string      `json:"currency"`
	PaymentMethod  string      `json:"payment_method"`
	Items          []EventItem `json:"items,omitempty"`
	Timestamp      time.Time   `json:"timestamp"`
}

type EventItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
	Price     string `json:"price"`
}

// NewOrderEvent snapshots o for publishing.
func NewOrderEvent(eventType string, o *Order, currency string, now time.Time) OrderEvent {
	evt := OrderEvent{
		Type:          eventType,
		OrderID:       o.ID.String(),
		OrderNumber:   o.OrderNumber,
		UserID:        o.UserID.String(),
		Status:        string(o.Status),
		TotalAmount:   o.TotalAmount.StringFixed(2),
		Currency:      currency,
		PaymentMethod: string(o.PaymentMethod),
		Timestamp:     now.UTC(),
	}
	for _, it := range o.OrderItems {
		evt.Items = append(evt.Items, EventItem{
			ProductID: it.ProductID.String(),
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		})
	}
	return evt
}
