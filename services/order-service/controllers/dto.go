package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

// Wire representations. Entities never go over the wire directly; every
// response is built by one of the mapping functions below.

type AddToCartRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type CartLineRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type ReplaceCartRequest struct {
	Items []CartLineRequest `json:"items" binding:"dive"`
}

type UpdateCartItemRequest struct {
	Quantity int `json:"quantity"`
}

type DirectCheckoutRequest struct {
	ShippingAddressID string `json:"shipping_address_id" binding:"required"`
	PaymentMethod     string `json:"payment_method" binding:"required"`
}

// VerifyPaymentRequest keeps the gateway's callback field names.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id" binding:"required"`
	RazorpayPaymentID string `json:"razorpay_payment_id" binding:"required"`
	RazorpaySignature string `json:"razorpay_signature" binding:"required"`
	ShippingAddressID string `json:"shipping_address_id" binding:"required"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

type ProductSummary struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	Price      string `json:"price"`
	ImageURL   string `json:"image_url,omitempty"`
	StockCount int    `json:"stock_count"`
}

type CartItemResponse struct {
	ID        string          `json:"id"`
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	Subtotal  string          `json:"subtotal"`
	Product   *ProductSummary `json:"product,omitempty"`
}

type CartResponse struct {
	Items     []CartItemResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Total     string             `json:"total"`
}

type ReplaceCartResponse struct {
	Cart    CartResponse `json:"cart"`
	Skipped []string     `json:"skipped"`
}

type AddressResponse struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

type OrderItemResponse struct {
	ID          string `json:"id"`
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
	Quantity    int    `json:"quantity"`
	Price       string `json:"price"`
	TotalPrice  string `json:"total_price"`
}

// PaymentSummary is the customer's view of the settlement record.
type PaymentSummary struct {
	Provider          string    `json:"provider"`
	Amount            string    `json:"amount"`
	Currency          string    `json:"currency"`
	Status            string    `json:"status"`
	Method            string    `json:"method"`
	ProviderOrderID   string    `json:"provider_order_id"`
	ProviderPaymentID string    `json:"provider_payment_id,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// AdminPaymentView adds the audit fields only admins may see.
type AdminPaymentView struct {
	PaymentSummary
	ProviderSignature string          `json:"provider_signature"`
	RawPayload        json.RawMessage `json:"raw_payload,omitempty"`
}

type OrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress *AddressResponse    `json:"shipping_address,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	Payment         *PaymentSummary     `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type AdminOrderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	UserID          string              `json:"user_id"`
	Status          string              `json:"status"`
	PaymentMethod   string              `json:"payment_method"`
	TotalAmount     string              `json:"total_amount"`
	ShippingAddress *AddressResponse    `json:"shipping_address,omitempty"`
	Items           []OrderItemResponse `json:"items"`
	Payment         *AdminPaymentView   `json:"payment,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type MetaResponse struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Meta   MetaResponse    `json:"meta"`
}

type AdminOrderListResponse struct {
	Orders []AdminOrderResponse `json:"orders"`
	Meta   MetaResponse         `json:"meta"`
}

type PaymentIntentResponse struct {
	OrderID  string `json:"order_id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	KeyID    string `json:"key_id"`
	Receipt  string `json:"receipt"`
}

type StatsResponse struct {
	TotalOrders  int64            `json:"total_orders"`
	TotalRevenue string           `json:"total_revenue"`
	ByStatus     map[string]int64 `json:"by_status"`
}

type PurgeStepResponse struct {
	Step string `json:"step"`
	Rows int64  `json:"rows"`
}

type PurgeResponse struct {
	UserID string              `json:"user_id"`
	Steps  []PurgeStepResponse `json:"steps"`
}

func toProductSummary(p *models.Product) *ProductSummary {
	if p == nil {
		return nil
	}
	return &ProductSummary{
		ID:         p.ID.String(),
		Name:       p.Name,
		Price:      p.Price.StringFixed(2),
		ImageURL:   p.ImageURL,
		StockCount: p.StockCount,
	}
}

func toCartItemResponse(item models.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:        item.ID.String(),
		ProductID: item.ProductID.String(),
		Quantity:  item.Quantity,
		Subtotal:  item.Subtotal().StringFixed(2),
		Product:   toProductSummary(item.Product),
	}
}

func toCartResponse(items []models.CartItem) CartResponse {
	resp := CartResponse{
		Items: make([]CartItemResponse, 0, len(items)),
		Total: models.CartTotal(items).StringFixed(2),
	}
	for _, it := range items {
		resp.Items = append(resp.Items, toCartItemResponse(it))
		resp.ItemCount += it.Quantity
	}
	return resp
}

func toAddressResponse(a *models.Address) *AddressResponse {
	if a == nil {
		return nil
	}
	return &AddressResponse{
		ID:         a.ID.String(),
		FullName:   a.FullName,
		Line1:      a.Line1,
		Line2:      a.Line2,
		City:       a.City,
		State:      a.State,
		PostalCode: a.PostalCode,
		Country:    a.Country,
		Phone:      a.Phone,
	}
}

func toOrderItems(items []models.OrderItem) []OrderItemResponse {
	out := make([]OrderItemResponse, 0, len(items))
	for _, it := range items {
		r := OrderItemResponse{
			ID:         it.ID.String(),
			ProductID:  it.ProductID.String(),
			Quantity:   it.Quantity,
			Price:      it.Price.StringFixed(2),
			TotalPrice: it.TotalPrice().StringFixed(2),
		}
		if it.Product != nil {
			r.ProductName = it.Product.Name
			r.ImageURL = it.Product.ImageURL
		}
		out = append(out, r)
	}
	return out
}

func toPaymentSummary(p *models.OrderPayment) *PaymentSummary {
	if p == nil {
		return nil
	}
	s := &PaymentSummary{
		Provider:        p.Provider,
		Amount:          p.Amount.StringFixed(2),
		Currency:        p.Currency,
		Status:          p.Status,
		Method:          p.Method,
		ProviderOrderID: p.ProviderOrderID,
		CreatedAt:       p.CreatedAt,
	}
	if p.ProviderPaymentID != nil {
		s.ProviderPaymentID = *p.ProviderPaymentID
	}
	return s
}

func toAdminPaymentView(p *models.OrderPayment) *AdminPaymentView {
	summary := toPaymentSummary(p)
	if summary == nil {
		return nil
	}
	v := &AdminPaymentView{PaymentSummary: *summary, ProviderSignature: p.ProviderSignature}
	if p.RawPayload != nil && json.Valid([]byte(*p.RawPayload)) {
		v.RawPayload = json.RawMessage(*p.RawPayload)
	}
	return v
}

func toOrderResponse(o *models.Order) OrderResponse {
	return OrderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: toAddressResponse(o.ShippingAddress),
		Items:           toOrderItems(o.OrderItems),
		Payment:         toPaymentSummary(o.Payment),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toAdminOrderResponse(o *models.Order) AdminOrderResponse {
	return AdminOrderResponse{
		ID:              o.ID.String(),
		OrderNumber:     o.OrderNumber,
		UserID:          o.UserID.String(),
		Status:          string(o.Status),
		PaymentMethod:   string(o.PaymentMethod),
		TotalAmount:     o.TotalAmount.StringFixed(2),
		ShippingAddress: toAddressResponse(o.ShippingAddress),
		Items:           toOrderItems(o.OrderItems),
		Payment:         toAdminPaymentView(o.Payment),
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toMetaResponse(m services.MetaData) MetaResponse {
	return MetaResponse{
		Page:        m.Page,
		Limit:       m.Limit,
		TotalOrders: m.TotalOrders,
		TotalPages:  m.TotalPages,
		HasMore:     m.HasMore,
	}
}

func toOrderListResponse(p *services.OrderPage) OrderListResponse {
	resp := OrderListResponse{Orders: make([]OrderResponse, 0, len(p.Orders)), Meta: toMetaResponse(p.Meta)}
	for i := range p.Orders {
		resp.Orders = append(resp.Orders, toOrderResponse(&p.Orders[i]))
	}
	return resp
}

func toAdminOrderListResponse(p *services.OrderPage) AdminOrderListResponse {
	resp := AdminOrderListResponse{Orders: make([]AdminOrderResponse, 0, len(p.Orders)), Meta: toMetaResponse(p.Meta)}
	for i := range p.Orders {
		resp.Orders = append(resp.Orders, toAdminOrderResponse(&p.Orders[i]))
	}
	return resp
}

func toPaymentIntentResponse(i *services.PaymentIntent) PaymentIntentResponse {
	return PaymentIntentResponse{
		OrderID:  i.ProviderOrderID,
		Amount:   i.AmountMinor,
		Currency: i.Currency,
		KeyID:    i.KeyID,
		Receipt:  i.Receipt,
	}
}

func toStatsResponse(s *repository.OrderStats) StatsResponse {
	resp := StatsResponse{
		TotalOrders:  s.TotalOrders,
		TotalRevenue: s.TotalRevenue.StringFixed(2),
		ByStatus:     make(map[string]int64, len(s.ByStatus)),
	}
	for status, n := range s.ByStatus {
		resp.ByStatus[string(status)] = n
	}
	return resp
}

func toPurgeResponse(r *services.PurgeReport) PurgeResponse {
	resp := PurgeResponse{UserID: r.UserID.String(), Steps: make([]PurgeStepResponse, 0, len(r.Steps))}
	for _, s := range r.Steps {
		resp.Steps = append(resp.Steps, PurgeStepResponse{Step: s.Step, Rows: s.Rows})
	}
	return resp
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
