package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/storefront-backend/pkg/aws"
	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/common/logger"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/providers"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

// CheckoutConfig carries the settings the orchestrator needs. There is no
// package-level state; everything arrives through the constructor.
type CheckoutConfig struct {
	Currency string
	// FetchTimeout bounds the best-effort payment method lookup.
	FetchTimeout time.Duration
}

type DirectCheckoutRequest struct {
	ShippingAddressID uuid.UUID
	PaymentMethod     models.PaymentMethod
}

// VerifyPaymentRequest is the client's gateway callback.
type VerifyPaymentRequest struct {
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
	ShippingAddressID uuid.UUID
}

// PaymentIntent is what the client needs to open the gateway widget.
type PaymentIntent struct {
	ProviderOrderID string
	AmountMinor     int64
	Currency        string
	KeyID           string
	Receipt         string
	Replayed        bool
}

// CheckoutService turns a cart into an order.
type CheckoutService interface {
	DirectCheckout(ctx context.Context, userID uuid.UUID, req DirectCheckoutRequest) (*models.Order, error)
	CreatePaymentIntent(ctx context.Context, userID uuid.UUID, idempotencyKey string) (*PaymentIntent, error)
	VerifyAndCheckout(ctx context.Context, userID uuid.UUID, req VerifyPaymentRequest) (*models.Order, error)
}

type checkoutServiceImpl struct {
	store   repository.Store
	gateway providers.PaymentGateway
	intents repository.IntentCache
	cfg     CheckoutConfig
	notify  notifier
	logger  *zap.Logger
}

// NewCheckoutService wires the orchestrator. intents, publisher and metrics may be nil.
func NewCheckoutService(
	store repository.Store,
	gateway providers.PaymentGateway,
	intents repository.IntentCache,
	publisher EventPublisher,
	metrics MetricsRecorder,
	cfg CheckoutConfig,
	logger *zap.Logger,
) CheckoutService {
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	return &checkoutServiceImpl{
		store:   store,
		gateway: gateway,
		intents: intents,
		cfg:     cfg,
		notify:  newNotifier(publisher, metrics, cfg.Currency, logger),
		logger:  logger,
	}
}

// DirectCheckout places an order for the whole cart with an offline payment method.
func (s *checkoutServiceImpl) DirectCheckout(ctx context.Context, userID uuid.UUID, req DirectCheckoutRequest) (*models.Order, error) {
	log := logger.For(ctx, s.logger)
	if !models.DirectPaymentMethod(req.PaymentMethod) {
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "Unsupported payment method %q", req.PaymentMethod)
	}

	var order *models.Order
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().LockByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(cart) == 0 {
			return apperrors.ErrEmptyCart
		}
		order, err = s.placeOrder(ctx, tx, userID, req.ShippingAddressID, req.PaymentMethod, cart)
		return err
	})
	if err != nil {
		return nil, s.checkoutFailed(ctx, err, req.PaymentMethod)
	}

	log.Info("Order created",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.committed(ctx, order)
	return order, nil
}

// CreatePaymentIntent registers the cart total with the gateway. It has no
// inventory or order side effects.
func (s *checkoutServiceImpl) CreatePaymentIntent(ctx context.Context, userID uuid.UUID, idempotencyKey string) (*PaymentIntent, error) {
	log := logger.For(ctx, s.logger)

	cart, err := s.store.Carts().ListByUser(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("Failed to load cart", err)
	}
	if len(cart) == 0 {
		return nil, apperrors.ErrEmptyCart
	}
	total := models.CartTotal(cart)
	if !total.IsPositive() {
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "Cart total must be greater than zero")
	}

	amountMinor := minorUnits(total)
	if cached := s.cachedIntent(ctx, userID, idempotencyKey, amountMinor); cached != nil {
		return cached, nil
	}
	receipt := newReceipt()

	start := time.Now()
	intent, err := s.gateway.CreateIntent(ctx, amountMinor, s.cfg.Currency, receipt)
	s.notify.latency(ctx, aws_pkg.MetricGatewayLatency, time.Since(start), map[string]string{"operation": "create_intent"})
	if err != nil {
		log.Error("Gateway intent creation failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.New(apperrors.KindGatewayUnavailable, "Payment gateway unavailable", err)
	}

	result := &PaymentIntent{
		ProviderOrderID: intent.ProviderOrderID,
		AmountMinor:     intent.AmountMinor,
		Currency:        intent.Currency,
		KeyID:           s.gateway.KeyID(),
		Receipt:         intent.Receipt,
	}
	if result.Currency == "" {
		result.Currency = s.cfg.Currency
	}
	if result.Receipt == "" {
		result.Receipt = receipt
	}
	s.rememberIntent(ctx, userID, idempotencyKey, result)

	log.Info("Payment intent created",
		zap.String("user_id", userID.String()),
		zap.String("provider_order_id", result.ProviderOrderID),
		zap.Int64("amount_minor", result.AmountMinor),
	)
	return result, nil
}

// VerifyAndCheckout settles a gateway payment. The signature is checked
// before anything is written; a payment id can settle at most one order.
func (s *checkoutServiceImpl) VerifyAndCheckout(ctx context.Context, userID uuid.UUID, req VerifyPaymentRequest) (*models.Order, error) {
	log := logger.For(ctx, s.logger)

	if err := s.gateway.VerifySignature(ctx, req.ProviderOrderID, req.ProviderPaymentID, req.Signature); err != nil {
		log.Warn("Payment signature rejected",
			zap.String("user_id", userID.String()),
			zap.String("provider_order_id", req.ProviderOrderID),
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.Error(err),
		)
		s.notify.count(ctx, aws_pkg.MetricPaymentRejected, nil)
		return nil, apperrors.New(apperrors.KindPaymentVerificationFailed, "Payment verification failed", err)
	}
	s.notify.count(ctx, aws_pkg.MetricPaymentVerified, nil)

	details := s.fetchPayment(ctx, req.ProviderPaymentID)
	method := models.PaymentMethodUnknown
	if details != nil && details.Method != "" {
		method = details.Method
	}
	raw := rawCallback(req)

	var (
		order     *models.Order
		recordErr error
	)
	err := s.store.WithinTransaction(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().LockByUser(ctx, userID)
		if err != nil {
			return err
		}
		if len(cart) == 0 {
			return apperrors.ErrEmptyCart
		}

		if err := tx.Payments().LockProviderPayment(ctx, req.ProviderPaymentID); err != nil {
			return err
		}
		if _, err := tx.Payments().FindByProviderPaymentID(ctx, req.ProviderPaymentID); err == nil {
			return apperrors.ErrDuplicatePayment
		} else if !errors.Is(err, repository.ErrNotFound) {
			return err
		}

		order, err = s.placeOrder(ctx, tx, userID, req.ShippingAddressID, models.PaymentMethodRazorpay, cart)
		if err != nil {
			return err
		}

		paymentID := req.ProviderPaymentID
		payment := &models.OrderPayment{
			OrderID:           order.ID,
			Provider:          models.PaymentProviderRazorpay,
			Amount:            order.TotalAmount,
			Currency:          s.cfg.Currency,
			Status:            models.PaymentStatusCaptured,
			Method:            method,
			RawPayload:        raw,
			ProviderOrderID:   req.ProviderOrderID,
			ProviderPaymentID: &paymentID,
			ProviderSignature: req.Signature,
		}
		// The order stands even when the audit record cannot be written.
		recordErr = tx.WithinTransaction(ctx, func(sp repository.Store) error {
			return sp.Payments().Create(ctx, payment)
		})
		if recordErr == nil {
			order.Payment = payment
		}
		return nil
	})
	if err != nil {
		return nil, s.checkoutFailed(ctx, err, models.PaymentMethodRazorpay)
	}

	if details != nil && details.AmountMinor != 0 && details.AmountMinor != minorUnits(order.TotalAmount) {
		log.Error("Captured amount differs from order total; reconciliation required",
			zap.String("order_id", order.ID.String()),
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.Int64("captured_minor", details.AmountMinor),
			zap.Int64("order_minor", minorUnits(order.TotalAmount)),
		)
		s.notify.count(ctx, aws_pkg.MetricPaymentAmountMismatch, nil)
	}

	if recordErr != nil {
		log.Error("Payment record not persisted; reconciliation required",
			zap.String("order_id", order.ID.String()),
			zap.String("order_number", order.OrderNumber),
			zap.String("provider_order_id", req.ProviderOrderID),
			zap.String("provider_payment_id", req.ProviderPaymentID),
			zap.String("amount", order.TotalAmount.StringFixed(2)),
			zap.Error(recordErr),
		)
		s.notify.count(ctx, aws_pkg.MetricPaymentRecordGaps, nil)
	}

	log.Info("Order created from gateway payment",
		zap.String("order_id", order.ID.String()),
		zap.String("order_number", order.OrderNumber),
		zap.String("user_id", userID.String()),
		zap.String("provider_payment_id", req.ProviderPaymentID),
		zap.String("total", order.TotalAmount.StringFixed(2)),
	)
	s.committed(ctx, order)
	return order, nil
}

// placeOrder runs inside the caller's transaction. Any error rolls the whole
// unit back, including stock already reserved for earlier lines.
func (s *checkoutServiceImpl) placeOrder(
	ctx context.Context,
	tx repository.Store,
	userID, addressID uuid.UUID,
	method models.PaymentMethod,
	cart []models.CartItem,
) (*models.Order, error) {
	address, err := tx.Catalog().FindAddressForUser(ctx, addressID, userID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrInvalidAddress, "Failed to load address")
	}

	lines := make([]models.CartItem, len(cart))
	copy(lines, cart)
	sort.Slice(lines, func(i, j int) bool {
		return lines[i].ProductID.String() < lines[j].ProductID.String()
	})
	ids := make([]uuid.UUID, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}

	products, err := tx.Catalog().LockProducts(ctx, ids)
	if err != nil {
		return nil, err
	}

	order := &models.Order{
		ID:                uuid.New(),
		OrderNumber:       models.NewOrderNumber(),
		UserID:            userID,
		Status:            models.OrderStatusPending,
		PaymentMethod:     method,
		ShippingAddressID: &address.ID,
		TotalAmount:       decimal.Zero,
	}
	snapshots := make(map[uuid.UUID]models.Product, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok || !p.IsActive {
			name := ""
			if l.Product != nil {
				name = l.Product.Name
			}
			return nil, apperrors.ProductUnavailable(l.ProductID.String(), name)
		}
		snapshots[p.ID] = p
		order.OrderItems = append(order.OrderItems, models.OrderItem{
			ID:        uuid.New(),
			OrderID:   order.ID,
			ProductID: p.ID,
			Quantity:  l.Quantity,
			Price:     p.Price,
		})
		order.TotalAmount = order.TotalAmount.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}

	for _, it := range order.OrderItems {
		if err := tx.Inventory().TryReserve(ctx, it.ProductID, it.Quantity); err != nil {
			if errors.Is(err, repository.ErrStockExhausted) {
				return nil, apperrors.InsufficientStock(it.ProductID.String(), snapshots[it.ProductID].Name)
			}
			return nil, err
		}
	}

	if err := order.ValidateInvariants(); err != nil {
		return nil, apperrors.Internal("Order failed validation", err)
	}
	if err := tx.Orders().Create(ctx, order); err != nil {
		return nil, err
	}
	if _, err := tx.Carts().DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}

	order.ShippingAddress = address
	for i := range order.OrderItems {
		p := snapshots[order.OrderItems[i].ProductID]
		order.OrderItems[i].Product = &p
	}
	return order, nil
}

func (s *checkoutServiceImpl) checkoutFailed(ctx context.Context, err error, method models.PaymentMethod) error {
	err = appError(err, "Failed to create order")
	kind := apperrors.KindOf(err)
	if kind == apperrors.KindInternal {
		logger.For(ctx, s.logger).Error("Checkout failed", zap.Error(err))
	}
	s.notify.count(ctx, aws_pkg.MetricCheckoutFailures, map[string]string{
		"kind":           string(kind),
		"payment_method": string(method),
	})
	return err
}

func (s *checkoutServiceImpl) committed(ctx context.Context, order *models.Order) {
	s.notify.count(ctx, aws_pkg.MetricOrdersCreated, map[string]string{"payment_method": string(order.PaymentMethod)})
	s.notify.publish(ctx, models.EventOrderCreated, order, "")
}

// fetchPayment asks the gateway how the customer paid and how much was
// captured. Failure is not fatal; nil means nothing is known.
func (s *checkoutServiceImpl) fetchPayment(ctx context.Context, providerPaymentID string) *providers.PaymentDetails {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.FetchTimeout)
	defer cancel()

	details, err := s.gateway.FetchPayment(fetchCtx, providerPaymentID)
	if err != nil {
		s.logger.Warn("Payment lookup failed",
			zap.String("provider_payment_id", providerPaymentID),
			zap.Error(err),
		)
		return nil
	}
	return details
}

// cachedIntent replays an intent stored under key, but only while it still
// covers the current cart total.
func (s *checkoutServiceImpl) cachedIntent(ctx context.Context, userID uuid.UUID, key string, amountMinor int64) *PaymentIntent {
	if s.intents == nil || key == "" {
		return nil
	}
	cached, err := s.intents.Get(ctx, userID.String(), key)
	if err != nil {
		s.logger.Warn("Intent cache read failed", zap.String("user_id", userID.String()), zap.Error(err))
		return nil
	}
	if cached == nil || cached.AmountMinor != amountMinor || cached.Currency != s.cfg.Currency {
		return nil
	}
	return &PaymentIntent{
		ProviderOrderID: cached.ProviderOrderID,
		AmountMinor:     cached.AmountMinor,
		Currency:        cached.Currency,
		KeyID:           s.gateway.KeyID(),
		Receipt:         cached.Receipt,
		Replayed:        true,
	}
}

func (s *checkoutServiceImpl) rememberIntent(ctx context.Context, userID uuid.UUID, key string, intent *PaymentIntent) {
	if s.intents == nil || key == "" {
		return
	}
	err := s.intents.Put(ctx, userID.String(), key, repository.CachedIntent{
		ProviderOrderID: intent.ProviderOrderID,
		AmountMinor:     intent.AmountMinor,
		Currency:        intent.Currency,
		Receipt:         intent.Receipt,
	})
	if err != nil {
		s.logger.Warn("Intent cache write failed", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// minorUnits converts a two-decimal amount to paise.
func minorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// newReceipt returns rcpt_ followed by 12 hex characters.
func newReceipt() string {
	return fmt.Sprintf("rcpt_%s", strings.ReplaceAll(uuid.NewString(), "-", "")[:12])
}

func rawCallback(req VerifyPaymentRequest) *string {
	b, err := json.Marshal(map[string]string{
		"razorpay_order_id":   req.ProviderOrderID,
		"razorpay_payment_id": req.ProviderPaymentID,
		"razorpay_signature":  req.Signature,
	})
	if err != nil {
		return nil
	}
	raw := string(b)
	return &raw
}
