package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/storefront-backend/pkg/aws"
	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/common/logger"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

type OrderPage struct {
	Orders []models.Order
	Meta   MetaData
}

type MetaData struct {
	Page        int
	Limit       int
	TotalOrders int64
	TotalPages  int64
	HasMore     bool
}

// OrderService covers the order read side and status transitions.
type OrderService interface {
	ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderPage, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)

	ListAll(ctx context.Context, filter repository.OrderFilter, page, limit int) (*OrderPage, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error)
	Stats(ctx context.Context) (*repository.OrderStats, error)
}

type orderServiceImpl struct {
	store  repository.Store
	notify notifier
	logger *zap.Logger
}

func NewOrderService(store repository.Store, publisher EventPublisher, metrics MetricsRecorder, currency string, logger *zap.Logger) OrderService {
	return &orderServiceImpl{
		store:  store,
		notify: newNotifier(publisher, metrics, currency, logger),
		logger: logger,
	}
}

// ListForUser retrieves paginated orders for a specific user
func (s *orderServiceImpl) ListForUser(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderPage, error) {
	orders, total, err := s.store.Orders().FindByUserID(ctx, userID, page, limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return newOrderPage(orders, total, page, limit), nil
}

// GetForUser returns OrderNotFound for another user's order as well as a missing one.
func (s *orderServiceImpl) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().FindByIDAndUserID(ctx, orderID, userID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound, "Failed to fetch order")
	}
	return order, nil
}

// Cancel moves a pending order to cancelled. Stock is not restored and the
// lines and payment record are left as they are.
func (s *orderServiceImpl) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.GetForUser(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, models.OrderStatusCancelled)
}

// ListAll retrieves paginated orders for all users (admin only)
func (s *orderServiceImpl) ListAll(ctx context.Context, filter repository.OrderFilter, page, limit int) (*OrderPage, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "Unknown order status %q", filter.Status)
	}
	orders, total, err := s.store.Orders().FindAll(ctx, filter, page, limit)
	if err != nil {
		return nil, apperrors.Internal("Failed to fetch orders", err)
	}
	return newOrderPage(orders, total, page, limit), nil
}

func (s *orderServiceImpl) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundAs(err, apperrors.ErrOrderNotFound, "Failed to fetch order")
	}
	return order, nil
}

// UpdateStatus applies an admin or fulfillment transition.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) (*models.Order, error) {
	if !status.Valid() {
		return nil, apperrors.Newf(apperrors.KindInvalidRequest, "Unknown order status %q", status)
	}
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.transition(ctx, order, status)
}

func (s *orderServiceImpl) Stats(ctx context.Context) (*repository.OrderStats, error) {
	stats, err := s.store.Orders().Stats(ctx)
	if err != nil {
		return nil, apperrors.Internal("Failed to compute order stats", err)
	}
	return stats, nil
}

func (s *orderServiceImpl) transition(ctx context.Context, order *models.Order, to models.OrderStatus) (*models.Order, error) {
	from := order.Status
	if !from.CanTransitionTo(to) {
		return nil, apperrors.Newf(apperrors.KindInvalidStateTransition, "Cannot move order from %s to %s", from, to)
	}

	if err := s.store.Orders().UpdateStatus(ctx, order.ID, from, to); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Lost the race: someone else moved the order first.
			return nil, apperrors.Newf(apperrors.KindInvalidStateTransition, "Order %s is no longer %s", order.OrderNumber, from)
		}
		return nil, apperrors.Internal("Failed to update order status", err)
	}
	order.Status = to

	logger.For(ctx, s.logger).Info("Order status changed",
		zap.String("order_id", order.ID.String()),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
	)
	s.notify.count(ctx, aws_pkg.MetricOrderStatusChanged, map[string]string{"status": string(to)})
	s.notify.publish(ctx, models.EventOrderStatusChanged, order, from)
	return order, nil
}

func newOrderPage(orders []models.Order, total int64, page, limit int) *OrderPage {
	return &OrderPage{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}
