package services_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
	"github.com/yashrajoria/storefront-backend/services/order-service/services"
)

func seedOrder(store *memStore, user uuid.UUID, status models.OrderStatus, total string) models.Order {
	o := models.Order{
		ID:            uuid.New(),
		OrderNumber:   models.NewOrderNumber(),
		UserID:        user,
		Status:        status,
		PaymentMethod: models.PaymentMethodCash,
		TotalAmount:   decimal.RequireFromString(total),
		OrderItems: []models.OrderItem{
			{ID: uuid.New(), ProductID: uuid.New(), Quantity: 1, Price: decimal.RequireFromString(total)},
		},
	}
	_ = store.Orders().Create(context.Background(), &o)
	return o
}

func newOrderService() (*memStore, *recordingPublisher, services.OrderService) {
	store := newMemStore()
	pub := &recordingPublisher{}
	return store, pub, services.NewOrderService(store, pub, newRecordingMetrics(), "INR", zap.NewNop())
}

func TestCancel_PendingSucceedsAndKeepsLinesAndPayment(t *testing.T) {
	store, pub, svc := newOrderService()
	user := uuid.New()
	o := seedOrder(store, user, models.OrderStatusPending, "20.00")
	pid := "pay_1"
	store.putPayment(models.OrderPayment{ID: uuid.New(), OrderID: o.ID, Amount: o.TotalAmount, ProviderPaymentID: &pid})

	cancelled, err := svc.Cancel(context.Background(), user, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, cancelled.Status)

	stored, err := svc.GetForUser(context.Background(), user, o.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusCancelled, stored.Status)
	assert.Len(t, stored.OrderItems, 1)
	require.NotNil(t, stored.Payment)
	assert.Equal(t, "pay_1", *stored.Payment.ProviderPaymentID)

	require.Len(t, pub.events, 1)
	assert.Equal(t, models.EventOrderStatusChanged, pub.events[0].Type)
	assert.Equal(t, "pending", pub.events[0].PreviousStatus)
	assert.Equal(t, "cancelled", pub.events[0].Status)
}

func TestCancel_ShippedIsInvalidTransition(t *testing.T) {
	store, pub, svc := newOrderService()
	user := uuid.New()
	o := seedOrder(store, user, models.OrderStatusShipped, "20.00")

	_, err := svc.Cancel(context.Background(), user, o.ID)

	assert.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)
	stored, _ := svc.Get(context.Background(), o.ID)
	assert.Equal(t, models.OrderStatusShipped, stored.Status)
	assert.Empty(t, pub.events)
}

func TestCancel_OtherUsersOrderIsNotFound(t *testing.T) {
	store, _, svc := newOrderService()
	o := seedOrder(store, uuid.New(), models.OrderStatusPending, "20.00")

	_, err := svc.Cancel(context.Background(), uuid.New(), o.ID)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestCancel_ConcurrentOnlyOneWins(t *testing.T) {
	store, pub, svc := newOrderService()
	user := uuid.New()
	o := seedOrder(store, user, models.OrderStatusPending, "20.00")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Cancel(context.Background(), user, o.ID); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Len(t, pub.types(), 1)
}

func TestUpdateStatus_FollowsLifecycle(t *testing.T) {
	store, _, svc := newOrderService()
	o := seedOrder(store, uuid.New(), models.OrderStatusPending, "20.00")
	ctx := context.Background()

	for _, next := range []models.OrderStatus{models.OrderStatusConfirmed, models.OrderStatusShipped, models.OrderStatusDelivered} {
		updated, err := svc.UpdateStatus(ctx, o.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err := svc.UpdateStatus(ctx, o.ID, models.OrderStatusCancelled)
	assert.ErrorIs(t, err, apperrors.ErrInvalidStateTransition)

	_, err = svc.UpdateStatus(ctx, o.ID, models.OrderStatus("paid"))
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))

	_, err = svc.UpdateStatus(ctx, uuid.New(), models.OrderStatusConfirmed)
	assert.ErrorIs(t, err, apperrors.ErrOrderNotFound)
}

func TestListForUser_Pagination(t *testing.T) {
	store, _, svc := newOrderService()
	user := uuid.New()
	for i := 0; i < 5; i++ {
		seedOrder(store, user, models.OrderStatusPending, "1.00")
	}
	seedOrder(store, uuid.New(), models.OrderStatusPending, "1.00")

	page, err := svc.ListForUser(context.Background(), user, 2, 2)
	require.NoError(t, err)
	assert.Len(t, page.Orders, 2)
	assert.Equal(t, int64(5), page.Meta.TotalOrders)
	assert.Equal(t, int64(3), page.Meta.TotalPages)
	assert.True(t, page.Meta.HasMore)
}

func TestListAll_FilterAndStats(t *testing.T) {
	store, _, svc := newOrderService()
	seedOrder(store, uuid.New(), models.OrderStatusPending, "10.00")
	seedOrder(store, uuid.New(), models.OrderStatusDelivered, "30.50")
	seedOrder(store, uuid.New(), models.OrderStatusCancelled, "99.00")

	page, err := svc.ListAll(context.Background(), repository.OrderFilter{Status: models.OrderStatusDelivered}, 1, 10)
	require.NoError(t, err)
	require.Len(t, page.Orders, 1)
	assert.Equal(t, "30.50", page.Orders[0].TotalAmount.StringFixed(2))

	_, err = svc.ListAll(context.Background(), repository.OrderFilter{Status: "bogus"}, 1, 10)
	assert.Equal(t, apperrors.KindInvalidRequest, apperrors.KindOf(err))

	stats, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalOrders)
	assert.Equal(t, "40.50", stats.TotalRevenue.StringFixed(2))
	assert.Equal(t, int64(1), stats.ByStatus[models.OrderStatusCancelled])
}
