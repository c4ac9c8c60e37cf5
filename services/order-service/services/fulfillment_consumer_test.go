package services

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// ---- stub order service ----

type stubOrders struct {
	OrderService
	order   *models.Order
	applied []models.OrderStatus
}

func (s *stubOrders) Get(_ context.Context, id uuid.UUID) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, apperrors.ErrOrderNotFound
	}
	o := *s.order
	return &o, nil
}

func (s *stubOrders) UpdateStatus(_ context.Context, _ uuid.UUID, to models.OrderStatus) (*models.Order, error) {
	if !s.order.Status.CanTransitionTo(to) {
		return nil, apperrors.ErrInvalidStateTransition
	}
	s.order.Status = to
	s.applied = append(s.applied, to)
	return s.order, nil
}

// ---- stub reader ----

type stubReader struct {
	errs   []error
	msgs   []kafka.Message
	cancel context.CancelFunc
}

func (r *stubReader) ReadMessage(ctx context.Context) (kafka.Message, error) {
	if len(r.errs) > 0 {
		err := r.errs[0]
		r.errs = r.errs[1:]
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		r.cancel()
		<-ctx.Done()
		return kafka.Message{}, ctx.Err()
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *stubReader) Close() error { return nil }

func TestHandleMessage_ShipmentLifecycle(t *testing.T) {
	id := uuid.New()
	orders := &stubOrders{order: &models.Order{ID: id, Status: models.OrderStatusConfirmed}}
	fc := newFulfillmentConsumer(nil, "shipping.events", orders, zap.NewNop())
	ctx := context.Background()

	require.NoError(t, fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_created","order_id":"`+id.String()+`"}`)))
	require.NoError(t, fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_updated","order_id":"`+id.String()+`","status":"in_transit"}`)))
	require.NoError(t, fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_updated","order_id":"`+id.String()+`","status":"DELIVERED"}`)))
	// redelivery is a no-op
	require.NoError(t, fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_updated","order_id":"`+id.String()+`","status":"delivered"}`)))

	assert.Equal(t, []models.OrderStatus{models.OrderStatusShipped, models.OrderStatusDelivered}, orders.applied)
}

func TestHandleMessage_Rejects(t *testing.T) {
	id := uuid.New()
	orders := &stubOrders{order: &models.Order{ID: id, Status: models.OrderStatusPending}}
	fc := newFulfillmentConsumer(nil, "shipping.events", orders, zap.NewNop())
	ctx := context.Background()

	assert.Error(t, fc.HandleMessage(ctx, []byte(`not json`)))
	assert.Error(t, fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_created","order_id":"nope"}`)))

	err := fc.HandleMessage(ctx, []byte(`{"event_type":"shipment_created","order_id":"`+id.String()+`"}`))
	assert.True(t, errors.Is(err, apperrors.ErrInvalidStateTransition))
	assert.Empty(t, orders.applied)
}

func TestStart_StopsOnCancel(t *testing.T) {
	id := uuid.New()
	orders := &stubOrders{order: &models.Order{ID: id, Status: models.OrderStatusConfirmed}}
	ctx, cancel := context.WithCancel(context.Background())
	reader := &stubReader{
		cancel: cancel,
		msgs: []kafka.Message{
			{Value: []byte(`garbage`)},
			{Value: []byte(`{"event_type":"shipment_created","order_id":"` + id.String() + `"}`)},
		},
	}
	fc := newFulfillmentConsumer(reader, "shipping.events", orders, zap.NewNop())

	fc.Start(ctx)

	assert.Equal(t, []models.OrderStatus{models.OrderStatusShipped}, orders.applied)
	assert.NoError(t, fc.Close())
}

func TestStart_BacksOffAfterReadError(t *testing.T) {
	id := uuid.New()
	orders := &stubOrders{order: &models.Order{ID: id, Status: models.OrderStatusConfirmed}}
	ctx, cancel := context.WithCancel(context.Background())
	broker := errors.New("broker unreachable")
	reader := &stubReader{
		cancel: cancel,
		errs:   []error{broker, broker},
		msgs:   []kafka.Message{{Value: []byte(`{"event_type":"shipment_created","order_id":"` + id.String() + `"}`)}},
	}
	fc := newFulfillmentConsumer(reader, "shipping.events", orders, zap.NewNop())
	fc.retryBackoff = 20 * time.Millisecond

	start := time.Now()
	fc.Start(ctx)

	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
	assert.Equal(t, []models.OrderStatus{models.OrderStatusShipped}, orders.applied)
}

type failingReader struct{ reads atomic.Int32 }

func (r *failingReader) ReadMessage(context.Context) (kafka.Message, error) {
	r.reads.Add(1)
	return kafka.Message{}, errors.New("broker unreachable")
}

func (r *failingReader) Close() error { return nil }

func TestStart_CancelInterruptsBackoff(t *testing.T) {
	reader := &failingReader{}
	fc := newFulfillmentConsumer(reader, "shipping.events", &stubOrders{}, zap.NewNop())
	fc.retryBackoff = time.Hour
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		fc.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return reader.reads.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("consumer kept waiting after cancel")
	}
	assert.Equal(t, int32(1), reader.reads.Load())
}
