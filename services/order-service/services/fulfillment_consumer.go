package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
)

// ShipmentEvent is the subset of the shipping service's events this
// service reacts to.
type ShipmentEvent struct {
	EventType string `json:"event_type"`
	OrderID   string `json:"order_id"`
	Status    string `json:"status"`
}

type messageReader interface {
	ReadMessage(ctx context.Context) (kafka.Message, error)
	Close() error
}

// FulfillmentConsumer advances orders from shipment events:
// shipment_created moves a confirmed order to shipped, and a
// shipment_updated with status delivered moves it to delivered.
type FulfillmentConsumer struct {
	reader messageReader
	orders OrderService
	topic  string
	logger *zap.Logger
	// retryBackoff is the pause after a failed read, so a broker outage does
	// not turn into a hot loop.
	retryBackoff time.Duration
}

func NewFulfillmentConsumer(brokers []string, topic, groupID string, orders OrderService, logger *zap.Logger) *FulfillmentConsumer {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    topic,
		GroupID:  groupID,
		MinBytes: 1e3,
		MaxBytes: 10e6,
	})
	logger.Info("Fulfillment consumer initialized",
		zap.String("topic", topic),
		zap.String("group", groupID),
		zap.Strings("brokers", brokers),
	)
	return newFulfillmentConsumer(r, topic, orders, logger)
}

func newFulfillmentConsumer(r messageReader, topic string, orders OrderService, logger *zap.Logger) *FulfillmentConsumer {
	return &FulfillmentConsumer{reader: r, orders: orders, topic: topic, logger: logger, retryBackoff: 2 * time.Second}
}

// Start reads until ctx is cancelled. Bad messages are logged and skipped.
func (fc *FulfillmentConsumer) Start(ctx context.Context) {
	fc.logger.Info("Fulfillment consumer listening", zap.String("topic", fc.topic))
	for {
		m, err := fc.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			fc.logger.Error("Fulfillment read failed", zap.Error(err), zap.Duration("retry_in", fc.retryBackoff))
			select {
			case <-ctx.Done():
				return
			case <-time.After(fc.retryBackoff):
			}
			continue
		}
		if err := fc.HandleMessage(ctx, m.Value); err != nil {
			fc.logger.Warn("Fulfillment event skipped",
				zap.Int64("offset", m.Offset),
				zap.Error(err),
			)
		}
	}
}

// HandleMessage applies one event. Events for an order already in the target
// status are ignored so redelivery is harmless.
func (fc *FulfillmentConsumer) HandleMessage(ctx context.Context, payload []byte) error {
	var evt ShipmentEvent
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	orderID, err := uuid.Parse(evt.OrderID)
	if err != nil {
		return fmt.Errorf("invalid order_id %q", evt.OrderID)
	}

	target, ok := targetStatus(evt)
	if !ok {
		fc.logger.Debug("Ignoring shipment event", zap.String("event_type", evt.EventType), zap.String("status", evt.Status))
		return nil
	}

	order, err := fc.orders.Get(ctx, orderID)
	if err != nil {
		return err
	}
	if order.Status == target {
		fc.logger.Info("Order already in target status",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(target)),
		)
		return nil
	}

	if _, err := fc.orders.UpdateStatus(ctx, orderID, target); err != nil {
		if errors.Is(err, apperrors.ErrInvalidStateTransition) {
			return fmt.Errorf("order %s is %s, cannot apply %s: %w", orderID, order.Status, evt.EventType, err)
		}
		return err
	}
	return nil
}

func targetStatus(evt ShipmentEvent) (models.OrderStatus, bool) {
	switch evt.EventType {
	case "shipment_created":
		return models.OrderStatusShipped, true
	case "shipment_updated":
		if strings.EqualFold(evt.Status, "delivered") {
			return models.OrderStatusDelivered, true
		}
	}
	return "", false
}

func (fc *FulfillmentConsumer) Close() error {
	fc.logger.Info("Closing fulfillment consumer", zap.String("topic", fc.topic))
	return fc.reader.Close()
}
