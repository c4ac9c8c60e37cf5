package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	aws_pkg "github.com/yashrajoria/storefront-backend/pkg/aws"
	apperrors "github.com/yashrajoria/storefront-backend/services/common/errors"
	"github.com/yashrajoria/storefront-backend/services/order-service/models"
	"github.com/yashrajoria/storefront-backend/services/order-service/repository"
)

// EventPublisher ships order events to the bus. Callers treat failures as non-fatal.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error
}

// MetricsRecorder is the business metric sink; *aws_pkg.MetricsClient in production.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
	RecordLatency(ctx context.Context, metricName string, duration time.Duration, dimensions map[string]string) error
}

// NoopPublisher drops every event. Used when EVENT_BUS=none.
type NoopPublisher struct{}

func (NoopPublisher) PublishOrderEvent(context.Context, models.OrderEvent) error { return nil }

// SNSEventPublisher publishes order events to one SNS topic.
type SNSEventPublisher struct {
	client   aws_pkg.SNSPublisher
	topicArn string
}

func NewSNSEventPublisher(client aws_pkg.SNSPublisher, topicArn string) *SNSEventPublisher {
	return &SNSEventPublisher{client: client, topicArn: topicArn}
}

func (p *SNSEventPublisher) PublishOrderEvent(ctx context.Context, evt models.OrderEvent) error {
	b, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", evt.Type, err)
	}
	return p.client.Publish(ctx, p.topicArn, evt.Type, b)
}

type noopMetrics struct{}

func (noopMetrics) RecordCount(context.Context, string, map[string]string) error { return nil }
func (noopMetrics) RecordLatency(context.Context, string, time.Duration, map[string]string) error {
	return nil
}

// notifier bundles the best-effort side effects that follow a commit.
type notifier struct {
	publisher EventPublisher
	metrics   MetricsRecorder
	currency  string
	logger    *zap.Logger
}

func newNotifier(publisher EventPublisher, metrics MetricsRecorder, currency string, logger *zap.Logger) notifier {
	if publisher == nil {
		publisher = NoopPublisher{}
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return notifier{publisher: publisher, metrics: metrics, currency: currency, logger: logger}
}

func (n notifier) publish(ctx context.Context, eventType string, order *models.Order, previous models.OrderStatus) {
	evt := models.NewOrderEvent(eventType, order, n.currency, time.Now())
	evt.PreviousStatus = string(previous)
	if err := n.publisher.PublishOrderEvent(ctx, evt); err != nil {
		n.logger.Warn("Failed to publish order event",
			zap.String("event_type", eventType),
			zap.String("order_id", order.ID.String()),
			zap.Error(err),
		)
		n.count(ctx, aws_pkg.MetricEventPublishFailure, map[string]string{"event_type": eventType})
	}
}

func (n notifier) count(ctx context.Context, metric string, dims map[string]string) {
	if err := n.metrics.RecordCount(ctx, metric, dims); err != nil {
		n.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

func (n notifier) latency(ctx context.Context, metric string, d time.Duration, dims map[string]string) {
	if err := n.metrics.RecordLatency(ctx, metric, d, dims); err != nil {
		n.logger.Debug("Failed to record metric", zap.String("metric", metric), zap.Error(err))
	}
}

// appError passes typed errors through and wraps everything else as Internal.
func appError(err error, message string) error {
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return apperrors.Internal(message, err)
}

// notFoundAs maps repository.ErrNotFound to the given typed error.
func notFoundAs(err error, notFound *apperrors.Error, message string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return notFound
	}
	return apperrors.Internal(message, err)
}
