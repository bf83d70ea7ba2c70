package services

import (
	"context"

	"marketplace/internal/models"
	"marketplace/pkg/logger"
	"marketplace/pkg/rabbitmq"
)

// EventPublisher sends order lifecycle events to the broker.
type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, event rabbitmq.OrderEvent) error
}

// publishOrderEvent is best effort: the order is already committed, so a
// broker failure is only logged.
func publishOrderEvent(ctx context.Context, pub EventPublisher, logg *logger.Logger, eventType string, order *models.Order) {
	if pub == nil || order == nil {
		return
	}
	err := pub.PublishOrderEvent(ctx, rabbitmq.OrderEvent{
		Type:          eventType,
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerID:    order.CustomerID,
		Status:        string(order.Status),
		PaymentStatus: string(order.PaymentStatus),
		Total:         order.Total.StringFixed(2),
		Currency:      order.Currency,
	})
	if err != nil {
		logg.Error(logg.WithOrderNumber(ctx, order.OrderNumber), "failed to publish "+eventType, err)
	}
}
