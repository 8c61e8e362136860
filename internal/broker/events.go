package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"reservation-service/internal/models"
)

// EventPublisher handles publishing order events
type EventPublisher struct {
	producer *Producer
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(producer *Producer) *EventPublisher {
	return &EventPublisher{producer: producer}
}

// PublishOrderEvent publishes an order event keyed by product, so events for
// one product land on one partition in order.
func (ep *EventPublisher) PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal order event: %w", err)
	}

	key := fmt.Sprintf("product-%d", event.ProductID)
	if err := ep.producer.Publish(ctx, key, payload); err != nil {
		return fmt.Errorf("failed to publish order event: %w", err)
	}
	return nil
}
