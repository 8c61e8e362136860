package service

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/util"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Ledger is the inventory side the consumer drives. Each operation flips
// the order out of PENDING and applies the ledger change atomically, so
// confirm and cancel are mutually exclusive per order even when both events
// exist (a user cancellation racing the creation-time confirmation).
// Implemented by store.Store.
type Ledger interface {
	ConfirmOrder(ctx context.Context, orderID, productID int64, qty int) error
	CancelOrder(ctx context.Context, orderID, productID int64, qty int) error
}

// Claimer is the idempotency store. Implemented by redisclient.Client.
type Claimer interface {
	Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
	Unclaim(ctx context.Context, eventID string) error
}

// EventConsumer applies order events to the ledger exactly once per event
// id, under at-least-once delivery. The claim is taken before processing;
// a transient failure releases it again so the broker can redeliver.
type EventConsumer struct {
	ledger   Ledger
	claims   Claimer
	dedupTTL time.Duration
	logger   *zap.Logger
}

// NewEventConsumer creates a new event consumer
func NewEventConsumer(ledger Ledger, claims Claimer, dedupTTL time.Duration) *EventConsumer {
	return &EventConsumer{
		ledger:   ledger,
		claims:   claims,
		dedupTTL: dedupTTL,
		logger:   util.GetLogger(),
	}
}

// HandleMessage processes one message from the order events topic. A nil
// return acknowledges the message; an error leaves it for redelivery.
func (ec *EventConsumer) HandleMessage(ctx context.Context, msg kafka.Message) error {
	ctx, span := util.StartSpan(ctx, "EventConsumer.HandleMessage")
	defer span.End()

	var event models.OrderEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		// Malformed payload will never parse on retry either.
		ec.logger.Error("Dropping unparseable event", zap.Int64("offset", msg.Offset), zap.Error(err))
		return nil
	}
	if event.EventID == "" {
		// Without an id the claim would land on one shared key and eat
		// every later id-less event as a duplicate.
		ec.logger.Error("Dropping event without id", zap.Int64("offset", msg.Offset))
		return nil
	}

	start := time.Now()
	defer func() {
		util.EventProcessingLatency.WithLabelValues(event.EventType).Observe(time.Since(start).Seconds())
	}()

	first, err := ec.claims.Claim(ctx, event.EventID, ec.dedupTTL)
	if err != nil {
		return err
	}
	if !first {
		util.EventsDuplicateTotal.Inc()
		ec.logger.Info("Duplicate event skipped",
			zap.String("event_id", event.EventID),
			zap.String("event_type", event.EventType))
		return nil
	}

	if err := ec.dispatch(ctx, &event); err != nil {
		if errors.Is(err, models.ErrReservationState) {
			// Retrying would hit the same guard forever. Park it: keep the
			// claim, surface loudly, acknowledge.
			util.EventsParkedTotal.Inc()
			ec.logger.Error("Event parked on reservation state violation",
				zap.String("event_id", event.EventID),
				zap.String("event_type", event.EventType),
				zap.Int64("order_id", event.OrderID),
				zap.Error(err))
			return nil
		}

		// Transient failure: give the claim back so redelivery can succeed.
		if unclaimErr := ec.claims.Unclaim(ctx, event.EventID); unclaimErr != nil {
			ec.logger.Error("Failed to release claim after processing error",
				zap.String("event_id", event.EventID),
				zap.Error(unclaimErr))
		}
		return err
	}

	return nil
}

func (ec *EventConsumer) dispatch(ctx context.Context, event *models.OrderEvent) error {
	ec.logger.Info("Handling order event",
		zap.String("event_id", event.EventID),
		zap.String("event_type", event.EventType),
		zap.Int64("order_id", event.OrderID),
		zap.Int64("product_id", event.ProductID),
		zap.Int("quantity", event.Quantity))

	switch event.EventType {
	case models.EventTypeOrderConfirmed:
		if err := ec.ledger.ConfirmOrder(ctx, event.OrderID, event.ProductID, event.Quantity); err != nil {
			return err
		}
		util.OrdersConfirmedTotal.Inc()

	case models.EventTypeOrderCancelled:
		if err := ec.ledger.CancelOrder(ctx, event.OrderID, event.ProductID, event.Quantity); err != nil {
			return err
		}
		util.OrdersCancelledTotal.Inc()

	default:
		ec.logger.Warn("Unknown event type, dropping", zap.String("event_type", event.EventType))
	}

	return nil
}
