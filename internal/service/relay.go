package service

import (
	"context"
	"time"

	"reservation-service/internal/models"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// OutboxStore is the durable event queue written by the order transaction.
// Implemented by store.Store.
type OutboxStore interface {
	FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error)
	MarkEventPublished(ctx context.Context, eventID string) error
	BumpEventAttempts(ctx context.Context, eventID string) error
}

// EventSink publishes order events to the broker. Implemented by
// broker.EventPublisher.
type EventSink interface {
	PublishOrderEvent(ctx context.Context, event *models.OrderEvent) error
}

// OutboxRelay drains the outbox table to the broker. Because rows are
// written in the order transaction and stay PENDING until a publish is
// acknowledged, a crash anywhere in between only delays delivery, never
// loses it. Delivery is therefore at-least-once; the consumer's idempotency
// claim absorbs the duplicates.
type OutboxRelay struct {
	outbox    OutboxStore
	publisher EventSink
	interval  time.Duration
	batchSize int
	logger    *zap.Logger
}

// NewOutboxRelay creates a new outbox relay
func NewOutboxRelay(outbox OutboxStore, publisher EventSink, interval time.Duration, batchSize int) *OutboxRelay {
	return &OutboxRelay{
		outbox:    outbox,
		publisher: publisher,
		interval:  interval,
		batchSize: batchSize,
		logger:    util.GetLogger(),
	}
}

// Start polls for pending events until ctx is cancelled.
func (r *OutboxRelay) Start(ctx context.Context) error {
	r.logger.Info("Starting outbox relay", zap.Duration("interval", r.interval))

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("Outbox relay stopping")
			return ctx.Err()
		case <-ticker.C:
			if err := r.Drain(ctx); err != nil {
				r.logger.Error("Outbox drain failed", zap.Error(err))
			}
		}
	}
}

// Drain publishes one batch of pending events. Failed publishes keep their
// rows PENDING and are retried next tick.
func (r *OutboxRelay) Drain(ctx context.Context) error {
	events, err := r.outbox.FetchPendingEvents(ctx, r.batchSize)
	if err != nil {
		return err
	}

	for i := range events {
		row := &events[i]
		event := &models.OrderEvent{
			EventID:   row.EventID,
			EventType: row.EventType,
			OrderID:   row.OrderID,
			ProductID: row.ProductID,
			Quantity:  row.Quantity,
			Timestamp: row.CreatedAt,
		}

		if err := r.publisher.PublishOrderEvent(ctx, event); err != nil {
			util.EventsPublishFailedTotal.Inc()
			r.logger.Error("Failed to publish outbox event",
				zap.String("event_id", row.EventID),
				zap.Int("attempts", row.Attempts+1),
				zap.Error(err))
			if err := r.outbox.BumpEventAttempts(ctx, row.EventID); err != nil {
				r.logger.Error("Failed to bump outbox attempts", zap.Error(err))
			}
			continue
		}

		util.EventsPublishedTotal.Inc()
		if err := r.outbox.MarkEventPublished(ctx, row.EventID); err != nil {
			// The event will be re-published next tick; the consumer's
			// idempotency claim makes that harmless.
			r.logger.Error("Failed to mark outbox event published",
				zap.String("event_id", row.EventID),
				zap.Error(err))
		}
	}

	return nil
}
