package store

import (
	"context"
	"fmt"
	"time"

	"reservation-service/internal/models"

	"github.com/jmoiron/sqlx"
)

// insertOutboxEvent records an order outcome inside the caller's
// transaction, so the event is durable exactly when the state change is.
func insertOutboxEvent(ctx context.Context, tx *sqlx.Tx, eventID, eventType string, order *models.Order) error {
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (event_id, event_type, order_id, product_id, quantity, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		eventID, eventType, order.ID, order.ProductID, order.Quantity, models.OutboxStatusPending)
	if err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}
	return nil
}

// FetchPendingEvents returns the oldest unpublished outbox rows, up to limit.
func (s *Store) FetchPendingEvents(ctx context.Context, limit int) ([]models.OutboxEvent, error) {
	var events []models.OutboxEvent
	err := s.db.SelectContext(ctx, &events,
		`SELECT * FROM outbox_events
		 WHERE status = $1
		 ORDER BY created_at
		 LIMIT $2`,
		models.OutboxStatusPending, limit)
	return events, err
}

// MarkEventPublished records a successful publish.
func (s *Store) MarkEventPublished(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET status = $1, published_at = $2 WHERE event_id = $3",
		models.OutboxStatusPublished, time.Now(), eventID)
	return err
}

// BumpEventAttempts counts a failed publish; the row stays PENDING so the
// relay retries it on the next tick.
func (s *Store) BumpEventAttempts(ctx context.Context, eventID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE outbox_events SET attempts = attempts + 1 WHERE event_id = $1", eventID)
	return err
}
