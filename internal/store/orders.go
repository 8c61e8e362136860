package store

import (
	"context"
	"database/sql"
	"fmt"

	"reservation-service/internal/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// CreateOrderWithReservation reserves stock, writes the order as PENDING and
// records the ORDER_CONFIRMED outbox row, all in one transaction. Either the
// reservation, the order and the event all commit, or none of them do; a
// reservation can never be stranded without an order and an event to
// finalize it. Returns the event id assigned to the outbox row.
func (s *Store) CreateOrderWithReservation(ctx context.Context, order *models.Order) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := reserveStock(ctx, tx, order.ProductID, order.Quantity); err != nil {
		return "", err
	}

	order.Status = models.OrderStatusPending
	query := `
		INSERT INTO orders (user_id, product_id, quantity, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`

	if err := tx.GetContext(ctx, order, query,
		order.UserID, order.ProductID, order.Quantity, order.Status); err != nil {
		return "", fmt.Errorf("failed to create order: %w", err)
	}

	eventID := uuid.New().String()
	if err := insertOutboxEvent(ctx, tx, eventID, models.EventTypeOrderConfirmed, order); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit order transaction: %w", err)
	}
	return eventID, nil
}

// RequestCancellation records an ORDER_CANCELLED outbox row for a pending
// order owned by the caller. The order status itself flips only when the
// event comes back through the consumer, keeping inventory and order state
// moving together.
func (s *Store) RequestCancellation(ctx context.Context, orderID, userID int64) (string, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var order models.Order
	err = tx.GetContext(ctx, &order,
		"SELECT * FROM orders WHERE id = $1 AND user_id = $2 FOR UPDATE", orderID, userID)
	if err == sql.ErrNoRows {
		return "", models.ErrOrderNotFound
	}
	if err != nil {
		return "", err
	}

	if order.Status != models.OrderStatusPending {
		return "", fmt.Errorf("order %d is %s: %w", orderID, order.Status, models.ErrOrderNotCancellable)
	}

	eventID := uuid.New().String()
	if err := insertOutboxEvent(ctx, tx, eventID, models.EventTypeOrderCancelled, &order); err != nil {
		return "", err
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return eventID, nil
}

// GetOrderByID retrieves an order by ID
func (s *Store) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	var order models.Order
	err := s.db.GetContext(ctx, &order, "SELECT * FROM orders WHERE id = $1", id)
	if err == sql.ErrNoRows {
		return nil, models.ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// GetOrdersByUserID retrieves orders for a user
func (s *Store) GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error) {
	var orders []models.Order
	err := s.db.SelectContext(ctx, &orders,
		"SELECT * FROM orders WHERE user_id = $1 ORDER BY created_at DESC", userID)
	return orders, err
}

// transitionOrder moves an order out of PENDING. Zero rows means the order
// is unknown or already finalized; a terminal status is never overwritten,
// and the caller must apply no ledger change in that case.
func transitionOrder(ctx context.Context, tx *sqlx.Tx, orderID int64, status string) error {
	res, err := tx.ExecContext(ctx,
		"UPDATE orders SET status = $1, updated_at = NOW() WHERE id = $2 AND status = $3",
		status, orderID, models.OrderStatusPending)
	if err != nil {
		return fmt.Errorf("failed to transition order: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("order %d is not pending: %w", orderID, models.ErrReservationState)
	}
	return nil
}
