package service

import (
	"context"
	"errors"
	"fmt"

	"reservation-service/internal/models"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// OrderStore is the persistence surface the coordinator drives. Implemented
// by store.Store.
type OrderStore interface {
	CreateOrderWithReservation(ctx context.Context, order *models.Order) (string, error)
	RequestCancellation(ctx context.Context, orderID, userID int64) (string, error)
	GetOrderByID(ctx context.Context, id int64) (*models.Order, error)
	GetOrdersByUserID(ctx context.Context, userID int64) ([]models.Order, error)
}

// Locker grants per-key mutual exclusion. Implemented by lock.Manager.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key, token string) bool
}

// OrderCoordinator orchestrates one order-creation request: lock the
// product, reserve stock and persist the order in one transaction, release
// the lock. Confirmation and cancellation happen asynchronously through the
// outbox relay and the event consumer; the request path never waits for
// them.
type OrderCoordinator struct {
	orders OrderStore
	locks  Locker
	logger *zap.Logger
}

// NewOrderCoordinator creates a new order coordinator
func NewOrderCoordinator(orders OrderStore, locks Locker) *OrderCoordinator {
	return &OrderCoordinator{
		orders: orders,
		locks:  locks,
		logger: util.GetLogger(),
	}
}

// CreateOrderRequest represents a request to create an order
type CreateOrderRequest struct {
	ProductID int64 `json:"product_id" binding:"required"`
	Quantity  int   `json:"quantity" binding:"required,min=1"`
}

// CreateOrderResponse represents the response after creating an order
type CreateOrderResponse struct {
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// CreateOrder runs the order-creation flow for the given caller. The lock
// only serializes the reservation step; exceeding its wait deadline aborts
// with ErrLockTimeout before any side effect. A stock shortfall is terminal
// for the request and produces no event.
func (c *OrderCoordinator) CreateOrder(ctx context.Context, userID int64, req *CreateOrderRequest) (*CreateOrderResponse, error) {
	ctx, span := util.StartSpan(ctx, "OrderCoordinator.CreateOrder")
	defer span.End()

	lockKey := fmt.Sprintf("product:%d", req.ProductID)
	token, err := c.locks.Acquire(ctx, lockKey)
	if err != nil {
		if errors.Is(err, models.ErrLockTimeout) {
			util.OrdersFailedTotal.WithLabelValues("lock_timeout").Inc()
		}
		return nil, err
	}
	defer c.locks.Release(ctx, lockKey, token)

	order := &models.Order{
		UserID:    userID,
		ProductID: req.ProductID,
		Quantity:  req.Quantity,
	}

	eventID, err := c.orders.CreateOrderWithReservation(ctx, order)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrInsufficientStock):
			util.OrdersFailedTotal.WithLabelValues("insufficient_stock").Inc()
			util.ReservationsFailedTotal.WithLabelValues("insufficient_stock").Inc()
		case errors.Is(err, models.ErrProductNotFound):
			util.OrdersFailedTotal.WithLabelValues("unknown_product").Inc()
		default:
			util.OrdersFailedTotal.WithLabelValues("db_error").Inc()
		}
		return nil, err
	}

	util.OrdersCreatedTotal.Inc()
	c.logger.Info("Order created with reservation",
		zap.Int64("order_id", order.ID),
		zap.Int64("product_id", order.ProductID),
		zap.Int("quantity", order.Quantity),
		zap.String("event_id", eventID))

	return &CreateOrderResponse{
		OrderID: order.ID,
		Status:  order.Status,
	}, nil
}

// CancelOrder requests asynchronous cancellation of a pending order. The
// order flips to CANCELLED and the reservation is released when the
// ORDER_CANCELLED event comes back through the consumer.
func (c *OrderCoordinator) CancelOrder(ctx context.Context, userID, orderID int64) error {
	ctx, span := util.StartSpan(ctx, "OrderCoordinator.CancelOrder")
	defer span.End()

	eventID, err := c.orders.RequestCancellation(ctx, orderID, userID)
	if err != nil {
		return err
	}

	c.logger.Info("Order cancellation requested",
		zap.Int64("order_id", orderID),
		zap.String("event_id", eventID))
	return nil
}

// GetOrder retrieves an order by ID
func (c *OrderCoordinator) GetOrder(ctx context.Context, orderID int64) (*models.Order, error) {
	return c.orders.GetOrderByID(ctx, orderID)
}

// ListUserOrders retrieves all orders placed by the caller
func (c *OrderCoordinator) ListUserOrders(ctx context.Context, userID int64) ([]models.Order, error) {
	return c.orders.GetOrdersByUserID(ctx, userID)
}
