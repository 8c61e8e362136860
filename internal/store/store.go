package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"reservation-service/internal/models"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

type Store struct {
	db *sqlx.DB
}

// NewStore creates a new database store
func NewStore(databaseURL string) (*Store, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// GetDB returns the underlying database connection
func (s *Store) GetDB() *sqlx.DB {
	return s.db
}

// CreateInventory creates the stock record for a product
func (s *Store) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	query := `
		INSERT INTO inventory (product_id, name, quantity, reserved)
		VALUES ($1, $2, $3, 0)
		RETURNING updated_at`

	return s.db.GetContext(ctx, &inv.UpdatedAt, query,
		inv.ProductID, inv.Name, inv.Quantity)
}

// GetInventory retrieves inventory for a product
func (s *Store) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	var inv models.Inventory
	err := s.db.GetContext(ctx, &inv, "SELECT * FROM inventory WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return nil, models.ErrProductNotFound
	}
	if err != nil {
		return nil, err
	}
	return &inv, nil
}

// ListInventory retrieves all inventory records
func (s *Store) ListInventory(ctx context.Context) ([]models.Inventory, error) {
	var invs []models.Inventory
	err := s.db.SelectContext(ctx, &invs, "SELECT * FROM inventory ORDER BY product_id")
	return invs, err
}

// CheckAvailability reports whether the product has at least qty available
func (s *Store) CheckAvailability(ctx context.Context, productID int64, qty int) (bool, error) {
	var available int
	err := s.db.GetContext(ctx, &available,
		"SELECT quantity - reserved FROM inventory WHERE product_id = $1", productID)
	if err == sql.ErrNoRows {
		return false, models.ErrProductNotFound
	}
	if err != nil {
		return false, err
	}
	return available >= qty, nil
}

// reserveStock is the Try phase: it holds stock against an in-flight order
// without touching the owned quantity. The availability guard lives in the
// WHERE clause so the check and the increment are one atomic statement.
// Runs inside the order-creation transaction.
func reserveStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE inventory
		 SET reserved = reserved + $1, updated_at = NOW()
		 WHERE product_id = $2 AND quantity - reserved >= $1`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to reserve stock: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists,
			"SELECT EXISTS(SELECT 1 FROM inventory WHERE product_id = $1)", productID); err != nil {
			return err
		}
		if !exists {
			return models.ErrProductNotFound
		}
		return models.ErrInsufficientStock
	}
	return nil
}

// confirmStock is the Confirm phase: the reserved quantity becomes consumed
// stock. The guard rejects a confirm larger than what is reserved. Runs
// inside ConfirmOrder's transaction.
func confirmStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE inventory
		 SET quantity = quantity - $1, reserved = reserved - $1, updated_at = NOW()
		 WHERE product_id = $2 AND reserved >= $1`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to confirm stock: %w", err)
	}
	return checkLedgerGuard(res, productID, qty)
}

// cancelStock is the Cancel phase: reserved stock returns to the available
// pool, quantity untouched. Runs inside CancelOrder's transaction.
func cancelStock(ctx context.Context, tx *sqlx.Tx, productID int64, qty int) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE inventory
		 SET reserved = reserved - $1, updated_at = NOW()
		 WHERE product_id = $2 AND reserved >= $1`,
		qty, productID)
	if err != nil {
		return fmt.Errorf("failed to cancel stock: %w", err)
	}
	return checkLedgerGuard(res, productID, qty)
}

// ConfirmOrder finalizes one reservation: the order leaves PENDING and its
// reserved stock is consumed, in one transaction. The status transition is
// the gate that makes confirm and cancel mutually exclusive per order: the
// second of the two finds the order already finalized and fails before any
// inventory counter moves, so one order's event can never touch another
// order's reservation.
func (s *Store) ConfirmOrder(ctx context.Context, orderID, productID int64, qty int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionOrder(ctx, tx, orderID, models.OrderStatusConfirmed); err != nil {
		return err
	}
	if err := confirmStock(ctx, tx, productID, qty); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit confirmation: %w", err)
	}
	return nil
}

// CancelOrder rolls one reservation back: the order leaves PENDING and its
// reserved stock returns to the pool, in one transaction, gated the same way
// as ConfirmOrder.
func (s *Store) CancelOrder(ctx context.Context, orderID, productID int64, qty int) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := transitionOrder(ctx, tx, orderID, models.OrderStatusCancelled); err != nil {
		return err
	}
	if err := cancelStock(ctx, tx, productID, qty); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit cancellation: %w", err)
	}
	return nil
}

func checkLedgerGuard(res sql.Result, productID int64, qty int) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("product %d reserved below %d: %w", productID, qty, models.ErrReservationState)
	}
	return nil
}
