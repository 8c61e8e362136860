package service

import (
	"context"

	"reservation-service/internal/models"
	"reservation-service/internal/util"

	"go.uber.org/zap"
)

// InventoryStore is the admin surface of the inventory table. Implemented by
// store.Store.
type InventoryStore interface {
	CreateInventory(ctx context.Context, inv *models.Inventory) error
	GetInventory(ctx context.Context, productID int64) (*models.Inventory, error)
	ListInventory(ctx context.Context) ([]models.Inventory, error)
	CheckAvailability(ctx context.Context, productID int64, qty int) (bool, error)
}

// InventoryService exposes read and seed operations on inventory. Stock
// counters are mutated only through the ledger operations driven by the
// coordinator and the event consumer.
type InventoryService struct {
	store  InventoryStore
	logger *zap.Logger
}

// NewInventoryService creates a new inventory service
func NewInventoryService(store InventoryStore) *InventoryService {
	return &InventoryService{store: store, logger: util.GetLogger()}
}

// CreateInventory seeds the stock record for a new product
func (s *InventoryService) CreateInventory(ctx context.Context, inv *models.Inventory) error {
	if err := s.store.CreateInventory(ctx, inv); err != nil {
		return err
	}
	s.logger.Info("Inventory created",
		zap.Int64("product_id", inv.ProductID),
		zap.Int("quantity", inv.Quantity))
	return nil
}

// GetInventory retrieves the stock record for a product
func (s *InventoryService) GetInventory(ctx context.Context, productID int64) (*models.Inventory, error) {
	return s.store.GetInventory(ctx, productID)
}

// ListInventory retrieves all stock records
func (s *InventoryService) ListInventory(ctx context.Context) ([]models.Inventory, error) {
	return s.store.ListInventory(ctx)
}

// CheckAvailability reports whether qty units are currently available
func (s *InventoryService) CheckAvailability(ctx context.Context, productID int64, qty int) (bool, error) {
	return s.store.CheckAvailability(ctx, productID, qty)
}
