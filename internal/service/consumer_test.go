package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"reservation-service/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLedger mirrors the store's transactional semantics: the guarded order
// status transition and the stock guard apply together or not at all, and an
// order already out of PENDING rejects any further confirm or cancel before
// inventory is touched.
type fakeLedger struct {
	mu        sync.Mutex
	inventory map[int64]*models.Inventory
	orders    map[int64]string
	failNext  error
	confirms  int
	cancels   int
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{
		inventory: make(map[int64]*models.Inventory),
		orders:    make(map[int64]string),
	}
}

func (f *fakeLedger) seed(productID int64, quantity, reserved int) {
	f.inventory[productID] = &models.Inventory{ProductID: productID, Quantity: quantity, Reserved: reserved}
}

func (f *fakeLedger) seedOrder(orderID int64) {
	f.orders[orderID] = models.OrderStatusPending
}

func (f *fakeLedger) finalize(orderID int64, status string, productID int64, qty int, apply func(*models.Inventory)) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext != nil {
		err := f.failNext
		f.failNext = nil
		return err
	}

	if f.orders[orderID] != models.OrderStatusPending {
		return fmt.Errorf("order %d is not pending: %w", orderID, models.ErrReservationState)
	}
	inv := f.inventory[productID]
	if inv == nil || inv.Reserved < qty {
		return fmt.Errorf("product %d: %w", productID, models.ErrReservationState)
	}

	f.orders[orderID] = status
	apply(inv)
	return nil
}

func (f *fakeLedger) ConfirmOrder(ctx context.Context, orderID, productID int64, qty int) error {
	err := f.finalize(orderID, models.OrderStatusConfirmed, productID, qty, func(inv *models.Inventory) {
		inv.Quantity -= qty
		inv.Reserved -= qty
		f.confirms++
	})
	return err
}

func (f *fakeLedger) CancelOrder(ctx context.Context, orderID, productID int64, qty int) error {
	err := f.finalize(orderID, models.OrderStatusCancelled, productID, qty, func(inv *models.Inventory) {
		inv.Reserved -= qty
		f.cancels++
	})
	return err
}

// fakeClaimer is an in-memory idempotency store.
type fakeClaimer struct {
	mu      sync.Mutex
	claimed map[string]bool
	failure error
}

func newFakeClaimer() *fakeClaimer {
	return &fakeClaimer{claimed: make(map[string]bool)}
}

func (f *fakeClaimer) Claim(ctx context.Context, eventID string, ttl time.Duration) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failure != nil {
		return false, f.failure
	}
	if f.claimed[eventID] {
		return false, nil
	}
	f.claimed[eventID] = true
	return true, nil
}

func (f *fakeClaimer) Unclaim(ctx context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.claimed, eventID)
	return nil
}

func eventMessage(t *testing.T, event *models.OrderEvent) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: payload}
}

func TestConfirmEventAppliesOnce(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID:   "m1",
		EventType: models.EventTypeOrderConfirmed,
		OrderID:   7,
		ProductID: 1,
		Quantity:  4,
	})

	require.NoError(t, ec.HandleMessage(context.Background(), msg))

	assert.Equal(t, 6, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
	assert.Equal(t, models.OrderStatusConfirmed, ledger.orders[7])

	// Redelivery of the same event id must be a no-op.
	require.NoError(t, ec.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, ledger.confirms)
	assert.Equal(t, 6, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
}

func TestCancelEventReleasesReservation(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID:   "m2",
		EventType: models.EventTypeOrderCancelled,
		OrderID:   7,
		ProductID: 1,
		Quantity:  4,
	})

	require.NoError(t, ec.HandleMessage(context.Background(), msg))

	assert.Equal(t, 10, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
	assert.Equal(t, models.OrderStatusCancelled, ledger.orders[7])
}

func TestConfirmThenCancelSameOrderParks(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	confirm := eventMessage(t, &models.OrderEvent{
		EventID: "m3", EventType: models.EventTypeOrderConfirmed, OrderID: 7, ProductID: 1, Quantity: 4,
	})
	cancel := eventMessage(t, &models.OrderEvent{
		EventID: "m4", EventType: models.EventTypeOrderCancelled, OrderID: 7, ProductID: 1, Quantity: 4,
	})

	require.NoError(t, ec.HandleMessage(context.Background(), confirm))

	// Only one of confirm/cancel may apply per order. The cancel carries a
	// different event id, so the idempotency claim cannot gate it; the
	// order status guard must. The consumer acks (parks) it untouched.
	require.NoError(t, ec.HandleMessage(context.Background(), cancel))

	assert.Equal(t, 6, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
	assert.Equal(t, 0, ledger.cancels)
	assert.Equal(t, models.OrderStatusConfirmed, ledger.orders[7])
}

func TestCancelAfterConfirmLeavesOtherReservationsIntact(t *testing.T) {
	// Two orders of 4 each hold reservations on the same product. A stale
	// cancel for the already-confirmed first order must not release stock
	// the second order still holds.
	ledger := newFakeLedger()
	ledger.seed(1, 10, 8)
	ledger.seedOrder(1)
	ledger.seedOrder(2)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	confirmA := eventMessage(t, &models.OrderEvent{
		EventID: "ma1", EventType: models.EventTypeOrderConfirmed, OrderID: 1, ProductID: 1, Quantity: 4,
	})
	cancelA := eventMessage(t, &models.OrderEvent{
		EventID: "ma2", EventType: models.EventTypeOrderCancelled, OrderID: 1, ProductID: 1, Quantity: 4,
	})
	confirmB := eventMessage(t, &models.OrderEvent{
		EventID: "mb1", EventType: models.EventTypeOrderConfirmed, OrderID: 2, ProductID: 1, Quantity: 4,
	})

	require.NoError(t, ec.HandleMessage(context.Background(), confirmA))
	require.NoError(t, ec.HandleMessage(context.Background(), cancelA))
	require.NoError(t, ec.HandleMessage(context.Background(), confirmB))

	// A confirmed, its stale cancel parked, B's reservation untouched by it
	// and confirmed normally.
	assert.Equal(t, 2, ledger.confirms)
	assert.Equal(t, 0, ledger.cancels)
	assert.Equal(t, 2, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
	assert.Equal(t, models.OrderStatusConfirmed, ledger.orders[1])
	assert.Equal(t, models.OrderStatusConfirmed, ledger.orders[2])
}

func TestTransientFailureReleasesClaim(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	ledger.failNext = fmt.Errorf("connection refused")
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID: "m5", EventType: models.EventTypeOrderConfirmed, OrderID: 7, ProductID: 1, Quantity: 4,
	})

	// First delivery fails transiently: error returned (no ack) and the
	// claim is released so the redelivery is not mistaken for a duplicate.
	err := ec.HandleMessage(context.Background(), msg)
	require.Error(t, err)
	assert.False(t, claims.claimed["m5"])
	assert.Equal(t, 0, ledger.confirms)

	// Redelivery succeeds.
	require.NoError(t, ec.HandleMessage(context.Background(), msg))
	assert.Equal(t, 1, ledger.confirms)
	assert.Equal(t, 6, ledger.inventory[1].Quantity)
}

func TestClaimStoreFailureLeavesMessageUnacked(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	claims.failure = fmt.Errorf("redis down")
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID: "m6", EventType: models.EventTypeOrderConfirmed, OrderID: 7, ProductID: 1, Quantity: 4,
	})

	err := ec.HandleMessage(context.Background(), msg)
	require.Error(t, err)
	assert.Equal(t, 0, ledger.confirms)
}

func TestUnknownEventTypeDropped(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID: "m7", EventType: "ORDER_EXPLODED", OrderID: 7, ProductID: 1, Quantity: 4,
	})

	require.NoError(t, ec.HandleMessage(context.Background(), msg))
	assert.Equal(t, 0, ledger.confirms)
	assert.Equal(t, 0, ledger.cancels)
}

func TestMalformedPayloadDropped(t *testing.T) {
	ledger := newFakeLedger()
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	err := ec.HandleMessage(context.Background(), kafka.Message{Value: []byte("not json")})
	assert.NoError(t, err)
}

func TestEventWithoutIDDropped(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventType: models.EventTypeOrderConfirmed, OrderID: 7, ProductID: 1, Quantity: 4,
	})

	// Dropped before claiming: an empty id must not occupy a shared claim
	// key that would swallow every later id-less event.
	require.NoError(t, ec.HandleMessage(context.Background(), msg))
	assert.Equal(t, 0, ledger.confirms)
	assert.Empty(t, claims.claimed)
}

func TestConcurrentRedeliveriesApplyOnce(t *testing.T) {
	ledger := newFakeLedger()
	ledger.seed(1, 10, 4)
	ledger.seedOrder(7)
	claims := newFakeClaimer()
	ec := NewEventConsumer(ledger, claims, time.Hour)

	msg := eventMessage(t, &models.OrderEvent{
		EventID: "m8", EventType: models.EventTypeOrderConfirmed, OrderID: 7, ProductID: 1, Quantity: 4,
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = ec.HandleMessage(context.Background(), msg)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ledger.confirms)
	assert.Equal(t, 6, ledger.inventory[1].Quantity)
	assert.Equal(t, 0, ledger.inventory[1].Reserved)
}
