// Package inventory provides an in-memory implementation of the inventory
// reservation port. Reservations live only for the lifetime of the process;
// a real stock system would sit behind the same interface.
package inventory

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/pkg/errs"
)

// InMemoryInventory implements ports.InventoryService with a mutex-guarded
// reservation table keyed by order id.
type InMemoryInventory struct {
	logger *slog.Logger

	mu           sync.RWMutex
	reservations map[string][]order.Item
}

// NewInMemoryInventory creates an empty inventory adapter.
func NewInMemoryInventory(logger *slog.Logger) *InMemoryInventory {
	return &InMemoryInventory{
		logger:       logger.With("component", "inventory"),
		reservations: make(map[string][]order.Item),
	}
}

// Reserve holds stock for the order. Reserving twice for the same order is
// an error so double confirmation cannot double-count stock.
func (inv *InMemoryInventory) Reserve(_ context.Context, orderID string, items []order.Item) error {
	if orderID == "" {
		return errs.NewValueIsRequiredError("orderId")
	}
	if len(items) == 0 {
		return errs.NewValueIsRequiredError("items")
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.reservations[orderID]; exists {
		return errs.NewValueIsInvalidErrorWithCause("orderId",
			fmt.Errorf("stock is already reserved for order %q", orderID))
	}

	reserved := make([]order.Item, len(items))
	copy(reserved, items)
	inv.reservations[orderID] = reserved

	inv.logger.Info("stock reserved", "order_id", orderID, "lines", len(items))
	return nil
}

// Release returns reserved stock to the pool. Releasing an order without a
// reservation is a no-op so cancellation retries stay idempotent.
func (inv *InMemoryInventory) Release(_ context.Context, orderID string, _ []order.Item) error {
	if orderID == "" {
		return errs.NewValueIsRequiredError("orderId")
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.reservations[orderID]; !exists {
		return nil
	}
	delete(inv.reservations, orderID)

	inv.logger.Info("stock released", "order_id", orderID)
	return nil
}

// ConfirmSale consumes the reservation after a completed delivery.
func (inv *InMemoryInventory) ConfirmSale(_ context.Context, orderID string, _ []order.Item) error {
	if orderID == "" {
		return errs.NewValueIsRequiredError("orderId")
	}

	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, exists := inv.reservations[orderID]; !exists {
		return errs.NewObjectNotFoundError("reservation", orderID)
	}
	delete(inv.reservations, orderID)

	inv.logger.Info("sale confirmed", "order_id", orderID)
	return nil
}

// Reserved reports whether the order currently holds a reservation.
func (inv *InMemoryInventory) Reserved(orderID string) bool {
	inv.mu.RLock()
	defer inv.mu.RUnlock()

	_, exists := inv.reservations[orderID]
	return exists
}
