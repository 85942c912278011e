// Package ports defines the contracts between the application core and
// infrastructure. Adapters implement them; use cases depend only on the
// interfaces, which keeps the core testable with mocks.
package ports

import (
	"context"

	"campusdelivery/internal/core/domain/model/order"
)

// OrderRepository is the persistence contract for order aggregates.
type OrderRepository interface {
	// Add persists a new order aggregate.
	Add(ctx context.Context, aggregate *order.Order) error

	// Update persists changes to an existing order aggregate.
	Update(ctx context.Context, aggregate *order.Order) error

	// Get retrieves an order by id. Unknown ids yield errs.ErrObjectNotFound.
	Get(ctx context.Context, id string) (*order.Order, error)

	// GetAllActive retrieves every order in a non-terminal status.
	// Used to re-derive workflow timers on startup.
	GetAllActive(ctx context.Context) ([]*order.Order, error)

	// GetAllInStatus retrieves every order currently in the given status.
	GetAllInStatus(ctx context.Context, status order.Status) ([]*order.Order, error)
}
