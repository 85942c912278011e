package ports

import (
	"context"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/model/tracking"
)

// NotificationPublisher delivers notifications triggered by workflow side
// effects and dispatch offers. Implementations are fire-and-forget: a failed
// notification is reported to the caller but never blocks or reverts the
// state change that produced it.
type NotificationPublisher interface {
	// NotifyCustomer informs the order's customer about a status change.
	NotifyCustomer(ctx context.Context, orderID string, message string) error

	// NotifyPartner informs one delivery partner, typically about an offer
	// or an overdue pickup.
	NotifyPartner(ctx context.Context, partnerID string, orderID string, message string) error

	// NotifyAdmin raises an operational alert to campus staff.
	NotifyAdmin(ctx context.Context, orderID string, message string) error
}

// InventoryService adjusts product stock as orders move through the
// workflow. Reserved stock is confirmed on delivery and released when the
// order is cancelled.
type InventoryService interface {
	// Reserve holds stock for each item of a newly confirmed order.
	Reserve(ctx context.Context, orderID string, items []order.Item) error

	// Release returns reserved stock after a cancellation or failure.
	Release(ctx context.Context, orderID string, items []order.Item) error

	// ConfirmSale converts the reservation into a sale on delivery.
	ConfirmSale(ctx context.Context, orderID string, items []order.Item) error
}

// Geocoder resolves a free-form campus address into coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (kernel.GeoPoint, error)
}

// TrackingSessionArchive keeps the historical record of finished tracking
// sessions. Live tracking state is in memory and eventually pruned; the
// archive is where a sealed session survives.
type TrackingSessionArchive interface {
	// ArchiveSession stores a sealed session.
	ArchiveSession(ctx context.Context, session *tracking.Session) error
}
