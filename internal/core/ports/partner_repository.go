package ports

import (
	"context"

	"campusdelivery/internal/core/domain/model/partner"
)

// PartnerRepository is the persistence contract for delivery partner
// aggregates.
type PartnerRepository interface {
	// Add persists a new partner aggregate.
	Add(ctx context.Context, aggregate *partner.Partner) error

	// Update persists changes to an existing partner aggregate.
	Update(ctx context.Context, aggregate *partner.Partner) error

	// Get retrieves a partner by id. Unknown ids yield errs.ErrObjectNotFound.
	Get(ctx context.Context, id string) (*partner.Partner, error)

	// GetAllOnline retrieves every partner currently flagged online.
	// Matching filters this view further by distance and availability.
	GetAllOnline(ctx context.Context) ([]*partner.Partner, error)
}
