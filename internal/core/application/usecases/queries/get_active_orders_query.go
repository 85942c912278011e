// Package queries contains read-side queries that bypass the aggregate
// repositories and read the database directly.
package queries

import (
	"errors"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
)

var ErrGetActiveOrdersQueryIsNotConstructed = errors.New(
	"GetActiveOrdersQuery must be created via NewGetActiveOrdersQuery constructor",
)

// GetActiveOrdersQuery retrieves every order in a non-terminal status for
// monitoring and dispatch dashboards.
type GetActiveOrdersQuery struct {
	guard kernel.ConstructorGuard
}

// NewGetActiveOrdersQuery creates the parameterless active orders query.
func NewGetActiveOrdersQuery() GetActiveOrdersQuery {
	return GetActiveOrdersQuery{guard: kernel.NewConstructorGuard()}
}

// Validate ensures the query was created through the constructor.
func (q GetActiveOrdersQuery) Validate() error {
	return q.guard.Validate(ErrGetActiveOrdersQueryIsNotConstructed)
}

// GetActiveOrdersQueryResponse is one in-flight order row.
type GetActiveOrdersQueryResponse struct {
	ID                string
	Status            string
	PaymentStatus     string
	AssignedPartnerID *string
	DeliveryLat       *float64
	DeliveryLng       *float64
	PlacedAt          time.Time
}
