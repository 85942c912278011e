package queries

import (
	"errors"

	"campusdelivery/internal/core/domain/model/kernel"
)

var ErrGetOnlinePartnersQueryIsNotConstructed = errors.New(
	"GetOnlinePartnersQuery must be created via NewGetOnlinePartnersQuery constructor",
)

// GetOnlinePartnersQuery retrieves every partner currently accepting
// deliveries, for the partner directory view.
type GetOnlinePartnersQuery struct {
	guard kernel.ConstructorGuard
}

// NewGetOnlinePartnersQuery creates the parameterless online partners query.
func NewGetOnlinePartnersQuery() GetOnlinePartnersQuery {
	return GetOnlinePartnersQuery{guard: kernel.NewConstructorGuard()}
}

// Validate ensures the query was created through the constructor.
func (q GetOnlinePartnersQuery) Validate() error {
	return q.guard.Validate(ErrGetOnlinePartnersQueryIsNotConstructed)
}

// GetOnlinePartnersQueryResponse is one available partner row.
type GetOnlinePartnersQueryResponse struct {
	ID              string
	Name            string
	Rating          float64
	TotalDeliveries int
	PriorityClass   bool
	Vehicle         string
	CurrentLat      *float64
	CurrentLng      *float64
}
