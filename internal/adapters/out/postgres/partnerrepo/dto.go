// Package partnerrepo persists delivery partner aggregates with GORM.
package partnerrepo

import (
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/partner"
)

// PartnerDTO is the database representation of a delivery partner.
type PartnerDTO struct {
	ID              string `gorm:"type:uuid;primaryKey"`
	Name            string
	Online          bool `gorm:"index"`
	Active          bool
	Rating          float64
	TotalDeliveries int
	PriorityClass   bool
	Vehicle         string

	CurrentLat     *float64
	CurrentLng     *float64
	LastLocationAt *time.Time
}

// TableName overrides GORM's default naming to use "partners".
func (PartnerDTO) TableName() string {
	return "partners"
}

// fromDomain converts a partner aggregate to its database representation.
func fromDomain(aggregate *partner.Partner) PartnerDTO {
	dto := PartnerDTO{
		ID:              aggregate.ID(),
		Name:            aggregate.Name(),
		Online:          aggregate.IsOnline(),
		Active:          aggregate.IsActive(),
		Rating:          aggregate.Rating(),
		TotalDeliveries: aggregate.TotalDeliveries(),
		PriorityClass:   aggregate.IsPriorityClass(),
		Vehicle:         string(aggregate.Vehicle()),
		LastLocationAt:  aggregate.LastLocationAt(),
	}

	if loc := aggregate.CurrentLocation(); loc != nil {
		lat, lng := loc.Lat(), loc.Lng()
		dto.CurrentLat = &lat
		dto.CurrentLng = &lng
	}
	return dto
}

// toDomain reconstructs the partner aggregate from its database row.
func toDomain(dto PartnerDTO) (*partner.Partner, error) {
	var location *kernel.GeoPoint
	if dto.CurrentLat != nil && dto.CurrentLng != nil {
		point, err := kernel.NewGeoPoint(*dto.CurrentLat, *dto.CurrentLng)
		if err != nil {
			return nil, err
		}
		location = &point
	}

	return partner.RestorePartner(
		dto.ID,
		dto.Name,
		dto.Online,
		dto.Active,
		dto.Rating,
		dto.TotalDeliveries,
		dto.PriorityClass,
		partner.Vehicle(dto.Vehicle),
		location,
		dto.LastLocationAt,
	)
}
