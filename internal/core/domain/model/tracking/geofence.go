package tracking

import (
	"fmt"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/pkg/errs"
)

// GeofenceType classifies what crossing into a geofence means.
type GeofenceType string

const (
	// GeofencePickup marks a vendor pickup zone.
	GeofencePickup GeofenceType = "pickup"
	// GeofenceDelivery marks a customer delivery zone.
	GeofenceDelivery GeofenceType = "delivery"
	// GeofenceCampus marks the campus boundary.
	GeofenceCampus GeofenceType = "campus"
	// GeofenceRestricted marks a zone partners should not enter.
	GeofenceRestricted GeofenceType = "restricted"
)

// Validate checks that the GeofenceType is one of the known kinds.
func (t GeofenceType) Validate() error {
	switch t {
	case GeofencePickup, GeofenceDelivery, GeofenceCampus, GeofenceRestricted:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("geofenceType",
			fmt.Errorf("%q is not a valid geofence type", string(t)))
	}
}

// Geofence is a named circular region. Crossing into it triggers an event.
// Geofences are static or semi-static configuration, not order-scoped.
type Geofence struct {
	id           string
	name         string
	center       kernel.GeoPoint
	radiusMeters float64
	fenceType    GeofenceType
}

// NewGeofence creates a geofence with a validated center, positive radius,
// and known type.
func NewGeofence(id string, name string, center kernel.GeoPoint, radiusMeters float64, fenceType GeofenceType) (*Geofence, error) {
	if id == "" {
		return nil, errs.NewValueIsRequiredError("geofenceId")
	}
	if name == "" {
		return nil, errs.NewValueIsRequiredError("name")
	}
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if radiusMeters <= 0 {
		return nil, errs.NewValueIsInvalidErrorWithCause("radiusMeters",
			fmt.Errorf("%f is not greater than 0", radiusMeters))
	}
	if err := fenceType.Validate(); err != nil {
		return nil, err
	}

	return &Geofence{
		id:           id,
		name:         name,
		center:       center,
		radiusMeters: radiusMeters,
		fenceType:    fenceType,
	}, nil
}

// ID returns the geofence identifier.
func (g *Geofence) ID() string {
	return g.id
}

// Name returns the human-readable geofence name.
func (g *Geofence) Name() string {
	return g.name
}

// Center returns the geofence center.
func (g *Geofence) Center() kernel.GeoPoint {
	return g.center
}

// RadiusMeters returns the geofence radius in meters.
func (g *Geofence) RadiusMeters() float64 {
	return g.radiusMeters
}

// Type returns the geofence classification.
func (g *Geofence) Type() GeofenceType {
	return g.fenceType
}

// Contains reports whether the given position lies within the geofence.
func (g *Geofence) Contains(position kernel.GeoPoint) (bool, error) {
	return g.center.WithinRadiusMeters(position, g.radiusMeters)
}
