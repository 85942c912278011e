package partner

import (
	"errors"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/pkg/errs"
)

const (
	// RatingMin is the lowest possible partner rating.
	RatingMin = 1.0
	// RatingMax is the highest possible partner rating.
	RatingMax = 5.0
)

// ErrPartnerIsNotConstructed is returned when a Partner instance was not
// created through the NewPartner or RestorePartner factory methods.
var ErrPartnerIsNotConstructed = errors.New("Partner must be created via NewPartner or RestorePartner")

// Partner represents a delivery partner in the campus marketplace.
//
// The aggregate holds the profile the matching algorithms read: rating and
// delivery count feed the scoring strategies, the priority-class flag drives
// first-look dispatch and the daily cap, and the vehicle determines assumed
// travel speed. The partner's live position is written by the tracking
// service on every location ping.
//
// Invariants:
//   - id and name are non-empty
//   - rating stays within [RatingMin, RatingMax]
//   - totalDeliveries is never negative
//   - currentLocation, when present, is a constructed GeoPoint
type Partner struct {
	id              string
	name            string
	online          bool
	active          bool
	rating          float64
	totalDeliveries int
	priorityClass   bool
	vehicle         Vehicle
	currentLocation *kernel.GeoPoint
	lastLocationAt  *time.Time

	isConstructed bool
}

// NewPartner creates a partner profile with no deliveries and a neutral
// mid-scale rating. New partners start offline.
func NewPartner(id string, name string, priorityClass bool, vehicle Vehicle) (*Partner, error) {
	p := &Partner{
		active:        true,
		rating:        3.0,
		priorityClass: priorityClass,
		isConstructed: true,
	}

	if err := errors.Join(
		p.setID(id),
		p.setName(name),
		p.setVehicle(vehicle),
	); err != nil {
		return nil, err
	}

	return p, nil
}

// RestorePartner reconstructs a partner from persisted state, re-validating
// every invariant. Used by repository adapters.
func RestorePartner(
	id string,
	name string,
	online bool,
	active bool,
	rating float64,
	totalDeliveries int,
	priorityClass bool,
	vehicle Vehicle,
	currentLocation *kernel.GeoPoint,
	lastLocationAt *time.Time,
) (*Partner, error) {
	p := &Partner{
		online:         online,
		active:         active,
		priorityClass:  priorityClass,
		lastLocationAt: lastLocationAt,
		isConstructed:  true,
	}

	if err := errors.Join(
		p.setID(id),
		p.setName(name),
		p.setVehicle(vehicle),
		p.setRating(rating),
		p.setTotalDeliveries(totalDeliveries),
		p.setCurrentLocation(currentLocation),
	); err != nil {
		return nil, err
	}

	return p, nil
}

// Validate ensures the Partner was created through a factory method.
func (p *Partner) Validate() error {
	if p == nil || !p.isConstructed {
		return ErrPartnerIsNotConstructed
	}
	return nil
}

// ID returns the opaque partner identifier.
func (p *Partner) ID() string {
	return p.id
}

// Name returns the partner's display name.
func (p *Partner) Name() string {
	return p.name
}

// IsOnline reports whether the partner is currently accepting work.
func (p *Partner) IsOnline() bool {
	return p.online
}

// IsActive reports whether the partner account is enabled.
func (p *Partner) IsActive() bool {
	return p.active
}

// Rating returns the partner's rating on the [RatingMin, RatingMax] scale.
func (p *Partner) Rating() float64 {
	return p.rating
}

// TotalDeliveries returns the partner's lifetime completed delivery count.
func (p *Partner) TotalDeliveries() int {
	return p.totalDeliveries
}

// IsPriorityClass reports whether the partner belongs to the priority class
// (e.g. a student partner) that gets first look in dispatch and is subject
// to the daily delivery cap.
func (p *Partner) IsPriorityClass() bool {
	return p.priorityClass
}

// Vehicle returns the partner's mode of transport.
func (p *Partner) Vehicle() Vehicle {
	return p.vehicle
}

// CurrentLocation returns the last known position, or nil if the partner has
// never reported one.
func (p *Partner) CurrentLocation() *kernel.GeoPoint {
	return p.currentLocation
}

// LastLocationAt returns when the partner last reported a position, or nil.
func (p *Partner) LastLocationAt() *time.Time {
	return p.lastLocationAt
}

// GoOnline marks the partner as accepting work.
func (p *Partner) GoOnline() {
	p.online = true
}

// GoOffline marks the partner as unavailable for new work.
func (p *Partner) GoOffline() {
	p.online = false
}

// UpdateLocation records a new live position and its timestamp.
func (p *Partner) UpdateLocation(location kernel.GeoPoint, at time.Time) error {
	if err := location.Validate(); err != nil {
		return err
	}

	p.currentLocation = &location
	p.lastLocationAt = &at
	return nil
}

// RecordDelivery increments the lifetime delivery counter.
func (p *Partner) RecordDelivery() {
	p.totalDeliveries++
}

// UpdateRating replaces the partner's rating, keeping it within bounds.
func (p *Partner) UpdateRating(rating float64) error {
	return p.setRating(rating)
}

// EstimateTravelTime returns the time the partner needs to cover the given
// distance with its vehicle's assumed average speed.
func (p *Partner) EstimateTravelTime(distanceKm float64) time.Duration {
	hours := distanceKm / p.vehicle.SpeedKmh()
	return time.Duration(hours * float64(time.Hour))
}

func (p *Partner) setID(id string) error {
	if id == "" {
		return errs.NewValueIsRequiredError("partnerId")
	}
	p.id = id
	return nil
}

func (p *Partner) setName(name string) error {
	if name == "" {
		return errs.NewValueIsRequiredError("name")
	}
	p.name = name
	return nil
}

func (p *Partner) setVehicle(vehicle Vehicle) error {
	if err := vehicle.Validate(); err != nil {
		return err
	}
	p.vehicle = vehicle
	return nil
}

func (p *Partner) setRating(rating float64) error {
	if rating < RatingMin || rating > RatingMax {
		return errs.NewValueIsOutOfRangeError("rating", rating, RatingMin, RatingMax)
	}
	p.rating = rating
	return nil
}

func (p *Partner) setTotalDeliveries(count int) error {
	if count < 0 {
		return errs.NewValueIsInvalidErrorWithCause("totalDeliveries",
			errors.New("delivery count cannot be negative"))
	}
	p.totalDeliveries = count
	return nil
}

func (p *Partner) setCurrentLocation(loc *kernel.GeoPoint) error {
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return err
		}
	}
	p.currentLocation = loc
	return nil
}
