package partner

import (
	"fmt"

	"campusdelivery/internal/pkg/errs"
)

// Vehicle is the mode of transport a delivery partner uses. It determines
// the average speed assumed when estimating delivery times for assignments.
type Vehicle string

const (
	// VehicleWalking is a partner on foot.
	VehicleWalking Vehicle = "walking"
	// VehicleBicycle is a partner on a bicycle.
	VehicleBicycle Vehicle = "bicycle"
	// VehicleScooter is a partner on an electric scooter.
	VehicleScooter Vehicle = "scooter"
	// VehicleMotorbike is a partner on a motorbike.
	VehicleMotorbike Vehicle = "motorbike"
)

// vehicleSpeedsKmh maps each vehicle to its assumed average speed in km/h.
func vehicleSpeedsKmh() map[Vehicle]float64 {
	return map[Vehicle]float64{
		VehicleWalking:   5,
		VehicleBicycle:   12,
		VehicleScooter:   18,
		VehicleMotorbike: 25,
	}
}

// Validate checks that the Vehicle is one of the known modes.
func (v Vehicle) Validate() error {
	if _, ok := vehicleSpeedsKmh()[v]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("vehicle",
			fmt.Errorf("%q is not a valid vehicle", string(v)))
	}
	return nil
}

// String implements fmt.Stringer.
func (v Vehicle) String() string {
	return string(v)
}

// SpeedKmh returns the assumed average speed for the vehicle in km/h.
// Unknown vehicles fall back to walking speed.
func (v Vehicle) SpeedKmh() float64 {
	if speed, ok := vehicleSpeedsKmh()[v]; ok {
		return speed
	}
	return vehicleSpeedsKmh()[VehicleWalking]
}
