package kernel

import "errors"

// ErrDefaultConstructorGuard is returned by ConstructorGuard.Validate when no
// specific validation error is provided for an unconstructed object.
var ErrDefaultConstructorGuard = errors.New("object must be created via its constructor")

// ConstructorGuard ensures value objects are only created through their
// designated constructor functions. Embedding a guard in a struct makes the
// zero value detectably invalid: the internal flag is only set by
// NewConstructorGuard, so any struct literal or zero value fails validation.
//
// Example:
//
//	type GeoPoint struct {
//	    lat, lng float64
//	    guard    ConstructorGuard
//	}
//
//	func NewGeoPoint(lat, lng float64) (GeoPoint, error) {
//	    // ... validate ranges ...
//	    return GeoPoint{lat: lat, lng: lng, guard: NewConstructorGuard()}, nil
//	}
//
//	func (p GeoPoint) Validate() error {
//	    return p.guard.Validate(ErrGeoPointIsNotConstructed)
//	}
type ConstructorGuard struct {
	isConstructed bool
}

// NewConstructorGuard creates a guard marking an object as properly constructed.
// Call this in the constructor of every guarded domain object.
func NewConstructorGuard() ConstructorGuard {
	return ConstructorGuard{isConstructed: true}
}

// Validate returns nil if the guarded object was created through its
// constructor, validationError otherwise. A nil validationError falls back to
// ErrDefaultConstructorGuard so validation never silently passes.
func (g ConstructorGuard) Validate(validationError error) error {
	if validationError == nil {
		validationError = ErrDefaultConstructorGuard
	}
	if !g.isConstructed {
		return validationError
	}
	return nil
}
