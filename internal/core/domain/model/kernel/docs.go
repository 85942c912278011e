// Package kernel provides core domain primitives for the campus delivery system.
//
// The package includes:
//   - GeoPoint: A value object for WGS84 coordinates with great-circle math
//   - ConstructorGuard: A defensive programming pattern to ensure proper object construction
//
// These primitives enforce domain invariants and validation rules, ensuring that
// domain objects are always in a valid state. They are immutable and thread-safe,
// making them suitable for concurrent use.
package kernel
