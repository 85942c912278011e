// Package services contains stateless domain services that implement business
// logic spanning multiple aggregates.
//
// The partner scorer ranks online delivery partners for an order using a
// weighted combination of proximity, rating, experience, and availability.
// The weights come from a named strategy so callers can trade distance
// against quality without touching the scoring math.
package services
