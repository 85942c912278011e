// Package order contains the Order aggregate and its lifecycle vocabulary.
//
// The Order aggregate is owned by the external store; the orchestration core
// mutates a controlled subset of its fields: status, payment state, partner
// assignment, and the lifecycle timestamps. The legal status transitions
// themselves are defined by the workflow engine's rule table; this package
// only enforces the structural invariants that must hold for any order:
//
//   - a single current status from the Status enum
//   - lifecycle timestamps set exactly once, never before placement
//   - a partner assignment present if and only if the status requires one
package order
