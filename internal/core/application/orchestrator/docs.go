// Package orchestrator is the workflow integration layer. It wraps the
// workflow engine with the persistence, notification, and inventory side of
// the system: use cases validate their input, adjust aggregate state inside
// a unit of work, drive the engine transition, and apply the declared side
// effects of committed transitions.
//
// Side effects never veto a transition. A transition that commits stays
// committed even when a notification or inventory call fails afterwards;
// such failures are logged and surfaced as partial failures.
package orchestrator
