// Package workflow implements the order workflow engine: the timed state
// machine that drives an order from placement to completion.
//
// The engine holds the canonical rule table (which transitions are legal,
// what triggers them, and which preconditions gate them), owns a single
// cancellable timeout timer per in-flight order, and emits typed transition
// and alert events to an injected sink. It performs no I/O of its own beyond
// the injected order store: side effects are declared on the emitted event
// and executed by the integration layer.
//
// Concurrency: all mutating operations on one order are serialized by a
// per-order lock; operations on different orders proceed in parallel. Arming
// a timeout atomically cancels the previous one, and a fired timer
// re-validates the order's current status before acting, so duplicate or
// stale firings are no-ops.
package workflow
