// Package trackingsvc maintains the live location state of delivery
// partners: a bounded per-partner location history, the active tracking
// session of each delivery, delivery time estimates, and geofence
// entry/exit detection.
//
// All live state is in memory. Each partner has its own lock, so position
// updates for different partners never contend. The maintenance job prunes
// stale history, silent partners, and finished sessions.
package trackingsvc
