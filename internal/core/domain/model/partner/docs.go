// Package partner contains the delivery partner aggregate.
//
// Partners are owned by the external store; the orchestration core reads
// their profile (rating, experience, priority class, vehicle) for matching
// and keeps their last known position fresh through the tracking service.
// Priority-class partners (students) get first look in broadcast dispatch and
// are subject to a daily delivery cap.
package partner
