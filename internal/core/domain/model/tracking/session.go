// Package tracking contains the live-delivery tracking primitives: the
// per-delivery tracking session and the geofence definitions evaluated
// against every partner position update.
//
// Sessions are transient in-memory state owned by the tracking service,
// keyed by (partnerId, orderId). A completed session is sealed and handed to
// the external store; the live map forgets it.
package tracking

import (
	"errors"
	"fmt"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/pkg/errs"
)

// ErrSessionIsNotConstructed is returned when a Session instance was not
// created through the NewSession factory method.
var ErrSessionIsNotConstructed = errors.New("Session must be created via NewSession")

// SessionStatus represents the lifecycle state of a tracking session.
type SessionStatus string

const (
	// SessionStarted means the session exists but no position update has
	// arrived since the start fix.
	SessionStarted SessionStatus = "started"
	// SessionInProgress means at least one position update extended the route.
	SessionInProgress SessionStatus = "in_progress"
	// SessionCompleted means the delivery finished and the session is sealed.
	SessionCompleted SessionStatus = "completed"
	// SessionCancelled means the delivery was abandoned mid-flight.
	SessionCancelled SessionStatus = "cancelled"
)

// RoutePoint is one position fix on a session's route.
type RoutePoint struct {
	Location kernel.GeoPoint
	At       time.Time
}

// Session is the live record of a single partner's movement during one
// delivery. The route grows with every location ping, the traveled distance
// accumulates pairwise Haversine segments, and the ETA is recomputed from
// the latest position.
//
// Sessions are not safe for concurrent use on their own; the tracking
// service serializes access per session.
type Session struct {
	id            string
	partnerID     string
	orderID       string
	startLocation kernel.GeoPoint
	route         []RoutePoint
	startTime     time.Time
	eta           *time.Time
	completedAt   *time.Time
	distanceKm    float64
	status        SessionStatus

	isConstructed bool
}

// SessionKey identifies a live session by its (partnerId, orderId) pair.
func SessionKey(partnerID string, orderID string) string {
	return partnerID + "/" + orderID
}

// NewSession starts a tracking session for one partner delivering one order.
func NewSession(id string, partnerID string, orderID string, start kernel.GeoPoint, startedAt time.Time) (*Session, error) {
	if id == "" {
		return nil, errs.NewValueIsRequiredError("sessionId")
	}
	if partnerID == "" {
		return nil, errs.NewValueIsRequiredError("partnerId")
	}
	if orderID == "" {
		return nil, errs.NewValueIsRequiredError("orderId")
	}
	if err := start.Validate(); err != nil {
		return nil, err
	}

	return &Session{
		id:            id,
		partnerID:     partnerID,
		orderID:       orderID,
		startLocation: start,
		route:         []RoutePoint{{Location: start, At: startedAt}},
		startTime:     startedAt,
		status:        SessionStarted,
		isConstructed: true,
	}, nil
}

// Validate ensures the Session was created through NewSession.
func (s *Session) Validate() error {
	if s == nil || !s.isConstructed {
		return ErrSessionIsNotConstructed
	}
	return nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// PartnerID returns the delivering partner's id.
func (s *Session) PartnerID() string {
	return s.partnerID
}

// OrderID returns the delivered order's id.
func (s *Session) OrderID() string {
	return s.orderID
}

// Key returns the (partnerId, orderId) session key.
func (s *Session) Key() string {
	return SessionKey(s.partnerID, s.orderID)
}

// StartLocation returns where the session began.
func (s *Session) StartLocation() kernel.GeoPoint {
	return s.startLocation
}

// CurrentLocation returns the most recent position fix.
func (s *Session) CurrentLocation() kernel.GeoPoint {
	return s.route[len(s.route)-1].Location
}

// Route returns the ordered sequence of position fixes.
func (s *Session) Route() []RoutePoint {
	return s.route
}

// StartTime returns when the session began.
func (s *Session) StartTime() time.Time {
	return s.startTime
}

// EstimatedDeliveryTime returns the latest computed ETA, or nil.
func (s *Session) EstimatedDeliveryTime() *time.Time {
	return s.eta
}

// CompletedAt returns the actual delivery time for sealed sessions, or nil.
func (s *Session) CompletedAt() *time.Time {
	return s.completedAt
}

// DistanceTraveledKm returns the accumulated route distance in kilometers.
func (s *Session) DistanceTraveledKm() float64 {
	return s.distanceKm
}

// Status returns the session's lifecycle state.
func (s *Session) Status() SessionStatus {
	return s.status
}

// IsActive reports whether the session still accepts position updates.
func (s *Session) IsActive() bool {
	return s.status == SessionStarted || s.status == SessionInProgress
}

// Advance extends the route with a new position fix, accumulating the
// Haversine distance from the previous fix. Updates are rejected once the
// session is sealed.
func (s *Session) Advance(location kernel.GeoPoint, at time.Time) error {
	if !s.IsActive() {
		return errs.NewValueIsInvalidErrorWithCause("session",
			fmt.Errorf("session is %s and no longer accepts updates", s.status))
	}

	segment, err := s.CurrentLocation().DistanceKm(location)
	if err != nil {
		return err
	}

	s.route = append(s.route, RoutePoint{Location: location, At: at})
	s.distanceKm += segment
	s.status = SessionInProgress
	return nil
}

// SetEstimatedDeliveryTime records a freshly computed ETA.
func (s *Session) SetEstimatedDeliveryTime(eta time.Time) {
	s.eta = &eta
}

// Complete seals the session: the traveled distance is final and the actual
// delivery time is recorded. Completing a sealed session fails.
func (s *Session) Complete(at time.Time) error {
	if !s.IsActive() {
		return errs.NewValueIsInvalidErrorWithCause("session",
			fmt.Errorf("session is already %s", s.status))
	}

	s.status = SessionCompleted
	s.completedAt = &at
	return nil
}

// Cancel abandons an active session.
func (s *Session) Cancel(at time.Time) error {
	if !s.IsActive() {
		return errs.NewValueIsInvalidErrorWithCause("session",
			fmt.Errorf("session is already %s", s.status))
	}

	s.status = SessionCancelled
	s.completedAt = &at
	return nil
}
