package trackingsvc

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/tracking"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

const (
	// HistoryLimit bounds the per-partner location history ring.
	HistoryLimit = 100

	// PartnerSpeedKmh is the assumed average travel speed for delivery time
	// estimates during an active session.
	PartnerSpeedKmh = 15.0

	// historyMaxAge is how long individual location fixes are retained.
	historyMaxAge = 24 * time.Hour

	// silenceMaxAge is how long a partner may stay silent before its whole
	// tracking state is dropped.
	silenceMaxAge = time.Hour

	// sessionMaxAge is how long finished sessions stay queryable.
	sessionMaxAge = 24 * time.Hour
)

// GeofenceEventKind distinguishes entries from exits.
type GeofenceEventKind string

const (
	// GeofenceEntered means the partner moved into the fence.
	GeofenceEntered GeofenceEventKind = "entered"
	// GeofenceExited means the partner moved out of the fence.
	GeofenceExited GeofenceEventKind = "exited"
)

// GeofenceEvent is one boundary crossing detected during a position update.
// SessionID and OrderID are set when the partner has an active delivery
// session, tying pickup and delivery zone crossings to that delivery.
type GeofenceEvent struct {
	PartnerID  string
	GeofenceID string
	Name       string
	Type       tracking.GeofenceType
	Kind       GeofenceEventKind
	SessionID  string
	OrderID    string
	At         time.Time
}

// LocationFix is one recorded position of a partner.
type LocationFix struct {
	Point kernel.GeoPoint
	At    time.Time
}

// UpdateResult reports what a position update produced.
type UpdateResult struct {
	Events                []GeofenceEvent
	EstimatedDeliveryTime *time.Time
}

// sessionState pairs a session with the delivery destination it runs to.
type sessionState struct {
	session     *tracking.Session
	destination kernel.GeoPoint
}

// partnerState is the live tracking state of one partner. Guarded by its
// own lock so partners never contend with each other.
type partnerState struct {
	mu      sync.RWMutex
	history []LocationFix
	inside  map[string]bool
	session *sessionState
}

// Service is the live tracking engine.
type Service struct {
	uowFactory ports.UnitOfWorkFactory
	notifier   ports.NotificationPublisher
	archive    ports.TrackingSessionArchive
	logger     *slog.Logger
	now        func() time.Time

	mu        sync.RWMutex
	partners  map[string]*partnerState
	byOrder   map[string]*sessionState
	geofences map[string]*tracking.Geofence
}

// Option customizes a Service.
type Option func(*Service)

// WithTimeSource replaces the wall clock, for tests.
func WithTimeSource(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates a tracking service with the given static geofences.
// Finished sessions are handed to the archive before the live state forgets
// them.
func NewService(
	uowFactory ports.UnitOfWorkFactory,
	notifier ports.NotificationPublisher,
	archive ports.TrackingSessionArchive,
	geofences []*tracking.Geofence,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		uowFactory: uowFactory,
		notifier:   notifier,
		archive:    archive,
		logger:     logger.With("component", "tracking"),
		now:        time.Now,
		partners:   make(map[string]*partnerState),
		byOrder:    make(map[string]*sessionState),
		geofences:  make(map[string]*tracking.Geofence),
	}
	for _, g := range geofences {
		s.geofences[g.ID()] = g
	}

	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddGeofence registers a geofence at runtime.
func (s *Service) AddGeofence(g *tracking.Geofence) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.geofences[g.ID()] = g
}

// RemoveGeofence drops a geofence. Unknown ids are a no-op.
func (s *Service) RemoveGeofence(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.geofences, id)
}

// Geofences returns the registered geofences.
func (s *Service) Geofences() []*tracking.Geofence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tracking.Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, g)
	}
	return out
}

// UpdatePartnerLocation records a new position for a partner: the fix goes
// into the history ring and the partner aggregate, the active session (if
// any) advances and gets a fresh delivery estimate, and every geofence
// boundary crossing is reported.
func (s *Service) UpdatePartnerLocation(
	ctx context.Context,
	partnerID string,
	location kernel.GeoPoint,
	at time.Time,
) (UpdateResult, error) {
	if err := location.Validate(); err != nil {
		return UpdateResult{}, err
	}
	if err := s.persistPartnerLocation(ctx, partnerID, location, at); err != nil {
		return UpdateResult{}, err
	}

	state := s.stateFor(partnerID)
	fences := s.snapshotGeofences()

	state.mu.Lock()
	defer state.mu.Unlock()

	state.history = append(state.history, LocationFix{Point: location, At: at})
	if len(state.history) > HistoryLimit {
		state.history = state.history[len(state.history)-HistoryLimit:]
	}

	var result UpdateResult

	if state.session != nil && state.session.session.IsActive() {
		if err := state.session.session.Advance(location, at); err != nil {
			s.logger.WarnContext(ctx, "session advance failed",
				"partner_id", partnerID, "order_id", state.session.session.OrderID(), "error", err)
		} else if eta, ok := s.estimateArrival(location, state.session.destination, at); ok {
			state.session.session.SetEstimatedDeliveryTime(eta)
			result.EstimatedDeliveryTime = &eta
		}
	}

	result.Events = s.crossings(state, fences, partnerID, location, at)
	if state.session != nil && state.session.session.IsActive() {
		for i := range result.Events {
			result.Events[i].SessionID = state.session.session.ID()
			result.Events[i].OrderID = state.session.session.OrderID()
		}
	}
	for _, event := range result.Events {
		s.logger.InfoContext(ctx, "geofence crossing",
			"partner_id", partnerID, "geofence", event.Name, "kind", string(event.Kind), "order_id", event.OrderID)

		if event.Type == tracking.GeofenceRestricted && event.Kind == GeofenceEntered {
			msg := fmt.Sprintf("partner %s entered restricted zone %s", partnerID, event.Name)
			if err := s.notifier.NotifyAdmin(ctx, "", msg); err != nil {
				s.logger.WarnContext(ctx, "restricted zone alert failed", "partner_id", partnerID, "error", err)
			}
		}
	}

	return result, nil
}

// StartTrackingSession opens a tracking session for an assigned delivery.
// The partner must have reported at least one position.
func (s *Service) StartTrackingSession(ctx context.Context, partnerID string, orderID string) (*tracking.Session, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	ord, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	p, err := uow.PartnerRepository().Get(ctx, partnerID)
	if err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}

	if !ord.Status().RequiresPartner() {
		return nil, errs.NewValueIsInvalidErrorWithCause("orderId",
			fmt.Errorf("order %s is not in an active delivery status", orderID))
	}
	if ord.DeliveryLocation() == nil {
		return nil, errs.NewValueIsRequiredError("deliveryLocation")
	}
	if p.CurrentLocation() == nil {
		return nil, errs.NewValueIsRequiredError("partnerLocation")
	}

	now := s.now()
	session, err := tracking.NewSession(uuid.NewString(), partnerID, orderID, *p.CurrentLocation(), now)
	if err != nil {
		return nil, err
	}

	ss := &sessionState{session: session, destination: *ord.DeliveryLocation()}

	state := s.stateFor(partnerID)
	state.mu.Lock()
	state.session = ss
	state.mu.Unlock()

	s.mu.Lock()
	s.byOrder[orderID] = ss
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "tracking session started",
		"session_id", session.ID(), "partner_id", partnerID, "order_id", orderID)
	return session, nil
}

// CompleteTrackingSession seals the order's session and hands the sealed
// record to the archive. A cancelled session is marked as such; both
// outcomes stay queryable until pruned. An archive failure is logged, the
// completion itself stands.
func (s *Service) CompleteTrackingSession(ctx context.Context, orderID string, cancelled bool) (*tracking.Session, error) {
	s.mu.RLock()
	ss, ok := s.byOrder[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NewObjectNotFoundError("trackingSession", orderID)
	}

	state := s.stateFor(ss.session.PartnerID())
	state.mu.Lock()
	defer state.mu.Unlock()

	now := s.now()
	var err error
	if cancelled {
		err = ss.session.Cancel(now)
	} else {
		err = ss.session.Complete(now)
	}
	if err != nil {
		return nil, err
	}

	if state.session == ss {
		state.session = nil
	}

	if s.archive != nil {
		if archiveErr := s.archive.ArchiveSession(ctx, ss.session); archiveErr != nil {
			s.logger.WarnContext(ctx, "session archive failed",
				"session_id", ss.session.ID(), "order_id", orderID, "error", archiveErr)
		}
	}

	s.logger.InfoContext(ctx, "tracking session finished",
		"session_id", ss.session.ID(), "order_id", orderID, "cancelled", cancelled)
	return ss.session, nil
}

// GetPartnerLocation returns the latest fix and a copy of the history ring,
// newest last.
func (s *Service) GetPartnerLocation(_ context.Context, partnerID string) (LocationFix, []LocationFix, error) {
	s.mu.RLock()
	state, ok := s.partners[partnerID]
	s.mu.RUnlock()
	if !ok {
		return LocationFix{}, nil, errs.NewObjectNotFoundError("partnerLocation", partnerID)
	}

	state.mu.RLock()
	defer state.mu.RUnlock()

	if len(state.history) == 0 {
		return LocationFix{}, nil, errs.NewObjectNotFoundError("partnerLocation", partnerID)
	}

	history := make([]LocationFix, len(state.history))
	copy(history, state.history)
	return history[len(history)-1], history, nil
}

// GetTrackingSession returns the order's session, active or finished.
func (s *Service) GetTrackingSession(_ context.Context, orderID string) (*tracking.Session, error) {
	s.mu.RLock()
	ss, ok := s.byOrder[orderID]
	s.mu.RUnlock()
	if !ok {
		return nil, errs.NewObjectNotFoundError("trackingSession", orderID)
	}
	return ss.session, nil
}

// EstimatedMinutes reports the minutes remaining until the order's
// estimated delivery, when an active session has an estimate.
func (s *Service) EstimatedMinutes(_ context.Context, orderID string) (float64, bool) {
	s.mu.RLock()
	ss, ok := s.byOrder[orderID]
	s.mu.RUnlock()
	if !ok {
		return 0, false
	}

	state := s.stateFor(ss.session.PartnerID())
	state.mu.RLock()
	defer state.mu.RUnlock()

	if !ss.session.IsActive() {
		return 0, false
	}
	eta := ss.session.EstimatedDeliveryTime()
	if eta == nil {
		return 0, false
	}

	minutes := eta.Sub(s.now()).Minutes()
	if minutes < 0 {
		minutes = 0
	}
	return minutes, true
}

// Prune drops location fixes older than 24 hours, the entire state of
// partners silent for over an hour, and finished sessions older than 24
// hours. Run hourly by the maintenance job.
func (s *Service) Prune(ctx context.Context) (prunedPartners int, prunedSessions int) {
	now := s.now()

	s.mu.Lock()
	for partnerID, state := range s.partners {
		state.mu.Lock()

		kept := state.history[:0]
		for _, fix := range state.history {
			if now.Sub(fix.At) <= historyMaxAge {
				kept = append(kept, fix)
			}
		}
		state.history = kept

		silent := len(state.history) == 0 ||
			now.Sub(state.history[len(state.history)-1].At) > silenceMaxAge
		hasActiveSession := state.session != nil && state.session.session.IsActive()
		state.mu.Unlock()

		if silent && !hasActiveSession {
			delete(s.partners, partnerID)
			prunedPartners++
		}
	}

	for orderID, ss := range s.byOrder {
		completedAt := ss.session.CompletedAt()
		if completedAt != nil && now.Sub(*completedAt) > sessionMaxAge {
			delete(s.byOrder, orderID)
			prunedSessions++
		}
	}
	s.mu.Unlock()

	if prunedPartners > 0 || prunedSessions > 0 {
		s.logger.InfoContext(ctx, "tracking state pruned",
			"partners", prunedPartners, "sessions", prunedSessions)
	}
	return prunedPartners, prunedSessions
}

// estimateArrival projects the arrival time from the remaining straight-line
// distance at the assumed partner speed.
func (s *Service) estimateArrival(from kernel.GeoPoint, to kernel.GeoPoint, at time.Time) (time.Time, bool) {
	distanceKm, err := from.DistanceKm(to)
	if err != nil {
		return time.Time{}, false
	}

	hours := distanceKm / PartnerSpeedKmh
	return at.Add(time.Duration(hours * float64(time.Hour))), true
}

// crossings diffs the partner's geofence containment against the new
// position. Caller holds the partner state lock.
func (s *Service) crossings(
	state *partnerState,
	fences []*tracking.Geofence,
	partnerID string,
	location kernel.GeoPoint,
	at time.Time,
) []GeofenceEvent {
	var events []GeofenceEvent

	for _, fence := range fences {
		inside, err := fence.Contains(location)
		if err != nil {
			continue
		}
		wasInside := state.inside[fence.ID()]
		if inside == wasInside {
			continue
		}

		state.inside[fence.ID()] = inside
		kind := GeofenceEntered
		if !inside {
			kind = GeofenceExited
		}
		events = append(events, GeofenceEvent{
			PartnerID:  partnerID,
			GeofenceID: fence.ID(),
			Name:       fence.Name(),
			Type:       fence.Type(),
			Kind:       kind,
			At:         at,
		})
	}
	return events
}

func (s *Service) persistPartnerLocation(ctx context.Context, partnerID string, location kernel.GeoPoint, at time.Time) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	p, err := uow.PartnerRepository().Get(ctx, partnerID)
	if err != nil {
		return err
	}
	if err = p.UpdateLocation(location, at); err != nil {
		return err
	}
	if err = uow.PartnerRepository().Update(ctx, p); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func (s *Service) stateFor(partnerID string) *partnerState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.partners[partnerID]
	if !ok {
		state = &partnerState{inside: make(map[string]bool)}
		s.partners[partnerID] = state
	}
	return state
}

func (s *Service) snapshotGeofences() []*tracking.Geofence {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*tracking.Geofence, 0, len(s.geofences))
	for _, g := range s.geofences {
		out = append(out, g)
	}
	return out
}
