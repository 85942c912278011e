package trackingsvc_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campusdelivery/internal/core/application/trackingsvc"
	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/core/domain/model/tracking"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

const (
	baseLat = 43.0700
	baseLng = -89.4000
)

// kmLat converts a north-south distance into a latitude offset.
func kmLat(km float64) float64 { return km / 111.19 }

type fakeDB struct {
	mu       sync.Mutex
	orders   map[string]*order.Order
	partners map[string]*partner.Partner
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		orders:   make(map[string]*order.Order),
		partners: make(map[string]*partner.Partner),
	}
}

type fakeOrderRepo struct{ db *fakeDB }

func (r fakeOrderRepo) Add(_ context.Context, o *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[o.ID()] = o
	return nil
}

func (r fakeOrderRepo) Update(_ context.Context, o *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[o.ID()] = o
	return nil
}

func (r fakeOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	o, ok := r.db.orders[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id)
	}
	return o, nil
}

func (r fakeOrderRepo) GetAllActive(context.Context) ([]*order.Order, error) { return nil, nil }
func (r fakeOrderRepo) GetAllInStatus(context.Context, order.Status) ([]*order.Order, error) {
	return nil, nil
}

type fakePartnerRepo struct{ db *fakeDB }

func (r fakePartnerRepo) Add(_ context.Context, p *partner.Partner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.partners[p.ID()] = p
	return nil
}

func (r fakePartnerRepo) Update(_ context.Context, p *partner.Partner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.partners[p.ID()] = p
	return nil
}

func (r fakePartnerRepo) Get(_ context.Context, id string) (*partner.Partner, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	p, ok := r.db.partners[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("partner", id)
	}
	return p, nil
}

func (r fakePartnerRepo) GetAllOnline(context.Context) ([]*partner.Partner, error) {
	return nil, nil
}

type fakeUoW struct{ db *fakeDB }

func (u fakeUoW) Begin(context.Context) error                { return nil }
func (u fakeUoW) Commit(context.Context) error               { return nil }
func (u fakeUoW) Rollback(context.Context) error             { return nil }
func (u fakeUoW) OrderRepository() ports.OrderRepository     { return fakeOrderRepo{db: u.db} }
func (u fakeUoW) PartnerRepository() ports.PartnerRepository { return fakePartnerRepo{db: u.db} }

type fakeUoWFactory struct{ db *fakeDB }

func (f fakeUoWFactory) Create() ports.UnitOfWork { return fakeUoW{db: f.db} }

type MockNotifier struct{ mock.Mock }

func (m *MockNotifier) NotifyCustomer(ctx context.Context, orderID string, message string) error {
	args := m.Called(ctx, orderID, message)
	return args.Error(0)
}

func (m *MockNotifier) NotifyPartner(ctx context.Context, partnerID string, orderID string, message string) error {
	args := m.Called(ctx, partnerID, orderID, message)
	return args.Error(0)
}

func (m *MockNotifier) NotifyAdmin(ctx context.Context, orderID string, message string) error {
	args := m.Called(ctx, orderID, message)
	return args.Error(0)
}

// fakeArchive records every session handed over at completion.
type fakeArchive struct {
	mu       sync.Mutex
	sessions []*tracking.Session
	err      error
}

func (a *fakeArchive) ArchiveSession(_ context.Context, session *tracking.Session) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return a.err
	}
	a.sessions = append(a.sessions, session)
	return nil
}

func (a *fakeArchive) archived() []*tracking.Session {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*tracking.Session(nil), a.sessions...)
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	db       *fakeDB
	notifier *MockNotifier
	archive  *fakeArchive
	clock    *fakeClock
	svc      *trackingsvc.Service
}

func newFixture(t *testing.T, geofences ...*tracking.Geofence) *fixture {
	t.Helper()

	db := newFakeDB()
	notifier := new(MockNotifier)
	archive := &fakeArchive{}
	clock := &fakeClock{now: time.Now()}

	notifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := trackingsvc.NewService(
		fakeUoWFactory{db: db},
		notifier,
		archive,
		geofences,
		slog.Default(),
		trackingsvc.WithTimeSource(clock.Now),
	)
	return &fixture{db: db, notifier: notifier, archive: archive, clock: clock, svc: svc}
}

func point(t *testing.T, lat float64, lng float64) kernel.GeoPoint {
	t.Helper()
	p, err := kernel.NewGeoPoint(lat, lng)
	require.NoError(t, err)
	return p
}

func (f *fixture) trackedPartner(t *testing.T) *partner.Partner {
	t.Helper()

	p, err := partner.NewPartner(uuid.NewString(), "Dana Whitfield", false, partner.VehicleBicycle)
	require.NoError(t, err)
	p.GoOnline()
	require.NoError(t, p.UpdateLocation(point(t, baseLat, baseLng), f.clock.Now()))
	require.NoError(t, fakePartnerRepo{db: f.db}.Add(context.Background(), p))
	return p
}

// assignedOrder builds an order in assigned status carried by the partner,
// delivering 3 km north of the base point.
func (f *fixture) assignedOrder(t *testing.T, p *partner.Partner) *order.Order {
	t.Helper()

	destination := point(t, baseLat+kmLat(3), baseLng)
	o, err := order.NewOrder(uuid.NewString(),
		[]order.Item{{ProductID: uuid.NewString(), Quantity: 1}}, &destination, f.clock.Now().Add(-time.Hour))
	require.NoError(t, err)

	require.NoError(t, o.MarkPaymentCompleted(f.clock.Now().Add(-50*time.Minute)))
	for _, status := range []order.Status{order.StatusConfirmed, order.StatusPreparing, order.StatusReady} {
		require.NoError(t, o.ChangeStatus(status, f.clock.Now().Add(-30*time.Minute)))
	}
	require.NoError(t, o.AssignPartner(p.ID()))
	require.NoError(t, o.ChangeStatus(order.StatusAssigned, f.clock.Now().Add(-20*time.Minute)))

	require.NoError(t, fakeOrderRepo{db: f.db}.Add(context.Background(), o))
	return o
}

func TestUpdatePartnerLocationRecordsHistory(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)

	for i := 0; i < 3; i++ {
		_, err := f.svc.UpdatePartnerLocation(ctx, p.ID(),
			point(t, baseLat+kmLat(float64(i)), baseLng), f.clock.Now())
		require.NoError(t, err)
	}

	latest, history, err := f.svc.GetPartnerLocation(ctx, p.ID())
	require.NoError(t, err)
	assert.Len(t, history, 3)
	assert.InDelta(t, baseLat+kmLat(2), latest.Point.Lat(), 1e-9)

	stored, err := fakePartnerRepo{db: f.db}.Get(ctx, p.ID())
	require.NoError(t, err)
	require.NotNil(t, stored.CurrentLocation())
	assert.InDelta(t, baseLat+kmLat(2), stored.CurrentLocation().Lat(), 1e-9)
}

func TestUpdatePartnerLocationCapsHistoryRing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)

	for i := 0; i < trackingsvc.HistoryLimit+20; i++ {
		_, err := f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat, baseLng), f.clock.Now())
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	_, history, err := f.svc.GetPartnerLocation(ctx, p.ID())
	require.NoError(t, err)
	assert.Len(t, history, trackingsvc.HistoryLimit)
}

func TestUpdatePartnerLocationUnknownPartner(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdatePartnerLocation(context.Background(), uuid.NewString(),
		point(t, baseLat, baseLng), f.clock.Now())
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func TestTrackingSessionAccumulatesDistanceAndEstimates(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	session, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)
	assert.Equal(t, tracking.SessionStarted, session.Status())

	// two fixes, 1 km apart, heading for the destination 3 km out
	result, err := f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(1), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, result.EstimatedDeliveryTime)

	result, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(2), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.NotNil(t, result.EstimatedDeliveryTime)

	tracked, err := f.svc.GetTrackingSession(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, tracking.SessionInProgress, tracked.Status())
	assert.InDelta(t, 2.0, tracked.DistanceTraveledKm(), 0.05)

	// 1 km remaining at 15 km/h is 4 minutes
	minutes, ok := f.svc.EstimatedMinutes(ctx, o.ID())
	require.True(t, ok)
	assert.InDelta(t, 4.0, minutes, 0.5)
}

func TestCompleteTrackingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	_, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)

	session, err := f.svc.CompleteTrackingSession(ctx, o.ID(), false)
	require.NoError(t, err)
	assert.Equal(t, tracking.SessionCompleted, session.Status())
	require.NotNil(t, session.CompletedAt())

	// the sealed session is handed to the archive
	archived := f.archive.archived()
	require.Len(t, archived, 1)
	assert.Equal(t, session.ID(), archived[0].ID())
	assert.Equal(t, tracking.SessionCompleted, archived[0].Status())

	_, ok := f.svc.EstimatedMinutes(ctx, o.ID())
	assert.False(t, ok)

	_, err = f.svc.CompleteTrackingSession(ctx, o.ID(), false)
	assert.Error(t, err)
}

func TestCompleteTrackingSessionSurvivesArchiveFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	_, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)

	f.archive.err = errs.NewObjectNotFoundError("archive", "down")
	session, err := f.svc.CompleteTrackingSession(ctx, o.ID(), false)
	require.NoError(t, err)
	assert.Equal(t, tracking.SessionCompleted, session.Status())
}

func TestCancelTrackingSession(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	_, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)

	session, err := f.svc.CompleteTrackingSession(ctx, o.ID(), true)
	require.NoError(t, err)
	assert.Equal(t, tracking.SessionCancelled, session.Status())
	assert.Len(t, f.archive.archived(), 1)
}

func TestStartTrackingSessionRequiresActiveDelivery(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)

	destination := point(t, baseLat+kmLat(3), baseLng)
	o, err := order.NewOrder(uuid.NewString(),
		[]order.Item{{ProductID: uuid.NewString(), Quantity: 1}}, &destination, f.clock.Now())
	require.NoError(t, err)
	require.NoError(t, fakeOrderRepo{db: f.db}.Add(ctx, o))

	_, err = f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	assert.ErrorIs(t, err, errs.ErrValueIsInvalid)
}

func TestGeofenceCrossings(t *testing.T) {
	ctx := context.Background()

	zone, err := tracking.NewGeofence(uuid.NewString(), "science hall pickup",
		point(t, baseLat+kmLat(2), baseLng), 500, tracking.GeofencePickup)
	require.NoError(t, err)

	f := newFixture(t, zone)
	p := f.trackedPartner(t)

	// outside, inside, outside again
	result, err := f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat, baseLng), f.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, result.Events)

	result, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(2), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, trackingsvc.GeofenceEntered, result.Events[0].Kind)
	assert.Equal(t, zone.ID(), result.Events[0].GeofenceID)

	result, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(4), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, trackingsvc.GeofenceExited, result.Events[0].Kind)
}

func TestGeofenceCrossingsCarryActiveSession(t *testing.T) {
	ctx := context.Background()

	zone, err := tracking.NewGeofence(uuid.NewString(), "dorm delivery zone",
		point(t, baseLat+kmLat(2), baseLng), 500, tracking.GeofenceDelivery)
	require.NoError(t, err)

	f := newFixture(t, zone)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	// a crossing before any session carries no delivery context
	result, err := f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(2), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Empty(t, result.Events[0].SessionID)
	assert.Empty(t, result.Events[0].OrderID)

	_, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat, baseLng), f.clock.Now())
	require.NoError(t, err)

	session, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)

	result, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(2), baseLng), f.clock.Now())
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Equal(t, trackingsvc.GeofenceEntered, result.Events[0].Kind)
	assert.Equal(t, session.ID(), result.Events[0].SessionID)
	assert.Equal(t, o.ID(), result.Events[0].OrderID)
}

func TestRestrictedGeofenceAlertsAdmin(t *testing.T) {
	ctx := context.Background()

	zone, err := tracking.NewGeofence(uuid.NewString(), "labs",
		point(t, baseLat+kmLat(2), baseLng), 500, tracking.GeofenceRestricted)
	require.NoError(t, err)

	f := newFixture(t, zone)
	p := f.trackedPartner(t)

	_, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(2), baseLng), f.clock.Now())
	require.NoError(t, err)

	f.notifier.AssertCalled(t, "NotifyAdmin", mock.Anything, "", mock.Anything)
}

func TestPruneDropsStaleState(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	p := f.trackedPartner(t)
	o := f.assignedOrder(t, p)

	_, err := f.svc.StartTrackingSession(ctx, p.ID(), o.ID())
	require.NoError(t, err)
	_, err = f.svc.UpdatePartnerLocation(ctx, p.ID(), point(t, baseLat+kmLat(1), baseLng), f.clock.Now())
	require.NoError(t, err)
	_, err = f.svc.CompleteTrackingSession(ctx, o.ID(), false)
	require.NoError(t, err)

	// nothing is stale yet
	partners, sessions := f.svc.Prune(ctx)
	assert.Zero(t, partners)
	assert.Zero(t, sessions)

	f.clock.Advance(25 * time.Hour)

	partners, sessions = f.svc.Prune(ctx)
	assert.Equal(t, 1, partners)
	assert.Equal(t, 1, sessions)

	_, _, err = f.svc.GetPartnerLocation(ctx, p.ID())
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
	_, err = f.svc.GetTrackingSession(ctx, o.ID())
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}
