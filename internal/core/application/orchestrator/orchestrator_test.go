package orchestrator_test

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"campusdelivery/internal/core/application/orchestrator"
	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/model/partner"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

// fakeDB is a shared in-memory backing store for the fake unit of work.
// Transactions are not simulated; Begin, Commit, and Rollback are no-ops.
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

func (r fakeOrderRepo) Add(_ context.Context, aggregate *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[aggregate.ID()] = aggregate
	return nil
}

func (r fakeOrderRepo) Update(_ context.Context, aggregate *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.orders[aggregate.ID()] = aggregate
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

func (r fakeOrderRepo) GetAllActive(_ context.Context) ([]*order.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var active []*order.Order
	for _, o := range r.db.orders {
		if !o.Status().IsTerminal() {
			active = append(active, o)
		}
	}
	return active, nil
}

func (r fakeOrderRepo) GetAllInStatus(_ context.Context, status order.Status) ([]*order.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var matched []*order.Order
	for _, o := range r.db.orders {
		if o.Status() == status {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

type fakePartnerRepo struct{ db *fakeDB }

func (r fakePartnerRepo) Add(_ context.Context, aggregate *partner.Partner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.partners[aggregate.ID()] = aggregate
	return nil
}

func (r fakePartnerRepo) Update(_ context.Context, aggregate *partner.Partner) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.db.partners[aggregate.ID()] = aggregate
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

func (r fakePartnerRepo) GetAllOnline(_ context.Context) ([]*partner.Partner, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	var online []*partner.Partner
	for _, p := range r.db.partners {
		if p.IsOnline() {
			online = append(online, p)
		}
	}
	return online, nil
}

type fakeUoW struct{ db *fakeDB }

func (u fakeUoW) Begin(context.Context) error                { return nil }
func (u fakeUoW) Commit(context.Context) error               { return nil }
func (u fakeUoW) Rollback(context.Context) error             { return nil }
func (u fakeUoW) OrderRepository() ports.OrderRepository     { return fakeOrderRepo{db: u.db} }
func (u fakeUoW) PartnerRepository() ports.PartnerRepository { return fakePartnerRepo{db: u.db} }

type fakeUoWFactory struct{ db *fakeDB }

func (f fakeUoWFactory) Create() ports.UnitOfWork { return fakeUoW{db: f.db} }

// orderRow is the flattened form a database row would carry.
type orderRow struct {
	id                string
	status            order.Status
	paymentStatus     order.PaymentStatus
	assignedPartnerID *string
	timestamps        order.Timestamps
	items             []order.Item
	deliveryLocation  *kernel.GeoPoint
}

func toRow(aggregate *order.Order) orderRow {
	row := orderRow{
		id:               aggregate.ID(),
		status:           aggregate.Status(),
		paymentStatus:    aggregate.PaymentStatus(),
		timestamps:       aggregate.Timestamps(),
		items:            aggregate.Items(),
		deliveryLocation: aggregate.DeliveryLocation(),
	}
	if pid := aggregate.AssignedPartnerID(); pid != nil {
		v := *pid
		row.assignedPartnerID = &v
	}
	return row
}

// restoringOrderRepo stores flattened rows and rebuilds aggregates through
// RestoreOrder, the way the gorm adapter does. A persisted state that
// violates a restore invariant surfaces on the next Get.
type restoringOrderRepo struct {
	db   *fakeDB
	rows map[string]orderRow
}

func (r restoringOrderRepo) Add(_ context.Context, aggregate *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.rows[aggregate.ID()] = toRow(aggregate)
	return nil
}

func (r restoringOrderRepo) Update(_ context.Context, aggregate *order.Order) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	r.rows[aggregate.ID()] = toRow(aggregate)
	return nil
}

func (r restoringOrderRepo) Get(_ context.Context, id string) (*order.Order, error) {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, errs.NewObjectNotFoundError("order", id)
	}
	return order.RestoreOrder(row.id, row.status, row.paymentStatus,
		row.assignedPartnerID, row.timestamps, row.items, row.deliveryLocation)
}

func (r restoringOrderRepo) GetAllActive(ctx context.Context) ([]*order.Order, error) {
	r.db.mu.Lock()
	ids := make([]string, 0, len(r.rows))
	for id, row := range r.rows {
		if !row.status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	r.db.mu.Unlock()

	var active []*order.Order
	for _, id := range ids {
		o, err := r.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		active = append(active, o)
	}
	return active, nil
}

func (r restoringOrderRepo) GetAllInStatus(ctx context.Context, status order.Status) ([]*order.Order, error) {
	active, err := r.GetAllActive(ctx)
	if err != nil {
		return nil, err
	}
	var matched []*order.Order
	for _, o := range active {
		if o.Status() == status {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

type restoringUoW struct {
	db     *fakeDB
	orders restoringOrderRepo
}

func (u restoringUoW) Begin(context.Context) error                { return nil }
func (u restoringUoW) Commit(context.Context) error               { return nil }
func (u restoringUoW) Rollback(context.Context) error             { return nil }
func (u restoringUoW) OrderRepository() ports.OrderRepository     { return u.orders }
func (u restoringUoW) PartnerRepository() ports.PartnerRepository { return fakePartnerRepo{db: u.db} }

type restoringUoWFactory struct {
	db     *fakeDB
	orders restoringOrderRepo
}

func (f restoringUoWFactory) Create() ports.UnitOfWork {
	return restoringUoW{db: f.db, orders: f.orders}
}

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

type MockInventory struct{ mock.Mock }

func (m *MockInventory) Reserve(ctx context.Context, orderID string, items []order.Item) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *MockInventory) Release(ctx context.Context, orderID string, items []order.Item) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

func (m *MockInventory) ConfirmSale(ctx context.Context, orderID string, items []order.Item) error {
	args := m.Called(ctx, orderID, items)
	return args.Error(0)
}

type stubETA struct {
	minutes float64
	ok      bool
}

func (s stubETA) EstimatedMinutes(context.Context, string) (float64, bool) {
	return s.minutes, s.ok
}

type fixture struct {
	db        *fakeDB
	orders    restoringOrderRepo
	notifier  *MockNotifier
	inventory *MockInventory
	orch      *orchestrator.Orchestrator
}

func newFixture(t *testing.T, eta orchestrator.ETAProvider) *fixture {
	t.Helper()

	db := newFakeDB()
	notifier := new(MockNotifier)
	inventory := new(MockInventory)

	notifier.On("NotifyCustomer", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("NotifyPartner", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("Reserve", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("Release", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("ConfirmSale", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	orch := orchestrator.NewOrchestrator(
		fakeUoWFactory{db: db},
		notifier,
		inventory,
		eta,
		workflow.DefaultRules(),
		workflow.DefaultTimeouts(),
		slog.Default(),
	)
	t.Cleanup(orch.Stop)

	return &fixture{db: db, notifier: notifier, inventory: inventory, orch: orch}
}

// newRestoringFixture runs the orchestrator over a store that round-trips
// every order through RestoreOrder, like the gorm adapter.
func newRestoringFixture(t *testing.T) *fixture {
	t.Helper()

	db := newFakeDB()
	orders := restoringOrderRepo{db: db, rows: make(map[string]orderRow)}
	notifier := new(MockNotifier)
	inventory := new(MockInventory)

	notifier.On("NotifyCustomer", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("NotifyPartner", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	notifier.On("NotifyAdmin", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("Reserve", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("Release", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	inventory.On("ConfirmSale", mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	orch := orchestrator.NewOrchestrator(
		restoringUoWFactory{db: db, orders: orders},
		notifier,
		inventory,
		nil,
		workflow.DefaultRules(),
		workflow.DefaultTimeouts(),
		slog.Default(),
	)
	t.Cleanup(orch.Stop)

	return &fixture{db: db, orders: orders, notifier: notifier, inventory: inventory, orch: orch}
}

func (f *fixture) placeOrder(t *testing.T) *order.Order {
	t.Helper()

	location, err := kernel.NewGeoPoint(43.075, -89.404)
	require.NoError(t, err)

	o, err := f.orch.InitializeOrder(context.Background(), "",
		[]order.Item{{ProductID: uuid.NewString(), Quantity: 1}}, location)
	require.NoError(t, err)
	return o
}

func (f *fixture) addPartner(t *testing.T) *partner.Partner {
	t.Helper()

	p, err := partner.NewPartner(uuid.NewString(), "Sam Okafor", false, partner.VehicleBicycle)
	require.NoError(t, err)
	p.GoOnline()
	require.NoError(t, fakePartnerRepo{db: f.db}.Add(context.Background(), p))
	return p
}

func TestInitializeOrderPersistsAndNotifies(t *testing.T) {
	f := newFixture(t, nil)

	o := f.placeOrder(t)

	assert.Equal(t, order.StatusPlaced, o.Status())
	assert.Equal(t, order.PaymentPending, o.PaymentStatus())

	saved, err := fakeOrderRepo{db: f.db}.Get(context.Background(), o.ID())
	require.NoError(t, err)
	assert.Equal(t, o.ID(), saved.ID())

	f.notifier.AssertCalled(t, "NotifyCustomer", mock.Anything, o.ID(), "your order has been placed")
}

func TestHandlePaymentConfirmationConfirmsAndReservesStock(t *testing.T) {
	f := newFixture(t, nil)
	o := f.placeOrder(t)

	event, err := f.orch.HandlePaymentConfirmation(context.Background(), o.ID())
	require.NoError(t, err)

	assert.Equal(t, order.StatusConfirmed, event.To)
	assert.Equal(t, order.PaymentCompleted, o.PaymentStatus())
	f.inventory.AssertCalled(t, "Reserve", mock.Anything, o.ID(), o.Items())
}

func TestHandlePaymentFailureFailsOrder(t *testing.T) {
	f := newFixture(t, nil)
	o := f.placeOrder(t)

	event, err := f.orch.HandlePaymentFailure(context.Background(), o.ID())
	require.NoError(t, err)

	assert.Equal(t, order.StatusFailed, event.To)
	assert.Equal(t, order.PaymentFailed, o.PaymentStatus())
	assert.True(t, o.Status().IsTerminal())
}

func TestHandlePartnerAssignmentLeavesIllegalTransitionUnpersisted(t *testing.T) {
	f := newFixture(t, nil)
	o := f.placeOrder(t)
	p := f.addPartner(t)

	// still placed; ready -> assigned is the only legal assignment edge
	_, err := f.orch.HandlePartnerAssignment(context.Background(), o.ID(), p.ID())
	require.ErrorIs(t, err, workflow.ErrInvalidTransition)

	saved, err := fakeOrderRepo{db: f.db}.Get(context.Background(), o.ID())
	require.NoError(t, err)
	assert.Nil(t, saved.AssignedPartnerID())
	assert.Equal(t, order.StatusPlaced, saved.Status())
}

func TestHandlePartnerAssignmentCommitsAtomicallyAndSurvivesRestore(t *testing.T) {
	ctx := context.Background()
	f := newRestoringFixture(t)
	o := f.placeOrder(t)
	p := f.addPartner(t)

	advanceToAssigned(t, f, o, p)

	saved, err := f.orders.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusAssigned, saved.Status())
	require.NotNil(t, saved.AssignedPartnerID())
	assert.Equal(t, p.ID(), *saved.AssignedPartnerID())
	require.NotNil(t, saved.Timestamps().AcceptedAt)
}

func TestHandlePartnerAssignmentNeverStoresPartnerOnReadyOrder(t *testing.T) {
	ctx := context.Background()
	f := newRestoringFixture(t)
	o := f.placeOrder(t)
	p := f.addPartner(t)

	_, err := f.orch.HandlePaymentConfirmation(ctx, o.ID())
	require.NoError(t, err)
	_, err = f.orch.TransitionOrder(ctx, o.ID(), order.StatusPreparing, workflow.TriggerAutomatic, nil)
	require.NoError(t, err)
	_, err = f.orch.TransitionOrder(ctx, o.ID(), order.StatusReady, workflow.TriggerManual, nil)
	require.NoError(t, err)

	// a second partner on an already assigned order must not dirty the row
	_, err = f.orch.HandlePartnerAssignment(ctx, o.ID(), p.ID())
	require.NoError(t, err)

	other := f.addPartner(t)
	_, err = f.orch.HandlePartnerAssignment(ctx, o.ID(), other.ID())
	require.Error(t, err)

	saved, err := f.orders.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusAssigned, saved.Status())
	require.NotNil(t, saved.AssignedPartnerID())
	assert.Equal(t, p.ID(), *saved.AssignedPartnerID())
}

func TestHandleOrderPickupRejectsForeignPartner(t *testing.T) {
	f := newFixture(t, nil)
	o := f.placeOrder(t)
	p := f.addPartner(t)
	other := f.addPartner(t)

	advanceToAssigned(t, f, o, p)

	_, err := f.orch.HandleOrderPickup(context.Background(), o.ID(), other.ID())
	assert.ErrorIs(t, err, orchestrator.ErrPartnerMismatch)
}

func TestFullDeliveryLifecycle(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := f.placeOrder(t)
	p := f.addPartner(t)

	advanceToAssigned(t, f, o, p)

	_, err := f.orch.HandleOrderPickup(ctx, o.ID(), p.ID())
	require.NoError(t, err)

	_, err = f.orch.TransitionOrder(ctx, o.ID(), order.StatusOutForDelivery,
		workflow.TriggerPartnerAction, map[string]any{"partner_id": p.ID()})
	require.NoError(t, err)

	event, err := f.orch.HandleOrderDelivery(ctx, o.ID(), p.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, event.To)

	saved, err := fakeOrderRepo{db: f.db}.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusDelivered, saved.Status())
	require.NotNil(t, saved.Timestamps().DeliveredAt)

	credited, err := fakePartnerRepo{db: f.db}.Get(ctx, p.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, credited.TotalDeliveries())

	f.inventory.AssertCalled(t, "ConfirmSale", mock.Anything, o.ID(), o.Items())
}

func TestHandleOrderCancellationRefundsPaidOrder(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := f.placeOrder(t)

	_, err := f.orch.HandlePaymentConfirmation(ctx, o.ID())
	require.NoError(t, err)

	event, err := f.orch.HandleOrderCancellation(ctx, o.ID(), "customer changed their mind")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, event.To)

	saved, err := fakeOrderRepo{db: f.db}.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusRefunded, saved.Status())
	assert.Equal(t, order.PaymentRefunded, saved.PaymentStatus())

	f.inventory.AssertCalled(t, "Release", mock.Anything, o.ID(), mock.Anything)
}

func TestHandleOrderCancellationNotifiesAssignedPartner(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := f.placeOrder(t)
	p := f.addPartner(t)

	advanceToAssigned(t, f, o, p)

	event, err := f.orch.HandleOrderCancellation(ctx, o.ID(), "customer no-show")
	require.NoError(t, err)
	assert.Equal(t, p.ID(), event.PartnerID)

	// the cancellation itself clears the assignment, so the notification
	// must reach the partner that was on the order
	f.notifier.AssertCalled(t, "NotifyPartner", mock.Anything, p.ID(), o.ID(),
		fmt.Sprintf("order %s is now cancelled", o.ID()))

	saved, err := fakeOrderRepo{db: f.db}.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Nil(t, saved.AssignedPartnerID())
}

func TestHandleOrderCancellationUnpaidOrderStaysCancelled(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	o := f.placeOrder(t)

	event, err := f.orch.HandleOrderCancellation(ctx, o.ID(), "abandoned cart")
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, event.To)

	saved, err := fakeOrderRepo{db: f.db}.Get(ctx, o.ID())
	require.NoError(t, err)
	assert.Equal(t, order.StatusCancelled, saved.Status())
	f.inventory.AssertNotCalled(t, "Release", mock.Anything, o.ID(), mock.Anything)
}

func TestGetWorkflowStatus(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, stubETA{minutes: 12.5, ok: true})
	o := f.placeOrder(t)

	status, err := f.orch.GetWorkflowStatus(ctx, o.ID())
	require.NoError(t, err)

	assert.Equal(t, o.ID(), status.OrderID)
	assert.Equal(t, order.StatusPlaced, status.Status)
	assert.ElementsMatch(t,
		[]order.Status{order.StatusConfirmed, order.StatusCancelled, order.StatusFailed},
		status.AllowedTransitions)
	require.NotNil(t, status.EstimatedMinutes)
	assert.InDelta(t, 12.5, *status.EstimatedMinutes, 0.001)
}

func TestGetWorkflowStatusUnknownOrder(t *testing.T) {
	f := newFixture(t, nil)

	_, err := f.orch.GetWorkflowStatus(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)
}

func advanceToAssigned(t *testing.T, f *fixture, o *order.Order, p *partner.Partner) {
	t.Helper()
	ctx := context.Background()

	_, err := f.orch.HandlePaymentConfirmation(ctx, o.ID())
	require.NoError(t, err)

	_, err = f.orch.TransitionOrder(ctx, o.ID(), order.StatusPreparing, workflow.TriggerAutomatic, nil)
	require.NoError(t, err)

	_, err = f.orch.TransitionOrder(ctx, o.ID(), order.StatusReady, workflow.TriggerManual, nil)
	require.NoError(t, err)

	_, err = f.orch.HandlePartnerAssignment(ctx, o.ID(), p.ID())
	require.NoError(t, err)
}
