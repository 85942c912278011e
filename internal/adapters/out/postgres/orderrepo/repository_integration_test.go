package orderrepo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"

	"campusdelivery/internal/adapters/out/postgres/orderrepo"
	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/pkg/errs"
)

// MockAggregateTracker is a mock implementation of the aggregateTracker interface.
type MockAggregateTracker struct {
	mock.Mock
}

func (m *MockAggregateTracker) TrackAggregate(id string, aggregate any) {
	m.Called(id, aggregate)
}

// OrderRepositoryIntegrationTestSuite provides integration tests for the
// order repository against a real PostgreSQL container.
type OrderRepositoryIntegrationTestSuite struct {
	suite.Suite
	container  *postgres.PostgresContainer
	db         *gorm.DB
	repository *orderrepo.GormOrderRepository
	tracker    *MockAggregateTracker
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	suite.Require().NoError(err)
	suite.container = container

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	suite.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(connStr), &gorm.Config{})
	suite.Require().NoError(err)
	suite.db = db

	suite.Require().NoError(db.AutoMigrate(&orderrepo.OrderDTO{}, &orderrepo.ItemDTO{}))
}

func (suite *OrderRepositoryIntegrationTestSuite) SetupTest() {
	suite.Require().NoError(suite.db.Exec("TRUNCATE TABLE orders, order_items").Error)

	suite.tracker = new(MockAggregateTracker)
	suite.repository = orderrepo.NewGormOrderRepository(suite.db, suite.tracker)
}

func (suite *OrderRepositoryIntegrationTestSuite) TearDownSuite() {
	if suite.container != nil {
		suite.Require().NoError(suite.container.Terminate(context.Background()))
	}
}

func (suite *OrderRepositoryIntegrationTestSuite) createTestOrder() *order.Order {
	location, err := kernel.NewGeoPoint(43.0731, -89.4012)
	suite.Require().NoError(err)

	items := []order.Item{
		{ProductID: uuid.NewString(), Quantity: 2},
		{ProductID: uuid.NewString(), Quantity: 1},
	}
	testOrder, err := order.NewOrder(uuid.NewString(), items, &location, time.Now().UTC())
	suite.Require().NoError(err)
	return testOrder
}

func (suite *OrderRepositoryIntegrationTestSuite) assertOrderCount(expected int64) {
	var count int64
	suite.Require().NoError(suite.db.Model(&orderrepo.OrderDTO{}).Count(&count).Error)
	suite.Equal(expected, count)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestAdd_ValidOrder_Success() {
	ctx := context.Background()
	testOrder := suite.createTestOrder()

	suite.tracker.On("TrackAggregate", testOrder.ID(), testOrder).Once()

	err := suite.repository.Add(ctx, testOrder)
	suite.Require().NoError(err)

	suite.assertOrderCount(1)
	suite.tracker.AssertExpectations(suite.T())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_ExistingOrder_RoundTrips() {
	ctx := context.Background()
	testOrder := suite.createTestOrder()

	suite.tracker.On("TrackAggregate", testOrder.ID(), testOrder).Once()
	suite.Require().NoError(suite.repository.Add(ctx, testOrder))

	retrieved, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)

	suite.Equal(testOrder.ID(), retrieved.ID())
	suite.Equal(order.StatusPlaced, retrieved.Status())
	suite.Equal(order.PaymentPending, retrieved.PaymentStatus())
	suite.Nil(retrieved.AssignedPartnerID())
	suite.ElementsMatch(testOrder.Items(), retrieved.Items())
	suite.Require().NotNil(retrieved.DeliveryLocation())
	suite.InDelta(43.0731, retrieved.DeliveryLocation().Lat(), 1e-9)
	suite.InDelta(-89.4012, retrieved.DeliveryLocation().Lng(), 1e-9)
	suite.WithinDuration(testOrder.Timestamps().PlacedAt, retrieved.Timestamps().PlacedAt, time.Second)
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGet_NonExistentOrder_ReturnsNotFoundError() {
	ctx := context.Background()

	retrieved, err := suite.repository.Get(ctx, uuid.NewString())

	suite.Require().Error(err)
	suite.Nil(retrieved)
	suite.True(errors.Is(err, errs.ErrObjectNotFound))
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_StatusAndPayment_Persists() {
	ctx := context.Background()
	testOrder := suite.createTestOrder()

	suite.tracker.On("TrackAggregate", testOrder.ID(), testOrder).Twice()
	suite.Require().NoError(suite.repository.Add(ctx, testOrder))

	now := time.Now().UTC()
	suite.Require().NoError(testOrder.MarkPaymentCompleted(now))
	suite.Require().NoError(testOrder.ChangeStatus(order.StatusConfirmed, now))

	suite.Require().NoError(suite.repository.Update(ctx, testOrder))

	retrieved, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	suite.Equal(order.StatusConfirmed, retrieved.Status())
	suite.Equal(order.PaymentCompleted, retrieved.PaymentStatus())
	suite.Require().NotNil(retrieved.Timestamps().PaidAt)
	suite.tracker.AssertExpectations(suite.T())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_ClearsPartnerAssignment() {
	ctx := context.Background()
	testOrder := suite.createTestOrder()
	partnerID := uuid.NewString()

	suite.tracker.On("TrackAggregate", testOrder.ID(), testOrder)
	suite.Require().NoError(suite.repository.Add(ctx, testOrder))

	// Assign a partner and persist it.
	suite.Require().NoError(testOrder.AssignPartner(partnerID))
	suite.Require().NoError(suite.repository.Update(ctx, testOrder))

	retrieved, err := suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	suite.Require().NotNil(retrieved.AssignedPartnerID())
	suite.Equal(partnerID, *retrieved.AssignedPartnerID())

	// Drop the assignment and make sure the NULL reaches the database.
	suite.Require().NoError(testOrder.UnassignPartner())
	suite.Require().NoError(suite.repository.Update(ctx, testOrder))

	retrieved, err = suite.repository.Get(ctx, testOrder.ID())
	suite.Require().NoError(err)
	suite.Nil(retrieved.AssignedPartnerID())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestUpdate_NonExistentOrder_ReturnsNotFoundError() {
	ctx := context.Background()
	testOrder := suite.createTestOrder()

	err := suite.repository.Update(ctx, testOrder)

	suite.Require().Error(err)
	suite.True(errors.Is(err, errs.ErrObjectNotFound))
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetAllActive_ExcludesTerminalOrders() {
	ctx := context.Background()
	suite.tracker.On("TrackAggregate", mock.Anything, mock.Anything)

	active := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, active))

	cancelled := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, cancelled))
	suite.Require().NoError(cancelled.ChangeStatus(order.StatusCancelled, time.Now().UTC()))
	suite.Require().NoError(suite.repository.Update(ctx, cancelled))

	orders, err := suite.repository.GetAllActive(ctx)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Equal(active.ID(), orders[0].ID())
}

func (suite *OrderRepositoryIntegrationTestSuite) TestGetAllInStatus_FiltersByStatus() {
	ctx := context.Background()
	suite.tracker.On("TrackAggregate", mock.Anything, mock.Anything)

	placed := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, placed))

	confirmed := suite.createTestOrder()
	suite.Require().NoError(suite.repository.Add(ctx, confirmed))
	now := time.Now().UTC()
	suite.Require().NoError(confirmed.MarkPaymentCompleted(now))
	suite.Require().NoError(confirmed.ChangeStatus(order.StatusConfirmed, now))
	suite.Require().NoError(suite.repository.Update(ctx, confirmed))

	orders, err := suite.repository.GetAllInStatus(ctx, order.StatusConfirmed)
	suite.Require().NoError(err)
	suite.Require().Len(orders, 1)
	suite.Equal(confirmed.ID(), orders[0].ID())
}

func TestOrderRepositoryIntegrationTestSuite(t *testing.T) {
	suite.Run(t, new(OrderRepositoryIntegrationTestSuite))
}
