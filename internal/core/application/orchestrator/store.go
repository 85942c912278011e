package orchestrator

import (
	"context"

	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
)

// uowOrderStore adapts the unit-of-work factory to the engine's OrderStore.
// Every call runs its own short transaction; serialization across calls is
// the engine's per-order lock, not the database transaction.
type uowOrderStore struct {
	uowFactory ports.UnitOfWorkFactory
}

// NewOrderStore wraps a unit-of-work factory as a workflow order store.
func NewOrderStore(uowFactory ports.UnitOfWorkFactory) workflow.OrderStore {
	return &uowOrderStore{uowFactory: uowFactory}
}

func (s *uowOrderStore) GetOrder(ctx context.Context, orderID string) (*order.Order, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	o, err := uow.OrderRepository().Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return o, nil
}

func (s *uowOrderStore) SaveOrder(ctx context.Context, o *order.Order) error {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err := uow.OrderRepository().Update(ctx, o); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func (s *uowOrderStore) ListInFlight(ctx context.Context) ([]*order.Order, error) {
	uow := s.uowFactory.Create()
	if err := uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	orders, err := uow.OrderRepository().GetAllActive(ctx)
	if err != nil {
		return nil, err
	}

	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}
	return orders, nil
}
