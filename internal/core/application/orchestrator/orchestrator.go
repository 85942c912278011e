package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/workflow"
	"campusdelivery/internal/core/ports"
	"campusdelivery/internal/pkg/errs"
)

// ErrPartnerMismatch is returned when a partner reports progress on an order
// that is assigned to somebody else.
var ErrPartnerMismatch = errors.New("order is assigned to a different partner")

// ETAProvider exposes the live delivery estimate of an order, when one is
// being tracked. The tracking service implements it.
type ETAProvider interface {
	EstimatedMinutes(ctx context.Context, orderID string) (float64, bool)
}

// WorkflowStatus is the full workflow view of one order.
type WorkflowStatus struct {
	OrderID            string
	Status             order.Status
	PaymentStatus      order.PaymentStatus
	AssignedPartnerID  *string
	Timestamps         order.Timestamps
	AllowedTransitions []order.Status
	EstimatedMinutes   *float64
}

// Orchestrator drives orders through the workflow engine and applies the
// persistence, notification, and inventory consequences of each step. It is
// the engine's event sink, so timer-fired transitions take the same side
// effect path as API-driven ones.
type Orchestrator struct {
	uowFactory ports.UnitOfWorkFactory
	store      workflow.OrderStore
	engine     *workflow.Engine
	rules      workflow.RuleSet
	notifier   ports.NotificationPublisher
	inventory  ports.InventoryService
	eta        ETAProvider
	logger     *slog.Logger

	// Multi-step use cases (mutate aggregate, persist, then transition) are
	// serialized per order so two API calls cannot interleave their steps.
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires an orchestrator and its embedded workflow engine.
func NewOrchestrator(
	uowFactory ports.UnitOfWorkFactory,
	notifier ports.NotificationPublisher,
	inventory ports.InventoryService,
	eta ETAProvider,
	rules workflow.RuleSet,
	timeouts workflow.TimeoutTable,
	logger *slog.Logger,
) *Orchestrator {
	o := &Orchestrator{
		uowFactory: uowFactory,
		store:      NewOrderStore(uowFactory),
		rules:      rules,
		notifier:   notifier,
		inventory:  inventory,
		eta:        eta,
		logger:     logger.With("component", "orchestrator"),
		locks:      make(map[string]*sync.Mutex),
	}
	o.engine = workflow.NewEngine(o.store, o, rules, timeouts, logger)
	return o
}

// RecoverTimers re-derives workflow timers for in-flight orders after a
// restart.
func (o *Orchestrator) RecoverTimers(ctx context.Context) error {
	return o.engine.RecoverTimers(ctx)
}

// Stop cancels all workflow timers.
func (o *Orchestrator) Stop() {
	o.engine.Stop()
}

// InitializeOrder creates a new order in placed status, persists it, and
// arms the placement timeout. A blank orderID gets a generated one.
func (o *Orchestrator) InitializeOrder(
	ctx context.Context,
	orderID string,
	items []order.Item,
	deliveryLocation kernel.GeoPoint,
) (*order.Order, error) {
	if orderID == "" {
		orderID = uuid.NewString()
	}

	newOrder, err := order.NewOrder(orderID, items, &deliveryLocation, time.Now())
	if err != nil {
		return nil, err
	}

	uow := o.uowFactory.Create()
	if err = uow.Begin(ctx); err != nil {
		return nil, err
	}
	defer func() {
		_ = uow.Rollback(ctx)
	}()

	if err = uow.OrderRepository().Add(ctx, newOrder); err != nil {
		return nil, err
	}
	if err = uow.Commit(ctx); err != nil {
		return nil, err
	}

	if err = o.engine.ArmTimeout(ctx, orderID); err != nil {
		o.logger.WarnContext(ctx, "placement timeout could not be armed", "order_id", orderID, "error", err)
	}

	if err = o.notifier.NotifyCustomer(ctx, orderID, "your order has been placed"); err != nil {
		o.logger.WarnContext(ctx, "placement notification failed", "order_id", orderID, "error", err)
	}

	o.logger.InfoContext(ctx, "order initialized", "order_id", orderID, "items", len(items))
	return newOrder, nil
}

// TransitionOrder requests an arbitrary transition, typically from the
// management API. The engine decides legality.
func (o *Orchestrator) TransitionOrder(
	ctx context.Context,
	orderID string,
	target order.Status,
	trigger workflow.TriggerKind,
	metadata map[string]any,
) (workflow.TransitionEvent, error) {
	return o.engine.Transition(ctx, orderID, target, trigger, metadata)
}

// HandlePaymentConfirmation records the completed payment and confirms the
// order. The payment mark survives even if the confirmation transition is no
// longer legal (the order may have been cancelled meanwhile).
func (o *Orchestrator) HandlePaymentConfirmation(ctx context.Context, orderID string) (workflow.TransitionEvent, error) {
	lock := o.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return workflow.TransitionEvent{}, err
	}

	if err = ord.MarkPaymentCompleted(time.Now()); err != nil {
		return workflow.TransitionEvent{}, err
	}
	if err = o.store.SaveOrder(ctx, ord); err != nil {
		return workflow.TransitionEvent{}, err
	}

	return o.engine.Transition(ctx, orderID, order.StatusConfirmed, workflow.TriggerPayment, nil)
}

// HandlePaymentFailure records the failed payment and fails the order.
func (o *Orchestrator) HandlePaymentFailure(ctx context.Context, orderID string) (workflow.TransitionEvent, error) {
	lock := o.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return workflow.TransitionEvent{}, err
	}

	ord.MarkPaymentFailed()
	if err = o.store.SaveOrder(ctx, ord); err != nil {
		return workflow.TransitionEvent{}, err
	}

	return o.engine.Transition(ctx, orderID, order.StatusFailed, workflow.TriggerPayment,
		map[string]any{"reason": "payment_failed"})
}

// HandlePartnerAssignment stores the accepted partner on the order and moves
// it to assigned. Assignment and status change are persisted by a single
// save; a failed transition leaves the order untouched.
func (o *Orchestrator) HandlePartnerAssignment(
	ctx context.Context,
	orderID string,
	partnerID string,
) (workflow.TransitionEvent, error) {
	lock := o.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	return o.engine.TransitionWith(ctx, orderID, order.StatusAssigned, workflow.TriggerPartnerAction,
		map[string]any{"partner_id": partnerID},
		func(ord *order.Order) error {
			return ord.AssignPartner(partnerID)
		})
}

// HandleOrderPickup marks the order as picked up by its assigned partner.
func (o *Orchestrator) HandleOrderPickup(ctx context.Context, orderID string, partnerID string) (workflow.TransitionEvent, error) {
	if err := o.verifyAssignedPartner(ctx, orderID, partnerID); err != nil {
		return workflow.TransitionEvent{}, err
	}

	return o.engine.Transition(ctx, orderID, order.StatusPickedUp, workflow.TriggerPartnerAction,
		map[string]any{"partner_id": partnerID})
}

// HandleOrderDelivery completes the delivery and credits the partner's
// delivery count. The credit is a partial failure when it cannot be
// persisted; the delivery itself stands.
func (o *Orchestrator) HandleOrderDelivery(ctx context.Context, orderID string, partnerID string) (workflow.TransitionEvent, error) {
	if err := o.verifyAssignedPartner(ctx, orderID, partnerID); err != nil {
		return workflow.TransitionEvent{}, err
	}

	event, err := o.engine.Transition(ctx, orderID, order.StatusDelivered, workflow.TriggerPartnerAction,
		map[string]any{"partner_id": partnerID})
	if err != nil {
		return workflow.TransitionEvent{}, err
	}

	if err = o.creditDelivery(ctx, partnerID); err != nil {
		o.logger.WarnContext(ctx, "partner delivery credit failed",
			"order_id", orderID, "partner_id", partnerID, "error", err)
	}
	return event, nil
}

// HandleOrderCancellation cancels the order and, when payment had completed,
// follows up with the refund transition. A failed refund leaves the order
// cancelled and is reported to operations.
func (o *Orchestrator) HandleOrderCancellation(ctx context.Context, orderID string, reason string) (workflow.TransitionEvent, error) {
	lock := o.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	event, err := o.engine.Transition(ctx, orderID, order.StatusCancelled, workflow.TriggerManual,
		map[string]any{"reason": reason})
	if err != nil {
		return workflow.TransitionEvent{}, err
	}

	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return event, nil
	}
	if ord.PaymentStatus() != order.PaymentCompleted {
		return event, nil
	}

	if _, err = o.engine.Transition(ctx, orderID, order.StatusRefunded, workflow.TriggerPayment,
		map[string]any{"reason": reason}); err != nil {
		o.logger.ErrorContext(ctx, "refund transition failed after cancellation",
			"order_id", orderID, "error", err)
		return event, nil
	}

	ord, err = o.store.GetOrder(ctx, orderID)
	if err == nil {
		if refundErr := ord.MarkPaymentRefunded(); refundErr == nil {
			if saveErr := o.store.SaveOrder(ctx, ord); saveErr != nil {
				o.logger.ErrorContext(ctx, "refund mark could not be persisted", "order_id", orderID, "error", saveErr)
			}
		}
	}

	return event, nil
}

// GetWorkflowStatus returns the order's workflow view: current status,
// payment state, the transitions legal from here, and the live delivery
// estimate when tracking is active.
func (o *Orchestrator) GetWorkflowStatus(ctx context.Context, orderID string) (WorkflowStatus, error) {
	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return WorkflowStatus{}, err
	}

	status := WorkflowStatus{
		OrderID:            ord.ID(),
		Status:             ord.Status(),
		PaymentStatus:      ord.PaymentStatus(),
		AssignedPartnerID:  ord.AssignedPartnerID(),
		Timestamps:         ord.Timestamps(),
		AllowedTransitions: o.allowedTransitions(ord.Status()),
	}

	if o.eta != nil && !ord.Status().IsTerminal() {
		if minutes, ok := o.eta.EstimatedMinutes(ctx, orderID); ok {
			status.EstimatedMinutes = &minutes
		}
	}
	return status, nil
}

func (o *Orchestrator) allowedTransitions(from order.Status) []order.Status {
	var (
		targets []order.Status
		seen    = make(map[order.Status]struct{})
	)
	for _, rule := range o.rules {
		if rule.From != from {
			continue
		}
		if _, ok := seen[rule.To]; ok {
			continue
		}
		seen[rule.To] = struct{}{}
		targets = append(targets, rule.To)
	}
	return targets
}

func (o *Orchestrator) verifyAssignedPartner(ctx context.Context, orderID string, partnerID string) error {
	if partnerID == "" {
		return errs.NewValueIsRequiredError("partnerId")
	}

	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	assigned := ord.AssignedPartnerID()
	if assigned == nil || *assigned != partnerID {
		return fmt.Errorf("%w: order %s, partner %s", ErrPartnerMismatch, orderID, partnerID)
	}
	return nil
}

func (o *Orchestrator) creditDelivery(ctx context.Context, partnerID string) error {
	uow := o.uowFactory.Create()
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
	p.RecordDelivery()

	if err = uow.PartnerRepository().Update(ctx, p); err != nil {
		return err
	}
	return uow.Commit(ctx)
}

func (o *Orchestrator) lockFor(orderID string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()

	lock, ok := o.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		o.locks[orderID] = lock
	}
	return lock
}
