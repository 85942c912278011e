package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"campusdelivery/internal/core/domain/model/order"
)

var (
	// ErrInvalidTransition is returned when no rule matches the requested
	// (from, to, trigger) combination. No state change is performed.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrPreconditionNotMet is returned when a matching rule exists but its
	// payment or partner precondition is unmet. No state change is performed.
	ErrPreconditionNotMet = errors.New("transition precondition not met")
)

// OrderStore is the engine's view of the persistent order store. The
// orchestration layer provides an implementation backed by the external
// repository.
type OrderStore interface {
	// GetOrder loads an order by id. Unknown ids yield errs.ErrObjectNotFound.
	GetOrder(ctx context.Context, orderID string) (*order.Order, error)

	// SaveOrder persists the order's mutated fields.
	SaveOrder(ctx context.Context, o *order.Order) error

	// ListInFlight returns every order in a non-terminal status. Used to
	// re-derive timers after a process restart.
	ListInFlight(ctx context.Context) ([]*order.Order, error)
}

// armedTimer is the single timeout timer of one order. The generation
// counter lets a firing distinguish itself from a successor armed after it
// was scheduled but before it ran.
type armedTimer struct {
	timer *time.Timer
	gen   uint64
}

// Engine is the order workflow state machine.
//
// One Engine instance serves all orders. Mutating operations on a single
// order are serialized by a per-order lock; different orders never block
// each other. Each order owns at most one armed timeout timer, and arming a
// new one always cancels the previous one.
type Engine struct {
	store    OrderStore
	rules    RuleSet
	timeouts TimeoutTable
	sink     EventSink
	logger   *slog.Logger
	now      func() time.Time

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	timers  map[string]armedTimer
	nextGen uint64
	stopped bool
}

// NewEngine creates an engine over the given store and event sink. Pass
// DefaultRules and DefaultTimeouts for production behavior; tests may pass
// compressed tables.
func NewEngine(store OrderStore, sink EventSink, rules RuleSet, timeouts TimeoutTable, logger *slog.Logger) *Engine {
	if sink == nil {
		sink = NopSink{}
	}

	return &Engine{
		store:    store,
		rules:    rules,
		timeouts: timeouts,
		sink:     sink,
		logger:   logger.With("component", "workflow_engine"),
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
		timers:   make(map[string]armedTimer),
	}
}

// Transition attempts to move an order to targetStatus via the given
// trigger.
//
// The operation either fully succeeds (status persisted, old timer
// cancelled, new timer armed, transition event emitted) or fully fails with
// no state change:
//   - ErrInvalidTransition when no rule matches
//   - ErrPreconditionNotMet when the rule's payment or partner gate is unmet
//   - errs.ErrObjectNotFound when the order is unknown
//   - the store's error when persistence fails
func (e *Engine) Transition(
	ctx context.Context,
	orderID string,
	targetStatus order.Status,
	trigger TriggerKind,
	metadata map[string]any,
) (TransitionEvent, error) {
	if err := errors.Join(targetStatus.Validate(), trigger.Validate()); err != nil {
		return TransitionEvent{}, err
	}

	lock := e.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	return e.transitionLocked(ctx, orderID, targetStatus, trigger, metadata, nil)
}

// TransitionWith behaves like Transition but additionally applies prepare to
// the loaded aggregate after the rule is matched and before preconditions
// are checked. The prepared mutation and the status change are persisted by
// a single save, so the store never observes one without the other. A
// prepare error aborts the transition with no state change.
func (e *Engine) TransitionWith(
	ctx context.Context,
	orderID string,
	targetStatus order.Status,
	trigger TriggerKind,
	metadata map[string]any,
	prepare func(o *order.Order) error,
) (TransitionEvent, error) {
	if err := errors.Join(targetStatus.Validate(), trigger.Validate()); err != nil {
		return TransitionEvent{}, err
	}

	lock := e.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	return e.transitionLocked(ctx, orderID, targetStatus, trigger, metadata, prepare)
}

// ArmTimeout arms the timeout configured for the order's current status,
// cancelling any previously armed timer. Used when an order enters the
// workflow and when timers are re-derived after a restart. Statuses without
// a configured timeout simply cancel.
func (e *Engine) ArmTimeout(ctx context.Context, orderID string) error {
	lock := e.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return err
	}

	e.swapTimer(orderID, o.Status())
	return nil
}

// RecoverTimers re-derives a timer for every in-flight order. The original
// deadline is not persisted, so recovered orders get a full fresh timeout
// for their current status.
func (e *Engine) RecoverTimers(ctx context.Context) error {
	orders, err := e.store.ListInFlight(ctx)
	if err != nil {
		return fmt.Errorf("list in-flight orders: %w", err)
	}

	for _, o := range orders {
		lock := e.lockFor(o.ID())
		lock.Lock()
		e.swapTimer(o.ID(), o.Status())
		lock.Unlock()
	}

	e.logger.InfoContext(ctx, "workflow timers recovered", "orders", len(orders))
	return nil
}

// Stop cancels every armed timer. The engine accepts no further arming.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.stopped = true
	for orderID, armed := range e.timers {
		armed.timer.Stop()
		delete(e.timers, orderID)
	}
}

// transitionLocked performs the transition while the order's lock is held.
func (e *Engine) transitionLocked(
	ctx context.Context,
	orderID string,
	targetStatus order.Status,
	trigger TriggerKind,
	metadata map[string]any,
	prepare func(o *order.Order) error,
) (TransitionEvent, error) {
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		return TransitionEvent{}, err
	}

	from := o.Status()
	rule := e.rules.Find(from, targetStatus, trigger)
	if rule == nil {
		return TransitionEvent{}, fmt.Errorf("%w: %s -> %s via %s for order %s",
			ErrInvalidTransition, from, targetStatus, trigger, orderID)
	}

	if prepare != nil {
		if err = prepare(o); err != nil {
			return TransitionEvent{}, err
		}
	}

	if err = e.checkPreconditions(o, rule.Preconditions); err != nil {
		return TransitionEvent{}, err
	}

	// Entering a status that carries no partner clears the assignment, so
	// the partner on record is captured before the change.
	partnerID := ""
	if assigned := o.AssignedPartnerID(); assigned != nil {
		partnerID = *assigned
	}

	at := e.now()
	if err = o.ChangeStatus(targetStatus, at); err != nil {
		return TransitionEvent{}, err
	}

	if err = e.store.SaveOrder(ctx, o); err != nil {
		return TransitionEvent{}, fmt.Errorf("persist order %s: %w", orderID, err)
	}

	e.swapTimer(orderID, targetStatus)

	event := TransitionEvent{
		OrderID:   orderID,
		From:      from,
		To:        targetStatus,
		Trigger:   trigger,
		PartnerID: partnerID,
		Effects:   rule.Effects,
		Metadata:  metadata,
		At:        at,
	}

	e.logger.InfoContext(ctx, "order transitioned",
		"order_id", orderID, "from", string(from), "to", string(targetStatus), "trigger", string(trigger))

	e.sink.TransitionCommitted(ctx, event)
	return event, nil
}

func (e *Engine) checkPreconditions(o *order.Order, pre Preconditions) error {
	if pre.PaymentRequired && o.PaymentStatus() != order.PaymentCompleted {
		return fmt.Errorf("%w: order %s requires completed payment, payment is %s",
			ErrPreconditionNotMet, o.ID(), o.PaymentStatus())
	}
	if pre.PartnerRequired && o.AssignedPartnerID() == nil {
		return fmt.Errorf("%w: order %s requires an assigned partner", ErrPreconditionNotMet, o.ID())
	}
	return nil
}

// lockFor returns the serialization lock of one order. Lock entries live for
// the process lifetime so two goroutines can never hold distinct locks for
// the same order.
func (e *Engine) lockFor(orderID string) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()

	lock, ok := e.locks[orderID]
	if !ok {
		lock = &sync.Mutex{}
		e.locks[orderID] = lock
	}
	return lock
}

// swapTimer cancels the order's armed timer and, if the status has a
// configured timeout and is not terminal, arms a fresh one. Caller must hold
// the order's lock.
func (e *Engine) swapTimer(orderID string, status order.Status) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if armed, ok := e.timers[orderID]; ok {
		armed.timer.Stop()
		delete(e.timers, orderID)
	}

	if e.stopped || status.IsTerminal() {
		return
	}

	policy, ok := e.timeouts[status]
	if !ok {
		return
	}

	e.nextGen++
	gen := e.nextGen
	timer := time.AfterFunc(policy.After, func() {
		e.onTimeout(orderID, status, gen)
	})
	e.timers[orderID] = armedTimer{timer: timer, gen: gen}
}

// onTimeout handles a fired status timeout. The order's status may have
// changed between scheduling and firing, so both the timer generation and
// the current status are re-validated before acting; stale firings are
// no-ops.
func (e *Engine) onTimeout(orderID string, from order.Status, gen uint64) {
	lock := e.lockFor(orderID)
	lock.Lock()
	defer lock.Unlock()

	e.mu.Lock()
	armed, ok := e.timers[orderID]
	if !ok || armed.gen != gen {
		e.mu.Unlock()
		return
	}
	delete(e.timers, orderID)
	e.mu.Unlock()

	ctx := context.Background()
	o, err := e.store.GetOrder(ctx, orderID)
	if err != nil {
		e.logger.ErrorContext(ctx, "timeout fired but order could not be loaded",
			"order_id", orderID, "error", err)
		return
	}

	if o.Status() != from {
		e.logger.DebugContext(ctx, "stale timeout ignored",
			"order_id", orderID, "armed_for", string(from), "current", string(o.Status()))
		return
	}

	policy, ok := e.timeouts[from]
	if !ok {
		return
	}

	if policy.AutoTarget != "" {
		_, err = e.transitionLocked(ctx, orderID, policy.AutoTarget, TriggerAutomatic,
			map[string]any{"reason": "status_timeout"}, nil)
		if err != nil {
			// Failed automatic transitions are skipped, not retried; the next
			// manual or external trigger may still move the order forward.
			e.logger.WarnContext(ctx, "automatic transition skipped",
				"order_id", orderID, "from", string(from), "to", string(policy.AutoTarget), "error", err)
		}
		return
	}

	e.logger.InfoContext(ctx, "status timeout alert",
		"order_id", orderID, "status", string(from), "audience", string(policy.Audience))

	e.sink.TimeoutAlert(ctx, AlertEvent{
		OrderID:  orderID,
		Status:   from,
		Audience: policy.Audience,
		Message:  policy.Message,
		At:       e.now(),
	})
}
