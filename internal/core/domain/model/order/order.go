package order

import (
	"errors"
	"fmt"
	"time"

	"campusdelivery/internal/core/domain/model/kernel"
	"campusdelivery/internal/pkg/errs"
)

// ErrOrderIsNotConstructed is returned when an Order instance was not created
// through the NewOrder or RestoreOrder factory methods.
var ErrOrderIsNotConstructed = errors.New("Order must be created via NewOrder or RestoreOrder")

// Item is one order line: a product reference and a quantity.
// Items are read by the inventory integration to reserve, release, and
// confirm stock.
type Item struct {
	ProductID string
	Quantity  int
}

// Timestamps holds the lifecycle timestamps of an order. Each is set exactly
// once, by the transition that corresponds to entering the matching status
// (or, for PaidAt, by payment confirmation), and never precedes PlacedAt.
type Timestamps struct {
	PlacedAt    time.Time
	PaidAt      *time.Time
	AcceptedAt  *time.Time
	PickedUpAt  *time.Time
	DeliveredAt *time.Time
	CancelledAt *time.Time
}

// Order represents a delivery order. The aggregate is owned by the external
// store; this type models the fields the orchestration core reads and writes
// and enforces their structural invariants.
//
// Invariants:
//   - status is always a valid Status value
//   - lifecycle timestamps are set exactly once and never before PlacedAt
//   - assignedPartnerID is non-nil iff status.RequiresPartner()
//   - items quantities are positive
type Order struct {
	id                string
	status            Status
	paymentStatus     PaymentStatus
	assignedPartnerID *string
	timestamps        Timestamps
	items             []Item
	deliveryLocation  *kernel.GeoPoint

	isConstructed bool
}

// NewOrder creates a freshly placed order with pending payment.
//
// Parameters:
//   - id: opaque non-empty order identifier supplied by the caller
//   - items: order lines, each with a positive quantity
//   - deliveryLocation: optional delivery coordinates
//   - placedAt: placement time, stamps Timestamps.PlacedAt
func NewOrder(id string, items []Item, deliveryLocation *kernel.GeoPoint, placedAt time.Time) (*Order, error) {
	o := &Order{
		status:        StatusPlaced,
		paymentStatus: PaymentPending,
		timestamps:    Timestamps{PlacedAt: placedAt},
		isConstructed: true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setItems(items),
		o.setDeliveryLocation(deliveryLocation),
	); err != nil {
		return nil, err
	}

	return o, nil
}

// RestoreOrder reconstructs an order from persisted state, re-validating
// every structural invariant. Used by repository adapters.
func RestoreOrder(
	id string,
	status Status,
	paymentStatus PaymentStatus,
	assignedPartnerID *string,
	timestamps Timestamps,
	items []Item,
	deliveryLocation *kernel.GeoPoint,
) (*Order, error) {
	o := &Order{
		status:            status,
		paymentStatus:     paymentStatus,
		assignedPartnerID: assignedPartnerID,
		timestamps:        timestamps,
		isConstructed:     true,
	}

	if err := errors.Join(
		o.setID(id),
		o.setItems(items),
		o.setDeliveryLocation(deliveryLocation),
		status.Validate(),
		paymentStatus.Validate(),
		o.validatePartnerInvariant(),
	); err != nil {
		return nil, err
	}

	return o, nil
}

// Validate ensures the Order was created through a factory method.
func (o *Order) Validate() error {
	if o == nil || !o.isConstructed {
		return ErrOrderIsNotConstructed
	}
	return nil
}

// ID returns the opaque order identifier.
func (o *Order) ID() string {
	return o.id
}

// Status returns the current lifecycle status.
func (o *Order) Status() Status {
	return o.status
}

// PaymentStatus returns the current payment state.
func (o *Order) PaymentStatus() PaymentStatus {
	return o.paymentStatus
}

// AssignedPartnerID returns the assigned delivery partner id, or nil when no
// partner is assigned.
func (o *Order) AssignedPartnerID() *string {
	return o.assignedPartnerID
}

// Timestamps returns the lifecycle timestamps.
func (o *Order) Timestamps() Timestamps {
	return o.timestamps
}

// Items returns the order lines.
func (o *Order) Items() []Item {
	return o.items
}

// DeliveryLocation returns the delivery coordinates, or nil when the order
// has no geocoded destination.
func (o *Order) DeliveryLocation() *kernel.GeoPoint {
	return o.deliveryLocation
}

// AssignPartner records the delivery partner that will carry the order.
// Assignment is only meaningful while the order is waiting for, or already
// has, a partner; the subsequent status change to assigned is the workflow
// engine's job.
func (o *Order) AssignPartner(partnerID string) error {
	if partnerID == "" {
		return errs.NewValueIsRequiredError("partnerId")
	}
	if o.status.IsTerminal() {
		return errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("cannot assign a partner to an order in terminal status %q", o.status))
	}

	o.assignedPartnerID = &partnerID
	return nil
}

// UnassignPartner drops a provisional assignment that never led to the
// assigned status, for example when the partner's acceptance could not be
// committed. Orders already in a partner-carrying status keep their partner.
func (o *Order) UnassignPartner() error {
	if o.status.RequiresPartner() {
		return errs.NewValueIsInvalidErrorWithCause("status",
			fmt.Errorf("cannot unassign the partner of an order in status %q", o.status))
	}

	o.assignedPartnerID = nil
	return nil
}

// ChangeStatus moves the order to a new status and stamps the corresponding
// lifecycle timestamp. It enforces the structural invariants only; whether
// the transition itself is legal is decided by the workflow engine before
// this is called.
//
// Entering a partner-carrying status requires a partner to be assigned.
// Entering cancelled, failed, or refunded drops the assignment so the
// partner invariant keeps holding.
func (o *Order) ChangeStatus(newStatus Status, at time.Time) error {
	if err := newStatus.Validate(); err != nil {
		return err
	}
	if newStatus.RequiresPartner() && o.assignedPartnerID == nil {
		return errs.NewValueIsRequiredError("assignedPartnerId")
	}

	if err := o.stampFor(newStatus, at); err != nil {
		return err
	}

	if !newStatus.RequiresPartner() {
		o.assignedPartnerID = nil
	}
	o.status = newStatus
	return nil
}

// MarkPaymentCompleted records successful payment and stamps PaidAt.
func (o *Order) MarkPaymentCompleted(at time.Time) error {
	if o.paymentStatus == PaymentCompleted {
		return errs.NewValueIsInvalidErrorWithCause("paymentStatus",
			errors.New("payment is already completed"))
	}

	stamp, err := o.stampOnce("paidAt", o.timestamps.PaidAt, at)
	if err != nil {
		return err
	}

	o.timestamps.PaidAt = stamp
	o.paymentStatus = PaymentCompleted
	return nil
}

// MarkPaymentFailed records a failed payment attempt.
func (o *Order) MarkPaymentFailed() {
	o.paymentStatus = PaymentFailed
}

// MarkPaymentRefunded records that a completed payment was refunded.
func (o *Order) MarkPaymentRefunded() error {
	if o.paymentStatus != PaymentCompleted {
		return errs.NewValueIsInvalidErrorWithCause("paymentStatus",
			fmt.Errorf("cannot refund a payment in state %q", o.paymentStatus))
	}

	o.paymentStatus = PaymentRefunded
	return nil
}

// stampFor sets the set-once timestamp associated with entering a status.
// Statuses without a dedicated timestamp stamp nothing.
func (o *Order) stampFor(s Status, at time.Time) error {
	var (
		field string
		slot  **time.Time
	)

	switch s {
	case StatusAssigned:
		field, slot = "acceptedAt", &o.timestamps.AcceptedAt
	case StatusPickedUp:
		field, slot = "pickedUpAt", &o.timestamps.PickedUpAt
	case StatusDelivered:
		field, slot = "deliveredAt", &o.timestamps.DeliveredAt
	case StatusCancelled:
		field, slot = "cancelledAt", &o.timestamps.CancelledAt
	default:
		return nil
	}

	stamp, err := o.stampOnce(field, *slot, at)
	if err != nil {
		return err
	}

	*slot = stamp
	return nil
}

func (o *Order) stampOnce(field string, current *time.Time, at time.Time) (*time.Time, error) {
	if current != nil {
		return nil, errs.NewValueIsInvalidErrorWithCause(field,
			errors.New("timestamp is already set"))
	}
	if at.Before(o.timestamps.PlacedAt) {
		return nil, errs.NewValueIsInvalidErrorWithCause(field,
			errors.New("timestamp precedes placement"))
	}

	return &at, nil
}

func (o *Order) validatePartnerInvariant() error {
	hasPartner := o.assignedPartnerID != nil
	if hasPartner != o.status.RequiresPartner() {
		return errs.NewValueIsInvalidErrorWithCause("assignedPartnerId",
			fmt.Errorf("status %q and partner assignment are inconsistent", o.status))
	}
	if hasPartner && *o.assignedPartnerID == "" {
		return errs.NewValueIsRequiredError("assignedPartnerId")
	}
	return nil
}

func (o *Order) setID(id string) error {
	if id == "" {
		return errs.NewValueIsRequiredError("orderId")
	}
	o.id = id
	return nil
}

func (o *Order) setItems(items []Item) error {
	for _, item := range items {
		if item.ProductID == "" {
			return errs.NewValueIsRequiredError("productId")
		}
		if item.Quantity <= 0 {
			return errs.NewValueIsInvalidErrorWithCause("quantity",
				fmt.Errorf("%d is not greater than 0", item.Quantity))
		}
	}
	o.items = items
	return nil
}

func (o *Order) setDeliveryLocation(loc *kernel.GeoPoint) error {
	if loc != nil {
		if err := loc.Validate(); err != nil {
			return err
		}
	}
	o.deliveryLocation = loc
	return nil
}
