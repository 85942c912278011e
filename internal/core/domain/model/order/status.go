package order

import (
	"fmt"

	"campusdelivery/internal/pkg/errs"
)

// Status represents the lifecycle state of an order.
//
// The delivery path is:
//
//	placed -> confirmed -> preparing -> ready -> assigned
//	       -> picked_up -> out_for_delivery -> delivered
//
// with the absorbing states cancelled, failed, and refunded reachable from
// most non-terminal states. Which transitions are legal, and what triggers
// them, is defined by the workflow rule table; Status itself only knows the
// value set and which values are terminal.
type Status string

const (
	// StatusPlaced is the initial status of every order.
	StatusPlaced Status = "placed"
	// StatusConfirmed means payment is confirmed and the order is accepted.
	StatusConfirmed Status = "confirmed"
	// StatusPreparing means the vendor is preparing the order.
	StatusPreparing Status = "preparing"
	// StatusReady means the order is ready for partner pickup.
	StatusReady Status = "ready"
	// StatusAssigned means a delivery partner has accepted the order.
	StatusAssigned Status = "assigned"
	// StatusPickedUp means the partner has collected the order.
	StatusPickedUp Status = "picked_up"
	// StatusOutForDelivery means the partner is en route to the customer.
	StatusOutForDelivery Status = "out_for_delivery"
	// StatusDelivered is the successful terminal status.
	StatusDelivered Status = "delivered"
	// StatusCancelled is the terminal status for cancelled orders.
	StatusCancelled Status = "cancelled"
	// StatusFailed is the terminal status for orders that failed processing.
	StatusFailed Status = "failed"
	// StatusRefunded is the terminal status for refunded orders.
	StatusRefunded Status = "refunded"
)

func validStatuses() map[Status]struct{} {
	return map[Status]struct{}{
		StatusPlaced:         {},
		StatusConfirmed:      {},
		StatusPreparing:      {},
		StatusReady:          {},
		StatusAssigned:       {},
		StatusPickedUp:       {},
		StatusOutForDelivery: {},
		StatusDelivered:      {},
		StatusCancelled:      {},
		StatusFailed:         {},
		StatusRefunded:       {},
	}
}

// AllStatuses returns every known status in lifecycle order.
func AllStatuses() []Status {
	return []Status{
		StatusPlaced,
		StatusConfirmed,
		StatusPreparing,
		StatusReady,
		StatusAssigned,
		StatusPickedUp,
		StatusOutForDelivery,
		StatusDelivered,
		StatusCancelled,
		StatusFailed,
		StatusRefunded,
	}
}

// ParseStatus converts a raw string into a Status, failing on unknown values.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if err := s.Validate(); err != nil {
		return "", err
	}
	return s, nil
}

// Validate checks that the Status is one of the known values.
func (s Status) Validate() error {
	if _, ok := validStatuses()[s]; !ok {
		return errs.NewValueIsInvalidErrorWithCause("status", fmt.Errorf("%q is not a valid status", string(s)))
	}
	return nil
}

// String implements fmt.Stringer.
func (s Status) String() string {
	return string(s)
}

// IsTerminal reports whether the status is absorbing: no rule may leave it.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusFailed, StatusRefunded:
		return true
	default:
		return false
	}
}

// RequiresPartner reports whether an order in this status must have an
// assigned delivery partner. The structural invariant is: assignedPartnerID
// is non-nil if and only if RequiresPartner() is true.
func (s Status) RequiresPartner() bool {
	switch s {
	case StatusAssigned, StatusPickedUp, StatusOutForDelivery, StatusDelivered:
		return true
	default:
		return false
	}
}

// PaymentStatus represents the payment state of an order, tracked
// independently of the delivery status.
type PaymentStatus string

const (
	// PaymentPending means payment has not been confirmed yet.
	PaymentPending PaymentStatus = "pending"
	// PaymentCompleted means payment was confirmed.
	PaymentCompleted PaymentStatus = "completed"
	// PaymentFailed means the payment attempt failed.
	PaymentFailed PaymentStatus = "failed"
	// PaymentRefunded means a completed payment was refunded.
	PaymentRefunded PaymentStatus = "refunded"
)

// Validate checks that the PaymentStatus is one of the known values.
func (p PaymentStatus) Validate() error {
	switch p {
	case PaymentPending, PaymentCompleted, PaymentFailed, PaymentRefunded:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("paymentStatus",
			fmt.Errorf("%q is not a valid payment status", string(p)))
	}
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string {
	return string(p)
}
