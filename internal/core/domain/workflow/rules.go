package workflow

import (
	"fmt"
	"time"

	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/pkg/errs"
)

// TriggerKind classifies what may fire a transition.
type TriggerKind string

const (
	// TriggerAutomatic is an engine-driven transition fired by a timeout.
	TriggerAutomatic TriggerKind = "automatic"
	// TriggerManual is an explicit API call by a human or the vendor system.
	TriggerManual TriggerKind = "manual"
	// TriggerPayment is gated on payment confirmation.
	TriggerPayment TriggerKind = "payment"
	// TriggerPartnerAction is an action by the assigned delivery partner.
	TriggerPartnerAction TriggerKind = "partner_action"
)

// Validate checks that the TriggerKind is one of the known kinds.
func (k TriggerKind) Validate() error {
	switch k {
	case TriggerAutomatic, TriggerManual, TriggerPayment, TriggerPartnerAction:
		return nil
	default:
		return errs.NewValueIsInvalidErrorWithCause("trigger",
			fmt.Errorf("%q is not a valid trigger kind", string(k)))
	}
}

// Preconditions are the gates a rule checks before the transition may fire.
type Preconditions struct {
	// PaymentRequired demands the order's payment status be completed.
	PaymentRequired bool
	// PartnerRequired demands a delivery partner be assigned.
	PartnerRequired bool
}

// SideEffects declares the work the integration layer must perform after the
// transition commits. The engine only declares them via the emitted event;
// it performs no I/O itself.
type SideEffects struct {
	NotifyCustomer  bool
	NotifyPartner   bool
	NotifyAdmin     bool
	UpdateInventory bool
	GenerateInvoice bool
	UpdateAnalytics bool
}

// Rule is one legal transition in the order state machine. The rule set is
// fixed at startup and shared by all orders.
type Rule struct {
	From          order.Status
	To            order.Status
	Triggers      []TriggerKind
	Preconditions Preconditions
	Effects       SideEffects
}

// allows reports whether the rule accepts the given trigger kind.
func (r Rule) allows(trigger TriggerKind) bool {
	for _, t := range r.Triggers {
		if t == trigger {
			return true
		}
	}
	return false
}

// RuleSet is the canonical transition table.
type RuleSet []Rule

// Find returns the rule matching (from, to, trigger), or nil when the
// transition is not legal.
func (rs RuleSet) Find(from order.Status, to order.Status, trigger TriggerKind) *Rule {
	for i := range rs {
		if rs[i].From == from && rs[i].To == to && rs[i].allows(trigger) {
			return &rs[i]
		}
	}
	return nil
}

// DefaultRules returns the production transition table.
//
// The delivery path runs placed through delivered; cancellation is manual
// from every non-terminal status (and automatic from placed, via the
// placement timeout), failure is reachable around payment and final
// delivery, and refunded follows cancellation of a paid order.
func DefaultRules() RuleSet {
	notifyCustomer := SideEffects{NotifyCustomer: true}
	cancelEffects := SideEffects{NotifyCustomer: true, NotifyAdmin: true, UpdateInventory: true}

	return RuleSet{
		{
			From: order.StatusPlaced, To: order.StatusConfirmed,
			Triggers:      []TriggerKind{TriggerPayment},
			Preconditions: Preconditions{PaymentRequired: true},
			Effects:       SideEffects{NotifyCustomer: true, UpdateInventory: true, UpdateAnalytics: true},
		},
		{
			From: order.StatusPlaced, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual, TriggerAutomatic},
			Effects:  notifyCustomer,
		},
		{
			From: order.StatusPlaced, To: order.StatusFailed,
			Triggers: []TriggerKind{TriggerManual, TriggerPayment},
			Effects:  SideEffects{NotifyCustomer: true, NotifyAdmin: true},
		},
		{
			From: order.StatusConfirmed, To: order.StatusPreparing,
			Triggers: []TriggerKind{TriggerAutomatic, TriggerManual},
			Effects:  notifyCustomer,
		},
		{
			From: order.StatusConfirmed, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  cancelEffects,
		},
		{
			From: order.StatusPreparing, To: order.StatusReady,
			Triggers: []TriggerKind{TriggerAutomatic, TriggerManual},
			Effects:  notifyCustomer,
		},
		{
			From: order.StatusPreparing, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  cancelEffects,
		},
		{
			From: order.StatusReady, To: order.StatusAssigned,
			Triggers:      []TriggerKind{TriggerPartnerAction},
			Preconditions: Preconditions{PartnerRequired: true},
			Effects:       SideEffects{NotifyCustomer: true, NotifyPartner: true},
		},
		{
			From: order.StatusReady, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  cancelEffects,
		},
		{
			From: order.StatusAssigned, To: order.StatusPickedUp,
			Triggers:      []TriggerKind{TriggerPartnerAction},
			Preconditions: Preconditions{PartnerRequired: true},
			Effects:       notifyCustomer,
		},
		{
			From: order.StatusAssigned, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  SideEffects{NotifyCustomer: true, NotifyPartner: true, NotifyAdmin: true, UpdateInventory: true},
		},
		{
			From: order.StatusPickedUp, To: order.StatusOutForDelivery,
			Triggers:      []TriggerKind{TriggerAutomatic, TriggerPartnerAction},
			Preconditions: Preconditions{PartnerRequired: true},
			Effects:       notifyCustomer,
		},
		{
			From: order.StatusPickedUp, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  SideEffects{NotifyCustomer: true, NotifyPartner: true, NotifyAdmin: true, UpdateInventory: true},
		},
		{
			From: order.StatusOutForDelivery, To: order.StatusDelivered,
			Triggers:      []TriggerKind{TriggerPartnerAction},
			Preconditions: Preconditions{PartnerRequired: true},
			Effects: SideEffects{
				NotifyCustomer: true, NotifyAdmin: true,
				UpdateInventory: true, GenerateInvoice: true, UpdateAnalytics: true,
			},
		},
		{
			From: order.StatusOutForDelivery, To: order.StatusCancelled,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  SideEffects{NotifyCustomer: true, NotifyPartner: true, NotifyAdmin: true, UpdateInventory: true},
		},
		{
			From: order.StatusOutForDelivery, To: order.StatusFailed,
			Triggers: []TriggerKind{TriggerManual},
			Effects:  SideEffects{NotifyCustomer: true, NotifyAdmin: true},
		},
		{
			From: order.StatusCancelled, To: order.StatusRefunded,
			Triggers:      []TriggerKind{TriggerPayment},
			Preconditions: Preconditions{PaymentRequired: true},
			Effects:       SideEffects{NotifyCustomer: true, UpdateAnalytics: true},
		},
	}
}

// TimeoutPolicy describes what happens when an order sits in a status for
// too long. Either AutoTarget names the status to transition to with
// TriggerAutomatic, or (when empty) an alert to Audience is emitted with no
// state change.
type TimeoutPolicy struct {
	After      time.Duration
	AutoTarget order.Status
	Audience   Audience
	Message    string
}

// TimeoutTable maps statuses to their timeout policy. Statuses without an
// entry never time out.
type TimeoutTable map[order.Status]TimeoutPolicy

// DefaultTimeouts returns the production per-status timeout table.
func DefaultTimeouts() TimeoutTable {
	return TimeoutTable{
		order.StatusPlaced: {
			After:      10 * time.Minute,
			AutoTarget: order.StatusCancelled,
		},
		order.StatusConfirmed: {
			After:      2 * time.Minute,
			AutoTarget: order.StatusPreparing,
		},
		order.StatusPreparing: {
			After:      15 * time.Minute,
			AutoTarget: order.StatusReady,
		},
		order.StatusReady: {
			After:    30 * time.Minute,
			Audience: AudienceAdmin,
			Message:  "order has been waiting for a delivery partner for 30 minutes",
		},
		order.StatusAssigned: {
			After:    5 * time.Minute,
			Audience: AudiencePartner,
			Message:  "assigned order has not been picked up for 5 minutes",
		},
		order.StatusPickedUp: {
			After:      time.Minute,
			AutoTarget: order.StatusOutForDelivery,
		},
		order.StatusOutForDelivery: {
			After:    45 * time.Minute,
			Audience: AudiencePartner,
			Message:  "delivery has been in flight for 45 minutes",
		},
	}
}
