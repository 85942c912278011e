package workflow

import (
	"context"
	"time"

	"campusdelivery/internal/core/domain/model/order"
)

// Audience names who a notification or alert is addressed to.
type Audience string

const (
	// AudienceCustomer addresses the ordering customer.
	AudienceCustomer Audience = "customer"
	// AudiencePartner addresses the assigned delivery partner.
	AudiencePartner Audience = "partner"
	// AudienceAdmin addresses marketplace operations.
	AudienceAdmin Audience = "admin"
)

// TransitionEvent is emitted after a transition commits. It carries the
// declared side effects the integration layer must honor; the engine itself
// performs no I/O.
type TransitionEvent struct {
	OrderID string
	From    order.Status
	To      order.Status
	Trigger TriggerKind

	// PartnerID is the partner on the order when the transition fired,
	// captured before a partner-clearing status change. Empty when no
	// partner was assigned.
	PartnerID string

	Effects  SideEffects
	Metadata map[string]any
	At       time.Time
}

// AlertEvent is emitted when a status timeout expires without a configured
// automatic transition. No state change accompanies it.
type AlertEvent struct {
	OrderID  string
	Status   order.Status
	Audience Audience
	Message  string
	At       time.Time
}

// EventSink receives engine events. The engine calls it synchronously while
// still holding the order's lock, so implementations should hand slow work
// off rather than block. Sink failures are the sink's own concern: the
// transition is already committed when the sink runs.
type EventSink interface {
	TransitionCommitted(ctx context.Context, event TransitionEvent)
	TimeoutAlert(ctx context.Context, event AlertEvent)
}

// NopSink is an EventSink that drops every event. Useful in tests and as a
// default before the integration layer subscribes.
type NopSink struct{}

// TransitionCommitted implements EventSink.
func (NopSink) TransitionCommitted(context.Context, TransitionEvent) {}

// TimeoutAlert implements EventSink.
func (NopSink) TimeoutAlert(context.Context, AlertEvent) {}
