package orchestrator

import (
	"context"
	"fmt"

	"campusdelivery/internal/core/domain/model/order"
	"campusdelivery/internal/core/domain/workflow"
)

// TransitionCommitted applies the declared side effects of a committed
// transition. Called synchronously by the engine, including for transitions
// fired by status timeouts, so every path through the state machine gets the
// same effects.
//
// Effect failures are logged and counted but never propagate: the status
// change has already been persisted.
func (o *Orchestrator) TransitionCommitted(ctx context.Context, event workflow.TransitionEvent) {
	var failed []string

	if event.Effects.NotifyCustomer {
		msg := fmt.Sprintf("your order is now %s", event.To)
		if err := o.notifier.NotifyCustomer(ctx, event.OrderID, msg); err != nil {
			failed = append(failed, "notify_customer")
			o.logger.WarnContext(ctx, "customer notification failed", "order_id", event.OrderID, "error", err)
		}
	}

	if event.Effects.NotifyPartner {
		partnerID, _ := event.Metadata["partner_id"].(string)
		if partnerID == "" {
			// Transitions that clear the assignment, cancellation of an
			// assigned order among them, carry the partner on the event.
			partnerID = event.PartnerID
		}
		if partnerID == "" {
			failed = append(failed, "notify_partner")
			o.logger.WarnContext(ctx, "partner notification skipped, no partner on record",
				"order_id", event.OrderID, "to", string(event.To))
		} else {
			msg := fmt.Sprintf("order %s is now %s", event.OrderID, event.To)
			if err := o.notifier.NotifyPartner(ctx, partnerID, event.OrderID, msg); err != nil {
				failed = append(failed, "notify_partner")
				o.logger.WarnContext(ctx, "partner notification failed",
					"order_id", event.OrderID, "partner_id", partnerID, "error", err)
			}
		}
	}

	if event.Effects.NotifyAdmin {
		msg := fmt.Sprintf("order %s moved from %s to %s", event.OrderID, event.From, event.To)
		if err := o.notifier.NotifyAdmin(ctx, event.OrderID, msg); err != nil {
			failed = append(failed, "notify_admin")
			o.logger.WarnContext(ctx, "admin notification failed", "order_id", event.OrderID, "error", err)
		}
	}

	if event.Effects.UpdateInventory {
		if err := o.applyInventory(ctx, event); err != nil {
			failed = append(failed, "update_inventory")
			o.logger.WarnContext(ctx, "inventory update failed", "order_id", event.OrderID, "error", err)
		}
	}

	if event.Effects.GenerateInvoice {
		// Invoicing has no dedicated downstream yet; the admin channel
		// carries the request.
		msg := fmt.Sprintf("generate invoice for delivered order %s", event.OrderID)
		if err := o.notifier.NotifyAdmin(ctx, event.OrderID, msg); err != nil {
			failed = append(failed, "generate_invoice")
			o.logger.WarnContext(ctx, "invoice request failed", "order_id", event.OrderID, "error", err)
		}
	}

	if event.Effects.UpdateAnalytics {
		o.logger.InfoContext(ctx, "analytics event",
			"order_id", event.OrderID, "from", string(event.From), "to", string(event.To), "trigger", string(event.Trigger))
	}

	if len(failed) > 0 {
		o.logger.WarnContext(ctx, "transition committed with partial side effect failure",
			"order_id", event.OrderID, "to", string(event.To), "failed_effects", failed)
	}
}

// TimeoutAlert routes a status timeout alert to its audience.
func (o *Orchestrator) TimeoutAlert(ctx context.Context, event workflow.AlertEvent) {
	var err error
	switch event.Audience {
	case workflow.AudiencePartner:
		partnerID := o.assignedPartner(ctx, event.OrderID)
		if partnerID == "" {
			err = o.notifier.NotifyAdmin(ctx, event.OrderID, event.Message)
			break
		}
		err = o.notifier.NotifyPartner(ctx, partnerID, event.OrderID, event.Message)
	case workflow.AudienceCustomer:
		err = o.notifier.NotifyCustomer(ctx, event.OrderID, event.Message)
	default:
		err = o.notifier.NotifyAdmin(ctx, event.OrderID, event.Message)
	}

	if err != nil {
		o.logger.WarnContext(ctx, "timeout alert delivery failed",
			"order_id", event.OrderID, "audience", string(event.Audience), "error", err)
	}
}

// applyInventory maps the target status to the matching stock movement.
func (o *Orchestrator) applyInventory(ctx context.Context, event workflow.TransitionEvent) error {
	ord, err := o.store.GetOrder(ctx, event.OrderID)
	if err != nil {
		return err
	}

	switch event.To {
	case order.StatusConfirmed:
		return o.inventory.Reserve(ctx, ord.ID(), ord.Items())
	case order.StatusDelivered:
		return o.inventory.ConfirmSale(ctx, ord.ID(), ord.Items())
	case order.StatusCancelled, order.StatusFailed:
		// Release only what was reserved. Unpaid orders never reserved.
		if ord.PaymentStatus() == order.PaymentCompleted || ord.PaymentStatus() == order.PaymentRefunded {
			return o.inventory.Release(ctx, ord.ID(), ord.Items())
		}
		return nil
	default:
		return nil
	}
}

func (o *Orchestrator) assignedPartner(ctx context.Context, orderID string) string {
	ord, err := o.store.GetOrder(ctx, orderID)
	if err != nil || ord.AssignedPartnerID() == nil {
		return ""
	}
	return *ord.AssignedPartnerID()
}
