package orders

import (
	"fmt"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
)

// Per-mode fulfillment flows. Transitions only ever step forward to the
// immediate next status; skipping and rewinding are both rejected.
// COD orders settle to PAID after delivery, online orders are paid
// before confirmation so DELIVERED ends their flow.
var flows = map[enums.PaymentMode][]enums.OrderStatus{
	enums.PaymentModeOnline: {
		enums.OrderStatusPendingPayment,
		enums.OrderStatusConfirmed,
		enums.OrderStatusPacked,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
	},
	enums.PaymentModeCOD: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusPacked,
		enums.OrderStatusShipped,
		enums.OrderStatusDelivered,
		enums.OrderStatusPaid,
	},
}

// Statuses a vendor may move an order into, provided every line item in
// the order belongs to them.
var vendorAdvanceTargets = map[enums.OrderStatus]bool{
	enums.OrderStatusPacked:  true,
	enums.OrderStatusShipped: true,
}

// ValidateTransition checks that from -> to is the next forward step of
// the mode's flow and that the actor's role is allowed to take it.
func ValidateTransition(mode enums.PaymentMode, from, to enums.OrderStatus, role enums.ActorRole) error {
	if from == enums.OrderStatusCancelled {
		return errors.New(errors.CodeStateConflict, "order is cancelled")
	}
	flow, ok := flows[mode]
	if !ok {
		return errors.New(errors.CodeValidation, fmt.Sprintf("unknown payment mode %q", mode))
	}

	next, ok := nextStatus(flow, from)
	if !ok || next != to {
		return errors.New(errors.CodeStateConflict, "transition not allowed").
			WithDetails(map[string]any{"from": from, "to": to, "mode": mode})
	}

	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSuperAdmin:
		return nil
	case enums.ActorRoleVendor:
		if !vendorAdvanceTargets[to] {
			return errors.New(errors.CodeForbidden, "vendors may only pack and ship")
		}
		return nil
	default:
		return errors.New(errors.CodeForbidden, "role may not advance orders")
	}
}

// ValidateCancellation checks who may cancel at which point of the flow.
// Customers may back out before fulfillment starts; admins may cancel
// anything not yet shipped.
func ValidateCancellation(from enums.OrderStatus, role enums.ActorRole, isOwner bool) error {
	if from.IsTerminal() || from == enums.OrderStatusPaid {
		return errors.New(errors.CodeStateConflict, "order already settled").
			WithDetails(map[string]any{"status": from})
	}

	switch role {
	case enums.ActorRoleAdmin, enums.ActorRoleSuperAdmin:
		if from == enums.OrderStatusShipped {
			return errors.New(errors.CodeStateConflict, "shipped orders cannot be cancelled")
		}
		return nil
	case enums.ActorRoleCustomer:
		if !isOwner {
			return errors.New(errors.CodeForbidden, "not your order")
		}
		if from != enums.OrderStatusPendingPayment && from != enums.OrderStatusConfirmed {
			return errors.New(errors.CodeStateConflict, "order already in fulfillment").
				WithDetails(map[string]any{"status": from})
		}
		return nil
	default:
		return errors.New(errors.CodeForbidden, "role may not cancel orders")
	}
}

func nextStatus(flow []enums.OrderStatus, from enums.OrderStatus) (enums.OrderStatus, bool) {
	for i, status := range flow {
		if status == from {
			if i+1 < len(flow) {
				return flow[i+1], true
			}
			return "", false
		}
	}
	return "", false
}
