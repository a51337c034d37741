package orders

import (
	"testing"

	"github.com/Vijayapardhu/risbow-backend-sub000/pkg/enums"
	pkgerrors "github.com/Vijayapardhu/risbow-backend-sub000/pkg/errors"
)

func TestOnlineFlowStepsForward(t *testing.T) {
	steps := []struct{ from, to enums.OrderStatus }{
		{enums.OrderStatusPendingPayment, enums.OrderStatusConfirmed},
		{enums.OrderStatusConfirmed, enums.OrderStatusPacked},
		{enums.OrderStatusPacked, enums.OrderStatusShipped},
		{enums.OrderStatusShipped, enums.OrderStatusDelivered},
	}
	for _, step := range steps {
		if err := ValidateTransition(enums.PaymentModeOnline, step.from, step.to, enums.ActorRoleAdmin); err != nil {
			t.Fatalf("%s -> %s: %v", step.from, step.to, err)
		}
	}
}

func TestCODSettlesToPaidAfterDelivery(t *testing.T) {
	if err := ValidateTransition(enums.PaymentModeCOD, enums.OrderStatusDelivered, enums.OrderStatusPaid, enums.ActorRoleAdmin); err != nil {
		t.Fatalf("delivered -> paid: %v", err)
	}
	err := ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusDelivered, enums.OrderStatusPaid, enums.ActorRoleAdmin)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict for online delivered -> paid, got %v", err)
	}
}

func TestSkippingAndRewindingRejected(t *testing.T) {
	cases := []struct{ from, to enums.OrderStatus }{
		{enums.OrderStatusPendingPayment, enums.OrderStatusShipped},
		{enums.OrderStatusConfirmed, enums.OrderStatusDelivered},
		{enums.OrderStatusShipped, enums.OrderStatusPacked},
		{enums.OrderStatusDelivered, enums.OrderStatusConfirmed},
	}
	for _, c := range cases {
		err := ValidateTransition(enums.PaymentModeOnline, c.from, c.to, enums.ActorRoleAdmin)
		if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Fatalf("%s -> %s: expected state conflict, got %v", c.from, c.to, err)
		}
	}
}

func TestCancelledOrdersNeverMove(t *testing.T) {
	err := ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusCancelled, enums.OrderStatusConfirmed, enums.ActorRoleSuperAdmin)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestRoleGating(t *testing.T) {
	err := ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusConfirmed, enums.OrderStatusPacked, enums.ActorRoleCustomer)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected customers blocked, got %v", err)
	}

	if err := ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusConfirmed, enums.OrderStatusPacked, enums.ActorRoleVendor); err != nil {
		t.Fatalf("vendor pack: %v", err)
	}
	if err := ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusPacked, enums.OrderStatusShipped, enums.ActorRoleVendor); err != nil {
		t.Fatalf("vendor ship: %v", err)
	}

	err = ValidateTransition(enums.PaymentModeOnline, enums.OrderStatusShipped, enums.OrderStatusDelivered, enums.ActorRoleVendor)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected vendor blocked from delivering, got %v", err)
	}
}

func TestCancellationWindows(t *testing.T) {
	if err := ValidateCancellation(enums.OrderStatusPendingPayment, enums.ActorRoleCustomer, true); err != nil {
		t.Fatalf("customer cancel pending: %v", err)
	}
	if err := ValidateCancellation(enums.OrderStatusConfirmed, enums.ActorRoleCustomer, true); err != nil {
		t.Fatalf("customer cancel confirmed: %v", err)
	}

	err := ValidateCancellation(enums.OrderStatusPacked, enums.ActorRoleCustomer, true)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected packed blocked for customer, got %v", err)
	}

	err = ValidateCancellation(enums.OrderStatusConfirmed, enums.ActorRoleCustomer, false)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeForbidden {
		t.Fatalf("expected non-owner blocked, got %v", err)
	}

	if err := ValidateCancellation(enums.OrderStatusPacked, enums.ActorRoleAdmin, false); err != nil {
		t.Fatalf("admin cancel packed: %v", err)
	}
	err = ValidateCancellation(enums.OrderStatusShipped, enums.ActorRoleAdmin, false)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected shipped blocked, got %v", err)
	}

	err = ValidateCancellation(enums.OrderStatusDelivered, enums.ActorRoleAdmin, false)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected delivered terminal, got %v", err)
	}
}
