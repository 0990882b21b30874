package enums

import "testing"

func TestParseOrderStatus(t *testing.T) {
	for _, status := range AllOrderStatuses() {
		got, err := ParseOrderStatus(status.String())
		if err != nil {
			t.Fatalf("parse %s: %v", status, err)
		}
		if got != status {
			t.Fatalf("expected %s got %s", status, got)
		}
	}
	if _, err := ParseOrderStatus("shipped"); err == nil {
		t.Fatalf("expected unknown status to fail")
	}
}

func TestOrderStatusTerminal(t *testing.T) {
	terminal := map[OrderStatus]bool{OrderStatusDelivered: true, OrderStatusCancelled: true}
	for _, status := range AllOrderStatuses() {
		if status.IsTerminal() != terminal[status] {
			t.Fatalf("unexpected terminal flag for %s", status)
		}
	}
}

func TestOrderStatusAcceptsRiderAssignment(t *testing.T) {
	allowed := map[OrderStatus]bool{OrderStatusConfirmed: true, OrderStatusPreparing: true, OrderStatusReady: true}
	for _, status := range AllOrderStatuses() {
		if status.AcceptsRiderAssignment() != allowed[status] {
			t.Fatalf("unexpected assignment flag for %s", status)
		}
	}
}

func TestParseUserRole(t *testing.T) {
	if role, err := ParseUserRole("rider"); err != nil || role != UserRoleRider {
		t.Fatalf("expected rider, got %v %v", role, err)
	}
	if UserRole("chef").IsValid() {
		t.Fatalf("chef is not a role")
	}
}

func TestParseRejectsUnknownValues(t *testing.T) {
	checks := map[string]func(string) error{
		"payment method": func(v string) error { _, err := ParsePaymentMethod(v); return err },
		"payment status": func(v string) error { _, err := ParsePaymentStatus(v); return err },
		"topup status":   func(v string) error { _, err := ParseTopupStatus(v); return err },
		"wallet status":  func(v string) error { _, err := ParseWalletStatus(v); return err },
	}
	for kind, parse := range checks {
		if err := parse("bogus"); err == nil || err.Error() != `invalid `+kind+` "bogus"` {
			t.Fatalf("%s: unexpected error %v", kind, err)
		}
	}
	if m, err := ParsePaymentMethod("cash"); err != nil || m != PaymentMethodCash {
		t.Fatalf("expected cash, got %v %v", m, err)
	}
}
