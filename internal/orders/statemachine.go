package orders

import (
	"fmt"

	"github.com/angelmondragon/fooddash-backend/pkg/enums"
)

// transitions lists the statuses reachable from each status in one step.
// Terminal statuses map to an empty set.
var transitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPlaced:         {enums.OrderStatusConfirmed, enums.OrderStatusCancelled},
	enums.OrderStatusConfirmed:      {enums.OrderStatusPreparing, enums.OrderStatusCancelled},
	enums.OrderStatusPreparing:      {enums.OrderStatusReady, enums.OrderStatusCancelled},
	enums.OrderStatusReady:          {enums.OrderStatusPickedUp, enums.OrderStatusCancelled},
	enums.OrderStatusPickedUp:       {enums.OrderStatusOutForDelivery},
	enums.OrderStatusOutForDelivery: {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:      {},
	enums.OrderStatusCancelled:      {},
}

// permissions lists the target statuses each role may request. It is
// checked independently of transitions.
var permissions = map[enums.UserRole][]enums.OrderStatus{
	enums.UserRoleAdmin: {
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusReady,
		enums.OrderStatusCancelled,
	},
	enums.UserRoleRider: {
		enums.OrderStatusPickedUp,
		enums.OrderStatusOutForDelivery,
		enums.OrderStatusDelivered,
	},
	enums.UserRoleCustomer: {
		enums.OrderStatusPlaced,
		enums.OrderStatusCancelled,
	},
}

// CanTransition reports whether current has an edge to target. The second
// result is false when current is not a known status at all.
func CanTransition(current, target enums.OrderStatus) (allowed bool, known bool) {
	next, ok := transitions[current]
	if !ok {
		return false, false
	}
	for _, candidate := range next {
		if candidate == target {
			return true, true
		}
	}
	return false, true
}

// RoleMayRequest reports whether role is permitted to request target.
func RoleMayRequest(role enums.UserRole, target enums.OrderStatus) bool {
	for _, candidate := range permissions[role] {
		if candidate == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the statuses reachable from current.
func NextStatuses(current enums.OrderStatus) []enums.OrderStatus {
	next := transitions[current]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// ValidateTables checks the transition and permission tables against the
// known status and role sets.
func ValidateTables() error {
	for _, status := range enums.AllOrderStatuses() {
		next, ok := transitions[status]
		if !ok {
			return fmt.Errorf("status %q missing from transition table", status)
		}
		if status.IsTerminal() && len(next) > 0 {
			return fmt.Errorf("terminal status %q has outgoing transitions", status)
		}
		for _, target := range next {
			if !target.IsValid() {
				return fmt.Errorf("status %q transitions to unknown status %q", status, target)
			}
		}
	}
	for status := range transitions {
		if !status.IsValid() {
			return fmt.Errorf("transition table has unknown status %q", status)
		}
	}
	for role, targets := range permissions {
		if !role.IsValid() {
			return fmt.Errorf("permission table has unknown role %q", role)
		}
		for _, target := range targets {
			if !target.IsValid() {
				return fmt.Errorf("role %q may request unknown status %q", role, target)
			}
		}
	}
	return nil
}
