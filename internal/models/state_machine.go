package models

import "fmt"

// ValidOrderTransitions defines the manual status transitions.
// Flow: PENDING → IN_PROGRESS → COMPLETED
// CANCELLED can be reached from any non-terminal state.
// ARCHIVED is not listed: archival goes through the lifecycle Archive path
// from any state, and restore always lands on PENDING.
var ValidOrderTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusPending:    {OrderStatusInProgress, OrderStatusCancelled},
	OrderStatusInProgress: {OrderStatusCompleted, OrderStatusCancelled},
	OrderStatusCompleted:  {}, // Terminal state
	OrderStatusCancelled:  {}, // Terminal state
	OrderStatusArchived:   {}, // Left only through restore
}

// CanTransitionOrderStatus checks if a transition from one order status to another is valid
func CanTransitionOrderStatus(from, to OrderStatus) bool {
	validTransitions, exists := ValidOrderTransitions[from]
	if !exists {
		return false
	}
	for _, validTo := range validTransitions {
		if validTo == to {
			return true
		}
	}
	return false
}

// ValidateOrderStatusTransition returns an error if the transition is invalid
func ValidateOrderStatusTransition(from, to OrderStatus) error {
	if !CanTransitionOrderStatus(from, to) {
		return fmt.Errorf("invalid order status transition from %s to %s", from, to)
	}
	return nil
}

// GetNextValidOrderStatuses returns the list of valid next statuses for an order
func GetNextValidOrderStatuses(current OrderStatus) []OrderStatus {
	return ValidOrderTransitions[current]
}

// IsTerminalOrderStatus checks if the order status is a terminal state
func IsTerminalOrderStatus(status OrderStatus) bool {
	return len(ValidOrderTransitions[status]) == 0
}

// IsValid reports whether s is one of the known statuses
func (s OrderStatus) IsValid() bool {
	_, ok := ValidOrderTransitions[s]
	return ok
}

func (s OrderStatus) String() string {
	switch s {
	case OrderStatusPending:
		return "PENDING"
	case OrderStatusInProgress:
		return "IN_PROGRESS"
	case OrderStatusCompleted:
		return "COMPLETED"
	case OrderStatusCancelled:
		return "CANCELLED"
	case OrderStatusArchived:
		return "ARCHIVED"
	default:
		return fmt.Sprintf("OrderStatus(%d)", int(s))
	}
}

// DisplayName returns a human-readable name for the order status
func (s OrderStatus) DisplayName() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusInProgress:
		return "In Progress"
	case OrderStatusCompleted:
		return "Completed"
	case OrderStatusCancelled:
		return "Cancelled"
	case OrderStatusArchived:
		return "Archived"
	default:
		return s.String()
	}
}

// IsValid reports whether p is one of the known priorities
func (p OrderPriority) IsValid() bool {
	return p >= PriorityLow && p <= PriorityUrgent
}

func (p OrderPriority) String() string {
	switch p {
	case PriorityLow:
		return "LOW"
	case PriorityNormal:
		return "NORMAL"
	case PriorityHigh:
		return "HIGH"
	case PriorityUrgent:
		return "URGENT"
	default:
		return fmt.Sprintf("OrderPriority(%d)", int(p))
	}
}

// IsValid reports whether t is one of the known order types
func (t OrderType) IsValid() bool {
	return t == OrderTypeIncoming || t == OrderTypeOutgoing
}
