package models

import "fmt"

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusShipped   OrderStatus = "shipped"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

// transitions is the single table of legal status changes.
// Statuses without an entry are terminal.
var transitions = map[OrderStatus][]OrderStatus{
	StatusPending:   {StatusConfirmed, StatusCancelled},
	StatusConfirmed: {StatusShipped, StatusCancelled},
	StatusShipped:   {StatusDelivered},
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusShipped, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transition is possible from s
func (s OrderStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransitionTo reports whether moving from s to next is allowed
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition validates a move from current to next. Moving to the
// status an order already has is accepted so repeated requests are no-ops.
func CheckTransition(current, next OrderStatus) error {
	if !next.Valid() {
		return NewError(ErrInvalidRequest, fmt.Sprintf("Invalid status: %s", next))
	}
	if current == next || current.CanTransitionTo(next) {
		return nil
	}
	if next == StatusCancelled {
		return NewError(ErrInvalidState, fmt.Sprintf("Cannot cancel order with status: %s", current))
	}
	return NewError(ErrInvalidState, fmt.Sprintf("Cannot change order status from %s to %s", current, next))
}
