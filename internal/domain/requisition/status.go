// Package requisition models stock requests from facilities and staff
// against a warehouse, with an explicit approval workflow.
package requisition

import "medstock/internal/core/apperror"

// Status of a requisition. The set is closed; transitions go through
// CanTransition only.
type Status string

const (
	StatusPending           Status = "pending"
	StatusPartiallyApproved Status = "partially_approved"
	StatusApproved          Status = "approved"
	StatusRejected          Status = "rejected"
	StatusDispatched        Status = "dispatched"
	StatusDelivered         Status = "delivered"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusPartiallyApproved, StatusApproved,
		StatusRejected, StatusDispatched, StatusDelivered:
		return true
	}
	return false
}

// Terminal reports whether no further transitions exist.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusDelivered
}

var transitions = map[Status][]Status{
	StatusPending:           {StatusPartiallyApproved, StatusApproved, StatusRejected},
	StatusPartiallyApproved: {StatusDispatched, StatusRejected},
	StatusApproved:          {StatusDispatched},
	StatusDispatched:        {StatusDelivered},
}

// CanTransition reports whether from -> to is a legal step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and applies a status change on the requisition.
func (r *Requisition) Transition(to Status) error {
	if !CanTransition(r.Status, to) {
		return apperror.NewInvalidTransition("requisition", string(r.Status), string(to))
	}
	r.Status = to
	return nil
}
