package order

import (
	"fmt"
	"strings"
)

// Status is the lifecycle state of an order.
type Status string

const (
	StatusReceived                Status = "received"
	StatusAccepted                Status = "accepted"
	StatusInPreparation           Status = "in_preparation"
	StatusInDelivery              Status = "in_delivery"
	StatusDelivered               Status = "delivered"
	StatusAwaitingEquipmentReturn Status = "awaiting_equipment_return"
	StatusCompleted               Status = "completed"
	StatusCancelled               Status = "cancelled"
)

// transitions is the legal status graph. Terminal states have no entry.
var transitions = map[Status][]Status{
	StatusReceived:                {StatusAccepted, StatusCancelled},
	StatusAccepted:                {StatusInPreparation, StatusCancelled},
	StatusInPreparation:           {StatusInDelivery},
	StatusInDelivery:              {StatusDelivered},
	StatusDelivered:               {StatusAwaitingEquipmentReturn, StatusCompleted},
	StatusAwaitingEquipmentReturn: {StatusCompleted},
}

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []Status{
	StatusReceived,
	StatusAccepted,
	StatusInPreparation,
	StatusInDelivery,
	StatusDelivered,
	StatusAwaitingEquipmentReturn,
	StatusCompleted,
	StatusCancelled,
}

// ParseStatus converts s to a Status.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", &ValidationError{Field: "status", Reason: fmt.Sprintf("unknown status %q", s)}
	}
	return st, nil
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// NextStatuses returns the statuses reachable from s in one step.
func (s Status) NextStatuses() []Status {
	return append([]Status(nil), transitions[s]...)
}

// CanTransition reports whether from -> to is an edge of the status graph.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition checks a staff-driven transition. Moving to
// StatusCancelled additionally requires a reason and a contact mode.
func ValidateTransition(from, to Status, reason string, contact ContactMode) error {
	if !CanTransition(from, to) {
		return &TransitionError{From: from, To: to}
	}
	if to == StatusCancelled && (strings.TrimSpace(reason) == "" || contact == "") {
		return ErrMissingCancellationReason
	}
	return nil
}

// ContactMode is how the customer prefers to be reached.
type ContactMode string

const (
	ContactPhone ContactMode = "phone"
	ContactEmail ContactMode = "email"
)

// ParseContactMode converts s to a ContactMode. Empty input yields "".
func ParseContactMode(s string) (ContactMode, error) {
	switch m := ContactMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "", ContactPhone, ContactEmail:
		return m, nil
	case "gsm":
		return ContactPhone, nil
	default:
		return "", &ValidationError{Field: "contactMode", Reason: fmt.Sprintf("unknown contact mode %q", s)}
	}
}
