package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrSlotUnavailable means the slot is taken, missing, or not bookable for the service.
	ErrSlotUnavailable = errors.New("slot is not available")

	// ErrServiceUnavailable means the catalog item is inactive or missing.
	ErrServiceUnavailable = errors.New("service is not available")

	// ErrConflict signals a uniqueness violation on booking or payment creation.
	// It indicates a race outside the reservation transaction and is never shown to customers.
	ErrConflict = errors.New("conflicting record already exists")

	// ErrIllegalTransition is returned when a terminal state would be overwritten.
	ErrIllegalTransition = errors.New("illegal state transition")

	// ErrInvalidNotification is returned for gateway notifications that fail verification.
	ErrInvalidNotification = errors.New("invalid payment notification")

	// ErrInvalidInput wraps request validation failures.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnknownBooking is returned when a notification does not map to a booking.
	ErrUnknownBooking = errors.New("unknown booking")
)

// TransitionError describes a rejected state change.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s: cannot move from %s to %s", e.Entity, e.From, e.To)
}

// Is makes errors.Is(err, ErrIllegalTransition) match.
func (e *TransitionError) Is(target error) bool {
	return target == ErrIllegalTransition
}
