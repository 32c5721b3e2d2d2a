package model

// BookingStatus is the booking state machine: PENDING -> CONFIRMED | FAILED.
type BookingStatus string

const (
	BookingPending   BookingStatus = "PENDING"
	BookingConfirmed BookingStatus = "CONFIRMED"
	BookingFailed    BookingStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s BookingStatus) Terminal() bool {
	return s == BookingConfirmed || s == BookingFailed
}

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	return s == BookingPending || s.Terminal()
}

// PaymentStatus is the payment state machine: PENDING -> SUCCESS | FAILED.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentSuccess PaymentStatus = "SUCCESS"
	PaymentFailed  PaymentStatus = "FAILED"
)

// Terminal reports whether no further transition is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentSuccess || s == PaymentFailed
}

// Valid reports whether s is a known payment status.
func (s PaymentStatus) Valid() bool {
	return s == PaymentPending || s.Terminal()
}

// NextBookingStatus decides a booking transition from cur to target.
// It returns changed=false for an idempotent repeat of the current terminal
// state and a *TransitionError for anything else that is not PENDING -> terminal.
func NextBookingStatus(cur, target BookingStatus) (changed bool, err error) {
	if !target.Terminal() {
		return false, &TransitionError{Entity: "booking", From: string(cur), To: string(target)}
	}
	switch {
	case cur == BookingPending:
		return true, nil
	case cur == target:
		return false, nil
	default:
		return false, &TransitionError{Entity: "booking", From: string(cur), To: string(target)}
	}
}

// NextPaymentStatus mirrors NextBookingStatus for payments.
func NextPaymentStatus(cur, target PaymentStatus) (changed bool, err error) {
	if !target.Terminal() {
		return false, &TransitionError{Entity: "payment", From: string(cur), To: string(target)}
	}
	switch {
	case cur == PaymentPending:
		return true, nil
	case cur == target:
		return false, nil
	default:
		return false, &TransitionError{Entity: "payment", From: string(cur), To: string(target)}
	}
}
