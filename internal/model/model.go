// Package model defines the core domain types for the slot booking system.
package model

import "time"

// Service is a catalog entry customers can book. Price is in minor currency units.
type Service struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	Price       int64     `json:"price"`
	Duration    int       `json:"duration"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"created_at"`
}

// TimeSlot is a bookable interval owned by one service.
// Occupied flips from false to true once and is never reset by the core.
type TimeSlot struct {
	ID        int64  `json:"id"`
	ServiceID int64  `json:"service_id"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
	Occupied  bool   `json:"occupied"`
}

// Booking is a customer's claim on exactly one slot.
type Booking struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	ServiceID int64         `json:"service_id"`
	SlotID    int64         `json:"slot_id"`
	Status    BookingStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// Payment is the money-movement record tied 1:1 to a booking.
//
// Reference is the opaque transaction id handed to the gateway when the
// booking is created; callbacks are matched on it verbatim. ExternalRef is
// the gateway's own payment id and is recorded once, on finalization.
type Payment struct {
	ID          int64         `json:"id"`
	BookingID   int64         `json:"booking_id"`
	Amount      int64         `json:"amount"`
	Status      PaymentStatus `json:"status"`
	Reference   string        `json:"reference"`
	ExternalRef string        `json:"external_ref,omitempty"`
	Provider    string        `json:"provider"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// User is referenced by bookings. Authentication lives outside this service.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Phone        string    `json:"phone,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// BookingDetails joins a booking with its service, slot and payment for
// account listings.
type BookingDetails struct {
	Booking
	ServiceName   string        `json:"service_name"`
	Price         int64         `json:"price"`
	Date          string        `json:"date"`
	StartTime     string        `json:"start_time"`
	EndTime       string        `json:"end_time"`
	PaymentStatus PaymentStatus `json:"payment_status"`
}

// Review records a gateway notification that could not be applied and
// needs a human to look at it.
type Review struct {
	ID              int64         `json:"id"`
	BookingID       int64         `json:"booking_id"`
	PaymentID       int64         `json:"payment_id"`
	Reference       string        `json:"reference"`
	ExternalRef     string        `json:"external_ref,omitempty"`
	CurrentStatus   PaymentStatus `json:"current_status"`
	RequestedStatus PaymentStatus `json:"requested_status"`
	Reason          string        `json:"reason"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Contact carries the customer fields forwarded to payment initiation.
type Contact struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreateBookingRequest is the payload for reserving a slot.
type CreateBookingRequest struct {
	ServiceID int64 `json:"service_id"`
	SlotID    int64 `json:"slot_id"`
	Contact
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
