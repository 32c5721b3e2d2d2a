// Package repository declares the persistence contracts of the booking core.
//
// Two implementations exist: postgres (pgx, the durable store) and memory
// (a serializable in-process double used by tests and local runs). Every
// operation returns the sentinel errors from package model so callers never
// depend on a driver.
package repository

import (
	"context"
	"time"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

// SlotStore owns the "is this slot free" fact.
type SlotStore interface {
	// TryReserve marks the slot occupied iff it exists, belongs to an active
	// service and is free. It is a single compare-and-set; false means no
	// mutation happened.
	TryReserve(ctx context.Context, slotID int64) (bool, error)
	Get(ctx context.Context, slotID int64) (*model.TimeSlot, error)
	ListByService(ctx context.Context, serviceID int64) ([]model.TimeSlot, error)
	Create(ctx context.Context, slot *model.TimeSlot) error
}

// BookingLedger owns the booking state machine.
type BookingLedger interface {
	// Create inserts a PENDING booking. ErrConflict if a PENDING booking
	// already references the slot.
	Create(ctx context.Context, userID, serviceID, slotID int64) (*model.Booking, error)
	Get(ctx context.Context, bookingID int64) (*model.Booking, error)
	// GetForUpdate reads the booking and holds its row lock until the
	// surrounding transaction ends.
	GetForUpdate(ctx context.Context, bookingID int64) (*model.Booking, error)
	// Transition applies model.NextBookingStatus atomically and reports
	// whether the row changed.
	Transition(ctx context.Context, bookingID int64, to model.BookingStatus) (bool, error)
	ListByUser(ctx context.Context, userID int64) ([]model.BookingDetails, error)
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error)
}

// PaymentLedger owns the payment state machine.
type PaymentLedger interface {
	// Create inserts a PENDING payment. ErrConflict if the booking already
	// has one or the reference is taken.
	Create(ctx context.Context, bookingID, amount int64, reference, provider string) (*model.Payment, error)
	GetByBooking(ctx context.Context, bookingID int64) (*model.Payment, error)
	GetByReference(ctx context.Context, reference string) (*model.Payment, error)
	GetForUpdate(ctx context.Context, paymentID int64) (*model.Payment, error)
	// Transition applies model.NextPaymentStatus atomically. externalRef is
	// stored on the first real transition only; a repeat that carries a
	// different reference is ignored.
	Transition(ctx context.Context, paymentID int64, to model.PaymentStatus, externalRef string) (bool, error)
}

// Catalog is the read side of the service catalog plus seeding.
type Catalog interface {
	GetService(ctx context.Context, serviceID int64) (*model.Service, error)
	ListActive(ctx context.Context) ([]model.Service, error)
	CreateService(ctx context.Context, svc *model.Service) error
}

// UserStore is used for seeding and foreign-key lookups only.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

// ReviewLog keeps notifications that need manual review.
type ReviewLog interface {
	// Flag stores the review; a repeat of the same (payment, requested
	// status, external ref) is ignored.
	Flag(ctx context.Context, review *model.Review) error
	List(ctx context.Context, limit int) ([]model.Review, error)
}

// Repos groups the repositories bound to one connection or transaction.
type Repos struct {
	Slots    SlotStore
	Bookings BookingLedger
	Payments PaymentLedger
	Catalog  Catalog
	Users    UserStore
	Reviews  ReviewLog
}

// Store hands out repositories and runs units of work.
type Store interface {
	// Repos returns repositories where each call commits on its own.
	Repos() Repos
	// InTx runs fn inside one transaction. fn returning an error rolls
	// everything back; otherwise the transaction commits.
	InTx(ctx context.Context, fn func(ctx context.Context, r Repos) error) error
	Close()
}
