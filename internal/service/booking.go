// Package service implements the booking and payment workflows on top of a
// repository.Store. Every state change happens inside one unit of work;
// events and other side effects run only after it commits.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
)

// Provider is recorded on every payment created here.
const Provider = "PayU"

// Routing keys for outcome events.
const (
	EventBookingCreated        = "booking.created"
	EventBookingConfirmed      = "booking.confirmed"
	EventPaymentFailed         = "payment.failed"
	EventPaymentReviewRequired = "payment.review_required"
)

// EventPublisher delivers outcome events to downstream consumers.
type EventPublisher interface {
	PublishJSON(ctx context.Context, key string, v any) error
}

// BookingEvent is the payload of every outcome event.
type BookingEvent struct {
	BookingID     int64               `json:"booking_id"`
	PaymentID     int64               `json:"payment_id"`
	UserID        int64               `json:"user_id,omitempty"`
	Reference     string              `json:"reference"`
	Amount        int64               `json:"amount,omitempty"`
	BookingStatus model.BookingStatus `json:"booking_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// NewReference returns a fresh opaque gateway transaction id.
func NewReference() string {
	id := uuid.New()
	return "TXN" + strings.ToUpper(strings.ReplaceAll(id.String(), "-", "")[:20])
}

// ReserveRequest is the input of BookingService.Reserve.
type ReserveRequest struct {
	UserID    int64
	ServiceID int64
	SlotID    int64
	Contact   model.Contact
}

func (r ReserveRequest) validate() error {
	switch {
	case r.UserID <= 0:
		return fmt.Errorf("%w: user is required", model.ErrInvalidInput)
	case r.ServiceID <= 0:
		return fmt.Errorf("%w: service_id is required", model.ErrInvalidInput)
	case r.SlotID <= 0:
		return fmt.Errorf("%w: slot_id is required", model.ErrInvalidInput)
	case strings.TrimSpace(r.Contact.FirstName) == "":
		return fmt.Errorf("%w: first_name is required", model.ErrInvalidInput)
	case strings.TrimSpace(r.Contact.Email) == "":
		return fmt.Errorf("%w: email is required", model.ErrInvalidInput)
	case !isValidEmail(strings.TrimSpace(r.Contact.Email)):
		return fmt.Errorf("%w: email is not a valid email address", model.ErrInvalidInput)
	case strings.TrimSpace(r.Contact.Phone) == "":
		return fmt.Errorf("%w: phone is required", model.ErrInvalidInput)
	}
	return nil
}

// isValidEmail does a basic structural check.
func isValidEmail(email string) bool {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}
	return len(parts[0]) > 0 && strings.Contains(parts[1], ".")
}

// Reservation is what a successful Reserve hands to payment initiation.
type Reservation struct {
	BookingID   int64  `json:"booking_id"`
	PaymentID   int64  `json:"payment_id"`
	Amount      int64  `json:"amount"`
	Reference   string `json:"reference"`
	ServiceName string `json:"service_name"`
}

// BookingService reserves slots and answers booking queries.
type BookingService struct {
	store     repository.Store
	events    EventPublisher
	reference func() string
}

// Option configures BookingService and Reconciler.
type Option func(*options)

type options struct {
	events    EventPublisher
	reference func() string
	replay    ReplayCache
}

// WithPublisher sends outcome events after commit. Without it events are dropped.
func WithPublisher(p EventPublisher) Option {
	return func(o *options) { o.events = p }
}

// WithReferenceGenerator replaces NewReference.
func WithReferenceGenerator(fn func() string) Option {
	return func(o *options) { o.reference = fn }
}

// WithReplayCache lets the reconciler answer known redeliveries without a
// database transaction.
func WithReplayCache(c ReplayCache) Option {
	return func(o *options) { o.replay = c }
}

func buildOptions(opts []Option) options {
	o := options{reference: NewReference}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func NewBookingService(store repository.Store, opts ...Option) *BookingService {
	o := buildOptions(opts)
	return &BookingService{store: store, events: o.events, reference: o.reference}
}

// Reserve claims the slot and opens a PENDING booking with its PENDING
// payment in one unit of work. Any failure after the claim rolls the claim
// back, so the slot is never left occupied without a booking.
func (s *BookingService) Reserve(ctx context.Context, req ReserveRequest) (*Reservation, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	var res *Reservation
	err := s.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		ok, err := r.Slots.TryReserve(ctx, req.SlotID)
		if err != nil {
			return fmt.Errorf("reserve slot: %w", err)
		}
		if !ok {
			return model.ErrSlotUnavailable
		}

		slot, err := r.Slots.Get(ctx, req.SlotID)
		if err != nil {
			return fmt.Errorf("read slot: %w", err)
		}

		svc, err := r.Catalog.GetService(ctx, req.ServiceID)
		if errors.Is(err, model.ErrNotFound) {
			return model.ErrServiceUnavailable
		}
		if err != nil {
			return fmt.Errorf("read service: %w", err)
		}
		if !svc.Active {
			return model.ErrServiceUnavailable
		}
		if slot.ServiceID != svc.ID {
			return model.ErrSlotUnavailable
		}

		booking, err := r.Bookings.Create(ctx, req.UserID, svc.ID, slot.ID)
		if err != nil {
			return fmt.Errorf("create booking: %w", err)
		}

		payment, err := r.Payments.Create(ctx, booking.ID, svc.Price, s.reference(), Provider)
		if err != nil {
			return fmt.Errorf("create payment: %w", err)
		}

		res = &Reservation{
			BookingID:   booking.ID,
			PaymentID:   payment.ID,
			Amount:      payment.Amount,
			Reference:   payment.Reference,
			ServiceName: svc.Name,
		}
		return nil
	})
	if err != nil {
		logrus.WithFields(logrus.Fields{
			"user_id":    req.UserID,
			"service_id": req.ServiceID,
			"slot_id":    req.SlotID,
		}).WithError(err).Info("reservation rejected")
		return nil, err
	}

	logrus.WithFields(logrus.Fields{
		"booking_id": res.BookingID,
		"reference":  res.Reference,
		"amount":     res.Amount,
	}).Info("booking reserved")

	publish(ctx, s.events, EventBookingCreated, BookingEvent{
		BookingID:     res.BookingID,
		PaymentID:     res.PaymentID,
		UserID:        req.UserID,
		Reference:     res.Reference,
		Amount:        res.Amount,
		BookingStatus: model.BookingPending,
		PaymentStatus: model.PaymentPending,
	})
	return res, nil
}

func (s *BookingService) ListServices(ctx context.Context) ([]model.Service, error) {
	return s.store.Repos().Catalog.ListActive(ctx)
}

// ListSlots returns every slot of an active service, occupied ones included.
func (s *BookingService) ListSlots(ctx context.Context, serviceID int64) ([]model.TimeSlot, error) {
	r := s.store.Repos()
	svc, err := r.Catalog.GetService(ctx, serviceID)
	if err != nil {
		return nil, err
	}
	if !svc.Active {
		return nil, model.ErrServiceUnavailable
	}
	return r.Slots.ListByService(ctx, serviceID)
}

func (s *BookingService) ListUserBookings(ctx context.Context, userID int64) ([]model.BookingDetails, error) {
	return s.store.Repos().Bookings.ListByUser(ctx, userID)
}

// GetBooking returns a booking with its payment. Bookings of other users
// are reported as not found.
func (s *BookingService) GetBooking(ctx context.Context, userID, bookingID int64) (*model.Booking, *model.Payment, error) {
	r := s.store.Repos()
	b, err := r.Bookings.Get(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.UserID != userID {
		return nil, nil, model.ErrNotFound
	}
	p, err := r.Payments.GetByBooking(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	return b, p, nil
}

func (s *BookingService) ListReviews(ctx context.Context, limit int) ([]model.Review, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return s.store.Repos().Reviews.List(ctx, limit)
}

func publish(ctx context.Context, p EventPublisher, key string, ev BookingEvent) {
	if p == nil {
		return
	}
	if err := p.PublishJSON(ctx, key, ev); err != nil {
		logrus.WithFields(logrus.Fields{
			"event":      key,
			"booking_id": ev.BookingID,
		}).WithError(err).Error("publish event")
	}
}
