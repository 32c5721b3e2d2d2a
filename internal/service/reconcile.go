package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
	"github.com/Shivanand-hulikatti/consultancy-booking/internal/repository"
)

// Outcome of applying one gateway notification.
type Outcome string

const (
	OutcomeConfirmed Outcome = "CONFIRMED"
	OutcomeFailed    Outcome = "FAILED"
	OutcomeDuplicate Outcome = "DUPLICATE"
)

// Verifier authenticates a raw gateway notification.
type Verifier interface {
	Verify(fields map[string]string) bool
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(fields map[string]string) bool

func (f VerifierFunc) Verify(fields map[string]string) bool { return f(fields) }

// ReplayCache remembers notifications that were already applied.
type ReplayCache interface {
	Seen(ctx context.Context, key string) (bool, error)
	Remember(ctx context.Context, key string) error
}

// Result is returned for every notification that was applied or recognized
// as a redelivery.
type Result struct {
	Outcome       Outcome             `json:"outcome"`
	BookingID     int64               `json:"booking_id"`
	BookingStatus model.BookingStatus `json:"booking_status"`
	PaymentStatus model.PaymentStatus `json:"payment_status"`
}

// Reconciler applies gateway notifications to the ledgers.
type Reconciler struct {
	store  repository.Store
	events EventPublisher
	replay ReplayCache
}

func NewReconciler(store repository.Store, opts ...Option) *Reconciler {
	o := buildOptions(opts)
	return &Reconciler{store: store, events: o.events, replay: o.replay}
}

type notification struct {
	reference   string
	externalRef string
	success     bool
	rawStatus   string
}

func parseNotification(fields map[string]string) (notification, error) {
	n := notification{
		reference:   strings.TrimSpace(fields["txnid"]),
		externalRef: strings.TrimSpace(fields["mihpayid"]),
		rawStatus:   strings.TrimSpace(fields["status"]),
	}
	if n.rawStatus == "" {
		return n, fmt.Errorf("%w: missing status", model.ErrInvalidNotification)
	}
	n.success = strings.EqualFold(n.rawStatus, "success")
	return n, nil
}

func (n notification) replayKey() string {
	return strings.Join([]string{n.reference, strings.ToLower(n.rawStatus), n.externalRef}, ":")
}

// Reconcile verifies a notification and applies it exactly once. The
// booking row is locked before the payment row for the whole unit of work,
// so concurrent deliveries for one booking apply in sequence and all but
// the first report OutcomeDuplicate.
//
// A success arriving for an already failed payment is written to the review
// log and rejected with an error matching model.ErrIllegalTransition.
func (rc *Reconciler) Reconcile(ctx context.Context, fields map[string]string, verifier Verifier) (*Result, error) {
	if verifier == nil || !verifier.Verify(fields) {
		return nil, model.ErrInvalidNotification
	}
	n, err := parseNotification(fields)
	if err != nil {
		return nil, err
	}
	if n.reference == "" {
		return nil, model.ErrUnknownBooking
	}

	log := logrus.WithFields(logrus.Fields{
		"reference": n.reference,
		"status":    n.rawStatus,
	})

	if rc.replay != nil {
		seen, err := rc.replay.Seen(ctx, n.replayKey())
		if err != nil {
			log.WithError(err).Warn("replay cache lookup failed")
		} else if seen {
			log.Info("notification already applied")
			return rc.duplicate(ctx, n)
		}
	}

	payment, err := rc.store.Repos().Payments.GetByReference(ctx, n.reference)
	if errors.Is(err, model.ErrNotFound) {
		log.Warn("notification for unknown reference")
		return nil, model.ErrUnknownBooking
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}

	var (
		res     *Result
		flagged *model.Review
		event   string
		amount  int64
	)
	err = rc.store.InTx(ctx, func(ctx context.Context, r repository.Repos) error {
		booking, err := r.Bookings.GetForUpdate(ctx, payment.BookingID)
		if err != nil {
			return fmt.Errorf("lock booking: %w", err)
		}
		pay, err := r.Payments.GetForUpdate(ctx, payment.ID)
		if err != nil {
			return fmt.Errorf("lock payment: %w", err)
		}
		amount = pay.Amount

		res = &Result{
			Outcome:       OutcomeDuplicate,
			BookingID:     booking.ID,
			BookingStatus: booking.Status,
			PaymentStatus: pay.Status,
		}

		switch {
		case pay.Status == model.PaymentPending && n.success:
			if _, err := r.Payments.Transition(ctx, pay.ID, model.PaymentSuccess, n.externalRef); err != nil {
				return fmt.Errorf("confirm payment: %w", err)
			}
			if _, err := r.Bookings.Transition(ctx, booking.ID, model.BookingConfirmed); err != nil {
				return fmt.Errorf("confirm booking: %w", err)
			}
			res.Outcome = OutcomeConfirmed
			res.PaymentStatus, res.BookingStatus = model.PaymentSuccess, model.BookingConfirmed
			event = EventBookingConfirmed

		case pay.Status == model.PaymentPending:
			if _, err := r.Payments.Transition(ctx, pay.ID, model.PaymentFailed, n.externalRef); err != nil {
				return fmt.Errorf("fail payment: %w", err)
			}
			res.Outcome = OutcomeFailed
			res.PaymentStatus = model.PaymentFailed
			event = EventPaymentFailed

		case pay.Status == model.PaymentSuccess && !n.success:
			log.WithField("booking_id", booking.ID).Warn("failure notification after confirmed payment ignored")

		case pay.Status == model.PaymentFailed && n.success:
			flagged = &model.Review{
				BookingID:       booking.ID,
				PaymentID:       pay.ID,
				Reference:       pay.Reference,
				ExternalRef:     n.externalRef,
				CurrentStatus:   pay.Status,
				RequestedStatus: model.PaymentSuccess,
				Reason:          "success notification for a failed payment",
			}
			if err := r.Reviews.Flag(ctx, flagged); err != nil {
				return fmt.Errorf("flag for review: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		log.WithError(err).Error("reconcile notification")
		return nil, err
	}

	if flagged != nil {
		log.WithFields(logrus.Fields{
			"booking_id": flagged.BookingID,
			"review_id":  flagged.ID,
		}).Warn("notification flagged for manual review")
		publish(ctx, rc.events, EventPaymentReviewRequired, BookingEvent{
			BookingID:     res.BookingID,
			PaymentID:     flagged.PaymentID,
			Reference:     flagged.Reference,
			Amount:        amount,
			BookingStatus: res.BookingStatus,
			PaymentStatus: res.PaymentStatus,
		})
		return nil, &model.TransitionError{
			Entity: "payment",
			From:   string(flagged.CurrentStatus),
			To:     string(flagged.RequestedStatus),
		}
	}

	log.WithFields(logrus.Fields{
		"booking_id": res.BookingID,
		"outcome":    res.Outcome,
	}).Info("notification reconciled")

	rc.remember(ctx, n)
	if event != "" {
		publish(ctx, rc.events, event, BookingEvent{
			BookingID:     res.BookingID,
			PaymentID:     payment.ID,
			Reference:     payment.Reference,
			Amount:        amount,
			BookingStatus: res.BookingStatus,
			PaymentStatus: res.PaymentStatus,
		})
	}
	return res, nil
}

// duplicate answers a cached redelivery from the current rows, read
// without locks.
func (rc *Reconciler) duplicate(ctx context.Context, n notification) (*Result, error) {
	r := rc.store.Repos()
	pay, err := r.Payments.GetByReference(ctx, n.reference)
	if errors.Is(err, model.ErrNotFound) {
		return nil, model.ErrUnknownBooking
	}
	if err != nil {
		return nil, fmt.Errorf("lookup payment: %w", err)
	}
	booking, err := r.Bookings.Get(ctx, pay.BookingID)
	if err != nil {
		return nil, fmt.Errorf("read booking: %w", err)
	}
	return &Result{
		Outcome:       OutcomeDuplicate,
		BookingID:     booking.ID,
		BookingStatus: booking.Status,
		PaymentStatus: pay.Status,
	}, nil
}

func (rc *Reconciler) remember(ctx context.Context, n notification) {
	if rc.replay == nil {
		return
	}
	if err := rc.replay.Remember(ctx, n.replayKey()); err != nil {
		logrus.WithField("reference", n.reference).WithError(err).Warn("replay cache write failed")
	}
}
