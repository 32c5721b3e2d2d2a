// Package worker runs background jobs.
package worker

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

// StaleLister is the part of the booking ledger the audit reads.
type StaleLister interface {
	ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error)
}

// PendingAudit periodically reports bookings that stayed PENDING longer than
// maxAge. It only reads: abandoned reservations keep their slot until an
// operator acts on the report.
type PendingAudit struct {
	bookings  StaleLister
	interval  time.Duration
	maxAge    time.Duration
	batchSize int
	now       func() time.Time
}

func NewPendingAudit(bookings StaleLister, interval, maxAge time.Duration, batchSize int) *PendingAudit {
	return &PendingAudit{
		bookings:  bookings,
		interval:  interval,
		maxAge:    maxAge,
		batchSize: batchSize,
		now:       time.Now,
	}
}

// Start blocks until ctx is canceled.
func (w *PendingAudit) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	logrus.WithField("interval", w.interval).Info("pending audit worker started")

	for {
		select {
		case <-ctx.Done():
			logrus.Info("pending audit worker stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single audit pass and returns how many stale bookings
// it reported.
func (w *PendingAudit) RunOnce(ctx context.Context) int {
	cutoff := w.now().Add(-w.maxAge)
	stale, err := w.bookings.ListStalePending(ctx, cutoff, w.batchSize)
	if err != nil {
		logrus.WithError(err).Error("list stale pending bookings")
		return 0
	}
	if len(stale) == 0 {
		logrus.Debug("no stale pending bookings")
		return 0
	}

	for _, b := range stale {
		logrus.WithFields(logrus.Fields{
			"booking_id": b.ID,
			"slot_id":    b.SlotID,
			"user_id":    b.UserID,
			"age":        w.now().Sub(b.CreatedAt).Round(time.Second).String(),
		}).Warn("booking still pending, slot held")
	}
	if len(stale) == w.batchSize {
		logrus.Warnf("stale pending report truncated at %d bookings", w.batchSize)
	}
	return len(stale)
}
