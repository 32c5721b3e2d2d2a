package postgres

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

const paymentColumns = `id, booking_id, amount, status, reference, COALESCE(external_ref, ''),
	provider, created_at, updated_at`

type PaymentRepository struct {
	db dbtx
}

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	if err := row.Scan(&p.ID, &p.BookingID, &p.Amount, &p.Status, &p.Reference, &p.ExternalRef,
		&p.Provider, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) Create(ctx context.Context, bookingID, amount int64, reference, provider string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`INSERT INTO payments (booking_id, amount, status, reference, provider)
		 VALUES ($1, $2, 'PENDING', $3, $4)
		 RETURNING `+paymentColumns,
		bookingID, amount, reference, provider,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("payment for booking %d: %w", bookingID, model.ErrConflict)
		}
		return nil, fmt.Errorf("insert payment: %w", err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByBooking(ctx context.Context, bookingID int64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE booking_id = $1`,
		bookingID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *PaymentRepository) GetByReference(ctx context.Context, reference string) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE reference = $1`,
		reference,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *PaymentRepository) GetForUpdate(ctx context.Context, paymentID int64) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE`,
		paymentID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *PaymentRepository) Transition(ctx context.Context, paymentID int64, to model.PaymentStatus, externalRef string) (bool, error) {
	if _, err := model.NextPaymentStatus(model.PaymentPending, to); err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE payments
		 SET status = $2,
		     external_ref = COALESCE(external_ref, NULLIF($3, '')),
		     updated_at = now()
		 WHERE id = $1 AND status = 'PENDING'`,
		paymentID, to, externalRef,
	)
	if err != nil {
		return false, fmt.Errorf("update payment status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var (
		cur    model.PaymentStatus
		stored string
	)
	err = r.db.QueryRow(ctx,
		`SELECT status, COALESCE(external_ref, '') FROM payments WHERE id = $1`,
		paymentID,
	).Scan(&cur, &stored)
	if err != nil {
		return false, notFound(err)
	}

	changed, err := model.NextPaymentStatus(cur, to)
	if err == nil && externalRef != "" && stored != "" && externalRef != stored {
		logrus.WithFields(logrus.Fields{
			"payment_id":   paymentID,
			"status":       cur,
			"external_ref": stored,
			"received_ref": externalRef,
		}).Warn("duplicate delivery with a different gateway reference ignored")
	}
	return changed, err
}
