package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

const bookingColumns = `id, user_id, service_id, slot_id, status, created_at, updated_at`

type BookingRepository struct {
	db dbtx
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*model.Booking, error) {
	var b model.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.ServiceID, &b.SlotID, &b.Status, &b.CreatedAt, &b.UpdatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *BookingRepository) Create(ctx context.Context, userID, serviceID, slotID int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`INSERT INTO bookings (user_id, service_id, slot_id, status)
		 VALUES ($1, $2, $3, 'PENDING')
		 RETURNING `+bookingColumns,
		userID, serviceID, slotID,
	))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("slot %d: %w", slotID, model.ErrConflict)
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}
	return b, nil
}

func (r *BookingRepository) Get(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1`,
		bookingID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// GetForUpdate takes an exclusive row lock on the booking. Concurrent
// reconcilers of the same booking queue up here; different bookings do not
// contend.
func (r *BookingRepository) GetForUpdate(ctx context.Context, bookingID int64) (*model.Booking, error) {
	b, err := scanBooking(r.db.QueryRow(ctx,
		`SELECT `+bookingColumns+` FROM bookings WHERE id = $1 FOR UPDATE`,
		bookingID,
	))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

// Transition moves a PENDING booking to a terminal status with a conditional
// UPDATE, so it is safe outside a transaction too. When nothing was updated
// the current status decides between an idempotent no-op and a rejection.
func (r *BookingRepository) Transition(ctx context.Context, bookingID int64, to model.BookingStatus) (bool, error) {
	if _, err := model.NextBookingStatus(model.BookingPending, to); err != nil {
		return false, err
	}

	tag, err := r.db.Exec(ctx,
		`UPDATE bookings SET status = $2, updated_at = now()
		 WHERE id = $1 AND status = 'PENDING'`,
		bookingID, to,
	)
	if err != nil {
		return false, fmt.Errorf("update booking status: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	var cur model.BookingStatus
	if err := r.db.QueryRow(ctx, `SELECT status FROM bookings WHERE id = $1`, bookingID).Scan(&cur); err != nil {
		return false, notFound(err)
	}
	return model.NextBookingStatus(cur, to)
}

func (r *BookingRepository) ListByUser(ctx context.Context, userID int64) ([]model.BookingDetails, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.user_id, b.service_id, b.slot_id, b.status, b.created_at, b.updated_at,
		        s.name, s.price,
		        to_char(ts.date, 'YYYY-MM-DD'), to_char(ts.start_time, 'HH24:MI'), to_char(ts.end_time, 'HH24:MI'),
		        COALESCE(p.status, 'PENDING')
		 FROM bookings b
		 JOIN services s ON s.id = b.service_id
		 JOIN time_slots ts ON ts.id = b.slot_id
		 LEFT JOIN payments p ON p.booking_id = b.id
		 WHERE b.user_id = $1
		 ORDER BY b.created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.BookingDetails
	for rows.Next() {
		var d model.BookingDetails
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.ServiceID, &d.SlotID, &d.Status, &d.CreatedAt, &d.UpdatedAt,
			&d.ServiceName, &d.Price,
			&d.Date, &d.StartTime, &d.EndTime,
			&d.PaymentStatus,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *BookingRepository) ListStalePending(ctx context.Context, createdBefore time.Time, limit int) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+bookingColumns+`
		 FROM bookings
		 WHERE status = 'PENDING' AND created_at < $1
		 ORDER BY created_at
		 LIMIT $2`,
		createdBefore, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stale bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}
