package postgres

import (
	"context"
	"fmt"

	"github.com/Shivanand-hulikatti/consultancy-booking/internal/model"
)

const slotColumns = `id, service_id, to_char(date, 'YYYY-MM-DD'), to_char(start_time, 'HH24:MI'),
	to_char(end_time, 'HH24:MI'), is_booked`

type SlotRepository struct {
	db dbtx
}

// TryReserve flips is_booked in one conditional UPDATE.
//
// A second caller racing on the same row blocks on the row lock held by the
// first; once the first commits, PostgreSQL re-evaluates the WHERE clause
// against the new row version, sees is_booked = TRUE and updates nothing.
// If the first rolls back, the second wins. Either way exactly one succeeds.
func (r *SlotRepository) TryReserve(ctx context.Context, slotID int64) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE time_slots ts
		 SET is_booked = TRUE
		 FROM services s
		 WHERE ts.id = $1
		   AND ts.is_booked = FALSE
		   AND s.id = ts.service_id
		   AND s.is_active = TRUE`,
		slotID,
	)
	if err != nil {
		return false, fmt.Errorf("reserve slot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *SlotRepository) Get(ctx context.Context, slotID int64) (*model.TimeSlot, error) {
	var s model.TimeSlot
	err := r.db.QueryRow(ctx,
		`SELECT `+slotColumns+` FROM time_slots WHERE id = $1`,
		slotID,
	).Scan(&s.ID, &s.ServiceID, &s.Date, &s.StartTime, &s.EndTime, &s.Occupied)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

func (r *SlotRepository) ListByService(ctx context.Context, serviceID int64) ([]model.TimeSlot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+slotColumns+`
		 FROM time_slots
		 WHERE service_id = $1
		 ORDER BY date, start_time`,
		serviceID,
	)
	if err != nil {
		return nil, fmt.Errorf("list slots: %w", err)
	}
	defer rows.Close()

	var slots []model.TimeSlot
	for rows.Next() {
		var s model.TimeSlot
		if err := rows.Scan(&s.ID, &s.ServiceID, &s.Date, &s.StartTime, &s.EndTime, &s.Occupied); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	return slots, rows.Err()
}

func (r *SlotRepository) Create(ctx context.Context, slot *model.TimeSlot) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO time_slots (service_id, date, start_time, end_time, is_booked)
		 VALUES ($1, $2::text::date, $3::text::time, $4::text::time, $5)
		 RETURNING id`,
		slot.ServiceID, slot.Date, slot.StartTime, slot.EndTime, slot.Occupied,
	).Scan(&slot.ID)
	if err != nil {
		return fmt.Errorf("insert slot: %w", err)
	}
	return nil
}
