package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT UNIQUE NOT NULL,
		password_hash TEXT NOT NULL,
		phone         TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS services (
		id          BIGSERIAL PRIMARY KEY,
		name        TEXT NOT NULL,
		description TEXT NOT NULL,
		price       BIGINT NOT NULL CHECK (price >= 0),
		duration    INTEGER NOT NULL,
		is_active   BOOLEAN NOT NULL DEFAULT TRUE,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS time_slots (
		id         BIGSERIAL PRIMARY KEY,
		service_id BIGINT NOT NULL REFERENCES services(id),
		date       DATE NOT NULL,
		start_time TIME NOT NULL,
		end_time   TIME NOT NULL,
		is_booked  BOOLEAN NOT NULL DEFAULT FALSE
	)`,

	`CREATE TABLE IF NOT EXISTS bookings (
		id         BIGSERIAL PRIMARY KEY,
		user_id    BIGINT NOT NULL REFERENCES users(id),
		service_id BIGINT NOT NULL REFERENCES services(id),
		slot_id    BIGINT NOT NULL REFERENCES time_slots(id),
		status     TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'CONFIRMED', 'FAILED')),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS payments (
		id           BIGSERIAL PRIMARY KEY,
		booking_id   BIGINT NOT NULL UNIQUE REFERENCES bookings(id),
		amount       BIGINT NOT NULL CHECK (amount >= 0),
		status       TEXT NOT NULL DEFAULT 'PENDING'
			CHECK (status IN ('PENDING', 'SUCCESS', 'FAILED')),
		reference    TEXT NOT NULL UNIQUE,
		external_ref TEXT,
		provider     TEXT NOT NULL DEFAULT 'PayU',
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS payment_reviews (
		id               BIGSERIAL PRIMARY KEY,
		booking_id       BIGINT NOT NULL REFERENCES bookings(id),
		payment_id       BIGINT NOT NULL REFERENCES payments(id),
		reference        TEXT NOT NULL,
		external_ref     TEXT NOT NULL DEFAULT '',
		current_status   TEXT NOT NULL,
		requested_status TEXT NOT NULL,
		reason           TEXT NOT NULL,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (payment_id, requested_status, external_ref)
	)`,

	// At most one live booking per slot.
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_bookings_pending_slot
		ON bookings(slot_id) WHERE status = 'PENDING'`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_user_id ON bookings(user_id)`,
	`CREATE INDEX IF NOT EXISTS idx_bookings_status_created ON bookings(status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_time_slots_service ON time_slots(service_id, date, start_time)`,
}

// Migrate creates the schema if it does not exist yet.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range migrations {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}
